package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/Hurisoft/soccersm-pools/internal/domain"
)

// NotifyPoolEvent formats a pool lifecycle event and dispatches it through
// the configured senders, subject to the event-type filter.
func (n *Notifier) NotifyPoolEvent(ctx context.Context, ev domain.PoolEvent) error {
	title, message := formatPoolEvent(ev)
	return n.Notify(ctx, string(ev.Type), title, message)
}

// formatPoolEvent renders a lifecycle event as an operator-facing title and
// body.
func formatPoolEvent(ev domain.PoolEvent) (title, message string) {
	var b strings.Builder
	fmt.Fprintf(&b, "Pool #%d", ev.PoolID)

	switch ev.Type {
	case domain.EventNewPool:
		title = fmt.Sprintf("New pool #%d", ev.PoolID)
		fmt.Fprintf(&b, " opened by %s on %q with stake %s", ev.Actor, ev.Side, ev.Stake)
	case domain.EventPoolJoined:
		title = fmt.Sprintf("Pool #%d joined", ev.PoolID)
		fmt.Fprintf(&b, " joined by %s on %q with stake %s", ev.Actor, ev.Side, ev.Stake)
	case domain.EventPoolResolved:
		title = fmt.Sprintf("Pool #%d resolved", ev.PoolID)
		fmt.Fprintf(&b, " resolved to %q", ev.Result)
	case domain.EventPoolStale:
		title = fmt.Sprintf("Pool #%d stale", ev.PoolID)
		fmt.Fprintf(&b, " went stale (retry %d)", ev.Retries)
		if ev.NextRetryAt != nil {
			fmt.Fprintf(&b, ", next attempt at %s", ev.NextRetryAt.UTC().Format("15:04:05 MST"))
		}
	case domain.EventManualResolution:
		title = fmt.Sprintf("Pool #%d needs manual resolution", ev.PoolID)
		fmt.Fprintf(&b, " exhausted its %d stale retries and is frozen until an operator sets a result", ev.Retries)
	case domain.EventWinningsWithdrawn:
		title = fmt.Sprintf("Pool #%d payout", ev.PoolID)
		fmt.Fprintf(&b, " paid %s to %s", ev.Payout, ev.Actor)
	default:
		title = fmt.Sprintf("Pool #%d: %s", ev.PoolID, ev.Type)
		fmt.Fprintf(&b, " event %s", ev.Type)
	}
	return title, b.String()
}
