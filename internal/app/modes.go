package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/Hurisoft/soccersm-pools/internal/domain"
	"github.com/Hurisoft/soccersm-pools/internal/engine"
	"github.com/Hurisoft/soccersm-pools/internal/oracle"
	"github.com/Hurisoft/soccersm-pools/internal/registry"
	"github.com/Hurisoft/soccersm-pools/internal/server"
	"github.com/Hurisoft/soccersm-pools/internal/server/handler"
	"github.com/Hurisoft/soccersm-pools/internal/server/ws"
	"github.com/Hurisoft/soccersm-pools/internal/service"
)

// sweepInterval is how often the close sweeper scans for due pools.
const sweepInterval = 30 * time.Second

// sweepBatchSize is the page size for the sweeper's pool scan.
const sweepBatchSize = 500

// buildService assembles the registry, engine, and pool service from wired
// dependencies. The returned registry is shared with the topic handler.
func (a *App) buildService(ctx context.Context, deps *Dependencies) (*service.PoolService, *registry.Registry, error) {
	params, err := EngineParams(a.cfg)
	if err != nil {
		return nil, nil, err
	}

	reg, err := registry.New(ctx, params.Owner, deps.TopicStore, a.logger)
	if err != nil {
		return nil, nil, err
	}
	reg.RegisterEvaluator("statement", oracle.NewStatementEvaluator(deps.Provider))

	fanout := service.NewEventFanout(deps.SignalBus, deps.AuditStore, deps.Notifier, a.logger)

	eng, err := engine.New(ctx, params, engine.Deps{
		Pools:        deps.PoolStore,
		Participants: deps.ParticipantStore,
		Withdrawals:  deps.WithdrawalStore,
		Topics:       reg,
		Custody:      deps.Custody,
		Sink:         fanout,
		Logger:       a.logger,
	})
	if err != nil {
		return nil, nil, err
	}

	svc := service.NewPoolService(eng, deps.PoolCache, deps.LockManager, a.logger)
	return svc, reg, nil
}

// StandaloneMode runs the engine entirely in process: memory stores, the
// bank custody ledger, and the memory oracle. Useful for development and
// simulations.
func (a *App) StandaloneMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting standalone mode")

	svc, reg, err := a.buildService(ctx, deps)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.runCloseSweeper(ctx, svc)
	})

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, svc, reg)
	}

	return g.Wait()
}

// ServerMode runs the full service: PostgreSQL stores, the Redis fabric,
// the HTTP/WebSocket API, and the close sweeper.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	svc, reg, err := a.buildService(ctx, deps)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.runCloseSweeper(ctx, svc)
	})

	a.startHTTPServer(ctx, g, deps, svc, reg)

	return g.Wait()
}

// ArchiveMode periodically offloads terminal pools and withdrawal records
// older than the retention window to object storage.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	retention := time.Duration(a.cfg.Archive.RetentionDays) * 24 * time.Hour
	interval := a.cfg.Archive.Interval.Duration
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	a.logger.InfoContext(ctx, "starting archive mode",
		slog.Duration("retention", retention),
		slog.Duration("interval", interval),
	)

	run := func() {
		cutoff := time.Now().UTC().Add(-retention)

		n, err := deps.Archiver.ArchivePools(ctx, cutoff)
		if err != nil {
			a.logger.ErrorContext(ctx, "archive: pools failed",
				slog.String("error", err.Error()),
			)
		} else {
			a.logger.InfoContext(ctx, "archive: pools done", slog.Int64("archived", n))
		}

		n, err = deps.Archiver.ArchiveWithdrawals(ctx, cutoff)
		if err != nil {
			a.logger.ErrorContext(ctx, "archive: withdrawals failed",
				slog.String("error", err.Error()),
			)
		} else {
			a.logger.InfoContext(ctx, "archive: withdrawals done", slog.Int64("archived", n))
		}
	}

	// One pass immediately, then on the interval.
	run()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			run()
		}
	}
}

// runCloseSweeper periodically scans for pools whose resolution is due and
// attempts to close them.
func (a *App) runCloseSweeper(ctx context.Context, svc *service.PoolService) error {
	caller := common.HexToAddress(a.cfg.Engine.Owner)

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		due := a.collectDuePools(ctx, svc, time.Now())
		if len(due) == 0 {
			continue
		}

		for _, res := range svc.CloseMany(ctx, caller, due) {
			if res.Err == nil {
				continue
			}
			// Contention and cooldown rejections are routine here; other
			// replicas or callers may have beaten us to the close.
			if errors.Is(res.Err, domain.ErrLockHeld) ||
				errors.Is(res.Err, domain.ErrRetryNotReached) ||
				errors.Is(res.Err, domain.ErrActionNotAllowed) {
				continue
			}
			a.logger.WarnContext(ctx, "sweeper: close failed",
				slog.Uint64("pool_id", res.PoolID),
				slog.String("error", res.Err.Error()),
			)
		}
	}
}

// collectDuePools pages through the whole pool list and returns the ids
// whose resolution is due at now: matured pools awaiting their first attempt
// and stale pools past their retry cooldown.
func (a *App) collectDuePools(ctx context.Context, svc *service.PoolService, now time.Time) []uint64 {
	var due []uint64
	for offset := 0; ; offset += sweepBatchSize {
		pools, err := svc.ListPools(ctx, domain.ListOpts{Limit: sweepBatchSize, Offset: offset})
		if err != nil {
			a.logger.WarnContext(ctx, "sweeper: list pools failed",
				slog.Int("offset", offset),
				slog.String("error", err.Error()),
			)
			return due
		}
		for _, p := range pools {
			switch st := p.StateAt(now); {
			case st == domain.PoolAwaitingResolution:
				due = append(due, p.ID)
			case st == domain.PoolStale && !now.Before(p.NextRetryAt):
				due = append(due, p.ID)
			}
		}
		if len(pools) < sweepBatchSize {
			return due
		}
	}
}

// startHTTPServer registers all handlers and launches the HTTP server plus
// the WebSocket hub on the errgroup.
func (a *App) startHTTPServer(
	ctx context.Context,
	g *errgroup.Group,
	deps *Dependencies,
	svc *service.PoolService,
	reg *registry.Registry,
) {
	handlers := server.Handlers{
		Health: handler.NewHealthHandler(a.logger),
		Status: handler.NewStatusHandler(a.cfg.Mode, a.cfg.Custody.Backend, a.cfg.Oracle.Provider),
		Pools:  handler.NewPoolHandler(svc, a.logger),
		Topics: handler.NewTopicHandler(reg, a.logger),
		Oracle: handler.NewOracleHandler(deps.Provider, a.logger),
	}

	// The hub needs the signal bus; standalone mode runs without one.
	var hub *ws.Hub
	if deps.SignalBus != nil {
		hub = ws.NewHub(deps.SignalBus, a.logger, ws.Config{
			Mode:      a.cfg.Mode,
			StartedAt: time.Now().UTC(),
		})
		g.Go(func() error {
			return hub.Run(ctx)
		})
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		AdminToken:  a.cfg.Server.AdminToken,
		RateLimit:   a.cfg.Server.RateLimit,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}
