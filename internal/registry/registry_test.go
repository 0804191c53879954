package registry

import (
	"context"
	"log/slog"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hurisoft/soccersm-pools/internal/domain"
	"github.com/Hurisoft/soccersm-pools/internal/store/memory"
)

var (
	regOwner = common.HexToAddress("0x0000000000000000000000000000000000000001")
	stranger = common.HexToAddress("0x0000000000000000000000000000000000000099")
)

type yesEvaluator struct{}

func (yesEvaluator) Validate(context.Context, domain.EventSpec) (bool, error) {
	return true, nil
}

func (yesEvaluator) Evaluate(context.Context, domain.EventSpec) (domain.Outcome, error) {
	return domain.Outcome{HasData: true, Value: domain.SideYes}, nil
}

func newRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := New(context.Background(), regOwner, memory.NewTopicStore(), slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	reg.RegisterEvaluator("always-yes", yesEvaluator{})
	return reg
}

func TestCreateTopic(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry(t)

	topic, err := reg.CreateTopic(ctx, regOwner, "Football", "Match outcomes", "always-yes")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), topic.ID)
	assert.True(t, topic.Enabled)

	second, err := reg.CreateTopic(ctx, regOwner, "Elections", "", "always-yes")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), second.ID)

	got, err := reg.GetTopic(ctx, topic.ID)
	require.NoError(t, err)
	assert.Equal(t, "Football", got.Title)
}

func TestCreateTopicRejections(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry(t)

	_, err := reg.CreateTopic(ctx, stranger, "Football", "", "always-yes")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = reg.CreateTopic(ctx, regOwner, "Football", "", "no-such-evaluator")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSetTopicEnabled(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry(t)

	topic, err := reg.CreateTopic(ctx, regOwner, "Football", "", "always-yes")
	require.NoError(t, err)

	require.NoError(t, reg.SetTopicEnabled(ctx, regOwner, topic.ID, false))
	enabled, err := reg.IsEnabled(ctx, topic.ID)
	require.NoError(t, err)
	assert.False(t, enabled)

	require.NoError(t, reg.SetTopicEnabled(ctx, regOwner, topic.ID, true))
	enabled, err = reg.IsEnabled(ctx, topic.ID)
	require.NoError(t, err)
	assert.True(t, enabled)

	assert.ErrorIs(t, reg.SetTopicEnabled(ctx, stranger, topic.ID, false), domain.ErrUnauthorized)
	assert.ErrorIs(t, reg.SetTopicEnabled(ctx, regOwner, 999, false), domain.ErrTopicNotFound)
}

func TestEvaluatorResolution(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry(t)

	topic, err := reg.CreateTopic(ctx, regOwner, "Football", "", "always-yes")
	require.NoError(t, err)

	ev, err := reg.Evaluator(ctx, topic.ID)
	require.NoError(t, err)
	out, err := ev.Evaluate(ctx, domain.EventSpec{})
	require.NoError(t, err)
	assert.Equal(t, domain.SideYes, out.Value)

	_, err = reg.Evaluator(ctx, 999)
	assert.ErrorIs(t, err, domain.ErrTopicNotFound)
}

func TestNewRecoversTopicIDSequence(t *testing.T) {
	ctx := context.Background()
	store := memory.NewTopicStore()

	first, err := New(ctx, regOwner, store, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	first.RegisterEvaluator("always-yes", yesEvaluator{})
	_, err = first.CreateTopic(ctx, regOwner, "Football", "", "always-yes")
	require.NoError(t, err)
	_, err = first.CreateTopic(ctx, regOwner, "Elections", "", "always-yes")
	require.NoError(t, err)

	// A registry rebuilt over the same store continues the sequence.
	second, err := New(ctx, regOwner, store, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	second.RegisterEvaluator("always-yes", yesEvaluator{})
	topic, err := second.CreateTopic(ctx, regOwner, "Weather", "", "always-yes")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), topic.ID)
}
