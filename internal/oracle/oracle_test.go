package oracle

import (
	"context"
	"log/slog"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hurisoft/soccersm-pools/internal/domain"
)

var (
	oracleOwner  = common.HexToAddress("0x0000000000000000000000000000000000000001")
	testReporter = common.HexToAddress("0x0000000000000000000000000000000000000002")
	impostor     = common.HexToAddress("0x0000000000000000000000000000000000000003")
)

func newProvider(t *testing.T) *MemoryProvider {
	t.Helper()
	p := NewMemoryProvider(oracleOwner, slog.New(slog.DiscardHandler))
	require.NoError(t, p.AddReporter(context.Background(), oracleOwner, testReporter))
	return p
}

func TestProvideAndGet(t *testing.T) {
	ctx := context.Background()
	p := newProvider(t)

	key := DataKey([]byte("statement:derby-winner"))
	require.NoError(t, p.Provide(ctx, testReporter, key, []byte("yes")))

	has, err := p.HasData(ctx, key)
	require.NoError(t, err)
	assert.True(t, has)

	data, err := p.GetData(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("yes"), data)
}

func TestProvideUnauthorized(t *testing.T) {
	ctx := context.Background()
	p := newProvider(t)

	err := p.Provide(ctx, impostor, DataKey([]byte("x")), []byte("yes"))
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestAddReporterOwnerOnly(t *testing.T) {
	ctx := context.Background()
	p := newProvider(t)

	err := p.AddReporter(ctx, impostor, impostor)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestGetDataMissing(t *testing.T) {
	p := newProvider(t)

	_, err := p.GetData(context.Background(), DataKey([]byte("never-provided")))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	has, err := p.HasData(context.Background(), DataKey([]byte("never-provided")))
	require.NoError(t, err)
	assert.False(t, has)
}

func TestDataKeyIsContentAddressed(t *testing.T) {
	a := DataKey([]byte("statement:one"))
	b := DataKey([]byte("statement:two"))
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, DataKey([]byte("statement:one")))
	// 0x prefix plus 32 hex-encoded bytes.
	assert.Len(t, a, 66)
}

func TestStatementEvaluator(t *testing.T) {
	ctx := context.Background()
	p := newProvider(t)
	ev := NewStatementEvaluator(p)

	spec := domain.EventSpec{Params: []byte("statement:derby-winner")}

	// No data yet: HasData false, no error.
	out, err := ev.Evaluate(ctx, spec)
	require.NoError(t, err)
	assert.False(t, out.HasData)

	require.NoError(t, p.Provide(ctx, testReporter, DataKey(spec.Params), []byte("no")))

	out, err = ev.Evaluate(ctx, spec)
	require.NoError(t, err)
	assert.True(t, out.HasData)
	assert.Equal(t, "no", out.Value)
}

func TestStatementEvaluatorValidate(t *testing.T) {
	ctx := context.Background()
	ev := NewStatementEvaluator(newProvider(t))

	ok, err := ev.Validate(ctx, domain.EventSpec{Params: []byte("statement:x")})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ev.Validate(ctx, domain.EventSpec{Params: nil})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = ev.Validate(ctx, domain.EventSpec{Params: make([]byte, maxStatementParamLen+1)})
	require.NoError(t, err)
	assert.False(t, ok)
}
