package oracle

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/Hurisoft/soccersm-pools/internal/domain"
)

// maxStatementParamLen bounds event parameter blobs so a malformed client
// cannot bloat the ledger.
const maxStatementParamLen = 4096

// StatementEvaluator judges general-statement topics: the event parameters
// identify a statement, and reporters provide its settled outcome verbatim
// ("yes"/"no" for event-gate pools, the winning option for polls).
type StatementEvaluator struct {
	provider domain.DataProvider
}

// NewStatementEvaluator creates an evaluator reading from provider.
func NewStatementEvaluator(provider domain.DataProvider) *StatementEvaluator {
	return &StatementEvaluator{provider: provider}
}

// DataKey derives the provider key for an event's parameters. Keyed by
// content hash so differently-encoded duplicates cannot collide with each
// other's outcomes.
func DataKey(params []byte) string {
	return hexutil.Encode(crypto.Keccak256(params))
}

// Validate accepts any non-empty parameter blob within the size bound.
func (e *StatementEvaluator) Validate(_ context.Context, spec domain.EventSpec) (bool, error) {
	return len(spec.Params) > 0 && len(spec.Params) <= maxStatementParamLen, nil
}

// Evaluate maps the provided statement outcome to the event outcome. A key
// without data yields HasData false, which the engine records as staleness.
func (e *StatementEvaluator) Evaluate(ctx context.Context, spec domain.EventSpec) (domain.Outcome, error) {
	key := DataKey(spec.Params)
	ok, err := e.provider.HasData(ctx, key)
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("oracle: has data: %w", err)
	}
	if !ok {
		return domain.Outcome{}, nil
	}
	data, err := e.provider.GetData(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Raced deletion between HasData and GetData; report no data.
			return domain.Outcome{}, nil
		}
		return domain.Outcome{}, fmt.Errorf("oracle: get data: %w", err)
	}
	return domain.Outcome{HasData: true, Value: string(data)}, nil
}

// Compile-time interface check.
var _ domain.Evaluator = (*StatementEvaluator)(nil)
