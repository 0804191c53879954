package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Hurisoft/soccersm-pools/internal/domain"
)

// archiveBatchSize bounds how many rows a single archive pass pulls from the
// primary store.
const archiveBatchSize = 10_000

// ArchiveImpl implements domain.Archiver by querying the ledger stores for
// settled history, serializing it to JSONL, and uploading the result to S3.
//
// Deletion of the archived records from the primary store is intentionally
// NOT performed here -- that is a separate, explicit step to be executed
// after the archive has been verified.
type ArchiveImpl struct {
	writer      domain.BlobWriter
	pools       domain.PoolStore
	withdrawals domain.WithdrawalStore
	audit       domain.AuditStore
}

// NewArchiver creates a new ArchiveImpl.
func NewArchiver(
	writer domain.BlobWriter,
	pools domain.PoolStore,
	withdrawals domain.WithdrawalStore,
	audit domain.AuditStore,
) *ArchiveImpl {
	return &ArchiveImpl{
		writer:      writer,
		pools:       pools,
		withdrawals: withdrawals,
		audit:       audit,
	}
}

// ArchivePools queries terminal pools last touched before the cutoff,
// serializes them to JSONL, and uploads the file to
// archive/pools/YYYY-MM.jsonl. The archival event is recorded in the audit
// log and the archived count is returned.
func (a *ArchiveImpl) ArchivePools(ctx context.Context, before time.Time) (int64, error) {
	pools, err := a.pools.ListResolvedBefore(ctx, before, archiveBatchSize)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive pools query: %w", err)
	}
	if len(pools) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(pools)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive pools marshal: %w", err)
	}

	path := archivePath("pools", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive pools upload: %w", err)
	}

	count := int64(len(pools))
	if err := a.audit.Log(ctx, "archive.pools", map[string]any{
		"path":   path,
		"count":  count,
		"before": before.Format(time.RFC3339),
	}); err != nil {
		return count, fmt.Errorf("s3blob: archive pools audit log: %w", err)
	}
	return count, nil
}

// ArchiveWithdrawals queries payout records created before the cutoff,
// serializes them to JSONL, and uploads the file to
// archive/withdrawals/YYYY-MM.jsonl. The archival event is recorded in the
// audit log and the archived count is returned.
func (a *ArchiveImpl) ArchiveWithdrawals(ctx context.Context, before time.Time) (int64, error) {
	recs, err := a.withdrawals.ListBefore(ctx, before, archiveBatchSize)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive withdrawals query: %w", err)
	}
	if len(recs) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(recs)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive withdrawals marshal: %w", err)
	}

	path := archivePath("withdrawals", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive withdrawals upload: %w", err)
	}

	count := int64(len(recs))
	if err := a.audit.Log(ctx, "archive.withdrawals", map[string]any{
		"path":   path,
		"count":  count,
		"before": before.Format(time.RFC3339),
	}); err != nil {
		return count, fmt.Errorf("s3blob: archive withdrawals audit log: %w", err)
	}
	return count, nil
}

// archivePath builds the S3 key for an archive file, partitioned by the
// year-month of the cutoff time.
//
//	archive/pools/2026-03.jsonl
//	archive/withdrawals/2026-03.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// Compile-time interface check.
var _ domain.Archiver = (*ArchiveImpl)(nil)
