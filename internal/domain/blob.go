package domain

import (
	"context"
	"io"
	"time"
)

// BlobInfo describes one stored object.
type BlobInfo struct {
	Path         string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// BlobWriter uploads objects to blob storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// BlobReader retrieves objects from blob storage.
type BlobReader interface {
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
	Exists(ctx context.Context, path string) (bool, error)
}

// Archiver offloads settled ledger history to blob storage.
type Archiver interface {
	// ArchivePools uploads terminal pools last touched before the cutoff
	// and returns the archived count.
	ArchivePools(ctx context.Context, before time.Time) (int64, error)
	// ArchiveWithdrawals uploads payout records created before the cutoff
	// and returns the archived count.
	ArchiveWithdrawals(ctx context.Context, before time.Time) (int64, error)
}
