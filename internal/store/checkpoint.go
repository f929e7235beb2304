package store

import (
	"context"
	"strings"
)

// CheckpointStatus mirrors the crawl_checkpoints.status column.
type CheckpointStatus string

// Checkpoint statuses persisted in crawl_checkpoints.status.
const (
	StatusSuccess     CheckpointStatus = "success"
	StatusUnavailable CheckpointStatus = "unavailable"
	// StatusPendingRetry marks an item whose processing failed mid-way. It is
	// not counted as processed, so the next epoch picks it up again.
	StatusPendingRetry CheckpointStatus = "pending-retry"
)

const skippedTypePrefix = "skipped-type:"

// SkippedType builds the status for an item whose type is not crawlable.
func SkippedType(itemType string) CheckpointStatus {
	return CheckpointStatus(skippedTypePrefix + itemType)
}

// IsSkipped reports whether the status records a skipped type.
func (s CheckpointStatus) IsSkipped() bool {
	return strings.HasPrefix(string(s), skippedTypePrefix)
}

// Processed reports whether the status excludes the item from later epochs.
func (s CheckpointStatus) Processed() bool {
	return s != "" && s != StatusPendingRetry
}

// CheckpointRepository is the processed-ID ledger that drives resumability.
type CheckpointRepository interface {
	// IsProcessed reports whether id carries a processed status.
	IsProcessed(ctx context.Context, id int64) (bool, error)
	// MarkProcessed inserts or overwrites the ledger entry for id.
	MarkProcessed(ctx context.Context, id int64, status CheckpointStatus) error
	// ProcessedCount returns the number of processed ledger entries.
	ProcessedCount(ctx context.Context) (int64, error)
	// ProcessedIDs bulk-loads every processed id. Used once per epoch.
	ProcessedIDs(ctx context.Context) (map[int64]struct{}, error)
	// ClearCheckpoints deletes entries with the given status, or every entry
	// when status is empty, and returns how many were removed.
	ClearCheckpoints(ctx context.Context, status CheckpointStatus) (int64, error)
}
