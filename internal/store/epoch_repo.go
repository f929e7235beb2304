package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EpochStatus mirrors the crawl_epochs.status column.
type EpochStatus string

// Epoch statuses persisted in crawl_epochs.status.
const (
	EpochRunning     EpochStatus = "running"
	EpochCompleted   EpochStatus = "completed"
	EpochInterrupted EpochStatus = "interrupted"
	EpochFailed      EpochStatus = "failed"
)

// Epoch models one crawl run and its summary counters.
type Epoch struct {
	// ID is a time-ordered UUID assigned at start.
	ID        uuid.UUID
	StartedAt time.Time
	// FinishedAt is nil while the epoch is running.
	FinishedAt *time.Time
	Status     EpochStatus
	// Universe is the size of the item-ID universe at start.
	Universe    int64
	Considered  int64
	Succeeded   int64
	Unavailable int64
	Skipped     int64
	Failed      int64
	Resolved    int64
}

// EpochRepository persists the crawl_epochs ledger.
type EpochRepository interface {
	// StartEpoch inserts a running epoch row.
	StartEpoch(ctx context.Context, epoch Epoch) error
	// FinishEpoch writes the final status and counters.
	FinishEpoch(ctx context.Context, epoch Epoch) error
	// LatestEpoch returns the most recently started epoch, or ErrNotFound.
	LatestEpoch(ctx context.Context) (Epoch, error)
}
