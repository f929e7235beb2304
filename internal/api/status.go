package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JakeFAU/game-catalog-crawler/internal/store"
)

// StatusReader is the read-only slice of the store the status views need.
type StatusReader interface {
	ProcessedCount(ctx context.Context) (int64, error)
	PendingLinkCount(ctx context.Context) (int64, error)
	LatestEpoch(ctx context.Context) (store.Epoch, error)
	Ping(ctx context.Context) error
}

// EpochView is the JSON shape of an epoch summary.
type EpochView struct {
	ID          string     `json:"id"`
	Status      string     `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	Universe    int64      `json:"universe"`
	Considered  int64      `json:"considered"`
	Succeeded   int64      `json:"succeeded"`
	Unavailable int64      `json:"unavailable"`
	Skipped     int64      `json:"skipped"`
	Failed      int64      `json:"failed"`
	Resolved    int64      `json:"resolved"`
}

// LedgerStatus summarizes crawl progress across epochs.
type LedgerStatus struct {
	Processed              int64      `json:"processed"`
	PendingCrossReferences int64      `json:"pending_cross_references"`
	LatestEpoch            *EpochView `json:"latest_epoch,omitempty"`
}

// ReadStatus gathers the ledger counts and the latest epoch, if any.
func ReadStatus(ctx context.Context, r StatusReader) (LedgerStatus, error) {
	var out LedgerStatus
	var err error
	if out.Processed, err = r.ProcessedCount(ctx); err != nil {
		return LedgerStatus{}, fmt.Errorf("count checkpoints: %w", err)
	}
	if out.PendingCrossReferences, err = r.PendingLinkCount(ctx); err != nil {
		return LedgerStatus{}, fmt.Errorf("count pending links: %w", err)
	}
	epoch, err := r.LatestEpoch(ctx)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return LedgerStatus{}, fmt.Errorf("latest epoch: %w", err)
	default:
		view := newEpochView(epoch)
		out.LatestEpoch = &view
	}
	return out, nil
}

func newEpochView(e store.Epoch) EpochView {
	return EpochView{
		ID:          e.ID.String(),
		Status:      string(e.Status),
		StartedAt:   e.StartedAt,
		FinishedAt:  e.FinishedAt,
		Universe:    e.Universe,
		Considered:  e.Considered,
		Succeeded:   e.Succeeded,
		Unavailable: e.Unavailable,
		Skipped:     e.Skipped,
		Failed:      e.Failed,
		Resolved:    e.Resolved,
	}
}
