package store

import (
	"context"
	"errors"

	"github.com/JakeFAU/game-catalog-crawler/internal/catalog"
)

// ErrNotFound signals that the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ItemRepository persists items and the data they own.
type ItemRepository interface {
	// UpsertItem writes the item row, any lookup entities it needs, and every
	// junction row as one unit of work. On error nothing is committed.
	UpsertItem(ctx context.Context, rec catalog.Record) error
	// UpsertReviews writes reviews for an already persisted item.
	UpsertReviews(ctx context.Context, itemID int64, reviews []catalog.Review) error
	// UpsertAchievements writes achievements for an already persisted item.
	UpsertAchievements(ctx context.Context, itemID int64, achievements []catalog.Achievement) error
	// SetTimeToBeat stores completion estimates; nil fields keep prior values.
	SetTimeToBeat(ctx context.Context, itemID int64, ttb catalog.TimeToBeat) error
}

// CrossReferenceRepository tracks DLC to base game links awaiting their target.
type CrossReferenceRepository interface {
	// AddPendingLink records that dependentID references baseID.
	AddPendingLink(ctx context.Context, dependentID, baseID int64) error
	// ResolvePendingLinks backfills every pending link whose base item now
	// exists, deletes those rows, and returns how many were resolved.
	ResolvePendingLinks(ctx context.Context) (int64, error)
	// PendingLinkCount returns the number of unresolved links.
	PendingLinkCount(ctx context.Context) (int64, error)
}

// SchemaManager creates and drops every table in dependency-safe order.
type SchemaManager interface {
	CreateTables(ctx context.Context) error
	DropTables(ctx context.Context) error
}

// Store is the full persistence surface used by the crawler.
type Store interface {
	ItemRepository
	CheckpointRepository
	CrossReferenceRepository
	EpochRepository
	SchemaManager
	// Ping verifies the backing connection is alive.
	Ping(ctx context.Context) error
	// Close releases the backing connection.
	Close()
}
