package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/game-catalog-crawler/internal/store"
)

var pendingRetry = string(store.StatusPendingRetry)

// IsProcessed reports whether id carries a processed status.
func (s *Store) IsProcessed(ctx context.Context, id int64) (bool, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx, s.stmts.Checkpoints.IsProcessed, pendingRetry, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("check checkpoint %d: %w", id, err)
	}
	return exists, nil
}

// MarkProcessed inserts or overwrites the ledger entry for id.
func (s *Store) MarkProcessed(ctx context.Context, id int64, status store.CheckpointStatus) error {
	if _, err := s.pool.Exec(ctx, s.stmts.Checkpoints.Mark, id, string(status)); err != nil {
		return fmt.Errorf("mark checkpoint %d as %s: %w", id, status, err)
	}
	return nil
}

// ProcessedCount returns the number of processed ledger entries.
func (s *Store) ProcessedCount(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, s.stmts.Checkpoints.Count, pendingRetry).Scan(&n); err != nil {
		return 0, fmt.Errorf("count checkpoints: %w", err)
	}
	return n, nil
}

// ProcessedIDs loads every processed id.
func (s *Store) ProcessedIDs(ctx context.Context) (map[int64]struct{}, error) {
	rows, err := s.pool.Query(ctx, s.stmts.Checkpoints.AllProcessed, pendingRetry)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	ids := make(map[int64]struct{})
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan checkpoint row: %w", err)
		}
		ids[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checkpoints: %w", err)
	}
	return ids, nil
}

// ClearCheckpoints deletes ledger entries with status, or all of them when
// status is empty.
func (s *Store) ClearCheckpoints(ctx context.Context, status store.CheckpointStatus) (int64, error) {
	var (
		sql  = s.stmts.Checkpoints.Clear
		args []any
	)
	if status != "" {
		sql = s.stmts.Checkpoints.ClearStatus
		args = append(args, string(status))
	}
	tag, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("clear checkpoints: %w", err)
	}
	return tag.RowsAffected(), nil
}

// AddPendingLink records that dependentID references baseID.
func (s *Store) AddPendingLink(ctx context.Context, dependentID, baseID int64) error {
	if _, err := s.pool.Exec(ctx, s.stmts.CrossRefs.Add, dependentID, baseID); err != nil {
		return fmt.Errorf("add pending link %d -> %d: %w", dependentID, baseID, err)
	}
	return nil
}

// ResolvePendingLinks backfills the base-game reference of every pending
// link whose target now exists and deletes those rows in one transaction.
func (s *Store) ResolvePendingLinks(ctx context.Context) (int64, error) {
	var resolved int64
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, s.stmts.CrossRefs.Resolve); err != nil {
			return fmt.Errorf("resolve pending links: %w", err)
		}
		tag, err := tx.Exec(ctx, s.stmts.CrossRefs.ClearResolved)
		if err != nil {
			return fmt.Errorf("clear resolved links: %w", err)
		}
		resolved = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, err
	}
	return resolved, nil
}

// PendingLinkCount returns the number of unresolved links.
func (s *Store) PendingLinkCount(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, s.stmts.CrossRefs.Count).Scan(&n); err != nil {
		return 0, fmt.Errorf("count pending links: %w", err)
	}
	return n, nil
}

// StartEpoch inserts a running epoch row.
func (s *Store) StartEpoch(ctx context.Context, e store.Epoch) error {
	if _, err := s.pool.Exec(ctx, s.stmts.Epochs.Start, e.ID, e.StartedAt, string(e.Status), e.Universe); err != nil {
		return fmt.Errorf("start epoch %s: %w", e.ID, err)
	}
	return nil
}

// FinishEpoch writes the final status and counters.
func (s *Store) FinishEpoch(ctx context.Context, e store.Epoch) error {
	_, err := s.pool.Exec(ctx, s.stmts.Epochs.Finish,
		e.ID,
		e.FinishedAt,
		string(e.Status),
		e.Universe,
		e.Considered,
		e.Succeeded,
		e.Unavailable,
		e.Skipped,
		e.Failed,
		e.Resolved,
	)
	if err != nil {
		return fmt.Errorf("finish epoch %s: %w", e.ID, err)
	}
	return nil
}

// LatestEpoch reads the most recently started epoch.
func (s *Store) LatestEpoch(ctx context.Context) (store.Epoch, error) {
	var (
		e      store.Epoch
		status string
	)
	err := s.pool.QueryRow(ctx, s.stmts.Epochs.Latest).Scan(
		&e.ID,
		&e.StartedAt,
		&e.FinishedAt,
		&status,
		&e.Universe,
		&e.Considered,
		&e.Succeeded,
		&e.Unavailable,
		&e.Skipped,
		&e.Failed,
		&e.Resolved,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.Epoch{}, store.ErrNotFound
	}
	if err != nil {
		return store.Epoch{}, fmt.Errorf("read latest epoch: %w", err)
	}
	e.Status = store.EpochStatus(status)
	return e, nil
}

// CreateTables creates every table in dependency order.
func (s *Store) CreateTables(ctx context.Context) error {
	order, err := s.tables.CreateOrder()
	if err != nil {
		return err
	}
	return s.inTx(ctx, func(tx pgx.Tx) error {
		for _, t := range order {
			if _, err := tx.Exec(ctx, t.Create); err != nil {
				return fmt.Errorf("create table %s: %w", t.Name, err)
			}
		}
		return nil
	})
}

// DropTables drops every table in reverse dependency order.
func (s *Store) DropTables(ctx context.Context) error {
	order, err := s.tables.DropOrder()
	if err != nil {
		return err
	}
	err = s.inTx(ctx, func(tx pgx.Tx) error {
		for _, t := range order {
			if _, err := tx.Exec(ctx, t.Drop()); err != nil {
				return fmt.Errorf("drop table %s: %w", t.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.resetLookups()
	return nil
}
