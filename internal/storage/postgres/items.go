package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/game-catalog-crawler/internal/catalog"
	"github.com/JakeFAU/game-catalog-crawler/internal/store"
)

type stagedIDs map[catalog.LookupKind]map[string]int64

func (st stagedIDs) put(kind catalog.LookupKind, name string, id int64) {
	if st[kind] == nil {
		st[kind] = make(map[string]int64)
	}
	st[kind][name] = id
}

// UpsertItem writes the item and all of its relation members in one
// transaction. A relation member that fails is rolled back to its own
// savepoint and skipped; the rest of the item still commits.
func (s *Store) UpsertItem(ctx context.Context, rec catalog.Record) error {
	staged := stagedIDs{}
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, s.stmts.Items.Upsert, itemArgs(rec)...); err != nil {
			return fmt.Errorf("upsert item %d: %w", rec.ID, err)
		}
		for _, link := range rec.Links() {
			if _, err := tx.Exec(ctx, savepoint); err != nil {
				return fmt.Errorf("savepoint: %w", err)
			}
			if err := s.link(ctx, tx, rec.ID, link, staged); err != nil {
				if _, rbErr := tx.Exec(ctx, rollbackSavepoint); rbErr != nil {
					return fmt.Errorf("rollback to savepoint: %w", rbErr)
				}
				s.logger.Warn("relation member skipped",
					zap.Int64("item_id", rec.ID),
					zap.String("kind", string(link.Kind)),
					zap.String("name", link.Name),
					zap.Error(err),
				)
				continue
			}
			if _, err := tx.Exec(ctx, releaseSavepoint); err != nil {
				return fmt.Errorf("release savepoint: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.mergeLookups(staged)
	return nil
}

func (s *Store) link(ctx context.Context, tx pgx.Tx, itemID int64, link catalog.Link, staged stagedIDs) error {
	stmts, ok := s.stmts.Lookup(link.Kind)
	if !ok {
		return fmt.Errorf("no statements for lookup kind %q", link.Kind)
	}
	id, known := staged[link.Kind][link.Name]
	if !known {
		id, known = s.cachedLookup(link.Kind, link.Name)
	}
	if !known {
		if _, err := tx.Exec(ctx, stmts.InsertIgnore, link.Name); err != nil {
			return fmt.Errorf("insert %s: %w", stmts.Table, err)
		}
		if err := tx.QueryRow(ctx, stmts.SelectID, link.Name).Scan(&id); err != nil {
			return fmt.Errorf("select %s id: %w", stmts.Table, err)
		}
	}
	args := append([]any{itemID, id}, link.Payload()...)
	if _, err := tx.Exec(ctx, stmts.Link, args...); err != nil {
		return fmt.Errorf("link %s: %w", stmts.Junction, err)
	}
	if !known {
		staged.put(link.Kind, link.Name, id)
	}
	return nil
}

func (s *Store) cachedLookup(kind catalog.LookupKind, name string) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.lookups[kind][name]
	return id, ok
}

func (s *Store) mergeLookups(staged stagedIDs) {
	if len(staged) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for kind, names := range staged {
		if s.lookups[kind] == nil {
			s.lookups[kind] = make(map[string]int64, len(names))
		}
		for name, id := range names {
			s.lookups[kind][name] = id
		}
	}
}

func (s *Store) resetLookups() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups = make(map[catalog.LookupKind]map[string]int64)
}

// itemArgs follows schema.ItemColumns.
func itemArgs(r catalog.Record) []any {
	return []any{
		r.ID,
		string(r.Type),
		r.Name,
		r.ReleaseDate,
		r.ComingSoon,
		r.Price,
		r.Recommendations,
		r.PositiveReviews,
		r.NegativeReviews,
		r.PeakCCU,
		r.MetacriticScore,
		r.MetacriticURL,
		r.RequiredAge,
		r.AchievementsCount,
		r.Windows,
		r.Mac,
		r.Linux,
		r.HeaderImage,
		r.Website,
		r.SupportURL,
		r.SupportEmail,
		r.EstimatedOwners,
		r.UserScore,
		r.ScoreRank,
		r.AveragePlaytime,
		r.MedianPlaytime,
		r.AboutTheGame,
		r.DetailedDescription,
		r.ShortDescription,
		r.ReviewsSummary,
	}
}

// UpsertReviews writes reviews for an already persisted item.
func (s *Store) UpsertReviews(ctx context.Context, itemID int64, reviews []catalog.Review) error {
	if len(reviews) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx pgx.Tx) error {
		for _, r := range reviews {
			_, err := tx.Exec(ctx, s.stmts.Reviews.Upsert,
				r.ID, itemID, r.AuthorID, r.Language, r.Body,
				r.Recommended, r.VotesUp, r.VotesFunny, nullableTime(r.CreatedAt),
			)
			if err != nil {
				return fmt.Errorf("upsert review %s for item %d: %w", r.ID, itemID, err)
			}
		}
		return nil
	})
}

// UpsertAchievements writes achievements for an already persisted item.
func (s *Store) UpsertAchievements(ctx context.Context, itemID int64, achievements []catalog.Achievement) error {
	if len(achievements) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx pgx.Tx) error {
		for _, a := range achievements {
			_, err := tx.Exec(ctx, s.stmts.Achievements.Upsert,
				itemID, a.APIName, a.DisplayName, a.Description, a.CompletionRate,
			)
			if err != nil {
				return fmt.Errorf("upsert achievement %s for item %d: %w", a.APIName, itemID, err)
			}
		}
		return nil
	})
}

// SetTimeToBeat stores completion estimates. Unknown values keep whatever
// was stored before.
func (s *Store) SetTimeToBeat(ctx context.Context, itemID int64, ttb catalog.TimeToBeat) error {
	if ttb.Empty() {
		return nil
	}
	if _, err := s.pool.Exec(ctx, s.stmts.Items.SetTimeToBeat,
		itemID, ttb.Hastily, ttb.Normally, ttb.Completely); err != nil {
		return fmt.Errorf("set time to beat for item %d: %w", itemID, err)
	}
	return nil
}

// BaseGameID returns the resolved base game of a dependent item, or nil.
func (s *Store) BaseGameID(ctx context.Context, itemID int64) (*int64, error) {
	var base *int64
	err := s.pool.QueryRow(ctx, s.stmts.Items.BaseGameID, itemID).Scan(&base)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("select base game of %d: %w", itemID, err)
	}
	return base, nil
}
