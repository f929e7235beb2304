//go:build integration
// +build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap/zaptest"

	"github.com/JakeFAU/game-catalog-crawler/internal/catalog"
	"github.com/JakeFAU/game-catalog-crawler/internal/schema"
	"github.com/JakeFAU/game-catalog-crawler/internal/store"
)

func setupStore(t *testing.T) (*Store, *pgxpool.Pool) {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:alpine",
		tcpostgres.WithDatabase("catalog"),
		tcpostgres.WithUsername("crawler"),
		tcpostgres.WithPassword("crawler"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	s, err := NewWithPool(pool, schema.Postgres(), zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(s.Close)

	require.NoError(t, s.CreateTables(ctx))
	require.NoError(t, s.CreateTables(ctx))
	return s, pool
}

func count(t *testing.T, pool *pgxpool.Pool, table string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, pool.QueryRow(context.Background(), "SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func TestIntegrationUpsertIsIdempotent(t *testing.T) {
	s, pool := setupStore(t)
	ctx := context.Background()

	release := time.Date(2004, time.November, 16, 0, 0, 0, 0, time.UTC)
	rec := catalog.Record{
		ID:          220,
		Type:        catalog.TypeGame,
		Name:        "Half-Life 2",
		ReleaseDate: &release,
		Price:       9.99,
		Developers:  []string{"Valve"},
		Publishers:  []string{"Valve"},
		Languages:   []catalog.Language{{Name: "English", HasAudio: true}},
		Tags:        []catalog.Tag{{Name: "FPS", Value: 900}},
	}
	require.NoError(t, s.UpsertItem(ctx, rec))
	rec.Tags[0].Value = 950
	require.NoError(t, s.UpsertItem(ctx, rec))

	require.Equal(t, int64(1), count(t, pool, "items"))
	require.Equal(t, int64(1), count(t, pool, "developers"))
	require.Equal(t, int64(1), count(t, pool, "item_developers"))
	require.Equal(t, int64(1), count(t, pool, "item_tags"))

	var votes int
	require.NoError(t, pool.QueryRow(ctx, "SELECT tag_value FROM item_tags WHERE item_id = 220").Scan(&votes))
	require.Equal(t, 950, votes)
}

func TestIntegrationSharedLookupsAreDeduplicated(t *testing.T) {
	s, pool := setupStore(t)
	ctx := context.Background()

	tags := make([]catalog.Tag, 10)
	for i := range tags {
		tags[i] = catalog.Tag{Name: string(rune('A' + i)), Value: i}
	}
	for id := int64(1); id <= 50; id++ {
		require.NoError(t, s.UpsertItem(ctx, catalog.Record{ID: id, Type: catalog.TypeGame, Tags: tags}))
	}
	require.Equal(t, int64(10), count(t, pool, "tags"))
	require.Equal(t, int64(500), count(t, pool, "item_tags"))
}

func TestIntegrationDeferredCrossReference(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	base := int64(220)
	dlc := catalog.Record{ID: 380, Type: catalog.TypeDLC, Name: "Episode One", BaseGameID: &base}
	require.NoError(t, s.UpsertItem(ctx, dlc))
	require.NoError(t, s.AddPendingLink(ctx, 380, 220))

	resolved, err := s.ResolvePendingLinks(ctx)
	require.NoError(t, err)
	require.Zero(t, resolved)

	require.NoError(t, s.UpsertItem(ctx, catalog.Record{ID: 220, Type: catalog.TypeGame, Name: "Half-Life 2"}))
	resolved, err = s.ResolvePendingLinks(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), resolved)

	require.NoError(t, s.UpsertItem(ctx, dlc))
	got, err := s.BaseGameID(ctx, 380)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, base, *got)

	pending, err := s.PendingLinkCount(ctx)
	require.NoError(t, err)
	require.Zero(t, pending)
}

func TestIntegrationPendingRetryIsNotProcessed(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.MarkProcessed(ctx, 1, store.StatusSuccess))
	require.NoError(t, s.MarkProcessed(ctx, 2, store.StatusPendingRetry))
	require.NoError(t, s.MarkProcessed(ctx, 3, store.SkippedType("video")))

	ids, err := s.ProcessedIDs(ctx)
	require.NoError(t, err)
	require.Equal(t, map[int64]struct{}{1: {}, 3: {}}, ids)

	done, err := s.IsProcessed(ctx, 2)
	require.NoError(t, err)
	require.False(t, done)

	require.NoError(t, s.MarkProcessed(ctx, 2, store.StatusSuccess))
	n, err := s.ProcessedCount(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(3), n)
}
