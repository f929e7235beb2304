package cmd

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/JakeFAU/game-catalog-crawler/internal/app"
	"github.com/JakeFAU/game-catalog-crawler/internal/config"
	"github.com/JakeFAU/game-catalog-crawler/internal/crawler"
	"github.com/JakeFAU/game-catalog-crawler/internal/source/steam"
	"github.com/JakeFAU/game-catalog-crawler/internal/storage/memory"
	"github.com/JakeFAU/game-catalog-crawler/internal/store"
	"github.com/JakeFAU/game-catalog-crawler/internal/universe"
)

type stubCatalog struct{ details map[int64]string }

func (s stubCatalog) AppList(context.Context) ([]int64, bool) {
	ids := make([]int64, 0, len(s.details)+1)
	for id := range s.details {
		ids = append(ids, id)
	}
	return append(ids, 404), true
}

func (s stubCatalog) AppDetails(_ context.Context, id int64) (steam.AppDetails, bool) {
	raw, ok := s.details[id]
	if !ok {
		return steam.AppDetails{}, false
	}
	return steam.AppDetails{ID: id, Data: gjson.Parse(raw)}, true
}

func (stubCatalog) Reviews(context.Context, int64) (steam.ReviewPage, bool) {
	return steam.ReviewPage{}, false
}

func (stubCatalog) Achievements(context.Context, int64) (steam.Achievements, bool) {
	return steam.Achievements{}, false
}

type fakeApp struct {
	db      *memory.CatalogStore
	opts    app.Options
	crawl   app.CrawlOptions
	closed  bool
	catalog stubCatalog
}

func (f *fakeApp) Logger() *zap.Logger { return zap.NewNop() }
func (f *fakeApp) Store() store.Store  { return f.db }
func (f *fakeApp) Close()              { f.closed = true }

func (f *fakeApp) NewCrawler(_ context.Context, opts app.CrawlOptions) (*crawler.Crawler, error) {
	f.crawl = opts
	return crawler.New(crawler.Config{PreFilter: opts.PreFilter}, crawler.Deps{
		Store:    f.db,
		Catalog:  f.catalog,
		Universe: universe.New(memory.NewBlobStore(), "applist.json", nil),
		Progress: opts.Progress,
	}, nil)
}

// withFakeApp swaps the app factory and the confirmation prompt for the test.
func withFakeApp(t *testing.T, answer bool) *fakeApp {
	t.Helper()
	t.Setenv("CRAWLER_DB_DRIVER", "memory")
	t.Setenv("CRAWLER_LOGGING_DEVELOPMENT", "false")

	fake := &fakeApp{db: memory.NewCatalogStore()}
	prevApp, prevConfirm := newApp, confirmPrompt
	newApp = func(_ context.Context, _ config.Config, _ *zap.Logger, opts app.Options) (App, error) {
		fake.opts = opts
		return fake, nil
	}
	confirmPrompt = func(*cobra.Command, string, string) (bool, error) { return answer, nil }
	t.Cleanup(func() { newApp, confirmPrompt = prevApp, prevConfirm })
	return fake
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestTablesDropWithYes(t *testing.T) {
	fake := withFakeApp(t, false)
	require.NoError(t, fake.db.MarkProcessed(context.Background(), 1, store.StatusSuccess))

	out, err := execute(t, "tables", "drop", "--yes")
	require.NoError(t, err)
	require.Contains(t, out, "tables dropped")
	require.Zero(t, fake.db.Counts().Checkpoints)
	require.True(t, fake.closed)
}

func TestTablesDropDeclined(t *testing.T) {
	fake := withFakeApp(t, false)
	require.NoError(t, fake.db.MarkProcessed(context.Background(), 1, store.StatusSuccess))

	out, err := execute(t, "tables", "drop")
	require.NoError(t, err)
	require.Contains(t, out, "aborted")
	require.Equal(t, 1, fake.db.Counts().Checkpoints)
}

func TestTablesCreate(t *testing.T) {
	withFakeApp(t, false)

	out, err := execute(t, "tables", "create")
	require.NoError(t, err)
	require.Contains(t, out, "tables created")
}

func TestLedgerClearByStatus(t *testing.T) {
	fake := withFakeApp(t, false)
	ctx := context.Background()
	require.NoError(t, fake.db.MarkProcessed(ctx, 1, store.StatusUnavailable))
	require.NoError(t, fake.db.MarkProcessed(ctx, 2, store.StatusSuccess))

	out, err := execute(t, "ledger", "clear", "--status", "unavailable")
	require.NoError(t, err)
	require.Contains(t, out, "cleared 1 checkpoint entries")

	_, ok := fake.db.Checkpoint(1)
	require.False(t, ok)
	_, ok = fake.db.Checkpoint(2)
	require.True(t, ok)
}

func TestLedgerStatus(t *testing.T) {
	fake := withFakeApp(t, false)
	require.NoError(t, fake.db.MarkProcessed(context.Background(), 1, store.StatusSuccess))

	out, err := execute(t, "ledger", "status")
	require.NoError(t, err)
	require.Contains(t, out, "processed: 1")
	require.Contains(t, out, "pending cross references: 0")
	require.NotContains(t, out, "latest epoch")
}

func TestLedgerStatusAfterCrawl(t *testing.T) {
	fake := withFakeApp(t, false)
	fake.catalog = stubCatalog{details: map[int64]string{10: `{"type":"game","name":"Portal"}`}}

	_, err := execute(t, "crawl", "--dry-run")
	require.NoError(t, err)

	out, err := execute(t, "ledger", "status")
	require.NoError(t, err)
	require.Contains(t, out, "processed: 2")
	require.Contains(t, out, "completed (succeeded 1, unavailable 1, skipped 0, failed 0)")
}

func TestCrawlDryRun(t *testing.T) {
	fake := withFakeApp(t, false)
	fake.catalog = stubCatalog{details: map[int64]string{
		10: `{"type":"game","name":"Portal","developers":["Valve"]}`,
	}}

	out, err := execute(t, "crawl", "--dry-run", "--pre-filter")
	require.NoError(t, err)
	require.True(t, fake.opts.DryRun)
	require.True(t, fake.crawl.PreFilter)
	require.Contains(t, out, "New This Session: 1")

	status, ok := fake.db.Checkpoint(10)
	require.True(t, ok)
	require.Equal(t, store.StatusSuccess, status)
	status, ok = fake.db.Checkpoint(404)
	require.True(t, ok)
	require.Equal(t, store.StatusUnavailable, status)
}

func TestCrawlDropTablesDeclinedDoesNotCrawl(t *testing.T) {
	fake := withFakeApp(t, false)
	fake.catalog = stubCatalog{details: map[int64]string{10: `{"type":"game","name":"Portal"}`}}
	require.NoError(t, fake.db.MarkProcessed(context.Background(), 1, store.StatusSuccess))

	_, err := execute(t, "crawl", "--drop-tables")
	require.NoError(t, err)
	require.Equal(t, 1, fake.db.Counts().Checkpoints)
	require.Zero(t, fake.db.Counts().Items)
}

func TestCrawlDropTablesConfirmed(t *testing.T) {
	fake := withFakeApp(t, true)
	fake.catalog = stubCatalog{details: map[int64]string{10: `{"type":"game","name":"Portal"}`}}
	require.NoError(t, fake.db.MarkProcessed(context.Background(), 1, store.StatusSuccess))

	_, err := execute(t, "crawl", "--drop-tables")
	require.NoError(t, err)
	_, ok := fake.db.Checkpoint(1)
	require.False(t, ok)
	require.Equal(t, 1, fake.db.Counts().Items)
}

func TestMissingConfigFileFails(t *testing.T) {
	withFakeApp(t, false)

	_, err := execute(t, "--config", filepath.Join(t.TempDir(), "absent.yaml"), "tables", "create")
	require.ErrorContains(t, err, "load config")
}
