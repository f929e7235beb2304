package crawler

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/game-catalog-crawler/internal/catalog"
	"github.com/JakeFAU/game-catalog-crawler/internal/clock/system"
	"github.com/JakeFAU/game-catalog-crawler/internal/metrics"
	"github.com/JakeFAU/game-catalog-crawler/internal/normalize"
	"github.com/JakeFAU/game-catalog-crawler/internal/source/steamspy"
	"github.com/JakeFAU/game-catalog-crawler/internal/store"
)

// ErrEmptyUniverse is returned when neither the cache nor the catalog yields
// any item IDs.
var ErrEmptyUniverse = errors.New("item universe is empty")

const (
	phaseScraping       = "Scraping"
	statusFailed        = "failed"
	defaultSweepTimeout = 30 * time.Second
)

// Config holds the settings for a crawl epoch. It is decoupled from Viper so
// the orchestrator can be tested on its own.
type Config struct {
	// Delay is the pause after each successful item; half of it follows
	// every details request.
	Delay time.Duration
	// UseSecondary enables aggregator enrichment for games.
	UseSecondary bool
	// UseTimeToBeat enables completion-time enrichment for games.
	UseTimeToBeat bool
	// CrawlableTypes lists item types that are persisted; others are skipped.
	CrawlableTypes []string
	// PreFilter subtracts processed IDs before the progress display starts.
	// Without it processed IDs are skipped inside the loop instead.
	PreFilter bool
	// ShuffleSeed fixes the visit order; zero picks a random order.
	ShuffleSeed uint64
	// SweepTimeout bounds the deferred cross-reference sweep and epoch close.
	SweepTimeout time.Duration
}

// Deps are the collaborators of a Crawler. Store, Catalog and Universe are
// required.
type Deps struct {
	Store      store.Store
	Catalog    CatalogSource
	Aggregator AggregatorSource
	TimeToBeat TimeToBeatSource
	Universe   UniverseCache
	Clock      Clock
	Progress   Progress
	Metrics    *metrics.Collectors
	NewID      IDGenerator
}

// Summary reports the counters of one epoch.
type Summary struct {
	EpochID     uuid.UUID
	Status      store.EpochStatus
	Universe    int
	Remaining   int
	Considered  int
	Succeeded   int
	Unavailable int
	Skipped     int
	Failed      int
	Resolved    int64
	// Pending is the number of cross references still unresolved after the
	// sweep.
	Pending int64
}

// Crawler runs crawl epochs. A Crawler processes items strictly one at a time.
type Crawler struct {
	cfg       Config
	deps      Deps
	crawlable map[string]struct{}
	logger    *zap.Logger
}

// New validates deps and applies defaults.
func New(cfg Config, deps Deps, logger *zap.Logger) (*Crawler, error) {
	if deps.Store == nil {
		return nil, errors.New("crawler: store is required")
	}
	if deps.Catalog == nil {
		return nil, errors.New("crawler: catalog source is required")
	}
	if deps.Universe == nil {
		return nil, errors.New("crawler: universe cache is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Clock == nil {
		deps.Clock = system.New()
	}
	if deps.Progress == nil {
		deps.Progress = noopProgress{}
	}
	if deps.NewID == nil {
		deps.NewID = uuid.NewV7
	}
	if cfg.SweepTimeout <= 0 {
		cfg.SweepTimeout = defaultSweepTimeout
	}
	if len(cfg.CrawlableTypes) == 0 {
		cfg.CrawlableTypes = []string{string(catalog.TypeGame), string(catalog.TypeDLC)}
	}
	crawlable := make(map[string]struct{}, len(cfg.CrawlableTypes))
	for _, t := range cfg.CrawlableTypes {
		crawlable[t] = struct{}{}
	}
	return &Crawler{cfg: cfg, deps: deps, crawlable: crawlable, logger: logger}, nil
}

// Run drives one epoch to completion or interruption. Cancelling ctx stops
// the loop before the next item; the cross-reference sweep and the epoch
// ledger update still run. An interrupted epoch is not an error.
func (c *Crawler) Run(ctx context.Context) (Summary, error) {
	ids, err := c.deps.Universe.Resolve(ctx, c.deps.Catalog.AppList)
	if err != nil {
		return Summary{}, fmt.Errorf("resolve item universe: %w", err)
	}
	if len(ids) == 0 {
		return Summary{}, ErrEmptyUniverse
	}
	processed, err := c.deps.Store.ProcessedIDs(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("load checkpoint ledger: %w", err)
	}

	epochID, err := c.deps.NewID()
	if err != nil {
		return Summary{}, fmt.Errorf("generate epoch id: %w", err)
	}
	epoch := store.Epoch{
		ID:        epochID,
		StartedAt: c.deps.Clock.Now(),
		Status:    store.EpochRunning,
		Universe:  int64(len(ids)),
	}
	if err := c.deps.Store.StartEpoch(ctx, epoch); err != nil {
		return Summary{}, fmt.Errorf("start epoch: %w", err)
	}

	queue := c.candidates(ids, processed)
	summary := Summary{
		EpochID:   epochID,
		Universe:  len(ids),
		Remaining: len(queue),
	}
	c.logger.Info("epoch started",
		zap.String("epoch_id", epochID.String()),
		zap.Int("universe", len(ids)),
		zap.Int("processed", len(processed)),
		zap.Int("queued", len(queue)),
	)
	c.deps.Metrics.StartEpoch(len(queue))
	c.deps.Progress.Start(phaseScraping, len(queue))

	visited, loopErr := c.loop(ctx, queue, processed, &summary)
	c.finish(ctx, &epoch, &summary, loopErr)
	c.deps.Progress.Finish(visited, summary.Succeeded)

	if summary.Status == store.EpochFailed {
		return summary, loopErr
	}
	return summary, nil
}

// candidates drops duplicate IDs, subtracts processed ones when pre-filtering
// and shuffles the rest.
func (c *Crawler) candidates(ids []int64, processed map[int64]struct{}) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	queue := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if c.cfg.PreFilter {
			if _, ok := processed[id]; ok {
				continue
			}
		}
		queue = append(queue, id)
	}
	swap := func(i, j int) { queue[i], queue[j] = queue[j], queue[i] }
	if c.cfg.ShuffleSeed != 0 {
		rand.New(rand.NewPCG(c.cfg.ShuffleSeed, c.cfg.ShuffleSeed)).Shuffle(len(queue), swap)
	} else {
		rand.Shuffle(len(queue), swap)
	}
	return queue
}

// loop visits the queue and returns how many IDs it got through. The error is
// ctx.Err() on interruption, or non-nil when the store became unreachable.
func (c *Crawler) loop(ctx context.Context, queue []int64, processed map[int64]struct{}, summary *Summary) (int, error) {
	for i, id := range queue {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		if !c.cfg.PreFilter {
			if _, ok := processed[id]; ok {
				c.deps.Progress.Update(i+1, summary.Succeeded)
				continue
			}
		}

		started := c.deps.Clock.Now()
		status, err := c.processItem(ctx, id)
		if err != nil && ctx.Err() != nil {
			c.logger.Info("item interrupted", zap.Int64("item_id", id))
			return i, ctx.Err()
		}
		if err != nil {
			summary.Considered++
			summary.Failed++
			c.deps.Metrics.ObserveItem(statusFailed, c.deps.Clock.Now().Sub(started))
			if abort := c.recordFailure(ctx, id, err); abort != nil {
				return i + 1, abort
			}
			c.deps.Progress.Update(i+1, summary.Succeeded)
			continue
		}
		if status != "" {
			summary.Considered++
			switch {
			case status == store.StatusSuccess:
				summary.Succeeded++
			case status == store.StatusUnavailable:
				summary.Unavailable++
			case status.IsSkipped():
				summary.Skipped++
			}
			c.deps.Metrics.ObserveItem(string(status), c.deps.Clock.Now().Sub(started))
		}
		c.deps.Progress.Update(i+1, summary.Succeeded)
	}
	return len(queue), nil
}

// recordFailure leaves the item for the next epoch and checks that the store
// is still reachable. A non-nil return aborts the loop.
func (c *Crawler) recordFailure(ctx context.Context, id int64, cause error) error {
	c.logger.Error("item failed", zap.Int64("item_id", id), zap.Error(cause))
	if err := c.deps.Store.MarkProcessed(ctx, id, store.StatusPendingRetry); err != nil {
		c.logger.Warn("mark pending retry failed", zap.Int64("item_id", id), zap.Error(err))
	}
	if err := c.deps.Store.Ping(ctx); err != nil {
		c.logger.Error("store unreachable; aborting epoch", zap.Error(err))
		return fmt.Errorf("store unreachable after item %d: %w", id, err)
	}
	return nil
}

// processItem runs the per-item timeline. A returned status is the ledger
// entry written for the item; an empty status means it was already processed.
func (c *Crawler) processItem(ctx context.Context, id int64) (status store.CheckpointStatus, err error) {
	defer func() {
		if r := recover(); r != nil {
			status, err = "", fmt.Errorf("panic processing item %d: %v", id, r)
		}
	}()

	done, err := c.deps.Store.IsProcessed(ctx, id)
	if err != nil {
		return "", fmt.Errorf("check checkpoint: %w", err)
	}
	if done {
		return "", nil
	}

	details, ok := c.deps.Catalog.AppDetails(ctx, id)
	c.deps.Clock.Pause(ctx, c.cfg.Delay/2)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !ok {
		return c.mark(ctx, id, store.StatusUnavailable)
	}

	itemType := details.Type()
	if itemType == "" {
		itemType = string(catalog.TypeUnknown)
	}
	if _, ok := c.crawlable[itemType]; !ok {
		return c.mark(ctx, id, store.SkippedType(itemType))
	}

	var secondary *steamspy.AppDetails
	if itemType == string(catalog.TypeGame) && c.cfg.UseSecondary && c.deps.Aggregator != nil {
		if s, ok := c.deps.Aggregator.AppDetails(ctx, id); ok {
			secondary = &s
		}
	}

	rec := normalize.Item(details, secondary)
	if err := c.deps.Store.UpsertItem(ctx, rec); err != nil {
		return "", fmt.Errorf("upsert item: %w", err)
	}
	if rec.Type == catalog.TypeDLC && rec.BaseGameID != nil {
		if err := c.deps.Store.AddPendingLink(ctx, id, *rec.BaseGameID); err != nil {
			return "", fmt.Errorf("add pending link: %w", err)
		}
	}
	if err := c.enrich(ctx, rec); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	status, err = c.mark(ctx, id, store.StatusSuccess)
	if err != nil {
		return "", err
	}
	c.deps.Clock.Pause(ctx, c.cfg.Delay)
	return status, nil
}

// enrich persists achievements, reviews and completion estimates for a stored
// item. Absent upstream data is not an error.
func (c *Crawler) enrich(ctx context.Context, rec catalog.Record) error {
	if rec.Type == catalog.TypeGame && rec.AchievementsCount > 0 {
		if a, ok := c.deps.Catalog.Achievements(ctx, rec.ID); ok {
			if err := c.deps.Store.UpsertAchievements(ctx, rec.ID, normalize.Achievements(rec.ID, a)); err != nil {
				return fmt.Errorf("upsert achievements: %w", err)
			}
		}
	}
	if page, ok := c.deps.Catalog.Reviews(ctx, rec.ID); ok {
		if err := c.deps.Store.UpsertReviews(ctx, rec.ID, normalize.Reviews(rec.ID, page)); err != nil {
			return fmt.Errorf("upsert reviews: %w", err)
		}
	}
	if rec.Type == catalog.TypeGame && rec.Name != "" && c.cfg.UseTimeToBeat &&
		c.deps.TimeToBeat != nil && c.deps.TimeToBeat.Enabled() {
		if ttb, ok := c.deps.TimeToBeat.TimeToBeat(ctx, rec.Name); ok {
			if err := c.deps.Store.SetTimeToBeat(ctx, rec.ID, ttb); err != nil {
				return fmt.Errorf("set time to beat: %w", err)
			}
		}
	}
	return nil
}

func (c *Crawler) mark(ctx context.Context, id int64, status store.CheckpointStatus) (store.CheckpointStatus, error) {
	if err := c.deps.Store.MarkProcessed(ctx, id, status); err != nil {
		return "", fmt.Errorf("mark %s: %w", status, err)
	}
	return status, nil
}

// finish runs the deferred sweep and closes the epoch on a context that
// survives cancellation of ctx.
func (c *Crawler) finish(ctx context.Context, epoch *store.Epoch, summary *Summary, loopErr error) {
	finalCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.SweepTimeout)
	defer cancel()

	resolved, err := c.deps.Store.ResolvePendingLinks(finalCtx)
	if err != nil {
		c.logger.Error("resolve pending cross references", zap.Error(err))
	}
	summary.Resolved = resolved
	c.deps.Metrics.AddResolved(resolved)
	if pending, err := c.deps.Store.PendingLinkCount(finalCtx); err == nil {
		summary.Pending = pending
	}

	switch {
	case loopErr == nil:
		summary.Status = store.EpochCompleted
	case errors.Is(loopErr, context.Canceled) || errors.Is(loopErr, context.DeadlineExceeded):
		summary.Status = store.EpochInterrupted
	default:
		summary.Status = store.EpochFailed
	}

	finished := c.deps.Clock.Now()
	epoch.FinishedAt = &finished
	epoch.Status = summary.Status
	epoch.Considered = int64(summary.Considered)
	epoch.Succeeded = int64(summary.Succeeded)
	epoch.Unavailable = int64(summary.Unavailable)
	epoch.Skipped = int64(summary.Skipped)
	epoch.Failed = int64(summary.Failed)
	epoch.Resolved = summary.Resolved
	if err := c.deps.Store.FinishEpoch(finalCtx, *epoch); err != nil {
		c.logger.Error("finish epoch", zap.String("epoch_id", epoch.ID.String()), zap.Error(err))
	}

	c.logger.Info("epoch finished",
		zap.String("epoch_id", epoch.ID.String()),
		zap.String("status", string(summary.Status)),
		zap.Int("considered", summary.Considered),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("unavailable", summary.Unavailable),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
		zap.Int64("resolved", summary.Resolved),
		zap.Int64("pending", summary.Pending),
	)
}
