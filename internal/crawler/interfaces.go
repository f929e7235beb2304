package crawler

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/game-catalog-crawler/internal/catalog"
	"github.com/JakeFAU/game-catalog-crawler/internal/source/steam"
	"github.com/JakeFAU/game-catalog-crawler/internal/source/steamspy"
	"github.com/JakeFAU/game-catalog-crawler/internal/universe"
)

// CatalogSource is the primary catalog. Absent results are reported with false.
type CatalogSource interface {
	AppList(ctx context.Context) ([]int64, bool)
	AppDetails(ctx context.Context, id int64) (steam.AppDetails, bool)
	Reviews(ctx context.Context, id int64) (steam.ReviewPage, bool)
	Achievements(ctx context.Context, id int64) (steam.Achievements, bool)
}

// AggregatorSource supplies optional community statistics for games.
type AggregatorSource interface {
	AppDetails(ctx context.Context, id int64) (steamspy.AppDetails, bool)
}

// TimeToBeatSource supplies completion estimates by game name.
type TimeToBeatSource interface {
	Enabled() bool
	TimeToBeat(ctx context.Context, name string) (catalog.TimeToBeat, bool)
}

// UniverseCache returns the full item-ID universe, fetching it only when no
// cached copy exists.
type UniverseCache interface {
	Resolve(ctx context.Context, fetch universe.FetchFunc) ([]int64, error)
}

// Clock returns the current time and paces the loop.
type Clock interface {
	Now() time.Time
	// Pause waits for delay or until ctx is done.
	Pause(ctx context.Context, delay time.Duration)
}

// IDGenerator produces epoch identifiers.
type IDGenerator func() (uuid.UUID, error)

// Progress renders loop progress to the operator.
type Progress interface {
	Start(phase string, total int)
	Update(done, newItems int)
	Finish(done, newItems int)
}

type noopProgress struct{}

func (noopProgress) Start(string, int) {}
func (noopProgress) Update(int, int)   {}
func (noopProgress) Finish(int, int)   {}
