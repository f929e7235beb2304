package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/JakeFAU/game-catalog-crawler/internal/catalog"
	"github.com/JakeFAU/game-catalog-crawler/internal/store"
)

type linkKey struct {
	itemID   int64
	lookupID int64
}

type crossRef struct {
	dependent int64
	base      int64
}

type achievementKey struct {
	itemID  int64
	apiName string
}

// Counts summarizes what the store holds.
type Counts struct {
	Items        int
	Lookups      map[catalog.LookupKind]int
	Links        map[catalog.LookupKind]int
	Reviews      int
	Achievements int
	Pending      int
	Checkpoints  int
}

// CatalogStore is an in-memory store.Store for development, dry runs and
// tests. It mirrors the relational semantics of the Postgres store.
type CatalogStore struct {
	mu sync.RWMutex

	items        map[int64]catalog.Record
	baseGames    map[int64]int64
	timeToBeat   map[int64]catalog.TimeToBeat
	lookups      map[catalog.LookupKind]map[string]int64
	nextLookupID int64
	links        map[catalog.LookupKind]map[linkKey]catalog.Link
	reviews      map[string]catalog.Review
	achievements map[achievementKey]catalog.Achievement
	checkpoints  map[int64]store.CheckpointStatus
	pending      map[crossRef]struct{}
	epochs       map[uuid.UUID]store.Epoch
	pingErr      error
}

var _ store.Store = (*CatalogStore)(nil)

// NewCatalogStore constructs an empty CatalogStore.
func NewCatalogStore() *CatalogStore {
	s := &CatalogStore{}
	s.reset()
	return s
}

func (s *CatalogStore) reset() {
	s.items = make(map[int64]catalog.Record)
	s.baseGames = make(map[int64]int64)
	s.timeToBeat = make(map[int64]catalog.TimeToBeat)
	s.lookups = make(map[catalog.LookupKind]map[string]int64)
	s.links = make(map[catalog.LookupKind]map[linkKey]catalog.Link)
	s.reviews = make(map[string]catalog.Review)
	s.achievements = make(map[achievementKey]catalog.Achievement)
	s.checkpoints = make(map[int64]store.CheckpointStatus)
	s.pending = make(map[crossRef]struct{})
	s.epochs = make(map[uuid.UUID]store.Epoch)
	s.nextLookupID = 0
}

// SetPingError makes Ping fail with err until it is reset with nil.
func (s *CatalogStore) SetPingError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pingErr = err
}

// Ping reports the configured ping error.
func (s *CatalogStore) Ping(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pingErr
}

// Close is a no-op.
func (s *CatalogStore) Close() {}

// UpsertItem stores the item and its relations. The base-game reference is
// left to the cross-reference sweep.
func (s *CatalogStore) UpsertItem(ctx context.Context, rec catalog.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := rec
	stored.BaseGameID = nil
	stored.Developers, stored.Publishers, stored.Categories, stored.Genres = nil, nil, nil, nil
	stored.Languages, stored.Tags = nil, nil
	s.items[rec.ID] = stored

	for _, link := range rec.Links() {
		names := s.lookups[link.Kind]
		if names == nil {
			names = make(map[string]int64)
			s.lookups[link.Kind] = names
		}
		id, ok := names[link.Name]
		if !ok {
			s.nextLookupID++
			id = s.nextLookupID
			names[link.Name] = id
		}
		if s.links[link.Kind] == nil {
			s.links[link.Kind] = make(map[linkKey]catalog.Link)
		}
		s.links[link.Kind][linkKey{itemID: rec.ID, lookupID: id}] = link
	}
	return nil
}

// UpsertReviews stores reviews keyed by review id.
func (s *CatalogStore) UpsertReviews(_ context.Context, itemID int64, reviews []catalog.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[itemID]; !ok && len(reviews) > 0 {
		return store.ErrNotFound
	}
	for _, r := range reviews {
		r.ItemID = itemID
		s.reviews[r.ID] = r
	}
	return nil
}

// UpsertAchievements stores achievements keyed by (item, api name).
func (s *CatalogStore) UpsertAchievements(_ context.Context, itemID int64, achievements []catalog.Achievement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[itemID]; !ok && len(achievements) > 0 {
		return store.ErrNotFound
	}
	for _, a := range achievements {
		a.ItemID = itemID
		s.achievements[achievementKey{itemID: itemID, apiName: a.APIName}] = a
	}
	return nil
}

// SetTimeToBeat merges estimates, keeping stored values for unknown fields.
func (s *CatalogStore) SetTimeToBeat(_ context.Context, itemID int64, ttb catalog.TimeToBeat) error {
	if ttb.Empty() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[itemID]; !ok {
		return nil
	}
	cur := s.timeToBeat[itemID]
	if ttb.Hastily != nil {
		cur.Hastily = ttb.Hastily
	}
	if ttb.Normally != nil {
		cur.Normally = ttb.Normally
	}
	if ttb.Completely != nil {
		cur.Completely = ttb.Completely
	}
	s.timeToBeat[itemID] = cur
	return nil
}

// IsProcessed reports whether id carries a processed status.
func (s *CatalogStore) IsProcessed(_ context.Context, id int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.checkpoints[id].Processed(), nil
}

// MarkProcessed inserts or overwrites the ledger entry for id.
func (s *CatalogStore) MarkProcessed(_ context.Context, id int64, status store.CheckpointStatus) error {
	if status == "" {
		return errors.New("checkpoint status is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoints[id] = status
	return nil
}

// ProcessedCount returns the number of processed ledger entries.
func (s *CatalogStore) ProcessedCount(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, status := range s.checkpoints {
		if status.Processed() {
			n++
		}
	}
	return n, nil
}

// ProcessedIDs returns every processed id.
func (s *CatalogStore) ProcessedIDs(_ context.Context) (map[int64]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make(map[int64]struct{}, len(s.checkpoints))
	for id, status := range s.checkpoints {
		if status.Processed() {
			ids[id] = struct{}{}
		}
	}
	return ids, nil
}

// ClearCheckpoints deletes entries with status, or all when status is empty.
func (s *CatalogStore) ClearCheckpoints(_ context.Context, status store.CheckpointStatus) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, cur := range s.checkpoints {
		if status == "" || cur == status {
			delete(s.checkpoints, id)
			n++
		}
	}
	return n, nil
}

// Checkpoint returns the raw ledger entry for id.
func (s *CatalogStore) Checkpoint(id int64) (store.CheckpointStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	status, ok := s.checkpoints[id]
	return status, ok
}

// AddPendingLink records that dependentID references baseID.
func (s *CatalogStore) AddPendingLink(_ context.Context, dependentID, baseID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[dependentID]; !ok {
		return store.ErrNotFound
	}
	s.pending[crossRef{dependent: dependentID, base: baseID}] = struct{}{}
	return nil
}

// ResolvePendingLinks backfills links whose base item exists.
func (s *CatalogStore) ResolvePendingLinks(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var resolved int64
	for ref := range s.pending {
		if _, ok := s.items[ref.base]; !ok {
			continue
		}
		if _, ok := s.items[ref.dependent]; ok {
			s.baseGames[ref.dependent] = ref.base
		}
		delete(s.pending, ref)
		resolved++
	}
	return resolved, nil
}

// PendingLinkCount returns the number of unresolved links.
func (s *CatalogStore) PendingLinkCount(context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.pending)), nil
}

// StartEpoch records a running epoch.
func (s *CatalogStore) StartEpoch(_ context.Context, e store.Epoch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epochs[e.ID] = e
	return nil
}

// FinishEpoch overwrites the epoch with its final state.
func (s *CatalogStore) FinishEpoch(_ context.Context, e store.Epoch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.epochs[e.ID]; !ok {
		return store.ErrNotFound
	}
	s.epochs[e.ID] = e
	return nil
}

// LatestEpoch returns the epoch with the newest start time.
func (s *CatalogStore) LatestEpoch(context.Context) (store.Epoch, error) {
	epochs := s.Epochs()
	if len(epochs) == 0 {
		return store.Epoch{}, store.ErrNotFound
	}
	return epochs[len(epochs)-1], nil
}

// Epochs returns every epoch ordered by start time.
func (s *CatalogStore) Epochs() []store.Epoch {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.Epoch, 0, len(s.epochs))
	for _, e := range s.epochs {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

// CreateTables is a no-op; the maps always exist.
func (s *CatalogStore) CreateTables(context.Context) error { return nil }

// DropTables discards everything.
func (s *CatalogStore) DropTables(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
	return nil
}

// Item returns the stored item with its relations and resolved base game.
func (s *CatalogStore) Item(id int64) (catalog.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.items[id]
	if !ok {
		return catalog.Record{}, false
	}
	if base, ok := s.baseGames[id]; ok {
		rec.BaseGameID = &base
	}
	for _, kind := range catalog.LookupKinds() {
		keys := make([]linkKey, 0)
		for k := range s.links[kind] {
			if k.itemID == id {
				keys = append(keys, k)
			}
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i].lookupID < keys[j].lookupID })
		for _, k := range keys {
			link := s.links[kind][k]
			switch kind {
			case catalog.KindDeveloper:
				rec.Developers = append(rec.Developers, link.Name)
			case catalog.KindPublisher:
				rec.Publishers = append(rec.Publishers, link.Name)
			case catalog.KindCategory:
				rec.Categories = append(rec.Categories, link.Name)
			case catalog.KindGenre:
				rec.Genres = append(rec.Genres, link.Name)
			case catalog.KindLanguage:
				rec.Languages = append(rec.Languages, catalog.Language{Name: link.Name, HasAudio: link.HasAudio})
			case catalog.KindTag:
				rec.Tags = append(rec.Tags, catalog.Tag{Name: link.Name, Value: link.Value})
			}
		}
	}
	return rec, true
}

// TimeToBeat returns the stored estimates for id.
func (s *CatalogStore) TimeToBeat(id int64) catalog.TimeToBeat {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.timeToBeat[id]
}

// Counts summarizes the store contents.
func (s *CatalogStore) Counts() Counts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := Counts{
		Items:        len(s.items),
		Lookups:      make(map[catalog.LookupKind]int, len(s.lookups)),
		Links:        make(map[catalog.LookupKind]int, len(s.links)),
		Reviews:      len(s.reviews),
		Achievements: len(s.achievements),
		Pending:      len(s.pending),
		Checkpoints:  len(s.checkpoints),
	}
	for kind, names := range s.lookups {
		c.Lookups[kind] = len(names)
	}
	for kind, links := range s.links {
		c.Links[kind] = len(links)
	}
	return c
}
