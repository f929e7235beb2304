// Package catalog holds the canonical shapes that flow from the normalizer
// into persistence.
package catalog

import "time"

// ItemType tags a catalog entry.
type ItemType string

// Item types reported by the primary catalog.
const (
	TypeGame    ItemType = "game"
	TypeDLC     ItemType = "dlc"
	TypeUnknown ItemType = "unknown"
)

// LookupKind names a shared, name-keyed reference entity.
type LookupKind string

// Lookup kinds linked to items through junction tables.
const (
	KindDeveloper LookupKind = "developer"
	KindPublisher LookupKind = "publisher"
	KindCategory  LookupKind = "category"
	KindGenre     LookupKind = "genre"
	KindLanguage  LookupKind = "language"
	KindTag       LookupKind = "tag"
)

// LookupKinds lists every lookup kind in linking order.
func LookupKinds() []LookupKind {
	return []LookupKind{KindDeveloper, KindPublisher, KindCategory, KindGenre, KindLanguage, KindTag}
}

// Language is a supported language; HasAudio marks full audio support.
type Language struct {
	Name     string
	HasAudio bool
}

// Tag is a user tag with its vote count.
type Tag struct {
	Name  string
	Value int
}

// Record is the flattened item plus its multi-valued relations.
type Record struct {
	ID          int64
	Type        ItemType
	Name        string
	ReleaseDate *time.Time
	ComingSoon  bool
	Price       float64

	Recommendations   int
	PositiveReviews   int
	NegativeReviews   int
	PeakCCU           int
	MetacriticScore   int
	MetacriticURL     string
	RequiredAge       int
	AchievementsCount int

	Windows bool
	Mac     bool
	Linux   bool

	HeaderImage  string
	Website      string
	SupportURL   string
	SupportEmail string

	EstimatedOwners string
	UserScore       int
	ScoreRank       string
	AveragePlaytime int
	MedianPlaytime  int

	AboutTheGame        string
	DetailedDescription string
	ShortDescription    string
	ReviewsSummary      string

	// BaseGameID is the parent game of a DLC. It is never written by the item
	// upsert; the deferred cross-reference sweep backfills it.
	BaseGameID *int64

	Developers []string
	Publishers []string
	Categories []string
	Genres     []string
	Languages  []Language
	Tags       []Tag
}

// Link is one relation member of a record.
type Link struct {
	Kind     LookupKind
	Name     string
	HasAudio bool
	Value    int
}

// Payload returns the junction payload columns carried by the link kind.
func (l Link) Payload() []any {
	switch l.Kind {
	case KindLanguage:
		return []any{l.HasAudio}
	case KindTag:
		return []any{l.Value}
	default:
		return nil
	}
}

// Links flattens every relation list on the record.
func (r Record) Links() []Link {
	links := make([]Link, 0, len(r.Developers)+len(r.Publishers)+len(r.Categories)+
		len(r.Genres)+len(r.Languages)+len(r.Tags))
	for _, name := range r.Developers {
		links = append(links, Link{Kind: KindDeveloper, Name: name})
	}
	for _, name := range r.Publishers {
		links = append(links, Link{Kind: KindPublisher, Name: name})
	}
	for _, name := range r.Categories {
		links = append(links, Link{Kind: KindCategory, Name: name})
	}
	for _, name := range r.Genres {
		links = append(links, Link{Kind: KindGenre, Name: name})
	}
	for _, lang := range r.Languages {
		links = append(links, Link{Kind: KindLanguage, Name: lang.Name, HasAudio: lang.HasAudio})
	}
	for _, tag := range r.Tags {
		links = append(links, Link{Kind: KindTag, Name: tag.Name, Value: tag.Value})
	}
	return links
}

// Review is a single user review owned by an item.
type Review struct {
	ID          string
	ItemID      int64
	AuthorID    string
	Language    string
	Body        string
	Recommended bool
	VotesUp     int
	VotesFunny  int
	CreatedAt   time.Time
}

// Achievement is keyed by (ItemID, APIName).
type Achievement struct {
	ItemID      int64
	APIName     string
	DisplayName string
	Description string
	// CompletionRate is the global unlock fraction in [0, 1].
	CompletionRate float64
}

// TimeToBeat holds completion estimates in hours. Nil means unknown.
type TimeToBeat struct {
	Hastily    *float64
	Normally   *float64
	Completely *float64
}

// Empty reports whether no estimate is known.
func (t TimeToBeat) Empty() bool {
	return t.Hastily == nil && t.Normally == nil && t.Completely == nil
}
