package schema

import "github.com/JakeFAU/game-catalog-crawler/internal/catalog"

// ItemStatements covers the items table.
type ItemStatements struct {
	// Upsert inserts or updates an item. It never touches base_game_id.
	Upsert        string
	SetTimeToBeat string
	BaseGameID    string
}

// LookupStatements covers one lookup table and its junction table.
type LookupStatements struct {
	Table    string
	Junction string
	// InsertIgnore is a conflict-tolerant insert of a name.
	InsertIgnore string
	SelectID     string
	// Link inserts the junction row; args are item id, lookup id, payload.
	Link string
}

// ReviewStatements covers the reviews table.
type ReviewStatements struct {
	Upsert string
}

// AchievementStatements covers the achievements table.
type AchievementStatements struct {
	Upsert string
}

// CheckpointStatements covers the checkpoint ledger. Every read takes the
// pending-retry status as its first argument and excludes it.
type CheckpointStatements struct {
	IsProcessed  string
	Mark         string
	Count        string
	AllProcessed string
	Clear        string
	ClearStatus  string
}

// CrossRefStatements covers pending DLC to base game links.
type CrossRefStatements struct {
	Add           string
	Resolve       string
	ClearResolved string
	Count         string
}

// EpochStatements covers the crawl_epochs ledger.
type EpochStatements struct {
	Start  string
	Finish string
	Latest string
}

// Statements binds every operation the persistence layer performs.
type Statements struct {
	Items        ItemStatements
	Lookups      map[catalog.LookupKind]LookupStatements
	Reviews      ReviewStatements
	Achievements AchievementStatements
	Checkpoints  CheckpointStatements
	CrossRefs    CrossRefStatements
	Epochs       EpochStatements
}

// Lookup returns the statements for kind.
func (s Statements) Lookup(kind catalog.LookupKind) (LookupStatements, bool) {
	l, ok := s.Lookups[kind]
	return l, ok
}

// Dialect pairs a table registry with the statements for one SQL engine.
type Dialect struct {
	Name       string
	Tables     *Registry
	Statements Statements
}
