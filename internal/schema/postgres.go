package schema

import (
	"fmt"
	"strings"

	"github.com/JakeFAU/game-catalog-crawler/internal/catalog"
)

// ItemColumns lists the columns written by the item upsert, in argument order.
var ItemColumns = []string{
	"item_id",
	"item_type",
	"name",
	"release_date",
	"coming_soon",
	"price",
	"recommendations",
	"positive_reviews",
	"negative_reviews",
	"peak_ccu",
	"metacritic_score",
	"metacritic_url",
	"required_age",
	"achievements_count",
	"supports_windows",
	"supports_mac",
	"supports_linux",
	"header_image",
	"website",
	"support_url",
	"support_email",
	"estimated_owners",
	"user_score",
	"score_rank",
	"average_playtime",
	"median_playtime",
	"about_the_game",
	"detailed_description",
	"short_description",
	"reviews_summary",
}

type lookupDef struct {
	kind     catalog.LookupKind
	table    string
	junction string
	column   string
	payload  []string
	ddl      []string
}

var lookupDefs = []lookupDef{
	{kind: catalog.KindDeveloper, table: "developers", junction: "item_developers", column: "developer_id"},
	{kind: catalog.KindPublisher, table: "publishers", junction: "item_publishers", column: "publisher_id"},
	{kind: catalog.KindCategory, table: "categories", junction: "item_categories", column: "category_id"},
	{kind: catalog.KindGenre, table: "genres", junction: "item_genres", column: "genre_id"},
	{
		kind: catalog.KindLanguage, table: "languages", junction: "item_languages", column: "language_id",
		payload: []string{"has_audio"}, ddl: []string{"has_audio BOOLEAN NOT NULL DEFAULT FALSE"},
	},
	{
		kind: catalog.KindTag, table: "tags", junction: "item_tags", column: "tag_id",
		payload: []string{"tag_value"}, ddl: []string{"tag_value INTEGER NOT NULL DEFAULT 0"},
	},
}

// Postgres returns the PostgreSQL dialect.
func Postgres() *Dialect {
	tables := []Table{itemsTable()}
	lookups := make(map[catalog.LookupKind]LookupStatements, len(lookupDefs))
	for _, def := range lookupDefs {
		tables = append(tables, def.lookupTable(), def.junctionTable())
		lookups[def.kind] = def.statements()
	}
	tables = append(tables,
		Table{
			Name:      "reviews",
			DependsOn: []string{"items"},
			Create: `CREATE TABLE IF NOT EXISTS reviews (
	review_id TEXT PRIMARY KEY,
	item_id BIGINT NOT NULL REFERENCES items(item_id) ON DELETE CASCADE,
	author_id TEXT,
	language TEXT,
	body TEXT,
	recommended BOOLEAN NOT NULL DEFAULT FALSE,
	votes_up INTEGER NOT NULL DEFAULT 0,
	votes_funny INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ
)`,
		},
		Table{
			Name:      "achievements",
			DependsOn: []string{"items"},
			Create: `CREATE TABLE IF NOT EXISTS achievements (
	item_id BIGINT NOT NULL REFERENCES items(item_id) ON DELETE CASCADE,
	api_name TEXT NOT NULL,
	display_name TEXT,
	description TEXT,
	global_completion_rate NUMERIC(7,4) NOT NULL DEFAULT 0,
	PRIMARY KEY (item_id, api_name)
)`,
		},
		Table{
			Name: "crawl_checkpoints",
			Create: `CREATE TABLE IF NOT EXISTS crawl_checkpoints (
	item_id BIGINT PRIMARY KEY,
	status TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`,
		},
		Table{
			Name:      "pending_cross_references",
			DependsOn: []string{"items"},
			Create: `CREATE TABLE IF NOT EXISTS pending_cross_references (
	dependent_id BIGINT NOT NULL REFERENCES items(item_id) ON DELETE CASCADE,
	base_id BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (dependent_id, base_id)
)`,
		},
		Table{
			Name: "crawl_epochs",
			Create: `CREATE TABLE IF NOT EXISTS crawl_epochs (
	epoch_id UUID PRIMARY KEY,
	started_at TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ,
	status TEXT NOT NULL,
	universe BIGINT NOT NULL DEFAULT 0,
	considered BIGINT NOT NULL DEFAULT 0,
	succeeded BIGINT NOT NULL DEFAULT 0,
	unavailable BIGINT NOT NULL DEFAULT 0,
	skipped BIGINT NOT NULL DEFAULT 0,
	failed BIGINT NOT NULL DEFAULT 0,
	resolved BIGINT NOT NULL DEFAULT 0
)`,
		},
	)

	return &Dialect{
		Name:   "postgres",
		Tables: MustRegistry(tables...),
		Statements: Statements{
			Items:   itemStatements(),
			Lookups: lookups,
			Reviews: ReviewStatements{
				Upsert: `INSERT INTO reviews (
	review_id, item_id, author_id, language, body, recommended, votes_up, votes_funny, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (review_id) DO UPDATE SET
	body = EXCLUDED.body,
	recommended = EXCLUDED.recommended,
	votes_up = EXCLUDED.votes_up,
	votes_funny = EXCLUDED.votes_funny`,
			},
			Achievements: AchievementStatements{
				Upsert: `INSERT INTO achievements (
	item_id, api_name, display_name, description, global_completion_rate
) VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (item_id, api_name) DO UPDATE SET
	display_name = EXCLUDED.display_name,
	description = EXCLUDED.description,
	global_completion_rate = EXCLUDED.global_completion_rate`,
			},
			Checkpoints: CheckpointStatements{
				IsProcessed:  `SELECT EXISTS (SELECT 1 FROM crawl_checkpoints WHERE status <> $1 AND item_id = $2)`,
				Mark: `INSERT INTO crawl_checkpoints (item_id, status, updated_at) VALUES ($1, $2, NOW())
ON CONFLICT (item_id) DO UPDATE SET status = EXCLUDED.status, updated_at = EXCLUDED.updated_at`,
				Count:        `SELECT COUNT(*) FROM crawl_checkpoints WHERE status <> $1`,
				AllProcessed: `SELECT item_id FROM crawl_checkpoints WHERE status <> $1`,
				Clear:        `DELETE FROM crawl_checkpoints`,
				ClearStatus:  `DELETE FROM crawl_checkpoints WHERE status = $1`,
			},
			CrossRefs: CrossRefStatements{
				Add: `INSERT INTO pending_cross_references (dependent_id, base_id) VALUES ($1, $2)
ON CONFLICT (dependent_id, base_id) DO NOTHING`,
				Resolve: `UPDATE items AS d SET base_game_id = p.base_id, updated_at = NOW()
FROM pending_cross_references AS p
JOIN items AS b ON b.item_id = p.base_id
WHERE d.item_id = p.dependent_id`,
				ClearResolved: `DELETE FROM pending_cross_references AS p USING items AS b WHERE b.item_id = p.base_id`,
				Count:         `SELECT COUNT(*) FROM pending_cross_references`,
			},
			Epochs: EpochStatements{
				Start: `INSERT INTO crawl_epochs (epoch_id, started_at, status, universe) VALUES ($1, $2, $3, $4)`,
				Finish: `UPDATE crawl_epochs SET
	finished_at = $2,
	status = $3,
	universe = $4,
	considered = $5,
	succeeded = $6,
	unavailable = $7,
	skipped = $8,
	failed = $9,
	resolved = $10
WHERE epoch_id = $1`,
				Latest: `SELECT epoch_id, started_at, finished_at, status, universe, considered,
	succeeded, unavailable, skipped, failed, resolved
FROM crawl_epochs ORDER BY started_at DESC LIMIT 1`,
			},
		},
	}
}

func itemsTable() Table {
	return Table{
		Name:      "items",
		DependsOn: []string{"items"},
		Create: `CREATE TABLE IF NOT EXISTS items (
	item_id BIGINT PRIMARY KEY,
	item_type TEXT NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	release_date DATE,
	coming_soon BOOLEAN NOT NULL DEFAULT FALSE,
	price NUMERIC(12,2) NOT NULL DEFAULT 0,
	recommendations INTEGER NOT NULL DEFAULT 0,
	positive_reviews INTEGER NOT NULL DEFAULT 0,
	negative_reviews INTEGER NOT NULL DEFAULT 0,
	peak_ccu INTEGER NOT NULL DEFAULT 0,
	metacritic_score INTEGER NOT NULL DEFAULT 0,
	metacritic_url TEXT,
	required_age INTEGER NOT NULL DEFAULT 0,
	achievements_count INTEGER NOT NULL DEFAULT 0,
	supports_windows BOOLEAN NOT NULL DEFAULT FALSE,
	supports_mac BOOLEAN NOT NULL DEFAULT FALSE,
	supports_linux BOOLEAN NOT NULL DEFAULT FALSE,
	header_image TEXT,
	website TEXT,
	support_url TEXT,
	support_email TEXT,
	estimated_owners TEXT,
	user_score INTEGER NOT NULL DEFAULT 0,
	score_rank TEXT,
	average_playtime INTEGER NOT NULL DEFAULT 0,
	median_playtime INTEGER NOT NULL DEFAULT 0,
	about_the_game TEXT,
	detailed_description TEXT,
	short_description TEXT,
	reviews_summary TEXT,
	time_to_beat_hastily NUMERIC(8,2),
	time_to_beat_normally NUMERIC(8,2),
	time_to_beat_completely NUMERIC(8,2),
	base_game_id BIGINT REFERENCES items(item_id) ON DELETE SET NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`,
	}
}

func itemStatements() ItemStatements {
	placeholders := make([]string, len(ItemColumns))
	updates := make([]string, 0, len(ItemColumns))
	for i, col := range ItemColumns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		if col != "item_id" {
			updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
		}
	}
	updates = append(updates, "updated_at = NOW()")
	return ItemStatements{
		Upsert: fmt.Sprintf("INSERT INTO items (%s) VALUES (%s)\nON CONFLICT (item_id) DO UPDATE SET\n\t%s",
			strings.Join(ItemColumns, ", "),
			strings.Join(placeholders, ","),
			strings.Join(updates, ",\n\t"),
		),
		SetTimeToBeat: `UPDATE items SET
	time_to_beat_hastily = COALESCE($2, time_to_beat_hastily),
	time_to_beat_normally = COALESCE($3, time_to_beat_normally),
	time_to_beat_completely = COALESCE($4, time_to_beat_completely),
	updated_at = NOW()
WHERE item_id = $1`,
		BaseGameID: `SELECT base_game_id FROM items WHERE item_id = $1`,
	}
}

func (s lookupDef) lookupTable() Table {
	return Table{
		Name: s.table,
		Create: fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL UNIQUE
)`, s.table),
	}
}

func (s lookupDef) junctionTable() Table {
	cols := []string{
		"item_id BIGINT NOT NULL REFERENCES items(item_id) ON DELETE CASCADE",
		fmt.Sprintf("%s BIGINT NOT NULL REFERENCES %s(id) ON DELETE CASCADE", s.column, s.table),
	}
	cols = append(cols, s.ddl...)
	cols = append(cols, fmt.Sprintf("PRIMARY KEY (item_id, %s)", s.column))
	return Table{
		Name:      s.junction,
		DependsOn: []string{"items", s.table},
		Create: fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)",
			s.junction, strings.Join(cols, ",\n\t")),
	}
}

func (s lookupDef) statements() LookupStatements {
	cols := append([]string{"item_id", s.column}, s.payload...)
	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	link := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)\nON CONFLICT (item_id, %s) ",
		s.junction, strings.Join(cols, ", "), strings.Join(placeholders, ", "), s.column)
	if len(s.payload) == 0 {
		link += "DO NOTHING"
	} else {
		sets := make([]string, len(s.payload))
		for i, col := range s.payload {
			sets[i] = fmt.Sprintf("%s = EXCLUDED.%s", col, col)
		}
		link += "DO UPDATE SET " + strings.Join(sets, ", ")
	}
	return LookupStatements{
		Table:        s.table,
		Junction:     s.junction,
		InsertIgnore: fmt.Sprintf("INSERT INTO %s (name) VALUES ($1) ON CONFLICT (name) DO NOTHING", s.table),
		SelectID:     fmt.Sprintf("SELECT id FROM %s WHERE name = $1", s.table),
		Link:         link,
	}
}
