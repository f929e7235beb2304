package schema

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/game-catalog-crawler/internal/catalog"
)

func names(tables []Table) []string {
	out := make([]string, len(tables))
	for i, t := range tables {
		out[i] = t.Name
	}
	return out
}

func indexOf(list []string, name string) int {
	for i, v := range list {
		if v == name {
			return i
		}
	}
	return -1
}

func TestCreateOrderRespectsDependencies(t *testing.T) {
	t.Parallel()

	r, err := NewRegistry(
		Table{Name: "c", DependsOn: []string{"a", "b"}},
		Table{Name: "b", DependsOn: []string{"a"}},
		Table{Name: "a", DependsOn: []string{"a"}},
		Table{Name: "d"},
	)
	require.NoError(t, err)

	create, err := r.CreateOrder()
	require.NoError(t, err)
	require.Equal(t, []string{"a", "d", "b", "c"}, names(create))

	drop, err := r.DropOrder()
	require.NoError(t, err)
	require.Equal(t, []string{"c", "b", "d", "a"}, names(drop))
}

func TestRegistryRejectsBadDefinitions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		tables []Table
		want   string
	}{
		{"invalid name", []Table{{Name: "bad name"}}, "invalid table name"},
		{"duplicate", []Table{{Name: "a"}, {Name: "a"}}, "duplicate table"},
		{"unknown dependency", []Table{{Name: "a", DependsOn: []string{"missing"}}}, "unknown table"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewRegistry(tt.tables...)
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestCreateOrderDetectsCycle(t *testing.T) {
	t.Parallel()

	r, err := NewRegistry(
		Table{Name: "a", DependsOn: []string{"b"}},
		Table{Name: "b", DependsOn: []string{"a"}},
	)
	require.NoError(t, err)
	_, err = r.CreateOrder()
	require.ErrorContains(t, err, "dependency cycle")
}

func TestPostgresDialectOrdering(t *testing.T) {
	t.Parallel()

	d := Postgres()
	create, err := d.Tables.CreateOrder()
	require.NoError(t, err)
	order := names(create)
	require.Len(t, order, len(d.Tables.Names()))

	for _, junction := range []string{"item_developers", "item_tags", "item_languages"} {
		require.Less(t, indexOf(order, "items"), indexOf(order, junction))
	}
	require.Less(t, indexOf(order, "tags"), indexOf(order, "item_tags"))
	require.Less(t, indexOf(order, "items"), indexOf(order, "pending_cross_references"))

	drop, err := d.Tables.DropOrder()
	require.NoError(t, err)
	require.Equal(t, "items", names(drop)[len(drop)-1-indexOf(order, "items")])
}

func TestPostgresStatements(t *testing.T) {
	t.Parallel()

	st := Postgres().Statements
	require.Equal(t, len(ItemColumns), strings.Count(st.Items.Upsert, "$"))
	require.NotContains(t, st.Items.Upsert, "base_game_id")

	for _, kind := range catalog.LookupKinds() {
		l, ok := st.Lookup(kind)
		require.True(t, ok, kind)
		require.Contains(t, l.InsertIgnore, "ON CONFLICT (name) DO NOTHING")
		require.Contains(t, l.SelectID, "WHERE name = $1")
	}
	tags, _ := st.Lookup(catalog.KindTag)
	require.Contains(t, tags.Link, "tag_value = EXCLUDED.tag_value")
	devs, _ := st.Lookup(catalog.KindDeveloper)
	require.True(t, strings.HasSuffix(devs.Link, "DO NOTHING"))
}
