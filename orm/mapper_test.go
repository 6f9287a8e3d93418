package orm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sormlabs/sorm/cache"
)

func TestNewRecordMapperValidates(t *testing.T) {
	for _, tc := range []struct {
		name    string
		table   string
		columns []string
		pk      []string
		err     string
	}{
		{"no table", "", []string{"id"}, []string{"id"}, "table name is empty"},
		{"no key", "t", []string{"id"}, nil, "table t has no primary key"},
		{"duplicate column", "t", []string{"id", "id"}, []string{"id"}, "declares column id twice"},
		{"unknown key", "t", []string{"id"}, []string{"uuid"}, "primary key column uuid is not a column of table t"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewRecordMapper(tc.table, tc.columns, tc.pk)
			require.ErrorContains(t, err, tc.err)
		})
	}
}

func TestRecordMapperCheck(t *testing.T) {
	m, err := NewRecordMapper("accounts", []string{"id", "owner", "balance"}, []string{"id"})
	require.NoError(t, err)

	require.NoError(t, m.Check(Record{"id": 1, "owner": "ann"}))
	require.ErrorContains(t, m.Check(Record{"id": 1, "colour": "red", "age": 3}),
		"table accounts has no columns [age colour]")
	require.ErrorContains(t, m.Check(Record{"owner": "ann"}),
		"primary key column id of table accounts is not set")

	assert.Equal(t, []any{1, "ann", nil}, m.Values(Record{"id": 1, "owner": "ann"}))
	assert.Equal(t, []any{1}, m.KeyValues(Record{"id": 1, "owner": "ann"}))
}

func TestRecordTableRoundTrip(t *testing.T) {
	ctx := context.Background()
	d := openTestDB(t)
	m, err := NewRecordMapper("accounts", []string{"id", "owner", "balance"}, []string{"id"})
	require.NoError(t, err)
	tbl, err := NewTable[Record](d, m, WithCache[Record](cached(cache.TypeReadWrite)))
	require.NoError(t, err)

	_, err = tbl.Insert(ctx, Record{"id": int64(3), "owner": "rec", "balance": int64(1)})
	require.NoError(t, err)
	tbl.Cache().Purge()

	row, found, err := tbl.Select(ctx, int64(3))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, Record{"id": int64(3), "owner": "rec", "balance": int64(1)}, row)
	assert.EqualValues(t, 1, tbl.Cache().Stats().Misses)
}
