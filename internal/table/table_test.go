package table_test

import (
	"context"
	"testing"
	"time"

	"github.com/couchcryptid/quake-map-service/internal/domain"
	"github.com/couchcryptid/quake-map-service/internal/table"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2024, time.April, 26, 15, 10, 0, 0, time.UTC)

func row(id, place string, mag float64, offset time.Duration) domain.Quake {
	return domain.Quake{
		ID:              id,
		Code:            id,
		Place:           place,
		Magnitude:       mag,
		TimestampMillis: baseTime.Add(offset).UnixMilli(),
	}
}

func ids(rows []table.Row) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ID)
	}
	return out
}

func TestRenderRow(t *testing.T) {
	r := table.RenderRow(row("ci40000123", "10km NE of Ridgecrest, CA", 1.42, 0))

	assert.Equal(t, "ci40000123", r.ID)
	assert.Equal(t, [3]string{"10km NE of Ridgecrest, CA", "1.42", "2024-04-26T15:10:00Z"}, r.Cells)
	assert.True(t, r.Time.Equal(baseTime))
}

func TestTable_KeepsEmissionOrder(t *testing.T) {
	tbl := table.New()
	ctx := context.Background()
	for _, q := range []domain.Quake{
		row("c", "Chile", 5.1, time.Minute),
		row("a", "Alaska", 2.0, 0),
		row("b", "Baja", 3.3, 2*time.Minute),
	} {
		require.NoError(t, tbl.Consume(ctx, q))
	}

	assert.Equal(t, []string{"c", "a", "b"}, ids(tbl.Rows(table.SortNone, false)))
	assert.Equal(t, []string{"b", "a", "c"}, ids(tbl.Rows(table.SortNone, true)))
}

func TestTable_Sort(t *testing.T) {
	tbl := table.New()
	ctx := context.Background()
	for _, q := range []domain.Quake{
		row("c", "Chile", 5.1, time.Minute),
		row("a", "Alaska", 2.0, 0),
		row("b", "Baja", 3.3, 2*time.Minute),
	} {
		require.NoError(t, tbl.Consume(ctx, q))
	}

	tests := []struct {
		key  table.SortKey
		desc bool
		want []string
	}{
		{table.SortPlace, false, []string{"a", "b", "c"}},
		{table.SortPlace, true, []string{"c", "b", "a"}},
		{table.SortMag, false, []string{"a", "b", "c"}},
		{table.SortMag, true, []string{"c", "b", "a"}},
		{table.SortTime, false, []string{"a", "c", "b"}},
		{table.SortTime, true, []string{"b", "c", "a"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.key), func(t *testing.T) {
			if diff := cmp.Diff(tt.want, ids(tbl.Rows(tt.key, tt.desc))); diff != "" {
				t.Errorf("row order mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTable_SortIsStable(t *testing.T) {
	tbl := table.New()
	ctx := context.Background()
	require.NoError(t, tbl.Consume(ctx, row("first", "X", 2.0, 0)))
	require.NoError(t, tbl.Consume(ctx, row("second", "Y", 2.0, 0)))

	assert.Equal(t, []string{"first", "second"}, ids(tbl.Rows(table.SortMag, false)))
}

func TestTable_DuplicateRowRejected(t *testing.T) {
	tbl := table.New()
	ctx := context.Background()
	require.NoError(t, tbl.Consume(ctx, row("a", "A", 1, 0)))
	assert.ErrorIs(t, tbl.Consume(ctx, row("a", "A", 1, 0)), table.ErrDuplicateRow)
	assert.Equal(t, 1, tbl.Len())
}

func TestTable_Remove(t *testing.T) {
	tbl := table.New()
	ctx := context.Background()
	require.NoError(t, tbl.Consume(ctx, row("a", "A", 1, 0)))
	require.NoError(t, tbl.Consume(ctx, row("b", "B", 1, 0)))

	assert.True(t, tbl.Remove("a"))
	assert.False(t, tbl.Remove("a"))
	assert.False(t, tbl.Has("a"))
	assert.True(t, tbl.Has("b"))
	assert.Equal(t, []string{"b"}, ids(tbl.Rows(table.SortNone, false)))
}

func TestTable_RowsReturnsCopy(t *testing.T) {
	tbl := table.New()
	require.NoError(t, tbl.Consume(context.Background(), row("a", "A", 1, 0)))

	rows := tbl.Rows(table.SortNone, false)
	rows[0].Place = "mutated"
	assert.Equal(t, "A", tbl.Rows(table.SortNone, false)[0].Place)
}

func TestParseSortKey(t *testing.T) {
	for in, want := range map[string]table.SortKey{
		"":      table.SortNone,
		"place": table.SortPlace,
		"MAG":   table.SortMag,
		" time": table.SortTime,
	} {
		got, err := table.ParseSortKey(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := table.ParseSortKey("depth")
	assert.ErrorIs(t, err, table.ErrInvalidSort)
}

func TestParseOrder(t *testing.T) {
	desc, err := table.ParseOrder("desc")
	require.NoError(t, err)
	assert.True(t, desc)

	desc, err = table.ParseOrder("")
	require.NoError(t, err)
	assert.False(t, desc)

	_, err = table.ParseOrder("sideways")
	assert.ErrorIs(t, err, table.ErrInvalidSort)
}
