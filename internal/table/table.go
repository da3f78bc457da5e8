// Package table keeps the tabular model of emitted quakes, one row per record.
package table

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/couchcryptid/quake-map-service/internal/domain"
)

var (
	// ErrDuplicateRow is returned when a row id is already in the table.
	ErrDuplicateRow = errors.New("row already present")
	// ErrInvalidSort is returned for an unknown sort column or order.
	ErrInvalidSort = errors.New("invalid sort")
)

// Row is the rendered form of one quake. Cells are place, magnitude and time,
// in display order.
type Row struct {
	ID        string    `json:"id"`
	Place     string    `json:"place"`
	Magnitude float64   `json:"mag"`
	Time      time.Time `json:"time"`
	Cells     [3]string `json:"cells"`
}

// RenderRow builds the row for q, keyed by the record id.
func RenderRow(q domain.Quake) Row {
	t := q.Time()
	return Row{
		ID:        q.ID,
		Place:     q.Place,
		Magnitude: q.Magnitude,
		Time:      t,
		Cells: [3]string{
			q.Place,
			strconv.FormatFloat(q.Magnitude, 'f', -1, 64),
			t.Format(time.RFC3339),
		},
	}
}

// SortKey selects the column rows are ordered by.
type SortKey string

const (
	SortNone  SortKey = ""
	SortPlace SortKey = "place"
	SortMag   SortKey = "mag"
	SortTime  SortKey = "time"
)

// ParseSortKey validates a sort column name. The empty string keeps emission
// order.
func ParseSortKey(s string) (SortKey, error) {
	switch k := SortKey(strings.ToLower(strings.TrimSpace(s))); k {
	case SortNone, SortPlace, SortMag, SortTime:
		return k, nil
	default:
		return "", fmt.Errorf("%w: column %q", ErrInvalidSort, s)
	}
}

// ParseOrder reports whether order asks for descending rows. The empty string
// means ascending.
func ParseOrder(order string) (desc bool, err error) {
	switch strings.ToLower(strings.TrimSpace(order)) {
	case "", "asc":
		return false, nil
	case "desc":
		return true, nil
	default:
		return false, fmt.Errorf("%w: order %q", ErrInvalidSort, order)
	}
}

// Table holds rows in emission order. It is safe for concurrent use.
type Table struct {
	mu   sync.RWMutex
	rows []Row
	ids  map[string]struct{}
}

// New returns an empty table.
func New() *Table {
	return &Table{ids: make(map[string]struct{})}
}

// Consume appends the row for q.
func (t *Table) Consume(_ context.Context, q domain.Quake) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.ids[q.ID]; ok {
		return fmt.Errorf("add row %s: %w", q.ID, ErrDuplicateRow)
	}
	t.ids[q.ID] = struct{}{}
	t.rows = append(t.rows, RenderRow(q))
	return nil
}

// Remove deletes the row with id and reports whether it existed.
func (t *Table) Remove(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.ids[id]; !ok {
		return false
	}
	delete(t.ids, id)
	t.rows = slices.DeleteFunc(t.rows, func(r Row) bool { return r.ID == id })
	return true
}

// Has reports whether a row with id exists.
func (t *Table) Has(id string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.ids[id]
	return ok
}

// Len returns the number of rows.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}

// Rows returns a copy of the rows ordered by key. Ties keep emission order.
func (t *Table) Rows(key SortKey, desc bool) []Row {
	t.mu.RLock()
	out := slices.Clone(t.rows)
	t.mu.RUnlock()

	compare := comparator(key)
	if compare == nil {
		if desc {
			slices.Reverse(out)
		}
		return out
	}
	slices.SortStableFunc(out, func(a, b Row) int {
		if desc {
			return compare(b, a)
		}
		return compare(a, b)
	})
	return out
}

func comparator(key SortKey) func(a, b Row) int {
	switch key {
	case SortPlace:
		return func(a, b Row) int { return strings.Compare(a.Place, b.Place) }
	case SortMag:
		return func(a, b Row) int { return cmp.Compare(a.Magnitude, b.Magnitude) }
	case SortTime:
		return func(a, b Row) int { return a.Time.Compare(b.Time) }
	default:
		return nil
	}
}
