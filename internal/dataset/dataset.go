// Package dataset holds the in-memory tabular form every loader produces:
// ordered, named columns of typed values with equal lengths.
package dataset

import (
	"fmt"

	"github.com/JonMunkholm/datacleaner/internal/errs"
)

// Column is a named, ordered sequence of values.
type Column struct {
	Name   string
	Values []Value
}

// Dataset is an ordered set of equal-length columns. Treat a Dataset handed
// out by the lookup cache as read-only; every transform returns a new one.
type Dataset struct {
	cols  []Column
	index map[string]int
	rows  int
}

// CollisionPolicy decides what Rename does when two columns end up with the
// same name.
type CollisionPolicy string

const (
	// LastWins keeps the later column and drops the earlier one.
	LastWins CollisionPolicy = "last_wins"
	// FailOnCollision returns an *errs.CollisionError.
	FailOnCollision CollisionPolicy = "fail"
)

// ParseCollisionPolicy accepts "last_wins" or "fail".
func ParseCollisionPolicy(s string) (CollisionPolicy, error) {
	switch CollisionPolicy(s) {
	case LastWins, FailOnCollision:
		return CollisionPolicy(s), nil
	case "":
		return LastWins, nil
	}
	return "", fmt.Errorf("unknown column collision policy %q (want last_wins or fail)", s)
}

// FromColumns builds a dataset from columns that must all have the same
// length. Duplicate names keep the last column.
func FromColumns(cols []Column) (*Dataset, error) {
	d := &Dataset{index: make(map[string]int, len(cols))}
	for i, c := range cols {
		if i == 0 {
			d.rows = len(c.Values)
		} else if len(c.Values) != d.rows {
			return nil, fmt.Errorf("column %q has %d values, want %d", c.Name, len(c.Values), d.rows)
		}
	}
	for _, c := range cols {
		if j, ok := d.index[c.Name]; ok {
			d.cols[j] = c
			continue
		}
		d.index[c.Name] = len(d.cols)
		d.cols = append(d.cols, c)
	}
	return d, nil
}

// New builds a dataset from a header and row-major values. Every row must be
// exactly as wide as the header.
func New(names []string, rows [][]Value) (*Dataset, error) {
	cols := make([]Column, len(names))
	for j, n := range names {
		cols[j] = Column{Name: n, Values: make([]Value, len(rows))}
	}
	for i, r := range rows {
		if len(r) != len(names) {
			return nil, fmt.Errorf("row %d has %d values, want %d", i, len(r), len(names))
		}
		for j, v := range r {
			cols[j].Values[i] = v
		}
	}
	return FromColumns(cols)
}

// MustNew is New for tests and literals; it panics on a width mismatch.
func MustNew(names []string, rows [][]Value) *Dataset {
	d, err := New(names, rows)
	if err != nil {
		panic(err)
	}
	return d
}

func (d *Dataset) NumRows() int { return d.rows }
func (d *Dataset) NumCols() int { return len(d.cols) }

// Empty reports whether the dataset has no rows or no columns.
func (d *Dataset) Empty() bool { return d.rows == 0 || len(d.cols) == 0 }

// Names returns the column names in order.
func (d *Dataset) Names() []string {
	names := make([]string, len(d.cols))
	for i, c := range d.cols {
		names[i] = c.Name
	}
	return names
}

// Columns returns the columns in order. The slice is shared.
func (d *Dataset) Columns() []Column { return d.cols }

// Index returns the position of the named column or -1.
func (d *Dataset) Index(name string) int {
	if i, ok := d.index[name]; ok {
		return i
	}
	return -1
}

// Column returns the named column's values.
func (d *Dataset) Column(name string) ([]Value, bool) {
	i, ok := d.index[name]
	if !ok {
		return nil, false
	}
	return d.cols[i].Values, true
}

// Row returns row i as a fresh slice.
func (d *Dataset) Row(i int) []Value {
	r := make([]Value, len(d.cols))
	for j, c := range d.cols {
		r[j] = c.Values[i]
	}
	return r
}

// Rows returns all rows in row-major order.
func (d *Dataset) Rows() [][]Value {
	rows := make([][]Value, d.rows)
	for i := range rows {
		rows[i] = d.Row(i)
	}
	return rows
}

// Rename maps every column name through fn. When two columns map to the same
// name the policy decides: LastWins keeps the later column at the position of
// the earlier one, FailOnCollision returns an *errs.CollisionError.
func (d *Dataset) Rename(fn func(string) string, policy CollisionPolicy) (*Dataset, error) {
	sources := make(map[string][]string)
	renamed := make([]Column, len(d.cols))
	for i, c := range d.cols {
		n := fn(c.Name)
		sources[n] = append(sources[n], c.Name)
		renamed[i] = Column{Name: n, Values: c.Values}
	}
	if policy == FailOnCollision {
		for _, c := range renamed {
			if src := sources[c.Name]; len(src) > 1 {
				return nil, &errs.CollisionError{Name: c.Name, Sources: src}
			}
		}
	}
	return FromColumns(renamed)
}

// Select projects the dataset to the named columns, in the given order.
func (d *Dataset) Select(names []string) (*Dataset, error) {
	cols := make([]Column, 0, len(names))
	for _, n := range names {
		i, ok := d.index[n]
		if !ok {
			return nil, fmt.Errorf("column %q not found", n)
		}
		cols = append(cols, d.cols[i])
	}
	out, err := FromColumns(cols)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		out.rows = d.rows
	}
	return out, nil
}

// RequireColumns returns the names that are not columns of d, in order.
func (d *Dataset) RequireColumns(names []string) []string {
	var missing []string
	for _, n := range names {
		if _, ok := d.index[n]; !ok {
			missing = append(missing, n)
		}
	}
	return missing
}
