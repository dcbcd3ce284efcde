package lookup

import (
	"context"
	"log/slog"

	"github.com/JonMunkholm/datacleaner/internal/colname"
	"github.com/JonMunkholm/datacleaner/internal/dataset"
	"github.com/JonMunkholm/datacleaner/internal/errs"
)

// RightSuffix is appended to a returned lookup column whose name is already
// used by a main column.
const RightSuffix = "_right"

const maxSuggestions = 3

// Request describes one enrichment. Key and ReturnColumns are raw names;
// they are normalized before use.
type Request struct {
	Path          string   `json:"path" yaml:"path"`
	Key           string   `json:"key" yaml:"key"`
	ReturnColumns []string `json:"fields" yaml:"fields"`
	UseCache      bool     `json:"use_cache" yaml:"use_cache"`
}

// Enricher joins main datasets against lookup tables.
type Enricher struct {
	Loader *Loader
	// Collision decides what happens when two raw column names normalize
	// to the same name on either side. Empty means dataset.LastWins.
	Collision dataset.CollisionPolicy
	Logger    *slog.Logger
}

func (e *Enricher) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

// Enrich left-joins main against the lookup table at req.Path on req.Key,
// adding req.ReturnColumns. Column names on both sides are normalized
// first, so the result carries normalized names: main columns in order,
// then the returned columns.
//
// The key columns must hold comparable kinds: numeric on both sides, or
// the same kind. Int and integral Float keys compare numerically.
//
// Every main row appears at least once. A main row whose key matches N
// lookup rows appears N times, in lookup order; an unmatched or null key
// gets nulls for every returned column.
func (e *Enricher) Enrich(ctx context.Context, main *dataset.Dataset, req Request) (*dataset.Dataset, error) {
	log := e.logger()

	lk, err := e.Loader.LoadLookup(ctx, req.Path, req.UseCache)
	if err != nil {
		return nil, err
	}

	policy := e.Collision
	if policy == "" {
		policy = dataset.LastWins
	}
	mainN, err := main.Rename(colname.Normalize, policy)
	if err != nil {
		return nil, err
	}
	lookN, err := lk.Rename(colname.Normalize, policy)
	if err != nil {
		return nil, err
	}

	key := colname.Normalize(req.Key)
	ret := returnColumns(key, req.ReturnColumns)

	if mainN.Index(key) < 0 {
		log.Error("join key missing from main data", "key", key, "columns", mainN.Names())
		return nil, &errs.JoinKeyError{Key: key, Side: "main", Available: mainN.Names()}
	}
	if lookN.Index(key) < 0 {
		log.Error("join key missing from lookup data", "key", key, "columns", lookN.Names())
		return nil, &errs.JoinKeyError{Key: key, Side: "lookup", Available: lookN.Names()}
	}

	mainKeys, _ := mainN.Column(key)
	lookKeys, _ := lookN.Column(key)
	mk, lkk := dataset.ColumnKind(mainKeys), dataset.ColumnKind(lookKeys)
	if !dataset.Comparable(mk, lkk) {
		log.Error("join key types differ", "key", key, "main_kind", mk.String(), "lookup_kind", lkk.String())
		return nil, &errs.KeyTypeError{Key: key, MainKind: mk.String(), LookupKind: lkk.String()}
	}

	if missing := lookN.RequireColumns(ret); len(missing) > 0 {
		available := lookN.Names()
		suggestions := make(map[string][]string)
		for _, m := range missing {
			if s := Suggest(m, available, maxSuggestions); len(s) > 0 {
				suggestions[m] = s
			}
		}
		log.Error("missing lookup fields", "missing", missing, "columns", available)
		return nil, &errs.FieldsError{Missing: missing, Available: available, Suggestions: suggestions}
	}

	proj, err := lookN.Select(append([]string{key}, ret...))
	if err != nil {
		return nil, err
	}

	out, matched, err := leftJoin(mainN, proj, key, ret)
	if err != nil {
		return nil, err
	}

	log.Info("lookup join completed",
		"key", key,
		"main_rows", mainN.NumRows(),
		"matched_rows", matched,
		"output_rows", out.NumRows(),
	)
	return out, nil
}

// returnColumns normalizes the requested names, dropping duplicates and the
// join key itself (it is already a main column).
func returnColumns(key string, raw []string) []string {
	seen := map[string]bool{key: true}
	var out []string
	for _, r := range raw {
		n := colname.Normalize(r)
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

// leftJoin joins main and right on key. right holds exactly the key followed
// by ret. It returns the joined dataset and how many main rows matched.
func leftJoin(main, right *dataset.Dataset, key string, ret []string) (*dataset.Dataset, int, error) {
	rightKeys, _ := right.Column(key)
	index := make(map[string][]int, len(rightKeys))
	for i, v := range rightKeys {
		if k, ok := v.JoinKey(); ok {
			index[k] = append(index[k], i)
		}
	}

	mainKeys, _ := main.Column(key)
	var leftRows, rightRows []int
	matched := 0
	for i, v := range mainKeys {
		var hits []int
		if k, ok := v.JoinKey(); ok {
			hits = index[k]
		}
		if len(hits) == 0 {
			leftRows = append(leftRows, i)
			rightRows = append(rightRows, -1)
			continue
		}
		matched++
		for _, r := range hits {
			leftRows = append(leftRows, i)
			rightRows = append(rightRows, r)
		}
	}

	cols := make([]dataset.Column, 0, main.NumCols()+len(ret))
	for _, c := range main.Columns() {
		vals := make([]dataset.Value, len(leftRows))
		for o, i := range leftRows {
			vals[o] = c.Values[i]
		}
		cols = append(cols, dataset.Column{Name: c.Name, Values: vals})
	}
	for _, name := range ret {
		src, _ := right.Column(name)
		vals := make([]dataset.Value, len(rightRows))
		for o, r := range rightRows {
			if r >= 0 {
				vals[o] = src[r]
			}
		}
		outName := name
		if main.Index(name) >= 0 {
			outName = name + RightSuffix
		}
		cols = append(cols, dataset.Column{Name: outName, Values: vals})
	}

	out, err := dataset.FromColumns(cols)
	return out, matched, err
}
