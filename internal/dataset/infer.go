package dataset

import (
	"strconv"
	"strings"
)

// InferColumn types a column of raw text cells. Empty cells are Null. The
// column becomes Int if every other cell parses as a base-10 int64, Float if
// every cell parses as a float, Bool if every cell is true/false (any case),
// and Text otherwise with the original strings preserved.
func InferColumn(raw []string) []Value {
	out := make([]Value, len(raw))

	allInt, allFloat, allBool := true, true, true
	nonNull := 0
	for _, s := range raw {
		if s == "" {
			continue
		}
		nonNull++
		if allInt {
			if _, err := strconv.ParseInt(s, 10, 64); err != nil {
				allInt = false
			}
		}
		if allFloat && !allInt {
			if _, err := parseFloat(s); err != nil {
				allFloat = false
			}
		}
		if allBool {
			if _, ok := parseBool(s); !ok {
				allBool = false
			}
		}
		if !allInt && !allFloat && !allBool {
			break
		}
	}

	switch {
	case nonNull == 0:
		// all Null
	case allInt:
		for i, s := range raw {
			if s != "" {
				n, _ := strconv.ParseInt(s, 10, 64)
				out[i] = Int(n)
			}
		}
	case allFloat:
		for i, s := range raw {
			if s != "" {
				f, _ := parseFloat(s)
				out[i] = Float(f)
			}
		}
	case allBool:
		for i, s := range raw {
			if s != "" {
				b, _ := parseBool(s)
				out[i] = Bool(b)
			}
		}
	default:
		for i, s := range raw {
			if s != "" {
				out[i] = Text(s)
			}
		}
	}
	return out
}

// parseFloat rejects the spellings strconv accepts that a CSV author almost
// never means as numbers (hex floats, underscores).
func parseFloat(s string) (float64, error) {
	if strings.ContainsAny(s, "_xXpP") {
		return 0, strconv.ErrSyntax
	}
	return strconv.ParseFloat(s, 64)
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return false, false
}

// InferRows types row-major raw text into a dataset, column by column.
func InferRows(names []string, rows [][]string) (*Dataset, error) {
	cols := make([]Column, len(names))
	for j, n := range names {
		raw := make([]string, len(rows))
		for i, r := range rows {
			if j < len(r) {
				raw[i] = r[j]
			}
		}
		cols[j] = Column{Name: n, Values: InferColumn(raw)}
	}
	return FromColumns(cols)
}

// ColumnKind returns the kind shared by the non-null values of a column:
// KindFloat when Int and Float mix, KindText for any other mix, KindNull
// when every value is null.
func ColumnKind(vals []Value) Kind {
	var kind Kind
	for _, v := range vals {
		if v.IsNull() {
			continue
		}
		switch {
		case kind == KindNull:
			kind = v.kind
		case kind == v.kind:
		case isNumeric(kind) && isNumeric(v.kind):
			kind = KindFloat
		default:
			return KindText
		}
	}
	return kind
}

// Unify coerces a column of natively typed values (JSON, Parquet) to a
// single kind: Int and Float mix to Float; any other mix becomes Text with
// each value rendered canonically. Nulls are kept.
func Unify(vals []Value) []Value {
	switch ColumnKind(vals) {
	case KindText:
		out := make([]Value, len(vals))
		for i, v := range vals {
			if !v.IsNull() {
				out[i] = Text(v.String())
			}
		}
		return out
	case KindFloat:
		out := make([]Value, len(vals))
		for i, v := range vals {
			if f, ok := v.AsFloat(); ok {
				out[i] = Float(f)
			}
		}
		return out
	}
	return vals
}

// Comparable reports whether columns of kinds a and b can be joined: equal
// kinds, two numeric kinds, or an all-null column on either side.
func Comparable(a, b Kind) bool {
	if a == KindNull || b == KindNull {
		return true
	}
	if isNumeric(a) && isNumeric(b) {
		return true
	}
	return a == b
}

func isNumeric(k Kind) bool { return k == KindInt || k == KindFloat }
