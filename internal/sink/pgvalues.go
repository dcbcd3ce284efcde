package sink

import (
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/datacleaner/internal/dataset"
)

/* ----------------------------------------
	Pgx Helpers
---------------------------------------- */

// Each helper returns an invalid (NULL) value for Null cells and for cells
// of a kind the column type cannot hold.

func ToPgText(v dataset.Value) pgtype.Text {
	if v.IsNull() {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: v.String(), Valid: true}
}

func ToPgInt8(v dataset.Value) pgtype.Int8 {
	n, ok := v.AsInt()
	if !ok {
		return pgtype.Int8{Valid: false}
	}
	return pgtype.Int8{Int64: n, Valid: true}
}

func ToPgFloat8(v dataset.Value) pgtype.Float8 {
	f, ok := v.AsFloat()
	if !ok {
		return pgtype.Float8{Valid: false}
	}
	return pgtype.Float8{Float64: f, Valid: true}
}

func ToPgBool(v dataset.Value) pgtype.Bool {
	b, ok := v.AsBool()
	if !ok {
		return pgtype.Bool{Valid: false}
	}
	return pgtype.Bool{Bool: b, Valid: true}
}
