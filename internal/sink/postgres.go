package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/JonMunkholm/datacleaner/internal/colname"
	"github.com/JonMunkholm/datacleaner/internal/dataset"
)

// ErrNoDatabase is returned when PostgreSQL output is requested without a
// configured pool.
var ErrNoDatabase = errors.New("postgres output requires DATABASE_URL")

// TxBeginner is satisfied by *pgxpool.Pool and *pgx.Conn.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Postgres loads datasets into tables with COPY. The table is created when
// missing; existing tables receive appended rows.
type Postgres struct {
	DB     TxBeginner
	Schema string // "" means public
	Logger *slog.Logger
}

func (p *Postgres) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

// pgColumn is one destination column.
type pgColumn struct {
	name string
	kind dataset.Kind
}

func (c pgColumn) sqlType() string {
	switch c.kind {
	case dataset.KindInt:
		return "BIGINT"
	case dataset.KindFloat:
		return "DOUBLE PRECISION"
	case dataset.KindBool:
		return "BOOLEAN"
	default:
		return "TEXT"
	}
}

// Write creates <schema>.<table> if needed and copies every row in one
// transaction. target is a raw table name; it is made a safe identifier.
func (p *Postgres) Write(ctx context.Context, ds *dataset.Dataset, target string) (string, error) {
	if p.DB == nil {
		return "", ErrNoDatabase
	}

	table := p.tableIdent(target)
	cols, values := pgColumns(ds)

	tx, err := p.DB.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, createTableSQL(table, cols)); err != nil {
		return "", fmt.Errorf("create table %s: %w", table.Sanitize(), err)
	}

	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.name
	}

	n, err := tx.CopyFrom(ctx, table, names, pgx.CopyFromSlice(ds.NumRows(), func(i int) ([]any, error) {
		return pgRow(cols, values, i), nil
	}))
	if err != nil {
		return "", fmt.Errorf("copy into %s: %w", table.Sanitize(), err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}

	p.logger().Info("rows copied to postgres", "table", table.Sanitize(), "rows", n)
	return table.Sanitize(), nil
}

func (p *Postgres) tableIdent(target string) pgx.Identifier {
	schema := p.Schema
	if schema == "" {
		schema = "public"
	}
	return pgx.Identifier{schema, colname.Identifier(target)}
}

// pgColumns derives destination columns from ds. Names go through
// colname.Identifier; duplicates get a numeric suffix.
func pgColumns(ds *dataset.Dataset) ([]pgColumn, [][]dataset.Value) {
	src := ds.Columns()
	cols := make([]pgColumn, len(src))
	values := make([][]dataset.Value, len(src))
	seen := make(map[string]int)
	for i, c := range src {
		name := colname.Identifier(c.Name)
		if n := seen[name]; n > 0 {
			seen[name]++
			name = name + "_" + strconv.Itoa(n+1)
		} else {
			seen[name] = 1
		}
		values[i] = dataset.Unify(c.Values)
		cols[i] = pgColumn{name: name, kind: kindOf(values[i])}
	}
	return cols, values
}

func kindOf(vals []dataset.Value) dataset.Kind {
	for _, v := range vals {
		if !v.IsNull() {
			return v.Kind()
		}
	}
	return dataset.KindText
}

func createTableSQL(table pgx.Identifier, cols []pgColumn) string {
	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = pgx.Identifier{c.name}.Sanitize() + " " + c.sqlType()
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", table.Sanitize(), strings.Join(defs, ", "))
}

func pgRow(cols []pgColumn, values [][]dataset.Value, i int) []any {
	row := make([]any, len(cols))
	for j, c := range cols {
		v := values[j][i]
		switch c.kind {
		case dataset.KindInt:
			row[j] = ToPgInt8(v)
		case dataset.KindFloat:
			row[j] = ToPgFloat8(v)
		case dataset.KindBool:
			row[j] = ToPgBool(v)
		default:
			row[j] = ToPgText(v)
		}
	}
	return row
}
