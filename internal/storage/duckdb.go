package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/marcboeker/go-duckdb"
)

const duckTable = "logbook"

// DuckDBTable keeps the log in a DuckDB database file so it can be queried
// with SQL alongside the other plant data. Row order is kept in a hidden
// seq column.
type DuckDBTable struct {
	db *sql.DB
}

// NewDuckDBTable opens (creating if needed) the database at path.
func NewDuckDBTable(path string) (*DuckDBTable, error) {
	connector, err := duckdb.NewConnector(path, nil)
	if err != nil {
		return nil, fmt.Errorf("creating duckdb connector: %w", err)
	}
	db := sql.OpenDB(connector)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("opening duckdb %s: %w", path, err)
	}
	return &DuckDBTable{db: db}, nil
}

func (t *DuckDBTable) Exists(ctx context.Context) (bool, error) {
	var n int
	err := t.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM information_schema.tables WHERE table_name = ?", duckTable,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking table: %w", err)
	}
	return n > 0, nil
}

func (t *DuckDBTable) Read(ctx context.Context) ([][]string, error) {
	ok, err := t.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("table %s: %w", duckTable, os.ErrNotExist)
	}

	header, err := t.columns(ctx)
	if err != nil {
		return nil, err
	}

	quoted := make([]string, len(header))
	for i, c := range header {
		quoted[i] = "CAST(" + quoteIdent(c) + " AS VARCHAR)"
	}
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY seq", strings.Join(quoted, ", "), duckTable)
	rows, err := t.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying rows: %w", err)
	}
	defer rows.Close()

	out := [][]string{header}
	for rows.Next() {
		cells := make([]sql.NullString, len(header))
		dest := make([]interface{}, len(header))
		for i := range cells {
			dest[i] = &cells[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		row := make([]string, len(header))
		for i, c := range cells {
			row[i] = c.String
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (t *DuckDBTable) columns(ctx context.Context) ([]string, error) {
	rows, err := t.db.QueryContext(ctx,
		"SELECT column_name FROM information_schema.columns WHERE table_name = ? ORDER BY ordinal_position", duckTable)
	if err != nil {
		return nil, fmt.Errorf("reading columns: %w", err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		if name != "seq" {
			cols = append(cols, name)
		}
	}
	return cols, rows.Err()
}

// Write recreates the table inside one transaction.
func (t *DuckDBTable) Write(ctx context.Context, rows [][]string) error {
	if len(rows) == 0 {
		return fmt.Errorf("write requires a header row")
	}
	header := rows[0]

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	defs := []string{"seq INTEGER"}
	for _, c := range header {
		typ := "VARCHAR"
		if c == ValueColumn {
			typ = "DOUBLE"
		}
		defs = append(defs, quoteIdent(c)+" "+typ)
	}
	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+duckTable); err != nil {
		return fmt.Errorf("dropping table: %w", err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", duckTable, strings.Join(defs, ", "))); err != nil {
		return fmt.Errorf("creating table: %w", err)
	}

	if len(rows) > 1 {
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(header)+1), ", ")
		stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s VALUES (%s)", duckTable, placeholders))
		if err != nil {
			return fmt.Errorf("preparing insert: %w", err)
		}
		defer stmt.Close()

		for i, row := range rows[1:] {
			args := make([]interface{}, 0, len(header)+1)
			args = append(args, i+1)
			for j, col := range header {
				var cell string
				if j < len(row) {
					cell = row[j]
				}
				if col == ValueColumn {
					v, err := strconv.ParseFloat(cell, 64)
					if err != nil {
						return fmt.Errorf("row %d: invalid %s %q", i+1, ValueColumn, cell)
					}
					args = append(args, v)
					continue
				}
				args = append(args, cell)
			}
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return fmt.Errorf("inserting row %d: %w", i+1, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing: %w", err)
	}
	return nil
}

func (t *DuckDBTable) Close() error {
	return t.db.Close()
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
