// internal/output/sql.go
package output

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// dialect holds what differs between the SQL databases reports are written to
type dialect struct {
	name        string
	quote       func(ident string) string
	placeholder func(i int) string
	integerType string
	textType    string
}

func doubleQuote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func backtick(ident string) string {
	return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
}

func questionMark(int) string { return "?" }

func dollar(i int) string { return fmt.Sprintf("$%d", i) }

// sqlWriter creates its table on first write and inserts every row in one transaction
type sqlWriter struct {
	db      *sql.DB
	dialect dialect
	table   string
	timeout time.Duration
	created bool
}

func newSQLWriter(db *sql.DB, d dialect, table string) *sqlWriter {
	if table == "" {
		table = DefaultTable
	}
	return &sqlWriter{db: db, dialect: d, table: table, timeout: 30 * time.Second}
}

// ping verifies the connection and closes the pool when it fails
func ping(db *sql.DB, name string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping %s database: %w", name, err)
	}
	return nil
}

// Write writes data to the table
func (w *sqlWriter) Write(data []map[string]interface{}) error {
	if len(data) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	cols := columns(data)
	if !w.created {
		if err := w.createTable(ctx, data, cols); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
		w.created = true
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, w.insertStatement(cols))
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, row := range data {
		args := make([]interface{}, len(cols))
		for j, col := range cols {
			args[j] = sqlValue(row[col])
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert row %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit %s transaction: %w", w.dialect.name, err)
	}
	return nil
}

func (w *sqlWriter) createTable(ctx context.Context, data []map[string]interface{}, cols []string) error {
	defs := make([]string, len(cols))
	for i, col := range cols {
		typ := w.dialect.textType
		if isInteger(data, col) {
			typ = w.dialect.integerType
		}
		defs[i] = w.dialect.quote(col) + " " + typ
	}

	query := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", w.dialect.quote(w.table), strings.Join(defs, ", "))
	_, err := w.db.ExecContext(ctx, query)
	return err
}

func (w *sqlWriter) insertStatement(cols []string) string {
	quoted := make([]string, len(cols))
	marks := make([]string, len(cols))
	for i, col := range cols {
		quoted[i] = w.dialect.quote(col)
		marks[i] = w.dialect.placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		w.dialect.quote(w.table), strings.Join(quoted, ", "), strings.Join(marks, ", "))
}

func sqlValue(v interface{}) interface{} {
	switch t := v.(type) {
	case nil:
		return nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32:
		return t
	default:
		return stringValue(t)
	}
}

// Close closes the connection pool
func (w *sqlWriter) Close() error {
	if w.db == nil {
		return nil
	}
	err := w.db.Close()
	w.db = nil
	return err
}
