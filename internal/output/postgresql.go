// internal/output/postgresql.go
package output

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

var postgresDialect = dialect{
	name:        "PostgreSQL",
	quote:       doubleQuote,
	placeholder: dollar,
	integerType: "BIGINT",
	textType:    "TEXT",
}

// PostgreSQLWriter writes data to PostgreSQL database
type PostgreSQLWriter struct {
	*sqlWriter
}

// NewPostgreSQLWriter creates a new PostgreSQL writer
func NewPostgreSQLWriter(connectionString, table string) (*PostgreSQLWriter, error) {
	if connectionString == "" {
		return nil, fmt.Errorf("PostgreSQL connection string is required")
	}

	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	if err := ping(db, "PostgreSQL"); err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &PostgreSQLWriter{sqlWriter: newSQLWriter(db, postgresDialect, table)}, nil
}
