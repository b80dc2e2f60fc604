// internal/output/mysql.go
package output

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
)

var mysqlDialect = dialect{
	name:        "MySQL",
	quote:       backtick,
	placeholder: questionMark,
	integerType: "BIGINT",
	textType:    "TEXT",
}

// MySQLWriter writes data to MySQL database
type MySQLWriter struct {
	*sqlWriter
}

// NewMySQLWriter creates a new MySQL writer. database overrides the one in the DSN when set.
func NewMySQLWriter(connectionString, database, table string) (*MySQLWriter, error) {
	if connectionString == "" {
		return nil, fmt.Errorf("MySQL connection string is required")
	}

	cfg, err := mysql.ParseDSN(connectionString)
	if err != nil {
		return nil, fmt.Errorf("invalid MySQL connection string: %w", err)
	}
	if database != "" {
		cfg.DBName = database
	}
	if cfg.DBName == "" {
		return nil, fmt.Errorf("MySQL database name is required")
	}
	cfg.ParseTime = true
	if cfg.Params == nil {
		cfg.Params = map[string]string{}
	}
	if _, ok := cfg.Params["charset"]; !ok {
		cfg.Params["charset"] = "utf8mb4"
	}

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MySQL: %w", err)
	}
	if err := ping(db, "MySQL"); err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	return &MySQLWriter{sqlWriter: newSQLWriter(db, mysqlDialect, table)}, nil
}
