// internal/output/types.go
package output

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// OutputFormat names a report sink
type OutputFormat string

const (
	FormatJSON       OutputFormat = "json"
	FormatYAML       OutputFormat = "yaml"
	FormatCSV        OutputFormat = "csv"
	FormatExcel      OutputFormat = "excel"
	FormatSQLite     OutputFormat = "sqlite"
	FormatPostgreSQL OutputFormat = "postgresql"
	FormatMySQL      OutputFormat = "mysql"
	FormatMongoDB    OutputFormat = "mongodb"
)

// DefaultTable is used by database sinks when no table or collection is configured
const DefaultTable = "verification_runs"

// Writer persists report rows. Each row is one flattened run result.
type Writer interface {
	Write(data []map[string]interface{}) error
	Close() error
}

// RecordColumns is the leading column order of tabular reports. Columns a
// record carries beyond these follow in alphabetical order.
var RecordColumns = []string{
	"scenario",
	"status",
	"started_at",
	"duration_ms",
	"steps",
	"failed_step",
	"error_kind",
	"error",
}

// columns returns the union of the keys of all rows, RecordColumns first
func columns(data []map[string]interface{}) []string {
	set := make(map[string]bool)
	for _, row := range data {
		for k := range row {
			set[k] = true
		}
	}

	out := make([]string, 0, len(set))
	for _, k := range RecordColumns {
		if set[k] {
			out = append(out, k)
			delete(set, k)
		}
	}
	rest := make([]string, 0, len(set))
	for k := range set {
		rest = append(rest, k)
	}
	sort.Strings(rest)
	return append(out, rest...)
}

// stringValue renders a cell for text sinks
func stringValue(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	case time.Duration:
		return t.String()
	case []byte:
		return string(t)
	case map[string]interface{}, []interface{}:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(data)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// isInteger reports whether every non-nil value of column in data is an integer
func isInteger(data []map[string]interface{}, column string) bool {
	seen := false
	for _, row := range data {
		v, ok := row[column]
		if !ok || v == nil {
			continue
		}
		switch v.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32:
			seen = true
		default:
			return false
		}
	}
	return seen
}
