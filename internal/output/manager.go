// internal/output/manager.go
package output

import (
	"context"
	"fmt"
	"time"

	"github.com/valpere/uiverify/internal/config"
	"github.com/valpere/uiverify/internal/errors"
	"github.com/valpere/uiverify/internal/utils"
)

// Recorder receives the outcome of every report write
type Recorder interface {
	RecordReport(format string, duration time.Duration, err error)
}

// Manager writes run records to every configured report sink
type Manager struct {
	configs  []config.OutputConfig
	service  *errors.Service
	logger   utils.Logger
	recorder Recorder
}

// NewManager creates a new output manager
func NewManager(configs []config.OutputConfig, logger utils.Logger) *Manager {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &Manager{
		configs: configs,
		service: errors.NewService(),
		logger:  logger,
	}
}

// WithRecorder reports write outcomes to r
func (m *Manager) WithRecorder(r Recorder) *Manager {
	m.recorder = r
	return m
}

// WithRetryConfig replaces the retry settings for transient write failures
func (m *Manager) WithRetryConfig(cfg errors.RetryConfig) *Manager {
	m.service.WithRetryConfig(cfg)
	return m
}

// GetWriter returns the writer for one report configuration
func GetWriter(cfg config.OutputConfig) (Writer, error) {
	switch OutputFormat(cfg.Format) {
	case FormatJSON:
		return NewJSONWriter(cfg.File)
	case FormatYAML:
		return NewYAMLWriter(cfg.File)
	case FormatCSV:
		return NewCSVWriter(cfg.File)
	case FormatExcel:
		return NewExcelWriter(cfg.File)
	case FormatSQLite:
		return NewSQLiteWriter(cfg.File, cfg.Table)
	case FormatPostgreSQL:
		return NewPostgreSQLWriter(cfg.ConnectionString, cfg.Table)
	case FormatMySQL:
		return NewMySQLWriter(cfg.ConnectionString, cfg.Database, cfg.Table)
	case FormatMongoDB:
		collection := cfg.Collection
		if collection == "" {
			collection = cfg.Table
		}
		return NewMongoDBWriter(cfg.ConnectionString, cfg.Database, collection)
	default:
		return nil, fmt.Errorf("unsupported output format: %s", cfg.Format)
	}
}

// Write writes data to every sink. A failing sink does not stop the others;
// all failures are returned together.
func (m *Manager) Write(ctx context.Context, data []map[string]interface{}) error {
	var errs []error
	for _, cfg := range m.configs {
		start := time.Now()
		err := m.service.ExecuteWithRetry(ctx, func() error {
			return writeOnce(cfg, data)
		}, cfg.Format+" report")

		if m.recorder != nil {
			m.recorder.RecordReport(cfg.Format, time.Since(start), err)
		}
		if err != nil {
			m.logger.Errorf("%s report failed: %v", cfg.Format, err)
			errs = append(errs, err)
			continue
		}
		m.logger.Infof("%s report written (%d records) to %s", cfg.Format, len(data), target(cfg))
	}
	return errors.Join(errs...)
}

func writeOnce(cfg config.OutputConfig, data []map[string]interface{}) error {
	writer, err := GetWriter(cfg)
	if err != nil {
		return fmt.Errorf("failed to get writer: %w", err)
	}
	if err := writer.Write(data); err != nil {
		writer.Close()
		return err
	}
	return writer.Close()
}

func target(cfg config.OutputConfig) string {
	if cfg.File != "" {
		return cfg.File
	}
	if cfg.Database != "" {
		return cfg.Database
	}
	return cfg.Format
}
