package datarecording

import (
	"fmt"
	"strings"
)

// RecorderConfig selects and configures a DataRecorder backend.
type RecorderConfig struct {
	// Type is one of "sqlite", "mysql" and "clickhouse". Empty means sqlite.
	Type string

	// Path is the SQLite file name without the .sqlite3 extension.
	Path string

	// DSN is the connection string of a MySQL or ClickHouse server.
	DSN string

	BatchSize int
}

// NewWithConfig creates the DataRecorder described by the config.
func NewWithConfig(config RecorderConfig) (DataRecorder, error) {
	switch strings.ToLower(config.Type) {
	case "", "sqlite", "sqlite3":
		batchSize := config.BatchSize
		if batchSize <= 0 {
			batchSize = defaultBatchSize
		}

		w, err := newSQLiteWriter(config.Path, batchSize)
		if err != nil {
			return nil, err
		}

		return w, nil
	case "mysql":
		return NewMySQL(config.DSN, config.BatchSize)
	case "clickhouse":
		return NewClickHouse(config.DSN, config.BatchSize)
	default:
		return nil, fmt.Errorf("unknown recorder type %q", config.Type)
	}
}
