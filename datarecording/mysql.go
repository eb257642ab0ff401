package datarecording

import (
	"database/sql"
	"fmt"
	"reflect"

	// Need to use MySQL connections.
	_ "github.com/go-sql-driver/mysql"
)

var mysqlDialect = dialect{
	name:       "mysql",
	columnType: mysqlColumnType,
}

func mysqlColumnType(kind reflect.Kind) string {
	switch kind {
	case reflect.Bool:
		return "BOOLEAN"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32,
		reflect.Int64:
		return "BIGINT"
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32,
		reflect.Uint64:
		return "BIGINT UNSIGNED"
	case reflect.Float32, reflect.Float64:
		return "DOUBLE"
	default:
		return "TEXT"
	}
}

// NewMySQL creates a DataRecorder that writes into an existing MySQL
// database, given as a go-sql-driver DSN such as
// "user:password@tcp(localhost:3306)/memsym".
func NewMySQL(dsn string, batchSize int) (DataRecorder, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	err = db.Ping()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL: %w", err)
	}

	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	return &sqlWriter{
		DB:        db,
		dialect:   mysqlDialect,
		batchSize: batchSize,
		tables:    make(map[string]*table),
	}, nil
}
