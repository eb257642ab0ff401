package datarecording

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/tebeka/atexit"
)

// clickHouseRecorder batches rows per table and sends them with the native
// ClickHouse protocol.
type clickHouseRecorder struct {
	conn      clickhouse.Conn
	mu        sync.Mutex
	batchSize int

	tables     map[string]*table
	entryCount int
}

// NewClickHouse creates a DataRecorder that writes into a ClickHouse server,
// given as a DSN such as "clickhouse://localhost:9000/memsym?username=default".
func NewClickHouse(dsn string, batchSize int) (DataRecorder, error) {
	options, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, err
	}

	options.DialTimeout = 30 * time.Second
	options.ConnOpenStrategy = clickhouse.ConnOpenInOrder

	conn, err := clickhouse.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(context.Background()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	r := &clickHouseRecorder{
		conn:      conn,
		batchSize: batchSize,
		tables:    make(map[string]*table),
	}

	atexit.Register(func() { r.Flush() })

	return r, nil
}

func clickHouseColumnType(kind reflect.Kind) string {
	switch kind {
	case reflect.Bool:
		return "Bool"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32,
		reflect.Int64:
		return "Int64"
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32,
		reflect.Uint64:
		return "UInt64"
	case reflect.Float32, reflect.Float64:
		return "Float64"
	default:
		return "String"
	}
}

// clickHouseValues widens the fields of an entry to the Go types the column
// types of clickHouseColumnType accept.
func clickHouseValues(entry any) []any {
	value := reflect.ValueOf(entry)
	v := make([]any, 0, value.NumField())

	for i := 0; i < value.NumField(); i++ {
		field := value.Field(i)

		switch field.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32,
			reflect.Int64:
			v = append(v, field.Int())
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32,
			reflect.Uint64:
			v = append(v, field.Uint())
		case reflect.Float32, reflect.Float64:
			v = append(v, field.Float())
		case reflect.Bool:
			v = append(v, field.Bool())
		default:
			v = append(v, field.String())
		}
	}

	return v
}

func clickHouseCreateTableSQL(tableName string, sampleEntry any) string {
	structType := reflect.TypeOf(sampleEntry)
	columns := make([]string, 0, structType.NumField())

	for i := 0; i < structType.NumField(); i++ {
		field := structType.Field(i)
		columns = append(columns,
			field.Name+" "+clickHouseColumnType(field.Type.Kind()))
	}

	return fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (\n\t%s\n) ENGINE = MergeTree()\nORDER BY tuple()",
		tableName, strings.Join(columns, ",\n\t"))
}

func (r *clickHouseRecorder) CreateTable(tableName string, sampleEntry any) {
	err := checkStructFields(sampleEntry)
	if err != nil {
		panic(err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	err = r.conn.Exec(context.Background(),
		clickHouseCreateTableSQL(tableName, sampleEntry))
	if err != nil {
		panic(fmt.Errorf("failed to create table %s: %w", tableName, err))
	}

	r.tables[tableName] = &table{structType: reflect.TypeOf(sampleEntry)}
}

func (r *clickHouseRecorder) InsertData(tableName string, entry any) {
	r.mu.Lock()

	table, exists := r.tables[tableName]
	if !exists {
		r.mu.Unlock()
		panic(fmt.Sprintf("table %s does not exist", tableName))
	}

	table.entries = append(table.entries, entry)
	r.entryCount++
	full := r.entryCount >= r.batchSize

	r.mu.Unlock()

	if full {
		r.Flush()
	}
}

func (r *clickHouseRecorder) ListTables() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	tables := make([]string, 0, len(r.tables))
	for name := range r.tables {
		tables = append(tables, name)
	}

	return tables
}

func (r *clickHouseRecorder) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.entryCount == 0 {
		return
	}

	ctx := context.Background()

	for tableName, table := range r.tables {
		if len(table.entries) == 0 {
			continue
		}

		r.flushTable(ctx, tableName, table)
	}

	r.entryCount = 0
}

func (r *clickHouseRecorder) flushTable(
	ctx context.Context,
	tableName string,
	table *table,
) {
	batch, err := r.conn.PrepareBatch(ctx, "INSERT INTO "+tableName)
	if err != nil {
		panic(fmt.Errorf("failed to prepare batch for %s: %w", tableName, err))
	}

	for _, entry := range table.entries {
		err = batch.Append(clickHouseValues(entry)...)
		if err != nil {
			panic(fmt.Errorf("failed to append to batch: %w", err))
		}
	}

	err = batch.Send()
	if err != nil {
		panic(fmt.Errorf("failed to send batch: %w", err))
	}

	table.entries = table.entries[:0]
}

func (r *clickHouseRecorder) Close() error {
	r.Flush()

	err := r.conn.Close()
	if err != nil {
		return fmt.Errorf("failed to close ClickHouse connection: %w", err)
	}

	return nil
}
