// Package datarecording stores flat Go structs as rows of database tables.
package datarecording

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/fatih/structs"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// DataRecorder is a backend that can record and store data
type DataRecorder interface {
	// CreateTable creates a new table whose columns are the fields of the
	// sample entry.
	CreateTable(tableName string, sampleEntry any)

	// InsertData writes an entry into a table that already exists. The entry
	// must have the same type as the sample entry of the table.
	InsertData(tableName string, entry any)

	// ListTables returns a slice containing names of all tables
	ListTables() []string

	// Flush flushes all the buffered entries into the database
	Flush()

	// Close flushes and releases the database.
	Close() error
}

// ErrInvalidEntry is returned for entries that cannot be mapped to a row.
var ErrInvalidEntry = errors.New("entry is invalid")

const defaultBatchSize = 100000

// New creates a DataRecorder that writes into the SQLite file <path>.sqlite3.
// An empty path picks a unique name. It panics if the file already exists.
func New(path string) DataRecorder {
	w, err := newSQLiteWriter(path, defaultBatchSize)
	if err != nil {
		panic(err)
	}

	atexit.Register(func() { w.Flush() })

	return w
}

// NewWithDB creates a new DataRecorder with a given SQLite database.
func NewWithDB(db *sql.DB) DataRecorder {
	w := &sqlWriter{
		DB:        db,
		dialect:   sqliteDialect,
		batchSize: defaultBatchSize,
		tables:    make(map[string]*table),
	}

	atexit.Register(func() { w.Flush() })

	return w
}

func newSQLiteWriter(path string, batchSize int) (*sqlWriter, error) {
	if path == "" {
		path = "memsym_recording_" + xid.New().String()
	}

	filename := path + ".sqlite3"

	_, err := os.Stat(filename)
	if err == nil {
		return nil, fmt.Errorf("file %s already exists", filename)
	}

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(os.Stderr, "Database created for recording: %s\n", filename)

	return &sqlWriter{
		DB:        db,
		dialect:   sqliteDialect,
		dbName:    filename,
		batchSize: batchSize,
		tables:    make(map[string]*table),
	}, nil
}

type table struct {
	structType reflect.Type
	entries    []any
}

// A dialect captures what differs between the SQL servers behind sqlWriter.
type dialect struct {
	name string

	// columnType returns the SQL type of a column. An empty type leaves the
	// column untyped.
	columnType func(kind reflect.Kind) string
}

var sqliteDialect = dialect{
	name:       "sqlite3",
	columnType: func(reflect.Kind) string { return "" },
}

// sqlWriter writes data into a database/sql database
type sqlWriter struct {
	*sql.DB

	dialect    dialect
	dbName     string
	tables     map[string]*table
	batchSize  int
	entryCount int
}

func isAllowedKind(kind reflect.Kind) bool {
	switch kind {
	case
		reflect.Bool,
		reflect.Int,
		reflect.Int8,
		reflect.Int16,
		reflect.Int32,
		reflect.Int64,
		reflect.Uint,
		reflect.Uint8,
		reflect.Uint16,
		reflect.Uint32,
		reflect.Uint64,
		reflect.Float32,
		reflect.Float64,
		reflect.String:
		return true
	default:
		return false
	}
}

func checkStructFields(entry any) error {
	types := reflect.TypeOf(entry)
	if types == nil || types.Kind() != reflect.Struct {
		return ErrInvalidEntry
	}

	for i := 0; i < types.NumField(); i++ {
		field := types.Field(i)

		if !field.IsExported() || !isAllowedKind(field.Type.Kind()) {
			return fmt.Errorf("%w: field %s", ErrInvalidEntry, field.Name)
		}
	}

	return nil
}

// rowValues returns the fields of a struct, in declaration order.
func rowValues(entry any) []any {
	value := reflect.ValueOf(entry)
	v := make([]any, 0, value.NumField())

	for i := 0; i < value.NumField(); i++ {
		v = append(v, value.Field(i).Interface())
	}

	return v
}

func (t *sqlWriter) CreateTable(tableName string, sampleEntry any) {
	err := checkStructFields(sampleEntry)
	if err != nil {
		panic(err)
	}

	structType := reflect.TypeOf(sampleEntry)
	columns := make([]string, 0, structType.NumField())

	for i := 0; i < structType.NumField(); i++ {
		field := structType.Field(i)
		column := field.Name

		sqlType := t.dialect.columnType(field.Type.Kind())
		if sqlType != "" {
			column += " " + sqlType
		}

		columns = append(columns, column)
	}

	createTableSQL := `CREATE TABLE ` + tableName +
		` (` + "\n\t" + strings.Join(columns, ", \n\t") + "\n" + `);`
	t.mustExecute(createTableSQL)

	t.tables[tableName] = &table{
		structType: structType,
	}
}

func (t *sqlWriter) InsertData(tableName string, entry any) {
	table, exists := t.tables[tableName]
	if !exists {
		panic(fmt.Sprintf("table %s does not exist", tableName))
	}

	if reflect.TypeOf(entry) != table.structType {
		panic(fmt.Sprintf("entry of type %T does not fit table %s",
			entry, tableName))
	}

	table.entries = append(table.entries, entry)

	t.entryCount++
	if t.entryCount >= t.batchSize {
		t.Flush()
	}
}

func (t *sqlWriter) ListTables() []string {
	tables := make([]string, 0, len(t.tables))
	for table := range t.tables {
		tables = append(tables, table)
	}

	return tables
}

func (t *sqlWriter) Flush() {
	if t.entryCount == 0 {
		return
	}

	tx, err := t.Begin()
	if err != nil {
		panic(err)
	}

	for tableName, table := range t.tables {
		if len(table.entries) == 0 {
			continue
		}

		stmt, err := tx.Prepare(t.insertStatement(tableName, table.entries[0]))
		if err != nil {
			panic(err)
		}

		for _, entry := range table.entries {
			_, err := stmt.Exec(rowValues(entry)...)
			if err != nil {
				panic(err)
			}
		}

		stmt.Close()
		table.entries = nil
	}

	err = tx.Commit()
	if err != nil {
		panic(err)
	}

	t.entryCount = 0
}

func (t *sqlWriter) Close() error {
	t.Flush()

	return t.DB.Close()
}

func (t *sqlWriter) mustExecute(query string) sql.Result {
	res, err := t.Exec(query)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to execute: %s\n", query)
		panic(err)
	}

	return res
}

func (t *sqlWriter) insertStatement(table string, entry any) string {
	n := structs.Names(entry)
	for i := 0; i < len(n); i++ {
		n[i] = "?"
	}

	return "INSERT INTO " + table + " VALUES (" + strings.Join(n, ", ") + ")"
}
