package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/GoogleCloudPlatform/sql-vector-retriever/internal/config"
	"github.com/GoogleCloudPlatform/sql-vector-retriever/internal/schema"
)

// ColumnInfo holds basic information about a database column.
type ColumnInfo struct {
	Name     string
	DataType string
}

// ColumnStats holds cardinality information collected during introspection.
type ColumnStats struct {
	DistinctCount  int64
	NullCount      int64
	DistinctValues []string
}

// Row is one result row keyed by column name.
type Row map[string]interface{}

// ResultSet is the tabular response of a native query, with the store's row
// order preserved.
type ResultSet struct {
	Columns []string
	Rows    []Row
}

// DialectHandler implements the store-specific pieces: pool creation,
// identifier quoting, vector literal syntax, distance ordering, and schema
// introspection. Dialects that cannot run vector queries (mysql, sqlserver)
// return errors from the vector methods and participate in introspection only.
type DialectHandler interface {
	CreateStandardPool(cfg config.DatabaseConfig) (*sql.DB, error)
	CreateCloudSQLPool(cfg config.DatabaseConfig) (*sql.DB, error)
	QuoteIdentifier(name string) string
	VectorLiteral(vec []float32) (string, error)
	DistanceOperator(fn schema.DistanceFunction) (string, error)
	DistanceExpression(columnExpr, operand string, fn schema.DistanceFunction) (string, error)
	ListTables(db *DB) ([]string, error)
	ListColumns(db *DB, tableName string) ([]ColumnInfo, error)
	GetColumnStats(db *DB, tableName, columnName string, sampleLimit int) (*ColumnStats, error)
	GetColumnComment(ctx context.Context, db *DB, tableName, columnName string) (string, error)
	GetTableComment(ctx context.Context, db *DB, tableName string) (string, error)
}

var (
	dialectHandlers = make(map[string]DialectHandler)
	mu              sync.RWMutex
)

// RegisterDialectHandler registers a handler under a dialect name. Handlers
// register themselves from init in their own packages.
func RegisterDialectHandler(dialect string, handler DialectHandler) {
	mu.Lock()
	defer mu.Unlock()
	dialectHandlers[dialect] = handler
}

// GetDialectHandler looks up a registered handler.
func GetDialectHandler(dialect string) (DialectHandler, error) {
	mu.RLock()
	defer mu.RUnlock()
	handler, ok := dialectHandlers[dialect]
	if !ok {
		return nil, fmt.Errorf("unsupported database dialect: %s", dialect)
	}
	return handler, nil
}

// DB holds the connection pool and dialect handler.
type DB struct {
	Pool    *sql.DB
	Handler DialectHandler
	Config  config.DatabaseConfig
}

// New opens a pool for the configured dialect and verifies connectivity.
func New(ctx context.Context, cfg config.DatabaseConfig) (*DB, error) {
	handler, err := GetDialectHandler(cfg.Dialect)
	if err != nil {
		return nil, err
	}

	var pool *sql.DB
	if strings.HasPrefix(cfg.Dialect, "cloudsql") {
		pool, err = handler.CreateCloudSQLPool(cfg)
	} else {
		pool, err = handler.CreateStandardPool(cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool for dialect %s: %w", cfg.Dialect, err)
	}

	if err := pool.PingContext(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to database (ping failed) for dialect %s: %w", cfg.Dialect, err)
	}

	return &DB{
		Pool:    pool,
		Handler: handler,
		Config:  cfg,
	}, nil
}

func (db *DB) GetConfig() config.DatabaseConfig {
	return db.Config
}

func (db *DB) Ping(ctx context.Context) error {
	if db.Pool == nil {
		return fmt.Errorf("database connection pool is not initialized")
	}
	return db.Pool.PingContext(ctx)
}

func (db *DB) Close() error {
	if db.Pool != nil {
		return db.Pool.Close()
	}
	return nil
}

// NativeQuery runs raw SQL against the store and materializes the response as
// a ResultSet with named columns.
func (db *DB) NativeQuery(ctx context.Context, query string) (*ResultSet, error) {
	if db.Pool == nil {
		return nil, fmt.Errorf("database connection pool is not initialized")
	}

	rows, err := db.Pool.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("native query failed: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read result columns: %w", err)
	}

	result := &ResultSet{Columns: columns}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		scanArgs := make([]interface{}, len(columns))
		for i := range values {
			scanArgs[i] = &values[i]
		}
		if err := rows.Scan(scanArgs...); err != nil {
			return nil, fmt.Errorf("failed to scan result row: %w", err)
		}
		row := make(Row, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating result rows: %w", err)
	}

	return result, nil
}

// Query helpers for dialect handlers.

func (db *DB) Query(query string, args ...interface{}) (*sql.Rows, error) {
	return db.Pool.Query(query, args...)
}

func (db *DB) QueryRow(query string, args ...interface{}) *sql.Row {
	return db.Pool.QueryRow(query, args...)
}

func (db *DB) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return db.Pool.QueryRowContext(ctx, query, args...)
}

func (db *DB) QuoteIdentifier(name string) string {
	return db.Handler.QuoteIdentifier(name)
}

func (db *DB) VectorLiteral(vec []float32) (string, error) {
	return db.Handler.VectorLiteral(vec)
}

func (db *DB) DistanceOperator(fn schema.DistanceFunction) (string, error) {
	return db.Handler.DistanceOperator(fn)
}

func (db *DB) DistanceExpression(columnExpr, operand string, fn schema.DistanceFunction) (string, error) {
	return db.Handler.DistanceExpression(columnExpr, operand, fn)
}

func (db *DB) ListTables() ([]string, error) {
	if db.Handler == nil {
		return nil, fmt.Errorf("dialect handler not initialized")
	}
	return db.Handler.ListTables(db)
}

func (db *DB) ListColumns(tableName string) ([]ColumnInfo, error) {
	if db.Handler == nil {
		return nil, fmt.Errorf("dialect handler not initialized")
	}
	return db.Handler.ListColumns(db, tableName)
}

func (db *DB) GetColumnStats(tableName, columnName string, sampleLimit int) (*ColumnStats, error) {
	if db.Handler == nil {
		return nil, fmt.Errorf("dialect handler not initialized")
	}
	return db.Handler.GetColumnStats(db, tableName, columnName, sampleLimit)
}

func (db *DB) GetColumnComment(ctx context.Context, tableName, columnName string) (string, error) {
	if db.Handler == nil {
		return "", fmt.Errorf("dialect handler not initialized")
	}
	return db.Handler.GetColumnComment(ctx, db, tableName, columnName)
}

func (db *DB) GetTableComment(ctx context.Context, tableName string) (string, error) {
	if db.Handler == nil {
		return "", fmt.Errorf("dialect handler not initialized")
	}
	return db.Handler.GetTableComment(ctx, db, tableName)
}
