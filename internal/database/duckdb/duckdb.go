package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/GoogleCloudPlatform/sql-vector-retriever/internal/config"
	"github.com/GoogleCloudPlatform/sql-vector-retriever/internal/database"
	"github.com/GoogleCloudPlatform/sql-vector-retriever/internal/schema"
)

// duckdbHandler implements database.DialectHandler for file-backed DuckDB
// stores. Distance ordering uses the list_* functions rather than infix
// operators.
type duckdbHandler struct{}

var _ database.DialectHandler = (*duckdbHandler)(nil)

func (h duckdbHandler) CreateStandardPool(cfg config.DatabaseConfig) (*sql.DB, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("duckdb requires database.path to be set")
	}

	pool, err := sql.Open("duckdb", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb database: %w", err)
	}

	pool.SetMaxOpenConns(10)
	pool.SetMaxIdleConns(5)
	pool.SetConnMaxLifetime(30 * time.Minute)

	return pool, nil
}

func (h duckdbHandler) CreateCloudSQLPool(cfg config.DatabaseConfig) (*sql.DB, error) {
	return nil, fmt.Errorf("duckdb does not support Cloud SQL connections")
}

func (h duckdbHandler) QuoteIdentifier(name string) string {
	name = strings.Replace(name, `"`, `""`, -1)
	return fmt.Sprintf(`"%s"`, name)
}

// VectorLiteral renders a DuckDB list literal.
func (h duckdbHandler) VectorLiteral(vec []float32) (string, error) {
	if len(vec) == 0 {
		return "", fmt.Errorf("cannot render empty vector literal")
	}
	return fmt.Sprintf("[%s]", database.FormatVector(vec)), nil
}

// DistanceOperator returns empty: DuckDB orders by distance functions, not
// infix operators.
func (h duckdbHandler) DistanceOperator(fn schema.DistanceFunction) (string, error) {
	return "", nil
}

func (h duckdbHandler) DistanceExpression(columnExpr, operand string, fn schema.DistanceFunction) (string, error) {
	switch fn {
	case schema.DistanceSquaredEuclidean:
		return fmt.Sprintf("list_distance(%s, %s)", columnExpr, operand), nil
	case schema.DistanceCosine:
		return fmt.Sprintf("list_cosine_distance(%s, %s)", columnExpr, operand), nil
	case schema.DistanceNegativeDotProduct:
		return fmt.Sprintf("-list_inner_product(%s, %s)", columnExpr, operand), nil
	default:
		return "", fmt.Errorf("unsupported distance function for duckdb: %s", fn)
	}
}

func (h duckdbHandler) ListTables(db *database.DB) ([]string, error) {
	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'main'
		AND table_type = 'BASE TABLE'
		ORDER BY table_name;`

	rows, err := db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("error querying tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			return nil, fmt.Errorf("error scanning table name: %w", err)
		}
		tables = append(tables, tableName)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating table rows: %w", err)
	}
	return tables, nil
}

func (h duckdbHandler) ListColumns(db *database.DB, tableName string) ([]database.ColumnInfo, error) {
	query := `
		SELECT column_name, data_type
		FROM information_schema.columns
		WHERE table_schema = 'main'
		AND table_name = ?
		ORDER BY ordinal_position;`

	rows, err := db.Query(query, tableName)
	if err != nil {
		return nil, fmt.Errorf("error querying columns for table %s: %w", tableName, err)
	}
	defer rows.Close()

	var columns []database.ColumnInfo
	for rows.Next() {
		var colInfo database.ColumnInfo
		if err := rows.Scan(&colInfo.Name, &colInfo.DataType); err != nil {
			return nil, fmt.Errorf("error scanning column name and data type: %w", err)
		}
		columns = append(columns, colInfo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating column rows: %w", err)
	}
	return columns, nil
}

func (h duckdbHandler) GetColumnStats(db *database.DB, tableName, columnName string, sampleLimit int) (*database.ColumnStats, error) {
	quotedTable := h.QuoteIdentifier(tableName)
	quotedColumn := h.QuoteIdentifier(columnName)

	stats := &database.ColumnStats{}

	distinctQuery := fmt.Sprintf("SELECT COUNT(DISTINCT %s) FROM %s", quotedColumn, quotedTable)
	if err := db.QueryRow(distinctQuery).Scan(&stats.DistinctCount); err != nil {
		return nil, fmt.Errorf("failed to get distinct count: %w", err)
	}

	nullQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s IS NULL", quotedTable, quotedColumn)
	if err := db.QueryRow(nullQuery).Scan(&stats.NullCount); err != nil {
		return nil, fmt.Errorf("failed to get null count: %w", err)
	}

	if sampleLimit > 0 {
		sampleQuery := fmt.Sprintf("SELECT DISTINCT CAST(%s AS VARCHAR) FROM %s WHERE %s IS NOT NULL ORDER BY 1 LIMIT %d",
			quotedColumn, quotedTable, quotedColumn, sampleLimit)
		rows, err := db.Query(sampleQuery)
		if err != nil {
			return nil, fmt.Errorf("failed to get distinct values: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var value string
			if err := rows.Scan(&value); err != nil {
				return nil, fmt.Errorf("error scanning distinct value: %w", err)
			}
			stats.DistinctValues = append(stats.DistinctValues, value)
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("error iterating distinct values: %w", err)
		}
	}

	return stats, nil
}

// DuckDB has no comment catalog accessible through information_schema;
// introspection falls back to empty descriptions.
func (h duckdbHandler) GetColumnComment(ctx context.Context, db *database.DB, tableName, columnName string) (string, error) {
	return "", nil
}

func (h duckdbHandler) GetTableComment(ctx context.Context, db *database.DB, tableName string) (string, error) {
	return "", nil
}

func init() {
	database.RegisterDialectHandler("duckdb", duckdbHandler{})
}
