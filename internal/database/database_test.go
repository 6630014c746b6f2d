package database

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoogleCloudPlatform/sql-vector-retriever/internal/config"
	"github.com/GoogleCloudPlatform/sql-vector-retriever/internal/schema"
)

type stubHandler struct{}

func (stubHandler) CreateStandardPool(cfg config.DatabaseConfig) (*sql.DB, error) { return nil, nil }
func (stubHandler) CreateCloudSQLPool(cfg config.DatabaseConfig) (*sql.DB, error) { return nil, nil }
func (stubHandler) QuoteIdentifier(name string) string                            { return name }
func (stubHandler) VectorLiteral(vec []float32) (string, error)                   { return "", nil }
func (stubHandler) DistanceOperator(fn schema.DistanceFunction) (string, error)   { return "", nil }
func (stubHandler) DistanceExpression(columnExpr, operand string, fn schema.DistanceFunction) (string, error) {
	return "", nil
}
func (stubHandler) ListTables(db *DB) ([]string, error)                       { return nil, nil }
func (stubHandler) ListColumns(db *DB, tableName string) ([]ColumnInfo, error) { return nil, nil }
func (stubHandler) GetColumnStats(db *DB, tableName, columnName string, sampleLimit int) (*ColumnStats, error) {
	return nil, nil
}
func (stubHandler) GetColumnComment(ctx context.Context, db *DB, tableName, columnName string) (string, error) {
	return "", nil
}
func (stubHandler) GetTableComment(ctx context.Context, db *DB, tableName string) (string, error) {
	return "", nil
}

func TestDialectHandlerRegistry(t *testing.T) {
	RegisterDialectHandler("stub", stubHandler{})

	handler, err := GetDialectHandler("stub")
	require.NoError(t, err)
	assert.NotNil(t, handler)

	_, err = GetDialectHandler("no-such-dialect")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database dialect")
}

func TestNativeQuery(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	query := "SELECT content, metadata FROM embeddings ORDER BY 1 LIMIT 2"
	mock.ExpectQuery(regexp.QuoteMeta(query)).WillReturnRows(
		sqlmock.NewRows([]string{"content", "metadata"}).
			AddRow("Chunk1", `{"key1": "value1"}`).
			AddRow("Chunk2", nil))

	db := &DB{Pool: mockDB}
	rs, err := db.NativeQuery(context.Background(), query)
	require.NoError(t, err)

	assert.Equal(t, []string{"content", "metadata"}, rs.Columns)
	require.Len(t, rs.Rows, 2)
	assert.Equal(t, "Chunk1", rs.Rows[0]["content"])
	assert.Equal(t, `{"key1": "value1"}`, rs.Rows[0]["metadata"])
	assert.Nil(t, rs.Rows[1]["metadata"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNativeQueryError(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	mock.ExpectQuery("SELECT boom").WillReturnError(errors.New("relation does not exist"))

	db := &DB{Pool: mockDB}
	_, err = db.NativeQuery(context.Background(), "SELECT boom")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "native query failed")
}

func TestNativeQueryNoPool(t *testing.T) {
	db := &DB{}
	_, err := db.NativeQuery(context.Background(), "SELECT 1")
	require.Error(t, err)
}

func TestFormatVector(t *testing.T) {
	assert.Equal(t, "0,1,2", FormatVector([]float32{0, 1, 2}))
	assert.Equal(t, "0.5,-1.25", FormatVector([]float32{0.5, -1.25}))
	assert.Equal(t, "", FormatVector(nil))
}

func TestErrVectorUnsupported(t *testing.T) {
	err := &ErrVectorUnsupported{Dialect: "mysql"}
	assert.Contains(t, err.Error(), "mysql")
}
