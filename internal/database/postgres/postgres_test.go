package postgres

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoogleCloudPlatform/sql-vector-retriever/internal/database"
	"github.com/GoogleCloudPlatform/sql-vector-retriever/internal/schema"
)

func newMockDB(t *testing.T) (*database.DB, sqlmock.Sqlmock) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return &database.DB{Pool: mockDB, Handler: postgresHandler{}}, mock
}

func TestQuoteIdentifier(t *testing.T) {
	h := postgresHandler{}
	assert.Equal(t, `"source_documents"`, h.QuoteIdentifier("source_documents"))
	assert.Equal(t, `"we""ird"`, h.QuoteIdentifier(`we"ird`))
}

func TestVectorLiteral(t *testing.T) {
	h := postgresHandler{}

	lit, err := h.VectorLiteral([]float32{0, 1, 2.5})
	require.NoError(t, err)
	assert.Equal(t, "'[0,1,2.5]'", lit)

	_, err = h.VectorLiteral(nil)
	assert.Error(t, err)
}

func TestDistanceOperator(t *testing.T) {
	h := postgresHandler{}
	tests := []struct {
		fn   schema.DistanceFunction
		want string
	}{
		{schema.DistanceSquaredEuclidean, "<->"},
		{schema.DistanceNegativeDotProduct, "<#>"},
		{schema.DistanceCosine, "<=>"},
	}
	for _, tt := range tests {
		op, err := h.DistanceOperator(tt.fn)
		require.NoError(t, err)
		assert.Equal(t, tt.want, op)
	}

	_, err := h.DistanceOperator("hamming")
	assert.Error(t, err)
}

func TestDistanceExpression(t *testing.T) {
	h := postgresHandler{}
	expr, err := h.DistanceExpression("v.embeddings", "{embeddings}", schema.DistanceSquaredEuclidean)
	require.NoError(t, err)
	assert.Equal(t, "v.embeddings <-> '{embeddings}'", expr)
}

func TestListTables(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT table_name").WillReturnRows(
		sqlmock.NewRows([]string{"table_name"}).
			AddRow("plants").
			AddRow("source_documents"))

	tables, err := db.ListTables()
	require.NoError(t, err)
	assert.Equal(t, []string{"plants", "source_documents"}, tables)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListColumns(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT column_name, data_type").
		WithArgs("source_documents").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type"}).
			AddRow("Id", "integer").
			AddRow("document_type", "text"))

	columns, err := db.ListColumns("source_documents")
	require.NoError(t, err)
	require.Len(t, columns, 2)
	assert.Equal(t, database.ColumnInfo{Name: "Id", DataType: "integer"}, columns[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetColumnStats(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(DISTINCT "document_type") FROM "source_documents"`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM "source_documents" WHERE "document_type" IS NULL`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT DISTINCT "document_type"::text FROM "source_documents" WHERE "document_type" IS NOT NULL ORDER BY 1 LIMIT 21`)).
		WillReturnRows(sqlmock.NewRows([]string{"document_type"}).AddRow("LIC").AddRow("WST"))

	stats, err := db.GetColumnStats("source_documents", "document_type", 21)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.DistinctCount)
	assert.Equal(t, int64(0), stats.NullCount)
	assert.Equal(t, []string{"LIC", "WST"}, stats.DistinctValues)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetColumnComment(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT description").
		WithArgs("source_documents", "document_type").
		WillReturnRows(sqlmock.NewRows([]string{"description"}).AddRow("Kind of filing."))

	comment, err := db.GetColumnComment(context.Background(), "source_documents", "document_type")
	require.NoError(t, err)
	assert.Equal(t, "Kind of filing.", comment)
}

func TestGetTableCommentNoRows(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT obj_description").
		WithArgs("source_documents").
		WillReturnRows(sqlmock.NewRows([]string{"obj_description"}))

	comment, err := db.GetTableComment(context.Background(), "source_documents")
	require.NoError(t, err)
	assert.Empty(t, comment)
}

func TestHandlerRegistration(t *testing.T) {
	for _, dialect := range []string{"postgres", "cloudsqlpostgres"} {
		handler, err := database.GetDialectHandler(dialect)
		require.NoError(t, err)
		assert.NotNil(t, handler)
	}
}
