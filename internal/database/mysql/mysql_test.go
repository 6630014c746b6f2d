package mysql

import (
	"context"
	"errors"
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
	return &database.DB{Pool: mockDB, Handler: mysqlHandler{}}, mock
}

func TestQuoteIdentifier(t *testing.T) {
	h := mysqlHandler{}
	assert.Equal(t, "`orders`", h.QuoteIdentifier("orders"))
}

func TestVectorMethodsUnsupported(t *testing.T) {
	h := mysqlHandler{}
	var unsupported *database.ErrVectorUnsupported

	_, err := h.VectorLiteral([]float32{1})
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "mysql", unsupported.Dialect)

	_, err = h.DistanceOperator(schema.DistanceSquaredEuclidean)
	require.ErrorAs(t, err, &unsupported)

	_, err = h.DistanceExpression("v.embeddings", "{embeddings}", schema.DistanceSquaredEuclidean)
	require.ErrorAs(t, err, &unsupported)
}

func TestListTables(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT TABLE_NAME FROM information_schema.TABLES").
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME"}).AddRow("orders").AddRow("users"))

	tables, err := db.ListTables()
	require.NoError(t, err)
	assert.Equal(t, []string{"orders", "users"}, tables)
}

func TestListColumns(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT COLUMN_NAME, COLUMN_TYPE").
		WithArgs("orders").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME", "COLUMN_TYPE"}).
			AddRow("id", "int").
			AddRow("status", "varchar(50)"))

	columns, err := db.ListColumns("orders")
	require.NoError(t, err)
	require.Len(t, columns, 2)
	assert.Equal(t, "status", columns[1].Name)
}

func TestGetColumnCommentError(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT COLUMN_COMMENT").
		WithArgs("orders", "status").
		WillReturnError(errors.New("access denied"))

	_, err := db.GetColumnComment(context.Background(), "orders", "status")
	assert.Error(t, err)
}

func TestHandlerRegistration(t *testing.T) {
	for _, dialect := range []string{"mysql", "cloudsqlmysql"} {
		handler, err := database.GetDialectHandler(dialect)
		require.NoError(t, err)
		assert.NotNil(t, handler)
	}
}
