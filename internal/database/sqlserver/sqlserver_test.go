package sqlserver

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoogleCloudPlatform/sql-vector-retriever/internal/database"
	"github.com/GoogleCloudPlatform/sql-vector-retriever/internal/schema"
)

func TestQuoteIdentifier(t *testing.T) {
	h := sqlServerHandler{}
	assert.Equal(t, "[orders]", h.QuoteIdentifier("orders"))
}

func TestVectorMethodsUnsupported(t *testing.T) {
	h := sqlServerHandler{}
	var unsupported *database.ErrVectorUnsupported

	_, err := h.VectorLiteral([]float32{1})
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "sqlserver", unsupported.Dialect)

	_, err = h.DistanceOperator(schema.DistanceSquaredEuclidean)
	require.ErrorAs(t, err, &unsupported)

	_, err = h.DistanceExpression("v.embeddings", "{embeddings}", schema.DistanceSquaredEuclidean)
	require.ErrorAs(t, err, &unsupported)
}

func TestListTables(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()
	db := &database.DB{Pool: mockDB, Handler: sqlServerHandler{}}

	mock.ExpectQuery("SELECT TABLE_NAME").
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME"}).AddRow("orders"))

	tables, err := db.ListTables()
	require.NoError(t, err)
	assert.Equal(t, []string{"orders"}, tables)
}

func TestHandlerRegistration(t *testing.T) {
	for _, dialect := range []string{"sqlserver", "cloudsqlsqlserver"} {
		handler, err := database.GetDialectHandler(dialect)
		require.NoError(t, err)
		assert.NotNil(t, handler)
	}
}
