package duckdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoogleCloudPlatform/sql-vector-retriever/internal/config"
	"github.com/GoogleCloudPlatform/sql-vector-retriever/internal/database"
	"github.com/GoogleCloudPlatform/sql-vector-retriever/internal/schema"
)

func TestVectorLiteral(t *testing.T) {
	h := duckdbHandler{}

	lit, err := h.VectorLiteral([]float32{0, 1, 2.5})
	require.NoError(t, err)
	assert.Equal(t, "[0,1,2.5]", lit)

	_, err = h.VectorLiteral(nil)
	assert.Error(t, err)
}

func TestDistanceOperatorIsEmpty(t *testing.T) {
	h := duckdbHandler{}
	op, err := h.DistanceOperator(schema.DistanceSquaredEuclidean)
	require.NoError(t, err)
	assert.Empty(t, op, "duckdb orders by functions, not infix operators")
}

func TestDistanceExpression(t *testing.T) {
	h := duckdbHandler{}
	tests := []struct {
		fn   schema.DistanceFunction
		want string
	}{
		{schema.DistanceSquaredEuclidean, "list_distance(v.embeddings, {embeddings})"},
		{schema.DistanceCosine, "list_cosine_distance(v.embeddings, {embeddings})"},
		{schema.DistanceNegativeDotProduct, "-list_inner_product(v.embeddings, {embeddings})"},
	}
	for _, tt := range tests {
		expr, err := h.DistanceExpression("v.embeddings", "{embeddings}", tt.fn)
		require.NoError(t, err)
		assert.Equal(t, tt.want, expr)
	}

	_, err := h.DistanceExpression("v.embeddings", "{embeddings}", "hamming")
	assert.Error(t, err)
}

func TestQuoteIdentifier(t *testing.T) {
	h := duckdbHandler{}
	assert.Equal(t, `"chunks"`, h.QuoteIdentifier("chunks"))
}

func TestCloudSQLUnsupported(t *testing.T) {
	h := duckdbHandler{}
	_, err := h.CreateCloudSQLPool(config.DatabaseConfig{})
	assert.Error(t, err)
}

func TestHandlerRegistration(t *testing.T) {
	handler, err := database.GetDialectHandler("duckdb")
	require.NoError(t, err)
	assert.NotNil(t, handler)
}
