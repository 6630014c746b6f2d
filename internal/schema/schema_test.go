package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSearchKwargsLimit(t *testing.T) {
	tests := []struct {
		name string
		k    int
		want int
	}{
		{name: "unset defaults to 5", k: 0, want: 5},
		{name: "negative defaults to 5", k: -3, want: 5},
		{name: "explicit value", k: 12, want: 12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SearchKwargs{K: tt.k}.Limit())
		})
	}
}

func TestDistanceFunctionValidate(t *testing.T) {
	assert.NoError(t, DistanceSquaredEuclidean.Validate())
	assert.NoError(t, DistanceCosine.Validate())
	assert.NoError(t, DistanceNegativeDotProduct.Validate())
	assert.Error(t, DistanceFunction("").Validate())
	assert.Error(t, DistanceFunction("manhattan").Validate())
}

func TestHasTable(t *testing.T) {
	schemas := []MetadataSchema{
		{Table: "plant"},
		{Table: "unit"},
	}
	assert.True(t, HasTable(schemas, "plant"))
	assert.False(t, HasTable(schemas, "document_unit"))
}

func TestRenderContext(t *testing.T) {
	schemas := []MetadataSchema{
		{
			Table:       "source_documents",
			Description: "Contains source documents",
			Columns: []ColumnSchema{
				{Name: "Id", Type: "int", Description: "Unique ID as primary key of doc"},
				{Name: "Type", Type: "int", Description: "Document Type", Values: map[string]string{
					"1": "Unknown",
					"2": "Site Audit",
				}},
			},
		},
		{
			Table:       "plant",
			Description: "Contains information about specific power plants",
			Columns: []ColumnSchema{
				{Name: "PlantName", Type: "str", Description: "The name of the plant"},
			},
		},
	}

	got := RenderContext(schemas)

	assert.Contains(t, got, "Table: source_documents")
	assert.Contains(t, got, "Description: Contains source documents")
	assert.Contains(t, got, "- Id (int): Unique ID as primary key of doc")
	// Enumeration values are rendered in sorted key order.
	assert.Contains(t, got, "- Type (int): Document Type. Values: 1 = Unknown, 2 = Site Audit")
	assert.Contains(t, got, "Table: plant")
}

func TestRenderExamples(t *testing.T) {
	assert.Equal(t, "(no examples provided)", RenderExamples(nil))

	got := RenderExamples([]LLMExample{
		{Input: "Get all plant documents", Output: "\nSELECT * FROM docs;\n"},
	})
	assert.Contains(t, got, "Input: Get all plant documents")
	assert.Contains(t, got, "Output: SELECT * FROM docs;")
}
