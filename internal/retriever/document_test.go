package retriever

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoogleCloudPlatform/sql-vector-retriever/internal/database"
)

func TestDocumentsFromResultSet(t *testing.T) {
	rs := &database.ResultSet{
		Columns: []string{"content", "embeddings", "metadata", "extra"},
		Rows: []database.Row{
			{"content": "Chunk1", "embeddings": "[1,2]", "metadata": []byte(`{"key1": "value1"}`), "extra": 42},
			{"content": []byte("Chunk2"), "metadata": map[string]interface{}{"key2": "value2"}},
		},
	}

	docs, err := documentsFromResultSet(rs)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal(t, "Chunk1", docs[0].PageContent)
	assert.Equal(t, map[string]interface{}{"key1": "value1"}, docs[0].Metadata)
	// Pass-through columns stay out of the metadata.
	assert.NotContains(t, docs[0].Metadata, "extra")

	assert.Equal(t, "Chunk2", docs[1].PageContent)
	assert.Equal(t, map[string]interface{}{"key2": "value2"}, docs[1].Metadata)
}

func TestDocumentsFromResultSetMissingContent(t *testing.T) {
	rs := &database.ResultSet{
		Columns: []string{"metadata"},
		Rows:    []database.Row{{"metadata": `{}`}},
	}
	_, err := documentsFromResultSet(rs)
	var mErr *ErrMapping
	require.ErrorAs(t, err, &mErr)
	assert.Contains(t, err.Error(), "content")
}

func TestDocumentsFromResultSetBadMetadata(t *testing.T) {
	rs := &database.ResultSet{
		Columns: []string{"content", "metadata"},
		Rows:    []database.Row{{"content": "c", "metadata": "not json"}},
	}
	_, err := documentsFromResultSet(rs)
	var mErr *ErrMapping
	require.ErrorAs(t, err, &mErr)
}

func TestParseMetadataTypes(t *testing.T) {
	t.Run("map passthrough", func(t *testing.T) {
		in := map[string]interface{}{"a": 1.0}
		got, err := parseMetadata(in)
		require.NoError(t, err)
		assert.Equal(t, in, got)
	})
	t.Run("empty bytes", func(t *testing.T) {
		got, err := parseMetadata([]byte{})
		require.NoError(t, err)
		assert.Nil(t, got)
	})
	t.Run("unsupported type", func(t *testing.T) {
		_, err := parseMetadata(12)
		assert.Error(t, err)
	})
	t.Run("json array rejected", func(t *testing.T) {
		_, err := parseMetadata(`[1, 2]`)
		assert.Error(t, err)
	})
}
