package retriever

import (
	"encoding/json"
	"fmt"

	"github.com/GoogleCloudPlatform/sql-vector-retriever/internal/database"
)

// Column names the generated SQL is instructed to project. Rows may carry
// additional pass-through columns, which are ignored during mapping.
const (
	ContentColumn  = "content"
	MetadataColumn = "metadata"
)

// Document is one retrieved chunk with its associated metadata.
type Document struct {
	PageContent string                 `json:"page_content"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// documentsFromResultSet maps store rows to documents, preserving the
// store's result order.
func documentsFromResultSet(rs *database.ResultSet) ([]Document, error) {
	docs := make([]Document, 0, len(rs.Rows))
	for i, row := range rs.Rows {
		content, ok := row[ContentColumn]
		if !ok {
			return nil, &ErrMapping{Msg: fmt.Sprintf("row %d has no %q column", i, ContentColumn)}
		}

		doc := Document{PageContent: asString(content)}

		if raw, ok := row[MetadataColumn]; ok && raw != nil {
			meta, err := parseMetadata(raw)
			if err != nil {
				return nil, &ErrMapping{Msg: fmt.Sprintf("row %d has unparseable metadata", i), Err: err}
			}
			doc.Metadata = meta
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// parseMetadata converts the stored metadata representation into a mapping.
// Drivers surface JSON columns as maps, text, or raw bytes depending on the
// dialect.
func parseMetadata(raw interface{}) (map[string]interface{}, error) {
	switch v := raw.(type) {
	case map[string]interface{}:
		return v, nil
	case []byte:
		return unmarshalMetadata(v)
	case string:
		return unmarshalMetadata([]byte(v))
	default:
		return nil, fmt.Errorf("unsupported metadata type %T", raw)
	}
}

func unmarshalMetadata(data []byte) (map[string]interface{}, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var meta map[string]interface{}
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("metadata is not a JSON object: %w", err)
	}
	return meta, nil
}

func asString(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", s)
	}
}
