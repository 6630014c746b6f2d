package database

import (
	"fmt"
	"strconv"
	"strings"
)

// ErrVectorUnsupported is returned by dialects that can serve schema
// introspection but cannot execute vector-similarity queries.
type ErrVectorUnsupported struct {
	Dialect string
}

func (e *ErrVectorUnsupported) Error() string {
	return fmt.Sprintf("dialect %s does not support vector search", e.Dialect)
}

// FormatVector renders vector components as comma-separated text, shared by
// the dialect literal builders.
func FormatVector(vec []float32) string {
	parts := make([]string, len(vec))
	for i, v := range vec {
		parts[i] = strconv.FormatFloat(float64(v), 'g', -1, 32)
	}
	return strings.Join(parts, ",")
}
