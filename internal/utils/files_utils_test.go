package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTablesFlag(t *testing.T) {
	tests := []struct {
		name    string
		flag    string
		want    map[string][]string
		wantErr bool
	}{
		{"empty", "", map[string][]string{}, false},
		{"single table", "docs", map[string][]string{"docs": nil}, false},
		{"multiple tables", "docs,plants", map[string][]string{"docs": nil, "plants": nil}, false},
		{
			"table with columns", "docs[id,type]",
			map[string][]string{"docs": {"id", "type"}}, false,
		},
		{
			"mixed", "docs[id,type],plants",
			map[string][]string{"docs": {"id", "type"}, "plants": nil}, false,
		},
		{"missing closing bracket", "docs[id", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTablesFlag(tt.flag)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSplitOutsideBrackets(t *testing.T) {
	assert.Equal(t, []string{"a[1,2]", "b", "c[3]"}, SplitOutsideBrackets("a[1,2],b,c[3]"))
	assert.Equal(t, []string{"plain"}, SplitOutsideBrackets("plain"))
	assert.Nil(t, SplitOutsideBrackets(""))
}

func TestReadContextFiles(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(first, []byte("plant naming conventions"), 0o644))
	second := filepath.Join(dir, "more.txt")
	require.NoError(t, os.WriteFile(second, []byte("filing codes"), 0o644))

	combined, err := ReadContextFiles(first + "," + second)
	require.NoError(t, err)
	assert.Contains(t, combined, "plant naming conventions")
	assert.Contains(t, combined, "filing codes")
	assert.Contains(t, combined, first)

	empty, err := ReadContextFiles("")
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = ReadContextFiles(filepath.Join(dir, "missing.txt"))
	assert.Error(t, err)
}

func TestGetDefaultOutputFilePath(t *testing.T) {
	assert.Equal(t, "mydb_documents.json", GetDefaultOutputFilePath("mydb", "retrieve"))
	assert.Equal(t, "mydb_schemas.json", GetDefaultOutputFilePath("mydb", "inspect-schema"))
}
