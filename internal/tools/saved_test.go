package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DukeRupert/hacbridge/internal/domain"
)

func writeQueries(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "queries.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadSavedQueries(t *testing.T) {
	path := writeQueries(t, `
queries:
  - name: recent_orders
    description: Orders created today
    query: SELECT {code} FROM {Order} WHERE {creationtime} > CURRENT_DATE
    max_count: 50
  - name: table_sizes
    query: SELECT COUNT(*) FROM products
    sql: true
`)

	queries, err := LoadSavedQueries(path)
	require.NoError(t, err)
	require.Len(t, queries, 2)

	assert.Equal(t, "recent_orders", queries[0].Name)
	assert.Equal(t, 50, queries[0].MaxCount)
	assert.True(t, queries[1].SQL)
}

func TestLoadSavedQueries_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown field", "queries:\n  - name: abc\n    query: x\n    params: [a]\n"},
		{"bad name", "queries:\n  - name: Bad-Name\n    query: x\n"},
		{"duplicate", "queries:\n  - name: abc\n    query: x\n  - name: abc\n    query: y\n"},
		{"missing query", "queries:\n  - name: abc\n"},
		{"max count", "queries:\n  - name: abc\n    query: x\n    max_count: 20000\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadSavedQueries(writeQueries(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestSavedSearch(t *testing.T) {
	console := &fakeConsole{reply: map[string]any{"headers": []string{"code"}, "resultList": [][]any{{"o1"}}, "resultCount": 1}}
	tool := NewSavedSearch(console, SavedQuery{Name: "recent_orders", Query: "SELECT {code} FROM {Order}", MaxCount: 50})

	assert.Equal(t, "recent_orders", tool.Name())
	assert.Equal(t, "Saved query: SELECT {code} FROM {Order}", tool.Description())

	_, err := tool.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "50", console.spec.Form.Get("maxCount"))
	assert.Equal(t, "SELECT {code} FROM {Order}", console.spec.Form.Get("flexibleSearchQuery"))

	_, err = tool.Execute(context.Background(), json.RawMessage(`{"max_count":10}`))
	require.NoError(t, err)
	assert.Equal(t, "10", console.spec.Form.Get("maxCount"))

	_, err = tool.Execute(context.Background(), json.RawMessage(`{"max_count":51}`))
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))

	_, err = tool.Execute(context.Background(), json.RawMessage(`{"query":"SELECT 1"}`))
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}
