package tools

import (
	"context"
	"encoding/json"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DukeRupert/hacbridge/internal/backend"
	"github.com/DukeRupert/hacbridge/internal/domain"
)

func TestReadTools_Requests(t *testing.T) {
	tests := []struct {
		name      string
		tool      func(api ReadAPI) Tool
		args      string
		wantPath  string
		wantQuery url.Values
	}{
		{
			name:      "product with defaults",
			tool:      func(api ReadAPI) Tool { return NewGetProduct(api, "electronics") },
			args:      `{"code":"300938"}`,
			wantPath:  "/electronics/products/300938",
			wantQuery: url.Values{"fields": {"DEFAULT"}},
		},
		{
			name:      "product code is escaped",
			tool:      func(api ReadAPI) Tool { return NewGetProduct(api, "electronics") },
			args:      `{"code":"a/b c","site":"apparel-uk","fields":"FULL"}`,
			wantPath:  "/apparel-uk/products/a%2Fb%20c",
			wantQuery: url.Values{"fields": {"FULL"}},
		},
		{
			name:     "search",
			tool:     func(api ReadAPI) Tool { return NewSearchProducts(api, "electronics") },
			args:     `{"query":"camera:relevance:brand:canon","page":2,"sort":"price-asc"}`,
			wantPath: "/electronics/products/search",
			wantQuery: url.Values{
				"fields":      {"DEFAULT"},
				"query":       {"camera:relevance:brand:canon"},
				"currentPage": {"2"},
				"pageSize":    {"20"},
				"sort":        {"price-asc"},
			},
		},
		{
			name:      "category",
			tool:      func(api ReadAPI) Tool { return NewGetCategory(api, "electronics") },
			args:      `{"catalog":"electronicsProductCatalog","code":"575"}`,
			wantPath:  "/electronics/catalogs/electronicsProductCatalog/Online/categories/575",
			wantQuery: url.Values{"fields": {"DEFAULT"}},
		},
		{
			name:      "order",
			tool:      func(api ReadAPI) Tool { return NewGetOrder(api, "electronics") },
			args:      `{"code":"00001000","fields":"FULL"}`,
			wantPath:  "/electronics/orders/00001000",
			wantQuery: url.Values{"fields": {"FULL"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeReadAPI{resp: jsonResponse(map[string]any{"ok": true})}

			out, err := tt.tool(api).Execute(context.Background(), json.RawMessage(tt.args))
			require.NoError(t, err)

			assert.Equal(t, tt.wantPath, api.path)
			assert.Equal(t, tt.wantQuery, api.query)
			assert.Equal(t, map[string]any{"ok": true}, out)
		})
	}
}

func TestReadTools_Validation(t *testing.T) {
	tests := []struct {
		name   string
		tool   Tool
		args   string
		fields []string
	}{
		{"product code", NewGetProduct(&fakeReadAPI{}, "s"), `{}`, []string{"code"}},
		{"search paging", NewSearchProducts(&fakeReadAPI{}, "s"), `{"page":-1,"page_size":500}`, []string{"query", "page", "page_size"}},
		{"category", NewGetCategory(&fakeReadAPI{}, "s"), `{"version":"Staged"}`, []string{"catalog", "code"}},
		{"order code", NewGetOrder(&fakeReadAPI{}, "s"), `{"site":"x"}`, []string{"code"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.tool.Execute(context.Background(), json.RawMessage(tt.args))

			var ve *domain.ValidationError
			require.ErrorAs(t, err, &ve)
			for _, f := range tt.fields {
				assert.Contains(t, ve.Fields, f)
			}
		})
	}
}

func TestReadTools_NotFound(t *testing.T) {
	api := &fakeReadAPI{err: &backend.Error{Op: "read", Err: &backend.RemoteError{StatusCode: 404, Body: `{"errors":[]}`}}}

	_, err := NewGetOrder(api, "electronics").Execute(context.Background(), json.RawMessage(`{"code":"1"}`))

	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
}

func TestReadTools_NonJSONResponse(t *testing.T) {
	api := &fakeReadAPI{resp: &backend.Response{StatusCode: 200, ContentType: "text/plain", Body: []byte("ok")}}

	_, err := NewGetProduct(api, "electronics").Execute(context.Background(), json.RawMessage(`{"code":"1"}`))

	assert.Equal(t, domain.EUPSTREAM, domain.ErrorCode(err))
}

func TestBuiltinCatalog(t *testing.T) {
	reg := NewRegistry(discardLogger(), nil)
	require.NoError(t, reg.Register(Builtin(&fakeConsole{}, &fakeReadAPI{}, nil, "electronics")...))

	names := []string{}
	for _, info := range reg.List() {
		names = append(names, info.Name)
		assert.NotEmpty(t, info.Description, info.Name)
		assert.Equal(t, false, info.Schema["additionalProperties"], info.Name)
	}
	assert.Equal(t, []string{
		"execute_groovy",
		"export_impex",
		"flexible_search",
		"get_category",
		"get_order",
		"get_product",
		"import_impex",
		"search_products",
		"trigger_cronjob",
	}, names)
}
