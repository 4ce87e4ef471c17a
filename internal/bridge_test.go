package internal

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DukeRupert/hacbridge/internal/domain"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	return &Config{
		Env:               "development",
		HACURL:            "https://localhost:9002",
		HACPath:           "/hac",
		HACUsername:       "admin",
		HACPassword:       "nimda",
		OCCBaseSite:       "electronics",
		RequestTimeout:    time.Second,
		RateLimitRequests: 10,
		RateLimitWindow:   time.Minute,
		StorageProvider:   "local",
		LocalStoragePath:  t.TempDir(),
		LocalStorageURL:   "http://localhost:8080/files",
	}
}

func toolNames(b *Bridge) []string {
	var names []string
	for _, info := range b.Registry.List() {
		names = append(names, info.Name)
	}
	return names
}

func TestNewBridge_BuiltinCatalog(t *testing.T) {
	b, err := NewBridge(context.Background(), testConfig(t), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer b.Close()

	assert.Nil(t, b.DB)
	assert.NotNil(t, b.Local)
	assert.False(t, b.Auth.Status().Authenticated, "no login happens at startup")
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
	}, toolNames(b))
}

func TestNewBridge_SavedQueriesAndRestrict(t *testing.T) {
	file := filepath.Join(t.TempDir(), "tools.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
queries:
  - name: recent_orders
    description: Orders created today
    query: SELECT {code} FROM {Order}
  - name: stale_carts
    query: SELECT {code} FROM {Cart}
`), 0o600))

	cfg := testConfig(t)
	cfg.ToolsFile = file
	cfg.ToolsEnabled = []string{"get_*", "recent_*"}

	b, err := NewBridge(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer b.Close()

	assert.Equal(t, []string{"get_category", "get_order", "get_product", "recent_orders"}, toolNames(b))
}

func TestNewBridge_SavedQueryClash(t *testing.T) {
	file := filepath.Join(t.TempDir(), "tools.yaml")
	require.NoError(t, os.WriteFile(file, []byte("queries:\n  - name: get_product\n    query: SELECT {pk} FROM {Product}\n"), 0o600))

	cfg := testConfig(t)
	cfg.ToolsFile = file

	_, err := NewBridge(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}

func TestNewBridge_InvalidPattern(t *testing.T) {
	cfg := testConfig(t)
	cfg.ToolsEnabled = []string{"get_[*"}

	_, err := NewBridge(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.ErrorContains(t, err, "TOOLS_ENABLED")
}

func TestNewBridge_WithoutStorage(t *testing.T) {
	cfg := testConfig(t)
	cfg.StorageProvider = "none"

	b, err := NewBridge(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer b.Close()

	assert.Nil(t, b.Storage)
	_, err = b.Registry.Invoke(context.Background(), "export_impex", json.RawMessage(`{"item_type":"Product","attributes":["code"]}`))
	assert.Equal(t, domain.EUNAVAILABLE, domain.ErrorCode(err))
}

func TestBridge_NewWorkerWithoutDatabase(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := testConfig(t)
	cfg.AuditRetention = time.Hour

	b, err := NewBridge(context.Background(), cfg, logger)
	require.NoError(t, err)
	defer b.Close()

	w, err := b.NewWorker(cfg, logger)
	require.NoError(t, err)
	w.Start(context.Background())
	w.Stop()
}
