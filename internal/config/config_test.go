package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"school-journal/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("app:\n  env: test\n"))
	require.NoError(t, err)

	assert.Equal(t, "school-journal", cfg.App.Name)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, DriverMemory, cfg.Store.Driver)
	assert.Equal(t, 300*time.Millisecond, cfg.Journal.SearchDebounce)
	assert.Equal(t, 3*time.Second, cfg.Journal.MarkerWindow)
	assert.Equal(t, "absent", cfg.Journal.DefaultStatus)
	assert.Equal(t, "journal:imports", cfg.Redis.ImportQueue)
	assert.Equal(t, 2, cfg.Workers.Import.Count)
	assert.False(t, cfg.StorageEnabled())
}

func TestParse_REST(t *testing.T) {
	doc := `
store:
  driver: rest
  rest:
    base_url: https://data.example.com
    api_key: anon
    timeout: 10s
journal:
  search_debounce: 150ms
  marker_window: 5s
storage:
  s3:
    bucket: journals
`
	cfg, err := Parse([]byte(doc))
	require.NoError(t, err)

	assert.Equal(t, "https://data.example.com", cfg.Store.REST.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.Store.REST.Timeout)
	assert.Equal(t, "/auth/v1/token?grant_type=password", cfg.Store.REST.AuthEndpoint)
	assert.Equal(t, 150*time.Millisecond, cfg.Journal.SearchDebounce)
	assert.Equal(t, 5*time.Second, cfg.Journal.MarkerWindow)
	assert.True(t, cfg.StorageEnabled())
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte("store:\n  driver: rest\n"))
	assert.True(t, errors.IsValidation(err))

	_, err = Parse([]byte("store:\n  driver: oracle\n"))
	assert.ErrorIs(t, err, errors.ErrUnsupportedStoreDriver)

	_, err = Parse([]byte("journal:\n  marker_window: -1s\n"))
	assert.True(t, errors.IsValidation(err))

	_, err = Parse([]byte("store: ["))
	assert.Error(t, err)
}

func TestLoad_FromConfigPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9090\n"), 0o600))
	t.Setenv("CONFIG_PATH", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestDSNAndAddr(t *testing.T) {
	cfg := &Config{}
	cfg.Store.MySQL = DatabaseConfig{Host: "db", Port: 3306, User: "u", Password: "p", Name: "journal", Charset: "utf8mb4", ParseTime: true, Loc: "UTC"}
	cfg.Redis.Host = "cache"
	cfg.Redis.Port = 6379

	assert.Equal(t, "u:p@tcp(db:3306)/journal?charset=utf8mb4&parseTime=true&loc=UTC", cfg.DatabaseDSN())
	assert.Equal(t, "cache:6379", cfg.RedisAddr())
}
