package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// inTempDir runs the test from an empty directory so no stray config.toml is picked up.
func inTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	inTempDir(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "canteen-engine", cfg.App.Name)
	assert.Equal(t, "development", cfg.App.Env)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, ":50051", cfg.GRPC.Addr)
	assert.True(t, cfg.GRPC.Enabled)
	assert.Equal(t, DriverMemory, cfg.Store.Driver)
	assert.True(t, cfg.Store.SeedMenu)
	assert.Equal(t, 5, cfg.Order.MaxAttempts)
	assert.Equal(t, 5*time.Millisecond, cfg.Order.BaseBackoff)
	assert.Equal(t, 100*time.Millisecond, cfg.Order.MaxBackoff)
	assert.Contains(t, cfg.Forum.Channels, "general")
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoad_EnvOverrides(t *testing.T) {
	inTempDir(t)
	t.Setenv("CANTEEN_STORE_DRIVER", "Redis")
	t.Setenv("CANTEEN_ORDER_MAX_ATTEMPTS", "9")
	t.Setenv("CANTEEN_REDIS_ADDR", "cache:6379")
	t.Setenv("CANTEEN_APP_ENV", "production")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DriverRedis, cfg.Store.Driver)
	assert.Equal(t, 9, cfg.Order.MaxAttempts)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := inTempDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(`
[store]
driver = "mysql"
seed_menu = false

[order]
max_attempts = 3
base_backoff = "1ms"
max_backoff = "20ms"

[forum]
channels = ["general", "sports"]
`), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DriverMySQL, cfg.Store.Driver)
	assert.False(t, cfg.Store.SeedMenu)
	assert.Equal(t, 3, cfg.Order.MaxAttempts)
	assert.Equal(t, time.Millisecond, cfg.Order.BaseBackoff)
	assert.Equal(t, []string{"general", "sports"}, cfg.Forum.Channels)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown driver", map[string]string{"CANTEEN_STORE_DRIVER": "postgres"}},
		{"zero attempts", map[string]string{"CANTEEN_ORDER_MAX_ATTEMPTS": "0"}},
		{"negative backoff", map[string]string{"CANTEEN_ORDER_BASE_BACKOFF": "-1ms"}},
		{"idle above open", map[string]string{"CANTEEN_MYSQL_MAX_OPEN_CONNS": "2", "CANTEEN_MYSQL_MAX_IDLE_CONNS": "5"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inTempDir(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
