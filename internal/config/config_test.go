package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolateEnv blanks every variable Load reads so the host environment cannot
// leak into a test.
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT",
		"MATHBLOG_POSTS_DIR", "MATHBLOG_DATABASE_PATH", "MATHBLOG_LISTEN_ADDR",
		"MATHBLOG_READ_HEADER_TIMEOUT", "MATHBLOG_MEMCACHED_ADDR", "MATHBLOG_CACHE_TTL",
		"MATHBLOG_ADMIN_TOKEN_HASH", "MATHBLOG_LOG_LEVEL", "MATHBLOG_WORKERS",
		"MATHBLOG_WATCH", "MATHBLOG_LOG_DEVELOPMENT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	isolateEnv(t)
	t.Chdir(t.TempDir())

	cfg, err := Load("does-not-exist.yaml")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, 3*time.Second, cfg.GetReadHeaderTimeout())
	assert.Equal(t, 5*time.Minute, cfg.GetCacheTTL())
}

func TestLoad_File(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "mathblog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
posts_dir: content/posts
workers: 8
watch: true
memcached_addr: localhost:11211
logging:
  level: debug
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "content/posts", cfg.PostsDir)
	assert.Equal(t, 8, cfg.Workers)
	assert.True(t, cfg.Watch)
	assert.Equal(t, "localhost:11211", cfg.MemcachedAddr)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "mathblog.db", cfg.DatabasePath, "unset keys keep defaults")
}

func TestLoad_BadYAML(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workers: [1"), 0o644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "failed to parse config")
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("MATHBLOG_POSTS_DIR=from-dotenv\n"), 0o644))
	isolateEnv(t)
	// godotenv never overrides a variable that is set, even to "".
	os.Unsetenv("MATHBLOG_POSTS_DIR")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.PostsDir)
}

func TestEnvOverrides(t *testing.T) {
	t.Run("strings", func(t *testing.T) {
		t.Setenv("MATHBLOG_DATABASE_PATH", "/tmp/x.db")
		t.Setenv("MATHBLOG_LOG_LEVEL", "warn")

		cfg := DefaultConfig()
		require.NoError(t, cfg.applyEnvOverrides())
		assert.Equal(t, "/tmp/x.db", cfg.DatabasePath)
		assert.Equal(t, "warn", cfg.Logging.Level)
	})

	t.Run("PORT sets listen addr", func(t *testing.T) {
		t.Setenv("PORT", "9000")

		cfg := DefaultConfig()
		require.NoError(t, cfg.applyEnvOverrides())
		assert.Equal(t, ":9000", cfg.ListenAddr)
	})

	t.Run("explicit listen addr beats PORT", func(t *testing.T) {
		t.Setenv("PORT", "9000")
		t.Setenv("MATHBLOG_LISTEN_ADDR", "127.0.0.1:7000")

		cfg := DefaultConfig()
		require.NoError(t, cfg.applyEnvOverrides())
		assert.Equal(t, "127.0.0.1:7000", cfg.ListenAddr)
	})

	t.Run("typed values", func(t *testing.T) {
		t.Setenv("MATHBLOG_WORKERS", "2")
		t.Setenv("MATHBLOG_WATCH", "true")

		cfg := DefaultConfig()
		require.NoError(t, cfg.applyEnvOverrides())
		assert.Equal(t, 2, cfg.Workers)
		assert.True(t, cfg.Watch)
	})

	t.Run("bad bool", func(t *testing.T) {
		t.Setenv("MATHBLOG_WATCH", "maybe")

		cfg := DefaultConfig()
		assert.ErrorContains(t, cfg.applyEnvOverrides(), "MATHBLOG_WATCH")
	})
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Workers = 0
	cfg.CacheTTL = "soon"
	cfg.Logging.Level = "loud"

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, "workers")
	assert.ErrorContains(t, err, "cache_ttl")
	assert.ErrorContains(t, err, "logging.level")
}

func TestSave_RoundTrip(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "out.yaml")

	cfg := DefaultConfig()
	cfg.PostsDir = "elsewhere"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
