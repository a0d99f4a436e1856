package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/print-admin/internal/config"
)

// isolate clears the variables NewConfig reads so the host environment does not leak in.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, key := range []string{
		"CONFIG_PATH", "APP_PORT", "DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME",
		"DB_SSLMODE", "DB_MIGRATIONS_PATH", "GOOGLE_APPLICATION_CREDENTIALS", "DOCSTORE_CREDENTIALS_PATH",
		"DOCSTORE_BASE_URL", "DOCSTORE_COLLECTION", "DOCSTORE_ENABLED", "DOCSTORE_TIMEOUT",
		"DOCSTORE_MIRROR_TIMEOUT", "KAFKA_BROKERS", "KAFKA_TOPIC", "SESSION_BACKEND", "REDIS_ADDR",
		"REDIS_PASSWORD", "REDIS_DB", "LOG_LEVEL", "LOG_PRETTY", "APP_REQUEST_TIMEOUT",
	} {
		t.Setenv(key, "")
	}
	t.Setenv("ENV_FILE", filepath.Join(dir, "missing.env"))
	return dir
}

func setDB(t *testing.T) {
	t.Helper()
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_USER", "postgres")
	t.Setenv("DB_NAME", "print_admin")
}

func TestNewConfig_Defaults(t *testing.T) {
	isolate(t)
	setDB(t)

	cfg, err := config.NewConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.App.Port)
	assert.Equal(t, "5432", cfg.Postgres.Port)
	assert.Equal(t, "disable", cfg.Postgres.SSLMode)
	assert.False(t, cfg.DocStore.Enabled)
	assert.Equal(t, "orders", cfg.DocStore.Collection)
	assert.Equal(t, 30*time.Second, cfg.DocStore.Timeout)
	assert.Equal(t, 10*time.Second, cfg.DocStore.MirrorTimeout)
	assert.Equal(t, config.SessionBackendPostgres, cfg.Session.Backend)
	assert.Empty(t, cfg.Kafka.Brokers)
}

func TestNewConfig_RequiresDatabase(t *testing.T) {
	isolate(t)

	_, err := config.NewConfig()
	assert.ErrorContains(t, err, "DB_HOST is required")
}

func TestNewConfig_YAMLThenEnv(t *testing.T) {
	dir := isolate(t)

	yamlPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
app:
  port: "9090"
postgres:
  host: db.internal
  user: admin
  dbname: prints
  max_conns: 20
docstore:
  timeout: 15s
  collection: print_orders
kafka:
  brokers: ["kafka-1:9092"]
`), 0o600))
	t.Setenv("CONFIG_PATH", yamlPath)
	t.Setenv("APP_PORT", "7070")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("DOCSTORE_MIRROR_TIMEOUT", "3s")

	cfg, err := config.NewConfig()
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.App.Port)
	assert.Equal(t, "db.internal", cfg.Postgres.Host)
	assert.Equal(t, int32(20), cfg.Postgres.MaxConns)
	assert.Equal(t, 15*time.Second, cfg.DocStore.Timeout)
	assert.Equal(t, 3*time.Second, cfg.DocStore.MirrorTimeout)
	assert.Equal(t, "print_orders", cfg.DocStore.Collection)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestNewConfig_DotEnvFile(t *testing.T) {
	dir := isolate(t)
	envPath := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envPath, []byte("DB_HOST=envhost\nDB_USER=envuser\nDB_NAME=envdb\n"), 0o600))
	t.Setenv("ENV_FILE", envPath)

	// godotenv не перезаписывает уже заданные переменные, поэтому убираем пустые
	for _, key := range []string{"DB_HOST", "DB_USER", "DB_NAME"} {
		require.NoError(t, os.Unsetenv(key))
	}
	t.Cleanup(func() {
		for _, key := range []string{"DB_HOST", "DB_USER", "DB_NAME"} {
			_ = os.Unsetenv(key)
		}
	})

	cfg, err := config.NewConfig()
	require.NoError(t, err)
	assert.Equal(t, "envhost", cfg.Postgres.Host)
	assert.Equal(t, "envdb", cfg.Postgres.DBName)
}

func TestNewConfig_DocStoreCredentials(t *testing.T) {
	t.Run("missing_file_fails_fast", func(t *testing.T) {
		dir := isolate(t)
		setDB(t)
		t.Setenv("DOCSTORE_ENABLED", "true")
		t.Setenv("DOCSTORE_CREDENTIALS_PATH", filepath.Join(dir, "nope.json"))

		_, err := config.NewConfig()
		assert.ErrorContains(t, err, "document store credentials")
	})

	t.Run("missing_path", func(t *testing.T) {
		isolate(t)
		setDB(t)
		t.Setenv("DOCSTORE_ENABLED", "true")

		_, err := config.NewConfig()
		assert.ErrorContains(t, err, "DOCSTORE_CREDENTIALS_PATH is required")
	})

	t.Run("present_file", func(t *testing.T) {
		dir := isolate(t)
		setDB(t)
		credPath := filepath.Join(dir, "sa.json")
		require.NoError(t, os.WriteFile(credPath, []byte(`{}`), 0o600))
		t.Setenv("DOCSTORE_ENABLED", "1")
		t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", credPath)

		cfg, err := config.NewConfig()
		require.NoError(t, err)
		assert.True(t, cfg.DocStore.Enabled)
		assert.Equal(t, credPath, cfg.DocStore.CredentialsPath)
	})
}

func TestNewConfig_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{name: "bad_duration", key: "DOCSTORE_TIMEOUT", value: "soon", wantErr: "DOCSTORE_TIMEOUT"},
		{name: "bad_bool", key: "DOCSTORE_ENABLED", value: "maybe", wantErr: "DOCSTORE_ENABLED"},
		{name: "bad_backend", key: "SESSION_BACKEND", value: "memcached", wantErr: "unknown session backend"},
		{name: "redis_without_addr", key: "SESSION_BACKEND", value: "redis", wantErr: "REDIS_ADDR is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			setDB(t)
			t.Setenv(tt.key, tt.value)

			_, err := config.NewConfig()
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
