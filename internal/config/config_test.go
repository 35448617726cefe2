package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ukydev/fleet-maintenance/internal/models"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range legacyEnv {
		t.Setenv(name, "")
	}
	for _, name := range []string{"FLEET_STORAGE_DRIVER", "FLEET_STORAGE_MONGO_URI", "FLEET_EVENTS_DRIVER", "FLEET_LOG_LEVEL"} {
		t.Setenv(name, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(Options{})
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 100, cfg.Server.RateLimit)
	assert.Equal(t, time.Minute, cfg.Server.RateWindow)
	assert.Equal(t, "mongo", cfg.Storage.Driver)
	assert.Equal(t, 10*time.Second, cfg.Storage.Timeout)
	assert.Equal(t, 24*time.Hour, cfg.Auth.JWTExpiry)
	assert.Equal(t, "none", cfg.Events.Driver)
	assert.Equal(t, "local", cfg.Lock.Driver)
	assert.Equal(t, "", cfg.RoutesFile)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("MONGO_URI", "mongodb://legacy:27017")
	t.Setenv("PORT", "9090")
	t.Setenv("JWT_EXPIRY", "2h")
	t.Setenv("FLEET_STORAGE_DRIVER", "sqlite")
	t.Setenv("FLEET_EVENTS_DRIVER", "nats")

	cfg, err := Load(Options{})
	require.NoError(t, err)
	assert.Equal(t, "mongodb://legacy:27017", cfg.Storage.MongoURI)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 2*time.Hour, cfg.Auth.JWTExpiry)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, "nats", cfg.Events.Driver)

	t.Setenv("FLEET_STORAGE_MONGO_URI", "mongodb://prefixed:27017")
	cfg, err = Load(Options{})
	require.NoError(t, err)
	assert.Equal(t, "mongodb://prefixed:27017", cfg.Storage.MongoURI)
}

func TestLoad_FileAndDotenv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	file := filepath.Join(dir, "fleet.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
server:
  port: "7000"
  rate_limit: 5
storage:
  driver: sqlite
  sqlite_path: /tmp/x.db
lock:
  ttl: 10s
`), 0o600))

	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("FLEET_LOG_LEVEL=debug\n"), 0o600))
	// godotenv never overrides a variable that exists, even empty.
	require.NoError(t, os.Unsetenv("FLEET_LOG_LEVEL"))
	t.Cleanup(func() { os.Unsetenv("FLEET_LOG_LEVEL") })

	cfg, err := Load(Options{File: file, EnvFile: envFile})
	require.NoError(t, err)
	assert.Equal(t, "7000", cfg.Server.Port)
	assert.Equal(t, 5, cfg.Server.RateLimit)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, "/tmp/x.db", cfg.Storage.SQLitePath)
	assert.Equal(t, 10*time.Second, cfg.Lock.TTL)
	assert.Equal(t, "debug", cfg.Log.Level)

	_, err = Load(Options{EnvFile: filepath.Join(dir, "missing.env")})
	assert.NoError(t, err, "missing dotenv file is ignored")

	_, err = Load(Options{File: filepath.Join(dir, "missing.yaml")})
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	clearEnv(t)
	t.Setenv("FLEET_STORAGE_DRIVER", "postgres")
	_, err := Load(Options{})
	assert.Error(t, err)

	clearEnv(t)
	t.Setenv("FLEET_EVENTS_DRIVER", "kafka")
	_, err = Load(Options{})
	assert.Error(t, err)
}

func TestConfigureLogging(t *testing.T) {
	prev := log.GetLevel()
	t.Cleanup(func() {
		log.SetLevel(prev)
		log.SetFormatter(&log.TextFormatter{})
	})

	require.NoError(t, ConfigureLogging(LogConfig{Level: "warn", Format: "json"}))
	assert.Equal(t, log.WarnLevel, log.GetLevel())
	assert.IsType(t, &log.JSONFormatter{}, log.StandardLogger().Formatter)

	assert.Error(t, ConfigureLogging(LogConfig{Level: "loud"}))
}

func TestParseRouteTemplate(t *testing.T) {
	tmpl, err := ParseRouteTemplate([]byte(`
stages:
  - stage: Comment
    role: operator
  - stage: Review
    role: manager
  - stage: Approve
    role: admin
  - stage: Commit
    role: admin
`))
	require.NoError(t, err)
	require.Len(t, tmpl, 4)
	assert.Equal(t, models.RoleAdmin, tmpl[2].Role)

	_, err = ParseRouteTemplate([]byte("stages:\n  - stage: Review\n    role: manager\n"))
	assert.Error(t, err)

	_, err = ParseRouteTemplate([]byte("stages: [oops"))
	assert.Error(t, err)

	def, err := LoadRouteTemplate("")
	require.NoError(t, err)
	assert.Equal(t, models.StageComment, def[0].Stage)

	path := filepath.Join(t.TempDir(), "routes.yaml")
	require.NoError(t, os.WriteFile(path, []byte("stages:\n  - {stage: Comment, role: viewer}\n  - {stage: Review, role: manager}\n  - {stage: Approve, role: manager}\n  - {stage: Commit, role: admin}\n"), 0o600))
	fromFile, err := LoadRouteTemplate(path)
	require.NoError(t, err)
	assert.Equal(t, models.RoleViewer, fromFile[0].Role)
}
