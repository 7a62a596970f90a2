package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9090\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "team-events", cfg.Kafka.Topic)
	assert.Equal(t, 5*time.Second, cfg.Stats.StoreTimeout)
	assert.Equal(t, 64, cfg.Stats.MailboxSize)
	assert.True(t, cfg.Stats.CreateMissingEnabled())
	assert.Equal(t, []time.Duration{24 * time.Hour, 2 * time.Hour, 30 * time.Minute}, cfg.Reminder.Offsets)
	assert.Equal(t, time.Minute, cfg.Reminder.RescanInterval)
	assert.False(t, cfg.Reminder.FireOverdueOnStart)
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("TEST_REDIS_ADDR", "redis.internal:6380")
	path := writeConfig(t, "redis:\n  addr: ${TEST_REDIS_ADDR}\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "redis.internal:6380", cfg.Redis.Addr)
}

func TestLoadExplicitCreateMissingFalse(t *testing.T) {
	path := writeConfig(t, "stats:\n  create_missing: false\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.Stats.CreateMissingEnabled())
}

func TestLoadReminderSettings(t *testing.T) {
	path := writeConfig(t, "reminder:\n  fire_overdue_on_start: true\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Reminder.FireOverdueOnStart)
	// Unset offsets fall back to the standard ladder.
	assert.Equal(t, []time.Duration{24 * time.Hour, 2 * time.Hour, 30 * time.Minute}, cfg.Reminder.Offsets)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestPostgresConnectionString(t *testing.T) {
	cfg := PostgresConfig{
		Host: "db", Port: 5432, User: "app", Password: "secret", Database: "teamtrack",
	}
	assert.Equal(t, "postgres://app:secret@db:5432/teamtrack?sslmode=disable", cfg.ConnectionString())
}
