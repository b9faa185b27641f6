package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_FirstRunWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Listen, cfg.Listen)
	assert.Equal(t, 12, cfg.Recurrence.SearchMonths)
	assert.False(t, cfg.Recurrence.PersistFifth)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoad_PartialFileIsNormalized(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "listen: 0.0.0.0:9000\nrecurrence:\n  persist_fifth: true\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.Listen)
	assert.True(t, cfg.Recurrence.PersistFifth)
	assert.Equal(t, 12, cfg.Recurrence.SearchMonths)
	assert.Equal(t, "5 0 * * *", cfg.RolloverCron)
	assert.Equal(t, "America/Los_Angeles", cfg.Timezone)
}

func TestLoad_InvalidCronRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rollover_cron: \"every day\"\n"), 0o600))

	_, err := Load(path)
	assert.ErrorContains(t, err, "rollover_cron")
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.HorizonDays = 14
	cfg.BasicAuth = &BasicAuthConfig{Username: "admin", Password: "secret"}
	require.NoError(t, cfg.Save(path))

	loaded, err := loadFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"PDXEVENTS_LISTEN":         ":8181",
		"PDXEVENTS_SEARCH_MONTHS":  "24",
		"PDXEVENTS_PERSIST_FIFTH":  "true",
		"PDXEVENTS_ADMIN_USER":     "admin",
		"PDXEVENTS_ADMIN_PASSWORD": "hunter2",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := DefaultConfig()
	require.NoError(t, cfg.ApplyEnv(lookup))
	assert.Equal(t, ":8181", cfg.Listen)
	assert.Equal(t, 24, cfg.Recurrence.SearchMonths)
	assert.True(t, cfg.Recurrence.PersistFifth)
	require.NotNil(t, cfg.BasicAuth)
	assert.Equal(t, "admin", cfg.BasicAuth.Username)

	env["PDXEVENTS_HORIZON_DAYS"] = "soon"
	assert.ErrorContains(t, DefaultConfig().ApplyEnv(lookup), "PDXEVENTS_HORIZON_DAYS")
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.Timezone = "Mars/Olympus_Mons"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Recurrence.SearchMonths = 500
	assert.Error(t, cfg.Validate())
}
