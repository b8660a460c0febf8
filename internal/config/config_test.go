package config_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wsvpn/client/internal/config"
)

func writeConfig(t *testing.T, dir string, cfg map[string]interface{}) string {
	t.Helper()
	path := filepath.Join(dir, "config.json")
	b, err := json.Marshal(cfg)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, map[string]interface{}{
		"server_url": "wss://example.test:9443",
		"auth_token": "T",
	})

	cfg, err := config.Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "wss://example.test:9443", cfg.ServerURL)
	assert.Equal(t, 30000, cfg.HeartbeatIntervalMS)
	assert.Equal(t, "tun0", cfg.Tun.Name)
	assert.Equal(t, []string{"8.8.8.8", "8.8.4.4"}, cfg.DNS.Servers)
}

func TestLoadRejectsMissingServerURL(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, map[string]interface{}{"auth_token": "T"})

	_, err := config.Load(context.Background(), path)
	assert.Error(t, err)
}

func TestLoadMissingFileStillFailsValidation(t *testing.T) {
	t.Setenv("WSVPN_LOG_LEVEL", "debug")
	cfg, err := config.Load(context.Background(), filepath.Join(t.TempDir(), "nope.json"))
	// No server_url/auth_token anywhere: this should fail validation.
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestMergeOverlaysNonZeroFields(t *testing.T) {
	base := &config.ClientConfig{ServerURL: "wss://a", HeartbeatIntervalMS: 1000}
	base.Merge(&config.ClientConfig{HeartbeatIntervalMS: 2000})
	assert.Equal(t, "wss://a", base.ServerURL)
	assert.Equal(t, 2000, base.HeartbeatIntervalMS)
}
