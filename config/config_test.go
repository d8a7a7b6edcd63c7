package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := LoadConfig(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8080", cfg.ServerPort)
	assert.Equal(t, ".", cfg.OutputRoot)
	assert.NoError(t, cfg.CheckServe())
	assert.Equal(t, "tma_generator_config.yaml", cfg.SettingsFile)
	assert.Equal(t, ".", cfg.ResourceDir)
	assert.Equal(t, "tmagen", cfg.Auth.Issuer)
	assert.False(t, cfg.AuthEnabled())
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := filepath.Join(dir, "tmagen.yaml")
	require.NoError(t, os.WriteFile(path, []byte("SERVER_PORT: \":9090\"\nRESOURCE_DIR: ./styles\nAUTH:\n  JWT_SIGNING_KEY: secret\n"), 0o644))
	t.Setenv("TMAGEN_LOG_LEVEL", "debug")
	t.Setenv("TMAGEN_AUTH_ISSUER", "uni.example")

	cfg, err := LoadConfig(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.ServerPort)
	assert.Equal(t, "./styles", cfg.ResourceDir)
	assert.True(t, cfg.AuthEnabled())
	assert.Equal(t, "uni.example", cfg.Auth.Issuer)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.NoError(t, cfg.CheckServe())
}

func TestIsLoopback(t *testing.T) {
	tests := []struct {
		addr string
		want bool
	}{
		{"127.0.0.1:8080", true},
		{"localhost:8080", true},
		{"[::1]:8080", true},
		{":8080", false},
		{"0.0.0.0:8080", false},
		{"192.168.1.10:8080", false},
		{"8080", false},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			assert.Equal(t, tt.want, IsLoopback(tt.addr))
		})
	}
}

func TestCheckServeRefusesPublicBindWithoutAuth(t *testing.T) {
	cfg := &Config{ServerPort: ":8080"}
	assert.Error(t, cfg.CheckServe())

	cfg.Auth.JWTSigningKey = "secret"
	assert.NoError(t, cfg.CheckServe())
}

func TestLoadConfigBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("SERVER_PORT: [unterminated"), 0o644))

	_, err := LoadConfig(viper.New(), path)
	assert.Error(t, err)
}

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which requires Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}
