package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir string, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "api_base_url: \"http://localhost:8000\"\n")

	cfg, err := Load(path, dir)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000", cfg.APIBaseURL)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, filepath.Join(dir, "session.token"), cfg.TokenFile)
	assert.Equal(t, filepath.Join(dir, "logs", "client.log"), cfg.LogFile)
	assert.DirExists(t, filepath.Join(dir, "logs"))
}

func TestLoadFullConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `api_base_url: "https://rh.example.com"
csrf_token: "csrf-token"
token_file: "state/session.token"
log_level: DEBUG
log_file: "state/client.log"
`)

	cfg, err := Load(path, dir)
	require.NoError(t, err)
	assert.Equal(t, "https://rh.example.com", cfg.APIBaseURL)
	assert.Equal(t, "csrf-token", cfg.CSRFToken)
	assert.Equal(t, "debug", cfg.LogLevel, "log level is case-insensitive")
	assert.Equal(t, filepath.Join(dir, "state", "session.token"), cfg.TokenFile)
	assert.Equal(t, filepath.Join(dir, "state", "client.log"), cfg.LogFile)
}

func TestLoadMissingBaseURL(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "log_level: info\n")

	_, err := Load(path, dir)
	require.Error(t, err)
	assert.ErrorContains(t, err, "api_base_url is required")
	var cfgErr *Error
	assert.ErrorAs(t, err, &cfgErr)
}

func TestLoadUnsupportedLogLevel(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "api_base_url: \"http://localhost:8000\"\nlog_level: verbose\n")

	_, err := Load(path, dir)
	assert.ErrorContains(t, err, "unsupported log_level")
}

func TestLoadMissingFile(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(filepath.Join(dir, "absent.yaml"), dir)
	require.Error(t, err)
	var cfgErr *Error
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, filepath.Join(dir, "absent.yaml"), cfgErr.Path)
}

func TestLoadMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "api_base_url: [broken\n")
	_, err := Load(path, dir)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "api_base_url: \"http://localhost:8000\"\ncsrf_token: \"from-yaml\"\n")

	t.Setenv(EnvAPIBaseURL, "http://override:9000")
	t.Setenv(EnvCSRFToken, "from-env")

	cfg, err := Load(path, dir)
	require.NoError(t, err)
	assert.Equal(t, "http://override:9000", cfg.APIBaseURL)
	assert.Equal(t, "from-env", cfg.CSRFToken)
}

func TestDotEnvFileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "api_base_url: \"http://localhost:8000\"\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(EnvCSRFToken+"=dotenv-token\n"), 0o644))

	// godotenv не перекрывает уже установленные переменные процесса,
	// поэтому переменную нужно гарантированно очистить
	t.Setenv(EnvCSRFToken, "")
	os.Unsetenv(EnvCSRFToken)

	cfg, err := Load(path, dir)
	require.NoError(t, err)
	assert.Equal(t, "dotenv-token", cfg.CSRFToken)
}

func TestDefaultPath(t *testing.T) {
	assert.Equal(t, filepath.Join("/opt/staffdesk", "config.yaml"), DefaultPath("/opt/staffdesk"))
}
