package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/artpar/composeshift/internal/core/rollout"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets every COMPOSESHIFT_ variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(key, "COMPOSESHIFT_") {
			t.Setenv(key, "")
			os.Unsetenv(key)
		}
	}
}

func testFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	for name := range flagKeys {
		fs.String(name, "", "")
	}
	require.NoError(t, fs.Parse(args))
	return fs
}

// =============================================================================
// Config Loading Tests
// =============================================================================

func TestLoadConfig_DefaultValues(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Empty(t, cfg.Prefix)
	assert.Empty(t, cfg.Project)
	assert.Equal(t, ".", cfg.OutputDir)
	assert.Equal(t, "templates", cfg.TemplatesDir)
	assert.Equal(t, "oc", cfg.Cluster.Binary)
	assert.Empty(t, cfg.Cluster.Server)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Empty(t, cfg.Journal.Path)
}

func TestLoadConfig_FromFile(t *testing.T) {
	clearEnv(t)

	configContent := `
prefix: Demo
project: demo
output_dir: out
cluster:
  binary: /usr/local/bin/oc
  server: https://api.example.com:6443
log:
  level: debug
  format: json
journal:
  path: /tmp/composeshift.db
`
	tmpFile := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(tmpFile, []byte(configContent), 0644))

	cfg, err := LoadConfig(tmpFile, nil)
	require.NoError(t, err)

	assert.Equal(t, "Demo", cfg.Prefix)
	assert.Equal(t, "demo", cfg.Project)
	assert.Equal(t, "out", cfg.OutputDir)
	assert.Equal(t, "templates", cfg.TemplatesDir)
	assert.Equal(t, "/usr/local/bin/oc", cfg.Cluster.Binary)
	assert.Equal(t, "https://api.example.com:6443", cfg.Cluster.Server)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "/tmp/composeshift.db", cfg.Journal.Path)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	clearEnv(t)

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)
}

func TestLoadConfig_InvalidFile(t *testing.T) {
	clearEnv(t)

	tmpFile := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(tmpFile, []byte("prefix: [unclosed"), 0644))

	_, err := LoadConfig(tmpFile, nil)
	assert.Error(t, err)
}

func TestLoadConfig_EnvironmentOverride(t *testing.T) {
	clearEnv(t)

	t.Setenv("COMPOSESHIFT_PREFIX", "envprefix")
	t.Setenv("COMPOSESHIFT_PROJECT", "envproject")
	t.Setenv("COMPOSESHIFT_CLUSTER_BINARY", "kubectl-oc")
	t.Setenv("COMPOSESHIFT_LOG_LEVEL", "warn")
	t.Setenv("COMPOSESHIFT_JOURNAL_PATH", "/var/lib/composeshift.db")

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, "envprefix", cfg.Prefix)
	assert.Equal(t, "envproject", cfg.Project)
	assert.Equal(t, "kubectl-oc", cfg.Cluster.Binary)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "/var/lib/composeshift.db", cfg.Journal.Path)
}

func TestLoadConfig_FlagsOverrideEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("COMPOSESHIFT_PREFIX", "envprefix")
	t.Setenv("COMPOSESHIFT_PROJECT", "envproject")

	flags := testFlags(t, "--prefix", "flagprefix", "--oc-binary", "/opt/oc")
	cfg, err := LoadConfig("", flags)
	require.NoError(t, err)

	assert.Equal(t, "flagprefix", cfg.Prefix)
	assert.Equal(t, "envproject", cfg.Project, "unset flag keeps the environment value")
	assert.Equal(t, "/opt/oc", cfg.Cluster.Binary)
	assert.Equal(t, ".", cfg.OutputDir, "unset flag keeps the default")
}

// =============================================================================
// Validation Tests
// =============================================================================

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		mode    rollout.Mode
		wantErr error
	}{
		{"generate needs prefix", Config{}, rollout.ModeGenerate, ErrMissingPrefix},
		{"generate without project", Config{Prefix: "demo"}, rollout.ModeGenerate, nil},
		{"up needs project", Config{Prefix: "demo"}, rollout.ModeUp, ErrMissingProject},
		{"down needs project", Config{Prefix: "demo"}, rollout.ModeDownAll, ErrMissingProject},
		{"up complete", Config{Prefix: "demo", Project: "demo"}, rollout.ModeUp, nil},
		{"bad log level", Config{Prefix: "demo", Log: LogConfig{Level: "loud"}}, rollout.ModeGenerate, ErrInvalidLogLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate(tt.mode)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

// =============================================================================
// Logger Setup Tests
// =============================================================================

func TestSetupLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupLogger(&Config{Log: LogConfig{Level: "info", Format: "json"}}, &buf)

	logger.Info("hello", "service", "web")
	assert.Contains(t, buf.String(), `"msg":"hello"`)
	assert.Contains(t, buf.String(), `"service":"web"`)
}

func TestSetupLogger_TextRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupLogger(&Config{Log: LogConfig{Level: "warn", Format: "text"}}, &buf)

	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "msg=shown")
}
