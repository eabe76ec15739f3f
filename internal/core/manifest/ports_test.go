package manifest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// ParsePort Tests
// =============================================================================

func TestParsePort_Pair(t *testing.T) {
	m, err := ParsePort("8080:80")
	require.NoError(t, err)
	assert.Equal(t, PortMapping{Published: 8080, Target: 80}, m)
}

func TestParsePort_Bare(t *testing.T) {
	m, err := ParsePort("80")
	require.NoError(t, err)
	assert.Equal(t, PortMapping{Published: 80, Target: 80}, m)
}

func TestParsePort_Whitespace(t *testing.T) {
	m, err := ParsePort(" 443 : 8443 ")
	require.NoError(t, err)
	assert.Equal(t, PortMapping{Published: 443, Target: 8443}, m)
}

func TestParsePort_Invalid(t *testing.T) {
	tests := []string{
		"",
		"abc",
		"80:http",
		"http:80",
		"0",
		"65536",
		"8080:0",
		"-1:80",
		"127.0.0.1:8080:80",
	}

	for _, token := range tests {
		t.Run(token, func(t *testing.T) {
			_, err := ParsePort(token)
			assert.Error(t, err)
		})
	}
}

func TestParsePort_Bounds(t *testing.T) {
	m, err := ParsePort("1:65535")
	require.NoError(t, err)
	assert.Equal(t, PortMapping{Published: 1, Target: 65535}, m)
}

// =============================================================================
// ParseEnv Tests
// =============================================================================

func TestParseEnv_Simple(t *testing.T) {
	v, err := ParseEnv("FOO=bar")
	require.NoError(t, err)
	assert.Equal(t, EnvVar{Name: "FOO", Value: "bar"}, v)
}

func TestParseEnv_SplitsOnFirstEquals(t *testing.T) {
	v, err := ParseEnv("DSN=host=db port=5432")
	require.NoError(t, err)
	assert.Equal(t, EnvVar{Name: "DSN", Value: "host=db port=5432"}, v)
}

func TestParseEnv_NoValue(t *testing.T) {
	v, err := ParseEnv("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, EnvVar{Name: "DEBUG", Value: ""}, v)
}

func TestParseEnv_EmptyValue(t *testing.T) {
	v, err := ParseEnv("EMPTY=")
	require.NoError(t, err)
	assert.Equal(t, EnvVar{Name: "EMPTY", Value: ""}, v)
}

func TestParseEnv_MissingName(t *testing.T) {
	_, err := ParseEnv("=value")
	assert.Error(t, err)
}
