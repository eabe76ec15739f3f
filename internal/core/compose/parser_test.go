package compose

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Fixtures
// =============================================================================

const minimalValidSpec = `
services:
  app:
    image: nginx:latest
`

const multiServiceSpec = `
services:
  web:
    image: nginx:latest
    ports:
      - "8080:80"

  worker:
    image: myapp:1.0
    environment:
      - FOO=bar

  db:
    image: postgres:15
    environment:
      POSTGRES_USER: admin
      POSTGRES_DB: app
`

const interpolatedSpec = `
services:
  api:
    image: myapp:${TAG:-latest}
    environment:
      DB_PASSWORD: ${DB_PASSWORD}
      REGION: ${REGION}
`

func parse(t *testing.T, content string) *ParsedSpec {
	t.Helper()
	spec, err := ParseComposeSpec(content, ParseOptions{})
	require.NoError(t, err)
	require.NotNil(t, spec)
	return spec
}

// =============================================================================
// Input Validation Tests
// =============================================================================

func TestParseComposeSpec_EmptyInput(t *testing.T) {
	_, err := ParseComposeSpec("", ParseOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestParseComposeSpec_WhitespaceOnly(t *testing.T) {
	_, err := ParseComposeSpec("   \n\t  ", ParseOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestParseComposeSpec_InvalidYAML(t *testing.T) {
	_, err := ParseComposeSpec("invalid: yaml: content: [", ParseOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidYAML)
}

func TestParseComposeSpec_YAMLNotObject(t *testing.T) {
	_, err := ParseComposeSpec("just a string", ParseOptions{})
	require.Error(t, err)
}

func TestParseComposeSpec_EmptyServices(t *testing.T) {
	_, err := ParseComposeSpec("services: {}", ParseOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoServices)
}

// =============================================================================
// Service Parsing Tests
// =============================================================================

func TestParseComposeSpec_MinimalValid(t *testing.T) {
	spec := parse(t, minimalValidSpec)

	require.Len(t, spec.Services, 1)
	assert.Equal(t, "app", spec.Services[0].Name)
	assert.Equal(t, "nginx:latest", spec.Services[0].Image)
	assert.Nil(t, spec.Services[0].Environment)
	assert.Nil(t, spec.Services[0].Ports)
}

func TestParseComposeSpec_ServicesSortedByName(t *testing.T) {
	spec := parse(t, multiServiceSpec)

	assert.Equal(t, []string{"db", "web", "worker"}, spec.Names())
}

func TestParseComposeSpec_ServiceLookup(t *testing.T) {
	spec := parse(t, multiServiceSpec)

	svc, ok := spec.Service("worker")
	require.True(t, ok)
	assert.Equal(t, "myapp:1.0", svc.Image)

	_, ok = spec.Service("missing")
	assert.False(t, ok)
}

func TestParseComposeSpec_ServiceNoImage(t *testing.T) {
	yaml := `
services:
  app:
    ports:
      - "80:80"
`
	_, err := ParseComposeSpec(yaml, ParseOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrServiceNoImage)
}

func TestParseComposeSpec_BuildWithoutImage(t *testing.T) {
	yaml := `
services:
  app:
    build: ./myapp
`
	_, err := ParseComposeSpec(yaml, ParseOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrServiceNoImage)

	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, "services.app.image", parseErr.Field)
}

func TestParseComposeSpec_Secrets(t *testing.T) {
	yaml := `
services:
  app:
    image: nginx:latest
secrets:
  token:
    file: ./token.txt
`
	_, err := ParseComposeSpec(yaml, ParseOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedFeature)
}

// =============================================================================
// Environment Tests
// =============================================================================

func TestParseComposeSpec_EnvironmentListSyntax(t *testing.T) {
	spec := parse(t, multiServiceSpec)

	svc, ok := spec.Service("worker")
	require.True(t, ok)
	assert.Equal(t, []string{"FOO=bar"}, svc.Environment)
}

func TestParseComposeSpec_EnvironmentMapSyntaxKeepsOrder(t *testing.T) {
	spec := parse(t, multiServiceSpec)

	svc, ok := spec.Service("db")
	require.True(t, ok)
	assert.Equal(t, []string{"POSTGRES_USER=admin", "POSTGRES_DB=app"}, svc.Environment)
}

func TestParseComposeSpec_EnvironmentListSyntaxKeepsOrder(t *testing.T) {
	yaml := `
services:
  app:
    image: nginx:latest
    environment:
      - ZED=1
      - URL=http://$(ZED)
      - ALPHA=2
`
	spec := parse(t, yaml)
	assert.Equal(t, []string{"ZED=1", "URL=http://$(ZED)", "ALPHA=2"}, spec.Services[0].Environment)
}

func TestParseComposeSpec_EnvironmentOrderPerService(t *testing.T) {
	yaml := `
services:
  web:
    image: nginx:latest
    environment:
      B: "2"
      A: "1"
  api:
    image: myapp:1.0
    environment:
      - Y=1
      - X=2
`
	spec := parse(t, yaml)

	api, ok := spec.Service("api")
	require.True(t, ok)
	assert.Equal(t, []string{"Y=1", "X=2"}, api.Environment)

	web, ok := spec.Service("web")
	require.True(t, ok)
	assert.Equal(t, []string{"B=2", "A=1"}, web.Environment)
}

func TestParseComposeSpec_EnvironmentValueWithEquals(t *testing.T) {
	yaml := `
services:
  app:
    image: nginx:latest
    environment:
      - DSN=host=db user=app
`
	spec := parse(t, yaml)
	assert.Equal(t, []string{"DSN=host=db user=app"}, spec.Services[0].Environment)
}

func TestParseComposeSpec_EnvironmentUnsetDropped(t *testing.T) {
	yaml := `
services:
  app:
    image: nginx:latest
    environment:
      - FROM_HOST
      - SET=1
`
	spec := parse(t, yaml)
	assert.Equal(t, []string{"SET=1"}, spec.Services[0].Environment)
}

func TestParseComposeSpec_Interpolation(t *testing.T) {
	spec, err := ParseComposeSpec(interpolatedSpec, ParseOptions{
		Environment: map[string]string{"DB_PASSWORD": "s3cret", "REGION": "eu"},
	})
	require.NoError(t, err)
	require.Len(t, spec.Services, 1)

	svc := spec.Services[0]
	assert.Equal(t, "myapp:latest", svc.Image)
	assert.Equal(t, []string{"DB_PASSWORD=s3cret", "REGION=eu"}, svc.Environment)
}

// =============================================================================
// Port Parsing Tests
// =============================================================================

func TestParseComposeSpec_PortsShortSyntax(t *testing.T) {
	spec := parse(t, multiServiceSpec)

	svc, ok := spec.Service("web")
	require.True(t, ok)
	assert.Equal(t, []string{"8080:80"}, svc.Ports)
}

func TestParseComposeSpec_PortsTargetOnly(t *testing.T) {
	yaml := `
services:
  app:
    image: myapp:latest
    ports:
      - "80"
`
	spec := parse(t, yaml)
	assert.Equal(t, []string{"80"}, spec.Services[0].Ports)
}

func TestParseComposeSpec_PortsWithIP(t *testing.T) {
	yaml := `
services:
  app:
    image: myapp:latest
    ports:
      - "127.0.0.1:8080:80"
`
	spec := parse(t, yaml)
	assert.Equal(t, []string{"8080:80"}, spec.Services[0].Ports)
}

func TestParseComposeSpec_PortsLongSyntax(t *testing.T) {
	yaml := `
services:
  app:
    image: myapp:latest
    ports:
      - target: 80
        published: 8080
        protocol: tcp
`
	spec := parse(t, yaml)
	assert.Equal(t, []string{"8080:80"}, spec.Services[0].Ports)
}

func TestParseComposeSpec_PortsMultipleKeepOrder(t *testing.T) {
	yaml := `
services:
  app:
    image: myapp:latest
    ports:
      - "443:8443"
      - "80:8080"
      - "9090"
`
	spec := parse(t, yaml)
	assert.Equal(t, []string{"443:8443", "80:8080", "9090"}, spec.Services[0].Ports)
}

func TestParseComposeSpec_PortsUDPRejected(t *testing.T) {
	yaml := `
services:
  app:
    image: myapp:latest
    ports:
      - "53:53/udp"
`
	_, err := ParseComposeSpec(yaml, ParseOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrServiceInvalidPort)

	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, "services.app.ports[0]", parseErr.Field)
}

func TestParseComposeSpec_PortsInvalidRange(t *testing.T) {
	yaml := `
services:
  app:
    image: myapp:latest
    ports:
      - "99999:80"
`
	_, err := ParseComposeSpec(yaml, ParseOptions{})
	require.Error(t, err)
	// compose-go may reject this itself; either way it is a configuration error
	assert.True(t, errors.Is(err, ErrServiceInvalidPort) || errors.Is(err, ErrInvalidYAML))
}

func TestParseComposeSpec_PortsZeroTarget(t *testing.T) {
	yaml := `
services:
  app:
    image: myapp:latest
    ports:
      - target: 0
        published: 8080
`
	_, err := ParseComposeSpec(yaml, ParseOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrServiceInvalidPort)
}

// =============================================================================
// Variable Extraction Tests
// =============================================================================

func TestExtractVariablesFromYAML(t *testing.T) {
	vars := ExtractVariablesFromYAML(interpolatedSpec)
	assert.Equal(t, []string{"TAG", "DB_PASSWORD", "REGION"}, vars)
}

func TestExtractVariablesFromYAML_None(t *testing.T) {
	assert.Empty(t, ExtractVariablesFromYAML(minimalValidSpec))
}

func TestMissingVariables(t *testing.T) {
	missing := MissingVariables(interpolatedSpec, map[string]string{"REGION": "eu"})
	// TAG has an inline default
	assert.Equal(t, []string{"DB_PASSWORD"}, missing)
}

// =============================================================================
// ParseError Tests
// =============================================================================

func TestParseError_Format(t *testing.T) {
	err := NewParseError("services.web.ports[0]", "bad port", ErrServiceInvalidPort)
	assert.Equal(t, "services.web.ports[0]: bad port", err.Error())
	assert.ErrorIs(t, err, ErrServiceInvalidPort)

	bare := NewParseError("", "bad yaml", ErrInvalidYAML)
	assert.Equal(t, "bad yaml", bare.Error())
}
