package compose

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/compose-spec/compose-go/v2/loader"
	"github.com/compose-spec/compose-go/v2/types"
	"gopkg.in/yaml.v3"
)

// DefaultProjectName is the project name handed to compose-go when none is given.
const DefaultProjectName = "composeshift"

// maxPort is the highest valid TCP port.
const maxPort = 65535

// =============================================================================
// Parser Functions
// =============================================================================

// ParseComposeSpec parses compose YAML into a ParsedSpec.
// This is a pure function - no I/O, no side effects.
// Input: raw YAML string and load options
// Output: ParsedSpec struct or error
func ParseComposeSpec(yamlContent string, opts ParseOptions) (*ParsedSpec, error) {
	// Input validation
	if strings.TrimSpace(yamlContent) == "" {
		return nil, ErrEmptyInput
	}

	project, err := loadComposeSpec(yamlContent, opts)
	if err != nil {
		return nil, err
	}

	if err := checkUnsupportedFeatures(project); err != nil {
		return nil, err
	}

	if len(project.Services) == 0 {
		return nil, ErrNoServices
	}

	names := make([]string, 0, len(project.Services))
	for name := range project.Services {
		names = append(names, name)
	}
	sort.Strings(names)

	spec := &ParsedSpec{
		Services: make([]ServiceSpec, 0, len(names)),
	}
	order := environmentOrder(yamlContent)
	for _, name := range names {
		converted, err := convertService(project.Services[name], order[name])
		if err != nil {
			return nil, err
		}
		spec.Services = append(spec.Services, converted)
	}

	return spec, nil
}

// portErrorRegex spots compose-go load errors that concern a port mapping.
var portErrorRegex = regexp.MustCompile(`\bports?\b`)

// loadComposeSpec loads a compose spec using compose-go
func loadComposeSpec(yamlContent string, opts ParseOptions) (*types.Project, error) {
	// Parse YAML into a map first
	var dict map[string]interface{}
	if err := yaml.Unmarshal([]byte(yamlContent), &dict); err != nil {
		return nil, NewParseError("", "invalid YAML syntax", ErrInvalidYAML)
	}
	if dict == nil {
		return nil, NewParseError("", "invalid YAML syntax", ErrInvalidYAML)
	}

	projectName := opts.ProjectName
	if projectName == "" {
		projectName = DefaultProjectName
	}

	env := types.Mapping{}
	for k, v := range opts.Environment {
		env[k] = v
	}

	project, err := loader.LoadWithContext(context.Background(), types.ConfigDetails{
		ConfigFiles: []types.ConfigFile{
			{
				Content: []byte(yamlContent),
				Config:  dict,
			},
		},
		Environment: env,
	}, func(o *loader.Options) {
		o.SetProjectName(projectName, false)
		o.SkipValidation = false
		o.SkipInterpolation = false
		// In-memory content: nothing to resolve relative to
		o.SkipNormalization = true
		o.SkipExtends = true
	})
	if err != nil {
		errStr := err.Error()
		if strings.Contains(errStr, "image") && strings.Contains(errStr, "build") {
			return nil, NewParseError("", "service must have an image", ErrServiceNoImage)
		}
		if portErrorRegex.MatchString(errStr) {
			return nil, NewParseError("", errStr, ErrServiceInvalidPort)
		}
		return nil, NewParseError("", errStr, ErrInvalidYAML)
	}

	return project, nil
}

// checkUnsupportedFeatures checks for features we don't support
func checkUnsupportedFeatures(project *types.Project) error {
	if len(project.Secrets) > 0 {
		return NewParseError("secrets", "secrets are not supported", ErrUnsupportedFeature)
	}

	if len(project.Configs) > 0 {
		return NewParseError("configs", "configs are not supported", ErrUnsupportedFeature)
	}

	for _, svc := range project.Services {
		if svc.Extends != nil && svc.Extends.File != "" {
			return NewParseError("services."+svc.Name+".extends", "extends is not supported", ErrUnsupportedFeature)
		}
	}

	return nil
}

// convertService converts a compose-go service to a ServiceSpec.
// envOrder lists the environment keys as written in the file.
func convertService(svc types.ServiceConfig, envOrder []string) (ServiceSpec, error) {
	field := "services." + svc.Name

	if strings.TrimSpace(svc.Image) == "" {
		return ServiceSpec{}, NewParseError(field+".image", "service must have an image", ErrServiceNoImage)
	}

	service := ServiceSpec{
		Name:  svc.Name,
		Image: svc.Image,
	}

	// Environment: compose normalizes both syntaxes to an unordered mapping,
	// so the written key order is restored. Keys missing from the file order
	// follow, sorted.
	seen := make(map[string]bool, len(svc.Environment))
	var rest []string
	for k := range svc.Environment {
		rest = append(rest, k)
	}
	sort.Strings(rest)
	for _, k := range append(envOrder, rest...) {
		v, ok := svc.Environment[k]
		if !ok || v == nil || seen[k] {
			continue
		}
		seen[k] = true
		service.Environment = append(service.Environment, k+"="+*v)
	}

	for i, p := range svc.Ports {
		token, err := portToken(p)
		if err != nil {
			return ServiceSpec{}, NewParseError(fmt.Sprintf("%s.ports[%d]", field, i), err.Error(), ErrServiceInvalidPort)
		}
		service.Ports = append(service.Ports, token)
	}

	return service, nil
}

// environmentOrder returns, per service, the environment keys in the order
// they are written. Both list ("K=V", "K") and mapping syntax are read.
// Anything it cannot read is left to the loader to report.
func environmentOrder(yamlContent string) map[string][]string {
	var doc struct {
		Services map[string]struct {
			Environment yaml.Node `yaml:"environment"`
		} `yaml:"services"`
	}
	// A partial decode still yields the services it could read.
	_ = yaml.Unmarshal([]byte(yamlContent), &doc)

	order := make(map[string][]string, len(doc.Services))
	for name, svc := range doc.Services {
		node := svc.Environment
		var keys []string
		switch node.Kind {
		case yaml.SequenceNode:
			for _, item := range node.Content {
				key, _, _ := strings.Cut(item.Value, "=")
				keys = append(keys, strings.TrimSpace(key))
			}
		case yaml.MappingNode:
			for i := 0; i+1 < len(node.Content); i += 2 {
				keys = append(keys, node.Content[i].Value)
			}
		}
		order[name] = keys
	}
	return order
}

// portToken renders a compose port as "published:target", or "target" when
// nothing is published.
func portToken(p types.ServicePortConfig) (string, error) {
	if p.Protocol != "" && !strings.EqualFold(p.Protocol, "tcp") {
		return "", fmt.Errorf("protocol %q is not supported, only tcp", p.Protocol)
	}
	if p.Target == 0 {
		return "", fmt.Errorf("target port cannot be 0")
	}
	if p.Target > maxPort {
		return "", fmt.Errorf("target port must be <= %d", maxPort)
	}

	target := strconv.FormatUint(uint64(p.Target), 10)
	if p.Published == "" {
		return target, nil
	}

	published, err := strconv.ParseUint(p.Published, 10, 32)
	if err != nil {
		return "", fmt.Errorf("published port %q is not a number", p.Published)
	}
	if published == 0 || published > maxPort {
		return "", fmt.Errorf("published port must be between 1 and %d", maxPort)
	}
	return strconv.FormatUint(published, 10) + ":" + target, nil
}

// =============================================================================
// Variable Extraction
// =============================================================================

// variablePlaceholderRegex matches ${VAR_NAME} or ${VAR_NAME:-default}
var variablePlaceholderRegex = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-[^}]*)?\}`)

// ExtractVariablesFromYAML extracts environment variable placeholders from raw YAML content.
// This extracts variable names before compose-go interpolates them.
// Returns unique variable names without the ${} wrapper.
func ExtractVariablesFromYAML(yamlContent string) []string {
	seen := make(map[string]bool)
	var vars []string

	matches := variablePlaceholderRegex.FindAllStringSubmatch(yamlContent, -1)
	for _, match := range matches {
		if len(match) >= 2 {
			varName := match[1]
			if !seen[varName] {
				seen[varName] = true
				vars = append(vars, varName)
			}
		}
	}

	return vars
}

// MissingVariables returns the placeholders in yamlContent that have no value
// in env and no inline default.
func MissingVariables(yamlContent string, env map[string]string) []string {
	withDefault := make(map[string]bool)
	for _, match := range variablePlaceholderRegex.FindAllStringSubmatch(yamlContent, -1) {
		if strings.Contains(match[0], ":-") {
			withDefault[match[1]] = true
		}
	}

	var missing []string
	for _, name := range ExtractVariablesFromYAML(yamlContent) {
		if _, ok := env[name]; ok || withDefault[name] {
			continue
		}
		missing = append(missing, name)
	}
	return missing
}
