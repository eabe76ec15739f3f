package manifest

import (
	"fmt"
	"strings"

	"github.com/artpar/composeshift/internal/core/compose"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/util/validation"
	"sigs.k8s.io/yaml"
)

// Nested field paths inside the deployment skeleton.
var (
	containersPath     = []string{"spec", "template", "spec", "containers"}
	selectorLabelsPath = []string{"spec", "selector", "matchLabels"}
	podLabelsPath      = []string{"spec", "template", "metadata", "labels"}
	metadataLabelsPath = []string{"metadata", "labels"}
	serviceSelectPath  = []string{"spec", "selector"}
	servicePortsPath   = []string{"spec", "ports"}
)

// =============================================================================
// Translation
// =============================================================================

// Result is the translation of one compose service.
type Result struct {
	// ServiceName is the compose service name.
	ServiceName string

	// Name is the derived resource name, {lower(prefix)}-{service}.
	Name string

	// Deployment is the deployment unit document.
	Deployment *unstructured.Unstructured

	// Service is the network service document; nil when no ports are published.
	Service *unstructured.Unstructured
}

// HasService reports whether a network service document was produced.
func (r Result) HasService() bool {
	return r.Service != nil
}

// Translate builds the deployment document and, when the service publishes
// ports, the network service document for one compose service.
//
// This is a pure function: the templates are deep-copied, never mutated, and
// the two returned documents share no state.
//
// The function:
//   - Derives the resource name from the naming context
//   - Stamps app and group labels at every label site of the deployment
//   - Sets the first container's name and image
//   - Fills env and ports, or removes them when the service has none
//   - Builds the service document only when ports are published
//
// Example:
//
//	svc := compose.ServiceSpec{Name: "web", Image: "nginx", Ports: []string{"8080:80"}}
//	result, err := Translate(svc, NamingContext{Prefix: "demo"}, templates)
//	// result.Name == "demo-web", result.Service != nil
func Translate(svc compose.ServiceSpec, naming NamingContext, templates *Templates) (Result, error) {
	if err := naming.Validate(); err != nil {
		return Result{}, NewTranslateError(svc.Name, "", err.Error(), err)
	}
	if strings.TrimSpace(svc.Image) == "" {
		return Result{}, NewTranslateError(svc.Name, "", "image is required", ErrMissingImage)
	}

	name := naming.Name(svc.Name)
	if errs := validation.IsDNS1123Label(name); len(errs) > 0 {
		return Result{}, NewTranslateError(svc.Name, name, invalidNameMessage(errs), ErrInvalidName)
	}

	env, err := buildEnv(svc)
	if err != nil {
		return Result{}, err
	}

	mappings, err := parsePorts(svc)
	if err != nil {
		return Result{}, err
	}

	deployment, err := buildDeployment(templates.Deployment(), name, svc.Image, env, mappings)
	if err != nil {
		return Result{}, NewTranslateError(svc.Name, "", err.Error(), ErrInvalidTemplate)
	}

	result := Result{
		ServiceName: svc.Name,
		Name:        name,
		Deployment:  deployment,
	}

	if len(mappings) > 0 {
		serviceName := ServiceName(name)
		if errs := validation.IsDNS1035Label(serviceName); len(errs) > 0 {
			return Result{}, NewTranslateError(svc.Name, serviceName, invalidNameMessage(errs), ErrInvalidName)
		}
		service, err := buildService(templates.Service(), name, mappings)
		if err != nil {
			return Result{}, NewTranslateError(svc.Name, "", err.Error(), ErrInvalidTemplate)
		}
		result.Service = service
	}

	return result, nil
}

// TranslateAll translates every service of a parsed spec, in spec order.
// It stops at the first service that fails.
func TranslateAll(spec *compose.ParsedSpec, naming NamingContext, templates *Templates) ([]Result, error) {
	results := make([]Result, 0, len(spec.Services))
	for _, svc := range spec.Services {
		result, err := Translate(svc, naming, templates)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, nil
}

// Marshal serializes a document to YAML. Keys are emitted in sorted order,
// so translating the same input twice yields identical bytes.
func Marshal(doc *unstructured.Unstructured) ([]byte, error) {
	return yaml.Marshal(doc.Object)
}

// =============================================================================
// Builders
// =============================================================================

func buildEnv(svc compose.ServiceSpec) ([]interface{}, error) {
	if len(svc.Environment) == 0 {
		return nil, nil
	}
	env := make([]interface{}, 0, len(svc.Environment))
	for _, entry := range svc.Environment {
		v, err := ParseEnv(entry)
		if err != nil {
			return nil, NewTranslateError(svc.Name, entry, err.Error(), ErrInvalidEnv)
		}
		env = append(env, map[string]interface{}{
			"name":  v.Name,
			"value": v.Value,
		})
	}
	return env, nil
}

func parsePorts(svc compose.ServiceSpec) ([]PortMapping, error) {
	mappings := make([]PortMapping, 0, len(svc.Ports))
	for _, token := range svc.Ports {
		m, err := ParsePort(token)
		if err != nil {
			return nil, NewTranslateError(svc.Name, token, err.Error(), ErrInvalidPort)
		}
		mappings = append(mappings, m)
	}
	return mappings, nil
}

func buildDeployment(doc *unstructured.Unstructured, name, image string, env []interface{}, mappings []PortMapping) (*unstructured.Unstructured, error) {
	doc.SetName(name)

	for _, path := range [][]string{metadataLabelsPath, selectorLabelsPath, podLabelsPath} {
		if err := stampLabels(doc.Object, name, path...); err != nil {
			return nil, err
		}
	}

	containers, _, err := unstructured.NestedSlice(doc.Object, containersPath...)
	if err != nil || len(containers) == 0 {
		return nil, fmt.Errorf("deployment template has no container")
	}
	container, ok := containers[0].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("deployment template container is not a mapping")
	}

	container["name"] = name
	container["image"] = image

	if len(env) > 0 {
		container["env"] = env
	} else {
		delete(container, "env")
	}

	if len(mappings) > 0 {
		ports := make([]interface{}, 0, len(mappings))
		for _, m := range mappings {
			ports = append(ports, map[string]interface{}{
				"containerPort": m.Target,
				"protocol":      ProtocolTCP,
			})
		}
		container["ports"] = ports
	} else {
		delete(container, "ports")
	}

	containers[0] = container
	if err := unstructured.SetNestedSlice(doc.Object, containers, containersPath...); err != nil {
		return nil, err
	}
	return doc, nil
}

func buildService(doc *unstructured.Unstructured, name string, mappings []PortMapping) (*unstructured.Unstructured, error) {
	doc.SetName(ServiceName(name))

	labels := doc.GetLabels()
	if labels == nil {
		labels = map[string]string{}
	}
	labels[LabelGroup] = name
	doc.SetLabels(labels)

	if err := unstructured.SetNestedStringMap(doc.Object, map[string]string{LabelApp: name}, serviceSelectPath...); err != nil {
		return nil, err
	}

	ports := make([]interface{}, 0, len(mappings))
	for _, m := range mappings {
		ports = append(ports, map[string]interface{}{
			"protocol":   ProtocolTCP,
			"port":       m.Published,
			"targetPort": m.Target,
		})
	}
	if err := unstructured.SetNestedSlice(doc.Object, ports, servicePortsPath...); err != nil {
		return nil, err
	}
	return doc, nil
}

// invalidNameMessage explains a rejected resource name. Compose accepts
// service names the cluster does not, such as ones with underscores.
func invalidNameMessage(errs []string) string {
	return strings.Join(errs, "; ") +
		"; rename the compose service to lowercase letters, digits and '-', or choose a shorter prefix"
}

// stampLabels sets app and group on the label map at path, keeping any other
// labels the skeleton carries there.
func stampLabels(obj map[string]interface{}, name string, path ...string) error {
	labels, _, err := unstructured.NestedStringMap(obj, path...)
	if err != nil {
		return fmt.Errorf("%s: %w", strings.Join(path, "."), err)
	}
	if labels == nil {
		labels = map[string]string{}
	}
	labels[LabelApp] = name
	labels[LabelGroup] = name
	return unstructured.SetNestedStringMap(obj, labels, path...)
}
