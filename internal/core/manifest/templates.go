package manifest

import (
	_ "embed"
	"fmt"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"sigs.k8s.io/yaml"
)

// Skeleton file names, also used when overriding templates from a directory.
const (
	DeploymentTemplateFile = "pod.yml"
	ServiceTemplateFile    = "service.yml"
)

//go:embed templates/pod.yml
var defaultDeploymentTemplate []byte

//go:embed templates/service.yml
var defaultServiceTemplate []byte

// =============================================================================
// Templates
// =============================================================================

// Templates holds the deployment and service skeletons.
// The skeletons are private and only handed out as deep copies, so a loaded
// Templates value is safe to share between concurrent translations.
type Templates struct {
	deployment *unstructured.Unstructured
	service    *unstructured.Unstructured
}

// DefaultTemplates returns the skeletons compiled into the binary.
func DefaultTemplates() (*Templates, error) {
	return ParseTemplates(defaultDeploymentTemplate, defaultServiceTemplate)
}

// DefaultTemplateSources returns the raw embedded skeletons.
func DefaultTemplateSources() (deployment, service []byte) {
	return append([]byte(nil), defaultDeploymentTemplate...), append([]byte(nil), defaultServiceTemplate...)
}

// ParseTemplates decodes the two skeletons.
// The deployment skeleton must declare at least one container.
func ParseTemplates(deployment, service []byte) (*Templates, error) {
	dep, err := decodeTemplate(DeploymentTemplateFile, deployment)
	if err != nil {
		return nil, err
	}
	containers, found, err := unstructured.NestedSlice(dep.Object, containersPath...)
	if err != nil || !found || len(containers) == 0 {
		return nil, fmt.Errorf("%s: spec.template.spec.containers must hold a container: %w", DeploymentTemplateFile, ErrInvalidTemplate)
	}
	if _, ok := containers[0].(map[string]interface{}); !ok {
		return nil, fmt.Errorf("%s: first container is not a mapping: %w", DeploymentTemplateFile, ErrInvalidTemplate)
	}

	svc, err := decodeTemplate(ServiceTemplateFile, service)
	if err != nil {
		return nil, err
	}

	return &Templates{deployment: dep, service: svc}, nil
}

// Deployment returns a fresh copy of the deployment skeleton.
func (t *Templates) Deployment() *unstructured.Unstructured {
	return t.deployment.DeepCopy()
}

// Service returns a fresh copy of the service skeleton.
func (t *Templates) Service() *unstructured.Unstructured {
	return t.service.DeepCopy()
}

func decodeTemplate(file string, data []byte) (*unstructured.Unstructured, error) {
	obj := map[string]interface{}{}
	if err := yaml.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("%s: %v: %w", file, err, ErrInvalidTemplate)
	}
	if len(obj) == 0 {
		return nil, fmt.Errorf("%s: empty document: %w", file, ErrInvalidTemplate)
	}
	return &unstructured.Unstructured{Object: obj}, nil
}
