package manifest

import (
	"fmt"
	"strings"
)

// =============================================================================
// Resource Naming Functions
// =============================================================================

// Labels stamped on every generated resource.
const (
	// LabelApp ties pods to their deployment and service selectors.
	LabelApp = "app"
	// LabelGroup is the deletion key: resources are removed with "group=<name>".
	LabelGroup = "group"
)

// File suffixes for generated documents.
const (
	DeploymentFileSuffix = ".pod.yml"
	ServiceFileSuffix    = ".service.yml"
)

// NamingContext derives resource names from a run-wide prefix.
type NamingContext struct {
	Prefix string
}

// Name returns the derived resource name for a compose service.
// Pattern: {lower(prefix)}-{service}
//
// Example:
//
//	NamingContext{Prefix: "Demo"}.Name("web") // returns "demo-web"
func (n NamingContext) Name(service string) string {
	return fmt.Sprintf("%s-%s", strings.ToLower(n.Prefix), service)
}

// Validate reports whether the context can derive names.
func (n NamingContext) Validate() error {
	if strings.TrimSpace(n.Prefix) == "" {
		return ErrMissingPrefix
	}
	return nil
}

// ServiceName returns the network service name for a derived name.
// Pattern: {name}-service
func ServiceName(name string) string {
	return name + "-service"
}

// RouteName returns the route name for a derived name.
// Pattern: {name}-route
func RouteName(name string) string {
	return name + "-route"
}

// Selector returns the label selector that matches every resource of a derived name.
// Pattern: group={name}
func Selector(name string) string {
	return LabelGroup + "=" + name
}

// DeploymentFile returns the file name of the deployment document.
func DeploymentFile(name string) string {
	return name + DeploymentFileSuffix
}

// ServiceFile returns the file name of the service document.
func ServiceFile(name string) string {
	return name + ServiceFileSuffix
}
