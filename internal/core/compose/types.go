package compose

// =============================================================================
// ParsedSpec - Main Output Type
// =============================================================================

// ParsedSpec represents a parsed compose descriptor reduced to the fields the
// manifest translator consumes. Services are ordered by name.
type ParsedSpec struct {
	Services []ServiceSpec `json:"services"`
}

// ServiceSpec is a single compose service.
//
// Environment entries are "KEY=VALUE" strings. Ports are tokens of the form
// "published:target" or a bare "target" when nothing was published.
type ServiceSpec struct {
	Name        string   `json:"name"`
	Image       string   `json:"image"`
	Environment []string `json:"environment,omitempty"`
	Ports       []string `json:"ports,omitempty"`
}

// Names returns the service names in spec order.
func (s *ParsedSpec) Names() []string {
	names := make([]string, 0, len(s.Services))
	for _, svc := range s.Services {
		names = append(names, svc.Name)
	}
	return names
}

// Service looks up a service by name.
func (s *ParsedSpec) Service(name string) (ServiceSpec, bool) {
	for _, svc := range s.Services {
		if svc.Name == name {
			return svc, true
		}
	}
	return ServiceSpec{}, false
}

// ParseOptions controls how a descriptor is loaded.
type ParseOptions struct {
	// ProjectName is handed to the compose loader. Defaults to "composeshift".
	ProjectName string

	// Environment is used to interpolate ${VAR} placeholders.
	Environment map[string]string
}
