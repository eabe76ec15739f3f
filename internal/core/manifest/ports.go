package manifest

import (
	"fmt"
	"strconv"
	"strings"
)

// =============================================================================
// Port and Environment Parsing
// =============================================================================

// ProtocolTCP is the only protocol emitted in generated documents.
const ProtocolTCP = "TCP"

const maxPort = 65535

// PortMapping is a parsed port token.
type PortMapping struct {
	Published int64 // Port exposed by the network service
	Target    int64 // Port the container listens on
}

// ParsePort parses a "published:target" or bare "port" token.
// A bare port is both published and target.
//
// Example:
//
//	ParsePort("8080:80") // returns PortMapping{Published: 8080, Target: 80}
//	ParsePort("80")      // returns PortMapping{Published: 80, Target: 80}
func ParsePort(token string) (PortMapping, error) {
	published, target, found := strings.Cut(strings.TrimSpace(token), ":")
	if !found {
		target = published
	}

	p, err := parsePortNumber(published)
	if err != nil {
		return PortMapping{}, err
	}
	t, err := parsePortNumber(target)
	if err != nil {
		return PortMapping{}, err
	}
	return PortMapping{Published: p, Target: t}, nil
}

func parsePortNumber(s string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", s)
	}
	if n < 1 || n > maxPort {
		return 0, fmt.Errorf("%d is outside 1-%d", n, maxPort)
	}
	return n, nil
}

// EnvVar is a parsed environment entry.
type EnvVar struct {
	Name  string
	Value string
}

// ParseEnv splits a "KEY=VALUE" entry on the first "=".
// An entry without "=" has an empty value.
func ParseEnv(entry string) (EnvVar, error) {
	name, value, _ := strings.Cut(entry, "=")
	if strings.TrimSpace(name) == "" {
		return EnvVar{}, fmt.Errorf("missing variable name")
	}
	return EnvVar{Name: name, Value: value}, nil
}
