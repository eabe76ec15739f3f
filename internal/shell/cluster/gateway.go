package cluster

import (
	"context"
	"log/slog"
)

// DefaultBinary is the cluster CLI invoked when none is configured.
const DefaultBinary = "oc"

// Credentials authenticate a session with the cluster tool.
type Credentials struct {
	Server   string // API server URL; empty keeps the tool's current server
	Username string
	Password string
}

// Gateway issues cluster verbs through a Runner.
// Every verb may change remote state and is never retried.
type Gateway struct {
	runner Runner
	binary string
	logger *slog.Logger
}

// NewGateway creates a gateway for the given binary.
func NewGateway(runner Runner, binary string, logger *slog.Logger) *Gateway {
	if binary == "" {
		binary = DefaultBinary
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		runner: runner,
		binary: binary,
		logger: logger,
	}
}

// Binary returns the cluster CLI name.
func (g *Gateway) Binary() string {
	return g.binary
}

// Status checks for an authenticated session.
func (g *Gateway) Status(ctx context.Context) Outcome {
	return g.run(ctx, "whoami")
}

// Login authenticates with username and password.
func (g *Gateway) Login(ctx context.Context, creds Credentials) Outcome {
	args := []string{"login"}
	if creds.Server != "" {
		args = append(args, creds.Server)
	}
	args = append(args, "-u", creds.Username, "-p", creds.Password)
	return g.run(ctx, args...)
}

// Project switches the current project.
func (g *Gateway) Project(ctx context.Context, name string) Outcome {
	return g.run(ctx, "project", name)
}

// Create creates the resources described in file.
func (g *Gateway) Create(ctx context.Context, file string) Outcome {
	return g.run(ctx, "create", "-f", file)
}

// DeleteBySelector deletes every resource matching a label selector.
func (g *Gateway) DeleteBySelector(ctx context.Context, selector string) Outcome {
	return g.run(ctx, "delete", "all", "-l", selector)
}

// Expose creates a route for a network service.
func (g *Gateway) Expose(ctx context.Context, service, route string) Outcome {
	return g.run(ctx, "expose", "svc/"+service, "--name="+route)
}

// Routes lists the routes of the current project.
func (g *Gateway) Routes(ctx context.Context) Outcome {
	return g.run(ctx, "get", "routes")
}

func (g *Gateway) run(ctx context.Context, args ...string) Outcome {
	out := g.runner.Run(ctx, g.binary, args...)
	if !out.OK() {
		g.logger.Debug("cluster verb failed", "binary", g.binary, "args", out.Args, "error", out.Err)
	}
	return out
}
