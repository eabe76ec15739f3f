// Package manifests writes translated documents to disk and loads
// template overrides.
package manifests

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/artpar/composeshift/internal/core/manifest"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

const fileMode = os.FileMode(0644)

// Files are the paths written for one service.
type Files struct {
	Deployment string
	Service    string // empty when the service publishes no ports
}

// =============================================================================
// Writer
// =============================================================================

// Writer writes documents into a single output directory.
type Writer struct {
	dir    string
	logger *slog.Logger
}

// NewWriter creates a writer for dir. An empty dir means the working directory.
func NewWriter(dir string, logger *slog.Logger) *Writer {
	if dir == "" {
		dir = "."
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{dir: dir, logger: logger}
}

// Dir returns the output directory.
func (w *Writer) Dir() string {
	return w.dir
}

// Write writes {name}.pod.yml and, when present, {name}.service.yml.
// Existing files are overwritten.
func (w *Writer) Write(result manifest.Result) (Files, error) {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return Files{}, fmt.Errorf("failed to create output directory: %w", err)
	}

	var files Files

	path, err := w.writeDocument(manifest.DeploymentFile(result.Name), result.Deployment)
	if err != nil {
		return Files{}, err
	}
	files.Deployment = path

	if result.HasService() {
		path, err := w.writeDocument(manifest.ServiceFile(result.Name), result.Service)
		if err != nil {
			return Files{}, err
		}
		files.Service = path
	}

	w.logger.Debug("documents written",
		"service", result.ServiceName,
		"name", result.Name,
		"deployment", files.Deployment,
		"service_file", files.Service,
	)
	return files, nil
}

// WriteAll writes every result, stopping at the first failure.
func (w *Writer) WriteAll(results []manifest.Result) ([]Files, error) {
	written := make([]Files, 0, len(results))
	for _, r := range results {
		files, err := w.Write(r)
		if err != nil {
			return nil, err
		}
		written = append(written, files)
	}
	return written, nil
}

func (w *Writer) writeDocument(file string, doc *unstructured.Unstructured) (string, error) {
	data, err := manifest.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to encode %s: %w", file, err)
	}
	path := filepath.Join(w.dir, file)
	if err := os.WriteFile(path, data, fileMode); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", file, err)
	}
	return path, nil
}

// =============================================================================
// Templates
// =============================================================================

// LoadTemplates returns the embedded skeletons, each replaced by
// dir/pod.yml or dir/service.yml when that file exists.
// An empty dir uses the embedded skeletons only.
func LoadTemplates(dir string) (*manifest.Templates, error) {
	deployment, service := manifest.DefaultTemplateSources()
	if dir == "" {
		return manifest.ParseTemplates(deployment, service)
	}

	var err error
	if deployment, err = readOverride(dir, manifest.DeploymentTemplateFile, deployment); err != nil {
		return nil, err
	}
	if service, err = readOverride(dir, manifest.ServiceTemplateFile, service); err != nil {
		return nil, err
	}
	return manifest.ParseTemplates(deployment, service)
}

func readOverride(dir, file string, fallback []byte) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(dir, file))
	if errors.Is(err, fs.ErrNotExist) {
		return fallback, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read template %s: %w", file, err)
	}
	return data, nil
}
