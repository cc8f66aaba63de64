package submit

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Manifest describes a job submission: the kernel and data inputs to bundle
// and optional glob filters applied to the staged files.
type Manifest struct {
	// Kernel is the path to the kernel file or folder (required).
	Kernel string `yaml:"kernel"`

	// Data is the path to the data file or folder (required).
	Data string `yaml:"data"`

	// Include restricts the upload to staged paths matching any pattern
	// (doublestar globs, e.g. "data/**/*.json"). Empty includes everything.
	Include []string `yaml:"include,omitempty"`

	// Exclude drops staged paths matching any pattern. Applied after Include.
	Exclude []string `yaml:"exclude,omitempty"`
}

// LoadManifest reads and validates a YAML submission manifest.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("manifest file not found: %s", path)
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks that required fields are present.
func (m *Manifest) Validate() error {
	if strings.TrimSpace(m.Kernel) == "" {
		return fmt.Errorf("manifest: kernel path is required")
	}
	if strings.TrimSpace(m.Data) == "" {
		return fmt.Errorf("manifest: data path is required")
	}
	return nil
}
