// Package manifest loads the YAML file a host uses to declare which
// transformer classes to register and under what process-wide policy,
// adapted from the teacher's funxy.yaml config loader (gopkg.in/yaml.v3,
// the same read-parse-validate-default pipeline and the same directory
// walk to locate the file).
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/quillbyte/classmorph/internal/host"
)

// Version is the manifest schema version this package understands.
const Version = "1"

const defaultFailStrategy = "CONTINUE"

// Manifest is the top-level classmorph.yaml document.
type Manifest struct {
	// Transformers lists bare names, "pkg.*" (direct children), and
	// "pkg.**" (all descendants) patterns to register (spec §6).
	Transformers []string `yaml:"transformers"`

	// FailStrategy is the process-wide handler-error policy: CONTINUE,
	// CANCEL, or EXIT. Defaults to CONTINUE.
	FailStrategy string `yaml:"fail_strategy,omitempty"`

	// Hotswap enables the IDE push channel (internal/hotswaprpc) when true.
	Hotswap HotswapConfig `yaml:"hotswap,omitempty"`
}

// HotswapConfig configures the optional hotswap listener.
type HotswapConfig struct {
	Enabled bool   `yaml:"enabled,omitempty"`
	Address string `yaml:"address,omitempty"`
}

// Load reads and parses a manifest file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("classmorph: reading manifest %s: %w", path, err)
	}
	return Parse(data, path)
}

// Parse parses manifest content from bytes. path is used only in error
// messages.
func Parse(data []byte, path string) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("classmorph: parsing %s: %w", path, err)
	}
	if err := m.validate(path); err != nil {
		return nil, err
	}
	m.setDefaults()
	return &m, nil
}

// Find searches for classmorph.yaml or classmorph.yml starting at dir and
// walking up through parent directories, stopping at the first match.
// Returns an empty path and nil error if none is found.
func Find(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("classmorph: resolving directory: %w", err)
	}

	for {
		for _, name := range []string{"classmorph.yaml", "classmorph.yml"} {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

func (m *Manifest) validate(path string) error {
	if len(m.Transformers) == 0 {
		return fmt.Errorf("classmorph: %s: no transformers declared", path)
	}
	if m.FailStrategy != "" {
		if _, ok := host.ParseFailStrategy(m.FailStrategy); !ok {
			return fmt.Errorf("classmorph: %s: unknown fail_strategy %q", path, m.FailStrategy)
		}
	}
	if m.Hotswap.Enabled && m.Hotswap.Address == "" {
		return fmt.Errorf("classmorph: %s: hotswap.enabled requires hotswap.address", path)
	}
	return nil
}

func (m *Manifest) setDefaults() {
	if m.FailStrategy == "" {
		m.FailStrategy = defaultFailStrategy
	}
}

// ResolveFailStrategy parses the manifest's FailStrategy field.
func (m *Manifest) ResolveFailStrategy() host.FailStrategy {
	strategy, _ := host.ParseFailStrategy(m.FailStrategy)
	return strategy
}
