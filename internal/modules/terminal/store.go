package terminal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Store persists configured terminal endpoints. The engine loads on startup and
// saves after discovery updates; it never persists transaction state.
type Store interface {
	Load(ctx context.Context) ([]Terminal, error)
	Save(ctx context.Context, terminals []Terminal) error
}

// ── YAML file store ───────────────────────────────────────────────────────────

type yamlStore struct{ path string }

// NewYAMLStore persists terminals to a YAML file. Suitable for single-lane
// deployments where no database is available.
func NewYAMLStore(path string) Store { return &yamlStore{path: path} }

type yamlFile struct {
	Terminals []Terminal `yaml:"terminals"`
}

func (s *yamlStore) Load(ctx context.Context) ([]Terminal, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read terminal config: %w", err)
	}
	var f yamlFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse terminal config: %w", err)
	}
	return f.Terminals, nil
}

func (s *yamlStore) Save(ctx context.Context, terminals []Terminal) error {
	data, err := yaml.Marshal(yamlFile{Terminals: terminals})
	if err != nil {
		return fmt.Errorf("encode terminal config: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	// Write-then-rename so a crash mid-save never truncates the config.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write terminal config: %w", err)
	}
	return os.Rename(tmp, s.path)
}
