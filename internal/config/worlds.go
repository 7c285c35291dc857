package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// WorldSeed describes a world to register at startup
type WorldSeed struct {
	ID   int64  `yaml:"id"`
	Name string `yaml:"name"`
	Size int    `yaml:"size"`
}

type worldsFile struct {
	Worlds []WorldSeed `yaml:"worlds"`
}

// LoadWorlds reads the bootstrap worlds file. A zero size is replaced with defaultSize.
func LoadWorlds(path string, defaultSize int) ([]WorldSeed, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read worlds file: %w", err)
	}

	var file worldsFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse worlds file %s: %w", path, err)
	}

	seen := make(map[int64]bool, len(file.Worlds))
	names := make(map[string]bool, len(file.Worlds))
	for i := range file.Worlds {
		w := &file.Worlds[i]
		if w.Name == "" {
			return nil, fmt.Errorf("world %d: name is required", w.ID)
		}
		if seen[w.ID] {
			return nil, fmt.Errorf("duplicate world id %d", w.ID)
		}
		if names[w.Name] {
			return nil, fmt.Errorf("duplicate world name %q", w.Name)
		}
		if w.Size == 0 {
			w.Size = defaultSize
		}
		if w.Size < 0 {
			return nil, fmt.Errorf("world %d: size must be positive, got %d", w.ID, w.Size)
		}
		seen[w.ID] = true
		names[w.Name] = true
	}
	return file.Worlds, nil
}
