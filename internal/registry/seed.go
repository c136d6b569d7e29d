package registry

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed seed.yaml
var defaultSeed []byte

// Seed is the initial content of the registry.
type Seed struct {
	ReadyMessage string             `yaml:"ready_message"`
	Sims         []Sim              `yaml:"sims"`
	Registered   []RegisteredNumber `yaml:"registered"`
}

// DefaultSeed returns the built-in demo registry.
func DefaultSeed() Seed {
	seed, err := ParseSeed(defaultSeed)
	if err != nil {
		panic(fmt.Errorf("registry: embedded seed: %w", err))
	}
	return seed
}

// LoadSeed reads a seed document from path, or the built-in one when path is empty.
func LoadSeed(path string) (Seed, error) {
	if path == "" {
		return DefaultSeed(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, fmt.Errorf("read seed %s: %w", path, err)
	}
	return ParseSeed(raw)
}

// ParseSeed decodes and validates a YAML seed document.
func ParseSeed(raw []byte) (Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return Seed{}, fmt.Errorf("parse seed: %w", err)
	}
	if err := seed.validate(); err != nil {
		return Seed{}, err
	}
	return seed, nil
}

func (s Seed) validate() error {
	seen := make(map[string]struct{}, len(s.Sims))
	for _, sim := range s.Sims {
		if sim.ID == "" {
			return fmt.Errorf("seed: sim %q has no id", sim.Number)
		}
		if _, dup := seen[sim.ID]; dup {
			return fmt.Errorf("seed: duplicate sim id %q", sim.ID)
		}
		seen[sim.ID] = struct{}{}
	}
	for _, rec := range s.Registered {
		if !rec.Risk.Valid() {
			return fmt.Errorf("seed: registered number %q has unknown risk %q", rec.ID, rec.Risk)
		}
	}
	return nil
}
