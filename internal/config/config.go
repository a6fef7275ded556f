// Package config loads and validates the game configuration file (koos.yml):
// the container, the seats, the piece inventory and the rule settings.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ABakker30/koospuzzlev1-sub002/pkg/engine"
	"github.com/ABakker30/koospuzzlev1-sub002/pkg/lattice"
)

// GameConfig represents the top-level koos.yml configuration.
type GameConfig struct {
	Version   string               `yaml:"version"`
	GameID    string               `yaml:"game_id,omitempty"` // generated when empty
	Container ContainerConfig      `yaml:"container"`
	Players   []engine.PlayerSetup `yaml:"players"`
	Inventory map[string]int       `yaml:"inventory"` // piece id -> count, -1 = unlimited
	Settings  engine.Settings      `yaml:"settings"`
	Redis     *RedisConfig         `yaml:"redis,omitempty"` // omit for purely local games
}

// ContainerConfig names the puzzle container: either inline cells or a
// reference to a separate container file.
type ContainerConfig struct {
	Name  string   `yaml:"name"`
	Cells []string `yaml:"cells,omitempty"` // "i,j,k" keys
	File  string   `yaml:"file,omitempty"`  // path to a container YAML
}

// RedisConfig holds the session ledger connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
}

// Validate performs strict validation on the configuration.
func (c *GameConfig) Validate() error {
	// Required: version
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	if err := c.Container.Validate(); err != nil {
		return err
	}

	// SetupInput covers players, inventory and settings.
	if err := c.SetupInput().Validate(); err != nil {
		return err
	}

	if c.Redis != nil && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when a redis section is present")
	}
	return nil
}

// Validate checks the container reference.
func (c *ContainerConfig) Validate() error {
	hasCells := len(c.Cells) > 0
	hasFile := c.File != ""
	if hasCells == hasFile {
		return fmt.Errorf("container: exactly one of cells or file must be set")
	}
	if hasFile {
		if _, err := os.Stat(c.File); os.IsNotExist(err) {
			return fmt.Errorf("container file does not exist: %s", c.File)
		}
	}
	return nil
}

// SetupInput converts the configuration into the engine's setup form.
func (c *GameConfig) SetupInput() engine.SetupInput {
	return engine.SetupInput{
		GameID:    c.GameID,
		Players:   c.Players,
		Inventory: c.Inventory,
		Settings:  c.Settings,
	}
}

// PuzzleSpec resolves the container into a validated puzzle spec, loading the
// referenced container file when one is named.
func (c *GameConfig) PuzzleSpec() (*lattice.PuzzleSpec, error) {
	name := c.Container.Name
	keys := c.Container.Cells
	if c.Container.File != "" {
		container, err := LoadContainer(c.Container.File)
		if err != nil {
			return nil, err
		}
		if name == "" {
			name = container.Name
		}
		keys = container.Cells
	}
	if name == "" {
		name = "container"
	}

	cells := make([]lattice.Cell, len(keys))
	for i, key := range keys {
		cell, err := lattice.ParseCell(key)
		if err != nil {
			return nil, fmt.Errorf("container cell %d: %w", i, err)
		}
		cells[i] = cell
	}
	spec, err := lattice.NewPuzzleSpec(name, cells)
	if err != nil {
		return nil, fmt.Errorf("invalid container: %w", err)
	}
	return spec, nil
}

// ContainerFile is a standalone container definition.
type ContainerFile struct {
	Name  string   `yaml:"name"`
	Cells []string `yaml:"cells"`
}

// LoadContainer reads a container YAML file.
func LoadContainer(path string) (*ContainerFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read container file: %w", err)
	}
	var container ContainerFile
	if err := yaml.Unmarshal(data, &container); err != nil {
		return nil, fmt.Errorf("failed to parse container YAML: %w", err)
	}
	if len(container.Cells) == 0 {
		return nil, fmt.Errorf("container file %s defines no cells", path)
	}
	return &container, nil
}

// Load reads and validates koos.yml from the specified path.
func Load(path string) (*GameConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config GameConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}
