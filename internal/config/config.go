// Package config loads the YAML configuration shared by the hexworld binaries.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"gopkg.in/yaml.v3"

	"github.com/talgya/hexworld/internal/hex"
	"github.com/talgya/hexworld/internal/world"
)

// Config holds all configuration.
type Config struct {
	Grid     GridConfig     `yaml:"grid"`
	World    WorldConfig    `yaml:"world"`
	Database DatabaseConfig `yaml:"database"`
	API      APIConfig      `yaml:"api"`
	Snapshot SnapshotConfig `yaml:"snapshot"`
	Log      LogConfig      `yaml:"log"`
	Terrain  []TerrainEntry `yaml:"terrain"`
}

// GridConfig holds grid dimensions and cell geometry.
type GridConfig struct {
	Width       int     `yaml:"width"`
	Height      int     `yaml:"height"`
	OuterRadius float32 `yaml:"outer_radius"`
	Spacing     float32 `yaml:"spacing"`
}

// WorldConfig holds terrain generation parameters.
type WorldConfig struct {
	Seed          int64   `yaml:"seed"` // 0 picks a random seed
	SeaLevel      float64 `yaml:"sea_level"`
	MountainLevel float64 `yaml:"mountain_level"`
	VolcanoLevel  float64 `yaml:"volcano_level"`
}

// DatabaseConfig holds the SQLite location.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// APIConfig holds HTTP server settings.
type APIConfig struct {
	Port      int    `yaml:"port"`
	AdminKey  string `yaml:"admin_key"`  // Empty disables terrain edits
	PaintRate int    `yaml:"paint_rate"` // Edits per minute per client
}

// SnapshotConfig holds where mesh snapshots are written.
type SnapshotConfig struct {
	Dir string `yaml:"dir"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// TerrainEntry overrides the presentation of one terrain type.
type TerrainEntry struct {
	Type        string `yaml:"type"`
	Name        string `yaml:"name"`
	Color       string `yaml:"color"` // #rrggbb or #rrggbbaa
	Description string `yaml:"description"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads configuration from a YAML file. An empty path returns Default().
func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	gen := world.DefaultGenConfig()

	if c.Grid.Width == 0 {
		c.Grid.Width = 64
	}
	if c.Grid.Height == 0 {
		c.Grid.Height = 48
	}
	if c.Grid.OuterRadius == 0 {
		c.Grid.OuterRadius = 1
	}
	if c.Grid.Spacing == 0 {
		c.Grid.Spacing = 1
	}
	if c.World.SeaLevel == 0 {
		c.World.SeaLevel = gen.SeaLevel
	}
	if c.World.MountainLevel == 0 {
		c.World.MountainLevel = gen.MountainLevel
	}
	if c.World.VolcanoLevel == 0 {
		c.World.VolcanoLevel = gen.VolcanoLevel
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/hexworld.db"
	}
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
	if c.API.PaintRate == 0 {
		c.API.PaintRate = 60
	}
	if c.Snapshot.Dir == "" {
		c.Snapshot.Dir = "data/snapshots"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	if c.Grid.Width < 0 || c.Grid.Height < 0 {
		errs = append(errs, fmt.Errorf("grid %dx%d: %w", c.Grid.Width, c.Grid.Height, world.ErrInvalidSize))
	}
	if c.Grid.OuterRadius <= 0 {
		errs = append(errs, fmt.Errorf("grid outer_radius %v must be positive", c.Grid.OuterRadius))
	}
	if c.Grid.Spacing <= 0 {
		errs = append(errs, fmt.Errorf("grid spacing %v must be positive", c.Grid.Spacing))
	}
	w := c.World
	if !(0 <= w.SeaLevel && w.SeaLevel < w.MountainLevel && w.MountainLevel <= w.VolcanoLevel && w.VolcanoLevel <= 1) {
		errs = append(errs, fmt.Errorf("world levels must satisfy 0 <= sea < mountain <= volcano <= 1, got %v/%v/%v",
			w.SeaLevel, w.MountainLevel, w.VolcanoLevel))
	}
	if c.API.Port < 0 || c.API.Port > 65535 {
		errs = append(errs, fmt.Errorf("api port %d out of range", c.API.Port))
	}
	if _, err := c.Palette(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Metrics returns the cell geometry for the configured radius.
func (c *Config) Metrics() hex.Metrics {
	return hex.NewMetrics(c.Grid.OuterRadius)
}

// GenConfig returns the terrain generation parameters.
func (c *Config) GenConfig() world.GenConfig {
	return world.GenConfig{
		Seed:          c.World.Seed,
		SeaLevel:      c.World.SeaLevel,
		MountainLevel: c.World.MountainLevel,
		VolcanoLevel:  c.World.VolcanoLevel,
	}
}

// Palette returns the default palette with the configured terrain entries
// applied on top.
func (c *Config) Palette() (world.Palette, error) {
	p := world.DefaultPalette()
	for _, e := range c.Terrain {
		t, err := world.ParseTerrain(e.Type)
		if err != nil {
			return nil, fmt.Errorf("terrain entry: %w", err)
		}
		info := p[t]
		if e.Name != "" {
			info.Name = e.Name
		}
		if e.Description != "" {
			info.Description = e.Description
		}
		if e.Color != "" {
			col, err := ParseColor(e.Color)
			if err != nil {
				return nil, fmt.Errorf("terrain %s: %w", t, err)
			}
			info.Color = col
		}
		p[t] = info
	}
	return p, nil
}

// ParseColor parses "#rrggbb" or "#rrggbbaa" into an RGBA vector.
func ParseColor(s string) (mgl32.Vec4, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) != 6 && len(h) != 8 {
		return mgl32.Vec4{}, fmt.Errorf("color %q: want #rrggbb or #rrggbbaa", s)
	}
	if len(h) == 6 {
		h += "ff"
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return mgl32.Vec4{}, fmt.Errorf("color %q: %w", s, err)
	}
	channel := func(shift uint) float32 { return float32((v>>shift)&0xff) / 255 }
	return mgl32.Vec4{channel(24), channel(16), channel(8), channel(0)}, nil
}

// ParseLevel maps a level name to a slog level, defaulting to Info.
func ParseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
