// Package config holds the render profile: everything about producing the
// output video that isn't part of the overlay script itself.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// ScriptPath is the overlay script to render.
	ScriptPath string `yaml:"script"`

	OutputVideo string  `yaml:"output"`
	FPS         float64 `yaml:"fps"`

	VideoEncoder string `yaml:"encoder"`
	Quality      int    `yaml:"quality"`

	// TileDirectory is where downloaded map tiles are kept between
	// runs. MapAPIKey overrides the script's map_api_key.
	TileDirectory string `yaml:"tile_directory"`
	MapAPIKey     string `yaml:"map_api_key"`

	ShowStats bool `yaml:"show_stats"`

	LogFile  string `yaml:"log_file"`
	LogLevel string `yaml:"log_level"`
}

func Default() Config {
	return Config{
		OutputVideo: "overlay.mp4",
		FPS:         30,
		Quality:     23,
		LogLevel:    "info",
	}
}

// Load reads an optional yaml profile and applies environment overrides. A
// .env file in the working directory is honoured if present.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}

		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w",
				path, err)
		}
	}

	// Missing .env is fine, only explicit settings matter.
	_ = godotenv.Load()

	if key := os.Getenv("FLOOTAY_MAP_API_KEY"); key != "" {
		cfg.MapAPIKey = key
	}

	if dir := os.Getenv("FLOOTAY_TILE_DIRECTORY"); dir != "" {
		cfg.TileDirectory = dir
	}

	return cfg, nil
}
