// Package app holds the process-level configuration.
package app

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/revalidafacil/stations-backend/internal/logger"
	"github.com/revalidafacil/stations-backend/internal/utils"
)

// Config is assembled from the environment; CONFIG_FILE points at an
// optional YAML file whose non-empty values override the environment.
type Config struct {
	Port        string `yaml:"port"`
	LogMode     string `yaml:"log_mode"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`

	// OutputDir is where generated stations are always written, before any
	// database attempt.
	OutputDir string `yaml:"output_dir"`
}

func Load(log *logger.Logger) (Config, error) {
	cfg := Config{
		Port:        utils.GetEnv("PORT", "8080", log),
		LogMode:     utils.GetEnv("LOG_MODE", "development", log),
		Environment: utils.GetEnv("APP_ENV", "development", log),
		Version:     utils.GetEnv("APP_VERSION", "dev", log),
		OutputDir:   utils.GetEnv("STATIONS_OUTPUT_DIR", "estacoes_geradas", log),
	}

	path := strings.TrimSpace(os.Getenv("CONFIG_FILE"))
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	var overlay Config
	if err := yaml.Unmarshal(raw, &overlay); err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	cfg.merge(overlay)
	log.Info("config file applied", "path", path)
	return cfg, nil
}

func (c *Config) merge(o Config) {
	if o.Port != "" {
		c.Port = o.Port
	}
	if o.LogMode != "" {
		c.LogMode = o.LogMode
	}
	if o.Environment != "" {
		c.Environment = o.Environment
	}
	if o.Version != "" {
		c.Version = o.Version
	}
	if o.OutputDir != "" {
		c.OutputDir = o.OutputDir
	}
}
