package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is the full application configuration, read from a YAML file
// with environment-variable overrides.
type Config struct {
	Env         string `yaml:"env" env:"APP_ENV" env-default:"local"`
	StoragePath string `yaml:"storage_path" env:"STORAGE_PATH" env-default:"studylog.db"`

	Log struct {
		Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
		Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
	} `yaml:"log"`

	Server struct {
		Port         int `yaml:"port" env:"SERVER_PORT" env-default:"8090"`
		ReadTimeout  int `yaml:"read_timeout" env-default:"15"`  // seconds
		WriteTimeout int `yaml:"write_timeout" env-default:"15"` // seconds
		IdleTimeout  int `yaml:"idle_timeout" env-default:"60"`  // seconds
	} `yaml:"server"`

	Backend struct {
		BaseURL string `yaml:"base_url" env:"BACKEND_BASE_URL" env-default:"http://localhost:8090"`
		APIKey  string `yaml:"api_key" env:"BACKEND_API_KEY"`
		Timeout int    `yaml:"timeout" env-default:"10"` // seconds
	} `yaml:"backend"`

	Sync struct {
		FlushInterval int `yaml:"flush_interval" env-default:"30"` // seconds
		IdleThreshold int `yaml:"idle_threshold" env-default:"30"` // seconds
	} `yaml:"sync"`

	Review struct {
		PageSize         int `yaml:"page_size" env-default:"20"`
		ItemHeight       int `yaml:"item_height" env-default:"68"` // pixels
		Overscan         int `yaml:"overscan" env-default:"5"`
		ScrollThrottleMS int `yaml:"scroll_throttle_ms" env-default:"50"`
	} `yaml:"review"`
}

// LoadConfig reads the configuration file at path. A missing file is not
// an error: defaults and environment variables apply.
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to read env config: %w", err)
		}
		return &cfg, nil
	}

	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return &cfg, nil
}
