// Package config loads the server configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"

	"healthpredict/logging"
	"healthpredict/predictor"
)

const (
	// PathEnv names the config file when no path is given explicitly.
	PathEnv = "HEALTHPREDICT_CONFIG"
	// PortEnv overrides http.port.
	PortEnv = "PORT"

	defaultPath = "config.yaml"
)

type Config struct {
	HTTP struct {
		Port           int           `yaml:"port"`
		Timeout        time.Duration `yaml:"timeout"`
		AllowedOrigins []string      `yaml:"allowed_origins"`
	} `yaml:"http"`
	Artifacts struct {
		Dir          string        `yaml:"dir"`
		SmokingFile  string        `yaml:"smoking_file"`
		DrinkingFile string        `yaml:"drinking_file"`
		ScalerFile   string        `yaml:"scaler_file"`
		Watch        bool          `yaml:"watch"`
		Debounce     time.Duration `yaml:"debounce"`
	} `yaml:"artifacts"`
	Drinking struct {
		Source string `yaml:"source"`
	} `yaml:"drinking"`
	Prediction struct {
		CacheSize int `yaml:"cache_size"`
	} `yaml:"prediction"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	UI struct {
		Locale string `yaml:"locale"`
	} `yaml:"ui"`
	Log logging.Config `yaml:"log"`
}

// Default returns the configuration used for every key the file leaves out.
func Default() *Config {
	pred := predictor.DefaultConfig()

	cfg := &Config{}
	cfg.HTTP.Port = 8080
	cfg.HTTP.Timeout = 30 * time.Second
	cfg.HTTP.AllowedOrigins = []string{"*"}
	cfg.Artifacts.SmokingFile = pred.SmokingFile
	cfg.Artifacts.DrinkingFile = pred.DrinkingFile
	cfg.Artifacts.ScalerFile = pred.ScalerFile
	cfg.Artifacts.Debounce = 500 * time.Millisecond
	cfg.Drinking.Source = string(pred.DrinkingSource)
	cfg.Prediction.CacheSize = pred.CacheSize
	cfg.Database.Path = "healthpredict.db"
	cfg.UI.Locale = "en"
	cfg.Log = logging.DefaultConfig()
	return cfg
}

// Load reads path, or $HEALTHPREDICT_CONFIG, or ./config.yaml. A missing
// default file yields the defaults; a missing explicit file is an error.
func Load(path string) (*Config, error) {
	explicit := true
	if path == "" {
		path = os.Getenv(PathEnv)
	}
	if path == "" {
		path = defaultPath
		explicit = false
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.UnmarshalStrict(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	if port := os.Getenv(PortEnv); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("%s=%q: %w", PortEnv, port, err)
		}
		cfg.HTTP.Port = p
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port %d out of range", c.HTTP.Port)
	}
	if c.HTTP.Timeout <= 0 {
		return errors.New("http.timeout must be positive")
	}
	switch predictor.DrinkingSource(c.Drinking.Source) {
	case predictor.DrinkingFromArtifact, predictor.DrinkingInline:
	default:
		return fmt.Errorf("drinking.source %q must be %q or %q", c.Drinking.Source, predictor.DrinkingFromArtifact, predictor.DrinkingInline)
	}
	if c.Prediction.CacheSize < 0 {
		return errors.New("prediction.cache_size must not be negative")
	}
	if c.Artifacts.SmokingFile == "" || c.Artifacts.DrinkingFile == "" || c.Artifacts.ScalerFile == "" {
		return errors.New("artifact file names must not be empty")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// Predictor maps the artifact and prediction sections onto the predictor config.
func (c *Config) Predictor() predictor.Config {
	return predictor.Config{
		Dir:            c.Artifacts.Dir,
		SmokingFile:    c.Artifacts.SmokingFile,
		DrinkingFile:   c.Artifacts.DrinkingFile,
		ScalerFile:     c.Artifacts.ScalerFile,
		DrinkingSource: predictor.DrinkingSource(c.Drinking.Source),
		CacheSize:      c.Prediction.CacheSize,
	}
}
