package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kamusis/fitmatch/internal/series"
	"gopkg.in/yaml.v3"
)

// Environment keys that override the YAML file.
const (
	EnvStorePath = "FITMATCH_STORE_PATH"
	EnvLogLevel  = "FITMATCH_LOG_LEVEL"
	EnvLogFormat = "FITMATCH_LOG_FORMAT"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("tablename", func(fl validator.FieldLevel) bool {
		return series.ValidName(fl.Field().String())
	})
}

// Dataset maps a CSV file to a named table with a role.
type Dataset struct {
	Name string `yaml:"name" validate:"required,tablename"`
	Role string `yaml:"role" validate:"required,oneof=training ideal test"`
	File string `yaml:"file" validate:"required"`
}

// Engine tunes the matching engine.
type Engine struct {
	Parallelism int  `yaml:"parallelism" validate:"gte=0,lte=256"`
	Strict      bool `yaml:"strict"`
}

// Results selects where accepted assignments go.
type Results struct {
	Destination string `yaml:"destination" validate:"omitempty,oneof=production validation"`
}

// Log configures the slog handler.
type Log struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format" validate:"omitempty,oneof=text json"`
}

// Config is the in-memory representation of ~/.fitmatch/fitmatch.yaml.
type Config struct {
	StorePath   string        `yaml:"store_path" validate:"required"`
	DataDir     string        `yaml:"data_dir,omitempty"`
	Excludes    []string      `yaml:"excludes,omitempty"`
	Datasets    []Dataset     `yaml:"datasets" validate:"required,dive"`
	Engine      Engine        `yaml:"engine"`
	Results     Results       `yaml:"results"`
	Log         Log           `yaml:"log"`
	MetricsFile string        `yaml:"metrics_file,omitempty"`
	LockTimeout time.Duration `yaml:"lock_timeout,omitempty"`
}

var pathOverride string

// SetPath makes Load and Save use p instead of ~/.fitmatch/fitmatch.yaml.
// An empty p restores the default.
func SetPath(p string) {
	pathOverride = p
}

// FitmatchDir returns the absolute path to ~/.fitmatch/.
func FitmatchDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".fitmatch"), nil
}

// ConfigPath returns the config file in use.
func ConfigPath() (string, error) {
	if pathOverride != "" {
		return ExpandPath(pathOverride)
	}
	dir, err := FitmatchDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "fitmatch.yaml"), nil
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(p string) (string, error) {
	if !strings.HasPrefix(p, "~") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot expand ~: %w", err)
	}
	return filepath.Join(home, p[1:]), nil
}

// DefaultConfig returns the default Config written on first fitmatch init.
func DefaultConfig() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	j := func(parts ...string) string { return filepath.Join(append([]string{home}, parts...)...) }

	return &Config{
		StorePath: j(".fitmatch", "store"),
		DataDir:   j(".fitmatch", "data"),
		Excludes: []string{
			".DS_Store",
			"*.tmp",
			"*.bak",
			"*~",
		},
		Datasets: []Dataset{
			{Name: "training", Role: "training", File: "train.csv"},
			{Name: "ideal", Role: "ideal", File: "ideal.csv"},
			{Name: "test", Role: "test", File: "test.csv"},
		},
		Engine:      Engine{Parallelism: 1},
		Results:     Results{Destination: "production"},
		Log:         Log{Level: "info", Format: "text"},
		LockTimeout: 30 * time.Second,
	}, nil
}

// Validate checks field constraints and that exactly one dataset exists per
// role.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	seen := map[string]string{}
	names := map[string]bool{}
	for _, d := range c.Datasets {
		if prev, dup := seen[d.Role]; dup {
			return fmt.Errorf("invalid config: datasets %q and %q both have role %s", prev, d.Name, d.Role)
		}
		seen[d.Role] = d.Name
		if names[d.Name] {
			return fmt.Errorf("invalid config: duplicate dataset name %q", d.Name)
		}
		names[d.Name] = true
	}
	var missing []string
	for _, role := range []string{"training", "ideal", "test"} {
		if _, ok := seen[role]; !ok {
			missing = append(missing, role)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("invalid config: no dataset for role %s", strings.Join(missing, ", "))
	}
	return nil
}

// Dataset returns the dataset configured for role.
func (c *Config) Dataset(role string) (Dataset, error) {
	for _, d := range c.Datasets {
		if d.Role == role {
			return d, nil
		}
	}
	return Dataset{}, fmt.Errorf("no dataset configured for role %s", role)
}

// DatasetPath resolves d.File against DataDir unless it is absolute.
func (c *Config) DatasetPath(d Dataset) string {
	if filepath.IsAbs(d.File) || c.DataDir == "" {
		return d.File
	}
	return filepath.Join(c.DataDir, d.File)
}

// ApplyEnv overrides fields from the process environment and ~/.fitmatch/.env.
func (c *Config) ApplyEnv() error {
	for key, dst := range map[string]*string{
		EnvStorePath: &c.StorePath,
		EnvLogLevel:  &c.Log.Level,
		EnvLogFormat: &c.Log.Format,
	} {
		v, err := GetConfigValue(key)
		if err != nil {
			return err
		}
		if v = strings.TrimSpace(v); v != "" {
			*dst = v
		}
	}
	return nil
}

// ErrNotInitialized is returned by Load when no config file exists yet.
var ErrNotInitialized = errors.New("fitmatch is not initialized (run: fitmatch init)")

// Load reads the config file, applies the environment overlay, expands ~ in
// paths and validates the result.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotInitialized, path)
		}
		return nil, fmt.Errorf("cannot read config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid YAML in %s: %w", path, err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if cfg.StorePath, err = ExpandPath(cfg.StorePath); err != nil {
		return nil, err
	}
	if cfg.DataDir, err = ExpandPath(cfg.DataDir); err != nil {
		return nil, err
	}
	if cfg.MetricsFile, err = ExpandPath(cfg.MetricsFile); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save marshals cfg and writes it to the config file.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("cannot write config %s: %w", path, err)
	}
	return nil
}
