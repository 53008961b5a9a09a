package config

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/loykin/termlink/internal/logger"
)

// Config is the persisted user configuration plus the derived state-dir
// layout. Unknown keys in the file are ignored; defaults are merged under
// any keys present, so a partial (or missing, or unparsable) file never
// fails the load.
type Config struct {
	AutoStart bool   `mapstructure:"auto_start"` // start services when a presentation layer launches
	StateDir  string `mapstructure:"state_dir"`  // overrides the default state directory

	Log logger.Config `mapstructure:"log"`
}

// DefaultConfigPath returns ~/.config/termlink/config.json.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "/"
	}
	return filepath.Join(home, ".config", "termlink", "config.json")
}

func defaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "/"
	}
	return filepath.Join(home, ".local", "state", "termlink")
}

// Load reads the config file at path (DefaultConfigPath when empty) and
// merges it over defaults. A missing or malformed file yields the defaults.
func Load(path string) *Config {
	if path == "" {
		path = DefaultConfigPath()
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetDefault("auto_start", false)
	v.SetDefault("state_dir", defaultStateDir())

	_ = v.ReadInConfig() // defaults stand on any error

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		cfg = Config{StateDir: defaultStateDir()}
	}
	if cfg.StateDir == "" {
		cfg.StateDir = defaultStateDir()
	}
	cfg.Log.Dir = cfg.LogDir()
	return &cfg
}

// Save writes the config back to path (DefaultConfigPath when empty).
func (c *Config) Save(path string) error {
	if path == "" {
		path = DefaultConfigPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.Set("auto_start", c.AutoStart)
	if c.StateDir != defaultStateDir() {
		v.Set("state_dir", c.StateDir)
	}
	err := v.WriteConfig()
	if errors.Is(err, os.ErrNotExist) {
		return v.SafeWriteConfig()
	}
	return err
}

// PIDDir returns the directory holding per-service pid files.
func (c *Config) PIDDir() string { return filepath.Join(c.StateDir, "pids") }

// LogDir returns the directory holding per-service log files.
func (c *Config) LogDir() string { return filepath.Join(c.StateDir, "logs") }

// HistoryPath returns the sqlite file recording supervision events.
func (c *Config) HistoryPath() string { return filepath.Join(c.StateDir, "history.db") }

// EnsureDirs creates the state directory tree.
func (c *Config) EnsureDirs() error {
	for _, d := range []string{c.PIDDir(), c.LogDir()} {
		if err := os.MkdirAll(d, 0o750); err != nil {
			return err
		}
	}
	return nil
}
