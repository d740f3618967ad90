// Package config reads the workdeck YAML configuration file. A missing file
// is not an error; every field has a usable default so a fresh install starts
// without any setup.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// configFile is the filename inside the workdeck config directory.
const configFile = "config.yaml"

// Keymap holds the user-adjustable key bindings as bubbles/key binding
// strings.
type Keymap struct {
	NewTab      string `yaml:"new_tab"`
	CloseTab    string `yaml:"close_tab"`
	NextTab     string `yaml:"next_tab"`
	PrevTab     string `yaml:"prev_tab"`
	NextPane    string `yaml:"next_pane"`
	PrevPane    string `yaml:"prev_pane"`
	TabSwitcher string `yaml:"tab_switcher"`
	Quit        string `yaml:"quit"`
}

// Config is the root of config.yaml.
type Config struct {
	// Shell runs terminal tabs; empty falls back to $SHELL.
	Shell string `yaml:"shell"`
	// LogFile receives structured logs; empty disables file logging.
	LogFile string `yaml:"log_file"`
	// LogMaxSizeMB caps the log file size before rotation.
	LogMaxSizeMB int `yaml:"log_max_size_mb"`
	// LogMaxBackups caps the number of rotated log files kept.
	LogMaxBackups int    `yaml:"log_max_backups"`
	Keymap        Keymap `yaml:"keymap"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogMaxSizeMB:  10,
		LogMaxBackups: 3,
		Keymap: Keymap{
			NewTab:      "ctrl+t",
			CloseTab:    "ctrl+w",
			NextTab:     "ctrl+right",
			PrevTab:     "ctrl+left",
			NextPane:    "ctrl+l",
			PrevPane:    "ctrl+h",
			TabSwitcher: "ctrl+p",
			Quit:        "ctrl+q",
		},
	}
}

// Dir returns the workdeck config directory, honoring the user's config
// directory convention.
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(base, "workdeck"), nil
}

// Load reads config.yaml from dir. A missing file returns the defaults;
// present fields override defaults, absent fields keep them.
func Load(dir string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(filepath.Join(dir, configFile))
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Default(), fmt.Errorf("parse config file: %w", err)
	}
	if cfg.LogMaxSizeMB <= 0 {
		cfg.LogMaxSizeMB = Default().LogMaxSizeMB
	}
	if cfg.LogMaxBackups < 0 {
		cfg.LogMaxBackups = Default().LogMaxBackups
	}
	return cfg, nil
}
