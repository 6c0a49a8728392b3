// Package config loads ~/.config/letstodo/config.toml and resolves it
// against environment variables and command-line overrides.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	EnvAPI      = "LETSTODO_API"
	EnvEnv      = "LETSTODO_ENV"
	EnvLogLevel = "LETSTODO_LOG_LEVEL"

	DefaultTimeout  = 15 * time.Second
	DefaultAutoSave = 3 * time.Second
)

// Config mirrors config.toml.
type Config struct {
	API APIConfig `toml:"api"`
	Log LogConfig `toml:"log"`
	UI  UIConfig  `toml:"ui"`
}

type APIConfig struct {
	BaseURL     string `toml:"base_url"`
	Environment string `toml:"environment"`
	Timeout     string `toml:"timeout"`
	// Rollback is "reload" or "snapshot".
	Rollback string `toml:"rollback"`
}

type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

type UIConfig struct {
	Theme    string `toml:"theme"`
	AutoSave string `toml:"autosave"`
}

// Load reads the config file at path. A missing file yields the zero Config.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Config{}, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// DefaultPath returns ~/.config/letstodo/config.toml
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "letstodo", "config.toml"), nil
}

// DefaultLogPath returns $XDG_STATE_HOME/letstodo/letstodo.log, falling back
// to ~/.local/state.
func DefaultLogPath() (string, error) {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "letstodo", "letstodo.log"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "state", "letstodo", "letstodo.log"), nil
}

// Overrides are values given on the command line. Empty fields are unset.
type Overrides struct {
	APIBase  string
	Env      string
	LogLevel string
}

// Settings is the resolved configuration the program runs with.
type Settings struct {
	APIBase  string
	Env      Environment
	Profile  Profile
	Timeout  time.Duration
	LogLevel string
	LogFile  string
	Rollback string
	Theme    string
	AutoSave time.Duration
}

// Resolve merges cfg, the environment (read through getenv) and o. Command
// line beats environment beats file. The environment profile comes from an
// explicit name if given, otherwise from the API host; the profile fills in
// whatever is still unset.
func Resolve(cfg Config, getenv func(string) string, o Overrides) (Settings, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	apiBase := first(o.APIBase, getenv(EnvAPI), cfg.API.BaseURL)
	envName := first(o.Env, getenv(EnvEnv), cfg.API.Environment)

	var env Environment
	switch {
	case envName != "":
		parsed, err := ParseEnvironment(envName)
		if err != nil {
			return Settings{}, err
		}
		env = parsed
	case apiBase != "":
		env = Detect(apiBase)
	default:
		env = Production
	}
	profile := profiles[env]

	if apiBase == "" {
		apiBase = profile.APIBase
	}
	if err := validateURL(apiBase); err != nil {
		return Settings{}, err
	}

	s := Settings{
		APIBase:  strings.TrimRight(apiBase, "/"),
		Env:      env,
		Profile:  profile,
		Timeout:  DefaultTimeout,
		LogLevel: first(o.LogLevel, getenv(EnvLogLevel), cfg.Log.Level, profile.LogLevel),
		LogFile:  cfg.Log.File,
		Rollback: first(cfg.API.Rollback, "reload"),
		Theme:    cfg.UI.Theme,
		AutoSave: DefaultAutoSave,
	}
	if s.Rollback != "reload" && s.Rollback != "snapshot" {
		return Settings{}, fmt.Errorf("invalid rollback %q: want reload or snapshot", s.Rollback)
	}
	if cfg.API.Timeout != "" {
		d, err := time.ParseDuration(cfg.API.Timeout)
		if err != nil || d <= 0 {
			return Settings{}, fmt.Errorf("invalid api timeout %q", cfg.API.Timeout)
		}
		s.Timeout = d
	}
	if cfg.UI.AutoSave != "" {
		d, err := time.ParseDuration(cfg.UI.AutoSave)
		if err != nil || d < 0 {
			return Settings{}, fmt.Errorf("invalid ui autosave %q", cfg.UI.AutoSave)
		}
		s.AutoSave = d
	}
	if s.Theme != "" && s.Theme != "dark" && s.Theme != "light" {
		return Settings{}, fmt.Errorf("invalid ui theme %q: want dark or light", s.Theme)
	}
	return s, nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid api url %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return fmt.Errorf("invalid api url %q: want http(s)://host/path", raw)
	}
	return nil
}

func first(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
