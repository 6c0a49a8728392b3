package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// ============================================================
// Load
// ============================================================

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg != (Config{}) {
		t.Fatalf("expected zero config, got %+v", cfg)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
[api]
base_url = "https://example.com/api"
timeout = "5s"
rollback = "snapshot"

[log]
level = "debug"

[ui]
theme = "light"
autosave = "1s"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.API.BaseURL != "https://example.com/api" || cfg.API.Rollback != "snapshot" {
		t.Fatalf("unexpected api %+v", cfg.API)
	}
	if cfg.Log.Level != "debug" || cfg.UI.Theme != "light" {
		t.Fatalf("unexpected %+v", cfg)
	}
}

func TestLoadInvalidTOML(t *testing.T) {
	if _, err := Load(writeConfig(t, "[api\n")); err == nil {
		t.Fatal("expected parse error")
	}
}

// ============================================================
// Resolve
// ============================================================

func TestResolveDefaultsToProduction(t *testing.T) {
	s, err := Resolve(Config{}, envMap(nil), Overrides{})
	if err != nil {
		t.Fatal(err)
	}
	if s.Env != Production || s.APIBase != "https://lets-todo-api.dev2k.org/api" {
		t.Fatalf("unexpected %+v", s)
	}
	if s.LogLevel != "error" || s.Timeout != DefaultTimeout || s.AutoSave != DefaultAutoSave {
		t.Fatalf("unexpected defaults %+v", s)
	}
}

func TestResolvePrecedence(t *testing.T) {
	cfg := Config{API: APIConfig{BaseURL: "https://file.example/api"}, Log: LogConfig{Level: "warn"}}
	env := envMap(map[string]string{EnvAPI: "https://env.example/api", EnvLogLevel: "info"})

	s, err := Resolve(cfg, env, Overrides{})
	if err != nil {
		t.Fatal(err)
	}
	if s.APIBase != "https://env.example/api" || s.LogLevel != "info" {
		t.Fatalf("env should beat file, got %+v", s)
	}

	s, err = Resolve(cfg, env, Overrides{APIBase: "http://localhost:3000/api/", LogLevel: "debug"})
	if err != nil {
		t.Fatal(err)
	}
	if s.APIBase != "http://localhost:3000/api" || s.LogLevel != "debug" {
		t.Fatalf("flags should beat env, got %+v", s)
	}
	if s.Env != Development {
		t.Fatalf("localhost should detect development, got %s", s.Env)
	}
}

func TestResolveEnvironmentFillsAPI(t *testing.T) {
	s, err := Resolve(Config{}, envMap(map[string]string{EnvEnv: "stage"}), Overrides{})
	if err != nil {
		t.Fatal(err)
	}
	if s.Env != Staging || s.APIBase != "https://lets-todo-api-stage.dev2k.org/api" {
		t.Fatalf("unexpected %+v", s)
	}
	if s.Profile.SessionTimeout != 30*time.Minute {
		t.Fatalf("expected staging profile, got %+v", s.Profile)
	}
}

func TestResolveRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		o    Overrides
	}{
		{"bad env", Config{}, Overrides{Env: "moon"}},
		{"bad url", Config{}, Overrides{APIBase: "ftp://x"}},
		{"no host", Config{}, Overrides{APIBase: "http://"}},
		{"bad timeout", Config{API: APIConfig{Timeout: "soon"}}, Overrides{}},
		{"bad rollback", Config{API: APIConfig{Rollback: "undo"}}, Overrides{}},
		{"bad theme", Config{UI: UIConfig{Theme: "pink"}}, Overrides{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Resolve(tt.cfg, envMap(nil), tt.o); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestResolveDurations(t *testing.T) {
	cfg := Config{API: APIConfig{Timeout: "5s"}, UI: UIConfig{AutoSave: "0s"}}
	s, err := Resolve(cfg, envMap(nil), Overrides{})
	if err != nil {
		t.Fatal(err)
	}
	if s.Timeout != 5*time.Second || s.AutoSave != 0 {
		t.Fatalf("unexpected durations %v %v", s.Timeout, s.AutoSave)
	}
}

// ============================================================
// Environment detection
// ============================================================

func TestDetect(t *testing.T) {
	tests := map[string]Environment{
		"http://127.0.0.1:3000/api":                 Development,
		"http://localhost:8080":                     Development,
		"https://lets-todo-api-feat.dev2k.org/api":  Feature,
		"https://lets-todo-api-stage.dev2k.org/api": Staging,
		"https://lets-todo-api.dev2k.org/api":       Production,
		"::not a url":                               Production,
	}
	for in, want := range tests {
		if got := Detect(in); got != want {
			t.Fatalf("Detect(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestParseEnvironment(t *testing.T) {
	for _, name := range []string{"dev", "Development", "local"} {
		if env, err := ParseEnvironment(name); err != nil || env != Development {
			t.Fatalf("%q: %v %v", name, env, err)
		}
	}
	if _, ok := ProfileFor(Feature); !ok {
		t.Fatal("feature profile missing")
	}
}
