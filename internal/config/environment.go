package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

type Environment string

const (
	Development Environment = "development"
	Feature     Environment = "feature"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// Profile holds the defaults of one deployment environment.
type Profile struct {
	Name           Environment
	APIBase        string
	Debug          bool
	LogLevel       string
	SessionTimeout time.Duration
}

var profiles = map[Environment]Profile{
	Development: {
		Name:           Development,
		APIBase:        "http://127.0.0.1:3000/api",
		Debug:          true,
		LogLevel:       "debug",
		SessionTimeout: time.Hour,
	},
	Feature: {
		Name:           Feature,
		APIBase:        "https://lets-todo-api-feat.dev2k.org/api",
		Debug:          true,
		LogLevel:       "debug",
		SessionTimeout: time.Hour,
	},
	Staging: {
		Name:           Staging,
		APIBase:        "https://lets-todo-api-stage.dev2k.org/api",
		Debug:          true,
		LogLevel:       "info",
		SessionTimeout: 30 * time.Minute,
	},
	Production: {
		Name:           Production,
		APIBase:        "https://lets-todo-api.dev2k.org/api",
		LogLevel:       "error",
		SessionTimeout: 24 * time.Hour,
	},
}

// ProfileFor returns the profile of env.
func ProfileFor(env Environment) (Profile, bool) {
	p, ok := profiles[env]
	return p, ok
}

func ParseEnvironment(name string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "development", "dev", "local":
		return Development, nil
	case "feature", "feat":
		return Feature, nil
	case "staging", "stage":
		return Staging, nil
	case "production", "prod":
		return Production, nil
	}
	return "", fmt.Errorf("unknown environment %q", name)
}

// Detect picks the environment from the API host: loopback hosts are
// development, hosts mentioning feat or stage are feature or staging, and
// everything else is production.
func Detect(apiBase string) Environment {
	u, err := url.Parse(apiBase)
	if err != nil {
		return Production
	}
	host := strings.ToLower(u.Hostname())
	switch {
	case host == "localhost" || host == "127.0.0.1" || host == "::1":
		return Development
	case strings.Contains(host, "feat"):
		return Feature
	case strings.Contains(host, "stage"):
		return Staging
	}
	return Production
}
