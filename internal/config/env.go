package config

import (
	"context"

	"github.com/sethvargo/go-envconfig"
)

// Env holds the environment-variable overrides recognized by this client,
// loaded with the same library the teacher uses for its own Env struct.
type Env struct {
	ConfigPath string `env:"WSVPN_CONFIG"`
	LogLevel   string `env:"WSVPN_LOG_LEVEL"`
	StateDir   string `env:"WSVPN_STATE_DIR"`
}

// LoadEnv reads the recognized environment variables.
func LoadEnv(ctx context.Context) (Env, error) {
	var env Env
	err := envconfig.Process(ctx, &env)
	return env, err
}

// ApplyTo overlays non-empty env values onto cfg, taking precedence over the
// config file, matching the "env overrides file overrides default" order
// documented for this client.
func (env Env) ApplyTo(cfg *ClientConfig) {
	if env.LogLevel != "" {
		cfg.LogLevel = env.LogLevel
	}
	if env.StateDir != "" {
		cfg.StateDir = env.StateDir
	}
}
