// Package config loads the client's JSON configuration file, merges it with
// environment overrides and built-in defaults, and can watch the file for
// changes the way the teacher's BaseConfig.Watch did with YAML.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/datawire/dlib/dlog"
	"github.com/wsvpn/client/internal/errcat"
)

// FileName is the default basename of the configuration file.
const FileName = "config.json"

// Tun holds the virtual interface settings.
type Tun struct {
	Name        string `json:"name"`
	Address     string `json:"address"`
	Prefix      int    `json:"prefix"`
	MTU         int    `json:"mtu"`
	PeerGateway string `json:"peer_gateway"`
}

// DNS holds the resolver replacement settings.
type DNS struct {
	Servers []string `json:"servers"`
}

// ClientConfig is the immutable, fully-merged configuration used by every
// component. It is constructed once at startup and never mutated afterward;
// a reload produces a new value that callers must explicitly adopt.
type ClientConfig struct {
	ServerURL            string `json:"server_url"`
	AuthToken             string `json:"auth_token"`
	HeartbeatIntervalMS   int    `json:"heartbeat_interval_ms"`
	ReconnectInitialMS    int    `json:"reconnect_initial_ms"`
	ReconnectMaxAttempts  int    `json:"reconnect_max_attempts"`
	MaxFrameBytes         int    `json:"max_frame_bytes"`
	Tun                   Tun    `json:"tun"`
	DNS                   DNS    `json:"dns"`
	LogLevel              string `json:"log_level"`
	StateDir              string `json:"state_dir"`
}

// HeartbeatInterval returns the configured heartbeat cadence as a Duration.
func (c *ClientConfig) HeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatIntervalMS) * time.Millisecond
}

// ReconnectInitial returns the configured reconnect backoff base as a Duration.
func (c *ClientConfig) ReconnectInitial() time.Duration {
	return time.Duration(c.ReconnectInitialMS) * time.Millisecond
}

func defaults() ClientConfig {
	return ClientConfig{
		HeartbeatIntervalMS:  30000,
		ReconnectInitialMS:   5000,
		ReconnectMaxAttempts: 10,
		MaxFrameBytes:        1500 + 256,
		Tun: Tun{
			Name:        "tun0",
			Address:     "10.0.0.2",
			Prefix:      24,
			MTU:         1500,
			PeerGateway: "10.0.0.1",
		},
		DNS:      DNS{Servers: []string{"8.8.8.8", "8.8.4.4"}},
		LogLevel: "info",
	}
}

// Merge overlays non-zero fields of other onto c, the same shallow-merge
// contract the teacher's BaseConfig.Merge uses for layering config sources.
func (c *ClientConfig) Merge(other *ClientConfig) {
	if other.ServerURL != "" {
		c.ServerURL = other.ServerURL
	}
	if other.AuthToken != "" {
		c.AuthToken = other.AuthToken
	}
	if other.HeartbeatIntervalMS != 0 {
		c.HeartbeatIntervalMS = other.HeartbeatIntervalMS
	}
	if other.ReconnectInitialMS != 0 {
		c.ReconnectInitialMS = other.ReconnectInitialMS
	}
	if other.ReconnectMaxAttempts != 0 {
		c.ReconnectMaxAttempts = other.ReconnectMaxAttempts
	}
	if other.MaxFrameBytes != 0 {
		c.MaxFrameBytes = other.MaxFrameBytes
	}
	if other.Tun.Name != "" {
		c.Tun.Name = other.Tun.Name
	}
	if other.Tun.Address != "" {
		c.Tun.Address = other.Tun.Address
	}
	if other.Tun.Prefix != 0 {
		c.Tun.Prefix = other.Tun.Prefix
	}
	if other.Tun.MTU != 0 {
		c.Tun.MTU = other.Tun.MTU
	}
	if other.Tun.PeerGateway != "" {
		c.Tun.PeerGateway = other.Tun.PeerGateway
	}
	if len(other.DNS.Servers) > 0 {
		c.DNS.Servers = other.DNS.Servers
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.StateDir != "" {
		c.StateDir = other.StateDir
	}
}

// Validate rejects configurations that cannot possibly produce a working
// session; this is the ConfigInvalid fatal-at-startup case.
func (c *ClientConfig) Validate() error {
	if c.ServerURL == "" {
		return errcat.User.New("server_url is required")
	}
	if c.AuthToken == "" {
		return errcat.User.New("auth_token is required")
	}
	if c.Tun.MTU <= 0 {
		return errcat.User.Newf("tun.mtu must be positive, got %d", c.Tun.MTU)
	}
	if c.Tun.Prefix <= 0 || c.Tun.Prefix > 32 {
		return errcat.User.Newf("tun.prefix must be in 1..32, got %d", c.Tun.Prefix)
	}
	return nil
}

// Load reads path (a JSON file), merges it over the built-in defaults, then
// merges environment overrides on top, and validates the result.
func Load(ctx context.Context, path string) (*ClientConfig, error) {
	cfg := defaults()

	if path != "" {
		f, err := os.Open(path)
		switch {
		case err == nil:
			defer f.Close()
			var fileCfg ClientConfig
			if err := json.NewDecoder(f).Decode(&fileCfg); err != nil {
				return nil, errcat.User.Newf("failed to parse config %s: %w", path, err)
			}
			cfg.Merge(&fileCfg)
		case os.IsNotExist(err):
			dlog.Debugf(ctx, "config file %s does not exist, using defaults", path)
		default:
			return nil, errcat.User.Newf("failed to open config %s: %w", path, err)
		}
	}

	env, err := LoadEnv(ctx)
	if err != nil {
		return nil, errcat.User.Newf("failed to read environment: %w", err)
	}
	env.ApplyTo(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Watcher reloads the config file on change and stores the latest value
// behind an atomic pointer, mirroring the teacher's fsnotify-based Watch.
type Watcher struct {
	path    string
	current atomic.Value
}

// NewWatcher starts watching path for changes, seeded with initial.
func NewWatcher(ctx context.Context, path string, initial *ClientConfig) (*Watcher, error) {
	w := &Watcher{path: path}
	w.current.Store(initial)
	if path == "" {
		return w, nil
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create config watcher: %w", err)
	}
	if err := fw.Add(path); err != nil {
		_ = fw.Close()
		dlog.Warnf(ctx, "not watching config %s: %v", path, err)
		return w, nil
	}

	go func() {
		defer fw.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-fw.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				cfg, err := Load(ctx, path)
				if err != nil {
					dlog.Errorf(ctx, "failed to reload config %s: %v", path, err)
					continue
				}
				dlog.Infof(ctx, "reloaded config from %s", path)
				w.current.Store(cfg)
			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				dlog.Errorf(ctx, "config watcher error: %v", err)
			}
		}
	}()
	return w, nil
}

// Current returns the most recently loaded configuration.
func (w *Watcher) Current() *ClientConfig {
	return w.current.Load().(*ClientConfig)
}
