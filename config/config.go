// Package config loads the YAML configuration shared by the proxy,
// registrar, and actor-hosting processes: read the file if one was
// given, then fill in documented defaults for anything left unset.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/clara-msg/clara/msg"
)

// Config is the top-level configuration document for a clara process.
type Config struct {
	LogDir string `yaml:"log_dir"`
	Debug  bool   `yaml:"debug"`

	Proxy     ProxyConfig     `yaml:"proxy"`
	Registrar RegistrarConfig `yaml:"registrar"`
	Pool      PoolConfig      `yaml:"pool"`
	Actor     ActorConfig     `yaml:"actor"`
}

// ProxyConfig configures a proxy broker process.
type ProxyConfig struct {
	Host    string `yaml:"host"`
	PubPort uint16 `yaml:"pub_port"`
}

// RegistrarConfig configures a registrar service process, and tells
// clients where to find one.
type RegistrarConfig struct {
	Host string `yaml:"host"`
	Port uint16 `yaml:"port"`
}

// PoolConfig describes a connection pool's idle-connection cache.
type PoolConfig struct {
	// MaxIdleConnections is the per-address idle-connection bound of a
	// connection pool (pool.New's maxIdle). actor.New does not read it and
	// always builds its pool with a bound of 8.
	MaxIdleConnections int `yaml:"max_idle_connections"`
}

// ActorConfig holds default timeouts for sync_publish and registrar
// requests. actor.Actor does not read it: it applies its own
// DefaultSyncPublishTimeout and DefaultRegistrarTimeout constants.
type ActorConfig struct {
	SyncPublishTimeoutMS int `yaml:"sync_publish_timeout_ms"`
	RegistrarTimeoutMS   int `yaml:"registrar_timeout_ms"`
}

// Load reads and parses a YAML configuration file, filling in the
// documented defaults for any field left unset. An empty filename skips
// the file read entirely and returns the built-in defaults, for
// processes run without a -config flag.
func Load(filename string) (*Config, error) {
	if filename == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", filename, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", filename, err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// Default returns a Config with every field set to its documented
// default, for processes run without a configuration file.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Proxy.Host == "" {
		cfg.Proxy.Host = "localhost"
	}
	if cfg.Proxy.PubPort == 0 {
		cfg.Proxy.PubPort = msg.DefaultProxyPubPort
	}
	if cfg.Registrar.Host == "" {
		cfg.Registrar.Host = "localhost"
	}
	if cfg.Registrar.Port == 0 {
		cfg.Registrar.Port = msg.DefaultRegistrarPort
	}
	if cfg.Pool.MaxIdleConnections == 0 {
		cfg.Pool.MaxIdleConnections = 8
	}
	if cfg.Actor.SyncPublishTimeoutMS == 0 {
		cfg.Actor.SyncPublishTimeoutMS = 3000
	}
	if cfg.Actor.RegistrarTimeoutMS == 0 {
		cfg.Actor.RegistrarTimeoutMS = 3000
	}
}

// ProxyAddress resolves the configured proxy host/port into a msg.ProxyAddress.
func (c *Config) ProxyAddress() (msg.ProxyAddress, error) {
	return msg.NewProxyAddress(c.Proxy.Host, c.Proxy.PubPort)
}

// RegAddress resolves the configured registrar host/port into a msg.RegAddress.
func (c *Config) RegAddress() (msg.RegAddress, error) {
	return msg.NewRegAddress(c.Registrar.Host, c.Registrar.Port)
}
