// Package config loads the static engine configuration: the host list and
// the global policy flags. Configuration is read once at process start and
// never re-read mid-operation.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"

	"harborview/internal/core/domain"
)

// HostConfig names one container-runtime endpoint to monitor.
type HostConfig struct {
	Name string `mapstructure:"name"`
	URL  string `mapstructure:"url"`
}

// Config is the full static configuration.
type Config struct {
	Listen string       `mapstructure:"listen"`
	Hosts  []HostConfig `mapstructure:"hosts"`

	UpdatePolicy       string `mapstructure:"update_policy"`
	PortGrouping       bool   `mapstructure:"port_grouping"`
	PortGroupThreshold int    `mapstructure:"port_group_threshold"`

	ProbeTimeout      time.Duration `mapstructure:"probe_timeout"`
	DiscoveryTimeout  time.Duration `mapstructure:"discovery_timeout"`
	DiscoveryTTL      time.Duration `mapstructure:"discovery_ttl"`
	CollectTimeout    time.Duration `mapstructure:"collect_timeout"`
	InspectTimeout    time.Duration `mapstructure:"inspect_timeout"`
	MutateTimeout     time.Duration `mapstructure:"mutate_timeout"`
	RegistryTimeout   time.Duration `mapstructure:"registry_timeout"`
	UpdateCacheTTL    time.Duration `mapstructure:"update_cache_ttl"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	StatsTTL          time.Duration `mapstructure:"stats_ttl"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen", ":3000")
	v.SetDefault("update_policy", "disabled")
	v.SetDefault("port_grouping", true)
	v.SetDefault("port_group_threshold", 5)
	v.SetDefault("probe_timeout", 500*time.Millisecond)
	v.SetDefault("discovery_timeout", 10*time.Second)
	v.SetDefault("discovery_ttl", 30*time.Second)
	v.SetDefault("collect_timeout", 30*time.Second)
	v.SetDefault("inspect_timeout", 2*time.Second)
	v.SetDefault("mutate_timeout", 5*time.Minute)
	v.SetDefault("registry_timeout", 10*time.Second)
	v.SetDefault("update_cache_ttl", 15*time.Minute)
	v.SetDefault("heartbeat_interval", 20*time.Second)
	v.SetDefault("stats_ttl", 30*time.Second)
}

// Load reads configuration from the given YAML file (optional) merged with
// HARBORVIEW_* environment overrides and the numbered DOCKER_HOST_<N>_NAME /
// DOCKER_HOST_<N>_URL host pairs.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("HARBORVIEW")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if !os.IsNotExist(err) {
				return nil, domain.WrapError(err, domain.CodeConfig, "read config file")
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, domain.WrapError(err, domain.CodeConfig, "parse config")
	}

	cfg.Hosts = append(cfg.Hosts, hostsFromEnv()...)
	if len(cfg.Hosts) == 0 {
		cfg.Hosts = append(cfg.Hosts, localHost())
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// hostsFromEnv reads numbered host pairs from the environment:
// DOCKER_HOST_1_NAME=prod DOCKER_HOST_1_URL=tcp://prod:2375 and so on,
// stopping at the first gap.
func hostsFromEnv() []HostConfig {
	var hosts []HostConfig
	for i := 1; ; i++ {
		name := os.Getenv(fmt.Sprintf("DOCKER_HOST_%d_NAME", i))
		url := os.Getenv(fmt.Sprintf("DOCKER_HOST_%d_URL", i))
		if name == "" || url == "" {
			break
		}
		hosts = append(hosts, HostConfig{Name: name, URL: url})
	}
	return hosts
}

// localHost is the fallback when nothing is configured: the local engine
// socket, or whatever DOCKER_HOST points at.
func localHost() HostConfig {
	url := os.Getenv("DOCKER_HOST")
	if url == "" {
		url = "unix:///var/run/docker.sock"
	}
	return HostConfig{Name: "local", URL: url}
}

func (c *Config) validate() error {
	if len(c.Hosts) == 0 {
		return domain.NewError(domain.CodeConfig, "no hosts configured")
	}
	seen := make(map[string]struct{}, len(c.Hosts))
	for _, h := range c.Hosts {
		if h.Name == "" || h.URL == "" {
			return domain.NewError(domain.CodeConfig, "host entries need both name and url")
		}
		if _, dup := seen[h.Name]; dup {
			return domain.NewError(domain.CodeConfig, "duplicate host name "+h.Name)
		}
		seen[h.Name] = struct{}{}
	}
	switch c.UpdatePolicy {
	case "disabled", "latest", "major", "minor":
	default:
		return domain.NewError(domain.CodeConfig, "update_policy must be disabled, latest, major or minor")
	}
	if c.PortGroupThreshold < 2 {
		return domain.NewError(domain.CodeConfig, "port_group_threshold must be at least 2")
	}
	return nil
}

// HostNames returns the configured host names in declaration order.
func (c *Config) HostNames() []string {
	names := make([]string, 0, len(c.Hosts))
	for _, h := range c.Hosts {
		names = append(names, h.Name)
	}
	return names
}

// HostURL returns the connection URL for a configured host name.
func (c *Config) HostURL(name string) (string, bool) {
	for _, h := range c.Hosts {
		if h.Name == name {
			return h.URL, true
		}
	}
	return "", false
}
