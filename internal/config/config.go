// Package config loads the gateway configuration.
//
// Configuration is read exactly once at startup and threaded into the
// routing, policy, and quota components as plain values. Nothing in the
// request path re-reads the environment mid-decision.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// PolicyConfig holds the operator flags consumed by the policy gate.
type PolicyConfig struct {
	OfflineRequired     bool `yaml:"offline_required"`
	CloudAllowed        bool `yaml:"cloud_allowed"`
	AllowSensitiveCloud bool `yaml:"allow_sensitive_cloud"`
	AllowUserOverride   bool `yaml:"allow_user_override"`
}

// RoutingConfig holds routing heuristics.
type RoutingConfig struct {
	LoadThreshold       float64 `yaml:"load_threshold"`
	DeepReasoningTokens int     `yaml:"deep_reasoning_tokens"`
}

// QuotaConfig holds cost guard ceilings and storage.
type QuotaConfig struct {
	DailyCeiling   int    `yaml:"daily_ceiling"`
	MonthlyCeiling int    `yaml:"monthly_ceiling"`
	Path           string `yaml:"path"`
}

// LocalBackendConfig holds local inference server settings.
type LocalBackendConfig struct {
	URL     string        `yaml:"url"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// SigV4Config enables AWS request signing for the remote endpoint.
type SigV4Config struct {
	Enabled bool   `yaml:"enabled"`
	Service string `yaml:"service"`
	Region  string `yaml:"region"`
}

// RemoteBackendConfig holds cloud backend settings.
type RemoteBackendConfig struct {
	Endpoint string        `yaml:"endpoint"`
	APIKey   string        `yaml:"api_key"`
	Timeout  time.Duration `yaml:"timeout"`
	SigV4    SigV4Config   `yaml:"sigv4"`
}

// MonitoringConfig holds logging and telemetry settings.
type MonitoringConfig struct {
	Debug            bool   `yaml:"debug"`
	TelemetryEnabled bool   `yaml:"telemetry_enabled"`
	TelemetryPath    string `yaml:"telemetry_path"`
	LogToStdout      bool   `yaml:"log_to_stdout"`
}

// Config is the complete gateway configuration.
type Config struct {
	Server     ServerConfig        `yaml:"server"`
	Policy     PolicyConfig        `yaml:"policy"`
	Routing    RoutingConfig       `yaml:"routing"`
	Quota      QuotaConfig         `yaml:"quota"`
	Local      LocalBackendConfig  `yaml:"local"`
	Remote     RemoteBackendConfig `yaml:"remote"`
	Monitoring MonitoringConfig    `yaml:"monitoring"`
}

// Default returns the configuration used when no file or overrides exist.
func Default() *Config {
	cfg := &Config{}
	cfg.Server.Port = DefaultPort
	cfg.Server.ReadTimeout = DefaultReadTimeout
	cfg.Server.WriteTimeout = DefaultServerWriteTimeout
	cfg.Policy.CloudAllowed = true
	cfg.Policy.AllowUserOverride = true
	cfg.Routing.LoadThreshold = DefaultLoadThreshold
	cfg.Routing.DeepReasoningTokens = DefaultDeepReasoningTokens
	cfg.Quota.DailyCeiling = DefaultDailyCeiling
	cfg.Quota.MonthlyCeiling = DefaultMonthlyCeiling
	cfg.Quota.Path = DefaultQuotaPath
	cfg.Local.URL = DefaultLocalURL
	cfg.Local.Model = DefaultLocalModel
	cfg.Local.Timeout = DefaultLocalTimeout
	cfg.Remote.Timeout = DefaultRemoteTimeout
	return cfg
}

// Load reads the configuration file at path (if it exists), layered over
// the defaults, then applies environment overrides. Env var references in
// the YAML are expanded before parsing.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		} else {
			expanded := os.ExpandEnv(string(data))
			if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides layers process environment values over the file config.
// Only the flags an operator is likely to flip per-session are exposed.
func applyEnvOverrides(cfg *Config) {
	if v, ok := envBool("GATEWAY_OFFLINE_REQUIRED"); ok {
		cfg.Policy.OfflineRequired = v
	}
	if v, ok := envBool("GATEWAY_CLOUD_ALLOWED"); ok {
		cfg.Policy.CloudAllowed = v
	}
	if v, ok := envBool("GATEWAY_ALLOW_SENSITIVE_CLOUD"); ok {
		cfg.Policy.AllowSensitiveCloud = v
	}
	if v, ok := envBool("GATEWAY_ALLOW_USER_OVERRIDE"); ok {
		cfg.Policy.AllowUserOverride = v
	}
	if v := os.Getenv("GATEWAY_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("GATEWAY_LOAD_THRESHOLD"); v != "" {
		if threshold, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Routing.LoadThreshold = threshold
		}
	}
	if v := os.Getenv("GATEWAY_REMOTE_API_KEY"); v != "" {
		cfg.Remote.APIKey = v
	}
	if v := os.Getenv("GATEWAY_REMOTE_ENDPOINT"); v != "" {
		cfg.Remote.Endpoint = v
	}
	if v := os.Getenv("GATEWAY_LOCAL_URL"); v != "" {
		cfg.Local.URL = v
	}
	if v := os.Getenv("GATEWAY_QUOTA_PATH"); v != "" {
		cfg.Quota.Path = v
	}
}

func envBool(key string) (bool, bool) {
	v := os.Getenv(key)
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}
