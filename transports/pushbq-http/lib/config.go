package lib

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/maximhq/pushbq/interfaces"
)

const (
	DefaultHost     = "0.0.0.0"
	DefaultPort     = "3000"
	DefaultEnvFile  = ".env"
	DefaultLogLevel = interfaces.LogLevelInfo
)

// Environment variables read by LoadConfig
const (
	EnvHost                = "PUSHBQ_HOST"
	EnvPort                = "PUSHBQ_PORT"
	EnvProjectID           = "PUSHBQ_PROJECT_ID"
	EnvTimeoutSeconds      = "PUSHBQ_TIMEOUT_SECONDS"
	EnvMaxConnsPerHost     = "PUSHBQ_MAX_CONNS_PER_HOST"
	EnvProxyType           = "PUSHBQ_PROXY_TYPE"
	EnvProxyURL            = "PUSHBQ_PROXY_URL"
	EnvProxyUsername       = "PUSHBQ_PROXY_USERNAME"
	EnvProxyPassword       = "PUSHBQ_PROXY_PASSWORD"
	EnvLogLevel            = "PUSHBQ_LOG_LEVEL"
	EnvLegacyStatus        = "PUSHBQ_LEGACY_STATUS"
	EnvProbeTimeoutSeconds = "PUSHBQ_PROBE_TIMEOUT_SECONDS"
	EnvEnableProfiling     = "PUSHBQ_ENABLE_PPROF"
)

// Config is the runtime configuration of the HTTP service
type Config struct {
	Host     string
	Port     string
	LogLevel interfaces.LogLevel

	// LegacyStatusCodes answers failed inserts with 200 and an error text,
	// as the first version of the service did. When false, failures get
	// 400 (bad request path) or 502 (downstream or transport failure).
	LegacyStatusCodes bool

	ProbeTimeout time.Duration

	// EnableProfiling registers /debug/pprof/* and /debug/summary
	EnableProfiling bool

	Forwarder interfaces.ForwarderConfig
}

// Addr returns the listen address
func (c *Config) Addr() string {
	return c.Host + ":" + c.Port
}

// LoadConfig reads the service configuration from the environment.
// Values from envFile fill in variables the environment does not set; a
// missing envFile is not an error.
func LoadConfig(envFile string) (*Config, error) {
	fileValues := map[string]string{}
	if envFile != "" {
		values, err := godotenv.Read(envFile)
		switch {
		case err == nil:
			fileValues = values
		case errors.Is(err, os.ErrNotExist):
			// optional
		default:
			return nil, fmt.Errorf("failed to read env file %s: %w", envFile, err)
		}
	}

	lookup := func(key string) string {
		if value, ok := os.LookupEnv(key); ok {
			return strings.TrimSpace(value)
		}
		return strings.TrimSpace(fileValues[key])
	}

	config := &Config{
		Host:         withDefault(lookup(EnvHost), DefaultHost),
		Port:         withDefault(lookup(EnvPort), DefaultPort),
		LogLevel:     DefaultLogLevel,
		ProbeTimeout: DefaultProbeTimeout,
		Forwarder: interfaces.ForwarderConfig{
			ProjectID: withDefault(lookup(EnvProjectID), interfaces.DefaultProjectID),
			NetworkConfig: interfaces.NetworkConfig{
				DefaultRequestTimeoutInSeconds: interfaces.DefaultRequestTimeoutInSeconds,
				MaxConnsPerHost:                interfaces.DefaultMaxConnsPerHost,
			},
		},
	}

	if port, err := strconv.Atoi(config.Port); err != nil || port <= 0 || port > 65535 {
		return nil, fmt.Errorf("invalid %s %q", EnvPort, config.Port)
	}

	if raw := lookup(EnvLogLevel); raw != "" {
		level, ok := interfaces.ParseLogLevel(strings.ToLower(raw))
		if !ok {
			return nil, fmt.Errorf("invalid %s %q", EnvLogLevel, raw)
		}
		config.LogLevel = level
	}

	var err error
	if config.Forwarder.NetworkConfig.DefaultRequestTimeoutInSeconds, err = positiveInt(lookup, EnvTimeoutSeconds, interfaces.DefaultRequestTimeoutInSeconds); err != nil {
		return nil, err
	}
	if config.Forwarder.NetworkConfig.MaxConnsPerHost, err = positiveInt(lookup, EnvMaxConnsPerHost, interfaces.DefaultMaxConnsPerHost); err != nil {
		return nil, err
	}
	probeSeconds, err := positiveInt(lookup, EnvProbeTimeoutSeconds, int(DefaultProbeTimeout/time.Second))
	if err != nil {
		return nil, err
	}
	config.ProbeTimeout = time.Duration(probeSeconds) * time.Second

	if raw := lookup(EnvLegacyStatus); raw != "" {
		legacy, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", EnvLegacyStatus, raw, err)
		}
		config.LegacyStatusCodes = legacy
	}

	if raw := lookup(EnvEnableProfiling); raw != "" {
		enabled, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", EnvEnableProfiling, raw, err)
		}
		config.EnableProfiling = enabled
	}

	proxyConfig, err := loadProxyConfig(lookup)
	if err != nil {
		return nil, err
	}
	config.Forwarder.ProxyConfig = proxyConfig

	return config, nil
}

func loadProxyConfig(lookup func(string) string) (*interfaces.ProxyConfig, error) {
	proxyType := interfaces.ProxyType(strings.ToLower(lookup(EnvProxyType)))
	switch proxyType {
	case "", interfaces.NoProxy:
		return nil, nil
	case interfaces.HttpProxy, interfaces.Socks5Proxy:
		if lookup(EnvProxyURL) == "" {
			return nil, fmt.Errorf("%s is required for %s proxy", EnvProxyURL, proxyType)
		}
	case interfaces.EnvProxy:
	default:
		return nil, fmt.Errorf("invalid %s %q", EnvProxyType, proxyType)
	}

	return &interfaces.ProxyConfig{
		Type:     proxyType,
		URL:      lookup(EnvProxyURL),
		Username: lookup(EnvProxyUsername),
		Password: lookup(EnvProxyPassword),
	}, nil
}

func positiveInt(lookup func(string) string, key string, fallback int) (int, error) {
	raw := lookup(key)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be a positive integer", key, raw)
	}
	return value, nil
}

func withDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
