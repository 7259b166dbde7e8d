package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"fluxgate/internal/remote"
	"fluxgate/internal/scheduler"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const gatewayEnvPrefix = "FLUXGATE__"

type HTTPConfig struct {
	Addr            string        `koanf:"addr"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type LogConfig struct {
	Level string `koanf:"level"`
	JSON  bool   `koanf:"json"`
}

// Gateway is the process configuration of cmd/gateway.
type Gateway struct {
	HTTP        HTTPConfig       `koanf:"http"`
	GRPCPort    int              `koanf:"grpc_port"`
	MetricsPort int              `koanf:"metrics_port"`
	Pipeline    string           `koanf:"pipeline"` // optional consumer pipeline yaml
	Remote      remote.Config    `koanf:"remote"`
	Pool        scheduler.Config `koanf:"pool"`
	Log         LogConfig        `koanf:"log"`
}

// LoadGatewayConfig merges YAML (if present) with env-vars
// (prefix `FLUXGATE__`, delimiter `__`, e.g. FLUXGATE__REMOTE__BASE_URL).
func LoadGatewayConfig(path string) (Gateway, error) {
	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil &&
			!errors.Is(err, fs.ErrNotExist) {
			return Gateway{}, err
		}
	}
	sv := k.String("schema_version")
	if sv != "" && sv != SupportedSchema {
		return Gateway{}, fmt.Errorf("gateway schema_version %q not supported (want %q)", sv, SupportedSchema)
	}

	if err := k.Load(env.Provider(gatewayEnvPrefix, "__", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, gatewayEnvPrefix))
	}), nil); err != nil {
		return Gateway{}, err
	}

	var cfg Gateway
	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, err
	}
	applyGatewayDefaults(&cfg)
	return cfg, nil
}

func applyGatewayDefaults(c *Gateway) {
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8081"
	}
	if c.HTTP.ShutdownTimeout == 0 {
		c.HTTP.ShutdownTimeout = 10 * time.Second
	}
	if c.GRPCPort == 0 {
		c.GRPCPort = 7070
	}
	if c.MetricsPort == 0 {
		c.MetricsPort = 9100
	}
	if c.Remote.BaseURL == "" {
		c.Remote.BaseURL = "http://localhost:8080"
	}
	if c.Remote.Timeout == 0 {
		c.Remote.Timeout = 10 * time.Second
	}
	if c.Remote.DefaultItemID == "" {
		c.Remote.DefaultItemID = "ABC"
	}
	if c.Pool.Name == "" {
		c.Pool.Name = "MyThreadGroup"
	}
	if c.Pool.Min == 0 {
		c.Pool.Min = 5
	}
	if c.Pool.Max == 0 {
		c.Pool.Max = 10
	}
	if c.Pool.QueueCap == 0 {
		c.Pool.QueueCap = 100_000
	}
	if c.Pool.IdleTTL == 0 {
		c.Pool.IdleTTL = 60 * time.Second
	}
}
