package kafka

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "FLUXGATE_KAFKA__"

type CheckpointCfg struct {
	CommitInt   time.Duration `koanf:"commit_interval"` // flush cadence
	CommitEvery int           `koanf:"commit_every"`    // flush after N acks (0 = interval only)
}

type Config struct {
	Brokers   []string `koanf:"brokers"`
	Topics    []string `koanf:"topics"`
	GroupID   string   `koanf:"group_id"`
	ClientID  string   `koanf:"client_id"`
	StartFrom string   `koanf:"start_from"` // oldest|newest (default oldest)
	Version   string   `koanf:"version"`
	TLSEn     bool     `koanf:"tls_enabled"`
	SASLUser  string   `koanf:"sasl_user"`
	SASLPass  string   `koanf:"sasl_pass"`

	KeyDeserializer   string `koanf:"key_deserializer"`   // integer|string|bytes|json
	ValueDeserializer string `koanf:"value_deserializer"` // integer|string|bytes|json
	Prefetch          int    `koanf:"prefetch"`           // records buffered per partition

	Checkpoint CheckpointCfg `koanf:"checkpoint"`
}

// ---------------------------------------------------------------------------
// Loader
// ---------------------------------------------------------------------------

// LoadConfig merges YAML (if present) with env-vars
// (prefix `FLUXGATE_KAFKA__`, delimiter `__`).
func LoadConfig(path string) (Config, error) {
	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil &&
			!errors.Is(err, fs.ErrNotExist) {
			return Config{}, err
		}
	}
	// schema version check (only when YAML is present)
	sv := k.String("schema_version")
	if sv != "" && sv != "v1" {
		return Config{}, fmt.Errorf("kafka schema_version %q not supported (want v1)", sv)
	}

	if err := k.Load(env.Provider(envPrefix, "__", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	}), nil); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, err
	}
	applyDefaults(&cfg)
	return cfg, cfg.Validate()
}

// ---------------------------------------------------------------------------
// defaults
// ---------------------------------------------------------------------------

func applyDefaults(c *Config) {
	if len(c.Brokers) == 0 {
		c.Brokers = []string{"localhost:9092"}
	}
	if len(c.Topics) == 0 {
		c.Topics = []string{"reactive-test"}
	}
	if c.GroupID == "" {
		c.GroupID = "my-group"
	}
	if c.ClientID == "" {
		c.ClientID = "my-consumer"
	}
	if c.StartFrom == "" {
		c.StartFrom = "oldest"
	}
	if c.Version == "" {
		c.Version = sarama.V2_1_0_0.String()
	}
	if c.KeyDeserializer == "" {
		c.KeyDeserializer = "integer"
	}
	if c.ValueDeserializer == "" {
		c.ValueDeserializer = "string"
	}
	if c.Prefetch <= 0 {
		c.Prefetch = 256
	}
	if c.Checkpoint.CommitInt == 0 {
		c.Checkpoint.CommitInt = 5 * time.Second
	}
}

func (c Config) Validate() error {
	if _, err := DeserializerFor(c.KeyDeserializer); err != nil {
		return err
	}
	if _, err := DeserializerFor(c.ValueDeserializer); err != nil {
		return err
	}
	switch c.StartFrom {
	case "oldest", "earliest", "newest", "latest":
	default:
		return fmt.Errorf("kafka: start_from %q not supported (oldest|newest)", c.StartFrom)
	}
	return nil
}
