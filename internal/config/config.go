package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	EnvPrefix      = "TUTORCHAT"
	envConfigPath  = "TUTORCHAT_CONFIG"
	defaultCfgName = "tutorchat"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Access  AccessConfig  `mapstructure:"access"`
	Redis   RedisConfig   `mapstructure:"redis"`
	LLM     LLMConfig     `mapstructure:"llm"`
	Relay   RelayConfig   `mapstructure:"relay"`
	Persona PersonaConfig `mapstructure:"persona"`
	Log     LogConfig     `mapstructure:"log"`
	Client  ClientConfig  `mapstructure:"client"`
	Storage StorageConfig `mapstructure:"storage"`
}

type ServerConfig struct {
	Port           string        `mapstructure:"port"`
	BodyLimitBytes int64         `mapstructure:"body_limit_bytes"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	ShutdownGrace  time.Duration `mapstructure:"shutdown_grace"`
}

type AccessConfig struct {
	AllowedOrigins []string        `mapstructure:"allowed_origins"`
	Match          string          `mapstructure:"match"` // "exact" or "prefix"
	TrustProxy     bool            `mapstructure:"trust_proxy"`
	RateLimit      RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	Max     int           `mapstructure:"max"`
	Window  time.Duration `mapstructure:"window"`
	Backend string        `mapstructure:"backend"` // "memory" or "redis"
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type LLMConfig struct {
	Provider        string        `mapstructure:"provider"` // "gemini", "vertex" or "mock"
	APIKey          string        `mapstructure:"api_key"`
	Project         string        `mapstructure:"project"`
	Location        string        `mapstructure:"location"`
	Model           string        `mapstructure:"model"`
	Temperature     float32       `mapstructure:"temperature"`
	TopK            float32       `mapstructure:"top_k"`
	TopP            float32       `mapstructure:"top_p"`
	MaxOutputTokens int32         `mapstructure:"max_output_tokens"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

type RelayConfig struct {
	MaxMessageLength int `mapstructure:"max_message_length"`
	HistoryWindow    int `mapstructure:"history_window"`
}

type PersonaConfig struct {
	File string `mapstructure:"file"` // empty = embedded default
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// ClientConfig drives the terminal Session Client.
type ClientConfig struct {
	RelayURL   string        `mapstructure:"relay_url"`
	Origin     string        `mapstructure:"origin"`
	UserName   string        `mapstructure:"user_name"`
	CourseName string        `mapstructure:"course_name"`
	PageURL    string        `mapstructure:"page_url"`
	StorageKey string        `mapstructure:"storage_key"`
	MaxHistory int           `mapstructure:"max_history"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// StorageConfig selects where the Session Client keeps its history.
type StorageConfig struct {
	Backend             string        `mapstructure:"backend"` // "memory", "file", "redis" or "firestore"
	Dir                 string        `mapstructure:"dir"`
	TTL                 time.Duration `mapstructure:"ttl"`
	FirestoreProject    string        `mapstructure:"firestore_project"`
	FirestoreCollection string        `mapstructure:"firestore_collection"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.body_limit_bytes", 10<<10)
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.shutdown_grace", "10s")

	v.SetDefault("access.allowed_origins", []string{})
	v.SetDefault("access.match", "exact")
	v.SetDefault("access.trust_proxy", false)
	v.SetDefault("access.rate_limit.max", 15)
	v.SetDefault("access.rate_limit.window", "60s")
	v.SetDefault("access.rate_limit.backend", "memory")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("llm.provider", "gemini")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.project", "")
	v.SetDefault("llm.location", "us-central1")
	v.SetDefault("llm.model", "gemini-1.5-pro")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.top_k", 40)
	v.SetDefault("llm.top_p", 0.95)
	v.SetDefault("llm.max_output_tokens", 1024)
	v.SetDefault("llm.timeout", "30s")

	v.SetDefault("relay.max_message_length", 2000)
	v.SetDefault("relay.history_window", 10)

	v.SetDefault("persona.file", "")
	v.SetDefault("log.level", "info")

	v.SetDefault("client.relay_url", "http://localhost:8080")
	v.SetDefault("client.origin", "")
	v.SetDefault("client.user_name", "")
	v.SetDefault("client.course_name", "")
	v.SetDefault("client.page_url", "")
	v.SetDefault("client.storage_key", "tutorchat_chat_history")
	v.SetDefault("client.max_history", 50)
	v.SetDefault("client.timeout", "30s")

	v.SetDefault("storage.backend", "file")
	v.SetDefault("storage.dir", ".tutorchat")
	v.SetDefault("storage.ttl", "0s")
	v.SetDefault("storage.firestore_project", "")
	v.SetDefault("storage.firestore_collection", "chat_histories")
}

// Load reads defaults, then the YAML file at path (or $TUTORCHAT_CONFIG, or
// ./tutorchat.yaml when present), then TUTORCHAT_* environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path == "" {
		path = os.Getenv(envConfigPath)
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(defaultCfgName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Access.AllowedOrigins = splitList(cfg.Access.AllowedOrigins)
	return &cfg, nil
}

// splitList accepts both YAML lists and a single comma separated env value.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

// Validate checks the settings the relay server depends on.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Server.Port) == "" {
		errs = append(errs, errors.New("server.port is required"))
	}
	if c.Server.BodyLimitBytes <= 0 {
		errs = append(errs, errors.New("server.body_limit_bytes must be positive"))
	}
	if c.Access.RateLimit.Max <= 0 {
		errs = append(errs, errors.New("access.rate_limit.max must be positive"))
	}
	if c.Access.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("access.rate_limit.window must be positive"))
	}
	switch c.Access.Match {
	case "exact", "prefix":
	default:
		errs = append(errs, fmt.Errorf("access.match %q must be exact or prefix", c.Access.Match))
	}
	switch c.Access.RateLimit.Backend {
	case "memory":
	case "redis":
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("redis.addr is required for the redis rate limit backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("access.rate_limit.backend %q must be memory or redis", c.Access.RateLimit.Backend))
	}

	switch c.LLM.Provider {
	case "mock":
	case "gemini":
		if c.LLM.APIKey == "" {
			errs = append(errs, errors.New("llm.api_key is required for the gemini provider"))
		}
	case "vertex":
		if c.LLM.Project == "" {
			errs = append(errs, errors.New("llm.project is required for the vertex provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("llm.provider %q must be gemini, vertex or mock", c.LLM.Provider))
	}
	if c.LLM.Timeout <= 0 {
		errs = append(errs, errors.New("llm.timeout must be positive"))
	}

	if c.Relay.MaxMessageLength <= 0 {
		errs = append(errs, errors.New("relay.max_message_length must be positive"))
	}
	if c.Relay.HistoryWindow <= 0 {
		errs = append(errs, errors.New("relay.history_window must be positive"))
	}

	return errors.Join(errs...)
}

// ValidateClient checks the settings the terminal client depends on.
func (c *Config) ValidateClient() error {
	var errs []error

	if strings.TrimSpace(c.Client.RelayURL) == "" {
		errs = append(errs, errors.New("client.relay_url is required"))
	}
	if c.Client.MaxHistory <= 0 {
		errs = append(errs, errors.New("client.max_history must be positive"))
	}
	switch c.Storage.Backend {
	case "memory":
	case "file":
		if c.Storage.Dir == "" {
			errs = append(errs, errors.New("storage.dir is required for the file backend"))
		}
	case "redis":
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("redis.addr is required for the redis backend"))
		}
	case "firestore":
		if c.Storage.FirestoreProject == "" {
			errs = append(errs, errors.New("storage.firestore_project is required for the firestore backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.backend %q must be memory, file, redis or firestore", c.Storage.Backend))
	}

	return errors.Join(errs...)
}
