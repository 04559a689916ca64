package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type Config struct {
	Moderation ModerationConfig `mapstructure:"moderation"`
	AI         AIConfig         `mapstructure:"ai"`
	GigaChat   GigaChatConfig   `mapstructure:"gigachat"`
	OpenAI     OpenAIConfig     `mapstructure:"openai"`
	Anthropic  APIKeyConfig     `mapstructure:"anthropic"`
	Gemini     APIKeyConfig     `mapstructure:"gemini"`
	Retry      RetryConfig      `mapstructure:"retry"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Services   ServicesConfig   `mapstructure:"services"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Server     ServerConfig     `mapstructure:"server"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

type ModerationConfig struct {
	MaxLength   int      `mapstructure:"max_length"`
	BannedWords []string `mapstructure:"banned_words"`
	CheckLinks  bool     `mapstructure:"check_links"`
	Confidence  float64  `mapstructure:"confidence"`
	Languages   []string `mapstructure:"languages"`
}

// AIConfig holds settings shared by every AI provider.
type AIConfig struct {
	Provider        string        `mapstructure:"provider"`
	Temperature     float64       `mapstructure:"temperature"`
	MaxTokens       int           `mapstructure:"max_tokens"`
	Timeout         time.Duration `mapstructure:"timeout"`
	RateLimitRPS    float64       `mapstructure:"rate_limit_rps"`
	BreakerFailures uint32        `mapstructure:"breaker_failures"`
	BreakerTimeout  time.Duration `mapstructure:"breaker_timeout"`
}

type GigaChatConfig struct {
	AuthURL    string `mapstructure:"auth_url"`
	ChatURL    string `mapstructure:"chat_url"`
	AuthHeader string `mapstructure:"auth_header"`
	Scope      string `mapstructure:"scope"`
	Model      string `mapstructure:"model"`
	SSLVerify  bool   `mapstructure:"ssl_verify"`
}

type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

// APIKeyConfig covers providers that authenticate with a static key.
type APIKeyConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

type RetryConfig struct {
	AuthAttempts     int           `mapstructure:"auth_attempts"`
	ModerateAttempts int           `mapstructure:"moderate_attempts"`
	BaseDelay        time.Duration `mapstructure:"base_delay"`
	MaxDelay         time.Duration `mapstructure:"max_delay"`
}

type KafkaConfig struct {
	BootstrapServers string `mapstructure:"bootstrap_servers"`
	Topic            string `mapstructure:"topic"`
	GroupID          string `mapstructure:"group_id"`
	Workers          int    `mapstructure:"workers"`
}

type ServicesConfig struct {
	ReviewURL           string        `mapstructure:"review_url"`
	ManualModerationURL string        `mapstructure:"manual_moderation_url"`
	Timeout             time.Duration `mapstructure:"timeout"`
	BreakerFailures     uint32        `mapstructure:"breaker_failures"`
	BreakerTimeout      time.Duration `mapstructure:"breaker_timeout"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TLS      bool          `mapstructure:"tls"`
	DedupTTL time.Duration `mapstructure:"dedup_ttl"`
}

type ServerConfig struct {
	MetricsPort int `mapstructure:"metrics_port"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

var defaults = map[string]interface{}{
	"moderation.max_length":   1000,
	"moderation.banned_words": []string{"мат", "оскорбление", "непристойность"},
	"moderation.check_links":  false,
	"moderation.confidence":   0.7,
	"moderation.languages":    []string{"russian", "english"},

	"ai.provider":         "gigachat",
	"ai.temperature":      0.0,
	"ai.max_tokens":       4096,
	"ai.timeout":          "10s",
	"ai.rate_limit_rps":   0,
	"ai.breaker_failures": 5,
	"ai.breaker_timeout":  "30s",

	"gigachat.auth_url":    "https://ngw.devices.sberbank.ru:9443/api/v2/oauth",
	"gigachat.chat_url":    "https://gigachat.devices.sberbank.ru/api/v1/chat/completions",
	"gigachat.auth_header": "",
	"gigachat.scope":       "GIGACHAT_API_PERS",
	"gigachat.model":       "GigaChat",
	"gigachat.ssl_verify":  false,

	"openai.api_key":  "",
	"openai.base_url": "",
	"openai.model":    "gpt-4o-mini",

	"anthropic.api_key":  "",
	"anthropic.base_url": "",
	"anthropic.model":    "claude-3-5-haiku-latest",

	"gemini.api_key":  "",
	"gemini.base_url": "",
	"gemini.model":    "gemini-2.0-flash",

	"retry.auth_attempts":     1,
	"retry.moderate_attempts": 3,
	"retry.base_delay":        "500ms",
	"retry.max_delay":         "10s",

	"kafka.bootstrap_servers": "kafka-0:9092",
	"kafka.topic":             "ugc_reviews",
	"kafka.group_id":          "automated-moderation",
	"kafka.workers":           4,

	"services.review_url":            "http://ugc-api:8000",
	"services.manual_moderation_url": "http://manual-moderation:8000",
	"services.timeout":               "5s",
	"services.breaker_failures":     5,
	"services.breaker_timeout":      "30s",

	"redis.enabled":   false,
	"redis.host":      "localhost",
	"redis.port":      6379,
	"redis.password":  "",
	"redis.db":        0,
	"redis.tls":       false,
	"redis.dedup_ttl": "24h",

	"server.metrics_port": 9090,
	"metrics.enabled":     true,
}

var supportedLanguages = map[string]struct{}{
	"english":   {},
	"russian":   {},
	"french":    {},
	"spanish":   {},
	"swedish":   {},
	"norwegian": {},
	"hungarian": {},
}

// Load reads config.yaml from configPath, ./config or the working directory
// (all optional) and overlays environment variables such as
// MODERATION_MAX_LENGTH or GIGACHAT_AUTH_HEADER.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		stringToSliceHook,
		mapstructure.StringToTimeDurationHookFunc(),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// stringToSliceHook accepts list values given as a JSON array or a
// comma-separated string, the two forms environment variables arrive in.
func stringToSliceHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if from.Kind() != reflect.String || to.Kind() != reflect.Slice {
		return data, nil
	}
	raw := strings.TrimSpace(data.(string))
	if raw == "" {
		return []string{}, nil
	}
	if strings.HasPrefix(raw, "[") {
		var out []string
		if err := json.Unmarshal([]byte(raw), &out); err != nil {
			return nil, fmt.Errorf("invalid json list %q: %w", raw, err)
		}
		return out, nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out, nil
}

func (c *Config) normalize() {
	c.AI.Provider = strings.ToLower(strings.TrimSpace(c.AI.Provider))
	for i, lang := range c.Moderation.Languages {
		c.Moderation.Languages[i] = strings.ToLower(strings.TrimSpace(lang))
	}
}

func (c *Config) Validate() error {
	var errs []error

	m := c.Moderation
	if m.MaxLength <= 0 {
		errs = append(errs, fmt.Errorf("moderation.max_length must be positive, got %d", m.MaxLength))
	}
	if m.Confidence < 0 || m.Confidence > 1 {
		errs = append(errs, fmt.Errorf("moderation.confidence must be within [0,1], got %v", m.Confidence))
	}
	if len(m.Languages) == 0 {
		errs = append(errs, errors.New("moderation.languages must not be empty"))
	}
	for _, lang := range m.Languages {
		if _, ok := supportedLanguages[lang]; !ok {
			errs = append(errs, fmt.Errorf("moderation.languages: unsupported language %q", lang))
		}
	}

	if c.Retry.AuthAttempts < 1 {
		errs = append(errs, fmt.Errorf("retry.auth_attempts must be at least 1, got %d", c.Retry.AuthAttempts))
	}
	if c.Retry.ModerateAttempts < 1 {
		errs = append(errs, fmt.Errorf("retry.moderate_attempts must be at least 1, got %d", c.Retry.ModerateAttempts))
	}

	switch c.AI.Provider {
	case "gigachat":
		if c.GigaChat.AuthURL == "" || c.GigaChat.ChatURL == "" {
			errs = append(errs, errors.New("gigachat.auth_url and gigachat.chat_url are required"))
		}
		if c.GigaChat.AuthHeader == "" {
			errs = append(errs, errors.New("gigachat.auth_header is required"))
		}
	case "openai":
		if c.OpenAI.APIKey == "" {
			errs = append(errs, errors.New("openai.api_key is required"))
		}
	case "anthropic":
		if c.Anthropic.APIKey == "" {
			errs = append(errs, errors.New("anthropic.api_key is required"))
		}
	case "gemini":
		if c.Gemini.APIKey == "" {
			errs = append(errs, errors.New("gemini.api_key is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("ai.provider %q is not supported", c.AI.Provider))
	}

	if c.Services.ReviewURL == "" || c.Services.ManualModerationURL == "" {
		errs = append(errs, errors.New("services.review_url and services.manual_moderation_url are required"))
	}
	if c.Kafka.BootstrapServers == "" || c.Kafka.Topic == "" {
		errs = append(errs, errors.New("kafka.bootstrap_servers and kafka.topic are required"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}
