// Package config loads gateway settings from .env files, an optional YAML
// file and the process environment, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Providers accepted in Agent.Provider.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderMock      = "mock"
)

var (
	// ErrMissingCredential is returned by Validate when a required secret is unset.
	ErrMissingCredential = errors.New("missing credential")
	// ErrInvalidValue is returned by Validate for out-of-range settings.
	ErrInvalidValue = errors.New("invalid config value")
)

// Config is the complete gateway configuration.
type Config struct {
	WhatsApp WhatsAppConfig `yaml:"whatsapp"`
	Agent    AgentConfig    `yaml:"agent"`
	Gateway  GatewayConfig  `yaml:"gateway"`
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// WhatsAppConfig holds Cloud API credentials and endpoint settings.
type WhatsAppConfig struct {
	Token         string  `yaml:"token"`
	PhoneNumberID string  `yaml:"phone_number_id"`
	VerifyToken   string  `yaml:"verify_token"`
	AppSecret     string  `yaml:"app_secret"`
	APIVersion    string  `yaml:"api_version"`
	BaseURL       string  `yaml:"base_url"`
	SendRPS       float64 `yaml:"send_rps"` // 0 disables pacing
}

// AgentConfig selects and configures the model behind the agent.
type AgentConfig struct {
	AppName         string        `yaml:"app_name"`
	Provider        string        `yaml:"provider"`
	Model           string        `yaml:"model"` // empty selects the provider default
	Instruction     string        `yaml:"instruction"`
	OpenAIAPIKey    string        `yaml:"openai_api_key"`
	AnthropicAPIKey string        `yaml:"anthropic_api_key"`
	InvokeTimeout   time.Duration `yaml:"invoke_timeout"`
	MaxHistory      int           `yaml:"max_history"`
}

// GatewayConfig tunes message dispatch.
type GatewayConfig struct {
	// TriggerPhrase gates messages; empty accepts everything.
	TriggerPhrase  string `yaml:"trigger_phrase"`
	MaxConcurrency int    `yaml:"max_concurrency"`
	ErrorText      string `yaml:"error_text"`
	EmptyReplyText string `yaml:"empty_reply_text"`
}

// ServerConfig configures the webhook listener.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// Default returns a Config with every optional field populated.
func Default() *Config {
	return &Config{
		WhatsApp: WhatsAppConfig{
			APIVersion: "v18.0",
			BaseURL:    "https://graph.facebook.com",
		},
		Agent: AgentConfig{
			AppName:       "whatsapp_bot",
			Provider:      ProviderOpenAI,
			Instruction:   "Respond concisely and helpfully.",
			InvokeTimeout: 60 * time.Second,
			MaxHistory:    20,
		},
		Gateway: GatewayConfig{
			MaxConcurrency: 8,
			ErrorText:      "Sorry, I encountered an error.",
			EmptyReplyText: "I received your message but couldn't generate a response.",
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds a Config. path may be empty, in which case only defaults and
// the environment are used. .env files never override variables already set.
func Load(path string) (*Config, error) {
	for _, f := range []string{".env", ".env.local"} {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := Parse(data, cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse overlays YAML data onto cfg after expanding ${VAR} references.
func Parse(data []byte, cfg *Config) error {
	if err := yaml.Unmarshal([]byte(expandEnv(string(data))), cfg); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}
	return nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnv(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(m string) string {
		return os.Getenv(m[2 : len(m)-1])
	})
}

type lookupFunc func(string) (string, bool)

func applyEnv(cfg *Config, lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	str("WHATSAPP_TOKEN", &cfg.WhatsApp.Token)
	str("PHONE_NUMBER_ID", &cfg.WhatsApp.PhoneNumberID)
	str("VERIFY_TOKEN", &cfg.WhatsApp.VerifyToken)
	str("WHATSAPP_APP_SECRET", &cfg.WhatsApp.AppSecret)
	str("WHATSAPP_API_VERSION", &cfg.WhatsApp.APIVersion)
	str("WHATSAPP_API_BASE_URL", &cfg.WhatsApp.BaseURL)
	// Surrounding spaces are part of the trigger phrase.
	if v, ok := lookup("AGENTGATE_TRIGGER_PHRASE"); ok && strings.TrimSpace(v) != "" {
		cfg.Gateway.TriggerPhrase = v
	}
	str("AGENTGATE_ADDR", &cfg.Server.Addr)
	str("AGENTGATE_APP_NAME", &cfg.Agent.AppName)
	str("AGENTGATE_PROVIDER", &cfg.Agent.Provider)
	str("AGENTGATE_MODEL", &cfg.Agent.Model)
	str("AGENTGATE_INSTRUCTION", &cfg.Agent.Instruction)
	str("OPENAI_API_KEY", &cfg.Agent.OpenAIAPIKey)
	str("ANTHROPIC_API_KEY", &cfg.Agent.AnthropicAPIKey)
	str("AGENTGATE_LOG_LEVEL", &cfg.Logging.Level)
	str("AGENTGATE_LOG_FORMAT", &cfg.Logging.Format)

	if v, ok := lookup("AGENTGATE_INVOKE_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("AGENTGATE_INVOKE_TIMEOUT: %w", err)
		}
		cfg.Agent.InvokeTimeout = d
	}
	if v, ok := lookup("AGENTGATE_SEND_RPS"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("AGENTGATE_SEND_RPS: %w", err)
		}
		cfg.WhatsApp.SendRPS = f
	}
	if v, ok := lookup("AGENTGATE_MAX_CONCURRENCY"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("AGENTGATE_MAX_CONCURRENCY: %w", err)
		}
		cfg.Gateway.MaxConcurrency = n
	}
	return nil
}

// Validate reports the first missing or invalid setting.
func (c *Config) Validate() error {
	if c.WhatsApp.Token == "" {
		return fmt.Errorf("%w: WHATSAPP_TOKEN", ErrMissingCredential)
	}
	if c.WhatsApp.PhoneNumberID == "" {
		return fmt.Errorf("%w: PHONE_NUMBER_ID", ErrMissingCredential)
	}
	if c.WhatsApp.VerifyToken == "" {
		return fmt.Errorf("%w: VERIFY_TOKEN", ErrMissingCredential)
	}

	switch c.Agent.Provider {
	case ProviderOpenAI:
		if c.Agent.OpenAIAPIKey == "" {
			return fmt.Errorf("%w: OPENAI_API_KEY", ErrMissingCredential)
		}
	case ProviderAnthropic:
		if c.Agent.AnthropicAPIKey == "" {
			return fmt.Errorf("%w: ANTHROPIC_API_KEY", ErrMissingCredential)
		}
	case ProviderMock:
	default:
		return fmt.Errorf("%w: unknown provider %q", ErrInvalidValue, c.Agent.Provider)
	}

	if c.Gateway.MaxConcurrency < 0 {
		return fmt.Errorf("%w: max_concurrency must be >= 0", ErrInvalidValue)
	}
	if c.WhatsApp.SendRPS < 0 {
		return fmt.Errorf("%w: send_rps must be >= 0", ErrInvalidValue)
	}
	if c.Agent.InvokeTimeout < 0 {
		return fmt.Errorf("%w: invoke_timeout must be >= 0", ErrInvalidValue)
	}
	if strings.TrimSpace(c.Gateway.ErrorText) == "" {
		return fmt.Errorf("%w: error_text must not be blank", ErrInvalidValue)
	}
	if strings.TrimSpace(c.Gateway.EmptyReplyText) == "" {
		return fmt.Errorf("%w: empty_reply_text must not be blank", ErrInvalidValue)
	}
	if f := strings.ToLower(c.Logging.Format); f != "text" && f != "json" {
		return fmt.Errorf("%w: log format %q", ErrInvalidValue, c.Logging.Format)
	}
	return nil
}
