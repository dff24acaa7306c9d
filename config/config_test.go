package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapLookup(m map[string]string) lookupFunc {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "whatsapp_bot", cfg.Agent.AppName)
	assert.Equal(t, "v18.0", cfg.WhatsApp.APIVersion)
	assert.Equal(t, "https://graph.facebook.com", cfg.WhatsApp.BaseURL)
	assert.Equal(t, "Respond concisely and helpfully.", cfg.Agent.Instruction)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestParse_ExpandsEnv(t *testing.T) {
	t.Setenv("TEST_AGENTGATE_TOKEN", "from-env")

	cfg := Default()
	err := Parse([]byte(`
whatsapp:
  token: ${TEST_AGENTGATE_TOKEN}
  phone_number_id: "12345"
gateway:
  trigger_phrase: knightbot
agent:
  invoke_timeout: 5s
`), cfg)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.WhatsApp.Token)
	assert.Equal(t, "12345", cfg.WhatsApp.PhoneNumberID)
	assert.Equal(t, "knightbot", cfg.Gateway.TriggerPhrase)
	assert.Equal(t, 5*time.Second, cfg.Agent.InvokeTimeout)
	assert.Equal(t, "v18.0", cfg.WhatsApp.APIVersion)
}

func TestParse_Invalid(t *testing.T) {
	err := Parse([]byte("whatsapp: [unclosed"), Default())
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := applyEnv(cfg, mapLookup(map[string]string{
		"WHATSAPP_TOKEN":            "tok",
		"PHONE_NUMBER_ID":           "42",
		"AGENTGATE_TRIGGER_PHRASE":  " KnightBot ",
		"AGENTGATE_PROVIDER":        "mock",
		"AGENTGATE_INVOKE_TIMEOUT":  "2m",
		"AGENTGATE_SEND_RPS":        "12.5",
		"AGENTGATE_MAX_CONCURRENCY": "3",
		"WHATSAPP_API_VERSION":      "",
	}))
	require.NoError(t, err)

	assert.Equal(t, "tok", cfg.WhatsApp.Token)
	assert.Equal(t, "42", cfg.WhatsApp.PhoneNumberID)
	assert.Equal(t, " KnightBot ", cfg.Gateway.TriggerPhrase)
	assert.Equal(t, ProviderMock, cfg.Agent.Provider)
	assert.Equal(t, 2*time.Minute, cfg.Agent.InvokeTimeout)
	assert.Equal(t, 12.5, cfg.WhatsApp.SendRPS)
	assert.Equal(t, 3, cfg.Gateway.MaxConcurrency)
	assert.Equal(t, "v18.0", cfg.WhatsApp.APIVersion)
}

func TestApplyEnv_BadNumber(t *testing.T) {
	err := applyEnv(Default(), mapLookup(map[string]string{"AGENTGATE_MAX_CONCURRENCY": "many"}))
	assert.ErrorContains(t, err, "AGENTGATE_MAX_CONCURRENCY")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.WhatsApp.Token = "tok"
		cfg.WhatsApp.PhoneNumberID = "42"
		cfg.WhatsApp.VerifyToken = "verify"
		cfg.Agent.OpenAIAPIKey = "sk-test"
		return cfg
	}

	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
		want   error
	}{
		{name: "missing token", mutate: func(c *Config) { c.WhatsApp.Token = "" }, want: ErrMissingCredential},
		{name: "missing phone id", mutate: func(c *Config) { c.WhatsApp.PhoneNumberID = "" }, want: ErrMissingCredential},
		{name: "missing verify token", mutate: func(c *Config) { c.WhatsApp.VerifyToken = "" }, want: ErrMissingCredential},
		{name: "missing openai key", mutate: func(c *Config) { c.Agent.OpenAIAPIKey = "" }, want: ErrMissingCredential},
		{name: "missing anthropic key", mutate: func(c *Config) { c.Agent.Provider = ProviderAnthropic }, want: ErrMissingCredential},
		{name: "unknown provider", mutate: func(c *Config) { c.Agent.Provider = "llama" }, want: ErrInvalidValue},
		{name: "negative concurrency", mutate: func(c *Config) { c.Gateway.MaxConcurrency = -1 }, want: ErrInvalidValue},
		{name: "blank error text", mutate: func(c *Config) { c.Gateway.ErrorText = "  " }, want: ErrInvalidValue},
		{name: "blank empty reply text", mutate: func(c *Config) { c.Gateway.EmptyReplyText = "" }, want: ErrInvalidValue},
		{name: "bad log format", mutate: func(c *Config) { c.Logging.Format = "xml" }, want: ErrInvalidValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), tt.want)
		})
	}

	mock := valid()
	mock.Agent.Provider = ProviderMock
	mock.Agent.OpenAIAPIKey = ""
	assert.NoError(t, mock.Validate())
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agentgate.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  addr: \":9090\"\n"), 0o600))
	t.Setenv("AGENTGATE_APP_NAME", "custom_bot")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "custom_bot", cfg.Agent.AppName)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "read config file")
}

func TestValidate_BlankTextFromYAML(t *testing.T) {
	cfg := Default()
	cfg.WhatsApp.Token = "tok"
	cfg.WhatsApp.PhoneNumberID = "42"
	cfg.WhatsApp.VerifyToken = "verify"
	cfg.Agent.Provider = ProviderMock
	require.NoError(t, Parse([]byte("gateway:\n  error_text: \"\"\n"), cfg))

	assert.ErrorIs(t, cfg.Validate(), ErrInvalidValue)
}

func TestLoad_MalformedDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("BAD-KEY=1\n"), 0o600))
	t.Chdir(dir)

	_, err := Load("")
	assert.ErrorContains(t, err, "load .env")
}

func TestLoad_NoDotEnv(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}
