package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/hupe1980/agentgate/config"
	"github.com/hupe1980/agentgate/gateway"
	"github.com/hupe1980/agentgate/logging"
	"github.com/hupe1980/agentgate/model"
	anthropicmodel "github.com/hupe1980/agentgate/model/anthropic"
	openaimodel "github.com/hupe1980/agentgate/model/openai"
	"github.com/hupe1980/agentgate/runner"
	"github.com/hupe1980/agentgate/server"
	"github.com/hupe1980/agentgate/trigger"
	"github.com/hupe1980/agentgate/whatsapp"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the webhook server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}
	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: strings.ToLower(cfg.Logging.Format),
		Output: os.Stdout,
	})

	llm, err := newModel(cfg.Agent)
	if err != nil {
		return err
	}

	rt := runner.New(llm, func(o *runner.Options) {
		o.Instruction = cfg.Agent.Instruction
		o.MaxHistoryMessages = cfg.Agent.MaxHistory
		o.Logger = logger.WithComponent("runner")
	})

	var filter gateway.Gate
	if strings.TrimSpace(cfg.Gateway.TriggerPhrase) != "" {
		f, err := trigger.New(cfg.Gateway.TriggerPhrase)
		if err != nil {
			return err
		}
		filter = f
	}

	client := whatsapp.NewClient(cfg.WhatsApp.Token, cfg.WhatsApp.PhoneNumberID, func(o *whatsapp.ClientOptions) {
		o.BaseURL = cfg.WhatsApp.BaseURL
		o.APIVersion = cfg.WhatsApp.APIVersion
		o.Logger = logger.WithComponent("whatsapp")
		if cfg.WhatsApp.SendRPS > 0 {
			o.Limiter = rate.NewLimiter(rate.Limit(cfg.WhatsApp.SendRPS), 1)
		}
	})

	dispatcher := gateway.NewDispatcher(
		whatsapp.NewDecoder(),
		gateway.NewSessionStore(rt, cfg.Agent.AppName, func(o *gateway.SessionStoreOptions) {
			o.Logger = logger.WithComponent("sessions")
		}),
		gateway.NewInvoker(rt, func(o *gateway.InvokerOptions) {
			o.Timeout = cfg.Agent.InvokeTimeout
			o.Logger = logger.WithComponent("invoker")
		}),
		client,
		func(o *gateway.DispatcherOptions) {
			o.Filter = filter
			o.MaxConcurrency = cfg.Gateway.MaxConcurrency
			o.ErrorText = cfg.Gateway.ErrorText
			o.EmptyReplyText = cfg.Gateway.EmptyReplyText
			o.Logger = logger.WithComponent("dispatcher")
		},
	)

	slogger := logger.Slog()
	srv := server.NewServer(slogger, cfg.Server.Addr,
		server.NewWebhookHandler(slogger, dispatcher, cfg.WhatsApp.VerifyToken, cfg.WhatsApp.AppSecret),
		server.HealthHandler{},
	)

	logger.Info("starting gateway",
		"addr", cfg.Server.Addr,
		"provider", cfg.Agent.Provider,
		"model", llm.Info().Name,
		"trigger", cfg.Gateway.TriggerPhrase,
	)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Stop(shutdownCtx)
}

func newModel(cfg config.AgentConfig) (model.Model, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return openaimodel.NewModel(func(o *openaimodel.Options) {
			o.APIKey = cfg.OpenAIAPIKey
			if cfg.Model != "" {
				o.Model = cfg.Model
			}
		}), nil
	case config.ProviderAnthropic:
		return anthropicmodel.NewModel(func(o *anthropicmodel.Options) {
			o.APIKey = cfg.AnthropicAPIKey
			if cfg.Model != "" {
				o.Model = anthropic.Model(cfg.Model)
			}
		}), nil
	case config.ProviderMock:
		name := cfg.Model
		if name == "" {
			name = "mock"
		}
		return model.NewMockModel(name), nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", config.ErrInvalidValue, cfg.Provider)
	}
}
