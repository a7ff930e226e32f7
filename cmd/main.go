package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/sixtyoneeighty/gpt-pilot/internal/config"
	"github.com/sixtyoneeighty/gpt-pilot/internal/llm"
	"github.com/sixtyoneeighty/gpt-pilot/internal/observability"
	"github.com/sixtyoneeighty/gpt-pilot/internal/provider/anthropic"
	"github.com/sixtyoneeighty/gpt-pilot/internal/provider/echo"
	"github.com/sixtyoneeighty/gpt-pilot/internal/provider/openai"
	"github.com/sixtyoneeighty/gpt-pilot/internal/provider/registry"
	"github.com/sixtyoneeighty/gpt-pilot/internal/ui"
	"github.com/sixtyoneeighty/gpt-pilot/internal/ui/middleware"
)

// ErrProviderNotConfigured indicates that a provider is not configured and should be skipped.
var ErrProviderNotConfigured = errors.New("provider not configured")

const demoPrompt = "Write a short poem about artificial intelligence and creativity."

const shutdownTimeout = 5 * time.Second

func main() {
	container := buildContainer()

	err := container.Invoke(runDemo)
	if err != nil {
		log.Fatalf("Failed to run application: %v", err)
	}
}

func buildContainer() *dig.Container {
	container := dig.New()

	// Configuration
	if err := container.Provide(config.Load); err != nil {
		log.Fatalf("Failed to provide config: %v", err)
	}
	if err := container.Provide(config.ParseDependenciesConfig); err != nil {
		log.Fatalf("Failed to provide config dependencies: %v", err)
	}

	// Observability
	if err := container.Provide(observability.InitLogger); err != nil {
		log.Fatalf("Failed to provide logger: %v", err)
	}

	// Provider Registry
	if err := container.Provide(registry.NewRegistry); err != nil {
		log.Fatalf("Failed to provide registry: %v", err)
	}

	// UI Layer
	if err := container.Provide(middleware.BuildMiddlewareChain); err != nil {
		log.Fatalf("Failed to provide middleware: %v", err)
	}
	if err := container.Provide(ui.NewServer); err != nil {
		log.Fatalf("Failed to provide UI server: %v", err)
	}

	registerProviders(container)

	return container
}

func registerProviders(container *dig.Container) {
	ctx := context.Background()

	// Echo provider is always available for local runs.
	if err := container.Invoke(func(reg *registry.Registry) error {
		return reg.Register(ctx, echo.NewProvider())
	}); err != nil {
		log.Fatalf("Failed to register echo provider: %v", err)
	}

	// Bedrock provider, skipped when no API key is configured.
	if err := container.Invoke(func(reg *registry.Registry, cfg *anthropic.Config) error {
		if cfg.APIKey == "" {
			return ErrProviderNotConfigured
		}
		provider, err := anthropic.NewProvider(*cfg)
		if err != nil {
			return fmt.Errorf("failed to create Bedrock provider: %w", err)
		}
		return reg.Register(ctx, provider)
	}); err != nil && !errors.Is(err, ErrProviderNotConfigured) {
		log.Fatalf("Failed to register Bedrock provider: %v", err)
	}

	// OpenAI provider, skipped when no API key is configured.
	if err := container.Invoke(func(reg *registry.Registry, cfg *openai.Config) error {
		if cfg.APIKey == "" {
			return ErrProviderNotConfigured
		}
		provider, err := openai.NewProvider(*cfg)
		if err != nil {
			return fmt.Errorf("failed to create OpenAI provider: %w", err)
		}
		return reg.Register(ctx, provider)
	}); err != nil && !errors.Is(err, ErrProviderNotConfigured) {
		log.Fatalf("Failed to register OpenAI provider: %v", err)
	}
}

// runDemo streams the demo prompt through every registered provider,
// mirroring the output both to stdout and to connected UI clients.
// Taking the logger forces its initialization before anything logs.
func runDemo(logger *zap.Logger, server *ui.Server, reg *registry.Registry, cfg *config.Config) error {
	logger.Info("starting demo run",
		zap.String("ui_host", cfg.Server.Host),
		zap.Int("ui_port", cfg.Server.Port),
	)

	go func() {
		if err := server.Start(); err != nil {
			log.Fatalf("UI server failed: %v", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	ctx := observability.WithConvoID(context.Background(), observability.GenerateConvoID())

	uiSink := ui.NewStreamSink(server)
	sink := llm.SinkFunc(func(ctx context.Context, chunk llm.StreamChunk) error {
		if chunk.Done {
			fmt.Println("\n--- Response complete ---")
		} else {
			fmt.Print(chunk.Delta)
		}
		// UI delivery is best effort before the server is up.
		if err := uiSink.Push(ctx, chunk); err != nil && !errors.Is(err, ui.ErrClosed) {
			return err
		}
		return nil
	})

	names, err := reg.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list providers: %w", err)
	}

	for _, name := range names {
		provider, err := reg.Get(ctx, name)
		if err != nil {
			continue
		}
		models := provider.Models()
		if len(models) == 0 {
			continue
		}

		demonstrateModel(ctx, provider, models[0], cfg, sink)
	}

	if err := server.SendAppFinished(ctx); err != nil && !errors.Is(err, ui.ErrClosed) {
		return err
	}
	return nil
}

func demonstrateModel(ctx context.Context, provider llm.Provider, model string, cfg *config.Config, sink llm.Sink) {
	ctx = observability.WithProvider(ctx, provider.Name())
	ctx = observability.WithModel(ctx, model)
	ctx = observability.WithRequestID(ctx, observability.GenerateRequestID())
	logger := observability.FromContext(ctx)

	fmt.Printf("\nTesting %s model: %s\n", provider.Name(), model)

	opener, err := llm.NewLimitedOpener(provider, llm.LimiterConfig{
		RequestsPerMinute: cfg.LLM.RequestsPerMinute,
		Burst:             cfg.LLM.Burst,
	})
	if err != nil {
		logger.Error("invalid rate limiter config", zap.Error(err))
		return
	}

	client := llm.NewClient(opener, sink, llm.ClientConfig{
		MaxRetries: cfg.LLM.MaxRetries,
		RetryDelay: 0, // use default
	})

	convo := llm.NewConvo().User(demoPrompt)
	temperature := cfg.LLM.Temperature

	result, err := client.Complete(ctx, convo, llm.RequestOptions{
		Model:       model,
		Temperature: &temperature,
	})
	if err != nil {
		var apiErr *anthropic.APIError
		if errors.As(err, &apiErr) && apiErr.RateLimited() {
			if wait, ok := llm.Cooldown(apiErr.Headers); ok {
				if wait < 0 {
					wait = 0
				}
				logger.Warn("provider rate limited",
					zap.Duration("cooldown", wait))
			}
		}
		logger.Error("completion failed", zap.Error(err))
		return
	}

	logger.Info("completion succeeded",
		zap.Int("input_tokens", result.InputTokens),
		zap.Int("output_tokens", result.OutputTokens),
	)
	fmt.Printf("\nFull response: %s\n", result.Text)
}
