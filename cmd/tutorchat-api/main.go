package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"

	httpadapter "github.com/PabloGalante/tutorchat/internal/adapters/http"
	"github.com/PabloGalante/tutorchat/internal/adapters/llm"
	ratememory "github.com/PabloGalante/tutorchat/internal/adapters/ratelimit/memory"
	rateredis "github.com/PabloGalante/tutorchat/internal/adapters/ratelimit/redis"
	"github.com/PabloGalante/tutorchat/internal/app/access"
	"github.com/PabloGalante/tutorchat/internal/app/relay"
	"github.com/PabloGalante/tutorchat/internal/config"
	"github.com/PabloGalante/tutorchat/internal/domain"
	"github.com/PabloGalante/tutorchat/internal/observability"
)

func main() {
	if err := run(); err != nil {
		observability.Logger().Error("tutorchat-api stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	flags := pflag.NewFlagSet("tutorchat-api", pflag.ExitOnError)
	cfgPath := flags.String("config", "", "path to a YAML config file")
	port := flags.String("port", "", "listen port (overrides server.port)")
	logLevel := flags.String("log-level", "", "debug|info|warn|error (overrides log.level)")
	mockLLM := flags.Bool("mock-llm", false, "answer locally instead of calling the provider")
	_ = flags.Parse(os.Args[1:])

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return err
	}
	if *port != "" {
		cfg.Server.Port = *port
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *mockLLM {
		cfg.LLM.Provider = "mock"
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	observability.SetLevel(cfg.Log.Level)
	log := observability.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	llmClient, model, err := newLLMClient(ctx, cfg.LLM)
	if err != nil {
		return err
	}
	log.Info("llm client ready", "provider", cfg.LLM.Provider, "model", model)

	persona, err := relay.LoadPersona(cfg.Persona.File)
	if err != nil {
		return err
	}

	svc := relay.NewService(llmClient, persona, relay.Options{
		MaxMessageLength: cfg.Relay.MaxMessageLength,
		HistoryWindow:    cfg.Relay.HistoryWindow,
		Model:            model,
	})

	counter, closeCounter, err := newCounter(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeCounter()

	mode, err := access.ParseMatchMode(cfg.Access.Match)
	if err != nil {
		return err
	}
	if len(cfg.Access.AllowedOrigins) == 0 {
		log.Warn("no allowed origins configured, browser requests will be refused")
	}
	policy := access.NewPolicy(
		access.NewOriginMatcher(cfg.Access.AllowedOrigins, mode),
		access.NewLimiter(counter, cfg.Access.RateLimit.Max, cfg.Access.RateLimit.Window),
		cfg.Access.TrustProxy,
	)

	handler := httpadapter.NewServer(svc, httpadapter.Options{
		Policy:    policy,
		BodyLimit: cfg.Server.BodyLimitBytes,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           handler,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("tutorchat api listening", "addr", srv.Addr, "origins", cfg.Access.AllowedOrigins)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), gracePeriod(cfg.Server.ShutdownGrace))
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

func newLLMClient(ctx context.Context, c config.LLMConfig) (domain.LLMClient, string, error) {
	if c.Provider == "mock" {
		observability.Logger().Info("using mock llm client")
		return llm.NewMockLLM(), "mock", nil
	}

	client, err := llm.NewGeminiClient(ctx, llm.GeminiConfig{
		Backend:  c.Provider,
		APIKey:   c.APIKey,
		Project:  c.Project,
		Location: c.Location,
		Model:    c.Model,
		Params: llm.GenerationParams{
			Temperature:     c.Temperature,
			TopK:            c.TopK,
			TopP:            c.TopP,
			MaxOutputTokens: c.MaxOutputTokens,
		},
		Timeout: c.Timeout,
	})
	if err != nil {
		return nil, "", fmt.Errorf("error initializing gemini client: %w", err)
	}
	return client, client.Model(), nil
}

// newCounter picks the rate counter backend. Redis lets several relay
// instances share one budget per caller.
func newCounter(ctx context.Context, cfg *config.Config) (domain.Counter, func(), error) {
	if cfg.Access.RateLimit.Backend != "redis" {
		observability.Logger().Info("using in-memory rate counter")
		return ratememory.NewCounter(), func() {}, nil
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connect redis %s: %w", cfg.Redis.Addr, err)
	}

	observability.Logger().Info("using redis rate counter", "addr", cfg.Redis.Addr)
	counter := rateredis.NewCounter(client)
	return counter, func() { _ = counter.Close() }, nil
}

func gracePeriod(d time.Duration) time.Duration {
	if d <= 0 {
		return 10 * time.Second
	}
	return d
}
