package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/makerlink/sourcing-bfa-go/internal/config"
	"github.com/makerlink/sourcing-bfa-go/internal/domain"
	"github.com/makerlink/sourcing-bfa-go/internal/handler"
	"github.com/makerlink/sourcing-bfa-go/internal/infra/cache"
	"github.com/makerlink/sourcing-bfa-go/internal/infra/draft"
	"github.com/makerlink/sourcing-bfa-go/internal/infra/observability"
	"github.com/makerlink/sourcing-bfa-go/internal/infra/openai"
	"github.com/makerlink/sourcing-bfa-go/internal/infra/resend"
	"github.com/makerlink/sourcing-bfa-go/internal/infra/resilience"
	"github.com/makerlink/sourcing-bfa-go/internal/infra/supabase"
	"github.com/makerlink/sourcing-bfa-go/internal/port"
	"github.com/makerlink/sourcing-bfa-go/internal/service"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = godotenv.Load()

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Duration("draft_ttl", cfg.DraftTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Bool("dev_auth", cfg.DevAuth),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "sourcing-bfa")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Caches ---
	roleCache := cache.New[domain.Role](cfg.CacheTTL)
	reportCache := cache.New[*domain.CompletenessReport](cfg.CacheTTL)

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	supabaseCB := resilience.NewCircuitBreaker("supabase")
	openaiCB := resilience.NewCircuitBreaker("openai")

	// --- Clients ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	aiClient := &http.Client{Timeout: 30 * time.Second} // LLM calls run longer

	if cfg.SupabaseURL == "" {
		logger.Fatal("SUPABASE_URL is required")
	}
	supabaseClient := supabase.NewClient(
		httpClient,
		cfg.SupabaseURL,
		cfg.SupabaseAnonKey,
		cfg.SupabaseServiceKey,
		cfg.StorageBucket,
		supabaseCB,
		resilienceCfg,
		logger,
	)

	openaiClient := openai.NewClient(aiClient, cfg.OpenAIURL, cfg.OpenAIAPIKey, cfg.OpenAIModel, openaiCB, resilienceCfg, logger)
	mailer := resend.NewClient(httpClient, cfg.ResendURL, cfg.ResendAPIKey, cfg.EmailFrom, cfg.StaffInbox, logger)

	// --- Draft store ---
	var draftStore port.DraftStore
	if cfg.UseSupabaseDraft {
		draftStore = supabaseClient
	} else {
		logger.Info("using in-memory wizard drafts")
		draftStore = draft.NewMemoryStore(cfg.DraftTTL, logger)
	}

	// --- Identity provider ---
	var identity port.IdentityProvider = supabaseClient
	if cfg.DevAuth {
		logger.Warn("DEV_AUTH enabled: GoTrue bypassed, accounts held locally")
		identity = service.NewDevIdentity(supabaseClient, cfg.JWTSecret, logger)
	}

	// --- Services ---
	validator := service.NewFormValidator()
	wizardSvc := service.NewWizardService(draftStore, supabaseClient, validator, logger)
	submissionSvc := service.NewSubmissionService(
		supabaseClient, supabaseClient, supabaseClient, supabaseClient,
		identity, supabaseClient, mailer, validator, metrics, logger,
	)
	rfiSvc := service.NewRFIService(supabaseClient, supabaseClient, supabaseClient, metrics, logger)
	messageSvc := service.NewMessageService(supabaseClient, supabaseClient, supabaseClient, logger)
	completenessSvc := service.NewCompletenessService(openaiClient, reportCache, metrics, logger)
	adminSvc := service.NewAdminService(supabaseClient, supabaseClient, supabaseClient, metrics, logger)
	authSvc := service.NewAuthService(identity, supabaseClient, roleCache, cfg.JWTSecret, metrics, logger)

	// --- Router ---
	router := handler.NewRouter(handler.Services{
		Wizard:       wizardSvc,
		Submission:   submissionSvc,
		RFI:          rfiSvc,
		Message:      messageSvc,
		Completeness: completenessSvc,
		Admin:        adminSvc,
		Auth:         authSvc,
	}, metrics, supabaseClient.Ping, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
