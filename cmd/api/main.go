// Package main is the entry point for the API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/capitalize-ai/growth-advisor/internal/advisor"
	"github.com/capitalize-ai/growth-advisor/internal/config"
	"github.com/capitalize-ai/growth-advisor/internal/crm"
	"github.com/capitalize-ai/growth-advisor/internal/events"
	"github.com/capitalize-ai/growth-advisor/internal/growth"
	"github.com/capitalize-ai/growth-advisor/internal/handler"
	"github.com/capitalize-ai/growth-advisor/internal/llm"
	"github.com/capitalize-ai/growth-advisor/internal/middleware"
	"github.com/capitalize-ai/growth-advisor/internal/model"
	"github.com/capitalize-ai/growth-advisor/internal/ratelimit"
	"github.com/capitalize-ai/growth-advisor/internal/service"
	"github.com/capitalize-ai/growth-advisor/internal/store"
	"github.com/capitalize-ai/growth-advisor/pkg/logger"
	"github.com/capitalize-ai/growth-advisor/pkg/tracing"
)

func main() {
	cfg := config.Load()

	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting API server")

	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "growth-advisor", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	planStore, err := store.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatal("failed to open plan store", zap.String("path", cfg.DatabasePath), zap.Error(err))
	}
	defer planStore.Close()

	// Plan events are optional; without NATS the service runs with a no-op stream.
	var (
		natsClient *events.Client
		planEvents events.Stream = events.Nop{}
	)
	if cfg.NATSURL != "" {
		natsClient, err = events.Connect(ctx, events.Config{
			URL:           cfg.NATSURL,
			Token:         cfg.NATSToken,
			MaxReconnects: cfg.NATSMaxReconnects,
			ReconnectWait: cfg.NATSReconnectWait,
			CAFile:        cfg.NATSCAFile,
			CertFile:      cfg.NATSCertFile,
			KeyFile:       cfg.NATSKeyFile,
		}, log)
		if err != nil {
			log.Fatal("failed to connect plan events", zap.Error(err))
		}
		defer natsClient.Close()
		planEvents = natsClient.Stream()
	} else {
		log.Info("NATS_URL not set, plan events disabled")
	}

	var llmClient llm.Client
	if key := cfg.LLMAPIKey(); key != "" {
		inner, err := llm.NewClient(llm.Provider(strings.ToLower(cfg.LLMProvider)), key)
		if err != nil {
			log.Warn("failed to create LLM client, AI features disabled", zap.Error(err))
		} else {
			llmClient = llm.NewRetryingClient(inner, llm.RetryPolicy{
				MaxAttempts: cfg.LLMMaxAttempts,
				BaseDelay:   cfg.LLMRetryBaseDelay,
			}, log)
		}
	} else {
		log.Warn("no LLM API key configured, AI features disabled")
	}

	growthModel := growth.Default()

	fetcher := crm.NewFetcher(crm.Config{
		BaseURL:  cfg.HubSpotAPIURL,
		PageSize: cfg.HubSpotPageSize,
		MaxPages: cfg.HubSpotMaxPages,
	}, log)
	oauth := crm.NewOAuth(crm.OAuthConfig{
		ClientID:     cfg.HubSpotClientID,
		ClientSecret: cfg.HubSpotClientSecret,
		AuthURL:      cfg.HubSpotAuthURL,
		APIURL:       cfg.HubSpotAPIURL,
		RedirectURL:  cfg.OAuthCallbackURL(),
		Scopes:       cfg.HubSpotScopes,
	})

	// Services
	var planAdvisor service.Advisor = unavailableAdvisor{}
	if llmClient != nil {
		planAdvisor = advisor.NewService(llmClient, growthModel, advisor.Options{
			Model:       cfg.LLMModel,
			MaxTokens:   cfg.LLMMaxTokens,
			Temperature: cfg.LLMTemperature,
		}, log)
	}
	planSvc := service.NewPlanService(planStore, planAdvisor, planEvents, log)
	contactSvc := service.NewContactService(fetcher, llmClient, cfg.HubSpotAPIKey, log)

	// Handlers
	var eventsConn handler.Connection
	if natsClient != nil {
		eventsConn = natsClient
	}
	healthHandler := handler.NewHealthHandler(planStore, eventsConn)
	planHandler := handler.NewPlanHandler(planSvc)
	contactHandler := handler.NewContactHandler(contactSvc)
	oauthHandler := handler.NewOAuthHandler(oauth, cfg.AppURL, cfg.CookieSecure)
	completionHandler := handler.NewCompletionHandler(llmClient)
	stageHandler := handler.NewStageHandler(growthModel)

	completionLimiter := ratelimit.New(cfg.CompletionRateLimitRequests, cfg.CompletionRateLimitWindow)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.CORSOrigins))

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/auth/hubspot", func(r chi.Router) {
		r.Get("/login", oauthHandler.Login)
		r.Get("/callback", oauthHandler.Callback)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Use(middleware.UserRateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		r.Get("/contacts", contactHandler.List)
		r.Post("/contacts/analyze", contactHandler.Analyze)

		r.Get("/completions", completionHandler.Status)
		r.With(middleware.CompletionLimit(completionLimiter)).Post("/completions", completionHandler.Complete)

		r.Get("/stages", stageHandler.List)
		r.Get("/stages/current", stageHandler.Current)

		r.Route("/plans", func(r chi.Router) {
			r.Post("/", planHandler.Create)
			r.Get("/", planHandler.List)
			r.Post("/generate", planHandler.Generate)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", planHandler.Get)
				r.Patch("/", planHandler.Update)
				r.Delete("/", planHandler.Delete)
				r.Post("/complete", planHandler.Complete)
				r.Post("/steps/{index}/complete", planHandler.CompleteStep)
				r.Get("/events", planHandler.Events)
				r.Get("/events/stream", planHandler.Stream)
			})
		})
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}

func newLogger(level string) (*logger.Logger, error) {
	if os.Getenv("ENV") == "development" {
		return logger.NewDevelopment()
	}
	return logger.New(level)
}

// unavailableAdvisor answers plan generation when no LLM is configured.
type unavailableAdvisor struct{}

func (unavailableAdvisor) ActionableSteps(context.Context, model.GeneratePlanRequest) (*model.Advice, error) {
	return nil, llm.ErrNotConfigured
}
