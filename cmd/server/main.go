// Voice call session server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/ashureev/voicecall/internal/api"
	"github.com/ashureev/voicecall/internal/config"
	"github.com/ashureev/voicecall/internal/directory"
	"github.com/ashureev/voicecall/internal/guardrails"
	"github.com/ashureev/voicecall/internal/metrics"
	"github.com/ashureev/voicecall/internal/middleware"
	"github.com/ashureev/voicecall/internal/pipeline"
	"github.com/ashureev/voicecall/internal/rooms"
	"github.com/ashureev/voicecall/internal/session"
	"github.com/ashureev/voicecall/internal/store"
	"github.com/ashureev/voicecall/internal/tools"
	"github.com/ashureev/voicecall/internal/upstream"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const shutdownTimeout = 15 * time.Second

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped successfully")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Starting server", "port", cfg.Port, "version", version)

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()
	if err := repo.Ping(ctx); err != nil {
		return err
	}
	slog.Info("Database connected", "path", cfg.DBPath)

	m := metrics.New("voicecall")

	var (
		resolver  directory.Resolver
		dirHealth api.Pinger
	)
	if cfg.Mongo.Enabled() {
		mongo, err := directory.ConnectMongo(ctx, directory.MongoConfig{
			URI:                 cfg.Mongo.URI,
			Database:            cfg.Mongo.Database,
			UsersCollection:     cfg.Mongo.UsersCollection,
			AnalyticsCollection: cfg.Mongo.AnalyticsCollection,
			Timeout:             cfg.Mongo.Timeout,
		})
		if err != nil {
			return err
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Mongo.Timeout)
			defer cancel()
			if closeErr := mongo.Close(closeCtx); closeErr != nil {
				slog.Error("Failed to close directory client", "error", closeErr)
			}
		}()
		if err := mongo.Ping(ctx); err != nil {
			slog.Warn("User directory unreachable at startup", "error", err)
		}
		resolver = directory.New(mongo.Users(), mongo.Analytics(),
			directory.WithMetrics(m), directory.WithLogger(logger))
		dirHealth = mongo
		slog.Info("User directory configured", "database", cfg.Mongo.Database)
	} else {
		slog.Info("User directory disabled (MONGODB_URI not set)")
	}

	dispatcher, err := tools.NewDispatcher(tools.Deps{
		Delivery:  upstream.NewDeliveryClient(cfg.Upstream.DeliveryURL, cfg.Upstream.Timeout),
		Directory: resolver,
	}, tools.WithMetrics(m), tools.WithLogger(logger))
	if err != nil {
		return err
	}

	rails := guardrails.NewStore()
	if cfg.Session.GuardrailsFile != "" {
		entries, err := guardrails.LoadFile(cfg.Session.GuardrailsFile)
		if err != nil {
			return err
		}
		n, err := rails.ReplaceAll(entries)
		if err != nil {
			return err
		}
		m.SetGuardrails(n)
		slog.Info("Guardrails seeded", "file", cfg.Session.GuardrailsFile, "count", n)
	}

	var basePrompt string
	if cfg.Session.SystemPromptFile != "" {
		data, err := os.ReadFile(cfg.Session.SystemPromptFile)
		if err != nil {
			return err
		}
		basePrompt = string(data)
	}

	sessions := session.NewManager(session.Deps{
		Rooms: rooms.NewClient(cfg.Daily.APIKey,
			rooms.WithBaseURL(cfg.Daily.BaseURL), rooms.WithTTL(cfg.Daily.RoomTTL)),
		Pipeline:   pipeline.NewDialer(cfg.Pipeline.URL, logger),
		Tools:      dispatcher,
		Guardrails: rails,
		Summarizer: upstream.NewSummarizerClient(cfg.Upstream.SummarizerURL, cfg.Upstream.Timeout),
		Repo:       repo,
		Metrics:    m,
		Logger:     logger,
	}, session.Options{
		AgentName:      cfg.Session.AgentName,
		BotName:        cfg.Session.BotName,
		BasePrompt:     basePrompt,
		SettleDelay:    cfg.Session.SettleDelay,
		ForwardTimeout: cfg.Upstream.Timeout,
		Timezone:       cfg.Session.Timezone,
		Model: pipeline.ModelSettings{
			ModelID:     cfg.Pipeline.ModelID,
			VoiceID:     cfg.Pipeline.VoiceID,
			Temperature: cfg.Pipeline.Temperature,
			ProjectID:   cfg.Pipeline.ProjectID,
			Location:    cfg.Pipeline.Location,
		},
	})

	startLimiter := middleware.NewRateLimiter(ctx, cfg.RateLimit.StartPerMinute, time.Minute)

	// Initialize handlers.
	healthHandler := api.NewHealthHandler(repo, dirHealth, 5*time.Second)
	guardrailHandler := api.NewGuardrailHandler(rails, m)
	sessionHandler := api.NewSessionHandler(sessions, repo, startLimiter.Middleware)
	toolHandler := api.NewToolHandler(dispatcher)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))

	healthHandler.RegisterHealth(r)
	guardrailHandler.RegisterRoutes(r)
	sessionHandler.RegisterRoutes(r)
	toolHandler.RegisterRoutes(r)
	r.Handle("/mcp", tools.NewMCPHandler(tools.NewMCPServer(dispatcher, version)))
	r.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      0, // 0 = no timeout for streamable MCP responses
		IdleTimeout:       120 * time.Second,
	}

	store.StartRetentionWorker(ctx, repo, cfg.CallRetention, time.Hour)
	slog.Info("Retention worker started", "call_retention", cfg.CallRetention)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		stop()
		slog.Info("Shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		httpErr := srv.Shutdown(shutdownCtx)
		if httpErr != nil {
			slog.Error("Server forced to shutdown", "error", httpErr)
		}
		sessErr := sessions.Shutdown(shutdownCtx)
		if sessErr != nil {
			slog.Error("Sessions did not finish before shutdown deadline", "error", sessErr)
		}
		return errors.Join(httpErr, sessErr)
	})

	return g.Wait()
}
