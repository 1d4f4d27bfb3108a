package app

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"time"

	"student-registry/internal/config"
	"student-registry/internal/db"
	"student-registry/internal/health"
	"student-registry/internal/httputil"
	"student-registry/internal/kafka"
	"student-registry/internal/logger"
	"student-registry/internal/messaging"
	"student-registry/internal/metrics"
	"student-registry/internal/middleware"
	"student-registry/internal/student"

	"github.com/go-chi/chi/v5"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
)

type App struct {
	config    *config.Config
	router    chi.Router
	server    *http.Server
	logger    *slog.Logger
	database  *bun.DB
	publisher student.Publisher
}

func New() *App {
	slogLogger := logger.NewWithServiceContext(ServiceName, Version)

	// Set as default logger so slog.Info() uses JSON format
	slog.SetDefault(slogLogger)

	slogLogger.Info("initializing application")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	slogLogger.Info("config loaded", "env", cfg.Env)

	app := &App{
		config: cfg,
		router: chi.NewRouter(),
		logger: slogLogger,
	}

	app.database = db.New(cfg.Database)

	ctx := context.Background()
	if err := db.RunMigrations(ctx, app.database, (*student.Student)(nil)); err != nil {
		log.Fatal("failed to run migrations:", err)
	}

	meter := otel.Meter(ServiceName)
	m, err := metrics.New(meter)
	if err != nil {
		slogLogger.Warn("failed to initialize metrics", "error", err)
		m = metrics.NewMock()
	} else if err := m.Database.RegisterDB(app.database.DB, meter); err != nil {
		slogLogger.Warn("failed to register database metrics", "error", err)
	}

	// Apply CORS middleware globally
	app.router.Use(middleware.CORS(cfg.Server.CORSOrigins))

	// Health endpoints live outside /api
	healthHandler := health.NewHandler()
	healthHandler.RegisterRoutes(app.router)

	app.publisher = newPublisher(cfg.Events, slogLogger)

	studentRepo := student.NewRepository(app.database, m)
	studentService := student.NewService(studentRepo, app.publisher, slogLogger)
	studentHandler := student.NewHandler(studentService, slogLogger, m)

	app.router.Route("/api", func(r chi.Router) {
		studentHandler.RegisterRoutes(r)
	})

	app.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httputil.RespondWithError(w, http.StatusNotFound, "resource not found")
	})

	slogLogger.Info("application initialized successfully")

	return app
}

// newPublisher picks the event broker from config. A broker that fails to
// connect degrades to no events rather than refusing to start.
func newPublisher(cfg config.EventsConfig, logger *slog.Logger) student.Publisher {
	switch cfg.Broker {
	case "nats":
		producer, err := messaging.NewProducer(cfg.NATS.URL, cfg.NATS.Subject, logger)
		if err != nil {
			logger.Warn("failed to initialize NATS producer", "error", err)
			return nil
		}
		return producer
	case "kafka":
		producer, err := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		if err != nil {
			logger.Warn("failed to initialize kafka producer", "error", err)
			return nil
		}
		return producer
	default:
		logger.Info("event publishing disabled", "broker", cfg.Broker)
		return nil
	}
}

func (a *App) Run() error {
	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%s", a.config.Server.Port),
		Handler:      a.router,
		ReadTimeout:  time.Duration(a.config.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(a.config.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(a.config.Server.IdleTimeout) * time.Second,
	}

	a.logger.Info("server starting", "port", a.config.Server.Port)
	return a.server.ListenAndServe()
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down server")

	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("failed to close event publisher", "error", err)
		}
	}
	db.Close(a.database)

	return a.server.Shutdown(ctx)
}
