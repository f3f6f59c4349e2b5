package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/Anupam-Kumar2505/djsce-resources/config"
	"github.com/Anupam-Kumar2505/djsce-resources/internal/db"
	"github.com/Anupam-Kumar2505/djsce-resources/internal/handlers"
	"github.com/Anupam-Kumar2505/djsce-resources/internal/logging"
	"github.com/Anupam-Kumar2505/djsce-resources/internal/media"
	"github.com/Anupam-Kumar2505/djsce-resources/internal/mq"
	"github.com/Anupam-Kumar2505/djsce-resources/internal/services"
	"github.com/Anupam-Kumar2505/djsce-resources/internal/storage"
	"github.com/Anupam-Kumar2505/djsce-resources/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

const (
	ensureBucketTimeout = 10 * time.Second

	minRequestTimeout = 60 * time.Second
	timeoutHeadroom   = 30 * time.Second
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	queue      *mq.MQ
}

// New constructs a Server with its full dependency graph: database, media
// host backend, optional event broker, services, and routes.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	log := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	backend, err := newStorageBackend(ctx, cfg.Storage)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	gateway := media.NewGateway(backend)
	bucketCtx, cancel := context.WithTimeout(ctx, ensureBucketTimeout)
	defer cancel()
	if err := gateway.EnsureBucket(bucketCtx); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("ensure bucket: %w", err)
	}

	queue, events, err := newEvents(ctx, cfg.MQ, log)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	userRepo := store.NewUserRepository(dbConn)
	fileRepo := store.NewFileRepository(dbConn)

	userService := services.NewUserService(userRepo)
	resourceService := services.NewResourceService(fileRepo)
	uploadService := services.NewUploadService(
		fileRepo, gateway, events, log,
		cfg.Upload.MaxFiles, cfg.Upload.BatchTimeout,
	)
	moderationService := services.NewModerationService(fileRepo, gateway, events, log)

	authMiddleware := handlers.RequireAuth(cfg.Auth.JWTSecret)

	reqTimeout := requestTimeout(cfg.Upload.BatchTimeout)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(reqTimeout),
		cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORS.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type", "Authorization", "Cookie"},
			AllowCredentials: true,
		}),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Get("/", handlers.Root)
	handlers.YearsRouter(router, resourceService)
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, userService, cfg.Auth)
	})
	router.Route("/api", func(r chi.Router) {
		handlers.FilesRouter(r, resourceService, uploadService, moderationService, userService, authMiddleware, cfg.Upload)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: reqTimeout + timeoutHeadroom,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		queue:      queue,
	}, nil
}

// requestTimeout sizes the per-request middleware timeout so a configured
// upload batch window is never cut short by the outer HTTP layer.
func requestTimeout(batchTimeout time.Duration) time.Duration {
	timeout := batchTimeout + timeoutHeadroom
	if timeout < minRequestTimeout {
		return minRequestTimeout
	}
	return timeout
}

func newStorageBackend(ctx context.Context, cfg config.StorageConfig) (storage.ObjectStorage, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "minio":
		return storage.NewMinioClient(cfg.Minio)
	case "gcs":
		return storage.NewGCSClient(ctx, cfg.GCS)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

func newEvents(ctx context.Context, cfg config.MQConfig, log logging.Logger) (*mq.MQ, services.Events, error) {
	var backend mq.Backend
	var err error
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "none":
		return nil, services.NoopEvents{}, nil
	case "rabbitmq":
		backend, err = mq.NewRabbitMQClient(cfg.RabbitMQ)
	case "pubsub":
		backend, err = mq.NewPubSubClient(ctx, cfg.PubSub)
	default:
		return nil, nil, fmt.Errorf("unknown mq backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, nil, err
	}

	queue := mq.New(backend)
	return queue, services.NewMQEvents(queue, cfg.Channel, log), nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown attempts a graceful shutdown.
func (s *Server) Shutdown() error {
	if s.queue != nil {
		_ = s.queue.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return s.httpServer.Close()
}
