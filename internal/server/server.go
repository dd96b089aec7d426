package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/havenhub/apiserver/config"
	"github.com/havenhub/apiserver/internal/cache"
	"github.com/havenhub/apiserver/internal/db"
	"github.com/havenhub/apiserver/internal/handlers"
	"github.com/havenhub/apiserver/internal/mq"
	"github.com/havenhub/apiserver/internal/services"
	"github.com/havenhub/apiserver/internal/storage"
	"github.com/havenhub/apiserver/internal/store"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Server wraps the HTTP server and its backing connections.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	redis      *redis.Client
	bus        *mq.MQ
	logger     *zap.Logger
}

// New constructs a Server: opens the database, wires optional redis,
// broker, and object-storage backends, and registers all routes.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Server, error) {
	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	jwtSecret := strings.TrimSpace(cfg.Auth.JWTSecret)
	if jwtSecret == "" {
		_ = dbConn.Close()
		return nil, errors.New("JWT_SECRET is required")
	}

	userRepo := store.NewUserRepository(dbConn)
	agentRepo := store.NewAgentRepository(dbConn)
	tenantRepo := store.NewTenantRepository(dbConn)
	propertyRepo := store.NewPropertyRepository(dbConn)

	// Redis is optional: without it the listing cache degrades to
	// direct database reads.
	var redisClient *redis.Client
	var listingCache services.ListingCache = cache.NopCache{}
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unavailable, listing cache disabled", zap.Error(err))
			_ = redisClient.Close()
			redisClient = nil
		} else {
			listingCache = cache.NewListingCache(redisClient, logger)
		}
	}

	bus, err := openBus(ctx, cfg)
	if err != nil {
		logger.Warn("message bus unavailable, notifications disabled", zap.Error(err))
	}
	var notifier services.Notifier = services.NopNotifier{}
	if bus != nil {
		notifier = services.NewBusNotifier(bus, logger)
	}

	st, err := openStorage(ctx, cfg)
	if err != nil {
		logger.Warn("object storage unavailable, image uploads disabled", zap.Error(err))
		st = nil
	}

	userService := services.NewUserService(userRepo)
	agentService := services.NewAgentService(agentRepo)
	roleService := services.NewRoleService(dbConn, notifier, listingCache, logger)
	approvalService := services.NewApprovalService(propertyRepo, agentRepo, notifier, listingCache, logger)
	propertyService := services.NewPropertyService(propertyRepo, agentRepo, listingCache, st)
	tenantService := services.NewTenantService(tenantRepo, propertyRepo, notifier)
	consistencyService := services.NewConsistencyService(userRepo, agentRepo, tenantRepo)

	authMiddleware := handlers.RequireAuth(jwtSecret)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, userService, jwtSecret)
	})
	router.Route("/properties", func(r chi.Router) {
		handlers.PropertyRouter(r, propertyService, approvalService, userService, authMiddleware)
	})
	router.Route("/tenants", func(r chi.Router) {
		handlers.TenantRouter(r, tenantService, userService, authMiddleware)
	})
	router.Route("/admin", func(r chi.Router) {
		handlers.AdminRouter(r, roleService, approvalService, agentService, consistencyService, userService, propertyService, authMiddleware)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		redis:      redisClient,
		bus:        bus,
		logger:     logger,
	}, nil
}

// openBus selects the broker backend from config. An empty backend or
// missing connection settings disables notifications.
func openBus(ctx context.Context, cfg config.Config) (*mq.MQ, error) {
	switch cfg.MQBackend {
	case "rabbitmq":
		if strings.TrimSpace(cfg.RabbitMQ.URL) == "" {
			return nil, nil
		}
		client, err := mq.NewRabbitMQClient(cfg.RabbitMQ)
		if err != nil {
			return nil, err
		}
		return mq.New(client), nil
	case "pubsub":
		if strings.TrimSpace(cfg.PubSub.ProjectID) == "" {
			return nil, nil
		}
		client, err := mq.NewPubSubClient(ctx, cfg.PubSub)
		if err != nil {
			return nil, err
		}
		return mq.New(client), nil
	case "", "none":
		return nil, nil
	}
	return nil, fmt.Errorf("unknown mq backend %q", cfg.MQBackend)
}

// openStorage selects the object-storage backend from config.
func openStorage(ctx context.Context, cfg config.Config) (*storage.Storage, error) {
	switch cfg.StorageBackend {
	case "minio":
		if strings.TrimSpace(cfg.Minio.AccessKey) == "" {
			return nil, nil
		}
		client, err := storage.NewMinioClient(cfg.Minio)
		if err != nil {
			return nil, err
		}
		if err := client.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return storage.NewStorage(client), nil
	case "gcs":
		if strings.TrimSpace(cfg.GCS.Bucket) == "" {
			return nil, nil
		}
		client, err := storage.NewGCSClient(ctx, cfg.GCS)
		if err != nil {
			return nil, err
		}
		if err := client.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return storage.NewStorage(client), nil
	case "", "none":
		return nil, nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("server listening", zap.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown attempts a graceful shutdown.
func (s *Server) Shutdown() error {
	if s.db != nil {
		_ = s.db.Close()
	}
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if s.bus != nil {
		_ = s.bus.Close()
	}
	return s.httpServer.Close()
}
