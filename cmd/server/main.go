package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"google.golang.org/api/iterator"

	sharedauth "github.com/M-STRONG/Evently-app/pkg/auth"
	"github.com/M-STRONG/Evently-app/pkg/cache"
	"github.com/M-STRONG/Evently-app/pkg/events"
	"github.com/M-STRONG/Evently-app/pkg/logging"
	sharedserver "github.com/M-STRONG/Evently-app/pkg/server"

	"github.com/M-STRONG/Evently-app/internal/config"
	"github.com/M-STRONG/Evently-app/internal/database"
	"github.com/M-STRONG/Evently-app/internal/httpapi"
	"github.com/M-STRONG/Evently-app/internal/metrics"
	"github.com/M-STRONG/Evently-app/internal/revalidate"
	"github.com/M-STRONG/Evently-app/internal/user"
)

const serviceName = "user-service"

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Errorf("config error: %w", err))
	}

	logger := logging.NewLogger(serviceName, logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	slog.SetDefault(logger)

	connector := database.NewConnector(
		database.MongoConfig{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database},
		database.FirestoreConfig{
			ProjectID:    cfg.Firestore.ProjectID,
			Database:     cfg.Firestore.Database,
			EmulatorHost: cfg.Firestore.EmulatorHost,
		},
		logger,
	)
	hooks := []sharedserver.Hook{connector.Close}

	checks := map[string]sharedserver.Check{}

	repo, err := newRepository(ctx, cfg, connector, checks)
	if err != nil {
		panic(fmt.Errorf("repository init: %w", err))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.New(registry)

	opts := user.Options{
		Revalidator: revalidate.Noop{},
		Logger:      logger,
		Metrics:     recorder,
	}
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		hooks = append(hooks, func(context.Context) error { return rdb.Close() })
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }

		publisher := events.NewPublisher(rdb)
		opts.Publisher = publisher
		opts.Revalidator = revalidate.NewStreamRevalidator(publisher)
		if cfg.UserCacheTTL > 0 {
			repo = user.NewCachedRepository(repo, cache.NewViewCache[user.User](rdb, "users", cfg.UserCacheTTL, logger))
		}
	} else {
		logger.Warn("REDIS_ADDR not set; user events, revalidation and caching are disabled")
	}

	userService, err := user.NewService(repo, opts)
	if err != nil {
		panic(fmt.Errorf("user service: %w", err))
	}

	verifier, err := sharedauth.NewVerifier(sharedauth.Config{
		Mode:     sharedauth.Mode(cfg.Auth.Mode),
		JWKSURL:  cfg.Auth.JWKSURL,
		Audience: cfg.Auth.Audience,
		Issuer:   cfg.Auth.Issuer,
		Logger:   logger,
	})
	if err != nil {
		panic(fmt.Errorf("auth verifier error: %w", err))
	}

	var webhookVerifier httpapi.WebhookVerifier
	if cfg.Auth.WebhookSecret != "" {
		webhookVerifier, err = httpapi.NewSvixVerifier(cfg.Auth.WebhookSecret)
		if err != nil {
			panic(fmt.Errorf("clerk webhook verifier: %w", err))
		}
	} else {
		logger.Warn("CLERK_WEBHOOK_SECRET not set; /webhooks/clerk is disabled")
	}

	router := sharedserver.NewRouter(serviceName, logger, func(r chi.Router) {
		r.Get("/readyz", sharedserver.ReadinessHandler(serviceName, 3*time.Second, checks))
		r.Method(http.MethodGet, "/metrics", metrics.Handler(registry))

		r.Group(func(r chi.Router) {
			r.Use(recorder.Middleware)

			if webhookVerifier != nil {
				httpapi.RegisterWebhookRoutes(r, userService, webhookVerifier, logger)
			}

			r.Group(func(r chi.Router) {
				r.Use(sharedauth.Middleware(verifier))
				httpapi.RegisterRoutes(r, userService, logger)
			})
		})
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	if err := sharedserver.Run(ctx, srv, logger, hooks...); err != nil && !errors.Is(err, http.ErrServerClosed) {
		panic(err)
	}
}

func newRepository(ctx context.Context, cfg config.Config, connector *database.Connector, checks map[string]sharedserver.Check) (user.Repository, error) {
	switch cfg.DataStore {
	case config.DataStoreMemory:
		return user.NewMemoryRepository(nil), nil
	case config.DataStoreMongo:
		db, err := connector.Mongo(ctx)
		if err != nil {
			return nil, err
		}
		if err := user.EnsureMongoIndexes(ctx, db); err != nil {
			return nil, err
		}
		checks["mongo"] = func(ctx context.Context) error { return db.Client().Ping(ctx, nil) }
		return user.NewMongoRepository(db), nil
	case config.DataStoreFirestore:
		client, err := connector.Firestore(ctx)
		if err != nil {
			return nil, err
		}
		checks["firestore"] = func(ctx context.Context) error {
			_, err := client.Collections(ctx).Next()
			if err != nil && !errors.Is(err, iterator.Done) {
				return err
			}
			return nil
		}
		return user.NewFirestoreRepository(client, nil), nil
	default:
		return nil, fmt.Errorf("unsupported datastore %q", cfg.DataStore)
	}
}
