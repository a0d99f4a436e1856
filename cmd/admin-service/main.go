package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/print-admin/internal/auth"
	"github.com/vasiliy-maslov/print-admin/internal/config"
	"github.com/vasiliy-maslov/print-admin/internal/db"
	"github.com/vasiliy-maslov/print-admin/internal/docstore"
	"github.com/vasiliy-maslov/print-admin/internal/events"
	"github.com/vasiliy-maslov/print-admin/internal/handler"
	"github.com/vasiliy-maslov/print-admin/internal/order"
	"github.com/vasiliy-maslov/print-admin/internal/transport"
	"github.com/vasiliy-maslov/print-admin/internal/user"
)

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	setupLogger(cfg)
	log.Info().Msg("Admin service starting...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pg, err := db.New(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pg.Close()

	if err := db.ApplyMigrations(pg.Pool, cfg.Postgres.MigrationsPath); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply migrations")
	}

	// nil interface, а не typed nil: иначе резолвер решит, что стор есть
	var docs docstore.Store
	var docsPing handler.PingFunc
	if cfg.DocStore.Enabled {
		client, err := newDocStore(ctx, cfg.DocStore)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to configure document store")
		}
		docs = client
		collection := cfg.DocStore.Collection
		docsPing = func(ctx context.Context) error { return client.Ping(ctx, collection) }
		log.Info().Str("collection", collection).Msg("Document store enabled")
	} else {
		log.Warn().Msg("Document store disabled, serving relational data only")
	}

	reporters := order.MultiReporter{order.LogReporter{}}
	var producer *events.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		producer = events.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, 256)
		producer.Start()
		reporters = append(reporters, events.NewKafkaReporter(producer, cfg.App.Name))
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("Status events enabled")
	}

	verifier, closeVerifier := newVerifier(cfg, pg)
	defer closeVerifier()

	orderRepo := order.NewRepository(pg.Pool)
	userRepo := user.NewRepository(pg.Pool)

	resolver := order.NewResolver(orderRepo, docs, userRepo, order.WithCollection(cfg.DocStore.Collection))
	propagator := order.NewPropagator(orderRepo, docs,
		order.WithMirrorCollection(cfg.DocStore.Collection),
		order.WithMirrorTimeout(cfg.DocStore.MirrorTimeout),
		order.WithReporter(reporters),
	)
	svc := order.NewService(resolver, propagator, orderRepo, userRepo)

	router := transport.NewRouter(verifier, cfg.App.RequestTimeout,
		handler.NewOrderHandler(svc),
		handler.NewAdminHandler(docsPing),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  cfg.App.ReadTimeout,
		WriteTimeout: cfg.App.WriteTimeout,
		IdleTimeout:  cfg.App.IdleTimeout,
	}

	go func() {
		log.Info().Str("port", cfg.App.Port).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Shutdown failed")
	}
	if producer != nil {
		if err := producer.Close(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Failed to flush status events")
		}
	}
	log.Info().Msg("Server stopped")
}

func setupLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Log.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	log.Logger = log.With().Str("service", cfg.App.Name).Logger()
}

func newDocStore(ctx context.Context, cfg config.DocStoreConfig) (*docstore.Client, error) {
	sa, err := docstore.LoadServiceAccount(cfg.CredentialsPath)
	if err != nil {
		return nil, err
	}

	// токен живёт дольше запроса, поэтому контекст процесса
	tokens, err := docstore.NewTokenProvider(context.WithoutCancel(ctx), sa)
	if err != nil {
		return nil, err
	}

	return docstore.NewClient(docstore.Options{
		BaseURL:   cfg.BaseURL,
		ProjectID: sa.ProjectID,
		Database:  cfg.Database,
		Timeout:   cfg.Timeout,
		PageSize:  cfg.PageSize,
		Tokens:    tokens,
	})
}

func newVerifier(cfg *config.Config, pg *db.Postgres) (auth.Verifier, func()) {
	if cfg.Session.Backend == config.SessionBackendRedis {
		rdb := auth.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		log.Info().Str("addr", cfg.Redis.Addr).Msg("Using Redis session backend")
		return auth.NewRedisVerifier(rdb), func() {
			if err := rdb.Close(); err != nil {
				log.Error().Err(err).Msg("Failed to close Redis client")
			}
		}
	}
	return auth.NewPostgresVerifier(pg.Pool), func() {}
}
