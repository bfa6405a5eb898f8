package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"go-outbreak/cache"
	"go-outbreak/config"
	"go-outbreak/cronjobs"
	"go-outbreak/db"
	"go-outbreak/engine"
	"go-outbreak/events"
	"go-outbreak/forecast"
	"go-outbreak/geocode"
	"go-outbreak/handlers"
	"go-outbreak/intake"
	"go-outbreak/logger"
	"go-outbreak/nlp"
	"go-outbreak/routes"
	"go-outbreak/summarization"
)

// reportStore is what every store backend provides.
type reportStore interface {
	engine.Store
	forecast.AggregateSource
	intake.ReportWriter
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logr, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "go-outbreak")
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logr.Sync()

	if err := run(cfg, logr); err != nil {
		logr.Fatal("Service stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, logr)
	if err != nil {
		return err
	}
	defer closeStore()

	var (
		kv        cache.KVStore
		publisher engine.Publisher = events.NopPublisher{}
		notifier  intake.Notifier
		rdb       *redis.Client
	)
	if cfg.Redis.Enabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		kv = cache.NewRedisKVStore(rdb, cfg.Redis.KeyPrefix)

		streams := events.DefaultStreams()
		streams.Clusters = cfg.Redis.ClustersStream
		streams.Alerts = cfg.Redis.AlertsStream
		streams.Reports = cfg.Redis.ReportsStream
		redisPublisher := events.NewRedisPublisher(rdb, streams, logr)
		publisher = redisPublisher
		notifier = redisPublisher
		logr.Info("Redis enabled", zap.String("addr", cfg.Redis.Addr))
	} else {
		mem, err := cache.NewMemoryKVStore(cfg.Forecast.CacheSize)
		if err != nil {
			return err
		}
		kv = mem
	}

	deps := engine.Deps{
		Store:     store,
		Forecasts: forecast.NewService(store, kv, cfg.Forecast.TTL, logr),
		Publisher: publisher,
		Labeler:   newLabeler(cfg, logr),
	}
	if cfg.Integrations.OpenAIKey != "" {
		deps.Narrator = summarization.NewSummarizer(openai.NewClient(cfg.Integrations.OpenAIKey), logr)
		logr.Info("Alert narratives enabled")
	}

	engCfg := engine.DefaultConfig()
	engCfg.Clustering.RadiusKM = cfg.Detection.RadiusKM
	engCfg.Clustering.MinPoints = cfg.Detection.MinPoints
	engCfg.Lookback = cfg.Detection.Lookback
	engCfg.Anomaly.Threshold = cfg.Anomaly.Threshold
	engCfg.Anomaly.Metrics = cfg.Anomaly.Metrics

	eng, err := engine.New(engCfg, deps, logr)
	if err != nil {
		return fmt.Errorf("failed to build engine: %w", err)
	}
	if err := eng.Warm(ctx); err != nil {
		logr.Warn("Could not load the active generation, starting empty", zap.Error(err))
	}

	scheduler := cronjobs.NewScheduler(func(ctx context.Context) error {
		_, err := eng.DetectOutbreaks(ctx)
		return err
	}, cfg.Detection.Timeout, logr)
	if err := scheduler.Schedule(cfg.Detection.Schedule); err != nil {
		return err
	}
	scheduler.Start()
	defer scheduler.Stop()

	if rdb != nil {
		consumer := events.NewReportConsumer(rdb, scheduler.Trigger, cfg.Redis.ReportsStream,
			cfg.Redis.ConsumerGroup, cfg.Redis.ConsumerName, logr)
		go func() {
			if err := consumer.Start(ctx); err != nil {
				logr.Error("Report consumer stopped", zap.Error(err))
			}
		}()
	}

	var entities intake.EntityExtractor
	if cfg.Integrations.NaturalLanguageCredentials != "" {
		langClient, err := nlp.InitLanguageClient(ctx, cfg.Integrations.NaturalLanguageCredentials)
		if err != nil {
			logr.Warn("Natural Language disabled", zap.Error(err))
		} else {
			defer nlp.CloseLanguageClient()
			entities = nlp.NewEntityExtractor(langClient)
		}
	}

	h := &handlers.Handlers{
		Engine:        eng,
		Intake:        intake.NewService(store, entities, notifier, scheduler.Trigger, logr),
		DefaultJitter: cfg.Forecast.Jitter,
		Logger:        logr,
	}
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: routes.SetupRouter(h, cfg.ClientURL),
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logr.Info("Shutting down")
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg *config.Config, logr *zap.Logger) (reportStore, func(), error) {
	switch cfg.Store.Backend {
	case config.StorePostgres:
		sqlDB, err := db.NewPostgresDB(cfg.Store.Postgres)
		if err != nil {
			return nil, nil, err
		}
		store := db.NewPostgresStore(sqlDB, logr)
		if err := store.Migrate(ctx); err != nil {
			sqlDB.Close()
			return nil, nil, err
		}
		logr.Info("Using PostgreSQL store", zap.String("host", cfg.Store.Postgres.Host))
		return store, func() { sqlDB.Close() }, nil
	default:
		client, err := db.InitFirestore(ctx, cfg.Store.FirebaseCredentials, cfg.Store.FirebaseProjectID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize Firestore: %w", err)
		}
		logr.Info("Using Firestore store")
		return db.NewFirestoreStore(client, logr), db.CloseFirestore, nil
	}
}

func newLabeler(cfg *config.Config, logr *zap.Logger) *geocode.Labeler {
	if cfg.Integrations.MapsKey == "" {
		return geocode.NewLabeler(nil, logr)
	}
	client, err := geocode.InitMapsClient(cfg.Integrations.MapsKey)
	if err != nil {
		logr.Warn("Reverse geocoding disabled", zap.Error(err))
		return geocode.NewLabeler(nil, logr)
	}
	return geocode.NewLabeler(client, logr)
}
