package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"crimewatch/backend/internal/analysis"
	"crimewatch/backend/internal/api/handler"
	"crimewatch/backend/internal/blob"
	"crimewatch/backend/internal/cache"
	"crimewatch/backend/internal/changefeed"
	"crimewatch/backend/internal/config"
	"crimewatch/backend/internal/dispatch"
	"crimewatch/backend/internal/geo"
	"crimewatch/backend/internal/hub"
	"crimewatch/backend/internal/localization"
	"crimewatch/backend/internal/logger"
	"crimewatch/backend/internal/metrics"
	"crimewatch/backend/internal/storage"
	"crimewatch/backend/internal/telegram"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type dependencies struct {
	rdb       *redis.Client
	store     *storage.Service
	source    changefeed.Source
	blobs     blob.Store
	snapshots cache.Store
}

func setupDependencies(ctx context.Context, cfg *config.Config, log *logrus.Entry) *dependencies {
	// 1. Database
	db, err := storage.Open(cfg.DatabaseDSN)
	if err != nil {
		log.WithError(err).Fatal("failed to connect database")
	}
	pgFeed := cfg.ChangeFeedDriver == "postgres"
	if err := storage.Migrate(db, pgFeed); err != nil {
		log.WithError(err).Fatal("failed to run migrations")
	}

	deps := &dependencies{}

	// 2. Redis, when the change feed or the snapshot cache uses it
	if !pgFeed || cfg.CacheDriver == "redis" {
		deps.rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if _, err := deps.rdb.Ping(ctx).Result(); err != nil {
			log.WithError(err).Fatal("failed to connect redis")
		}
	}

	// 3. Change feed. Postgres mode relies on the NOTIFY triggers installed by Migrate.
	if pgFeed {
		deps.store = storage.NewStorageService(db, nil, log.WithField("component", "storage"))
		deps.source = changefeed.NewPGSource(cfg.DatabaseDSN, deps.store, log.WithField("component", "changefeed"))
	} else {
		deps.store = storage.NewStorageService(db, changefeed.NewRedisPublisher(deps.rdb), log.WithField("component", "storage"))
		deps.source = changefeed.NewRedisSource(deps.rdb, log.WithField("component", "changefeed"))
	}

	// 4. Recording storage
	if cfg.MinioAccessKey == "" {
		log.Warn("MINIO_ACCESS_KEY not set, recordings are kept in memory")
		deps.blobs = blob.NewMemoryStore(cfg.ServerURL + "/blobs/" + cfg.MinioBucket)
	} else {
		ms, err := blob.NewMinioStore(blob.MinioConfig{
			Endpoint:   cfg.MinioEndpoint,
			AccessKey:  cfg.MinioAccessKey,
			SecretKey:  cfg.MinioSecretKey,
			Bucket:     cfg.MinioBucket,
			UseSSL:     cfg.MinioUseSSL,
			PublicBase: cfg.MinioPublicBase,
		})
		if err != nil {
			log.WithError(err).Fatal("failed to create minio client")
		}
		if err := ms.EnsureBucket(ctx); err != nil {
			log.WithError(err).Fatal("failed to prepare recording bucket")
		}
		deps.blobs = ms
	}

	// 5. Notification snapshots
	if cfg.CacheDriver == "redis" {
		deps.snapshots = cache.NewRedis(deps.rdb, cfg.SnapshotMaxAge)
	} else {
		deps.snapshots = cache.NewLocal(cfg.SnapshotMaxAge)
	}

	log.WithFields(logrus.Fields{
		"changefeed": cfg.ChangeFeedDriver,
		"cache":      cfg.CacheDriver,
	}).Info("dependencies ready, migrations complete")
	return deps
}

func startTelegram(ctx context.Context, cfg *config.Config, h *hub.ManagerService, store telegram.AlertStore, log *logrus.Entry) {
	if cfg.TelegramToken == "" {
		log.Info("TELEGRAM_BOT_TOKEN not set, officer relay disabled")
		return
	}
	bot, err := telegram.NewBotAPI(cfg.TelegramToken, log)
	if err != nil {
		log.WithError(err).Error("failed to start telegram bot, continuing without relay")
		return
	}

	loc := localization.Default()
	relay := telegram.NewClient(bot, cfg.TelegramChatIDs, loc, log)
	if h.Register(relay) {
		relay.Run()
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	botService := telegram.NewBotService(bot, store, loc, cfg.TelegramChatIDs, log)
	go botService.Run(ctx, bot.GetUpdatesChan(u))
}

// serveMemoryBlob makes in-memory recordings playable in local runs.
func serveMemoryBlob(ms *blob.MemoryStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		data, contentType, ok := ms.Get(strings.TrimPrefix(c.Param("key"), "/"))
		if !ok {
			c.Status(http.StatusNotFound)
			return
		}
		c.Data(http.StatusOK, contentType, data)
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.NewLogger("crimewatch-api", "info").WithError(err).Fatal("failed to load configuration")
	}
	log := logger.NewLogger("crimewatch-api", cfg.LogLevel)
	log.Info("starting CrimeWatch backend")
	if cfg.InsecureSecret() {
		log.Warn("JWT_SECRET not set, tokens are signed with the built-in development secret")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Dependencies
	deps := setupDependencies(ctx, cfg, log)
	m := metrics.New()

	// 2. Real-time hub on a single change-feed subscription
	sub := changefeed.Subscribe(ctx, deps.source, changefeed.Filter{}, changefeed.WithLogger(log.WithField("component", "subscription")))
	defer sub.Close()
	h := hub.NewManagerService(sub, hub.WithLogger(log.WithField("component", "hub")), hub.WithMetrics(m))
	go h.Run(ctx)

	// 3. Officer relay
	startTelegram(ctx, cfg, h, deps.store, log.WithField("component", "telegram"))

	// 4. Orphan recording sweep
	c := cron.New()
	reconciler := &dispatch.Reconciler{
		Blobs:   deps.blobs,
		Index:   deps.store,
		Grace:   config.OrphanGracePeriod,
		Log:     log.WithField("component", "reconcile"),
		Metrics: m,
	}
	if _, err := reconciler.Schedule(c, cfg.ReconcileCron); err != nil {
		log.WithError(err).Fatal("invalid RECONCILE_CRON")
	}
	c.Start()
	defer c.Stop()

	// 5. HTTP
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), m.Middleware())
	r.GET("/metrics", m.Handler())

	hd := &handler.Handler{
		Hub:       h,
		Storage:   deps.store,
		Sender:    dispatch.New(deps.blobs, deps.store, log.WithField("component", "dispatch"), dispatch.WithMetrics(m)),
		Resolver:  geo.NewResolver(geo.DefaultStations()),
		Analyzer:  analysis.New(cfg.AnalysisModelURL, deps.store, analysis.WithLogger(log.WithField("component", "analysis"))),
		Snapshots: deps.snapshots,
		Config:    cfg,
		Log:       log.WithField("component", "api"),
	}
	hd.Register(r)
	if ms, ok := deps.blobs.(*blob.MemoryStore); ok {
		r.GET("/blobs/"+cfg.MinioBucket+"/*key", serveMemoryBlob(ms))
	}

	server := &http.Server{
		Addr:           cfg.Addr,
		Handler:        r,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("http shutdown")
		}
	}()

	log.WithField("addr", cfg.Addr).Info("http server listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("http server failed")
	}
	<-h.Done()
}
