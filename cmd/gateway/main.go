// Package main is the gateway process entry point: load configuration,
// open the config store, build one worker per configured model, and serve
// the /v1 and /admin HTTP surfaces until a termination signal arrives.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/relayforge/gateway/backend"
	"github.com/relayforge/gateway/common/client"
	"github.com/relayforge/gateway/common/config"
	"github.com/relayforge/gateway/common/logger"
	"github.com/relayforge/gateway/common/metrics"
	"github.com/relayforge/gateway/common/telemetry"
	"github.com/relayforge/gateway/controller"
	"github.com/relayforge/gateway/middleware"
	"github.com/relayforge/gateway/model"
	"github.com/relayforge/gateway/policy"
	"github.com/relayforge/gateway/route"
	"github.com/relayforge/gateway/store"
	"github.com/relayforge/gateway/worker"
)

func main() {
	config.Load()

	if err := logger.Init(config.LogLevel, config.LogEncoding); err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %+v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logger.Logger.Error("gateway exited with error", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	client.Init()

	providers, err := telemetry.InitOpenTelemetry(ctx)
	if err != nil {
		return errors.Wrap(err, "init opentelemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			logger.Logger.Error("shutdown opentelemetry", zap.Error(err))
		}
	}()

	registry := prometheus.NewRegistry()
	recorder, err := metrics.NewPrometheusRecorder(registry)
	if err != nil {
		return errors.Wrap(err, "init prometheus recorder")
	}
	metrics.GlobalRecorder = recorder

	db, err := store.OpenDB(config.StoreDriver, config.StoreDSN)
	if err != nil {
		return errors.Wrap(err, "open store driver")
	}
	gw, err := store.Open(ctx, db, config.StoreSchemaVersion)
	if err != nil {
		return errors.Wrap(err, "open config store")
	}

	var redisClient *redis.Client
	if config.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: config.RedisAddr})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return errors.Wrap(err, "connect to redis")
		}
		defer func() { _ = redisClient.Close() }()
	}

	resolver := policy.NewResolver(gw, config.PrincipalCacheTTL, redisClient)

	dispatcher, stopWorkers, err := buildDispatcher(ctx, gw)
	if err != nil {
		return errors.Wrap(err, "build model workers")
	}
	defer stopWorkers()

	engine := buildEngine(gw, resolver, dispatcher, registry)

	srv := &http.Server{
		Addr:              config.ListenAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Logger.Info("gateway listening", zap.String("addr", config.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "serve http")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// buildDispatcher loads every configured Model, resolves its quotas, builds
// a backend.Client for its descriptor, and starts one worker goroutine per
// model (§4.5: "a worker scoped to the running configuration" — admin
// writes do not hot-reload an already-running process). The returned stop
// func cancels every worker's run context; Run itself returns once it
// observes cancellation.
func buildDispatcher(ctx context.Context, gw *store.Gateway) (route.Dispatcher, func(), error) {
	models, err := gw.Models.GetAll(ctx)
	if err != nil {
		return nil, nil, errors.Wrap(err, "list models")
	}

	workerCtx, cancel := context.WithCancel(ctx)
	workers := make(map[string]*worker.Worker, len(models))

	for _, m := range models {
		quotas := resolveQuotas(ctx, gw, m.QuotaIDs)

		cl, err := backend.New(m)
		if err != nil {
			cancel()
			return nil, nil, errors.Wrapf(err, "build backend client for model %q", m.Label)
		}

		w := worker.New(m, quotas, cl)
		workers[m.ID.String()] = w
		go w.Run(workerCtx)
	}

	dispatcher := route.NewStaticDispatcher(workers)
	return dispatcher, cancel, nil
}

// resolveQuotas looks up each quota id, skipping a dangling reference
// silently, matching policy.Resolver's own buildPrincipal rule (§3b).
func resolveQuotas(ctx context.Context, gw *store.Gateway, ids []uuid.UUID) []model.Quota {
	quotas := make([]model.Quota, 0, len(ids))
	for _, id := range ids {
		q, err := gw.Quotas.Get(ctx, id.String())
		if err != nil {
			continue
		}
		quotas = append(quotas, q)
	}
	return quotas
}

// buildEngine assembles the gin router: ambient middleware, the public /v1
// surface gated by ClientAuth, the /admin CRUD surface gated by AdminAuth,
// and /metrics for Prometheus scraping.
func buildEngine(gw *store.Gateway, resolver *policy.Resolver, dispatcher route.Dispatcher, registry *prometheus.Registry) *gin.Engine {
	engine := gin.New()
	engine.Use(middleware.RecoverJSON(), middleware.RequestID(), middleware.CORS(), middleware.Gzip(), middleware.Metrics())

	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	cl := &controller.Client{Dispatcher: dispatcher}
	v1 := engine.Group("/v1")
	v1.Use(middleware.ClientAuth(resolver))
	{
		v1.POST("/chat/completions", cl.ChatCompletions())
		v1.POST("/completions", cl.Completions())
		v1.POST("/edits", cl.Edits())
		v1.POST("/embeddings", cl.Embeddings())
		v1.POST("/moderations", cl.Moderations())
		v1.POST("/images/generations", cl.ImageGenerations())
		v1.POST("/images/edits", cl.ImageEdits())
		v1.POST("/images/variations", cl.ImageVariations())
		v1.POST("/audio/speech", cl.AudioSpeech())
		v1.POST("/audio/transcriptions", cl.AudioTranscriptions())
		v1.POST("/audio/translations", cl.AudioTranslations())
	}

	admin := &controller.Admin{Gateway: gw}
	adminGroup := engine.Group("/admin")
	adminGroup.GET("/healthz", admin.Healthz())
	adminGroup.Use(middleware.AdminAuth())
	{
		adminGroup.GET("/roles", admin.ListRoles())
		adminGroup.GET("/roles/:id", admin.GetRole())
		adminGroup.POST("/roles", admin.UpsertRole(false))
		adminGroup.PUT("/roles", admin.UpsertRole(true))
		adminGroup.DELETE("/roles/:id", admin.DeleteRole())

		adminGroup.GET("/quotas", admin.ListQuotas())
		adminGroup.GET("/quotas/:id", admin.GetQuota())
		adminGroup.POST("/quotas", admin.UpsertQuota(false))
		adminGroup.PUT("/quotas", admin.UpsertQuota(true))
		adminGroup.DELETE("/quotas/:id", admin.DeleteQuota())

		adminGroup.GET("/models", admin.ListModels())
		adminGroup.GET("/models/:id", admin.GetModel())
		adminGroup.POST("/models", admin.UpsertModel(false))
		adminGroup.PUT("/models", admin.UpsertModel(true))
		adminGroup.DELETE("/models/:id", admin.DeleteModel())

		adminGroup.GET("/users", admin.ListUsers())
		adminGroup.GET("/users/:id", admin.GetUser())
		adminGroup.POST("/users", admin.UpsertUser(false))
		adminGroup.PUT("/users", admin.UpsertUser(true))
		adminGroup.DELETE("/users/:id", admin.DeleteUser())
	}

	return engine
}
