package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bryanwahyu/feedback-ai/internal/application"
	appai "github.com/bryanwahyu/feedback-ai/internal/application/ai"
	appanalytics "github.com/bryanwahyu/feedback-ai/internal/application/analytics"
	appsubs "github.com/bryanwahyu/feedback-ai/internal/application/submissions"
	"github.com/bryanwahyu/feedback-ai/internal/config"
	"github.com/bryanwahyu/feedback-ai/internal/domain/ai"
	domain "github.com/bryanwahyu/feedback-ai/internal/domain/submissions"
	"github.com/bryanwahyu/feedback-ai/internal/infra/ai/openai"
	"github.com/bryanwahyu/feedback-ai/internal/infra/cache"
	"github.com/bryanwahyu/feedback-ai/internal/infra/db/jsonfile"
	mysqlp "github.com/bryanwahyu/feedback-ai/internal/infra/db/mysql"
	"github.com/bryanwahyu/feedback-ai/internal/infra/db/postgres"
	"github.com/bryanwahyu/feedback-ai/internal/infra/events"
	"github.com/bryanwahyu/feedback-ai/internal/infra/httpserver"
	minioStore "github.com/bryanwahyu/feedback-ai/internal/infra/storage"
	"github.com/bryanwahyu/feedback-ai/internal/logger"
	"github.com/bryanwahyu/feedback-ai/internal/middleware"
)

// Application wires config to services, adapters and the HTTP handler.
type Application struct {
	Config      *config.Config
	Submissions *appsubs.Service
	Analytics   *appanalytics.Service
	Pipeline    *appsubs.Pipeline
	Metrics     *middleware.Metrics
	Limiter     *middleware.RateLimiter

	health   map[string]middleware.HealthChecker
	optional []string
	ready    middleware.HealthChecker
	closers  []func() error
}

// New builds the application. Optional adapters (redis, kafka, minio, openai)
// are only created when configured.
func New(ctx context.Context, cfg *config.Config) (*Application, error) {
	a := &Application{
		Config:  cfg,
		Metrics: middleware.Default,
		Limiter: middleware.NewRateLimiter(cfg.Server.RateLimitBurst, cfg.Server.RateLimitRefill),
		health:  map[string]middleware.HealthChecker{},
	}

	repo, err := a.openStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	versioned := appsubs.NewVersioned(repo)

	var (
		primary ai.Annotator
		refiner ai.Refiner
	)
	if cfg.AI.APIKey != "" {
		svc := appai.NewService(openai.NewClient(cfg.AI.APIKey, cfg.AI.BaseURL, cfg.AI.Model, cfg.AI.MaxTokens))
		primary, refiner = svc, svc
		logger.WithField("model", cfg.AI.Model).Info("ai annotation enabled")
	} else {
		logger.Log.Warn("no OPENAI_API_KEY, annotations use the heuristic only")
	}

	var publisher domain.EventPublisher = events.Nop{}
	if len(cfg.Kafka.Brokers) > 0 {
		kp := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		a.closers = append(a.closers, kp.Close)
		publisher = kp
	}

	pipeline := appsubs.NewPipeline(versioned, primary, refiner, appsubs.PipelineConfig{
		Timeout:    cfg.AI.Timeout,
		MaxWorkers: cfg.AI.MaxWorkers,
		RefineMode: appsubs.RefineMode(strings.ToLower(cfg.AI.RefineMode)),
	})
	pipeline.Events = publisher
	pipeline.Recorder = a.Metrics
	a.Pipeline = pipeline

	clock := application.SystemClock{}
	a.Submissions = &appsubs.Service{
		Repo:        versioned,
		Pipeline:    pipeline,
		Events:      publisher,
		Clock:       clock,
		Location:    cfg.Location(),
		ReadTimeout: cfg.Server.ReadTimeout,
	}
	if cfg.Minio.Endpoint != "" {
		store, err := minioStore.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.Prefix,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("minio init: %w", err)
		}
		a.Submissions.Snapshots = store
	}

	a.Analytics = &appanalytics.Service{
		Repo:        versioned,
		Engine:      appanalytics.NewEngine(appanalytics.NewRadarScorer(cfg.Analytics.Radar), cfg.Location()),
		Versions:    versioned,
		CacheTTL:    cfg.Analytics.CacheTTL,
		Clock:       clock,
		ReadTimeout: cfg.Server.ReadTimeout,
	}
	if cfg.Redis.Addr != "" {
		rc := cache.NewRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Prefix)
		a.Analytics.Cache = rc
		a.health["redis"] = middleware.CheckFunc(rc.Ping)
		a.optional = append(a.optional, "redis")
		a.closers = append(a.closers, rc.Close)
	}
	return a, nil
}

func (a *Application) openStore(ctx context.Context) (domain.Repository, error) {
	cfg := a.Config
	switch strings.ToLower(cfg.Storage.Driver) {
	case "", "jsonfile", "json":
		opts := []jsonfile.Option{jsonfile.WithLocation(cfg.Location())}
		if cfg.Storage.ReadOnly {
			opts = append(opts, jsonfile.ReadOnly())
		}
		repo, err := jsonfile.Open(cfg.Storage.FilePath, opts...)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, repo.Close)
		check := middleware.CheckFunc(func(ctx context.Context) error {
			_, err := repo.Latest(ctx)
			if errors.Is(err, domain.ErrNotFound) {
				return nil
			}
			return err
		})
		a.health["store"], a.ready = check, check
		logger.WithFields(map[string]interface{}{
			"path":      cfg.Storage.FilePath,
			"read_only": cfg.Storage.ReadOnly,
		}).Info("using json file store")
		return repo, nil

	case "mysql":
		db, err := mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			return nil, fmt.Errorf("mysql connect: %w", err)
		}
		a.trackDB(db)
		repo := mysqlp.NewSubmissionRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return repo, nil

	case "postgres", "postgresql":
		db, err := postgres.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			return nil, fmt.Errorf("postgres connect: %w", err)
		}
		a.trackDB(db)
		repo := postgres.NewSubmissionRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return repo, nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func (a *Application) trackDB(db *sql.DB) {
	check := &middleware.DatabaseHealthChecker{DB: db}
	a.health["store"], a.ready = check, check
	a.closers = append(a.closers, db.Close)
	logger.WithField("driver", a.Config.Storage.Driver).Info("using sql store")
}

// Handler builds the HTTP router.
func (a *Application) Handler() http.Handler {
	return httpserver.NewRouter(httpserver.Deps{
		Submissions: a.Submissions,
		Analytics:   a.Analytics,
		Metrics:     a.Metrics,
		Limiter:     a.Limiter,
		AdminKeys:   a.Config.Auth.AdminKeys,
		CORSOrigins: a.Config.Server.CORSOrigins,
		Health:      a.health,
		Optional:    a.optional,
		Ready:       a.ready,
		WaitTimeout: a.Config.AI.Timeout + 5*time.Second,
	})
}

// Start resumes unfinished annotations and runs background housekeeping
// until ctx ends.
func (a *Application) Start(ctx context.Context) {
	if _, err := a.Pipeline.Resume(ctx); err != nil {
		logger.WithError(err).Error("resume pending submissions failed")
	}
	go a.Limiter.Run(ctx, 5*time.Minute, 10*time.Minute)
}

// Shutdown waits for detached AI work, bounded by ctx, then closes adapters.
func (a *Application) Shutdown(ctx context.Context) error {
	err := a.Pipeline.Drain(ctx)
	if err != nil {
		logger.WithError(err).Warn("pipeline drain interrupted, processing records resume on next start")
	}
	a.Close()
	return err
}

// Close releases adapters in reverse order.
func (a *Application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.WithError(err).Warn("close failed")
		}
	}
	a.closers = nil
}
