// Package app wires configuration, storage and services for the CLI
// commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/civictrack/civictrack/internal/application/assignment"
	"github.com/civictrack/civictrack/internal/application/classification"
	"github.com/civictrack/civictrack/internal/application/escalation"
	"github.com/civictrack/civictrack/internal/application/intake"
	"github.com/civictrack/civictrack/internal/application/monitor"
	"github.com/civictrack/civictrack/internal/domain/report"
	"github.com/civictrack/civictrack/internal/infrastructure/audit"
	"github.com/civictrack/civictrack/internal/infrastructure/classifier"
	"github.com/civictrack/civictrack/internal/infrastructure/config"
	"github.com/civictrack/civictrack/internal/infrastructure/counter"
	"github.com/civictrack/civictrack/internal/infrastructure/database"
	"github.com/civictrack/civictrack/internal/infrastructure/lock"
	"github.com/civictrack/civictrack/internal/infrastructure/metrics"
	"github.com/civictrack/civictrack/internal/infrastructure/notify"
	"github.com/civictrack/civictrack/internal/infrastructure/queue"
	"github.com/civictrack/civictrack/internal/infrastructure/repository"
	"github.com/civictrack/civictrack/internal/infrastructure/worker"
	"github.com/civictrack/civictrack/internal/interfaces/probe"
	"github.com/civictrack/civictrack/internal/shared/biztime"
	"github.com/civictrack/civictrack/internal/shared/db"
	"github.com/civictrack/civictrack/internal/shared/goroutine"
	"github.com/civictrack/civictrack/internal/shared/logger"
)

const classificationQueueName = "civictrack:queue:classification"

// Container holds every component a command may need. Commands use the
// parts they care about and call Shutdown on exit.
type Container struct {
	cfg   *config.Config
	log   logger.Interface
	db    *gorm.DB
	redis *redis.Client

	repos *repositories

	Queue       *queue.RedisQueue
	Metrics     *metrics.Collectors
	Audit       *audit.RedisSink
	Notifier    *notify.Service
	Assignment  *assignment.Service
	Intake      *intake.CreateReportUseCase
	Pipeline    *classification.Pipeline
	SLA         *monitor.SLAMonitor
	Stale       *monitor.StaleMonitor
	Recovery    *worker.RecoverySweep
	Escalations *escalation.Service

	closeDB bool
}

type repositories struct {
	reports     *repository.ReportRepository
	tasks       *repository.TaskRepository
	history     *repository.HistoryRepository
	officers    *repository.OfficerRepository
	escalations *repository.EscalationRepository
}

// Bootstrap loads configuration for env, connects to MySQL and Redis and
// wires the container.
func Bootstrap(env string) (*Container, error) {
	cfg, log, err := InitDatabase(env)
	if err != nil {
		return nil, err
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.GetAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		redisClient.Close()
		database.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	log.Infow("redis connection established", "address", cfg.Redis.GetAddr())

	c, err := NewContainer(cfg, database.Get(), redisClient, log)
	if err != nil {
		redisClient.Close()
		database.Close()
		return nil, err
	}
	c.closeDB = true
	return c, nil
}

// InitDatabase loads configuration, sets up logging and the city timezone
// and opens the database. Callers close it with database.Close.
func InitDatabase(env string) (*config.Config, logger.Interface, error) {
	cfg, err := config.Load(env)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(&cfg.Logger); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.NewLogger()

	if err := biztime.Init(cfg.Server.Timezone); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize city timezone: %w", err)
	}

	if err := database.Init(&cfg.Database, log); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return cfg, log, nil
}

// NewContainer wires services on top of open connections.
func NewContainer(cfg *config.Config, gdb *gorm.DB, redisClient *redis.Client, log logger.Interface) (*Container, error) {
	c := &Container{
		cfg:   cfg,
		log:   log,
		db:    gdb,
		redis: redisClient,
		repos: &repositories{
			reports:     repository.NewReportRepository(gdb),
			tasks:       repository.NewTaskRepository(gdb),
			history:     repository.NewHistoryRepository(gdb),
			officers:    repository.NewOfficerRepository(gdb),
			escalations: repository.NewEscalationRepository(gdb),
		},
		Metrics: metrics.NewCollectors(),
	}

	txManager := db.NewTransactionManager(gdb)
	redisCounter := counter.NewRedisCounter(redisClient)

	c.Queue = queue.NewRedisQueue(redisClient, classificationQueueName)
	c.Metrics.RegisterQueueDepth(c.Queue, log)
	c.Audit = audit.NewRedisSink(redisClient, audit.DefaultChannel, log.Named("audit"))
	c.Notifier = notify.NewService(gdb, log.Named("notify"))

	balancer := assignment.NewWorkloadBalancer(c.repos.tasks, c.repos.officers, log.Named("workload"))
	balancer.SetRoundRobinCursor(redisCounter)

	c.Assignment = assignment.NewService(txManager, c.repos.reports, c.repos.tasks, c.repos.history,
		c.repos.officers, balancer, c.Audit, c.Notifier, log.Named("assignment"))
	c.Assignment.SetLocker(lock.NewRedisLocker(redisClient))
	c.Assignment.SetMetrics(c.Metrics)

	numbers := report.NewCounterNumberGenerator(redisCounter,
		cfg.Numbering.Prefix, cfg.Numbering.CityCode, cfg.Numbering.PadWidth)
	c.Intake = intake.NewCreateReportUseCase(txManager, c.repos.reports, c.repos.history,
		numbers, c.Queue, c.Audit, log.Named("intake"))

	opts, err := classification.OptionsFromConfig(cfg.Classification)
	if err != nil {
		return nil, fmt.Errorf("invalid classification config: %w", err)
	}
	var textClassifier classification.TextClassifier
	if apiKey := classifierAPIKey(cfg); apiKey != "" {
		textClassifier = classifier.NewAnthropicClassifier(apiKey, cfg.Classification.Model, log.Named("classifier"))
	} else {
		log.Warnw("no classifier API key configured, reports will be routed to manual review")
	}
	embedder := classifier.NewCachingEmbedder(
		classifier.NewHashEmbedder(cfg.Classification.EmbeddingDimensions),
		cfg.Classification.EmbeddingCacheSize, log.Named("embedder"))
	c.Pipeline = classification.NewPipeline(c.repos.reports, c.repos.officers, c.Assignment,
		textClassifier, embedder,
		opts, log.Named("pipeline"))
	c.Pipeline.SetMetrics(c.Metrics)

	c.SLA = monitor.NewSLAMonitor(txManager, c.repos.tasks, c.repos.reports, c.repos.escalations,
		c.repos.officers, c.Notifier, c.Audit, monitor.WarningPolicyFromConfig(cfg.SLA), log.Named("sla"))
	c.SLA.SetMetrics(c.Metrics)
	c.Stale = monitor.NewStaleMonitor(txManager, c.repos.tasks, c.repos.escalations,
		c.repos.officers, c.Notifier, c.Audit, log.Named("stale"))
	c.Stale.SetMetrics(c.Metrics)

	c.Escalations = escalation.NewService(txManager, c.repos.escalations, c.repos.reports, c.repos.tasks,
		c.repos.officers, c.Notifier, c.Audit, log.Named("escalation"))

	c.Recovery = worker.NewRecoverySweep(c.Queue, c.repos.reports, cfg.Worker.VisibilityTimeout, log.Named("recovery"))

	return c, nil
}

func classifierAPIKey(cfg *config.Config) string {
	if cfg.Classification.AnthropicAPIKey != "" {
		return cfg.Classification.AnthropicAPIKey
	}
	return os.Getenv("ANTHROPIC_API_KEY")
}

func (c *Container) Config() *config.Config { return c.cfg }

func (c *Container) Logger() logger.Interface { return c.log }

func (c *Container) DB() *gorm.DB { return c.db }

// NewWorkerPool builds the classification consumer pool.
func (c *Container) NewWorkerPool() *worker.Pool {
	return worker.NewPool(c.Queue, c.Pipeline, worker.Options{
		Concurrency: c.cfg.Worker.Concurrency,
		PollTimeout: c.cfg.Worker.PollTimeout,
	}, c.log.Named("worker"))
}

// ProbeRouter serves health, readiness and metrics for service.
func (c *Container) ProbeRouter(service string) *gin.Engine {
	checks := map[string]probe.Check{
		"database": func(ctx context.Context) error {
			sqlDB, err := c.db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
		"redis": func(ctx context.Context) error {
			return c.redis.Ping(ctx).Err()
		},
	}
	return probe.NewRouter(service, checks, c.Metrics.Handler(), c.log.Named("probe"))
}

// ServeProbe starts the probe server on the configured address. The
// returned func shuts it down.
func (c *Container) ServeProbe(service string) func(ctx context.Context) error {
	srv := &http.Server{
		Addr:              c.cfg.Probe.Addr,
		Handler:           c.ProbeRouter(service),
		ReadHeaderTimeout: 5 * time.Second,
	}
	goroutine.SafeGo(c.log, "probe-server", func() {
		c.log.Infow("probe server starting", "address", srv.Addr, "service", service)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.log.Errorw("probe server failed", "error", err)
		}
	})
	return srv.Shutdown
}

func (c *Container) Shutdown() {
	if err := c.redis.Close(); err != nil {
		c.log.Warnw("failed to close redis client", "error", err)
	}
	if c.closeDB {
		if err := database.Close(); err != nil {
			c.log.Warnw("failed to close database", "error", err)
		}
	}
	logger.Sync()
}
