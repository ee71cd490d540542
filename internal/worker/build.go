package worker

import (
	"context"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"wanworker/internal/config"
	"wanworker/internal/jobstore"
	"wanworker/internal/pkg/errors"
	"wanworker/internal/pkg/logger"
	"wanworker/internal/pkg/shutdown"
	"wanworker/internal/storage"
	"wanworker/internal/worker/generator"
	"wanworker/internal/worker/processor"
	"wanworker/internal/worker/queue"
)

// NewProcessor builds the job handler from cfg. The storage provider it
// selected is returned too; nil means inline delivery. Extra reporters
// receive progress alongside the log.
func NewProcessor(ctx context.Context, cfg config.Config, log *logger.Logger, reporters ...processor.ProgressReporter) (*processor.Processor, storage.Provider, error) {
	if cfg.Wan.OutputRoot != "" {
		if err := os.MkdirAll(cfg.Wan.OutputRoot, 0o755); err != nil {
			return nil, nil, errors.Wrap(err, "worker.build", "failed to create output root")
		}
	}

	sp, err := storage.NewProvider(ctx, cfg)
	if err != nil {
		return nil, nil, errors.Wrap(err, "worker.build", "failed to initialize storage provider")
	}

	policy := processor.URLPolicy{
		Presign:    cfg.S3.Presign,
		Expire:     cfg.S3.Expire,
		PublicBase: cfg.S3.PublicBase,
	}
	if policy.PublicBase == "" {
		policy.PublicBase = cfg.StoragePublicBase
	}

	progress := processor.MultiReporter{processor.NewLogReporter(log)}
	progress = append(progress, reporters...)

	p := processor.New(processor.Deps{
		Wan:        cfg.Wan,
		Runner:     generator.NewExecRunner(),
		Workspaces: processor.NewWorkspaces(cfg.WorkspaceRoot, processor.NewImageVerifier(cfg.VerifyImages)),
		Delivery:   processor.NewDelivery(sp, policy),
		Progress:   progress,
		Log:        log,
	})
	return p, sp, nil
}

// Backends are the queue runtime's connections.
type Backends struct {
	Pool  *pgxpool.Pool
	Redis *redis.Client
	Store *jobstore.Store
	Queue *queue.RedisQueue
}

// Connect opens Postgres and Redis, verifies both and applies the jobs
// schema. Closing is registered with mgr.
func Connect(ctx context.Context, cfg config.Config, log *logger.Logger, mgr *shutdown.Manager) (*Backends, error) {
	if cfg.DatabaseURL == "" {
		return nil, errors.New(errors.CodeUnavailable, "missing env: DATABASE_URL")
	}
	if cfg.RedisAddr == "" {
		return nil, errors.New(errors.CodeUnavailable, "missing env: REDIS_ADDR")
	}

	log.Info("connecting to PostgreSQL")
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeUnavailable, "worker.connect", "failed to connect to PostgreSQL")
	}
	mgr.RegisterSimple("postgres", pool.Close)

	if err := pool.Ping(ctx); err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeUnavailable, "worker.connect", "failed to ping PostgreSQL")
	}
	log.Info("PostgreSQL connected")

	log.Info("connecting to Redis")
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	mgr.Register("redis", func(context.Context) error {
		return rdb.Close()
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeUnavailable, "worker.connect", "failed to ping Redis")
	}
	log.Info("Redis connected")

	store := jobstore.New(pool)
	if err := store.Migrate(ctx); err != nil {
		return nil, err
	}

	return &Backends{
		Pool:  pool,
		Redis: rdb,
		Store: store,
		Queue: queue.NewRedisQueue(rdb, cfg.QueueName),
	}, nil
}
