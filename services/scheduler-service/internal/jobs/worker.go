package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/coachbook/coachbook/services/scheduler-service/internal/generate"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only if this instance still holds it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// Worker runs the generation pass on a fixed interval. A Redis lock keeps
// concurrent scheduler instances from running overlapping passes; without
// Redis the worker runs unlocked, which is safe but wasteful since
// generation itself is idempotent.
type Worker struct {
	materializer *generate.Materializer
	rdb          *redis.Client
	logger       *slog.Logger
	interval     time.Duration
	weeksAhead   int
	lockKey      string
	lockTTL      time.Duration
	instanceID   string
}

type WorkerConfig struct {
	Interval   time.Duration
	WeeksAhead int
	LockKey    string
	LockTTL    time.Duration
}

func NewWorker(materializer *generate.Materializer, rdb *redis.Client, logger *slog.Logger, cfg WorkerConfig) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.WeeksAhead <= 0 {
		cfg.WeeksAhead = 6
	}
	if cfg.LockKey == "" {
		cfg.LockKey = "scheduler:generate:lock"
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 10 * time.Minute
	}
	return &Worker{
		materializer: materializer,
		rdb:          rdb,
		logger:       logger,
		interval:     cfg.Interval,
		weeksAhead:   cfg.WeeksAhead,
		lockKey:      cfg.LockKey,
		lockTTL:      cfg.LockTTL,
		instanceID:   uuid.NewString(),
	}
}

func (w *Worker) Run(ctx context.Context) {
	w.runOnce(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *Worker) runOnce(ctx context.Context) {
	if w.rdb != nil {
		ok, err := w.rdb.SetNX(ctx, w.lockKey, w.instanceID, w.lockTTL).Result()
		if err != nil {
			w.logger.Error("generation lock error", "err", err)
			return
		}
		if !ok {
			w.logger.Info("generation skipped (another instance holds the lock)")
			return
		}
		defer func() {
			if _, err := releaseScript.Run(ctx, w.rdb, []string{w.lockKey}, w.instanceID).Result(); err != nil {
				w.logger.Warn("generation lock release failed", "err", err)
			}
		}()
	}

	res, err := w.materializer.GenerateAll(ctx, w.weeksAhead)
	if err != nil {
		w.logger.Error("generation run failed", "err", err)
		return
	}
	w.logger.Info("generation run finished",
		"total_generated", res.TotalGenerated,
		"from_recurring_bookings", res.FromRecurringBookings,
		"from_availability_template", res.FromAvailabilityTemplate,
		"marked_completed", res.MarkedCompleted,
		"skipped_no_room", res.SkippedNoRoom,
	)
}
