// Package historian drains recorded game actions from the Redis queue and writes them to
// the game_history table in batches.
package historian

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/jason-s-yu/tycoon/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// HistoryWriter persists one batch of entries atomically.
type HistoryWriter interface {
	AppendHistory(ctx context.Context, entries []models.HistoryEntry) error
}

type Config struct {
	Queue      string
	BatchSize  int
	FlushDelay time.Duration
	// PopTimeout bounds each BLPop so cancellation and the flush ticker are noticed.
	PopTimeout time.Duration
}

// maxPendingBatches bounds how much a failing database makes the service buffer.
const maxPendingBatches = 10

// Service is the queue consumer.
type Service struct {
	client *redis.Client
	store  HistoryWriter
	cfg    Config
	log    *logrus.Entry

	batchMu sync.Mutex
	batch   []models.HistoryEntry
}

func New(client *redis.Client, store HistoryWriter, cfg Config, logger *logrus.Logger) *Service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.FlushDelay <= 0 {
		cfg.FlushDelay = 500 * time.Millisecond
	}
	if cfg.PopTimeout <= 0 {
		cfg.PopTimeout = 3 * time.Second
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{
		client: client,
		store:  store,
		cfg:    cfg,
		log:    logger.WithField("component", "historian"),
		batch:  make([]models.HistoryEntry, 0, cfg.BatchSize),
	}
}

// Run pops entries until ctx is cancelled, then flushes what is left.
func (hs *Service) Run(ctx context.Context) {
	hs.log.WithField("queue", hs.cfg.Queue).Info("historian started")
	ticker := time.NewTicker(hs.cfg.FlushDelay)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			hs.Flush(final)
			cancel()
			hs.log.Info("historian shutting down")
			return

		case <-ticker.C:
			hs.Flush(ctx)

		default:
			res, err := hs.client.BLPop(ctx, hs.cfg.PopTimeout, hs.cfg.Queue).Result()
			if err != nil {
				if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
					hs.log.WithError(err).Error("BLPop failed")
					time.Sleep(hs.cfg.FlushDelay)
				}
				continue
			}
			// res[0] is the queue name and res[1] the payload.
			if len(res) < 2 {
				continue
			}
			hs.Handle(ctx, res[1])
		}
	}
}

// Handle decodes one queued payload and adds it to the batch, flushing when full.
// Undecodable payloads are logged and dropped.
func (hs *Service) Handle(ctx context.Context, payload string) {
	var entry models.HistoryEntry
	if err := json.Unmarshal([]byte(payload), &entry); err != nil {
		hs.log.WithError(err).Warn("invalid action record")
		return
	}
	hs.batchMu.Lock()
	hs.batch = append(hs.batch, entry)
	full := len(hs.batch) >= hs.cfg.BatchSize
	hs.batchMu.Unlock()
	if full {
		hs.Flush(ctx)
	}
}

// Flush writes the current batch in one transaction. A failed batch is kept for the next
// flush; beyond maxPendingBatches the oldest entries are dropped.
func (hs *Service) Flush(ctx context.Context) {
	hs.batchMu.Lock()
	defer hs.batchMu.Unlock()

	if len(hs.batch) == 0 {
		return
	}
	batchCopy := make([]models.HistoryEntry, len(hs.batch))
	copy(batchCopy, hs.batch)

	if err := hs.store.AppendHistory(ctx, batchCopy); err != nil {
		hs.log.WithError(err).Errorf("failed to flush %d actions", len(batchCopy))
		if limit := hs.cfg.BatchSize * maxPendingBatches; len(hs.batch) > limit {
			dropped := len(hs.batch) - limit
			hs.batch = append(hs.batch[:0], hs.batch[dropped:]...)
			hs.log.Errorf("dropped %d unflushed actions", dropped)
		}
		return
	}
	hs.batch = hs.batch[:0]
	hs.log.Debugf("flushed %d actions", len(batchCopy))
}

// Pending is the number of entries waiting to be flushed.
func (hs *Service) Pending() int {
	hs.batchMu.Lock()
	defer hs.batchMu.Unlock()
	return len(hs.batch)
}
