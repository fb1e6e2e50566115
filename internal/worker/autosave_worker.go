package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/oesys/oes-backend/internal/config"
	"github.com/oesys/oes-backend/internal/model"
	"github.com/oesys/oes-backend/internal/service"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// AutosaveStore applies a queued partial write. The write must merge
// answers by question id, overwrite feedback whole, and refuse attempts
// that are no longer in progress.
type AutosaveStore interface {
	ApplyAutosave(ctx context.Context, id uuid.UUID, answers model.AnswerSet, feedback *string, now time.Time) (bool, error)
}

// AutosaveWorker consumes the autosave queue and applies each item to the
// submission row. Items are idempotent merges, so a crash between apply and
// ack at worst replays a write that is already absorbed.
type AutosaveWorker struct {
	store AutosaveStore
	rdb   *redis.Client
	log   zerolog.Logger
}

// NewAutosaveWorker creates a new AutosaveWorker.
func NewAutosaveWorker(store AutosaveStore, rdb *redis.Client, log zerolog.Logger) *AutosaveWorker {
	return &AutosaveWorker{
		store: store,
		rdb:   rdb,
		log:   log.With().Str("component", "autosave_worker").Logger(),
	}
}

// Start begins the worker loop. Call in a goroutine.
func (w *AutosaveWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			// Drain remaining items before exit.
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *AutosaveWorker) processNext(ctx context.Context) {
	// BLPop blocks until an item is available or timeout (1 second).
	result, err := w.rdb.BLPop(ctx, time.Second, config.WorkerKey.AutosaveQueue).Result()
	if err != nil {
		if err != redis.Nil && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
			time.Sleep(time.Second)
		}
		return
	}

	if len(result) < 2 {
		return
	}

	if requeue := w.apply(ctx, result[1]); requeue {
		w.rdb.RPush(ctx, config.WorkerKey.AutosaveQueue, result[1])
		time.Sleep(5 * time.Second)
	}
}

// apply persists one queued item and reports whether it should be retried.
func (w *AutosaveWorker) apply(ctx context.Context, raw string) (requeue bool) {
	var payload service.AutosavePayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		// Malformed JSON can never succeed on retry. Log and discard.
		w.log.Error().Err(err).Str("data", raw).Msg("Discarding malformed autosave")
		return false
	}

	applied, err := w.store.ApplyAutosave(ctx, payload.SubmissionID, payload.Answers, payload.Feedback, time.Now())
	if err != nil {
		w.log.Error().Err(err).
			Str("submission_id", payload.SubmissionID.String()).
			Msg("Autosave persist error, retrying in 5s")
		return true
	}
	if !applied {
		// The attempt was finalized after this item was queued. Finalized
		// rows are frozen, so the write is dropped on the floor.
		w.log.Debug().
			Str("submission_id", payload.SubmissionID.String()).
			Msg("Autosave for finalized attempt discarded")
	}
	return false
}

// drain processes all remaining items in the queue before shutdown.
func (w *AutosaveWorker) drain(ctx context.Context) {
	drained := 0
	for {
		result, err := w.rdb.LPop(ctx, config.WorkerKey.AutosaveQueue).Result()
		if err != nil {
			break
		}
		if requeue := w.apply(ctx, result); requeue {
			w.rdb.RPush(ctx, config.WorkerKey.AutosaveQueue, result)
			break
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining items")
	}
}
