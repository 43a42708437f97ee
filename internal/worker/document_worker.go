package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/sitskillbridge/skillbridge-backend/internal/config"
	"github.com/sitskillbridge/skillbridge-backend/internal/model"
	"github.com/sitskillbridge/skillbridge-backend/internal/repository"
)

// MaxDocumentAttempts bounds how often a queued write is retried before it
// is dropped.
const MaxDocumentAttempts = 10

// DocumentWorker consumes persist_documents_queue and re-applies document
// merges that failed on the request path.
type DocumentWorker struct {
	store      repository.DocumentStore
	rdb        *redis.Client
	log        zerolog.Logger
	retryDelay time.Duration
}

// NewDocumentWorker creates a new DocumentWorker.
func NewDocumentWorker(store repository.DocumentStore, rdb *redis.Client, log zerolog.Logger) *DocumentWorker {
	return &DocumentWorker{
		store:      store,
		rdb:        rdb,
		log:        log.With().Str("component", "document_worker").Logger(),
		retryDelay: 5 * time.Second,
	}
}

// Start begins the infinite worker loop. Call in a goroutine.
func (w *DocumentWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			// Drain remaining items before exit.
			drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			w.drain(drainCtx)
			cancel()
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *DocumentWorker) processNext(ctx context.Context) {
	// BLPop blocks until an item is available or timeout (1 second).
	result, err := w.rdb.BLPop(ctx, PollTimeout, config.WorkerKey.PersistDocumentsQueue).Result()
	if err != nil {
		if err != redis.Nil && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
			pause(ctx, time.Second)
		}
		return
	}
	if len(result) < 2 {
		return
	}

	write, ok := w.decode(result[1])
	if !ok {
		return
	}

	if err := w.persist(ctx, write); err != nil {
		w.retry(ctx, write, err)
		pause(ctx, w.retryDelay)
	}
}

func (w *DocumentWorker) decode(raw string) (*model.DocumentWrite, bool) {
	var write model.DocumentWrite
	if err := json.Unmarshal([]byte(raw), &write); err != nil {
		w.log.Error().Err(err).Str("data", raw).Msg("Discarding malformed document write")
		return nil, false
	}
	return &write, true
}

func (w *DocumentWorker) persist(ctx context.Context, write *model.DocumentWrite) error {
	return w.store.SetMerge(ctx, write.Collection, write.UserID, write.Data)
}

// retry pushes a failed write back onto the queue unless it can never
// succeed or has used up its attempts.
func (w *DocumentWorker) retry(ctx context.Context, write *model.DocumentWrite, cause error) {
	log := w.log.With().
		Str("collection", string(write.Collection)).
		Str("user_id", write.UserID).
		Int("attempts", write.Attempts+1).
		Logger()

	if errors.Is(cause, repository.ErrUnknownCollection) || errors.Is(cause, repository.ErrInvalidDocument) {
		log.Error().Err(cause).Msg("Dropping document write that cannot succeed")
		return
	}

	// A write interrupted by shutdown does not use up an attempt.
	if ctx.Err() == nil {
		write.Attempts++
		if write.Attempts >= MaxDocumentAttempts {
			log.Error().Err(cause).Msg("Dropping document write after max attempts")
			return
		}
	}

	data, err := json.Marshal(write)
	if err != nil {
		return
	}
	pushCtx, cancel := requeueContext(ctx)
	defer cancel()
	if err := w.rdb.RPush(pushCtx, config.WorkerKey.PersistDocumentsQueue, data).Err(); err != nil {
		log.Error().Err(err).Msg("CRITICAL: Failed to requeue document write. Data loss occurred.")
		return
	}
	log.Warn().Err(cause).Msg("Persist error, requeued")
}

// drain processes all remaining items in the queue before shutdown.
func (w *DocumentWorker) drain(ctx context.Context) {
	drained := 0
	for {
		raw, err := w.rdb.LPop(ctx, config.WorkerKey.PersistDocumentsQueue).Result()
		if err != nil {
			break
		}

		write, ok := w.decode(raw)
		if !ok {
			continue
		}

		if err := w.persist(ctx, write); err != nil {
			w.log.Error().Err(err).Msg("Drain persist error")
			pushCtx, cancel := requeueContext(ctx)
			w.rdb.RPush(pushCtx, config.WorkerKey.PersistDocumentsQueue, raw)
			cancel()
			break
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining items")
	}
}
