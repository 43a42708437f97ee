package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/sitskillbridge/skillbridge-backend/internal/config"
	"github.com/sitskillbridge/skillbridge-backend/internal/model"
	"github.com/sitskillbridge/skillbridge-backend/internal/repository"
)

// DefaultSaveTimeout bounds a synchronous document write. Writes that miss it
// are handed to the retry queue.
const DefaultSaveTimeout = 5 * time.Second

// DocumentService is the best-effort persistence sink for per-user
// documents. A failed write never fails the caller; it is queued on
// persist_documents_queue for the document worker.
type DocumentService struct {
	store   repository.DocumentStore
	rdb     *redis.Client
	timeout time.Duration
	log     zerolog.Logger
}

// NewDocumentService creates a new DocumentService.
func NewDocumentService(store repository.DocumentStore, rdb *redis.Client, log zerolog.Logger) *DocumentService {
	return &DocumentService{
		store:   store,
		rdb:     rdb,
		timeout: DefaultSaveTimeout,
		log:     log.With().Str("component", "document_service").Logger(),
	}
}

// Get returns the caller's document in collection.
func (s *DocumentService) Get(ctx context.Context, collection model.Collection, userID string) (json.RawMessage, error) {
	return s.store.Get(ctx, collection, userID)
}

// Save merges doc into the user's document and reports whether the write
// landed. On failure the write is queued for retry.
func (s *DocumentService) Save(ctx context.Context, collection model.Collection, userID string, doc any) bool {
	raw, err := json.Marshal(doc)
	if err != nil {
		s.log.Error().Err(err).Str("collection", string(collection)).Msg("Encode document failed")
		return false
	}

	saveCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.store.SetMerge(saveCtx, collection, userID, raw); err != nil {
		s.log.Warn().Err(err).
			Str("collection", string(collection)).
			Str("user_id", userID).
			Msg("Document write failed, queueing for retry")

		if qerr := s.Enqueue(context.WithoutCancel(ctx), model.DocumentWrite{
			Collection: collection,
			UserID:     userID,
			Data:       raw,
		}); qerr != nil {
			s.log.Error().Err(qerr).Str("user_id", userID).Msg("Queue document write failed")
		}
		return false
	}
	return true
}

// Enqueue hands a write to the document worker.
func (s *DocumentService) Enqueue(ctx context.Context, w model.DocumentWrite) error {
	payload, err := json.Marshal(w)
	if err != nil {
		return err
	}
	if err := s.rdb.RPush(ctx, config.WorkerKey.PersistDocumentsQueue, payload).Err(); err != nil {
		return fmt.Errorf("enqueue document: %w", err)
	}
	return nil
}
