package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sitskillbridge/skillbridge-backend/internal/model"
)

// PostgresDocumentStore keeps documents in the jsonb documents table.
type PostgresDocumentStore struct {
	pool *pgxpool.Pool
}

// NewPostgresDocumentStore creates a new PostgresDocumentStore.
func NewPostgresDocumentStore(pool *pgxpool.Pool) *PostgresDocumentStore {
	return &PostgresDocumentStore{pool: pool}
}

func (s *PostgresDocumentStore) Get(ctx context.Context, collection model.Collection, userID string) (json.RawMessage, error) {
	if !collection.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCollection, collection)
	}

	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM documents WHERE collection = $1 AND user_id = $2`,
		string(collection), userID,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

// SetMerge relies on jsonb || for the shallow merge, so concurrent writers
// never lose each other's keys.
func (s *PostgresDocumentStore) SetMerge(ctx context.Context, collection model.Collection, userID string, doc json.RawMessage) error {
	if err := checkWrite(collection, doc); err != nil {
		return err
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO documents (collection, user_id, data, updated_at)
		 VALUES ($1, $2, $3::jsonb, NOW())
		 ON CONFLICT (collection, user_id) DO UPDATE
		 SET data = documents.data || EXCLUDED.data, updated_at = NOW()`,
		string(collection), userID, string(doc),
	)
	return err
}
