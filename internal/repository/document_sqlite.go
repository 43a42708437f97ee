package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sitskillbridge/skillbridge-backend/internal/model"
)

// SQLiteDocumentStore keeps documents in a local SQLite file. The merge is
// done in Go inside a transaction, matching the PostgreSQL shallow merge.
type SQLiteDocumentStore struct {
	db *sql.DB
}

// NewSQLiteDocumentStore wraps a database opened with database.NewSQLiteDB.
func NewSQLiteDocumentStore(db *sql.DB) *SQLiteDocumentStore {
	return &SQLiteDocumentStore{db: db}
}

func (s *SQLiteDocumentStore) Get(ctx context.Context, collection model.Collection, userID string) (json.RawMessage, error) {
	if !collection.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCollection, collection)
	}

	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = ? AND user_id = ?`,
		string(collection), userID,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

func (s *SQLiteDocumentStore) SetMerge(ctx context.Context, collection model.Collection, userID string, doc json.RawMessage) error {
	if err := checkWrite(collection, doc); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = ? AND user_id = ?`,
		string(collection), userID,
	).Scan(&current)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	merged, err := mergeTopLevel(json.RawMessage(current), doc)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO documents (collection, user_id, data, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (collection, user_id) DO UPDATE
		 SET data = excluded.data, updated_at = excluded.updated_at`,
		string(collection), userID, string(merged), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return err
	}
	return tx.Commit()
}
