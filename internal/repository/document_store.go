package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sitskillbridge/skillbridge-backend/internal/model"
)

var (
	ErrUnknownCollection = errors.New("unknown collection")
	ErrDocumentNotFound  = errors.New("document not found")
	ErrInvalidDocument   = errors.New("document must be a JSON object")
)

// DocumentStore keeps one JSON document per (collection, user). SetMerge
// upserts with a shallow merge: top-level keys of doc replace the stored
// ones, keys absent from doc are kept.
type DocumentStore interface {
	Get(ctx context.Context, collection model.Collection, userID string) (json.RawMessage, error)
	SetMerge(ctx context.Context, collection model.Collection, userID string, doc json.RawMessage) error
}

func checkWrite(collection model.Collection, doc json.RawMessage) error {
	if !collection.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownCollection, collection)
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(doc, &obj); err != nil || obj == nil {
		return ErrInvalidDocument
	}
	return nil
}

// mergeTopLevel applies patch onto base key by key.
func mergeTopLevel(base, patch json.RawMessage) (json.RawMessage, error) {
	merged := map[string]json.RawMessage{}
	if len(base) > 0 {
		if err := json.Unmarshal(base, &merged); err != nil {
			return nil, fmt.Errorf("decode stored document: %w", err)
		}
		if merged == nil {
			merged = map[string]json.RawMessage{}
		}
	}

	var p map[string]json.RawMessage
	if err := json.Unmarshal(patch, &p); err != nil {
		return nil, ErrInvalidDocument
	}
	for k, v := range p {
		merged[k] = v
	}
	return json.Marshal(merged)
}
