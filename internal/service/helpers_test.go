package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/sitskillbridge/skillbridge-backend/internal/config"
	"github.com/sitskillbridge/skillbridge-backend/internal/model"
	"github.com/sitskillbridge/skillbridge-backend/internal/repository"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:     "test-secret",
		JWTExpiry:     time.Hour,
		RefreshExpiry: 24 * time.Hour,
		BcryptCost:    bcrypt.MinCost,
	}
}

// memStore is an in-memory DocumentStore with the same shallow merge as the
// real stores.
type memStore struct {
	mu   sync.Mutex
	docs map[string]map[string]json.RawMessage
	fail error
}

func newMemStore() *memStore {
	return &memStore{docs: map[string]map[string]json.RawMessage{}}
}

func (s *memStore) key(c model.Collection, userID string) string { return string(c) + "/" + userID }

func (s *memStore) Get(_ context.Context, c model.Collection, userID string) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !c.Valid() {
		return nil, repository.ErrUnknownCollection
	}
	doc, ok := s.docs[s.key(c, userID)]
	if !ok {
		return nil, repository.ErrDocumentNotFound
	}
	return json.Marshal(doc)
}

func (s *memStore) SetMerge(_ context.Context, c model.Collection, userID string, raw json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	if !c.Valid() {
		return repository.ErrUnknownCollection
	}
	var patch map[string]json.RawMessage
	if err := json.Unmarshal(raw, &patch); err != nil {
		return repository.ErrInvalidDocument
	}
	doc, ok := s.docs[s.key(c, userID)]
	if !ok {
		doc = map[string]json.RawMessage{}
		s.docs[s.key(c, userID)] = doc
	}
	for k, v := range patch {
		doc[k] = v
	}
	return nil
}

func (s *memStore) setFail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = err
}

var errStoreDown = errors.New("store down")

// memUsers is an in-memory UserStore.
type memUsers struct {
	mu     sync.Mutex
	byID   map[string]*model.User
	nextID int
}

func newMemUsers() *memUsers {
	return &memUsers{byID: map[string]*model.User{}}
}

func (m *memUsers) Create(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if strings.EqualFold(existing.Email, u.Email) {
			return repository.ErrEmailTaken
		}
	}
	m.nextID++
	u.ID = fmt.Sprintf("user-%d", m.nextID)
	u.Email = strings.ToLower(u.Email)
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	cp := *u
	m.byID[u.ID] = &cp
	return nil
}

func (m *memUsers) GetByID(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (m *memUsers) UpdatePassword(_ context.Context, id, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.PasswordHash = hash
	return nil
}

func newTestDocs(t *testing.T, rdb *redis.Client) (*DocumentService, *memStore) {
	t.Helper()
	store := newMemStore()
	return NewDocumentService(store, rdb, zerolog.Nop()), store
}
