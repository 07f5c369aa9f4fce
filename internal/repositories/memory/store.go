// Package memory holds in-process implementations of every repository
// contract. They back unit tests and the end-to-end suite, and behave like
// the database backends down to the error types.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prudhvinik1/ledgersync/internal/apperr"
	"github.com/prudhvinik1/ledgersync/internal/models"
)

type row[T any] interface {
	*T
	models.Entity
}

// store keeps copies, so callers can never mutate stored records in place.
type store[T any, P row[T]] struct {
	mu      sync.RWMutex
	entity  models.EntityType
	records map[string]P
	now     func() time.Time
}

func newStore[T any, P row[T]](entity models.EntityType) *store[T, P] {
	return &store[T, P]{entity: entity, records: make(map[string]P), now: time.Now}
}

func clone[T any, P row[T]](e P) P {
	raw, err := json.Marshal(e)
	if err != nil {
		panic(err)
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		panic(err)
	}
	return P(&v)
}

func (s *store[T, P]) filter(userID string, keep func(P) bool) []P {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []P
	for _, r := range s.records {
		if r.GetUserID() == userID && (keep == nil || keep(r)) {
			out = append(out, clone[T, P](r))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].GetCreatedAt().Equal(out[j].GetCreatedAt()) {
			return out[i].GetID() < out[j].GetID()
		}
		return out[i].GetCreatedAt().Before(out[j].GetCreatedAt())
	})
	return out
}

func (s *store[T, P]) FindByUserID(ctx context.Context, userID string) ([]P, error) {
	return s.filter(userID, nil), nil
}

func (s *store[T, P]) FindByID(ctx context.Context, userID, id string) (P, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[id]
	if !ok || r.GetUserID() != userID {
		return nil, apperr.NotFound(string(s.entity), id)
	}
	return clone[T, P](r), nil
}

func (s *store[T, P]) Create(ctx context.Context, entity P) (P, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entity.GetID() == "" {
		entity.SetID(uuid.NewString())
	}
	if existing, ok := s.records[entity.GetID()]; ok {
		if existing.GetUserID() != entity.GetUserID() {
			return nil, apperr.NotFound(string(s.entity), entity.GetID())
		}
		return clone[T, P](existing), nil
	}
	if entity.GetCreatedAt().IsZero() || entity.GetUpdatedAt().IsZero() {
		entity.Stamp(s.now())
	}
	stored := clone[T, P](entity)
	s.records[stored.GetID()] = stored
	return clone[T, P](stored), nil
}

func (s *store[T, P]) Update(ctx context.Context, entity P) (P, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.records[entity.GetID()]
	if !ok || current.GetUserID() != entity.GetUserID() {
		return nil, apperr.NotFound(string(s.entity), entity.GetID())
	}
	stored := clone[T, P](entity)
	if stored.GetUpdatedAt().IsZero() {
		stored.Stamp(s.now())
	}
	stored.SetCreatedAt(current.GetCreatedAt())
	s.records[stored.GetID()] = stored
	return clone[T, P](stored), nil
}

func (s *store[T, P]) Delete(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[id]
	if !ok || r.GetUserID() != userID {
		return apperr.NotFound(string(s.entity), id)
	}
	delete(s.records, id)
	return nil
}

// Len counts stored records across all users.
func (s *store[T, P]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
