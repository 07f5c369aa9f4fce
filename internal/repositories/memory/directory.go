package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prudhvinik1/ledgersync/internal/apperr"
	"github.com/prudhvinik1/ledgersync/internal/models"
)

type AccountRepository struct {
	mu       sync.Mutex
	accounts map[string]models.Account
}

func NewAccountRepository() *AccountRepository {
	return &AccountRepository{accounts: make(map[string]models.Account)}
}

func (r *AccountRepository) Create(ctx context.Context, account *models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account.Email = strings.ToLower(strings.TrimSpace(account.Email))
	for _, a := range r.accounts {
		if a.Email == account.Email {
			return apperr.NewValidationError("email is already registered")
		}
	}
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	account.CreatedAt = time.Now().UTC()
	r.accounts[account.ID] = *account
	return nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return nil, apperr.NotFound("account", id)
	}
	return &a, nil
}

func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, a := range r.accounts {
		if a.Email == email {
			return &a, nil
		}
	}
	return nil, apperr.NotFound("account", email)
}

func (r *AccountRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[id]; !ok {
		return apperr.NotFound("account", id)
	}
	delete(r.accounts, id)
	return nil
}

type AssignmentRepository struct {
	mu          sync.Mutex
	assignments map[string]models.DatabaseAssignment
	// Err, when set, is returned by Create.
	Err error
}

func NewAssignmentRepository() *AssignmentRepository {
	return &AssignmentRepository{assignments: make(map[string]models.DatabaseAssignment)}
}

func (r *AssignmentRepository) Create(ctx context.Context, a *models.DatabaseAssignment) (*models.DatabaseAssignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, fmt.Errorf("failed to create assignment: %w", r.Err)
	}
	if existing, ok := r.assignments[a.UserID]; ok {
		return &existing, nil
	}
	stored := *a
	if stored.AssignedAt.IsZero() {
		stored.AssignedAt = time.Now().UTC()
	}
	r.assignments[a.UserID] = stored
	return &stored, nil
}

func (r *AssignmentRepository) GetByUserID(ctx context.Context, userID string) (*models.DatabaseAssignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assignments[userID]
	if !ok {
		return nil, apperr.NotFound("assignment", userID)
	}
	return &a, nil
}

func (r *AssignmentRepository) CountByBackend(ctx context.Context) (map[models.Backend]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := map[models.Backend]int64{models.BackendA: 0, models.BackendB: 0}
	for _, a := range r.assignments {
		counts[a.Backend]++
	}
	return counts, nil
}

type IdempotencyRepository struct {
	mu      sync.Mutex
	records map[string]models.IdempotencyRecord
}

func NewIdempotencyRepository() *IdempotencyRepository {
	return &IdempotencyRepository{records: make(map[string]models.IdempotencyRecord)}
}

func (r *IdempotencyRepository) Lookup(ctx context.Context, userID, key string) (*models.IdempotencyRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[userID+":"+key]
	if !ok {
		return nil, apperr.NotFound("idempotency key", key)
	}
	return &rec, nil
}

func (r *IdempotencyRepository) Save(ctx context.Context, userID, key string, rec *models.IdempotencyRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[userID+":"+key]; !ok {
		r.records[userID+":"+key] = *rec
	}
	return nil
}
