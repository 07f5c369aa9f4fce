package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/badoux/checkmail"
	"github.com/prudhvinik1/ledgersync/internal/apperr"
	"github.com/prudhvinik1/ledgersync/internal/models"
	"github.com/prudhvinik1/ledgersync/internal/repositories"
	"github.com/rs/zerolog"
)

// Assigner places a new user on a backend and looks the placement up later.
type Assigner interface {
	Assign(ctx context.Context, userID string) (*models.DatabaseAssignment, error)
	Resolve(ctx context.Context, userID string) (models.Backend, error)
}

type AccountService struct {
	accountRepo repositories.AccountRepository
	assigner    Assigner
	tokens      *TokenService
	logger      zerolog.Logger
}

type AccountResponse struct {
	Account   *models.Account `json:"account"`
	Backend   models.Backend  `json:"backend"`
	Token     string          `json:"token,omitempty"`
	ExpiresAt *time.Time      `json:"expiresAt,omitempty"`
}

func NewAccountService(accountRepo repositories.AccountRepository, assigner Assigner, tokens *TokenService, logger zerolog.Logger) *AccountService {
	return &AccountService{
		accountRepo: accountRepo,
		assigner:    assigner,
		tokens:      tokens,
		logger:      logger.With().Str("component", "accounts").Logger(),
	}
}

// Create registers an account and assigns it a backend. When no backend can
// take the user the account is deleted again, so an account never exists
// without an assignment.
func (s *AccountService) Create(ctx context.Context, email string) (*AccountResponse, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := checkmail.ValidateFormat(email); err != nil {
		return nil, apperr.NewValidationError("email is not a valid address")
	}

	existing, err := s.accountRepo.GetByEmail(ctx, email)
	if err == nil && existing != nil {
		return nil, apperr.NewValidationError("email is already registered")
	}
	if err != nil && !apperr.IsNotFound(err) {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}

	account := &models.Account{Email: email}
	if err := s.accountRepo.Create(ctx, account); err != nil {
		return nil, err
	}

	assignment, err := s.assigner.Assign(ctx, account.ID)
	if err != nil {
		if rbErr := s.accountRepo.Delete(ctx, account.ID); rbErr != nil {
			s.logger.Error().Err(rbErr).Str("user_id", account.ID).Msg("failed to roll back account")
			return nil, errors.Join(err, rbErr)
		}
		s.logger.Warn().Err(err).Str("user_id", account.ID).Msg("account rolled back")
		return nil, err
	}

	token, expiresAt, err := s.tokens.IssueToken(account.ID)
	if err != nil {
		return nil, err
	}

	return &AccountResponse{
		Account:   account,
		Backend:   assignment.Backend,
		Token:     token,
		ExpiresAt: &expiresAt,
	}, nil
}

// Get returns the account of userID and the backend it lives on. No token
// is issued.
func (s *AccountService) Get(ctx context.Context, userID string) (*AccountResponse, error) {
	account, err := s.accountRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	backend, err := s.assigner.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &AccountResponse{Account: account, Backend: backend}, nil
}
