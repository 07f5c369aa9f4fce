package services

import (
	"context"
	"fmt"
	"time"

	"github.com/prudhvinik1/ledgersync/internal/models"
	"github.com/prudhvinik1/ledgersync/internal/repositories"
	"github.com/rs/zerolog"
)

// RepositoryResolver returns the repository set bound to a user.
type RepositoryResolver interface {
	RepositoriesFor(ctx context.Context, userID string) (*repositories.Set, error)
}

// LoanService keeps a loan's outstanding amount and status consistent with
// its stored payments. Clients already adjust the loan locally; this runs
// after every payment mutation on the server as a second line.
type LoanService struct {
	resolver RepositoryResolver
	logger   zerolog.Logger
	now      func() time.Time
}

func NewLoanService(resolver RepositoryResolver, logger zerolog.Logger) *LoanService {
	return &LoanService{
		resolver: resolver,
		logger:   logger.With().Str("component", "loans").Logger(),
		now:      time.Now,
	}
}

// Recompute derives the loan's outstanding amount and status from its
// payments and stores the loan if either changed.
func (s *LoanService) Recompute(ctx context.Context, userID, loanID string) (*models.Loan, error) {
	set, err := s.resolver.RepositoriesFor(ctx, userID)
	if err != nil {
		return nil, err
	}

	loan, err := set.Loans.FindByID(ctx, userID, loanID)
	if err != nil {
		return nil, err
	}
	payments, err := set.LoanPayments.FindByLoanID(ctx, userID, loanID)
	if err != nil {
		return nil, fmt.Errorf("failed to load payments: %w", err)
	}

	outstanding, status := loan.OutstandingAmount, loan.Status
	loan.Recalculate(payments, models.DateOf(s.now()))
	if loan.OutstandingAmount == outstanding && loan.Status == status {
		return loan, nil
	}

	s.logger.Info().
		Str("user_id", userID).
		Str("loan_id", loanID).
		Str("outstanding", loan.OutstandingAmount.String()).
		Str("status", string(loan.Status)).
		Msg("loan corrected from payments")

	loan.Stamp(s.now())
	return set.Loans.Update(ctx, loan)
}
