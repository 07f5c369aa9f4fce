// Package router binds each user to one of the two storage backends and
// hands out that backend's repository set.
package router

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/prudhvinik1/ledgersync/internal/apperr"
	"github.com/prudhvinik1/ledgersync/internal/models"
	"github.com/prudhvinik1/ledgersync/internal/repositories"
	"github.com/rs/zerolog"
)

// AssignmentService decides and remembers which backend hosts each user.
// An assignment is written once and never changes, so the in-memory cache
// only ever grows and is never invalidated.
type AssignmentService struct {
	assignments  repositories.AssignmentRepository
	provisioners map[models.Backend]repositories.Provisioner
	cache        sync.Map // user id -> models.DatabaseAssignment
	logger       zerolog.Logger
}

func NewAssignmentService(assignments repositories.AssignmentRepository, provisioners map[models.Backend]repositories.Provisioner, logger zerolog.Logger) *AssignmentService {
	return &AssignmentService{
		assignments:  assignments,
		provisioners: provisioners,
		logger:       logger.With().Str("component", "assignment").Logger(),
	}
}

// Assign places a new user on the backend with fewer users (A on a tie).
// If that backend cannot provision the user, the other one is tried once.
// A user that already has an assignment gets it back unchanged.
func (s *AssignmentService) Assign(ctx context.Context, userID string) (*models.DatabaseAssignment, error) {
	existing, err := s.lookup(ctx, userID)
	if err == nil {
		return existing, nil
	}
	if !apperr.IsNotFound(err) {
		return nil, &apperr.AssignmentError{UserID: userID, Err: err}
	}

	counts, err := s.assignments.CountByBackend(ctx)
	if err != nil {
		return nil, &apperr.AssignmentError{UserID: userID, Err: err}
	}
	primary := models.BackendA
	if counts[models.BackendB] < counts[models.BackendA] {
		primary = models.BackendB
	}

	var errs []error
	for _, backend := range []models.Backend{primary, primary.Other()} {
		stored, err := s.assignTo(ctx, userID, backend)
		if err == nil {
			s.cache.Store(userID, *stored)
			s.logger.Info().Str("user_id", userID).Str("backend", string(stored.Backend)).Msg("user assigned")
			return stored, nil
		}
		s.logger.Warn().Err(err).Str("user_id", userID).Str("backend", string(backend)).Msg("backend assignment failed")
		errs = append(errs, err)
	}
	return nil, &apperr.AssignmentError{UserID: userID, Err: errors.Join(errs...)}
}

func (s *AssignmentService) assignTo(ctx context.Context, userID string, backend models.Backend) (*models.DatabaseAssignment, error) {
	p, ok := s.provisioners[backend]
	if !ok {
		return nil, fmt.Errorf("backend %s is not configured", backend)
	}
	if err := p.Provision(ctx, userID); err != nil {
		return nil, fmt.Errorf("backend %s: %w", backend, err)
	}
	stored, err := s.assignments.Create(ctx, &models.DatabaseAssignment{UserID: userID, Backend: backend})
	if err != nil {
		return nil, fmt.Errorf("backend %s: %w", backend, err)
	}
	return stored, nil
}

// Resolve returns the user's backend. A user without an assignment is an
// AssignmentError; there is no default backend.
func (s *AssignmentService) Resolve(ctx context.Context, userID string) (models.Backend, error) {
	a, err := s.lookup(ctx, userID)
	if err != nil {
		return "", &apperr.AssignmentError{UserID: userID, Err: err}
	}
	return a.Backend, nil
}

func (s *AssignmentService) lookup(ctx context.Context, userID string) (*models.DatabaseAssignment, error) {
	if cached, ok := s.cache.Load(userID); ok {
		a := cached.(models.DatabaseAssignment)
		return &a, nil
	}
	a, err := s.assignments.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	// racing fills store the same immutable row
	s.cache.Store(userID, *a)
	return a, nil
}
