package router

import (
	"context"
	"fmt"

	"github.com/prudhvinik1/ledgersync/internal/models"
	"github.com/prudhvinik1/ledgersync/internal/repositories"
	"github.com/rs/zerolog"
)

// Router hands out the repository set of the backend a user is assigned to.
type Router struct {
	*AssignmentService
	sets map[models.Backend]*repositories.Set
}

// New builds a router over one repository set per backend.
func New(assignments repositories.AssignmentRepository, logger zerolog.Logger, sets ...*repositories.Set) (*Router, error) {
	bySet := make(map[models.Backend]*repositories.Set, len(sets))
	provisioners := make(map[models.Backend]repositories.Provisioner, len(sets))
	for _, s := range sets {
		bySet[s.Backend] = s
		provisioners[s.Backend] = s.Provisioner
	}
	for _, b := range models.Backends {
		if _, ok := bySet[b]; !ok {
			return nil, fmt.Errorf("missing repository set for backend %s", b)
		}
	}
	return &Router{
		AssignmentService: NewAssignmentService(assignments, provisioners, logger),
		sets:              bySet,
	}, nil
}

// RepositoriesFor returns the user's bound repository set.
func (r *Router) RepositoriesFor(ctx context.Context, userID string) (*repositories.Set, error) {
	backend, err := r.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	return r.sets[backend], nil
}
