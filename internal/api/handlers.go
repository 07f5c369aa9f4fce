package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prudhvinik1/ledgersync/internal/apperr"
	"github.com/prudhvinik1/ledgersync/internal/models"
	"github.com/prudhvinik1/ledgersync/internal/repositories"
	"github.com/prudhvinik1/ledgersync/internal/validation"
	"github.com/rs/zerolog/hlog"
)

const maxBodyBytes = 1 << 20

type createAccountRequest struct {
	Email string `json:"email"`
}

func (s *Server) createAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, r, apperr.NewValidationError("request body is not valid JSON"))
		return
	}
	resp, err := s.accounts.Create(r.Context(), req.Email)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) currentAccount(w http.ResponseWriter, r *http.Request) {
	resp, err := s.accounts.Get(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// collection resolves the path's entity type and the user's repository set.
func (s *Server) collection(r *http.Request) (models.EntityType, *repositories.Set, error) {
	t, ok := models.EntityTypeForCollection(chi.URLParam(r, "collection"))
	if !ok {
		return "", nil, apperr.NotFound("collection", chi.URLParam(r, "collection"))
	}
	set, err := s.repos.RepositoriesFor(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		return "", nil, err
	}
	return t, set, nil
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	t, set, err := s.collection(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	found, err := find(r, t, set, userIDFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, found)
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	t, set, err := s.collection(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	store, err := set.Store(t)
	if err != nil {
		writeError(w, r, err)
		return
	}
	found, err := store.FindByID(r.Context(), userIDFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, found)
}

// create is idempotent twice over: a replayed Idempotency-Key returns the
// record it produced, and a replayed id returns the stored record.
func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := userIDFrom(ctx)
	t, set, err := s.collection(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	store, err := set.Store(t)
	if err != nil {
		writeError(w, r, err)
		return
	}

	key := r.Header.Get("Idempotency-Key")
	if key != "" && s.idem != nil {
		rec, err := s.idem.Lookup(ctx, userID, key)
		switch {
		case err == nil && rec.EntityType == t:
			if existing, err := store.FindByID(ctx, userID, rec.ID); err == nil {
				writeJSON(w, http.StatusOK, existing)
				return
			}
		case err != nil && !apperr.IsNotFound(err):
			hlog.FromRequest(r).Warn().Err(err).Msg("idempotency lookup failed")
		}
	}

	entity, err := s.decode(r, t)
	if err != nil {
		writeError(w, r, err)
		return
	}
	created, err := store.Create(ctx, entity)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if key != "" && s.idem != nil {
		rec := &models.IdempotencyRecord{EntityType: t, ID: created.GetID(), CreatedAt: time.Now().UTC()}
		if err := s.idem.Save(ctx, userID, key, rec); err != nil {
			hlog.FromRequest(r).Warn().Err(err).Msg("idempotency save failed")
		}
	}
	if p, ok := created.(*models.LoanPayment); ok {
		s.recomputeLoan(r, p.LoanID)
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := userIDFrom(ctx)
	t, set, err := s.collection(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	store, err := set.Store(t)
	if err != nil {
		writeError(w, r, err)
		return
	}

	entity, err := s.decode(r, t)
	if err != nil {
		writeError(w, r, err)
		return
	}
	entity.SetID(chi.URLParam(r, "id"))

	var previousLoanID string
	if t == models.EntityLoanPayment {
		if prev, err := set.LoanPayments.FindByID(ctx, userID, entity.GetID()); err == nil {
			previousLoanID = prev.LoanID
		}
	}

	updated, err := store.Update(ctx, entity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if p, ok := updated.(*models.LoanPayment); ok {
		s.recomputeLoan(r, p.LoanID)
		if previousLoanID != "" && previousLoanID != p.LoanID {
			s.recomputeLoan(r, previousLoanID)
		}
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := userIDFrom(ctx)
	id := chi.URLParam(r, "id")
	t, set, err := s.collection(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	store, err := set.Store(t)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var loanID string
	if t == models.EntityLoanPayment {
		if p, err := set.LoanPayments.FindByID(ctx, userID, id); err == nil {
			loanID = p.LoanID
		}
	}

	if err := store.Delete(ctx, userID, id); err != nil {
		writeError(w, r, err)
		return
	}
	if loanID != "" {
		s.recomputeLoan(r, loanID)
	}
	w.WriteHeader(http.StatusNoContent)
}

// decode reads the body as an entity of type t, validates it and binds it
// to the authenticated user.
func (s *Server) decode(r *http.Request, t models.EntityType) (models.Entity, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	entity, err := models.Decode(t, body)
	if err != nil {
		return nil, apperr.NewValidationError(err.Error())
	}
	result := validation.Validate(entity)
	if !result.IsValid {
		return nil, result.Err()
	}
	sanitized := result.Sanitized
	sanitized.SetUserID(userIDFrom(r.Context()))
	return sanitized, nil
}

// recomputeLoan failures are logged; the payment itself was stored.
func (s *Server) recomputeLoan(r *http.Request, loanID string) {
	if s.loans == nil || loanID == "" {
		return
	}
	if _, err := s.loans.Recompute(r.Context(), userIDFrom(r.Context()), loanID); err != nil && !apperr.IsNotFound(err) {
		hlog.FromRequest(r).Warn().Err(err).Str("loan_id", loanID).Msg("loan recompute failed")
	}
}
