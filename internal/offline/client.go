// Package offline is the client's data-access layer. Every mutation is
// validated, written to the local store together with its queue item in
// one transaction, and returns before any network call; a background drain
// is triggered afterwards.
package offline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prudhvinik1/ledgersync/internal/apperr"
	"github.com/prudhvinik1/ledgersync/internal/localstore"
	"github.com/prudhvinik1/ledgersync/internal/merge"
	"github.com/prudhvinik1/ledgersync/internal/models"
	"github.com/prudhvinik1/ledgersync/internal/syncqueue"
	"github.com/prudhvinik1/ledgersync/internal/validation"
	"github.com/rs/zerolog"
)

// Drainer is the sync queue processor as seen by the data-access layer.
type Drainer interface {
	Trigger(ctx context.Context)
	Drain(ctx context.Context) (syncqueue.Report, error)
}

// Puller is the pull/merge engine.
type Puller interface {
	Pull(ctx context.Context) (merge.Report, error)
}

type Client struct {
	store   *localstore.Store
	drainer Drainer
	puller  Puller
	userID  string
	logger  zerolog.Logger
	now     func() time.Time
	newID   func() string
}

func NewClient(store *localstore.Store, drainer Drainer, puller Puller, userID string, logger zerolog.Logger) *Client {
	return &Client{
		store:   store,
		drainer: drainer,
		puller:  puller,
		userID:  userID,
		logger:  logger.With().Str("component", "offline").Str("user_id", userID).Logger(),
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// Create stores a new entity locally and queues its CREATE. The entity gets
// a client-generated id unless it already has one; the server keeps that id,
// which makes replaying the CREATE harmless.
func (c *Client) Create(ctx context.Context, e models.Entity) (models.Entity, error) {
	if e == nil {
		return nil, apperr.NewValidationError("entity is required")
	}
	e.SetUserID(c.userID)
	if e.GetID() == "" {
		e.SetID(c.newID())
	}
	now := c.now()
	e.Stamp(now)
	if loan, ok := e.(*models.Loan); ok {
		loan.OutstandingAmount = loan.PrincipalAmount
		loan.RefreshStatus(models.DateOf(now))
	}

	sanitized, err := validate(e)
	if err != nil {
		return nil, err
	}

	err = c.store.WithTx(ctx, func(tx *localstore.Tx) error {
		if _, err := tx.Get(ctx, sanitized.EntityType(), sanitized.GetID()); err == nil {
			return apperr.NewValidationError(fmt.Sprintf("%s %s already exists", sanitized.EntityType(), sanitized.GetID()))
		} else if !apperr.IsNotFound(err) {
			return err
		}
		if p, ok := sanitized.(*models.LoanPayment); ok {
			if err := c.adjustLoan(ctx, tx, p.LoanID, p.Amount, now); err != nil {
				return err
			}
		}
		return c.write(ctx, tx, models.ActionCreate, sanitized, now)
	})
	if err != nil {
		return nil, err
	}

	c.logger.Debug().Str("entity_type", string(sanitized.EntityType())).Str("entity_id", sanitized.GetID()).Msg("created locally")
	c.drainer.Trigger(ctx)
	return sanitized, nil
}

// Update replaces an existing entity locally and queues its UPDATE.
func (c *Client) Update(ctx context.Context, e models.Entity) (models.Entity, error) {
	if e == nil {
		return nil, apperr.NewValidationError("entity is required")
	}
	now := c.now()
	var sanitized models.Entity

	err := c.store.WithTx(ctx, func(tx *localstore.Tx) error {
		current, err := c.owned(ctx, tx, e.EntityType(), e.GetID())
		if err != nil {
			return err
		}
		e.SetUserID(c.userID)
		e.SetCreatedAt(current.GetCreatedAt())
		e.Stamp(now)

		switch v := e.(type) {
		case *models.Loan:
			payments, err := c.paymentsFor(ctx, tx, v.ID)
			if err != nil {
				return err
			}
			v.Recalculate(payments, models.DateOf(now))
		case *models.LoanPayment:
			previous := current.(*models.LoanPayment)
			if previous.LoanID == v.LoanID {
				if err := c.adjustLoan(ctx, tx, v.LoanID, v.Amount-previous.Amount, now); err != nil {
					return err
				}
				break
			}
			if err := c.adjustLoan(ctx, tx, previous.LoanID, -previous.Amount, now); err != nil && !apperr.IsNotFound(err) {
				return err
			}
			if err := c.adjustLoan(ctx, tx, v.LoanID, v.Amount, now); err != nil {
				return err
			}
		}

		sanitized, err = validate(e)
		if err != nil {
			return err
		}
		return c.write(ctx, tx, models.ActionUpdate, sanitized, now)
	})
	if err != nil {
		return nil, err
	}

	c.drainer.Trigger(ctx)
	return sanitized, nil
}

// Delete removes an entity locally and queues its DELETE. Deleting a loan
// deletes its payments first.
func (c *Client) Delete(ctx context.Context, t models.EntityType, id string) error {
	now := c.now()
	err := c.store.WithTx(ctx, func(tx *localstore.Tx) error {
		current, err := c.owned(ctx, tx, t, id)
		if err != nil {
			return err
		}

		switch v := current.(type) {
		case *models.LoanPayment:
			if err := c.adjustLoan(ctx, tx, v.LoanID, -v.Amount, now); err != nil && !apperr.IsNotFound(err) {
				return err
			}
		case *models.Loan:
			payments, err := c.paymentsFor(ctx, tx, v.ID)
			if err != nil {
				return err
			}
			for _, p := range payments {
				if err := c.remove(ctx, tx, p, now); err != nil {
					return err
				}
			}
		}
		return c.remove(ctx, tx, current, now)
	})
	if err != nil {
		return err
	}

	c.drainer.Trigger(ctx)
	return nil
}

// Get returns the user's local copy of (t, id).
func (c *Client) Get(ctx context.Context, t models.EntityType, id string) (models.Entity, error) {
	rec, err := c.store.Get(ctx, t, id)
	if err != nil {
		return nil, err
	}
	if rec.UserID != c.userID {
		return nil, apperr.NotFound(string(t), id)
	}
	return decodeMirror(rec)
}

// List returns every local record of type t owned by the user.
func (c *Client) List(ctx context.Context, t models.EntityType) ([]models.Entity, error) {
	recs, err := c.store.Query(ctx, t, func(r *models.MirrorRecord) bool { return r.UserID == c.userID })
	if err != nil {
		return nil, err
	}
	out := make([]models.Entity, 0, len(recs))
	for _, rec := range recs {
		e, err := decodeMirror(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// Queue returns every queued mutation, abandoned ones included.
func (c *Client) Queue(ctx context.Context) ([]*models.QueueItem, error) {
	return c.store.QueueItems(ctx)
}

// Unsynced counts local records the server has not confirmed yet.
func (c *Client) Unsynced(ctx context.Context) (int, error) {
	return c.store.CountUnsynced(ctx)
}

// Sync drains the queue and then pulls the remote state.
func (c *Client) Sync(ctx context.Context) (syncqueue.Report, merge.Report, error) {
	drained, err := c.drainer.Drain(ctx)
	if err != nil {
		return drained, merge.Report{}, err
	}
	pulled, err := c.puller.Pull(ctx)
	return drained, pulled, err
}

// write puts the mirror unsynced and appends the matching queue item.
func (c *Client) write(ctx context.Context, tx *localstore.Tx, action models.Action, e models.Entity, now time.Time) error {
	rec, err := models.NewMirrorRecord(e, false)
	if err != nil {
		return apperr.Storage("encode mirror", err)
	}
	if err := tx.Put(ctx, rec); err != nil {
		return err
	}
	return tx.Enqueue(ctx, &models.QueueItem{
		Action:     action,
		EntityType: e.EntityType(),
		Payload:    rec.Payload,
		LocalID:    e.GetID(),
		Timestamp:  now,
	})
}

func (c *Client) remove(ctx context.Context, tx *localstore.Tx, e models.Entity, now time.Time) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return apperr.Storage("encode mirror", err)
	}
	if err := tx.Delete(ctx, e.EntityType(), e.GetID()); err != nil {
		return err
	}
	return tx.Enqueue(ctx, &models.QueueItem{
		Action:     models.ActionDelete,
		EntityType: e.EntityType(),
		Payload:    payload,
		LocalID:    e.GetID(),
		Timestamp:  now,
	})
}

// adjustLoan applies a payment delta to the parent loan and queues the
// loan's UPDATE as an item of its own.
func (c *Client) adjustLoan(ctx context.Context, tx *localstore.Tx, loanID string, delta models.Money, now time.Time) error {
	current, err := c.owned(ctx, tx, models.EntityLoan, loanID)
	if err != nil {
		return err
	}
	loan := current.(*models.Loan)
	if delta == 0 {
		return nil
	}
	loan.ApplyPayment(delta, models.DateOf(now))
	if loan.OutstandingAmount < 0 {
		return apperr.NewValidationError(fmt.Sprintf("payment exceeds the outstanding amount of loan %s", loanID))
	}
	loan.Stamp(now)
	return c.write(ctx, tx, models.ActionUpdate, loan, now)
}

func (c *Client) paymentsFor(ctx context.Context, tx *localstore.Tx, loanID string) ([]*models.LoanPayment, error) {
	recs, err := tx.Query(ctx, models.EntityLoanPayment, func(r *models.MirrorRecord) bool { return r.UserID == c.userID })
	if err != nil {
		return nil, err
	}
	var out []*models.LoanPayment
	for _, rec := range recs {
		e, err := decodeMirror(rec)
		if err != nil {
			return nil, err
		}
		if p := e.(*models.LoanPayment); p.LoanID == loanID {
			out = append(out, p)
		}
	}
	return out, nil
}

// owned loads (t, id) and hides records of other users.
func (c *Client) owned(ctx context.Context, tx *localstore.Tx, t models.EntityType, id string) (models.Entity, error) {
	if id == "" {
		return nil, apperr.NotFound(string(t), id)
	}
	rec, err := tx.Get(ctx, t, id)
	if err != nil {
		return nil, err
	}
	if rec.UserID != c.userID {
		return nil, apperr.NotFound(string(t), id)
	}
	return decodeMirror(rec)
}

func validate(e models.Entity) (models.Entity, error) {
	result := validation.Validate(e)
	if !result.IsValid {
		return nil, result.Err()
	}
	return result.Sanitized, nil
}

func decodeMirror(rec *models.MirrorRecord) (models.Entity, error) {
	e, err := rec.Entity()
	if err != nil {
		return nil, apperr.Storage("decode mirror", err)
	}
	return e, nil
}
