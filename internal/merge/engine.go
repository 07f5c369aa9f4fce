// Package merge pulls the authoritative remote state into the local store.
//
// The first pull on an installation replaces everything local with the
// server's copy. Later pulls merge record by record: unknown records are
// inserted, synced records are overwritten only by strictly newer remote
// versions, and records with local mutations still queued are left alone
// because the sync queue is their only writer.
//
// Conflicts are settled by updatedAt alone. Two devices editing the same
// record between pulls can silently lose one of the edits.
package merge

import (
	"context"
	"sync"
	"time"

	"github.com/prudhvinik1/ledgersync/internal/apperr"
	"github.com/prudhvinik1/ledgersync/internal/localstore"
	"github.com/prudhvinik1/ledgersync/internal/models"
	"github.com/rs/zerolog"
)

// Fetcher downloads one whole collection for the current user.
type Fetcher interface {
	FetchAll(ctx context.Context, t models.EntityType) ([]models.Entity, error)
}

type Report struct {
	FullResync bool `json:"fullResync"`
	Inserted   int  `json:"inserted"`
	Updated    int  `json:"updated"`
	// Kept counts remote records that did not replace the local copy.
	Kept int `json:"kept"`
	// Suppressed counts remote records dropped as duplicates of local
	// records, including ones dropped by an earlier pull.
	Suppressed int `json:"suppressed"`
	// Discarded counts queued local mutations thrown away by a full resync.
	Discarded int `json:"discarded"`
}

type Engine struct {
	store   *localstore.Store
	fetcher Fetcher
	logger  zerolog.Logger
	now     func() time.Time
	mu      sync.Mutex
}

func New(store *localstore.Store, fetcher Fetcher, logger zerolog.Logger) *Engine {
	return &Engine{
		store:   store,
		fetcher: fetcher,
		logger:  logger.With().Str("component", "merge").Logger(),
		now:     time.Now,
	}
}

// Pull runs a full resync until one has completed, and an incremental merge
// afterwards. Every collection is fetched before anything local changes, so
// a failed fetch leaves the store as it was.
func (e *Engine) Pull(ctx context.Context) (Report, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	done, err := e.store.MigrationComplete(ctx)
	if err != nil {
		return Report{}, err
	}
	remote, err := e.fetchAll(ctx)
	if err != nil {
		return Report{}, err
	}

	var report Report
	if done {
		report, err = e.incremental(ctx, remote)
	} else {
		report, err = e.fullResync(ctx, remote)
	}
	if err != nil {
		return Report{}, err
	}

	e.logger.Info().
		Bool("full_resync", report.FullResync).
		Int("inserted", report.Inserted).
		Int("updated", report.Updated).
		Int("kept", report.Kept).
		Int("suppressed", report.Suppressed).
		Int("discarded", report.Discarded).
		Msg("pull finished")
	return report, nil
}

func (e *Engine) fetchAll(ctx context.Context) (map[models.EntityType][]models.Entity, error) {
	remote := make(map[models.EntityType][]models.Entity, len(models.EntityTypes))
	for _, t := range models.EntityTypes {
		records, err := e.fetcher.FetchAll(ctx, t)
		if err != nil {
			return nil, err
		}
		remote[t] = records
	}
	return remote, nil
}

// fullResync drops every mirror and queued mutation and inserts the remote
// state wholesale.
func (e *Engine) fullResync(ctx context.Context, remote map[models.EntityType][]models.Entity) (Report, error) {
	report := Report{FullResync: true}
	err := e.store.WithTx(ctx, func(tx *localstore.Tx) error {
		discarded, err := tx.QueueDepth(ctx)
		if err != nil {
			return err
		}
		report.Discarded = discarded
		if err := tx.ClearAll(ctx); err != nil {
			return err
		}
		for _, t := range models.EntityTypes {
			for _, r := range remote[t] {
				if err := put(ctx, tx, r); err != nil {
					return err
				}
				report.Inserted++
			}
		}
		if err := tx.SetMigrationComplete(ctx, true); err != nil {
			return err
		}
		return tx.SetLastPullTimestamp(ctx, e.now())
	})
	if err != nil {
		return Report{}, err
	}
	if report.Discarded > 0 {
		e.logger.Warn().Int("discarded", report.Discarded).Msg("full resync discarded unsent local mutations")
	}
	return report, nil
}

func (e *Engine) incremental(ctx context.Context, remote map[models.EntityType][]models.Entity) (Report, error) {
	var report Report
	err := e.store.WithTx(ctx, func(tx *localstore.Tx) error {
		for _, t := range models.EntityTypes {
			if err := e.mergeType(ctx, tx, t, remote[t], &report); err != nil {
				return err
			}
		}
		return tx.SetLastPullTimestamp(ctx, e.now())
	})
	if err != nil {
		return Report{}, err
	}
	return report, nil
}

func (e *Engine) mergeType(ctx context.Context, tx *localstore.Tx, t models.EntityType, remote []models.Entity, report *Report) error {
	locals, err := tx.Query(ctx, t, nil)
	if err != nil {
		return err
	}
	byID := make(map[string]*models.MirrorRecord, len(locals))
	var unsynced []models.Entity
	for _, rec := range locals {
		byID[rec.ID] = rec
		if rec.Synced {
			continue
		}
		entity, err := rec.Entity()
		if err != nil {
			return apperr.Storage("decode mirror", err)
		}
		unsynced = append(unsynced, entity)
	}
	matched := make(map[string]bool)
	suppressed, err := tx.Suppressed(ctx, t)
	if err != nil {
		return err
	}

	for _, r := range remote {
		id := r.GetID()
		pending, err := tx.PendingForEntity(ctx, t, id)
		if err != nil {
			return err
		}

		if local, ok := byID[id]; ok {
			remoteAt := r.GetUpdatedAt().UTC().Truncate(time.Millisecond)
			if !local.Synced || pending > 0 || !remoteAt.After(local.UpdatedAt) {
				report.Kept++
				continue
			}
			if err := put(ctx, tx, r); err != nil {
				return err
			}
			report.Updated++
			continue
		}

		// deleted locally with the DELETE still queued
		if pending > 0 {
			report.Kept++
			continue
		}
		if suppressed[id] {
			report.Suppressed++
			continue
		}
		if dup := findDuplicate(unsynced, r, matched); dup != "" {
			if err := tx.Suppress(ctx, t, id, dup); err != nil {
				return err
			}
			matched[dup] = true
			report.Suppressed++
			e.logger.Debug().
				Str("entity_type", string(t)).
				Str("remote_id", id).
				Str("local_id", dup).
				Msg("remote record suppressed as duplicate")
			continue
		}
		if err := put(ctx, tx, r); err != nil {
			return err
		}
		report.Inserted++
	}
	return nil
}

// findDuplicate returns the id of the first unsynced local record that r
// duplicates. Each local record absorbs at most one remote record.
func findDuplicate(unsynced []models.Entity, r models.Entity, matched map[string]bool) string {
	for _, local := range unsynced {
		if matched[local.GetID()] {
			continue
		}
		if Duplicate(local, r) {
			return local.GetID()
		}
	}
	return ""
}

func put(ctx context.Context, tx *localstore.Tx, e models.Entity) error {
	rec, err := models.NewMirrorRecord(e, true)
	if err != nil {
		return apperr.Storage("encode mirror", err)
	}
	return tx.Put(ctx, rec)
}
