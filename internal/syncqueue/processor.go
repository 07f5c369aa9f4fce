// Package syncqueue drains the local mutation queue into the remote API.
//
// Each queue item moves pending -> syncing -> removed on success, or to
// failed with a bumped retry count. A failed item becomes eligible again
// once its backoff window has passed and is abandoned at MaxRetries.
// Items for one entity id are always sent one at a time in queue order;
// different ids are sent concurrently up to the worker limit.
package syncqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prudhvinik1/ledgersync/internal/apperr"
	"github.com/prudhvinik1/ledgersync/internal/localstore"
	"github.com/prudhvinik1/ledgersync/internal/models"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkers bounds the remote calls in flight during a drain.
const DefaultWorkers = 4

// Sender makes the one remote call a queue item maps to. CREATE and UPDATE
// return the record as the server stored it.
type Sender interface {
	Send(ctx context.Context, item *models.QueueItem) (models.Entity, error)
}

type Options struct {
	Workers    int
	Notifier   Notifier
	Registerer prometheus.Registerer
	Logger     zerolog.Logger
	Now        func() time.Time
}

type Processor struct {
	store    *localstore.Store
	sender   Sender
	notifier Notifier
	workers  int
	now      func() time.Time
	logger   zerolog.Logger
	metrics  *metrics

	mu        sync.Mutex
	running   bool
	rerun     bool
	recovered bool
	wg        sync.WaitGroup
}

func New(store *localstore.Store, sender Sender, opts Options) *Processor {
	if opts.Workers < 1 || opts.Workers > DefaultWorkers {
		opts.Workers = DefaultWorkers
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger.With().Str("component", "syncqueue").Logger()
	if opts.Notifier == nil {
		opts.Notifier = LogNotifier{Logger: logger}
	}
	return &Processor{
		store:    store,
		sender:   sender,
		notifier: opts.Notifier,
		workers:  opts.Workers,
		now:      opts.Now,
		logger:   logger,
		metrics:  newMetrics(opts.Registerer),
	}
}

// Trigger starts a drain in the background and returns immediately. It is
// called after every local mutation and whenever connectivity comes back.
func (p *Processor) Trigger(ctx context.Context) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if _, err := p.Drain(context.WithoutCancel(ctx)); err != nil {
			p.logger.Error().Err(err).Msg("background drain failed")
		}
	}()
}

// Wait blocks until every triggered drain has returned.
func (p *Processor) Wait() {
	p.wg.Wait()
}

// Drain sends every eligible queue item and returns what happened. If a
// drain is already running, Drain asks it for one more pass and returns an
// empty report at once, so overlapping calls collapse into one drain.
//
// Only local storage failures are returned as errors; remote failures are
// recorded on the items and counted in the report.
func (p *Processor) Drain(ctx context.Context) (Report, error) {
	p.mu.Lock()
	if p.running {
		p.rerun = true
		p.mu.Unlock()
		return Report{}, nil
	}
	p.running = true
	p.mu.Unlock()

	var total Report
	for {
		report, err := p.drainOnce(ctx)
		total.Succeeded += report.Succeeded
		total.Failed += report.Failed
		total.Skipped = report.Skipped
		total.Deferred = report.Deferred

		p.mu.Lock()
		if err != nil || !p.rerun || ctx.Err() != nil {
			p.running = false
			p.rerun = false
			p.mu.Unlock()
			if err != nil {
				return total, err
			}
			break
		}
		p.rerun = false
		p.mu.Unlock()
	}

	if w, ok := total.Warning(); ok {
		p.notifier.Notify(w)
	}
	return total, nil
}

func (p *Processor) drainOnce(ctx context.Context) (Report, error) {
	if err := p.recoverOnce(ctx); err != nil {
		return Report{}, err
	}
	items, err := p.store.QueueItems(ctx)
	if err != nil {
		return Report{}, err
	}

	var (
		report  Report
		order   []string
		batches = make(map[string][]*models.QueueItem)
		blocked = make(map[string]bool)
		now     = p.now()
	)
	for _, item := range items {
		key := string(item.EntityType) + "/" + item.TargetID()
		switch {
		case Abandoned(item):
			report.Skipped++
			blocked[key] = true
		case blocked[key] || !Eligible(item, now):
			report.Deferred++
			blocked[key] = true
		default:
			if _, ok := batches[key]; !ok {
				order = append(order, key)
			}
			batches[key] = append(batches[key], item)
		}
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(p.workers)
	for _, key := range order {
		batch := batches[key]
		g.Go(func() error {
			r, err := p.processBatch(ctx, batch)
			mu.Lock()
			report.add(r)
			mu.Unlock()
			return err
		})
	}
	err = g.Wait()

	p.metrics.items.WithLabelValues("succeeded").Add(float64(report.Succeeded))
	p.metrics.items.WithLabelValues("failed").Add(float64(report.Failed))
	p.metrics.items.WithLabelValues("skipped").Add(float64(report.Skipped))
	p.metrics.items.WithLabelValues("deferred").Add(float64(report.Deferred))
	if depth, depthErr := p.store.QueueDepth(ctx); depthErr == nil {
		p.metrics.depth.Set(float64(depth))
	}

	p.logger.Debug().
		Int("succeeded", report.Succeeded).
		Int("failed", report.Failed).
		Int("skipped", report.Skipped).
		Int("deferred", report.Deferred).
		Msg("drain pass finished")
	return report, err
}

// recoverOnce turns items a crashed process left in "syncing" back into
// pending ones. No lock survives a crash, so they are not in flight.
func (p *Processor) recoverOnce(ctx context.Context) error {
	if p.recovered {
		return nil
	}
	n, err := p.store.RecoverSyncing(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		p.logger.Info().Int64("items", n).Msg("recovered interrupted queue items")
	}
	p.recovered = true
	return nil
}

// processBatch sends one id's items in order and stops at the first failure.
func (p *Processor) processBatch(ctx context.Context, batch []*models.QueueItem) (Report, error) {
	var report Report
	for i, item := range batch {
		remoteID, ok, err := p.process(ctx, item)
		if err != nil {
			return report, err
		}
		if !ok {
			report.Failed++
			report.Deferred += len(batch) - i - 1
			return report, nil
		}
		report.Succeeded++
		for _, later := range batch[i+1:] {
			if later.LocalID == item.LocalID && remoteID != later.TargetID() {
				later.RemoteID = remoteID
			}
		}
	}
	return report, nil
}

// process sends one item. It returns the id the server knows the entity by
// and whether the item was synced.
func (p *Processor) process(ctx context.Context, item *models.QueueItem) (string, bool, error) {
	log := p.logger.With().
		Int64("queue_seq", item.Seq).
		Str("action", string(item.Action)).
		Str("entity_type", string(item.EntityType)).
		Str("entity_id", item.TargetID()).
		Logger()

	if err := p.store.MarkSyncing(ctx, item.Seq, p.now()); err != nil {
		return "", false, err
	}

	start := time.Now()
	entity, err := p.sender.Send(ctx, item)
	p.metrics.remoteCall.WithLabelValues(string(item.Action), callStatus(err)).Observe(time.Since(start).Seconds())

	if err != nil && item.Action == models.ActionDelete && apperr.IsNotFound(err) {
		log.Debug().Msg("already deleted remotely")
		err = nil
	}
	if err != nil {
		retryCount := item.RetryCount + 1
		if !apperr.Retryable(err) {
			retryCount = MaxRetries
		}
		ev := log.Warn()
		if retryCount >= MaxRetries {
			ev = log.Error()
		}
		ev.Err(err).Int("retry_count", retryCount).Msg("queue item failed")
		return "", false, p.store.MarkFailed(ctx, item.Seq, retryCount, err.Error(), p.now())
	}

	remoteID, err := p.complete(ctx, item, entity)
	if err != nil {
		return "", false, err
	}
	log.Debug().Msg("queue item synced")
	return remoteID, true, nil
}

// complete removes a sent item and reconciles the mirror with the server's
// copy. The mirror keeps its local payload while more mutations for the id
// are queued; otherwise it takes the server's record and is marked synced.
// Only a CREATE can change the id.
func (p *Processor) complete(ctx context.Context, item *models.QueueItem, stored models.Entity) (string, error) {
	id := item.TargetID()
	serverID := id
	if item.Action == models.ActionCreate && stored != nil && stored.GetID() != "" {
		serverID = stored.GetID()
	}

	err := p.store.WithTx(ctx, func(tx *localstore.Tx) error {
		if err := tx.RemoveQueueItem(ctx, item.Seq); err != nil {
			return err
		}
		if item.Action == models.ActionDelete || stored == nil {
			return nil
		}
		stored.SetID(serverID)
		if serverID != id {
			if err := tx.RewriteRemoteID(ctx, item.EntityType, item.LocalID, serverID); err != nil {
				return err
			}
		}

		current, err := tx.Get(ctx, item.EntityType, id)
		if apperr.IsNotFound(err) {
			// deleted locally while in flight; its DELETE is queued
			return nil
		}
		if err != nil {
			return err
		}
		pending, err := tx.PendingForEntity(ctx, item.EntityType, serverID)
		if err != nil {
			return err
		}

		if pending > 0 {
			if serverID == id {
				return nil
			}
			return moveMirror(ctx, tx, current, serverID)
		}

		if stored.GetUserID() == "" {
			stored.SetUserID(current.UserID)
		}
		rec, err := models.NewMirrorRecord(stored, true)
		if err != nil {
			return apperr.Storage("encode mirror", err)
		}
		if serverID != id {
			if err := tx.Delete(ctx, item.EntityType, id); err != nil {
				return err
			}
		}
		return tx.Put(ctx, rec)
	})
	if err != nil {
		return "", err
	}
	return serverID, nil
}

// moveMirror re-keys a mirror to the server id and keeps its local payload.
func moveMirror(ctx context.Context, tx *localstore.Tx, current *models.MirrorRecord, serverID string) error {
	local, err := current.Entity()
	if err != nil {
		return apperr.Storage("decode mirror", err)
	}
	local.SetID(serverID)
	payload, err := json.Marshal(local)
	if err != nil {
		return apperr.Storage("encode mirror", fmt.Errorf("failed to encode %s: %w", current.EntityType, err))
	}
	return tx.ReplaceID(ctx, current.EntityType, current.ID, serverID, payload)
}

func callStatus(err error) string {
	switch {
	case err == nil:
		return "ok"
	case apperr.IsValidationError(err):
		return "invalid"
	case apperr.IsNotFound(err):
		return "not_found"
	}
	return "transport"
}
