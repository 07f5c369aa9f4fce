package offline

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Pinger checks whether the remote API is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Scheduler runs the background jobs of the client: a connectivity probe
// that drains the queue when the API comes back, and a periodic pull
// followed by a drain.
type Scheduler struct {
	cron    *cron.Cron
	pinger  Pinger
	drainer Drainer
	puller  Puller
	online  atomic.Bool
	logger  zerolog.Logger
}

func NewScheduler(pinger Pinger, drainer Drainer, puller Puller, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		pinger:  pinger,
		drainer: drainer,
		puller:  puller,
		logger:  logger.With().Str("component", "scheduler").Logger(),
	}
}

// Start registers the jobs and starts the cron runner. The first probe runs
// right away so a drain is not delayed by a full probe interval.
func (s *Scheduler) Start(ctx context.Context, probeInterval, pullInterval time.Duration) error {
	if _, err := s.cron.AddFunc(every(probeInterval), func() { s.Probe(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule probe: %w", err)
	}
	if _, err := s.cron.AddFunc(every(pullInterval), func() { s.PullNow(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule pull: %w", err)
	}
	s.Probe(ctx)
	s.cron.Start()
	s.logger.Info().Dur("probe_interval", probeInterval).Dur("pull_interval", pullInterval).Msg("scheduler started")
	return nil
}

// Stop stops scheduling and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) Online() bool {
	return s.online.Load()
}

// Probe pings the API and triggers a drain on an offline -> online
// transition.
func (s *Scheduler) Probe(ctx context.Context) {
	err := s.pinger.Ping(ctx)
	online := err == nil
	was := s.online.Swap(online)

	switch {
	case online && !was:
		s.logger.Info().Msg("connectivity restored")
		s.drainer.Trigger(ctx)
	case !online && was:
		s.logger.Warn().Err(err).Msg("connectivity lost")
	}
}

// PullNow pulls and then drains, skipping both while offline.
func (s *Scheduler) PullNow(ctx context.Context) {
	if !s.Online() {
		return
	}
	if _, err := s.puller.Pull(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("scheduled pull failed")
	}
	s.drainer.Trigger(ctx)
}

func every(d time.Duration) string {
	if d < time.Second {
		d = time.Second
	}
	return "@every " + d.String()
}
