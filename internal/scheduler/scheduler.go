package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"

	"github.com/i474232898/weather-bot/internal/weather"
)

const (
	jobTimeout    = 30 * time.Second
	purgeInterval = 24 * time.Hour
)

// Refresher is satisfied by *weather.Service.
type Refresher interface {
	Refresh(ctx context.Context, city string, kind weather.Kind) (weather.Record, error)
}

// Config controls which jobs run and how often.
type Config struct {
	Cities          []string
	RefreshInterval time.Duration
	// Retention is how long records are kept before Purge reclaims them.
	Retention time.Duration
}

// Scheduler keeps configured cities warm in the cache and reclaims old records.
type Scheduler struct {
	scheduler *gocron.Scheduler
	refresher Refresher
	purger    weather.Purger
	cfg       Config
	now       func() time.Time
	log       zerolog.Logger
}

// New creates a new Scheduler. purger may be nil when the cache reclaims storage by itself.
func New(cfg Config, refresher Refresher, purger weather.Purger, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		refresher: refresher,
		purger:    purger,
		cfg:       cfg,
		now:       time.Now,
		log:       log.With().Str("component", "scheduler").Logger(),
	}
}

// Start schedules the periodic jobs and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if len(s.cfg.Cities) == 0 {
		s.log.Info().Msg("no warm cities configured; warm-up not scheduled")
	} else {
		interval := s.cfg.RefreshInterval
		if interval <= 0 {
			interval = 3 * time.Hour
		}
		if _, err := s.scheduler.Every(interval).Do(func() { s.Warmup(context.Background()) }); err != nil {
			return err
		}
	}

	if s.purger != nil && s.cfg.Retention > 0 {
		if _, err := s.scheduler.Every(purgeInterval).Do(func() { s.Purge(context.Background()) }); err != nil {
			return err
		}
	}

	s.scheduler.StartAsync()
	return nil
}

// Warmup refreshes current weather and the forecast of every configured city.
func (s *Scheduler) Warmup(ctx context.Context) {
	s.log.Info().Int("cities", len(s.cfg.Cities)).Msg("running cache warm-up")

	var wg sync.WaitGroup
	for _, city := range s.cfg.Cities {
		for _, kind := range []weather.Kind{weather.KindCurrent, weather.KindWeekly} {
			city, kind := city, kind
			wg.Add(1)
			go func() {
				defer wg.Done()

				ctx, cancel := context.WithTimeout(ctx, jobTimeout)
				defer cancel()

				if _, err := s.refresher.Refresh(ctx, city, kind); err != nil {
					s.log.Warn().Err(err).Str("city", city).Str("kind", string(kind)).Msg("warm-up refresh failed")
				}
			}()
		}
	}
	wg.Wait()
	s.log.Info().Msg("cache warm-up completed")
}

// Purge removes records older than the retention period.
func (s *Scheduler) Purge(ctx context.Context) {
	if s.purger == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	before := s.now().Add(-s.cfg.Retention)
	n, err := s.purger.Purge(ctx, before)
	if err != nil {
		s.log.Error().Err(err).Msg("purge failed")
		return
	}
	s.log.Info().Int64("removed", n).Time("before", before).Msg("purged old records")
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
