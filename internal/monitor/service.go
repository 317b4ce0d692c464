package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	rcron "github.com/robfig/cron/v3"
	"github.com/zxz-qa/deskwatch/internal/tracker"
)

// Service drives the fetch→diff loop on a fixed schedule and hands every
// count increase to OnIncrease. Fetch failures and a missing column are
// logged and absorbed; the next tick retries from scratch.
type Service struct {
	fetcher  tracker.Fetcher
	differ   *Differ
	schedule string
	log      *slog.Logger

	// OnIncrease fires for every Increased tick result.
	OnIncrease func(res DiffResult)

	cron   *rcron.Cron
	cancel context.CancelFunc
}

// NewService builds a monitor running on the given schedule. The schedule
// accepts either a bare duration ("5m") or a cron expression.
func NewService(fetcher tracker.Fetcher, differ *Differ, schedule string, log *slog.Logger) *Service {
	return &Service{
		fetcher:  fetcher,
		differ:   differ,
		schedule: schedule,
		log:      log.With("component", "monitor"),
	}
}

func (s *Service) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)

	spec := s.schedule
	if _, err := time.ParseDuration(spec); err == nil {
		spec = "@every " + spec
	}

	s.cron = rcron.New()
	if _, err := s.cron.AddFunc(spec, func() { s.tick(ctx) }); err != nil {
		return fmt.Errorf("bad check schedule %q: %w", s.schedule, err)
	}
	s.cron.Start()

	s.log.Info("monitoring started", "column", s.differ.Column(), "schedule", spec)
	return nil
}

func (s *Service) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	s.log.Info("monitoring stopped")
}

// tick runs one fetch→diff round. Exported effects go through OnIncrease
// only; everything else is logging.
func (s *Service) tick(ctx context.Context) {
	snap, err := s.fetcher.Fetch(ctx)
	if err != nil {
		s.log.Warn("fetch failed, skipping tick", "err", err)
		return
	}

	res := s.differ.Tick(snap)
	switch res.Kind {
	case ColumnMissing:
		// Configuration problem, not worth alerting the chat about.
		s.log.Warn("monitored column not found", "column", s.differ.Column())
	case Increased:
		s.log.Info("column count increased",
			"column", s.differ.Column(), "old", res.OldCount, "new", res.NewCount)
		if s.OnIncrease != nil {
			s.OnIncrease(res)
		}
	default:
		s.log.Debug("no change", "column", s.differ.Column(), "count", res.NewCount)
	}
}
