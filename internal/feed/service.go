package feed

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/magic-amatlan/backend/internal/events"
	"github.com/magic-amatlan/backend/internal/storage/models"
)

// DefaultRebuildInterval refreshes the feed so the window always starts today.
const DefaultRebuildInterval = time.Hour

// EventLister supplies the events listed in the feed.
type EventLister interface {
	List(ctx context.Context, f events.Filter) ([]models.Event, error)
}

// Snapshot is the currently served feed.
type Snapshot struct {
	Data         []byte
	ETag         string
	LastModified time.Time
}

// Service keeps a rendered feed in memory and rebuilds it on a schedule and
// whenever an event changes.
type Service struct {
	builder  *Builder
	events   EventLister
	interval time.Duration
	now      func() time.Time
	logger   *zap.Logger

	scheduler *gocron.Scheduler
	current   atomic.Pointer[Snapshot]

	// Serializes rebuilds.
	rebuildMu sync.Mutex
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// NewService creates a feed service. lister may be nil for a lunar-only feed.
func NewService(builder *Builder, lister EventLister, interval time.Duration, logger *zap.Logger, opts ...ServiceOption) *Service {
	if interval <= 0 {
		interval = DefaultRebuildInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		builder:   builder,
		events:    lister,
		interval:  interval,
		now:       time.Now,
		logger:    logger.Named("feed"),
		scheduler: gocron.NewScheduler(time.UTC),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start schedules periodic rebuilds. The first build runs immediately in the
// background; Current reports false until it completes.
func (s *Service) Start() error {
	s.scheduler.SingletonModeAll()
	if _, err := s.scheduler.Every(s.interval).Do(s.rebuildJob); err != nil {
		return fmt.Errorf("scheduling feed rebuild: %w", err)
	}
	s.scheduler.StartAsync()
	s.logger.Info("feed scheduler started", zap.Duration("interval", s.interval))
	return nil
}

// Stop halts the schedule.
func (s *Service) Stop() {
	s.scheduler.Stop()
	s.logger.Info("feed scheduler stopped")
}

func (s *Service) rebuildJob() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.Rebuild(ctx); err != nil {
		s.logger.Error("feed rebuild failed", zap.Error(err))
	}
}

// Rebuild renders the feed now. The snapshot is replaced only when its
// content changed, so an unchanged feed keeps its ETag and Last-Modified.
func (s *Service) Rebuild(ctx context.Context) error {
	s.rebuildMu.Lock()
	defer s.rebuildMu.Unlock()

	now := s.now()

	var evs []models.Event
	if s.events != nil {
		from := now
		var err error
		evs, err = s.events.List(ctx, events.Filter{From: &from})
		if err != nil {
			return fmt.Errorf("listing events for feed: %w", err)
		}
	}

	cal, err := s.builder.Build(now, evs)
	if err != nil {
		return err
	}

	if prev := s.current.Load(); prev != nil && prev.ETag == cal.ETag {
		return nil
	}
	s.current.Store(&Snapshot{
		Data:         cal.Data,
		ETag:         cal.ETag,
		LastModified: now.UTC().Truncate(time.Second),
	})
	s.logger.Info("feed rebuilt",
		zap.Int("onsets", cal.Onsets),
		zap.Int("events", cal.Events),
		zap.Int("bytes", len(cal.Data)),
		zap.String("etag", cal.ETag),
	)
	return nil
}

// Current returns the served snapshot, or false before the first build.
func (s *Service) Current() (*Snapshot, bool) {
	snap := s.current.Load()
	return snap, snap != nil
}

// EventChanged rebuilds the feed after an event mutation.
func (s *Service) EventChanged(change models.EventChange) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.Rebuild(ctx); err != nil {
		s.logger.Error("feed rebuild after event change failed",
			zap.String("kind", string(change.Kind)),
			zap.String("event", change.Event.ID),
			zap.Error(err),
		)
	}
}

// ServeHTTP serves the feed with ETag and Last-Modified validation.
func (s *Service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.Current()
	if !ok {
		w.Header().Set("Retry-After", "5")
		http.Error(w, "calendar is being generated", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.Header().Set("ETag", snap.ETag)
	w.Header().Set("Last-Modified", snap.LastModified.Format(http.TimeFormat))

	if match := r.Header.Get("If-None-Match"); match != "" {
		if match == snap.ETag || match == "*" {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	} else if since := r.Header.Get("If-Modified-Since"); since != "" {
		if t, err := http.ParseTime(since); err == nil && !snap.LastModified.After(t) {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}

	if r.Method == http.MethodHead {
		return
	}
	if _, err := w.Write(snap.Data); err != nil {
		s.logger.Debug("writing feed response", zap.Error(err))
	}
}

var _ events.Observer = (*Service)(nil)
