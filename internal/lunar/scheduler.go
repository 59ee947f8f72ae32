package lunar

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultRefreshSpec recomputes the current phase once a minute.
const DefaultRefreshSpec = "@every 1m"

// PublishFunc receives the current descriptor whenever the phase changes.
type PublishFunc func(Descriptor)

// Scheduler keeps the "current phase" up to date by recomputing it on a cron
// schedule. Subscribers are notified on start and on every phase change.
type Scheduler struct {
	cron    *cron.Cron
	spec    string
	now     func() time.Time
	publish PublishFunc
	logger  *zap.Logger

	current atomic.Pointer[Descriptor]

	// Serializes refreshes so Swap ordering matches clock ordering.
	refreshMu sync.Mutex
}

// SchedulerOption customizes a Scheduler.
type SchedulerOption func(*Scheduler)

// WithClock replaces time.Now as the scheduler's time source.
func WithClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) {
		s.now = now
	}
}

// NewScheduler creates a phase scheduler running on the given cron spec.
// An empty spec uses DefaultRefreshSpec; publish may be nil.
func NewScheduler(spec string, publish PublishFunc, logger *zap.Logger, opts ...SchedulerOption) *Scheduler {
	if spec == "" {
		spec = DefaultRefreshSpec
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		spec:    spec,
		now:     time.Now,
		publish: publish,
		logger:  logger.Named("lunar.scheduler"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start computes the current phase immediately and begins periodic refreshes.
func (s *Scheduler) Start() error {
	s.logger.Info("starting phase scheduler", zap.String("spec", s.spec))

	if _, err := s.cron.AddFunc(s.spec, s.Refresh); err != nil {
		return fmt.Errorf("scheduling phase refresh %q: %w", s.spec, err)
	}

	s.Refresh()
	s.cron.Start()
	return nil
}

// Stop halts the schedule and waits for a running refresh to finish.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping phase scheduler")
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("phase scheduler stopped")
}

// Current returns the most recently computed descriptor. Before the first
// refresh it computes one on demand without storing it.
func (s *Scheduler) Current() Descriptor {
	if d := s.current.Load(); d != nil {
		return *d
	}
	return ComputePhase(s.now())
}

// Refresh recomputes the current phase and publishes it if the phase changed.
func (s *Scheduler) Refresh() {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	d := ComputePhase(s.now())
	prev := s.current.Swap(&d)
	if prev != nil && prev.Phase == d.Phase {
		return
	}

	fields := []zap.Field{
		zap.String("phase", d.Phase.ID()),
		zap.Float64("age_days", d.AgeDays),
	}
	if prev != nil {
		fields = append(fields, zap.String("previous", prev.Phase.ID()))
	}
	s.logger.Info("moon phase changed", fields...)

	if s.publish != nil {
		s.publish(d)
	}
}
