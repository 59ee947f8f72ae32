package lunar

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type recorder struct {
	mu        sync.Mutex
	published []Descriptor
}

func (r *recorder) Publish(d Descriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.published = append(r.published, d)
}

func (r *recorder) Phases() []Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	phases := make([]Phase, len(r.published))
	for i, d := range r.published {
		phases[i] = d.Phase
	}
	return phases
}

func TestScheduler_PublishesOnPhaseChangeOnly(t *testing.T) {
	clock := &fakeClock{now: Epoch}
	rec := &recorder{}
	s := NewScheduler("@every 1h", rec.Publish, zaptest.NewLogger(t), WithClock(clock.Now))

	s.Refresh()
	clock.Set(daysAfterEpoch(1))
	s.Refresh()
	clock.Set(daysAfterEpoch(3))
	s.Refresh()
	clock.Set(daysAfterEpoch(3.5))
	s.Refresh()
	clock.Set(daysAfterEpoch(7))
	s.Refresh()

	assert.Equal(t, []Phase{New, WaxingCrescent, FirstQuarter}, rec.Phases())
	assert.Equal(t, FirstQuarter, s.Current().Phase)
}

func TestScheduler_CurrentBeforeFirstRefresh(t *testing.T) {
	clock := &fakeClock{now: daysAfterEpoch(14)}
	s := NewScheduler("", nil, nil, WithClock(clock.Now))

	assert.Equal(t, Full, s.Current().Phase)
	assert.Equal(t, DefaultRefreshSpec, s.spec)
}

func TestScheduler_StartPublishesImmediately(t *testing.T) {
	clock := &fakeClock{now: daysAfterEpoch(21)}
	rec := &recorder{}
	s := NewScheduler("@every 1h", rec.Publish, zaptest.NewLogger(t), WithClock(clock.Now))

	require.NoError(t, s.Start())
	s.Stop()

	assert.Equal(t, []Phase{LastQuarter}, rec.Phases())
}

func TestScheduler_RefreshesOnSchedule(t *testing.T) {
	clock := &fakeClock{now: Epoch}
	rec := &recorder{}
	s := NewScheduler("@every 1s", rec.Publish, zaptest.NewLogger(t), WithClock(clock.Now))

	require.NoError(t, s.Start())
	defer s.Stop()

	clock.Set(daysAfterEpoch(14))
	assert.Eventually(t, func() bool {
		return len(rec.Phases()) == 2
	}, 5*time.Second, 50*time.Millisecond)
	assert.Equal(t, []Phase{New, Full}, rec.Phases())
	assert.Equal(t, Full, s.Current().Phase)
}

func TestScheduler_InvalidSpec(t *testing.T) {
	s := NewScheduler("every now and then", nil, zaptest.NewLogger(t))
	assert.Error(t, s.Start())
}
