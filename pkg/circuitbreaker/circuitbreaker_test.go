package circuitbreaker

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBroker = errors.New("broker unreachable")

// fakeClock 手动推进的时钟
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newBreaker(clock *fakeClock) *CircuitBreaker {
	return NewCircuitBreaker("notifier", Config{
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(c Counts) bool { return c.ConsecutiveFailures >= 3 },
		Now:         clock.Now,
	})
}

func fail() error    { return errBroker }
func succeed() error { return nil }

func TestCircuitBreaker_ClosedCountsFailures(t *testing.T) {
	cb := newBreaker(newFakeClock())

	assert.NoError(t, cb.Execute(succeed))
	assert.ErrorIs(t, cb.Execute(fail), errBroker)
	assert.ErrorIs(t, cb.Execute(fail), errBroker)

	assert.Equal(t, StateClosed, cb.State())
	counts := cb.Counts()
	assert.EqualValues(t, 3, counts.Requests)
	assert.EqualValues(t, 2, counts.ConsecutiveFailures)
	assert.InDelta(t, 2.0/3.0, counts.FailureRate(), 0.001)

	// 成功清零连续失败
	assert.NoError(t, cb.Execute(succeed))
	assert.Zero(t, cb.Counts().ConsecutiveFailures)
}

func TestCircuitBreaker_OpensAndRejects(t *testing.T) {
	cb := newBreaker(newFakeClock())

	for i := 0; i < 3; i++ {
		_ = cb.Execute(fail)
	}
	require.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(func() error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrOpenState)
	assert.False(t, called, "打开状态不应调用下游")
}

func TestCircuitBreaker_HalfOpenRecovers(t *testing.T) {
	clock := newFakeClock()
	cb := newBreaker(clock)
	for i := 0; i < 3; i++ {
		_ = cb.Execute(fail)
	}

	clock.Advance(31 * time.Second)
	assert.Equal(t, StateHalfOpen, cb.State())

	assert.NoError(t, cb.Execute(succeed))
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	clock := newFakeClock()
	cb := newBreaker(clock)
	for i := 0; i < 3; i++ {
		_ = cb.Execute(fail)
	}

	clock.Advance(31 * time.Second)
	assert.ErrorIs(t, cb.Execute(fail), errBroker)
	assert.Equal(t, StateOpen, cb.State())
	assert.ErrorIs(t, cb.Execute(succeed), ErrOpenState)
}

func TestCircuitBreaker_HalfOpenLimitsProbes(t *testing.T) {
	clock := newFakeClock()
	cb := newBreaker(clock)
	for i := 0; i < 3; i++ {
		_ = cb.Execute(fail)
	}
	clock.Advance(31 * time.Second)

	// 探测请求未返回前，第二个请求被拒绝
	var inner error
	err := cb.Execute(func() error {
		inner = cb.Execute(succeed)
		return nil
	})
	assert.NoError(t, err)
	assert.ErrorIs(t, inner, ErrOpenState)
}

func TestCircuitBreaker_StateChangeCallback(t *testing.T) {
	clock := newFakeClock()
	cb := newBreaker(clock)

	var transitions []string
	cb.SetStateChangeCallback(func(name string, from, to State) {
		assert.Equal(t, "notifier", name)
		transitions = append(transitions, from.String()+"->"+to.String())
	})

	for i := 0; i < 3; i++ {
		_ = cb.Execute(fail)
	}
	clock.Advance(31 * time.Second)
	_ = cb.Execute(succeed)

	assert.Equal(t, []string{"CLOSED->OPEN", "OPEN->HALF_OPEN", "HALF_OPEN->CLOSED"}, transitions)
}

func TestCircuitBreaker_IntervalResetsCounts(t *testing.T) {
	clock := newFakeClock()
	cb := NewCircuitBreaker("notifier", Config{
		Interval:    10 * time.Second,
		ReadyToTrip: func(c Counts) bool { return c.TotalFailures >= 3 },
		Now:         clock.Now,
	})

	_ = cb.Execute(fail)
	_ = cb.Execute(fail)
	clock.Advance(11 * time.Second)
	_ = cb.Execute(fail)

	assert.Equal(t, StateClosed, cb.State())
	assert.EqualValues(t, 1, cb.Counts().TotalFailures)
}

func TestCircuitBreaker_Defaults(t *testing.T) {
	cb := NewCircuitBreaker("defaults", Config{})
	for i := 0; i < 4; i++ {
		_ = cb.Execute(fail)
	}
	assert.Equal(t, StateClosed, cb.State())
	_ = cb.Execute(fail)
	assert.Equal(t, StateOpen, cb.State())
	assert.Equal(t, "defaults", cb.Name())
}
