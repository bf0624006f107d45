package breaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claudette-ai/claudette/internal/model"
)

func TestClosedToOpenOnFiveConsecutiveFailures(t *testing.T) {
	b := New("b1", DefaultConfig(), nil)
	now := time.Now()

	for i := 0; i < 4; i++ {
		require.True(t, b.Allow(now))
		b.RecordFailure(10, now)
		require.Equal(t, model.BreakerClosed, b.State(), "breaker should stay closed before the 5th failure")
	}

	require.True(t, b.Allow(now))
	b.RecordFailure(10, now)
	assert.Equal(t, model.BreakerOpen, b.State(), "5th consecutive failure must trip the breaker")
}

func TestOpenAdmitsNoCallsBeforeResetDelay(t *testing.T) {
	b := New("b1", DefaultConfig(), nil)
	now := time.Now()
	for i := 0; i < 5; i++ {
		b.RecordFailure(10, now)
	}
	require.Equal(t, model.BreakerOpen, b.State())

	assert.False(t, b.Allow(now.Add(1*time.Second)), "Open breaker must reject calls before reset_ms elapses")
	assert.False(t, b.Allow(now.Add(29*time.Second)))
}

func TestProgressiveResetMonotonic(t *testing.T) {
	cfg := DefaultConfig()
	b1 := New("b1", cfg, nil)
	now := time.Now()
	for i := 0; i < 6; i++ {
		b1.RecordFailure(10, now)
	}
	d1 := b1.resetDelay()

	b2 := New("b2", cfg, nil)
	for i := 0; i < 10; i++ {
		b2.RecordFailure(10, now)
	}
	d2 := b2.resetDelay()

	assert.LessOrEqual(t, d1, d2)
	assert.LessOrEqual(t, d2, 30*time.Minute)
}

func TestReadyTracksResetWindow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BaseReset = 10 * time.Millisecond
	b := New("b1", cfg, nil)
	now := time.Now()

	assert.True(t, b.Ready(now), "a closed breaker is always ready")

	for i := 0; i < 5; i++ {
		b.RecordFailure(10, now)
	}
	require.Equal(t, model.BreakerOpen, b.State())
	assert.False(t, b.Ready(now), "an open breaker is not ready before its reset delay")
	assert.True(t, b.Ready(now.Add(20*time.Millisecond)), "an open breaker becomes ready once the reset delay elapses")
}

func TestHalfOpenSuccessCloses(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BaseReset = 10 * time.Millisecond
	b := New("b1", cfg, nil)
	now := time.Now()
	for i := 0; i < 5; i++ {
		b.RecordFailure(10, now)
	}
	require.Equal(t, model.BreakerOpen, b.State())

	later := now.Add(20 * time.Millisecond)
	require.True(t, b.Allow(later), "breaker should admit a probe once reset_ms has elapsed")
	require.Equal(t, model.BreakerHalfOpen, b.State())

	b.RecordSuccess(5, later)
	assert.Equal(t, model.BreakerClosed, b.State())
}

func TestHalfOpenFailureReopens(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BaseReset = 10 * time.Millisecond
	b := New("b1", cfg, nil)
	now := time.Now()
	for i := 0; i < 5; i++ {
		b.RecordFailure(10, now)
	}
	later := now.Add(20 * time.Millisecond)
	require.True(t, b.Allow(later))
	require.Equal(t, model.BreakerHalfOpen, b.State())

	b.RecordFailure(10, later)
	assert.Equal(t, model.BreakerOpen, b.State())
}
