package health

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProber struct {
	name    string
	healthy bool
	calls   atomic.Int64
}

func (f *fakeProber) Name() string { return f.name }
func (f *fakeProber) IsAvailable(ctx context.Context, deadline time.Time) bool {
	f.calls.Add(1)
	return f.healthy
}

func TestPollerPopulatesCacheBeforeStartReturns(t *testing.T) {
	p1 := &fakeProber{name: "B1", healthy: true}
	p2 := &fakeProber{name: "B2", healthy: false}
	p := New([]Prober{p1, p2}, time.Hour, time.Minute, time.Second, nil)

	p.Start(context.Background())
	defer p.Stop()

	healthy, known := p.Healthy("B1")
	require.True(t, known)
	assert.True(t, healthy)

	healthy, known = p.Healthy("B2")
	require.True(t, known)
	assert.False(t, healthy)
}

func TestPollerUnknownBackendReportsUnknown(t *testing.T) {
	p := New(nil, time.Hour, time.Minute, time.Second, nil)
	p.Start(context.Background())
	defer p.Stop()

	_, known := p.Healthy("nonexistent")
	assert.False(t, known)
}

func TestPollerEntryExpiresAfterTTL(t *testing.T) {
	p1 := &fakeProber{name: "B1", healthy: true}
	p := New([]Prober{p1}, time.Hour, 10*time.Millisecond, time.Second, nil)

	p.Start(context.Background())
	defer p.Stop()

	_, known := p.Healthy("B1")
	require.True(t, known)

	time.Sleep(30 * time.Millisecond)
	_, known = p.Healthy("B1")
	assert.False(t, known, "entry should expire after ttl")
}

func TestPollerReplacesResultsOnSubsequentPolls(t *testing.T) {
	p1 := &fakeProber{name: "B1", healthy: true}
	p := New([]Prober{p1}, 10*time.Millisecond, time.Hour, time.Second, nil)

	p.Start(context.Background())
	defer p.Stop()

	p1.healthy = false
	time.Sleep(50 * time.Millisecond)

	healthy, known := p.Healthy("B1")
	require.True(t, known)
	assert.False(t, healthy)
	assert.GreaterOrEqual(t, p1.calls.Load(), int64(2))
}
