package backoff

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPauser struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (p *recordingPauser) Pause(_ context.Context, delay time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.delays = append(p.delays, delay)
}

func TestNextStaysWithinBounds(t *testing.T) {
	t.Parallel()

	u := New("feed", 2*time.Second, 7*time.Second)
	for i := 0; i < 500; i++ {
		d := u.Next()
		require.GreaterOrEqual(t, d, 2*time.Second)
		require.LessOrEqual(t, d, 7*time.Second)
	}
}

func TestNewNormalizesBounds(t *testing.T) {
	t.Parallel()

	u := New("lookup", 5*time.Second, 3*time.Second)
	d := u.Next()
	assert.GreaterOrEqual(t, d, 3*time.Second)
	assert.LessOrEqual(t, d, 5*time.Second)

	zero := New("zero", -time.Second, 0)
	assert.Equal(t, time.Duration(0), zero.Next())
}

func TestWaitUsesPauser(t *testing.T) {
	t.Parallel()

	p := &recordingPauser{}
	u := New("feed", time.Second, time.Second, WithPauser(p))
	got := u.Wait(context.Background())

	assert.Equal(t, time.Second, got)
	assert.Equal(t, []time.Duration{time.Second}, p.delays)
}

func TestTimerPauserHonoursContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	TimerPauser{}.Pause(ctx, time.Minute)
	assert.Less(t, time.Since(start), time.Second)
}

func TestTimerPauserWaits(t *testing.T) {
	t.Parallel()

	start := time.Now()
	TimerPauser{}.Pause(context.Background(), 20*time.Millisecond)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}
