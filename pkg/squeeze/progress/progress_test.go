package progress

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestCompleted_NeverBlocks(t *testing.T) {
	t.Parallel()

	// No renderer is running, so nothing drains the notify channel.
	o := New(Options{Total: 1000})

	done := make(chan struct{})
	go func() {
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					o.Completed()
				}
			}()
		}
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Completed blocked")
	}
	assert.Equal(t, 1000, o.Snapshot().Done)
}

func TestObserver_NonInteractive(t *testing.T) {
	t.Parallel()

	out := &syncBuffer{}
	o := New(Options{Label: "image", Total: 4, Writer: out, Interval: 10 * time.Millisecond})
	o.Start()

	for i := 0; i < 4; i++ {
		o.Completed()
	}
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "image: 4/4")
	}, 2*time.Second, 5*time.Millisecond)

	o.Finish()
	o.Finish()

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Contains(t, lines[len(lines)-1], "image: 4/4 (100.0%)")
	assert.NotContains(t, lines[len(lines)-1], "ETA")
}

func TestObserver_Interactive(t *testing.T) {
	t.Parallel()

	out := &syncBuffer{}
	o := New(Options{Label: "video", Total: 3, Writer: out, Interactive: true})
	o.Start()
	o.Completed()
	o.Completed()
	o.Completed()
	o.Finish()

	assert.Contains(t, out.String(), "video")
	assert.Contains(t, out.String(), "3/3")
	assert.Equal(t, 3, o.Snapshot().Done)
}

func TestObserver_FinishWithoutStart(t *testing.T) {
	t.Parallel()

	out := &syncBuffer{}
	o := New(Options{Label: "doc", Total: 2, Writer: out})
	o.Completed()
	o.Finish()

	assert.Contains(t, out.String(), "doc: 1/2 (50.0%)")
}

func TestCompute(t *testing.T) {
	t.Parallel()

	s := compute(10, 40, 5*time.Second)
	assert.Equal(t, 10, s.Done)
	assert.InDelta(t, 25.0, s.Percent, 1e-9)
	assert.InDelta(t, 2.0, s.Rate, 1e-9)
	assert.Equal(t, 15*time.Second, s.ETA)
	assert.Equal(t, "10/40 (25.0%) 2.0/s ETA 15s", s.String())

	zero := compute(0, 0, 0)
	assert.Zero(t, zero.Percent)
	assert.Zero(t, zero.Rate)
	assert.Zero(t, zero.ETA)
}

func TestFormatETA(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, ""},
		{-time.Second, ""},
		{400 * time.Millisecond, "0s"},
		{45 * time.Second, "45s"},
		{2*time.Minute + 5*time.Second, "2m5s"},
		{time.Hour + 30*time.Second, "1h0m30s"},
		{3 * time.Hour, "3h0m"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatETA(tt.in), "FormatETA(%s)", tt.in)
	}
}

func TestIsTerminal(t *testing.T) {
	t.Parallel()

	assert.False(t, IsTerminal(&bytes.Buffer{}))
}
