package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestMockClockAdvance(t *testing.T) {
	t.Parallel()

	c := NewMockClock(epoch)
	assert.Equal(t, epoch, c.Now())

	c.Advance(1500 * time.Millisecond)
	assert.Equal(t, epoch.Add(1500*time.Millisecond), c.Now())
	assert.Equal(t, 1500*time.Millisecond, c.Since(epoch))
}

func TestMockTickerFiresOnInterval(t *testing.T) {
	t.Parallel()

	c := NewMockClock(epoch)
	tk := c.NewTicker(2 * time.Second)
	require.Equal(t, 1, c.Tickers())

	c.Advance(time.Second)
	select {
	case <-tk.C():
		t.Fatal("ticker fired before its interval elapsed")
	default:
	}

	c.Advance(time.Second)
	select {
	case got := <-tk.C():
		assert.Equal(t, epoch.Add(2*time.Second), got)
	default:
		t.Fatal("ticker did not fire at its interval")
	}
}

func TestMockTickerDropsTicksWhenBehind(t *testing.T) {
	t.Parallel()

	c := NewMockClock(epoch)
	tk := c.NewTicker(time.Second)

	c.Advance(time.Second)
	c.Advance(time.Second)
	c.Advance(time.Second)

	<-tk.C()
	select {
	case <-tk.C():
		t.Fatal("expected buffered ticks to be dropped")
	default:
	}
}

func TestMockTickerStop(t *testing.T) {
	t.Parallel()

	c := NewMockClock(epoch)
	tk := c.NewTicker(time.Second)
	tk.Stop()

	c.Advance(5 * time.Second)
	select {
	case <-tk.C():
		t.Fatal("stopped ticker fired")
	default:
	}

	tk.Reset(time.Second)
	c.Advance(time.Second)
	select {
	case <-tk.C():
	default:
		t.Fatal("reset ticker did not fire")
	}
}

func TestRealClock(t *testing.T) {
	t.Parallel()

	var c Clock = RealClock{}
	start := c.Now()
	assert.GreaterOrEqual(t, c.Since(start), time.Duration(0))

	tk := c.NewTicker(time.Millisecond)
	defer tk.Stop()
	select {
	case <-tk.C():
	case <-time.After(time.Second):
		t.Fatal("real ticker never fired")
	}
}
