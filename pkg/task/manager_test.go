package task

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeriodicRunsUntilStopped(t *testing.T) {
	var runs int32
	p := NewPeriodic("sweeper", 5*time.Millisecond, func(ctx context.Context) {
		atomic.AddInt32(&runs, 1)
	})

	require.NoError(t, p.Start(context.Background()))
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&runs) >= 3 }, time.Second, time.Millisecond)
	require.NoError(t, p.Stop())

	after := atomic.LoadInt32(&runs)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, atomic.LoadInt32(&runs))
	assert.NoError(t, p.Stop())
}

func TestPeriodicRejectsZeroInterval(t *testing.T) {
	p := NewPeriodic("bad", 0, func(context.Context) {})
	assert.Error(t, p.Start(context.Background()))
}

func TestAdapter(t *testing.T) {
	var started, stopped bool
	a := &Adapter{
		TaskName:  "worker",
		StartFunc: func(context.Context) error { started = true; return nil },
		StopFunc:  func() error { stopped = true; return nil },
	}
	assert.Equal(t, "worker", a.Name())
	require.NoError(t, a.Start(context.Background()))
	require.NoError(t, a.Stop())
	assert.True(t, started)
	assert.True(t, stopped)
}
