package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestSchedulerRunsAndStopsCleanly(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := NewScheduler(zap.NewNop())
	var runs atomic.Int32
	require.NoError(t, s.Add("tick", "@every 1s", func(ctx context.Context) error {
		runs.Add(1)
		return nil
	}))
	s.Start()

	assert.Eventually(t, func() bool { return runs.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)
	s.Stop()
}

func TestSchedulerRejectsBadSpec(t *testing.T) {
	s := NewScheduler(zap.NewNop())
	err := s.Add("broken", "not a schedule", func(ctx context.Context) error { return nil })
	assert.Error(t, err)
}

func TestRunNowPassesSchedulerContext(t *testing.T) {
	s := NewScheduler(zap.NewNop())
	var sawCtx bool
	s.RunNow("once", func(ctx context.Context) error {
		sawCtx = ctx != nil && ctx.Err() == nil
		return errors.New("logged, not returned")
	})
	assert.True(t, sawCtx)
	s.Stop()
}
