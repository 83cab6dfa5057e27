package evaluation

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerRejectsBadSpec(t *testing.T) {
	_, err := NewScheduler("every now and then", RunnerFunc(func(context.Context) error { return nil }), 0)
	assert.Error(t, err)
}

func TestSchedulerRunsBatch(t *testing.T) {
	var runs atomic.Int32
	s, err := NewScheduler("@every 1s", RunnerFunc(func(ctx context.Context) error {
		runs.Add(1)
		return errors.New("logged, not fatal")
	}), time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Entries())

	s.Start()
	require.Eventually(t, func() bool { return runs.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}
