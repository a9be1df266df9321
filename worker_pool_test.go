package ufo

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerPool_RunsAndDrains(t *testing.T) {
	wp := newWorkerPool(4)

	var ran atomic.Int64
	for range 100 {
		require.NoError(t, wp.Submit(t.Context(), func() { ran.Add(1) }))
	}
	wp.Close()
	assert.Equal(t, int64(100), ran.Load())

	// Close is idempotent and rejects further work.
	wp.Close()
	assert.ErrorIs(t, wp.Submit(t.Context(), func() {}), errPoolClosed)
}

func TestWorkerPool_SubmitHonorsContext(t *testing.T) {
	wp := newWorkerPool(1)
	block := make(chan struct{})
	started := make(chan struct{})

	require.NoError(t, wp.Submit(t.Context(), func() {
		close(started)
		<-block
	}))
	<-started
	// Fill the queue.
	for range 2 {
		require.NoError(t, wp.Submit(t.Context(), func() {}))
	}

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	assert.ErrorIs(t, wp.Submit(ctx, func() {}), context.Canceled)

	close(block)
	wp.Close()
}
