package ufo

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/hupe1980/ufo/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBasicMetricsCollector(t *testing.T) {
	ctx := t.Context()
	metrics := &BasicMetricsCollector{}
	inst := newInstance(t, WithMetricsCollector(metrics), WithSynchronousPopulation())

	failing := testutil.NewFailingSource(testutil.Identity(10000), 9999)
	obj, err := inst.CreateObject(ctx, Config{Source: failing})
	require.NoError(t, err)

	readInt(t, obj, 0)
	readInt(t, obj, 1)
	_, err = obj.ReadAt(ctx, make([]byte, 4), 9999*4)
	require.Error(t, err)
	require.NoError(t, obj.Destroy(ctx))

	stats := metrics.GetStats()
	assert.Equal(t, int64(2), stats.PopulateCount)
	assert.Equal(t, int64(1), stats.PopulateErrors)
	assert.Equal(t, int64(obj.ChunkElements()), stats.PopulatedElements)
	assert.Equal(t, int64(1), stats.FaultHits)
	assert.Equal(t, int64(2), stats.FaultMisses)
	assert.Equal(t, int64(1), stats.ObjectsCreated)
	assert.Equal(t, int64(1), stats.ObjectsDestroyed)
	assert.Positive(t, stats.ReservedBytes)
}

func TestLogger_Events(t *testing.T) {
	ctx := t.Context()
	var buf bytes.Buffer
	logger := NewLogger(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	inst := newInstance(t, WithLogger(logger))

	obj, err := inst.CreateObject(ctx, Config{Source: testutil.Identity(100), Name: "ids"})
	require.NoError(t, err)
	readInt(t, obj, 1)
	require.NoError(t, obj.Destroy(ctx))

	out := buf.String()
	assert.Contains(t, out, `"msg":"object created"`)
	assert.Contains(t, out, `"name":"ids"`)
	assert.Contains(t, out, `"object":1`)
	assert.Contains(t, out, `"msg":"object destroyed"`)
}

func TestErrors(t *testing.T) {
	ce := &ConfigError{Field: "workers", Reason: "must be positive"}
	assert.ErrorIs(t, ce, ErrInvalidConfig)
	assert.Contains(t, ce.Error(), "workers")

	re := &ReservationError{Op: "reserve", Size: 4096, Err: assert.AnError}
	assert.ErrorIs(t, re, ErrReservation)
	assert.ErrorIs(t, re, assert.AnError)
}
