package worker

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	checks atomic.Int64
}

func (f *fakeSource) EnsureActiveSeason() bool {
	f.checks.Add(1)
	return false
}

func TestSeasonWatcherLifecycle(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	w := NewSeasonWatcher(&fakeSource{}, logger)

	assert.False(t, w.IsRunning())

	require.NoError(t, w.Start(context.Background()))
	assert.True(t, w.IsRunning())

	// starting twice is a no-op
	require.NoError(t, w.Start(context.Background()))
	assert.True(t, w.IsRunning())

	require.NoError(t, w.Stop())
	assert.False(t, w.IsRunning())

	// stopping twice is a no-op
	require.NoError(t, w.Stop())
}
