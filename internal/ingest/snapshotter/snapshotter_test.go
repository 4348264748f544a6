package snapshotter

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/perpfeed/marketfeed/internal/ingest"
	"github.com/perpfeed/marketfeed/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSource struct {
	fetchCount atomic.Int32
	fail       bool
}

func (f *fakeSource) Next(ctx context.Context) (ingest.SourceEvent, error) {
	<-ctx.Done()
	return ingest.SourceEvent{}, ctx.Err()
}

func (f *fakeSource) FetchSnapshot(ctx context.Context) (ingest.SnapshotEvent, error) {
	f.fetchCount.Add(1)
	if f.fail {
		return ingest.SnapshotEvent{}, fmt.Errorf("boom")
	}
	return ingest.SnapshotEvent{Block: 42}, nil
}

func TestSnapshotterDeliversOnCadence(t *testing.T) {
	src := &fakeSource{}
	cfg := DefaultConfig()
	cfg.Interval = 5 * time.Millisecond
	s := New(src, cfg, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()

	received := make(chan ingest.SnapshotEvent, 16)
	go s.Run(ctx, func(ev ingest.SnapshotEvent) { received <- ev })

	<-ctx.Done()
	require.NotEmpty(t, received)
	ev := <-received
	assert.Equal(t, types.Block(42), ev.Block)
}

func TestSnapshotterSurvivesFetchFailures(t *testing.T) {
	src := &fakeSource{fail: true}
	cfg := DefaultConfig()
	cfg.Interval = 5 * time.Millisecond
	s := New(src, cfg, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	var calls int
	go s.Run(ctx, func(ev ingest.SnapshotEvent) { calls++ })
	<-ctx.Done()

	assert.Greater(t, int(src.fetchCount.Load()), 0)
}
