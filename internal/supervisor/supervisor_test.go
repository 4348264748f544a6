package supervisor

import (
	"context"
	"testing"
	"time"

	"github.com/perpfeed/marketfeed/internal/batcher"
	"github.com/perpfeed/marketfeed/internal/book"
	"github.com/perpfeed/marketfeed/internal/errorsx"
	"github.com/perpfeed/marketfeed/internal/fanout"
	"github.com/perpfeed/marketfeed/internal/ingest"
	"github.com/perpfeed/marketfeed/internal/ingest/snapshotter"
	"github.com/perpfeed/marketfeed/internal/metrics"
	"github.com/perpfeed/marketfeed/internal/reducer"
	"github.com/perpfeed/marketfeed/internal/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

// fakeSource plays back a fixed queue of events, then blocks on ctx
// until cancelled, mimicking an idle upstream.
type fakeSource struct {
	events []ingest.SourceEvent
	i      int
}

func (f *fakeSource) Next(ctx context.Context) (ingest.SourceEvent, error) {
	if f.i < len(f.events) {
		ev := f.events[f.i]
		f.i++
		return ev, nil
	}
	<-ctx.Done()
	return ingest.SourceEvent{}, ctx.Err()
}

func (f *fakeSource) FetchSnapshot(ctx context.Context) (ingest.SnapshotEvent, error) {
	return ingest.SnapshotEvent{}, nil
}

func newTestSupervisor(t *testing.T, source ingest.EventSource, cfg Config) (*Supervisor, *book.Books) {
	t.Helper()
	books := book.NewBooks()
	b := batcher.New(batcher.DefaultConfig(), 0)
	r := reducer.New(books, zap.NewNop())
	gw, err := fanout.NewGateway(4, zap.NewNop(), nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(gw.Close)
	snapCfg := snapshotter.DefaultConfig()
	snapCfg.Interval = time.Hour
	snap := snapshotter.New(source, snapCfg, zap.NewNop())
	m := metrics.New(prometheus.NewRegistry())
	return New(source, b, r, gw, books, snap, m, cfg, zap.NewNop()), books
}

func TestSupervisorAppliesBlockThenShutsDownCleanly(t *testing.T) {
	src := &fakeSource{events: []ingest.SourceEvent{
		{Kind: ingest.EventDiff, Block: 1, Diff: ingest.Diff{
			Kind: ingest.DiffAdd, Coin: "ETH", Oid: 1, Side: types.Bid,
			Px: mustPx("100"), Sz: mustSz("5"),
		}},
		{Kind: ingest.EventBlockMarker, Block: 1},
	}}
	sup, books := newTestSupervisor(t, src, Config{InactivityTimeout: 2 * time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan int, 1)
	go func() { done <- sup.Run(ctx) }()

	assert.Eventually(t, func() bool {
		var found bool
		books.With("ETH", func(b *book.OrderBook) { found = b.Has(1) })
		return found
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case code := <-done:
		assert.Equal(t, 0, code)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after ctx cancellation")
	}
}

func TestSupervisorExitsOnHeartbeatExpiry(t *testing.T) {
	src := &fakeSource{}
	sup, _ := newTestSupervisor(t, src, Config{InactivityTimeout: 20 * time.Millisecond})

	done := make(chan int, 1)
	go func() { done <- sup.Run(context.Background()) }()

	select {
	case code := <-done:
		assert.Equal(t, errorsx.ExitCode(errorsx.CodeHeartbeatExpired), code)
	case <-time.After(time.Second):
		t.Fatal("Run did not exit on heartbeat expiry")
	}
}

func TestSupervisorExitsWithInvariantExitCodeOnFatalBatcherError(t *testing.T) {
	src := &fakeSource{events: []ingest.SourceEvent{
		// Block 0 is stale: the batcher's seed block is 0, so nothing
		// after it is ever ingestible at block 0.
		{Kind: ingest.EventDiff, Block: 0, Diff: ingest.Diff{Kind: ingest.DiffAdd, Coin: "ETH"}},
	}}
	sup, _ := newTestSupervisor(t, src, Config{InactivityTimeout: 2 * time.Second})

	done := make(chan int, 1)
	go func() { done <- sup.Run(context.Background()) }()

	select {
	case code := <-done:
		assert.Equal(t, errorsx.ExitCode(errorsx.CodeStaleBlock), code)
	case <-time.After(time.Second):
		t.Fatal("Run did not exit on fatal batcher error")
	}
}

func mustPx(s string) types.Px {
	p, err := types.ParsePx(s)
	if err != nil {
		panic(err)
	}
	return p
}

func mustSz(s string) types.Sz {
	z, err := types.ParseSz(s)
	if err != nil {
		panic(err)
	}
	return z
}
