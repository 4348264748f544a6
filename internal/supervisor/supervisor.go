// Package supervisor wires the three long-lived tasks spec §5 names —
// the Ingestor, the Snapshot task, and (indirectly, via transport/ws)
// the per-client tasks — and owns the heartbeat and exit-code decision
// from §4.5/§6. Modeled on the teacher's fx.Lifecycle OnStart/OnStop
// hook shape in cmd/marketdata/main.go, generalized here into a single
// blocking Run so the entrypoint can decide the process exit code.
package supervisor

import (
	"context"
	"sync"
	"time"

	"github.com/perpfeed/marketfeed/internal/batcher"
	"github.com/perpfeed/marketfeed/internal/book"
	"github.com/perpfeed/marketfeed/internal/errorsx"
	"github.com/perpfeed/marketfeed/internal/fanout"
	"github.com/perpfeed/marketfeed/internal/ingest"
	"github.com/perpfeed/marketfeed/internal/ingest/snapshotter"
	"github.com/perpfeed/marketfeed/internal/metrics"
	"github.com/perpfeed/marketfeed/internal/reducer"
	"go.uber.org/zap"
)

// Config controls the heartbeat bound from spec §4.5.
type Config struct {
	InactivityTimeout time.Duration // T_idle, default 5s
}

func DefaultConfig() Config {
	return Config{InactivityTimeout: 5 * time.Second}
}

// Supervisor drives the Ingestor task: pulling records from the Event
// Source, feeding the Batcher, applying completed blocks through the
// Reducer, and broadcasting the result through the Fan-out gateway. It
// also runs the Snapshot task and owns the heartbeat timer.
type Supervisor struct {
	source  ingest.EventSource
	batch   *batcher.Batcher
	reduce  *reducer.Reducer
	gateway *fanout.Gateway
	books   *book.Books
	snap    *snapshotter.Snapshotter
	metrics *metrics.Metrics
	cfg     Config
	log     *zap.Logger

	mu          sync.Mutex
	pendingSnap *ingest.SnapshotEvent
}

func New(
	source ingest.EventSource,
	batch *batcher.Batcher,
	reduce *reducer.Reducer,
	gateway *fanout.Gateway,
	books *book.Books,
	snap *snapshotter.Snapshotter,
	m *metrics.Metrics,
	cfg Config,
	log *zap.Logger,
) *Supervisor {
	return &Supervisor{
		source:  source,
		batch:   batch,
		reduce:  reduce,
		gateway: gateway,
		books:   books,
		snap:    snap,
		metrics: m,
		cfg:     cfg,
		log:     log,
	}
}

// Run blocks until ctx is cancelled or a fatal condition is reached,
// returning the process exit code per spec §6: 0 clean shutdown, 1
// inactivity heartbeat expired or channel failure, 2 snapshot
// divergence or invariant violation.
func (s *Supervisor) Run(ctx context.Context) int {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go s.snap.Run(runCtx, s.onSnapshot)

	events := make(chan ingest.SourceEvent)
	pumpErrs := make(chan error, 1)
	go s.pump(runCtx, events, pumpErrs)

	heartbeat := time.NewTimer(s.cfg.InactivityTimeout)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return 0
		case err := <-pumpErrs:
			s.log.Error("event source pump terminated", zap.Error(err))
			return errorsx.ExitCode(errorsx.CodeHeartbeatExpired)
		case <-heartbeat.C:
			s.log.Error("heartbeat expired, no record arrived within inactivity timeout",
				zap.Duration("timeout", s.cfg.InactivityTimeout))
			return errorsx.ExitCode(errorsx.CodeHeartbeatExpired)
		case ev := <-events:
			drainTimer(heartbeat)
			heartbeat.Reset(s.cfg.InactivityTimeout)
			if err := s.handle(ev); err != nil {
				s.log.Error("fatal error applying event", zap.Error(err))
				if code, ok := errorsx.CodeOf(err); ok {
					return errorsx.ExitCode(code)
				}
				return 1
			}
		}
	}
}

func drainTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}

// pump drives the Event Source's blocking Next call on its own
// goroutine so Run's select loop can multiplex it against the heartbeat
// timer and the snapshot task without either blocking the other.
func (s *Supervisor) pump(ctx context.Context, out chan<- ingest.SourceEvent, errs chan<- error) {
	for {
		ev, err := s.source.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			errs <- err
			return
		}
		select {
		case out <- ev:
		case <-ctx.Done():
			return
		}
	}
}

// onSnapshot is the Snapshot task's sink: it stashes the latest fetch
// for pairing with the earliest block both pipelines commit, per spec
// §4.5.
func (s *Supervisor) onSnapshot(ev ingest.SnapshotEvent) {
	s.metrics.SnapshotFetches.Inc()
	s.mu.Lock()
	snap := ev
	s.pendingSnap = &snap
	s.mu.Unlock()
}

func (s *Supervisor) takePendingSnapshot(block uint64) *ingest.SnapshotEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pendingSnap == nil || uint64(s.pendingSnap.Block) != block {
		return nil
	}
	taken := s.pendingSnap
	s.pendingSnap = nil
	return taken
}

func (s *Supervisor) handle(ev ingest.SourceEvent) error {
	switch ev.Kind {
	case ingest.EventStatus:
		return s.batch.IngestStatus(ev.Block, ev.Status)
	case ingest.EventDiff:
		return s.batch.IngestDiff(ev.Block, ev.Diff)
	case ingest.EventBlockMarker:
		if err := s.batch.MarkStatusDone(ev.Block); err != nil {
			return err
		}
		if err := s.batch.MarkDiffDone(ev.Block); err != nil {
			return err
		}
		return s.drainReady()
	case ingest.EventSnapshot:
		s.onSnapshot(ev.Snapshot)
		return nil
	}
	return nil
}

// drainReady pops and applies every block the batcher has completed,
// since a single marker can unblock more than one queued block.
func (s *Supervisor) drainReady() error {
	for {
		batch, ok := s.batch.TryPop()
		if !ok {
			return nil
		}
		snap := s.takePendingSnapshot(uint64(batch.Block))

		start := time.Now()
		out, err := s.reduce.Apply(batch, snap)
		if err != nil {
			if code, ok := errorsx.CodeOf(err); ok && code == errorsx.CodeSnapshotDivergence {
				s.metrics.SnapshotDivergence.Inc()
			}
			return err
		}
		s.metrics.BlocksApplied.Inc()
		s.metrics.BlockApplyDuration.Observe(time.Since(start).Seconds())

		s.gateway.Broadcast(out, s.books)
	}
}
