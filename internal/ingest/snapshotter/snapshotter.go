// Package snapshotter runs the periodic authoritative-snapshot fetch
// described in spec §4.5: poll the Event Source for a snapshot every
// T_snap, guarding the fetch with a circuit breaker so a sick source
// degrades to SourceTransient retries instead of hammering a dead
// upstream, modeled on the teacher's
// architecture/fx/resilience/circuit_breaker.go usage.
package snapshotter

import (
	"context"
	"time"

	"github.com/perpfeed/marketfeed/internal/errorsx"
	"github.com/perpfeed/marketfeed/internal/ingest"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Config controls cadence and timeouts.
type Config struct {
	Interval       time.Duration // T_snap, default 10s
	FetchTimeout   time.Duration // default 5s
	BreakerMaxReqs uint32
}

func DefaultConfig() Config {
	return Config{
		Interval:       10 * time.Second,
		FetchTimeout:   5 * time.Second,
		BreakerMaxReqs: 1,
	}
}

// Snapshotter periodically fetches the authoritative snapshot and hands
// it to a sink (the Reducer, via the supervisor) for pairing with the
// earliest block both pipelines have committed.
type Snapshotter struct {
	source  ingest.EventSource
	cfg     Config
	log     *zap.Logger
	breaker *gobreaker.CircuitBreaker
}

// Sink receives a fetched snapshot for pairing; implemented by the
// supervisor/reducer wiring.
type Sink func(ingest.SnapshotEvent)

func New(source ingest.EventSource, cfg Config, log *zap.Logger) *Snapshotter {
	st := gobreaker.Settings{
		Name:        "snapshot-fetch",
		MaxRequests: cfg.BreakerMaxReqs,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("snapshot circuit breaker state change",
				zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	}
	return &Snapshotter{
		source:  source,
		cfg:     cfg,
		log:     log,
		breaker: gobreaker.NewCircuitBreaker(st),
	}
}

// Run blocks, fetching on cfg.Interval and delivering to sink, until ctx
// is cancelled. Fetch failures are logged as SourceTransient and never
// cause Run to return; they are retried on the next tick.
func (s *Snapshotter) Run(ctx context.Context, sink Sink) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.fetchOnce(ctx, sink)
		}
	}
}

func (s *Snapshotter) fetchOnce(ctx context.Context, sink Sink) {
	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	result, err := s.breaker.Execute(func() (interface{}, error) {
		return s.source.FetchSnapshot(fetchCtx)
	})
	if err != nil {
		wrapped := errorsx.Wrap(err, errorsx.CodeSourceTransient, "snapshot fetch failed")
		s.log.Warn("snapshot fetch failed, retrying next tick", zap.Error(wrapped))
		return
	}
	snap := result.(ingest.SnapshotEvent)
	sink(snap)
}
