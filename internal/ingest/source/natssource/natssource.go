// Package natssource is a concrete EventSource backed by a NATS subject
// carrying JSON-encoded records, wired through watermill's Subscriber
// abstraction over watermill-nats. Grounded on the teacher's
// architecture/cqrs/eventbus NATS adapter and its watermill_cqrs.go
// integration shape: a thin message.Subscriber wrapper that decodes
// payloads into domain events rather than exposing raw NATS messages.
// FetchSnapshot sits outside that shape: watermill's pub/sub abstraction
// has no request/reply primitive, so it goes straight to nats.go's
// native Conn.RequestWithContext on cfg.SnapshotSubject.
package natssource

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	wmnats "github.com/ThreeDotsLabs/watermill-nats/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"
	"github.com/perpfeed/marketfeed/internal/ingest"
	"github.com/perpfeed/marketfeed/internal/types"
	"go.uber.org/zap"
)

// Config names the subjects this source reads.
type Config struct {
	URL             string
	RecordSubject   string // status/diff/block-marker stream
	SnapshotSubject string // request-reply subject for fetch_snapshot
}

// wireRecord is the JSON envelope published on RecordSubject; exactly
// one of the payload fields is set, discriminated by Kind.
type wireRecord struct {
	Kind   string          `json:"kind"` // "status" | "diff" | "block_marker"
	Block  uint64          `json:"block"`
	Status json.RawMessage `json:"status,omitempty"`
	Diff   json.RawMessage `json:"diff,omitempty"`
}

// Source is a NATS-backed EventSource.
type Source struct {
	cfg        Config
	subscriber message.Subscriber
	messages   <-chan *message.Message
	conn       *natsgo.Conn
	log        *zap.Logger
}

// New connects to NATS, subscribes to cfg.RecordSubject through
// watermill, and opens a second, raw nats.go connection used only for
// the FetchSnapshot request/reply round trip on cfg.SnapshotSubject.
func New(cfg Config, log *zap.Logger) (*Source, error) {
	watermillLogger := watermill.NewStdLogger(false, false)
	sub, err := wmnats.NewSubscriber(
		wmnats.SubscriberConfig{
			URL:         cfg.URL,
			QueueGroup:  "marketfeed-core",
			Unmarshaler: wmnats.GobMarshaler{},
		},
		watermillLogger,
	)
	if err != nil {
		return nil, fmt.Errorf("natssource: connect: %w", err)
	}
	messages, err := sub.Subscribe(context.Background(), cfg.RecordSubject)
	if err != nil {
		return nil, fmt.Errorf("natssource: subscribe: %w", err)
	}
	conn, err := natsgo.Connect(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("natssource: connect request/reply conn: %w", err)
	}
	return &Source{cfg: cfg, subscriber: sub, messages: messages, conn: conn, log: log}, nil
}

// Next decodes the next record off the NATS subject into a SourceEvent.
// Malformed payloads are logged and skipped (ParseError is never fatal
// by itself, per spec §7), so Next loops internally rather than
// returning a parse failure to the caller.
func (s *Source) Next(ctx context.Context) (ingest.SourceEvent, error) {
	for {
		select {
		case <-ctx.Done():
			return ingest.SourceEvent{}, ctx.Err()
		case msg, ok := <-s.messages:
			if !ok {
				return ingest.SourceEvent{}, fmt.Errorf("natssource: subscription closed")
			}
			ev, err := decode(msg.Payload)
			if err != nil {
				s.log.Warn("discarding unparseable record", zap.Error(err))
				msg.Ack()
				continue
			}
			msg.Ack()
			return ev, nil
		}
	}
}

func decode(payload []byte) (ingest.SourceEvent, error) {
	var rec wireRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return ingest.SourceEvent{}, fmt.Errorf("natssource: decode envelope: %w", err)
	}
	switch rec.Kind {
	case "block_marker":
		return ingest.SourceEvent{Kind: ingest.EventBlockMarker, Block: types.Block(rec.Block)}, nil
	case "status":
		var st ingest.Status
		if err := json.Unmarshal(rec.Status, &st); err != nil {
			return ingest.SourceEvent{}, fmt.Errorf("natssource: decode status: %w", err)
		}
		return ingest.SourceEvent{Kind: ingest.EventStatus, Block: types.Block(rec.Block), Status: st}, nil
	case "diff":
		var d ingest.Diff
		if err := json.Unmarshal(rec.Diff, &d); err != nil {
			return ingest.SourceEvent{}, fmt.Errorf("natssource: decode diff: %w", err)
		}
		return ingest.SourceEvent{Kind: ingest.EventDiff, Block: types.Block(rec.Block), Diff: d}, nil
	default:
		return ingest.SourceEvent{}, fmt.Errorf("natssource: unknown record kind %q", rec.Kind)
	}
}

// FetchSnapshot issues a NATS request on cfg.SnapshotSubject and decodes
// the reply as a JSON-encoded ingest.SnapshotEvent. The request body
// itself carries no parameters; the venue's snapshot responder replies
// with whatever block it currently holds authoritative state for, and
// it is the caller's job (supervisor.takePendingSnapshot) to pair that
// block number against the block the reducer just committed.
func (s *Source) FetchSnapshot(ctx context.Context) (ingest.SnapshotEvent, error) {
	reply, err := s.conn.RequestWithContext(ctx, s.cfg.SnapshotSubject, []byte("{}"))
	if err != nil {
		return ingest.SnapshotEvent{}, fmt.Errorf("natssource: snapshot request: %w", err)
	}
	var snap ingest.SnapshotEvent
	if err := json.Unmarshal(reply.Data, &snap); err != nil {
		return ingest.SnapshotEvent{}, fmt.Errorf("natssource: decode snapshot reply: %w", err)
	}
	return snap, nil
}

// Close releases the underlying NATS subscription and request/reply
// connection.
func (s *Source) Close() error {
	s.conn.Close()
	return s.subscriber.Close()
}
