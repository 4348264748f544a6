// Package fanout implements the per-client filtering layer: the
// subscription lifecycle state machine, routing of reducer-derived
// messages to matching subscriptions, and the bounded-queue backpressure
// policy, per spec §4.4. Modeled on the teacher's marketdata/handler.go
// subscription maps and websocket_gateway_v2.go connection lifecycle,
// but disconnect-on-lag replaces the teacher's silent drop-on-full-
// buffer behavior: L4 diffs are not idempotent, so a gap would break a
// client's local book.
package fanout

import (
	"github.com/perpfeed/marketfeed/internal/book"
	"github.com/perpfeed/marketfeed/internal/types"
)

// Kind discriminates the three subscribable channels.
type Kind uint8

const (
	KindTrades Kind = iota
	KindL2Book
	KindL4Book
)

// State is a subscription's lifecycle state.
type State uint8

const (
	Absent State = iota
	Pending
	Active
)

// Subscription is one client's declared interest in a (channel, coin)
// pair, with L2-specific aggregation options.
type Subscription struct {
	Kind    Kind
	Coin    types.Coin
	NLevels int          // L2Book only, default 20, must be in [1,100]
	Agg     book.AggSpec // L2Book only
	State   State
}

const DefaultNLevels = 20

// key identifies a subscription by its routable (coin, kind) pair; a
// client has at most one subscription per key.
type key struct {
	kind Kind
	coin types.Coin
}

// Set tracks one client's subscriptions by (coin, kind).
type Set struct {
	subs map[key]*Subscription
}

func NewSet() *Set {
	return &Set{subs: make(map[key]*Subscription)}
}

// Subscribe adds sub in Pending state. A duplicate subscribe for an
// Active subscription is a no-op returning the existing (now-unchanged)
// subscription; per spec this "returns success" rather than resetting
// to Pending and re-sending a snapshot.
func (s *Set) Subscribe(sub Subscription) *Subscription {
	k := key{kind: sub.Kind, coin: sub.Coin}
	if existing, ok := s.subs[k]; ok && existing.State == Active {
		return existing
	}
	sub.State = Pending
	stored := sub
	s.subs[k] = &stored
	return &stored
}

// Unsubscribe transitions the subscription at (kind, coin) to Absent.
// Unsubscribing an Absent (or never-subscribed) key is a no-op.
func (s *Set) Unsubscribe(kind Kind, coin types.Coin) {
	k := key{kind: kind, coin: coin}
	delete(s.subs, k)
}

// Activate transitions a Pending subscription to Active, once its
// initial snapshot (L4) or first L2Snapshot has been delivered.
func (s *Set) Activate(kind Kind, coin types.Coin) {
	k := key{kind: kind, coin: coin}
	if sub, ok := s.subs[k]; ok {
		sub.State = Active
	}
}

// Match returns the subscription for (kind, coin) if one is present,
// regardless of Pending/Active — routing still needs to know about
// Pending subscriptions so the first message can trigger their initial
// snapshot.
func (s *Set) Match(kind Kind, coin types.Coin) (*Subscription, bool) {
	sub, ok := s.subs[key{kind: kind, coin: coin}]
	return sub, ok
}

// All returns every subscription currently tracked, for iteration by
// the gateway's broadcast loop.
func (s *Set) All() []*Subscription {
	out := make([]*Subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		out = append(out, sub)
	}
	return out
}
