// Package book implements the per-coin order book: an arena-backed,
// price-time priority structure supporting O(1) add/cancel/modify of an
// order at an existing price level (creating or emptying a level also
// shifts that side's sorted price slice) and top-of-book queries that
// read only the requested levels, as required of the core's book engine.
package book

import (
	"github.com/perpfeed/marketfeed/internal/errorsx"
	"github.com/perpfeed/marketfeed/internal/types"
)

type handle struct {
	side types.Side
	px   types.Px
	idx  int32
}

// OrderBook is a single coin's live order book. It is not safe for
// concurrent use; callers serialize access per coin (the reducer applies
// one block at a time).
type OrderBook struct {
	coin types.Coin
	bids *bookSide
	asks *bookSide
	oids map[types.Oid]handle
}

// New returns an empty book for coin.
func New(coin types.Coin) *OrderBook {
	return &OrderBook{
		coin: coin,
		bids: newBookSide(types.Bid),
		asks: newBookSide(types.Ask),
		oids: make(map[types.Oid]handle),
	}
}

func (b *OrderBook) sideFor(s types.Side) *bookSide {
	if s == types.Bid {
		return b.bids
	}
	return b.asks
}

// Add inserts a new live order. It fails with CodeDuplicateOid if oid is
// already live, CodeInvalidPrice if px <= 0, or CodeInvalidSize if sz <= 0
// (a zero-size add is meaningless; Resize-to-zero is the only path that
// removes an order by size).
func (b *OrderBook) Add(o types.Order) error {
	if _, ok := b.oids[o.Oid]; ok {
		return errorsx.New(errorsx.CodeDuplicateOid, "add").WithCoin(string(b.coin))
	}
	if o.Px <= 0 {
		return errorsx.New(errorsx.CodeInvalidPrice, "add").WithCoin(string(b.coin))
	}
	if o.Sz <= 0 {
		return errorsx.New(errorsx.CodeInvalidSize, "add").WithCoin(string(b.coin))
	}
	o.Coin = b.coin
	side := b.sideFor(o.Side)
	idx := side.insert(o)
	b.oids[o.Oid] = handle{side: o.Side, px: o.Px, idx: idx}
	return nil
}

// Cancel removes a live order entirely. Fails with CodeUnknownOid if oid
// is not live.
func (b *OrderBook) Cancel(oid types.Oid) (types.Order, error) {
	h, ok := b.oids[oid]
	if !ok {
		return types.Order{}, errorsx.New(errorsx.CodeUnknownOid, "cancel").WithCoin(string(b.coin))
	}
	delete(b.oids, oid)
	order := b.sideFor(h.side).remove(h.px, h.idx)
	return order, nil
}

// Resize changes a live order's size in place, preserving queue position.
// newSz == 0 removes the order (this is distinct from Cancel at the
// message layer: the reducer still emits a Resize event, never a
// synthesized Remove, for a resize-to-zero). Fails with CodeUnknownOid if
// oid is not live, or CodeInvalidSize if newSz < 0.
func (b *OrderBook) Resize(oid types.Oid, newSz types.Sz) (types.Order, error) {
	h, ok := b.oids[oid]
	if !ok {
		return types.Order{}, errorsx.New(errorsx.CodeUnknownOid, "resize").WithCoin(string(b.coin))
	}
	if newSz < 0 {
		return types.Order{}, errorsx.New(errorsx.CodeInvalidSize, "resize").WithCoin(string(b.coin))
	}
	side := b.sideFor(h.side)
	if newSz == 0 {
		delete(b.oids, oid)
		return side.remove(h.px, h.idx), nil
	}
	side.resize(h.px, h.idx, newSz)
	return side.arena.get(h.idx).order, nil
}

// Fill reduces a resting maker order's size by sz to reflect a trade,
// removing it if fully consumed. A fill for a maker that is not live is
// not an error: it returns removed=false and leaves the book unchanged,
// since the status feed and the diff feed can observe a fill after the
// corresponding remove. The reducer does not call Fill; it applies book
// changes from diffs only.
func (b *OrderBook) Fill(oid types.Oid, sz types.Sz) (types.Order, bool, error) {
	h, ok := b.oids[oid]
	if !ok {
		return types.Order{}, false, nil
	}
	side := b.sideFor(h.side)
	n := side.arena.get(h.idx)
	remaining := n.order.Sz - sz
	if remaining <= 0 {
		delete(b.oids, oid)
		return side.remove(h.px, h.idx), true, nil
	}
	side.resize(h.px, h.idx, remaining)
	return n.order, false, nil
}

// Has reports whether oid is currently live.
func (b *OrderBook) Has(oid types.Oid) bool {
	_, ok := b.oids[oid]
	return ok
}

// Get returns the live order for oid, if any.
func (b *OrderBook) Get(oid types.Oid) (types.Order, bool) {
	h, ok := b.oids[oid]
	if !ok {
		return types.Order{}, false
	}
	return b.sideFor(h.side).arena.get(h.idx).order, true
}

// TopN returns up to n raw (unaggregated) levels per side, best-first.
func (b *OrderBook) TopN(n int) (bids, asks []types.Level) {
	return b.bids.topN(n), b.asks.topN(n)
}

// IterOrders lazily yields every live order, bids then asks, each side
// best-first in price-time priority. Implemented as a range-over-func
// iterator so callers can stop early (e.g. snapshot diffing a prefix)
// without materializing the whole book.
func (b *OrderBook) IterOrders(yield func(types.Order) bool) {
	done := false
	b.bids.orders(func(o types.Order) bool {
		if !yield(o) {
			done = true
			return false
		}
		return true
	})
	if done {
		return
	}
	b.asks.orders(yield)
}

// Snapshot is a full point-in-time capture of every live order, used for
// the authoritative cross-check against the Event Source's snapshot feed.
type Snapshot struct {
	Coin   types.Coin
	Orders []types.Order
}

// Snapshot materializes the book's current state. Unlike IterOrders this
// allocates the full slice; it exists for the cross-check path, which
// needs a stable copy to diff against, not a hot-path query.
func (b *OrderBook) Snapshot() Snapshot {
	orders := make([]types.Order, 0, len(b.oids))
	for o := range b.IterOrders {
		orders = append(orders, o)
	}
	return Snapshot{Coin: b.coin, Orders: orders}
}

// NumOrders returns the total count of live orders across both sides.
func (b *OrderBook) NumOrders() int {
	return len(b.oids)
}

// Crossed reports whether the book is currently locked or crossed (best
// bid >= best ask). This should never be true of a correctly applied
// authoritative stream; callers may use it as a sanity check.
func (b *OrderBook) Crossed() bool {
	return b.bids.crossesWith(b.asks)
}
