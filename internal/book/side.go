package book

import (
	"sort"

	"github.com/perpfeed/marketfeed/internal/types"
)

// level is the per-price bucket: a doubly linked list of arena node
// indices (head..tail) plus running aggregates so top_n never has to
// walk the list.
type level struct {
	head, tail int32
	sz         types.Sz
	count      int
}

// bookSide holds one side (bids or asks) of a single coin's book. Prices
// are kept in a sorted slice, best-first for that side, so top_n and
// iteration are a direct slice walk; the arena gives O(1) insertion and
// removal of individual orders within a price bucket.
type bookSide struct {
	side   types.Side
	prices []types.Px // best-first: descending for bids, ascending for asks
	levels map[types.Px]*level
	arena  *arena
}

func newBookSide(side types.Side) *bookSide {
	return &bookSide{
		side:   side,
		levels: make(map[types.Px]*level),
		arena:  newArena(),
	}
}

// better reports whether a is a better (more aggressive-for-the-resting-
// side) price than b on this side: higher for bids, lower for asks.
func (s *bookSide) better(a, b types.Px) bool {
	if s.side == types.Bid {
		return a > b
	}
	return a < b
}

// findPriceIndex returns the index a price occupies (or would occupy) in
// the sorted prices slice.
func (s *bookSide) findPriceIndex(px types.Px) int {
	return sort.Search(len(s.prices), func(i int) bool {
		return !s.better(s.prices[i], px) // first i where prices[i] is not strictly better than px
	})
}

// insert adds an order to the back of its price bucket's queue,
// creating the bucket if absent. Returns the arena handle.
func (s *bookSide) insert(o types.Order) int32 {
	lvl, ok := s.levels[o.Px]
	if !ok {
		lvl = &level{head: noIdx, tail: noIdx}
		s.levels[o.Px] = lvl
		i := s.findPriceIndex(o.Px)
		s.prices = append(s.prices, 0)
		copy(s.prices[i+1:], s.prices[i:])
		s.prices[i] = o.Px
	}

	idx := s.arena.alloc(o)
	n := s.arena.get(idx)
	if lvl.tail == noIdx {
		lvl.head, lvl.tail = idx, idx
	} else {
		tail := s.arena.get(lvl.tail)
		tail.next = idx
		n.prev = lvl.tail
		lvl.tail = idx
	}
	lvl.sz += o.Sz
	lvl.count++
	return idx
}

// remove detaches the node at idx (at price px) from its bucket in O(1),
// removing the bucket itself (and its price slot) if it becomes empty.
func (s *bookSide) remove(px types.Px, idx int32) types.Order {
	lvl := s.levels[px]
	n := s.arena.get(idx)
	order := n.order

	if n.prev != noIdx {
		s.arena.get(n.prev).next = n.next
	} else {
		lvl.head = n.next
	}
	if n.next != noIdx {
		s.arena.get(n.next).prev = n.prev
	} else {
		lvl.tail = n.prev
	}
	lvl.sz -= order.Sz
	lvl.count--

	s.arena.release(idx)

	if lvl.count == 0 {
		delete(s.levels, px)
		i := s.findPriceIndex(px)
		if i < len(s.prices) && s.prices[i] == px {
			s.prices = append(s.prices[:i], s.prices[i+1:]...)
		}
	}
	return order
}

// resize changes the size of the order at idx in place, without
// altering its queue position, and keeps the level aggregate consistent.
func (s *bookSide) resize(px types.Px, idx int32, newSz types.Sz) {
	lvl := s.levels[px]
	n := s.arena.get(idx)
	lvl.sz += newSz - n.order.Sz
	n.order.Sz = newSz
}

// topN returns up to n best-first levels, raw (unaggregated) prices.
func (s *bookSide) topN(n int) []types.Level {
	if n > len(s.prices) {
		n = len(s.prices)
	}
	out := make([]types.Level, 0, n)
	for i := 0; i < n; i++ {
		lvl := s.levels[s.prices[i]]
		out = append(out, types.Level{Px: s.prices[i], Sz: lvl.sz, Count: lvl.count})
	}
	return out
}

// orders yields every live order on this side, best-first, price-time
// priority within a level.
func (s *bookSide) orders(yield func(types.Order) bool) {
	for _, px := range s.prices {
		lvl := s.levels[px]
		for idx := lvl.head; idx != noIdx; {
			n := s.arena.get(idx)
			if !yield(n.order) {
				return
			}
			idx = n.next
		}
	}
}

func (s *bookSide) len() int {
	total := 0
	for _, lvl := range s.levels {
		total += lvl.count
	}
	return total
}

// crossesWith reports whether this side's best price crosses (or ties)
// the other side's best price, i.e. the book would be locked/crossed.
func (s *bookSide) crossesWith(other *bookSide) bool {
	if len(s.prices) == 0 || len(other.prices) == 0 {
		return false
	}
	bestSelf := s.prices[0]
	bestOther := other.prices[0]
	if s.side == types.Bid {
		return bestSelf >= bestOther
	}
	return bestSelf <= bestOther
}
