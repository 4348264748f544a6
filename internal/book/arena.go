package book

import "github.com/perpfeed/marketfeed/internal/types"

// noIdx marks the absence of a node/list link in the arena.
const noIdx = -1

// node is one slot in a side's arena. Live nodes form a doubly linked
// list per price level (prev/next within that level); free nodes form a
// singly linked free list threaded through next.
type node struct {
	order      types.Order
	prev, next int32
	free       bool
}

// arena is an indexed slab of nodes. Removal never shifts memory: a
// removed node is pushed onto the free list and its index is reused by
// the next insertion. This is what makes cancel O(1) regardless of how
// many orders sit ahead of it in a price bucket.
type arena struct {
	nodes    []node
	freeHead int32
}

func newArena() *arena {
	return &arena{freeHead: noIdx}
}

// alloc returns the index of a node initialized with order, reusing a
// freed slot when one is available.
func (a *arena) alloc(o types.Order) int32 {
	if a.freeHead != noIdx {
		idx := a.freeHead
		n := &a.nodes[idx]
		a.freeHead = n.next
		n.order = o
		n.prev, n.next = noIdx, noIdx
		n.free = false
		return idx
	}
	a.nodes = append(a.nodes, node{order: o, prev: noIdx, next: noIdx})
	return int32(len(a.nodes) - 1)
}

// release returns idx to the free list.
func (a *arena) release(idx int32) {
	n := &a.nodes[idx]
	n.order = types.Order{}
	n.free = true
	n.next = a.freeHead
	n.prev = noIdx
	a.freeHead = idx
}

func (a *arena) get(idx int32) *node { return &a.nodes[idx] }
