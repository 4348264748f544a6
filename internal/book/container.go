package book

import (
	"sync"

	"github.com/perpfeed/marketfeed/internal/types"
)

// Books is the multi-book container: one OrderBook per coin, created
// lazily on first appearance. It sits behind a single exclusive mutex
// per spec §5 — writes (block application) are atomic at block
// granularity and brief, and read-heavy L2 aggregation tolerates the
// same lock at expected write rates.
type Books struct {
	mu    sync.Mutex
	books map[types.Coin]*OrderBook
}

func NewBooks() *Books {
	return &Books{books: make(map[types.Coin]*OrderBook)}
}

// With runs fn with exclusive access to the book for coin, creating it
// if this is the coin's first appearance. Callers should hold this lock
// only for the duration of one block application or one read.
func (bs *Books) With(coin types.Coin, fn func(*OrderBook)) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	b, ok := bs.books[coin]
	if !ok {
		b = New(coin)
		bs.books[coin] = b
	}
	fn(b)
}

// Coins returns the set of coins with a materialized book.
func (bs *Books) Coins() []types.Coin {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	out := make([]types.Coin, 0, len(bs.books))
	for c := range bs.books {
		out = append(out, c)
	}
	return out
}
