// Package reducer applies one paired block to the Book Engine, derives
// the internal messages consumed by fan-out, and cross-checks the
// resulting book against an authoritative snapshot when one is
// available for that block, per spec §4.3.
package reducer

import "github.com/perpfeed/marketfeed/internal/types"

// L4EventKind discriminates L4Update event entries.
type L4EventKind uint8

const (
	L4Add L4EventKind = iota
	L4Cancel
	L4Resize
)

// L4Event is one order-level mutation, in diff-stream order.
type L4Event struct {
	Kind L4EventKind
	Oid  types.Oid
	Side types.Side
	Px   types.Px
	Sz   types.Sz
	Ts   types.Ts
}

// L2Snapshot is the aggregated top-of-book view for one coin at one block.
type L2Snapshot struct {
	Coin  types.Coin
	Block types.Block
	Ts    types.Ts
	Bids  []types.Level
	Asks  []types.Level
}

// Trades carries the fills derived from one block's status stream.
type Trades struct {
	Coin  types.Coin
	Block types.Block
	Fills []types.Fill
}

// L4Update carries the order-level events derived from one block's diff
// stream.
type L4Update struct {
	Coin   types.Coin
	Block  types.Block
	Events []L4Event
}

// CoinBundle groups one coin's messages for one block, pre-ordered per
// spec §5: for a given (coin, block), delivery order to any one client
// is L4Update, then Trades, then L2Snapshot. L4 and Trades are nil when
// the coin produced no diff events or no fills respectively; L2 is
// always present for a touched coin.
type CoinBundle struct {
	Coin   types.Coin
	L4     *L4Update
	Trades *Trades
	L2     L2Snapshot
}

// Output is everything one block application produces. Cross-coin
// ordering is unspecified by spec §5, but Bundles preserves the order
// coins were first touched within the block for determinism.
type Output struct {
	Bundles []CoinBundle
}
