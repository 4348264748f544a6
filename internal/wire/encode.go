package wire

import (
	"github.com/perpfeed/marketfeed/internal/book"
	"github.com/perpfeed/marketfeed/internal/reducer"
	"github.com/perpfeed/marketfeed/internal/types"
)

func sideString(s types.Side) string { return s.String() }

func l4EventKindString(k reducer.L4EventKind) string {
	switch k {
	case reducer.L4Add:
		return "add"
	case reducer.L4Cancel:
		return "cancel"
	case reducer.L4Resize:
		return "resize"
	default:
		return "unknown"
	}
}

func levelsToWire(levels []book.AggregatedLevel) []L2Level {
	out := make([]L2Level, len(levels))
	for i, l := range levels {
		out[i] = L2Level{Px: l.Px.String(), Sz: l.Sz.String(), N: l.Count}
	}
	return out
}

// EncodeL2 renders an aggregated L2 snapshot as the wire frame,
// aggregating raw levels per spec's SigFigs(k, mantissa) policy and
// truncating each side to the subscription's nLevels. nLevels<=0 means
// no truncation beyond what the reducer already computed.
func EncodeL2(l2 reducer.L2Snapshot, agg book.AggSpec, nLevels int) L2BookFrame {
	bids := book.Aggregate(l2.Bids, types.Bid, agg)
	asks := book.Aggregate(l2.Asks, types.Ask, agg)
	if nLevels > 0 {
		if len(bids) > nLevels {
			bids = bids[:nLevels]
		}
		if len(asks) > nLevels {
			asks = asks[:nLevels]
		}
	}
	return L2BookFrame{
		Channel: "l2Book",
		Data: L2BookData{
			Coin:   string(l2.Coin),
			Time:   uint64(l2.Ts),
			Levels: [2][]L2Level{levelsToWire(bids), levelsToWire(asks)},
		},
	}
}

// EncodeTrades renders a Trades message as the wire frame. hashOf
// supplies the "hash" field, which has no internal representation (it
// is a wire-only convenience for client dedup); callers pass a stable
// deterministic function, typically keyed on the fill's tid.
func EncodeTrades(t reducer.Trades, hashOf func(types.Fill) string) TradesFrame {
	entries := make([]TradeEntry, len(t.Fills))
	for i, f := range t.Fills {
		entries[i] = TradeEntry{
			Coin: string(f.Coin),
			Side: sideString(f.TakerSide),
			Px:   f.Px.String(),
			Sz:   f.Sz.String(),
			Time: uint64(f.Ts),
			Hash: hashOf(f),
			Tid:  f.Tid,
		}
	}
	return TradesFrame{Channel: "trades", Data: entries}
}

// EncodeL4 renders an L4Update (or, for isSnapshot, a full book
// materialization) as the wire frame.
func EncodeL4(coin types.Coin, ts types.Ts, isSnapshot bool, events []reducer.L4Event) L4BookFrame {
	out := make([]L4EventFrame, len(events))
	for i, e := range events {
		frame := L4EventFrame{Kind: l4EventKindString(e.Kind), Oid: uint64(e.Oid)}
		switch e.Kind {
		case reducer.L4Add:
			frame.Side = sideString(e.Side)
			frame.Px = e.Px.String()
			frame.Sz = e.Sz.String()
			frame.Ts = uint64(e.Ts)
		case reducer.L4Resize:
			frame.Sz = e.Sz.String()
		}
		out[i] = frame
	}
	return L4BookFrame{
		Channel: "l4Book",
		Data: L4BookData{
			Coin:       string(coin),
			IsSnapshot: isSnapshot,
			Time:       uint64(ts),
			Events:     out,
		},
	}
}

// EncodeL4Snapshot renders a full live-order snapshot (sent once, while
// an L4 subscription is Pending, just before it becomes Active) as add
// events.
func EncodeL4Snapshot(coin types.Coin, ts types.Ts, orders []types.Order) L4BookFrame {
	events := make([]reducer.L4Event, len(orders))
	for i, o := range orders {
		events[i] = reducer.L4Event{Kind: reducer.L4Add, Oid: o.Oid, Side: o.Side, Px: o.Px, Sz: o.Sz, Ts: o.Ts}
	}
	return EncodeL4(coin, ts, true, events)
}
