package reducer

import (
	"fmt"

	"github.com/perpfeed/marketfeed/internal/batcher"
	"github.com/perpfeed/marketfeed/internal/book"
	"github.com/perpfeed/marketfeed/internal/errorsx"
	"github.com/perpfeed/marketfeed/internal/ingest"
	"github.com/perpfeed/marketfeed/internal/types"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"
)

// L2Depth is the fixed top-N depth computed for every touched coin on
// every block, per spec §4.3 step 4.
const L2Depth = 100

// Reducer applies paired blocks to the multi-book container and derives
// the messages fan-out consumes.
type Reducer struct {
	books *book.Books
	log   *zap.Logger
}

func New(books *book.Books, log *zap.Logger) *Reducer {
	return &Reducer{books: books, log: log}
}

// Apply applies one paired block's diffs and statuses, in that order,
// and returns the derived messages. snapshot, if non-nil, is cross-
// checked against the resulting book state for every coin it covers;
// a mismatch is CodeSnapshotDivergence, fatal.
func (r *Reducer) Apply(batch batcher.Batch, snapshot *ingest.SnapshotEvent) (Output, error) {
	diffTouched := make(map[types.Coin]*L4Update)
	latestTs := make(map[types.Coin]types.Ts)
	order := []types.Coin{}

	touch := func(coin types.Coin) {
		if _, ok := diffTouched[coin]; !ok {
			diffTouched[coin] = nil
			order = append(order, coin)
		}
	}
	bumpTs := func(coin types.Coin, ts types.Ts) {
		if ts > latestTs[coin] {
			latestTs[coin] = ts
		}
	}

	for _, d := range batch.Diffs {
		ev, err := r.applyDiff(batch.Block, d)
		if err != nil {
			return Output{}, err
		}
		u, ok := diffTouched[d.Coin]
		if !ok || u == nil {
			u = &L4Update{Coin: d.Coin, Block: batch.Block}
			diffTouched[d.Coin] = u
			if !ok {
				order = append(order, d.Coin)
			}
		}
		u.Events = append(u.Events, ev)
		bumpTs(d.Coin, d.Ts)
	}

	tradesByCoin := make(map[types.Coin]*Trades)
	for _, s := range batch.Statuses {
		if s.Kind != ingest.StatusFilled {
			continue
		}
		fill, err := r.deriveFill(batch.Block, s)
		if err != nil {
			return Output{}, err
		}
		t, ok := tradesByCoin[s.Coin]
		if !ok {
			t = &Trades{Coin: s.Coin, Block: batch.Block}
			tradesByCoin[s.Coin] = t
		}
		t.Fills = append(t.Fills, fill)
		touch(s.Coin)
		bumpTs(s.Coin, s.Ts)
	}

	out := Output{}
	for _, coin := range order {
		bundle := CoinBundle{Coin: coin, L2: r.l2For(coin, batch.Block, latestTs[coin])}
		if u := diffTouched[coin]; u != nil {
			bundle.L4 = u
		}
		if t, ok := tradesByCoin[coin]; ok {
			bundle.Trades = t
		}
		out.Bundles = append(out.Bundles, bundle)
	}

	if snapshot != nil {
		if err := r.crossCheck(*snapshot); err != nil {
			return Output{}, err
		}
	}

	return out, nil
}

func (r *Reducer) applyDiff(blockN types.Block, d ingest.Diff) (L4Event, error) {
	var ev L4Event
	var applyErr error
	r.books.With(d.Coin, func(b *book.OrderBook) {
		switch d.Kind {
		case ingest.DiffAdd:
			o := types.Order{Oid: d.Oid, Coin: d.Coin, Side: d.Side, Px: d.Px, Sz: d.Sz, Ts: d.Ts}
			applyErr = b.Add(o)
			ev = L4Event{Kind: L4Add, Oid: d.Oid, Side: d.Side, Px: d.Px, Sz: d.Sz, Ts: d.Ts}
		case ingest.DiffRemove:
			_, applyErr = b.Cancel(d.Oid)
			ev = L4Event{Kind: L4Cancel, Oid: d.Oid}
		case ingest.DiffResize:
			_, applyErr = b.Resize(d.Oid, d.Sz)
			// Resize to zero is still a Resize event at the L4 layer, not
			// a synthesized Remove: the diff source said Resize.
			ev = L4Event{Kind: L4Resize, Oid: d.Oid, Sz: d.Sz}
		}
	})
	if applyErr != nil {
		r.log.Error("block-fatal book engine error",
			zap.Uint64("block", uint64(blockN)), zap.String("coin", string(d.Coin)), zap.Error(applyErr))
		return L4Event{}, applyErr
	}
	return ev, nil
}

// deriveFill turns a Filled status into a trade message. A fill whose
// maker oid is no longer in the book (already removed earlier in the
// same block, or never seen) is still emitted and logged at Warn; the
// book itself is not touched by statuses, only by diffs.
func (r *Reducer) deriveFill(blockN types.Block, s ingest.Status) (types.Fill, error) {
	var live bool
	r.books.With(s.Coin, func(b *book.OrderBook) { live = b.Has(s.Oid) })
	if !live {
		r.log.Warn("fill for maker oid not live in book, trade still emitted",
			zap.Uint64("block", uint64(blockN)), zap.String("coin", string(s.Coin)), zap.Uint64("maker_oid", uint64(s.Oid)))
	}
	return types.Fill{
		Coin:      s.Coin,
		Px:        s.Px,
		Sz:        s.Sz,
		TakerSide: s.TakerSide,
		MakerOid:  s.Oid,
		TakerOid:  s.TakerOid,
		Ts:        s.Ts,
		Tid:       ksuid.New().String(),
	}, nil
}

func (r *Reducer) l2For(coin types.Coin, blockN types.Block, ts types.Ts) L2Snapshot {
	var bids, asks []types.Level
	r.books.With(coin, func(b *book.OrderBook) {
		bids, asks = b.TopN(L2Depth)
	})
	return L2Snapshot{Coin: coin, Block: blockN, Ts: ts, Bids: bids, Asks: asks}
}

// crossCheck compares the engine's snapshot() against the authoritative
// list under multiset equality of (oid, side, px, sz) tuples, per spec
// §4.3 step 5 and §9's scoping of equivalence to that tuple only.
func (r *Reducer) crossCheck(snap ingest.SnapshotEvent) error {
	for _, co := range snap.PerCoin {
		var mismatch error
		r.books.With(co.Coin, func(b *book.OrderBook) {
			engine := b.Snapshot()
			missing, extra := diffOrderSets(engine.Orders, co.Orders)
			if len(missing) > 0 || len(extra) > 0 {
				r.log.Error("snapshot divergence",
					zap.String("coin", string(co.Coin)),
					zap.Any("missing_from_engine", missing),
					zap.Any("extra_in_engine", extra),
				)
				mismatch = errorsx.Newf(errorsx.CodeSnapshotDivergence,
					"coin %s: %d missing, %d extra", co.Coin, len(missing), len(extra))
			}
		})
		if mismatch != nil {
			return mismatch
		}
	}
	return nil
}

type orderKey struct {
	oid types.Oid
	sd  types.Side
	px  types.Px
	sz  types.Sz
}

func keyOf(o types.Order) orderKey {
	return orderKey{oid: o.Oid, sd: o.Side, px: o.Px, sz: o.Sz}
}

// diffOrderSets returns the (oid,side,px,sz) tuples present in want but
// not have (missing from the engine), and present in have but not want
// (extra in the engine, i.e. stale).
func diffOrderSets(have, want []types.Order) (missing, extra []string) {
	haveSet := make(map[orderKey]int)
	for _, o := range have {
		haveSet[keyOf(o)]++
	}
	wantSet := make(map[orderKey]int)
	for _, o := range want {
		wantSet[keyOf(o)]++
	}
	for k, n := range wantSet {
		if haveSet[k] < n {
			missing = append(missing, fmt.Sprintf("oid=%d side=%v px=%v sz=%v", k.oid, k.sd, k.px, k.sz))
		}
	}
	for k, n := range haveSet {
		if wantSet[k] < n {
			extra = append(extra, fmt.Sprintf("oid=%d side=%v px=%v sz=%v", k.oid, k.sd, k.px, k.sz))
		}
	}
	return missing, extra
}
