package reducer

import (
	"testing"

	"github.com/perpfeed/marketfeed/internal/batcher"
	"github.com/perpfeed/marketfeed/internal/book"
	"github.com/perpfeed/marketfeed/internal/errorsx"
	"github.com/perpfeed/marketfeed/internal/ingest"
	"github.com/perpfeed/marketfeed/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func px(s string) types.Px {
	p, err := types.ParsePx(s)
	if err != nil {
		panic(err)
	}
	return p
}

func sz(s string) types.Sz {
	z, err := types.ParseSz(s)
	if err != nil {
		panic(err)
	}
	return z
}

func newReducer() *Reducer {
	return New(book.NewBooks(), zap.NewNop())
}

func bundleFor(out Output, coin types.Coin) CoinBundle {
	for _, b := range out.Bundles {
		if b.Coin == coin {
			return b
		}
	}
	return CoinBundle{}
}

// (a) Basic add/cancel.
func TestScenarioBasicAddCancel(t *testing.T) {
	r := newReducer()
	b1 := batcher.Batch{Block: 1, Diffs: []ingest.Diff{
		{Kind: ingest.DiffAdd, Coin: "ETH", Oid: 1, Side: types.Bid, Px: px("100.0"), Sz: sz("5")},
		{Kind: ingest.DiffAdd, Coin: "ETH", Oid: 2, Side: types.Bid, Px: px("100.0"), Sz: sz("3")},
	}}
	out, err := r.Apply(b1, nil)
	require.NoError(t, err)
	require.Len(t, out.Bundles, 1)
	l2 := bundleFor(out, "ETH").L2
	require.Len(t, l2.Bids, 1)
	assert.Equal(t, px("100.0"), l2.Bids[0].Px)
	assert.Equal(t, sz("8"), l2.Bids[0].Sz)
	assert.Equal(t, 2, l2.Bids[0].Count)
	assert.Empty(t, l2.Asks)

	b2 := batcher.Batch{Block: 2, Diffs: []ingest.Diff{
		{Kind: ingest.DiffRemove, Coin: "ETH", Oid: 1},
	}}
	out2, err := r.Apply(b2, nil)
	require.NoError(t, err)
	l2b := bundleFor(out2, "ETH").L2
	require.Len(t, l2b.Bids, 1)
	assert.Equal(t, sz("3"), l2b.Bids[0].Sz)
	assert.Equal(t, 1, l2b.Bids[0].Count)
}

// (b) Resize to zero == cancel for book state, L4 still says resize.
func TestScenarioResizeToZero(t *testing.T) {
	r := newReducer()
	b1 := batcher.Batch{Block: 1, Diffs: []ingest.Diff{
		{Kind: ingest.DiffAdd, Coin: "ETH", Oid: 10, Side: types.Ask, Px: px("50.5"), Sz: sz("2")},
	}}
	_, err := r.Apply(b1, nil)
	require.NoError(t, err)

	b2 := batcher.Batch{Block: 2, Diffs: []ingest.Diff{
		{Kind: ingest.DiffResize, Coin: "ETH", Oid: 10, Sz: 0},
	}}
	out, err := r.Apply(b2, nil)
	require.NoError(t, err)
	bundle := bundleFor(out, "ETH")
	require.NotNil(t, bundle.L4)
	require.Len(t, bundle.L4.Events, 1)
	assert.Equal(t, L4Resize, bundle.L4.Events[0].Kind)
	assert.Equal(t, types.Sz(0), bundle.L4.Events[0].Sz)
	assert.Empty(t, bundle.L2.Asks)
}

// (c) Partial fill.
func TestScenarioPartialFill(t *testing.T) {
	r := newReducer()
	seed := batcher.Batch{Block: 1, Diffs: []ingest.Diff{
		{Kind: ingest.DiffAdd, Coin: "ETH", Oid: 20, Side: types.Ask, Px: px("50.0"), Sz: sz("10")},
	}}
	_, err := r.Apply(seed, nil)
	require.NoError(t, err)

	b2 := batcher.Batch{
		Block: 2,
		Diffs: []ingest.Diff{{Kind: ingest.DiffResize, Coin: "ETH", Oid: 20, Sz: sz("6")}},
		Statuses: []ingest.Status{
			{Kind: ingest.StatusFilled, Coin: "ETH", Oid: 20, TakerOid: 99, Px: px("50.0"), Sz: sz("4")},
		},
	}
	out, err := r.Apply(b2, nil)
	require.NoError(t, err)
	bundle := bundleFor(out, "ETH")
	require.NotNil(t, bundle.Trades)
	require.Len(t, bundle.Trades.Fills, 1)
	assert.Equal(t, sz("4"), bundle.Trades.Fills[0].Sz)
	assert.NotEmpty(t, bundle.Trades.Fills[0].Tid)
	require.Len(t, bundle.L2.Asks, 1)
	assert.Equal(t, sz("6"), bundle.L2.Asks[0].Sz)
}

// (d) Full fill.
func TestScenarioFullFill(t *testing.T) {
	r := newReducer()
	seed := batcher.Batch{Block: 1, Diffs: []ingest.Diff{
		{Kind: ingest.DiffAdd, Coin: "ETH", Oid: 20, Side: types.Ask, Px: px("50.0"), Sz: sz("10")},
	}}
	_, err := r.Apply(seed, nil)
	require.NoError(t, err)

	b2 := batcher.Batch{
		Block: 2,
		Diffs: []ingest.Diff{{Kind: ingest.DiffRemove, Coin: "ETH", Oid: 20}},
		Statuses: []ingest.Status{
			{Kind: ingest.StatusFilled, Coin: "ETH", Oid: 20, TakerOid: 99, Px: px("50.0"), Sz: sz("10")},
		},
	}
	out, err := r.Apply(b2, nil)
	require.NoError(t, err)
	bundle := bundleFor(out, "ETH")
	require.Len(t, bundle.Trades.Fills, 1)
	require.Len(t, bundle.L4.Events, 1)
	assert.Equal(t, L4Cancel, bundle.L4.Events[0].Kind)
	assert.Empty(t, bundle.L2.Asks)
}

// (e) Snapshot divergence is fatal with an identifiable coin/oid.
func TestScenarioSnapshotDivergence(t *testing.T) {
	r := newReducer()
	b1 := batcher.Batch{Block: 1, Diffs: []ingest.Diff{
		{Kind: ingest.DiffAdd, Coin: "ETH", Oid: 1, Side: types.Bid, Px: px("100"), Sz: sz("1")},
	}}
	_, err := r.Apply(b1, nil)
	require.NoError(t, err)

	snap := &ingest.SnapshotEvent{Block: 1, PerCoin: []ingest.CoinOrders{
		{Coin: "ETH", Orders: []types.Order{
			{Oid: 1, Coin: "ETH", Side: types.Bid, Px: px("100"), Sz: sz("1")},
			{Oid: 2, Coin: "ETH", Side: types.Bid, Px: px("99"), Sz: sz("1")},
		}},
	}}
	_, err = r.Apply(batcher.Batch{Block: 2}, snap)
	require.Error(t, err)
	code, ok := errorsx.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, errorsx.CodeSnapshotDivergence, code)
}

// (f) L2 SigFigs aggregation happens at the fan-out read layer, not the
// reducer; this test only verifies raw L2 levels are correct inputs for
// that later aggregation (see book.Aggregate tests for the rounding law).
func TestScenarioRawL2FeedsAggregation(t *testing.T) {
	r := newReducer()
	b1 := batcher.Batch{Block: 1, Diffs: []ingest.Diff{
		{Kind: ingest.DiffAdd, Coin: "ETH", Oid: 1, Side: types.Bid, Px: px("100.12"), Sz: sz("1")},
		{Kind: ingest.DiffAdd, Coin: "ETH", Oid: 2, Side: types.Bid, Px: px("100.18"), Sz: sz("2")},
		{Kind: ingest.DiffAdd, Coin: "ETH", Oid: 3, Side: types.Bid, Px: px("100.24"), Sz: sz("3")},
	}}
	out, err := r.Apply(b1, nil)
	require.NoError(t, err)
	l2 := bundleFor(out, "ETH").L2
	require.Len(t, l2.Bids, 3)
	agg := book.Aggregate(l2.Bids, types.Bid, book.AggSpec{SigFigs: 3})
	require.Len(t, agg, 1)
	assert.Equal(t, px("100"), agg[0].Px)
	assert.Equal(t, sz("6"), agg[0].Sz)
	assert.Equal(t, 3, agg[0].Count)
}

func TestDuplicateAddIsFatal(t *testing.T) {
	r := newReducer()
	b1 := batcher.Batch{Block: 1, Diffs: []ingest.Diff{
		{Kind: ingest.DiffAdd, Coin: "ETH", Oid: 1, Side: types.Bid, Px: px("100"), Sz: sz("1")},
	}}
	_, err := r.Apply(b1, nil)
	require.NoError(t, err)

	b2 := batcher.Batch{Block: 2, Diffs: []ingest.Diff{
		{Kind: ingest.DiffAdd, Coin: "ETH", Oid: 1, Side: types.Bid, Px: px("101"), Sz: sz("1")},
	}}
	_, err = r.Apply(b2, nil)
	require.Error(t, err)
	code, _ := errorsx.CodeOf(err)
	assert.Equal(t, errorsx.CodeDuplicateOid, code)
}

func TestRemoveUnknownOidIsFatal(t *testing.T) {
	r := newReducer()
	_, err := r.Apply(batcher.Batch{Block: 1, Diffs: []ingest.Diff{
		{Kind: ingest.DiffRemove, Coin: "ETH", Oid: 999},
	}}, nil)
	require.Error(t, err)
	code, _ := errorsx.CodeOf(err)
	assert.Equal(t, errorsx.CodeUnknownOid, code)
}

func TestFillForAlreadyRemovedMakerStillEmitted(t *testing.T) {
	r := newReducer()
	seed := batcher.Batch{Block: 1, Diffs: []ingest.Diff{
		{Kind: ingest.DiffAdd, Coin: "ETH", Oid: 1, Side: types.Ask, Px: px("50"), Sz: sz("5")},
	}}
	_, err := r.Apply(seed, nil)
	require.NoError(t, err)

	b2 := batcher.Batch{
		Block: 2,
		Diffs: []ingest.Diff{{Kind: ingest.DiffRemove, Coin: "ETH", Oid: 1}},
		Statuses: []ingest.Status{
			{Kind: ingest.StatusFilled, Coin: "ETH", Oid: 1, TakerOid: 2, Px: px("50"), Sz: sz("5")},
		},
	}
	out, err := r.Apply(b2, nil)
	require.NoError(t, err)
	bundle := bundleFor(out, "ETH")
	require.Len(t, bundle.Trades.Fills, 1)
}
