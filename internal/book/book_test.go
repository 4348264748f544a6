package book

import (
	"errors"
	"testing"

	"github.com/perpfeed/marketfeed/internal/errorsx"
	"github.com/perpfeed/marketfeed/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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

func order(oid types.Oid, side types.Side, p, z string) types.Order {
	return types.Order{Oid: oid, Side: side, Px: px(p), Sz: sz(z), Ts: types.Ts(oid)}
}

func TestAddRejectsDuplicateOid(t *testing.T) {
	b := New("ETH")
	require.NoError(t, b.Add(order(1, types.Bid, "100", "1")))
	err := b.Add(order(1, types.Bid, "101", "1"))
	require.Error(t, err)
	code, ok := errorsx.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, errorsx.CodeDuplicateOid, code)
}

func TestAddRejectsInvalidPriceAndSize(t *testing.T) {
	b := New("ETH")
	o := order(1, types.Bid, "100", "1")
	o.Px = 0
	err := b.Add(o)
	code, _ := errorsx.CodeOf(err)
	assert.Equal(t, errorsx.CodeInvalidPrice, code)

	o2 := order(2, types.Bid, "100", "1")
	o2.Sz = 0
	err = b.Add(o2)
	code, _ = errorsx.CodeOf(err)
	assert.Equal(t, errorsx.CodeInvalidSize, code)
}

func TestCancelUnknownOid(t *testing.T) {
	b := New("ETH")
	_, err := b.Cancel(999)
	require.Error(t, err)
	code, _ := errorsx.CodeOf(err)
	assert.Equal(t, errorsx.CodeUnknownOid, code)
}

func TestCancelRemovesOrderAndEmptiesLevel(t *testing.T) {
	b := New("ETH")
	require.NoError(t, b.Add(order(1, types.Bid, "100", "1")))
	_, err := b.Cancel(1)
	require.NoError(t, err)
	assert.False(t, b.Has(1))
	bids, _ := b.TopN(10)
	assert.Empty(t, bids)
}

func TestResizeToZeroRemovesOrderButIsNotCancel(t *testing.T) {
	b := New("ETH")
	require.NoError(t, b.Add(order(1, types.Bid, "100", "1")))
	removed, err := b.Resize(1, 0)
	require.NoError(t, err)
	assert.Equal(t, sz("1"), removed.Sz)
	assert.False(t, b.Has(1))
}

func TestResizeUnknownOid(t *testing.T) {
	b := New("ETH")
	_, err := b.Resize(42, sz("1"))
	code, _ := errorsx.CodeOf(err)
	assert.Equal(t, errorsx.CodeUnknownOid, code)
}

func TestResizeNegativeSize(t *testing.T) {
	b := New("ETH")
	require.NoError(t, b.Add(order(1, types.Bid, "100", "1")))
	_, err := b.Resize(1, -1)
	code, _ := errorsx.CodeOf(err)
	assert.Equal(t, errorsx.CodeInvalidSize, code)
}

func TestPriceTimePriorityWithinLevel(t *testing.T) {
	b := New("ETH")
	require.NoError(t, b.Add(order(1, types.Bid, "100", "1")))
	require.NoError(t, b.Add(order(2, types.Bid, "100", "2")))
	var oids []types.Oid
	for o := range b.IterOrders {
		oids = append(oids, o.Oid)
		if len(oids) == 2 {
			break
		}
	}
	assert.Equal(t, []types.Oid{1, 2}, oids)
}

func TestTopNOrdersBidsDescendingAsksAscending(t *testing.T) {
	b := New("ETH")
	require.NoError(t, b.Add(order(1, types.Bid, "100", "1")))
	require.NoError(t, b.Add(order(2, types.Bid, "101", "1")))
	require.NoError(t, b.Add(order(3, types.Ask, "105", "1")))
	require.NoError(t, b.Add(order(4, types.Ask, "104", "1")))

	bids, asks := b.TopN(10)
	require.Len(t, bids, 2)
	require.Len(t, asks, 2)
	assert.Equal(t, px("101"), bids[0].Px)
	assert.Equal(t, px("100"), bids[1].Px)
	assert.Equal(t, px("104"), asks[0].Px)
	assert.Equal(t, px("105"), asks[1].Px)
}

func TestTopNZeroReturnsEmpty(t *testing.T) {
	b := New("ETH")
	require.NoError(t, b.Add(order(1, types.Bid, "100", "1")))
	bids, asks := b.TopN(0)
	assert.Empty(t, bids)
	assert.Empty(t, asks)
}

func TestTopNCapsAtAvailableLevels(t *testing.T) {
	b := New("ETH")
	require.NoError(t, b.Add(order(1, types.Bid, "100", "1")))
	bids, _ := b.TopN(100)
	assert.Len(t, bids, 1)
}

func TestFillPartialReducesSize(t *testing.T) {
	b := New("ETH")
	require.NoError(t, b.Add(order(1, types.Bid, "100", "5")))
	remaining, removed, err := b.Fill(1, sz("2"))
	require.NoError(t, err)
	assert.False(t, removed)
	assert.True(t, b.Has(1))
	got, _ := b.Get(1)
	assert.Equal(t, sz("3"), got.Sz)
	_ = remaining
}

func TestFillFullRemovesOrder(t *testing.T) {
	b := New("ETH")
	require.NoError(t, b.Add(order(1, types.Bid, "100", "5")))
	_, removed, err := b.Fill(1, sz("5"))
	require.NoError(t, err)
	assert.True(t, removed)
	assert.False(t, b.Has(1))
}

func TestFillForAlreadyRemovedMakerIsNotAnError(t *testing.T) {
	b := New("ETH")
	_, removed, err := b.Fill(999, sz("1"))
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestSnapshotContainsEveryLiveOrder(t *testing.T) {
	b := New("ETH")
	require.NoError(t, b.Add(order(1, types.Bid, "100", "1")))
	require.NoError(t, b.Add(order(2, types.Ask, "101", "1")))
	snap := b.Snapshot()
	assert.Len(t, snap.Orders, 2)
}

func TestEmptyBookTopNReturnsEmptyNotNilSlices(t *testing.T) {
	b := New("ETH")
	bids, asks := b.TopN(10)
	assert.NotNil(t, bids)
	assert.NotNil(t, asks)
	assert.Empty(t, bids)
	assert.Empty(t, asks)
}

func TestAggregateRawPassesThrough(t *testing.T) {
	levels := []types.Level{{Px: px("100.123"), Sz: sz("1"), Count: 1}}
	out := Aggregate(levels, types.Bid, Raw)
	require.Len(t, out, 1)
	assert.Equal(t, px("100.123"), out[0].Px)
}

func TestAggregateSigFigsRoundsBidDownAskUp(t *testing.T) {
	levels := []types.Level{{Px: px("123.45"), Sz: sz("1"), Count: 1}}
	bidOut := Aggregate(levels, types.Bid, AggSpec{SigFigs: 3})
	askOut := Aggregate(levels, types.Ask, AggSpec{SigFigs: 3})
	assert.Equal(t, px("123"), bidOut[0].Px)
	assert.Equal(t, px("124"), askOut[0].Px)
}

func TestAggregateMergesLevelsCollapsingToSamePrice(t *testing.T) {
	levels := []types.Level{
		{Px: px("123"), Sz: sz("1"), Count: 1},
		{Px: px("124"), Sz: sz("2"), Count: 3},
	}
	out := Aggregate(levels, types.Bid, AggSpec{SigFigs: 1})
	require.Len(t, out, 1)
	assert.Equal(t, sz("3"), out[0].Sz)
	assert.Equal(t, 4, out[0].Count)
}

func TestAggregateMantissaSnapsToNearestAllowedStep(t *testing.T) {
	levels := []types.Level{{Px: px("137"), Sz: sz("1"), Count: 1}}
	out := Aggregate(levels, types.Ask, AggSpec{SigFigs: 2, Mantissa: 5})
	assert.Equal(t, px("150"), out[0].Px)
}

func TestCrossedReportsLockedBook(t *testing.T) {
	b := New("ETH")
	require.NoError(t, b.Add(order(1, types.Bid, "101", "1")))
	require.NoError(t, b.Add(order(2, types.Ask, "100", "1")))
	assert.True(t, b.Crossed())
}

func TestErrorsIsMatchesTaxonomySentinel(t *testing.T) {
	b := New("ETH")
	_, err := b.Cancel(1)
	assert.True(t, errors.Is(err, errorsx.ErrUnknownOid))
}
