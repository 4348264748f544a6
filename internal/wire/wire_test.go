package wire

import (
	"testing"

	"github.com/perpfeed/marketfeed/internal/book"
	"github.com/perpfeed/marketfeed/internal/reducer"
	"github.com/perpfeed/marketfeed/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intp(i int) *int { return &i }

func TestValidateAcceptsDefaultL2Subscription(t *testing.T) {
	req := Request{
		Method: "subscribe",
		Subscription: SubscriptionRequest{
			Type:    TypeL2Book,
			Coin:    "ETH",
			NLevels: intp(20),
		},
	}
	assert.NoError(t, Validate(req))
}

func TestValidateRejectsNLevelsOutOfRange(t *testing.T) {
	req := Request{
		Method: "subscribe",
		Subscription: SubscriptionRequest{
			Type:    TypeL2Book,
			Coin:    "ETH",
			NLevels: intp(101),
		},
	}
	assert.Error(t, Validate(req))
}

func TestValidateRejectsExplicitZeroNLevels(t *testing.T) {
	req := Request{
		Method: "subscribe",
		Subscription: SubscriptionRequest{
			Type:    TypeL2Book,
			Coin:    "ETH",
			NLevels: intp(0),
		},
	}
	assert.Error(t, Validate(req))
}

func TestValidateRejectsMantissaWithoutSigFigs(t *testing.T) {
	req := Request{
		Method: "subscribe",
		Subscription: SubscriptionRequest{
			Type:     TypeL2Book,
			Coin:     "ETH",
			NLevels:  intp(20),
			Mantissa: intp(5),
		},
	}
	err := Validate(req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mantissa requires n_sig_figs")
}

func TestValidateRejectsOutOfRangeSigFigs(t *testing.T) {
	req := Request{
		Method: "subscribe",
		Subscription: SubscriptionRequest{
			Type:     TypeL2Book,
			Coin:     "ETH",
			NLevels:  intp(20),
			NSigFigs: intp(9),
		},
	}
	assert.Error(t, Validate(req))
}

func TestValidateRejectsUnknownMethod(t *testing.T) {
	req := Request{
		Method: "frobnicate",
		Subscription: SubscriptionRequest{
			Type: TypeTrades,
			Coin: "BTC",
		},
	}
	assert.Error(t, Validate(req))
}

func TestEncodeL2AppliesAggregation(t *testing.T) {
	l2 := reducer.L2Snapshot{
		Coin: "ETH",
		Bids: []types.Level{{Px: mustPx("100.12"), Sz: mustSz("1"), Count: 1}},
	}
	frame := EncodeL2(l2, book.AggSpec{SigFigs: 3}, 20)
	require.Len(t, frame.Data.Levels[0], 1)
	assert.Equal(t, "100", frame.Data.Levels[0][0].Px)
}

func TestEncodeL2TruncatesToNLevels(t *testing.T) {
	l2 := reducer.L2Snapshot{
		Coin: "ETH",
		Bids: []types.Level{
			{Px: mustPx("100"), Sz: mustSz("1"), Count: 1},
			{Px: mustPx("99"), Sz: mustSz("1"), Count: 1},
			{Px: mustPx("98"), Sz: mustSz("1"), Count: 1},
		},
	}
	frame := EncodeL2(l2, book.Raw, 2)
	assert.Len(t, frame.Data.Levels[0], 2)
}

func TestEncodeTradesCarriesTid(t *testing.T) {
	trades := reducer.Trades{
		Coin:  "ETH",
		Fills: []types.Fill{{Coin: "ETH", Px: mustPx("100"), Sz: mustSz("1"), Tid: "abc123"}},
	}
	frame := EncodeTrades(trades, func(f types.Fill) string { return "h-" + f.Tid })
	require.Len(t, frame.Data, 1)
	assert.Equal(t, "abc123", frame.Data[0].Tid)
	assert.Equal(t, "h-abc123", frame.Data[0].Hash)
}

func TestEncodeL4ResizeEventOmitsSide(t *testing.T) {
	events := []reducer.L4Event{{Kind: reducer.L4Resize, Oid: 5, Sz: mustSz("2")}}
	frame := EncodeL4("ETH", 0, false, events)
	require.Len(t, frame.Data.Events, 1)
	assert.Equal(t, "resize", frame.Data.Events[0].Kind)
	assert.Equal(t, "", frame.Data.Events[0].Side)
	assert.Equal(t, "2", frame.Data.Events[0].Sz)
}

func mustPx(s string) types.Px {
	p, err := types.ParsePx(s)
	if err != nil {
		panic(err)
	}
	return p
}

func mustSz(s string) types.Sz {
	z, err := types.ParseSz(s)
	if err != nil {
		panic(err)
	}
	return z
}
