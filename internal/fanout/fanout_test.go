package fanout

import (
	"testing"
	"time"

	"github.com/perpfeed/marketfeed/internal/book"
	"github.com/perpfeed/marketfeed/internal/reducer"
	"github.com/perpfeed/marketfeed/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSubscribeIsPendingThenActivates(t *testing.T) {
	set := NewSet()
	set.Subscribe(Subscription{Kind: KindTrades, Coin: "ETH"})
	sub, ok := set.Match(KindTrades, "ETH")
	require.True(t, ok)
	assert.Equal(t, Pending, sub.State)

	set.Activate(KindTrades, "ETH")
	sub, _ = set.Match(KindTrades, "ETH")
	assert.Equal(t, Active, sub.State)
}

func TestDuplicateSubscribeOnActiveIsNoop(t *testing.T) {
	set := NewSet()
	set.Subscribe(Subscription{Kind: KindTrades, Coin: "ETH"})
	set.Activate(KindTrades, "ETH")

	got := set.Subscribe(Subscription{Kind: KindTrades, Coin: "ETH"})
	assert.Equal(t, Active, got.State)
}

func TestUnsubscribeAbsentIsNoop(t *testing.T) {
	set := NewSet()
	assert.NotPanics(t, func() { set.Unsubscribe(KindL2Book, "ETH") })
	_, ok := set.Match(KindL2Book, "ETH")
	assert.False(t, ok)
}

func TestUnsubscribeRemovesSubscription(t *testing.T) {
	set := NewSet()
	set.Subscribe(Subscription{Kind: KindL4Book, Coin: "BTC"})
	set.Unsubscribe(KindL4Book, "BTC")
	_, ok := set.Match(KindL4Book, "BTC")
	assert.False(t, ok)
}

func TestGatewayDeliversTradesToSubscribedClientOnly(t *testing.T) {
	gw, err := NewGateway(4, zap.NewNop(), nil)
	require.NoError(t, err)
	defer gw.Close()

	subscribed := NewClient(16, 10)
	subscribed.Subs.Subscribe(Subscription{Kind: KindTrades, Coin: "ETH"})
	subscribed.Subs.Activate(KindTrades, "ETH")
	unsubscribed := NewClient(16, 10)

	gw.Register(subscribed)
	gw.Register(unsubscribed)

	out := reducer.Output{Bundles: []reducer.CoinBundle{
		{Coin: "ETH", Trades: &reducer.Trades{Coin: "ETH", Fills: []types.Fill{{Coin: "ETH"}}}},
	}}
	gw.Broadcast(out, book.NewBooks())

	select {
	case frame := <-subscribed.Recv():
		assert.Equal(t, KindTrades, frame.Kind)
	case <-time.After(time.Second):
		t.Fatal("expected frame for subscribed client")
	}

	select {
	case <-unsubscribed.Recv():
		t.Fatal("unsubscribed client should not receive a frame")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestGatewayDisconnectsClientOnFullQueue(t *testing.T) {
	var disconnectedID string
	gw, err := NewGateway(4, zap.NewNop(), func(id string, err error) { disconnectedID = id })
	require.NoError(t, err)
	defer gw.Close()

	c := NewClient(1, 100)
	c.Subs.Subscribe(Subscription{Kind: KindTrades, Coin: "ETH"})
	c.Subs.Activate(KindTrades, "ETH")
	gw.Register(c)

	out := reducer.Output{Bundles: []reducer.CoinBundle{
		{Coin: "ETH", Trades: &reducer.Trades{Coin: "ETH"}},
	}}
	// Fill the one-slot queue directly, then broadcast once so the
	// enqueue attempt finds it full.
	c.queue <- OutFrame{Kind: KindTrades, Coin: "ETH"}
	gw.Broadcast(out, book.NewBooks())

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, c.ID, disconnectedID)
}
