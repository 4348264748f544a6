package fanout

import (
	"sync"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/perpfeed/marketfeed/internal/book"
	"github.com/perpfeed/marketfeed/internal/errorsx"
	"github.com/perpfeed/marketfeed/internal/reducer"
	"github.com/perpfeed/marketfeed/internal/types"
	"github.com/perpfeed/marketfeed/internal/wire"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// hashOfFill supplies the wire "hash" field. There is no on-chain or
// venue hash to surface here, so the trade id doubles as the dedup key
// clients already rely on.
func hashOfFill(f types.Fill) string { return f.Tid }

// OutFrame is an opaque, already-encoded message handed to a client's
// writer task; the gateway does not know or care about JSON at this
// layer, only about routing and backpressure.
type OutFrame struct {
	Kind Kind
	Coin types.Coin
	Data interface{}
}

// Client is one connected subscriber: its subscription set, a bounded
// outgoing queue, and a subscribe/unsubscribe rate limiter grounded on
// the teacher's ServerConfig.RateLimitRPS field.
//
// dispatchMu/pending/dispatching serialize Broadcast's delivery of
// consecutive blocks to this client: at most one goroutine ever drains
// pending for a given client, and it drains strictly in append order,
// so block N's bundles are always enqueued before block N+1's even
// though both run on a shared worker pool.
type Client struct {
	ID      string
	Subs    *Set
	queue   chan OutFrame
	limiter *rate.Limiter
	lagged  bool
	mu      sync.Mutex

	dispatchMu  sync.Mutex
	pending     [][]reducer.CoinBundle
	dispatching bool
}

// NewClient returns a Client with a bounded outgoing queue of depth
// queueDepth and a subscribe/unsubscribe rate limiter of rps events/sec.
func NewClient(queueDepth int, rps float64) *Client {
	return &Client{
		ID:      uuid.New().String(),
		Subs:    NewSet(),
		queue:   make(chan OutFrame, queueDepth),
		limiter: rate.NewLimiter(rate.Limit(rps), int(rps)+1),
	}
}

// AllowSubscriptionChange reports whether this client may issue another
// subscribe/unsubscribe right now, per its rate limit.
func (c *Client) AllowSubscriptionChange() bool {
	return c.limiter.Allow()
}

// enqueue attempts to place frame on the client's queue. A full queue
// means the client is lagging; per spec §4.4 the client is disconnected
// rather than having the frame silently dropped, since L4 diffs are not
// idempotent.
func (c *Client) enqueue(frame OutFrame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lagged {
		return nil
	}
	select {
	case c.queue <- frame:
		return nil
	default:
		c.lagged = true
		return errorsx.New(errorsx.CodeClientLagged, "client queue full")
	}
}

// Recv returns the client's outgoing frame channel, read by its writer task.
func (c *Client) Recv() <-chan OutFrame { return c.queue }

// Gateway holds every connected client and dispatches reducer output to
// them, routing by (coin, kind) and applying the bounded-queue
// backpressure policy. Dispatch runs on a bounded worker pool so a slow
// client cannot stall the reducer goroutine that calls Broadcast.
type Gateway struct {
	mu       sync.RWMutex
	clients  map[string]*Client
	pool     *ants.Pool
	log      *zap.Logger
	onDisconnect func(clientID string, err error)
}

// NewGateway returns a Gateway whose dispatch pool has poolSize workers.
func NewGateway(poolSize int, log *zap.Logger, onDisconnect func(string, error)) (*Gateway, error) {
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}
	return &Gateway{
		clients:      make(map[string]*Client),
		pool:         pool,
		log:          log,
		onDisconnect: onDisconnect,
	}, nil
}

func (g *Gateway) Register(c *Client) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.clients[c.ID] = c
}

func (g *Gateway) Unregister(clientID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.clients, clientID)
}

func (g *Gateway) Close() { g.pool.Release() }

// Broadcast dispatches one reducer Output to every client with a
// matching subscription. Per-coin ordering (L4, Trades, L2) is
// preserved within a bundle by deliverBundle's fixed write order; cross-
// block ordering for a given client is preserved by enqueueDispatch,
// which appends this call's bundles to that client's pending queue and
// ensures exactly one pool-backed drainer works through it in FIFO
// order. Broadcast itself never blocks on a slow client.
func (g *Gateway) Broadcast(out reducer.Output, books *book.Books) {
	g.mu.RLock()
	clients := make([]*Client, 0, len(g.clients))
	for _, c := range g.clients {
		clients = append(clients, c)
	}
	g.mu.RUnlock()

	for _, c := range clients {
		g.enqueueDispatch(c, out.Bundles, books)
	}
}

// enqueueDispatch appends bundles to c's pending queue and, if no
// drainer is currently running for c, submits one to the pool. Only one
// drainer per client ever runs at a time, so a client's bundles from
// successive Broadcast calls are always delivered in the order they
// were appended, regardless of how the shared pool schedules workers.
func (g *Gateway) enqueueDispatch(c *Client, bundles []reducer.CoinBundle, books *book.Books) {
	c.dispatchMu.Lock()
	c.pending = append(c.pending, bundles)
	startDrain := !c.dispatching
	c.dispatching = true
	c.dispatchMu.Unlock()

	if startDrain {
		_ = g.pool.Submit(func() { g.drainClient(c, books) })
	}
}

// drainClient processes c's pending queue until it is empty, then
// clears dispatching so the next enqueueDispatch call starts a fresh
// drainer. It runs on a pool worker, so a lagging client occupies one
// worker for as long as its backlog takes to drain, never the caller of
// Broadcast.
func (g *Gateway) drainClient(c *Client, books *book.Books) {
	for {
		c.dispatchMu.Lock()
		if len(c.pending) == 0 {
			c.dispatching = false
			c.dispatchMu.Unlock()
			return
		}
		bundles := c.pending[0]
		c.pending = c.pending[1:]
		c.dispatchMu.Unlock()

		for _, bundle := range bundles {
			g.deliverBundle(c, bundle, books)
		}
	}
}

func (g *Gateway) deliverBundle(c *Client, bundle reducer.CoinBundle, books *book.Books) {
	if bundle.L4 != nil {
		if sub, ok := c.Subs.Match(KindL4Book, bundle.Coin); ok {
			g.deliverL4(c, sub, bundle, books)
		}
	}
	if bundle.Trades != nil {
		if _, ok := c.Subs.Match(KindTrades, bundle.Coin); ok {
			g.tryEnqueue(c, OutFrame{Kind: KindTrades, Coin: bundle.Coin, Data: wire.EncodeTrades(*bundle.Trades, hashOfFill)})
		}
	}
	if sub, ok := c.Subs.Match(KindL2Book, bundle.Coin); ok {
		g.deliverL2(c, sub, bundle)
	}
}

func (g *Gateway) deliverL4(c *Client, sub *Subscription, bundle reducer.CoinBundle, books *book.Books) {
	if sub.State == Pending {
		var snapOrders []types.Order
		books.With(bundle.Coin, func(b *book.OrderBook) {
			snap := b.Snapshot()
			snapOrders = snap.Orders
		})
		g.tryEnqueue(c, OutFrame{Kind: KindL4Book, Coin: bundle.Coin, Data: wire.EncodeL4Snapshot(bundle.Coin, bundle.L4.Events[0].Ts, snapOrders)})
		c.Subs.Activate(KindL4Book, bundle.Coin)
	}
	g.tryEnqueue(c, OutFrame{Kind: KindL4Book, Coin: bundle.Coin, Data: wire.EncodeL4(bundle.Coin, latestTs(bundle.L4.Events), false, bundle.L4.Events)})
}

func (g *Gateway) deliverL2(c *Client, sub *Subscription, bundle reducer.CoinBundle) {
	nLevels := sub.NLevels
	if nLevels == 0 {
		nLevels = DefaultNLevels
	}
	g.tryEnqueue(c, OutFrame{Kind: KindL2Book, Coin: bundle.Coin, Data: wire.EncodeL2(bundle.L2, sub.Agg, nLevels)})
	if sub.State == Pending {
		// The first L2Snapshot message itself is the initial state.
		c.Subs.Activate(KindL2Book, bundle.Coin)
	}
}

// latestTs picks a representative timestamp for an L4Update frame; Add
// events carry one, Cancel/Resize do not, so the most recent non-zero
// wins.
func latestTs(events []reducer.L4Event) types.Ts {
	var ts types.Ts
	for _, e := range events {
		if e.Ts > ts {
			ts = e.Ts
		}
	}
	return ts
}

func (g *Gateway) tryEnqueue(c *Client, frame OutFrame) {
	if err := c.enqueue(frame); err != nil {
		g.log.Warn("disconnecting lagged client", zap.String("client", c.ID), zap.Error(err))
		g.Unregister(c.ID)
		if g.onDisconnect != nil {
			g.onDisconnect(c.ID, err)
		}
	}
}
