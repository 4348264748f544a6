// Command marketfeed is the entrypoint: it parses CLI flags, loads the
// YAML config, wires every internal package through fx, and runs the
// supervisor until a fatal condition or shutdown signal decides the
// process exit code, per spec §6. Modeled on the teacher's
// cmd/marketdata/main.go fx.New(fx.Supply(...), module, ...,
// fx.Invoke(...)) shape, with the fx.Invoke replaced by a single
// blocking supervisor.Run call whose return value becomes os.Exit's
// argument.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/perpfeed/marketfeed/internal/batcher"
	"github.com/perpfeed/marketfeed/internal/book"
	"github.com/perpfeed/marketfeed/internal/config"
	"github.com/perpfeed/marketfeed/internal/fanout"
	"github.com/perpfeed/marketfeed/internal/httpapi"
	"github.com/perpfeed/marketfeed/internal/ingest/snapshotter"
	"github.com/perpfeed/marketfeed/internal/ingest/source/natssource"
	"github.com/perpfeed/marketfeed/internal/metrics"
	"github.com/perpfeed/marketfeed/internal/reducer"
	"github.com/perpfeed/marketfeed/internal/supervisor"
	"github.com/perpfeed/marketfeed/internal/transport/ws"
	"github.com/perpfeed/marketfeed/internal/types"
	"github.com/perpfeed/marketfeed/internal/wire"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// flags holds the CLI overrides bound by cobra, applied over the YAML
// config per spec §6's CLI surface.
type flags struct {
	configPath        string
	address           string
	port              int
	compressionLevel  int
	inactivityExit    int
	natsURL             string
	natsRecordSubject   string
	natsSnapshotSubject string
}

func main() {
	var f flags

	root := &cobra.Command{
		Use:   "marketfeed",
		Short: "Local market-data fan-out core for a perpetual-futures venue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(f)
		},
	}
	root.Flags().StringVar(&f.configPath, "config", "", "path to a YAML config file (optional)")
	root.Flags().StringVar(&f.address, "address", "", "listen address (overrides config)")
	root.Flags().IntVar(&f.port, "port", 0, "listen port (overrides config)")
	root.Flags().IntVar(&f.compressionLevel, "websocket-compression-level", -1, "0-9, websocket write compression level (overrides config)")
	root.Flags().IntVar(&f.inactivityExit, "inactivity-exit-secs", 0, "heartbeat inactivity timeout in seconds (overrides config)")
	root.Flags().StringVar(&f.natsURL, "nats-url", "nats://127.0.0.1:4222", "NATS server URL for the event source")
	root.Flags().StringVar(&f.natsRecordSubject, "nats-record-subject", "marketfeed.records", "NATS subject carrying status/diff/block-marker records")
	root.Flags().StringVar(&f.natsSnapshotSubject, "nats-snapshot-subject", "marketfeed.snapshot", "NATS request/reply subject for fetch_snapshot")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run loads config, applies flag overrides, and drives the fx app. The
// supervisor hook runs the supervisor to completion, stores its exit
// code and shuts the app down, and run then surfaces the code via
// os.Exit.
func run(f flags) error {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyOverrides(&cfg, f)

	exitCode := 0
	app := fx.New(
		fx.Supply(cfg),
		fx.Supply(natssource.Config{URL: f.natsURL, RecordSubject: f.natsRecordSubject, SnapshotSubject: f.natsSnapshotSubject}),
		fx.Provide(zap.NewProduction),
		fx.Provide(prometheus.NewRegistry),
		fx.Provide(func(reg *prometheus.Registry) prometheus.Registerer { return reg }),
		fx.Provide(metrics.New),
		fx.Provide(book.NewBooks),
		fx.Provide(newBatcher),
		fx.Provide(reducer.New),
		fx.Provide(newGateway),
		fx.Provide(natssource.New),
		fx.Provide(newSnapshotter),
		fx.Provide(newSupervisor),
		fx.Provide(newWSServer),
		fx.Invoke(registerHTTPServers),
		fx.Invoke(func(lc fx.Lifecycle, sd fx.Shutdowner, sup *supervisor.Supervisor, logger *zap.Logger) {
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					go func() {
						runCtx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
						defer cancel()
						exitCode = sup.Run(runCtx)
						logger.Info("supervisor exited", zap.Int("exit_code", exitCode))
						_ = sd.Shutdown()
					}()
					return nil
				},
			})
		}),
	)

	startCtx, cancel := context.WithTimeout(context.Background(), fx.DefaultTimeout)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return fmt.Errorf("start app: %w", err)
	}
	<-app.Done()
	stopCtx, cancel2 := context.WithTimeout(context.Background(), fx.DefaultTimeout)
	defer cancel2()
	_ = app.Stop(stopCtx)

	if exitCode != 0 {
		os.Exit(exitCode)
	}
	return nil
}

func applyOverrides(cfg *config.Config, f flags) {
	if f.address != "" {
		cfg.Server.Address = f.address
	}
	if f.port != 0 {
		cfg.Server.Port = f.port
	}
	if f.compressionLevel >= 0 {
		cfg.WS.CompressionLevel = f.compressionLevel
	}
	if f.inactivityExit != 0 {
		cfg.Ingest.InactivityExitSecs = f.inactivityExit
	}
}

func newBatcher(cfg config.Config) *batcher.Batcher {
	return batcher.New(batcher.Config{Capacity: cfg.Ingest.BatcherCapacity}, 0)
}

func newGateway(cfg config.Config, logger *zap.Logger, m *metrics.Metrics) (*fanout.Gateway, error) {
	onDisconnect := func(clientID string, err error) {
		m.ClientsLaggedTotal.Inc()
	}
	return fanout.NewGateway(cfg.Fanout.WorkerPoolSize, logger, onDisconnect)
}

func newSnapshotter(cfg config.Config, source *natssource.Source, logger *zap.Logger) *snapshotter.Snapshotter {
	return snapshotter.New(source, snapshotter.Config{
		Interval:       cfg.Ingest.SnapshotInterval,
		FetchTimeout:   cfg.Ingest.SnapshotFetchTimeout,
		BreakerMaxReqs: 1,
	}, logger)
}

func newSupervisor(
	cfg config.Config,
	source *natssource.Source,
	b *batcher.Batcher,
	r *reducer.Reducer,
	gw *fanout.Gateway,
	books *book.Books,
	snap *snapshotter.Snapshotter,
	m *metrics.Metrics,
	logger *zap.Logger,
) *supervisor.Supervisor {
	return supervisor.New(source, b, r, gw, books, snap, m, supervisor.Config{
		InactivityTimeout: time.Duration(cfg.Ingest.InactivityExitSecs) * time.Second,
	}, logger)
}

func newWSServer(cfg config.Config, gw *fanout.Gateway, logger *zap.Logger) *ws.Server {
	return ws.NewServer(ws.Config{
		CompressionLevel: cfg.WS.CompressionLevel,
		QueueDepth:       cfg.WS.QueueDepth,
		SubscribeRPS:     cfg.Fanout.SubscribeRPS,
		WriteTimeout:     ws.DefaultConfig().WriteTimeout,
	}, gw, handleSubscribe, logger)
}

// handleSubscribe applies a validated client request to the client's
// subscription set and returns the ack/rejection frame to send back.
func handleSubscribe(c *fanout.Client, req wire.Request) interface{} {
	sub := fanout.Subscription{
		Coin: types.Coin(req.Subscription.Coin),
	}
	switch req.Subscription.Type {
	case wire.TypeTrades:
		sub.Kind = fanout.KindTrades
	case wire.TypeL4Book:
		sub.Kind = fanout.KindL4Book
	case wire.TypeL2Book:
		sub.Kind = fanout.KindL2Book
		// Validate already rejected an explicit n_levels:0; nil here only
		// ever means "absent", so the default applies unconditionally.
		if req.Subscription.NLevels != nil {
			sub.NLevels = *req.Subscription.NLevels
		} else {
			sub.NLevels = fanout.DefaultNLevels
		}
		if req.Subscription.NSigFigs != nil {
			sub.Agg.SigFigs = *req.Subscription.NSigFigs
			sub.Agg.Mantissa = 1
			if req.Subscription.Mantissa != nil {
				sub.Agg.Mantissa = *req.Subscription.Mantissa
			}
		}
	}

	if req.Method == "unsubscribe" {
		c.Subs.Unsubscribe(sub.Kind, sub.Coin)
		return wire.NewSubscriptionResponse(req.Subscription)
	}
	c.Subs.Subscribe(sub)
	return wire.NewSubscriptionResponse(req.Subscription)
}

func registerHTTPServers(lc fx.Lifecycle, cfg config.Config, reg *prometheus.Registry, books *book.Books, gw *fanout.Gateway, wss *ws.Server, logger *zap.Logger) {
	engine := httpapi.NewEngine(httpapi.Config{}, reg, books)
	engine.GET("/ws", func(c *gin.Context) { wss.HandleConnection(c.Writer, c.Request) })

	addr := fmt.Sprintf("%s:%d", cfg.Server.Address, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: engine}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				logger.Info("http server listening", zap.String("addr", addr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
