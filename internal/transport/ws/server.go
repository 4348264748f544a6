// Package ws is the reference WebSocket transport the spec assumes but
// leaves unspecified (§1: "transport itself... is assumed but not
// specified here"). It is a thin JSON-framing layer over
// gorilla/websocket and the fanout package's client queue, modeled on
// the teacher's websocket_gateway_v2.go connection lifecycle
// (HandleConnection / read pump / write pump), with gorilla/websocket's
// own permessage-deflate write compression at the configured level.
package ws

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/perpfeed/marketfeed/internal/fanout"
	"github.com/perpfeed/marketfeed/internal/wire"
	"go.uber.org/zap"
)

// Config controls the transport's per-connection behavior.
type Config struct {
	CompressionLevel int // 0-9, gorilla's EnableWriteCompression level
	QueueDepth       int
	SubscribeRPS     float64
	WriteTimeout     time.Duration
}

func DefaultConfig() Config {
	return Config{CompressionLevel: 1, QueueDepth: 1024, SubscribeRPS: 20, WriteTimeout: 5 * time.Second}
}

// SubscribeHandler processes a validated subscribe/unsubscribe request
// against a client's subscription set, returning the ack or rejection
// frame to send back.
type SubscribeHandler func(c *fanout.Client, req wire.Request) interface{}

// Server upgrades HTTP connections to WebSocket and bridges them to the
// fan-out gateway.
type Server struct {
	cfg      Config
	upgrader websocket.Upgrader
	gateway  *fanout.Gateway
	onSub    SubscribeHandler
	log      *zap.Logger
}

func NewServer(cfg Config, gateway *fanout.Gateway, onSub SubscribeHandler, log *zap.Logger) *Server {
	return &Server{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		gateway: gateway,
		onSub:   onSub,
		log:     log,
	}
}

func (s *Server) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	conn.EnableWriteCompression(s.cfg.CompressionLevel > 0)
	if s.cfg.CompressionLevel > 0 {
		_ = conn.SetCompressionLevel(s.cfg.CompressionLevel)
	}

	client := fanout.NewClient(s.cfg.QueueDepth, s.cfg.SubscribeRPS)
	s.gateway.Register(client)

	done := make(chan struct{})
	go s.writePump(conn, client, done)
	s.readPump(conn, client)
	close(done)

	s.gateway.Unregister(client.ID)
	_ = conn.Close()
}

func (s *Server) readPump(conn *websocket.Conn, client *fanout.Client) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var req wire.Request
		if err := json.Unmarshal(msg, &req); err != nil {
			s.log.Debug("discarding unparseable client frame", zap.Error(err))
			continue
		}
		if !client.AllowSubscriptionChange() {
			continue
		}
		if err := wire.Validate(req); err != nil {
			s.writeJSON(conn, wire.NewRejection(err.Error()))
			continue
		}
		resp := s.onSub(client, req)
		s.writeJSON(conn, resp)
	}
}

func (s *Server) writePump(conn *websocket.Conn, client *fanout.Client, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case frame, ok := <-client.Recv():
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := conn.WriteJSON(frame.Data); err != nil {
				return
			}
		}
	}
}

func (s *Server) writeJSON(conn *websocket.Conn, v interface{}) {
	_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	_ = conn.WriteJSON(v)
}
