package transport

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/oakmont/parcelscout/pkg/logging"
	"github.com/oakmont/parcelscout/pkg/protocol"
)

// WebSocketOptions configures the websocket transport.
type WebSocketOptions struct {
	// Addr is the listen address, e.g. "127.0.0.1:8931".
	Addr string

	Handler Handler
	Logger  *logging.Logger

	// Gatherer, when set, exposes /metrics.
	Gatherer prometheus.Gatherer
}

// WebSocket serves the protocol over websocket connections at /ws, with
// /healthz for liveness and optionally /metrics. Each connection is an
// independent channel: a failure on one never affects the others.
type WebSocket struct {
	addr     string
	handler  Handler
	logger   *logging.Logger
	gatherer prometheus.Gatherer

	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

// NewWebSocket creates a websocket transport.
func NewWebSocket(opts WebSocketOptions) *WebSocket {
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	return &WebSocket{
		addr:     opts.Addr,
		handler:  opts.Handler,
		logger:   opts.Logger,
		gatherer: opts.Gatherer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		conns: make(map[*websocket.Conn]struct{}),
	}
}

// routes builds the HTTP mux: the protocol endpoint plus liveness and
// metrics.
func (t *WebSocket) routes(ctx context.Context) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		t.serveConn(ctx, w, r)
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if t.gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(t.gatherer, promhttp.HandlerOpts{}))
	}
	return mux
}

// Run serves until ctx ends, then shuts the server down gracefully.
func (t *WebSocket) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              t.addr,
		Handler:           t.routes(ctx),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()
	t.logger.Info("websocket transport listening", zap.String("addr", t.addr))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		t.closeConns()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (t *WebSocket) serveConn(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		t.logger.Warn("websocket upgrade failed",
			zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}
	t.track(conn, true)
	defer func() {
		t.track(conn, false)
		conn.Close()
	}()

	t.logger.Info("client connected", zap.String("remote", r.RemoteAddr))

	// Writes are serialized per connection; handler goroutines complete in
	// arbitrary order.
	var writeMu sync.Mutex
	write := func(resp *protocol.Response) {
		data, encErr := protocol.EncodeResponse(resp)
		if encErr != nil {
			t.logger.Error("response encoding failed",
				zap.String("id", resp.ID), zap.Error(encErr))
			return
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		if writeErr := conn.WriteMessage(websocket.TextMessage, data); writeErr != nil {
			t.logger.Warn("websocket write failed",
				zap.String("id", resp.ID), zap.Error(writeErr))
		}
	}

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		_, payload, readErr := conn.ReadMessage()
		if readErr != nil {
			// This channel is done; others are unaffected.
			if websocket.IsUnexpectedCloseError(readErr, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				t.logger.Warn("websocket channel failed",
					zap.String("remote", r.RemoteAddr), zap.Error(readErr))
			}
			return
		}

		req, decErr := protocol.DecodeRequest(payload)
		if decErr != nil {
			id := ""
			if req != nil {
				id = req.ID
			}
			write(protocol.NewErrorResponse(id, decErr))
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			write(t.handler(ctx, req))
		}()
	}
}

func (t *WebSocket) track(conn *websocket.Conn, add bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if add {
		t.conns[conn] = struct{}{}
	} else {
		delete(t.conns, conn)
	}
}

// closeConns interrupts the read loops so graceful shutdown is not held
// hostage by idle clients.
func (t *WebSocket) closeConns() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for conn := range t.conns {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		_ = conn.Close()
	}
}
