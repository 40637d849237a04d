// Package gateway exposes the kiosk commands and device events to the UI
// over a local WebSocket.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/allbin/kiosk-serial/internal/eventbus"
)

var ErrMethodNotFound = errors.New("gateway: method not found")

// sendQueue is the per-client outbound frame buffer.
const sendQueue = 64

// RPCHandler handles a single method call.
type RPCHandler func(ctx context.Context, payload json.RawMessage) (any, error)

// EventSource is the part of the event bus the gateway forwards from.
type EventSource interface {
	SubscribeAll(handler eventbus.Handler) func()
}

type clientConn struct {
	ws        *websocket.Conn
	sendCh    chan Frame
	done      chan struct{}
	closeOnce sync.Once
}

func (cc *clientConn) close() {
	cc.closeOnce.Do(func() { close(cc.done) })
}

// Server is the WebSocket gateway.
type Server struct {
	events     EventSource
	auth       Authenticator
	logger     *slog.Logger
	addr       string
	handlersMu sync.RWMutex
	handlers   map[string]RPCHandler
	routes     map[string]http.HandlerFunc

	clients  sync.Map // uint64 -> *clientConn
	nextID   atomic.Uint64
	mu       sync.Mutex
	listener net.Listener
	httpSrv  *http.Server
	unsubAll func()
}

// NewServer creates a gateway server listening on addr once started.
func NewServer(events EventSource, auth Authenticator, addr string, logger *slog.Logger) *Server {
	if auth == nil {
		auth = &StaticTokenAuth{}
	}
	return &Server{
		events:   events,
		auth:     auth,
		logger:   logger,
		addr:     addr,
		handlers: make(map[string]RPCHandler),
		routes:   make(map[string]http.HandlerFunc),
	}
}

// RegisterHandler adds an RPC handler for method. Safe to call while clients
// are connected.
func (s *Server) RegisterHandler(method string, handler RPCHandler) {
	s.handlersMu.Lock()
	s.handlers[method] = handler
	s.handlersMu.Unlock()
}

// RegisterHTTPRoute adds a plain HTTP route. It must be called before Start.
func (s *Server) RegisterHTTPRoute(pattern string, handler http.HandlerFunc) {
	s.routes[pattern] = handler
}

// Listen binds the listener. Start calls it when it has not been called.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return nil
	}
	l, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("gateway listen: %w", err)
	}
	s.listener = l
	return nil
}

// BoundAddr is the address the listener bound to, or "" before Listen.
func (s *Server) BoundAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Start serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleUpgrade)
	for pattern, h := range s.routes {
		mux.HandleFunc(pattern, h)
	}

	s.mu.Lock()
	s.httpSrv = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	if s.events != nil {
		s.unsubAll = s.events.SubscribeAll(s.forward)
	}
	srv, l := s.httpSrv, s.listener
	s.mu.Unlock()

	s.logger.Info("gateway started", "addr", l.Addr().String())

	go func() {
		<-ctx.Done()
		s.Stop(context.Background())
	}()

	if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("gateway serve: %w", err)
	}
	return nil
}

// Stop disconnects all clients and shuts the HTTP server down.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	unsub, srv := s.unsubAll, s.httpSrv
	s.unsubAll = nil
	s.mu.Unlock()

	if unsub != nil {
		unsub()
	}

	s.clients.Range(func(key, value any) bool {
		cc := value.(*clientConn)
		cc.close()
		cc.ws.Close(websocket.StatusGoingAway, "server shutting down")
		s.clients.Delete(key)
		return true
	})

	if srv == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) forward(_ context.Context, event eventbus.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	frame := Frame{Type: FrameTypeEvent, Method: event.Name, Payload: payload}
	s.clients.Range(func(_, value any) bool {
		cc := value.(*clientConn)
		select {
		case cc.sendCh <- frame:
		default:
			s.logger.Warn("gateway: dropped event for slow client", "event", event.Name)
		}
		return true
	})
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.Authenticate(r.URL.Query().Get("token")); err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"localhost", "localhost:*", "127.0.0.1", "127.0.0.1:*", "[::1]", "[::1]:*", "tauri.localhost"},
	})
	if err != nil {
		s.logger.Warn("websocket accept failed", "error", err)
		return
	}

	connID := s.nextID.Add(1)
	cc := &clientConn{
		ws:     ws,
		sendCh: make(chan Frame, sendQueue),
		done:   make(chan struct{}),
	}
	s.clients.Store(connID, cc)
	s.logger.Info("gateway client connected", "conn_id", connID, "remote", r.RemoteAddr)

	go s.writeLoop(cc)
	s.readLoop(r.Context(), cc)

	cc.close()
	s.clients.Delete(connID)
	ws.Close(websocket.StatusNormalClosure, "")
	s.logger.Info("gateway client disconnected", "conn_id", connID)
}

func (s *Server) readLoop(ctx context.Context, cc *clientConn) {
	for {
		select {
		case <-cc.done:
			return
		default:
		}

		var frame Frame
		if err := wsjson.Read(ctx, cc.ws, &frame); err != nil {
			return
		}
		if frame.Type != FrameTypeRequest {
			continue
		}
		go s.dispatch(ctx, cc, frame)
	}
}

func (s *Server) writeLoop(cc *clientConn) {
	for {
		select {
		case <-cc.done:
			return
		case frame := <-cc.sendCh:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := wsjson.Write(ctx, cc.ws, frame)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func (s *Server) dispatch(ctx context.Context, cc *clientConn, req Frame) {
	s.handlersMu.RLock()
	handler, ok := s.handlers[req.Method]
	s.handlersMu.RUnlock()

	resp := Frame{Type: FrameTypeResponse, ID: req.ID, Method: req.Method}
	if !ok {
		resp.Error = fmt.Sprintf("%v: %q", ErrMethodNotFound, req.Method)
		s.send(cc, resp)
		return
	}

	result, err := handler(ctx, req.Payload)
	if err != nil {
		s.logger.Warn("rpc failed", "method", req.Method, "error", err)
		resp.Error = err.Error()
	} else if result != nil {
		raw, err := json.Marshal(result)
		if err != nil {
			resp.Error = fmt.Sprintf("encode result: %v", err)
		} else {
			resp.Payload = raw
		}
	}
	s.send(cc, resp)
}

func (s *Server) send(cc *clientConn, frame Frame) {
	select {
	case cc.sendCh <- frame:
	default:
		s.logger.Warn("gateway: dropped RPC response for slow client", "frame_id", frame.ID)
	}
}
