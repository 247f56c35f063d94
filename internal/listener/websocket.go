package listener

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pixil98/go-gather/internal/protocol"
	"github.com/pixil98/go-gather/internal/realm"
)

const (
	DefaultSendBuffer = 64
	shutdownTimeout   = 5 * time.Second
)

// Presence is the engine the listener drives.
type Presence interface {
	Connect(ctx context.Context, c protocol.Conn) error
	Dispatch(ctx context.Context, c protocol.Conn, msg protocol.Message)
	Disconnect(ctx context.Context, c protocol.Conn)
	PlayersInRoom(identity string, room int) ([]realm.Player, error)
	PlayerCounts(realmIds []string) []int
}

// Router delivers frames addressed to a connection id.
type Router interface {
	Attach(connId string, deliver func([]byte)) error
	Detach(connId string)
}

// WebsocketListener serves the realtime endpoint and the presence queries.
type WebsocketListener struct {
	port     uint16
	presence Presence
	router   Router

	metrics    http.Handler
	sendBuffer int
	ready      <-chan struct{}
	upgrader   websocket.Upgrader

	wg sync.WaitGroup
}

func NewWebsocketListener(port uint16, presence Presence, router Router, opts ...WebsocketListenerOpt) *WebsocketListener {
	l := &WebsocketListener{
		port:       port,
		presence:   presence,
		router:     router,
		sendBuffer: DefaultSendBuffer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

func (l *WebsocketListener) Start(ctx context.Context) error {
	if l.ready != nil {
		select {
		case <-l.ready:
		case <-ctx.Done():
			return nil
		}
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", l.port))
	if err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			return fmt.Errorf("port %d is already in use (another server running?)", l.port)
		}
		return fmt.Errorf("listening on port %d: %w", l.port, err)
	}

	// Connections outlive the request context, so they get their own.
	connCtx, cancelConns := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelConns()

	srv := &http.Server{
		Handler:           l.Handler(connCtx),
		ReadHeaderTimeout: 10 * time.Second,
	}

	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				slog.WarnContext(ctx, "shutting down http server", "error", err)
			}
		case <-done:
		}
	}()

	slog.InfoContext(ctx, "listening for websockets", "port", l.port)

	err = srv.Serve(ln)
	cancelConns()
	l.wg.Wait()

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving on port %d: %w", l.port, err)
	}
	return nil
}

// Handler routes every endpoint. Websocket connections are closed when ctx ends.
func (l *WebsocketListener) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", func(w http.ResponseWriter, r *http.Request) {
		l.serveWs(ctx, w, r)
	})
	mux.HandleFunc("GET /getPlayersInRoom", l.playersInRoom)
	mux.HandleFunc("GET /getPlayerCounts", l.playerCounts)
	if l.metrics != nil {
		mux.Handle("GET /metrics", l.metrics)
	}
	return mux
}

func (l *WebsocketListener) serveWs(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pc := protocol.Conn{
		Id:       uuid.NewString(),
		Identity: q.Get("uid"),
		Username: q.Get("username"),
	}
	if pc.Identity == "" || pc.Username == "" {
		writeMessage(w, http.StatusBadRequest, protocol.ErrMissingIdentity.Error())
		return
	}

	ws, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.WarnContext(ctx, "upgrading connection", "identity", pc.Identity, "error", err)
		return
	}

	l.wg.Add(1)
	defer l.wg.Done()

	c := newClient(ws, l.sendBuffer)
	defer c.close()

	if err := l.router.Attach(pc.Id, c.enqueue); err != nil {
		slog.ErrorContext(ctx, "attaching connection", "connId", pc.Id, "error", err)
		return
	}
	defer l.router.Detach(pc.Id)

	if err := l.presence.Connect(ctx, pc); err != nil {
		slog.WarnContext(ctx, "rejecting connection", "connId", pc.Id, "error", err)
		c.reject(err.Error())
		return
	}
	defer l.presence.Disconnect(ctx, pc)

	slog.InfoContext(ctx, "client connected", "identity", pc.Identity, "connId", pc.Id, "remote", r.RemoteAddr)

	go c.writePump(ctx)
	c.readPump(ctx, func(msg protocol.Message) {
		l.presence.Dispatch(ctx, pc, msg)
	})

	slog.InfoContext(ctx, "client disconnected", "identity", pc.Identity, "connId", pc.Id)
}
