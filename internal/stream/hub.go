// Package stream fans run records out to websocket clients while a
// simulation is running.
package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/akshitanchan/marketsim/internal/eventlog"
	"github.com/akshitanchan/marketsim/internal/logging"
)

// DefaultBuffer is how many records a slow client may fall behind before
// records are dropped for it
const DefaultBuffer = 256

type frame struct {
	typ  eventlog.Type
	data []byte
}

type subscription struct {
	ch    chan frame
	types map[eventlog.Type]bool // nil accepts every type
}

// Hub is an eventlog.Sink that broadcasts each record as JSON to every
// connected client. Broadcasts never block the run: a full client buffer
// drops the record for that client.
type Hub struct {
	mu     sync.RWMutex
	subs   map[*subscription]struct{}
	buffer int
	log    *logging.Logger

	upgrader websocket.Upgrader
	dropped  atomic.Uint64
}

func NewHub(log *logging.Logger, buffer int) *Hub {
	if log == nil {
		log = logging.NewNopLogger()
	}
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub{
		subs:     make(map[*subscription]struct{}),
		buffer:   buffer,
		log:      log.Named("stream"),
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
	}
}

func (h *Hub) subscribe(types map[eventlog.Type]bool) *subscription {
	sub := &subscription{ch: make(chan frame, h.buffer), types: types}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

func (h *Hub) unsubscribe(sub *subscription) {
	h.mu.Lock()
	delete(h.subs, sub)
	h.mu.Unlock()
	close(sub.ch)
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped returns how many client deliveries were skipped on full buffers
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// Write implements eventlog.Sink
func (h *Hub) Write(r *eventlog.Record) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.subs) == 0 {
		return nil
	}
	data, err := json.Marshal(r)
	if err != nil {
		return errors.Wrap(err, "encode record")
	}
	f := frame{typ: r.Type, data: data}
	for sub := range h.subs {
		if sub.types != nil && !sub.types[f.typ] {
			continue
		}
		select {
		case sub.ch <- f:
		default:
			h.dropped.Add(1)
		}
	}
	return nil
}

// ServeHTTP upgrades the request and streams records until the client goes
// away. A "type" query parameter, comma separated, filters record types.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("upgrade failed", logging.Error(err))
		return
	}
	defer conn.Close()

	var types map[eventlog.Type]bool
	if q := r.URL.Query().Get("type"); q != "" {
		types = make(map[eventlog.Type]bool)
		for _, t := range strings.Split(q, ",") {
			types[eventlog.Type(strings.TrimSpace(t))] = true
		}
	}
	sub := h.subscribe(types)
	defer h.unsubscribe(sub)

	// Drain control frames so a client close is noticed.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case f := <-sub.ch:
			if err := conn.WriteMessage(websocket.TextMessage, f.data); err != nil {
				return
			}
		case <-gone:
			return
		}
	}
}

// Serve runs the hub on addr under /records until ctx is done
func Serve(ctx context.Context, addr string, h *Hub) error {
	mux := http.NewServeMux()
	mux.Handle("/records", h)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
