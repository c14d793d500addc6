package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/ayusman/mirror/internal/cursor"
	"github.com/ayusman/mirror/internal/engine"
	"github.com/ayusman/mirror/internal/layout"
	"github.com/ayusman/mirror/internal/pointer"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

const (
	sendBuffer = 32
	writeWait  = 5 * time.Second
)

// Message types exchanged with the render surface.
const (
	MsgCursor        = "cursor"
	MsgLayoutChanged = "layout_changed"
	MsgWidgetMoved   = "widget_moved"
	MsgError         = "error"

	MsgViewport    = "viewport"
	MsgPointerDown = "pointer_down"
	MsgResizeDown  = "resize_down"
	MsgPointerMove = "pointer_move"
	MsgPointerUp   = "pointer_up"
)

// Outbound is a message sent to render-surface clients.
type Outbound struct {
	Type     string           `json:"type"`
	Snapshot *engine.Snapshot `json:"snapshot,omitempty"`
	Change   *layout.Change   `json:"change,omitempty"`
	Widget   *layout.Widget   `json:"widget,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// Inbound is a message received from a render-surface client.
type Inbound struct {
	Type     string  `json:"type"`
	WidgetID string  `json:"widgetId,omitempty"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width,omitempty"`
	Height   float64 `json:"height,omitempty"`
}

// HubConfig wires the hub to the rest of the mirror.
type HubConfig struct {
	Engine  *engine.Engine
	Pointer *pointer.Controller
	Layouts *layout.Store
	Board   *layout.Board
	// Viewport is used until a client reports its own.
	Viewport cursor.Viewport
	// SnapshotRate caps steady-state cursor messages per second. Gesture
	// and focus changes are always sent. Zero means no cap.
	SnapshotRate float64
	Log          logrus.FieldLogger
}

type snapshotKey struct {
	enabled  bool
	gesture  string
	focus    string
	detected bool
	pinching bool
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans engine snapshots and layout changes out to render-surface clients
// and feeds their pointer events into the pointer channel.
type Hub struct {
	cfg         HubConfig
	log         logrus.FieldLogger
	limiter     *rate.Limiter
	unsubscribe func()

	mu       sync.RWMutex
	clients  map[*client]struct{}
	viewport cursor.Viewport
	lastKey  snapshotKey
	holder   *client
}

// NewHub creates a Hub and subscribes it to the engine and the layout store.
func NewHub(cfg HubConfig) *Hub {
	log := cfg.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	h := &Hub{
		cfg:      cfg,
		log:      log.WithField("component", "hub"),
		clients:  make(map[*client]struct{}),
		viewport: cfg.Viewport,
	}
	if cfg.Board != nil {
		cfg.Board.SetBounds(layout.Size{Width: cfg.Viewport.Width, Height: cfg.Viewport.Height})
	}
	if cfg.SnapshotRate > 0 {
		h.limiter = rate.NewLimiter(rate.Limit(cfg.SnapshotRate), 1)
	}
	if cfg.Engine != nil {
		cfg.Engine.OnSnapshot(h.onSnapshot)
	}
	if cfg.Layouts != nil {
		h.unsubscribe = cfg.Layouts.Subscribe(h.onLayoutChange)
	}
	return h
}

// Close detaches the hub from the layout store and drops every client.
func (h *Hub) Close() {
	if h.unsubscribe != nil {
		h.unsubscribe()
	}
	h.mu.Lock()
	for c := range h.clients {
		c.conn.Close()
	}
	h.mu.Unlock()
}

// Viewport returns the render surface size last reported by a client.
func (h *Hub) Viewport() cursor.Viewport {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.viewport
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go h.writePump(c)

	// Pointer commits must outlive the request.
	ctx := context.WithoutCancel(r.Context())
	h.readPump(ctx, c)
	h.drop(ctx, c)
}

func (h *Hub) readPump(ctx context.Context, c *client) {
	for {
		var msg Inbound
		if err := c.conn.ReadJSON(&msg); err != nil {
			var closeErr *websocket.CloseError
			if !errors.As(err, &closeErr) {
				h.log.WithError(err).Debug("websocket read ended")
			}
			return
		}
		h.handle(ctx, c, msg)
	}
}

func (h *Hub) writePump(c *client) {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// drop unregisters a client. A pointer drag held by the client is committed.
func (h *Hub) drop(ctx context.Context, c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	close(c.send)
	holding := h.holder == c
	if holding {
		h.holder = nil
	}
	h.mu.Unlock()

	if holding && h.cfg.Pointer != nil {
		h.cfg.Pointer.Up(ctx)
	}
}

func (h *Hub) handle(ctx context.Context, c *client, msg Inbound) {
	p := layout.Point{X: msg.X, Y: msg.Y}

	switch msg.Type {
	case MsgViewport:
		if msg.Width > 0 && msg.Height > 0 {
			if h.cfg.Board != nil {
				h.cfg.Board.SetBounds(layout.Size{Width: msg.Width, Height: msg.Height})
			}
			h.mu.Lock()
			h.viewport = cursor.Viewport{Width: msg.Width, Height: msg.Height}
			h.mu.Unlock()
		}
		return
	}

	if h.cfg.Pointer == nil {
		h.reply(c, Outbound{Type: MsgError, Error: "pointer input unavailable"})
		return
	}

	switch msg.Type {
	case MsgPointerDown, MsgResizeDown:
		var err error
		if msg.Type == MsgResizeDown {
			_, err = h.cfg.Pointer.ResizeDown(ctx, msg.WidgetID, p)
		} else {
			_, err = h.cfg.Pointer.Down(ctx, msg.WidgetID, p)
		}
		if err != nil {
			if !errors.Is(err, pointer.ErrNoTarget) {
				h.reply(c, Outbound{Type: MsgError, Error: err.Error()})
			}
			return
		}
		h.mu.Lock()
		h.holder = c
		h.mu.Unlock()

	case MsgPointerMove:
		if !h.holds(c) {
			return
		}
		vp := h.Viewport()
		if _, ok := h.cfg.Pointer.Move(p, layout.Size{Width: vp.Width, Height: vp.Height}); !ok {
			return
		}
		if s, ok := h.cfg.Pointer.Active(); ok && h.cfg.Board != nil {
			if w, ok := h.cfg.Board.Widget(s.WidgetID); ok {
				h.broadcast(Outbound{Type: MsgWidgetMoved, Widget: &w})
			}
		}

	case MsgPointerUp:
		h.mu.Lock()
		holding := h.holder == c
		if holding {
			h.holder = nil
		}
		h.mu.Unlock()
		if holding {
			h.cfg.Pointer.Up(ctx)
		}

	default:
		h.reply(c, Outbound{Type: MsgError, Error: "unknown message type: " + msg.Type})
	}
}

func (h *Hub) onSnapshot(s engine.Snapshot) {
	if h.Clients() == 0 {
		return
	}

	key := snapshotKey{
		enabled:  s.Enabled,
		gesture:  string(s.Gesture),
		focus:    s.Focus,
		detected: s.Cursor.Detected,
		pinching: s.Cursor.IsPinching,
	}
	h.mu.Lock()
	changed := key != h.lastKey
	h.lastKey = key
	h.mu.Unlock()

	if !changed && h.limiter != nil && !h.limiter.Allow() {
		return
	}
	h.broadcast(Outbound{Type: MsgCursor, Snapshot: &s})
}

// onLayoutChange forwards a committed change as the board shows it.
func (h *Hub) onLayoutChange(c layout.Change) {
	if h.cfg.Board != nil {
		c.Entry = h.cfg.Board.Fit(c.Entry)
	}
	h.broadcast(Outbound{Type: MsgLayoutChanged, Change: &c})
}

// holds reports whether c started the pointer drag in progress.
func (h *Hub) holds(c *client) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.holder == c
}

// broadcast sends msg to every client. Slow clients miss messages rather
// than stall the frame loop.
func (h *Hub) broadcast(msg Outbound) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.WithError(err).Error("encode websocket message")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.log.WithField("type", msg.Type).Debug("client send buffer full")
		}
	}
}

func (h *Hub) reply(c *client, msg Outbound) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}
