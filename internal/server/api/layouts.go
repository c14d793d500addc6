package api

import (
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/mirror/internal/layout"
	"github.com/ayusman/mirror/internal/store"
)

// LayoutHandler handles HTTP requests for widget layouts.
type LayoutHandler struct {
	layouts *layout.Store
	board   *layout.Board
	history *store.LayoutRepository
	log     logrus.FieldLogger
}

// NewLayoutHandler creates a LayoutHandler. history may be nil, in which case
// the history endpoint answers 404.
func NewLayoutHandler(layouts *layout.Store, board *layout.Board, history *store.LayoutRepository, log logrus.FieldLogger) *LayoutHandler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &LayoutHandler{layouts: layouts, board: board, history: history, log: log}
}

// ServeHTTP routes /api/layouts, /api/layouts/{id} and /api/layouts/{id}/history.
func (h *LayoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/layouts")
	path = strings.Trim(path, "/")

	if path == "" {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.list(w, r)
		return
	}

	id, rest, _ := strings.Cut(path, "/")
	if rest == "history" {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.historyOf(w, r, id)
		return
	}
	if rest != "" {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodPut:
		h.put(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type pointBody struct {
	X float64 `json:"x" validate:"gte=0"`
	Y float64 `json:"y" validate:"gte=0"`
}

type sizeBody struct {
	Width  float64 `json:"width" validate:"gt=0"`
	Height float64 `json:"height" validate:"gt=0"`
}

type putLayoutRequest struct {
	Position *pointBody `json:"position" validate:"required"`
	Size     *sizeBody  `json:"size" validate:"required"`
}

type layoutResponse struct {
	ID        string       `json:"id"`
	Position  layout.Point `json:"position"`
	Size      layout.Size  `json:"size"`
	ZOrder    int          `json:"zOrder"`
	Dragging  bool         `json:"dragging"`
	Persisted *bool        `json:"persisted,omitempty"`
}

type listLayoutsResponse struct {
	Layouts []layoutResponse `json:"layouts"`
}

type historyEntry struct {
	Position    layout.Point `json:"position"`
	Size        layout.Size  `json:"size"`
	Source      string       `json:"source"`
	CommittedAt string       `json:"committed_at"`
}

type historyResponse struct {
	ID      string         `json:"id"`
	History []historyEntry `json:"history"`
}

func (h *LayoutHandler) response(w layout.Widget, e layout.Entry) layoutResponse {
	e = h.board.Fit(e)
	return layoutResponse{
		ID:       w.ID,
		Position: e.Position,
		Size:     e.Size,
		ZOrder:   w.ZOrder,
		Dragging: h.board.IsDragging(w.ID),
	}
}

// list handles GET /api/layouts and returns the stored layout of every widget.
func (h *LayoutHandler) list(w http.ResponseWriter, r *http.Request) {
	entries := h.layouts.All(r.Context())

	response := listLayoutsResponse{Layouts: make([]layoutResponse, 0, len(entries))}
	for _, widget := range h.board.Widgets() {
		if e, ok := entries[widget.ID]; ok {
			response.Layouts = append(response.Layouts, h.response(widget, e))
		}
	}
	sort.Slice(response.Layouts, func(i, j int) bool {
		return response.Layouts[i].ID < response.Layouts[j].ID
	})

	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/layouts/{id}.
func (h *LayoutHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	widget, ok := h.board.Widget(id)
	if !ok {
		writeError(w, http.StatusNotFound, "Widget not found")
		return
	}

	e, err := h.layouts.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, layout.ErrUnknownWidget) {
			writeError(w, http.StatusNotFound, "Widget not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get layout")
		return
	}

	writeJSON(w, http.StatusOK, h.response(widget, e))
}

// put handles PUT /api/layouts/{id}. The write goes through the shared layout
// store, so it is last-writer-wins against both drag channels.
func (h *LayoutHandler) put(w http.ResponseWriter, r *http.Request, id string) {
	widget, ok := h.board.Widget(id)
	if !ok {
		writeError(w, http.StatusNotFound, "Widget not found")
		return
	}

	var req putLayoutRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid layout: "+err.Error())
		return
	}

	// Positions past the display edge are pulled back inside it.
	e := h.board.Fit(layout.Entry{
		Position: layout.Point{X: req.Position.X, Y: req.Position.Y},
		Size:     layout.Size{Width: req.Size.Width, Height: req.Size.Height},
	})

	persisted := true
	if err := h.layouts.Set(r.Context(), id, e, layout.SourceAPI); err != nil {
		persisted = false
		h.log.WithError(err).WithField("widget", id).Error("layout persist failed")
	}

	resp := h.response(widget, e)
	resp.Persisted = &persisted
	writeJSON(w, http.StatusOK, resp)
}

// historyOf handles GET /api/layouts/{id}/history?limit=n.
func (h *LayoutHandler) historyOf(w http.ResponseWriter, r *http.Request, id string) {
	if h.history == nil {
		writeError(w, http.StatusNotFound, "History not available")
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	rows, err := h.history.History(r.Context(), id, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get history")
		return
	}

	response := historyResponse{ID: id, History: make([]historyEntry, 0, len(rows))}
	for _, l := range rows {
		e := l.Entry()
		response.History = append(response.History, historyEntry{
			Position:    e.Position,
			Size:        e.Size,
			Source:      l.Source,
			CommittedAt: l.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}

	writeJSON(w, http.StatusOK, response)
}
