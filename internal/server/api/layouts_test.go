package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"

	"github.com/ayusman/mirror/internal/layout"
)

func newTestLayoutHandler(t *testing.T) (*LayoutHandler, *layout.Store, *layout.Board) {
	t.Helper()
	s := newTestStore(t)
	layouts, board := newTestLayouts(t, s)
	log, _ := test.NewNullLogger()
	return NewLayoutHandler(layouts, board, s.Layouts(), log), layouts, board
}

func TestLayoutHandler_List(t *testing.T) {
	handler, _, _ := newTestLayoutHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/layouts", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp listLayoutsResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if len(resp.Layouts) != len(layout.DefaultCatalog()) {
		t.Errorf("len(layouts) = %d, want %d", len(resp.Layouts), len(layout.DefaultCatalog()))
	}
	for i := 1; i < len(resp.Layouts); i++ {
		if resp.Layouts[i-1].ID > resp.Layouts[i].ID {
			t.Errorf("layouts not sorted: %q before %q", resp.Layouts[i-1].ID, resp.Layouts[i].ID)
		}
	}
}

func TestLayoutHandler_Get(t *testing.T) {
	handler, _, _ := newTestLayoutHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/layouts/"+layout.PreviewID, nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp layoutResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if resp.ID != layout.PreviewID {
		t.Errorf("ID = %q, want %q", resp.ID, layout.PreviewID)
	}
	if resp.Position != (layout.Point{X: 16, Y: 16}) {
		t.Errorf("Position = %+v, want {16 16}", resp.Position)
	}
	if resp.Dragging {
		t.Error("Dragging = true, want false")
	}
}

func TestLayoutHandler_GetNotFound(t *testing.T) {
	handler, _, _ := newTestLayoutHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/layouts/nonexistent", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestLayoutHandler_Put(t *testing.T) {
	handler, layouts, board := newTestLayoutHandler(t)

	body := `{"position":{"x":400,"y":300},"size":{"width":320,"height":200}}`
	req := httptest.NewRequest(http.MethodPut, "/api/layouts/"+layout.ClockID, bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp layoutResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Persisted == nil || !*resp.Persisted {
		t.Error("Persisted should be true")
	}

	got, err := layouts.Get(context.Background(), layout.ClockID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	want := layout.Entry{Position: layout.Point{X: 400, Y: 300}, Size: layout.Size{Width: 320, Height: 200}}
	if got != want {
		t.Errorf("stored = %+v, want %+v", got, want)
	}

	w2, _ := board.Widget(layout.ClockID)
	if w2.Position != want.Position {
		t.Errorf("board position = %+v, want %+v", w2.Position, want.Position)
	}
}

func TestLayoutHandler_PutClampsToDisplay(t *testing.T) {
	tests := []struct {
		name string
		body string
		want layout.Point
	}{
		{"far off screen", `{"position":{"x":100000,"y":100000},"size":{"width":300,"height":120}}`, layout.Point{X: 1620, Y: 960}},
		{"past right edge", `{"position":{"x":1700,"y":50},"size":{"width":300,"height":120}}`, layout.Point{X: 1620, Y: 50}},
		{"wider than display", `{"position":{"x":10,"y":10},"size":{"width":2500,"height":120}}`, layout.Point{X: 0, Y: 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, layouts, board := newTestLayoutHandler(t)

			req := httptest.NewRequest(http.MethodPut, "/api/layouts/"+layout.ClockID, bytes.NewBufferString(tt.body))
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
			}

			var resp layoutResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.Position != tt.want {
				t.Errorf("response position = %+v, want %+v", resp.Position, tt.want)
			}

			got, err := layouts.Get(context.Background(), layout.ClockID)
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			if got.Position != tt.want {
				t.Errorf("stored position = %+v, want %+v", got.Position, tt.want)
			}

			clock, _ := board.Widget(layout.ClockID)
			if clock.Position != tt.want {
				t.Errorf("board position = %+v, want %+v", clock.Position, tt.want)
			}
		})
	}
}

func TestLayoutHandler_PutInvalid(t *testing.T) {
	handler, _, _ := newTestLayoutHandler(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"position":`},
		{"missing size", `{"position":{"x":1,"y":1}}`},
		{"zero width", `{"position":{"x":1,"y":1},"size":{"width":0,"height":10}}`},
		{"negative x", `{"position":{"x":-5,"y":1},"size":{"width":10,"height":10}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, "/api/layouts/"+layout.ClockID, bytes.NewBufferString(tt.body))
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestLayoutHandler_PutUnknownWidget(t *testing.T) {
	handler, _, _ := newTestLayoutHandler(t)

	body := `{"position":{"x":1,"y":1},"size":{"width":10,"height":10}}`
	req := httptest.NewRequest(http.MethodPut, "/api/layouts/nonexistent", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestLayoutHandler_History(t *testing.T) {
	handler, _, _ := newTestLayoutHandler(t)

	for _, x := range []string{"10", "20", "30"} {
		body := `{"position":{"x":` + x + `,"y":5},"size":{"width":100,"height":100}}`
		req := httptest.NewRequest(http.MethodPut, "/api/layouts/"+layout.NewsID, bytes.NewBufferString(body))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("put status = %d", w.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/layouts/"+layout.NewsID+"/history?limit=2", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp historyResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.History) != 2 {
		t.Fatalf("len(history) = %d, want 2", len(resp.History))
	}
	if resp.History[0].Position.X != 30 {
		t.Errorf("newest X = %v, want 30", resp.History[0].Position.X)
	}
	if resp.History[0].Source != string(layout.SourceAPI) {
		t.Errorf("Source = %q, want %q", resp.History[0].Source, layout.SourceAPI)
	}
}

func TestLayoutHandler_HistoryBadLimit(t *testing.T) {
	handler, _, _ := newTestLayoutHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/layouts/clock/history?limit=abc", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestLayoutHandler_MethodNotAllowed(t *testing.T) {
	handler, _, _ := newTestLayoutHandler(t)

	req := httptest.NewRequest(http.MethodDelete, "/api/layouts/clock", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want %d", w.Code, http.StatusMethodNotAllowed)
	}
}
