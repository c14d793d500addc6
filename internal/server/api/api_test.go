package api

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"

	"github.com/ayusman/mirror/internal/layout"
	"github.com/ayusman/mirror/internal/store"
)

// newTestStore creates a new Store in a temporary directory for testing.
func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "mirror-api-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() {
		os.RemoveAll(tmpDir)
	})

	s, err := store.New(filepath.Join(tmpDir, "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})

	return s
}

var testDisplay = layout.Size{Width: 1920, Height: 1080}

// newTestLayouts wires a layout store and board over a sqlite store.
func newTestLayouts(t *testing.T, s *store.Store) (*layout.Store, *layout.Board) {
	t.Helper()

	log, _ := test.NewNullLogger()
	catalog := layout.DefaultCatalog()
	layouts := layout.NewStore(s.LayoutBackend(), catalog, log)
	board := layout.NewBoard(context.Background(), layouts, catalog)
	board.SetBounds(testDisplay)
	t.Cleanup(board.Close)

	return layouts, board
}
