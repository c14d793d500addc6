package drag

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ayusman/mirror/internal/layout"
)

// Manager owns at most one session for a single input channel.
// It is not safe for concurrent use; callers serialize access.
type Manager struct {
	board  *layout.Board
	store  *layout.Store
	source layout.Source
	log    logrus.FieldLogger

	session *Session

	// now is swapped in tests.
	now func() time.Time
}

// NewManager creates a Manager for one channel.
func NewManager(board *layout.Board, store *layout.Store, source layout.Source, log logrus.FieldLogger) *Manager {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Manager{
		board:  board,
		store:  store,
		source: source,
		log:    log.WithField("source", source),
		now:    time.Now,
	}
}

// Begin starts moving w from the given cursor. Any active session is
// committed first.
func (m *Manager) Begin(ctx context.Context, w layout.Widget, cursor layout.Point) Session {
	return m.begin(ctx, w, cursor, ModeMove)
}

// BeginResize starts resizing w from its bottom-right handle.
func (m *Manager) BeginResize(ctx context.Context, w layout.Widget, cursor layout.Point) Session {
	return m.begin(ctx, w, cursor, ModeResize)
}

func (m *Manager) begin(ctx context.Context, w layout.Widget, cursor layout.Point, mode Mode) Session {
	m.End(ctx)

	m.session = &Session{
		ID:             uuid.NewString(),
		WidgetID:       w.ID,
		Mode:           mode,
		Source:         m.source,
		AnchorCursor:   cursor,
		AnchorPosition: w.Position,
		AnchorSize:     w.Size,
		Current:        w.Position,
		CurrentSize:    w.Size,
		StartedAt:      m.now(),
	}
	m.board.SetDragging(w.ID, true)

	m.log.WithFields(logrus.Fields{
		"widget":  w.ID,
		"session": m.session.ID,
		"mode":    mode,
	}).Debug("drag started")

	return *m.session
}

// Update moves the active session to follow cursor, clamped inside container,
// and shows the result on the board. It reports false when no session is
// active.
func (m *Manager) Update(cursor layout.Point, container layout.Size) (layout.Entry, bool) {
	if m.session == nil {
		return layout.Entry{}, false
	}
	m.session.step(cursor, container)
	e := m.session.Entry()
	m.board.Place(m.session.WidgetID, e)
	return e, true
}

// End commits the active session to the store and clears it. A store failure
// is logged; the board keeps the dragged layout either way.
func (m *Manager) End(ctx context.Context) (Session, bool) {
	if m.session == nil {
		return Session{}, false
	}
	s := *m.session
	m.session = nil
	m.board.SetDragging(s.WidgetID, false)

	fields := logrus.Fields{
		"widget":   s.WidgetID,
		"session":  s.ID,
		"duration": m.now().Sub(s.StartedAt).String(),
	}
	if err := m.store.Set(ctx, s.WidgetID, s.Entry(), m.source); err != nil {
		m.log.WithFields(fields).WithError(err).Error("layout commit failed")
		return s, true
	}
	m.log.WithFields(fields).Debug("drag committed")
	return s, true
}

// Active returns the current session, if any.
func (m *Manager) Active() (Session, bool) {
	if m.session == nil {
		return Session{}, false
	}
	return *m.session, true
}
