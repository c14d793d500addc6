package layout

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// ErrUnknownWidget is returned for widget ids with neither a stored nor a
// default layout.
var ErrUnknownWidget = errors.New("unknown widget")

// Source names the channel that produced a layout change.
type Source string

const (
	SourceGesture Source = "gesture"
	SourcePointer Source = "pointer"
	SourceAPI     Source = "api"
	SourceRemote  Source = "remote"
)

type sourceKey struct{}

// WithSource tags ctx with the channel writing a layout.
func WithSource(ctx context.Context, source Source) context.Context {
	return context.WithValue(ctx, sourceKey{}, source)
}

// SourceFrom returns the channel tagged on ctx, defaulting to SourceAPI.
func SourceFrom(ctx context.Context) Source {
	if s, ok := ctx.Value(sourceKey{}).(Source); ok {
		return s
	}
	return SourceAPI
}

// Change is a committed layout update.
type Change struct {
	WidgetID string `json:"widgetId"`
	Entry    Entry  `json:"entry"`
	Source   Source `json:"source"`
}

// Backend persists layout entries.
type Backend interface {
	// Load returns the stored entry and whether one exists.
	Load(ctx context.Context, widgetID string) (Entry, bool, error)
	Save(ctx context.Context, widgetID string, e Entry) error
}

// Store is the single key space for widget layouts. Reads fall through
// memory, then the backend, then the registered default. Writes are
// last-writer-wins across every channel.
type Store struct {
	backend Backend
	log     logrus.FieldLogger

	mu       sync.RWMutex
	defaults map[string]Entry
	entries  map[string]Entry
	subs     map[int]func(Change)
	nextSub  int
}

// NewStore creates a Store. A nil backend keeps layouts in memory only.
func NewStore(backend Backend, defaults []Widget, log logrus.FieldLogger) *Store {
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Store{
		backend:  backend,
		log:      log,
		defaults: make(map[string]Entry, len(defaults)),
		entries:  make(map[string]Entry),
		subs:     make(map[int]func(Change)),
	}
	for _, w := range defaults {
		s.defaults[w.ID] = w.Entry()
	}
	return s
}

// Get returns the current layout for a widget.
// Backend read failures are logged and the default is used instead.
func (s *Store) Get(ctx context.Context, widgetID string) (Entry, error) {
	s.mu.RLock()
	e, ok := s.entries[widgetID]
	def, hasDefault := s.defaults[widgetID]
	s.mu.RUnlock()
	if ok {
		return e, nil
	}

	if s.backend != nil {
		stored, found, err := s.backend.Load(ctx, widgetID)
		if err != nil {
			s.log.WithError(err).WithField("widget", widgetID).Warn("layout load failed, using default")
		} else if found {
			s.mu.Lock()
			// A concurrent Set wins over what we just read.
			if cur, ok := s.entries[widgetID]; ok {
				stored = cur
			} else {
				s.entries[widgetID] = stored
			}
			s.mu.Unlock()
			return stored, nil
		}
	}

	if !hasDefault {
		return Entry{}, fmt.Errorf("get layout %q: %w", widgetID, ErrUnknownWidget)
	}
	return def, nil
}

// All returns the current layout of every known widget.
func (s *Store) All(ctx context.Context) map[string]Entry {
	s.mu.RLock()
	ids := make([]string, 0, len(s.defaults)+len(s.entries))
	for id := range s.defaults {
		ids = append(ids, id)
	}
	for id := range s.entries {
		if _, ok := s.defaults[id]; !ok {
			ids = append(ids, id)
		}
	}
	s.mu.RUnlock()

	out := make(map[string]Entry, len(ids))
	for _, id := range ids {
		if e, err := s.Get(ctx, id); err == nil {
			out[id] = e
		}
	}
	return out
}

// Set records a new layout, notifies subscribers and persists it.
// The in-memory value is kept even when persistence fails; the error is
// returned for the caller to log.
func (s *Store) Set(ctx context.Context, widgetID string, e Entry, source Source) error {
	s.put(Change{WidgetID: widgetID, Entry: e, Source: source})

	if s.backend == nil {
		return nil
	}
	if err := s.backend.Save(WithSource(ctx, source), widgetID, e); err != nil {
		return fmt.Errorf("persist layout %q: %w", widgetID, err)
	}
	return nil
}

// Apply records a change that has already been persisted elsewhere.
func (s *Store) Apply(c Change) {
	s.put(c)
}

// Subscribe registers fn for every change. The returned func unsubscribes.
// fn runs on the writer's goroutine and must not call Set.
func (s *Store) Subscribe(fn func(Change)) (cancel func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Store) put(c Change) {
	s.mu.Lock()
	s.entries[c.WidgetID] = c.Entry
	subs := make([]func(Change), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(c)
	}
}
