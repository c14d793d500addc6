package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ayusman/mirror/internal/layout"
)

// Layout is the stored position and size of one widget.
type Layout struct {
	WidgetID  string
	X         float64
	Y         float64
	Width     float64
	Height    float64
	Source    string
	UpdatedAt time.Time
}

// Entry converts the row to a layout entry.
func (l *Layout) Entry() layout.Entry {
	return layout.Entry{
		Position: layout.Point{X: l.X, Y: l.Y},
		Size:     layout.Size{Width: l.Width, Height: l.Height},
	}
}

// LayoutRepository provides CRUD operations for widget layouts.
type LayoutRepository struct {
	db *sql.DB
}

// Layouts returns the layout repository for this store.
func (s *Store) Layouts() *LayoutRepository {
	return &LayoutRepository{db: s.db}
}

// Save inserts or replaces a widget's layout and appends it to the history.
func (r *LayoutRepository) Save(ctx context.Context, l *Layout) error {
	l.UpdatedAt = time.Now()
	if l.Source == "" {
		l.Source = string(layout.SourceAPI)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO layouts (widget_id, x, y, width, height, source, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(widget_id) DO UPDATE SET
			x = excluded.x, y = excluded.y,
			width = excluded.width, height = excluded.height,
			source = excluded.source, updated_at = excluded.updated_at`,
		l.WidgetID, l.X, l.Y, l.Width, l.Height, l.Source, l.UpdatedAt,
	)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO layout_history (widget_id, x, y, width, height, source, committed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		l.WidgetID, l.X, l.Y, l.Width, l.Height, l.Source, l.UpdatedAt,
	)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// GetByID retrieves a widget's layout.
func (r *LayoutRepository) GetByID(ctx context.Context, widgetID string) (*Layout, error) {
	l := &Layout{}
	err := r.db.QueryRowContext(ctx,
		`SELECT widget_id, x, y, width, height, source, updated_at
		 FROM layouts WHERE widget_id = ?`,
		widgetID,
	).Scan(&l.WidgetID, &l.X, &l.Y, &l.Width, &l.Height, &l.Source, &l.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return l, nil
}

// List retrieves every stored layout ordered by widget id.
func (r *LayoutRepository) List(ctx context.Context) ([]*Layout, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT widget_id, x, y, width, height, source, updated_at
		 FROM layouts ORDER BY widget_id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var layouts []*Layout
	for rows.Next() {
		l := &Layout{}
		if err := rows.Scan(&l.WidgetID, &l.X, &l.Y, &l.Width, &l.Height, &l.Source, &l.UpdatedAt); err != nil {
			return nil, err
		}
		layouts = append(layouts, l)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return layouts, nil
}

// History returns up to limit past commits for a widget, newest first.
func (r *LayoutRepository) History(ctx context.Context, widgetID string, limit int) ([]*Layout, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT widget_id, x, y, width, height, source, committed_at
		 FROM layout_history WHERE widget_id = ?
		 ORDER BY id DESC LIMIT ?`,
		widgetID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []*Layout
	for rows.Next() {
		l := &Layout{}
		if err := rows.Scan(&l.WidgetID, &l.X, &l.Y, &l.Width, &l.Height, &l.Source, &l.UpdatedAt); err != nil {
			return nil, err
		}
		history = append(history, l)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return history, nil
}

// Delete removes a widget's stored layout and its history.
func (r *LayoutRepository) Delete(ctx context.Context, widgetID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM layout_history WHERE widget_id = ?`, widgetID); err != nil {
		return err
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM layouts WHERE widget_id = ?`, widgetID)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return tx.Commit()
}

// LayoutBackend adapts the repository to a layout.Backend.
type LayoutBackend struct {
	repo *LayoutRepository
}

// LayoutBackend returns a layout.Backend persisting into this store.
func (s *Store) LayoutBackend() *LayoutBackend {
	return &LayoutBackend{repo: s.Layouts()}
}

func (b *LayoutBackend) Load(ctx context.Context, widgetID string) (layout.Entry, bool, error) {
	l, err := b.repo.GetByID(ctx, widgetID)
	if errors.Is(err, ErrNotFound) {
		return layout.Entry{}, false, nil
	}
	if err != nil {
		return layout.Entry{}, false, fmt.Errorf("sqlite load %q: %w", widgetID, err)
	}
	return l.Entry(), true, nil
}

func (b *LayoutBackend) Save(ctx context.Context, widgetID string, e layout.Entry) error {
	err := b.repo.Save(ctx, &Layout{
		WidgetID: widgetID,
		X:        e.Position.X,
		Y:        e.Position.Y,
		Width:    e.Size.Width,
		Height:   e.Size.Height,
		Source:   string(layout.SourceFrom(ctx)),
	})
	if err != nil {
		return fmt.Errorf("sqlite save %q: %w", widgetID, err)
	}
	return nil
}
