package layout

import (
	"context"
	"errors"
)

// Chain combines backends. Loads return the first hit; saves go to every
// backend and report all failures.
type Chain []Backend

func (c Chain) Load(ctx context.Context, widgetID string) (Entry, bool, error) {
	var errs []error
	for _, b := range c {
		e, ok, err := b.Load(ctx, widgetID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			return e, true, nil
		}
	}
	return Entry{}, false, errors.Join(errs...)
}

func (c Chain) Save(ctx context.Context, widgetID string, e Entry) error {
	var errs []error
	for _, b := range c {
		if err := b.Save(ctx, widgetID, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
