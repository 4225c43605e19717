package wall

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"memorialwall/internal/model"
)

// Composer validates and submits new entries
type Composer struct {
	store Store
	rec   *Reconciler
	scope string
	log   *zap.SugaredLogger
}

// NewComposer creates a Composer writing to store within scope. rec receives
// the optimistic update when the store has no live change stream.
func NewComposer(store Store, rec *Reconciler, scope string, log *zap.SugaredLogger) *Composer {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Composer{store: store, rec: rec, scope: scope, log: log}
}

// Submit validates author and body and writes a new entry.
//
// With a live store the list is left alone; the change stream delivers the
// new row. Otherwise the stored entry is merged into the list directly.
func (c *Composer) Submit(ctx context.Context, author, body string) (model.Entry, error) {
	author, body, err := Normalize(author, body)
	if err != nil {
		return model.Entry{}, err
	}

	e, err := c.store.Insert(ctx, c.scope, author, body)
	if err != nil {
		c.log.Warnf("[wall %s] ❌ Insert failed: %v", c.scope, err)
		if !errors.Is(err, ErrWrite) {
			err = fmt.Errorf("%w: %w", ErrWrite, err)
		}
		return model.Entry{}, err
	}

	if !c.store.Live() && c.rec != nil {
		c.rec.Apply(model.Created(e))
	}

	c.log.Debugf("[wall %s] ✅ Submitted entry: ID=%s", c.scope, e.ID)
	return e, nil
}

// Draft is the pending input of a composer form
type Draft struct {
	Author string
	Body   string
}

// SubmitDraft submits d and clears its body on success. The author is kept
// so repeat posters need not retype their name.
func (c *Composer) SubmitDraft(ctx context.Context, d *Draft) (model.Entry, error) {
	e, err := c.Submit(ctx, d.Author, d.Body)
	if err != nil {
		return model.Entry{}, err
	}
	d.Body = ""
	return e, nil
}
