package wall

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"memorialwall/internal/model"
)

// Wall wires a Store, Reconciler and Composer together for one scope.
type Wall struct {
	store Store
	scope string
	rec   *Reconciler
	comp  *Composer
	log   *zap.SugaredLogger
}

// Open loads the scope and subscribes to its changes. Failures to reach the
// store are logged and leave the wall empty; Open itself does not fail.
// Call Close to release the subscription.
func Open(ctx context.Context, store Store, scope string, log *zap.SugaredLogger) *Wall {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	rec := NewReconciler(store, scope, log)
	rec.Start(ctx)

	return &Wall{
		store: store,
		scope: scope,
		rec:   rec,
		comp:  NewComposer(store, rec, scope, log),
		log:   log,
	}
}

// Scope returns the wall's scope
func (w *Wall) Scope() string { return w.scope }

// Live reports whether entries arrive through a live change stream
func (w *Wall) Live() bool { return w.store.Live() }

// Entries returns the presented list, most recent first
func (w *Wall) Entries() []model.Entry {
	return Present(w.rec.Entries())
}

// Changed signals after the list changes
func (w *Wall) Changed() <-chan struct{} {
	return w.rec.Changed()
}

// Submit posts a new entry
func (w *Wall) Submit(ctx context.Context, author, body string) (model.Entry, error) {
	return w.comp.Submit(ctx, author, body)
}

// SubmitDraft posts d and clears its body on success
func (w *Wall) SubmitDraft(ctx context.Context, d *Draft) (model.Entry, error) {
	return w.comp.SubmitDraft(ctx, d)
}

// CanClear reports whether bulk clear is available
func (w *Wall) CanClear() bool {
	if w.store.Live() {
		return false
	}
	_, ok := w.store.(Clearer)
	return ok
}

// Clear removes every entry of the scope from this device. It is never
// available for a remote store.
func (w *Wall) Clear(ctx context.Context) error {
	c, ok := w.store.(Clearer)
	if !ok || w.store.Live() {
		return ErrClearUnavailable
	}
	if err := c.Clear(ctx, w.scope); err != nil {
		return fmt.Errorf("failed to clear %s: %w", w.scope, err)
	}
	w.rec.Reset(nil)
	w.log.Infof("[wall %s] 🗑️  Cleared local entries", w.scope)
	return nil
}

// Close releases the change subscription
func (w *Wall) Close() error {
	return w.rec.Close()
}
