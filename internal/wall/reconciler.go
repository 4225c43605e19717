package wall

import (
	"context"
	"slices"
	"sync"

	"go.uber.org/zap"

	"memorialwall/internal/model"
)

// Reconciler owns the authoritative in-memory entry list of one scope.
// The list is seeded by Load and afterwards mutated only through Apply,
// Prepend or Reset. All mutations are serialized.
type Reconciler struct {
	store Store
	scope string
	log   *zap.SugaredLogger

	mu      sync.Mutex
	entries []model.Entry
	loading int // in-flight loads; events are buffered while > 0
	pending []model.Event
	sub     Subscription
	closed  bool

	changed chan struct{}
}

// NewReconciler creates a Reconciler for scope backed by store
func NewReconciler(store Store, scope string, log *zap.SugaredLogger) *Reconciler {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Reconciler{
		store:   store,
		scope:   scope,
		log:     log,
		changed: make(chan struct{}, 1),
	}
}

// Start subscribes to the store's change stream and then performs the initial
// load. Events that arrive while the load is in flight are replayed on top of
// the snapshot. Neither a failed subscribe nor a failed load is fatal: both
// are logged and the list stays empty or stale.
func (r *Reconciler) Start(ctx context.Context) {
	r.mu.Lock()
	r.loading++
	r.mu.Unlock()

	sub, err := r.store.Subscribe(ctx, r.scope, r.handle)
	if err != nil {
		r.log.Warnf("[wall %s] ⚠️  Subscribe failed, list will not update live: %v", r.scope, err)
	} else {
		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			_ = sub.Close()
		} else {
			r.sub = sub
			r.mu.Unlock()
		}
	}

	r.load(ctx)
}

// Load replaces the list with the store's current snapshot. A failed load
// results in an empty list. Events received while the snapshot is fetched are
// replayed on top of it.
func (r *Reconciler) Load(ctx context.Context) {
	r.mu.Lock()
	r.loading++
	r.mu.Unlock()

	r.load(ctx)
}

// load fetches the snapshot for a load already counted in r.loading
func (r *Reconciler) load(ctx context.Context) {
	entries, err := r.store.Load(ctx, r.scope)
	if err != nil {
		r.log.Warnf("[wall %s] ❌ Load failed, continuing with an empty list: %v", r.scope, err)
		entries = nil
	}

	r.mu.Lock()
	r.entries = dedupe(entries)
	pending := r.pending
	r.loading--
	if r.loading == 0 {
		r.pending = nil
	}
	for _, ev := range pending {
		r.apply(ev)
	}
	n := len(r.entries)
	r.mu.Unlock()

	r.log.Debugf("[wall %s] Loaded %d entries (%d replayed events)", r.scope, n, len(pending))
	r.notify()
}

// handle is the subscription callback
func (r *Reconciler) handle(ev model.Event) {
	if ev.Scope != "" && ev.Scope != r.scope {
		return
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	if r.loading > 0 {
		r.pending = append(r.pending, ev)
		r.mu.Unlock()
		return
	}
	changed := r.apply(ev)
	r.mu.Unlock()

	if changed {
		r.notify()
	}
}

// Apply merges a single change event into the list and reports whether the
// list changed.
func (r *Reconciler) Apply(ev model.Event) bool {
	r.mu.Lock()
	changed := r.apply(ev)
	r.mu.Unlock()

	if changed {
		r.notify()
	}
	return changed
}

func (r *Reconciler) apply(ev model.Event) bool {
	switch ev.Type {
	case model.EventCreated:
		if ev.Entry == nil || r.indexOf(ev.Entry.ID) >= 0 {
			return false
		}
		r.entries = slices.Insert(r.entries, 0, *ev.Entry)
		return true

	case model.EventUpdated:
		if ev.Entry == nil {
			return false
		}
		i := r.indexOf(ev.Entry.ID)
		if i < 0 {
			return false
		}
		r.entries[i] = *ev.Entry
		return true

	case model.EventDeleted:
		id := ev.ID
		if id == "" && ev.Entry != nil {
			id = ev.Entry.ID
		}
		i := r.indexOf(id)
		if i < 0 {
			return false
		}
		r.entries = slices.Delete(r.entries, i, i+1)
		return true
	}

	r.log.Debugf("[wall %s] Ignoring unknown event type %q", r.scope, ev.Type)
	return false
}

func (r *Reconciler) indexOf(id string) int {
	return slices.IndexFunc(r.entries, func(e model.Entry) bool { return e.ID == id })
}

// Reset replaces the whole list
func (r *Reconciler) Reset(entries []model.Entry) {
	r.mu.Lock()
	r.entries = dedupe(entries)
	r.mu.Unlock()
	r.notify()
}

// Entries returns a copy of the list in stored order
func (r *Reconciler) Entries() []model.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.entries)
}

// Len returns the number of entries
func (r *Reconciler) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Changed signals after every mutation. Notifications are coalesced, so a
// receiver should re-read Entries rather than count signals.
func (r *Reconciler) Changed() <-chan struct{} {
	return r.changed
}

func (r *Reconciler) notify() {
	select {
	case r.changed <- struct{}{}:
	default:
	}
}

// Close tears down the subscription. It is safe to call more than once.
func (r *Reconciler) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	sub := r.sub
	r.sub = nil
	r.mu.Unlock()

	if sub == nil {
		return nil
	}
	return sub.Close()
}

// dedupe keeps the first occurrence of every ID
func dedupe(entries []model.Entry) []model.Entry {
	seen := make(map[string]struct{}, len(entries))
	out := make([]model.Entry, 0, len(entries))
	for _, e := range entries {
		if _, ok := seen[e.ID]; ok {
			continue
		}
		seen[e.ID] = struct{}{}
		out = append(out, e)
	}
	return out
}
