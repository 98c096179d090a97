// Package placement tracks which story ids are already shown somewhere on the
// board and which panel holds each of them.
//
// The Registry is the only state shared between panels. Every operation is
// serialized by one mutex, so a panel's filter-then-place sequence can be made
// atomic with FilterAndPlace. Changes are fanned out to subscribers with a
// non-blocking send: a full subscriber buffer drops the event, which is fine
// because receivers only need to know that something changed.
package placement

import (
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/samber/lo"

	"NewsBoard/internal/domain"
)

// Owner identifies the panel holding an id. Lower Rank means higher priority;
// the latest-stories panel has rank 0. Epoch pins the owner to the registry
// generation it was created in; owners from an older epoch cannot place.
type Owner struct {
	Panel string
	Rank  int
	Epoch uint64
}

func (o Owner) outranks(other Owner) bool {
	return o.Rank < other.Rank
}

// Change is emitted after every mutation.
type Change struct {
	Snapshot Snapshot
}

// Registry is a set of placed ids with ownership and a change stream.
type Registry struct {
	mu      sync.Mutex
	owners  map[string]Owner
	epoch   uint64
	version uint64

	subs    map[uint64]chan Change
	nextSub uint64
	dropped uint64
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		owners: make(map[string]Owner),
		subs:   make(map[uint64]chan Change),
	}
}

// IsPlaced reports whether id (normalized) is held by any panel.
func (r *Registry) IsPlaced(id string) bool {
	id = domain.NormalizeID(id)
	if id == "" {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.owners[id]
	return ok
}

// OwnerOf returns the panel holding id.
func (r *Registry) OwnerOf(id string) (Owner, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	owner, ok := r.owners[domain.NormalizeID(id)]
	return owner, ok
}

// Place registers a single id for owner. It returns false for empty ids and
// for ids kept by a higher-priority panel.
func (r *Registry) Place(owner Owner, id string) bool {
	return len(r.PlaceMany(owner, []string{id})) == 1
}

// PlaceMany registers ids for owner and returns the ids owner holds
// afterwards. Empty ids are skipped. An id held by a lower-priority panel is
// transferred to owner; an id held by a panel of equal or higher priority is
// rejected.
func (r *Registry) PlaceMany(owner Owner, ids []string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	accepted, changed := r.placeLocked(owner, ids)
	if changed {
		r.version++
		r.notifyLocked()
	}
	return accepted
}

func (r *Registry) placeLocked(owner Owner, ids []string) ([]string, bool) {
	if owner.Epoch != r.epoch {
		return nil, false
	}

	normalized := lo.Uniq(lo.FilterMap(ids, func(id string, _ int) (string, bool) {
		n := domain.NormalizeID(id)
		return n, n != ""
	}))

	accepted := make([]string, 0, len(normalized))
	changed := false
	for _, id := range normalized {
		holder, held := r.owners[id]
		switch {
		case !held:
			r.owners[id] = owner
			changed = true
		case holder.Panel == owner.Panel:
		case owner.outranks(holder):
			r.owners[id] = owner
			changed = true
		default:
			continue
		}
		accepted = append(accepted, id)
	}
	return accepted, changed
}

// Release drops ids held by owner. Ids held by other panels are left alone.
func (r *Registry) Release(owner Owner, ids []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if owner.Epoch != r.epoch {
		return
	}

	changed := false
	for _, id := range ids {
		id = domain.NormalizeID(id)
		if holder, ok := r.owners[id]; ok && holder.Panel == owner.Panel {
			delete(r.owners, id)
			changed = true
		}
	}
	if changed {
		r.version++
		r.notifyLocked()
	}
}

// FilterUnplaced keeps, in order, the items whose id is empty or not placed by
// anyone. Items are returned as copies.
func (r *Registry) FilterUnplaced(items []domain.ContentItem) []domain.ContentItem {
	r.mu.Lock()
	defer r.mu.Unlock()

	return lo.Filter(items, func(item domain.ContentItem, _ int) bool {
		id := domain.NormalizeID(item.ID)
		if id == "" {
			return true
		}
		_, placed := r.owners[id]
		return !placed
	})
}

// FilterFor is the owner-aware filter used by panels. An item passes when its
// id is empty, unplaced, already held by owner, or held by a lower-priority
// panel. Repeated ids inside items keep only their first occurrence.
func (r *Registry) FilterFor(owner Owner, items []domain.ContentItem) []domain.ContentItem {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.filterLocked(owner, items)
}

func (r *Registry) filterLocked(owner Owner, items []domain.ContentItem) []domain.ContentItem {
	seen := make(map[string]struct{}, len(items))
	return lo.Filter(items, func(item domain.ContentItem, _ int) bool {
		id := domain.NormalizeID(item.ID)
		if id == "" {
			return true
		}
		if _, dup := seen[id]; dup {
			return false
		}
		seen[id] = struct{}{}

		holder, held := r.owners[id]
		return !held || holder.Panel == owner.Panel || owner.outranks(holder)
	})
}

// FilterAndPlace filters items for owner and registers the ids of the first
// placeCount accepted items while still holding the lock, so no other panel
// can pass the filter for those ids in between.
func (r *Registry) FilterAndPlace(owner Owner, items []domain.ContentItem, placeCount int) ([]domain.ContentItem, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	accepted := r.filterLocked(owner, items)
	head := accepted[:max(0, min(placeCount, len(accepted)))]

	placed, changed := r.placeLocked(owner, domain.IDs(head))
	if changed {
		r.version++
		r.notifyLocked()
	}
	return accepted, placed
}

// Clear empties the registry and starts a new epoch.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.owners = make(map[string]Owner)
	r.epoch++
	r.version++
	r.notifyLocked()
}

// Epoch returns the current registry generation. Clear starts a new one.
func (r *Registry) Epoch() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.epoch
}

// Version increases with every mutation.
func (r *Registry) Version() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.version
}

// Len returns the number of placed ids.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.owners)
}

// Snapshot returns a read-only copy of the placed ids.
func (r *Registry) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Registry) snapshotLocked() Snapshot {
	ids := make(map[string]struct{}, len(r.owners))
	for id := range r.owners {
		ids[id] = struct{}{}
	}
	return Snapshot{Epoch: r.epoch, Version: r.version, ids: ids}
}

// Subscribe returns a change stream and a cancel func that closes it.
func (r *Registry) Subscribe(buffer int) (<-chan Change, func()) {
	if buffer < 1 {
		buffer = 1
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextSub
	r.nextSub++
	ch := make(chan Change, buffer)
	r.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			delete(r.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

// Dropped counts change events lost to full subscriber buffers.
func (r *Registry) Dropped() uint64 {
	return atomic.LoadUint64(&r.dropped)
}

func (r *Registry) notifyLocked() {
	if len(r.subs) == 0 {
		return
	}
	change := Change{Snapshot: r.snapshotLocked()}
	for _, ch := range r.subs {
		select {
		case ch <- change:
		default:
			atomic.AddUint64(&r.dropped, 1)
		}
	}
}

// Snapshot is an immutable view of the registry at one version.
type Snapshot struct {
	Epoch   uint64
	Version uint64
	ids     map[string]struct{}
}

// Has reports whether id was placed at snapshot time.
func (s Snapshot) Has(id string) bool {
	_, ok := s.ids[strings.TrimSpace(id)]
	return ok
}

// Len returns the number of ids in the snapshot.
func (s Snapshot) Len() int {
	return len(s.ids)
}

// IDs returns the ids sorted.
func (s Snapshot) IDs() []string {
	ids := lo.Keys(s.ids)
	slices.Sort(ids)
	return ids
}
