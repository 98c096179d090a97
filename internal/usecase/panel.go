package usecase

import (
	"slices"
	"sync"

	"NewsBoard/internal/domain"
	"NewsBoard/internal/placement"
)

// PanelSpec describes one panel of the surface in priority order.
type PanelSpec struct {
	Key   string
	Title string
}

// Panel holds the mutable state of one panel inside a session. All fields
// behind mu; a retired panel ignores every late mutation.
type Panel struct {
	key     string
	title   string
	rank    int
	session string
	epoch   uint64

	mu        sync.Mutex
	pool      []domain.ContentItem
	displayed []domain.ContentItem
	placed    map[string]struct{}
	window    int
	version   uint64
	failed    bool
	retired   bool
	onCommit  func()
}

// NewPanel builds panel state for a session. rank is the priority index and
// epoch the registry generation the session started in.
func NewPanel(spec PanelSpec, rank int, session string, epoch uint64) *Panel {
	title := spec.Title
	if title == "" {
		title = spec.Key
	}
	return &Panel{
		key:     spec.Key,
		title:   title,
		rank:    rank,
		session: session,
		epoch:   epoch,
		placed:  make(map[string]struct{}),
	}
}

// Key returns the panel key used by candidate sources.
func (p *Panel) Key() string { return p.key }

// Rank returns the priority index.
func (p *Panel) Rank() int { return p.rank }

// Owner returns the registry owner for this panel.
func (p *Panel) Owner() placement.Owner {
	return placement.Owner{Panel: p.key, Rank: p.rank, Epoch: p.epoch}
}

// Pool returns a copy of the stored candidate pool.
func (p *Panel) Pool() []domain.ContentItem {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.pool)
}

// Displayed returns a copy of the rendered batch.
func (p *Panel) Displayed() []domain.ContentItem {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.displayed)
}

// Failed reports whether the last fetch failed.
func (p *Panel) Failed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failed
}

// Retired reports whether the session owning the panel has ended.
func (p *Panel) Retired() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.retired
}

func (p *Panel) retire() {
	p.mu.Lock()
	p.retired = true
	p.pool = nil
	p.displayed = nil
	p.placed = make(map[string]struct{})
	p.mu.Unlock()
}

// Frame returns the current render frame without bumping the version.
func (p *Panel) Frame() domain.PanelFrame {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.frameLocked()
}

func (p *Panel) frameLocked() domain.PanelFrame {
	return domain.PanelFrame{
		Session: p.session,
		Panel:   p.key,
		Title:   p.title,
		Rank:    p.rank,
		Version: p.version,
		Failed:  p.failed,
		Items:   slices.Clone(p.displayed),
	}
}

// update runs fn under the lock unless the panel is retired, bumps the
// version and returns the resulting frame.
func (p *Panel) update(fn func()) (domain.PanelFrame, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.retired {
		return domain.PanelFrame{}, false
	}
	fn()
	p.version++
	return p.frameLocked(), true
}

// applyImage records the outcome of an image prefetch for the slot with key.
func (p *Panel) applyImage(key, image string) (domain.PanelFrame, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.retired {
		return domain.PanelFrame{}, false
	}
	idx := slices.IndexFunc(p.displayed, func(item domain.ContentItem) bool {
		return item.Key() == key
	})
	if idx < 0 {
		return domain.PanelFrame{}, false
	}
	p.displayed[idx].Image = image
	p.displayed[idx].ImageLoading = false
	p.version++
	return p.frameLocked(), true
}

// applyTitles fills missing display titles by slot key.
func (p *Panel) applyTitles(titles map[string]string) (domain.PanelFrame, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.retired {
		return domain.PanelFrame{}, false
	}
	changed := false
	for i := range p.displayed {
		if p.displayed[i].DisplayTitle != "" {
			continue
		}
		if title, ok := titles[p.displayed[i].Key()]; ok && title != "" {
			p.displayed[i].DisplayTitle = title
			changed = true
		}
	}
	if !changed {
		return domain.PanelFrame{}, false
	}
	p.version++
	return p.frameLocked(), true
}

// setCommitHook registers fn to run after every committed stage.
func (p *Panel) setCommitHook(fn func()) {
	p.mu.Lock()
	p.onCommit = fn
	p.mu.Unlock()
}

// committed runs the commit hook outside the panel lock.
func (p *Panel) committed() {
	p.mu.Lock()
	fn := p.onCommit
	p.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (p *Panel) markPlaced(ids []string) {
	for _, id := range ids {
		p.placed[id] = struct{}{}
	}
}
