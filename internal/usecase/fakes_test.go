package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"NewsBoard/internal/domain"
	"NewsBoard/internal/placement"
)

type fakeSource struct {
	mu     sync.Mutex
	panels map[string][]domain.ContentItem
	errs   map[string]error
	limits map[string]int
	delays map[string]time.Duration
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		panels: map[string][]domain.ContentItem{},
		errs:   map[string]error{},
		limits: map[string]int{},
		delays: map[string]time.Duration{},
	}
}

func (f *fakeSource) delayed(panel string, d time.Duration) *fakeSource {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delays[panel] = d
	return f
}

func (f *fakeSource) with(panel string, items ...domain.ContentItem) *fakeSource {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.panels[panel] = items
	return f
}

func (f *fakeSource) failing(panel string, err error) *fakeSource {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[panel] = err
	return f
}

func (f *fakeSource) FetchCandidates(ctx context.Context, panel string, surplus int) ([]domain.ContentItem, error) {
	f.mu.Lock()
	delay := f.delays[panel]
	f.mu.Unlock()
	if err := sleepContext(ctx, delay); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.limits[panel] = surplus
	if err := f.errs[panel]; err != nil {
		return nil, err
	}
	items := f.panels[panel]
	out := make([]domain.ContentItem, 0, len(items))
	for _, item := range items {
		if len(out) == surplus {
			break
		}
		out = append(out, item)
	}
	return out, nil
}

type fakeTranslator struct {
	fail map[string]bool
}

func (f fakeTranslator) Translate(_ context.Context, text string) (string, error) {
	if f.fail[text] {
		return "", errors.New("translation service unavailable")
	}
	return "T:" + text, nil
}

// slowTranslator holds back the listed titles for delay.
type slowTranslator struct {
	delay time.Duration
	slow  map[string]bool
}

func (s slowTranslator) Translate(ctx context.Context, text string) (string, error) {
	if s.slow[text] {
		if err := sleepContext(ctx, s.delay); err != nil {
			return "", err
		}
	}
	return "T:" + text, nil
}

type fakeProber struct {
	fail  map[string]bool
	block bool
}

func (f fakeProber) Probe(ctx context.Context, url string) error {
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	if f.fail[url] {
		return errors.New("404")
	}
	return nil
}

type titlePlaceholder struct{}

func (titlePlaceholder) PlaceholderFor(title string) string {
	return "placeholder://" + title
}

type recordingPresenter struct {
	mu     sync.Mutex
	frames []domain.PanelFrame
}

func (r *recordingPresenter) Present(_ context.Context, frame domain.PanelFrame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, frame)
	return nil
}

func (r *recordingPresenter) forPanel(panel string) []domain.PanelFrame {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.PanelFrame
	for _, f := range r.frames {
		if f.Panel == panel {
			out = append(out, f)
		}
	}
	return out
}

func story(id string) domain.ContentItem {
	return domain.ContentItem{ID: id, Title: "story " + id}
}

func stories(ids ...string) []domain.ContentItem {
	out := make([]domain.ContentItem, 0, len(ids))
	for _, id := range ids {
		out = append(out, story(id))
	}
	return out
}

func quickOptions(target, visible int) Options {
	return Options{
		Surplus:      target + 10,
		Target:       target,
		VisibleBatch: visible,
	}
}

func newTestPipeline(src *fakeSource, reg *placement.Registry, opts Options) (*Pipeline, *recordingPresenter) {
	presenter := &recordingPresenter{}
	p := NewPipeline(PipelineDeps{
		Source:      src,
		Registry:    reg,
		Translator:  fakeTranslator{},
		Images:      fakeProber{},
		Placeholder: titlePlaceholder{},
		Presenter:   presenter,
		Options:     opts,
	})
	return p, presenter
}

func ids(items []domain.ContentItem) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.ID
	}
	return out
}

func assertIDs(t *testing.T, label string, items []domain.ContentItem, want ...string) {
	t.Helper()
	got := ids(items)
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("%s: expected ids %v, got %v", label, want, got)
	}
}

func assertAtMostOnePlacement(t *testing.T, panels []*Panel) {
	t.Helper()
	seen := map[string]string{}
	for _, panel := range panels {
		for _, item := range panel.Displayed() {
			if item.ID == "" {
				continue
			}
			if other, dup := seen[item.ID]; dup {
				t.Fatalf("id %s displayed by both %s and %s", item.ID, other, panel.Key())
			}
			seen[item.ID] = panel.Key()
		}
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}
