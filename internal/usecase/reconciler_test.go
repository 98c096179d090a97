package usecase

import (
	"context"
	"fmt"
	"testing"
	"time"

	"NewsBoard/internal/domain"
	"NewsBoard/internal/placement"
)

func loadPanels(t *testing.T, pipeline *Pipeline, gate *Gate, panels ...*Panel) {
	t.Helper()
	for _, panel := range panels {
		if _, err := pipeline.LoadVisible(context.Background(), panel, gate); err != nil {
			t.Fatalf("load %s: %v", panel.Key(), err)
		}
	}
}

func TestReconcileEvictsIDStolenByHigherPriorityPanel(t *testing.T) {
	t.Parallel()

	reg := placement.NewRegistry()
	src := newFakeSource().
		with("sports", stories("5", "6", "7")...).
		with("latest", stories("5", "8")...)
	pipeline, _ := newTestPipeline(src, reg, quickOptions(2, 2))
	gate := NewGate(time.Second, nil)

	latest := NewPanel(PanelSpec{Key: "latest"}, 0, "session", reg.Epoch())
	sports := NewPanel(PanelSpec{Key: "sports"}, 1, "session", reg.Epoch())

	// sports finishes first; latest outranks it and claims 5 as well.
	loadPanels(t, pipeline, gate, sports, latest)
	assertIDs(t, "sports before", sports.Displayed(), "5", "6")
	assertIDs(t, "latest before", latest.Displayed(), "5", "8")

	coordinator := NewCoordinator(CoordinatorDeps{
		Registry: reg,
		Pipeline: pipeline,
		Gate:     gate,
		Panels:   []*Panel{sports, latest},
	})
	coordinator.Reconcile(context.Background())

	assertIDs(t, "latest after", latest.Displayed(), "5", "8")
	assertIDs(t, "sports after", sports.Displayed(), "6", "7")
	assertAtMostOnePlacement(t, []*Panel{latest, sports})

	if owner, _ := reg.OwnerOf("7"); owner.Panel != "sports" {
		t.Fatalf("newly displayed id 7 must be registered by sports, got %+v", owner)
	}
	for _, item := range sports.Displayed() {
		if item.DisplayTitle == "" {
			t.Fatalf("reconciled item %s lacks a display title", item.ID)
		}
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	t.Parallel()

	reg := placement.NewRegistry()
	src := newFakeSource().
		with("sports", append(stories("1", "2", "3", "4"), domain.ContentItem{Title: "untagged"})...).
		with("latest", stories("2", "9")...)
	pipeline, _ := newTestPipeline(src, reg, quickOptions(3, 3))
	gate := NewGate(time.Second, nil)

	latest := NewPanel(PanelSpec{Key: "latest"}, 0, "session", reg.Epoch())
	sports := NewPanel(PanelSpec{Key: "sports"}, 1, "session", reg.Epoch())
	loadPanels(t, pipeline, gate, sports, latest)

	coordinator := NewCoordinator(CoordinatorDeps{Registry: reg, Pipeline: pipeline, Gate: gate, Panels: []*Panel{latest, sports}})
	coordinator.Reconcile(context.Background())
	firstLatest, firstSports := latest.Frame(), sports.Frame()
	version := reg.Version()

	coordinator.Reconcile(context.Background())
	secondLatest, secondSports := latest.Frame(), sports.Frame()

	if fmt.Sprint(firstLatest.Items) != fmt.Sprint(secondLatest.Items) ||
		fmt.Sprint(firstSports.Items) != fmt.Sprint(secondSports.Items) {
		t.Fatalf("second pass changed the board:\n%v\n%v", firstSports.Items, secondSports.Items)
	}
	if secondSports.Version != firstSports.Version {
		t.Fatalf("second pass must not republish an unchanged panel")
	}
	if reg.Version() != version {
		t.Fatalf("second pass must not mutate the registry")
	}
}

func TestReconcilePoolShrinksMonotonically(t *testing.T) {
	t.Parallel()

	reg := placement.NewRegistry()
	src := newFakeSource().with("world", stories("1", "2", "3", "4", "5", "6", "7", "8")...)
	pipeline, _ := newTestPipeline(src, reg, quickOptions(3, 3))
	gate := NewGate(time.Second, nil)

	world := NewPanel(PanelSpec{Key: "world"}, 5, "session", reg.Epoch())
	loadPanels(t, pipeline, gate, world)
	coordinator := NewCoordinator(CoordinatorDeps{Registry: reg, Pipeline: pipeline, Gate: gate, Panels: []*Panel{world}})

	breaking := placement.Owner{Panel: "breaking", Rank: 0, Epoch: reg.Epoch()}
	last := len(world.Pool())
	for _, id := range []string{"2", "5", "7", "1"} {
		reg.Place(breaking, id)
		coordinator.Reconcile(context.Background())

		size := len(world.Pool())
		if size > last {
			t.Fatalf("pool grew from %d to %d after placing %s", last, size, id)
		}
		last = size
		for _, item := range world.Pool() {
			if item.ID == id {
				t.Fatalf("pool still contains %s held by a higher-priority panel", id)
			}
		}
	}
	assertIDs(t, "world displayed", world.Displayed(), "3", "4", "6")
}

func TestReconcileCollapsesIdenticalTitlesWithoutIDs(t *testing.T) {
	t.Parallel()

	reg := placement.NewRegistry()
	same := domain.ContentItem{Title: "  Monsoon session opens  "}
	src := newFakeSource().
		with("latest", same, story("1")).
		with("india", same, story("2"))
	pipeline, _ := newTestPipeline(src, reg, quickOptions(2, 2))
	gate := NewGate(time.Second, nil)

	latest := NewPanel(PanelSpec{Key: "latest"}, 0, "session", reg.Epoch())
	india := NewPanel(PanelSpec{Key: "india"}, 1, "session", reg.Epoch())
	loadPanels(t, pipeline, gate, latest, india)

	coordinator := NewCoordinator(CoordinatorDeps{Registry: reg, Pipeline: pipeline, Gate: gate, Panels: []*Panel{latest, india}})
	coordinator.Reconcile(context.Background())

	synthetic := domain.SyntheticID(same.Title)
	assertIDs(t, "latest", latest.Displayed(), synthetic, "1")
	assertIDs(t, "india", india.Displayed(), "2")
	if owner, _ := reg.OwnerOf(synthetic); owner.Panel != "latest" {
		t.Fatalf("synthetic id must belong to latest, got %+v", owner)
	}
}

func TestReconcileBackfillsFullWindowAfterSteal(t *testing.T) {
	t.Parallel()

	reg := placement.NewRegistry()
	src := newFakeSource().with("tech", stories("1", "2", "3", "4")...)
	pipeline, _ := newTestPipeline(src, reg, quickOptions(4, 2))
	gate := NewGate(time.Second, nil)
	tech := NewPanel(PanelSpec{Key: "tech"}, 2, "session", reg.Epoch())

	staged, err := pipeline.LoadVisible(context.Background(), tech, gate)
	if err != nil {
		t.Fatalf("visible: %v", err)
	}
	if err := pipeline.LoadBackground(context.Background(), tech, staged, gate); err != nil {
		t.Fatalf("background: %v", err)
	}

	breaking := placement.Owner{Panel: "breaking", Rank: 0, Epoch: reg.Epoch()}
	reg.Place(breaking, "1")

	coordinator := NewCoordinator(CoordinatorDeps{Registry: reg, Pipeline: pipeline, Gate: gate, Panels: []*Panel{tech}})
	coordinator.Reconcile(context.Background())

	assertIDs(t, "tech", tech.Displayed(), "2", "3", "4")
	if owner, _ := reg.OwnerOf("1"); owner.Panel != "breaking" {
		t.Fatalf("id 1 must stay with breaking, got %+v", owner)
	}
	if reg.Len() != 4 {
		t.Fatalf("expected 4 placed ids, got %v", reg.Snapshot().IDs())
	}
}

func TestCoordinatorDebounceCollapsesBurst(t *testing.T) {
	t.Parallel()

	reg := placement.NewRegistry()
	pipeline, _ := newTestPipeline(newFakeSource(), reg, quickOptions(2, 2))
	coordinator := NewCoordinator(CoordinatorDeps{
		Registry: reg,
		Pipeline: pipeline,
		Debounce: 60 * time.Millisecond,
	})
	if err := coordinator.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer coordinator.Stop()

	other := placement.Owner{Panel: "elsewhere", Rank: 9, Epoch: reg.Epoch()}
	for i := 0; i < 10; i++ {
		reg.Place(other, fmt.Sprint(i))
	}

	waitFor(t, time.Second, func() bool { return coordinator.Passes() >= 1 })
	time.Sleep(200 * time.Millisecond)
	if got := coordinator.Passes(); got != 1 {
		t.Fatalf("expected exactly 1 pass for a burst, got %d", got)
	}

	if err := coordinator.WaitIdle(context.Background()); err != nil {
		t.Fatalf("wait idle: %v", err)
	}
}

func TestCoordinatorStopCancelsPendingPass(t *testing.T) {
	t.Parallel()

	reg := placement.NewRegistry()
	pipeline, _ := newTestPipeline(newFakeSource(), reg, quickOptions(2, 2))
	coordinator := NewCoordinator(CoordinatorDeps{Registry: reg, Pipeline: pipeline, Debounce: 50 * time.Millisecond})
	if err := coordinator.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	reg.Place(placement.Owner{Panel: "x", Epoch: reg.Epoch()}, "1")
	time.Sleep(10 * time.Millisecond)
	coordinator.Stop()
	coordinator.Stop()

	time.Sleep(150 * time.Millisecond)
	if coordinator.Passes() != 0 {
		t.Fatalf("stopped coordinator must not run a pass, got %d", coordinator.Passes())
	}
}

func TestCoordinatorRunsPassAfterStageCommit(t *testing.T) {
	t.Parallel()

	reg := placement.NewRegistry()
	pipeline, _ := newTestPipeline(newFakeSource(), reg, quickOptions(2, 2))
	panel := NewPanel(PanelSpec{Key: "latest"}, 0, "session", reg.Epoch())
	coordinator := NewCoordinator(CoordinatorDeps{
		Registry: reg,
		Pipeline: pipeline,
		Panels:   []*Panel{panel},
		Debounce: 20 * time.Millisecond,
	})
	if err := coordinator.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	panel.committed()
	waitFor(t, time.Second, func() bool { return coordinator.Passes() == 1 })

	coordinator.Stop()
	panel.committed()
	time.Sleep(80 * time.Millisecond)
	if got := coordinator.Passes(); got != 1 {
		t.Fatalf("stopped coordinator must ignore commits, got %d passes", got)
	}
}
