package usecase

import (
	"context"
	"testing"
	"time"

	"NewsBoard/internal/placement"
)

type manualDriver struct {
	job     func(time.Time)
	stopped bool
}

func (d *manualDriver) Start(_ context.Context, job func(time.Time)) error {
	d.job = job
	return nil
}

func (d *manualDriver) Stop(context.Context) error {
	d.stopped = true
	return nil
}

func TestSchedulerRefreshEntersFreshSessions(t *testing.T) {
	t.Parallel()

	reg := placement.NewRegistry()
	src := newFakeSource().with("latest", stories("1", "2")...)
	surface, _ := newTestSurface(src, reg, quickOptions(2, 2), PanelSpec{Key: "latest"})
	driver := &manualDriver{}
	scheduler := NewScheduler(driver, surface, nil)

	ctx := context.Background()
	if err := scheduler.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if driver.job == nil {
		t.Fatalf("scheduler must register its job")
	}

	driver.job(time.Now())
	first := surface.Current()
	if first == nil {
		t.Fatalf("tick must enter a session")
	}
	driver.job(time.Now())
	second := surface.Current()
	if second == nil || second.ID == first.ID {
		t.Fatalf("each tick must start a new session")
	}
	if !first.Panels[0].Retired() {
		t.Fatalf("previous session must be left on refresh")
	}

	if err := scheduler.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if !driver.stopped || surface.Current() != nil || reg.Len() != 0 {
		t.Fatalf("stop must halt the driver and leave the surface")
	}
}

func TestSchedulerWithoutSurfaceIsNoop(t *testing.T) {
	t.Parallel()

	driver := &manualDriver{}
	scheduler := NewScheduler(driver, nil, nil)
	if err := scheduler.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if driver.job != nil {
		t.Fatalf("no job must be registered without a surface")
	}
}
