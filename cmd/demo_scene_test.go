package cmd

import (
	"testing"

	"github.com/achilleasa/wavefront/renderer"
	"github.com/achilleasa/wavefront/tracer/device"
)

func TestDemoScene(t *testing.T) {
	var core renderer.Core
	if err := core.Init(renderer.Options{Device: device.Options{Workers: 1}}); err != nil {
		t.Fatal(err)
	}
	defer core.Shutdown()

	surface := renderer.NewImageSurface(8, 6)
	if err := core.SetTarget(surface, 1); err != nil {
		t.Fatal(err)
	}
	if err := loadDemoScene(&core); err != nil {
		t.Fatal(err)
	}

	view := demoCamera(8, 6).ViewPyramid()
	for frame, convergence := range []renderer.Convergence{renderer.Restart, renderer.Continue} {
		if err := core.Render(view, convergence, 0, 0); err != nil {
			t.Fatalf("frame %d: %v", frame, err)
		}
	}

	stats, err := core.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.SamplesTaken != 2 {
		t.Fatalf("expected 2 samples taken; got %d", stats.SamplesTaken)
	}
	if stats.PrimaryRays != 8*6 {
		t.Fatalf("expected %d primary rays; got %d", 8*6, stats.PrimaryRays)
	}
	if stats.TotalShadowRays == 0 {
		t.Fatal("expected the demo lights to emit shadow rays")
	}
}
