package tracer

import (
	"bytes"
	"encoding/binary"
	"errors"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chewxy/math32"

	"github.com/achilleasa/wavefront/accel"
	"github.com/achilleasa/wavefront/scene"
	"github.com/achilleasa/wavefront/tracer/device"
	"github.com/achilleasa/wavefront/tracer/device/host"
	"github.com/achilleasa/wavefront/tracer/layout"
	"github.com/achilleasa/wavefront/types"
)

type memSurface struct {
	w, h   int
	bound  bool
	blits  int
	pixels []uint32
}

func (s *memSurface) Size() (int, int) { return s.w, s.h }

func (s *memSurface) Bind() error {
	s.bound = true
	return nil
}

func (s *memSurface) Blit(pixels []uint32) error {
	if !s.bound {
		return ErrSurfaceNotBound
	}
	s.pixels = append(s.pixels[:0], pixels...)
	s.blits++
	return nil
}

func (s *memSurface) Unbind() error {
	s.bound = false
	return nil
}

func quadMesh(x0, y0, x1, y1 float32) ([]types.Vec4, []scene.Triangle) {
	verts := []types.Vec4{
		types.XYZW(x0, y0, 0, 1), types.XYZW(x1, y0, 0, 1), types.XYZW(x1, y1, 0, 1),
		types.XYZW(x0, y0, 0, 1), types.XYZW(x1, y1, 0, 1), types.XYZW(x0, y1, 0, 1),
	}
	tris := []scene.Triangle{
		{Material: 0, LightIdx: -1},
		{Material: 0, LightIdx: -1},
	}
	return verts, tris
}

type testScene struct {
	sc  *scene.Scene
	acc *accel.Manager
}

func (ts *testScene) setMesh(t *testing.T, meshIdx int, x0, y0, x1, y1 float32) {
	verts, tris := quadMesh(x0, y0, x1, y1)
	if err := ts.sc.SetGeometry(meshIdx, verts, tris, nil); err != nil {
		t.Fatal(err)
	}
	mesh, err := ts.sc.Mesh(meshIdx)
	if err != nil {
		t.Fatal(err)
	}
	if err = ts.acc.SetMesh(meshIdx, mesh); err != nil {
		t.Fatal(err)
	}
}

func (ts *testScene) setInstance(t *testing.T, instIdx, meshIdx int, transform types.Mat4) {
	if err := ts.sc.SetInstance(instIdx, meshIdx, transform); err != nil {
		t.Fatal(err)
	}
	if err := ts.acc.SetInstance(instIdx, meshIdx, transform); err != nil {
		t.Fatal(err)
	}
}

// A large backdrop at z=-5 (instance 0) and a quad covering the right half
// of the view at z=-3 (instance 1), lit by a point light next to the camera.
func setupScene(t *testing.T) *testScene {
	ts := &testScene{sc: scene.New(), acc: accel.NewManager()}
	ts.setMesh(t, 0, -20, -20, 20, 20)
	ts.setMesh(t, 1, 0.5, -10, 10, 10)
	ts.setInstance(t, 0, 0, types.Translate4(types.Vec3{0, 0, -5}))
	ts.setInstance(t, 1, 1, types.Translate4(types.Vec3{0, 0, -3}))

	if err := ts.sc.SetMaterials([]scene.Material{scene.NewMaterial(types.Vec3{0.8, 0.8, 0.8})}); err != nil {
		t.Fatal(err)
	}
	ts.sc.SetLights(nil, []scene.PointLight{{Position: types.Vec3{0, 0, -1}, Radiance: types.Vec3{5, 5, 5}}}, nil, nil)
	if err := ts.sc.SetSkyData([]types.Vec3{{0.2, 0.3, 0.4}}, 1, 1); err != nil {
		t.Fatal(err)
	}
	return ts
}

func testView() scene.ViewPyramid {
	return scene.ViewPyramid{
		Pos: types.Vec3{0, 0, 0},
		P1:  types.Vec3{-1, 1, -1},
		P2:  types.Vec3{1, 1, -1},
		P3:  types.Vec3{-1, -1, -1},
	}
}

func newTestTracer(t *testing.T, ts *testScene, opts Options) *Tracer {
	dev := host.New(1)
	tr, err := New(dev, ts.sc, ts.acc, opts)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		tr.Close()
		dev.Close()
	})
	return tr
}

func TestRenderWithoutTarget(t *testing.T) {
	tr := newTestTracer(t, setupScene(t), Options{})
	if err := tr.Render(testView(), Restart, 0, 0); !errors.Is(err, ErrNoTarget) {
		t.Fatalf("expected ErrNoTarget; got %v", err)
	}
	if err := tr.SetTarget(nil, 1); !errors.Is(err, ErrNoTarget) {
		t.Fatalf("expected ErrNoTarget; got %v", err)
	}
}

func TestRenderCounters(t *testing.T) {
	const spp = 2
	tr := newTestTracer(t, setupScene(t), Options{})
	surface := &memSurface{w: 4, h: 4}
	if err := tr.SetTarget(surface, spp); err != nil {
		t.Fatal(err)
	}

	for frame := 1; frame <= 3; frame++ {
		convergence := Continue
		if frame == 1 {
			convergence = Restart
		}
		if err := tr.Render(testView(), convergence, 0, 0); err != nil {
			t.Fatalf("frame %d: %v", frame, err)
		}

		stats := tr.Stats()
		if exp := uint32(spp * frame); stats.SamplesTaken != exp || tr.SamplesTaken() != exp {
			t.Fatalf("frame %d: expected %d samples taken; got %d", frame, exp, stats.SamplesTaken)
		}

		pixels := uint32(4 * 4 * spp)
		if stats.PrimaryRays != pixels || stats.PathCount[0] != pixels {
			t.Fatalf("frame %d: expected %d primary rays; got %d (%d paths)", frame, pixels, stats.PrimaryRays, stats.PathCount[0])
		}

		// Every camera ray hits lit geometry and extends.
		if stats.ShadowDeltas[0] != pixels {
			t.Fatalf("frame %d: expected %d bounce 1 shadow rays; got %d", frame, pixels, stats.ShadowDeltas[0])
		}
		if stats.PathCount[1] != pixels {
			t.Fatalf("frame %d: expected %d bounce 2 paths; got %d", frame, pixels, stats.PathCount[1])
		}

		var shadowSum, pathSum uint32
		for b := range stats.PathCount {
			if b > 0 && stats.PathCount[b] > stats.PathCount[b-1] {
				t.Fatalf("frame %d: expected non-increasing path counts; got %v", frame, stats.PathCount)
			}
			shadowSum += stats.ShadowDeltas[b]
			pathSum += stats.PathCount[b]
		}
		if stats.ConnectDispatch != shadowSum || stats.TotalShadowRays != shadowSum {
			t.Fatalf("frame %d: expected connect dispatch of %d; got %d (total %d)", frame, shadowSum, stats.ConnectDispatch, stats.TotalShadowRays)
		}
		if stats.TotalExtensionRays != pathSum {
			t.Fatalf("frame %d: expected %d total extension rays; got %d", frame, pathSum, stats.TotalExtensionRays)
		}
		if stats.Bounce1Rays != stats.PathCount[1] || stats.DeepRays != stats.PathCount[2] {
			t.Fatalf("frame %d: expected bounce ray counts %d/%d; got %d/%d", frame, stats.PathCount[1], stats.PathCount[2], stats.Bounce1Rays, stats.DeepRays)
		}
		if surface.blits != frame || surface.bound {
			t.Fatalf("frame %d: expected %d blits to an unbound surface; got %d (bound %t)", frame, frame, surface.blits, surface.bound)
		}
	}

	table := tr.Stats().Table()
	if !strings.Contains(table, "Total") || !strings.Contains(table, "6 spp") {
		t.Fatalf("expected stats table with totals; got:\n%s", table)
	}
}

func TestRenderOutput(t *testing.T) {
	tr := newTestTracer(t, setupScene(t), Options{})
	surface := &memSurface{w: 4, h: 4}
	if err := tr.SetTarget(surface, 1); err != nil {
		t.Fatal(err)
	}
	if err := tr.Render(testView(), Restart, 0, 0); err != nil {
		t.Fatal(err)
	}

	if len(surface.pixels) != 16 {
		t.Fatalf("expected 16 pixels; got %d", len(surface.pixels))
	}
	lit := 0
	for i, px := range surface.pixels {
		if px>>24 != 0xff {
			t.Fatalf("expected opaque pixel %d; got %08x", i, px)
		}
		if px&0xffffff != 0 {
			lit++
		}
	}
	if lit == 0 {
		t.Fatal("expected at least one lit pixel")
	}
}

func TestRestartIsDeterministic(t *testing.T) {
	tr := newTestTracer(t, setupScene(t), Options{})
	surface := &memSurface{w: 4, h: 4}
	if err := tr.SetTarget(surface, 1); err != nil {
		t.Fatal(err)
	}

	if err := tr.Render(testView(), Restart, 0, 0); err != nil {
		t.Fatal(err)
	}
	first := append([]uint32(nil), surface.pixels...)

	if err := tr.Render(testView(), Continue, 0, 0); err != nil {
		t.Fatal(err)
	}
	if tr.SamplesTaken() != 2 {
		t.Fatalf("expected 2 samples taken; got %d", tr.SamplesTaken())
	}

	if err := tr.Render(testView(), Restart, 0, 0); err != nil {
		t.Fatal(err)
	}
	if tr.SamplesTaken() != 1 {
		t.Fatalf("expected restart to reset samples taken to 1; got %d", tr.SamplesTaken())
	}
	for i := range first {
		if first[i] != surface.pixels[i] {
			t.Fatalf("expected pixel %d to match the first frame (%08x); got %08x", i, first[i], surface.pixels[i])
		}
	}
}

func TestProbe(t *testing.T) {
	tr := newTestTracer(t, setupScene(t), Options{})
	if err := tr.SetTarget(&memSurface{w: 4, h: 4}, 1); err != nil {
		t.Fatal(err)
	}

	specs := []struct {
		x, y    int
		expInst int32
	}{
		{0, 1, 0},
		{3, 1, 1},
		{-1, 0, -1},
		{4, 0, -1},
	}

	for index, spec := range specs {
		tr.SetProbePos(spec.x, spec.y)
		if err := tr.Render(testView(), Restart, 0, 0); err != nil {
			t.Fatal(err)
		}
		stats := tr.Stats()
		if stats.ProbedInstID != spec.expInst {
			t.Fatalf("[spec %d] expected probe at (%d, %d) to report instance %d; got %d", index, spec.x, spec.y, spec.expInst, stats.ProbedInstID)
		}
		if spec.expInst < 0 {
			continue
		}
		if stats.ProbedTriID < 0 || stats.ProbedTriID > 1 {
			t.Fatalf("[spec %d] expected triangle 0 or 1; got %d", index, stats.ProbedTriID)
		}
		minDist := float32(3)
		if spec.expInst == 0 {
			minDist = 5
		}
		if stats.ProbedDist < minDist {
			t.Fatalf("[spec %d] expected distance >= %f; got %f", index, minDist, stats.ProbedDist)
		}
	}
}

func TestRebindAfterResize(t *testing.T) {
	tr := newTestTracer(t, setupScene(t), Options{})
	if err := tr.SetTarget(&memSurface{w: 4, h: 4}, 1); err != nil {
		t.Fatal(err)
	}
	if err := tr.Render(testView(), Restart, 0, 0); err != nil {
		t.Fatal(err)
	}
	gen := tr.buffers.generation

	// Growing the target releases the frame buffers the kernels are bound to.
	surface := &memSurface{w: 8, h: 8}
	if err := tr.SetTarget(surface, 1); err != nil {
		t.Fatal(err)
	}
	if tr.buffers.generation == gen {
		t.Fatal("expected resize to bump the buffer generation")
	}
	if err := tr.Render(testView(), Continue, 0, 0); err != nil {
		t.Fatalf("expected kernels to be rebound; got %v", err)
	}
	if tr.boundGeneration != tr.buffers.generation {
		t.Fatalf("expected bound generation %d; got %d", tr.buffers.generation, tr.boundGeneration)
	}
	if len(surface.pixels) != 64 {
		t.Fatalf("expected 64 pixels; got %d", len(surface.pixels))
	}
	if tr.SamplesTaken() != 1 {
		t.Fatalf("expected new target to reset samples taken; got %d", tr.SamplesTaken())
	}
}

func TestInstanceBufferRegrowth(t *testing.T) {
	ts := setupScene(t)
	tr := newTestTracer(t, ts, Options{})
	if err := tr.SetTarget(&memSurface{w: 2, h: 2}, 1); err != nil {
		t.Fatal(err)
	}
	if err := tr.Render(testView(), Restart, 0, 0); err != nil {
		t.Fatal(err)
	}
	if got := tr.buffers.Instances.Capacity(); got != 4 {
		t.Fatalf("expected descriptor capacity 4; got %d", got)
	}

	ts.setInstance(t, 2, 1, types.Translate4(types.Vec3{0, 0, -4}))
	gen := tr.buffers.generation
	if err := tr.Render(testView(), Restart, 0, 0); err != nil {
		t.Fatal(err)
	}
	if got := tr.buffers.Instances.Capacity(); got != 4 {
		t.Fatalf("expected descriptor capacity to stay at 4; got %d", got)
	}
	if got := tr.buffers.Instances.Len(); got != 3 {
		t.Fatalf("expected 3 descriptors; got %d", got)
	}

	for instIdx := 3; instIdx < 5; instIdx++ {
		ts.setInstance(t, instIdx, 1, types.Translate4(types.Vec3{0, 0, -4}))
	}
	if err := tr.Render(testView(), Restart, 0, 0); err != nil {
		t.Fatal(err)
	}
	if got := tr.buffers.Instances.Capacity(); got != 10 {
		t.Fatalf("expected descriptor capacity 10; got %d", got)
	}
	if tr.buffers.generation == gen {
		t.Fatal("expected descriptor regrowth to bump the buffer generation")
	}
}

func TestSaveFrame(t *testing.T) {
	imgFile := filepath.Join(t.TempDir(), "frame-%d.png")
	tr := newTestTracer(t, setupScene(t), Options{PostProcess: []PipelineStage{SaveFrame(imgFile)}})
	if err := tr.SetTarget(&memSurface{w: 4, h: 3}, 1); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		if err := tr.Render(testView(), Continue, 0, 0); err != nil {
			t.Fatal(err)
		}
	}

	f, err := os.Open(filepath.Join(filepath.Dir(imgFile), "frame-2.png"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	im, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	if b := im.Bounds(); b.Dx() != 4 || b.Dy() != 3 {
		t.Fatalf("expected a 4x3 image; got %v", b)
	}
}

func TestValidationReport(t *testing.T) {
	tr := newTestTracer(t, setupScene(t), Options{Validation: device.ValidationReport})
	if err := tr.SetTarget(&memSurface{w: 4, h: 4}, 1); err != nil {
		t.Fatal(err)
	}
	if err := tr.Render(testView(), Restart, 0, 0); err != nil {
		t.Fatal(err)
	}
	if exc := tr.buffers.Exceptions.HostPtr()[0]; exc.Count != 0 {
		t.Fatalf("expected no kernel exceptions; got %d (code %d)", exc.Count, exc.Code)
	}
}

func TestSettings(t *testing.T) {
	tr := newTestTracer(t, setupScene(t), Options{})
	if got := tr.Settings(); got != DefaultSettings() {
		t.Fatalf("expected default settings; got %+v", got)
	}
	tr.SetSettings(Settings{Epsilon: 1e-3, ClampValue: 2})
	if err := tr.SetTarget(&memSurface{w: 2, h: 2}, 1); err != nil {
		t.Fatal(err)
	}
	if err := tr.Render(testView(), Restart, 0, 0); err != nil {
		t.Fatal(err)
	}
	p := tr.buffers.Params.HostPtr()[0]
	if p.Epsilon != 1e-3 || p.ClampValue != 2 {
		t.Fatalf("expected settings to reach the kernel params; got epsilon %f, clamp %f", p.Epsilon, p.ClampValue)
	}
}

func TestShrunkMaterialsRaiseRangeException(t *testing.T) {
	ts := setupScene(t)
	verts, tris := quadMesh(0.5, -10, 10, 10)
	for i := range tris {
		tris[i].Material = 1
	}
	if err := ts.sc.SetGeometry(1, verts, tris, nil); err != nil {
		t.Fatal(err)
	}
	mesh, err := ts.sc.Mesh(1)
	if err != nil {
		t.Fatal(err)
	}
	if err = ts.acc.SetMesh(1, mesh); err != nil {
		t.Fatal(err)
	}
	grey := scene.NewMaterial(types.Vec3{0.8, 0.8, 0.8})
	if err = ts.sc.SetMaterials([]scene.Material{grey, scene.NewEmissiveMaterial(types.Vec3{10, 10, 10})}); err != nil {
		t.Fatal(err)
	}

	tr := newTestTracer(t, ts, Options{Validation: device.ValidationReport})
	surface := &memSurface{w: 4, h: 4}
	if err = tr.SetTarget(surface, 1); err != nil {
		t.Fatal(err)
	}
	if err = tr.Render(testView(), Restart, 0, 0); err != nil {
		t.Fatal(err)
	}
	if exc := tr.buffers.Exceptions.HostPtr()[0]; exc.Count != 0 {
		t.Fatalf("expected no kernel exceptions; got %d (code %d)", exc.Count, exc.Code)
	}
	const emitterPixel = 1*4 + 3
	if surface.pixels[emitterPixel]&0xffffff == 0 {
		t.Fatalf("expected pixel %d to see the emitter; got %08x", emitterPixel, surface.pixels[emitterPixel])
	}

	// The material buffer keeps its capacity, so the stale emitter record
	// must not be reachable.
	if err = ts.sc.SetMaterials([]scene.Material{grey}); err != nil {
		t.Fatal(err)
	}
	if err = tr.Render(testView(), Restart, 0, 0); err != nil {
		t.Fatal(err)
	}
	if got := tr.buffers.Params.HostPtr()[0].MaterialCount; got != 1 {
		t.Fatalf("expected a material count of 1; got %d", got)
	}
	exc := tr.buffers.Exceptions.HostPtr()[0]
	if exc.Count == 0 || exc.Code != layout.ExcMaterialRange || exc.Value != 1 {
		t.Fatalf("expected material range exceptions for material 1; got %d (code %d, value %d)", exc.Count, exc.Code, exc.Value)
	}
	if px := surface.pixels[emitterPixel]; px&0xffffff != 0 {
		t.Fatalf("expected pixel %d to be black; got %08x", emitterPixel, px)
	}
}

func readAccumulator(t *testing.T, tr *Tracer) []types.Vec4 {
	acc := tr.buffers.Accumulator
	raw := make([]byte, acc.DevPtr().Size())
	if err := acc.DevPtr().Read(0, raw); err != nil {
		t.Fatal(err)
	}
	out := make([]types.Vec4, len(raw)/16)
	if err := binary.Read(bytes.NewReader(raw), binary.LittleEndian, out); err != nil {
		t.Fatal(err)
	}
	return out
}

// Tone map the accumulated radiance of a pixel the way the finalize kernel does
// with zero brightness and contrast.
func expectedPixel(acc []types.Vec4, pixel, pixelStride int, pass uint32) uint32 {
	scale := 1 / float32(pass)
	direct, indirect := acc[pixel], acc[pixel+pixelStride]
	var rgb [3]uint32
	for c := 0; c < 3; c++ {
		v := math32.Sqrt(math32.Max((direct[c]+indirect[c])*scale, 0))
		rgb[c] = uint32(math32.Min(math32.Max(v, 0), 1)*255 + 0.5)
	}
	return rgb[0] | rgb[1]<<8 | rgb[2]<<16 | 0xff<<24
}

func assertPixelsClose(t *testing.T, frame int, got []uint32, acc []types.Vec4, pass uint32) {
	for i, px := range got {
		exp := expectedPixel(acc, i, len(got), pass)
		for shift := 0; shift < 32; shift += 8 {
			g, e := int(px>>shift&0xff), int(exp>>shift&0xff)
			if g-e > 1 || e-g > 1 {
				t.Fatalf("frame %d: expected pixel %d to be %08x; got %08x", frame, i, exp, px)
			}
		}
	}
}

func TestProgressiveAverage(t *testing.T) {
	tr := newTestTracer(t, setupScene(t), Options{})
	surface := &memSurface{w: 4, h: 4}
	if err := tr.SetTarget(surface, 1); err != nil {
		t.Fatal(err)
	}

	if err := tr.Render(testView(), Restart, 0, 0); err != nil {
		t.Fatal(err)
	}
	first := readAccumulator(t, tr)
	assertPixelsClose(t, 1, surface.pixels, first, 1)

	if err := tr.Render(testView(), Continue, 0, 0); err != nil {
		t.Fatal(err)
	}
	if p := tr.buffers.Params.HostPtr()[0]; p.Pass != 2 {
		t.Fatalf("expected finalize to run with pass 2; got %d", p.Pass)
	}
	second := readAccumulator(t, tr)

	// The second frame adds its samples on top of the first one.
	var firstSum, secondSum float32
	for i := 0; i < 2*16; i++ {
		for c := 0; c < 3; c++ {
			if second[i][c] < first[i][c] {
				t.Fatalf("expected accumulator record %d to grow; got %v after %v", i, second[i], first[i])
			}
			firstSum += first[i][c]
			secondSum += second[i][c]
		}
	}
	if secondSum <= firstSum {
		t.Fatalf("expected accumulated radiance to grow past %f; got %f", firstSum, secondSum)
	}
	assertPixelsClose(t, 2, surface.pixels, second, 2)

	// Restarting discards previous samples.
	if err := tr.Render(testView(), Restart, 0, 0); err != nil {
		t.Fatal(err)
	}
	restarted := readAccumulator(t, tr)
	for i := 0; i < 2*16; i++ {
		if restarted[i] != first[i] {
			t.Fatalf("expected restarted accumulator record %d to be %v; got %v", i, first[i], restarted[i])
		}
	}
}
