package scene

import (
	"errors"
	"testing"

	"github.com/achilleasa/wavefront/tracer/layout"
	"github.com/achilleasa/wavefront/types"
)

func quad(z float32, mat uint32) ([]types.Vec4, []Triangle) {
	verts := []types.Vec4{
		types.XYZW(-1, -1, z, 1), types.XYZW(1, -1, z, 1), types.XYZW(1, 1, z, 1),
		types.XYZW(-1, -1, z, 1), types.XYZW(1, 1, z, 1), types.XYZW(-1, 1, z, 1),
	}
	tris := []Triangle{
		{Material: mat, LightIdx: -1},
		{Material: mat, LightIdx: -1},
	}
	return verts, tris
}

func TestArena(t *testing.T) {
	var a Arena[int]

	if _, err := a.Set(1, 10); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange; got %v", err)
	}
	appended, err := a.Set(0, 10)
	if err != nil || !appended {
		t.Fatalf("expected append; got %t, %v", appended, err)
	}
	appended, err = a.Set(0, 20)
	if err != nil || appended {
		t.Fatalf("expected update; got %t, %v", appended, err)
	}
	if v, _ := a.Get(0); v != 20 {
		t.Fatalf("expected 20; got %d", v)
	}
	if _, err := a.Get(-1); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange; got %v", err)
	}
	if a.Len() != 1 {
		t.Fatalf("expected len 1; got %d", a.Len())
	}
}

func TestSetGeometry(t *testing.T) {
	s := New()
	verts, tris := quad(-1, 0)

	if err := s.SetGeometry(0, verts[:5], tris, nil); !errors.Is(err, ErrInvalidGeometry) {
		t.Fatalf("expected ErrInvalidGeometry; got %v", err)
	}
	if err := s.SetGeometry(0, verts, tris, []uint32{1}); !errors.Is(err, ErrInvalidGeometry) {
		t.Fatalf("expected ErrInvalidGeometry; got %v", err)
	}
	if err := s.SetGeometry(1, verts, tris, nil); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange; got %v", err)
	}
	if err := s.SetGeometry(0, verts, tris, nil); err != nil {
		t.Fatal(err)
	}
	if err := s.SetGeometry(1, verts, tris, nil); err != nil {
		t.Fatal(err)
	}

	packed := s.Triangles()
	if len(packed) != 4 {
		t.Fatalf("expected 4 packed triangles; got %d", len(packed))
	}
	n := packed[0].Normal
	if n[2] < 0.999 || n[3] < 1.999 || n[3] > 2.001 {
		t.Fatalf("expected +Z normal with area 2; got %v", n)
	}

	// Shrinking mesh 0 shifts the offset of mesh 1.
	if err := s.SetGeometry(0, verts[:3], tris[:1], nil); err != nil {
		t.Fatal(err)
	}
	if err := s.SetInstance(0, 1, types.Ident4()); err != nil {
		t.Fatal(err)
	}
	descs := s.InstanceDescriptors()
	if descs[0].TriOffset != 1 || descs[0].TriCount != 2 || descs[0].MeshIndex != 1 {
		t.Fatalf("unexpected descriptor %+v", descs[0])
	}
}

func TestSetInstance(t *testing.T) {
	s := New()
	verts, tris := quad(-1, 0)
	if err := s.SetGeometry(0, verts, tris, nil); err != nil {
		t.Fatal(err)
	}

	if err := s.SetInstance(0, 1, types.Ident4()); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange; got %v", err)
	}
	if err := s.SetInstance(1, 0, types.Ident4()); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange; got %v", err)
	}

	xform := types.Translate4(types.XYZ(1, 2, 3))
	if err := s.SetInstance(0, 0, xform); err != nil {
		t.Fatal(err)
	}
	first, ok := s.ConsumeInstances()
	if !ok {
		t.Fatal("expected instances to be dirty")
	}
	if _, ok := s.ConsumeInstances(); ok {
		t.Fatal("expected dirty flag to be cleared after consuming")
	}
	if !first[0].InvTransform.ApproxEqual(types.Translate4(types.XYZ(-1, -2, -3))) {
		t.Fatalf("unexpected inverse transform %v", first[0].InvTransform)
	}

	// Setting the same transform again yields identical descriptors.
	if err := s.SetInstance(0, 0, xform); err != nil {
		t.Fatal(err)
	}
	second, ok := s.ConsumeInstances()
	if !ok {
		t.Fatal("expected instances to be dirty")
	}
	if len(second) != 1 || second[0] != first[0] {
		t.Fatalf("expected identical descriptors; got %+v and %+v", first, second)
	}
	if inst, _ := s.Instance(0); inst.Mesh != 0 {
		t.Fatalf("expected mesh reference 0; got %d", inst.Mesh)
	}
}

func TestMaterialTextureResolution(t *testing.T) {
	s := New()

	mat := NewMaterial(types.XYZ(1, 1, 1))
	mat.Textures[layout.TexColor] = 1
	if err := s.SetMaterials([]Material{mat}); !errors.Is(err, ErrTextureNotSynced) {
		t.Fatalf("expected ErrTextureNotSynced; got %v", err)
	}

	textures := []Texture{
		{Width: 2, Height: 2, Storage: layout.StorageARGB32, Texels32: make([]uint32, 4)},
		{Width: 3, Height: 1, Storage: layout.StorageARGB32, Texels32: make([]uint32, 3)},
		{Width: 1, Height: 1, Storage: layout.StorageARGB128, Texels128: make([]types.Vec4, 1)},
	}
	if err := s.SetTextures(textures); err != nil {
		t.Fatal(err)
	}
	mat.Textures[layout.TexReserved] = 0
	mat.Textures[layout.TexEmission] = 2
	if err := s.SetMaterials([]Material{mat}); err != nil {
		t.Fatal(err)
	}

	rec := s.Materials()[0]
	if slot := rec.Textures[layout.TexColor]; slot.Offset != 4 || slot.Width != 3 || slot.Height != 1 {
		t.Fatalf("unexpected color slot %+v", slot)
	}
	if slot := rec.Textures[layout.TexEmission]; slot.Offset != 0 || slot.Storage != layout.StorageARGB128 {
		t.Fatalf("unexpected emission slot %+v", slot)
	}
	if slot := rec.Textures[layout.TexReserved]; slot.Offset != -1 {
		t.Fatalf("expected reserved slot to be unused; got %+v", slot)
	}
	if slot := rec.Textures[layout.TexNormal]; slot.Offset != -1 {
		t.Fatalf("expected normal slot to be unused; got %+v", slot)
	}

	pools := s.Texels()
	if len(pools.ARGB32) != minPoolTexels || len(pools.NRM32) != minPoolTexels {
		t.Fatalf("expected pools to hold at least %d texels; got %d, %d", minPoolTexels, len(pools.ARGB32), len(pools.NRM32))
	}

	// Dropping a referenced texture fails the material re-resolve.
	if err := s.SetTextures(textures[:1]); !errors.Is(err, ErrTextureNotSynced) {
		t.Fatalf("expected ErrTextureNotSynced; got %v", err)
	}
}

func TestFailedSetTexturesKeepsState(t *testing.T) {
	s := New()
	textures := []Texture{
		{Width: 4, Height: 4, Storage: layout.StorageARGB32, Texels32: make([]uint32, 16)},
		{Width: 2, Height: 2, Storage: layout.StorageARGB32, Texels32: make([]uint32, 4)},
	}
	if err := s.SetTextures(textures); err != nil {
		t.Fatal(err)
	}
	mat := NewMaterial(types.XYZ(1, 1, 1))
	mat.Textures[layout.TexColor] = 1
	if err := s.SetMaterials([]Material{mat}); err != nil {
		t.Fatal(err)
	}
	s.Consume(DirtyAll)

	err := s.SetTextures([]Texture{{Width: 1, Height: 1, Storage: layout.StorageARGB32, Texels32: make([]uint32, 1)}})
	if !errors.Is(err, ErrTextureNotSynced) {
		t.Fatalf("expected ErrTextureNotSynced; got %v", err)
	}
	if s.Dirty(DirtyTextures | DirtyMaterials) {
		t.Fatal("expected a failed texture update to leave the dirty flags untouched")
	}
	if got := len(s.Texels().ARGB32); got != 20 {
		t.Fatalf("expected the previous pool of 20 texels; got %d", got)
	}
	if slot := s.Materials()[0].Textures[layout.TexColor]; slot.Offset != 16 || slot.Width != 2 {
		t.Fatalf("expected the material to keep its slot; got %+v", slot)
	}

	// A successful update re-resolves the materials.
	textures[0] = Texture{Width: 1, Height: 1, Storage: layout.StorageARGB32, Texels32: make([]uint32, 1)}
	if err = s.SetTextures(textures); err != nil {
		t.Fatal(err)
	}
	if !s.Dirty(DirtyMaterials) {
		t.Fatal("expected materials to be marked dirty")
	}
	if slot := s.Materials()[0].Textures[layout.TexColor]; slot.Offset != 1 {
		t.Fatalf("expected color slot offset 1; got %+v", slot)
	}
}

func TestInvalidTexture(t *testing.T) {
	specs := []Texture{
		{Width: 0, Height: 1, Storage: layout.StorageARGB32},
		{Width: 2, Height: 1, Storage: layout.StorageARGB32, Texels32: make([]uint32, 1)},
		{Width: 1, Height: 1, Storage: layout.StorageARGB128},
		{Width: 1, Height: 1, Storage: 42, Texels32: make([]uint32, 1)},
	}
	for i, spec := range specs {
		if err := New().SetTextures([]Texture{spec}); !errors.Is(err, ErrInvalidTexture) {
			t.Errorf("[spec %d] expected ErrInvalidTexture; got %v", i, err)
		}
	}
}

func TestEmissiveMaterial(t *testing.T) {
	s := New()
	if err := s.SetMaterials([]Material{NewMaterial(types.XYZ(1, 0, 0)), NewEmissiveMaterial(types.XYZ(4, 4, 4))}); err != nil {
		t.Fatal(err)
	}
	recs := s.Materials()
	if recs[0].Flags&layout.MaterialEmissive != 0 {
		t.Fatal("expected diffuse material to be non-emissive")
	}
	if recs[1].Flags&layout.MaterialEmissive == 0 {
		t.Fatal("expected emissive material flag")
	}
}

func TestLightsAndSky(t *testing.T) {
	s := New()
	s.SetLights(
		[]AreaLight{{V0: types.XYZ(0, 0, 0), V1: types.XYZ(2, 0, 0), V2: types.XYZ(0, 0, -2), Radiance: types.XYZ(1, 1, 1)}},
		[]PointLight{{Position: types.XYZ(0, 5, 0), Radiance: types.XYZ(10, 10, 10)}},
		nil,
		[]DirectionalLight{{Direction: types.XYZ(0, -2, 0), Radiance: types.XYZ(1, 1, 1)}},
	)
	lights := s.Lights()
	if len(lights.Area) != 1 || len(lights.Point) != 1 || len(lights.Spot) != 0 || len(lights.Directional) != 1 {
		t.Fatalf("unexpected light counts %+v", lights)
	}
	if n := lights.Area[0].Normal; n[1] < 0.999 || n[3] < 1.999 || n[3] > 2.001 {
		t.Fatalf("expected +Y normal with area 2; got %v", n)
	}
	if d := lights.Directional[0].Direction; d[1] != -1 {
		t.Fatalf("expected normalized direction; got %v", d)
	}

	if err := s.SetSkyData(make([]types.Vec3, 3), 2, 2); !errors.Is(err, ErrInvalidSky) {
		t.Fatalf("expected ErrInvalidSky; got %v", err)
	}
	if err := s.SetSkyData([]types.Vec3{{1, 2, 3}, {4, 5, 6}}, 2, 1); err != nil {
		t.Fatal(err)
	}
	sky, w, h := s.Sky()
	if w != 2 || h != 1 || sky[1] != types.XYZW(4, 5, 6, 0) {
		t.Fatalf("unexpected sky %v (%dx%d)", sky, w, h)
	}
}

func TestCameraViewPyramid(t *testing.T) {
	cam := NewCamera(1.5707964) // 90 degrees
	cam.SetupProjection(4, 4)
	view := cam.ViewPyramid()

	expect := []types.Vec3{
		types.XYZ(-1, 1, -1),
		types.XYZ(1, 1, -1),
		types.XYZ(-1, -1, -1),
	}
	for i, got := range []types.Vec3{view.P1, view.P2, view.P3} {
		if got.Sub(expect[i]).Len() > 1e-3 {
			t.Errorf("[corner %d] expected %v; got %v", i, expect[i], got)
		}
	}
}
