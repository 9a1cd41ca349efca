package cmd

import (
	"math"

	"github.com/achilleasa/wavefront/renderer"
	"github.com/achilleasa/wavefront/scene"
	"github.com/achilleasa/wavefront/tracer/layout"
	"github.com/achilleasa/wavefront/types"
)

// Material indices of the demo scene.
const (
	matFloor uint32 = iota
	matWall
	matRed
	matBlue
	matLight
)

// A mesh under construction.
type meshBuilder struct {
	verts []types.Vec4
	tris  []scene.Triangle
}

// Add a quad given its corners in counter-clockwise order as seen from the
// side it faces.
func (mb *meshBuilder) quad(a, b, c, d types.Vec3, mat uint32) {
	uv := [4]types.Vec2{{0, 0}, {1, 0}, {1, 1}, {0, 1}}
	mb.verts = append(mb.verts,
		a.Vec4(1), b.Vec4(1), c.Vec4(1),
		a.Vec4(1), c.Vec4(1), d.Vec4(1),
	)
	mb.tris = append(mb.tris,
		scene.Triangle{UV: [3]types.Vec2{uv[0], uv[1], uv[2]}, Material: mat, LightIdx: -1},
		scene.Triangle{UV: [3]types.Vec2{uv[0], uv[2], uv[3]}, Material: mat, LightIdx: -1},
	)
}

// Add an axis aligned box centered at the origin with outward facing sides.
func (mb *meshBuilder) box(half types.Vec3, mat uint32) {
	x, y, z := half[0], half[1], half[2]
	p := func(sx, sy, sz float32) types.Vec3 { return types.Vec3{sx * x, sy * y, sz * z} }
	mb.quad(p(-1, -1, 1), p(1, -1, 1), p(1, 1, 1), p(-1, 1, 1), mat)     // +z
	mb.quad(p(1, -1, -1), p(-1, -1, -1), p(-1, 1, -1), p(1, 1, -1), mat) // -z
	mb.quad(p(1, -1, 1), p(1, -1, -1), p(1, 1, -1), p(1, 1, 1), mat)     // +x
	mb.quad(p(-1, -1, -1), p(-1, -1, 1), p(-1, 1, 1), p(-1, 1, -1), mat) // -x
	mb.quad(p(-1, 1, 1), p(1, 1, 1), p(1, 1, -1), p(-1, 1, -1), mat)     // +y
	mb.quad(p(-1, -1, -1), p(1, -1, -1), p(1, -1, 1), p(-1, -1, 1), mat) // -y
}

func checkerTexture(size, cells int) scene.Texture {
	tex := scene.Texture{
		Width:    size,
		Height:   size,
		Storage:  layout.StorageARGB32,
		Texels32: make([]uint32, size*size),
	}
	cell := size / cells
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			texel := uint32(0xff404040)
			if (x/cell+y/cell)%2 == 0 {
				texel = 0xffd0d0d0
			}
			tex.Texels32[y*size+x] = texel
		}
	}
	return tex
}

// Sky gradient from a warm horizon to a blue zenith.
func skyGradient(width, height int) []types.Vec3 {
	pixels := make([]types.Vec3, width*height)
	horizon := types.Vec3{0.9, 0.8, 0.7}
	zenith := types.Vec3{0.2, 0.35, 0.7}
	for y := 0; y < height; y++ {
		t := float32(y) / float32(height-1)
		elevation := float32(math.Abs(float64(1 - 2*t)))
		c := horizon.Mul(1 - elevation).Add(zenith.Mul(elevation))
		for x := 0; x < width; x++ {
			pixels[y*width+x] = c
		}
	}
	return pixels
}

// Push a small room with two boxes, a textured floor and a ceiling light
// into the core.
func loadDemoScene(core *renderer.Core) error {
	var room, box, light meshBuilder

	// Floor, back wall and side walls.
	room.quad(types.Vec3{-2, -1, 2}, types.Vec3{2, -1, 2}, types.Vec3{2, -1, -2}, types.Vec3{-2, -1, -2}, matFloor)
	room.quad(types.Vec3{-2, -1, -2}, types.Vec3{2, -1, -2}, types.Vec3{2, 2, -2}, types.Vec3{-2, 2, -2}, matWall)
	room.quad(types.Vec3{-2, -1, 2}, types.Vec3{-2, -1, -2}, types.Vec3{-2, 2, -2}, types.Vec3{-2, 2, 2}, matRed)
	room.quad(types.Vec3{2, -1, -2}, types.Vec3{2, -1, 2}, types.Vec3{2, 2, 2}, types.Vec3{2, 2, -2}, matBlue)

	box.box(types.Vec3{0.4, 0.4, 0.4}, matWall)

	// Emitter panel facing down just below the ceiling.
	light.quad(types.Vec3{-0.5, 1.95, -0.5}, types.Vec3{0.5, 1.95, -0.5}, types.Vec3{0.5, 1.95, 0.5}, types.Vec3{-0.5, 1.95, 0.5}, matLight)
	light.tris[0].LightIdx, light.tris[1].LightIdx = 0, 1

	for meshIdx, mb := range []*meshBuilder{&room, &box, &light} {
		if err := core.SetGeometry(meshIdx, mb.verts, mb.tris, nil); err != nil {
			return err
		}
	}

	instances := []struct {
		mesh      int
		transform types.Mat4
	}{
		{0, types.Ident4()},
		{1, types.Translate4(types.Vec3{-0.7, -0.6, -0.6}).Mul4(types.RotateY4(0.4))},
		{1, types.Translate4(types.Vec3{0.7, -0.2, -0.9}).Mul4(types.RotateY4(-0.3)).Mul4(types.Scale4(types.Vec3{1, 2, 1}))},
		{2, types.Ident4()},
	}
	for instIdx, inst := range instances {
		if err := core.SetInstance(instIdx, inst.mesh, inst.transform); err != nil {
			return err
		}
	}

	if err := core.SetTextures([]scene.Texture{checkerTexture(64, 8)}); err != nil {
		return err
	}

	floor := scene.NewMaterial(types.Vec3{1, 1, 1})
	floor.Textures[layout.TexColor] = 0
	materials := []scene.Material{
		matFloor: floor,
		matWall:  scene.NewMaterial(types.Vec3{0.75, 0.75, 0.75}),
		matRed:   scene.NewMaterial(types.Vec3{0.75, 0.15, 0.15}),
		matBlue:  scene.NewMaterial(types.Vec3{0.15, 0.15, 0.75}),
		matLight: scene.NewEmissiveMaterial(types.Vec3{8, 8, 8}),
	}
	if err := core.SetMaterials(materials); err != nil {
		return err
	}

	// The panel is sampled explicitly through two area lights.
	radiance := types.Vec3{8, 8, 8}
	area := []scene.AreaLight{
		{V0: types.Vec3{-0.5, 1.95, -0.5}, V1: types.Vec3{0.5, 1.95, -0.5}, V2: types.Vec3{0.5, 1.95, 0.5}, Radiance: radiance},
		{V0: types.Vec3{-0.5, 1.95, -0.5}, V1: types.Vec3{0.5, 1.95, 0.5}, V2: types.Vec3{-0.5, 1.95, 0.5}, Radiance: radiance},
	}
	sun := []scene.DirectionalLight{
		{Direction: types.Vec3{-0.3, -1, -0.2}.Normalize(), Radiance: types.Vec3{0.3, 0.28, 0.25}},
	}
	if err := core.SetLights(area, nil, nil, sun); err != nil {
		return err
	}

	return core.SetSkyData(skyGradient(32, 16), 32, 16)
}

// The demo camera looking into the room.
func demoCamera(width, height int) *scene.Camera {
	camera := scene.NewCamera(float32(math.Pi / 3))
	camera.Position = types.Vec3{0, 0.5, 4}
	camera.LookAt = types.Vec3{0, 0.3, 0}
	camera.SetupProjection(width, height)
	return camera
}
