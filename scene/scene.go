// Package scene mirrors the scene data pushed by the host application and
// converts it into the flat records consumed by the compute kernels.
package scene

import (
	"fmt"

	"github.com/achilleasa/wavefront/tracer/layout"
	"github.com/achilleasa/wavefront/types"
)

// Tracks which parts of the scene changed since they were last consumed.
type DirtyFlag uint8

const (
	DirtyGeometry DirtyFlag = 1 << iota
	DirtyInstances
	DirtyTextures
	DirtyMaterials
	DirtyLights
	DirtySky

	DirtyAll = DirtyGeometry | DirtyInstances | DirtyTextures | DirtyMaterials | DirtyLights | DirtySky
)

// Scene is the host side shadow of the scene data.
type Scene struct {
	meshes    Arena[Mesh]
	instances Arena[Instance]

	textures  []Texture
	materials []Material

	triangles    []layout.Triangle
	matRecords   []layout.Material
	pools        TexelPools
	lights       Lights
	sky          []types.Vec4
	skyW, skyH   int
	packedMeshes bool

	dirty DirtyFlag
}

func New() *Scene {
	return &Scene{
		pools: packTextures(nil),
		dirty: DirtyAll,
	}
}

// Set the geometry of a mesh. The vertex list holds three vertices per
// triangle. AlphaFlags may be empty or hold one entry per triangle.
func (s *Scene) SetGeometry(meshIdx int, vertices []types.Vec4, triangles []Triangle, alphaFlags []uint32) error {
	if len(vertices) != 3*len(triangles) {
		return fmt.Errorf("%w: mesh %d: expected %d vertices for %d triangles; got %d", ErrInvalidGeometry, meshIdx, 3*len(triangles), len(triangles), len(vertices))
	}
	if len(alphaFlags) != 0 && len(alphaFlags) != len(triangles) {
		return fmt.Errorf("%w: mesh %d: expected %d alpha flags; got %d", ErrInvalidGeometry, meshIdx, len(triangles), len(alphaFlags))
	}

	mesh := Mesh{
		Vertices:   append([]types.Vec4(nil), vertices...),
		Triangles:  append([]Triangle(nil), triangles...),
		AlphaFlags: append([]uint32(nil), alphaFlags...),
	}
	if _, err := s.meshes.Set(meshIdx, mesh); err != nil {
		return fmt.Errorf("mesh: %w", err)
	}

	// Triangle offsets of later meshes may shift.
	s.packedMeshes = false
	s.dirty |= DirtyGeometry | DirtyInstances
	return nil
}

// Place an instance of a mesh in the world.
func (s *Scene) SetInstance(instIdx, meshIdx int, transform types.Mat4) error {
	if meshIdx < 0 || meshIdx >= s.meshes.Len() {
		return fmt.Errorf("%w: instance %d references mesh %d (%d meshes)", ErrIndexOutOfRange, instIdx, meshIdx, s.meshes.Len())
	}
	inst := Instance{
		Mesh:         meshIdx,
		Transform:    transform,
		InvTransform: transform.Inv(),
	}
	if _, err := s.instances.Set(instIdx, inst); err != nil {
		return fmt.Errorf("instance: %w", err)
	}
	s.dirty |= DirtyInstances
	return nil
}

// Replace the scene textures. Materials are re-resolved against the new
// texture layout; on error neither textures nor materials change.
func (s *Scene) SetTextures(textures []Texture) error {
	for i := range textures {
		if err := textures[i].validate(); err != nil {
			return fmt.Errorf("texture %d: %w", i, err)
		}
	}
	textures = append([]Texture(nil), textures...)
	pools := packTextures(textures)

	records, err := resolveMaterials(s.materials, textures)
	if err != nil {
		return err
	}

	s.textures, s.pools = textures, pools
	s.dirty |= DirtyTextures
	if len(s.materials) != 0 {
		s.matRecords = records
		s.dirty |= DirtyMaterials
	}
	return nil
}

// Replace the scene materials. Textures referenced by the materials must
// have been set first.
func (s *Scene) SetMaterials(materials []Material) error {
	records, err := resolveMaterials(materials, s.textures)
	if err != nil {
		return err
	}
	s.materials = append([]Material(nil), materials...)
	s.matRecords = records
	s.dirty |= DirtyMaterials
	return nil
}

func resolveMaterials(materials []Material, textures []Texture) ([]layout.Material, error) {
	records := make([]layout.Material, len(materials))
	for i := range materials {
		rec, err := materials[i].resolve(textures)
		if err != nil {
			return nil, fmt.Errorf("material %d: %w", i, err)
		}
		records[i] = rec
	}
	return records, nil
}

// Replace the scene lights.
func (s *Scene) SetLights(area []AreaLight, point []PointLight, spot []SpotLight, directional []DirectionalLight) {
	s.lights = packLights(area, point, spot, directional)
	s.dirty |= DirtyLights
}

// Replace the equirectangular sky map. An empty map renders a black sky.
func (s *Scene) SetSkyData(pixels []types.Vec3, width, height int) error {
	if width < 0 || height < 0 || len(pixels) != width*height {
		return fmt.Errorf("%w: expected %dx%d pixels; got %d", ErrInvalidSky, width, height, len(pixels))
	}
	s.sky = make([]types.Vec4, len(pixels))
	for i, p := range pixels {
		s.sky[i] = p.Vec4(0)
	}
	s.skyW, s.skyH = width, height
	if len(pixels) == 0 {
		s.skyW, s.skyH = 0, 0
	}
	s.dirty |= DirtySky
	return nil
}

// Return the mesh with the given index.
func (s *Scene) Mesh(idx int) (*Mesh, error) {
	return s.meshes.Ptr(idx)
}

// Return the instance with the given index.
func (s *Scene) Instance(idx int) (Instance, error) {
	return s.instances.Get(idx)
}

func (s *Scene) MeshCount() int     { return s.meshes.Len() }
func (s *Scene) InstanceCount() int { return s.instances.Len() }

// Check whether any of the given flags is set.
func (s *Scene) Dirty(flags DirtyFlag) bool {
	return s.dirty&flags != 0
}

// Check whether the flag is set and clear it.
func (s *Scene) Consume(flag DirtyFlag) bool {
	set := s.dirty&flag != 0
	s.dirty &^= flag
	return set
}

// Assign triangle offsets and pack the triangles of all meshes into a single
// list.
func (s *Scene) packMeshes() {
	if s.packedMeshes {
		return
	}
	total := 0
	for _, m := range s.meshes.Items() {
		total += len(m.Triangles)
	}
	s.triangles = make([]layout.Triangle, 0, total)
	for idx := range s.meshes.Items() {
		m, _ := s.meshes.Ptr(idx)
		m.triOffset = uint32(len(s.triangles))
		for i := range m.Triangles {
			s.triangles = append(s.triangles, m.packTriangle(i))
		}
	}
	s.packedMeshes = true
}

// Get the packed triangles of all meshes.
func (s *Scene) Triangles() []layout.Triangle {
	s.packMeshes()
	return s.triangles
}

// Build the instance descriptor array.
func (s *Scene) InstanceDescriptors() []layout.InstanceDesc {
	s.packMeshes()
	descs := make([]layout.InstanceDesc, s.instances.Len())
	for i, inst := range s.instances.Items() {
		mesh, _ := s.meshes.Ptr(inst.Mesh)
		descs[i] = layout.InstanceDesc{
			InvTransform: inst.InvTransform,
			TriOffset:    mesh.triOffset,
			TriCount:     uint32(len(mesh.Triangles)),
			MeshIndex:    uint32(inst.Mesh),
		}
	}
	return descs
}

// Return the instance descriptors if instances changed since the last call
// and clear the dirty flag.
func (s *Scene) ConsumeInstances() ([]layout.InstanceDesc, bool) {
	if !s.Consume(DirtyInstances) {
		return nil, false
	}
	return s.InstanceDescriptors(), true
}

// Get the resolved material records.
func (s *Scene) Materials() []layout.Material {
	return s.matRecords
}

// Get the texel pools.
func (s *Scene) Texels() TexelPools {
	return s.pools
}

// Get the scene lights.
func (s *Scene) Lights() Lights {
	return s.lights
}

// Get the sky map and its dimensions.
func (s *Scene) Sky() ([]types.Vec4, int, int) {
	return s.sky, s.skyW, s.skyH
}
