package scene

import (
	"fmt"

	"github.com/achilleasa/wavefront/tracer/layout"
	"github.com/achilleasa/wavefront/types"
)

// Marks an unused material texture slot.
const NoTexture = -1

// Defines a scene material.
type Material struct {
	// Diffuse color and alpha.
	Diffuse types.Vec3
	Alpha   float32

	// Emissive radiance. A non-zero value turns the material into a light.
	Emission types.Vec3

	Roughness float32
	Metallic  float32
	IOR       float32
	Specular  float32

	// Texture indices per slot (see layout.TexColor and friends) or NoTexture.
	Textures [layout.NumTextureSlots]int
}

// Create an untextured diffuse material.
func NewMaterial(diffuse types.Vec3) Material {
	m := Material{
		Diffuse: diffuse,
		Alpha:   1,
		IOR:     1,
	}
	for slot := range m.Textures {
		m.Textures[slot] = NoTexture
	}
	return m
}

// Create an emissive material.
func NewEmissiveMaterial(emission types.Vec3) Material {
	m := NewMaterial(types.Vec3{})
	m.Emission = emission
	return m
}

// Convert the material to its device representation, rewriting texture
// indices to absolute texel offsets within the referenced texture pools.
func (m *Material) resolve(textures []Texture) (layout.Material, error) {
	out := layout.Material{
		Diffuse:  m.Diffuse.Vec4(m.Alpha),
		Emission: m.Emission.Vec4(0),
		Params:   types.XYZW(m.Roughness, m.Metallic, m.IOR, m.Specular),
	}
	if m.Emission.MaxComponent() > 0 {
		out.Flags |= layout.MaterialEmissive
	}

	for slot, texIdx := range m.Textures {
		out.Textures[slot].Offset = -1
		if slot == layout.TexReserved || texIdx == NoTexture {
			continue
		}
		if texIdx < 0 || texIdx >= len(textures) {
			return out, fmt.Errorf("%w: slot %d references texture %d (%d textures synced)", ErrTextureNotSynced, slot, texIdx, len(textures))
		}
		tex := &textures[texIdx]
		out.Textures[slot] = layout.TextureSlot{
			Offset:  int32(tex.firstPixel),
			Width:   uint32(tex.Width),
			Height:  uint32(tex.Height),
			Storage: tex.Storage,
		}
	}
	return out, nil
}
