package scene

import (
	"github.com/achilleasa/wavefront/tracer/layout"
	"github.com/achilleasa/wavefront/types"
)

// A one-sided triangular area light. The emitting side faces the direction
// of (V1-V0) x (V2-V0).
type AreaLight struct {
	V0, V1, V2 types.Vec3
	Radiance   types.Vec3
}

type PointLight struct {
	Position types.Vec3
	Radiance types.Vec3
}

// Cone angles are given as cosines; CosInner >= CosOuter.
type SpotLight struct {
	Position  types.Vec3
	Direction types.Vec3
	Radiance  types.Vec3
	CosInner  float32
	CosOuter  float32
}

type DirectionalLight struct {
	Direction types.Vec3
	Radiance  types.Vec3
}

// The scene light sources in device representation.
type Lights struct {
	Area        []layout.AreaLight
	Point       []layout.PointLight
	Spot        []layout.SpotLight
	Directional []layout.DirectionalLight
}

func packLights(area []AreaLight, point []PointLight, spot []SpotLight, directional []DirectionalLight) Lights {
	out := Lights{
		Area:        make([]layout.AreaLight, len(area)),
		Point:       make([]layout.PointLight, len(point)),
		Spot:        make([]layout.SpotLight, len(spot)),
		Directional: make([]layout.DirectionalLight, len(directional)),
	}

	for i, l := range area {
		cross := l.V1.Sub(l.V0).Cross(l.V2.Sub(l.V0))
		out.Area[i] = layout.AreaLight{
			V0:       l.V0.Vec4(1),
			V1:       l.V1.Vec4(1),
			V2:       l.V2.Vec4(1),
			Normal:   cross.Normalize().Vec4(cross.Len() * 0.5),
			Radiance: l.Radiance.Vec4(0),
		}
	}
	for i, l := range point {
		out.Point[i] = layout.PointLight{
			Position: l.Position.Vec4(1),
			Radiance: l.Radiance.Vec4(0),
		}
	}
	for i, l := range spot {
		out.Spot[i] = layout.SpotLight{
			Position:  l.Position.Vec4(l.CosInner),
			Direction: l.Direction.Normalize().Vec4(l.CosOuter),
			Radiance:  l.Radiance.Vec4(0),
		}
	}
	for i, l := range directional {
		out.Directional[i] = layout.DirectionalLight{
			Direction: l.Direction.Normalize().Vec4(0),
			Radiance:  l.Radiance.Vec4(0),
		}
	}
	return out
}
