package host

import (
	"sync/atomic"
	"unsafe"

	"github.com/chewxy/math32"

	"github.com/achilleasa/wavefront/tracer/layout"
	"github.com/achilleasa/wavefront/types"
)

// Distance used for directional light shadow rays.
const farAway = 1e30

type shadeContext struct {
	params      *layout.Params
	counters    *layout.Counters
	paths       []layout.PathState
	hits        []layout.Hit
	connections []layout.Connection
	accumulator [][4]float32
	instances   []layout.InstanceDesc
	triangles   []layout.Triangle
	materials   []layout.Material
	texARGB32   []uint32
	texARGB128  []types.Vec4
	texNRM32    []uint32
	areaLights  []layout.AreaLight
	pointLights []layout.PointLight
	spotLights  []layout.SpotLight
	dirLights   []layout.DirectionalLight
	sky         []types.Vec4
	exceptions  []layout.Exception

	inBase, outBase int
	lightCount      uint32
	validate        bool
}

// shade(params, counters, paths, hits, connections, accumulator, instances,
// triangles, materials, texARGB32, texARGB128, texNRM32, areaLights,
// pointLights, spotLights, directionalLights, sky, exceptions)
func bindShade(args []interface{}) (func(int), error) {
	r := &argReader{args: args}
	sc := &shadeContext{
		params:      paramsArg(r, 0),
		paths:       readArg[layout.PathState](r, 2),
		hits:        readArg[layout.Hit](r, 3),
		connections: readArg[layout.Connection](r, 4),
		accumulator: readArg[[4]float32](r, 5),
		instances:   readArg[layout.InstanceDesc](r, 6),
		triangles:   readArg[layout.Triangle](r, 7),
		materials:   readArg[layout.Material](r, 8),
		texARGB32:   readArg[uint32](r, 9),
		texARGB128:  readArg[types.Vec4](r, 10),
		texNRM32:    readArg[uint32](r, 11),
		areaLights:  readArg[layout.AreaLight](r, 12),
		pointLights: readArg[layout.PointLight](r, 13),
		spotLights:  readArg[layout.SpotLight](r, 14),
		dirLights:   readArg[layout.DirectionalLight](r, 15),
		sky:         readArg[types.Vec4](r, 16),
		exceptions:  readArg[layout.Exception](r, 17),
	}
	counters := readArg[layout.Counters](r, 1)
	if r.err != nil {
		return nil, r.err
	}

	p := sc.params
	sc.counters = &counters[0]
	sc.inBase = int(((p.PathLength - 1) % 2) * p.PathStride)
	sc.outBase = int((p.PathLength % 2) * p.PathStride)
	sc.lightCount = p.AreaLights + p.PointLights + p.SpotLights + p.DirectionalLights
	sc.validate = p.Validate != 0

	return sc.shade, nil
}

func (sc *shadeContext) shade(i int) {
	p := sc.params
	ps := &sc.paths[sc.inBase+i]
	hit := &sc.hits[i]

	channel := layout.ChannelIndirect
	if p.PathLength == 1 {
		channel = layout.ChannelDirect
	}
	throughput := ps.Throughput.Vec3()
	dir := ps.Direction.Vec3()

	if hit.Miss() {
		sc.deposit(ps.PixelIdx, channel, throughput.MulVec(sc.skyColor(dir)))
		return
	}

	if p.PathLength == 1 && int32(ps.PixelIdx) == p.ProbePixel && ps.SampleIdx == 0 {
		atomic.StoreInt32(&sc.counters.ProbedInstID, hit.Inst)
		atomic.StoreInt32(&sc.counters.ProbedTriID, hit.Tri)
		atomic.StoreUint32((*uint32)(unsafe.Pointer(&sc.counters.ProbedDist)), math32.Float32bits(hit.T))
	}

	if uint32(hit.Inst) >= p.InstanceCount {
		sc.fail(layout.ExcInstanceRange, i, hit.Inst)
		return
	}
	desc := &sc.instances[hit.Inst]
	triIdx := desc.TriOffset + uint32(hit.Tri)
	if uint32(hit.Tri) >= desc.TriCount || triIdx >= p.TriangleCount {
		sc.fail(layout.ExcTriangleRange, i, hit.Tri)
		return
	}
	tri := &sc.triangles[triIdx]
	if tri.Material >= p.MaterialCount {
		sc.fail(layout.ExcMaterialRange, i, int32(tri.Material))
		return
	}
	mat := &sc.materials[tri.Material]

	if mat.Flags&layout.MaterialEmissive != 0 {
		// Later bounces reach emitters through explicit light sampling.
		if p.PathLength == 1 {
			sc.deposit(ps.PixelIdx, channel, throughput.MulVec(mat.Emission.Vec3()))
		}
		return
	}

	point := ps.Origin.Vec3().Add(dir.Mul(hit.T))
	normal := desc.InvTransform.MulTransposeDir(tri.Normal.Vec3()).Normalize()
	if normal.Dot(dir) > 0 {
		normal = normal.Mul(-1)
	}
	w := 1 - hit.U - hit.V
	uv := tri.UV[0].Mul(w).Add(tri.UV[1].Mul(hit.U)).Add(tri.UV[2].Mul(hit.V))
	albedo := mat.Diffuse.Vec3()
	if texel, ok := sc.sampleTexture(&mat.Textures[layout.TexColor], uv, i); ok {
		albedo = albedo.MulVec(texel)
	}

	seed := ps.Seed ^ p.Seed
	if seed == 0 {
		seed = 1
	}
	surfacePoint := point.Add(normal.Mul(p.Epsilon))

	// Next event estimation: connect to one uniformly selected light.
	if sc.lightCount > 0 {
		lightDir, dist, radiance := sc.sampleLight(point, &seed)
		cosSurface := normal.Dot(lightDir)
		if cosSurface > 0 && radiance.MaxComponent() > 0 {
			contrib := throughput.MulVec(albedo).Mul(cosSurface / math32.Pi * float32(sc.lightCount)).MulVec(radiance)
			sc.connect(surfacePoint, lightDir, dist-2*p.Epsilon, clampRadiance(contrib, p.ClampValue), ps.PixelIdx, channel, i)
		}
	}

	if p.PathLength >= p.MaxPathLength {
		return
	}

	throughput = throughput.MulVec(albedo)
	if p.PathLength > 1 {
		survival := math32.Min(1, throughput.MaxComponent())
		if layout.RandomFloat(&seed) >= survival {
			return
		}
		throughput = throughput.Mul(1 / survival)
	}
	if throughput.MaxComponent() <= 0 {
		return
	}

	newDir := cosineHemisphere(normal, layout.RandomFloat(&seed), layout.RandomFloat(&seed))
	extIdx := atomic.AddUint32(&sc.counters.ExtensionRays, 1) - 1
	if extIdx >= p.PathStride {
		sc.fail(layout.ExcPathOverflow, i, int32(extIdx))
		return
	}
	sc.paths[sc.outBase+int(extIdx)] = layout.PathState{
		Origin:     surfacePoint.Vec4(0),
		Direction:  newDir.Vec4(0),
		Throughput: throughput.Vec4(1),
		PixelIdx:   ps.PixelIdx,
		SampleIdx:  ps.SampleIdx,
		Seed:       seed,
	}
}

func (sc *shadeContext) fail(code uint32, item int, value int32) {
	if sc.validate {
		raise(sc.exceptions, code, uint32(item), value)
	}
}

func (sc *shadeContext) deposit(pixel, channel uint32, radiance types.Vec3) {
	radiance = clampRadiance(radiance, sc.params.ClampValue)
	acc := &sc.accumulator[pixel+channel*sc.params.PixelStride]
	for ch := 0; ch < 3; ch++ {
		if radiance[ch] != 0 {
			atomicAddFloat32(&acc[ch], radiance[ch])
		}
	}
}

func (sc *shadeContext) connect(origin, dir types.Vec3, dist float32, contrib types.Vec3, pixel, channel uint32, item int) {
	idx := atomic.AddUint32(&sc.counters.ShadowRays, 1) - 1
	if int(idx) >= len(sc.connections) {
		sc.fail(layout.ExcConnectionOverflow, item, int32(idx))
		return
	}
	sc.connections[idx] = layout.Connection{
		Origin:       origin.Vec4(dist),
		Direction:    dir.Vec4(0),
		Contribution: contrib.Vec4(0),
		PixelIdx:     pixel,
		Channel:      channel,
	}
}

// Pick a light uniformly and sample a point on it. Returns the normalized
// direction towards the light, its distance and the incoming radiance
// already divided by the sampling pdf of the chosen light.
func (sc *shadeContext) sampleLight(point types.Vec3, seed *uint32) (types.Vec3, float32, types.Vec3) {
	p := sc.params
	pick := uint32(layout.RandomFloat(seed) * float32(sc.lightCount))
	if pick >= sc.lightCount {
		pick = sc.lightCount - 1
	}
	r0, r1 := layout.RandomFloat(seed), layout.RandomFloat(seed)

	if pick < p.AreaLights {
		l := &sc.areaLights[pick]
		su := math32.Sqrt(r0)
		b1, b2 := r1*su, su*(1-r1)
		v0 := l.V0.Vec3()
		pos := v0.Add(l.V1.Vec3().Sub(v0).Mul(b1)).Add(l.V2.Vec3().Sub(v0).Mul(b2))
		toLight := pos.Sub(point)
		dist := toLight.Len()
		if dist <= 0 {
			return types.Vec3{}, 0, types.Vec3{}
		}
		dir := toLight.Mul(1 / dist)
		cosLight := -dir.Dot(l.Normal.Vec3())
		if cosLight <= 0 {
			return dir, dist, types.Vec3{}
		}
		return dir, dist, l.Radiance.Vec3().Mul(cosLight * l.Normal[3] / (dist * dist))
	}
	pick -= p.AreaLights

	if pick < p.PointLights {
		l := &sc.pointLights[pick]
		toLight := l.Position.Vec3().Sub(point)
		dist := toLight.Len()
		if dist <= 0 {
			return types.Vec3{}, 0, types.Vec3{}
		}
		return toLight.Mul(1 / dist), dist, l.Radiance.Vec3().Mul(1 / (dist * dist))
	}
	pick -= p.PointLights

	if pick < p.SpotLights {
		l := &sc.spotLights[pick]
		toLight := l.Position.Vec3().Sub(point)
		dist := toLight.Len()
		if dist <= 0 {
			return types.Vec3{}, 0, types.Vec3{}
		}
		dir := toLight.Mul(1 / dist)
		falloff := smoothstep(l.Direction[3], l.Position[3], -dir.Dot(l.Direction.Vec3()))
		return dir, dist, l.Radiance.Vec3().Mul(falloff / (dist * dist))
	}
	pick -= p.SpotLights

	l := &sc.dirLights[pick]
	return l.Direction.Vec3().Mul(-1).Normalize(), farAway, l.Radiance.Vec3()
}

// Equirectangular sky lookup.
func (sc *shadeContext) skyColor(dir types.Vec3) types.Vec3 {
	w, h := sc.params.SkyWidth, sc.params.SkyHeight
	if w == 0 || h == 0 {
		return types.Vec3{}
	}
	u := 0.5 + math32.Atan2(dir[0], -dir[2])/(2*math32.Pi)
	v := math32.Acos(math32.Max(-1, math32.Min(1, dir[1]))) / math32.Pi
	x := uint32(u*float32(w)) % w
	y := uint32(v * float32(h))
	if y >= h {
		y = h - 1
	}
	return sc.sky[x+y*w].Vec3()
}

// Nearest neighbor texture fetch. Returns false for unused slots.
func (sc *shadeContext) sampleTexture(slot *layout.TextureSlot, uv types.Vec2, item int) (types.Vec3, bool) {
	if slot.Offset < 0 || slot.Width == 0 || slot.Height == 0 {
		return types.Vec3{}, false
	}
	fu, fv := uv[0]-math32.Floor(uv[0]), uv[1]-math32.Floor(uv[1])
	x := uint32(fu*float32(slot.Width)) % slot.Width
	y := uint32(fv*float32(slot.Height)) % slot.Height
	idx := uint32(slot.Offset) + x + y*slot.Width

	p := sc.params
	switch slot.Storage {
	case layout.StorageARGB128:
		if idx >= p.TexARGB128Texels {
			sc.fail(layout.ExcTexelRange, item, int32(idx))
			return types.Vec3{}, false
		}
		return sc.texARGB128[idx].Vec3(), true
	default:
		pool, texels := sc.texARGB32, p.TexARGB32Texels
		if slot.Storage == layout.StorageNRM32 {
			pool, texels = sc.texNRM32, p.TexNRM32Texels
		}
		if idx >= texels {
			sc.fail(layout.ExcTexelRange, item, int32(idx))
			return types.Vec3{}, false
		}
		texel := pool[idx]
		return types.XYZ(
			float32((texel>>16)&0xff)/255,
			float32((texel>>8)&0xff)/255,
			float32(texel&0xff)/255,
		), true
	}
}

func clampRadiance(v types.Vec3, ceiling float32) types.Vec3 {
	if m := v.MaxComponent(); m > ceiling && ceiling > 0 {
		return v.Mul(ceiling / m)
	}
	return v
}

func smoothstep(edge0, edge1, x float32) float32 {
	if edge1 <= edge0 {
		if x >= edge0 {
			return 1
		}
		return 0
	}
	t := math32.Min(1, math32.Max(0, (x-edge0)/(edge1-edge0)))
	return t * t * (3 - 2*t)
}

// Cosine weighted direction around n.
func cosineHemisphere(n types.Vec3, r0, r1 float32) types.Vec3 {
	r := math32.Sqrt(r0)
	sin, cos := math32.Sincos(2 * math32.Pi * r1)
	x, y := r*cos, r*sin
	z := math32.Sqrt(math32.Max(0, 1-r0))

	var t types.Vec3
	if math32.Abs(n[0]) > 0.9 {
		t = types.XYZ(0, 1, 0)
	} else {
		t = types.XYZ(1, 0, 0)
	}
	tangent := t.Cross(n).Normalize()
	bitangent := n.Cross(tangent)
	return tangent.Mul(x).Add(bitangent.Mul(y)).Add(n.Mul(z)).Normalize()
}
