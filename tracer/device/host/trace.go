package host

import (
	"github.com/chewxy/math32"

	"github.com/achilleasa/wavefront/tracer/layout"
	"github.com/achilleasa/wavefront/types"
)

// Depth of the explicit BVH traversal stack.
const traversalStackSize = 64

// The geometry buffers needed for ray queries.
type geometry struct {
	instances     []layout.InstanceDesc
	instanceCount uint32
	nodes         []layout.BvhNode
	indices       []uint32
	meshRoots     []int32
	triangles     []layout.Triangle
}

// Slab test against a node bbox. Returns false if the box is missed or lies
// further than tMax.
func intersectBox(node *layout.BvhNode, o, invDir types.Vec3, tMax float32) bool {
	tmin, tmax := float32(0), tMax
	for axis := 0; axis < 3; axis++ {
		t0 := (node.Min[axis] - o[axis]) * invDir[axis]
		t1 := (node.Max[axis] - o[axis]) * invDir[axis]
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		tmin = math32.Max(tmin, t0)
		tmax = math32.Min(tmax, t1)
		if tmin > tmax {
			return false
		}
	}
	return true
}

// Moller-Trumbore ray/triangle test.
func intersectTriangle(tri *layout.Triangle, o, d types.Vec3, tMax float32) (t, u, v float32, ok bool) {
	v0 := tri.V0.Vec3()
	e1 := tri.V1.Vec3().Sub(v0)
	e2 := tri.V2.Vec3().Sub(v0)
	p := d.Cross(e2)
	det := e1.Dot(p)
	if math32.Abs(det) < 1e-12 {
		return 0, 0, 0, false
	}
	invDet := 1 / det
	s := o.Sub(v0)
	u = s.Dot(p) * invDet
	if u < 0 || u > 1 {
		return 0, 0, 0, false
	}
	q := s.Cross(e1)
	v = d.Dot(q) * invDet
	if v < 0 || u+v > 1 {
		return 0, 0, 0, false
	}
	t = e2.Dot(q) * invDet
	if t <= 0 || t >= tMax {
		return 0, 0, 0, false
	}
	return t, u, v, true
}

func safeInv(d types.Vec3) types.Vec3 {
	var out types.Vec3
	for i := 0; i < 3; i++ {
		if math32.Abs(d[i]) < 1e-20 {
			out[i] = math32.Copysign(1e20, d[i])
		} else {
			out[i] = 1 / d[i]
		}
	}
	return out
}

// Find the closest hit along a world space ray. When anyHit is set the
// traversal stops at the first intersection.
func (g *geometry) intersect(o, d types.Vec3, tMax float32, anyHit bool) (layout.Hit, bool) {
	hit := layout.Hit{T: tMax, Inst: -1, Tri: -1}
	found := false

	invDir := safeInv(d)
	var stack [traversalStackSize]int32
	sp := 0
	stack[sp] = 0
	sp++

	for sp > 0 {
		sp--
		node := &g.nodes[stack[sp]]
		if !intersectBox(node, o, invDir, hit.T) {
			continue
		}
		if node.LData > 0 {
			stack[sp], stack[sp+1] = node.LData, node.RData
			sp += 2
			continue
		}

		first := -node.LData
		for k := first; k < first+node.RData; k++ {
			instIdx := g.indices[k]
			if instIdx >= g.instanceCount {
				continue
			}
			desc := &g.instances[instIdx]
			lo := desc.InvTransform.TransformPoint(o)
			ld := desc.InvTransform.TransformDirection(d)
			if g.intersectMesh(desc, int32(instIdx), lo, ld, &hit, anyHit) {
				found = true
				if anyHit {
					return hit, true
				}
			}
		}
	}
	return hit, found
}

// Traverse the bottom level BVH of an instance in object space.
func (g *geometry) intersectMesh(desc *layout.InstanceDesc, instIdx int32, o, d types.Vec3, hit *layout.Hit, anyHit bool) bool {
	found := false
	invDir := safeInv(d)
	var stack [traversalStackSize]int32
	sp := 0
	stack[sp] = g.meshRoots[desc.MeshIndex]
	sp++

	for sp > 0 {
		sp--
		node := &g.nodes[stack[sp]]
		if !intersectBox(node, o, invDir, hit.T) {
			continue
		}
		if node.LData > 0 {
			stack[sp], stack[sp+1] = node.LData, node.RData
			sp += 2
			continue
		}

		first := -node.LData
		for k := first; k < first+node.RData; k++ {
			triIdx := g.indices[k]
			if triIdx >= desc.TriCount {
				continue
			}
			t, u, v, ok := intersectTriangle(&g.triangles[desc.TriOffset+triIdx], o, d, hit.T)
			if !ok {
				continue
			}
			hit.T, hit.U, hit.V = t, u, v
			hit.Inst, hit.Tri = instIdx, int32(triIdx)
			found = true
			if anyHit {
				return true
			}
		}
	}
	return found
}

// traceRays(params, counters, paths, hits, connections, accumulator,
// instances, nodes, indices, meshRoots, triangles, blueNoise, exceptions)
func bindTraceRays(args []interface{}) (func(int), error) {
	r := &argReader{args: args}
	params := paramsArg(r, 0)
	_ = readArg[layout.Counters](r, 1)
	paths := readArg[layout.PathState](r, 2)
	hits := readArg[layout.Hit](r, 3)
	connections := readArg[layout.Connection](r, 4)
	accumulator := readArg[[4]float32](r, 5)
	geo := &geometry{
		instances: readArg[layout.InstanceDesc](r, 6),
		nodes:     readArg[layout.BvhNode](r, 7),
		indices:   readArg[uint32](r, 8),
		meshRoots: readArg[int32](r, 9),
		triangles: readArg[layout.Triangle](r, 10),
	}
	blueNoise := readArg[uint32](r, 11)
	exceptions := readArg[layout.Exception](r, 12)
	if r.err != nil {
		return nil, r.err
	}
	geo.instanceCount = params.InstanceCount

	inBase := int(((params.PathLength - 1) % 2) * params.PathStride)
	validate := params.Validate != 0

	switch params.Phase {
	case layout.PhaseSpawn:
		cam := newCamera(params)
		return func(i int) {
			ps := &paths[inBase+i]
			cam.spawn(uint32(i), blueNoise, ps)
			hits[i], _ = geo.intersect(ps.Origin.Vec3(), ps.Direction.Vec3(), math32.MaxFloat32, false)
		}, nil
	case layout.PhaseExtend:
		return func(i int) {
			ps := &paths[inBase+i]
			hits[i], _ = geo.intersect(ps.Origin.Vec3(), ps.Direction.Vec3(), math32.MaxFloat32, false)
		}, nil
	default:
		pixelStride := params.PixelStride
		return func(i int) {
			c := &connections[i]
			if _, occluded := geo.intersect(c.Origin.Vec3(), c.Direction.Vec3(), c.Origin[3], true); occluded {
				return
			}
			idx := c.PixelIdx + c.Channel*pixelStride
			if validate && int(idx) >= len(accumulator) {
				raise(exceptions, layout.ExcConnectionOverflow, uint32(i), int32(idx))
				return
			}
			acc := &accumulator[idx]
			for ch := 0; ch < 3; ch++ {
				atomicAddFloat32(&acc[ch], c.Contribution[ch])
			}
		}, nil
	}
}

// Pinhole / thin lens camera built from the view pyramid.
type camera struct {
	pos, p1, right, up types.Vec3
	aperture           float32
	width, height      uint32
	pixelStride        uint32
	pass, seed         uint32
	blueNoiseSize      uint32
}

func newCamera(params *layout.Params) *camera {
	return &camera{
		pos:           params.PosLensSize.Vec3(),
		aperture:      params.PosLensSize[3],
		p1:            params.P1.Vec3(),
		right:         params.Right.Vec3(),
		up:            params.Up.Vec3(),
		width:         params.Width,
		height:        params.Height,
		pixelStride:   params.PixelStride,
		pass:          params.Pass,
		seed:          params.Seed,
		blueNoiseSize: params.BlueNoiseSize,
	}
}

// Generate the camera ray for path i.
func (c *camera) spawn(i uint32, blueNoise []uint32, ps *layout.PathState) {
	pixel := i % c.pixelStride
	sample := i / c.pixelStride
	x, y := pixel%c.width, pixel/c.width

	seed := layout.WangHash(i*0x9E3779B9 + c.pass*0x85EBCA6B ^ c.seed)
	r0, r1 := blueNoiseSample(blueNoise, c.blueNoiseSize, x, y, sample+c.pass, &seed)

	target := c.p1.
		Add(c.right.Mul((float32(x) + r0) / float32(c.width))).
		Add(c.up.Mul((float32(y) + r1) / float32(c.height)))

	origin := c.pos
	if c.aperture > 0 {
		r2, r3 := layout.RandomFloat(&seed), layout.RandomFloat(&seed)
		dx, dy := concentricDisk(r2, r3)
		origin = origin.
			Add(c.right.Normalize().Mul(dx * c.aperture)).
			Add(c.up.Normalize().Mul(dy * c.aperture))
	}

	ps.Origin = origin.Vec4(0)
	ps.Direction = target.Sub(origin).Normalize().Vec4(0)
	ps.Throughput = types.XYZW(1, 1, 1, 1)
	ps.PixelIdx = pixel
	ps.SampleIdx = sample
	ps.Seed = seed
}

// Look up a 2D blue noise sample for a pixel and decorrelate successive
// samples with a random rotation.
func blueNoiseSample(table []uint32, size, x, y, sample uint32, seed *uint32) (float32, float32) {
	var r0, r1 float32
	if size > 0 {
		v := table[((x+sample*7)%size)+size*((y+sample*13)%size)]
		r0 = (float32(v&0xff) + 0.5) / 256
		r1 = (float32((v>>8)&0xff) + 0.5) / 256
	}
	r0 += layout.RandomFloat(seed)
	r1 += layout.RandomFloat(seed)
	return r0 - math32.Floor(r0), r1 - math32.Floor(r1)
}

func concentricDisk(r0, r1 float32) (float32, float32) {
	sx, sy := 2*r0-1, 2*r1-1
	if sx == 0 && sy == 0 {
		return 0, 0
	}
	var radius, theta float32
	if math32.Abs(sx) > math32.Abs(sy) {
		radius, theta = sx, (math32.Pi/4)*(sy/sx)
	} else {
		radius, theta = sy, math32.Pi/2-(math32.Pi/4)*(sx/sy)
	}
	sin, cos := math32.Sincos(theta)
	return radius * cos, radius * sin
}
