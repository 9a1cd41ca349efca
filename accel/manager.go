// Package accel maintains the two-level bounding volume hierarchy used for
// ray queries: one bottom level BVH per mesh and a top level BVH over the
// world bounds of all instances.
package accel

import (
	"fmt"

	"github.com/achilleasa/wavefront/log"
	"github.com/achilleasa/wavefront/scene"
	"github.com/achilleasa/wavefront/tracer/layout"
	"github.com/achilleasa/wavefront/types"
)

var logger = log.New("accel")

// Minimum number of items per leaf for bottom and top level trees.
const (
	meshLeafItems     = 4
	toplevelLeafItems = 1
)

// An indexed item with precomputed bounds.
type boundedItem struct {
	index  uint32
	bbox   [2]types.Vec3
	center types.Vec3
}

func (i *boundedItem) BBox() [2]types.Vec3 { return i.bbox }
func (i *boundedItem) Center() types.Vec3  { return i.center }

func newBoundedItem(index uint32, bbox [2]types.Vec3) *boundedItem {
	return &boundedItem{
		index:  index,
		bbox:   bbox,
		center: bbox[0].Add(bbox[1]).Mul(0.5),
	}
}

// The bottom level structure of a mesh.
type meshBVH struct {
	mesh    scene.Mesh
	nodes   []layout.BvhNode
	indices []uint32
	bbox    [2]types.Vec3
	dirty   bool
}

func (m *meshBVH) empty() bool {
	return len(m.mesh.Triangles) == 0
}

func (m *meshBVH) build() {
	m.bbox = emptyBBox()
	items := make([]BoundedVolume, len(m.mesh.Triangles))
	for i := range m.mesh.Triangles {
		lo, hi := m.mesh.TriangleBounds(i)
		items[i] = newBoundedItem(uint32(i), [2]types.Vec3{lo, hi})
		m.bbox[0] = types.MinVec3(m.bbox[0], lo)
		m.bbox[1] = types.MaxVec3(m.bbox[1], hi)
	}
	m.nodes, m.indices = buildIndexed(items, meshLeafItems)
	m.dirty = false
}

// An instance group referencing exactly one mesh.
type group struct {
	mesh int
}

// A transform node placing a group in the world.
type transformNode struct {
	group     *group
	transform types.Mat4
}

// Manager owns the per-mesh and scene level hierarchies.
type Manager struct {
	meshes     []*meshBVH
	groups     []*group
	transforms []*transformNode

	// Children of the top level structure.
	toplevel      []*transformNode
	toplevelDirty bool

	nodes     []layout.BvhNode
	indices   []uint32
	meshRoots []int32
	flatDirty bool
}

func NewManager() *Manager {
	return &Manager{
		toplevelDirty: true,
		flatDirty:     true,
	}
}

// Set or replace the geometry of a mesh. The mesh is copied; its slices are
// shared and must not be mutated. The bottom level structure is rebuilt by
// the next Build call.
func (m *Manager) SetMesh(meshIdx int, mesh *scene.Mesh) error {
	switch {
	case meshIdx == len(m.meshes):
		m.meshes = append(m.meshes, &meshBVH{mesh: *mesh, dirty: true})
	case meshIdx >= 0 && meshIdx < len(m.meshes):
		m.meshes[meshIdx].mesh = *mesh
		m.meshes[meshIdx].dirty = true
	default:
		return fmt.Errorf("accel: %w: mesh %d (%d meshes)", scene.ErrIndexOutOfRange, meshIdx, len(m.meshes))
	}

	// Instance world bounds depend on the mesh bounds.
	m.toplevelDirty = true
	m.flatDirty = true
	return nil
}

// Set or replace an instance. Appending creates the instance group and its
// transform node; every call marks the top level structure dirty.
func (m *Manager) SetInstance(instIdx, meshIdx int, transform types.Mat4) error {
	if meshIdx < 0 || meshIdx >= len(m.meshes) {
		return fmt.Errorf("accel: %w: instance %d references mesh %d (%d meshes)", scene.ErrIndexOutOfRange, instIdx, meshIdx, len(m.meshes))
	}

	switch {
	case instIdx == len(m.groups):
		g := &group{}
		m.groups = append(m.groups, g)
		m.transforms = append(m.transforms, &transformNode{group: g})
	case instIdx < 0 || instIdx > len(m.groups):
		return fmt.Errorf("accel: %w: instance %d (%d instances)", scene.ErrIndexOutOfRange, instIdx, len(m.groups))
	}

	m.groups[instIdx].mesh = meshIdx
	m.transforms[instIdx].transform = transform
	m.toplevelDirty = true
	return nil
}

// Resize the top level child list to the instance count and point every
// child at its instance transform node.
func (m *Manager) UpdateToplevel() {
	if cap(m.toplevel) < len(m.transforms) {
		m.toplevel = make([]*transformNode, len(m.transforms))
	}
	m.toplevel = m.toplevel[:len(m.transforms)]
	copy(m.toplevel, m.transforms)
}

// Check whether the next Build call will change the flattened hierarchy.
func (m *Manager) Dirty() bool {
	return m.toplevelDirty || m.flatDirty
}

// Rebuild any dirty hierarchies and flatten them into a single node list.
// Returns false if nothing changed since the last call.
func (m *Manager) Build() bool {
	if !m.Dirty() {
		return false
	}

	for _, mesh := range m.meshes {
		if mesh.dirty {
			mesh.build()
		}
	}

	// Top level leaf indices are instance ids.
	items := make([]BoundedVolume, 0, len(m.toplevel))
	for instIdx, child := range m.toplevel {
		mesh := m.meshes[child.group.mesh]
		if mesh.empty() {
			continue
		}
		items = append(items, newBoundedItem(uint32(instIdx), transformBBox(mesh.bbox, child.transform)))
	}
	tlNodes, tlIndices := buildIndexed(items, toplevelLeafItems)
	m.flatten(tlNodes, tlIndices)

	m.toplevelDirty = false
	m.flatDirty = false
	return true
}

// Concatenate the top level tree and all mesh trees into a single node and
// index list, rebasing child and leaf offsets.
func (m *Manager) flatten(tlNodes []layout.BvhNode, tlIndices []uint32) {
	nodeCount, indexCount := len(tlNodes), len(tlIndices)
	for _, mesh := range m.meshes {
		nodeCount += len(mesh.nodes)
		indexCount += len(mesh.indices)
	}

	m.nodes = append(make([]layout.BvhNode, 0, nodeCount), tlNodes...)
	m.indices = append(make([]uint32, 0, indexCount), tlIndices...)
	m.meshRoots = make([]int32, len(m.meshes))

	for meshIdx, mesh := range m.meshes {
		nodeBase, indexBase := int32(len(m.nodes)), int32(len(m.indices))
		m.meshRoots[meshIdx] = nodeBase
		for _, node := range mesh.nodes {
			if node.LData > 0 {
				node.LData += nodeBase
				node.RData += nodeBase
			} else {
				node.LData -= indexBase
			}
			m.nodes = append(m.nodes, node)
		}
		m.indices = append(m.indices, mesh.indices...)
	}

	logger.Debugf("flattened BVH: %d nodes, %d indices, %d meshes, %d instances", len(m.nodes), len(m.indices), len(m.meshes), len(m.toplevel))
}

// The flattened node list. The top level root is node 0.
func (m *Manager) Nodes() []layout.BvhNode {
	return m.nodes
}

// The flattened leaf index list.
func (m *Manager) Indices() []uint32 {
	return m.indices
}

// The root node of each mesh tree.
func (m *Manager) MeshRoots() []int32 {
	return m.meshRoots
}

// Build a tree over indexed items and collect leaf indices. An empty item
// list yields a single empty leaf.
func buildIndexed(items []BoundedVolume, minLeafItems int) ([]layout.BvhNode, []uint32) {
	indices := make([]uint32, 0, len(items))
	nodes := Build(items, minLeafItems, func(leaf *layout.BvhNode, itemList []BoundedVolume) {
		leaf.LData = -int32(len(indices))
		leaf.RData = int32(len(itemList))
		for _, item := range itemList {
			indices = append(indices, item.(*boundedItem).index)
		}
	})
	return nodes, indices
}

// Transform an object space bbox and return the world space bbox enclosing it.
func transformBBox(bbox [2]types.Vec3, transform types.Mat4) [2]types.Vec3 {
	out := emptyBBox()
	for corner := 0; corner < 8; corner++ {
		p := types.Vec3{bbox[0][0], bbox[0][1], bbox[0][2]}
		for axis := 0; axis < 3; axis++ {
			if corner&(1<<axis) != 0 {
				p[axis] = bbox[1][axis]
			}
		}
		p = transform.TransformPoint(p)
		out[0] = types.MinVec3(out[0], p)
		out[1] = types.MaxVec3(out[1], p)
	}
	return out
}
