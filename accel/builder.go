package accel

import (
	"runtime"
	"time"

	"github.com/chewxy/math32"
	"golang.org/x/sync/errgroup"

	"github.com/achilleasa/wavefront/tracer/layout"
	"github.com/achilleasa/wavefront/types"
)

const (
	// The BVH builder will not attempt to calculate split candidates
	// if the node bbox along an axis is less than this threshold.
	minSideLength float32 = 1e-3

	// If the split step (calculated as side length / (1024 / (depth+1)))
	// is less than this threshold the BVH builder will not evaluate
	// split candidates.
	minSplitStep float32 = 1e-5
)

// The BoundedVolume interface is implemented by all items that can be
// partitioned by the bvh builder.
type BoundedVolume interface {
	BBox() [2]types.Vec3
	Center() types.Vec3
}

// A callback that is called whenever the BVH builder creates a new leaf.
type LeafCallback func(leaf *layout.BvhNode, itemList []BoundedVolume)

type splitCandidate struct {
	axis                  int
	splitPoint            float32
	leftCount, rightCount int
	score                 float32
}

type buildStats struct {
	partitionedItems int
	nodes            int
	leafs            int
	maxDepth         int
}

type builder struct {
	nodes        []layout.BvhNode
	leafCb       LeafCallback
	minLeafItems int
	workers      int
	stats        buildStats
}

// Returns an inverted bbox that any item bbox will expand.
func emptyBBox() [2]types.Vec3 {
	return [2]types.Vec3{
		{math32.MaxFloat32, math32.MaxFloat32, math32.MaxFloat32},
		{-math32.MaxFloat32, -math32.MaxFloat32, -math32.MaxFloat32},
	}
}

// Construct a BVH from a set of bounded volumes.
//
// The builder uses SAH for scoring splits:
// score = num_items * node bbox face area.
//
// The minLeafItems param specifies the minimum number of items that can form
// a leaf. The builder automatically generates leafs if the incoming work
// length is <= minLeafItems. The root node is always stored at index 0.
func Build(workList []BoundedVolume, minLeafItems int, leafCb LeafCallback) []layout.BvhNode {
	b := &builder{
		nodes:        make([]layout.BvhNode, 0, 2*len(workList)+1),
		leafCb:       leafCb,
		minLeafItems: minLeafItems,
		workers:      runtime.NumCPU(),
	}

	start := time.Now()
	b.partition(workList, 0)
	logger.Debugf(
		"BVH build time: %d ms, items: %d, maxDepth: %d, nodes: %d, leafs: %d",
		time.Since(start).Milliseconds(), len(workList),
		b.stats.maxDepth, b.stats.nodes, b.stats.leafs,
	)
	return b.nodes
}

// Partition worklist and return node index.
func (b *builder) partition(workList []BoundedVolume, depth int) int32 {
	if depth > b.stats.maxDepth {
		b.stats.maxDepth = depth
	}

	bbox := emptyBBox()
	for _, item := range workList {
		itemBBox := item.BBox()
		bbox[0] = types.MinVec3(bbox[0], itemBBox[0])
		bbox[1] = types.MaxVec3(bbox[1], itemBBox[1])
	}
	node := layout.BvhNode{Min: bbox[0], Max: bbox[1]}

	if len(workList) <= b.minLeafItems {
		return b.createLeaf(&node, workList)
	}

	side := node.Max.Sub(node.Min)
	bestScore := float32(len(workList)) * surfaceArea(side)
	bestSplit := -1

	var candidates []splitCandidate
	for axis := 0; axis < 3; axis++ {
		if side[axis] < minSideLength {
			continue
		}

		// Split steps become more granular the deeper we go
		splitStep := side[axis] / (1024.0 / float32(depth+1))
		if splitStep < minSplitStep {
			continue
		}

		for splitPoint := node.Min[axis]; splitPoint < node.Max[axis]; splitPoint += splitStep {
			candidates = append(candidates, splitCandidate{axis: axis, splitPoint: splitPoint})
		}
	}

	var g errgroup.Group
	g.SetLimit(b.workers)
	for i := range candidates {
		c := &candidates[i]
		g.Go(func() error {
			c.evaluate(workList)
			return nil
		})
	}
	_ = g.Wait()

	// Ties resolve to the first candidate so builds are reproducible.
	for i := range candidates {
		if candidates[i].score < bestScore {
			bestScore = candidates[i].score
			bestSplit = i
		}
	}

	if bestSplit == -1 {
		return b.createLeaf(&node, workList)
	}

	split := candidates[bestSplit]
	leftWorkList := make([]BoundedVolume, 0, split.leftCount)
	rightWorkList := make([]BoundedVolume, 0, split.rightCount)
	for _, item := range workList {
		if item.Center()[split.axis] < split.splitPoint {
			leftWorkList = append(leftWorkList, item)
		} else {
			rightWorkList = append(rightWorkList, item)
		}
	}

	nodeIndex := len(b.nodes)
	b.nodes = append(b.nodes, node)
	b.stats.nodes++

	left := b.partition(leftWorkList, depth+1)
	right := b.partition(rightWorkList, depth+1)
	b.nodes[nodeIndex].LData = left
	b.nodes[nodeIndex].RData = right

	return int32(nodeIndex)
}

// Calculate the SAH score for splitting the workList with this candidate.
func (c *splitCandidate) evaluate(workList []BoundedVolume) {
	left, right := emptyBBox(), emptyBBox()

	for _, item := range workList {
		center := item.Center()
		itemBBox := item.BBox()
		if center[c.axis] < c.splitPoint {
			c.leftCount++
			left[0] = types.MinVec3(left[0], itemBBox[0])
			left[1] = types.MaxVec3(left[1], itemBBox[1])
		} else {
			c.rightCount++
			right[0] = types.MinVec3(right[0], itemBBox[0])
			right[1] = types.MaxVec3(right[1], itemBBox[1])
		}
	}

	// Make sure that we got enough items on each side of the split
	minItemsOnEachSide := 2
	if len(workList) == 2 {
		minItemsOnEachSide = 1
	}
	if c.leftCount < minItemsOnEachSide || c.rightCount < minItemsOnEachSide {
		c.score = math32.MaxFloat32
		return
	}

	c.score = float32(c.leftCount)*surfaceArea(left[1].Sub(left[0])) +
		float32(c.rightCount)*surfaceArea(right[1].Sub(right[0]))
}

// Half the surface area of a box with the given side lengths.
func surfaceArea(side types.Vec3) float32 {
	return side[0]*side[1] + side[1]*side[2] + side[0]*side[2]
}

// Set up the given node as a leaf containing all items in the work list.
// Returns the index to the node in the bvh node array.
func (b *builder) createLeaf(node *layout.BvhNode, workList []BoundedVolume) int32 {
	b.leafCb(node, workList)

	nodeIndex := len(b.nodes)
	b.nodes = append(b.nodes, *node)

	b.stats.leafs++
	b.stats.partitionedItems += len(workList)

	return int32(nodeIndex)
}
