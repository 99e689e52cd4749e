package kdimage

// Axis selects which coordinate a split cuts.
type Axis uint8

const (
	// Vertical splits cut along a column: children differ in x.
	Vertical Axis = iota
	// Horizontal splits cut along a row: children differ in y.
	Horizontal
)

func (a Axis) Opposite() Axis {
	if a == Vertical {
		return Horizontal
	}
	return Vertical
}

func (a Axis) String() string {
	if a == Horizontal {
		return "horizontal"
	}
	return "vertical"
}

// NodeType tags a Node as an internal split or a flattened leaf.
type NodeType uint8

const (
	InternalNode NodeType = iota
	LeafNode
)

// LeafReason records why a region was flattened instead of split.
type LeafReason uint8

const (
	Homogeneous LeafReason = iota
	DepthCapped
)

func (r LeafReason) String() string {
	switch r {
	case DepthCapped:
		return "depth-capped"
	default:
		return "homogeneous"
	}
}

// Node is one decision of the partition tree.
//
// Internal nodes hold the split coordinate, its axis and two non-nil
// children. Leaves hold the color the region was flattened to.
// Depth counts levels, not edges: a level whose axis had a one pixel extent
// produces no node, so a child can sit two levels below its parent. The axis
// of a node is always FirstAxis on even depths.
// The tree is read-only once Build returns.
type Node struct {
	Type   NodeType
	Region Region
	Depth  int

	Split       int
	Axis        Axis
	Left, Right *Node

	Fill   Color
	Reason LeafReason
}

func (n *Node) IsLeaf() bool { return n.Type == LeafNode }

// Walk visits n and its descendants in pre-order, left before right.
// Returning false from fn skips the children of that node.
func (n *Node) Walk(fn func(*Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	if n.Type == InternalNode {
		n.Left.Walk(fn)
		n.Right.Walk(fn)
	}
}

// Leaves returns all leaves from left to right.
func (n *Node) Leaves() []*Node {
	var out []*Node
	n.Walk(func(c *Node) bool {
		if c.IsLeaf() {
			out = append(out, c)
		}
		return true
	})
	return out
}

// Height is the number of edges on the longest root-to-leaf path.
func (n *Node) Height() int {
	if n == nil || n.IsLeaf() {
		return 0
	}
	return 1 + max(n.Left.Height(), n.Right.Height())
}

// Count returns the number of internal nodes and leaves.
func (n *Node) Count() (internal, leaves int) {
	n.Walk(func(c *Node) bool {
		if c.IsLeaf() {
			leaves++
		} else {
			internal++
		}
		return true
	})
	return internal, leaves
}
