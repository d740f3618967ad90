package layout

import (
	"encoding/json"
	"fmt"
)

// MaxSplitDepth bounds split nesting. Requests that would nest deeper are
// rejected by the engine so panes never degrade into unusable slivers.
const MaxSplitDepth = 9

// MinPaneFraction is the smallest share (percent) either side of a split may
// be resized to.
const MinPaneFraction = 10.0

// NodeKind discriminates the two node shapes in a layout tree.
type NodeKind string

const (
	KindLeaf  NodeKind = "leaf"
	KindSplit NodeKind = "split"
)

// Direction is the axis a split divides space along.
type Direction string

const (
	DirectionRow    Direction = "row"    // children side by side
	DirectionColumn Direction = "column" // children stacked
)

// Edge identifies which edge of a pane a tab was dropped on.
type Edge string

const (
	EdgeLeft   Edge = "left"
	EdgeRight  Edge = "right"
	EdgeTop    Edge = "top"
	EdgeBottom Edge = "bottom"
)

// SplitDirection returns the split axis produced by dropping on this edge.
func (e Edge) SplitDirection() Direction {
	if e == EdgeLeft || e == EdgeRight {
		return DirectionRow
	}
	return DirectionColumn
}

// TabKind tags what a tab's payload describes. The layout engine never
// interprets the payload; it only carries it.
type TabKind string

const (
	TabKindTerminal TabKind = "terminal"
	TabKindFile     TabKind = "file"
	TabKindChat     TabKind = "chat"
)

// Tab is a unit of content owned by exactly one pane at a time.
type Tab struct {
	ID      string  `json:"id"`
	Kind    TabKind `json:"kind"`
	Title   string  `json:"title"`
	Payload string  `json:"payload,omitempty"` // kind-specific: command, file path, seed input
}

// SessionBacked reports whether tabs of this kind need a live session object.
func (k TabKind) SessionBacked() bool {
	return k == TabKindTerminal || k == TabKindChat
}

// Node is one node of a layout tree: either a leaf pane holding tabs or a
// split dividing space between exactly two children. A single struct with a
// Kind discriminator keeps the shape directly serializable.
type Node struct {
	Kind NodeKind `json:"kind"`
	ID   string   `json:"id"`

	// Leaf fields. ActiveTabID references a member of Tabs, or is empty iff
	// Tabs is empty.
	Tabs        []Tab  `json:"tabs,omitempty"`
	ActiveTabID string `json:"activeTabId,omitempty"`

	// Split fields. Children always has exactly two elements and Sizes two
	// percentages summing to 100. Depth is 1 for a root split and grows by 1
	// per nesting level. Slices keep leaf JSON free of split fields.
	Direction Direction `json:"direction,omitempty"`
	Children  []*Node   `json:"children,omitempty"`
	Sizes     []float64 `json:"sizes,omitempty"`
	Depth     int       `json:"depth,omitempty"`
}

// NewLeaf returns an empty leaf pane with the given id.
func NewLeaf(id string) *Node {
	return &Node{Kind: KindLeaf, ID: id}
}

// IsLeaf reports whether the node is a leaf pane.
func (n *Node) IsLeaf() bool { return n != nil && n.Kind == KindLeaf }

// cloneLeaf returns a shallow copy of a leaf with its own tab slice. Used by
// the engine's copy-on-write rebuilds.
func (n *Node) cloneLeaf() *Node {
	c := &Node{Kind: KindLeaf, ID: n.ID, ActiveTabID: n.ActiveTabID}
	c.Tabs = append(c.Tabs, n.Tabs...)
	return c
}

// cloneSplit returns a shallow copy of a split with its own child and size
// slices. Child subtrees are shared by reference; the caller overwrites the
// child it is rebuilding.
func (n *Node) cloneSplit() *Node {
	return &Node{
		Kind:      KindSplit,
		ID:        n.ID,
		Direction: n.Direction,
		Children:  append([]*Node(nil), n.Children...),
		Sizes:     append([]float64(nil), n.Sizes...),
		Depth:     n.Depth,
	}
}

// Walk visits every node in the subtree, parents before children. Returning
// false from fn stops the walk.
func (n *Node) Walk(fn func(*Node) bool) bool {
	if n == nil {
		return true
	}
	if !fn(n) {
		return false
	}
	if n.Kind == KindSplit {
		for _, child := range n.Children {
			if !child.Walk(fn) {
				return false
			}
		}
	}
	return true
}

// FindPane returns the leaf with the given id, or nil.
func (n *Node) FindPane(paneID string) *Node {
	var found *Node
	n.Walk(func(node *Node) bool {
		if node.Kind == KindLeaf && node.ID == paneID {
			found = node
			return false
		}
		return true
	})
	return found
}

// FindSplit returns the split with the given id, or nil.
func (n *Node) FindSplit(splitID string) *Node {
	var found *Node
	n.Walk(func(node *Node) bool {
		if node.Kind == KindSplit && node.ID == splitID {
			found = node
			return false
		}
		return true
	})
	return found
}

// PaneForTab returns the leaf that owns the given tab, or nil.
func (n *Node) PaneForTab(tabID string) *Node {
	var owner *Node
	n.Walk(func(node *Node) bool {
		if node.Kind == KindLeaf && node.indexOfTab(tabID) >= 0 {
			owner = node
			return false
		}
		return true
	})
	return owner
}

// Leaves returns all leaf panes in display order (left-to-right, top-to-bottom
// traversal).
func (n *Node) Leaves() []*Node {
	var leaves []*Node
	n.Walk(func(node *Node) bool {
		if node.Kind == KindLeaf {
			leaves = append(leaves, node)
		}
		return true
	})
	return leaves
}

// TabIDs returns the ids of every tab in the subtree, in display order.
func (n *Node) TabIDs() []string {
	var ids []string
	n.Walk(func(node *Node) bool {
		for _, tab := range node.Tabs {
			ids = append(ids, tab.ID)
		}
		return true
	})
	return ids
}

// TabByID returns the tab with the given id and true, or a zero Tab and false.
func (n *Node) TabByID(tabID string) (Tab, bool) {
	var result Tab
	var ok bool
	n.Walk(func(node *Node) bool {
		if i := node.indexOfTab(tabID); i >= 0 {
			result = node.Tabs[i]
			ok = true
			return false
		}
		return true
	})
	return result, ok
}

func (n *Node) indexOfTab(tabID string) int {
	for i, tab := range n.Tabs {
		if tab.ID == tabID {
			return i
		}
	}
	return -1
}

// splitDepthFor returns the depth a new split created at the given leaf would
// have: one more than the number of split ancestors above it.
func splitDepthFor(root *Node, paneID string) int {
	depth := 0
	var walk func(n *Node, splits int) bool
	walk = func(n *Node, splits int) bool {
		if n == nil {
			return false
		}
		if n.Kind == KindLeaf {
			if n.ID == paneID {
				depth = splits + 1
				return true
			}
			return false
		}
		for _, child := range n.Children {
			if walk(child, splits+1) {
				return true
			}
		}
		return false
	}
	walk(root, 0)
	return depth
}

// reDepth rebuilds the subtree so its topmost split has the given depth and
// nested splits count up from there. Leaves carry no depth and are shared
// unchanged.
func reDepth(n *Node, depth int) *Node {
	if n == nil || n.Kind == KindLeaf {
		return n
	}
	if n.Depth == depth {
		// Subtree depths are consistent relative to their parent, so a
		// matching top depth means nothing below changed either.
		return n
	}
	s := n.cloneSplit()
	s.Depth = depth
	s.Children[0] = reDepth(n.Children[0], depth+1)
	s.Children[1] = reDepth(n.Children[1], depth+1)
	return s
}

// Validate checks every structural invariant of the subtree and returns the
// first violation found, or nil. Intended for tests and debug assertions; the
// engine's operations preserve these by construction.
func (n *Node) Validate() error {
	return n.validate(0)
}

const sizeTolerance = 0.01

func (n *Node) validate(splitAncestors int) error {
	if n == nil {
		return fmt.Errorf("nil node")
	}
	switch n.Kind {
	case KindLeaf:
		if n.ID == "" {
			return fmt.Errorf("leaf with empty id")
		}
		if len(n.Tabs) == 0 {
			if n.ActiveTabID != "" {
				return fmt.Errorf("pane %s: active tab %s set on empty pane", n.ID, n.ActiveTabID)
			}
			return nil
		}
		if n.ActiveTabID == "" {
			return fmt.Errorf("pane %s: no active tab with %d tabs present", n.ID, len(n.Tabs))
		}
		if n.indexOfTab(n.ActiveTabID) < 0 {
			return fmt.Errorf("pane %s: active tab %s not in pane", n.ID, n.ActiveTabID)
		}
		return nil
	case KindSplit:
		if len(n.Children) != 2 || n.Children[0] == nil || n.Children[1] == nil {
			return fmt.Errorf("split %s: want exactly 2 children, have %d", n.ID, len(n.Children))
		}
		if len(n.Sizes) != 2 {
			return fmt.Errorf("split %s: want exactly 2 sizes, have %d", n.ID, len(n.Sizes))
		}
		if n.Direction != DirectionRow && n.Direction != DirectionColumn {
			return fmt.Errorf("split %s: invalid direction %q", n.ID, n.Direction)
		}
		if sum := n.Sizes[0] + n.Sizes[1]; sum < 100-sizeTolerance || sum > 100+sizeTolerance {
			return fmt.Errorf("split %s: sizes %v do not sum to 100", n.ID, n.Sizes)
		}
		if n.Depth != splitAncestors+1 {
			return fmt.Errorf("split %s: depth %d, want %d", n.ID, n.Depth, splitAncestors+1)
		}
		if n.Depth > MaxSplitDepth {
			return fmt.Errorf("split %s: depth %d exceeds max %d", n.ID, n.Depth, MaxSplitDepth)
		}
		for _, child := range n.Children {
			// A leaf child with zero tabs is a transient state the engine
			// must have collapsed before the tree was committed.
			if child.Kind == KindLeaf && len(child.Tabs) == 0 {
				return fmt.Errorf("split %s: empty leaf child %s", n.ID, child.ID)
			}
			if err := child.validate(splitAncestors + 1); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("node %s: unknown kind %q", n.ID, n.Kind)
	}
}

// Snapshot returns the subtree serialized as JSON. This is the read-only
// shape exposed to the rendering layer and would be the persistence format if
// layout persistence were ever added.
func (n *Node) Snapshot() ([]byte, error) {
	data, err := json.MarshalIndent(n, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal layout tree: %w", err)
	}
	return data, nil
}

// TreeFromSnapshot decodes a tree previously produced by Snapshot.
func TreeFromSnapshot(data []byte) (*Node, error) {
	var n Node
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("unmarshal layout tree: %w", err)
	}
	return &n, nil
}

// Equal reports structural equality of two subtrees: same shape, ids, tabs,
// active tabs, directions, sizes and depths.
func Equal(a, b *Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind != b.Kind || a.ID != b.ID {
		return false
	}
	switch a.Kind {
	case KindLeaf:
		if a.ActiveTabID != b.ActiveTabID || len(a.Tabs) != len(b.Tabs) {
			return false
		}
		for i := range a.Tabs {
			if a.Tabs[i] != b.Tabs[i] {
				return false
			}
		}
		return true
	case KindSplit:
		if a.Direction != b.Direction || a.Depth != b.Depth ||
			len(a.Sizes) != len(b.Sizes) || len(a.Children) != len(b.Children) {
			return false
		}
		for i := range a.Sizes {
			if a.Sizes[i] != b.Sizes[i] {
				return false
			}
		}
		for i := range a.Children {
			if !Equal(a.Children[i], b.Children[i]) {
				return false
			}
		}
		return true
	}
	return false
}
