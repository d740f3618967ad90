package layout

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Structural no-op errors. Operations that receive an impossible request
// return the tree unchanged together with one of these; nothing is corrupted
// and callers log rather than abort.
var (
	ErrPaneNotFound  = errors.New("pane not found")
	ErrSplitNotFound = errors.New("split not found")
	ErrTabNotFound   = errors.New("tab not found")
	ErrIndexRange    = errors.New("index out of range")
	ErrMaxDepth      = errors.New("split depth limit reached")
	ErrOnlyTab       = errors.New("cannot split a pane away from its only tab")
)

// Engine applies structural operations to layout trees. Every operation is a
// pure transformation: the input tree is never mutated, nodes along the path
// to the change are rebuilt, and untouched subtrees are shared by reference.
// That keeps old trees safe to hold (undo history, concurrent environment
// views) without defensive copying.
type Engine struct {
	// NewID mints ids for panes and splits the engine creates. Defaults to
	// random UUIDs; tests inject a counter for deterministic trees.
	NewID func() string
}

// NewEngine returns an Engine with UUID id generation.
func NewEngine() *Engine {
	return &Engine{NewID: uuid.NewString}
}

func (e *Engine) newID() string {
	if e.NewID != nil {
		return e.NewID()
	}
	return uuid.NewString()
}

// AddTab appends tab to the named pane and makes it active.
func (e *Engine) AddTab(root *Node, paneID string, tab Tab) (*Node, error) {
	next, ok := replacePane(root, paneID, func(leaf *Node) *Node {
		c := leaf.cloneLeaf()
		c.Tabs = append(c.Tabs, tab)
		c.ActiveTabID = tab.ID
		return c
	})
	if !ok {
		return root, fmt.Errorf("add tab %s: %w: %s", tab.ID, ErrPaneNotFound, paneID)
	}
	return next, nil
}

// RemoveTab removes the tab from the pane. If the removed tab was active, the
// tab now occupying the same index becomes active, or the last tab if the
// removed tab was last. A pane emptied by the removal is collapsed away: its
// sibling is promoted into the parent split's position. Emptying the root
// leaf leaves an empty root.
func (e *Engine) RemoveTab(root *Node, paneID, tabID string) (*Node, error) {
	pane := root.FindPane(paneID)
	if pane == nil {
		return root, fmt.Errorf("remove tab %s: %w: %s", tabID, ErrPaneNotFound, paneID)
	}
	if pane.indexOfTab(tabID) < 0 {
		return root, fmt.Errorf("remove tab: %w: %s in pane %s", ErrTabNotFound, tabID, paneID)
	}
	next, _ := removeAndCollapse(root, paneID, tabID)
	return next, nil
}

// ReorderTabs moves the tab at fromIndex to toIndex within one pane. Equal
// indices are a silent no-op; out-of-range indices return the tree unchanged.
func (e *Engine) ReorderTabs(root *Node, paneID string, fromIndex, toIndex int) (*Node, error) {
	pane := root.FindPane(paneID)
	if pane == nil {
		return root, fmt.Errorf("reorder tabs: %w: %s", ErrPaneNotFound, paneID)
	}
	if fromIndex == toIndex {
		return root, nil
	}
	if fromIndex < 0 || fromIndex >= len(pane.Tabs) || toIndex < 0 || toIndex >= len(pane.Tabs) {
		return root, fmt.Errorf("reorder tabs in %s: %w: %d -> %d with %d tabs",
			paneID, ErrIndexRange, fromIndex, toIndex, len(pane.Tabs))
	}
	next, _ := replacePane(root, paneID, func(leaf *Node) *Node {
		c := leaf.cloneLeaf()
		tab := c.Tabs[fromIndex]
		c.Tabs = append(c.Tabs[:fromIndex], c.Tabs[fromIndex+1:]...)
		c.Tabs = append(c.Tabs[:toIndex], append([]Tab{tab}, c.Tabs[toIndex:]...)...)
		return c
	})
	return next, nil
}

// MoveTab removes the tab from its source pane (collapsing the source if it
// empties, exactly like RemoveTab) and inserts it into the destination pane
// at toIndex (-1 appends), making it active there. This is the only operation
// that changes a tab's owning pane. A move within one pane degenerates to a
// reorder and never collapses anything.
func (e *Engine) MoveTab(root *Node, fromPaneID, toPaneID, tabID string, toIndex int) (*Node, error) {
	source := root.FindPane(fromPaneID)
	if source == nil {
		return root, fmt.Errorf("move tab %s: %w: source %s", tabID, ErrPaneNotFound, fromPaneID)
	}
	idx := source.indexOfTab(tabID)
	if idx < 0 {
		return root, fmt.Errorf("move tab: %w: %s in pane %s", ErrTabNotFound, tabID, fromPaneID)
	}
	dest := root.FindPane(toPaneID)
	if dest == nil {
		return root, fmt.Errorf("move tab %s: %w: destination %s", tabID, ErrPaneNotFound, toPaneID)
	}

	if fromPaneID == toPaneID {
		target := toIndex
		if target < 0 || target >= len(source.Tabs) {
			target = len(source.Tabs) - 1
		}
		next, err := e.ReorderTabs(root, fromPaneID, idx, target)
		if err != nil {
			return root, err
		}
		next, _ = replacePane(next, fromPaneID, func(leaf *Node) *Node {
			c := leaf.cloneLeaf()
			c.ActiveTabID = tabID
			return c
		})
		return next, nil
	}

	tab := source.Tabs[idx]
	next, _ := removeAndCollapse(root, fromPaneID, tabID)
	next, ok := replacePane(next, toPaneID, func(leaf *Node) *Node {
		c := leaf.cloneLeaf()
		at := toIndex
		if at < 0 || at > len(c.Tabs) {
			at = len(c.Tabs)
		}
		c.Tabs = append(c.Tabs[:at], append([]Tab{tab}, c.Tabs[at:]...)...)
		c.ActiveTabID = tab.ID
		return c
	})
	if !ok {
		// Destination existed before the removal, and removal only ever
		// deletes the emptied source leaf, so it must still exist.
		return root, fmt.Errorf("move tab %s: %w: destination %s lost during collapse", tabID, ErrPaneNotFound, toPaneID)
	}
	return next, nil
}

// SplitPaneAtEdge converts the target pane into a split: one child is a new
// pane holding only the dragged tab, the other is the target minus that tab.
// Dropping on the left or top edge places the new pane first; right or bottom
// places it second. The dragged tab is removed from its source pane first,
// with the usual collapse rule. Splits nesting past MaxSplitDepth are
// rejected unchanged.
func (e *Engine) SplitPaneAtEdge(root *Node, paneID string, edge Edge, draggedTabID, sourcePaneID string) (*Node, error) {
	target := root.FindPane(paneID)
	if target == nil {
		return root, fmt.Errorf("split pane: %w: %s", ErrPaneNotFound, paneID)
	}
	source := root.FindPane(sourcePaneID)
	if source == nil {
		return root, fmt.Errorf("split pane: %w: source %s", ErrPaneNotFound, sourcePaneID)
	}
	idx := source.indexOfTab(draggedTabID)
	if idx < 0 {
		return root, fmt.Errorf("split pane: %w: %s in pane %s", ErrTabNotFound, draggedTabID, sourcePaneID)
	}
	if sourcePaneID == paneID && len(target.Tabs) == 1 {
		// Splitting a pane at its own edge with its only tab would pair the
		// tab with an empty leaf.
		return root, fmt.Errorf("split pane %s: %w", paneID, ErrOnlyTab)
	}

	tab := source.Tabs[idx]
	working := root
	if sourcePaneID != paneID {
		working, _ = removeAndCollapse(root, sourcePaneID, draggedTabID)
	}

	// Depth is measured after the source collapse: the collapse can only
	// shorten the path to the target, never lengthen it.
	depth := splitDepthFor(working, paneID)
	if depth > MaxSplitDepth {
		return root, fmt.Errorf("split pane %s: %w (%d)", paneID, ErrMaxDepth, MaxSplitDepth)
	}

	newPane := &Node{Kind: KindLeaf, ID: e.newID(), Tabs: []Tab{tab}, ActiveTabID: tab.ID}
	next, _ := replacePane(working, paneID, func(leaf *Node) *Node {
		remainder := leaf
		if sourcePaneID == paneID {
			remainder = leaf.cloneLeaf()
			i := remainder.indexOfTab(draggedTabID)
			remainder.Tabs = append(remainder.Tabs[:i], remainder.Tabs[i+1:]...)
			if remainder.ActiveTabID == draggedTabID {
				remainder.ActiveTabID = neighborTabID(remainder.Tabs, i)
			}
		}
		split := &Node{
			Kind:      KindSplit,
			ID:        e.newID(),
			Direction: edge.SplitDirection(),
			Sizes:     []float64{50, 50},
			Depth:     depth,
		}
		if edge == EdgeLeft || edge == EdgeTop {
			split.Children = []*Node{newPane, remainder}
		} else {
			split.Children = []*Node{remainder, newPane}
		}
		return split
	})
	return next, nil
}

// UpdateSizes sets a split's size ratio. Values are normalized to sum to 100
// and clamped so neither side drops below MinPaneFraction.
func (e *Engine) UpdateSizes(root *Node, splitID string, sizes [2]float64) (*Node, error) {
	if root.FindSplit(splitID) == nil {
		return root, fmt.Errorf("update sizes: %w: %s", ErrSplitNotFound, splitID)
	}
	clamped := clampSizes(sizes)
	next := replaceSplit(root, splitID, func(split *Node) *Node {
		c := split.cloneSplit()
		c.Sizes = clamped[:]
		return c
	})
	return next, nil
}

func clampSizes(sizes [2]float64) [2]float64 {
	a, b := sizes[0], sizes[1]
	if a <= 0 && b <= 0 {
		return [2]float64{50, 50}
	}
	if a < 0 {
		a = 0
	}
	if b < 0 {
		b = 0
	}
	if sum := a + b; sum != 100 {
		a = a / sum * 100
		b = 100 - a
	}
	if a < MinPaneFraction {
		a = MinPaneFraction
		b = 100 - MinPaneFraction
	}
	if b < MinPaneFraction {
		b = MinPaneFraction
		a = 100 - MinPaneFraction
	}
	return [2]float64{a, b}
}

// neighborTabID picks the replacement active tab after removing the tab that
// was at removedIdx: the tab now occupying the same index, else the last.
func neighborTabID(tabs []Tab, removedIdx int) string {
	if len(tabs) == 0 {
		return ""
	}
	if removedIdx < len(tabs) {
		return tabs[removedIdx].ID
	}
	return tabs[len(tabs)-1].ID
}

// replacePane rebuilds the path from root to the named leaf, substituting the
// result of fn for the leaf. Returns the (possibly new) root and whether the
// pane was found. Subtrees off the path are shared.
func replacePane(root *Node, paneID string, fn func(leaf *Node) *Node) (*Node, bool) {
	if root == nil {
		return nil, false
	}
	if root.Kind == KindLeaf {
		if root.ID != paneID {
			return root, false
		}
		return fn(root), true
	}
	for i, child := range root.Children {
		if next, ok := replacePane(child, paneID, fn); ok {
			s := root.cloneSplit()
			s.Children[i] = next
			return s, true
		}
	}
	return root, false
}

// replaceSplit is replacePane's counterpart for split nodes.
func replaceSplit(root *Node, splitID string, fn func(split *Node) *Node) *Node {
	if root == nil || root.Kind == KindLeaf {
		return root
	}
	if root.ID == splitID {
		return fn(root)
	}
	for i, child := range root.Children {
		if next := replaceSplit(child, splitID, fn); next != child {
			s := root.cloneSplit()
			s.Children[i] = next
			return s
		}
	}
	return root
}

// removeAndCollapse removes the tab from the pane and, if the pane empties
// while sitting under a split, promotes its sibling into the split's
// position. The caller has already verified pane and tab exist.
func removeAndCollapse(root *Node, paneID, tabID string) (*Node, bool) {
	if root.Kind == KindLeaf {
		if root.ID != paneID {
			return root, false
		}
		return leafWithoutTab(root, tabID), true
	}
	for i, child := range root.Children {
		next, ok := removeAndCollapse(child, paneID, tabID)
		if !ok {
			continue
		}
		if next.Kind == KindLeaf && len(next.Tabs) == 0 {
			// Collapse: the sibling takes over this split's structural
			// position, carrying its depth.
			sibling := root.Children[1-i]
			return reDepth(sibling, root.Depth), true
		}
		s := root.cloneSplit()
		s.Children[i] = next
		return s, true
	}
	return root, false
}

func leafWithoutTab(leaf *Node, tabID string) *Node {
	idx := leaf.indexOfTab(tabID)
	if idx < 0 {
		return leaf
	}
	c := leaf.cloneLeaf()
	c.Tabs = append(c.Tabs[:idx], c.Tabs[idx+1:]...)
	if c.ActiveTabID == tabID {
		c.ActiveTabID = neighborTabID(c.Tabs, idx)
	}
	return c
}
