package dragdrop

import "github.com/workdeckhq/workdeck/internal/layout"

// DropKind discriminates the structural operation a completed drop maps to.
type DropKind string

const (
	DropReorder DropKind = "reorder"
	DropMove    DropKind = "move"
	DropSplit   DropKind = "split"
)

// Drop is the resolved outcome of a drag gesture, fed directly to the layout
// engine. Exactly the fields for its Kind are meaningful.
type Drop struct {
	Kind  DropKind
	TabID string

	// DropReorder.
	PaneID    string
	FromIndex int
	ToIndex   int

	// DropMove. ToIndex is reused; -1 means append.
	FromPaneID string
	ToPaneID   string

	// DropSplit. PaneID is reused as the split target.
	Edge         layout.Edge
	SourcePaneID string
}

// Gesture is the drag state machine: idle -> dragging -> idle. It carries the
// dragged tab's identity plus the last hovered pane across pointer ticks,
// which per-tick resolution alone cannot provide.
type Gesture struct {
	dragging     bool
	tabID        string
	sourcePaneID string
	sourceIndex  int

	// lastHoverPaneID is the pane whose strip the pointer most recently
	// resolved to. Needed to break the self-collision case: during a
	// cross-pane drag the destination strip previews the dragged tab, so the
	// pointer can land on the dragged tab itself.
	lastHoverPaneID string
}

// Start begins a drag of the given tab out of its source pane.
func (g *Gesture) Start(tabID, sourcePaneID string, sourceIndex int) {
	g.dragging = true
	g.tabID = tabID
	g.sourcePaneID = sourcePaneID
	g.sourceIndex = sourceIndex
	g.lastHoverPaneID = sourcePaneID
}

// Dragging reports whether a drag is in progress.
func (g *Gesture) Dragging() bool { return g.dragging }

// TabID returns the dragged tab id while dragging.
func (g *Gesture) TabID() string { return g.tabID }

// SourcePaneID returns the pane the drag started from.
func (g *Gesture) SourcePaneID() string { return g.sourcePaneID }

// Cancel aborts the gesture; no mutation results.
func (g *Gesture) Cancel() {
	*g = Gesture{}
}

// Hover resolves the pointer's current target for preview purposes and
// records the hovered pane. Call on every pointer-move tick while dragging.
func (g *Gesture) Hover(snap Snapshot) (Region, bool) {
	if !g.dragging {
		return Region{}, false
	}
	target, ok := g.resolve(snap)
	if !ok {
		return Region{}, false
	}
	if target.PaneID != "" {
		g.lastHoverPaneID = target.PaneID
	}
	return target, true
}

// Drop resolves the final target and maps it to a structural operation,
// returning to idle. ok is false when the drop lands on no target (outside
// the workspace) or the gesture was not active; no mutation should occur.
func (g *Gesture) Drop(snap Snapshot) (Drop, bool) {
	if !g.dragging {
		return Drop{}, false
	}
	defer g.Cancel()

	target, ok := g.resolve(snap)
	if !ok {
		return Drop{}, false
	}

	switch target.Kind {
	case TargetTab:
		if target.PaneID == g.sourcePaneID {
			return Drop{
				Kind:      DropReorder,
				TabID:     g.tabID,
				PaneID:    target.PaneID,
				FromIndex: g.sourceIndex,
				ToIndex:   target.TabIndex,
			}, true
		}
		return Drop{
			Kind:       DropMove,
			TabID:      g.tabID,
			FromPaneID: g.sourcePaneID,
			ToPaneID:   target.PaneID,
			ToIndex:    target.TabIndex,
		}, true
	case TargetStrip:
		if target.PaneID == g.sourcePaneID {
			return Drop{
				Kind:      DropReorder,
				TabID:     g.tabID,
				PaneID:    target.PaneID,
				FromIndex: g.sourceIndex,
				ToIndex:   target.TabCount - 1,
			}, true
		}
		return Drop{
			Kind:       DropMove,
			TabID:      g.tabID,
			FromPaneID: g.sourcePaneID,
			ToPaneID:   target.PaneID,
			ToIndex:    -1,
		}, true
	case TargetEdge:
		return Drop{
			Kind:         DropSplit,
			TabID:        g.tabID,
			PaneID:       target.PaneID,
			Edge:         target.Edge,
			SourcePaneID: g.sourcePaneID,
		}, true
	}
	return Drop{}, false
}

// resolve runs the pure target resolution and applies self-collision
// handling: when the winning region is the dragged tab itself (its preview in
// some strip), the real destination is the last hovered pane's strip.
func (g *Gesture) resolve(snap Snapshot) (Region, bool) {
	target, ok := ResolveTarget(snap)
	if !ok {
		return Region{}, false
	}
	if target.Kind == TargetTab && target.TabID == g.tabID {
		if strip, found := stripForPane(snap.Regions, g.lastHoverPaneID); found {
			return strip, true
		}
		// No strip registered for the hovered pane; treat the collision as a
		// drop on the strip of the pane the preview sits in.
		if strip, found := stripForPane(snap.Regions, target.PaneID); found {
			return strip, true
		}
		return Region{}, false
	}
	return target, true
}

func stripForPane(regions []Region, paneID string) (Region, bool) {
	for _, r := range regions {
		if r.Kind == TargetStrip && r.PaneID == paneID {
			return r, true
		}
	}
	return Region{}, false
}
