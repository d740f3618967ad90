// Package dragdrop resolves in-progress tab drags to structural drop targets.
//
// Pointer input during a drag is inherently ambiguous: tab strips, individual
// tabs and pane edge zones overlap, and the dragged tab's preview can collide
// with itself. Resolution is a pure function over a geometry snapshot so the
// priority rules are testable outside any event handler.
package dragdrop

import (
	"math"

	"github.com/workdeckhq/workdeck/internal/layout"
)

// TargetKind classifies a droppable region.
type TargetKind string

const (
	// TargetTab is one specific tab in a pane's strip; dropping on it
	// inserts at that tab's index.
	TargetTab TargetKind = "tab"
	// TargetStrip is a pane's tab strip as a whole; dropping on it appends.
	TargetStrip TargetKind = "strip"
	// TargetEdge is a pane edge zone; dropping on it splits the pane.
	TargetEdge TargetKind = "edge"
)

// Rect is a droppable region's bounds in workspace cells.
type Rect struct {
	X, Y, W, H int
}

// Contains reports whether the point lies inside the rect.
func (r Rect) Contains(x, y int) bool {
	return x >= r.X && x < r.X+r.W && y >= r.Y && y < r.Y+r.H
}

// Intersection returns the overlapping area with other, 0 if disjoint.
func (r Rect) Intersection(other Rect) int {
	w := min(r.X+r.W, other.X+other.W) - max(r.X, other.X)
	h := min(r.Y+r.H, other.Y+other.H) - max(r.Y, other.Y)
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// Area returns the rect's area.
func (r Rect) Area() int {
	if r.W <= 0 || r.H <= 0 {
		return 0
	}
	return r.W * r.H
}

func (r Rect) centerDistance(x, y int) float64 {
	cx := float64(r.X) + float64(r.W)/2
	cy := float64(r.Y) + float64(r.H)/2
	dx := cx - float64(x)
	dy := cy - float64(y)
	return math.Sqrt(dx*dx + dy*dy)
}

// Region is one droppable target with its current geometry. The rendering
// layer registers regions each frame; the resolver never computes geometry
// itself.
type Region struct {
	Kind   TargetKind
	PaneID string
	Bounds Rect

	// TargetTab only.
	TabID    string
	TabIndex int

	// TargetStrip only: number of tabs currently shown in the strip, used to
	// compute the append index for same-pane drops.
	TabCount int

	// TargetEdge only.
	Edge layout.Edge
}

// Snapshot is everything the resolver needs for one pointer tick.
type Snapshot struct {
	PointerX int
	PointerY int
	// Ghost is the dragged tab preview's current bounds, used for the
	// bounding-box fallback when the pointer itself is over nothing.
	Ghost   Rect
	Regions []Region
}

// isEdge keeps the priority rule in one place: any tab or strip hit beats an
// edge hit, so a crowded tab strip overlapping an edge zone never causes a
// surprise split.
func (r Region) isEdge() bool { return r.Kind == TargetEdge }

// preferTabTargets drops edge regions when any tab or strip region is present.
func preferTabTargets(hits []Region) []Region {
	hasTab := false
	for _, h := range hits {
		if !h.isEdge() {
			hasTab = true
			break
		}
	}
	if !hasTab {
		return hits
	}
	kept := hits[:0]
	for _, h := range hits {
		if !h.isEdge() {
			kept = append(kept, h)
		}
	}
	return kept
}

// ResolveTarget classifies the pointer's intended target among the snapshot's
// droppable regions. The fallback chain, first non-empty stage wins:
//
//  1. exact pointer containment,
//  2. among multiple exact hits, tab/strip targets beat edge zones, then the
//     smallest (most specific) region wins,
//  3. ghost bounding-box intersection under the same priority, largest
//     overlap wins,
//  4. nearest region center to the pointer.
//
// Returns false only when the snapshot has no regions at all.
func ResolveTarget(snap Snapshot) (Region, bool) {
	if len(snap.Regions) == 0 {
		return Region{}, false
	}

	var exact []Region
	for _, r := range snap.Regions {
		if r.Bounds.Contains(snap.PointerX, snap.PointerY) {
			exact = append(exact, r)
		}
	}
	if len(exact) > 0 {
		exact = preferTabTargets(exact)
		best := exact[0]
		for _, r := range exact[1:] {
			if r.Bounds.Area() < best.Bounds.Area() {
				best = r
			}
		}
		return best, true
	}

	var overlapping []Region
	for _, r := range snap.Regions {
		if r.Bounds.Intersection(snap.Ghost) > 0 {
			overlapping = append(overlapping, r)
		}
	}
	if len(overlapping) > 0 {
		overlapping = preferTabTargets(overlapping)
		best := overlapping[0]
		bestOverlap := best.Bounds.Intersection(snap.Ghost)
		for _, r := range overlapping[1:] {
			if o := r.Bounds.Intersection(snap.Ghost); o > bestOverlap {
				best, bestOverlap = r, o
			}
		}
		return best, true
	}

	best := snap.Regions[0]
	bestDist := best.Bounds.centerDistance(snap.PointerX, snap.PointerY)
	for _, r := range snap.Regions[1:] {
		if d := r.Bounds.centerDistance(snap.PointerX, snap.PointerY); d < bestDist {
			best, bestDist = r, d
		}
	}
	return best, true
}
