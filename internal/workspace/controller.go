// Package workspace wires pointer input, the layout engine and the session
// host registry together. It owns the per-environment layout trees and
// enforces the event sequencing contract: one drop produces exactly one
// engine operation, whose result is committed before reconciliation runs, and
// two structural mutations are never interleaved.
package workspace

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/workdeckhq/workdeck/internal/dragdrop"
	"github.com/workdeckhq/workdeck/internal/layout"
	"github.com/workdeckhq/workdeck/internal/sessionhost"
)

// Environment is one isolated workspace: its own layout tree, its own active
// pane, its own session set.
type Environment struct {
	ID           string
	Name         string
	Tree         *layout.Node
	ActivePaneID string
	CreatedAt    time.Time
}

// NotificationKind tags what happened to a tab.
type NotificationKind string

const (
	TabCreated     NotificationKind = "created"
	TabClosed      NotificationKind = "closed"
	TabMovedPane   NotificationKind = "moved"
	LayoutResized  NotificationKind = "resized"
	EnvironmentNew NotificationKind = "environment"
)

// Notification is emitted after a committed mutation, for consumers that
// track tab-to-session mapping externally (e.g. a sidebar status indicator).
type Notification struct {
	Kind          NotificationKind
	EnvironmentID string
	TabID         string
	PaneID        string
}

// Controller orchestrates all structural changes. All mutating methods take
// the controller mutex, which is the single-writer guarantee: reconciliation
// never observes a half-applied tree.
type Controller struct {
	mu sync.Mutex

	engine   *layout.Engine
	registry *sessionhost.Registry
	gesture  dragdrop.Gesture

	environments map[string]*Environment
	order        []string // creation order, for stable iteration
	activeEnvID  string

	// resizeLimiter coalesces notification bursts during a continuous
	// resize drag. The tree itself is updated on every tick; only observer
	// fan-out is throttled, and EndResize always flushes the final state.
	resizeLimiter *rate.Limiter
	resizePending map[string]string // envID -> splitID with unflushed resize

	subscribers []func(Notification)
}

// NewController creates a Controller using the given session registry.
func NewController(registry *sessionhost.Registry) *Controller {
	return &Controller{
		engine:        layout.NewEngine(),
		registry:      registry,
		environments:  make(map[string]*Environment),
		resizeLimiter: rate.NewLimiter(rate.Every(50*time.Millisecond), 1),
		resizePending: make(map[string]string),
	}
}

// Subscribe registers a notification observer. Observers are called
// synchronously after commit, in subscription order.
func (c *Controller) Subscribe(fn func(Notification)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribers = append(c.subscribers, fn)
}

func (c *Controller) notify(n Notification) {
	for _, fn := range c.subscribers {
		fn(n)
	}
}

// NewEnvironment creates an environment with a single empty root pane and
// makes it active if it is the first.
func (c *Controller) NewEnvironment(name string) *Environment {
	c.mu.Lock()
	defer c.mu.Unlock()

	env := &Environment{
		ID:        uuid.NewString(),
		Name:      name,
		Tree:      layout.NewLeaf(uuid.NewString()),
		CreatedAt: time.Now(),
	}
	env.ActivePaneID = env.Tree.ID
	c.environments[env.ID] = env
	c.order = append(c.order, env.ID)
	if c.activeEnvID == "" {
		c.activeEnvID = env.ID
	}
	log.Printf("[WORKSPACE] Created environment %s (%s)", env.Name, env.ID)
	c.notify(Notification{Kind: EnvironmentNew, EnvironmentID: env.ID})
	return env
}

// CloseEnvironment tears the environment down, disposing all of its sessions.
func (c *Controller) CloseEnvironment(envID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	env, ok := c.environments[envID]
	if !ok {
		return fmt.Errorf("close environment: unknown id %s", envID)
	}
	for _, tabID := range env.Tree.TabIDs() {
		c.notify(Notification{Kind: TabClosed, EnvironmentID: envID, TabID: tabID})
	}
	c.registry.CloseEnvironment(envID)
	delete(c.environments, envID)
	for i, id := range c.order {
		if id == envID {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	if c.activeEnvID == envID {
		c.activeEnvID = ""
		if len(c.order) > 0 {
			c.activeEnvID = c.order[0]
		}
	}
	log.Printf("[WORKSPACE] Closed environment %s", envID)
	return nil
}

// Environments returns all environments in creation order.
func (c *Controller) Environments() []*Environment {
	c.mu.Lock()
	defer c.mu.Unlock()
	envs := make([]*Environment, 0, len(c.order))
	for _, id := range c.order {
		envs = append(envs, c.environments[id])
	}
	return envs
}

// Environment returns the environment with the given id, if present.
func (c *Controller) Environment(envID string) (*Environment, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	env, ok := c.environments[envID]
	return env, ok
}

// ActiveEnvironment returns the globally active environment, or nil when no
// environment exists.
func (c *Controller) ActiveEnvironment() *Environment {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.environments[c.activeEnvID]
}

// SetActiveEnvironment switches keyboard/focus routing to the environment.
// Other environments' trees are unaffected.
func (c *Controller) SetActiveEnvironment(envID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.environments[envID]; !ok {
		return fmt.Errorf("set active environment: unknown id %s", envID)
	}
	c.activeEnvID = envID
	return nil
}

// SetActivePane records which pane receives focus-scoped input in the
// environment.
func (c *Controller) SetActivePane(envID, paneID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	env, ok := c.environments[envID]
	if !ok {
		return fmt.Errorf("set active pane: unknown environment %s", envID)
	}
	if env.Tree.FindPane(paneID) == nil {
		return fmt.Errorf("set active pane: %w: %s", layout.ErrPaneNotFound, paneID)
	}
	env.ActivePaneID = paneID
	return nil
}

// FocusNextPane moves pane focus to the next leaf in display order, wrapping
// around. delta of -1 moves backwards.
func (c *Controller) FocusNextPane(envID string, delta int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	env, ok := c.environments[envID]
	if !ok {
		return
	}
	leaves := env.Tree.Leaves()
	if len(leaves) == 0 {
		return
	}
	cur := 0
	for i, l := range leaves {
		if l.ID == env.ActivePaneID {
			cur = i
			break
		}
	}
	next := (cur + delta + len(leaves)) % len(leaves)
	env.ActivePaneID = leaves[next].ID
}

// OpenTab creates a tab of the given kind in the named pane and commits the
// tree, which triggers session creation for session-backed kinds.
func (c *Controller) OpenTab(envID, paneID string, kind layout.TabKind, title, payload string) (layout.Tab, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	env, ok := c.environments[envID]
	if !ok {
		return layout.Tab{}, fmt.Errorf("open tab: unknown environment %s", envID)
	}
	tab := layout.Tab{ID: uuid.NewString(), Kind: kind, Title: title, Payload: payload}
	next, err := c.engine.AddTab(env.Tree, paneID, tab)
	if err != nil {
		log.Printf("[WORKSPACE] Open tab no-op: %v", err)
		return layout.Tab{}, err
	}
	c.commitLocked(env, next)
	return tab, nil
}

// CloseTab removes the tab and commits, disposing its session if it had one.
func (c *Controller) CloseTab(envID, paneID, tabID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	env, ok := c.environments[envID]
	if !ok {
		return fmt.Errorf("close tab: unknown environment %s", envID)
	}
	next, err := c.engine.RemoveTab(env.Tree, paneID, tabID)
	if err != nil {
		log.Printf("[WORKSPACE] Close tab no-op: %v", err)
		return err
	}
	c.commitLocked(env, next)
	return nil
}

// ActivateTab makes the tab active within its owning pane and focuses the
// pane.
func (c *Controller) ActivateTab(envID, tabID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	env, ok := c.environments[envID]
	if !ok {
		return fmt.Errorf("activate tab: unknown environment %s", envID)
	}
	pane := env.Tree.PaneForTab(tabID)
	if pane == nil {
		return fmt.Errorf("activate tab: %w: %s", layout.ErrTabNotFound, tabID)
	}
	idx := -1
	for i, t := range pane.Tabs {
		if t.ID == tabID {
			idx = i
			break
		}
	}
	// Reuse the engine's same-pane move to rebuild the leaf with the new
	// active tab; position is unchanged.
	next, err := c.engine.MoveTab(env.Tree, pane.ID, pane.ID, tabID, idx)
	if err != nil {
		return err
	}
	env.Tree = next
	env.ActivePaneID = pane.ID
	return nil
}

// BeginDrag starts a drag gesture for the tab at sourceIndex in its pane.
func (c *Controller) BeginDrag(tabID, sourcePaneID string, sourceIndex int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gesture.Start(tabID, sourcePaneID, sourceIndex)
}

// DragTick resolves the hover target for the current pointer snapshot, for
// insertion-point and split previews. Stateless per tick apart from the
// hovered-pane memory the gesture keeps.
func (c *Controller) DragTick(snap dragdrop.Snapshot) (dragdrop.Region, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gesture.Hover(snap)
}

// CancelDrag aborts the gesture. The tree never changed, so no
// reconciliation runs.
func (c *Controller) CancelDrag() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gesture.Cancel()
}

// Dragging reports whether a drag gesture is active.
func (c *Controller) Dragging() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gesture.Dragging()
}

// DraggingTab returns the dragged tab's id, or "" when no drag is active.
func (c *Controller) DraggingTab() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.gesture.Dragging() {
		return ""
	}
	return c.gesture.TabID()
}

// CompleteDrag resolves the drop and applies the single structural operation
// it maps to. A drop outside any target is a no-op.
func (c *Controller) CompleteDrag(envID string, snap dragdrop.Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	drop, ok := c.gesture.Drop(snap)
	if !ok {
		return nil
	}
	return c.applyDropLocked(envID, drop)
}

func (c *Controller) applyDropLocked(envID string, drop dragdrop.Drop) error {
	env, ok := c.environments[envID]
	if !ok {
		return fmt.Errorf("apply drop: unknown environment %s", envID)
	}

	var next *layout.Node
	var err error
	switch drop.Kind {
	case dragdrop.DropReorder:
		next, err = c.engine.ReorderTabs(env.Tree, drop.PaneID, drop.FromIndex, drop.ToIndex)
	case dragdrop.DropMove:
		next, err = c.engine.MoveTab(env.Tree, drop.FromPaneID, drop.ToPaneID, drop.TabID, drop.ToIndex)
	case dragdrop.DropSplit:
		next, err = c.engine.SplitPaneAtEdge(env.Tree, drop.PaneID, drop.Edge, drop.TabID, drop.SourcePaneID)
	default:
		return fmt.Errorf("apply drop: unknown kind %q", drop.Kind)
	}
	if err != nil {
		// Structural no-op: nothing corrupted, nothing to reconcile.
		log.Printf("[WORKSPACE] Drop no-op (%s): %v", drop.Kind, err)
		return err
	}
	c.commitLocked(env, next)
	return nil
}

// ResizeSplit updates a split's size ratio. During a continuous resize drag
// the tree is updated every tick but observer notifications are coalesced;
// call EndResize when the drag finishes to flush the final state.
func (c *Controller) ResizeSplit(envID, splitID string, sizes [2]float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	env, ok := c.environments[envID]
	if !ok {
		return fmt.Errorf("resize split: unknown environment %s", envID)
	}
	next, err := c.engine.UpdateSizes(env.Tree, splitID, sizes)
	if err != nil {
		log.Printf("[WORKSPACE] Resize no-op: %v", err)
		return err
	}
	// Sizes never change the tab set, so no reconcile pass is needed; the
	// commit is just the tree swap plus a (possibly throttled) notification.
	env.Tree = next
	if c.resizeLimiter.Allow() {
		delete(c.resizePending, envID)
		c.notify(Notification{Kind: LayoutResized, EnvironmentID: envID, PaneID: splitID})
	} else {
		c.resizePending[envID] = splitID
	}
	return nil
}

// EndResize flushes the notification for any coalesced resize updates. The
// final committed ratio is always authoritative.
func (c *Controller) EndResize(envID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if splitID, ok := c.resizePending[envID]; ok {
		delete(c.resizePending, envID)
		c.notify(Notification{Kind: LayoutResized, EnvironmentID: envID, PaneID: splitID})
	}
}

// commitLocked swaps in the mutated tree, repairs the active pane reference,
// reconciles sessions and re-homes render targets — in that order, for this
// environment only. Callers hold c.mu.
func (c *Controller) commitLocked(env *Environment, next *layout.Node) {
	before := tabPanes(env.Tree)
	env.Tree = next

	if env.Tree.FindPane(env.ActivePaneID) == nil {
		// The focused pane was collapsed away; fall back to the first leaf.
		if leaves := env.Tree.Leaves(); len(leaves) > 0 {
			env.ActivePaneID = leaves[0].ID
		}
	}

	c.registry.Reconcile(env.ID, treeTabs(env.Tree))
	c.registry.Rehome(env.ID, env.Tree)

	after := tabPanes(env.Tree)
	for tabID, paneID := range after {
		prev, existed := before[tabID]
		switch {
		case !existed:
			c.notify(Notification{Kind: TabCreated, EnvironmentID: env.ID, TabID: tabID, PaneID: paneID})
		case prev != paneID:
			c.notify(Notification{Kind: TabMovedPane, EnvironmentID: env.ID, TabID: tabID, PaneID: paneID})
		}
	}
	for tabID := range before {
		if _, still := after[tabID]; !still {
			c.notify(Notification{Kind: TabClosed, EnvironmentID: env.ID, TabID: tabID})
		}
	}
}

// tabPanes maps every tab id in the tree to its owning pane id.
func tabPanes(tree *layout.Node) map[string]string {
	owners := make(map[string]string)
	tree.Walk(func(n *layout.Node) bool {
		for _, tab := range n.Tabs {
			owners[tab.ID] = n.ID
		}
		return true
	})
	return owners
}

// treeTabs flattens the tree's tabs in display order.
func treeTabs(tree *layout.Node) []layout.Tab {
	var tabs []layout.Tab
	tree.Walk(func(n *layout.Node) bool {
		tabs = append(tabs, n.Tabs...)
		return true
	})
	return tabs
}
