package workspace

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/workdeckhq/workdeck/internal/dragdrop"
	"github.com/workdeckhq/workdeck/internal/layout"
	"github.com/workdeckhq/workdeck/internal/sessionhost"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type stubSession struct {
	mu       sync.Mutex
	disposed int
}

func (s *stubSession) Write(p []byte) (int, error) { return len(p), nil }
func (s *stubSession) Resize(cols, rows int) error { return nil }
func (s *stubSession) Dispose() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disposed++
	return nil
}

type stubTarget struct {
	mu      sync.Mutex
	surface string
}

func (t *stubTarget) Attach(surfaceID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.surface = surfaceID
}

func (t *stubTarget) Detach() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.surface = ""
}

func (t *stubTarget) AttachedTo() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.surface
}

type stubEngine struct {
	mu       sync.Mutex
	created  int
	sessions map[string]*stubSession
	targets  map[string]*stubTarget
}

func newStubEngine() *stubEngine {
	return &stubEngine{
		sessions: make(map[string]*stubSession),
		targets:  make(map[string]*stubTarget),
	}
}

func (e *stubEngine) Create(params sessionhost.SessionParams, output sessionhost.OutputFunc) (sessionhost.Session, sessionhost.RenderTarget, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.created++
	s := &stubSession{}
	t := &stubTarget{}
	e.sessions[params.TabID] = s
	e.targets[params.TabID] = t
	return s, t, nil
}

func (e *stubEngine) createdCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.created
}

func newTestController() (*Controller, *stubEngine) {
	engine := newStubEngine()
	return NewController(sessionhost.NewRegistry(engine)), engine
}

func collectNotifications(c *Controller) *[]Notification {
	var got []Notification
	c.Subscribe(func(n Notification) { got = append(got, n) })
	return &got
}

func TestNewEnvironmentStartsWithEmptyRootPane(t *testing.T) {
	c, _ := newTestController()

	env := c.NewEnvironment("api work")

	require.NotNil(t, env.Tree)
	assert.True(t, env.Tree.IsLeaf())
	assert.Empty(t, env.Tree.Tabs)
	assert.Equal(t, env.Tree.ID, env.ActivePaneID)
	assert.Same(t, env, c.ActiveEnvironment(), "first environment becomes active")
}

func TestOpenTabCreatesSessionAndNotifies(t *testing.T) {
	c, engine := newTestController()
	env := c.NewEnvironment("w")
	got := collectNotifications(c)

	tab, err := c.OpenTab(env.ID, env.Tree.ID, layout.TabKindTerminal, "shell", "")
	require.NoError(t, err)

	assert.Equal(t, 1, engine.createdCount())
	assert.Equal(t, tab.ID, env.Tree.ActiveTabID, "new tab becomes active")
	require.Len(t, *got, 1)
	assert.Equal(t, TabCreated, (*got)[0].Kind)
	assert.Equal(t, tab.ID, (*got)[0].TabID)
}

func TestOpenTabUnknownPaneIsNoOp(t *testing.T) {
	c, engine := newTestController()
	env := c.NewEnvironment("w")
	before := env.Tree

	_, err := c.OpenTab(env.ID, "nope", layout.TabKindTerminal, "shell", "")

	assert.ErrorIs(t, err, layout.ErrPaneNotFound)
	assert.Same(t, before, env.Tree, "failed open must not commit")
	assert.Equal(t, 0, engine.createdCount())
}

func TestCloseTabDisposesSession(t *testing.T) {
	c, engine := newTestController()
	env := c.NewEnvironment("w")
	tab, err := c.OpenTab(env.ID, env.Tree.ID, layout.TabKindTerminal, "shell", "")
	require.NoError(t, err)
	got := collectNotifications(c)

	require.NoError(t, c.CloseTab(env.ID, env.Tree.ID, tab.ID))

	assert.Equal(t, 1, engine.sessions[tab.ID].disposed)
	require.Len(t, *got, 1)
	assert.Equal(t, TabClosed, (*got)[0].Kind)
}

func TestFileTabsGetNoSession(t *testing.T) {
	c, engine := newTestController()
	env := c.NewEnvironment("w")

	_, err := c.OpenTab(env.ID, env.Tree.ID, layout.TabKindFile, "main.go", "main.go")
	require.NoError(t, err)

	assert.Equal(t, 0, engine.createdCount())
}

// A drop on an edge zone performs the full sequence: split the tree, then
// re-home the moved tab's render target under its new pane.
func TestCompleteDragSplitRehomesTarget(t *testing.T) {
	c, engine := newTestController()
	env := c.NewEnvironment("w")
	rootPane := env.Tree.ID
	tabA, err := c.OpenTab(env.ID, rootPane, layout.TabKindTerminal, "a", "")
	require.NoError(t, err)
	_, err = c.OpenTab(env.ID, rootPane, layout.TabKindTerminal, "b", "")
	require.NoError(t, err)

	c.BeginDrag(tabA.ID, rootPane, 0)
	err = c.CompleteDrag(env.ID, dragdrop.Snapshot{
		PointerX: 58, PointerY: 5,
		Regions: []dragdrop.Region{
			{Kind: dragdrop.TargetEdge, PaneID: rootPane, Edge: layout.EdgeRight,
				Bounds: dragdrop.Rect{X: 55, Y: 0, W: 5, H: 10}},
		},
	})
	require.NoError(t, err)

	require.False(t, env.Tree.IsLeaf(), "drop on edge must split the root pane")
	newPane := env.Tree.PaneForTab(tabA.ID)
	require.NotNil(t, newPane)
	assert.NotEqual(t, rootPane, newPane.ID)
	assert.Equal(t, newPane.ID, engine.targets[tabA.ID].AttachedTo(),
		"render target follows the tab to its new pane")
	assert.Equal(t, 2, engine.createdCount(), "move must not recreate sessions")
	assert.False(t, c.Dragging())
}

func TestCancelDragLeavesTreeUntouched(t *testing.T) {
	c, _ := newTestController()
	env := c.NewEnvironment("w")
	tab, err := c.OpenTab(env.ID, env.Tree.ID, layout.TabKindTerminal, "a", "")
	require.NoError(t, err)
	before := env.Tree

	c.BeginDrag(tab.ID, env.Tree.ID, 0)
	c.CancelDrag()

	assert.Same(t, before, env.Tree)
	assert.False(t, c.Dragging())
}

func TestCompleteDragOutsideTargetsIsNoOp(t *testing.T) {
	c, _ := newTestController()
	env := c.NewEnvironment("w")
	tab, err := c.OpenTab(env.ID, env.Tree.ID, layout.TabKindTerminal, "a", "")
	require.NoError(t, err)
	before := env.Tree

	c.BeginDrag(tab.ID, env.Tree.ID, 0)
	err = c.CompleteDrag(env.ID, dragdrop.Snapshot{PointerX: 500, PointerY: 500})

	require.NoError(t, err)
	assert.Same(t, before, env.Tree)
}

func TestMutationsAreScopedToTheirEnvironment(t *testing.T) {
	c, engine := newTestController()
	env1 := c.NewEnvironment("one")
	env2 := c.NewEnvironment("two")
	tab1, err := c.OpenTab(env1.ID, env1.Tree.ID, layout.TabKindTerminal, "a", "")
	require.NoError(t, err)
	tab2, err := c.OpenTab(env2.ID, env2.Tree.ID, layout.TabKindTerminal, "x", "")
	require.NoError(t, err)
	env2Before := env2.Tree

	require.NoError(t, c.CloseTab(env1.ID, env1.Tree.ID, tab1.ID))

	assert.Same(t, env2Before, env2.Tree, "other environments' trees never change")
	assert.Equal(t, 0, engine.sessions[tab2.ID].disposed)
}

func TestActivePaneRepairedAfterCollapse(t *testing.T) {
	c, _ := newTestController()
	env := c.NewEnvironment("w")
	rootPane := env.Tree.ID
	tabA, err := c.OpenTab(env.ID, rootPane, layout.TabKindTerminal, "a", "")
	require.NoError(t, err)
	tabB, err := c.OpenTab(env.ID, rootPane, layout.TabKindTerminal, "b", "")
	require.NoError(t, err)

	// Split b off to the right, focus the new pane, then close its only tab.
	c.BeginDrag(tabB.ID, rootPane, 1)
	require.NoError(t, c.CompleteDrag(env.ID, dragdrop.Snapshot{
		PointerX: 58, PointerY: 5,
		Regions: []dragdrop.Region{
			{Kind: dragdrop.TargetEdge, PaneID: rootPane, Edge: layout.EdgeRight,
				Bounds: dragdrop.Rect{X: 55, Y: 0, W: 5, H: 10}},
		},
	}))
	newPane := env.Tree.PaneForTab(tabB.ID)
	require.NoError(t, c.SetActivePane(env.ID, newPane.ID))

	require.NoError(t, c.CloseTab(env.ID, newPane.ID, tabB.ID))

	assert.True(t, env.Tree.IsLeaf(), "removing the last tab collapses the split")
	assert.Equal(t, env.Tree.ID, env.ActivePaneID, "focus falls back to a surviving pane")
	assert.NotNil(t, env.Tree.PaneForTab(tabA.ID))
}

func TestMoveAcrossPanesNotifiesMovedPane(t *testing.T) {
	c, _ := newTestController()
	env := c.NewEnvironment("w")
	rootPane := env.Tree.ID
	tabA, err := c.OpenTab(env.ID, rootPane, layout.TabKindTerminal, "a", "")
	require.NoError(t, err)
	tabB, err := c.OpenTab(env.ID, rootPane, layout.TabKindTerminal, "b", "")
	require.NoError(t, err)

	c.BeginDrag(tabB.ID, rootPane, 1)
	require.NoError(t, c.CompleteDrag(env.ID, dragdrop.Snapshot{
		PointerX: 58, PointerY: 5,
		Regions: []dragdrop.Region{
			{Kind: dragdrop.TargetEdge, PaneID: rootPane, Edge: layout.EdgeRight,
				Bounds: dragdrop.Rect{X: 55, Y: 0, W: 5, H: 10}},
		},
	}))
	otherPane := env.Tree.PaneForTab(tabB.ID)
	got := collectNotifications(c)

	// Drag a over to b's strip.
	c.BeginDrag(tabA.ID, env.Tree.PaneForTab(tabA.ID).ID, 0)
	require.NoError(t, c.CompleteDrag(env.ID, dragdrop.Snapshot{
		PointerX: 30, PointerY: 0,
		Regions: []dragdrop.Region{
			{Kind: dragdrop.TargetStrip, PaneID: otherPane.ID, TabCount: 1,
				Bounds: dragdrop.Rect{X: 28, Y: 0, W: 20, H: 1}},
		},
	}))

	require.Len(t, *got, 1)
	assert.Equal(t, TabMovedPane, (*got)[0].Kind)
	assert.Equal(t, tabA.ID, (*got)[0].TabID)
}

func TestResizeCoalescesBurstsButCommitsFinalValue(t *testing.T) {
	c, _ := newTestController()
	env := c.NewEnvironment("w")
	rootPane := env.Tree.ID
	_, err := c.OpenTab(env.ID, rootPane, layout.TabKindTerminal, "a", "")
	require.NoError(t, err)
	tabB, err := c.OpenTab(env.ID, rootPane, layout.TabKindTerminal, "b", "")
	require.NoError(t, err)
	c.BeginDrag(tabB.ID, rootPane, 1)
	require.NoError(t, c.CompleteDrag(env.ID, dragdrop.Snapshot{
		PointerX: 58, PointerY: 5,
		Regions: []dragdrop.Region{
			{Kind: dragdrop.TargetEdge, PaneID: rootPane, Edge: layout.EdgeRight,
				Bounds: dragdrop.Rect{X: 55, Y: 0, W: 5, H: 10}},
		},
	}))
	splitID := env.Tree.ID
	got := collectNotifications(c)

	// Simulate a fast drag: many intermediate ratios, one final one.
	for f := 50.0; f < 70; f++ {
		require.NoError(t, c.ResizeSplit(env.ID, splitID, [2]float64{f, 100 - f}))
	}
	require.NoError(t, c.ResizeSplit(env.ID, splitID, [2]float64{70, 30}))
	c.EndResize(env.ID)

	assert.Equal(t, []float64{70, 30}, env.Tree.Sizes, "final ratio is authoritative")
	assert.Less(t, len(*got), 21, "notification bursts must be coalesced")
	last := (*got)[len(*got)-1]
	assert.Equal(t, LayoutResized, last.Kind)
}

func TestResizeBelowMinimumClamps(t *testing.T) {
	c, _ := newTestController()
	env := c.NewEnvironment("w")
	rootPane := env.Tree.ID
	_, err := c.OpenTab(env.ID, rootPane, layout.TabKindTerminal, "a", "")
	require.NoError(t, err)
	tabB, err := c.OpenTab(env.ID, rootPane, layout.TabKindTerminal, "b", "")
	require.NoError(t, err)
	c.BeginDrag(tabB.ID, rootPane, 1)
	require.NoError(t, c.CompleteDrag(env.ID, dragdrop.Snapshot{
		PointerX: 58, PointerY: 5,
		Regions: []dragdrop.Region{
			{Kind: dragdrop.TargetEdge, PaneID: rootPane, Edge: layout.EdgeRight,
				Bounds: dragdrop.Rect{X: 55, Y: 0, W: 5, H: 10}},
		},
	}))

	require.NoError(t, c.ResizeSplit(env.ID, env.Tree.ID, [2]float64{97, 3}))
	c.EndResize(env.ID)

	assert.Equal(t, []float64{90, 10}, env.Tree.Sizes)
}

func TestFocusNextPaneWraps(t *testing.T) {
	c, _ := newTestController()
	env := c.NewEnvironment("w")
	rootPane := env.Tree.ID
	_, err := c.OpenTab(env.ID, rootPane, layout.TabKindTerminal, "a", "")
	require.NoError(t, err)
	tabB, err := c.OpenTab(env.ID, rootPane, layout.TabKindTerminal, "b", "")
	require.NoError(t, err)
	c.BeginDrag(tabB.ID, rootPane, 1)
	require.NoError(t, c.CompleteDrag(env.ID, dragdrop.Snapshot{
		PointerX: 58, PointerY: 5,
		Regions: []dragdrop.Region{
			{Kind: dragdrop.TargetEdge, PaneID: rootPane, Edge: layout.EdgeRight,
				Bounds: dragdrop.Rect{X: 55, Y: 0, W: 5, H: 10}},
		},
	}))
	leaves := env.Tree.Leaves()
	require.Len(t, leaves, 2)
	require.NoError(t, c.SetActivePane(env.ID, leaves[0].ID))

	c.FocusNextPane(env.ID, 1)
	assert.Equal(t, leaves[1].ID, env.ActivePaneID)
	c.FocusNextPane(env.ID, 1)
	assert.Equal(t, leaves[0].ID, env.ActivePaneID, "focus wraps around")
	c.FocusNextPane(env.ID, -1)
	assert.Equal(t, leaves[1].ID, env.ActivePaneID)
}

func TestCloseEnvironmentDisposesItsSessions(t *testing.T) {
	c, engine := newTestController()
	env1 := c.NewEnvironment("one")
	env2 := c.NewEnvironment("two")
	tab1, err := c.OpenTab(env1.ID, env1.Tree.ID, layout.TabKindTerminal, "a", "")
	require.NoError(t, err)
	tab2, err := c.OpenTab(env2.ID, env2.Tree.ID, layout.TabKindTerminal, "x", "")
	require.NoError(t, err)

	require.NoError(t, c.CloseEnvironment(env1.ID))

	assert.Equal(t, 1, engine.sessions[tab1.ID].disposed)
	assert.Equal(t, 0, engine.sessions[tab2.ID].disposed)
	assert.Same(t, env2, c.ActiveEnvironment(), "active falls over to a surviving environment")
	assert.Len(t, c.Environments(), 1)
}

func TestActivateTabFocusesOwningPane(t *testing.T) {
	c, _ := newTestController()
	env := c.NewEnvironment("w")
	rootPane := env.Tree.ID
	tabA, err := c.OpenTab(env.ID, rootPane, layout.TabKindTerminal, "a", "")
	require.NoError(t, err)
	_, err = c.OpenTab(env.ID, rootPane, layout.TabKindTerminal, "b", "")
	require.NoError(t, err)

	require.NoError(t, c.ActivateTab(env.ID, tabA.ID))

	assert.Equal(t, tabA.ID, env.Tree.ActiveTabID)
	assert.Equal(t, rootPane, env.ActivePaneID)
}
