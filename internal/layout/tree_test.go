package layout

import (
	"strings"
	"testing"
)

func TestValidateAcceptsWellFormedTree(t *testing.T) {
	root := split("s1", DirectionRow, 1,
		leaf("p1", "a"),
		split("s2", DirectionColumn, 2, leaf("p2", "b"), leaf("p3", "c")),
	)
	if err := root.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateRejectsViolations(t *testing.T) {
	tests := []struct {
		name string
		tree *Node
		want string
	}{
		{
			name: "active tab not in pane",
			tree: &Node{Kind: KindLeaf, ID: "p1", Tabs: []Tab{tab("a")}, ActiveTabID: "zz"},
			want: "not in pane",
		},
		{
			name: "missing active tab",
			tree: &Node{Kind: KindLeaf, ID: "p1", Tabs: []Tab{tab("a")}},
			want: "no active tab",
		},
		{
			name: "active tab on empty pane",
			tree: &Node{Kind: KindLeaf, ID: "p1", ActiveTabID: "a"},
			want: "empty pane",
		},
		{
			name: "sizes not summing to 100",
			tree: &Node{
				Kind: KindSplit, ID: "s1", Direction: DirectionRow, Depth: 1,
				Children: []*Node{leaf("p1", "a"), leaf("p2", "b")},
				Sizes:    []float64{60, 60},
			},
			want: "do not sum to 100",
		},
		{
			name: "empty leaf under split",
			tree: split("s1", DirectionRow, 1, leaf("p1", "a"), NewLeaf("p2")),
			want: "empty leaf child",
		},
		{
			name: "wrong depth",
			tree: split("s1", DirectionRow, 3, leaf("p1", "a"), leaf("p2", "b")),
			want: "depth",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.tree.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	root := split("s1", DirectionColumn, 1,
		leaf("p1", "a", "b"),
		leaf("p2", "c"),
	)

	data, err := root.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	got, err := TreeFromSnapshot(data)
	if err != nil {
		t.Fatalf("TreeFromSnapshot: %v", err)
	}
	if !Equal(root, got) {
		t.Fatalf("round-tripped tree differs:\n%s", data)
	}
}

func TestPaneForTab(t *testing.T) {
	root := split("s1", DirectionRow, 1, leaf("p1", "a"), leaf("p2", "b", "c"))

	owner := root.PaneForTab("c")
	if owner == nil || owner.ID != "p2" {
		t.Fatalf("expected p2, got %v", owner)
	}
	if root.PaneForTab("zz") != nil {
		t.Fatal("expected nil for unknown tab")
	}
}

func TestLeavesInDisplayOrder(t *testing.T) {
	root := split("s1", DirectionRow, 1,
		split("s2", DirectionColumn, 2, leaf("p1", "a"), leaf("p2", "b")),
		leaf("p3", "c"),
	)
	leaves := root.Leaves()
	if len(leaves) != 3 {
		t.Fatalf("expected 3 leaves, got %d", len(leaves))
	}
	for i, want := range []string{"p1", "p2", "p3"} {
		if leaves[i].ID != want {
			t.Fatalf("leaf %d: expected %s, got %s", i, want, leaves[i].ID)
		}
	}
}

func TestCopyOnWriteSharesUntouchedSubtrees(t *testing.T) {
	e := newTestEngine()
	untouched := leaf("p2", "b")
	root := split("s1", DirectionRow, 1, leaf("p1", "a"), untouched)

	next, err := e.AddTab(root, "p1", tab("x"))
	if err != nil {
		t.Fatalf("AddTab: %v", err)
	}
	if next == root {
		t.Fatal("expected a new root node")
	}
	if next.Children[1] != untouched {
		t.Fatal("expected the untouched sibling to be shared by reference")
	}
}
