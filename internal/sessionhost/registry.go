// Package sessionhost keeps long-lived session objects alive independent of
// their tab's position in the layout tree. Panes hold only tab ids; the
// registry owns the session object and render target keyed by (environment,
// tab), so structural changes re-home rendered output without object churn.
package sessionhost

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/workdeckhq/workdeck/internal/layout"
)

// Key identifies one hosted session.
type Key struct {
	EnvironmentID string
	TabID         string
}

// Record tracks one hosted session. When creation failed, Session and Target
// are nil and Err holds the failure; the tab shows an error state and the
// creation can be retried without touching the rest of the layout.
type Record struct {
	Key       Key
	Session   Session
	Target    RenderTarget
	Err       error
	CreatedAt time.Time
}

// Failed reports whether the record is in the per-tab error state.
func (r *Record) Failed() bool { return r.Err != nil }

// Registry owns all session records. Safe for concurrent readers; mutations
// are serialized internally, though the controller already calls Reconcile
// and Rehome from a single goroutine.
type Registry struct {
	mu      sync.RWMutex
	engine  SessionEngine
	records map[Key]*Record

	// defaultCols/Rows seed new sessions before the first real resize.
	defaultCols int
	defaultRows int

	// OnOutput, when set before the first Reconcile, receives every
	// session's raw output tagged with its key. The UI layer uses it to
	// schedule redraws.
	OnOutput func(key Key, p []byte)
}

// NewRegistry creates a Registry backed by the given session engine.
func NewRegistry(engine SessionEngine) *Registry {
	return &Registry{
		engine:      engine,
		records:     make(map[Key]*Record),
		defaultCols: 80,
		defaultRows: 24,
	}
}

// Reconcile aligns the registry's record set for one environment with the
// tabs currently present in that environment's tree. Session-bearing tabs
// without a record get one created exactly once; records whose tab is gone
// are disposed exactly once. Creation failures are scoped to their tab: the
// record is kept in the error state and the rest of the pass proceeds.
// Idempotent, and never touches other environments' records.
func (reg *Registry) Reconcile(environmentID string, tabs []layout.Tab) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	present := make(map[string]layout.Tab, len(tabs))
	for _, tab := range tabs {
		if tab.Kind.SessionBacked() {
			present[tab.ID] = tab
		}
	}

	// Dispose records whose tab left the tree.
	for key, rec := range reg.records {
		if key.EnvironmentID != environmentID {
			continue
		}
		if _, ok := present[key.TabID]; ok {
			continue
		}
		reg.disposeLocked(key, rec)
	}

	// Create records for newly present tabs.
	for tabID, tab := range present {
		key := Key{EnvironmentID: environmentID, TabID: tabID}
		if _, ok := reg.records[key]; ok {
			continue
		}
		reg.createLocked(key, tab)
	}
}

// createLocked allocates the session and target for key. On failure the
// record is stored in the error state rather than aborting the pass.
func (reg *Registry) createLocked(key Key, tab layout.Tab) {
	rec := &Record{Key: key, CreatedAt: time.Now()}
	params := SessionParams{
		EnvironmentID: key.EnvironmentID,
		TabID:         key.TabID,
		Title:         tab.Title,
		Payload:       tab.Payload,
		Cols:          reg.defaultCols,
		Rows:          reg.defaultRows,
	}
	var output OutputFunc
	if reg.OnOutput != nil {
		k := key
		output = func(p []byte) { reg.OnOutput(k, p) }
	}
	session, target, err := reg.engine.Create(params, output)
	if err != nil {
		rec.Err = fmt.Errorf("create session for tab %s: %w", key.TabID, err)
		log.Printf("[REGISTRY] Session creation failed for env=%s tab=%s: %v", key.EnvironmentID, key.TabID, err)
	} else {
		rec.Session = session
		rec.Target = target
	}
	reg.records[key] = rec
}

func (reg *Registry) disposeLocked(key Key, rec *Record) {
	if rec.Target != nil {
		rec.Target.Detach()
	}
	if rec.Session != nil {
		if err := rec.Session.Dispose(); err != nil {
			log.Printf("[REGISTRY] Dispose failed for env=%s tab=%s: %v", key.EnvironmentID, key.TabID, err)
		}
	}
	delete(reg.records, key)
}

// Retry re-attempts creation for a record in the error state. Returns the
// refreshed record, or an error if the key is unknown or not failed.
func (reg *Registry) Retry(environmentID, tabID string, tab layout.Tab) (*Record, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	key := Key{EnvironmentID: environmentID, TabID: tabID}
	rec, ok := reg.records[key]
	if !ok {
		return nil, fmt.Errorf("retry: no record for env=%s tab=%s", environmentID, tabID)
	}
	if !rec.Failed() {
		return rec, nil
	}
	reg.createLocked(key, tab)
	return reg.records[key], nil
}

// Rehome walks every tracked record of the environment and attaches its
// render target under the pane that currently owns the tab in the given
// tree. Targets are only re-parented, never recreated; redundant calls are
// no-ops. Tabs absent from the tree are left alone — Reconcile owns their
// lifecycle.
func (reg *Registry) Rehome(environmentID string, tree *layout.Node) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	for key, rec := range reg.records {
		if key.EnvironmentID != environmentID || rec.Target == nil {
			continue
		}
		pane := tree.PaneForTab(key.TabID)
		if pane == nil {
			continue
		}
		if rec.Target.AttachedTo() == pane.ID {
			continue
		}
		rec.Target.Detach()
		rec.Target.Attach(pane.ID)
	}
}

// Lookup returns the record for (environment, tab), if tracked.
func (reg *Registry) Lookup(environmentID, tabID string) (*Record, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	rec, ok := reg.records[Key{EnvironmentID: environmentID, TabID: tabID}]
	return rec, ok
}

// HasSession reports whether a live (non-failed) session exists for the key.
func (reg *Registry) HasSession(environmentID, tabID string) bool {
	rec, ok := reg.Lookup(environmentID, tabID)
	return ok && !rec.Failed()
}

// EnvironmentRecords returns the records tracked for one environment. The
// global render pass iterates all sessions but must filter by environment
// before producing output for a workspace view; this is that filter.
func (reg *Registry) EnvironmentRecords(environmentID string) []*Record {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	var recs []*Record
	for key, rec := range reg.records {
		if key.EnvironmentID == environmentID {
			recs = append(recs, rec)
		}
	}
	return recs
}

// Len returns the total number of tracked records across environments.
func (reg *Registry) Len() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.records)
}

// CloseEnvironment disposes every record belonging to the environment. Used
// when an environment is torn down entirely.
func (reg *Registry) CloseEnvironment(environmentID string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	for key, rec := range reg.records {
		if key.EnvironmentID == environmentID {
			reg.disposeLocked(key, rec)
		}
	}
}

// Close disposes every record. Called on shutdown.
func (reg *Registry) Close() {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	for key, rec := range reg.records {
		reg.disposeLocked(key, rec)
	}
}
