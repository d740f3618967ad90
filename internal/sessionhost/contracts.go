package sessionhost

// Contracts consumed from external collaborators. The registry owns session
// objects and render targets exclusively; it never inspects session content.

// SessionParams carries what an engine needs to create one session.
type SessionParams struct {
	EnvironmentID string
	TabID         string
	Title         string
	// Payload is the tab's kind-specific seed: a command line for terminal
	// tabs, an initial prompt for chat tabs.
	Payload string
	Cols    int
	Rows    int
}

// OutputFunc receives a session's raw output, push-style.
type OutputFunc func(p []byte)

// Session is the opaque long-lived object backing a tab's live content, e.g.
// a terminal emulator instance. The registry only ever creates and disposes
// sessions; everything else is driven by the UI layer.
type Session interface {
	// Write sends input bytes to the session.
	Write(p []byte) (int, error)
	// Resize adjusts the session's dimensions.
	Resize(cols, rows int) error
	// Dispose releases the session's backing resources. Idempotent.
	Dispose() error
}

// RenderTarget is a detachable handle session output renders into. Moving a
// tab re-parents its target rather than recreating it, which is what
// preserves scroll position, cursor and selection across moves.
type RenderTarget interface {
	// Attach parents the target under the given pane surface, detaching it
	// from any previous surface first. Redundant calls are no-ops.
	Attach(surfaceID string)
	// Detach removes the target from its current surface. Idempotent.
	Detach()
	// AttachedTo returns the current surface id, or "" when detached.
	AttachedTo() string
}

// SessionEngine creates session objects together with their render targets.
// Implemented by internal/term for real pty-backed terminals and by test
// fakes.
type SessionEngine interface {
	Create(params SessionParams, output OutputFunc) (Session, RenderTarget, error)
}
