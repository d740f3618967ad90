// Package term implements the pty-backed session engine. Each session-backed
// tab gets a real shell process on a pseudo-terminal; output is pushed to the
// registry's callback and mirrored into a bounded replay buffer so a freshly
// attached view can repaint without waiting for new output.
package term

import (
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"sync"

	"github.com/creack/pty"
	"golang.org/x/sync/errgroup"

	"github.com/workdeckhq/workdeck/internal/sessionhost"
)

// DefaultReplayLimit bounds the per-session replay buffer.
const DefaultReplayLimit = 256 * 1024

// Engine spawns pty-backed sessions. Implements sessionhost.SessionEngine.
type Engine struct {
	// Shell is the program run for terminal tabs without a payload.
	Shell string
	// ReplayLimit caps the replay buffer in bytes; 0 means
	// DefaultReplayLimit.
	ReplayLimit int
	// Env entries appended to the child process environment.
	Env []string
}

// NewEngine creates an Engine running the given shell. An empty shell falls
// back to $SHELL, then /bin/sh.
func NewEngine(shell string) *Engine {
	if shell == "" {
		shell = os.Getenv("SHELL")
	}
	if shell == "" {
		shell = "/bin/sh"
	}
	return &Engine{Shell: shell}
}

// Create starts the session's process on a fresh pty and begins pumping its
// output. The returned session owns the pty and the reader goroutine; Dispose
// reaps both.
func (e *Engine) Create(params sessionhost.SessionParams, output sessionhost.OutputFunc) (sessionhost.Session, sessionhost.RenderTarget, error) {
	cmd := e.command(params)
	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{
		Cols: uint16(params.Cols),
		Rows: uint16(params.Rows),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("start pty for tab %s: %w", params.TabID, err)
	}

	limit := e.ReplayLimit
	if limit <= 0 {
		limit = DefaultReplayLimit
	}
	s := &Session{
		tabID:  params.TabID,
		ptmx:   ptmx,
		cmd:    cmd,
		limit:  limit,
		output: output,
	}
	s.readers.Go(s.readLoop)

	log.Printf("[PTY] Started session for tab %s (pid %d)", params.TabID, cmd.Process.Pid)
	return s, &Surface{}, nil
}

func (e *Engine) command(params sessionhost.SessionParams) *exec.Cmd {
	var cmd *exec.Cmd
	if params.Payload != "" {
		// The payload is a full command line; run it through the shell so
		// pipes and expansions behave as typed.
		cmd = exec.Command(e.Shell, "-c", params.Payload)
	} else {
		cmd = exec.Command(e.Shell)
	}
	cmd.Env = append(os.Environ(),
		"TERM=xterm-256color",
		"COLORTERM=truecolor",
		fmt.Sprintf("WORKDECK_ENV=%s", params.EnvironmentID),
		fmt.Sprintf("WORKDECK_TAB=%s", params.TabID),
	)
	cmd.Env = append(cmd.Env, e.Env...)
	return cmd
}

// Session is one live pty-backed process. Implements sessionhost.Session.
type Session struct {
	tabID   string
	ptmx    *os.File
	cmd     *exec.Cmd
	readers errgroup.Group

	mu       sync.Mutex
	limit    int
	replay   []byte
	output   sessionhost.OutputFunc
	disposed bool
}

// Write sends input bytes to the process.
func (s *Session) Write(p []byte) (int, error) {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return 0, fmt.Errorf("write to disposed session %s", s.tabID)
	}
	s.mu.Unlock()
	return s.ptmx.Write(p)
}

// Resize adjusts the pty window size.
func (s *Session) Resize(cols, rows int) error {
	if err := pty.Setsize(s.ptmx, &pty.Winsize{Cols: uint16(cols), Rows: uint16(rows)}); err != nil {
		return fmt.Errorf("resize pty for tab %s: %w", s.tabID, err)
	}
	return nil
}

// Replay returns a copy of the buffered output, used to repaint a view that
// just attached.
func (s *Session) Replay() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]byte, len(s.replay))
	copy(out, s.replay)
	return out
}

// Dispose closes the pty, reaps the process and waits for the reader
// goroutine. Safe to call more than once.
func (s *Session) Dispose() error {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return nil
	}
	s.disposed = true
	s.mu.Unlock()

	// Closing the pty unblocks the reader; killing the process unblocks a
	// shell ignoring EOF.
	if err := s.ptmx.Close(); err != nil {
		log.Printf("[PTY] Close failed for tab %s: %v", s.tabID, err)
	}
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	_ = s.readers.Wait()
	if err := s.cmd.Wait(); err != nil {
		// Expected for killed processes; only worth logging at all because
		// an unexpected wait error can indicate a reaping bug.
		log.Printf("[PTY] Wait for tab %s: %v", s.tabID, err)
	}
	log.Printf("[PTY] Disposed session for tab %s", s.tabID)
	return nil
}

func (s *Session) readLoop() error {
	buf := make([]byte, 4096)
	for {
		n, err := s.ptmx.Read(buf)
		if n > 0 {
			s.append(buf[:n])
			if s.output != nil {
				s.output(buf[:n])
			}
		}
		if err != nil {
			// EOF and EIO both mean the process side is gone.
			if err != io.EOF {
				s.mu.Lock()
				disposed := s.disposed
				s.mu.Unlock()
				if !disposed {
					log.Printf("[PTY] Read ended for tab %s: %v", s.tabID, err)
				}
			}
			return nil
		}
	}
}

// append mirrors output into the replay buffer, trimming the oldest bytes
// once the limit is exceeded.
func (s *Session) append(p []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replay = append(s.replay, p...)
	if over := len(s.replay) - s.limit; over > 0 {
		s.replay = append(s.replay[:0], s.replay[over:]...)
	}
}

// Surface is the render target for pty sessions: a named slot in the UI's
// pane grid. Moving a tab re-parents the surface id; the session and its
// replay buffer never notice. Implements sessionhost.RenderTarget.
type Surface struct {
	mu      sync.Mutex
	surface string
}

func (t *Surface) Attach(surfaceID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.surface = surfaceID
}

func (t *Surface) Detach() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.surface = ""
}

func (t *Surface) AttachedTo() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.surface
}
