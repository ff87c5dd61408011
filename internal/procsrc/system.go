package procsrc

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/shirou/gopsutil/v4/process"
)

// commandTimeout bounds each focus or name command run.
const commandTimeout = 2 * time.Second

// System is the gopsutil-backed Source.
type System struct {
	focusCmd string
	nameCmd  string
	clock    quartz.Clock
	logger   *slog.Logger

	mu     sync.Mutex
	pid    int32
	since  time.Time
	titles map[int32]string
}

// Option configures a System.
type Option func(*System)

// WithFocusCommand sets a command that prints the focused process id,
// e.g. "xdotool getactivewindow getwindowpid". Empty disables focus tracking.
func WithFocusCommand(cmd string) Option {
	return func(s *System) { s.focusCmd = strings.TrimSpace(cmd) }
}

// WithNameCommand sets a command that prints the focused window title.
func WithNameCommand(cmd string) Option {
	return func(s *System) { s.nameCmd = strings.TrimSpace(cmd) }
}

// WithClock overrides the clock used for focus timestamps.
func WithClock(c quartz.Clock) Option {
	return func(s *System) { s.clock = c }
}

// WithLogger sets the logger for command failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *System) { s.logger = l }
}

// NewSystem returns a Source reading the local process table.
func NewSystem(opts ...Option) *System {
	s := &System{
		clock:  quartz.NewReal(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		titles: make(map[int32]string),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ActiveProcesses returns every process visible to the caller. A process
// that had focus keeps the title the name command printed for it; others are
// named after their executable.
func (s *System) ActiveProcesses(ctx context.Context) ([]Handle, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list processes: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	titles := make(map[int32]string, len(s.titles))
	handles := make([]Handle, 0, len(procs))
	for _, p := range procs {
		h := &proc{p: p}
		if title, ok := s.titles[p.Pid]; ok {
			h.name = title
			titles[p.Pid] = title
		}
		handles = append(handles, h)
	}
	s.titles = titles
	return handles, nil
}

// ActiveWindows returns the processes of the current user. Without a window
// system binding every such process is treated as owning a window, and
// onlyVisible has no effect. Where the platform has no uids all processes
// are returned.
func (s *System) ActiveWindows(ctx context.Context, _ bool) ([]Handle, error) {
	handles, err := s.ActiveProcesses(ctx)
	if err != nil {
		return nil, err
	}
	uid := os.Getuid()
	if uid < 0 {
		return handles, nil
	}
	owned := handles[:0]
	for _, h := range handles {
		if ownedBy(ctx, h.(*proc).p, uint32(uid)) {
			owned = append(owned, h)
		}
	}
	return owned, nil
}

// ownedBy reports whether the real uid of p is uid.
func ownedBy(ctx context.Context, p *process.Process, uid uint32) bool {
	uids, err := p.UidsWithContext(ctx)
	return err == nil && len(uids) > 0 && uids[0] == uid
}

// FocusedWindow runs the focus command and wraps the printed pid. Command
// failures yield NoProcess.
func (s *System) FocusedWindow(ctx context.Context) (Handle, error) {
	if s.focusCmd == "" {
		return NoProcess, nil
	}
	out, err := s.run(ctx, s.focusCmd)
	if err != nil {
		s.logger.Debug("focus command failed", "command", s.focusCmd, "error", err)
		s.observe(NoProcess.PID())
		return NoProcess, nil
	}
	pid, err := strconv.ParseInt(strings.TrimSpace(out), 10, 32)
	if err != nil || pid <= 0 {
		s.logger.Debug("focus command printed no pid", "command", s.focusCmd, "output", out)
		s.observe(NoProcess.PID())
		return NoProcess, nil
	}

	p, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		s.observe(NoProcess.PID())
		return NoProcess, nil
	}

	h := &proc{p: p, since: s.observe(int32(pid))}
	if s.nameCmd != "" {
		if name, err := s.run(ctx, s.nameCmd); err == nil {
			h.name = strings.TrimSpace(name)
		}
	}
	if h.name != "" {
		s.mu.Lock()
		s.titles[h.p.Pid] = h.name
		s.mu.Unlock()
	}
	return h, nil
}

// observe records the focused pid and returns when it gained focus. The
// timestamp only resets when the pid changes; losing focus counts as a change.
func (s *System) observe(pid int32) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pid != s.pid || s.since.IsZero() {
		s.pid = pid
		s.since = s.clock.Now("procsrc", "focus")
	}
	return s.since
}

func (s *System) run(ctx context.Context, command string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	out, err := buildCommand(ctx, command).Output()
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// buildCommand avoids a shell unless the command uses shell syntax.
func buildCommand(ctx context.Context, command string) *exec.Cmd {
	if strings.ContainsAny(command, "|&;<>*?`$\"'(){}[]~") {
		return shellCommand(ctx, command)
	}
	parts := strings.Fields(command)
	// #nosec G204
	return exec.CommandContext(ctx, parts[0], parts[1:]...)
}

// proc adapts a gopsutil process to Handle.
type proc struct {
	p     *process.Process
	name  string
	since time.Time
}

func (h *proc) PID() int32 { return h.p.Pid }

func (h *proc) Exists() bool {
	ok, err := process.PidExists(h.p.Pid)
	return err == nil && ok
}

// WindowName falls back to the executable name when no title is known.
func (h *proc) WindowName() string {
	if h.name != "" {
		return h.name
	}
	name, err := h.p.Name()
	if err != nil {
		return ""
	}
	return name
}

func (h *proc) FullPath() string {
	exe, err := h.p.Exe()
	if err != nil {
		return ""
	}
	return exe
}

func (h *proc) StartTime() time.Time {
	ms, err := h.p.CreateTime()
	if err != nil || ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

func (h *proc) FocusedSince() time.Time {
	if !h.since.IsZero() {
		return h.since
	}
	return h.StartTime()
}
