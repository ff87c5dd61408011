// Package procsrc snapshots running processes and the focused window.
//
// Handles never return errors: a process that vanished or cannot be
// inspected reports Exists() == false and empty values, and callers filter it
// out before recording.
package procsrc

import (
	"context"
	"time"
)

// Handle is a point-in-time view of one process.
type Handle interface {
	PID() int32
	Exists() bool
	WindowName() string
	FullPath() string
	StartTime() time.Time
	// FocusedSince is when the process gained focus. For handles that were
	// not returned by FocusedWindow it equals StartTime.
	FocusedSince() time.Time
}

// Source enumerates processes.
type Source interface {
	ActiveProcesses(ctx context.Context) ([]Handle, error)
	// ActiveWindows returns processes owning a window. onlyVisible limits
	// the result to visible windows where the platform can tell.
	ActiveWindows(ctx context.Context, onlyVisible bool) ([]Handle, error)
	// FocusedWindow returns the focused process or NoProcess.
	FocusedWindow(ctx context.Context) (Handle, error)
}

// NoProcess is returned when nothing is focused or focus cannot be resolved.
var NoProcess Handle = noProcess{}

type noProcess struct{}

func (noProcess) PID() int32              { return -1 }
func (noProcess) Exists() bool            { return false }
func (noProcess) WindowName() string      { return "" }
func (noProcess) FullPath() string        { return "" }
func (noProcess) StartTime() time.Time    { return time.Time{} }
func (noProcess) FocusedSince() time.Time { return time.Time{} }
