package lifecycle

import (
	"context"
	"errors"
	"os"
	"syscall"
	"time"

	gopsproc "github.com/shirou/gopsutil/v4/process"
)

// Terminate/Kill reason codes at the OS-call boundary.
var (
	// ErrNotFound means the target process no longer exists. Callers treat
	// it as success (already gone).
	ErrNotFound = errors.New("process not found")
	// ErrAccessDenied means insufficient privilege to signal the target.
	ErrAccessDenied = errors.New("access denied")
)

// Terminator is the process-termination capability: a graceful stop
// request, a forceful kill, and a bounded wait for the pid to disappear.
// The pids involved are never this process's children, so exec.Cmd.Wait is
// unusable; implementations must work from the pid alone.
type Terminator interface {
	Terminate(ctx context.Context, pid int) error
	Kill(ctx context.Context, pid int) error
	WaitGone(ctx context.Context, pid int, timeout time.Duration) bool
}

// gopsTerminator signals foreign processes via gopsutil.
type gopsTerminator struct{}

func (gopsTerminator) Terminate(ctx context.Context, pid int) error {
	p, err := gopsproc.NewProcessWithContext(ctx, int32(pid)) // #nosec G115 -- pids fit in int32
	if err != nil {
		return mapTermErr(err)
	}
	return mapTermErr(p.TerminateWithContext(ctx))
}

func (gopsTerminator) Kill(ctx context.Context, pid int) error {
	p, err := gopsproc.NewProcessWithContext(ctx, int32(pid)) // #nosec G115
	if err != nil {
		return mapTermErr(err)
	}
	return mapTermErr(p.KillWithContext(ctx))
}

// WaitGone polls pid existence until timeout. Returns true once the pid has
// disappeared from the process table.
func (gopsTerminator) WaitGone(ctx context.Context, pid int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		exists, err := gopsproc.PidExistsWithContext(ctx, int32(pid)) // #nosec G115
		if err != nil || !exists {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// mapTermErr translates OS and gopsutil errors into the reason codes the
// controller understands.
func mapTermErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gopsproc.ErrorProcessNotRunning),
		errors.Is(err, syscall.ESRCH),
		errors.Is(err, os.ErrProcessDone):
		return ErrNotFound
	case errors.Is(err, syscall.EPERM), errors.Is(err, os.ErrPermission):
		return ErrAccessDenied
	default:
		return err
	}
}
