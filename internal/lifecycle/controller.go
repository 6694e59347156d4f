package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/loykin/herdsman/internal/catalog"
	"github.com/loykin/herdsman/internal/metrics"
)

// Defaults for termination escalation and batch launch, matching the
// documented contract: graceful wait 4s, post-kill wait 5s, 0.6s settle
// between terminate and relaunch, at most 3 launches in flight.
const (
	DefaultGracefulWait = 4 * time.Second
	DefaultKillWait     = 5 * time.Second
	DefaultSettleDelay  = 600 * time.Millisecond
	DefaultMaxParallel  = 3
)

// Result is the outcome of one lifecycle operation. Failures are reported,
// never raised; batch operations isolate them per item.
type Result struct {
	OK  bool   `json:"ok"`
	Msg string `json:"msg"`
}

// ProfileResult pairs a Result with the profile it belongs to.
type ProfileResult struct {
	Key  string `json:"key"`
	Name string `json:"name"`
	Result
}

// Controller executes launch, terminate, restart and batch operations.
// It never writes profile pids; the next applied snapshot is authoritative
// for observable state, so between a successful Open and the next scan the
// profile is still reported as stopped (a bounded staleness window of at
// most one scan interval).
type Controller struct {
	launcher Launcher
	term     Terminator
	logger   *slog.Logger

	GracefulWait time.Duration
	KillWait     time.Duration
	SettleDelay  time.Duration
}

// New builds a controller with the OS-backed launch and terminate
// capabilities.
func New(logger *slog.Logger) *Controller {
	return NewWith(osLauncher{}, gopsTerminator{}, logger)
}

// NewWith injects the capabilities explicitly; tests use instrumented fakes.
func NewWith(l Launcher, t Terminator, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		launcher:     l,
		term:         t,
		logger:       logger,
		GracefulWait: DefaultGracefulWait,
		KillWait:     DefaultKillWait,
		SettleDelay:  DefaultSettleDelay,
	}
}

// Open launches the profile's executable with the profile folder as working
// directory, detached from the controller's own process group so the new
// process outlives the supervisor.
func (c *Controller) Open(p catalog.Profile) Result {
	pid, err := c.launcher.Launch(p.Exe, p.Dir)
	if err != nil {
		metrics.IncLaunch("error")
		c.logger.Warn("launch failed", "name", p.Name, "exe", p.Exe, "error", err)
		return Result{OK: false, Msg: fmt.Sprintf("launch failed: %v", err)}
	}
	metrics.IncLaunch("ok")
	c.logger.Info("launched", "name", p.Name, "pid", pid)
	return Result{OK: true, Msg: fmt.Sprintf("launched pid %d", pid)}
}

// Terminate stops the process with the given pid. When force is false it
// sends a graceful stop request and waits up to GracefulWait, escalating to
// a forceful kill with a KillWait bound if the process is still alive.
// "Not found" means the process is already gone and counts as success.
// "Access denied" is a reported failure; the process is presumed
// possibly-still-running until the next scan says otherwise.
func (c *Controller) Terminate(ctx context.Context, pid int, force bool) Result {
	mode := "graceful"
	if force {
		mode = "force"
	}
	res := c.terminate(ctx, pid, force)
	outcome := "ok"
	if !res.OK {
		outcome = "error"
	}
	metrics.IncTermination(mode, outcome)
	if res.OK {
		c.logger.Info("terminated", "pid", pid, "mode", mode, "msg", res.Msg)
	} else {
		c.logger.Warn("terminate failed", "pid", pid, "mode", mode, "msg", res.Msg)
	}
	return res
}

func (c *Controller) terminate(ctx context.Context, pid int, force bool) Result {
	if !force {
		switch err := c.term.Terminate(ctx, pid); {
		case err == nil:
		case errors.Is(err, ErrNotFound):
			return Result{OK: true, Msg: fmt.Sprintf("pid %d already gone", pid)}
		case errors.Is(err, ErrAccessDenied):
			return Result{OK: false, Msg: fmt.Sprintf("terminate pid %d: access denied", pid)}
		default:
			return Result{OK: false, Msg: fmt.Sprintf("terminate pid %d: %v", pid, err)}
		}
		if c.term.WaitGone(ctx, pid, c.GracefulWait) {
			return Result{OK: true, Msg: fmt.Sprintf("terminated pid %d", pid)}
		}
		// still alive after the graceful window; escalate
	}
	switch err := c.term.Kill(ctx, pid); {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		return Result{OK: true, Msg: fmt.Sprintf("pid %d already gone", pid)}
	case errors.Is(err, ErrAccessDenied):
		return Result{OK: false, Msg: fmt.Sprintf("kill pid %d: access denied", pid)}
	default:
		return Result{OK: false, Msg: fmt.Sprintf("kill pid %d: %v", pid, err)}
	}
	if c.term.WaitGone(ctx, pid, c.KillWait) {
		return Result{OK: true, Msg: fmt.Sprintf("killed pid %d", pid)}
	}
	return Result{OK: false, Msg: fmt.Sprintf("pid %d still running after kill", pid)}
}

// Restart terminates the profile's known pid (graceful first), waits the
// settle delay so the exiting and new instance do not contend for the
// profile folder, then launches again. The launch happens unconditionally,
// even when the preceding terminate reported a failure.
func (c *Controller) Restart(ctx context.Context, p catalog.Profile) Result {
	metrics.IncRestart()
	var termMsg string
	if p.PID != 0 {
		tr := c.Terminate(ctx, p.PID, false)
		termMsg = tr.Msg
		select {
		case <-ctx.Done():
		case <-time.After(c.SettleDelay):
		}
	}
	res := c.Open(p)
	if termMsg != "" {
		res.Msg = termMsg + "; " + res.Msg
	}
	return res
}

// OpenAll launches all profiles through a worker pool bounded by
// maxParallel (unbounded concurrency is rejected; values below 1 fall back
// to the default). One failure never aborts the others. Results arrive in
// completion order, not submission order.
func (c *Controller) OpenAll(ctx context.Context, profiles []catalog.Profile, maxParallel int) []ProfileResult {
	if maxParallel < 1 {
		maxParallel = DefaultMaxParallel
	}
	jobs := make(chan catalog.Profile)
	results := make(chan ProfileResult, len(profiles))
	var wg sync.WaitGroup
	for i := 0; i < maxParallel; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range jobs {
				results <- ProfileResult{Key: p.Key, Name: p.Name, Result: c.Open(p)}
			}
		}()
	}
	for _, p := range profiles {
		select {
		case jobs <- p:
		case <-ctx.Done():
			// stop feeding; in-flight launches still report
		}
		if ctx.Err() != nil {
			break
		}
	}
	close(jobs)
	wg.Wait()
	close(results)
	out := make([]ProfileResult, 0, len(profiles))
	for r := range results {
		out = append(out, r)
	}
	return out
}

// KillAll terminates every profile with a known pid and reports each
// outcome. Confirmation gates belong to the caller; this is the
// pre-confirmed batch entry point.
func (c *Controller) KillAll(ctx context.Context, profiles []catalog.Profile) []ProfileResult {
	out := make([]ProfileResult, 0, len(profiles))
	for _, p := range profiles {
		if p.PID == 0 {
			continue
		}
		out = append(out, ProfileResult{Key: p.Key, Name: p.Name, Result: c.Terminate(ctx, p.PID, false)})
	}
	return out
}
