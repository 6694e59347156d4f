package procscan

import (
	"context"
	"errors"
	"strings"

	gopsproc "github.com/shirou/gopsutil/v4/process"
)

// ErrUnavailable means no process-inspection capability is present.
// Matching degrades to all-pids-unknown; it is never fatal.
var ErrUnavailable = errors.New("process inspection unavailable")

// Record describes one live OS process as reported by the inspector.
// Exe and Cwd may be empty when the OS refuses to disclose them.
type Record struct {
	PID  int
	Name string
	Exe  string
	Cwd  string
}

// Inspector enumerates live OS processes. nameFilter, when non-empty, is a
// case-insensitive substring prefilter on the process name. It exists for
// efficiency only; callers must not rely on it for correctness.
type Inspector interface {
	Processes(ctx context.Context, nameFilter string) ([]Record, error)
}

// GopsInspector reads the live process table via gopsutil.
type GopsInspector struct{}

func (GopsInspector) Processes(ctx context.Context, nameFilter string) ([]Record, error) {
	procs, err := gopsproc.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	filter := strings.ToLower(nameFilter)
	out := make([]Record, 0, len(procs))
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		if filter != "" && !strings.Contains(strings.ToLower(name), filter) {
			continue
		}
		// exe/cwd are frequently denied for foreign processes; keep what we got
		exe, _ := p.ExeWithContext(ctx)
		cwd, _ := p.CwdWithContext(ctx)
		out = append(out, Record{
			PID:  int(p.Pid),
			Name: name,
			Exe:  exe,
			Cwd:  cwd,
		})
	}
	return out, nil
}

// Unavailable is the degraded inspector selected at startup when process
// inspection is disabled or unsupported. Every call reports ErrUnavailable.
type Unavailable struct{}

func (Unavailable) Processes(context.Context, string) ([]Record, error) {
	return nil, ErrUnavailable
}
