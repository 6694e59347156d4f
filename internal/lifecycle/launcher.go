package lifecycle

import (
	"fmt"
	"os"
	"os/exec"
)

// Launcher starts a profile executable detached from the caller.
type Launcher interface {
	Launch(exe, workdir string) (pid int, err error)
}

// osLauncher is the real launch capability. The child gets its own session
// (or process group on Windows) so it survives supervisor exit, and its
// stdio is pointed at the null device; detached GUI instances own their own
// logging.
type osLauncher struct{}

func (osLauncher) Launch(exe, workdir string) (int, error) {
	fi, err := os.Stat(exe)
	if err != nil || !fi.Mode().IsRegular() {
		return 0, fmt.Errorf("executable missing: %s", exe)
	}
	cmd := exec.Command(exe) // #nosec G204 -- exe comes from catalog discovery, not user input
	cmd.Dir = workdir
	null, _ := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	cmd.Stdout = null
	cmd.Stderr = null
	cmd.SysProcAttr = detachAttrs()
	if err := cmd.Start(); err != nil {
		return 0, err
	}
	pid := cmd.Process.Pid
	// reap in the background; the exit status of a detached instance is not
	// ours to interpret, but an unreaped child would linger as a zombie
	go func() { _ = cmd.Wait() }()
	return pid, nil
}
