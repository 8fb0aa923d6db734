package stage

import (
	"fmt"
	"os/exec"
)

// Launcher starts one external browser process. Launches are fire and
// forget: the orchestrator never waits on or reaps the process, it finds
// the resulting windows by title instead.
type Launcher interface {
	Launch(argv []string) error
}

// ExecLauncher launches processes directly.
type ExecLauncher struct{}

// Launch starts argv detached. The child is released immediately so its
// lifetime is not tied to ours.
func (ExecLauncher) Launch(argv []string) error {
	if len(argv) == 0 {
		return fmt.Errorf("stage: empty launch command")
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("stage: failed to launch %s: %w", argv[0], err)
	}
	return cmd.Process.Release()
}
