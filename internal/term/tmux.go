package term

import (
	"os"
	"os/exec"
)

// IsTmux reports whether the process is running inside a tmux session.
func IsTmux() bool {
	_, ok := os.LookupEnv("TMUX")
	return ok
}

// EnsureTmuxPassthrough turns on tmux's allow-passthrough option for the
// current pane only (best-effort; a missing tmux binary or an error from
// the command is silently ignored, matching the original's posture).
func EnsureTmuxPassthrough() {
	_ = exec.Command("tmux", "set-option", "-pq", "allow-passthrough", "on").Run()
}
