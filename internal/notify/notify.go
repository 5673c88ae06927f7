// Package notify implements C10, the desktop-notification collaborator.
// Every notification is always logged; notify-send is additionally invoked
// best-effort when a graphical session appears to be present, matching
// spec.md §1's framing of desktop-notification invocation as an external
// collaborator specified only at its interface.
package notify

import (
	"os"
	"os/exec"
	"time"

	"github.com/piri-wm/piri/internal/logging"
)

// Notify logs summary/body and, when a graphical session is detected and
// notify-send is on $PATH, fires a best-effort desktop notification. It
// never blocks the caller for more than a moment: the external command is
// given a short timeout and its failure is swallowed (this is UI sugar,
// not a control-flow signal).
func Notify(summary, body string) {
	logging.Infof("notify: %s: %s", summary, body)
	if !graphicalSession() {
		return
	}
	path, err := exec.LookPath("notify-send")
	if err != nil {
		return
	}
	cmd := exec.Command(path, summary, body)
	_ = cmd.Start()
	go func() {
		t := time.AfterFunc(3*time.Second, func() {
			if cmd.Process != nil {
				_ = cmd.Process.Kill()
			}
		})
		_ = cmd.Wait()
		t.Stop()
	}()
}

func graphicalSession() bool {
	return os.Getenv("WAYLAND_DISPLAY") != "" || os.Getenv("DISPLAY") != ""
}
