package dispatcher

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"

	"github.com/ielts-monitor/monitor/internal/domain"
)

// DesktopChannel shows a host OS notification. No notification library
// exists anywhere in the retrieved corpus, so this shells out to the
// platform-native command directly, the way the teacher shells out to
// git and tmux rather than linking a library for either.
type DesktopChannel struct {
	// runCommand is overridable in tests.
	runCommand func(ctx context.Context, name string, args ...string) error
}

// NewDesktopChannel returns a DesktopChannel for the current platform.
func NewDesktopChannel() *DesktopChannel {
	return &DesktopChannel{runCommand: runCommand}
}

func (c *DesktopChannel) Name() string { return "desktop" }

func (c *DesktopChannel) Deliver(ctx context.Context, slots []domain.Appointment) error {
	title := "IELTS appointment available"
	body := fmt.Sprintf("%d slot(s) opened up", len(slots))

	switch runtime.GOOS {
	case "darwin":
		script := fmt.Sprintf("display notification %q with title %q", body, title)
		return c.runCommand(ctx, "osascript", "-e", script)
	case "linux":
		return c.runCommand(ctx, "notify-send", title, body)
	case "windows":
		ps := fmt.Sprintf(`[reflection.assembly]::loadwithpartialname('System.Windows.Forms');
[System.Windows.Forms.MessageBox]::Show('%s','%s')`, body, title)
		return c.runCommand(ctx, "powershell", "-Command", ps)
	default:
		return fmt.Errorf("desktop notifications unsupported on %s", runtime.GOOS)
	}
}

func runCommand(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.Run()
}
