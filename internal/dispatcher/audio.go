package dispatcher

import (
	"context"
	"fmt"
	"runtime"

	"github.com/ielts-monitor/monitor/internal/domain"
)

// AudioChannel plays a system alert sound. Like DesktopChannel, this has
// no corpus library to lean on and shells out directly.
type AudioChannel struct {
	soundPath  string
	runCommand func(ctx context.Context, name string, args ...string) error
}

// NewAudioChannel returns an AudioChannel. soundPath is only consulted on
// platforms (linux, windows) that take an explicit sound file; macOS uses
// its builtin alert sound via afplay when soundPath is empty.
func NewAudioChannel(soundPath string) *AudioChannel {
	return &AudioChannel{soundPath: soundPath, runCommand: runCommand}
}

func (c *AudioChannel) Name() string { return "audio" }

func (c *AudioChannel) Deliver(ctx context.Context, slots []domain.Appointment) error {
	switch runtime.GOOS {
	case "darwin":
		path := c.soundPath
		if path == "" {
			path = "/System/Library/Sounds/Glass.aiff"
		}
		return c.runCommand(ctx, "afplay", path)
	case "linux":
		path := c.soundPath
		if path == "" {
			path = "/usr/share/sounds/freedesktop/stereo/complete.oga"
		}
		return c.runCommand(ctx, "paplay", path)
	case "windows":
		return c.runCommand(ctx, "powershell", "-Command", "[console]::beep(1000,400)")
	default:
		return fmt.Errorf("audio notifications unsupported on %s", runtime.GOOS)
	}
}
