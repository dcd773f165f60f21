// Command monitor is the CLI surface of spec.md §6: it binds flags to a
// Controller and formats output, containing no monitoring logic of its
// own. Grounded on the teacher's cmd/server/main.go wiring order (config
// load -> collaborators -> Controller -> signal-driven run), generalized
// from a single flag-parsed binary to a cobra command tree since spec.md
// names an explicit multi-command surface.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ielts-monitor/monitor/internal/configfile"
	"github.com/ielts-monitor/monitor/internal/controlsocket"
	"github.com/ielts-monitor/monitor/internal/domain"
)

var cfgPath string

func main() {
	root := &cobra.Command{
		Use:   "monitor",
		Short: "IELTS appointment monitor",
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", configfile.DefaultPath, "path to config file")

	root.AddCommand(
		newStartCmd(),
		newStopCmd(),
		newPauseCmd(),
		newResumeCmd(),
		newStatusCmd(),
		newConfigureCmd(),
		newLogsCmd(),
		newInspectCmd(),
		newAppointmentScanCmd(),
		newConfigValidateCmd(),
		newTelegramTestCmd(),
		newServerStatusCmd(),
		newClearCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func dialControlSocket(command string) (controlsocket.Response, error) {
	return controlsocket.Send(controlsocket.DefaultPath, command)
}

// dialControlSocketReconfigure pushes cfg to the running monitor's
// Controller.Reconfigure over the control socket (spec.md §4.5).
func dialControlSocketReconfigure(cfg domain.MonitorConfig) (controlsocket.Response, error) {
	return controlsocket.SendRequest(controlsocket.DefaultPath, controlsocket.Request{Command: "reconfigure", Config: cfg})
}
