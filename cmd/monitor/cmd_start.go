package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ielts-monitor/monitor/internal/configfile"
	"github.com/ielts-monitor/monitor/internal/controlsocket"
	"github.com/ielts-monitor/monitor/internal/healthcheck"
	"github.com/ielts-monitor/monitor/internal/obslog"
	"github.com/ielts-monitor/monitor/internal/statusapi"
)

func newStartCmd() *cobra.Command {
	var daemon bool
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the monitor",
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = daemon // daemonization (fork+detach) is left to the OS service
			// manager (systemd/launchd) in production; --daemon is accepted
			// but has no effect, and the process stays in the foreground.
			return runStart(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&daemon, "daemon", false, "accepted for compatibility; has no effect (the monitor runs in the foreground)")
	return cmd
}

func runStart(ctx context.Context) error {
	application, err := buildApp(cfgPath)
	if err != nil {
		return err
	}

	sock, err := controlsocket.Listen(controlsocket.DefaultPath, controlHandler(application))
	if err != nil {
		return fmt.Errorf("starting control socket: %w", err)
	}
	defer sock.Close()
	go sock.Serve()

	watcher, err := configfile.NewWatcher(cfgPath)
	if err != nil {
		application.log.Warn("config-watch-unavailable", obslog.Fields{"error": err.Error()})
	} else {
		defer watcher.Close()
		go watchConfig(ctx, watcher, application)
	}

	if application.cfg.Server.HealthCheckPort > 0 {
		hc := healthcheck.New(fmt.Sprintf(":%d", application.cfg.Server.HealthCheckPort), application.cfg.BaseURL)
		hc.Handle("/status", statusapi.New(application.bus))
		go hc.ListenAndServe(ctx)
	}

	return application.controller.RunUntilSignal(ctx)
}

// watchConfig reloads cfgPath and calls Controller.Reconfigure whenever
// watcher reports a write/rename (spec.md §4.5: runtime reconfigure "...
// without losing tracker/notified state"). A reload that fails to parse
// or validate is logged and left in place; the running config is
// untouched until a valid file appears.
func watchConfig(ctx context.Context, watcher *configfile.Watcher, application *app) {
	events := watcher.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-events:
			if !ok {
				return
			}
			cfg, err := configfile.Load(cfgPath)
			if err != nil {
				application.log.Warn("config-reload-failed", obslog.Fields{"error": err.Error()})
				continue
			}
			if err := application.controller.Reconfigure(cfg); err != nil {
				application.log.Warn("config-reload-rejected", obslog.Fields{"error": err.Error()})
				continue
			}
			application.log.Info("config-reloaded", obslog.Fields{"path": cfgPath})
		}
	}
}

func controlHandler(application *app) controlsocket.Handler {
	return func(req controlsocket.Request) controlsocket.Response {
		switch req.Command {
		case "stop":
			if err := application.controller.Stop(); err != nil {
				return controlsocket.Response{OK: false, Message: err.Error()}
			}
			return controlsocket.Response{OK: true, State: string(application.controller.State())}
		case "pause":
			if err := application.controller.Pause(); err != nil {
				return controlsocket.Response{OK: false, Message: err.Error()}
			}
			return controlsocket.Response{OK: true, State: string(application.controller.State())}
		case "resume":
			if err := application.controller.Resume(context.Background()); err != nil {
				return controlsocket.Response{OK: false, Message: err.Error()}
			}
			return controlsocket.Response{OK: true, State: string(application.controller.State())}
		case "status":
			stats := application.tracker.Statistics()
			return controlsocket.Response{
				OK:      true,
				State:   string(application.controller.State()),
				Stats:   stats,
				Session: application.controller.Session(),
			}
		case "reconfigure":
			if err := application.controller.Reconfigure(req.Config); err != nil {
				return controlsocket.Response{OK: false, Message: err.Error()}
			}
			return controlsocket.Response{OK: true, State: string(application.controller.State())}
		default:
			return controlsocket.Response{OK: false, Message: "unknown command"}
		}
	}
}
