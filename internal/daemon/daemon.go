// Package daemon implements C9: it wires the compositor client, event pump,
// plugin manager, client IPC server, and config watcher together, and runs
// the main select loop until a shutdown signal arrives.
package daemon

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/piri-wm/piri/internal/compositor"
	"github.com/piri-wm/piri/internal/confwatch"
	"github.com/piri-wm/piri/internal/config"
	"github.com/piri-wm/piri/internal/ipc"
	"github.com/piri-wm/piri/internal/logging"
	"github.com/piri-wm/piri/internal/manager"
	"github.com/piri-wm/piri/internal/match"
	"github.com/piri-wm/piri/internal/plugin"
	"github.com/piri-wm/piri/internal/pump"

	_ "github.com/piri-wm/piri/internal/plugins/empty"
	_ "github.com/piri-wm/piri/internal/plugins/scratchpad"
	_ "github.com/piri-wm/piri/internal/plugins/singleton"
	_ "github.com/piri-wm/piri/internal/plugins/swallow"
	_ "github.com/piri-wm/piri/internal/plugins/windoworder"
	_ "github.com/piri-wm/piri/internal/plugins/windowrule"
)

// Daemon owns the full set of long-running collaborators for one run of
// `piri daemon`.
type Daemon struct {
	configPath string

	compositor *compositor.Client
	matches    *match.Cache
	mgr        *manager.Manager
	pump       *pump.Pump
	ipcServer  *ipc.Server
	watcher    *confwatch.Watcher
}

// New wires up a Daemon from a loaded config and the resolved config file
// path (so the config watcher can re-read the same file the daemon started
// from).
func New(configPath string, f *config.File) *Daemon {
	matches := match.NewCache()
	client := compositor.New(f.SocketPath())
	mgr := manager.New(plugin.Deps{Compositor: client, Matches: matches})
	mgr.Init(f)

	d := &Daemon{
		configPath: configPath,
		compositor: client,
		matches:    matches,
		mgr:        mgr,
		pump:       pump.New(f.SocketPath()),
	}
	d.ipcServer = ipc.New(config.ClientSocketPath(), mgr, d.reload)
	d.watcher = confwatch.New(configPath, d.applyReload)
	return d
}

// Run blocks until a shutdown signal (SIGINT/SIGTERM, or an IPC Shutdown
// request) arrives, then tears every collaborator down (spec §5
// "Cancellation and timeouts").
func (d *Daemon) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go d.pump.Run(ctx)
	go func() {
		if err := d.ipcServer.Serve(ctx); err != nil {
			logging.Errorf("daemon: ipc server: %s", err)
		}
	}()
	go func() {
		if err := d.watcher.Run(ctx); err != nil {
			logging.Errorf("daemon: config watcher: %s", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			logging.Infof("daemon: shutting down")
			_ = d.compositor.Close()
			return nil
		case <-d.ipcServer.Shutdown():
			logging.Infof("daemon: shutdown requested over ipc")
			_ = d.compositor.Close()
			return nil
		case ev, ok := <-d.pump.Events:
			if !ok {
				return nil
			}
			d.mgr.Dispatch(ctx, ev)
		}
	}
}

// reload is invoked synchronously by the ipc server for an explicit Reload
// request; it reparses the same file the watcher would and applies it.
func (d *Daemon) reload() {
	f, err := config.Load(d.configPath)
	if err != nil {
		logging.Errorf("daemon: manual reload of %s failed: %s", d.configPath, err)
		return
	}
	d.applyReload(f)
}

func (d *Daemon) applyReload(f *config.File) {
	d.matches.Clear()
	d.mgr.Reload(f)
}
