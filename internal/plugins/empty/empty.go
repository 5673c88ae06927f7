// Package empty implements P4, the empty-workspace trigger (spec §4.4): it
// runs a configured command the moment a workspace becomes focused while
// holding no windows.
package empty

import (
	"context"
	"os/exec"
	"strconv"
	"sync"

	"github.com/piri-wm/piri/internal/compositor"
	"github.com/piri-wm/piri/internal/config"
	"github.com/piri-wm/piri/internal/ipcproto"
	"github.com/piri-wm/piri/internal/logging"
	"github.com/piri-wm/piri/internal/plugin"
)

func init() {
	plugin.Register("empty", New)
}

// Plugin implements plugin.Policy for the empty-workspace trigger.
type Plugin struct {
	deps plugin.Deps

	mu       sync.Mutex
	commands map[string]string // keyed by workspace name or idx-as-string
}

// New constructs the plugin from [empty.*] (spec §6).
func New(deps plugin.Deps, f *config.File) (plugin.Policy, error) {
	p := &Plugin{deps: deps}
	_ = p.UpdateConfig(f)
	return p, nil
}

func (p *Plugin) Name() string { return "empty" }

func (p *Plugin) IsInterestedIn(ev compositor.Event) bool {
	return ev.Kind == compositor.EventWorkspaceActivated
}

func (p *Plugin) UpdateConfig(f *config.File) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	commands := make(map[string]string, len(f.Empty))
	for name, e := range f.Empty {
		commands[name] = e.Command
	}
	p.commands = commands
	return nil
}

func (p *Plugin) HandleEvent(ctx context.Context, ev compositor.Event) error {
	if !ev.Focused {
		return nil
	}
	workspaces, err := p.deps.Compositor.Workspaces(ctx)
	if err != nil {
		return err
	}
	var ws compositor.Workspace
	found := false
	for _, w := range workspaces {
		if w.ID == ev.WorkspaceID {
			ws, found = w, true
			break
		}
	}
	if !found {
		return nil
	}
	empty, err := p.isEmpty(ctx, ws)
	if err != nil {
		return err
	}
	if !empty {
		return nil
	}

	p.mu.Lock()
	command, ok := lookup(p.commands, ws)
	p.mu.Unlock()
	if !ok || command == "" {
		return nil
	}
	if err := runShell(command); err != nil {
		logging.Warnf("empty: command for workspace %d failed: %s", ws.ID, err)
	}
	return nil
}

// isEmpty reports whether ws holds no windows: it has no active_window_id,
// and the full window snapshot confirms no window references its id (spec
// §4.4).
func (p *Plugin) isEmpty(ctx context.Context, ws compositor.Workspace) (bool, error) {
	if ws.ActiveWindowID != nil {
		return false, nil
	}
	windows, err := p.deps.Compositor.Windows(ctx)
	if err != nil {
		return false, err
	}
	for _, w := range windows {
		if w.WorkspaceID != nil && *w.WorkspaceID == ws.ID {
			return false, nil
		}
	}
	return true, nil
}

func lookup(commands map[string]string, ws compositor.Workspace) (string, bool) {
	if ws.Name != nil {
		if c, ok := commands[*ws.Name]; ok {
			return c, true
		}
	}
	c, ok := commands[strconv.Itoa(ws.Idx)]
	return c, ok
}

func (p *Plugin) HandleIPC(ctx context.Context, req ipcproto.Request) (ipcproto.Response, bool) {
	return ipcproto.Response{}, false
}

func runShell(command string) error {
	cmd := exec.Command("/bin/sh", "-c", command)
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() { _ = cmd.Wait() }()
	return nil
}
