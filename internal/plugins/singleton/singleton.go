// Package singleton implements P2, the at-most-one-instance-per-name
// launcher (spec §4.2): toggle ensures a bound window exists, launching the
// configured command and running a one-time creation hook when it doesn't,
// then focuses it.
package singleton

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/piri-wm/piri/internal/compositor"
	"github.com/piri-wm/piri/internal/config"
	"github.com/piri-wm/piri/internal/ipcproto"
	"github.com/piri-wm/piri/internal/logging"
	"github.com/piri-wm/piri/internal/match"
	"github.com/piri-wm/piri/internal/pirierr"
	"github.com/piri-wm/piri/internal/plugin"
)

func init() {
	plugin.Register("singleton", New)
}

const (
	launchPollInterval = 100 * time.Millisecond
	launchTimeout      = 5 * time.Second
)

type slotConfig struct {
	Command          string
	AppID            string
	OnCreatedCommand string
}

type state struct {
	windowID   *uint64
	createdRan bool
	cfg        slotConfig
}

// Plugin implements plugin.Policy for the singleton engine.
type Plugin struct {
	deps plugin.Deps

	mu    sync.Mutex
	slots map[string]*state
}

// New constructs the singleton plugin from [singleton.*] (spec §6).
func New(deps plugin.Deps, f *config.File) (plugin.Policy, error) {
	p := &Plugin{deps: deps, slots: make(map[string]*state)}
	if err := p.UpdateConfig(f); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Plugin) Name() string { return "singleton" }

func (p *Plugin) IsInterestedIn(ev compositor.Event) bool { return false }

func (p *Plugin) HandleEvent(ctx context.Context, ev compositor.Event) error { return nil }

func (p *Plugin) UpdateConfig(f *config.File) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	next := make(map[string]*state, len(f.Singleton))
	for name, entry := range f.Singleton {
		cfg := slotConfig{Command: entry.Command, AppID: entry.AppID, OnCreatedCommand: entry.OnCreatedCommand}
		if existing, ok := p.slots[name]; ok {
			existing.cfg = cfg
			next[name] = existing
			continue
		}
		next[name] = &state{cfg: cfg}
	}
	p.slots = next
	return nil
}

func (p *Plugin) HandleIPC(ctx context.Context, req ipcproto.Request) (ipcproto.Response, bool) {
	if req.Kind != ipcproto.SingletonToggle {
		return ipcproto.Response{}, false
	}
	if err := p.Toggle(ctx, req.Name); err != nil {
		return ipcproto.Err(err.Error()), true
	}
	return ipcproto.Success(), true
}

// Toggle implements spec §4.2: bind an existing window, or find one
// matching, or launch and wait, then focus it.
func (p *Plugin) Toggle(ctx context.Context, name string) error {
	p.mu.Lock()
	st, ok := p.slots[name]
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("singleton: %s: %w", name, pirierr.ErrUnknownName)
	}

	id, err := p.bind(ctx, name, st)
	if err != nil {
		return err
	}
	return p.deps.Compositor.Action(ctx, compositor.Action{Kind: compositor.ActionFocusWindow, WindowID: id})
}

func (p *Plugin) bind(ctx context.Context, name string, st *state) (uint64, error) {
	windows, err := p.deps.Compositor.Windows(ctx)
	if err != nil {
		return 0, fmt.Errorf("singleton: %s: list windows: %w", name, err)
	}

	if st.windowID != nil {
		if _, ok := findWindow(windows, *st.windowID); ok {
			return *st.windowID, nil
		}
		st.windowID = nil
	}

	pattern := st.cfg.AppID
	if pattern == "" {
		pattern = commandBasename(st.cfg.Command)
	}
	m := match.Matcher{AppIDPatterns: []string{pattern}}
	for _, w := range windows {
		matched, err := p.deps.Matches.Match(m, w.AppID, "")
		if err != nil {
			return 0, err
		}
		if matched {
			st.windowID = &w.ID
			return w.ID, nil
		}
	}

	if err := launch(st.cfg.Command); err != nil {
		return 0, fmt.Errorf("singleton: %s: launch: %w", name, err)
	}
	deadline := time.Now().Add(launchTimeout)
	for time.Now().Before(deadline) {
		if err := compositor.Sleep(ctx, launchPollInterval); err != nil {
			return 0, err
		}
		ws, err := p.deps.Compositor.Windows(ctx)
		if err != nil {
			return 0, err
		}
		for _, w := range ws {
			matched, err := p.deps.Matches.Match(m, w.AppID, "")
			if err != nil {
				return 0, err
			}
			if matched {
				st.windowID = &w.ID
				if st.cfg.OnCreatedCommand != "" && !st.createdRan {
					if err := launch(st.cfg.OnCreatedCommand); err != nil {
						logging.Warnf("singleton: %s: on_created_command failed: %s", name, err)
					}
					st.createdRan = true
				}
				return w.ID, nil
			}
		}
	}
	return 0, fmt.Errorf("singleton: %s: %w", name, pirierr.ErrLaunchTimeout)
}

func findWindow(windows []compositor.Window, id uint64) (compositor.Window, bool) {
	for _, w := range windows {
		if w.ID == id {
			return w, true
		}
	}
	return compositor.Window{}, false
}

// commandBasename extracts the basename of the first whitespace-separated
// token of a shell command string (spec §4.2 fallback app_id).
func commandBasename(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return ""
	}
	return filepath.Base(fields[0])
}

func launch(command string) error {
	if command == "" {
		return fmt.Errorf("empty command")
	}
	cmd := exec.Command("/bin/sh", "-c", command)
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() { _ = cmd.Wait() }()
	return nil
}
