// Package windowrule implements P3, the window-rule router (spec §4.3):
// on window creation it moves and focuses windows matching configured
// app_id/title rules, and on focus changes it runs a rule's focus command
// under a short de-duplication window.
package windowrule

import (
	"context"
	"os/exec"
	"sync"
	"time"

	"github.com/piri-wm/piri/internal/compositor"
	"github.com/piri-wm/piri/internal/config"
	"github.com/piri-wm/piri/internal/ipcproto"
	"github.com/piri-wm/piri/internal/logging"
	"github.com/piri-wm/piri/internal/match"
	"github.com/piri-wm/piri/internal/plugin"
)

func init() {
	plugin.Register("window_rule", New)
}

const (
	openSettleDelay  = 100 * time.Millisecond
	focusCoalesce    = 10 * time.Millisecond
	focusDedupWindow = 200 * time.Millisecond
)

type rule struct {
	matcher          match.Matcher
	openOnWorkspace  string
	focusCommand     string
	focusCommandOnce bool
}

// Plugin implements plugin.Policy for the window-rule router.
type Plugin struct {
	deps plugin.Deps

	mu              sync.Mutex
	rules           []rule
	lastExecuted    uint64
	lastExecutedSet bool
	lastExecTime    time.Time
	firedOnce       map[int]bool // index into rules -> focus_command_once already fired
}

// New constructs the router from [[window_rule]] (spec §6).
func New(deps plugin.Deps, f *config.File) (plugin.Policy, error) {
	p := &Plugin{deps: deps, firedOnce: make(map[int]bool)}
	if err := p.UpdateConfig(f); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Plugin) Name() string { return "window_rule" }

func (p *Plugin) IsInterestedIn(ev compositor.Event) bool {
	return ev.Kind == compositor.EventWindowOpenedOrChanged || ev.Kind == compositor.EventWindowFocusChanged
}

func (p *Plugin) UpdateConfig(f *config.File) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	rules := make([]rule, 0, len(f.WindowRule))
	for _, e := range f.WindowRule {
		rules = append(rules, rule{
			matcher:          match.Matcher{AppIDPatterns: []string(e.AppID), TitlePatterns: []string(e.Title)},
			openOnWorkspace:  e.OpenOnWorkspace,
			focusCommand:     e.FocusCommand,
			focusCommandOnce: e.FocusCommandOnce,
		})
	}
	p.rules = rules
	p.firedOnce = make(map[int]bool)
	return nil
}

func (p *Plugin) HandleEvent(ctx context.Context, ev compositor.Event) error {
	switch ev.Kind {
	case compositor.EventWindowOpenedOrChanged:
		return p.handleOpened(ctx, ev.Window)
	case compositor.EventWindowFocusChanged:
		return p.handleFocusChanged(ctx, ev.WindowID)
	}
	return nil
}

func (p *Plugin) handleOpened(ctx context.Context, win compositor.Window) error {
	p.mu.Lock()
	rules := p.rules
	p.mu.Unlock()

	for _, r := range rules {
		matched, err := p.deps.Matches.Match(r.matcher, win.AppID, win.Title)
		if err != nil {
			return err
		}
		if !matched {
			continue
		}
		if r.openOnWorkspace != "" && !p.onWorkspace(ctx, win, r.openOnWorkspace) {
			if err := p.deps.Compositor.Action(ctx, compositor.Action{
				Kind: compositor.ActionMoveWindowToWorkspace, WindowID: win.ID, WorkspaceRef: r.openOnWorkspace,
			}); err != nil {
				return err
			}
			if err := compositor.Sleep(ctx, openSettleDelay); err != nil {
				return err
			}
			if err := p.deps.Compositor.Action(ctx, compositor.Action{Kind: compositor.ActionFocusWindow, WindowID: win.ID}); err != nil {
				return err
			}
		}
		if r.focusCommand != "" {
			if err := runShell(r.focusCommand); err != nil {
				logging.Warnf("window_rule: focus_command failed: %s", err)
			}
		}
		return nil
	}
	return nil
}

func (p *Plugin) onWorkspace(ctx context.Context, win compositor.Window, ref string) bool {
	if win.WorkspaceID == nil {
		return false
	}
	workspaces, err := p.deps.Compositor.Workspaces(ctx)
	if err != nil {
		return false
	}
	for _, ws := range workspaces {
		if ws.ID != *win.WorkspaceID {
			continue
		}
		return config.ResolveWorkspaceRef(ref, ws.Name, ws.Idx)
	}
	return false
}

func (p *Plugin) handleFocusChanged(ctx context.Context, id uint64) error {
	if err := compositor.Sleep(ctx, focusCoalesce); err != nil {
		return err
	}
	windows, err := p.deps.Compositor.Windows(ctx)
	if err != nil {
		return err
	}
	var win compositor.Window
	found := false
	for _, w := range windows {
		if w.ID == id {
			win, found = w, true
			break
		}
	}
	if !found {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for i, r := range p.rules {
		if r.focusCommand == "" {
			continue
		}
		matched, err := p.deps.Matches.Match(r.matcher, win.AppID, win.Title)
		if err != nil {
			return err
		}
		if !matched {
			continue
		}
		if r.focusCommandOnce && p.firedOnce[i] {
			return nil
		}
		if p.lastExecutedSet && p.lastExecuted == id && time.Since(p.lastExecTime) < focusDedupWindow {
			return nil
		}
		if err := runShell(r.focusCommand); err != nil {
			logging.Warnf("window_rule: focus_command failed: %s", err)
		}
		p.lastExecuted = id
		p.lastExecutedSet = true
		p.lastExecTime = time.Now()
		if r.focusCommandOnce {
			p.firedOnce[i] = true
		}
		return nil
	}
	return nil
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
