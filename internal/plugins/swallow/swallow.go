// Package swallow implements P6, the swallow engine (spec §4.6): when a
// child window opens, it consumes it into a parent column using PID
// ancestry or pattern rules, and maintains a bounded recent-focus queue.
package swallow

import (
	"context"
	"fmt"
	"sync"

	"github.com/piri-wm/piri/internal/collections"
	"github.com/piri-wm/piri/internal/compositor"
	"github.com/piri-wm/piri/internal/config"
	"github.com/piri-wm/piri/internal/ipcproto"
	"github.com/piri-wm/piri/internal/match"
	"github.com/piri-wm/piri/internal/plugin"
)

func init() {
	plugin.Register("swallow", New)
}

const focusQueueCap = 5

type rule struct {
	parent match.Matcher
	child  match.Matcher
}

type cfg struct {
	usePIDMatching bool
	exclude        match.Matcher
	rules          []rule
}

// Plugin implements plugin.Policy for the swallow engine.
type Plugin struct {
	deps plugin.Deps

	mu        sync.Mutex
	c         cfg
	pidToWins map[int][]uint64
	winToPID  map[uint64]int
	seen      map[uint64]bool
	focusQ    []uint64
}

// New constructs the plugin from [piri.swallow] and [[swallow]] (spec §6),
// seeding pid/window state from the current window snapshot.
func New(deps plugin.Deps, f *config.File) (plugin.Policy, error) {
	p := &Plugin{
		deps:      deps,
		pidToWins: make(map[int][]uint64),
		winToPID:  make(map[uint64]int),
		seen:      make(map[uint64]bool),
	}
	if err := p.UpdateConfig(f); err != nil {
		return nil, err
	}
	windows, err := deps.Compositor.Windows(context.Background())
	if err == nil {
		p.mu.Lock()
		for _, w := range windows {
			p.seen[w.ID] = true
			if w.PID != nil {
				p.recordPIDLocked(*w.PID, w.ID)
			}
		}
		p.mu.Unlock()
	}
	return p, nil
}

func (p *Plugin) Name() string { return "swallow" }

func (p *Plugin) IsInterestedIn(ev compositor.Event) bool {
	switch ev.Kind {
	case compositor.EventWindowOpenedOrChanged, compositor.EventWindowClosed, compositor.EventWindowFocusTimestampChanged:
		return true
	default:
		return false
	}
}

func (p *Plugin) UpdateConfig(f *config.File) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	rules := make([]rule, 0, len(f.Swallow))
	for _, e := range f.Swallow {
		rules = append(rules, rule{
			parent: match.Matcher{AppIDPatterns: []string(e.ParentAppID), TitlePatterns: []string(e.ParentTitle)},
			child:  match.Matcher{AppIDPatterns: []string(e.ChildAppID), TitlePatterns: []string(e.ChildTitle)},
		})
	}
	p.c = cfg{
		usePIDMatching: f.Piri.Swallow.UsePIDMatching,
		exclude: match.Matcher{
			AppIDPatterns: []string(f.Piri.Swallow.Exclude.AppID),
			TitlePatterns: []string(f.Piri.Swallow.Exclude.Title),
		},
		rules: rules,
	}
	return nil
}

func (p *Plugin) recordPIDLocked(pid int, id uint64) {
	p.winToPID[id] = pid
	p.pidToWins[pid] = append(p.pidToWins[pid], id)
}

func (p *Plugin) HandleEvent(ctx context.Context, ev compositor.Event) error {
	switch ev.Kind {
	case compositor.EventWindowOpenedOrChanged:
		return p.handleOpened(ctx, ev.Window)
	case compositor.EventWindowClosed:
		p.handleClosed(ev.WindowID)
		return nil
	case compositor.EventWindowFocusTimestampChanged:
		p.pushFocus(ev.WindowID)
		return nil
	}
	return nil
}

func (p *Plugin) handleOpened(ctx context.Context, win compositor.Window) error {
	p.mu.Lock()
	alreadySeen := p.seen[win.ID]
	if !alreadySeen {
		p.seen[win.ID] = true
		if win.PID != nil {
			p.recordPIDLocked(*win.PID, win.ID)
		}
	}
	p.pushFocusLocked(win.ID)
	excl := p.c.exclude
	p.mu.Unlock()

	if alreadySeen {
		return nil
	}

	excluded, err := p.deps.Matches.Match(excl, win.AppID, win.Title)
	if err != nil {
		return err
	}
	if excluded {
		return nil
	}

	windows, err := p.deps.Compositor.Windows(ctx)
	if err != nil {
		return err
	}

	var parentID uint64
	found := false

	p.mu.Lock()
	usePID := p.c.usePIDMatching
	p.mu.Unlock()

	if usePID && win.PID != nil {
		parentID, found = p.matchByPID(*win.PID, win.ID, windows)
	}
	if !found {
		parentID, found, err = p.matchByRule(ctx, win, windows)
		if err != nil {
			return err
		}
	}
	if !found {
		return nil
	}

	return p.swallowAction(ctx, parentID, win)
}

// matchByPID implements spec §4.6 step 3: walk the ancestor chain of the
// child's pid and find another live window whose pid is an ancestor.
func (p *Plugin) matchByPID(childPID int, childID uint64, windows []compositor.Window) (uint64, bool) {
	anc := ancestors(childPID)
	for _, w := range windows {
		if w.ID == childID || w.PID == nil {
			continue
		}
		if anc[*w.PID] {
			return w.ID, true
		}
	}
	return 0, false
}

// matchByRule implements spec §4.6 step 4.
func (p *Plugin) matchByRule(ctx context.Context, child compositor.Window, windows []compositor.Window) (uint64, bool, error) {
	p.mu.Lock()
	rules := p.c.rules
	p.mu.Unlock()

	focused, err := p.deps.Compositor.FocusedWindow(ctx)
	if err != nil {
		return 0, false, err
	}

	for _, r := range rules {
		childMatched, err := p.deps.Matches.Match(r.child, child.AppID, child.Title)
		if err != nil {
			return 0, false, err
		}
		if !childMatched {
			continue
		}

		if focused != nil && focused.ID == child.ID {
			p.mu.Lock()
			queue := append([]uint64(nil), p.focusQ...)
			p.mu.Unlock()
			for i := len(queue) - 1; i >= 0; i-- {
				id := queue[i]
				if id == child.ID {
					continue
				}
				w, ok := findWindow(windows, id)
				if !ok {
					continue
				}
				matched, err := p.deps.Matches.Match(r.parent, w.AppID, w.Title)
				if err != nil {
					return 0, false, err
				}
				if matched {
					return id, true, nil
				}
			}
			continue
		}

		if focused == nil {
			continue
		}
		matched, err := p.deps.Matches.Match(r.parent, focused.AppID, focused.Title)
		if err != nil {
			return 0, false, err
		}
		if matched {
			return focused.ID, true, nil
		}
	}
	return 0, false, nil
}

// swallowAction issues the atomic batch of spec §4.6 step 5.
func (p *Plugin) swallowAction(ctx context.Context, parentID uint64, child compositor.Window) error {
	workspaces, err := p.deps.Compositor.Workspaces(ctx)
	if err != nil {
		return err
	}

	return p.deps.Compositor.ExecuteBatch(ctx, func(b *compositor.Batch) error {
		if err := b.Action(compositor.Action{Kind: compositor.ActionFocusWindow, WindowID: parentID}); err != nil {
			return err
		}
		parent, err := b.FocusedWindow()
		if err != nil {
			return err
		}
		if child.Floating {
			if err := b.Action(compositor.Action{Kind: compositor.ActionMoveWindowToTiling, WindowID: child.ID}); err != nil {
				return err
			}
		}
		if parent != nil && parent.WorkspaceID != nil && child.WorkspaceID != nil && *parent.WorkspaceID != *child.WorkspaceID {
			if ref, ok := workspaceRef(workspaces, *parent.WorkspaceID); ok {
				if err := b.Action(compositor.Action{
					Kind: compositor.ActionMoveWindowToWorkspace, WindowID: child.ID,
					WorkspaceRef: ref,
				}); err != nil {
					return err
				}
			}
		}
		if err := b.Action(compositor.Action{Kind: compositor.ActionConsumeOrExpelWindowLeft, WindowID: child.ID}); err != nil {
			return err
		}
		return b.Action(compositor.Action{Kind: compositor.ActionFocusWindow, WindowID: child.ID})
	})
}

func workspaceRef(workspaces []compositor.Workspace, id uint64) (string, bool) {
	for _, ws := range workspaces {
		if ws.ID == id {
			return fmt.Sprintf("%d", ws.Idx), true
		}
	}
	return "", false
}

func (p *Plugin) handleClosed(id uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.seen, id)
	if pid, ok := p.winToPID[id]; ok {
		delete(p.winToPID, id)
		p.pidToWins[pid] = collections.DeleteAllFunc(p.pidToWins[pid], func(e uint64) bool { return e == id })
		if len(p.pidToWins[pid]) == 0 {
			delete(p.pidToWins, pid)
		}
	}
	p.focusQ = collections.DeleteAllFunc(p.focusQ, func(e uint64) bool { return e == id })
}

func (p *Plugin) pushFocus(id uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pushFocusLocked(id)
}

// pushFocusLocked dedupes id out of the queue and re-pushes it at the
// front, capping length at 5 (spec §4.6, §8 invariant).
func (p *Plugin) pushFocusLocked(id uint64) {
	p.focusQ = collections.DeleteAllFunc(p.focusQ, func(e uint64) bool { return e == id })
	p.focusQ = append([]uint64{id}, p.focusQ...)
	if len(p.focusQ) > focusQueueCap {
		p.focusQ = p.focusQ[:focusQueueCap]
	}
}

func (p *Plugin) HandleIPC(ctx context.Context, req ipcproto.Request) (ipcproto.Response, bool) {
	return ipcproto.Response{}, false
}

func findWindow(windows []compositor.Window, id uint64) (compositor.Window, bool) {
	for _, w := range windows {
		if w.ID == id {
			return w, true
		}
	}
	return compositor.Window{}, false
}

