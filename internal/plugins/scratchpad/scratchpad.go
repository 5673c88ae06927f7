// Package scratchpad implements P1, the per-named-slot floating-window
// engine (spec §4.1): toggle shows/hides a bound window by animating it
// off-screen along a configured edge, lazy-launching its command on first
// use and restoring whichever window had focus before it was shown.
package scratchpad

import (
	"context"
	"fmt"
	"os/exec"
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
	plugin.Register("scratchpad", New)
}

const (
	pollInterval = 100 * time.Millisecond
	pollAttempts = 50
	settleDelay  = 100 * time.Millisecond
)

// slotConfig is the effective, resolved configuration for one scratchpad
// slot (spec §3 ScratchpadConfig).
type slotConfig struct {
	Direction      compositor.Direction
	Command        string
	AppID          string
	Size           config.Size
	Margin         int
	MoveToWorkspace string
}

// state is one scratchpad's runtime-only ScratchpadState (spec §3).
type state struct {
	windowID        *uint64
	visible         bool
	previousFocused *uint64
	cfg             slotConfig
	dynamic         bool
}

// Plugin implements plugin.Policy for the scratchpad engine.
type Plugin struct {
	deps plugin.Deps

	mu    sync.Mutex
	slots map[string]*state
}

// New constructs the scratchpad plugin from the configured [scratchpads.*]
// table (spec §6).
func New(deps plugin.Deps, f *config.File) (plugin.Policy, error) {
	p := &Plugin{deps: deps, slots: make(map[string]*state)}
	if err := p.UpdateConfig(f); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Plugin) Name() string { return "scratchpad" }

// IsInterestedIn reports no event interest: scratchpad state only mutates
// via toggle/add, both issued over IPC (spec §4.1 "toggle(name) is the only
// externally invoked mutator").
func (p *Plugin) IsInterestedIn(ev compositor.Event) bool { return false }

func (p *Plugin) HandleEvent(ctx context.Context, ev compositor.Event) error { return nil }

// UpdateConfig performs the structural merge spec §9 requires: a slot whose
// name still exists in the new config keeps its bound window id and
// visibility; a slot whose name disappeared is dropped; a new name gets a
// fresh, unbound state. Dynamically-added slots (never present in the TOML
// file) are left untouched by a reload.
func (p *Plugin) UpdateConfig(f *config.File) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	next := make(map[string]*state, len(f.Scratchpads))
	for name, entry := range f.Scratchpads {
		cfg, err := resolveConfig(entry, f.Piri.Scratchpad)
		if err != nil {
			return fmt.Errorf("scratchpad: %s: %w", name, err)
		}
		if existing, ok := p.slots[name]; ok && !existing.dynamic {
			existing.cfg = cfg
			next[name] = existing
			continue
		}
		next[name] = &state{cfg: cfg}
	}
	for name, existing := range p.slots {
		if existing.dynamic {
			next[name] = existing
		}
	}
	p.slots = next
	return nil
}

func resolveConfig(e config.ScratchpadEntry, defaults config.ScratchpadDefaults) (slotConfig, error) {
	dir, ok := compositor.ParseDirection(e.Direction)
	if !ok {
		return slotConfig{}, fmt.Errorf("invalid direction %q", e.Direction)
	}
	sizeStr := e.Size
	if sizeStr == "" {
		sizeStr = defaults.DefaultSize
	}
	size, err := config.ParseSize(sizeStr)
	if err != nil {
		return slotConfig{}, err
	}
	margin := int(e.Margin)
	if e.Margin == 0 {
		margin = int(defaults.DefaultMargin)
	}
	return slotConfig{
		Direction:       dir,
		Command:         e.Command,
		AppID:           e.AppID,
		Size:            size,
		Margin:          margin,
		MoveToWorkspace: defaults.MoveToWorkspace,
	}, nil
}

// HandleIPC answers ScratchpadToggle and ScratchpadAdd requests.
func (p *Plugin) HandleIPC(ctx context.Context, req ipcproto.Request) (ipcproto.Response, bool) {
	switch req.Kind {
	case ipcproto.ScratchpadToggle:
		if err := p.Toggle(ctx, req.Name); err != nil {
			return ipcproto.Err(err.Error()), true
		}
		return ipcproto.Success(), true
	case ipcproto.ScratchpadAdd:
		dir, ok := compositor.ParseDirection(req.Direction)
		if !ok {
			return ipcproto.Err(fmt.Sprintf("scratchpad: invalid direction %q", req.Direction)), true
		}
		if err := p.Add(ctx, req.Name, dir); err != nil {
			return ipcproto.Err(err.Error()), true
		}
		return ipcproto.Success(), true
	default:
		return ipcproto.Response{}, false
	}
}

// Toggle runs the four-phase protocol of spec §4.1 against the named slot.
func (p *Plugin) Toggle(ctx context.Context, name string) error {
	p.mu.Lock()
	st, ok := p.slots[name]
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("scratchpad: %s: %w", name, pirierr.ErrUnknownName)
	}

	preVisible := st.visible
	if err := p.toggleSlot(ctx, name, st); err != nil {
		st.visible = preVisible
		return err
	}
	return nil
}

func (p *Plugin) toggleSlot(ctx context.Context, name string, st *state) error {
	windows, err := p.deps.Compositor.Windows(ctx)
	if err != nil {
		return fmt.Errorf("scratchpad: %s: list windows: %w", name, err)
	}

	// Phase 1: materialize.
	id, justCreated, err := p.materialize(ctx, name, st, windows)
	if err != nil {
		return err
	}
	st.windowID = &id

	output, err := p.focusedOutputGeometry(ctx)
	if err != nil {
		return fmt.Errorf("scratchpad: %s: focused output: %w", name, err)
	}

	if justCreated {
		if err := p.setup(ctx, st, id, output); err != nil {
			return fmt.Errorf("scratchpad: %s: setup: %w", name, err)
		}
		st.visible = false
	}

	// Phase 2: determine next visibility.
	focused, err := p.deps.Compositor.FocusedWindow(ctx)
	if err != nil {
		return fmt.Errorf("scratchpad: %s: focused window: %w", name, err)
	}
	windows, err = p.deps.Compositor.Windows(ctx)
	if err != nil {
		return fmt.Errorf("scratchpad: %s: list windows: %w", name, err)
	}
	win, ok := findWindow(windows, id)
	if !ok {
		return fmt.Errorf("scratchpad: %s: %w", name, pirierr.ErrScratchpadGone)
	}
	inCurrentWS := inFocusedWorkspace(win, windows, focused)

	var next bool
	switch {
	case st.visible && inCurrentWS:
		next = false
	case st.visible && !inCurrentWS:
		if focused != nil {
			fid := focused.ID
			st.previousFocused = &fid
		} else {
			st.previousFocused = nil
		}
		next = true
	default:
		if focused != nil {
			fid := focused.ID
			st.previousFocused = &fid
		} else {
			st.previousFocused = nil
		}
		next = true
	}

	// Phase 3: sync.
	if err := p.sync(ctx, st, id, next, output); err != nil {
		return fmt.Errorf("scratchpad: %s: sync: %w", name, err)
	}

	// Phase 4: persist.
	st.visible = next
	return nil
}

func (p *Plugin) materialize(ctx context.Context, name string, st *state, windows []compositor.Window) (uint64, bool, error) {
	if st.windowID != nil {
		if _, ok := findWindow(windows, *st.windowID); ok {
			return *st.windowID, false, nil
		}
		if st.dynamic {
			p.mu.Lock()
			delete(p.slots, name)
			p.mu.Unlock()
			return 0, false, fmt.Errorf("scratchpad: %s: %w", name, pirierr.ErrScratchpadGone)
		}
		st.windowID = nil
	}

	m := match.Matcher{AppIDPatterns: []string{st.cfg.AppID}}
	for _, w := range windows {
		matched, err := p.deps.Matches.Match(m, w.AppID, "")
		if err != nil {
			return 0, false, err
		}
		if matched {
			return w.ID, true, nil
		}
	}

	if err := launch(st.cfg.Command); err != nil {
		return 0, false, fmt.Errorf("scratchpad: %s: launch: %w", name, err)
	}
	for i := 0; i < pollAttempts; i++ {
		if err := compositor.Sleep(ctx, pollInterval); err != nil {
			return 0, false, err
		}
		ws, err := p.deps.Compositor.Windows(ctx)
		if err != nil {
			return 0, false, err
		}
		for _, w := range ws {
			matched, err := p.deps.Matches.Match(m, w.AppID, "")
			if err != nil {
				return 0, false, err
			}
			if matched {
				return w.ID, true, nil
			}
		}
	}
	return 0, false, fmt.Errorf("scratchpad: %s: %w", name, pirierr.ErrLaunchTimeout)
}

// setup forces the window floating, resizes and positions it to its hidden
// coordinates (spec §4.1 "On adopt/create, run setup").
func (p *Plugin) setup(ctx context.Context, st *state, id uint64, output compositor.Geometry) error {
	if err := p.deps.Compositor.Action(ctx, compositor.Action{Kind: compositor.ActionMoveWindowToFloating, WindowID: id}); err != nil {
		return err
	}
	w, h := st.cfg.Size.Resolve(output.Width, output.Height)
	if err := p.deps.Compositor.Action(ctx, compositor.Action{Kind: compositor.ActionSetWindowWidth, WindowID: id, Width: w}); err != nil {
		return err
	}
	if err := p.deps.Compositor.Action(ctx, compositor.Action{Kind: compositor.ActionSetWindowHeight, WindowID: id, Height: h}); err != nil {
		return err
	}
	if err := compositor.Sleep(ctx, settleDelay); err != nil {
		return err
	}
	windows, err := p.deps.Compositor.Windows(ctx)
	if err != nil {
		return err
	}
	win, ok := findWindow(windows, id)
	if !ok {
		return fmt.Errorf("%w", pirierr.ErrScratchpadGone)
	}
	curX, curY := 0, 0
	if win.Layout != nil {
		curX, curY = win.Layout.Pos.X, win.Layout.Pos.Y
	}
	hideX, hideY := hiddenPosition(st.cfg.Direction, output.Width, output.Height, w, h, st.cfg.Margin)
	return p.deps.Compositor.Action(ctx, compositor.Action{
		Kind: compositor.ActionMoveFloatingWindow, WindowID: id,
		DX: hideX - curX, DY: hideY - curY,
	})
}

// sync implements phase 3 (spec §4.1).
func (p *Plugin) sync(ctx context.Context, st *state, id uint64, next bool, output compositor.Geometry) error {
	w, h := st.cfg.Size.Resolve(output.Width, output.Height)
	if next {
		wsRef, err := p.focusedWorkspaceRef(ctx)
		if err != nil {
			return err
		}
		if err := p.deps.Compositor.Action(ctx, compositor.Action{
			Kind: compositor.ActionMoveWindowToWorkspace, WindowID: id, WorkspaceRef: wsRef,
		}); err != nil {
			return err
		}
		if err := compositor.Sleep(ctx, settleDelay); err != nil {
			return err
		}
		if err := p.deps.Compositor.Action(ctx, compositor.Action{Kind: compositor.ActionSetWindowWidth, WindowID: id, Width: w}); err != nil {
			return err
		}
		if err := p.deps.Compositor.Action(ctx, compositor.Action{Kind: compositor.ActionSetWindowHeight, WindowID: id, Height: h}); err != nil {
			return err
		}
		windows, err := p.deps.Compositor.Windows(ctx)
		if err != nil {
			return err
		}
		win, ok := findWindow(windows, id)
		if !ok {
			return fmt.Errorf("%w", pirierr.ErrScratchpadGone)
		}
		curX, curY := 0, 0
		if win.Layout != nil {
			curX, curY = win.Layout.Pos.X, win.Layout.Pos.Y
		}
		showX, showY := visiblePosition(st.cfg.Direction, output.Width, output.Height, w, h, st.cfg.Margin)
		if err := p.deps.Compositor.Action(ctx, compositor.Action{
			Kind: compositor.ActionMoveFloatingWindow, WindowID: id,
			DX: showX - curX, DY: showY - curY,
		}); err != nil {
			return err
		}
		return p.deps.Compositor.Action(ctx, compositor.Action{Kind: compositor.ActionFocusWindow, WindowID: id})
	}

	windows, err := p.deps.Compositor.Windows(ctx)
	if err != nil {
		return err
	}
	win, ok := findWindow(windows, id)
	if !ok {
		return fmt.Errorf("%w", pirierr.ErrScratchpadGone)
	}
	curX, curY := 0, 0
	if win.Layout != nil {
		curX, curY = win.Layout.Pos.X, win.Layout.Pos.Y
	}
	hideX, hideY := hiddenPosition(st.cfg.Direction, output.Width, output.Height, w, h, st.cfg.Margin)
	if err := p.deps.Compositor.Action(ctx, compositor.Action{
		Kind: compositor.ActionMoveFloatingWindow, WindowID: id,
		DX: hideX - curX, DY: hideY - curY,
	}); err != nil {
		return err
	}
	if st.cfg.MoveToWorkspace != "" {
		if err := p.deps.Compositor.Action(ctx, compositor.Action{
			Kind: compositor.ActionMoveWindowToWorkspace, WindowID: id, WorkspaceRef: st.cfg.MoveToWorkspace,
		}); err != nil {
			return err
		}
	}
	return p.restoreFocus(ctx, st, id)
}

// restoreFocus implements spec §9 "Focus restoration is best-effort": it
// tries to refocus whatever had focus before the scratchpad was shown, but
// never switches workspaces to do so. If that window is gone or has moved
// off the currently focused workspace, it falls back to the median window
// (by the compositor's own list order) of that workspace.
func (p *Plugin) restoreFocus(ctx context.Context, st *state, scratchpadID uint64) error {
	windows, err := p.deps.Compositor.Windows(ctx)
	if err != nil {
		return err
	}
	workspaces, err := p.deps.Compositor.Workspaces(ctx)
	if err != nil {
		return err
	}
	focusedWS := focusedWorkspace(workspaces)

	if st.previousFocused != nil {
		if win, ok := findWindow(windows, *st.previousFocused); ok {
			if focusedWS == nil || (win.WorkspaceID != nil && *win.WorkspaceID == focusedWS.ID) {
				return p.deps.Compositor.Action(ctx, compositor.Action{Kind: compositor.ActionFocusWindow, WindowID: *st.previousFocused})
			}
		}
	}

	if focusedWS == nil {
		return nil
	}
	median, ok := medianWindowID(windows, focusedWS.ID, scratchpadID)
	if !ok {
		return nil
	}
	return p.deps.Compositor.Action(ctx, compositor.Action{Kind: compositor.ActionFocusWindow, WindowID: median})
}

func focusedWorkspace(workspaces []compositor.Workspace) *compositor.Workspace {
	for i, ws := range workspaces {
		if ws.Focused {
			return &workspaces[i]
		}
	}
	return nil
}

// medianWindowID picks the window at the middle index of wsID's window
// list, in the order the compositor returned it, excluding the scratchpad
// window itself so hiding it never re-selects it (spec §9).
func medianWindowID(windows []compositor.Window, wsID uint64, exclude uint64) (uint64, bool) {
	var inWS []uint64
	for _, w := range windows {
		if w.ID == exclude || w.WorkspaceID == nil || *w.WorkspaceID != wsID {
			continue
		}
		inWS = append(inWS, w.ID)
	}
	if len(inWS) == 0 {
		return 0, false
	}
	return inWS[len(inWS)/2], true
}

// Add implements scratchpad-add (spec §4.1 "Dynamic add").
func (p *Plugin) Add(ctx context.Context, name string, dir compositor.Direction) error {
	p.mu.Lock()
	existing, exists := p.slots[name]
	p.mu.Unlock()

	if exists {
		windows, err := p.deps.Compositor.Windows(ctx)
		if err != nil {
			return fmt.Errorf("scratchpad: add %s: %w", name, err)
		}
		if existing.windowID != nil {
			if _, ok := findWindow(windows, *existing.windowID); ok {
				return fmt.Errorf("scratchpad: add %s: %w", name, pirierr.ErrAlreadyExists)
			}
		}
	}

	focused, err := p.deps.Compositor.FocusedWindow(ctx)
	if err != nil {
		return fmt.Errorf("scratchpad: add %s: focused window: %w", name, err)
	}
	if focused == nil {
		return fmt.Errorf("scratchpad: add %s: %w", name, pirierr.ErrNoFocusedWindow)
	}
	if !focused.HasAppID() {
		return fmt.Errorf("scratchpad: add %s: %w", name, pirierr.ErrNoAppID)
	}

	cfg := slotConfig{
		Direction: dir,
		AppID:     focused.AppID,
		Size:      config.Size{WidthPct: 50, HeightPct: 50},
		Margin:    20,
	}
	st := &state{cfg: cfg, dynamic: true, windowID: &focused.ID}

	output, err := p.focusedOutputGeometry(ctx)
	if err != nil {
		return fmt.Errorf("scratchpad: add %s: focused output: %w", name, err)
	}
	if err := p.setup(ctx, st, focused.ID, output); err != nil {
		return fmt.Errorf("scratchpad: add %s: setup: %w", name, err)
	}
	st.visible = false

	p.mu.Lock()
	p.slots[name] = st
	p.mu.Unlock()
	return nil
}

func (p *Plugin) focusedWorkspaceRef(ctx context.Context) (string, error) {
	workspaces, err := p.deps.Compositor.Workspaces(ctx)
	if err != nil {
		return "", err
	}
	for _, ws := range workspaces {
		if ws.Focused {
			return fmt.Sprintf("%d", ws.Idx), nil
		}
	}
	return "", fmt.Errorf("no focused workspace")
}

func (p *Plugin) focusedOutputGeometry(ctx context.Context) (compositor.Geometry, error) {
	out, err := p.deps.Compositor.FocusedOutput(ctx)
	if err != nil {
		return compositor.Geometry{}, err
	}
	if out == nil || out.Logical == nil {
		return compositor.Geometry{}, fmt.Errorf("no focused output")
	}
	return *out.Logical, nil
}

func findWindow(windows []compositor.Window, id uint64) (compositor.Window, bool) {
	for _, w := range windows {
		if w.ID == id {
			return w, true
		}
	}
	return compositor.Window{}, false
}

func inFocusedWorkspace(win compositor.Window, windows []compositor.Window, focused *compositor.Window) bool {
	if focused == nil || win.WorkspaceID == nil {
		return false
	}
	for _, w := range windows {
		if w.ID == focused.ID && w.WorkspaceID != nil {
			return *w.WorkspaceID == *win.WorkspaceID
		}
	}
	return false
}

// visiblePosition and hiddenPosition implement the positioning table of
// spec §4.1.
func visiblePosition(d compositor.Direction, ow, oh, ww, wh, m int) (int, int) {
	switch d {
	case compositor.FromTop:
		return (ow - ww) / 2, m
	case compositor.FromBottom:
		return (ow - ww) / 2, oh - wh - m
	case compositor.FromLeft:
		return m, (oh - wh) / 2
	case compositor.FromRight:
		return ow - ww - m, (oh - wh) / 2
	default:
		return 0, 0
	}
}

func hiddenPosition(d compositor.Direction, ow, oh, ww, wh, m int) (int, int) {
	switch d {
	case compositor.FromTop:
		return (ow - ww) / 2, -(wh + m)
	case compositor.FromBottom:
		return (ow - ww) / 2, oh + m
	case compositor.FromLeft:
		return -(ww + m), (oh - wh) / 2
	case compositor.FromRight:
		return ow + m, (oh - wh) / 2
	default:
		return 0, 0
	}
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
	logging.Debugf("scratchpad: launched %q", command)
	return nil
}
