// Package windoworder implements P5, the window-order sorter (spec §4.5):
// it reorders a workspace's tiled columns to match a target permutation
// derived from per-app weights, using a greedy minimum-moves search.
package windoworder

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/piri-wm/piri/internal/compositor"
	"github.com/piri-wm/piri/internal/config"
	"github.com/piri-wm/piri/internal/ipcproto"
	"github.com/piri-wm/piri/internal/logging"
	"github.com/piri-wm/piri/internal/plugin"
)

func init() {
	plugin.Register("window_order", New)
}

const (
	eventTriggerDelay = 100 * time.Millisecond
	focusSettleDelay  = 50 * time.Millisecond
	moveSettleDelay   = 150 * time.Millisecond
	maxIterations     = 100
)

type cfg struct {
	enableEventListener bool
	defaultWeight       uint32
	weights             map[string]uint32
	workspaceFilter     []string
}

// Plugin implements plugin.Policy for the window-order sorter.
type Plugin struct {
	deps plugin.Deps

	mu sync.Mutex
	c  cfg
}

// New constructs the plugin from [piri.window_order] and [window_order]
// (spec §6).
func New(deps plugin.Deps, f *config.File) (plugin.Policy, error) {
	p := &Plugin{deps: deps}
	_ = p.UpdateConfig(f)
	return p, nil
}

func (p *Plugin) Name() string { return "window_order" }

func (p *Plugin) IsInterestedIn(ev compositor.Event) bool {
	p.mu.Lock()
	listening := p.c.enableEventListener
	p.mu.Unlock()
	if !listening {
		return false
	}
	return ev.Kind == compositor.EventWindowLayoutsChanged || ev.Kind == compositor.EventWindowOpenedOrChanged
}

func (p *Plugin) UpdateConfig(f *config.File) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	weights := make(map[string]uint32, len(f.WindowOrder))
	for k, v := range f.WindowOrder {
		weights[k] = v
	}
	p.c = cfg{
		enableEventListener: f.Piri.WindowOrder.EnableEventListener,
		defaultWeight:       f.Piri.WindowOrder.DefaultWeight,
		weights:             weights,
		workspaceFilter:     append([]string(nil), f.Piri.WindowOrder.Workspaces...),
	}
	return nil
}

func (p *Plugin) HandleEvent(ctx context.Context, ev compositor.Event) error {
	if err := compositor.Sleep(ctx, eventTriggerDelay); err != nil {
		return err
	}
	workspaces, err := p.deps.Compositor.Workspaces(ctx)
	if err != nil {
		return err
	}
	focused := focusedWorkspace(workspaces)
	if focused == nil || !p.passesFilter(*focused) {
		return nil
	}
	return p.Sort(ctx)
}

func (p *Plugin) passesFilter(ws compositor.Workspace) bool {
	p.mu.Lock()
	filter := p.c.workspaceFilter
	p.mu.Unlock()
	if len(filter) == 0 {
		return true
	}
	for _, f := range filter {
		if config.ResolveWorkspaceRef(f, ws.Name, ws.Idx) {
			return true
		}
	}
	return false
}

func (p *Plugin) HandleIPC(ctx context.Context, req ipcproto.Request) (ipcproto.Response, bool) {
	if req.Kind != ipcproto.WindowOrderToggle {
		return ipcproto.Response{}, false
	}
	if err := p.Sort(ctx); err != nil {
		return ipcproto.Err(err.Error()), true
	}
	return ipcproto.Success(), true
}

// Sort performs the full reorder pass against the currently focused
// workspace (spec §4.5). Invoked both from the IPC toggle and from
// event-triggered passes.
func (p *Plugin) Sort(ctx context.Context) error {
	workspaces, err := p.deps.Compositor.Workspaces(ctx)
	if err != nil {
		return err
	}
	ws := focusedWorkspace(workspaces)
	if ws == nil {
		return nil
	}

	windows, err := p.deps.Compositor.Windows(ctx)
	if err != nil {
		return err
	}
	tiled := tiledWindowsInWorkspace(windows, ws.ID)
	if len(tiled) == 0 {
		return nil
	}

	originalFocusID, _ := p.currentFocusID(ctx)

	p.mu.Lock()
	weights := p.c.weights
	defaultWeight := p.c.defaultWeight
	p.mu.Unlock()

	items := buildItems(tiled, weights, defaultWeight)
	target := computeTargetColumns(items)

	if err := p.applyMoves(ctx, items, target, originalFocusID); err != nil {
		return err
	}

	if originalFocusID != nil {
		if err := p.deps.Compositor.Action(ctx, compositor.Action{Kind: compositor.ActionFocusWindow, WindowID: *originalFocusID}); err != nil {
			logging.Debugf("window_order: restore focus failed (window may be gone): %s", err)
		}
	}
	return nil
}

func (p *Plugin) currentFocusID(ctx context.Context) (*uint64, error) {
	focused, err := p.deps.Compositor.FocusedWindow(ctx)
	if err != nil {
		return nil, err
	}
	if focused == nil {
		return nil, nil
	}
	id := focused.ID
	return &id, nil
}

// item is one tiled window under consideration, with its weight, current
// column, and position in the input snapshot.
type item struct {
	id      uint64
	column  int
	weight  uint32
	inputIx int
}

func tiledWindowsInWorkspace(windows []compositor.Window, wsID uint64) []compositor.Window {
	out := make([]compositor.Window, 0, len(windows))
	for _, w := range windows {
		if w.Floating || w.WorkspaceID == nil || *w.WorkspaceID != wsID || w.Layout == nil {
			continue
		}
		out = append(out, w)
	}
	return out
}

// weightFor implements spec §4.5's weight resolution: exact key, then
// first substring-overlapping key, then default.
func weightFor(appID string, weights map[string]uint32, defaultWeight uint32) uint32 {
	if w, ok := weights[appID]; ok {
		return w
	}
	for k, w := range weights {
		if strings.Contains(appID, k) || strings.Contains(k, appID) {
			return w
		}
	}
	return defaultWeight
}

func buildItems(windows []compositor.Window, weights map[string]uint32, defaultWeight uint32) []item {
	items := make([]item, len(windows))
	for i, w := range windows {
		items[i] = item{
			id:      w.ID,
			column:  w.Layout.Tile.Column,
			weight:  weightFor(w.AppID, weights, defaultWeight),
			inputIx: i,
		}
	}
	return items
}

// computeTargetColumns sorts a stable copy by weight descending, then
// current column ascending, and assigns target columns left-to-right from
// the sorted order's original column positions (spec §4.5).
func computeTargetColumns(items []item) map[uint64]int {
	sorted := make([]item, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].weight != sorted[j].weight {
			return sorted[i].weight > sorted[j].weight
		}
		return sorted[i].column < sorted[j].column
	})

	columns := make([]int, len(items))
	for i, it := range items {
		columns[i] = it.column
	}
	sort.Ints(columns)

	target := make(map[uint64]int, len(items))
	for i, it := range sorted {
		target[it.id] = columns[i]
	}
	return target
}

// applyMoves runs the greedy minimum-moves search of spec §4.5 until the
// permutation matches target or the iteration cap trips.
func (p *Plugin) applyMoves(ctx context.Context, items []item, target map[uint64]int, focusedID *uint64) error {
	current := make(map[uint64]int, len(items))
	for _, it := range items {
		current[it.id] = it.column
	}

	for iter := 0; iter < maxIterations; iter++ {
		if permutationMatches(current, target) {
			return nil
		}

		bestID, bestFrom, bestTo, bestScore, bestDist := uint64(0), 0, 0, -1, 0
		found := false
		for id, from := range current {
			to, ok := target[id]
			if !ok || from == to {
				continue
			}
			simulated := simulateMove(current, id, from, to)
			score := scoreAgainstTarget(simulated, target)
			dist := abs(from - to)
			completes := permutationMatches(simulated, target)

			better := false
			switch {
			case !found:
				better = true
			case score > bestScore:
				better = true
			case score == bestScore && dist < bestDist:
				better = true
			case score == bestScore && dist == bestDist && focusedID != nil && id == *focusedID && completes:
				better = true
			}
			if better {
				bestID, bestFrom, bestTo, bestScore, bestDist = id, from, to, score, dist
				found = true
			}
		}
		if !found {
			return nil
		}

		if err := p.deps.Compositor.Action(ctx, compositor.Action{Kind: compositor.ActionFocusWindow, WindowID: bestID}); err != nil {
			return err
		}
		if err := compositor.Sleep(ctx, focusSettleDelay); err != nil {
			return err
		}
		if err := p.deps.Compositor.Action(ctx, compositor.Action{Kind: compositor.ActionMoveColumnToIndex, ColumnIndex: bestTo}); err != nil {
			return err
		}
		if err := compositor.Sleep(ctx, moveSettleDelay); err != nil {
			return err
		}
		current = simulateMove(current, bestID, bestFrom, bestTo)
	}
	logging.Warnf("window_order: iteration cap reached before permutation converged")
	return nil
}

func simulateMove(current map[uint64]int, movedID uint64, from, to int) map[uint64]int {
	next := make(map[uint64]int, len(current))
	for id, col := range current {
		switch {
		case id == movedID:
			next[id] = to
		case from < to && col > from && col <= to:
			next[id] = col - 1
		case from > to && col >= to && col < from:
			next[id] = col + 1
		default:
			next[id] = col
		}
	}
	return next
}

func scoreAgainstTarget(current map[uint64]int, target map[uint64]int) int {
	score := 0
	for id, col := range current {
		if t, ok := target[id]; ok && t == col {
			score++
		}
	}
	return score
}

func permutationMatches(current, target map[uint64]int) bool {
	for id, col := range current {
		if target[id] != col {
			return false
		}
	}
	return true
}

func focusedWorkspace(workspaces []compositor.Workspace) *compositor.Workspace {
	for i, ws := range workspaces {
		if ws.Focused {
			return &workspaces[i]
		}
	}
	return nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
