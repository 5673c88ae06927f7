// Package plugin defines the uniform interface every policy plugin
// (P1..P6) implements (spec §2 C5), plus the shared dependency bundle and
// factory registration hook. The set of plugins is closed and fixed at
// build time: each plugin package registers a Factory in an init()
// function via github.com/thediveo/go-plugger/v3, the same compile-time
// group-registry mechanism the teacher uses for its engine detector and
// activator plugins. This gives the manager a cheap, inlinable, non-boxed
// way to enumerate "all policy plugins" without reflection or a
// hand-maintained switch (spec §9 "Dynamic dispatch vs. tagged variants").
package plugin

import (
	"context"

	"github.com/piri-wm/piri/internal/compositor"
	"github.com/piri-wm/piri/internal/config"
	"github.com/piri-wm/piri/internal/ipcproto"
	"github.com/piri-wm/piri/internal/match"
	"github.com/thediveo/go-plugger/v3"
)

// Deps bundles the shared collaborators every plugin needs: the compositor
// client (C1) and the shared regex cache (C3). The notifier and logger are
// reached through their own package-level façades, so they are not threaded
// through here.
type Deps struct {
	Compositor *compositor.Client
	Matches    *match.Cache
}

// Policy is the interface every plugin implements (spec §2 C5).
type Policy interface {
	// Name identifies the plugin for logging, IPC routing errors, and the
	// config [piri.plugins] enable bit.
	Name() string

	// IsInterestedIn reports whether the plugin wants to see this event.
	// Called by the manager for every event before HandleEvent, so it must
	// be cheap (spec §4.7).
	IsInterestedIn(ev compositor.Event) bool

	// HandleEvent processes one compositor event. Called only when
	// IsInterestedIn returned true for it. Implementations must serialize
	// their own mutable state, since the manager may invoke HandleEvent for
	// the same plugin concurrently from multiple spawned goroutines (spec
	// §5).
	HandleEvent(ctx context.Context, ev compositor.Event) error

	// HandleIPC attempts to satisfy req. ok is false when this plugin does
	// not own requests of this kind; the manager tries the next plugin in
	// that case (spec §4.7).
	HandleIPC(ctx context.Context, req ipcproto.Request) (resp ipcproto.Response, ok bool)

	// UpdateConfig performs a structural merge of the new configuration
	// into the plugin's running state: bound window ids and visibility
	// survive a reload when the same name is still configured (spec §9).
	UpdateConfig(f *config.File) error
}

// Factory constructs a fresh Policy instance from the shared dependency
// bundle and the current configuration. The manager only calls Factory for
// a plugin whose [piri.plugins] enable bit is currently true; a disabled
// plugin is simply never constructed (or is dropped, if it already existed
// under a prior config generation).
type Factory func(deps Deps, f *config.File) (Policy, error)

// Register adds a plugin factory to the closed, compile-time-fixed set via
// go-plugger's group registry. Intended to be called only from a plugin
// package's init() function, mirroring the teacher's
// plugger.Group[T]().Register(impl, plugger.WithPlugin(name)) idiom.
func Register(name string, f Factory) {
	plugger.Group[Factory]().Register(f, plugger.WithPlugin(name))
}

// Named pairs a registered plugin's name with its Factory.
type Named struct {
	Name    string
	Factory Factory
}

// All returns the compile-time-fixed set of registered (name, Factory)
// pairs, in the order go-plugger reports them (its grouping is stable
// within a single build).
func All() []Named {
	symbols := plugger.Group[Factory]().PluginsSymbols()
	out := make([]Named, 0, len(symbols))
	for _, s := range symbols {
		out = append(out, Named{Name: s.Plugin, Factory: s.S})
	}
	return out
}
