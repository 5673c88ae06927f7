package manager_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/piri-wm/piri/internal/compositor"
	"github.com/piri-wm/piri/internal/config"
	"github.com/piri-wm/piri/internal/ipcproto"
	"github.com/piri-wm/piri/internal/manager"
	"github.com/piri-wm/piri/internal/plugin"
)

func TestManager(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "piri/internal/manager")
}

// fakePolicy is a test-only plugin.Policy, registered through the same
// go-plugger group the real plugins use, so the manager's init/update/drop
// transitions and dispatch logic are exercised without importing a real
// plugin package.
type fakePolicy struct {
	name string

	mu          sync.Mutex
	updateCalls int
	lastFile    *config.File

	handleCalls atomic.Int64
	interested  bool
	ipcOK       bool
}

func (f *fakePolicy) Name() string { return f.name }

func (f *fakePolicy) IsInterestedIn(ev compositor.Event) bool { return f.interested }

func (f *fakePolicy) HandleEvent(ctx context.Context, ev compositor.Event) error {
	f.handleCalls.Add(1)
	return nil
}

func (f *fakePolicy) HandleIPC(ctx context.Context, req ipcproto.Request) (ipcproto.Response, bool) {
	if !f.ipcOK {
		return ipcproto.Response{}, false
	}
	return ipcproto.Success(), true
}

func (f *fakePolicy) UpdateConfig(file *config.File) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++
	f.lastFile = file
	return nil
}

var registered *fakePolicy

func init() {
	plugin.Register("scratchpad", func(deps plugin.Deps, f *config.File) (plugin.Policy, error) {
		registered = &fakePolicy{name: "scratchpad", interested: true, ipcOK: true}
		return registered, nil
	})
}

func enabledFile(scratchpadOn bool) *config.File {
	f := &config.File{}
	f.Piri.Plugins = config.PluginToggles{
		Scratchpads: boolPtr(scratchpadOn),
		Empty:       boolPtr(false),
		WindowRule:  boolPtr(false),
		Singleton:   boolPtr(false),
		WindowOrder: boolPtr(false),
		Swallow:     boolPtr(false),
	}
	return f
}

func boolPtr(b bool) *bool { return &b }

var _ = Describe("plugin manager", func() {

	It("constructs a plugin on init when nothing was registered for it before", func() {
		registered = nil
		mgr := manager.New(plugin.Deps{})
		mgr.Init(enabledFile(true))
		Expect(mgr.Active()).To(ContainElement("scratchpad"))
		Expect(registered).NotTo(BeNil())
	})

	It("dispatches an interesting event to the active plugin", func() {
		registered = nil
		mgr := manager.New(plugin.Deps{})
		mgr.Init(enabledFile(true))

		mgr.Dispatch(context.Background(), compositor.Event{})

		Eventually(func() int64 {
			return registered.handleCalls.Load()
		}, time.Second).Should(BeNumerically(">=", int64(1)))
	})

	It("routes an IPC request to the plugin that owns it", func() {
		registered = nil
		mgr := manager.New(plugin.Deps{})
		mgr.Init(enabledFile(true))

		resp, err := mgr.HandleIPC(context.Background(), ipcproto.Request{Kind: ipcproto.ScratchpadToggle})
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.IsOK()).To(BeTrue())
	})

	It("reconfigures a live plugin in place on reload instead of reconstructing it", func() {
		registered = nil
		mgr := manager.New(plugin.Deps{})
		mgr.Init(enabledFile(true))
		first := registered

		mgr.Reload(enabledFile(true))

		Expect(registered).To(BeIdenticalTo(first))
		Expect(first.updateCalls).To(Equal(1))
	})

	It("drops a plugin once its enable bit flips off", func() {
		registered = nil
		mgr := manager.New(plugin.Deps{})
		mgr.Init(enabledFile(true))
		Expect(mgr.Active()).To(ContainElement("scratchpad"))

		mgr.Reload(enabledFile(false))
		Expect(mgr.Active()).NotTo(ContainElement("scratchpad"))
	})

})
