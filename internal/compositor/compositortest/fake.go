// Package compositortest provides a real-socket fake compositor, grounded
// on the teacher's pattern of exercising socket-facing code against an
// actual net.Listen("unix", ...) rather than a mocked interface (see
// sockfinder_test.go's canary socket). Plugin and client tests dial it the
// same way they would dial a real compositor.
package compositortest

import (
	"bufio"
	"encoding/json"
	"net"
	"sync"

	"github.com/piri-wm/piri/internal/compositor"
)

// Fake is an in-memory compositor control socket plus event stream.
type Fake struct {
	ln net.Listener

	mu              sync.Mutex
	windows         []compositor.Window
	workspaces      []compositor.Workspace
	outputs         []compositor.Output
	actions         []compositor.Action
	focusedWindowID *uint64

	eventMu   sync.Mutex
	eventSubs []chan compositor.Event

	closed chan struct{}
}

// New starts listening on a fresh Unix socket at socketPath and returns the
// Fake serving it.
func New(socketPath string) (*Fake, error) {
	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, err
	}
	f := &Fake{ln: ln, closed: make(chan struct{})}
	go f.serve()
	return f, nil
}

// Path returns the socket's filesystem address.
func (f *Fake) Path() string { return f.ln.Addr().String() }

// Close stops accepting new connections.
func (f *Fake) Close() error {
	close(f.closed)
	return f.ln.Close()
}

// SetWindows replaces the snapshot returned by a Windows request.
func (f *Fake) SetWindows(ws []compositor.Window) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.windows = ws
}

// SetWorkspaces replaces the snapshot returned by a Workspaces request.
func (f *Fake) SetWorkspaces(ws []compositor.Workspace) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.workspaces = ws
}

// SetOutputs replaces the snapshot returned by an Outputs request.
func (f *Fake) SetOutputs(os []compositor.Output) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outputs = os
}

// SetFocusedWindow marks the window with id as focused; pass nil for no
// focused window.
func (f *Fake) SetFocusedWindow(id *uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.focusedWindowID = id
}

// Actions returns every action received so far, for assertions.
func (f *Fake) Actions() []compositor.Action {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]compositor.Action, len(f.actions))
	copy(out, f.actions)
	return out
}

// PushEvent delivers ev to every currently subscribed event stream.
func (f *Fake) PushEvent(ev compositor.Event) {
	f.eventMu.Lock()
	defer f.eventMu.Unlock()
	for _, ch := range f.eventSubs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (f *Fake) serve() {
	for {
		conn, err := f.ln.Accept()
		if err != nil {
			return
		}
		go f.handle(conn)
	}
}

func (f *Fake) handle(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	for {
		line, err := r.ReadBytes('\n')
		if err != nil {
			return
		}
		var req rawRequest
		if err := json.Unmarshal(line, &req); err != nil {
			continue
		}
		if req.isBare("EventStream") {
			f.streamEvents(conn)
			return
		}
		f.dispatch(conn, req)
	}
}

func (f *Fake) dispatch(conn net.Conn, req rawRequest) {
	var resp compositor.Response
	f.mu.Lock()
	switch {
	case req.isBare("Windows"):
		resp = compositor.Response{Windows: f.windows}
	case req.isBare("Workspaces"):
		resp = compositor.Response{Workspaces: f.workspaces}
	case req.isBare("Outputs"):
		resp = compositor.Response{Outputs: f.outputs}
	case req.isBare("FocusedWindow"):
		resp = compositor.Response{FocusedWindow: focusedWindow(f.windows, f.focusedWindowID)}
	case req.isBare("FocusedOutput"):
		resp = compositor.Response{FocusedOutput: firstFocusedOutput(f.outputs)}
	case req.Action != nil:
		f.actions = append(f.actions, *req.Action)
		resp = compositor.Response{Handled: true}
	}
	f.mu.Unlock()

	enc, err := json.Marshal(wireResponse{Ok: &resp})
	if err != nil {
		return
	}
	enc = append(enc, '\n')
	_, _ = conn.Write(enc)
}

func (f *Fake) streamEvents(conn net.Conn) {
	ch := make(chan compositor.Event, 64)
	f.eventMu.Lock()
	f.eventSubs = append(f.eventSubs, ch)
	f.eventMu.Unlock()
	defer func() {
		f.eventMu.Lock()
		for i, c := range f.eventSubs {
			if c == ch {
				f.eventSubs = append(f.eventSubs[:i], f.eventSubs[i+1:]...)
				break
			}
		}
		f.eventMu.Unlock()
	}()

	for {
		select {
		case ev := <-ch:
			body, err := json.Marshal(encodeEvent(ev))
			if err != nil {
				continue
			}
			body = append(body, '\n')
			if _, err := conn.Write(body); err != nil {
				return
			}
		case <-f.closed:
			return
		}
	}
}

func focusedWindow(windows []compositor.Window, id *uint64) *compositor.Window {
	if id == nil {
		return nil
	}
	for i, w := range windows {
		if w.ID == *id {
			return &windows[i]
		}
	}
	return nil
}

func firstFocusedOutput(outputs []compositor.Output) *compositor.Output {
	for i, o := range outputs {
		if o.Focused {
			return &outputs[i]
		}
	}
	return nil
}
