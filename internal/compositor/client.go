package compositor

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/piri-wm/piri/internal/logging"
)

// Client is a typed request/reply wrapper over the compositor's Unix domain
// control socket, plus event-stream subscription. A single cached socket
// handle is shared by all callers under a mutex (spec §4.8, §5): every
// request acquires the mutex, writes the request, reads the reply, and
// releases. If the write or read fails the socket is reconnected once and
// the request retried.
//
// Client is safe for concurrent use; it is the only synchronization point
// plugins need around the compositor socket.
type Client struct {
	path string

	mu   sync.Mutex
	conn net.Conn
	r    *bufio.Reader
}

// New returns a Client dialing the given Unix socket path lazily: no
// connection is made until the first request.
func New(path string) *Client {
	return &Client{path: path}
}

func (c *Client) dialLocked(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", c.path)
	if err != nil {
		return fmt.Errorf("compositor: dial %s: %w", c.path, err)
	}
	c.conn = conn
	c.r = bufio.NewReader(conn)
	return nil
}

func (c *Client) resetLocked() {
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.conn = nil
	c.r = nil
}

// Request sends req and returns the compositor's typed reply. On a
// transient I/O failure the cached socket is reconnected once and the
// request retried; a second failure is returned to the caller.
func (c *Client) Request(ctx context.Context, req Request) (Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	resp, err := c.requestLocked(ctx, req)
	if err == nil {
		return resp, nil
	}
	logging.Warnf("compositor: request failed, reconnecting: %s", err)
	c.resetLocked()
	return c.requestLocked(ctx, req)
}

func (c *Client) requestLocked(ctx context.Context, req Request) (Response, error) {
	if err := c.dialLocked(ctx); err != nil {
		return Response{}, err
	}
	enc, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("compositor: encode request: %w", err)
	}
	enc = append(enc, '\n')
	if dl, ok := ctx.Deadline(); ok {
		_ = c.conn.SetDeadline(dl)
	}
	if _, err := c.conn.Write(enc); err != nil {
		return Response{}, fmt.Errorf("compositor: write request: %w", err)
	}
	line, err := c.r.ReadBytes('\n')
	if err != nil {
		return Response{}, fmt.Errorf("compositor: read reply: %w", err)
	}
	return DecodeResponse(line)
}

// Action is a convenience wrapper sending a RequestAction and discarding the
// reply payload (but not its error).
func (c *Client) Action(ctx context.Context, a Action) error {
	resp, err := c.Request(ctx, Request{Kind: RequestAction, Action: a})
	if err != nil {
		return err
	}
	if resp.Error != "" {
		return fmt.Errorf("compositor: action %d rejected: %s", a.Kind, resp.Error)
	}
	return nil
}

// Windows returns the current window snapshot.
func (c *Client) Windows(ctx context.Context) ([]Window, error) {
	resp, err := c.Request(ctx, Request{Kind: RequestWindows})
	if err != nil {
		return nil, err
	}
	return resp.Windows, nil
}

// Workspaces returns the current workspace snapshot.
func (c *Client) Workspaces(ctx context.Context) ([]Workspace, error) {
	resp, err := c.Request(ctx, Request{Kind: RequestWorkspaces})
	if err != nil {
		return nil, err
	}
	return resp.Workspaces, nil
}

// Outputs returns the current output snapshot.
func (c *Client) Outputs(ctx context.Context) ([]Output, error) {
	resp, err := c.Request(ctx, Request{Kind: RequestOutputs})
	if err != nil {
		return nil, err
	}
	return resp.Outputs, nil
}

// FocusedWindow returns the currently focused window, or nil if none.
func (c *Client) FocusedWindow(ctx context.Context) (*Window, error) {
	resp, err := c.Request(ctx, Request{Kind: RequestFocusedWindow})
	if err != nil {
		return nil, err
	}
	return resp.FocusedWindow, nil
}

// FocusedOutput returns the currently focused output, or nil if none.
func (c *Client) FocusedOutput(ctx context.Context) (*Output, error) {
	resp, err := c.Request(ctx, Request{Kind: RequestFocusedOutput})
	if err != nil {
		return nil, err
	}
	return resp.FocusedOutput, nil
}

// ExecuteBatch exposes the raw, already-mutex-held socket to fn so that a
// multi-step sequence of actions (the swallow batch) can be pipelined
// without releasing the mutex between
// steps and without another caller interleaving actions on the same
// connection (spec §4.8).
func (c *Client) ExecuteBatch(ctx context.Context, fn func(b *Batch) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.dialLocked(ctx); err != nil {
		return err
	}
	b := &Batch{ctx: ctx, c: c}
	if err := fn(b); err != nil {
		return err
	}
	return nil
}

// Batch is the handle ExecuteBatch hands to its closure: every call issues
// one request on the already-held connection.
type Batch struct {
	ctx context.Context
	c   *Client
}

// Action issues one action within the batch.
func (b *Batch) Action(a Action) error {
	resp, err := b.c.requestLocked(b.ctx, Request{Kind: RequestAction, Action: a})
	if err != nil {
		b.c.resetLocked()
		return err
	}
	if resp.Error != "" {
		return fmt.Errorf("compositor: action %d rejected: %s", a.Kind, resp.Error)
	}
	return nil
}

// FocusedWindow reads the currently focused window within the batch.
func (b *Batch) FocusedWindow() (*Window, error) {
	resp, err := b.c.requestLocked(b.ctx, Request{Kind: RequestFocusedWindow})
	if err != nil {
		b.c.resetLocked()
		return nil, err
	}
	return resp.FocusedWindow, nil
}

// Windows reads the current window snapshot within the batch.
func (b *Batch) Windows() ([]Window, error) {
	resp, err := b.c.requestLocked(b.ctx, Request{Kind: RequestWindows})
	if err != nil {
		b.c.resetLocked()
		return nil, err
	}
	return resp.Windows, nil
}

// Close releases the cached socket, if any.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.r = nil
	return err
}

// Sleep is a context-aware sleep used by plugins for settle/poll delays, so
// every blocking wait in the codebase goes through one place that also
// respects shutdown.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
