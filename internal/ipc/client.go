package ipc

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/piri-wm/piri/internal/ipcproto"
)

// clientTimeout is the per-operation timeout spec §4.9 mandates on the
// client side of the control socket.
const clientTimeout = 5 * time.Second

// Send dials path, issues req, and returns the daemon's response, applying
// the client-side 5-second timeout to the whole round trip.
func Send(path string, req ipcproto.Request) (ipcproto.Response, error) {
	ctx, cancel := context.WithTimeout(context.Background(), clientTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return ipcproto.Response{}, fmt.Errorf("ipc: dial %s: %w", path, err)
	}
	defer conn.Close()

	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return ipcproto.Response{}, fmt.Errorf("ipc: encode request: %w", err)
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(body)))
	if _, err := conn.Write(lenBuf[:]); err != nil {
		return ipcproto.Response{}, fmt.Errorf("ipc: write request: %w", err)
	}
	if _, err := conn.Write(body); err != nil {
		return ipcproto.Response{}, fmt.Errorf("ipc: write request: %w", err)
	}

	if _, err := io.ReadFull(conn, lenBuf[:]); err != nil {
		return ipcproto.Response{}, fmt.Errorf("ipc: read response: %w", err)
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > maxRequestBytes {
		return ipcproto.Response{}, fmt.Errorf("ipc: response too large: %d bytes", n)
	}
	respBody := make([]byte, n)
	if _, err := io.ReadFull(conn, respBody); err != nil {
		return ipcproto.Response{}, fmt.Errorf("ipc: read response: %w", err)
	}
	var resp ipcproto.Response
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return ipcproto.Response{}, fmt.Errorf("ipc: decode response: %w", err)
	}
	return resp, nil
}
