// Package ipc implements C4, the client control socket (spec §4.9): a Unix
// socket accepting length-prefixed JSON requests, dispatching them to the
// plugin manager or handling Ping/Shutdown directly.
package ipc

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"github.com/piri-wm/piri/internal/ipcproto"
	"github.com/piri-wm/piri/internal/logging"
)

const maxRequestBytes = 1 << 20 // guard against a malformed length prefix wedging the reader

// Dispatcher routes a decoded request to whichever plugin owns it.
type Dispatcher interface {
	HandleIPC(ctx context.Context, req ipcproto.Request) (ipcproto.Response, error)
}

// Server listens on path and serves length-prefixed JSON requests (spec
// §4.9, §6 "4-byte big-endian length + UTF-8 JSON body, both directions").
type Server struct {
	path       string
	dispatcher Dispatcher

	reload   func()
	shutdown chan struct{}
	once     sync.Once
}

// New returns a Server that will listen on path once Serve is called.
// reloadFn is invoked synchronously for a Reload request; the Shutdown
// channel returned is closed exactly once, the first time a Shutdown
// request is received.
func New(path string, dispatcher Dispatcher, reloadFn func()) *Server {
	return &Server{
		path:       path,
		dispatcher: dispatcher,
		reload:     reloadFn,
		shutdown:   make(chan struct{}),
	}
}

// Shutdown returns the channel that closes once a client sends a Shutdown
// request (spec §4.9 "fires a single-shot notifier that the main loop
// observes").
func (s *Server) Shutdown() <-chan struct{} { return s.shutdown }

// Serve binds the socket and accepts connections until ctx is cancelled.
// Any pre-existing socket file at path is removed first, matching the usual
// stale-socket-from-a-crashed-prior-run cleanup for Unix listeners.
func (s *Server) Serve(ctx context.Context) error {
	_ = os.Remove(s.path)
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "unix", s.path)
	if err != nil {
		return fmt.Errorf("ipc: listen %s: %w", s.path, err)
	}
	defer ln.Close()

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	logging.Infof("ipc: listening on %s", s.path)
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("ipc: accept: %w", err)
			}
		}
		if err := checkPeerUID(conn); err != nil {
			logging.Warnf("ipc: rejecting connection: %s", err)
			conn.Close()
			continue
		}
		go s.handleConn(ctx, conn)
	}
}

// checkPeerUID rejects a connecting client that does not run as the same
// Unix user as this process, a defense-in-depth check on top of the
// socket's file permissions.
func checkPeerUID(conn net.Conn) error {
	uc, ok := conn.(*net.UnixConn)
	if !ok {
		return nil
	}
	raw, err := uc.SyscallConn()
	if err != nil {
		return fmt.Errorf("syscall conn: %w", err)
	}
	var cred *unix.Ucred
	var credErr error
	if err := raw.Control(func(fd uintptr) {
		cred, credErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	}); err != nil {
		return fmt.Errorf("control: %w", err)
	}
	if credErr != nil {
		return fmt.Errorf("getsockopt SO_PEERCRED: %w", credErr)
	}
	if uid := uint32(os.Getuid()); cred.Uid != uid {
		return fmt.Errorf("peer uid %d does not match daemon uid %d", cred.Uid, uid)
	}
	return nil
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	connID := uuid.NewString()
	log := logging.With("conn_id", connID)
	for {
		req, err := readRequest(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Warn(fmt.Sprintf("ipc: read request: %s", err))
			}
			return
		}
		resp := s.dispatch(ctx, req)
		if err := writeResponse(conn, resp); err != nil {
			log.Warn(fmt.Sprintf("ipc: write response: %s", err))
			return
		}
	}
}

func (s *Server) dispatch(ctx context.Context, req ipcproto.Request) ipcproto.Response {
	switch req.Kind {
	case ipcproto.Ping:
		return ipcproto.Pong()
	case ipcproto.Shutdown:
		s.once.Do(func() { close(s.shutdown) })
		return ipcproto.Success()
	case ipcproto.Reload:
		if s.reload != nil {
			s.reload()
		}
		return ipcproto.Success()
	default:
		resp, err := s.dispatcher.HandleIPC(ctx, req)
		if err != nil {
			return ipcproto.Err(err.Error())
		}
		return resp
	}
}

func readRequest(r io.Reader) (ipcproto.Request, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return ipcproto.Request{}, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > maxRequestBytes {
		return ipcproto.Request{}, fmt.Errorf("ipc: request too large: %d bytes", n)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return ipcproto.Request{}, err
	}
	var req ipcproto.Request
	if err := json.Unmarshal(body, &req); err != nil {
		return ipcproto.Request{}, fmt.Errorf("ipc: decode request: %w", err)
	}
	return req, nil
}

func writeResponse(w io.Writer, resp ipcproto.Response) error {
	body, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("ipc: encode response: %w", err)
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(body)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err = w.Write(body)
	return err
}
