// Package pump implements the event pump (spec §2 C6, §4.7): a single task
// that owns the compositor event stream, reconnects on drop, and publishes
// every decoded event onto a buffered channel. Nothing else in piri dials
// the event-stream socket (spec §3 Invariant: "single-producer").
package pump

import (
	"context"
	"time"

	"github.com/piri-wm/piri/internal/compositor"
	"github.com/piri-wm/piri/internal/logging"
	"github.com/piri-wm/piri/internal/notify"
)

const reconnectDelay = 1 * time.Second

// Pump owns the event-stream connection and fans decoded events out onto
// Events. Events is buffered to 4096 entries; once the buffer is full, the
// pump stops reading the stream until the consumer takes an event.
type Pump struct {
	socketPath string
	Events     chan compositor.Event
}

// New returns a Pump that will dial socketPath once Run is called.
func New(socketPath string) *Pump {
	return &Pump{
		socketPath: socketPath,
		Events:     make(chan compositor.Event, 4096),
	}
}

// Run blocks, dialing the event stream and forwarding decoded events onto
// Events, reconnecting with a 1s backoff on EOF or error, until ctx is
// cancelled. Run closes Events before returning.
func (p *Pump) Run(ctx context.Context) {
	defer close(p.Events)
	firstConnect := true
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		stream, err := compositor.DialEventStream(ctx, p.socketPath)
		if err != nil {
			logging.Warnf("pump: failed to connect to event stream: %s", err)
			if !p.wait(ctx, reconnectDelay) {
				return
			}
			continue
		}
		if firstConnect {
			notify.Notify("piri", "connected to compositor event stream")
			firstConnect = false
		} else {
			logging.Infof("pump: reconnected to event stream")
		}
		p.drain(ctx, stream)
		_ = stream.Close()
		select {
		case <-ctx.Done():
			return
		default:
		}
		if !p.wait(ctx, reconnectDelay) {
			return
		}
	}
}

// drain reads events off stream until it errors/EOFs or ctx is cancelled
// (observed by watching for ctx.Done() concurrently and closing the
// stream, since a blocking Read does not otherwise see context
// cancellation).
func (p *Pump) drain(ctx context.Context, stream *compositor.EventStream) {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = stream.Close()
		case <-done:
		}
	}()
	defer close(done)
	for {
		ev, err := stream.Next()
		if err != nil {
			logging.Warnf("pump: event stream ended: %s", err)
			return
		}
		select {
		case p.Events <- ev:
		case <-ctx.Done():
			return
		}
	}
}

func (p *Pump) wait(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
