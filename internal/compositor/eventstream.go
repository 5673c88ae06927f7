package compositor

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
)

// EventStream is a dedicated connection to the compositor's event feed,
// separate from Client's cached request/reply socket (spec §4.8: "Event
// stream creation uses a dedicated connection").
type EventStream struct {
	conn net.Conn
	r    *bufio.Reader
}

// DialEventStream opens a fresh connection and subscribes to the event
// stream.
func DialEventStream(ctx context.Context, path string) (*EventStream, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, fmt.Errorf("compositor: dial event stream: %w", err)
	}
	req, err := json.Marshal(Request{Kind: RequestEventStream})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("compositor: encode event stream request: %w", err)
	}
	req = append(req, '\n')
	if _, err := conn.Write(req); err != nil {
		conn.Close()
		return nil, fmt.Errorf("compositor: subscribe event stream: %w", err)
	}
	return &EventStream{conn: conn, r: bufio.NewReader(conn)}, nil
}

// Next blocks until the next event arrives, the stream ends, or ctx is
// cancelled (cancellation is implemented by the caller closing the stream
// from another goroutine, since net.Conn reads do not natively observe a
// context).
func (s *EventStream) Next() (Event, error) {
	line, err := s.r.ReadBytes('\n')
	if err != nil {
		return Event{}, fmt.Errorf("compositor: read event: %w", err)
	}
	return DecodeEvent(line)
}

// Close drops the event-stream connection, causing any in-flight Next call
// to return an error. This is how the pump's reconnect loop and the
// supervisor's shutdown cancel a blocked read (spec §5: "passively
// cancelled by dropping its socket").
func (s *EventStream) Close() error {
	return s.conn.Close()
}
