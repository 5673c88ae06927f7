package compositor

import (
	"encoding/json"
	"fmt"
)

// MarshalJSON renders a Request in the compositor's externally-tagged enum
// style: a bare quoted string for the zero-argument variants ("Windows"),
// or a single-key object wrapping the argument payload otherwise
// ({"Action":{...}}).
func (r Request) MarshalJSON() ([]byte, error) {
	switch r.Kind {
	case RequestWindows:
		return json.Marshal("Windows")
	case RequestWorkspaces:
		return json.Marshal("Workspaces")
	case RequestOutputs:
		return json.Marshal("Outputs")
	case RequestFocusedWindow:
		return json.Marshal("FocusedWindow")
	case RequestFocusedOutput:
		return json.Marshal("FocusedOutput")
	case RequestEventStream:
		return json.Marshal("EventStream")
	case RequestAction:
		payload, err := r.Action.MarshalJSON()
		if err != nil {
			return nil, err
		}
		return json.Marshal(map[string]json.RawMessage{"Action": payload})
	default:
		return nil, fmt.Errorf("compositor: unknown request kind %d", r.Kind)
	}
}

// MarshalJSON renders an Action in the same externally-tagged style,
// {"FocusWindow":{"id":5}} etc.
func (a Action) MarshalJSON() ([]byte, error) {
	var key string
	var payload any
	switch a.Kind {
	case ActionFocusWindow:
		key, payload = "FocusWindow", map[string]any{"id": a.WindowID}
	case ActionFocusWorkspace:
		key, payload = "FocusWorkspace", map[string]any{"reference": a.WorkspaceRef}
	case ActionMoveWindowToWorkspace:
		key, payload = "MoveWindowToWorkspace", map[string]any{"window_id": a.WindowID, "reference": a.WorkspaceRef}
	case ActionMoveWindowToMonitor:
		key, payload = "MoveWindowToMonitor", map[string]any{"window_id": a.WindowID, "output": a.OutputName}
	case ActionMoveWindowToFloating:
		key, payload = "MoveWindowToFloating", map[string]any{"id": a.WindowID}
	case ActionMoveWindowToTiling:
		key, payload = "MoveWindowToTiling", map[string]any{"id": a.WindowID}
	case ActionMoveFloatingWindow:
		key, payload = "MoveFloatingWindow", map[string]any{
			"id": a.WindowID,
			"x":  map[string]int{"AdjustFixed": a.DX},
			"y":  map[string]int{"AdjustFixed": a.DY},
		}
	case ActionSetWindowWidth:
		key, payload = "SetWindowWidth", map[string]any{"id": a.WindowID, "change": map[string]int{"SetFixed": a.Width}}
	case ActionSetWindowHeight:
		key, payload = "SetWindowHeight", map[string]any{"id": a.WindowID, "change": map[string]int{"SetFixed": a.Height}}
	case ActionMoveColumnToIndex:
		key, payload = "MoveColumnToIndex", map[string]any{"id": a.WindowID, "index": a.ColumnIndex}
	case ActionConsumeOrExpelWindowLeft:
		key, payload = "ConsumeOrExpelWindowLeft", map[string]any{"id": a.WindowID}
	case ActionFocusColumnFirst:
		key, payload = "FocusColumnFirst", map[string]any{}
	case ActionFocusColumnLast:
		key, payload = "FocusColumnLast", map[string]any{}
	case ActionFocusColumnLeft:
		key, payload = "FocusColumnLeft", map[string]any{}
	case ActionFocusColumnRight:
		key, payload = "FocusColumnRight", map[string]any{}
	default:
		return nil, fmt.Errorf("compositor: unknown action kind %d", a.Kind)
	}
	return json.Marshal(map[string]any{key: payload})
}

// wireEvent mirrors the raw shapes the compositor puts on its event stream,
// one NDJSON line per event.
type wireEvent struct {
	WorkspaceActivated *struct {
		ID      uint64 `json:"id"`
		Focused bool   `json:"focused"`
	} `json:"WorkspaceActivated,omitempty"`
	WindowOpenedOrChanged *struct {
		Window Window `json:"window"`
	} `json:"WindowOpenedOrChanged,omitempty"`
	WindowClosed *struct {
		ID uint64 `json:"id"`
	} `json:"WindowClosed,omitempty"`
	WindowFocusChanged *struct {
		ID uint64 `json:"id"`
	} `json:"WindowFocusChanged,omitempty"`
	WindowFocusTimestampChanged *struct {
		ID uint64 `json:"id"`
	} `json:"WindowFocusTimestampChanged,omitempty"`
	WindowLayoutsChanged *struct{} `json:"WindowLayoutsChanged,omitempty"`
}

// DecodeEvent parses one NDJSON event-stream line into an Event.
func DecodeEvent(line []byte) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(line, &w); err != nil {
		return Event{}, fmt.Errorf("compositor: decode event: %w", err)
	}
	switch {
	case w.WorkspaceActivated != nil:
		return Event{Kind: EventWorkspaceActivated, WorkspaceID: w.WorkspaceActivated.ID, Focused: w.WorkspaceActivated.Focused}, nil
	case w.WindowOpenedOrChanged != nil:
		return Event{Kind: EventWindowOpenedOrChanged, Window: w.WindowOpenedOrChanged.Window}, nil
	case w.WindowClosed != nil:
		return Event{Kind: EventWindowClosed, WindowID: w.WindowClosed.ID}, nil
	case w.WindowFocusChanged != nil:
		return Event{Kind: EventWindowFocusChanged, WindowID: w.WindowFocusChanged.ID}, nil
	case w.WindowFocusTimestampChanged != nil:
		return Event{Kind: EventWindowFocusTimestampChanged, WindowID: w.WindowFocusTimestampChanged.ID}, nil
	case w.WindowLayoutsChanged != nil:
		return Event{Kind: EventWindowLayoutsChanged}, nil
	default:
		return Event{}, fmt.Errorf("compositor: unrecognized event line %q", string(line))
	}
}

// wireResponse mirrors the raw reply envelope: either {"Ok": <payload>} or
// {"Err": "message"}.
type wireResponse struct {
	Ok  *Response `json:"Ok,omitempty"`
	Err *string   `json:"Err,omitempty"`
}

// DecodeResponse parses one reply line into a Response.
func DecodeResponse(line []byte) (Response, error) {
	var w wireResponse
	if err := json.Unmarshal(line, &w); err != nil {
		return Response{}, fmt.Errorf("compositor: decode response: %w", err)
	}
	if w.Err != nil {
		return Response{Error: *w.Err}, nil
	}
	if w.Ok != nil {
		resp := *w.Ok
		resp.Handled = true
		return resp, nil
	}
	return Response{Handled: true}, nil
}
