package compositortest

import (
	"encoding/json"
	"fmt"

	"github.com/piri-wm/piri/internal/compositor"
)

// rawRequest decodes a request line without needing to know whether it was
// a bare string ("Windows") or a single-key object ({"Action": {...}}).
type rawRequest struct {
	bare   string
	Action *compositor.Action
}

func (r *rawRequest) isBare(s string) bool { return r.Action == nil && r.bare == s }

func (r *rawRequest) UnmarshalJSON(data []byte) error {
	var bare string
	if err := json.Unmarshal(data, &bare); err == nil {
		r.bare = bare
		return nil
	}
	var wrapper struct {
		Action json.RawMessage `json:"Action"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return err
	}
	if wrapper.Action == nil {
		return fmt.Errorf("compositortest: unrecognized request %q", string(data))
	}
	a, err := decodeAction(wrapper.Action)
	if err != nil {
		return err
	}
	r.Action = &a
	return nil
}

// decodeAction reverses compositor.Action's externally-tagged encoding for
// the subset of fields the fake needs to expose to test assertions.
func decodeAction(data json.RawMessage) (compositor.Action, error) {
	var keyed map[string]json.RawMessage
	if err := json.Unmarshal(data, &keyed); err != nil {
		return compositor.Action{}, err
	}
	for key, payload := range keyed {
		switch key {
		case "FocusWindow":
			var p struct {
				ID uint64 `json:"id"`
			}
			_ = json.Unmarshal(payload, &p)
			return compositor.Action{Kind: compositor.ActionFocusWindow, WindowID: p.ID}, nil
		case "FocusWorkspace":
			var p struct {
				Reference string `json:"reference"`
			}
			_ = json.Unmarshal(payload, &p)
			return compositor.Action{Kind: compositor.ActionFocusWorkspace, WorkspaceRef: p.Reference}, nil
		case "MoveWindowToWorkspace":
			var p struct {
				WindowID  uint64 `json:"window_id"`
				Reference string `json:"reference"`
			}
			_ = json.Unmarshal(payload, &p)
			return compositor.Action{Kind: compositor.ActionMoveWindowToWorkspace, WindowID: p.WindowID, WorkspaceRef: p.Reference}, nil
		case "MoveWindowToMonitor":
			var p struct {
				WindowID uint64 `json:"window_id"`
				Output   string `json:"output"`
			}
			_ = json.Unmarshal(payload, &p)
			return compositor.Action{Kind: compositor.ActionMoveWindowToMonitor, WindowID: p.WindowID, OutputName: p.Output}, nil
		case "MoveWindowToFloating":
			var p struct {
				ID uint64 `json:"id"`
			}
			_ = json.Unmarshal(payload, &p)
			return compositor.Action{Kind: compositor.ActionMoveWindowToFloating, WindowID: p.ID}, nil
		case "MoveWindowToTiling":
			var p struct {
				ID uint64 `json:"id"`
			}
			_ = json.Unmarshal(payload, &p)
			return compositor.Action{Kind: compositor.ActionMoveWindowToTiling, WindowID: p.ID}, nil
		case "MoveFloatingWindow":
			var p struct {
				ID uint64 `json:"id"`
				X  struct {
					AdjustFixed int `json:"AdjustFixed"`
				} `json:"x"`
				Y struct {
					AdjustFixed int `json:"AdjustFixed"`
				} `json:"y"`
			}
			_ = json.Unmarshal(payload, &p)
			return compositor.Action{Kind: compositor.ActionMoveFloatingWindow, WindowID: p.ID, DX: p.X.AdjustFixed, DY: p.Y.AdjustFixed}, nil
		case "SetWindowWidth":
			var p struct {
				ID     uint64 `json:"id"`
				Change struct {
					SetFixed int `json:"SetFixed"`
				} `json:"change"`
			}
			_ = json.Unmarshal(payload, &p)
			return compositor.Action{Kind: compositor.ActionSetWindowWidth, WindowID: p.ID, Width: p.Change.SetFixed}, nil
		case "SetWindowHeight":
			var p struct {
				ID     uint64 `json:"id"`
				Change struct {
					SetFixed int `json:"SetFixed"`
				} `json:"change"`
			}
			_ = json.Unmarshal(payload, &p)
			return compositor.Action{Kind: compositor.ActionSetWindowHeight, WindowID: p.ID, Height: p.Change.SetFixed}, nil
		case "MoveColumnToIndex":
			var p struct {
				ID    uint64 `json:"id"`
				Index int    `json:"index"`
			}
			_ = json.Unmarshal(payload, &p)
			return compositor.Action{Kind: compositor.ActionMoveColumnToIndex, WindowID: p.ID, ColumnIndex: p.Index}, nil
		case "ConsumeOrExpelWindowLeft":
			var p struct {
				ID uint64 `json:"id"`
			}
			_ = json.Unmarshal(payload, &p)
			return compositor.Action{Kind: compositor.ActionConsumeOrExpelWindowLeft, WindowID: p.ID}, nil
		case "FocusColumnFirst":
			return compositor.Action{Kind: compositor.ActionFocusColumnFirst}, nil
		case "FocusColumnLast":
			return compositor.Action{Kind: compositor.ActionFocusColumnLast}, nil
		case "FocusColumnLeft":
			return compositor.Action{Kind: compositor.ActionFocusColumnLeft}, nil
		case "FocusColumnRight":
			return compositor.Action{Kind: compositor.ActionFocusColumnRight}, nil
		}
	}
	return compositor.Action{}, fmt.Errorf("compositortest: unrecognized action %q", string(data))
}

// wireResponse mirrors compositor.wireResponse; duplicated here since that
// type is unexported in the compositor package.
type wireResponse struct {
	Ok  *compositor.Response `json:"Ok,omitempty"`
	Err *string               `json:"Err,omitempty"`
}

// encodeEvent renders ev in the compositor's wire event shape.
func encodeEvent(ev compositor.Event) map[string]any {
	switch ev.Kind {
	case compositor.EventWorkspaceActivated:
		return map[string]any{"WorkspaceActivated": map[string]any{"id": ev.WorkspaceID, "focused": ev.Focused}}
	case compositor.EventWindowOpenedOrChanged:
		return map[string]any{"WindowOpenedOrChanged": map[string]any{"window": ev.Window}}
	case compositor.EventWindowClosed:
		return map[string]any{"WindowClosed": map[string]any{"id": ev.WindowID}}
	case compositor.EventWindowFocusChanged:
		return map[string]any{"WindowFocusChanged": map[string]any{"id": ev.WindowID}}
	case compositor.EventWindowFocusTimestampChanged:
		return map[string]any{"WindowFocusTimestampChanged": map[string]any{"id": ev.WindowID}}
	case compositor.EventWindowLayoutsChanged:
		return map[string]any{"WindowLayoutsChanged": map[string]any{}}
	default:
		return map[string]any{}
	}
}
