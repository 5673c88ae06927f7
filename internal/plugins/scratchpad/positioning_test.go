package scratchpad

import (
	"testing"

	"github.com/piri-wm/piri/internal/compositor"
)

func TestFullSizeYieldsOriginForAllDirections(t *testing.T) {
	for _, d := range []compositor.Direction{compositor.FromTop, compositor.FromBottom, compositor.FromLeft, compositor.FromRight} {
		x, y := visiblePosition(d, 1920, 1080, 1920, 1080, 0)
		if x != 0 || y != 0 {
			t.Errorf("visiblePosition(%s, full size) = (%d, %d), want (0, 0)", d, x, y)
		}
	}
}

func TestFromTopMarginExceedingHeightStillDeterministic(t *testing.T) {
	visX, visY := visiblePosition(compositor.FromTop, 1920, 1080, 800, 600, 2000)
	if visY <= 0 {
		t.Errorf("visible y = %d, want > 0", visY)
	}
	_, hideY := hiddenPosition(compositor.FromTop, 1920, 1080, 800, 600, 2000)
	if hideY >= 0 {
		t.Errorf("hidden y = %d, want < 0", hideY)
	}
	if visX != (1920-800)/2 {
		t.Errorf("visible x = %d, want %d", visX, (1920-800)/2)
	}
}

func TestMedianWindowIDExcludesScratchpadAndOtherWorkspaces(t *testing.T) {
	ws := uint64(7)
	other := uint64(9)
	windows := []compositor.Window{
		{ID: 1, WorkspaceID: &ws},
		{ID: 2, WorkspaceID: &ws},
		{ID: 3, WorkspaceID: &ws},
		{ID: 99, WorkspaceID: &ws}, // the scratchpad window itself, excluded
		{ID: 4, WorkspaceID: &other},
	}
	got, ok := medianWindowID(windows, ws, 99)
	if !ok {
		t.Fatal("medianWindowID: want ok=true")
	}
	if got != 2 {
		t.Errorf("medianWindowID = %d, want 2 (middle of [1,2,3])", got)
	}
}

func TestMedianWindowIDEmptyWorkspace(t *testing.T) {
	if _, ok := medianWindowID(nil, 1, 99); ok {
		t.Error("medianWindowID on empty window list: want ok=false")
	}
}

func TestPositioningTable(t *testing.T) {
	ow, oh, ww, wh, m := 1920, 1080, 800, 600, 20

	cases := []struct {
		dir           compositor.Direction
		wantVisX, wantVisY int
		wantHideX, wantHideY int
	}{
		{compositor.FromTop, (ow - ww) / 2, m, (ow - ww) / 2, -(wh + m)},
		{compositor.FromBottom, (ow - ww) / 2, oh - wh - m, (ow - ww) / 2, oh + m},
		{compositor.FromLeft, m, (oh - wh) / 2, -(ww + m), (oh - wh) / 2},
		{compositor.FromRight, ow - ww - m, (oh - wh) / 2, ow + m, (oh - wh) / 2},
	}
	for _, c := range cases {
		gotVisX, gotVisY := visiblePosition(c.dir, ow, oh, ww, wh, m)
		if gotVisX != c.wantVisX || gotVisY != c.wantVisY {
			t.Errorf("%s visible = (%d, %d), want (%d, %d)", c.dir, gotVisX, gotVisY, c.wantVisX, c.wantVisY)
		}
		gotHideX, gotHideY := hiddenPosition(c.dir, ow, oh, ww, wh, m)
		if gotHideX != c.wantHideX || gotHideY != c.wantHideY {
			t.Errorf("%s hidden = (%d, %d), want (%d, %d)", c.dir, gotHideX, gotHideY, c.wantHideX, c.wantHideY)
		}
	}
}
