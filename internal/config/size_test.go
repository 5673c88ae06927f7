package config

import "testing"

func TestParseSizeFormatSizeRoundTrip(t *testing.T) {
	for w := 0; w <= 100; w += 7 {
		for h := 0; h <= 100; h += 11 {
			s := FormatSize(Size{WidthPct: w, HeightPct: h})
			got, err := ParseSize(s)
			if err != nil {
				t.Fatalf("ParseSize(%q): %v", s, err)
			}
			if got.WidthPct != w || got.HeightPct != h {
				t.Errorf("round trip %d%% %d%% -> %q -> %+v", w, h, s, got)
			}
		}
	}
}

func TestParseSizeRejectsMalformed(t *testing.T) {
	for _, s := range []string{"", "50%", "50% 50% 50%", "abc def", "50 50"} {
		if _, err := ParseSize(s); err == nil {
			t.Errorf("ParseSize(%q): expected error, got none", s)
		}
	}
}

func TestSizeResolveFullOutputYieldsFullSize(t *testing.T) {
	s := Size{WidthPct: 100, HeightPct: 100}
	w, h := s.Resolve(1920, 1080)
	if w != 1920 || h != 1080 {
		t.Errorf("Resolve(100%%, 100%%) on 1920x1080 = (%d, %d), want (1920, 1080)", w, h)
	}
}
