package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Size is a pair of percentages of output width/height, as found in
// ScratchpadConfig.Size (spec §3: `"<w>% <h>%"`).
type Size struct {
	WidthPct  int
	HeightPct int
}

// ParseSize parses a "W% H%" string. Round-trips with FormatSize for every
// w, h in [0, 100] (spec §8 round-trip laws).
func ParseSize(s string) (Size, error) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return Size{}, fmt.Errorf("config: invalid size %q: want \"W%% H%%\"", s)
	}
	w, err := parsePercent(fields[0])
	if err != nil {
		return Size{}, fmt.Errorf("config: invalid size %q: %w", s, err)
	}
	h, err := parsePercent(fields[1])
	if err != nil {
		return Size{}, fmt.Errorf("config: invalid size %q: %w", s, err)
	}
	return Size{WidthPct: w, HeightPct: h}, nil
}

func parsePercent(f string) (int, error) {
	num, ok := strings.CutSuffix(f, "%")
	if !ok {
		return 0, fmt.Errorf("not a percentage: %q", f)
	}
	n, err := strconv.Atoi(num)
	if err != nil {
		return 0, fmt.Errorf("not a percentage: %q", f)
	}
	return n, nil
}

// FormatSize renders a Size back to "W% H%".
func FormatSize(s Size) string {
	return fmt.Sprintf("%d%% %d%%", s.WidthPct, s.HeightPct)
}

// Resolve converts percentages against an output dimension to pixels.
func (s Size) Resolve(outputW, outputH int) (w, h int) {
	w = outputW * s.WidthPct / 100
	h = outputH * s.HeightPct / 100
	return
}
