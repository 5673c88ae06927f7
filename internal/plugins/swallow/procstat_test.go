package swallow

import (
	"errors"
	"testing"
)

var errNotFound = errors.New("pid not found")

func TestParseStatPPIDNormalLine(t *testing.T) {
	line := []byte("1234 (bash) S 999 1234 1234 0 -1 4194304 ...")
	got, err := parseStatPPID(line)
	if err != nil {
		t.Fatalf("parseStatPPID: %v", err)
	}
	if got != 999 {
		t.Errorf("ppid = %d, want 999", got)
	}
}

func TestParseStatPPIDCommWithSpacesAndParens(t *testing.T) {
	line := []byte("1234 (my (weird) prog) S 42 1234 1234 0 -1 4194304 ...")
	got, err := parseStatPPID(line)
	if err != nil {
		t.Fatalf("parseStatPPID: %v", err)
	}
	if got != 42 {
		t.Errorf("ppid = %d, want 42", got)
	}
}

func TestParseStatPPIDMalformedNoCloseParen(t *testing.T) {
	if _, err := parseStatPPID([]byte("1234 bash S 999")); err == nil {
		t.Error("expected error for missing ')'")
	}
}

func TestParseStatPPIDShortLine(t *testing.T) {
	if _, err := parseStatPPID([]byte("1234 (bash)")); err == nil {
		t.Error("expected error for short stat line")
	}
}

func TestParseStatPPIDNonNumericPPID(t *testing.T) {
	if _, err := parseStatPPID([]byte("1234 (bash) S abc 1234")); err == nil {
		t.Error("expected error for non-numeric ppid")
	}
}

func TestAncestorsStopsAtPID1(t *testing.T) {
	lookups := map[int]int{
		100: 50,
		50:  1,
	}
	set := ancestorsWithLookup(100, func(pid int) (int, error) {
		ppid, ok := lookups[pid]
		if !ok {
			return 0, errNotFound
		}
		return ppid, nil
	})
	for _, want := range []int{100, 50, 1} {
		if !set[want] {
			t.Errorf("ancestors missing pid %d: %+v", want, set)
		}
	}
	if len(set) != 3 {
		t.Errorf("ancestors = %+v, want exactly {100,50,1}", set)
	}
}

func TestAncestorsBreaksOnCycle(t *testing.T) {
	lookups := map[int]int{
		10: 20,
		20: 10,
	}
	set := ancestorsWithLookup(10, func(pid int) (int, error) {
		return lookups[pid], nil
	})
	if !set[10] || !set[20] {
		t.Errorf("ancestors should contain both cycle members: %+v", set)
	}
}

func TestAncestorsStopsOnLookupFailure(t *testing.T) {
	set := ancestorsWithLookup(5, func(pid int) (int, error) {
		return 0, errNotFound
	})
	if !set[5] || len(set) != 1 {
		t.Errorf("ancestors = %+v, want exactly {5}", set)
	}
}
