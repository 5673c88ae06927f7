package swallow

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// parentPID reads /proc/<pid>/stat and extracts the ppid field.
func parentPID(pid int) (int, error) {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return 0, err
	}
	ppid, err := parseStatPPID(data)
	if err != nil {
		return 0, fmt.Errorf("swallow: pid %d: %w", pid, err)
	}
	return ppid, nil
}

// parseStatPPID extracts the ppid field (field 4, 1-based, per proc(5))
// from the raw contents of /proc/<pid>/stat. The comm field (field 2) is
// parenthesized and may itself contain spaces or closing parens, so the
// scan starts after the last ')' rather than naively splitting on spaces.
func parseStatPPID(data []byte) (int, error) {
	s := string(data)
	close := strings.LastIndexByte(s, ')')
	if close < 0 || close+2 >= len(s) {
		return 0, fmt.Errorf("malformed stat line")
	}
	fields := strings.Fields(s[close+2:])
	if len(fields) < 2 {
		return 0, fmt.Errorf("short stat line")
	}
	ppid, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, fmt.Errorf("parse ppid: %w", err)
	}
	return ppid, nil
}

// ancestors walks the parent chain of pid until it hits pid <= 1 or a read
// fails, returning the full ancestor set including pid itself.
func ancestors(pid int) map[int]bool {
	return ancestorsWithLookup(pid, parentPID)
}

// ancestorsWithLookup is ancestors with the /proc read swapped for an
// injectable lookup, so the walk and its cycle guard can be exercised
// against synthetic parent chains.
func ancestorsWithLookup(pid int, lookup func(int) (int, error)) map[int]bool {
	set := make(map[int]bool)
	cur := pid
	for cur > 1 {
		if set[cur] {
			break // defend against a cycle in a corrupted /proc snapshot
		}
		set[cur] = true
		next, err := lookup(cur)
		if err != nil {
			break
		}
		cur = next
	}
	if cur > 0 {
		set[cur] = true
	}
	return set
}
