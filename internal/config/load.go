package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// DefaultPath returns ~/.config/niri/piri.toml with tilde/env expansion
// (spec §6).
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.Getenv("HOME")
	}
	return filepath.Join(home, ".config", "niri", "piri.toml")
}

// ExpandPath expands a leading "~" and any $VAR / ${VAR} references in a
// user-supplied --config path.
func ExpandPath(p string) string {
	if p == "" {
		return p
	}
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			p = filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return os.ExpandEnv(p)
}

// Load reads and parses the TOML config file at path.
func Load(path string) (*File, error) {
	var f File
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &f, nil
}

// SocketPath returns the configured compositor control socket path
// ([niri] socket_path), or "" when it is unset. No default is applied: the
// compositor client and the event pump dial the path exactly as given.
func (f *File) SocketPath() string {
	return f.Niri.SocketPath
}

// ClientSocketPath returns the client IPC socket path (spec §4.9):
// $XDG_RUNTIME_DIR/piri.sock, falling back to /tmp/piri.sock.
func ClientSocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "piri.sock")
	}
	return "/tmp/piri.sock"
}

// ResolveWorkspaceRef decides whether a config-supplied workspace reference
// (name or idx-as-string) matches a given workspace, honoring the priority
// rule from spec §9: "when both a workspace name and an idx with the same
// string form exist, name match wins".
func ResolveWorkspaceRef(ref string, name *string, idx int) bool {
	if name != nil && *name == ref {
		return true
	}
	return strconv.Itoa(idx) == ref
}

// LookupByWorkspaceRef finds the first entry in a name->value map whose key
// matches the workspace by name first, then by idx-as-string (spec §4.1
// "move_to_workspace", §4.4 "look up a command by workspace name first,
// then by idx-as-string", §9 priority rule).
func LookupByWorkspaceRef[V any](m map[string]V, name *string, idx int) (V, bool) {
	var zero V
	if name != nil {
		if v, ok := m[*name]; ok {
			return v, true
		}
	}
	if v, ok := m[strconv.Itoa(idx)]; ok {
		return v, true
	}
	return zero, false
}
