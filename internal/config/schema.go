// Package config owns piri's typed view of the user's TOML configuration
// file (spec §2 C2, §6). It knows nothing about the compositor protocol or
// about plugin runtime state: it is purely the declarative, reloadable
// input every plugin's FromConfig constructor reads from.
package config

// File is the root of the TOML document (spec §6).
type File struct {
	Niri   NiriSection            `toml:"niri"`
	Piri   PiriSection            `toml:"piri"`
	Scratchpads map[string]ScratchpadEntry `toml:"scratchpads"`
	Empty       map[string]EmptyEntry      `toml:"empty"`
	Singleton   map[string]SingletonEntry  `toml:"singleton"`
	WindowRule  []WindowRuleEntry          `toml:"window_rule"`
	WindowOrder map[string]uint32          `toml:"window_order"`
	Swallow     []SwallowEntry             `toml:"swallow"`
}

type NiriSection struct {
	SocketPath string `toml:"socket_path"`
}

type PiriSection struct {
	Scratchpad  ScratchpadDefaults `toml:"scratchpad"`
	Plugins     PluginToggles      `toml:"plugins"`
	WindowOrder WindowOrderSection `toml:"window_order"`
	Swallow     SwallowSection     `toml:"swallow"`
}

type ScratchpadDefaults struct {
	DefaultSize    string `toml:"default_size"`
	DefaultMargin  uint32 `toml:"default_margin"`
	MoveToWorkspace string `toml:"move_to_workspace"`
}

type PluginToggles struct {
	Scratchpads *bool `toml:"scratchpads"`
	Empty       *bool `toml:"empty"`
	WindowRule  *bool `toml:"window_rule"`
	Autofill    *bool `toml:"autofill"`
	Singleton   *bool `toml:"singleton"`
	WindowOrder *bool `toml:"window_order"`
	Swallow     *bool `toml:"swallow"`
}

// boolOr returns the toggle's value, defaulting to def when unset: an
// absent [piri.plugins] entry means "on" for every plugin but autofill,
// matching the original's behavior of policies being active unless
// explicitly turned off.
func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

func (t PluginToggles) ScratchpadsEnabled() bool { return boolOr(t.Scratchpads, true) }
func (t PluginToggles) EmptyEnabled() bool       { return boolOr(t.Empty, true) }
func (t PluginToggles) WindowRuleEnabled() bool  { return boolOr(t.WindowRule, true) }
func (t PluginToggles) AutofillEnabled() bool    { return boolOr(t.Autofill, false) }
func (t PluginToggles) SingletonEnabled() bool   { return boolOr(t.Singleton, true) }
func (t PluginToggles) WindowOrderEnabled() bool { return boolOr(t.WindowOrder, true) }
func (t PluginToggles) SwallowEnabled() bool     { return boolOr(t.Swallow, true) }

type WindowOrderSection struct {
	EnableEventListener bool     `toml:"enable_event_listener"`
	DefaultWeight       uint32   `toml:"default_weight"`
	Workspaces          []string `toml:"workspaces"`
}

type SwallowSection struct {
	UsePIDMatching bool         `toml:"use_pid_matching"`
	Exclude        ExcludeRules `toml:"exclude"`
}

// StringList decodes a TOML value that may be either a bare string or an
// array of strings (spec §6: "string|[string]" fields).
type StringList []string

func (s *StringList) UnmarshalTOML(v any) error {
	switch t := v.(type) {
	case string:
		*s = StringList{t}
	case []any:
		out := make(StringList, 0, len(t))
		for _, e := range t {
			if str, ok := e.(string); ok {
				out = append(out, str)
			}
		}
		*s = out
	}
	return nil
}

type ExcludeRules struct {
	AppID StringList `toml:"app_id"`
	Title StringList `toml:"title"`
}

type ScratchpadEntry struct {
	Direction string `toml:"direction"`
	Command   string `toml:"command"`
	AppID     string `toml:"app_id"`
	Size      string `toml:"size"`
	Margin    uint32 `toml:"margin"`
}

type EmptyEntry struct {
	Command string `toml:"command"`
}

type SingletonEntry struct {
	Command          string `toml:"command"`
	AppID            string `toml:"app_id"`
	OnCreatedCommand string `toml:"on_created_command"`
}

type WindowRuleEntry struct {
	AppID            StringList `toml:"app_id"`
	Title            StringList `toml:"title"`
	OpenOnWorkspace  string     `toml:"open_on_workspace"`
	FocusCommand     string     `toml:"focus_command"`
	FocusCommandOnce bool       `toml:"focus_command_once"`
}

type SwallowEntry struct {
	ParentAppID StringList `toml:"parent_app_id"`
	ParentTitle StringList `toml:"parent_title"`
	ChildAppID  StringList `toml:"child_app_id"`
	ChildTitle  StringList `toml:"child_title"`
}
