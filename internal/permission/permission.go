// Package permission resolves spindle's closed permission-profile table
// (spec §4.4) into a concrete `allowed_tools` string and `auto_shard` flag.
//
// The allow-lists below are the inverse of the ancestor CLI's guardrail
// write-tool/bash-write-pattern taxonomy (internal/guardrail): rather than
// detecting writes to block them for a read-only role, readonly/careful
// enumerate exactly which tools and shell verbs a spool's child may use.
package permission

import "strings"

// readTools are available to every profile except full/shard, which pass
// no restriction at all.
var readTools = []string{"Read", "Grep", "Glob", "WebFetch"}

// writeTools are additionally available to careful and careful+shard.
var writeTools = []string{"Write", "Edit", "MultiEdit", "NotebookEdit"}

// readOnlyShellVerbs are safe, non-mutating shell invocations allowed under
// readonly.
var readOnlyShellVerbs = []string{"ls", "cat", "grep", "find", "git status", "git log", "git diff"}

// devShellVerbs are additionally allowed under careful: they mutate the
// working tree but are ordinary development actions, not destructive ones.
var devShellVerbs = []string{"git add", "git commit", "npm test", "go test", "go build", "make"}

// BypassMode selects the child's non-interactive acceptance mode (spec
// §4.4): "bypass" for full/shard/any *+shard profile, "accept-edits"
// otherwise.
type BypassMode string

const (
	ModeBypass      BypassMode = "bypass-permissions"
	ModeAcceptEdits BypassMode = "accept-edits"
)

// Resolved is the outcome of resolving a requested profile plus any
// explicit allowed_tools override.
type Resolved struct {
	Profile      string
	AllowedTools string
	AutoShard    bool
	Mode         BypassMode
}

// knownProfiles is the closed table from spec §4.4.
var knownProfiles = map[string]bool{
	"readonly":      true,
	"careful":       true,
	"full":          true,
	"shard":         true,
	"careful+shard": true,
}

const defaultProfile = "careful"

// Resolve implements the resolution rule: an explicit allowed_tools
// argument wins and suppresses auto-shard; otherwise the named profile
// (default "careful") decides. Unknown profile names fall back to
// "careful".
func Resolve(profile string, explicitAllowedTools *string) Resolved {
	name := normalizeProfile(profile)
	if !knownProfiles[name] {
		name = defaultProfile
	}

	if explicitAllowedTools != nil {
		return Resolved{
			Profile:      name,
			AllowedTools: *explicitAllowedTools,
			AutoShard:    false,
			Mode:         modeFor(name),
		}
	}

	return Resolved{
		Profile:      name,
		AllowedTools: allowedToolsFor(name),
		AutoShard:    autoShardFor(name),
		Mode:         modeFor(name),
	}
}

func normalizeProfile(profile string) string {
	if profile == "" {
		return defaultProfile
	}
	return profile
}

func allowedToolsFor(profile string) string {
	switch profile {
	case "readonly":
		return strings.Join(append(append([]string{}, readTools...), readOnlyShellVerbs...), ",")
	case "careful", "careful+shard":
		tools := append(append([]string{}, readTools...), writeTools...)
		tools = append(tools, readOnlyShellVerbs...)
		tools = append(tools, devShellVerbs...)
		return strings.Join(tools, ",")
	case "full", "shard":
		return "" // unrestricted
	default:
		return allowedToolsFor(defaultProfile)
	}
}

func autoShardFor(profile string) bool {
	switch profile {
	case "shard", "careful+shard":
		return true
	default:
		return false
	}
}

func modeFor(profile string) BypassMode {
	switch profile {
	case "full", "shard":
		return ModeBypass
	default:
		if strings.HasSuffix(profile, "+shard") {
			return ModeBypass
		}
		return ModeAcceptEdits
	}
}
