package playback

import "strings"

// Policy mirrors the host's appetite for unattended audio output.
type Policy int

const (
	// PolicyAllowed permits audible fallback playback.
	PolicyAllowed Policy = iota
	// PolicyAllowedMuted permits fallback playback only if silent.
	PolicyAllowedMuted
	// PolicyDisallowed forbids fallback playback entirely.
	PolicyDisallowed
)

func (p Policy) String() string {
	switch p {
	case PolicyAllowed:
		return "allowed"
	case PolicyAllowedMuted:
		return "muted"
	case PolicyDisallowed:
		return "disallowed"
	}
	return "unknown"
}

// PolicyFunc reports the current playback policy. It is consulted at
// fallback time, not cached, since the environment can change.
type PolicyFunc func() Policy

// FixedPolicy parses a configured policy override. The empty string and
// unknown values report no override.
func FixedPolicy(name string) (PolicyFunc, bool) {
	var p Policy
	switch strings.ToLower(name) {
	case "allowed":
		p = PolicyAllowed
	case "muted":
		p = PolicyAllowedMuted
	case "disallowed":
		p = PolicyDisallowed
	default:
		return nil, false
	}
	return func() Policy { return p }, true
}

// ProbePolicy derives the policy from what the system player can do:
// allowed when a player binary is on PATH, disallowed otherwise.
func ProbePolicy(player *SystemPlayer) PolicyFunc {
	return func() Policy {
		if player.Available() {
			return PolicyAllowed
		}
		return PolicyDisallowed
	}
}
