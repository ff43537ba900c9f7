package core

import (
	"time"
)

// UserGroupEntry is the persistent per-(user,group) record. At most one entry
// exists per key. Seen and Spammer are independent flags: both false means the
// user is still awaiting a first verdict in that group.
type UserGroupEntry struct {
	UserID   int64
	GroupID  int64
	JoinedAt time.Time
	Seen     bool
	Spammer  bool
}

// Pending reports whether the entry is still awaiting a first verdict.
func (e UserGroupEntry) Pending() bool {
	return !e.Seen && !e.Spammer
}

// MembershipStatus is the closed set of member states the platform reports.
// External payloads are converted to this enum at the adapter boundary; the
// engine never sees platform-specific status strings.
type MembershipStatus int

const (
	StatusUnknown MembershipStatus = iota
	StatusMember
	StatusLeft
	StatusBanned
	StatusRestricted
	StatusKicked
	StatusAdministrator
	StatusCreator
)

var statusNames = map[MembershipStatus]string{
	StatusUnknown:       "unknown",
	StatusMember:        "member",
	StatusLeft:          "left",
	StatusBanned:        "banned",
	StatusRestricted:    "restricted",
	StatusKicked:        "kicked",
	StatusAdministrator: "administrator",
	StatusCreator:       "creator",
}

func (s MembershipStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

// ParseMembershipStatus maps a platform status string onto the closed enum.
// Unrecognized values become StatusUnknown rather than an error: the platform
// may grow new states and the engine only acts on the ones it knows.
func ParseMembershipStatus(s string) MembershipStatus {
	for status, name := range statusNames {
		if name == s {
			return status
		}
	}
	return StatusUnknown
}

// restorable reports whether a status counts as a prior moderation state for
// unban detection. The broad set {banned, restricted, kicked} is used: all
// three are produced by moderation actions, so leaving any of them for an
// active state is operator intent to restore the user.
func (s MembershipStatus) restorable() bool {
	return s == StatusBanned || s == StatusRestricted || s == StatusKicked
}

// active reports whether a status counts as the target of an unban.
func (s MembershipStatus) active() bool {
	return s == StatusMember || s == StatusLeft
}

// MessageEvent is a platform message converted into engine terms.
type MessageEvent struct {
	UserID      int64
	GroupID     int64
	MessageID   int64
	Body        string
	AutoForward bool // automated forward from a linked broadcast channel
	FromChannel bool // authored on behalf of a channel rather than the user
	UserBio     string
}

// MembershipEvent is a platform membership transition converted into engine
// terms.
type MembershipEvent struct {
	UserID    int64
	GroupID   int64
	OldStatus MembershipStatus
	NewStatus MembershipStatus
}

// GroupConfig is the settings record for a group the engine moderates.
// Lifecycle (onboarding/offboarding) is driven externally; the pipeline only
// reads it.
type GroupConfig struct {
	GroupID  int64
	Settings map[string]string
}

const settingInstructions = "instructions"

// Instructions returns the group's classification instructions, falling back
// to the supplied default when the group has none configured.
func (g GroupConfig) Instructions(fallback string) string {
	if v, ok := g.Settings[settingInstructions]; ok && v != "" {
		return v
	}
	return fallback
}

// Verdict is the binary outcome of classifying one message.
type Verdict struct {
	Spam   bool
	Reason string
}
