package core

import (
	"context"
	"time"
)

// Store is the persistent per-(user,group) record table. Implementations must
// merge flags on upsert: setting one flag true never clobbers the other back
// to false.
type Store interface {
	// UpsertEntry creates the (user,group) entry or refreshes it, merging the
	// given flags into any existing row.
	UpsertEntry(ctx context.Context, entry UserGroupEntry) error

	// Entry returns the record for (user,group) or ErrNotFound.
	Entry(ctx context.Context, userID, groupID int64) (UserGroupEntry, error)

	// AnySpammer reports whether any group flags the user as spammer.
	AnySpammer(ctx context.Context, userID int64) (bool, error)

	// AnySeen reports whether any group has recorded an accepted message.
	AnySeen(ctx context.Context, userID int64) (bool, error)

	// ClearSpammer resets the spammer flag for (user,group).
	ClearSpammer(ctx context.Context, userID, groupID int64) error

	// GroupsWithSpamFlag lists every group that flags the user.
	GroupsWithSpamFlag(ctx context.Context, userID int64) ([]int64, error)

	// LoadSpammers returns user ids flagged in any group since the cutoff,
	// for cache warm-up.
	LoadSpammers(ctx context.Context, since time.Time) ([]int64, error)

	// LoadPending returns user ids with at least one entry awaiting a first
	// verdict, for cache warm-up.
	LoadPending(ctx context.Context) ([]int64, error)

	// Ping verifies store connectivity, for diagnostics.
	Ping(ctx context.Context) error
}

// GroupStore persists the configured-group registry.
type GroupStore interface {
	AddGroup(ctx context.Context, groupID int64) error
	RemoveGroup(ctx context.Context, groupID int64) error
	MigrateGroup(ctx context.Context, oldID, newID int64) error
	SetSetting(ctx context.Context, groupID int64, key, value string) error
	LoadGroups(ctx context.Context) ([]GroupConfig, error)
}

// Classifier decides whether a message body is spam, guided by per-group
// instructions. A failed or unparseable verdict must surface as an error; the
// pipeline degrades it to not-spam.
type Classifier interface {
	Classify(ctx context.Context, body, instructions string) (bool, error)
}

// BanList is the external known-abuser lookup consulted at join time.
type BanList interface {
	IsKnownAbuser(ctx context.Context, userID int64) (bool, error)
}

// Platform is the narrow surface of the messaging platform the engine acts
// through. Adapters convert platform payloads to engine events before they
// reach the core.
type Platform interface {
	BanMember(ctx context.Context, groupID, userID int64) error
	DeleteMessage(ctx context.Context, groupID, messageID int64) error
	SendMessage(ctx context.Context, groupID int64, text string) error
}

// ProfileSource fetches profile data the platform does not attach to message
// updates. Consulted only when a heuristic needs it for a not-yet-trusted
// user; failures degrade to "no data".
type ProfileSource interface {
	UserBio(ctx context.Context, userID int64) (string, error)
}

// Heuristic is a supplementary spam signal OR-ed into the classification
// verdict. Flags returns whether the signal fired and a short name for audit
// logs.
type Heuristic interface {
	Flags(ctx context.Context, ev MessageEvent) (bool, string)
}

// Reporter receives engine events. Event carries structured sub-events;
// Notify carries the single elevated human-readable event each triggering
// update produces. Handlers emit exactly one Notify per update no matter how
// many Events fire.
type Reporter interface {
	Event(ctx context.Context, name string, fields map[string]any)
	Notify(ctx context.Context, text string)
}
