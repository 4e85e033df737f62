package contracts

import (
	"regexp"
	"time"
)

const (
	// DefaultLookbackDays bounds the channel history window for one run.
	DefaultLookbackDays = 7

	// DefaultChannelID is the release announcement channel.
	DefaultChannelID = "C033MFEDQ2C"

	// DefaultHistoryPageLimit is the Slack conversations.history page size.
	DefaultHistoryPageLimit = 200

	DefaultKeyChangeRenderCap = 10
)

const (
	DefaultHTTPTimeout      = 30 * time.Second
	DefaultRetryMaxAttempts = 3
	DefaultRetryBaseBackoff = 500 * time.Millisecond
)

const (
	DefaultLockFilePath       = ".release-digest.lock"
	DefaultLockStaleAfter     = 15 * time.Minute
	DefaultLockAcquireTimeout = 30 * time.Second
	DefaultLockPollInterval   = 200 * time.Millisecond
)

// VersionPattern matches a dotted three-part version anywhere in text.
var VersionPattern = regexp.MustCompile(`\b\d+\.\d+\.\d+\b`)

type CommandName string

const (
	CommandSync    CommandName = "sync"
	CommandPreview CommandName = "preview"
)

type LockRequirement string

const (
	LockRequirementNone      LockRequirement = "none"
	LockRequirementExclusive LockRequirement = "exclusive"
)

// CommandLockPolicy freezes lock requirements per command. The lock
// serializes overlapping cron-driven syncs against the shared page;
// preview never writes and runs lock-free.
var CommandLockPolicy = map[CommandName]LockRequirement{
	CommandSync:    LockRequirementExclusive,
	CommandPreview: LockRequirementNone,
}

func RequiresLock(command CommandName) bool {
	return CommandLockPolicy[command] == LockRequirementExclusive
}
