package tracker

import "time"

const (
	DefaultSyncTimeout    = 30 * time.Second
	DefaultConfirmTimeout = 60 * time.Second
	DefaultDrawName       = "Untitled Draw"
	DefaultMaxPlayers     = 100

	syncFlightKey      = "draws"
	publishTimeout     = 5 * time.Second
	syncFailureMessage = "Failed to fetch draws. The Solana network might be experiencing high traffic. Please try again."
	syncTimeoutMessage = "Fetching draws timed out. Please try again."
)
