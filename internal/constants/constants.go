package constants

import "time"

const (
	ExternalAPITimeout = 10 * time.Second
	DatabaseTimeout    = 5 * time.Second
	RequestTimeout     = 30 * time.Second
)

const (
	RiotMaxAttempts    = 4
	RiotBackoffBase    = 500 * time.Millisecond
	RiotBackoffJitter  = 200 * time.Millisecond
	RiotBodySnippetLen = 500
)

const (
	DBMaxOpenConns    = 100
	DBMaxIdleConns    = 10
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
)

const (
	DefaultMatchSyncCount = 20
	DefaultMasteryTopN    = 5
)

const (
	LobbyStartOffset = 5 * time.Minute

	// Placeholder until a real bid queue exists; the API contract exposes
	// a queue position but only top-bidder mechanics are implemented.
	BidQueuePosition = 3

	// Starting credit balance granted on signup.
	SignupCredits = 1000
)

const (
	ShutdownTimeout = 5 * time.Second
)
