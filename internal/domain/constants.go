package domain

import "time"

// ==== WebSocket Constants ====

// MaxMessageSize is the maximum allowed WebSocket message size in bytes
const MaxMessageSize = 4096

// MaxChatTextLength is the maximum rune count of a single chat message
const MaxChatTextLength = 1000

// MaxDisplayNameLength is the maximum rune count of a display name
const MaxDisplayNameLength = 50

// ==== Matching Constants ====

const (
	// MatchGraceWindow is how long a seeker waits for a real peer before
	// the agent fallback is allowed
	MatchGraceWindow = 6 * time.Second

	// MinAvatarToken and MaxAvatarToken bound the avatar token range
	MinAvatarToken = 1
	MaxAvatarToken = 10
)

// ==== Agent Room Constants ====

const (
	// AgentGreetingDelay is the pause before an agent sends its opener
	AgentGreetingDelay = 2 * time.Second

	// AgentSessionMin and AgentSessionMax bound the random lifetime of an
	// agent conversation before it is force-ended
	AgentSessionMin = 120 * time.Second
	AgentSessionMax = 180 * time.Second
)

// ==== Typing Simulation Constants ====

const (
	// TypingDelayFloor is the minimum simulated typing time for a reply
	TypingDelayFloor = 1000 * time.Millisecond

	// TypingDelayPerChar is the simulated typing time per input character
	TypingDelayPerChar = 20 * time.Millisecond
)

// ==== Rate Limit Constants ====

const (
	// DefaultRateLimitAPI is the default rate limit for API endpoints (requests/sec)
	DefaultRateLimitAPI = 10

	// DefaultRateLimitWS is the default rate limit for WebSocket connections (req/sec)
	DefaultRateLimitWS = 5
)
