// Package memory holds the conversation model Primus recalls from and the
// pieces that decide what to recall or compress:
//
//   - Selector ranks stored turns against the current user text using a
//     weighted mix of lexical overlap, recency decay, role, and length.
//   - LightSummarizer and Condense produce short extractive digests.
//   - AutoSummarizer and SleepConsolidator write SUMMARY turns back into the
//     conversation store so that later recall can surface them.
//
// Nothing in this package mutates an existing turn; summaries are new turns.
package memory

import (
	"context"
	"strings"
	"time"
)

// Role identifies who authored a turn.
type Role string

const (
	RoleUser    Role = "USER"
	RoleAI      Role = "AI"
	RoleSummary Role = "SUMMARY"
	RoleMeta    Role = "META"
)

// ParseRole maps a stored or client-supplied role name onto a Role. Matching
// is case-insensitive and accepts the chat-API names "user" and "assistant".
// Unknown names become RoleMeta.
func ParseRole(s string) Role {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "USER":
		return RoleUser
	case "AI", "ASSISTANT":
		return RoleAI
	case "SUMMARY":
		return RoleSummary
	default:
		return RoleMeta
	}
}

// Turn is one stored message of a conversation.
type Turn struct {
	ID        int64
	SessionID int64
	Role      Role
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Session groups turns.
type Session struct {
	ID        int64
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Repository is the conversation store contract the engine relies on.
type Repository interface {
	// ListRecentTurns returns up to limit of the newest turns of a session,
	// ordered oldest first. sessionID 0 lists across all sessions.
	ListRecentTurns(ctx context.Context, sessionID int64, limit int) ([]Turn, error)

	// InsertTurn stores t and returns its ID. CreatedAt/UpdatedAt default to
	// the current time when zero.
	InsertTurn(ctx context.Context, t Turn) (int64, error)

	// LatestSession returns the most recently updated session, or nil when
	// there is none.
	LatestSession(ctx context.Context) (*Session, error)
}
