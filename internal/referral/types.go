package referral

import (
	"context"
	"time"
)

type Participant struct {
	ID          int64     `json:"id"`
	Handle      string    `json:"handle,omitempty"`
	DisplayName string    `json:"display_name,omitempty"`
	RefCount    int64     `json:"ref_count"`
	CreatedAt   time.Time `json:"created_at"`
}

type JoinRecord struct {
	InviteeID int64     `json:"invitee_id"`
	InviterID int64     `json:"inviter_id"`
	JoinedAt  time.Time `json:"joined_at"`
}

type LeaderboardRow struct {
	Rank          int64  `json:"rank"`
	ParticipantID int64  `json:"participant_id"`
	Handle        string `json:"handle,omitempty"`
	DisplayName   string `json:"display_name,omitempty"`
	RefCount      int64  `json:"ref_count"`
}

// Store persists participants and join records. Implementations must make
// RecordJoin atomic: the join insert and the inviter increment commit together
// or not at all, with the invitee id as a unique key.
type Store interface {
	EnsureParticipant(ctx context.Context, id int64, handle string, now time.Time) error
	// SetDisplayName returns ErrNameAlreadySet once a name is on file.
	SetDisplayName(ctx context.Context, id int64, name string) error
	DisplayName(ctx context.Context, id int64) (string, bool, error)
	RefCount(ctx context.Context, id int64) (int64, error)
	ParticipantExists(ctx context.Context, id int64) (bool, error)
	Participant(ctx context.Context, id int64) (Participant, error)

	// RecordJoin returns ErrAlreadyAttributed when a join for the invitee
	// exists and ErrNotFound when the inviter does not.
	RecordJoin(ctx context.Context, join JoinRecord) error
	Join(ctx context.Context, inviteeID int64) (JoinRecord, error)

	// Ranked returns participants by ref_count desc, id asc. limit <= 0 means all.
	Ranked(ctx context.Context, limit int) ([]Participant, error)
}

// SessionState is transient per-participant conversation state.
type SessionState string

const (
	SessionNone         SessionState = ""
	SessionAwaitingName SessionState = "awaiting_name"
)

type SessionStore interface {
	Get(ctx context.Context, participantID int64) (SessionState, error)
	Put(ctx context.Context, participantID int64, state SessionState) error
	Reset(ctx context.Context, participantID int64) error
}

type MembershipGate interface {
	CheckMembership(ctx context.Context, participantID int64) Membership
}
