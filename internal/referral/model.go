package referral

import (
	"errors"
	"strconv"
	"strings"
)

const (
	// StartPrefix tags a referral start parameter: ref_<participant id>.
	StartPrefix = "ref_"

	DefaultTopN = 10
	MaxTopN     = 100

	minNameTokens = 2
)

var (
	ErrNotFound           = errors.New("participant not found")
	ErrAlreadyAttributed  = errors.New("invitee already attributed")
	ErrNotAwaitingName    = errors.New("participant is not awaiting a display name")
	ErrNameAlreadySet     = errors.New("display name already set")
	ErrInvalidParticipant = errors.New("participant id must be > 0")
)

// Outcome is the result tag handed back to the chat router.
type Outcome string

const (
	OutcomePrompted          Outcome = "prompted"
	OutcomeStored            Outcome = "stored"
	OutcomeInvalidInput      Outcome = "invalid_input"
	OutcomeCommitted         Outcome = "committed"
	OutcomeAlreadyAttributed Outcome = "already_attributed"
	OutcomeSelfReferral      Outcome = "self_referral"
	OutcomeInvalidInviter    Outcome = "invalid_inviter"
	OutcomeNotEligible       Outcome = "not_eligible"

	OutcomeMenu        Outcome = "menu"
	OutcomeLink        Outcome = "link"
	OutcomeStats       Outcome = "stats"
	OutcomeLeaderboard Outcome = "leaderboard"
	OutcomeSubscribe   Outcome = "subscribe"
	OutcomeUnknown     Outcome = "unknown"
)

// Membership is the answer of a MembershipGate. Anything other than
// MembershipMember is treated as "not a member".
type Membership int

const (
	MembershipUnknown Membership = iota
	MembershipMember
	MembershipNotMember
)

func (m Membership) Eligible() bool {
	return m == MembershipMember
}

func (m Membership) String() string {
	switch m {
	case MembershipMember:
		return "member"
	case MembershipNotMember:
		return "not_member"
	default:
		return "unknown"
	}
}

// ValidDisplayName reports whether text holds at least a first and last name.
func ValidDisplayName(text string) bool {
	return len(strings.Fields(text)) >= minNameTokens
}

// StartParameter returns the deep-link payload identifying participantID as inviter.
func StartParameter(participantID int64) string {
	return StartPrefix + strconv.FormatInt(participantID, 10)
}

// EncodeLink builds the shareable referral link for participantID.
func EncodeLink(participantID int64, botHandle string) string {
	botHandle = strings.TrimPrefix(strings.TrimSpace(botHandle), "@")
	return "https://t.me/" + botHandle + "?start=" + StartParameter(participantID)
}

// ParseStartParameter extracts the inviter id from a start parameter. It does
// not check that the inviter exists; see Service.DecodeStart.
func ParseStartParameter(param string) (int64, bool) {
	param = strings.TrimSpace(param)
	raw, ok := strings.CutPrefix(param, StartPrefix)
	if !ok || raw == "" {
		return 0, false
	}
	for _, r := range raw {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func normalizeTopN(n int) int {
	if n <= 0 {
		return DefaultTopN
	}
	if n > MaxTopN {
		return MaxTopN
	}
	return n
}
