package referral

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

type Service struct {
	store     Store
	log       *slog.Logger
	botHandle string
	now       func() time.Time
}

func NewService(store Store, botHandle string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     store,
		log:       logger,
		botHandle: strings.TrimPrefix(strings.TrimSpace(botHandle), "@"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) BotHandle() string {
	return s.botHandle
}

// Link returns the participant's referral link.
func (s *Service) Link(participantID int64) string {
	return EncodeLink(participantID, s.botHandle)
}

// Ensure creates the participant on first contact; later calls only refresh a
// non-empty handle.
func (s *Service) Ensure(ctx context.Context, id int64, handle string) error {
	if id <= 0 {
		return ErrInvalidParticipant
	}
	handle = strings.TrimPrefix(strings.TrimSpace(handle), "@")
	if err := s.store.EnsureParticipant(ctx, id, handle, s.now()); err != nil {
		return fmt.Errorf("ensure participant %d: %w", id, err)
	}
	return nil
}

func (s *Service) SetDisplayName(ctx context.Context, id int64, name string) error {
	name = strings.TrimSpace(name)
	if err := s.store.SetDisplayName(ctx, id, name); err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrNameAlreadySet) {
			return err
		}
		return fmt.Errorf("set display name %d: %w", id, err)
	}
	return nil
}

func (s *Service) DisplayName(ctx context.Context, id int64) (string, bool, error) {
	name, ok, err := s.store.DisplayName(ctx, id)
	if err != nil {
		return "", false, fmt.Errorf("display name %d: %w", id, err)
	}
	if strings.TrimSpace(name) == "" {
		return "", false, nil
	}
	return name, ok, nil
}

// RefCount is 0 for participants the store has never seen.
func (s *Service) RefCount(ctx context.Context, id int64) (int64, error) {
	n, err := s.store.RefCount(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("ref count %d: %w", id, err)
	}
	return n, nil
}

func (s *Service) Participant(ctx context.Context, id int64) (Participant, error) {
	p, err := s.store.Participant(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Participant{}, err
		}
		return Participant{}, fmt.Errorf("participant %d: %w", id, err)
	}
	return p, nil
}

// InvitedBy reports the inviter recorded for id, if any.
func (s *Service) InvitedBy(ctx context.Context, id int64) (JoinRecord, bool, error) {
	j, err := s.store.Join(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return JoinRecord{}, false, nil
		}
		return JoinRecord{}, false, fmt.Errorf("join of %d: %w", id, err)
	}
	return j, true, nil
}

// DecodeStart resolves a start parameter to an existing inviter.
func (s *Service) DecodeStart(ctx context.Context, param string) (int64, bool, error) {
	inviterID, ok := ParseStartParameter(param)
	if !ok {
		return 0, false, nil
	}
	exists, err := s.store.ParticipantExists(ctx, inviterID)
	if err != nil {
		return 0, false, fmt.Errorf("lookup inviter %d: %w", inviterID, err)
	}
	if !exists {
		return 0, false, nil
	}
	return inviterID, true, nil
}

// Attribute records inviteeID as brought in by inviterID. At most one
// attribution ever commits per invitee; every other call reports why it did
// not. It never retries.
func (s *Service) Attribute(ctx context.Context, inviteeID, inviterID int64) (Outcome, error) {
	if inviteeID == inviterID {
		return OutcomeSelfReferral, nil
	}
	if inviteeID <= 0 {
		return "", ErrInvalidParticipant
	}
	if inviterID <= 0 {
		return OutcomeInvalidInviter, nil
	}
	exists, err := s.store.ParticipantExists(ctx, inviterID)
	if err != nil {
		return "", fmt.Errorf("lookup inviter %d: %w", inviterID, err)
	}
	if !exists {
		return OutcomeInvalidInviter, nil
	}

	err = s.store.RecordJoin(ctx, JoinRecord{
		InviteeID: inviteeID,
		InviterID: inviterID,
		JoinedAt:  s.now(),
	})
	switch {
	case err == nil:
		s.log.Info("referral committed", "invitee_id", inviteeID, "inviter_id", inviterID)
		return OutcomeCommitted, nil
	case errors.Is(err, ErrAlreadyAttributed):
		return OutcomeAlreadyAttributed, nil
	case errors.Is(err, ErrNotFound):
		return OutcomeInvalidInviter, nil
	default:
		s.log.Error("record join failed", "invitee_id", inviteeID, "inviter_id", inviterID, "err", err)
		return "", fmt.Errorf("record join %d->%d: %w", inviteeID, inviterID, err)
	}
}

// TopN ranks participants by ref_count desc, breaking ties by ascending id.
func (s *Service) TopN(ctx context.Context, n int) ([]LeaderboardRow, error) {
	participants, err := s.store.Ranked(ctx, normalizeTopN(n))
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	out := make([]LeaderboardRow, 0, len(participants))
	var rank int64 = 1
	for _, p := range participants {
		out = append(out, LeaderboardRow{
			Rank:          rank,
			ParticipantID: p.ID,
			Handle:        p.Handle,
			DisplayName:   p.DisplayName,
			RefCount:      p.RefCount,
		})
		rank++
	}
	return out, nil
}

// ListAll returns every participant in leaderboard order.
func (s *Service) ListAll(ctx context.Context) ([]Participant, error) {
	out, err := s.store.Ranked(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	return out, nil
}
