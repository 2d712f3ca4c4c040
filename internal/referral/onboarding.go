package referral

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

type OnboardingState string

const (
	StateNew          OnboardingState = "new"
	StateAwaitingName OnboardingState = "awaiting_name"
	StateComplete     OnboardingState = "complete"
)

// Onboarding gates menu access until a display name is on file. The
// persisted display name decides completion; the session store only tracks
// whether the participant has been prompted.
type Onboarding struct {
	svc      *Service
	sessions SessionStore
}

func NewOnboarding(svc *Service, sessions SessionStore) *Onboarding {
	return &Onboarding{svc: svc, sessions: sessions}
}

func (o *Onboarding) State(ctx context.Context, participantID int64) (OnboardingState, error) {
	_, named, err := o.svc.DisplayName(ctx, participantID)
	if err != nil {
		return "", err
	}
	if named {
		return StateComplete, nil
	}
	st, err := o.sessions.Get(ctx, participantID)
	if err != nil {
		return "", fmt.Errorf("session state %d: %w", participantID, err)
	}
	if st == SessionAwaitingName {
		return StateAwaitingName, nil
	}
	return StateNew, nil
}

// Start handles a session-initiating event. Transient state is always reset;
// a participant with a name on file goes straight to the menu.
func (o *Onboarding) Start(ctx context.Context, participantID int64) (Outcome, error) {
	if err := o.sessions.Reset(ctx, participantID); err != nil {
		return "", fmt.Errorf("reset session %d: %w", participantID, err)
	}
	st, err := o.State(ctx, participantID)
	if err != nil {
		return "", err
	}
	if st == StateComplete {
		return OutcomeMenu, nil
	}
	return o.prompt(ctx, participantID)
}

// Submit feeds a free-text reply to the name prompt.
func (o *Onboarding) Submit(ctx context.Context, participantID int64, text string) (Outcome, error) {
	st, err := o.State(ctx, participantID)
	if err != nil {
		return "", err
	}
	switch st {
	case StateComplete:
		return OutcomeMenu, nil
	case StateNew:
		return "", ErrNotAwaitingName
	}

	if !ValidDisplayName(text) {
		return OutcomeInvalidInput, nil
	}
	err = o.svc.SetDisplayName(ctx, participantID, strings.TrimSpace(text))
	if errors.Is(err, ErrNameAlreadySet) {
		// a concurrent submission won
		_ = o.sessions.Reset(ctx, participantID)
		return OutcomeMenu, nil
	}
	if err != nil {
		return "", err
	}
	if err := o.sessions.Reset(ctx, participantID); err != nil {
		o.svc.log.Warn("clear onboarding session failed", "participant_id", participantID, "err", err)
	}
	return OutcomeStored, nil
}

// RequireComplete re-prompts participants who try to use the menu before
// finishing onboarding. ok is true when the participant may proceed.
func (o *Onboarding) RequireComplete(ctx context.Context, participantID int64) (Outcome, bool, error) {
	st, err := o.State(ctx, participantID)
	if err != nil {
		return "", false, err
	}
	if st == StateComplete {
		return "", true, nil
	}
	out, err := o.prompt(ctx, participantID)
	return out, false, err
}

func (o *Onboarding) prompt(ctx context.Context, participantID int64) (Outcome, error) {
	if err := o.sessions.Put(ctx, participantID, SessionAwaitingName); err != nil {
		return "", fmt.Errorf("set session %d: %w", participantID, err)
	}
	return OutcomePrompted, nil
}
