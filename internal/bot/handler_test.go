package bot

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"refgrow/internal/metrics"
	"refgrow/internal/referral"
	"refgrow/internal/session"
	"refgrow/internal/store/sqlite"
)

type gateFunc func(ctx context.Context, participantID int64) referral.Membership

func (f gateFunc) CheckMembership(ctx context.Context, participantID int64) referral.Membership {
	return f(ctx, participantID)
}

func alwaysMember(context.Context, int64) referral.Membership { return referral.MembershipMember }

type fixture struct {
	svc        *referral.Service
	onboarding *referral.Onboarding
	handler    *Handler
}

func newFixture(t *testing.T, gate referral.MembershipGate) fixture {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "refgrow.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	svc := referral.NewService(store, "growbot", nil)
	ob := referral.NewOnboarding(svc, session.NewMemory())
	h := NewHandler(svc, ob, gate, Options{
		MembershipTimeout: 50 * time.Millisecond,
		Metrics:           metrics.New(),
	})
	return fixture{svc: svc, onboarding: ob, handler: h}
}

func (f fixture) send(t *testing.T, ev Event) Reply {
	t.Helper()
	reply, err := f.handler.Handle(context.Background(), ev)
	require.NoError(t, err)
	return reply
}

// onboard walks a participant to a completed profile.
func (f fixture) onboard(t *testing.T, id int64) {
	t.Helper()
	f.send(t, Event{ParticipantID: id, Intent: IntentStart})
	reply := f.send(t, Event{ParticipantID: id, Text: "Test User"})
	require.Equal(t, referral.OutcomeStored, reply.Outcome)
}

func TestStartOnboarding(t *testing.T) {
	f := newFixture(t, gateFunc(alwaysMember))

	reply := f.send(t, Event{ParticipantID: 10, Handle: "ali", Intent: IntentStart})
	assert.Equal(t, referral.OutcomePrompted, reply.Outcome)
	assert.Empty(t, reply.Attribution)
	assert.False(t, reply.ShowMenu())

	reply = f.send(t, Event{ParticipantID: 10, Text: "Ali"})
	assert.Equal(t, referral.OutcomeInvalidInput, reply.Outcome)

	reply = f.send(t, Event{ParticipantID: 10, Text: "Ali Valiyev"})
	assert.Equal(t, referral.OutcomeStored, reply.Outcome)
	assert.True(t, reply.ShowMenu())

	reply = f.send(t, Event{ParticipantID: 10, Intent: IntentStart})
	assert.Equal(t, referral.OutcomeMenu, reply.Outcome)

	reply = f.send(t, Event{ParticipantID: 10, Text: "Some Other Name"})
	assert.Equal(t, referral.OutcomeUnknown, reply.Outcome)
}

func TestStartWithReferral(t *testing.T) {
	f := newFixture(t, gateFunc(alwaysMember))
	f.onboard(t, 1)

	param := referral.StartParameter(1)
	reply := f.send(t, Event{ParticipantID: 2, Intent: IntentStart, StartParameter: param})
	assert.Equal(t, referral.OutcomeCommitted, reply.Attribution)
	assert.Equal(t, referral.OutcomePrompted, reply.Outcome)

	reply = f.send(t, Event{ParticipantID: 2, Intent: IntentStart, StartParameter: param})
	assert.Equal(t, referral.OutcomeAlreadyAttributed, reply.Attribution)

	n, err := f.svc.RefCount(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	t.Run("self referral", func(t *testing.T) {
		reply := f.send(t, Event{ParticipantID: 3, Intent: IntentStart, StartParameter: referral.StartParameter(3)})
		assert.Equal(t, referral.OutcomeSelfReferral, reply.Attribution)
	})

	t.Run("unknown inviter", func(t *testing.T) {
		reply := f.send(t, Event{ParticipantID: 4, Intent: IntentStart, StartParameter: referral.StartParameter(999)})
		assert.Equal(t, referral.OutcomeInvalidInviter, reply.Attribution)
	})

	t.Run("malformed parameter", func(t *testing.T) {
		reply := f.send(t, Event{ParticipantID: 5, Intent: IntentStart, StartParameter: "promo"})
		assert.Equal(t, referral.OutcomeInvalidInviter, reply.Attribution)
	})

	t.Run("completed participant is not attributed", func(t *testing.T) {
		f.onboard(t, 6)
		reply := f.send(t, Event{ParticipantID: 6, Intent: IntentStart, StartParameter: param})
		assert.Empty(t, reply.Attribution)
		assert.Equal(t, referral.OutcomeMenu, reply.Outcome)
		n, err := f.svc.RefCount(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})
}

func TestMenuRequiresOnboarding(t *testing.T) {
	f := newFixture(t, gateFunc(alwaysMember))

	reply := f.send(t, Event{ParticipantID: 20, Intent: IntentGetLink})
	assert.Equal(t, referral.OutcomePrompted, reply.Outcome)
	assert.Empty(t, reply.Link)

	reply = f.send(t, Event{ParticipantID: 20, Text: "Vali Aliyev"})
	assert.Equal(t, referral.OutcomeStored, reply.Outcome)
}

func TestFirstContactTextPrompts(t *testing.T) {
	f := newFixture(t, gateFunc(alwaysMember))

	reply := f.send(t, Event{ParticipantID: 77, Text: "Salom"})
	assert.Equal(t, referral.OutcomePrompted, reply.Outcome)
	assert.False(t, reply.ShowMenu())

	st, err := f.onboarding.State(context.Background(), 77)
	require.NoError(t, err)
	assert.Equal(t, referral.StateAwaitingName, st)

	reply = f.send(t, Event{ParticipantID: 77, Text: "Salom Aleykum"})
	assert.Equal(t, referral.OutcomeStored, reply.Outcome)
}

func TestMenuChecksMembershipBeforeOnboarding(t *testing.T) {
	f := newFixture(t, gateFunc(func(context.Context, int64) referral.Membership {
		return referral.MembershipNotMember
	}))

	reply := f.send(t, Event{ParticipantID: 30, Intent: IntentGetLink})
	assert.Equal(t, referral.OutcomeNotEligible, reply.Outcome)
	assert.Empty(t, reply.Link)

	st, err := f.onboarding.State(context.Background(), 30)
	require.NoError(t, err)
	assert.Equal(t, referral.StateNew, st)
}

func TestMenuActions(t *testing.T) {
	f := newFixture(t, gateFunc(alwaysMember))
	f.onboard(t, 1)

	reply := f.send(t, Event{ParticipantID: 1, Intent: IntentGetLink})
	assert.Equal(t, referral.OutcomeLink, reply.Outcome)
	assert.Equal(t, "https://t.me/growbot?start=ref_1", reply.Link)

	f.send(t, Event{ParticipantID: 2, Intent: IntentStart, StartParameter: referral.StartParameter(1)})

	reply = f.send(t, Event{ParticipantID: 1, Intent: IntentMyStats})
	assert.Equal(t, referral.OutcomeStats, reply.Outcome)
	assert.Equal(t, int64(1), reply.RefCount)

	reply = f.send(t, Event{ParticipantID: 1, Intent: IntentTop})
	assert.Equal(t, referral.OutcomeLeaderboard, reply.Outcome)
	require.NotEmpty(t, reply.Leaderboard)
	assert.Equal(t, int64(1), reply.Leaderboard[0].ParticipantID)
	assert.Equal(t, "Test User", reply.Leaderboard[0].DisplayName)

	reply = f.send(t, Event{ParticipantID: 1, Intent: IntentSubscribe})
	assert.Equal(t, referral.OutcomeSubscribe, reply.Outcome)
}

func TestMembershipGateFailsClosed(t *testing.T) {
	tests := []struct {
		name string
		gate referral.MembershipGate
	}{
		{name: "not a member", gate: gateFunc(func(context.Context, int64) referral.Membership {
			return referral.MembershipNotMember
		})},
		{name: "unknown", gate: gateFunc(func(context.Context, int64) referral.Membership {
			return referral.MembershipUnknown
		})},
		{name: "hangs past timeout", gate: gateFunc(func(context.Context, int64) referral.Membership {
			time.Sleep(time.Second)
			return referral.MembershipMember
		})},
		{name: "no gate", gate: nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, tc.gate)
			f.onboard(t, 1)
			for _, intent := range []Intent{IntentGetLink, IntentMyStats, IntentTop} {
				reply := f.send(t, Event{ParticipantID: 1, Intent: intent})
				assert.Equal(t, referral.OutcomeNotEligible, reply.Outcome, intent.String())
				assert.Empty(t, reply.Link)
			}
			reply := f.send(t, Event{ParticipantID: 1, Intent: IntentSubscribe})
			assert.Equal(t, referral.OutcomeSubscribe, reply.Outcome)
		})
	}
}
