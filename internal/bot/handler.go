package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"refgrow/internal/metrics"
	"refgrow/internal/referral"
)

const defaultMembershipTimeout = 5 * time.Second

// Event is one inbound chat event, already stripped of transport details.
type Event struct {
	TraceID        string
	ParticipantID  int64
	ChatID         int64
	Handle         string
	Text           string
	Intent         Intent
	StartParameter string
}

// Reply carries everything the transport needs to render a response.
type Reply struct {
	Intent      Intent
	Outcome     referral.Outcome
	Attribution referral.Outcome
	Link        string
	RefCount    int64
	Leaderboard []referral.LeaderboardRow
}

// ShowMenu reports whether the main menu should accompany the reply.
func (r Reply) ShowMenu() bool {
	switch r.Outcome {
	case referral.OutcomePrompted, referral.OutcomeInvalidInput:
		return false
	default:
		return true
	}
}

type Options struct {
	MembershipTimeout time.Duration
	Logger            *slog.Logger
	Metrics           *metrics.Metrics
}

type Handler struct {
	svc         *referral.Service
	onboarding  *referral.Onboarding
	gate        referral.MembershipGate
	gateTimeout time.Duration
	log         *slog.Logger
	metrics     *metrics.Metrics
}

func NewHandler(svc *referral.Service, onboarding *referral.Onboarding, gate referral.MembershipGate, opts Options) *Handler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MembershipTimeout <= 0 {
		opts.MembershipTimeout = defaultMembershipTimeout
	}
	return &Handler{
		svc:         svc,
		onboarding:  onboarding,
		gate:        gate,
		gateTimeout: opts.MembershipTimeout,
		log:         opts.Logger,
		metrics:     opts.Metrics,
	}
}

func (h *Handler) Handle(ctx context.Context, ev Event) (Reply, error) {
	h.metrics.ObserveEvent(ev.Intent.String())
	reply, err := h.handle(ctx, ev)
	if err != nil {
		h.metrics.ObserveError()
		h.log.Error("handle event failed",
			"trace_id", ev.TraceID,
			"participant_id", ev.ParticipantID,
			"intent", ev.Intent.String(),
			"err", err,
		)
		return Reply{Intent: ev.Intent}, err
	}
	return reply, nil
}

func (h *Handler) handle(ctx context.Context, ev Event) (Reply, error) {
	if err := h.svc.Ensure(ctx, ev.ParticipantID, ev.Handle); err != nil {
		return Reply{}, err
	}

	switch {
	case ev.Intent == IntentStart:
		return h.start(ctx, ev)
	case ev.Intent == IntentSubscribe:
		return Reply{Intent: ev.Intent, Outcome: referral.OutcomeSubscribe}, nil
	case ev.Intent.Gated():
		return h.menu(ctx, ev)
	default:
		return h.text(ctx, ev)
	}
}

// start attributes a referral on a qualifying arrival, then runs onboarding.
// An arrival qualifies while the participant has not finished onboarding.
func (h *Handler) start(ctx context.Context, ev Event) (Reply, error) {
	reply := Reply{Intent: IntentStart}

	if ev.StartParameter != "" {
		st, err := h.onboarding.State(ctx, ev.ParticipantID)
		if err != nil {
			return Reply{}, err
		}
		if st != referral.StateComplete {
			out, err := h.attribute(ctx, ev)
			if err != nil {
				return Reply{}, err
			}
			reply.Attribution = out
		}
	}

	out, err := h.onboarding.Start(ctx, ev.ParticipantID)
	if err != nil {
		return Reply{}, err
	}
	h.metrics.ObserveOnboarding(string(out))
	reply.Outcome = out
	return reply, nil
}

func (h *Handler) attribute(ctx context.Context, ev Event) (referral.Outcome, error) {
	inviterID, ok, err := h.svc.DecodeStart(ctx, ev.StartParameter)
	if err != nil {
		return "", err
	}
	out := referral.OutcomeInvalidInviter
	if ok {
		out, err = h.svc.Attribute(ctx, ev.ParticipantID, inviterID)
		if err != nil {
			return "", err
		}
	}
	h.metrics.ObserveAttribution(string(out))
	h.log.Info("referral start",
		"trace_id", ev.TraceID,
		"participant_id", ev.ParticipantID,
		"start_parameter", ev.StartParameter,
		"outcome", string(out),
	)
	return out, nil
}

// menu checks channel membership first, then onboarding, then runs the action.
func (h *Handler) menu(ctx context.Context, ev Event) (Reply, error) {
	reply := Reply{Intent: ev.Intent}

	if !h.isMember(ctx, ev) {
		reply.Outcome = referral.OutcomeNotEligible
		return reply, nil
	}

	out, ok, err := h.onboarding.RequireComplete(ctx, ev.ParticipantID)
	if err != nil {
		return Reply{}, err
	}
	if !ok {
		h.metrics.ObserveOnboarding(string(out))
		reply.Outcome = out
		return reply, nil
	}

	switch ev.Intent {
	case IntentGetLink:
		reply.Outcome = referral.OutcomeLink
		reply.Link = h.svc.Link(ev.ParticipantID)
	case IntentMyStats:
		n, err := h.svc.RefCount(ctx, ev.ParticipantID)
		if err != nil {
			return Reply{}, err
		}
		reply.Outcome = referral.OutcomeStats
		reply.RefCount = n
	case IntentTop:
		rows, err := h.svc.TopN(ctx, referral.DefaultTopN)
		if err != nil {
			return Reply{}, err
		}
		reply.Outcome = referral.OutcomeLeaderboard
		reply.Leaderboard = rows
	default:
		return Reply{}, fmt.Errorf("intent %s is not a menu action", ev.Intent)
	}
	return reply, nil
}

// text routes free text: a name while awaiting one, a prompt on first
// contact, otherwise nothing.
func (h *Handler) text(ctx context.Context, ev Event) (Reply, error) {
	reply := Reply{Intent: IntentNone, Outcome: referral.OutcomeUnknown}

	st, err := h.onboarding.State(ctx, ev.ParticipantID)
	if err != nil {
		return Reply{}, err
	}
	switch st {
	case referral.StateComplete:
		return reply, nil
	case referral.StateNew:
		out, _, err := h.onboarding.RequireComplete(ctx, ev.ParticipantID)
		if err != nil {
			return Reply{}, err
		}
		h.metrics.ObserveOnboarding(string(out))
		reply.Outcome = out
		return reply, nil
	}
	out, err := h.onboarding.Submit(ctx, ev.ParticipantID, ev.Text)
	if err != nil {
		return Reply{}, err
	}
	h.metrics.ObserveOnboarding(string(out))
	reply.Outcome = out
	return reply, nil
}

// isMember asks the gate under a deadline. A slow or failing gate counts as
// "not a member".
func (h *Handler) isMember(ctx context.Context, ev Event) bool {
	if h.gate == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, h.gateTimeout)
	defer cancel()

	result := make(chan referral.Membership, 1)
	go func() {
		result <- h.gate.CheckMembership(ctx, ev.ParticipantID)
	}()

	m := referral.MembershipUnknown
	select {
	case m = <-result:
	case <-ctx.Done():
	}
	h.metrics.ObserveMembership(m.String())
	if m == referral.MembershipUnknown {
		h.log.Warn("membership unknown, treating as not a member",
			"trace_id", ev.TraceID,
			"participant_id", ev.ParticipantID,
		)
	}
	return m.Eligible()
}
