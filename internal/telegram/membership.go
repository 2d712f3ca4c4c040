package telegram

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"refgrow/internal/referral"
)

type chatMemberAPI interface {
	GetChatMember(config tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error)
}

// MembershipGate checks channel membership through the Bot API. Errors and
// deadlines come back as MembershipUnknown, never as an error.
type MembershipGate struct {
	api     chatMemberAPI
	channel string
	log     *slog.Logger
}

var _ referral.MembershipGate = (*MembershipGate)(nil)

func NewMembershipGate(api chatMemberAPI, channel string, logger *slog.Logger) *MembershipGate {
	if logger == nil {
		logger = slog.Default()
	}
	return &MembershipGate{api: api, channel: strings.TrimSpace(channel), log: logger}
}

func (g *MembershipGate) CheckMembership(ctx context.Context, participantID int64) referral.Membership {
	cfg := tgbotapi.GetChatMemberConfig{ChatConfigWithUser: chatConfig(g.channel, participantID)}

	type result struct {
		member tgbotapi.ChatMember
		err    error
	}
	done := make(chan result, 1)
	go func() {
		m, err := g.api.GetChatMember(cfg)
		done <- result{member: m, err: err}
	}()

	select {
	case <-ctx.Done():
		g.log.Warn("membership check timed out", "participant_id", participantID, "channel", g.channel)
		return referral.MembershipUnknown
	case r := <-done:
		if r.err != nil {
			g.log.Warn("membership check failed", "participant_id", participantID, "channel", g.channel, "err", r.err)
			return referral.MembershipUnknown
		}
		return membershipFromStatus(r.member.Status, r.member.IsMember)
	}
}

// ChannelURL returns a public link for a channel configured as "@name".
func ChannelURL(channel string) string {
	channel = strings.TrimSpace(channel)
	if strings.HasPrefix(channel, "@") {
		return "https://t.me/" + strings.TrimPrefix(channel, "@")
	}
	return channel
}

func chatConfig(channel string, userID int64) tgbotapi.ChatConfigWithUser {
	cfg := tgbotapi.ChatConfigWithUser{UserID: userID}
	if id, err := strconv.ParseInt(channel, 10, 64); err == nil {
		cfg.ChatID = id
	} else {
		cfg.SuperGroupUsername = channel
	}
	return cfg
}

func membershipFromStatus(status string, isMember bool) referral.Membership {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "creator", "administrator", "member":
		return referral.MembershipMember
	case "restricted":
		if isMember {
			return referral.MembershipMember
		}
		return referral.MembershipNotMember
	case "left", "kicked":
		return referral.MembershipNotMember
	default:
		return referral.MembershipUnknown
	}
}
