package telegram

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"refgrow/internal/bot"
	"refgrow/internal/referral"
)

type fakeChatAPI struct {
	member tgbotapi.ChatMember
	err    error
	delay  time.Duration
	got    tgbotapi.GetChatMemberConfig
}

func (f *fakeChatAPI) GetChatMember(cfg tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error) {
	f.got = cfg
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.member, f.err
}

func TestMembershipFromStatus(t *testing.T) {
	tests := []struct {
		status   string
		isMember bool
		want     referral.Membership
	}{
		{status: "creator", want: referral.MembershipMember},
		{status: "administrator", want: referral.MembershipMember},
		{status: "member", want: referral.MembershipMember},
		{status: "restricted", isMember: true, want: referral.MembershipMember},
		{status: "restricted", want: referral.MembershipNotMember},
		{status: "left", want: referral.MembershipNotMember},
		{status: "kicked", want: referral.MembershipNotMember},
		{status: "", want: referral.MembershipUnknown},
		{status: "something", want: referral.MembershipUnknown},
	}
	for _, tc := range tests {
		if got := membershipFromStatus(tc.status, tc.isMember); got != tc.want {
			t.Fatalf("membershipFromStatus(%q, %v) = %s want %s", tc.status, tc.isMember, got, tc.want)
		}
	}
}

func TestMembershipGate(t *testing.T) {
	ctx := context.Background()

	t.Run("member by username", func(t *testing.T) {
		api := &fakeChatAPI{member: tgbotapi.ChatMember{Status: "member"}}
		gate := NewMembershipGate(api, "@ilimedu", nil)
		assert.Equal(t, referral.MembershipMember, gate.CheckMembership(ctx, 42))
		assert.Equal(t, "@ilimedu", api.got.SuperGroupUsername)
		assert.Equal(t, int64(42), api.got.UserID)
	})

	t.Run("numeric channel id", func(t *testing.T) {
		api := &fakeChatAPI{member: tgbotapi.ChatMember{Status: "left"}}
		gate := NewMembershipGate(api, "-1001234", nil)
		assert.Equal(t, referral.MembershipNotMember, gate.CheckMembership(ctx, 42))
		assert.Equal(t, int64(-1001234), api.got.ChatID)
		assert.Empty(t, api.got.SuperGroupUsername)
	})

	t.Run("api error is unknown", func(t *testing.T) {
		gate := NewMembershipGate(&fakeChatAPI{err: errors.New("bad request")}, "@ilimedu", nil)
		assert.Equal(t, referral.MembershipUnknown, gate.CheckMembership(ctx, 42))
	})

	t.Run("deadline is unknown", func(t *testing.T) {
		api := &fakeChatAPI{member: tgbotapi.ChatMember{Status: "member"}, delay: 500 * time.Millisecond}
		gate := NewMembershipGate(api, "@ilimedu", nil)
		ctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()
		assert.Equal(t, referral.MembershipUnknown, gate.CheckMembership(ctx, 42))
	})
}

func TestChannelURL(t *testing.T) {
	assert.Equal(t, "https://t.me/ilimedu", ChannelURL("@ilimedu"))
	assert.Equal(t, "-1001234", ChannelURL("-1001234"))
}

func commandUpdate(text string, cmdLen int) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		From:     &tgbotapi.User{ID: 7, UserName: "ali"},
		Chat:     &tgbotapi.Chat{ID: 70},
		Text:     text,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: cmdLen}},
	}}
}

func textUpdate(text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		From: &tgbotapi.User{ID: 7, UserName: "ali"},
		Chat: &tgbotapi.Chat{ID: 70},
		Text: text,
	}}
}

func TestEventFromUpdate(t *testing.T) {
	t.Run("start with parameter", func(t *testing.T) {
		ev, ok := eventFromUpdate(commandUpdate("/start ref_12", len("/start")))
		require.True(t, ok)
		assert.Equal(t, bot.IntentStart, ev.Intent)
		assert.Equal(t, "ref_12", ev.StartParameter)
		assert.Equal(t, int64(7), ev.ParticipantID)
		assert.Equal(t, int64(70), ev.ChatID)
		assert.Equal(t, "ali", ev.Handle)
		assert.NotEmpty(t, ev.TraceID)
	})

	t.Run("bare start", func(t *testing.T) {
		ev, ok := eventFromUpdate(commandUpdate("/start", len("/start")))
		require.True(t, ok)
		assert.Equal(t, bot.IntentStart, ev.Intent)
		assert.Empty(t, ev.StartParameter)
	})

	t.Run("unknown command", func(t *testing.T) {
		ev, ok := eventFromUpdate(commandUpdate("/help me now", len("/help")))
		require.True(t, ok)
		assert.Equal(t, bot.IntentNone, ev.Intent)
		assert.Empty(t, ev.Text)
	})

	t.Run("menu buttons", func(t *testing.T) {
		for label, want := range labelIntents {
			ev, ok := eventFromUpdate(textUpdate(label))
			require.True(t, ok)
			assert.Equal(t, want, ev.Intent, label)
		}
	})

	t.Run("free text", func(t *testing.T) {
		ev, ok := eventFromUpdate(textUpdate("Ali Valiyev"))
		require.True(t, ok)
		assert.Equal(t, bot.IntentNone, ev.Intent)
		assert.Equal(t, "Ali Valiyev", ev.Text)
	})

	t.Run("dropped", func(t *testing.T) {
		_, ok := eventFromUpdate(tgbotapi.Update{})
		assert.False(t, ok)
		_, ok = eventFromUpdate(tgbotapi.Update{Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 1}}})
		assert.False(t, ok)
		botSender := textUpdate("hi")
		botSender.Message.From.IsBot = true
		_, ok = eventFromUpdate(botSender)
		assert.False(t, ok)
	})
}

func TestRenderText(t *testing.T) {
	assert.Contains(t, renderText(bot.Reply{Outcome: referral.OutcomePrompted}, "@ilimedu"), "Ali Valiyev")
	assert.Empty(t, renderText(bot.Reply{Outcome: referral.OutcomeUnknown}, "@ilimedu"))

	link := renderText(bot.Reply{Outcome: referral.OutcomeLink, Link: "https://t.me/growbot?start=ref_1"}, "@ilimedu")
	assert.True(t, strings.HasSuffix(link, "https://t.me/growbot?start=ref_1"))

	gated := renderText(bot.Reply{Intent: bot.IntentTop, Outcome: referral.OutcomeNotEligible}, "@ilimedu")
	assert.Contains(t, gated, "https://t.me/ilimedu")
	assert.Contains(t, gated, "Top 10")

	stats := renderText(bot.Reply{Outcome: referral.OutcomeStats, RefCount: 3}, "@ilimedu")
	assert.Contains(t, stats, ": 3")

	board := renderText(bot.Reply{Outcome: referral.OutcomeLeaderboard, Leaderboard: []referral.LeaderboardRow{
		{Rank: 1, ParticipantID: 1, DisplayName: "Ali Valiyev", RefCount: 5},
		{Rank: 2, ParticipantID: 2, RefCount: 2},
	}}, "@ilimedu")
	assert.Contains(t, board, "1. Ali Valiyev — 5")
	assert.Contains(t, board, "2. Ismsiz — 2")

	assert.Equal(t, "Hozircha ma’lumot yo‘q.", renderText(bot.Reply{Outcome: referral.OutcomeLeaderboard}, "@ilimedu"))
}

func TestRenderMessageKeyboard(t *testing.T) {
	msg, ok := renderMessage(70, bot.Reply{Outcome: referral.OutcomeStored}, "@ilimedu")
	require.True(t, ok)
	_, isMenu := msg.ReplyMarkup.(tgbotapi.ReplyKeyboardMarkup)
	assert.True(t, isMenu)

	msg, ok = renderMessage(70, bot.Reply{Outcome: referral.OutcomePrompted}, "@ilimedu")
	require.True(t, ok)
	_, isRemove := msg.ReplyMarkup.(tgbotapi.ReplyKeyboardRemove)
	assert.True(t, isRemove)

	_, ok = renderMessage(70, bot.Reply{Outcome: referral.OutcomeUnknown}, "@ilimedu")
	assert.False(t, ok)
}

func TestHTTPClientOutlivesLongPoll(t *testing.T) {
	c := newHTTPClient(30 * time.Second)
	assert.Equal(t, 30*time.Second+httpTimeoutMargin, c.Timeout)

	c = newHTTPClient(0)
	assert.Equal(t, defaultPollTimeout+httpTimeoutMargin, c.Timeout)
	assert.NotZero(t, c.Timeout)
}
