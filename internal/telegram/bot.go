// Package telegram connects the referral bot to the Telegram Bot API using
// long polling.
package telegram

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"refgrow/internal/bot"
)

const (
	defaultWorkers     = 16
	defaultPollTimeout = 60 * time.Second
	handleTimeout      = 30 * time.Second
	httpTimeoutMargin  = 15 * time.Second
)

type Options struct {
	Channel     string
	Workers     int
	PollTimeout time.Duration
	Logger      *slog.Logger
}

type Bot struct {
	api         *tgbotapi.BotAPI
	handler     *bot.Handler
	channel     string
	workers     int
	pollTimeout time.Duration
	log         *slog.Logger
}

// NewAPI logs in with the token and returns the client with Self populated.
// Requests are bounded by the long-poll timeout plus a margin.
func NewAPI(token string, debug bool, pollTimeout time.Duration) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPIWithClient(strings.TrimSpace(token), tgbotapi.APIEndpoint, newHTTPClient(pollTimeout))
	if err != nil {
		return nil, err
	}
	api.Debug = debug
	return api, nil
}

func newHTTPClient(pollTimeout time.Duration) *http.Client {
	if pollTimeout <= 0 {
		pollTimeout = defaultPollTimeout
	}
	return &http.Client{Timeout: pollTimeout + httpTimeoutMargin}
}

func NewBot(api *tgbotapi.BotAPI, handler *bot.Handler, opts Options) *Bot {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = defaultPollTimeout
	}
	return &Bot{
		api:         api,
		handler:     handler,
		channel:     opts.Channel,
		workers:     opts.Workers,
		pollTimeout: opts.PollTimeout,
		log:         opts.Logger,
	}
}

// Run polls for updates until ctx is cancelled. Updates are handled
// concurrently by at most Workers goroutines; in-flight updates finish
// before Run returns.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = int(b.pollTimeout / time.Second)
	updates := b.api.GetUpdatesChan(u)

	b.log.Info("telegram polling started", "bot", b.api.Self.UserName, "workers", b.workers)

	var g errgroup.Group
	g.SetLimit(b.workers)
	defer func() {
		b.api.StopReceivingUpdates()
		_ = g.Wait()
		b.log.Info("telegram polling stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			ev, ok := eventFromUpdate(update)
			if !ok {
				continue
			}
			g.Go(func() error {
				b.dispatch(ctx, ev)
				return nil
			})
		}
	}
}

func (b *Bot) dispatch(ctx context.Context, ev bot.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), handleTimeout)
	defer cancel()

	reply, err := b.handler.Handle(ctx, ev)
	if err != nil {
		msg := tgbotapi.NewMessage(ev.ChatID, "⚠️ Xatolik yuz berdi. Iltimos, keyinroq qayta urinib ko‘ring.")
		b.send(ev, msg)
		return
	}
	msg, ok := renderMessage(ev.ChatID, reply, b.channel)
	if !ok {
		return
	}
	b.send(ev, msg)
}

func (b *Bot) send(ev bot.Event, msg tgbotapi.MessageConfig) {
	if _, err := b.api.Send(msg); err != nil {
		b.log.Warn("send reply failed", "trace_id", ev.TraceID, "chat_id", ev.ChatID, "err", err)
	}
}

// eventFromUpdate extracts a private-message event. Updates without a
// message or sender are dropped.
func eventFromUpdate(update tgbotapi.Update) (bot.Event, bool) {
	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return bot.Event{}, false
	}
	if msg.From.IsBot {
		return bot.Event{}, false
	}

	ev := bot.Event{
		TraceID:       uuid.NewString(),
		ParticipantID: msg.From.ID,
		ChatID:        msg.Chat.ID,
		Handle:        msg.From.UserName,
		Text:          msg.Text,
	}
	if msg.IsCommand() {
		ev.Intent = bot.ParseIntent(msg.Command())
		switch ev.Intent {
		case bot.IntentStart:
			ev.StartParameter = strings.TrimSpace(msg.CommandArguments())
		case bot.IntentNone:
			// unknown commands are never taken as a name
			ev.Text = ""
		}
		return ev, true
	}
	ev.Intent = intentFromLabel(msg.Text)
	return ev, true
}
