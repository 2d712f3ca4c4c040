package telegram

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"refgrow/internal/bot"
	"refgrow/internal/referral"
)

const (
	labelGetLink   = "🔗 Referal linkimni olish"
	labelMyStats   = "📊 Mening referallarim"
	labelTop       = "🏆 Top 10"
	labelSubscribe = "📢 Kanalga obuna bo‘lish"
)

var labelIntents = map[string]bot.Intent{
	labelGetLink:   bot.IntentGetLink,
	labelMyStats:   bot.IntentMyStats,
	labelTop:       bot.IntentTop,
	labelSubscribe: bot.IntentSubscribe,
}

const welcomeText = "Turk tilini noldan, professional o‘qituvchilar bilan bepul o‘rganishni xohlaysizmi?\n\n" +
	"🔹 Shaxsiy referal linkingizni oling\n" +
	"🔹 Uni do‘stlaringiz bilan ulashing\n" +
	"🔹 Eng ko‘p taklif qilganlar bepul kursda qatnashish huquqini oladi\n\n" +
	"Davom etish uchun Ism va Familiyangizni kiriting.\n" +
	"Masalan: Ali Valiyev"

func intentFromLabel(text string) bot.Intent {
	if in, ok := labelIntents[strings.TrimSpace(text)]; ok {
		return in
	}
	return bot.IntentNone
}

func mainMenu() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(labelGetLink)),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(labelMyStats),
			tgbotapi.NewKeyboardButton(labelTop),
		),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(labelSubscribe)),
	)
	kb.ResizeKeyboard = true
	return kb
}

// renderText returns the message body for a reply, or "" when the reply
// should stay silent.
func renderText(reply bot.Reply, channel string) string {
	switch reply.Outcome {
	case referral.OutcomePrompted:
		return welcomeText
	case referral.OutcomeInvalidInput:
		return "❗ Iltimos, ism va familiyani birga kiriting.\nMasalan: Ali Valiyev"
	case referral.OutcomeStored:
		return "✅ Ma’lumotlar saqlandi!\n\nPastdagi menyudan foydalanishingiz mumkin 👇"
	case referral.OutcomeMenu:
		return "📌 Pastdagi menyu orqali davom etishingiz mumkin 👇"
	case referral.OutcomeNotEligible:
		return fmt.Sprintf("❗ %s uchun avval kanalga obuna bo‘ling:\n%s", gatedSubject(reply.Intent), ChannelURL(channel))
	case referral.OutcomeLink:
		return "🔗 Bu sizning shaxsiy referal linkingiz.\n\n" +
			"Uni do‘stlaringiz bilan ulashing 👇\n\n" + reply.Link
	case referral.OutcomeStats:
		return fmt.Sprintf("📊 Mening referallarim\n\nSiz taklif qilganlar soni: %d", reply.RefCount)
	case referral.OutcomeLeaderboard:
		return renderLeaderboard(reply.Leaderboard)
	case referral.OutcomeSubscribe:
		return "📢 Kanalimizga obuna bo‘ling:\n" + ChannelURL(channel)
	default:
		return ""
	}
}

func gatedSubject(in bot.Intent) string {
	switch in {
	case bot.IntentGetLink:
		return "Referal link olish"
	case bot.IntentMyStats:
		return "Referal ma’lumotlarni ko‘rish"
	case bot.IntentTop:
		return "Top 10 ro‘yxatini ko‘rish"
	default:
		return "Davom etish"
	}
}

func renderLeaderboard(rows []referral.LeaderboardRow) string {
	if len(rows) == 0 {
		return "Hozircha ma’lumot yo‘q."
	}
	var b strings.Builder
	b.WriteString("🏆 TOP 10 ISHTIROKCHILAR\n\n")
	for _, row := range rows {
		name := row.DisplayName
		if name == "" {
			name = "Ismsiz"
		}
		fmt.Fprintf(&b, "%d. %s — %d\n", row.Rank, name, row.RefCount)
	}
	return b.String()
}

func renderMessage(chatID int64, reply bot.Reply, channel string) (tgbotapi.MessageConfig, bool) {
	text := renderText(reply, channel)
	if text == "" {
		return tgbotapi.MessageConfig{}, false
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if reply.ShowMenu() {
		msg.ReplyMarkup = mainMenu()
	} else {
		msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	}
	return msg, true
}
