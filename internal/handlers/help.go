package handlers

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// HelpHandler handles the /help command.
type HelpHandler struct {
	logger *logrus.Logger
}

// NewHelpHandler creates a new HelpHandler.
func NewHelpHandler(logger *logrus.Logger) *HelpHandler {
	return &HelpHandler{logger: logger}
}

// Handle processes the /help command.
func (h *HelpHandler) Handle(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	helpText := "ℹ️ *Commands*\n\n" +
		"*Messages*\n" +
		"`/mymessages` — your counts for every window\n" +
		"`/stats [daily|weekly|monthly|all]` — one window; reply to someone to see theirs\n\n" +
		"*Raffles* (admins)\n" +
		"`/newrandy` — start a raffle draft\n" +
		"`/randyinfo` — show the draft\n" +
		"`/randy` — publish the draft\n" +
		"`/wrandy <n>` — change the winner count of the live raffle\n" +
		"`/urandy` — finish the raffle and draw winners\n\n" +
		"*Roll* (admins)\n" +
		"`/roll [minutes]` — start a session; the timeout drops idle users\n" +
		"`/saveroll` — save the current step and pause\n" +
		"`/breakroll` / `/resumeroll` — break without losing anyone\n" +
		"`/lockroll` / `/unlockroll` — close or reopen entry\n" +
		"`/rolllist` — current roster\n" +
		"`/stoproll` — finish and post the final roster\n\n" +
		"*Tagging* (admins)\n" +
		"`/tag <message>` — mention everyone in batches\n" +
		"`/greet` — greet everyone one by one\n" +
		"`/stoptag` — cancel a running broadcast"

	msg := tgbotapi.NewMessage(message.Chat.ID, helpText)
	msg.ParseMode = tgbotapi.ModeMarkdown
	bot.Send(msg)

	return nil
}
