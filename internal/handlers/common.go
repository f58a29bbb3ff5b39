package handlers

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Semhkaramn/msharleyrandy/internal/service"
)

// reply sends a Markdown-formatted message to the chat. Send failures are
// ignored here; the router already reports handler errors.
func reply(bot *tgbotapi.BotAPI, chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	bot.Send(msg)
}

// isGroupChat reports whether the message came from a group or supergroup.
func isGroupChat(message *tgbotapi.Message) bool {
	return message.Chat != nil && (message.Chat.IsGroup() || message.Chat.IsSuperGroup())
}

// requireAdmin gates a command on the sender administering the group. The
// group row is registered (or re-titled) on every successful gate. A failed
// admin lookup fails closed: the command is rejected. Replies are sent here;
// the caller just returns when this is false.
func requireAdmin(ctx context.Context, svc *service.Service, logger *logrus.Logger, bot *tgbotapi.BotAPI, message *tgbotapi.Message) bool {
	if !isGroupChat(message) {
		reply(bot, message.Chat.ID, "❌ This command only works in groups.")
		return false
	}

	isAdmin, err := svc.IsAdmin(ctx, message.Chat.ID, message.From.ID)
	if err != nil {
		reply(bot, message.Chat.ID, "❌ Could not verify admin rights. Please try again.")
		return false
	}
	if !isAdmin {
		reply(bot, message.Chat.ID, "🚫 Only group admins can use this command.")
		return false
	}

	if _, err := svc.Groups.Upsert(ctx, message.Chat.ID, message.Chat.Title); err != nil {
		logger.Warnf("Failed to register group %d: %v", message.Chat.ID, err)
	}
	return true
}
