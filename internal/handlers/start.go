package handlers

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Semhkaramn/msharleyrandy/internal/service"
)

// StartHandler handles the /start command. In a group it registers the
// group; in a private chat it greets the user and lists the groups they
// administer, so an admin can check where the bot already knows them.
type StartHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewStartHandler creates a new StartHandler.
func NewStartHandler(svc *service.Service, logger *logrus.Logger) *StartHandler {
	return &StartHandler{svc: svc, logger: logger}
}

// Handle processes the /start command.
func (h *StartHandler) Handle(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	ctx := context.Background()

	if isGroupChat(message) {
		if _, err := h.svc.Groups.Upsert(ctx, message.Chat.ID, message.Chat.Title); err != nil {
			return fmt.Errorf("register group: %w", err)
		}
		reply(bot, message.Chat.ID,
			"👋 *Hi!* I count messages, run raffles and roll sessions here.\nType /help to see what I can do.")

		h.logger.WithFields(logrus.Fields{
			"chat_id": message.Chat.ID,
			"title":   message.Chat.Title,
		}).Info("Group registered")
		return nil
	}

	text := fmt.Sprintf("👋 *Hi, %s!*\n\nAdd me to a group to count messages, run raffles and roll sessions.", message.From.FirstName)

	groups, err := h.svc.Groups.ListAdminGroups(ctx, message.From.ID)
	if err != nil {
		h.logger.Warnf("Failed to list admin groups for user %d: %v", message.From.ID, err)
	} else if len(groups) > 0 {
		var b strings.Builder
		b.WriteString("\n\n*Your groups:*\n")
		for _, g := range groups {
			fmt.Fprintf(&b, "• %s\n", g.Title)
		}
		text += strings.TrimRight(b.String(), "\n")
	}

	reply(bot, message.Chat.ID, text)
	return nil
}
