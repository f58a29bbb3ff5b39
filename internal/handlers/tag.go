package handlers

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Semhkaramn/msharleyrandy/internal/service"
)

// htmlSender builds the SendFunc the tagging broadcaster delivers through.
// Mentions use tg://user links, which need HTML parse mode.
func htmlSender(bot *tgbotapi.BotAPI) service.SendFunc {
	return func(chatID int64, text string) error {
		msg := tgbotapi.NewMessage(chatID, text)
		msg.ParseMode = tgbotapi.ModeHTML
		_, err := bot.Send(msg)
		return err
	}
}

// ---------------------------------------------------------------------------
// TagHandler – /tag <message>
// ---------------------------------------------------------------------------

// TagHandler handles the /tag command: it broadcasts the given message to
// the whole group roster, mentioning users in batches. Only one broadcast
// per group runs at a time.
type TagHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewTagHandler creates a new TagHandler.
func NewTagHandler(svc *service.Service, logger *logrus.Logger) *TagHandler {
	return &TagHandler{svc: svc, logger: logger}
}

// Handle processes the /tag command.
func (h *TagHandler) Handle(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	ctx := context.Background()
	if !requireAdmin(ctx, h.svc, h.logger, bot, message) {
		return nil
	}

	if len(args) == 0 {
		reply(bot, message.Chat.ID, "❌ Please provide a message.\n\n*Usage:* `/tag Everyone to the voice chat!`")
		return nil
	}

	if _, running := h.svc.TaggingKind(message.Chat.ID); running {
		reply(bot, message.Chat.ID, "❌ A tagging run is already going. Stop it with `/stoptag` first.")
		return nil
	}

	started, err := h.svc.StartTagging(ctx, message.Chat.ID, service.TagBatch, strings.Join(args, " "), htmlSender(bot))
	if err != nil {
		return fmt.Errorf("start tagging: %w", err)
	}
	if !started {
		reply(bot, message.Chat.ID, "❌ Nobody to tag yet — the roster is empty.")
		return nil
	}

	h.logger.WithFields(logrus.Fields{
		"chat_id": message.Chat.ID,
		"user_id": message.From.ID,
	}).Info("Tagging started")
	return nil
}

// ---------------------------------------------------------------------------
// GreetHandler – /greet
// ---------------------------------------------------------------------------

// GreetHandler handles the /greet command: it mentions every user in the
// roster one by one with a random greeting.
type GreetHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewGreetHandler creates a new GreetHandler.
func NewGreetHandler(svc *service.Service, logger *logrus.Logger) *GreetHandler {
	return &GreetHandler{svc: svc, logger: logger}
}

// Handle processes the /greet command.
func (h *GreetHandler) Handle(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	ctx := context.Background()
	if !requireAdmin(ctx, h.svc, h.logger, bot, message) {
		return nil
	}

	if _, running := h.svc.TaggingKind(message.Chat.ID); running {
		reply(bot, message.Chat.ID, "❌ A tagging run is already going. Stop it with `/stoptag` first.")
		return nil
	}

	started, err := h.svc.StartTagging(ctx, message.Chat.ID, service.TagGreet, "", htmlSender(bot))
	if err != nil {
		return fmt.Errorf("start greeting: %w", err)
	}
	if !started {
		reply(bot, message.Chat.ID, "❌ Nobody to greet yet — the roster is empty.")
		return nil
	}

	h.logger.WithFields(logrus.Fields{
		"chat_id": message.Chat.ID,
		"user_id": message.From.ID,
	}).Info("Greeting started")
	return nil
}

// ---------------------------------------------------------------------------
// StopTagHandler – /stoptag
// ---------------------------------------------------------------------------

// StopTagHandler handles the /stoptag command to cancel a running broadcast.
type StopTagHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewStopTagHandler creates a new StopTagHandler.
func NewStopTagHandler(svc *service.Service, logger *logrus.Logger) *StopTagHandler {
	return &StopTagHandler{svc: svc, logger: logger}
}

// Handle processes the /stoptag command.
func (h *StopTagHandler) Handle(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	ctx := context.Background()
	if !requireAdmin(ctx, h.svc, h.logger, bot, message) {
		return nil
	}

	if !h.svc.StopTagging(message.Chat.ID) {
		reply(bot, message.Chat.ID, "ℹ️ No tagging run is going right now.")
		return nil
	}

	reply(bot, message.Chat.ID, "🛑 Tagging stopped.")
	return nil
}
