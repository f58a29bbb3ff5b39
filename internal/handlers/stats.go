package handlers

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Semhkaramn/msharleyrandy/internal/models"
	"github.com/Semhkaramn/msharleyrandy/internal/service"
)

// ---------------------------------------------------------------------------
// MyMessagesHandler – /mymessages
// ---------------------------------------------------------------------------

// MyMessagesHandler handles the /mymessages command: it shows the caller
// their own tallies across every window. Open to everyone in the group.
type MyMessagesHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewMyMessagesHandler creates a new MyMessagesHandler.
func NewMyMessagesHandler(svc *service.Service, logger *logrus.Logger) *MyMessagesHandler {
	return &MyMessagesHandler{svc: svc, logger: logger}
}

// Handle processes the /mymessages command.
func (h *MyMessagesHandler) Handle(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	if !isGroupChat(message) {
		reply(bot, message.Chat.ID, "❌ This command only works in groups.")
		return nil
	}

	ctx := context.Background()
	counter, err := h.svc.GetStats(ctx, message.Chat.ID, message.From.ID)
	if err != nil {
		return fmt.Errorf("get message stats: %w", err)
	}
	if counter == nil {
		reply(bot, message.Chat.ID, "📊 No messages counted for you yet. Say something!")
		return nil
	}

	text := fmt.Sprintf(
		"📊 *Messages from %s*\n\nToday: %d\nThis week: %d\nThis month: %d\nAll time: %d",
		counter.Mention(), counter.DailyCount, counter.WeeklyCount, counter.MonthlyCount, counter.TotalCount)
	reply(bot, message.Chat.ID, text)
	return nil
}

// ---------------------------------------------------------------------------
// StatsHandler – /stats [daily|weekly|monthly|all]
// ---------------------------------------------------------------------------

// StatsHandler handles the /stats command: one window's tally, either for
// the caller or — when the command replies to someone — for that user.
type StatsHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(svc *service.Service, logger *logrus.Logger) *StatsHandler {
	return &StatsHandler{svc: svc, logger: logger}
}

// Handle processes the /stats command.
func (h *StatsHandler) Handle(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	if !isGroupChat(message) {
		reply(bot, message.Chat.ID, "❌ This command only works in groups.")
		return nil
	}

	window := models.WindowDaily
	if len(args) > 0 {
		window = models.ParseCounterWindow(args[0])
	}

	target := message.From
	if message.ReplyToMessage != nil && message.ReplyToMessage.From != nil {
		target = message.ReplyToMessage.From
	}

	ctx := context.Background()
	count, err := h.svc.GetCount(ctx, message.Chat.ID, target.ID, window)
	if err != nil {
		return fmt.Errorf("get message count: %w", err)
	}

	name := target.FirstName
	if target.UserName != "" {
		name = "@" + target.UserName
	}
	reply(bot, message.Chat.ID, fmt.Sprintf("📊 %s — %d messages %s.", name, count, windowLabel(window)))
	return nil
}

func windowLabel(window models.CounterWindow) string {
	switch window {
	case models.WindowWeekly:
		return "this week"
	case models.WindowMonthly:
		return "this month"
	case models.WindowAll:
		return "all time"
	default:
		return "today"
	}
}
