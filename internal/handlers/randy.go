package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Semhkaramn/msharleyrandy/internal/metrics"
	"github.com/Semhkaramn/msharleyrandy/internal/models"
	"github.com/Semhkaramn/msharleyrandy/internal/service"
)

// JoinCallbackPrefix is the callback-data prefix routed to the join flow.
const JoinCallbackPrefix = "randy_join:"

// ---------------------------------------------------------------------------
// RandyPublishHandler – /randy
// ---------------------------------------------------------------------------

// RandyPublishHandler handles the /randy command: it publishes the caller's
// draft as the group's active raffle, sends the announcement with the join
// button and pins it when the draft asks for that.
type RandyPublishHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewRandyPublishHandler creates a new RandyPublishHandler.
func NewRandyPublishHandler(svc *service.Service, logger *logrus.Logger) *RandyPublishHandler {
	return &RandyPublishHandler{svc: svc, logger: logger}
}

// Handle processes the /randy command.
func (h *RandyPublishHandler) Handle(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	ctx := context.Background()
	if !requireAdmin(ctx, h.svc, h.logger, bot, message) {
		return nil
	}

	res, err := h.svc.Publish(ctx, message.From.ID, message.Chat.ID, time.Now())
	if err != nil {
		return fmt.Errorf("publish raffle: %w", err)
	}

	switch res.Status {
	case service.PublishNoDraft:
		reply(bot, message.Chat.ID, "❌ You have no raffle draft for this group.\nStart one with `/newrandy`.")
		return nil
	case service.PublishDraftIncomplete:
		reply(bot, message.Chat.ID, "❌ The draft is missing a title or message.\nSet them with `/randytitle` and `/randytext`.")
		return nil
	case service.PublishAlreadyActive:
		reply(bot, message.Chat.ID, "❌ This group already has an active raffle.\nFinish it with `/urandy` first.")
		return nil
	}

	raffle := res.Raffle
	sent, err := h.sendAnnouncement(bot, raffle)
	if err != nil {
		return fmt.Errorf("send raffle announcement: %w", err)
	}

	if err := h.svc.SetPublishedMessage(ctx, raffle.ID, int64(sent.MessageID)); err != nil {
		h.logger.Warnf("Failed to store raffle message ref (raffle=%d): %v", raffle.ID, err)
	}

	if raffle.PinMessage {
		_, err := bot.Request(tgbotapi.PinChatMessageConfig{
			ChatID:              message.Chat.ID,
			MessageID:           sent.MessageID,
			DisableNotification: true,
		})
		if err != nil {
			h.logger.Warnf("Failed to pin raffle announcement (raffle=%d): %v", raffle.ID, err)
		}
	}

	h.logger.WithFields(logrus.Fields{
		"chat_id":   message.Chat.ID,
		"raffle_id": raffle.ID,
	}).Info("Raffle announcement published")
	return nil
}

func (h *RandyPublishHandler) sendAnnouncement(bot *tgbotapi.BotAPI, raffle *models.Raffle) (tgbotapi.Message, error) {
	text := fmt.Sprintf("🎉 *%s*\n\n%s", raffle.Title, raffle.Message)
	if line := requirementLine(raffle.Requirement, raffle.RequiredCount); line != "" {
		text += "\n\n" + line
	}
	text += fmt.Sprintf("\n🏆 Winners: %d", raffle.WinnerCount)

	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🎁 Join", fmt.Sprintf("%s%d", JoinCallbackPrefix, raffle.ID)),
		),
	)

	switch raffle.MediaType {
	case models.MediaPhoto:
		photo := tgbotapi.NewPhoto(raffle.GroupID, tgbotapi.FileID(raffle.MediaFileID))
		photo.Caption = text
		photo.ParseMode = tgbotapi.ModeMarkdown
		photo.ReplyMarkup = keyboard
		return bot.Send(photo)
	case models.MediaVideo:
		video := tgbotapi.NewVideo(raffle.GroupID, tgbotapi.FileID(raffle.MediaFileID))
		video.Caption = text
		video.ParseMode = tgbotapi.ModeMarkdown
		video.ReplyMarkup = keyboard
		return bot.Send(video)
	default:
		msg := tgbotapi.NewMessage(raffle.GroupID, text)
		msg.ParseMode = tgbotapi.ModeMarkdown
		msg.ReplyMarkup = keyboard
		return bot.Send(msg)
	}
}

// requirementLine renders the admission requirement for the announcement.
func requirementLine(req models.RequirementType, count int) string {
	switch req {
	case models.RequirementPostPublish:
		return fmt.Sprintf("📝 To join: send %d messages after this announcement.", count)
	case models.RequirementDaily:
		return fmt.Sprintf("📝 To join: %d messages today.", count)
	case models.RequirementWeekly:
		return fmt.Sprintf("📝 To join: %d messages this week.", count)
	case models.RequirementMonthly:
		return fmt.Sprintf("📝 To join: %d messages this month.", count)
	case models.RequirementAllTime:
		return fmt.Sprintf("📝 To join: %d messages in total.", count)
	default:
		return ""
	}
}

// ---------------------------------------------------------------------------
// JoinCallbackHandler – randy_join:<raffle_id>
// ---------------------------------------------------------------------------

// JoinCallbackHandler handles the join button under a raffle announcement.
// Every outcome is answered on the callback itself so the group stays
// uncluttered; failures pop an alert explaining what is missing.
type JoinCallbackHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewJoinCallbackHandler creates a new JoinCallbackHandler.
func NewJoinCallbackHandler(svc *service.Service, logger *logrus.Logger) *JoinCallbackHandler {
	return &JoinCallbackHandler{svc: svc, logger: logger}
}

// HandleCallback processes one join attempt. data is the raffle id.
func (h *JoinCallbackHandler) HandleCallback(bot *tgbotapi.BotAPI, query *tgbotapi.CallbackQuery, data string) error {
	raffleID, err := strconv.ParseInt(data, 10, 64)
	if err != nil {
		bot.Request(tgbotapi.NewCallback(query.ID, ""))
		return nil
	}

	ctx := context.Background()
	res, err := h.svc.Join(ctx, raffleID, query.From.ID, query.From.UserName, query.From.FirstName, time.Now())
	if err != nil {
		bot.Request(tgbotapi.NewCallbackWithAlert(query.ID, "Something went wrong. Please try again."))
		return fmt.Errorf("join raffle %d: %w", raffleID, err)
	}

	metrics.RaffleJoins.WithLabelValues(joinOutcome(res.Status)).Inc()

	switch res.Status {
	case service.JoinOK:
		bot.Request(tgbotapi.NewCallback(query.ID, "You're in! 🎉"))
	case service.JoinAlreadyEntered:
		bot.Request(tgbotapi.NewCallback(query.ID, "You already entered this raffle."))
	case service.JoinRaffleNotFound, service.JoinRaffleNotActive:
		bot.Request(tgbotapi.NewCallbackWithAlert(query.ID, "This raffle is already over."))
	case service.JoinNotChannelMember:
		text := "To enter, first join:\n" + strings.Join(res.MissingChannels, "\n")
		bot.Request(tgbotapi.NewCallbackWithAlert(query.ID, text))
	case service.JoinRequirementUnmet:
		text := fmt.Sprintf("Not enough messages yet: %d of %d required.", res.Current, res.Required)
		bot.Request(tgbotapi.NewCallbackWithAlert(query.ID, text))
	case service.JoinPostPublishUnmet:
		text := fmt.Sprintf("Keep chatting! %d of %d messages since the raffle started.", res.Current, res.Required)
		bot.Request(tgbotapi.NewCallbackWithAlert(query.ID, text))
	}
	return nil
}

func joinOutcome(status service.JoinStatus) string {
	switch status {
	case service.JoinOK:
		return "ok"
	case service.JoinAlreadyEntered:
		return "already_entered"
	case service.JoinRaffleNotFound:
		return "not_found"
	case service.JoinRaffleNotActive:
		return "not_active"
	case service.JoinNotChannelMember:
		return "channels_missing"
	case service.JoinRequirementUnmet:
		return "requirement_unmet"
	case service.JoinPostPublishUnmet:
		return "post_publish_unmet"
	default:
		return "unknown"
	}
}

// ---------------------------------------------------------------------------
// RandyFinishHandler – /urandy
// ---------------------------------------------------------------------------

// RandyFinishHandler handles the /urandy command: it ends the group's active
// raffle and announces the winners. A raffle with fewer entrants than prizes
// makes everyone a winner; an empty raffle ends without winners.
type RandyFinishHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewRandyFinishHandler creates a new RandyFinishHandler.
func NewRandyFinishHandler(svc *service.Service, logger *logrus.Logger) *RandyFinishHandler {
	return &RandyFinishHandler{svc: svc, logger: logger}
}

// Handle processes the /urandy command.
func (h *RandyFinishHandler) Handle(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	ctx := context.Background()
	if !requireAdmin(ctx, h.svc, h.logger, bot, message) {
		return nil
	}

	raffle, err := h.svc.ActiveRaffle(ctx, message.Chat.ID)
	if err != nil {
		return fmt.Errorf("get active raffle: %w", err)
	}
	if raffle == nil {
		reply(bot, message.Chat.ID, "❌ There is no active raffle in this group.")
		return nil
	}

	res, err := h.svc.Finish(ctx, raffle.ID, 0, time.Now())
	if err != nil {
		return fmt.Errorf("finish raffle %d: %w", raffle.ID, err)
	}

	switch res.Status {
	case service.FinishAlreadyEnded:
		reply(bot, message.Chat.ID, "❌ This raffle has already ended.")
	case service.FinishNoEntrants:
		reply(bot, message.Chat.ID, fmt.Sprintf("🏁 *%s* has ended — nobody entered. 😢", raffle.Title))
	case service.FinishEveryoneWins:
		text := fmt.Sprintf("🏁 *%s* has ended!\n\nOnly %d of %d prizes found an owner — everyone who entered wins! 🎊\n\n%s",
			raffle.Title, res.Entrants, res.Requested, winnersList(res.Winners))
		reply(bot, message.Chat.ID, text)
	case service.FinishOK:
		text := fmt.Sprintf("🏁 *%s* has ended!\n\n🎊 Winners:\n%s\n\nEntrants: %d", raffle.Title, winnersList(res.Winners), res.Entrants)
		reply(bot, message.Chat.ID, text)
	}
	return nil
}

// winnersList renders the winner roster, one per line.
func winnersList(winners []models.RaffleWinner) string {
	var b strings.Builder
	for i, w := range winners {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d. %s", i+1, w.Mention())
	}
	return b.String()
}

// ---------------------------------------------------------------------------
// RandyWinnersHandler – /wrandy <count>
// ---------------------------------------------------------------------------

// RandyWinnersHandler handles the /wrandy command to change the winner
// count of the group's active raffle before it is drawn.
type RandyWinnersHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewRandyWinnersHandler creates a new RandyWinnersHandler.
func NewRandyWinnersHandler(svc *service.Service, logger *logrus.Logger) *RandyWinnersHandler {
	return &RandyWinnersHandler{svc: svc, logger: logger}
}

// Handle processes the /wrandy command.
func (h *RandyWinnersHandler) Handle(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	ctx := context.Background()
	if !requireAdmin(ctx, h.svc, h.logger, bot, message) {
		return nil
	}

	if len(args) == 0 {
		reply(bot, message.Chat.ID, "❌ Please provide the winner count.\n\n*Usage:* `/wrandy 3`")
		return nil
	}
	count, err := strconv.Atoi(args[0])
	if err != nil || count < 1 {
		reply(bot, message.Chat.ID, "❌ The winner count must be a positive number.")
		return nil
	}

	raffle, err := h.svc.ActiveRaffle(ctx, message.Chat.ID)
	if err != nil {
		return fmt.Errorf("get active raffle: %w", err)
	}
	if raffle == nil {
		reply(bot, message.Chat.ID, "❌ There is no active raffle in this group.")
		return nil
	}

	ok, err := h.svc.UpdateWinnerCount(ctx, raffle.ID, count)
	if err != nil {
		return fmt.Errorf("update winner count: %w", err)
	}
	if !ok {
		reply(bot, message.Chat.ID, "❌ Could not update the winner count.")
		return nil
	}

	reply(bot, message.Chat.ID, fmt.Sprintf("🏆 Winner count set to *%d*.", count))
	return nil
}
