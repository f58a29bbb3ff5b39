package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Semhkaramn/msharleyrandy/internal/models"
	"github.com/Semhkaramn/msharleyrandy/internal/repository"
	"github.com/Semhkaramn/msharleyrandy/internal/service"
)

const draftSetupUsage = "📝 *Raffle setup*\n\n" +
	"`/randytitle <title>` — set the title\n" +
	"`/randytext <message>` — set the announcement text\n" +
	"`/randymedia` — reply to a photo or video to attach it\n" +
	"`/randyreq <none|post|daily|weekly|monthly|all> [count]` — admission requirement\n" +
	"`/randywinners <n>` — number of winners\n" +
	"`/randypin <on|off>` — pin the announcement\n" +
	"`/randychannel add <id> [@username] [title]` — require a channel\n" +
	"`/randyinfo` — show the draft\n" +
	"`/randy` — publish"

// ---------------------------------------------------------------------------
// DraftNewHandler – /newrandy
// ---------------------------------------------------------------------------

// DraftNewHandler handles the /newrandy command: it starts a fresh blank
// draft for the caller in this group, replacing any previous one.
type DraftNewHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewDraftNewHandler creates a new DraftNewHandler.
func NewDraftNewHandler(svc *service.Service, logger *logrus.Logger) *DraftNewHandler {
	return &DraftNewHandler{svc: svc, logger: logger}
}

// Handle processes the /newrandy command.
func (h *DraftNewHandler) Handle(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	ctx := context.Background()
	if !requireAdmin(ctx, h.svc, h.logger, bot, message) {
		return nil
	}

	draft, err := h.svc.Drafts.Create(ctx, message.From.ID, message.Chat.ID)
	if err != nil {
		return fmt.Errorf("create draft: %w", err)
	}

	h.logger.WithFields(logrus.Fields{
		"chat_id":  message.Chat.ID,
		"user_id":  message.From.ID,
		"draft_id": draft.ID,
	}).Info("Raffle draft started")

	reply(bot, message.Chat.ID, "✨ *New raffle draft started!*\n\n"+draftSetupUsage)
	return nil
}

// ---------------------------------------------------------------------------
// DraftFieldHandler – /randytitle, /randytext, /randyreq, /randywinners,
// /randypin, /randymedia
// ---------------------------------------------------------------------------

// DraftFieldHandler mutates one field of the caller's draft. The command it
// was registered under selects the field; unknown fields were never
// registered, so field is always valid here.
type DraftFieldHandler struct {
	svc    *service.Service
	logger *logrus.Logger
	field  string
}

// NewDraftFieldHandler creates a handler for the given draft field: one of
// "title", "text", "requirement", "winners", "pin", "media".
func NewDraftFieldHandler(svc *service.Service, logger *logrus.Logger, field string) *DraftFieldHandler {
	return &DraftFieldHandler{svc: svc, logger: logger, field: field}
}

// Handle processes the field-setting command.
func (h *DraftFieldHandler) Handle(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	ctx := context.Background()
	if !requireAdmin(ctx, h.svc, h.logger, bot, message) {
		return nil
	}

	update, errText := h.buildUpdate(message, args)
	if errText != "" {
		reply(bot, message.Chat.ID, errText)
		return nil
	}

	draft, err := h.svc.UpdateDraft(ctx, message.From.ID, message.Chat.ID, update)
	if err != nil {
		return fmt.Errorf("update draft: %w", err)
	}
	if draft == nil {
		reply(bot, message.Chat.ID, "❌ You have no draft for this group. Start one with `/newrandy`.")
		return nil
	}

	reply(bot, message.Chat.ID, "✅ Draft updated. Check it with `/randyinfo`.")
	return nil
}

// buildUpdate parses the command arguments into a partial update. A non-empty
// second return is the usage error to show the caller.
func (h *DraftFieldHandler) buildUpdate(message *tgbotapi.Message, args []string) (repository.DraftUpdate, string) {
	var u repository.DraftUpdate

	switch h.field {
	case "title":
		if len(args) == 0 {
			return u, "❌ Please provide a title.\n\n*Usage:* `/randytitle iPhone giveaway`"
		}
		title := strings.Join(args, " ")
		u.Title = &title

	case "text":
		if len(args) == 0 {
			return u, "❌ Please provide the announcement text.\n\n*Usage:* `/randytext Win a prize! Press the button below.`"
		}
		text := strings.Join(args, " ")
		u.Message = &text

	case "requirement":
		if len(args) == 0 {
			return u, "❌ *Usage:* `/randyreq <none|post|daily|weekly|monthly|all> [count]`"
		}
		var req models.RequirementType
		switch args[0] {
		case "none":
			req = models.RequirementNone
		case "post":
			req = models.RequirementPostPublish
		case "daily":
			req = models.RequirementDaily
		case "weekly":
			req = models.RequirementWeekly
		case "monthly":
			req = models.RequirementMonthly
		case "all":
			req = models.RequirementAllTime
		default:
			return u, "❌ Unknown requirement. Use `none`, `post`, `daily`, `weekly`, `monthly` or `all`."
		}
		count := 0
		if req != models.RequirementNone {
			if len(args) < 2 {
				return u, "❌ This requirement needs a message count, e.g. `/randyreq daily 20`."
			}
			n, err := strconv.Atoi(args[1])
			if err != nil || n < 1 {
				return u, "❌ The message count must be a positive number."
			}
			count = n
		}
		u.Requirement = &req
		u.RequiredCount = &count

	case "winners":
		if len(args) == 0 {
			return u, "❌ *Usage:* `/randywinners 3`"
		}
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			return u, "❌ The winner count must be a positive number."
		}
		u.WinnerCount = &n

	case "pin":
		if len(args) == 0 || (args[0] != "on" && args[0] != "off") {
			return u, "❌ *Usage:* `/randypin on` or `/randypin off`"
		}
		pin := args[0] == "on"
		u.PinMessage = &pin

	case "media":
		replied := message.ReplyToMessage
		if replied == nil {
			if len(args) > 0 && args[0] == "none" {
				mt := models.MediaNone
				fileID := ""
				u.MediaType = &mt
				u.MediaFileID = &fileID
				break
			}
			return u, "❌ Reply to a photo or video with `/randymedia`, or `/randymedia none` to remove it."
		}
		switch {
		case len(replied.Photo) > 0:
			mt := models.MediaPhoto
			// Telegram lists photo sizes smallest first.
			fileID := replied.Photo[len(replied.Photo)-1].FileID
			u.MediaType = &mt
			u.MediaFileID = &fileID
		case replied.Video != nil:
			mt := models.MediaVideo
			fileID := replied.Video.FileID
			u.MediaType = &mt
			u.MediaFileID = &fileID
		default:
			return u, "❌ The replied message has no photo or video."
		}
	}

	return u, ""
}

// ---------------------------------------------------------------------------
// DraftChannelHandler – /randychannel add|del|list|clear
// ---------------------------------------------------------------------------

// DraftChannelHandler manages the draft's required-channel list. Channels
// are identified by their numeric chat id; the optional username and title
// are only used when telling users which channel they are missing.
type DraftChannelHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewDraftChannelHandler creates a new DraftChannelHandler.
func NewDraftChannelHandler(svc *service.Service, logger *logrus.Logger) *DraftChannelHandler {
	return &DraftChannelHandler{svc: svc, logger: logger}
}

// Handle processes the /randychannel command.
func (h *DraftChannelHandler) Handle(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	ctx := context.Background()
	if !requireAdmin(ctx, h.svc, h.logger, bot, message) {
		return nil
	}

	draft, err := h.svc.EnsureDraft(ctx, message.From.ID, message.Chat.ID)
	if err != nil {
		return fmt.Errorf("ensure draft: %w", err)
	}

	if len(args) == 0 {
		reply(bot, message.Chat.ID, "❌ *Usage:*\n`/randychannel add <id> [@username] [title]`\n`/randychannel del <id>`\n`/randychannel list`\n`/randychannel clear`")
		return nil
	}

	switch args[0] {
	case "add":
		if len(args) < 2 {
			reply(bot, message.Chat.ID, "❌ Please provide the channel id, e.g. `/randychannel add -1001234567890 @mychannel`")
			return nil
		}
		channelID, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			reply(bot, message.Chat.ID, "❌ The channel id must be a number. Forward a channel post to @userinfobot to find it.")
			return nil
		}
		ch := &models.RaffleChannel{ChannelID: channelID}
		rest := args[2:]
		if len(rest) > 0 && strings.HasPrefix(rest[0], "@") {
			ch.Username = strings.TrimPrefix(rest[0], "@")
			rest = rest[1:]
		}
		ch.Title = strings.Join(rest, " ")

		added, err := h.svc.Drafts.AddChannel(ctx, draft.ID, ch)
		if err != nil {
			return fmt.Errorf("add draft channel: %w", err)
		}
		if !added {
			reply(bot, message.Chat.ID, "ℹ️ That channel is already required.")
			return nil
		}
		reply(bot, message.Chat.ID, fmt.Sprintf("✅ Channel %s added to the requirements.", ch.Label()))

	case "del":
		if len(args) < 2 {
			reply(bot, message.Chat.ID, "❌ Please provide the channel id, e.g. `/randychannel del -1001234567890`")
			return nil
		}
		channelID, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			reply(bot, message.Chat.ID, "❌ The channel id must be a number.")
			return nil
		}
		if err := h.svc.Drafts.RemoveChannel(ctx, draft.ID, channelID); err != nil {
			return fmt.Errorf("remove draft channel: %w", err)
		}
		reply(bot, message.Chat.ID, "✅ Channel removed.")

	case "list":
		channels, err := h.svc.Drafts.ListChannels(ctx, draft.ID)
		if err != nil {
			return fmt.Errorf("list draft channels: %w", err)
		}
		if len(channels) == 0 {
			reply(bot, message.Chat.ID, "📡 No required channels on this draft.")
			return nil
		}
		var b strings.Builder
		b.WriteString("📡 *Required channels:*\n")
		for _, ch := range channels {
			fmt.Fprintf(&b, "• %s (`%d`)\n", ch.Label(), ch.ChannelID)
		}
		reply(bot, message.Chat.ID, b.String())

	case "clear":
		if err := h.svc.Drafts.ClearChannels(ctx, draft.ID); err != nil {
			return fmt.Errorf("clear draft channels: %w", err)
		}
		reply(bot, message.Chat.ID, "✅ Required channels cleared.")

	default:
		reply(bot, message.Chat.ID, "❌ Unknown subcommand. Use `add`, `del`, `list` or `clear`.")
	}
	return nil
}

// ---------------------------------------------------------------------------
// DraftInfoHandler – /randyinfo
// ---------------------------------------------------------------------------

// DraftInfoHandler handles the /randyinfo command to show the caller's
// draft as it currently stands.
type DraftInfoHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewDraftInfoHandler creates a new DraftInfoHandler.
func NewDraftInfoHandler(svc *service.Service, logger *logrus.Logger) *DraftInfoHandler {
	return &DraftInfoHandler{svc: svc, logger: logger}
}

// Handle processes the /randyinfo command.
func (h *DraftInfoHandler) Handle(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	ctx := context.Background()
	if !requireAdmin(ctx, h.svc, h.logger, bot, message) {
		return nil
	}

	draft, err := h.svc.Drafts.GetByCreator(ctx, message.From.ID, message.Chat.ID)
	if err != nil {
		return fmt.Errorf("get draft: %w", err)
	}
	if draft == nil {
		reply(bot, message.Chat.ID, "❌ You have no draft for this group. Start one with `/newrandy`.")
		return nil
	}

	channels, err := h.svc.Drafts.ListChannels(ctx, draft.ID)
	if err != nil {
		return fmt.Errorf("list draft channels: %w", err)
	}

	var b strings.Builder
	b.WriteString("📋 *Raffle draft*\n\n")
	fmt.Fprintf(&b, "Title: %s\n", orUnset(draft.Title))
	fmt.Fprintf(&b, "Message: %s\n", orUnset(draft.Message))
	fmt.Fprintf(&b, "Media: %s\n", string(draft.MediaType))
	if line := requirementLine(draft.Requirement, draft.RequiredCount); line != "" {
		b.WriteString(line + "\n")
	} else {
		b.WriteString("Requirement: none\n")
	}
	fmt.Fprintf(&b, "Winners: %d\n", draft.WinnerCount)
	fmt.Fprintf(&b, "Pin announcement: %t\n", draft.PinMessage)
	fmt.Fprintf(&b, "Required channels: %d\n", len(channels))
	if draft.IsPublishable() {
		b.WriteString("\nReady — publish with `/randy`.")
	} else {
		b.WriteString("\nNot ready — set the title and message first.")
	}

	reply(bot, message.Chat.ID, b.String())
	return nil
}

func orUnset(s string) string {
	if s == "" {
		return "_not set_"
	}
	return s
}
