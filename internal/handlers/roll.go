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

// ---------------------------------------------------------------------------
// RollStartHandler – /roll [minutes]
// ---------------------------------------------------------------------------

// RollStartHandler handles the /roll command: it starts a fresh attendance
// session with step 1 open, wiping any previous session for the group. The
// optional argument sets the inactivity timeout in minutes.
type RollStartHandler struct {
	svc             *service.Service
	logger          *logrus.Logger
	defaultDuration int
}

// NewRollStartHandler creates a new RollStartHandler.
func NewRollStartHandler(svc *service.Service, logger *logrus.Logger, defaultDuration int) *RollStartHandler {
	return &RollStartHandler{svc: svc, logger: logger, defaultDuration: defaultDuration}
}

// Handle processes the /roll command.
func (h *RollStartHandler) Handle(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	ctx := context.Background()
	if !requireAdmin(ctx, h.svc, h.logger, bot, message) {
		return nil
	}

	duration := h.defaultDuration
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			reply(bot, message.Chat.ID, "❌ The timeout must be a positive number of minutes.\n\n*Usage:* `/roll 2`")
			return nil
		}
		duration = n
	}

	session, err := h.svc.StartRoll(ctx, message.Chat.ID, duration)
	if err != nil {
		return fmt.Errorf("start roll: %w", err)
	}

	metrics.RollTransitions.WithLabelValues("start").Inc()
	reply(bot, message.Chat.ID, fmt.Sprintf(
		"🎲 *Roll started!* Step 1 is open.\n\nWrite a message to take part. Users silent for more than %d min drop out.",
		session.Duration))
	return nil
}

// ---------------------------------------------------------------------------
// RollSaveHandler – /saveroll
// ---------------------------------------------------------------------------

// RollSaveHandler handles the /saveroll command: it sweeps idle users,
// closes the open step and pauses the session.
type RollSaveHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewRollSaveHandler creates a new RollSaveHandler.
func NewRollSaveHandler(svc *service.Service, logger *logrus.Logger) *RollSaveHandler {
	return &RollSaveHandler{svc: svc, logger: logger}
}

// Handle processes the /saveroll command.
func (h *RollSaveHandler) Handle(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	ctx := context.Background()
	if !requireAdmin(ctx, h.svc, h.logger, bot, message) {
		return nil
	}

	res, err := h.svc.SaveStep(ctx, message.Chat.ID, time.Now())
	if err != nil {
		return fmt.Errorf("save roll step: %w", err)
	}

	switch res.Outcome {
	case service.RollNoSession:
		reply(bot, message.Chat.ID, "❌ No roll is running. Start one with `/roll`.")
	case service.RollNoOpenStep:
		reply(bot, message.Chat.ID, "❌ No step is open right now. Resume with `/resumeroll`.")
	case service.RollEmptyStep:
		reply(bot, message.Chat.ID, "❌ Nobody is active in this step — nothing to save.")
	case service.RollOK:
		metrics.RollTransitions.WithLabelValues("save").Inc()
		reply(bot, message.Chat.ID, fmt.Sprintf(
			"💾 *Step %d saved.* The roll is paused; `/resumeroll` opens the next step.", res.Step))
	}
	return nil
}

// ---------------------------------------------------------------------------
// RollBreakHandler – /breakroll
// ---------------------------------------------------------------------------

// RollBreakHandler handles the /breakroll command. Break time does not count
// against anyone's inactivity timer, and a locked roll stays locked through
// the break.
type RollBreakHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewRollBreakHandler creates a new RollBreakHandler.
func NewRollBreakHandler(svc *service.Service, logger *logrus.Logger) *RollBreakHandler {
	return &RollBreakHandler{svc: svc, logger: logger}
}

// Handle processes the /breakroll command.
func (h *RollBreakHandler) Handle(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	ctx := context.Background()
	if !requireAdmin(ctx, h.svc, h.logger, bot, message) {
		return nil
	}

	res, err := h.svc.StartBreak(ctx, message.Chat.ID, time.Now())
	if err != nil {
		return fmt.Errorf("start roll break: %w", err)
	}

	switch res.Outcome {
	case service.RollNoSession:
		reply(bot, message.Chat.ID, "❌ No roll is running. Start one with `/roll`.")
	case service.RollAlreadyOnBreak:
		reply(bot, message.Chat.ID, "ℹ️ The roll is already on a break.")
	case service.RollOK:
		metrics.RollTransitions.WithLabelValues("break").Inc()
		if res.Status == models.RollLockedBreak {
			reply(bot, message.Chat.ID, "☕ *Break!* The roll stays locked. Break time does not count against anyone.")
		} else {
			reply(bot, message.Chat.ID, "☕ *Break!* Come back with `/resumeroll` — break time does not count against anyone.")
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// RollResumeHandler – /resumeroll
// ---------------------------------------------------------------------------

// RollResumeHandler handles the /resumeroll command: it ends a break or
// opens the next step of a paused session.
type RollResumeHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewRollResumeHandler creates a new RollResumeHandler.
func NewRollResumeHandler(svc *service.Service, logger *logrus.Logger) *RollResumeHandler {
	return &RollResumeHandler{svc: svc, logger: logger}
}

// Handle processes the /resumeroll command.
func (h *RollResumeHandler) Handle(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	ctx := context.Background()
	if !requireAdmin(ctx, h.svc, h.logger, bot, message) {
		return nil
	}

	res, err := h.svc.Resume(ctx, message.Chat.ID, time.Now())
	if err != nil {
		return fmt.Errorf("resume roll: %w", err)
	}

	switch res.Outcome {
	case service.RollNoSession:
		reply(bot, message.Chat.ID, "❌ No roll is running. Start one with `/roll`.")
	case service.RollNotResumable:
		reply(bot, message.Chat.ID, "ℹ️ Nothing to resume — the roll is already running.")
	case service.RollOK:
		metrics.RollTransitions.WithLabelValues("resume").Inc()
		switch {
		case res.Step > 0:
			reply(bot, message.Chat.ID, fmt.Sprintf("▶️ *Step %d is open!* Write a message to take part.", res.Step))
		case res.Status == models.RollLocked:
			reply(bot, message.Chat.ID, "▶️ *Break is over.* The roll continues, still locked.")
		default:
			reply(bot, message.Chat.ID, "▶️ *Break is over.* The roll continues.")
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// RollLockHandler – /lockroll
// ---------------------------------------------------------------------------

// RollLockHandler handles the /lockroll command: no new users can enter
// while locked, but current participants keep counting.
type RollLockHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewRollLockHandler creates a new RollLockHandler.
func NewRollLockHandler(svc *service.Service, logger *logrus.Logger) *RollLockHandler {
	return &RollLockHandler{svc: svc, logger: logger}
}

// Handle processes the /lockroll command.
func (h *RollLockHandler) Handle(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	ctx := context.Background()
	if !requireAdmin(ctx, h.svc, h.logger, bot, message) {
		return nil
	}

	res, err := h.svc.Lock(ctx, message.Chat.ID)
	if err != nil {
		return fmt.Errorf("lock roll: %w", err)
	}

	switch res.Outcome {
	case service.RollNoSession:
		reply(bot, message.Chat.ID, "❌ No roll is running. Start one with `/roll`.")
	case service.RollAlreadyLocked:
		reply(bot, message.Chat.ID, "ℹ️ The roll is already locked.")
	case service.RollOK:
		metrics.RollTransitions.WithLabelValues("lock").Inc()
		reply(bot, message.Chat.ID, "🔒 *Roll locked.* No new entrants; current participants keep counting.")
	}
	return nil
}

// ---------------------------------------------------------------------------
// RollUnlockHandler – /unlockroll
// ---------------------------------------------------------------------------

// RollUnlockHandler handles the /unlockroll command.
type RollUnlockHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewRollUnlockHandler creates a new RollUnlockHandler.
func NewRollUnlockHandler(svc *service.Service, logger *logrus.Logger) *RollUnlockHandler {
	return &RollUnlockHandler{svc: svc, logger: logger}
}

// Handle processes the /unlockroll command.
func (h *RollUnlockHandler) Handle(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	ctx := context.Background()
	if !requireAdmin(ctx, h.svc, h.logger, bot, message) {
		return nil
	}

	res, err := h.svc.Unlock(ctx, message.Chat.ID)
	if err != nil {
		return fmt.Errorf("unlock roll: %w", err)
	}

	switch res.Outcome {
	case service.RollNoSession:
		reply(bot, message.Chat.ID, "❌ No roll is running. Start one with `/roll`.")
	case service.RollNotLocked:
		reply(bot, message.Chat.ID, "ℹ️ The roll is not locked.")
	case service.RollOK:
		metrics.RollTransitions.WithLabelValues("unlock").Inc()
		if res.Status == models.RollBreak {
			reply(bot, message.Chat.ID, "🔓 *Roll unlocked.* The break continues.")
		} else {
			reply(bot, message.Chat.ID, "🔓 *Roll unlocked.* New participants can enter again.")
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// RollStopHandler – /stoproll
// ---------------------------------------------------------------------------

// RollStopHandler handles the /stoproll command: it ends the session and
// posts the final roster.
type RollStopHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewRollStopHandler creates a new RollStopHandler.
func NewRollStopHandler(svc *service.Service, logger *logrus.Logger) *RollStopHandler {
	return &RollStopHandler{svc: svc, logger: logger}
}

// Handle processes the /stoproll command.
func (h *RollStopHandler) Handle(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	ctx := context.Background()
	if !requireAdmin(ctx, h.svc, h.logger, bot, message) {
		return nil
	}

	res, err := h.svc.StopRoll(ctx, message.Chat.ID, time.Now())
	if err != nil {
		return fmt.Errorf("stop roll: %w", err)
	}

	if res.Outcome == service.RollNoSession {
		reply(bot, message.Chat.ID, "❌ No roll is running.")
		return nil
	}

	metrics.RollTransitions.WithLabelValues("stop").Inc()
	text := "🏁 *Roll finished!*"
	if roster := formatRollSteps(res.Steps); roster != "" {
		text += "\n\n" + roster
	} else {
		text += "\n\nNobody took part this time."
	}
	reply(bot, message.Chat.ID, text)
	return nil
}

// ---------------------------------------------------------------------------
// RollListHandler – /rolllist
// ---------------------------------------------------------------------------

// RollListHandler handles the /rolllist command to show the current roster.
// Unlike the transitions, anyone in the group may call it.
type RollListHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewRollListHandler creates a new RollListHandler.
func NewRollListHandler(svc *service.Service, logger *logrus.Logger) *RollListHandler {
	return &RollListHandler{svc: svc, logger: logger}
}

// Handle processes the /rolllist command.
func (h *RollListHandler) Handle(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	if !isGroupChat(message) {
		reply(bot, message.Chat.ID, "❌ This command only works in groups.")
		return nil
	}

	ctx := context.Background()
	res, err := h.svc.RollStatus(ctx, message.Chat.ID, time.Now())
	if err != nil {
		return fmt.Errorf("get roll status: %w", err)
	}

	if res.Outcome == service.RollNoSession {
		reply(bot, message.Chat.ID, "❌ No roll is running. Start one with `/roll`.")
		return nil
	}

	text := fmt.Sprintf("🎲 *Roll status:* %s", rollStatusLabel(res.Status))
	if roster := formatRollSteps(res.Steps); roster != "" {
		text += "\n\n" + roster
	} else {
		text += "\n\nNobody has taken part yet."
	}
	reply(bot, message.Chat.ID, text)
	return nil
}

// formatRollSteps renders every step with its users, most active first.
func formatRollSteps(steps []*models.RollStep) string {
	var b strings.Builder
	for _, step := range steps {
		if len(step.Users) == 0 {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "*Step %d:*\n", step.StepNumber)
		for i, u := range step.Users {
			fmt.Fprintf(&b, "%d. %s — %d\n", i+1, u.Name, u.MessageCount)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func rollStatusLabel(status models.RollStatus) string {
	switch status {
	case models.RollActive:
		return "active"
	case models.RollPaused:
		return "paused"
	case models.RollBreak:
		return "on a break"
	case models.RollLocked:
		return "locked"
	case models.RollLockedBreak:
		return "locked, on a break"
	default:
		return "stopped"
	}
}
