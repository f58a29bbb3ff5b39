package telegram

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Semhkaramn/msharleyrandy/internal/metrics"
)

// Router handles message routing and command parsing
type Router struct {
	logger    *logrus.Logger
	handlers  map[string]CommandHandler
	callbacks map[string]CallbackHandler
	sink      MessageSink
}

// CommandHandler defines the interface for command handlers
type CommandHandler interface {
	Handle(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error
}

// CallbackHandler defines the interface for callback-query handlers. data
// is the callback payload with the registered prefix stripped.
type CallbackHandler interface {
	HandleCallback(bot *tgbotapi.BotAPI, query *tgbotapi.CallbackQuery, data string) error
}

// MessageSink receives every non-command group message. This is where the
// counter, roll tracking and post-publish raffle tracking pipelines hang.
type MessageSink interface {
	HandleGroupMessage(bot *tgbotapi.BotAPI, message *tgbotapi.Message)
}

// NewRouter creates a new message router
func NewRouter(logger *logrus.Logger) *Router {
	return &Router{
		logger:    logger,
		handlers:  make(map[string]CommandHandler),
		callbacks: make(map[string]CallbackHandler),
	}
}

// RegisterCommand registers a command handler
func (r *Router) RegisterCommand(command string, handler CommandHandler) {
	r.handlers[command] = handler
	r.logger.Debugf("Registered command: %s", command)
}

// RegisterCallback registers a callback handler for a data prefix
func (r *Router) RegisterCallback(prefix string, handler CallbackHandler) {
	r.callbacks[prefix] = handler
	r.logger.Debugf("Registered callback prefix: %s", prefix)
}

// OnGroupMessage sets the non-command message sink.
func (r *Router) OnGroupMessage(sink MessageSink) {
	r.sink = sink
}

// HandleMessage handles incoming messages
func (r *Router) HandleMessage(bot *tgbotapi.BotAPI, message *tgbotapi.Message) {
	if message.From == nil {
		return
	}

	if !message.IsCommand() {
		// Plain chatter feeds the engagement pipelines, but only in groups.
		if r.sink != nil && message.Chat != nil && (message.Chat.IsGroup() || message.Chat.IsSuperGroup()) {
			r.sink.HandleGroupMessage(bot, message)
		}
		return
	}

	command := message.Command()
	args := strings.Fields(message.CommandArguments())

	handler, exists := r.handlers[command]
	if !exists {
		r.logger.WithFields(logrus.Fields{
			"command": command,
			"chat_id": message.Chat.ID,
			"user_id": message.From.ID,
		}).Debug("Unknown command")
		return
	}

	r.logger.WithFields(logrus.Fields{
		"command": command,
		"chat_id": message.Chat.ID,
		"user_id": message.From.ID,
	}).Info("Handling command")

	if err := handler.Handle(bot, message, args); err != nil {
		metrics.CommandErrors.WithLabelValues(command).Inc()
		r.logger.WithFields(logrus.Fields{
			"command": command,
			"chat_id": message.Chat.ID,
			"user_id": message.From.ID,
			"error":   err,
		}).Error("Command handler failed")

		errorMsg := tgbotapi.NewMessage(message.Chat.ID, "❌ Something went wrong. Please try again.")
		bot.Send(errorMsg)
	}
}

// HandleCallbackQuery handles callback queries from inline keyboards
func (r *Router) HandleCallbackQuery(bot *tgbotapi.BotAPI, query *tgbotapi.CallbackQuery) {
	r.logger.WithFields(logrus.Fields{
		"callback_id": query.ID,
		"user_id":     query.From.ID,
		"data":        query.Data,
	}).Debug("Received callback query")

	for prefix, handler := range r.callbacks {
		if strings.HasPrefix(query.Data, prefix) {
			data := strings.TrimPrefix(query.Data, prefix)
			if err := handler.HandleCallback(bot, query, data); err != nil {
				r.logger.WithFields(logrus.Fields{
					"data":    query.Data,
					"user_id": query.From.ID,
					"error":   err,
				}).Error("Callback handler failed")
			}
			return
		}
	}

	// Unrouted callbacks still get answered to clear the loading state.
	callback := tgbotapi.NewCallback(query.ID, "")
	bot.Request(callback)
}
