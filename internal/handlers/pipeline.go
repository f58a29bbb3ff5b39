package handlers

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Semhkaramn/msharleyrandy/internal/metrics"
	"github.com/Semhkaramn/msharleyrandy/internal/service"
)

// MessagePipeline receives every plain group message and feeds the three
// tracking stages: the window counters, the roll session, and post-publish
// raffle counting. Stages are independent; a failure in one never blocks
// the others.
type MessagePipeline struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewMessagePipeline creates a new MessagePipeline.
func NewMessagePipeline(svc *service.Service, logger *logrus.Logger) *MessagePipeline {
	return &MessagePipeline{svc: svc, logger: logger}
}

// HandleGroupMessage processes one non-command group message.
func (p *MessagePipeline) HandleGroupMessage(bot *tgbotapi.BotAPI, message *tgbotapi.Message) {
	from := message.From
	if from.IsBot || service.IsSystemAccount(from.ID) {
		return
	}

	ctx := context.Background()
	groupID := message.Chat.ID
	now := message.Time()

	counter, err := p.svc.RecordMessage(ctx, groupID, from.ID, from.UserName, from.FirstName, from.LastName, now)
	if err != nil {
		p.logger.WithFields(logrus.Fields{
			"group_id": groupID,
			"user_id":  from.ID,
			"error":    err,
		}).Error("Failed to record message")
	} else if counter != nil {
		metrics.MessagesTracked.Inc()
	}

	if err := p.svc.TrackRollMessage(ctx, groupID, from.ID, from.UserName, from.FirstName, now); err != nil {
		p.logger.WithFields(logrus.Fields{
			"group_id": groupID,
			"user_id":  from.ID,
			"error":    err,
		}).Error("Failed to track roll message")
	}

	if err := p.svc.TrackPostPublish(ctx, groupID, from.ID, from.UserName, from.FirstName); err != nil {
		p.logger.WithFields(logrus.Fields{
			"group_id": groupID,
			"user_id":  from.ID,
			"error":    err,
		}).Error("Failed to track post-publish message")
	}
}
