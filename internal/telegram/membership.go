package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Semhkaramn/msharleyrandy/internal/service"
)

// MembershipOracle resolves chat membership through the Telegram API. It
// satisfies service.MembershipOracle; callers treat errors as not verified.
type MembershipOracle struct {
	api *tgbotapi.BotAPI
}

// NewMembershipOracle wraps the bot client as a membership oracle.
func NewMembershipOracle(bot *Bot) *MembershipOracle {
	return &MembershipOracle{api: bot.api}
}

// GetMembership returns the user's status in the chat.
func (o *MembershipOracle) GetMembership(ctx context.Context, chatID, userID int64) (service.MembershipStatus, error) {
	member, err := o.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
			ChatID: chatID,
			UserID: userID,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to get chat member (chat=%d user=%d): %w", chatID, userID, err)
	}
	return service.MembershipStatus(member.Status), nil
}
