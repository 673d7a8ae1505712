package services

import (
	"context"
	"fmt"

	"github.com/ad/go-telegram-onboarding/internal/models"
	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
)

type ChannelVerifier struct {
	bot *bot.Bot
}

func NewChannelVerifier(b *bot.Bot) *ChannelVerifier {
	return &ChannelVerifier{bot: b}
}

// CheckMembership looks the user up in a channel given by @username or
// numeric chat id.
func (v *ChannelVerifier) CheckMembership(ctx context.Context, userID int64, channel string) (models.MembershipStatus, error) {
	member, err := v.bot.GetChatMember(ctx, &bot.GetChatMemberParams{
		ChatID: channel,
		UserID: userID,
	})
	if err != nil {
		return models.MembershipUnknown, fmt.Errorf("failed to get chat member: %w", err)
	}
	return membershipStatus(member.Type), nil
}

func membershipStatus(status tgmodels.ChatMemberType) models.MembershipStatus {
	switch status {
	case tgmodels.ChatMemberTypeOwner, tgmodels.ChatMemberTypeAdministrator, tgmodels.ChatMemberTypeMember:
		return models.MembershipMember
	case tgmodels.ChatMemberTypeLeft, tgmodels.ChatMemberTypeBanned, tgmodels.ChatMemberTypeRestricted:
		return models.MembershipNotMember
	default:
		return models.MembershipUnknown
	}
}
