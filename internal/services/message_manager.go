package services

import (
	"context"
	"errors"
	"log"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
)

// MessageSender is the subset of *bot.Bot the bot needs to talk to users.
type MessageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*tgmodels.Message, error)
	EditMessageText(ctx context.Context, params *bot.EditMessageTextParams) (*tgmodels.Message, error)
	AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) (bool, error)
}

var ErrSendFailed = errors.New("failed to send message after retry")

type MessageManager struct {
	sender   MessageSender
	errMgr   *ErrorManager
	maxRetry int
}

func NewMessageManager(sender MessageSender, errMgr *ErrorManager) *MessageManager {
	return &MessageManager{
		sender:   sender,
		errMgr:   errMgr,
		maxRetry: 2,
	}
}

func (m *MessageManager) SendWithRetry(ctx context.Context, params *bot.SendMessageParams) (*tgmodels.Message, error) {
	var lastErr error
	for attempt := 0; attempt < m.maxRetry; attempt++ {
		msg, err := m.sender.SendMessage(ctx, params)
		if err == nil {
			return msg, nil
		}
		lastErr = err
	}
	m.errMgr.NotifyAdminWithCurl(ctx, chatIDOf(params.ChatID), "sendMessage", params, lastErr)
	return nil, errors.Join(ErrSendFailed, lastErr)
}

// SendHTML sends an HTML formatted message with an optional inline keyboard.
func (m *MessageManager) SendHTML(ctx context.Context, chatID int64, text string, keyboard *tgmodels.InlineKeyboardMarkup) (*tgmodels.Message, error) {
	params := &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: tgmodels.ParseModeHTML,
	}
	if keyboard != nil {
		params.ReplyMarkup = keyboard
	}
	return m.SendWithRetry(ctx, params)
}

// EditOrSend replaces the text of a message the bot sent earlier. When the
// edit is rejected (message too old, deleted, unchanged) a new message is sent.
func (m *MessageManager) EditOrSend(ctx context.Context, chatID int64, messageID int, text string, keyboard *tgmodels.InlineKeyboardMarkup) error {
	if messageID != 0 {
		params := &bot.EditMessageTextParams{
			ChatID:    chatID,
			MessageID: messageID,
			Text:      text,
			ParseMode: tgmodels.ParseModeHTML,
		}
		if keyboard != nil {
			params.ReplyMarkup = keyboard
		}
		_, err := m.sender.EditMessageText(ctx, params)
		if err == nil {
			return nil
		}
		log.Printf("[MSG] Edit of message %d in chat %d failed, sending new: %v", messageID, chatID, err)
	}

	_, err := m.SendHTML(ctx, chatID, text, keyboard)
	return err
}

func (m *MessageManager) AnswerCallback(ctx context.Context, callbackID, text string, showAlert bool) {
	_, err := m.sender.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
		ShowAlert:       showAlert,
	})
	if err != nil {
		log.Printf("[CALLBACK] Failed to answer callback %s: %v", callbackID, err)
	}
}

func chatIDOf(chatID interface{}) int64 {
	switch v := chatID.(type) {
	case int64:
		return v
	case int:
		return int64(v)
	default:
		return 0
	}
}
