package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"runtime/debug"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const maxAdminMessageLength = 4000

// ErrorManager reports panics and undeliverable messages to the admin chat.
// A zero admin id disables reporting.
type ErrorManager struct {
	sender  MessageSender
	adminID int64
}

func NewErrorManager(sender MessageSender, adminID int64) *ErrorManager {
	return &ErrorManager{
		sender:  sender,
		adminID: adminID,
	}
}

func (e *ErrorManager) Enabled() bool {
	return e != nil && e.sender != nil && e.adminID != 0
}

func (e *ErrorManager) NotifyAdmin(ctx context.Context, panicValue interface{}, update *models.Update, requestID string) {
	msg := fmt.Sprintf("🚨 Panic in handler\nUser: %s\nRequest: %s\nError: %v\n\nStack trace:\n%s",
		describeSender(update), requestID, panicValue, string(debug.Stack()))
	e.send(ctx, msg)
}

func (e *ErrorManager) NotifyAdminWithCurl(ctx context.Context, chatID int64, method string, request interface{}, err error) {
	curl := e.buildCurlCommand(method, request)

	msg := fmt.Sprintf("❌ Failed to deliver message\nUser: [%d]\nError: %v\n\nCurl:\n%s",
		chatID, err, curl)
	e.send(ctx, msg)
}

func (e *ErrorManager) send(ctx context.Context, msg string) {
	if !e.Enabled() {
		log.Printf("[ERROR] %s", msg)
		return
	}

	if len(msg) > maxAdminMessageLength {
		msg = msg[:maxAdminMessageLength] + "\n... (truncated)"
	}

	_, _ = e.sender.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: e.adminID,
		Text:   msg,
	})
}

func (e *ErrorManager) buildCurlCommand(method string, request interface{}) string {
	jsonData, err := json.MarshalIndent(request, "", "  ")
	if err != nil {
		return fmt.Sprintf("# Failed to serialize request: %v", err)
	}

	return fmt.Sprintf("curl -X POST 'https://api.telegram.org/bot[BOT_TOKEN]/%s' \\\n  -H 'Content-Type: application/json' \\\n  -d '%s'",
		method, string(jsonData))
}

func describeSender(update *models.Update) string {
	if update == nil {
		return "unknown"
	}

	var user *models.User
	switch {
	case update.Message != nil && update.Message.From != nil:
		user = update.Message.From
	case update.CallbackQuery != nil && update.CallbackQuery.From.ID != 0:
		user = &update.CallbackQuery.From
	default:
		return "unknown"
	}

	info := fmt.Sprintf("[%d]", user.ID)
	if user.FirstName != "" {
		info = user.FirstName + " " + info
	}
	if user.Username != "" {
		info = info + " @" + user.Username
	}
	return info
}
