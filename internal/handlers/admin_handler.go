package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/ad/go-telegram-onboarding/internal/fsm"
	"github.com/ad/go-telegram-onboarding/internal/services"
	tgmodels "github.com/go-telegram/bot/models"
)

const callbackAdminStats = "admin:stats"

type AdminHandler struct {
	machine    *services.StepMachine
	msgManager *services.MessageManager
	adminID    int64
	now        func() time.Time
}

func NewAdminHandler(machine *services.StepMachine, msgManager *services.MessageManager, adminID int64) *AdminHandler {
	return &AdminHandler{
		machine:    machine,
		msgManager: msgManager,
		adminID:    adminID,
		now:        time.Now,
	}
}

func (h *AdminHandler) isAdmin(userID int64) bool {
	return h.adminID != 0 && userID == h.adminID
}

// HandleCommand reports whether msg was an admin command and has been
// answered. Everything else falls through to the onboarding flow.
func (h *AdminHandler) HandleCommand(ctx context.Context, msg *tgmodels.Message) bool {
	if msg.From == nil || !h.isAdmin(msg.From.ID) {
		return false
	}

	fields := strings.Fields(msg.Text)
	if len(fields) == 0 {
		return false
	}

	switch commandOf(fields[0]) {
	case "/stats":
		h.showStats(ctx, msg.Chat.ID, 0)
	case "/user":
		h.showUser(ctx, msg.Chat.ID, fields[1:])
	case "/resetuser":
		h.resetUser(ctx, msg.Chat.ID, fields[1:])
	default:
		return false
	}
	return true
}

func (h *AdminHandler) HandleCallback(ctx context.Context, callback *tgmodels.CallbackQuery) bool {
	if !h.isAdmin(callback.From.ID) || callback.Data != callbackAdminStats {
		return false
	}

	h.msgManager.AnswerCallback(ctx, callback.ID, "", false)

	chatID := callback.From.ID
	messageID := 0
	if msg := callback.Message.Message; msg != nil {
		chatID = msg.Chat.ID
		messageID = msg.ID
	}
	h.showStats(ctx, chatID, messageID)
	return true
}

func (h *AdminHandler) showStats(ctx context.Context, chatID int64, messageID int) {
	stats, err := h.machine.Stats(ctx)
	if err != nil {
		log.Printf("[ADMIN] Stats error: %v", err)
		h.msgManager.SendHTML(ctx, chatID, "⚠️ Could not load statistics", nil)
		return
	}

	keyboard := &tgmodels.InlineKeyboardMarkup{
		InlineKeyboard: [][]tgmodels.InlineKeyboardButton{
			{{Text: "🔄 Refresh", CallbackData: callbackAdminStats}},
		},
	}
	text := services.FormatBold("📊 Onboarding statistics") + "\n\n" +
		services.Escape(services.FormatStats(stats)) + "\n\n" +
		services.FormatItalic("Updated "+services.FormatDateTime(h.now()))
	h.msgManager.EditOrSend(ctx, chatID, messageID, text, keyboard)
}

func (h *AdminHandler) showUser(ctx context.Context, chatID int64, args []string) {
	userID, ok := h.parseUserID(ctx, chatID, "/user", args)
	if !ok {
		return
	}

	progress, err := h.machine.Load(ctx, userID)
	if errors.Is(err, services.ErrNotFound) {
		h.msgManager.SendHTML(ctx, chatID, fmt.Sprintf("❌ User %d has not started onboarding", userID), nil)
		return
	}
	if err != nil {
		log.Printf("[ADMIN] Load user %d error: %v", userID, err)
		h.msgManager.SendHTML(ctx, chatID, "⚠️ Could not load user progress", nil)
		return
	}

	report := services.FormatProgressReport(progress, h.now())
	h.msgManager.SendHTML(ctx, chatID, "<pre>"+services.Escape(report)+"</pre>", nil)
}

func (h *AdminHandler) resetUser(ctx context.Context, chatID int64, args []string) {
	userID, ok := h.parseUserID(ctx, chatID, "/resetuser", args)
	if !ok {
		return
	}

	progress, err := h.machine.Load(ctx, userID)
	if err == nil {
		_, err = h.machine.HandleButton(ctx, progress, fsm.ActionReset)
	}
	switch {
	case errors.Is(err, services.ErrNotFound):
		h.msgManager.SendHTML(ctx, chatID, fmt.Sprintf("❌ User %d has not started onboarding", userID), nil)
	case err != nil:
		log.Printf("[ADMIN] Reset user %d error: %v", userID, err)
		h.msgManager.SendHTML(ctx, chatID, "⚠️ Could not reset user progress", nil)
	default:
		log.Printf("[ADMIN] Reset progress of user %d", userID)
		h.msgManager.SendHTML(ctx, chatID, fmt.Sprintf("🔄 Progress of user %d has been reset", userID), nil)
	}
}

func (h *AdminHandler) parseUserID(ctx context.Context, chatID int64, command string, args []string) (int64, bool) {
	if len(args) != 1 {
		h.msgManager.SendHTML(ctx, chatID, fmt.Sprintf("Usage: %s &lt;user_id&gt;", command), nil)
		return 0, false
	}
	userID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || userID <= 0 {
		h.msgManager.SendHTML(ctx, chatID, "❌ Invalid user id: "+services.Escape(args[0]), nil)
		return 0, false
	}
	return userID, true
}
