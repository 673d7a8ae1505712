package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/ad/go-telegram-onboarding/internal/fsm"
	"github.com/ad/go-telegram-onboarding/internal/models"
	"github.com/ad/go-telegram-onboarding/internal/services"
	"github.com/ad/go-telegram-onboarding/internal/validation"
	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	"github.com/google/uuid"
)

const DefaultEventTimeout = 15 * time.Second

type requestIDKey struct{}

// WithRequestID tags ctx with the correlation id of the update being handled.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

type Settings struct {
	AdminID      int64
	CustomerCare string
	Links        Links
	EventTimeout time.Duration
}

type BotHandler struct {
	machine      *services.StepMachine
	msgManager   *services.MessageManager
	errorManager *services.ErrorManager
	adminHandler *AdminHandler
	channel      string
	customerCare string
	links        Links
	eventTimeout time.Duration
}

func NewBotHandler(
	machine *services.StepMachine,
	msgManager *services.MessageManager,
	errorManager *services.ErrorManager,
	settings Settings,
) *BotHandler {
	if settings.EventTimeout <= 0 {
		settings.EventTimeout = DefaultEventTimeout
	}

	return &BotHandler{
		machine:      machine,
		msgManager:   msgManager,
		errorManager: errorManager,
		adminHandler: NewAdminHandler(machine, msgManager, settings.AdminID),
		channel:      machine.Channel(),
		customerCare: settings.CustomerCare,
		links:        settings.Links,
		eventTimeout: settings.EventTimeout,
	}
}

// HandleUpdate is registered as the bot's catch-all handler. Each update is
// processed under its own deadline.
func (h *BotHandler) HandleUpdate(ctx context.Context, b *bot.Bot, update *tgmodels.Update) {
	ctx, cancel := context.WithTimeout(ctx, h.eventTimeout)
	defer cancel()
	defer h.recoverPanic(ctx, update)

	if update.Message != nil {
		h.handleMessage(ctx, update.Message)
	} else if update.CallbackQuery != nil {
		h.handleCallback(ctx, update.CallbackQuery)
	}
}

func (h *BotHandler) recoverPanic(ctx context.Context, update *tgmodels.Update) {
	if r := recover(); r != nil {
		requestID := RequestID(ctx)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		log.Printf("[PANIC] request=%s: %v", requestID, r)
		h.errorManager.NotifyAdmin(context.WithoutCancel(ctx), r, update, requestID)
	}
}

func (h *BotHandler) handleMessage(ctx context.Context, msg *tgmodels.Message) {
	if msg.From == nil {
		return
	}

	if h.adminHandler.HandleCommand(ctx, msg) {
		return
	}

	switch commandOf(msg.Text) {
	case "/start":
		h.handleStart(ctx, msg)
		return
	case "/help":
		h.msgManager.SendHTML(ctx, msg.Chat.ID, h.helpText(), h.helpKeyboard())
		return
	case "/status":
		h.handleStatus(ctx, msg)
		return
	case "/reset":
		h.handleReset(ctx, msg)
		return
	}

	if len(msg.Photo) > 0 {
		photo := msg.Photo[len(msg.Photo)-1]
		h.handleScreenshot(ctx, msg, photo.FileID, "photo.jpg", int64(photo.FileSize))
		return
	}

	if msg.Document != nil {
		h.handleScreenshot(ctx, msg, msg.Document.FileID, msg.Document.FileName, int64(msg.Document.FileSize))
		return
	}

	if msg.Text == "" {
		return
	}

	h.handleText(ctx, msg)
}

func (h *BotHandler) handleStart(ctx context.Context, msg *tgmodels.Message) {
	user := identityOf(msg.From)
	chatID := msg.Chat.ID

	progress, created, err := h.machine.Start(ctx, user)
	if err != nil {
		h.reportError(ctx, chatID, err)
		return
	}

	switch {
	case created:
		h.msgManager.SendHTML(ctx, chatID, h.welcomeText(user.Name()), nil)
		h.sendStepCard(ctx, chatID, progress.CurrentStep)
	case progress.IsComplete():
		text := fmt.Sprintf("Welcome back %s! 🎉\n\n✅ You have already completed all steps!%s",
			services.Escape(user.Name()), h.customerCareLine("\n\nContact: "))
		h.msgManager.SendHTML(ctx, chatID, text, h.completedKeyboard())
	default:
		text := fmt.Sprintf("Welcome back %s! 👋\n\nYou're on step %d of %d.",
			services.Escape(user.Name()), progress.CurrentStep, fsm.TotalSteps)
		h.msgManager.SendHTML(ctx, chatID, text, nil)
		h.sendStepCard(ctx, chatID, progress.CurrentStep)
	}
}

func (h *BotHandler) handleStatus(ctx context.Context, msg *tgmodels.Message) {
	chatID := msg.Chat.ID

	progress, err := h.machine.Load(ctx, msg.From.ID)
	if err != nil {
		h.reportError(ctx, chatID, err)
		return
	}

	h.msgManager.SendHTML(ctx, chatID, h.statusText(progress, h.telegramStatus(ctx, progress)), h.statusKeyboard())
}

// telegramStatus re-checks channel membership for users who already passed
// the channel step, since they may have left since.
func (h *BotHandler) telegramStatus(ctx context.Context, progress *models.UserProgress) string {
	if !progress.IsStepCompleted(fsm.StepJoinChannel) {
		return "❌ Not Joined"
	}

	isMember, err := h.machine.CheckMembership(ctx, progress.UserID)
	switch {
	case err != nil:
		return "⚠️ Could not check right now"
	case isMember:
		return "✅ Verified Member"
	default:
		return "❌ Not Joined"
	}
}

func (h *BotHandler) handleReset(ctx context.Context, msg *tgmodels.Message) {
	chatID := msg.Chat.ID

	progress, err := h.machine.Load(ctx, msg.From.ID)
	if errors.Is(err, services.ErrNotFound) {
		h.msgManager.SendHTML(ctx, chatID, "❌ No user data found to reset. Use /start to begin.", nil)
		return
	}
	if err != nil {
		h.reportError(ctx, chatID, err)
		return
	}

	if _, err := h.machine.HandleButton(ctx, progress, fsm.ActionReset); err != nil {
		h.reportError(ctx, chatID, err)
		return
	}

	h.msgManager.SendHTML(ctx, chatID,
		"🔄 "+services.FormatBold("Your progress has been completely reset!")+"\n\nUse /start to begin the process again.", nil)
}

func (h *BotHandler) handleText(ctx context.Context, msg *tgmodels.Message) {
	chatID := msg.Chat.ID

	progress, err := h.machine.Load(ctx, msg.From.ID)
	if err != nil {
		h.reportError(ctx, chatID, err)
		return
	}

	outcome, err := h.machine.HandleText(ctx, progress, msg.Text)
	if err != nil {
		h.reportError(ctx, chatID, err)
		return
	}

	switch outcome.Kind {
	case services.OutcomeAdvanced:
		h.msgManager.SendHTML(ctx, chatID, h.acceptedText(outcome), nil)
		h.sendStepCard(ctx, chatID, outcome.Progress.CurrentStep)
	case services.OutcomeRejected:
		h.msgManager.SendHTML(ctx, chatID, h.rejectionText(outcome.Step, outcome.Validation.Message), nil)
	case services.OutcomeNotVerified:
		h.msgManager.SendHTML(ctx, chatID, h.notVerifiedText(outcome.Step, validation.NormalizeHandle(msg.Text)), nil)
	case services.OutcomeAlreadyComplete:
		h.msgManager.SendHTML(ctx, chatID, h.completedSummaryText(outcome.Progress), h.completedKeyboard())
	case services.OutcomeWrongStep:
		h.sendStepCard(ctx, chatID, outcome.Progress.CurrentStep)
	default:
		h.msgManager.SendHTML(ctx, chatID, h.awaitingButtonText(outcome.Progress.CurrentStep), nil)
	}
}

func (h *BotHandler) acceptedText(outcome *services.Outcome) string {
	p := outcome.Progress
	switch outcome.Step {
	case fsm.StepFollowTwitter:
		return fmt.Sprintf("✅ %s\n\nUsername: %s\n\nMoving to next step...",
			services.FormatBold("Twitter Verified!"), services.FormatMention(p.SocialHandle(models.PlatformTwitter)))
	case fsm.StepFollowInsta:
		return fmt.Sprintf("✅ %s\n\nUsername: %s\n\nMoving to next step...",
			services.FormatBold("Instagram Verified!"), services.FormatMention(p.SocialHandle(models.PlatformInstagram)))
	case fsm.StepWalletAddress:
		return fmt.Sprintf("✅ %s\n\nAddress: %s\n\nMoving to final step...",
			services.FormatBold("BEP20 Address Saved!"), services.FormatCode(p.WalletAddress))
	default:
		return "✅ Done!"
	}
}

func (h *BotHandler) handleScreenshot(ctx context.Context, msg *tgmodels.Message, fileID, fileName string, size int64) {
	chatID := msg.Chat.ID

	progress, err := h.machine.Load(ctx, msg.From.ID)
	if err != nil {
		h.reportError(ctx, chatID, err)
		return
	}

	outcome, err := h.machine.HandleScreenshot(ctx, progress, fileID, fileName, size)
	if err != nil {
		h.reportError(ctx, chatID, err)
		return
	}

	if outcome.Kind == services.OutcomeRejected {
		h.msgManager.SendHTML(ctx, chatID, "❌ "+services.Escape(outcome.Validation.Message), nil)
		return
	}
	h.msgManager.SendHTML(ctx, chatID, "📸 Screenshot received, thank you!", nil)
}

func (h *BotHandler) handleCallback(ctx context.Context, callback *tgmodels.CallbackQuery) {
	if h.adminHandler.HandleCallback(ctx, callback) {
		return
	}

	h.msgManager.AnswerCallback(ctx, callback.ID, "", false)

	chatID := callback.From.ID
	messageID := 0
	if msg := callback.Message.Message; msg != nil {
		chatID = msg.Chat.ID
		messageID = msg.ID
	}
	action := callback.Data

	switch action {
	case fsm.ActionTwitterInfo, fsm.ActionInstagramInfo, fsm.ActionAddressInfo, fsm.ActionHelp:
		h.msgManager.SendHTML(ctx, chatID, h.infoText(action), nil)
		return
	}

	progress, err := h.machine.Load(ctx, callback.From.ID)
	if errors.Is(err, services.ErrNotFound) {
		h.msgManager.EditOrSend(ctx, chatID, messageID, "❌ User not found. Please use /start command.", nil)
		return
	}
	if err != nil {
		h.reportError(ctx, chatID, err)
		return
	}

	if action == fsm.ActionShowStatus {
		h.msgManager.EditOrSend(ctx, chatID, messageID, h.statusText(progress, h.telegramStatus(ctx, progress)), h.statusKeyboard())
		return
	}

	outcome, err := h.machine.HandleButton(ctx, progress, action)
	if err != nil {
		h.reportError(ctx, chatID, err)
		return
	}

	switch outcome.Kind {
	case services.OutcomeAdvanced:
		h.renderAdvancedButton(ctx, chatID, messageID, outcome)
	case services.OutcomeNotMember:
		h.msgManager.EditOrSend(ctx, chatID, messageID, h.notMemberText(outcome.Unavailable), nil)
		h.sendStepCard(ctx, chatID, fsm.StepJoinChannel)
	case services.OutcomeWrongStep:
		h.msgManager.EditOrSend(ctx, chatID, messageID, h.wrongStepText(outcome.Step), nil)
	case services.OutcomeAlreadyComplete:
		h.msgManager.EditOrSend(ctx, chatID, messageID, "✅ You have already completed all steps!", h.completedKeyboard())
	case services.OutcomeReset:
		h.msgManager.EditOrSend(ctx, chatID, messageID, "🔄 Process restarted! Let's begin again.", nil)
		h.sendStepCard(ctx, chatID, outcome.Progress.CurrentStep)
	default:
		log.Printf("[CALLBACK] Unknown action %q from user %d", action, callback.From.ID)
	}
}

func (h *BotHandler) renderAdvancedButton(ctx context.Context, chatID int64, messageID int, outcome *services.Outcome) {
	switch outcome.Step {
	case fsm.StepDownloadApp:
		h.msgManager.EditOrSend(ctx, chatID, messageID, "✅ Great! App download confirmed.", nil)
		h.sendStepCard(ctx, chatID, outcome.Progress.CurrentStep)
	case fsm.StepJoinChannel:
		h.msgManager.EditOrSend(ctx, chatID, messageID,
			"✅ "+services.FormatBold("Verified!")+" You are a member of our Telegram channel.\n\nMoving to next step...", nil)
		h.sendStepCard(ctx, chatID, outcome.Progress.CurrentStep)
	case fsm.StepFinalConfirm:
		h.msgManager.EditOrSend(ctx, chatID, messageID, h.completionText(outcome.Progress), h.completedKeyboard())
	default:
		h.sendStepCard(ctx, chatID, outcome.Progress.CurrentStep)
	}
}

func (h *BotHandler) sendStepCard(ctx context.Context, chatID int64, step int) {
	h.msgManager.SendHTML(ctx, chatID, h.stepText(step), h.stepKeyboard(step))
}

// reportError turns a step machine error into a user-facing reply.
func (h *BotHandler) reportError(ctx context.Context, chatID int64, err error) {
	if errors.Is(err, services.ErrNotFound) {
		h.msgManager.SendHTML(ctx, chatID, "❌ Please use /start command first.", nil)
		return
	}

	log.Printf("[ERROR] request=%s chat=%d: %v", RequestID(ctx), chatID, err)
	h.sendError(ctx, chatID, "Something went wrong on our side. Please try again in a moment.")
}

func (h *BotHandler) sendError(ctx context.Context, chatID int64, text string) {
	h.msgManager.SendHTML(ctx, chatID, "⚠️ "+services.Escape(text), nil)
}

// commandOf returns the bot command a message starts with, without any
// @botname suffix, or "" for plain text.
func commandOf(text string) string {
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	command, _, _ := strings.Cut(fields[0], "@")
	return strings.ToLower(command)
}

func identityOf(user *tgmodels.User) models.Identity {
	return models.Identity{
		ID:        user.ID,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Username:  user.Username,
	}
}
