package handlers

import (
	"fmt"
	"strings"

	"github.com/ad/go-telegram-onboarding/internal/fsm"
	"github.com/ad/go-telegram-onboarding/internal/models"
	"github.com/ad/go-telegram-onboarding/internal/services"
	tgmodels "github.com/go-telegram/bot/models"
)

const exampleAddress = "0x742d35Cc6634C0532925a3b8D4B29E3f5fCffd52"

type Links struct {
	AppDownload string
	Twitter     string
	Instagram   string
	Channel     string
	Website     string
}

func (h *BotHandler) welcomeText(name string) string {
	return fmt.Sprintf("Welcome %s! 🎉\n\n", services.Escape(name)) +
		"🚀 Welcome to Minati Vault Bot!\n\n" +
		"To complete the process, follow these steps:\n" +
		"1️⃣ Download vault and review\n" +
		"2️⃣ Follow us on Twitter (X)\n" +
		"3️⃣ Follow us on Instagram\n" +
		"4️⃣ Join our Telegram channel\n" +
		"5️⃣ Send your Minati Vault BEP20 address\n" +
		"6️⃣ Submit final verification\n\n" +
		"Let's start! 🎯"
}

func (h *BotHandler) stepText(step int) string {
	var body string
	switch step {
	case fsm.StepDownloadApp:
		body = "📥 Please download and review the Minati Vault app first.\n\n" +
			h.linkLine("🔗 Download Link", "Minati Vault App", h.links.AppDownload) +
			"After downloading and reviewing, click the button below."
	case fsm.StepFollowTwitter:
		body = services.FormatBold("🐦 Twitter (X) Tasks:") + "\n\n" +
			"1. Follow us on Twitter\n" +
			"2. Like our latest post\n" +
			"3. Retweet with comment\n\n" +
			"📝 " + services.FormatBold("Send your Twitter username") + " (without @) after completing all tasks."
	case fsm.StepFollowInsta:
		body = services.FormatBold("📸 Instagram Tasks:") + "\n\n" +
			"1. Follow us on Instagram\n" +
			"2. Like our latest post\n" +
			"3. Share to your story (optional)\n\n" +
			"📝 " + services.FormatBold("Send your Instagram username") + " (without @) after completing all tasks."
	case fsm.StepJoinChannel:
		body = services.FormatBold("💬 Telegram Tasks:") + "\n\n" +
			"1. Join our channel " + services.Escape(h.channel) + "\n" +
			"2. Share the channel with friends\n\n" +
			"✅ Click the button below after joining."
	case fsm.StepWalletAddress:
		body = services.FormatBold("🏦 BEP20 Address Submission:") + "\n\n" +
			"Please send your Minati Vault BEP20 address for rewards.\n\n" +
			"⚠️ " + services.FormatBold("Important:") + " Make sure it's a valid BEP20 address starting with 0x"
	case fsm.StepFinalConfirm:
		body = services.FormatBold("🎉 Final Verification:") + "\n\n" +
			"Review your information and confirm all tasks are completed." +
			h.customerCareLine("\n\n📞 Customer Care: ")
	default:
		return "🎉 Congratulations! All steps completed!" + h.customerCareLine("\n\nContact: ")
	}

	return fmt.Sprintf("%s 📋\n\n%s", services.FormatBold(fmt.Sprintf("Step %d/%d", step, fsm.TotalSteps)), body)
}

func (h *BotHandler) stepKeyboard(step int) *tgmodels.InlineKeyboardMarkup {
	var rows [][]tgmodels.InlineKeyboardButton

	switch step {
	case fsm.StepDownloadApp:
		rows = appendURLRow(rows, "📱 Download App", h.links.AppDownload)
		rows = append(rows, callbackRow("✅ Downloaded & Reviewed", fsm.ActionConfirmDownload))
	case fsm.StepFollowTwitter:
		rows = appendURLRow(rows, "🐦 Follow on Twitter", h.links.Twitter)
		rows = append(rows, callbackRow("ℹ️ Send Username After Following", fsm.ActionTwitterInfo))
	case fsm.StepFollowInsta:
		rows = appendURLRow(rows, "📸 Follow on Instagram", h.links.Instagram)
		rows = append(rows, callbackRow("ℹ️ Send Username After Following", fsm.ActionInstagramInfo))
	case fsm.StepJoinChannel:
		rows = appendURLRow(rows, "💬 Join Main Channel", h.links.Channel)
		rows = append(rows, callbackRow("🔍 Verify I Joined", fsm.ActionConfirmChannelJoin))
	case fsm.StepWalletAddress:
		rows = append(rows, callbackRow("ℹ️ Send BEP20 Address", fsm.ActionAddressInfo))
	case fsm.StepFinalConfirm:
		rows = append(rows, callbackRow("🎉 Complete Process", fsm.ActionConfirmFinal))
	default:
		return h.completedKeyboard()
	}

	rows = append(rows, callbackRow("❓ Need Help", fsm.ActionHelp))
	return &tgmodels.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func (h *BotHandler) completedKeyboard() *tgmodels.InlineKeyboardMarkup {
	rows := [][]tgmodels.InlineKeyboardButton{
		callbackRow("🔄 Start Over", fsm.ActionRestart),
		callbackRow("📊 View Status", fsm.ActionShowStatus),
	}
	rows = appendURLRow(rows, "🌐 Website", h.links.Website)
	return &tgmodels.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func (h *BotHandler) statusKeyboard() *tgmodels.InlineKeyboardMarkup {
	var rows [][]tgmodels.InlineKeyboardButton
	rows = appendURLRow(rows, "🌐 Website", h.links.Website)
	rows = appendURLRow(rows, "💬 Main Channel", h.links.Channel)
	rows = append(rows, callbackRow("🔄 Restart Process", fsm.ActionRestart))
	return &tgmodels.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func (h *BotHandler) helpKeyboard() *tgmodels.InlineKeyboardMarkup {
	var rows [][]tgmodels.InlineKeyboardButton
	rows = appendURLRow(rows, "🌐 Website", h.links.Website)
	rows = appendURLRow(rows, "📱 Download App", h.links.AppDownload)
	rows = appendURLRow(rows, "🐦 Twitter", h.links.Twitter)
	rows = appendURLRow(rows, "📸 Instagram", h.links.Instagram)
	rows = appendURLRow(rows, "💬 Main Channel", h.links.Channel)
	if len(rows) == 0 {
		return nil
	}
	return &tgmodels.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func (h *BotHandler) helpText() string {
	var sb strings.Builder
	sb.WriteString(services.FormatBold("🆘 Minati Vault Bot Help") + "\n\n")
	sb.WriteString(services.FormatBold("Available Commands:") + "\n")
	sb.WriteString("• /start - Start or restart the bot\n")
	sb.WriteString("• /status - Check your current progress\n")
	sb.WriteString("• /help - Show this help message\n")
	sb.WriteString("• /reset - Reset your progress completely\n\n")
	sb.WriteString(services.FormatBold("Verification Process:") + "\n")
	sb.WriteString("✅ Real verification for Telegram channel membership\n")
	sb.WriteString("⚠️ Username collection for Twitter &amp; Instagram\n")
	sb.WriteString("🔐 Address validation for BEP20 wallet\n")
	sb.WriteString(h.customerCareLine("\n👨‍💼 Customer Care: "))
	sb.WriteString("\n\n" + services.FormatBold("Important Notes:") + "\n")
	sb.WriteString("• Telegram membership is verified in real-time\n")
	sb.WriteString("• Make sure to actually join channels, not just visit\n")
	sb.WriteString("• Social media usernames are collected for manual verification\n")
	sb.WriteString("• BEP20 addresses are validated for correct format")
	return sb.String()
}

func (h *BotHandler) infoText(action string) string {
	switch action {
	case fsm.ActionTwitterInfo:
		return services.FormatBold("📝 Twitter Instructions:") + "\n\n" +
			"1. Click 'Follow on Twitter' button above\n" +
			"2. Follow our Twitter account\n" +
			"3. Like and retweet our pinned post\n" +
			"4. Send your Twitter username here (without @)\n\n" +
			"Example: If your Twitter is @john_crypto, just send: john_crypto"
	case fsm.ActionInstagramInfo:
		return services.FormatBold("📝 Instagram Instructions:") + "\n\n" +
			"1. Click 'Follow on Instagram' button above\n" +
			"2. Follow our Instagram account\n" +
			"3. Like our latest post\n" +
			"4. Send your Instagram username here (without @)\n\n" +
			"Example: If your Instagram is @john.crypto, just send: john.crypto"
	case fsm.ActionAddressInfo:
		return services.FormatBold("🏦 BEP20 Address Instructions:") + "\n\n" +
			"Please send your BEP20 (Binance Smart Chain) wallet address.\n\n" +
			services.FormatBold("Requirements:") + "\n" +
			"• Must start with 0x\n" +
			"• Must be exactly 42 characters long\n" +
			"• Only contains letters (a-f) and numbers (0-9)\n\n" +
			services.FormatBold("Example:") + " " + services.FormatCode(exampleAddress)
	default:
		return h.helpText()
	}
}

func (h *BotHandler) statusText(p *models.UserProgress, telegramStatus string) string {
	var sb strings.Builder
	sb.WriteString(services.FormatBold("📊 Your Progress Status") + "\n\n")
	if p.IsComplete() {
		sb.WriteString(services.FormatBold("Current Step:") + " complete ✅\n")
	} else {
		fmt.Fprintf(&sb, "%s %d/%d\n", services.FormatBold("Current Step:"), p.CurrentStep, fsm.TotalSteps)
	}
	fmt.Fprintf(&sb, "%s %d/%d\n\n", services.FormatBold("Completed Steps:"), p.CompletedCount(), fsm.TotalSteps)

	sb.WriteString(services.FormatBold("Step Details:") + "\n")
	for step := fsm.StepDownloadApp; step <= fsm.StepFinalConfirm; step++ {
		fmt.Fprintf(&sb, "%s Step %d: %s\n", checkMark(p.IsStepCompleted(step)), step, fsm.StepTitle(step))
	}

	sb.WriteString("\n" + services.FormatBold("Verification Status:") + "\n")
	sb.WriteString("🐦 Twitter: " + handleOrMissing(p.SocialHandle(models.PlatformTwitter)) + "\n")
	sb.WriteString("📸 Instagram: " + handleOrMissing(p.SocialHandle(models.PlatformInstagram)) + "\n")
	sb.WriteString("💬 Telegram: " + telegramStatus + "\n")
	if p.WalletAddress != "" {
		sb.WriteString("🏦 BEP20: ✅ Provided")
	} else {
		sb.WriteString("🏦 BEP20: ❌ Not provided")
	}
	return sb.String()
}

func (h *BotHandler) completionText(p *models.UserProgress) string {
	var sb strings.Builder
	sb.WriteString("🎉 " + services.FormatBold("CONGRATULATIONS!") + " 🎉\n\n")
	sb.WriteString("You have successfully completed all steps!\n\n")
	sb.WriteString(services.FormatBold("Your Submitted Information:") + "\n")
	sb.WriteString("🐦 Twitter: " + handleOrMissing(p.SocialHandle(models.PlatformTwitter)) + "\n")
	sb.WriteString("📸 Instagram: " + handleOrMissing(p.SocialHandle(models.PlatformInstagram)) + "\n")
	sb.WriteString("💬 Telegram: ✅ Verified Member\n")
	sb.WriteString("🏦 BEP20 Address: " + addressOrMissing(p.WalletAddress) + "\n\n")
	sb.WriteString(services.FormatBold("What's Next?") + "\n")
	sb.WriteString("Our team will review your submission and contact you soon!")
	sb.WriteString(h.customerCareLine("\n\n📞 Customer Care: "))
	if h.links.Website != "" {
		sb.WriteString("\n🌐 Website: " + services.Escape(h.links.Website))
	}
	sb.WriteString("\n\nThank you for using Minati Vault Bot! 🚀")
	return sb.String()
}

func (h *BotHandler) completedSummaryText(p *models.UserProgress) string {
	var sb strings.Builder
	sb.WriteString(services.FormatBold("📊 Completion Status") + "\n\n")
	sb.WriteString("✅ All steps completed successfully!\n\n")
	sb.WriteString(services.FormatBold("Your Information:") + "\n")
	sb.WriteString("• Twitter: " + handleOrMissing(p.SocialHandle(models.PlatformTwitter)) + "\n")
	sb.WriteString("• Instagram: " + handleOrMissing(p.SocialHandle(models.PlatformInstagram)) + "\n")
	sb.WriteString("• Telegram: ✅ Verified\n")
	sb.WriteString("• BEP20: " + addressOrMissing(p.WalletAddress))
	sb.WriteString(h.customerCareLine("\n\n" + services.FormatBold("Need Changes?") + " Contact: "))
	return sb.String()
}

func (h *BotHandler) rejectionText(step int, reason string) string {
	switch step {
	case fsm.StepFollowTwitter, fsm.StepFollowInsta:
		platform, example := "Twitter", "@john_crypto, send: john_crypto"
		if step == fsm.StepFollowInsta {
			platform, example = "Instagram", "@john.crypto, send: john.crypto"
		}
		return fmt.Sprintf("❌ %s\n\nError: %s\n\nPlease send a valid %s username (without @).\nExample: If your %s is %s",
			services.FormatBold("Invalid "+platform+" Username"), services.Escape(reason), platform, platform, example)
	case fsm.StepWalletAddress:
		return fmt.Sprintf("❌ %s\n\nError: %s\n\nPlease send a valid BEP20 address:\n• Must start with 0x\n• Must be 42 characters long\n• Example: %s",
			services.FormatBold("Invalid BEP20 Address"), services.Escape(reason), services.FormatCode(exampleAddress))
	default:
		return "❌ " + services.Escape(reason)
	}
}

func (h *BotHandler) notVerifiedText(step int, handle string) string {
	platform, link := "Twitter", h.links.Twitter
	if step == fsm.StepFollowInsta {
		platform, link = "Instagram", h.links.Instagram
	}
	text := fmt.Sprintf("⚠️ %s\n\nUsername: %s\n\n%s\n1. Actually followed our %s account\n2. Liked our latest post\n3. Wait 30 seconds then try again",
		services.FormatBold("Username received but not verified"), services.FormatMention(handle),
		services.FormatBold("Please make sure you:"), platform)
	if link != "" {
		text += fmt.Sprintf("\n\n%s: %s", platform, services.Escape(link))
	}
	return text
}

func (h *BotHandler) notMemberText(unavailable bool) string {
	text := "❌ " + services.FormatBold("Verification Failed") + "\n\n" +
		"We couldn't verify that you've joined our Telegram channel.\n\n" +
		services.FormatBold("Please make sure to:") + "\n" +
		"1. Click the 'Join Main Channel' button\n" +
		"2. Actually join the channel (not just visit)\n" +
		"3. Then click 'Verify I Joined' again\n\n"
	if unavailable {
		return text + services.FormatBold("Note:") + " We could not reach Telegram to check your membership. Please try again in a moment."
	}
	return text + services.FormatBold("Note:") + " It may take a few seconds for the verification to work."
}

func (h *BotHandler) wrongStepText(step int) string {
	switch step {
	case fsm.StepDownloadApp:
		return "❌ You're not on step 1."
	case fsm.StepJoinChannel:
		return "❌ You're not on the Telegram step."
	case fsm.StepFinalConfirm:
		return "❌ You're not on the final step."
	default:
		return fmt.Sprintf("❌ You're not on step %d.", step)
	}
}

func (h *BotHandler) awaitingButtonText(step int) string {
	return fmt.Sprintf("📍 <b>You're currently on step %d</b>\n\nPlease follow the instructions above or use the buttons provided.\n\nNeed help? Type /help%s",
		step, h.customerCareLine(" or contact "))
}

func (h *BotHandler) customerCareLine(prefix string) string {
	mention := services.FormatMention(h.customerCare)
	if mention == "" {
		return ""
	}
	return prefix + mention
}

func (h *BotHandler) linkLine(label, text, url string) string {
	if url == "" {
		return ""
	}
	return services.FormatBold(label+":") + " " + services.FormatLink(text, url) + "\n\n"
}

func appendURLRow(rows [][]tgmodels.InlineKeyboardButton, text, url string) [][]tgmodels.InlineKeyboardButton {
	if url == "" {
		return rows
	}
	return append(rows, []tgmodels.InlineKeyboardButton{{Text: text, URL: url}})
}

func callbackRow(text, data string) []tgmodels.InlineKeyboardButton {
	return []tgmodels.InlineKeyboardButton{{Text: text, CallbackData: data}}
}

func checkMark(done bool) string {
	if done {
		return "✅"
	}
	return "❌"
}

func handleOrMissing(handle string) string {
	if handle == "" {
		return "Not provided"
	}
	return services.FormatMention(handle)
}

func addressOrMissing(address string) string {
	if address == "" {
		return "Not provided"
	}
	return services.FormatCode(services.MaskAddress(address))
}
