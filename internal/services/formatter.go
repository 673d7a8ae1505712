package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/ad/go-telegram-onboarding/internal/fsm"
	"github.com/ad/go-telegram-onboarding/internal/models"
)

// FormatDuration renders a duration as "1d 2h 3m", dropping seconds once
// the duration exceeds an hour.
func FormatDuration(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}

	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	var parts []string
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	if seconds > 0 && days == 0 && hours == 0 {
		parts = append(parts, fmt.Sprintf("%ds", seconds))
	}

	if len(parts) == 0 {
		return "0s"
	}
	return strings.Join(parts, " ")
}

func FormatDateTime(t time.Time) string {
	return t.Format("2 Jan 2006, 15:04")
}

// FormatProgressReport is a plain-text summary of one record for operators.
func FormatProgressReport(p *models.UserProgress, now time.Time) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "User: %s (@%s) [%d]\n", p.DisplayName, p.Handle, p.UserID)
	if p.IsComplete() {
		sb.WriteString("Status: complete\n")
	} else {
		fmt.Fprintf(&sb, "Current step: %d/%d (%s)\n", p.CurrentStep, fsm.TotalSteps, fsm.StepTitle(p.CurrentStep))
	}
	fmt.Fprintf(&sb, "Completed steps: %d/%d\n", p.CompletedCount(), fsm.TotalSteps)

	for step := fsm.StepDownloadApp; step <= fsm.StepFinalConfirm; step++ {
		mark := " "
		if p.IsStepCompleted(step) {
			mark = "x"
		}
		fmt.Fprintf(&sb, "  [%s] %d. %s\n", mark, step, fsm.StepTitle(step))
	}

	fmt.Fprintf(&sb, "Twitter: %s\n", valueOr(p.SocialHandle(models.PlatformTwitter), "not provided"))
	fmt.Fprintf(&sb, "Instagram: %s\n", valueOr(p.SocialHandle(models.PlatformInstagram), "not provided"))
	fmt.Fprintf(&sb, "Wallet: %s\n", valueOr(p.WalletAddress, "not provided"))
	fmt.Fprintf(&sb, "Screenshots: %d\n", len(p.Screenshots))
	fmt.Fprintf(&sb, "Started: %s (%s ago)\n", FormatDateTime(p.CreatedAt), FormatDuration(now.Sub(p.CreatedAt)))
	fmt.Fprintf(&sb, "Updated: %s", FormatDateTime(p.UpdatedAt))

	return sb.String()
}

func FormatStats(stats *models.Stats) string {
	return fmt.Sprintf("Total users: %d\nCompleted: %d\nCompletion rate: %.1f%%",
		stats.TotalUsers, stats.CompletedUsers, stats.CompletionRate)
}

func valueOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
