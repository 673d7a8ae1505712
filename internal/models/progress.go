package models

import (
	"time"

	"github.com/ad/go-telegram-onboarding/internal/fsm"
)

type UserProgress struct {
	UserID         int64                     `json:"id"`
	DisplayName    string                    `json:"display_name"`
	Handle         string                    `json:"handle"`
	CurrentStep    int                       `json:"current_step"`
	StepsCompleted map[int]bool              `json:"steps_completed"`
	SocialHandles  map[SocialPlatform]string `json:"social_handles"`
	WalletAddress  string                    `json:"wallet_address,omitempty"`
	// Screenshots are collected and persisted but not read by any step.
	Screenshots []Screenshot `json:"screenshots"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

type Screenshot struct {
	AssetID    string    `json:"asset_id"`
	FileName   string    `json:"file_name"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// NewUserProgress returns a fresh record positioned on the first step.
func NewUserProgress(userID int64, displayName, handle string, now time.Time) *UserProgress {
	return &UserProgress{
		UserID:         userID,
		DisplayName:    displayName,
		Handle:         handle,
		CurrentStep:    fsm.StepDownloadApp,
		StepsCompleted: map[int]bool{},
		SocialHandles:  map[SocialPlatform]string{},
		Screenshots:    []Screenshot{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func (p *UserProgress) IsComplete() bool {
	return p.CurrentStep >= fsm.StepComplete
}

func (p *UserProgress) IsStepCompleted(step int) bool {
	return p.StepsCompleted[step]
}

func (p *UserProgress) CompletedCount() int {
	count := 0
	for step, done := range p.StepsCompleted {
		if done && fsm.IsValidStep(step) {
			count++
		}
	}
	return count
}

func (p *UserProgress) SocialHandle(platform SocialPlatform) string {
	return p.SocialHandles[platform]
}

// AdvanceStep mirrors the store operation on an in-memory record.
func (p *UserProgress) AdvanceStep(step int, completed bool, now time.Time) {
	if completed {
		p.CurrentStep = step + 1
	} else {
		p.CurrentStep = step
	}
	if p.StepsCompleted == nil {
		p.StepsCompleted = map[int]bool{}
	}
	p.StepsCompleted[step] = completed
	p.UpdatedAt = now
}

// Apply performs a StepChange on an in-memory record. Callers check the
// current step before calling.
func (p *UserProgress) Apply(change StepChange, now time.Time) {
	if change.Platform != "" {
		if p.SocialHandles == nil {
			p.SocialHandles = map[SocialPlatform]string{}
		}
		p.SocialHandles[change.Platform] = change.Handle
	}
	if change.WalletAddress != "" {
		p.WalletAddress = change.WalletAddress
	}
	p.AdvanceStep(change.Step, change.Completed, now)
}

// Reset zeroes the mutable onboarding fields. Screenshots are kept.
func (p *UserProgress) Reset(now time.Time) {
	p.CurrentStep = fsm.StepDownloadApp
	p.StepsCompleted = map[int]bool{}
	p.SocialHandles = map[SocialPlatform]string{}
	p.WalletAddress = ""
	p.UpdatedAt = now
}

// StepChange is a single conditional write: the step data and the advance
// are applied together, and only while the stored current step equals Step.
type StepChange struct {
	Step          int
	Completed     bool
	Platform      SocialPlatform
	Handle        string
	WalletAddress string
}
