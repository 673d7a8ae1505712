package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/ad/go-telegram-onboarding/internal/db"
	"github.com/ad/go-telegram-onboarding/internal/fsm"
	"github.com/ad/go-telegram-onboarding/internal/models"
	"github.com/ad/go-telegram-onboarding/internal/validation"
)

const DefaultMembershipTimeout = 10 * time.Second

type ProgressStore interface {
	Get(ctx context.Context, id int64) (*models.UserProgress, error)
	Create(ctx context.Context, id int64, displayName, handle string) (bool, error)
	AdvanceStep(ctx context.Context, id int64, step int, completed bool) error
	SetSocialHandle(ctx context.Context, id int64, platform models.SocialPlatform, value string) error
	SetWalletAddress(ctx context.Context, id int64, value string) error
	AppendScreenshot(ctx context.Context, id int64, assetID, fileName string) error
	Reset(ctx context.Context, id int64) error
	Stats(ctx context.Context) (*models.Stats, error)
	ApplyStep(ctx context.Context, id int64, change models.StepChange) error
}

type MembershipChecker interface {
	CheckMembership(ctx context.Context, userID int64, channel string) (models.MembershipStatus, error)
}

type SocialFollowVerifier interface {
	Verify(platform models.SocialPlatform, handle string) bool
}

type OutcomeKind int

const (
	OutcomeAdvanced OutcomeKind = iota
	OutcomeRejected
	OutcomeWrongStep
	OutcomeAlreadyComplete
	OutcomeNotMember
	OutcomeNotVerified
	OutcomeAwaitingButton
	OutcomeReset
	OutcomeScreenshotSaved
	OutcomeUnknownAction
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeAdvanced:
		return "advanced"
	case OutcomeRejected:
		return "rejected"
	case OutcomeWrongStep:
		return "wrong_step"
	case OutcomeAlreadyComplete:
		return "already_complete"
	case OutcomeNotMember:
		return "not_member"
	case OutcomeNotVerified:
		return "not_verified"
	case OutcomeAwaitingButton:
		return "awaiting_button"
	case OutcomeReset:
		return "reset"
	case OutcomeScreenshotSaved:
		return "screenshot_saved"
	case OutcomeUnknownAction:
		return "unknown_action"
	default:
		return fmt.Sprintf("outcome(%d)", int(k))
	}
}

// Outcome describes what an event did. Progress is the record after the
// event; Step is the step the event was addressed to.
type Outcome struct {
	Kind       OutcomeKind
	Step       int
	Progress   *models.UserProgress
	Validation validation.Result
	// Unavailable is set on OutcomeNotMember when the membership check
	// itself failed rather than answering "not a member".
	Unavailable bool
}

type StepMachineOptions struct {
	Channel           string
	MembershipTimeout time.Duration
}

// StepMachine enforces the onboarding order. The store is never trusted to
// check ordering; every step write is a conditional ApplyStep.
type StepMachine struct {
	store      ProgressStore
	membership MembershipChecker
	social     SocialFollowVerifier
	opts       StepMachineOptions
}

func NewStepMachine(store ProgressStore, membership MembershipChecker, social SocialFollowVerifier, opts StepMachineOptions) *StepMachine {
	if opts.MembershipTimeout <= 0 {
		opts.MembershipTimeout = DefaultMembershipTimeout
	}
	if social == nil {
		social = NewSocialFollowVerifier()
	}
	return &StepMachine{
		store:      store,
		membership: membership,
		social:     social,
		opts:       opts,
	}
}

func (m *StepMachine) Channel() string {
	return m.opts.Channel
}

// Start creates the record on first contact and returns the stored state.
func (m *StepMachine) Start(ctx context.Context, user models.Identity) (*models.UserProgress, bool, error) {
	created, err := m.store.Create(ctx, user.ID, user.Name(), user.Handle())
	if err != nil {
		return nil, false, storeError("create", err)
	}
	if created {
		log.Printf("[STEP] Created progress for user %d", user.ID)
	}

	progress, err := m.Load(ctx, user.ID)
	if err != nil {
		return nil, false, err
	}
	return progress, created, nil
}

func (m *StepMachine) Load(ctx context.Context, userID int64) (*models.UserProgress, error) {
	progress, err := m.store.Get(ctx, userID)
	if err != nil {
		return nil, storeError("get", err)
	}
	return progress, nil
}

func (m *StepMachine) Stats(ctx context.Context) (*models.Stats, error) {
	stats, err := m.store.Stats(ctx)
	if err != nil {
		return nil, storeError("stats", err)
	}
	return stats, nil
}

// CheckMembership asks the membership collaborator under the configured
// timeout. Anything other than a confirmed member is reported as not a member.
func (m *StepMachine) CheckMembership(ctx context.Context, userID int64) (bool, error) {
	if m.membership == nil {
		return false, errors.New("membership checker not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, m.opts.MembershipTimeout)
	defer cancel()

	status, err := m.membership.CheckMembership(ctx, userID, m.opts.Channel)
	if err != nil {
		log.Printf("[MEMBERSHIP] Check failed for user %d in %s: %v", userID, m.opts.Channel, err)
		return false, err
	}
	return status == models.MembershipMember, nil
}

func (m *StepMachine) HandleButton(ctx context.Context, progress *models.UserProgress, action string) (*Outcome, error) {
	if progress == nil {
		return nil, ErrNotFound
	}

	if action == fsm.ActionRestart || action == fsm.ActionReset {
		return m.reset(ctx, progress)
	}

	step := fsm.StepForAction(action)
	if step == 0 {
		return &Outcome{Kind: OutcomeUnknownAction, Progress: progress}, nil
	}
	if progress.IsComplete() {
		return &Outcome{Kind: OutcomeAlreadyComplete, Step: step, Progress: progress}, nil
	}
	if progress.CurrentStep != step {
		log.Printf("[STEP] User %d pressed %s on step %d", progress.UserID, action, progress.CurrentStep)
		return &Outcome{Kind: OutcomeWrongStep, Step: step, Progress: progress}, nil
	}

	if step == fsm.StepJoinChannel {
		isMember, err := m.CheckMembership(ctx, progress.UserID)
		if !isMember {
			return &Outcome{Kind: OutcomeNotMember, Step: step, Progress: progress, Unavailable: err != nil}, nil
		}
	}

	return m.apply(ctx, progress, models.StepChange{Step: step, Completed: true})
}

func (m *StepMachine) HandleText(ctx context.Context, progress *models.UserProgress, text string) (*Outcome, error) {
	if progress == nil {
		return nil, ErrNotFound
	}
	if progress.IsComplete() {
		return &Outcome{Kind: OutcomeAlreadyComplete, Step: progress.CurrentStep, Progress: progress}, nil
	}

	switch progress.CurrentStep {
	case fsm.StepFollowTwitter:
		return m.submitHandle(ctx, progress, models.PlatformTwitter, text)
	case fsm.StepFollowInsta:
		return m.submitHandle(ctx, progress, models.PlatformInstagram, text)
	case fsm.StepWalletAddress:
		return m.submitAddress(ctx, progress, text)
	default:
		return &Outcome{Kind: OutcomeAwaitingButton, Step: progress.CurrentStep, Progress: progress}, nil
	}
}

// HandleScreenshot stores a valid image upload. Screenshots never move the
// user between steps.
func (m *StepMachine) HandleScreenshot(ctx context.Context, progress *models.UserProgress, assetID, fileName string, size int64) (*Outcome, error) {
	if progress == nil {
		return nil, ErrNotFound
	}

	result := validation.ValidateImageAsset(size, fileName)
	if !result.Valid {
		return &Outcome{Kind: OutcomeRejected, Step: progress.CurrentStep, Progress: progress, Validation: result}, nil
	}

	if err := m.store.AppendScreenshot(ctx, progress.UserID, assetID, fileName); err != nil {
		return nil, storeError("append screenshot", err)
	}
	log.Printf("[STEP] Stored screenshot %s for user %d", fileName, progress.UserID)

	updated, err := m.Load(ctx, progress.UserID)
	if err != nil {
		return nil, err
	}
	return &Outcome{Kind: OutcomeScreenshotSaved, Step: updated.CurrentStep, Progress: updated, Validation: result}, nil
}

func (m *StepMachine) submitHandle(ctx context.Context, progress *models.UserProgress, platform models.SocialPlatform, text string) (*Outcome, error) {
	step := progress.CurrentStep

	result := validation.ValidateHandle(text)
	if !result.Valid {
		return &Outcome{Kind: OutcomeRejected, Step: step, Progress: progress, Validation: result}, nil
	}

	handle := validation.NormalizeHandle(text)
	if !m.social.Verify(platform, handle) {
		return &Outcome{Kind: OutcomeNotVerified, Step: step, Progress: progress, Validation: result}, nil
	}

	outcome, err := m.apply(ctx, progress, models.StepChange{
		Step:      step,
		Completed: true,
		Platform:  platform,
		Handle:    handle,
	})
	if outcome != nil {
		outcome.Validation = result
	}
	return outcome, err
}

func (m *StepMachine) submitAddress(ctx context.Context, progress *models.UserProgress, text string) (*Outcome, error) {
	step := progress.CurrentStep

	result := validation.ValidateAddress(text)
	if !result.Valid {
		return &Outcome{Kind: OutcomeRejected, Step: step, Progress: progress, Validation: result}, nil
	}

	outcome, err := m.apply(ctx, progress, models.StepChange{
		Step:          step,
		Completed:     true,
		WalletAddress: strings.TrimSpace(text),
	})
	if outcome != nil {
		outcome.Validation = result
	}
	return outcome, err
}

func (m *StepMachine) apply(ctx context.Context, progress *models.UserProgress, change models.StepChange) (*Outcome, error) {
	err := m.store.ApplyStep(ctx, progress.UserID, change)
	if errors.Is(err, db.ErrStepConflict) {
		log.Printf("[STEP] User %d left step %d before the change was applied", progress.UserID, change.Step)
		current, loadErr := m.Load(ctx, progress.UserID)
		if loadErr != nil {
			return nil, loadErr
		}
		return &Outcome{Kind: OutcomeWrongStep, Step: change.Step, Progress: current}, nil
	}
	if err != nil {
		return nil, storeError("apply step", err)
	}

	updated, err := m.Load(ctx, progress.UserID)
	if err != nil {
		return nil, err
	}
	log.Printf("[STEP] User %d completed step %d, now on %d", progress.UserID, change.Step, updated.CurrentStep)
	return &Outcome{Kind: OutcomeAdvanced, Step: change.Step, Progress: updated}, nil
}

func (m *StepMachine) reset(ctx context.Context, progress *models.UserProgress) (*Outcome, error) {
	if err := m.store.Reset(ctx, progress.UserID); err != nil {
		return nil, storeError("reset", err)
	}
	log.Printf("[STEP] Reset progress for user %d", progress.UserID)

	updated, err := m.Load(ctx, progress.UserID)
	if err != nil {
		return nil, err
	}
	return &Outcome{Kind: OutcomeReset, Step: updated.CurrentStep, Progress: updated}, nil
}

func storeError(op string, err error) error {
	if errors.Is(err, db.ErrNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%w: %s: %v", ErrCollaboratorUnavailable, op, err)
}
