package services

import (
	"github.com/ad/go-telegram-onboarding/internal/models"
	"github.com/ad/go-telegram-onboarding/internal/validation"
)

// FormatFollowVerifier stands in for a real follow check: it only confirms
// the handle is well formed for a supported platform.
type FormatFollowVerifier struct{}

func NewSocialFollowVerifier() *FormatFollowVerifier {
	return &FormatFollowVerifier{}
}

func (v *FormatFollowVerifier) Verify(platform models.SocialPlatform, handle string) bool {
	if !platform.IsValid() {
		return false
	}
	return validation.ValidateHandle(handle).Valid
}
