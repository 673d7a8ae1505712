package models

type SocialPlatform string

const (
	PlatformTwitter   SocialPlatform = "twitter"
	PlatformInstagram SocialPlatform = "instagram"
)

func (p SocialPlatform) IsValid() bool {
	return p == PlatformTwitter || p == PlatformInstagram
}

type MembershipStatus string

const (
	MembershipMember    MembershipStatus = "member"
	MembershipNotMember MembershipStatus = "not_member"
	MembershipUnknown   MembershipStatus = "unknown"
)
