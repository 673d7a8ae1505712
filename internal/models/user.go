package models

import (
	"fmt"
	"strings"
)

// Identity is the chat-platform user an event came from.
type Identity struct {
	ID        int64
	FirstName string
	LastName  string
	Username  string
}

func (u *Identity) DisplayName() string {
	var parts []string
	if u.FirstName != "" {
		parts = append(parts, u.FirstName)
	}
	if u.LastName != "" {
		parts = append(parts, u.LastName)
	}
	if u.Username != "" {
		parts = append(parts, fmt.Sprintf("@%s", u.Username))
	}
	parts = append(parts, fmt.Sprintf("[%d]", u.ID))
	return strings.Join(parts, " ")
}

// Name is what the bot greets the user with.
func (u *Identity) Name() string {
	if u.FirstName != "" {
		return u.FirstName
	}
	return "User"
}

// Handle returns the platform username or a placeholder when it is unset.
func (u *Identity) Handle() string {
	if u.Username != "" {
		return u.Username
	}
	return "No username"
}
