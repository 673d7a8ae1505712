package services

import (
	"fmt"
	"html"
	"strings"
)

func FormatBold(text string) string {
	return fmt.Sprintf("<b>%s</b>", html.EscapeString(text))
}

func FormatItalic(text string) string {
	return fmt.Sprintf("<i>%s</i>", html.EscapeString(text))
}

func FormatCode(text string) string {
	return fmt.Sprintf("<code>%s</code>", html.EscapeString(text))
}

func FormatLink(text, url string) string {
	return fmt.Sprintf("<a href=\"%s\">%s</a>", html.EscapeString(url), html.EscapeString(text))
}

func Escape(text string) string {
	return html.EscapeString(text)
}

// MaskAddress keeps the first 10 and last 6 characters of a wallet address.
func MaskAddress(address string) string {
	if len(address) <= 16 {
		return address
	}
	return address[:10] + "..." + address[len(address)-6:]
}

// FormatMention renders a username as @name, accepting it with or without
// the leading @.
func FormatMention(username string) string {
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	if username == "" {
		return ""
	}
	return "@" + html.EscapeString(username)
}

func SafeConcat(parts ...string) string {
	var sb strings.Builder
	for _, part := range parts {
		sb.WriteString(part)
	}
	return sb.String()
}
