package services

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ad/go-telegram-onboarding/internal/models"
	"github.com/go-telegram/bot"
)

// newFakeTelegram answers getChatMember with the given member status, or with
// a Bot API error when status is empty.
func newFakeTelegram(t *testing.T, status string, gotChatID *string) *bot.Bot {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/getChatMember") {
			http.NotFound(w, r)
			return
		}
		if gotChatID != nil {
			*gotChatID = r.FormValue("chat_id")
		}
		w.Header().Set("Content-Type", "application/json")
		if status == "" {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`)
			return
		}
		fmt.Fprintf(w, `{"ok":true,"result":{"status":%q,"user":{"id":1001,"is_bot":false,"first_name":"John"}}}`, status)
	}))
	t.Cleanup(srv.Close)

	b, err := bot.New("123456:TEST_TOKEN", bot.WithServerURL(srv.URL), bot.WithSkipGetMe())
	if err != nil {
		t.Fatalf("bot.New failed: %v", err)
	}
	return b
}

func TestChannelVerifier_CheckMembership(t *testing.T) {
	tests := []struct {
		status string
		want   models.MembershipStatus
	}{
		{"creator", models.MembershipMember},
		{"administrator", models.MembershipMember},
		{"member", models.MembershipMember},
		{"left", models.MembershipNotMember},
		{"kicked", models.MembershipNotMember},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			var chatID string
			verifier := NewChannelVerifier(newFakeTelegram(t, tt.status, &chatID))

			got, err := verifier.CheckMembership(context.Background(), 1001, "@mntchkk")
			if err != nil {
				t.Fatalf("CheckMembership failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("status %s: expected %s, got %s", tt.status, tt.want, got)
			}
			if chatID != "@mntchkk" {
				t.Errorf("expected chat_id @mntchkk, got %q", chatID)
			}
		})
	}
}

func TestChannelVerifier_APIError(t *testing.T) {
	verifier := NewChannelVerifier(newFakeTelegram(t, "", nil))

	got, err := verifier.CheckMembership(context.Background(), 1001, "@missing")
	if err == nil {
		t.Fatal("expected error from Bot API")
	}
	if got != models.MembershipUnknown {
		t.Errorf("expected unknown status on error, got %s", got)
	}
}
