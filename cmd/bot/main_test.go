package main

import (
	"context"
	"testing"

	"github.com/ad/go-telegram-onboarding/internal/handlers"
	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	"github.com/google/uuid"
)

func TestFormatUser(t *testing.T) {
	tests := []struct {
		user tgmodels.User
		want string
	}{
		{tgmodels.User{ID: 1, FirstName: "John"}, "John [1]"},
		{tgmodels.User{ID: 2, FirstName: "John", LastName: "Doe"}, "John Doe [2]"},
		{tgmodels.User{ID: 3, FirstName: "John", LastName: "Doe", Username: "jd"}, "John Doe @jd [3]"},
		{tgmodels.User{ID: 4, Username: "anon"}, " @anon [4]"},
	}
	for _, tt := range tests {
		if got := formatUser(tt.user); got != tt.want {
			t.Errorf("formatUser(%+v) = %q, want %q", tt.user, got, tt.want)
		}
	}
}

func TestLogMiddleware_AttachesRequestID(t *testing.T) {
	updates := []*tgmodels.Update{
		{Message: &tgmodels.Message{From: &tgmodels.User{ID: 1, FirstName: "John"}, Text: "/start"}},
		{Message: &tgmodels.Message{Text: "channel post without sender"}},
		{CallbackQuery: &tgmodels.CallbackQuery{From: tgmodels.User{ID: 1}, Data: "help"}},
	}

	seen := map[string]bool{}
	for _, update := range updates {
		var requestID string
		next := func(ctx context.Context, _ *bot.Bot, _ *tgmodels.Update) {
			requestID = handlers.RequestID(ctx)
		}

		logMiddleware(next)(context.Background(), nil, update)

		if _, err := uuid.Parse(requestID); err != nil {
			t.Fatalf("expected a uuid request id, got %q", requestID)
		}
		if seen[requestID] {
			t.Fatalf("request id %s reused", requestID)
		}
		seen[requestID] = true
	}
}
