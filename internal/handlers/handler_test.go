package handlers

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/ad/go-telegram-onboarding/internal/db"
	"github.com/ad/go-telegram-onboarding/internal/fsm"
	"github.com/ad/go-telegram-onboarding/internal/models"
	"github.com/ad/go-telegram-onboarding/internal/services"
	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	_ "modernc.org/sqlite"
	"pgregory.net/rapid"
)

const (
	testAdminID = int64(999)
	testUserID  = int64(1001)
	testAddress = "0x742d35Cc6634C0532925a3b8D4B29E3f5fCffd52"
)

type fakeSender struct {
	mu       sync.Mutex
	sent     []*bot.SendMessageParams
	edited   []*bot.EditMessageTextParams
	answered []*bot.AnswerCallbackQueryParams
}

func (f *fakeSender) SendMessage(_ context.Context, params *bot.SendMessageParams) (*tgmodels.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, params)
	return &tgmodels.Message{ID: len(f.sent)}, nil
}

func (f *fakeSender) EditMessageText(_ context.Context, params *bot.EditMessageTextParams) (*tgmodels.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edited = append(f.edited, params)
	return &tgmodels.Message{ID: params.MessageID}, nil
}

func (f *fakeSender) AnswerCallbackQuery(_ context.Context, params *bot.AnswerCallbackQueryParams) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answered = append(f.answered, params)
	return true, nil
}

func (f *fakeSender) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent, f.edited, f.answered = nil, nil, nil
}

// texts returns every text the user saw, sends and edits alike.
func (f *fakeSender) texts() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var parts []string
	for _, p := range f.sent {
		parts = append(parts, p.Text)
	}
	for _, p := range f.edited {
		parts = append(parts, p.Text)
	}
	return strings.Join(parts, "\n---\n")
}

func (f *fakeSender) sentTo(chatID int64) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, p := range f.sent {
		if id, ok := p.ChatID.(int64); ok && id == chatID {
			out = append(out, p.Text)
		}
	}
	return out
}

type fakeMembership struct {
	status models.MembershipStatus
	err    error
	calls  int
}

func (f *fakeMembership) CheckMembership(context.Context, int64, string) (models.MembershipStatus, error) {
	f.calls++
	return f.status, f.err
}

type panicStore struct {
	*db.ProgressRepository
}

func (panicStore) Get(context.Context, int64) (*models.UserProgress, error) {
	panic("store exploded")
}

func newTestStore(t *testing.T) *db.ProgressRepository {
	t.Helper()

	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.InitSchema(sqlDB); err != nil {
		t.Fatalf("Failed to initialize schema: %v", err)
	}

	queue := db.NewDBQueueForTest(sqlDB)
	t.Cleanup(func() {
		queue.Close()
		sqlDB.Close()
	})
	return db.NewProgressRepository(queue)
}

func newTestHandler(t *testing.T, store services.ProgressStore, membership services.MembershipChecker) (*BotHandler, *fakeSender) {
	t.Helper()

	sender := &fakeSender{}
	errMgr := services.NewErrorManager(sender, testAdminID)
	machine := services.NewStepMachine(store, membership, nil, services.StepMachineOptions{Channel: "@mntchkk"})
	handler := NewBotHandler(machine, services.NewMessageManager(sender, errMgr), errMgr, Settings{
		AdminID:      testAdminID,
		CustomerCare: "care_team",
		Links: Links{
			AppDownload: "https://example.com/app",
			Twitter:     "https://x.com/example",
			Instagram:   "https://instagram.com/example",
			Channel:     "https://t.me/mntchkk",
		},
	})
	return handler, sender
}

func messageUpdate(userID int64, text string) *tgmodels.Update {
	return &tgmodels.Update{
		Message: &tgmodels.Message{
			ID:   1,
			From: &tgmodels.User{ID: userID, FirstName: "John", Username: "john"},
			Chat: tgmodels.Chat{ID: userID},
			Text: text,
		},
	}
}

func callbackUpdate(userID int64, data string) *tgmodels.Update {
	return &tgmodels.Update{
		CallbackQuery: &tgmodels.CallbackQuery{
			ID:   "cb-" + data,
			From: tgmodels.User{ID: userID, FirstName: "John"},
			Data: data,
			Message: tgmodels.MaybeInaccessibleMessage{
				Message: &tgmodels.Message{ID: 77, Chat: tgmodels.Chat{ID: userID}},
			},
		},
	}
}

func expectText(t *testing.T, sender *fakeSender, want string) {
	t.Helper()
	if got := sender.texts(); !strings.Contains(got, want) {
		t.Fatalf("expected a message containing %q, got:\n%s", want, got)
	}
}

func expectStep(t *testing.T, store services.ProgressStore, want int) *models.UserProgress {
	t.Helper()
	progress, err := store.Get(context.Background(), testUserID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if progress.CurrentStep != want {
		t.Fatalf("expected step %d, got %d", want, progress.CurrentStep)
	}
	return progress
}

func TestHandleUpdate_FullOnboarding(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	h, sender := newTestHandler(t, store, &fakeMembership{status: models.MembershipMember})

	h.HandleUpdate(ctx, nil, messageUpdate(testUserID, "/start"))
	expectText(t, sender, "Welcome John!")
	expectText(t, sender, "Step 1/6")
	expectStep(t, store, 1)

	steps := []struct {
		update   *tgmodels.Update
		wantText string
		wantStep int
	}{
		{callbackUpdate(testUserID, fsm.ActionConfirmDownload), "App download confirmed", 2},
		{messageUpdate(testUserID, "@john_crypto"), "Twitter Verified!", 3},
		{messageUpdate(testUserID, "john.crypto"), "Instagram Verified!", 4},
		{callbackUpdate(testUserID, fsm.ActionConfirmChannelJoin), "You are a member", 5},
		{messageUpdate(testUserID, testAddress), "BEP20 Address Saved!", 6},
		{callbackUpdate(testUserID, fsm.ActionConfirmFinal), "CONGRATULATIONS", 7},
	}
	for _, step := range steps {
		sender.reset()
		h.HandleUpdate(ctx, nil, step.update)
		expectText(t, sender, step.wantText)
		expectStep(t, store, step.wantStep)
	}

	expectText(t, sender, "@john_crypto")
	expectText(t, sender, "0x742d35Cc...Cffd52")
	expectText(t, sender, "@care_team")

	progress := expectStep(t, store, fsm.StepComplete)
	if progress.SocialHandle(models.PlatformInstagram) != "john.crypto" || progress.WalletAddress != testAddress {
		t.Errorf("collected data not stored: %+v", progress)
	}
}

func TestHandleUpdate_StartTwiceKeepsProgress(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	h, sender := newTestHandler(t, store, &fakeMembership{status: models.MembershipMember})

	h.HandleUpdate(ctx, nil, messageUpdate(testUserID, "/start"))
	h.HandleUpdate(ctx, nil, callbackUpdate(testUserID, fsm.ActionConfirmDownload))

	sender.reset()
	h.HandleUpdate(ctx, nil, messageUpdate(testUserID, "/start@minati_bot"))
	expectText(t, sender, "Welcome back John!")
	expectText(t, sender, "Step 2/6")
	expectStep(t, store, 2)
}

func TestHandleUpdate_TextBeforeStart(t *testing.T) {
	h, sender := newTestHandler(t, newTestStore(t), &fakeMembership{})

	h.HandleUpdate(context.Background(), nil, messageUpdate(testUserID, "hello"))
	expectText(t, sender, "Please use /start command first.")
}

func TestHandleUpdate_ButtonBeforeStart(t *testing.T) {
	h, sender := newTestHandler(t, newTestStore(t), &fakeMembership{})

	h.HandleUpdate(context.Background(), nil, callbackUpdate(testUserID, fsm.ActionConfirmDownload))
	expectText(t, sender, "User not found")
	if len(sender.answered) != 1 {
		t.Errorf("callback must be answered once, got %d", len(sender.answered))
	}
}

func TestHandleUpdate_WrongStepButtons_Property(t *testing.T) {
	store := newTestStore(t)
	h, sender := newTestHandler(t, store, &fakeMembership{status: models.MembershipMember})
	h.HandleUpdate(context.Background(), nil, messageUpdate(testUserID, "/start"))

	rapid.Check(t, func(rt *rapid.T) {
		action := rapid.SampledFrom([]string{fsm.ActionConfirmChannelJoin, fsm.ActionConfirmFinal}).Draw(rt, "action")

		sender.reset()
		h.HandleUpdate(context.Background(), nil, callbackUpdate(testUserID, action))

		if !strings.Contains(sender.texts(), "You're not on") {
			rt.Fatalf("expected wrong step reply for %s, got %q", action, sender.texts())
		}
		progress, err := store.Get(context.Background(), testUserID)
		if err != nil {
			rt.Fatal(err)
		}
		if progress.CurrentStep != fsm.StepDownloadApp || progress.CompletedCount() != 0 {
			rt.Fatalf("wrong step button changed progress: %+v", progress)
		}
	})
}

func advanceTo(t *testing.T, store *db.ProgressRepository, step int) {
	t.Helper()
	ctx := context.Background()
	if _, err := store.Create(ctx, testUserID, "John", "john"); err != nil {
		t.Fatal(err)
	}
	changes := []models.StepChange{
		{Step: 1, Completed: true},
		{Step: 2, Completed: true, Platform: models.PlatformTwitter, Handle: "john_crypto"},
		{Step: 3, Completed: true, Platform: models.PlatformInstagram, Handle: "john.crypto"},
		{Step: 4, Completed: true},
		{Step: 5, Completed: true, WalletAddress: testAddress},
		{Step: 6, Completed: true},
	}
	for _, change := range changes[:step-1] {
		if err := store.ApplyStep(ctx, testUserID, change); err != nil {
			t.Fatal(err)
		}
	}
}

func TestHandleUpdate_ChannelMembershipFailures(t *testing.T) {
	tests := []struct {
		name       string
		membership *fakeMembership
		wantText   string
	}{
		{"not a member", &fakeMembership{status: models.MembershipNotMember}, "It may take a few seconds"},
		{"unknown status", &fakeMembership{status: models.MembershipUnknown}, "It may take a few seconds"},
		{"lookup error", &fakeMembership{err: errors.New("telegram down")}, "could not reach Telegram"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newTestStore(t)
			advanceTo(t, store, fsm.StepJoinChannel)
			h, sender := newTestHandler(t, store, tt.membership)

			h.HandleUpdate(context.Background(), nil, callbackUpdate(testUserID, fsm.ActionConfirmChannelJoin))

			expectText(t, sender, "Verification Failed")
			expectText(t, sender, tt.wantText)
			expectText(t, sender, "Step 4/6")
			expectStep(t, store, fsm.StepJoinChannel)
		})
	}
}

func TestHandleUpdate_InvalidInputKeepsStep(t *testing.T) {
	tests := []struct {
		name     string
		step     int
		text     string
		wantText string
	}{
		{"short twitter handle", fsm.StepFollowTwitter, "ab", "Invalid Twitter Username"},
		{"instagram bad chars", fsm.StepFollowInsta, "john-crypto", "Invalid Instagram Username"},
		{"short address", fsm.StepWalletAddress, "0x123", "Invalid BEP20 Address"},
		{"dead address", fsm.StepWalletAddress, "0x000000000000000000000000000000000000dEaD", "Cannot use zero or dead addresses"},
		{"text on button step", fsm.StepDownloadApp, "done", "You're currently on step 1"},
		{"text on final step", fsm.StepFinalConfirm, "finished", "You're currently on step 6"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newTestStore(t)
			advanceTo(t, store, tt.step)
			h, sender := newTestHandler(t, store, &fakeMembership{status: models.MembershipMember})

			h.HandleUpdate(context.Background(), nil, messageUpdate(testUserID, tt.text))

			expectText(t, sender, tt.wantText)
			expectStep(t, store, tt.step)
		})
	}
}

func TestHandleUpdate_StatusRechecksMembership(t *testing.T) {
	store := newTestStore(t)
	advanceTo(t, store, fsm.StepWalletAddress)
	membership := &fakeMembership{status: models.MembershipNotMember}
	h, sender := newTestHandler(t, store, membership)

	h.HandleUpdate(context.Background(), nil, messageUpdate(testUserID, "/status"))

	if membership.calls != 1 {
		t.Errorf("expected one live membership check, got %d", membership.calls)
	}
	expectText(t, sender, "Current Step:</b> 5/6")
	expectText(t, sender, "Telegram: ❌ Not Joined")
	expectText(t, sender, "Twitter: @john_crypto")
}

func TestHandleUpdate_StatusSkipsCheckBeforeChannelStep(t *testing.T) {
	store := newTestStore(t)
	advanceTo(t, store, fsm.StepFollowTwitter)
	membership := &fakeMembership{status: models.MembershipMember}
	h, sender := newTestHandler(t, store, membership)

	h.HandleUpdate(context.Background(), nil, callbackUpdate(testUserID, fsm.ActionShowStatus))

	if membership.calls != 0 {
		t.Errorf("membership must not be checked before step 4, got %d calls", membership.calls)
	}
	expectText(t, sender, "Twitter: Not provided")
}

func TestHandleUpdate_ResetCommand(t *testing.T) {
	store := newTestStore(t)
	advanceTo(t, store, fsm.StepFinalConfirm)
	if err := store.AppendScreenshot(context.Background(), testUserID, "file-1", "proof.png"); err != nil {
		t.Fatal(err)
	}
	h, sender := newTestHandler(t, store, &fakeMembership{})

	h.HandleUpdate(context.Background(), nil, messageUpdate(testUserID, "/reset"))

	expectText(t, sender, "completely reset")
	progress := expectStep(t, store, fsm.StepDownloadApp)
	if progress.WalletAddress != "" || len(progress.SocialHandles) != 0 {
		t.Errorf("reset left data behind: %+v", progress)
	}
	if len(progress.Screenshots) != 1 {
		t.Errorf("reset must keep screenshots, got %d", len(progress.Screenshots))
	}
}

func TestHandleUpdate_RestartButtonFromCompleted(t *testing.T) {
	store := newTestStore(t)
	advanceTo(t, store, fsm.StepComplete)
	h, sender := newTestHandler(t, store, &fakeMembership{})

	h.HandleUpdate(context.Background(), nil, callbackUpdate(testUserID, fsm.ActionRestart))

	expectText(t, sender, "Process restarted!")
	expectText(t, sender, "Step 1/6")
	expectStep(t, store, fsm.StepDownloadApp)
}

func TestHandleUpdate_InfoButtonsDoNotNeedRecord(t *testing.T) {
	for _, action := range []string{fsm.ActionTwitterInfo, fsm.ActionInstagramInfo, fsm.ActionAddressInfo, fsm.ActionHelp} {
		t.Run(action, func(t *testing.T) {
			h, sender := newTestHandler(t, newTestStore(t), &fakeMembership{})

			h.HandleUpdate(context.Background(), nil, callbackUpdate(testUserID, action))

			if len(sender.sent) != 1 {
				t.Fatalf("expected one info message, got %d", len(sender.sent))
			}
			if strings.Contains(sender.texts(), "User not found") {
				t.Errorf("info action %s must not require a record", action)
			}
		})
	}
}

func TestHandleUpdate_Screenshots(t *testing.T) {
	store := newTestStore(t)
	advanceTo(t, store, fsm.StepFollowTwitter)
	h, sender := newTestHandler(t, store, &fakeMembership{})

	photo := messageUpdate(testUserID, "")
	photo.Message.Photo = []tgmodels.PhotoSize{
		{FileID: "small", FileSize: 1024},
		{FileID: "large", FileSize: 4096},
	}
	h.HandleUpdate(context.Background(), nil, photo)
	expectText(t, sender, "Screenshot received")

	sender.reset()
	doc := messageUpdate(testUserID, "")
	doc.Message.Document = &tgmodels.Document{FileID: "doc-1", FileName: "notes.pdf", FileSize: 2048}
	h.HandleUpdate(context.Background(), nil, doc)
	expectText(t, sender, "Invalid file type")

	progress := expectStep(t, store, fsm.StepFollowTwitter)
	if len(progress.Screenshots) != 1 || progress.Screenshots[0].AssetID != "large" {
		t.Errorf("expected the largest photo to be stored once, got %+v", progress.Screenshots)
	}
}

func TestHandleUpdate_PanicNotifiesAdmin(t *testing.T) {
	store := newTestStore(t)
	h, sender := newTestHandler(t, panicStore{store}, &fakeMembership{})

	ctx := WithRequestID(context.Background(), "req-42")
	h.HandleUpdate(ctx, nil, messageUpdate(testUserID, "hello"))

	reports := sender.sentTo(testAdminID)
	if len(reports) != 1 {
		t.Fatalf("expected one admin report, got %d", len(reports))
	}
	if !strings.Contains(reports[0], "store exploded") || !strings.Contains(reports[0], "req-42") {
		t.Errorf("admin report misses panic details: %s", reports[0])
	}
}

func TestCommandOf(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"/start", "/start"},
		{"/START", "/start"},
		{"/start@minati_bot", "/start"},
		{"/user 42", "/user"},
		{"hello", ""},
		{"", ""},
		{"/", "/"},
	}
	for _, tt := range tests {
		if got := commandOf(tt.text); got != tt.want {
			t.Errorf("commandOf(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestStepKeyboard_SkipsMissingLinks(t *testing.T) {
	store := newTestStore(t)
	h, _ := newTestHandler(t, store, &fakeMembership{})
	h.links = Links{}

	for step := fsm.StepDownloadApp; step <= fsm.StepFinalConfirm; step++ {
		keyboard := h.stepKeyboard(step)
		last := keyboard.InlineKeyboard[len(keyboard.InlineKeyboard)-1]
		if last[0].CallbackData != fsm.ActionHelp {
			t.Errorf("step %d: last row must be the help button, got %+v", step, last)
		}
		for _, row := range keyboard.InlineKeyboard {
			for _, button := range row {
				if button.URL == "" && button.CallbackData == "" {
					t.Errorf("step %d: button %q has neither url nor callback", step, button.Text)
				}
			}
		}
	}
	if h.helpKeyboard() != nil {
		t.Error("help keyboard without links must be nil")
	}
}
