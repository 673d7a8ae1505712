package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ad/go-telegram-onboarding/internal/config"
	"github.com/ad/go-telegram-onboarding/internal/db"
	"github.com/ad/go-telegram-onboarding/internal/handlers"
	"github.com/ad/go-telegram-onboarding/internal/httpapi"
	"github.com/ad/go-telegram-onboarding/internal/services"
	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	"github.com/google/uuid"
	_ "github.com/joho/godotenv/autoload"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.ValidateBot(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	openCtx, openCancel := context.WithTimeout(ctx, 30*time.Second)
	store, closeStore, err := db.Open(openCtx, cfg.StoreOptions())
	openCancel()
	if err != nil {
		log.Fatalf("Failed to open %s store: %v", cfg.StoreDriver, err)
	}
	defer closeStore()

	httpClient := &http.Client{
		Timeout: 30 * time.Second,
	}

	b, err := bot.New(cfg.BotToken, bot.WithHTTPClient(15*time.Second, httpClient))
	if err != nil {
		log.Fatalf("Failed to create bot: %v", err)
	}

	// Retry getMe with shorter timeout
	var botInfo *tgmodels.User
	for i := 0; i < 3; i++ {
		log.Printf("Attempting to connect to Telegram API (attempt %d/3)...", i+1)
		getMeCtx, getMeCancel := context.WithTimeout(ctx, 10*time.Second)
		botInfo, err = b.GetMe(getMeCtx)
		getMeCancel()
		if err == nil {
			log.Printf("Successfully connected to Telegram API as @%s", botInfo.Username)
			break
		}
		log.Printf("Failed to get bot info (attempt %d/3): %v", i+1, err)
		if i < 2 {
			log.Printf("Retrying in 2 seconds...")
			time.Sleep(2 * time.Second)
		}
	}
	if err != nil {
		log.Fatalf("Failed to get bot info after 3 attempts: %v", err)
	}

	errorManager := services.NewErrorManager(b, cfg.AdminID)
	msgManager := services.NewMessageManager(b, errorManager)
	machine := services.NewStepMachine(
		store,
		services.NewChannelVerifier(b),
		services.NewSocialFollowVerifier(),
		services.StepMachineOptions{
			Channel:           cfg.RequiredChannel,
			MembershipTimeout: cfg.MembershipTimeout,
		},
	)

	handler := handlers.NewBotHandler(machine, msgManager, errorManager, handlers.Settings{
		AdminID:      cfg.AdminID,
		CustomerCare: cfg.CustomerCareUsername,
		EventTimeout: cfg.EventTimeout,
		Links: handlers.Links{
			AppDownload: cfg.AppDownloadURL,
			Twitter:     cfg.TwitterURL,
			Instagram:   cfg.InstagramURL,
			Channel:     cfg.ChannelURL,
			Website:     cfg.WebsiteURL,
		},
	})

	b.RegisterHandlerMatchFunc(func(update *tgmodels.Update) bool {
		return true
	}, handler.HandleUpdate, logMiddleware)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Printf("Bot started. Admin ID: %d, store: %s, channel: %s", cfg.AdminID, cfg.StoreDriver, cfg.RequiredChannel)
		b.Start(gctx)
		return nil
	})

	if cfg.HTTPAddr != "" {
		server := httpapi.NewServer(cfg.HTTPAddr, httpapi.NewRouter(machine, httpapi.Options{
			AllowedOrigins: cfg.HTTPCORSOrigins,
		}))

		g.Go(func() error {
			log.Printf("[HTTP] Listening on %s", cfg.HTTPAddr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil {
		log.Printf("Stopped with error: %v", err)
		return
	}
	log.Printf("Bot stopped")
}

func formatUser(u tgmodels.User) string {
	name := u.FirstName
	if u.LastName != "" {
		name += " " + u.LastName
	}
	if u.Username != "" {
		name += " @" + u.Username
	}
	return fmt.Sprintf("%s [%d]", name, u.ID)
}

// logMiddleware tags every update with a request id and logs where it came from.
func logMiddleware(next bot.HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *tgmodels.Update) {
		requestID := uuid.NewString()
		ctx = handlers.WithRequestID(ctx, requestID)

		if update.Message != nil && update.Message.From != nil {
			log.Printf("[MSG] id=%s from=%s text=%q", requestID, formatUser(*update.Message.From), update.Message.Text)
		}
		if update.CallbackQuery != nil {
			log.Printf("[CALLBACK] id=%s from=%s data=%q", requestID, formatUser(update.CallbackQuery.From), update.CallbackQuery.Data)
		}
		next(ctx, b, update)
	}
}
