package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pathakanu/billcal/internal/api"
	"github.com/pathakanu/billcal/internal/bills"
	"github.com/pathakanu/billcal/internal/bot"
	"github.com/pathakanu/billcal/internal/calendar"
	"github.com/pathakanu/billcal/internal/checkin"
	"github.com/pathakanu/billcal/internal/config"
	"github.com/pathakanu/billcal/internal/database"
	"github.com/pathakanu/billcal/internal/goals"
	"github.com/pathakanu/billcal/internal/notify"
	myopenai "github.com/pathakanu/billcal/internal/openai"
	"github.com/pathakanu/billcal/internal/session"
	"github.com/pathakanu/billcal/internal/store"
	"github.com/pathakanu/billcal/internal/twilio"
)

func main() {
	logger := log.New(os.Stdout, "[billcal] ", log.LstdFlags|log.Lshortfile)
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	if cfg.AuthJWTSecret == "" {
		logger.Println("AUTH_JWT_SECRET is not set; every /api request will be rejected")
	}

	db, err := database.New(cfg.DatabaseURL, cfg.SQLitePath)
	if err != nil {
		logger.Fatalf("database init failed: %v", err)
	}
	st := store.New(db)

	assistantClient := myopenai.New(cfg.AssistantAPIKey, cfg.AssistantModel, cfg.AssistantBaseURL)
	if !assistantClient.Configured() {
		logger.Println("assistant API key not configured; chat replies will ask for one")
	}
	assistant := checkin.NewService(checkin.Stores{
		Chat:     st.Chat,
		Bills:    st.Bills,
		Goals:    st.Goals,
		CheckIns: st.CheckIns,
	}, assistantClient, logger)

	var notifier notify.Notifier = notify.LogNotifier{Logger: logger}
	if cfg.TwilioConfigured() {
		notifier = twilio.New(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioWhatsAppNumber, logger)
	}
	scheduler := notify.NewScheduler(st.Bills, st.Subscriptions, notifier, cfg.LocalTimezone, logger)
	if err := scheduler.Start(cfg.NotifyCron); err != nil {
		logger.Fatalf("scheduler start: %v", err)
	}

	var webhook http.Handler
	if cfg.TwilioConfigured() {
		whatsApp := bot.New(bot.Deps{
			Subscriptions: st.Subscriptions,
			Assistant:     assistant,
			Bills:         st.Bills,
			Goals:         st.Goals,
			Permissions:   scheduler,
			Signatures:    twilio.NewValidator(cfg.TwilioAuthToken, cfg.TwilioWebhookURL),
		}, cfg.LocalTimezone, logger)
		webhook = whatsApp.Handler()
	} else {
		logger.Println("Twilio not configured; WhatsApp webhook disabled")
	}

	srv := api.NewServer(api.Services{
		Calendar:      calendar.NewService(st.Bills),
		Editor:        bills.NewEditor(st.Bills),
		Goals:         goals.NewTracker(st.Goals),
		Assistant:     assistant,
		Scheduler:     scheduler,
		Subscriptions: st.Subscriptions,
		Webhook:       webhook,
	}, session.NewVerifier(cfg.AuthJWTSecret, cfg.LocalTimezone), logger)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Printf("server starting on :%s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server error: %v", err)
		}
	}()

	waitForShutdown(server, scheduler, logger)
}

func waitForShutdown(server *http.Server, scheduler *notify.Scheduler, logger *log.Logger) {
	stopCtx := make(chan os.Signal, 1)
	signal.Notify(stopCtx, syscall.SIGINT, syscall.SIGTERM)
	<-stopCtx
	logger.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Printf("server shutdown error: %v", err)
	}
	scheduler.Stop()
}
