package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Semhkaramn/msharleyrandy/internal/api"
	"github.com/Semhkaramn/msharleyrandy/internal/config"
	"github.com/Semhkaramn/msharleyrandy/internal/handlers"
	"github.com/Semhkaramn/msharleyrandy/internal/repository/postgres"
	"github.com/Semhkaramn/msharleyrandy/internal/service"
	"github.com/Semhkaramn/msharleyrandy/internal/telegram"
	"github.com/Semhkaramn/msharleyrandy/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	l := logger.New(cfg.LogLevel)
	l.Info("Starting RandyBot...")

	// Database
	db, err := config.NewDatabase(cfg.DatabaseURL, l)
	if err != nil {
		l.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Run migrations
	if err := db.Migrate("migrations"); err != nil {
		l.Fatalf("Failed to run migrations: %v", err)
	}

	// Telegram bot
	bot, err := telegram.NewBot(cfg.TelegramToken, l)
	if err != nil {
		l.Fatalf("Failed to create Telegram bot: %v", err)
	}

	// Repositories
	groupRepo := postgres.NewGroupRepository(db.DB)
	adminRepo := postgres.NewAdminRepository(db.DB)
	counterRepo := postgres.NewCounterRepository(db.DB)
	draftRepo := postgres.NewDraftRepository(db.DB)
	raffleRepo := postgres.NewRaffleRepository(db.DB)
	participantRepo := postgres.NewParticipantRepository(db.DB)
	rollRepo := postgres.NewRollRepository(db.DB)

	// Service layer
	svc := service.New(db.DB, l, cfg.Location(), cfg.AdminCacheTTL,
		telegram.NewMembershipOracle(bot),
		groupRepo, adminRepo, counterRepo,
		draftRepo, raffleRepo, participantRepo, rollRepo,
	)

	// Plain group messages feed the counter, roll and raffle pipelines
	bot.OnGroupMessage(handlers.NewMessagePipeline(svc, l))

	// Generic handlers
	bot.RegisterCommand("start", handlers.NewStartHandler(svc, l))
	bot.RegisterCommand("help", handlers.NewHelpHandler(l))

	// Stats handlers
	bot.RegisterCommand("mymessages", handlers.NewMyMessagesHandler(svc, l))
	bot.RegisterCommand("stats", handlers.NewStatsHandler(svc, l))

	// Raffle handlers
	bot.RegisterCommand("newrandy", handlers.NewDraftNewHandler(svc, l))
	bot.RegisterCommand("randytitle", handlers.NewDraftFieldHandler(svc, l, "title"))
	bot.RegisterCommand("randytext", handlers.NewDraftFieldHandler(svc, l, "text"))
	bot.RegisterCommand("randymedia", handlers.NewDraftFieldHandler(svc, l, "media"))
	bot.RegisterCommand("randyreq", handlers.NewDraftFieldHandler(svc, l, "requirement"))
	bot.RegisterCommand("randywinners", handlers.NewDraftFieldHandler(svc, l, "winners"))
	bot.RegisterCommand("randypin", handlers.NewDraftFieldHandler(svc, l, "pin"))
	bot.RegisterCommand("randychannel", handlers.NewDraftChannelHandler(svc, l))
	bot.RegisterCommand("randyinfo", handlers.NewDraftInfoHandler(svc, l))
	bot.RegisterCommand("randy", handlers.NewRandyPublishHandler(svc, l))
	bot.RegisterCommand("wrandy", handlers.NewRandyWinnersHandler(svc, l))
	bot.RegisterCommand("urandy", handlers.NewRandyFinishHandler(svc, l))
	bot.RegisterCallback(handlers.JoinCallbackPrefix, handlers.NewJoinCallbackHandler(svc, l))

	// Roll handlers
	bot.RegisterCommand("roll", handlers.NewRollStartHandler(svc, l, cfg.DefaultRollDuration))
	bot.RegisterCommand("saveroll", handlers.NewRollSaveHandler(svc, l))
	bot.RegisterCommand("breakroll", handlers.NewRollBreakHandler(svc, l))
	bot.RegisterCommand("resumeroll", handlers.NewRollResumeHandler(svc, l))
	bot.RegisterCommand("lockroll", handlers.NewRollLockHandler(svc, l))
	bot.RegisterCommand("unlockroll", handlers.NewRollUnlockHandler(svc, l))
	bot.RegisterCommand("stoproll", handlers.NewRollStopHandler(svc, l))
	bot.RegisterCommand("rolllist", handlers.NewRollListHandler(svc, l))

	// Tagging handlers
	bot.RegisterCommand("tag", handlers.NewTagHandler(svc, l))
	bot.RegisterCommand("greet", handlers.NewGreetHandler(svc, l))
	bot.RegisterCommand("stoptag", handlers.NewStopTagHandler(svc, l))

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		l.Info("Received shutdown signal...")
		cancel()
	}()

	// Start HTTP server for health, metrics and the read-only views
	apiServer := api.NewServer(svc, l)
	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: apiServer.Handler(),
	}

	go func() {
		l.Infof("HTTP server listening on :%s", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			l.Errorf("HTTP server error: %v", err)
		}
	}()

	// Start Telegram bot polling
	go func() {
		if err := bot.Start(ctx); err != nil {
			l.Errorf("Bot error: %v", err)
		}
	}()

	l.Info("RandyBot started successfully")

	<-ctx.Done()

	l.Info("Shutting down HTTP server...")
	httpServer.Close()

	l.Info("RandyBot stopped")
}
