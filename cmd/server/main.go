package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/storage"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	tgbot "github.com/go-telegram/bot"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/duweku/backend/internal/audit"
	"github.com/duweku/backend/internal/bot"
	"github.com/duweku/backend/internal/config"
	"github.com/duweku/backend/internal/database"
	"github.com/duweku/backend/internal/handlers"
	"github.com/duweku/backend/internal/keyvault"
	"github.com/duweku/backend/internal/logger"
	mW "github.com/duweku/backend/internal/middleware"
	"github.com/duweku/backend/internal/services"
)

func main() {
	cfg := config.Load()

	base := logger.NewFromConfig(cfg.Log.Format, cfg.Log.Level)
	log.Logger = base
	ctx := logger.WithContext(context.Background(), base)

	db := database.InitDatabase(ctx)
	defer db.Close()

	redisClient := database.InitRedis(ctx)
	if redisClient != nil {
		defer redisClient.Close()
	}

	auditLogger := audit.NewLogger(base.With().Str("component", "audit").Logger())

	var decrypter services.Decrypter
	if vault, err := keyvault.New(cfg.AI.EncryptionSecret, "", 0); err != nil {
		base.Warn().Err(err).Msg("Key vault disabled; byok users will be asked for a key")
	} else {
		decrypter = vault
	}

	transactionService := services.NewTransactionService(db)
	ledgerService := services.NewLedgerService(db, auditLogger)
	accountService := services.NewAccountService(db, auditLogger)
	userService := services.NewUserService(db)
	linkService := services.NewLinkService(cfg.JWT.SecretKey, cfg.Telegram.BotUsername, redisClient)
	dialogService := services.NewDialogService(redisClient, cfg.Dialog.TTL)
	dedupService := services.NewDedupService(cfg.Dedup.Backend, db, redisClient, cfg.Dedup.Capacity, cfg.Dedup.TTL)
	extractionService := services.NewExtractionService(
		services.NewProvider(cfg.AI.Provider, cfg.AI.GeminiModel, cfg.AI.ClaudeModel),
		services.NewAIKeyService(cfg.AI.GlobalAPIKey, decrypter),
		services.NewAILogService(db),
		cfg.AI.Timeout,
	)

	var storageClient *storage.Client
	if cfg.Storage.ReceiptBucket != "" {
		client, err := storage.NewClient(ctx)
		if err != nil {
			base.Warn().Err(err).Msg("Receipt archive disabled")
		} else {
			storageClient = client
			defer storageClient.Close()
		}
	}
	receiptService := services.NewReceiptService(storageClient, cfg.Storage.ReceiptBucket)

	voiceService := services.NewVoiceService(ctx, cfg.Speech.Enabled, cfg.Speech.LanguageCode)
	defer voiceService.Close()

	tg, err := tgbot.New(cfg.Telegram.BotToken, tgbot.WithSkipGetMe())
	if err != nil {
		base.Fatal().Err(err).Msg("Failed to create Telegram client")
	}

	orchestrator := bot.NewOrchestrator(tg, bot.Deps{
		Users:      userService,
		Links:      linkService,
		Accounts:   accountService,
		Staging:    transactionService,
		Settlement: ledgerService,
		Extractor:  extractionService,
		Dialogs:    dialogService,
		Dedup:      dedupService,
		Voice:      voiceService,
		Receipts:   receiptService,
	}, cfg.Telegram.BotUsername)

	webhookHandler := handlers.NewWebhookHandler(orchestrator, cfg.Telegram.WebhookSecret)
	linkHandler := handlers.NewLinkHandler(linkService)

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(mW.RequestLogger(base))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(cfg.Server.RequestTimeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	r.Post("/telegram/webhook", webhookHandler.HandleUpdate)

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware(cfg.JWT.SecretKey))

			r.Get("/telegram/link", linkHandler.TelegramLink)
		})
	})

	pruneCtx, stopPrune := context.WithCancel(ctx)
	defer stopPrune()
	go pruneProcessedUpdates(pruneCtx, dedupService, base)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		base.Info().
			Str("port", cfg.Server.Port).
			Str("dedup_backend", dedupService.Backend()).
			Bool("voice", voiceService.Available()).
			Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			base.Fatal().Err(err).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	base.Info().Msg("Server shutting down...")
	stopPrune()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		base.Error().Err(err).Msg("Server forced to shutdown")
	}

	base.Info().Msg("Server stopped")
}

// pruneProcessedUpdates drops dedup rows older than the dedup TTL once an hour.
func pruneProcessedUpdates(ctx context.Context, dedup *services.DedupService, lg zerolog.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := dedup.Prune(ctx)
			if err != nil {
				lg.Warn().Err(err).Msg("Failed to prune processed updates")
				continue
			}
			if n > 0 {
				lg.Info().Int64("rows", n).Msg("Pruned processed updates")
			}
		}
	}
}
