package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	tele "gopkg.in/telebot.v3"

	"ticketline/internal/bot"
	"ticketline/internal/broadcast"
	"ticketline/internal/config"
	"ticketline/internal/database/boltstore"
	"ticketline/internal/database/gormstore"
	"ticketline/internal/directory"
	"ticketline/internal/guard"
	"ticketline/internal/mirror"
	"ticketline/internal/moderation"
	"ticketline/internal/review"
	"ticketline/internal/ticket"
	"ticketline/internal/tracing"
	"ticketline/internal/transport/telegram"
)

func main() {
	// Local development convenience; missing .env is fine
	_ = godotenv.Load()

	// Configure zerolog
	// Set log level from environment (default: info)
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	// Use pretty console logging in development, JSON in production
	if os.Getenv("LOG_FORMAT") == "json" {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	}

	log.Info().Msg("Starting ticketline")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := tracing.Init(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize tracing")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Tracer shutdown failed")
		}
	}()

	store, err := gormstore.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("Failed to open database")
	}
	defer store.Close()
	log.Info().Str("path", cfg.DBPath).Msg("Database opened")

	stateStore, err := boltstore.Open(boltstore.Options{Path: cfg.StateDBPath})
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.StateDBPath).Msg("Failed to open state database")
	}
	defer stateStore.Close()
	log.Info().Str("path", cfg.StateDBPath).Msg("State database opened")

	var m mirror.Mirror = mirror.Disabled{}
	if cfg.MirrorDSN != "" {
		pg, err := mirror.OpenPostgres(cfg.MirrorDSN)
		if err != nil {
			// The mirror is best-effort; never hold up the bot for it
			log.Error().Err(err).Msg("Failed to connect mirror, continuing without it")
		} else {
			m = pg
			log.Info().Msg("Mirror connected")
		}
	}

	access, err := moderation.NewAccess(cfg.StaffConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load staff config")
	}

	tb, err := tele.NewBot(tele.Settings{
		Token:  cfg.BotToken,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Telegram")
	}

	transport := telegram.New(tb, cfg.AdminGroupID)
	dir := directory.NewService(store, m)
	gate := guard.NewFilter(dir)
	router := ticket.NewRouter(dir, transport)
	mod := moderation.NewEngine(dir, transport)
	caster := broadcast.NewEngine(dir, transport, cfg.BroadcastPerSecond)
	reviews := review.NewService(store, m)

	app := bot.New(ctx, tb, bot.Deps{
		Config:        cfg,
		Access:        access,
		Gate:          gate,
		Directory:     dir,
		Router:        router,
		Moderation:    mod,
		Broadcast:     caster,
		Reviews:       reviews,
		Conversations: stateStore.ConversationStore(),
		Store:         store,
		Transport:     transport,
	})

	metricsSrv := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: promhttp.Handler(),
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		app.Start()
		return nil
	})

	g.Go(func() error {
		log.Info().Str("address", cfg.MetricsAddr).Msg("Starting metrics server")
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("Shutting down")
		app.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("Server exited with error")
	}
	log.Info().Msg("Goodbye")
}
