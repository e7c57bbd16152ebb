// Package app wires the stores, alert engine, channels and API server
// into a running process.
package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/carepulse/carepulse/internal/alerts"
	"github.com/carepulse/carepulse/internal/api"
	"github.com/carepulse/carepulse/internal/appointment"
	"github.com/carepulse/carepulse/internal/channels/discord"
	"github.com/carepulse/carepulse/internal/channels/telegram"
	"github.com/carepulse/carepulse/internal/circle"
	"github.com/carepulse/carepulse/internal/clock"
	"github.com/carepulse/carepulse/internal/config"
	"github.com/carepulse/carepulse/internal/digest"
	"github.com/carepulse/carepulse/internal/medicine"
	"github.com/carepulse/carepulse/internal/notify"
	"github.com/carepulse/carepulse/internal/prescription"
	"github.com/carepulse/carepulse/internal/store"
)

// App holds the long-lived pieces of a CarePulse process
type App struct {
	Config  *config.Config
	Store   *store.Store
	Logger  *zap.Logger
	Version string

	TelegramBot *telegram.Bot
	DiscordBot  *discord.Bot
	Engine      *alerts.Engine
	Digest      *digest.Digest
}

// multiSender fans the digest out to every configured channel
type multiSender []digest.Sender

func (m multiSender) SendDigest(text string) error {
	var firstErr error
	for _, s := range m {
		if err := s.SendDigest(text); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// New creates an App
func New(cfg *config.Config, st *store.Store, logger *zap.Logger, version string) *App {
	return &App{
		Config:  cfg,
		Store:   st,
		Logger:  logger,
		Version: version,
	}
}

// RunServer starts every component and blocks until SIGINT or SIGTERM
func (app *App) RunServer() {
	clk := clock.System{}

	circles := circle.NewStore(app.Store.DB(), app.Logger)
	medicines := medicine.NewStore(app.Store.DB(), app.Logger)
	appointments := appointment.NewStore(app.Store.DB(), app.Logger)

	feed := notify.NewFeed(
		medicine.NewSource(medicines, ""),
		appointment.NewSource(appointments, ""),
		app.Logger,
	)

	scanner := prescription.NewAPIScanner(app.Config.Scanner)
	prescriptions := prescription.NewService(scanner, app.Store.DB(), medicines, app.Logger)

	hub := api.NewHub(app.Logger)

	// The bots are created after the engine but before it starts, so
	// the closure sees the assigned values by the first tick.
	var (
		bot        *telegram.Bot
		discordBot *discord.Bot
	)
	app.Engine = alerts.NewEngine(medicines, appointments, clk, app.Logger, func(a alerts.Alert) {
		hub.Broadcast(a)
		if bot != nil {
			bot.Broadcast(a)
		}
		if discordBot != nil {
			discordBot.Broadcast(a)
		}
	}).
		WithInterval(time.Duration(app.Config.Alerts.IntervalSeconds) * time.Second).
		WithInitialDelay(time.Duration(app.Config.Alerts.InitialDelayMS) * time.Millisecond).
		WithCriticalStock(app.Config.Alerts.CriticalStock)

	bot, err := telegram.NewBot(telegram.Config{
		Token:     app.Config.Channels.Telegram.BotToken,
		Enabled:   app.Config.Channels.Telegram.Enabled,
		AllowList: app.Config.Channels.Telegram.AllowList,
	}, feed, app.Engine, medicines, prescriptions, app.Store, clk, app.Logger)
	if err != nil {
		app.Logger.Error("Failed to create Telegram bot", zap.Error(err))
		bot = nil
	} else {
		if err := bot.Start(); err != nil {
			app.Logger.Error("Failed to start Telegram bot", zap.Error(err))
		} else if bot.Enabled() {
			app.Logger.Info("Telegram bot started")
		}
		app.TelegramBot = bot
	}

	discordBot, err = discord.NewBot(discord.Config{
		Token:    app.Config.Channels.Discord.BotToken,
		Enabled:  app.Config.Channels.Discord.Enabled,
		GuildID:  app.Config.Channels.Discord.GuildID,
		Channels: app.Config.Channels.Discord.Channels,
		AllowDM:  app.Config.Channels.Discord.AllowDM,
	}, feed, app.Engine, medicines, clk, app.Logger)
	if err != nil {
		app.Logger.Error("Failed to create Discord bot", zap.Error(err))
		discordBot = nil
	} else {
		if err := discordBot.Start(); err != nil {
			app.Logger.Error("Failed to start Discord bot", zap.Error(err))
		} else if discordBot.Enabled() {
			app.Logger.Info("Discord bot started")
		}
		app.DiscordBot = discordBot
	}

	if app.Config.Digest.Enabled {
		var senders multiSender
		if bot != nil && bot.Enabled() {
			senders = append(senders, bot)
		}
		if discordBot != nil && discordBot.Enabled() {
			senders = append(senders, discordBot)
		}

		if len(senders) == 0 {
			app.Logger.Warn("Daily digest enabled but no delivery channel is configured")
		} else {
			app.Digest = digest.New(medicines, appointments, clk, senders, app.Logger, app.Config.Digest.Cron)
			if err := app.Digest.Start(); err != nil {
				app.Logger.Error("Failed to start daily digest", zap.Error(err))
				app.Digest = nil
			}
		}
	}

	if app.Config.Alerts.Enabled {
		if err := app.Engine.Start(context.Background()); err != nil {
			app.Logger.Error("Failed to start alert engine", zap.Error(err))
		}
	}

	server := api.New(app.Config, api.Deps{
		Store:         app.Store,
		Circles:       circles,
		Medicines:     medicines,
		Appointments:  appointments,
		Feed:          feed,
		Engine:        app.Engine,
		Prescriptions: prescriptions,
		Clock:         clk,
		Hub:           hub,
	}, app.Logger)

	go func() {
		if err := server.Start(); err != nil {
			app.Logger.Fatal("Server error", zap.Error(err))
		}
	}()

	app.Logger.Info("Server started",
		zap.String("address", app.Config.Server.Address),
		zap.Int("port", app.Config.Server.Port),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	app.Logger.Info("Shutting down...")

	if app.TelegramBot != nil {
		app.TelegramBot.Stop()
	}

	if app.DiscordBot != nil {
		if err := app.DiscordBot.Stop(); err != nil {
			app.Logger.Error("Discord bot shutdown error", zap.Error(err))
		}
	}

	if app.Digest != nil {
		app.Digest.Stop()
	}

	if app.Engine.IsRunning() {
		if err := app.Engine.Stop(); err != nil {
			app.Logger.Error("Alert engine shutdown error", zap.Error(err))
		}
	}

	if err := server.Shutdown(); err != nil {
		app.Logger.Error("Server shutdown error", zap.Error(err))
	}

	if err := app.Store.Close(); err != nil {
		app.Logger.Error("Store close error", zap.Error(err))
	}
}
