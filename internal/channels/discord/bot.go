// Package discord posts alerts and digests into configured Discord
// channels.
package discord

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/carepulse/carepulse/internal/alerts"
	"github.com/carepulse/carepulse/internal/clock"
	"github.com/carepulse/carepulse/internal/medicine"
	"github.com/carepulse/carepulse/internal/metrics"
	"github.com/carepulse/carepulse/internal/notify"
)

// Config holds Discord bot configuration
type Config struct {
	Token    string
	Enabled  bool
	GuildID  string   // Optional: restrict to specific server
	Channels []string // Channel IDs alerts are posted into
	AllowDM  bool     // Answer commands in direct messages
}

// Bot posts alerts into the configured channels and answers care
// commands on mention or DM
type Bot struct {
	session   *discordgo.Session
	feed      *notify.Feed
	engine    *alerts.Engine
	medicines *medicine.Store
	clk       clock.Clock
	config    Config
	logger    *zap.Logger
	enabled   bool
}

// NewBot creates a new Discord bot
func NewBot(cfg Config, feed *notify.Feed, engine *alerts.Engine, medicines *medicine.Store, clk clock.Clock, logger *zap.Logger) (*Bot, error) {
	if !cfg.Enabled || cfg.Token == "" {
		return &Bot{enabled: false}, nil
	}

	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}

	bot := &Bot{
		session:   session,
		feed:      feed,
		engine:    engine,
		medicines: medicines,
		clk:       clk,
		config:    cfg,
		logger:    logger,
		enabled:   true,
	}

	session.AddHandler(bot.messageCreate)
	session.AddHandler(bot.ready)

	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentMessageContent

	return bot, nil
}

// Enabled reports whether the bot is active
func (b *Bot) Enabled() bool {
	return b.enabled
}

// Start starts the Discord bot
func (b *Bot) Start() error {
	if !b.enabled {
		return nil
	}

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord connection: %w", err)
	}

	return nil
}

// Stop stops the Discord bot
func (b *Bot) Stop() error {
	if !b.enabled {
		return nil
	}
	return b.session.Close()
}

// Broadcast posts an alert into every configured channel
func (b *Bot) Broadcast(alert alerts.Alert) {
	if !b.enabled {
		return
	}

	icon := "⚠️"
	if alert.Severity == "info" {
		icon = "ℹ️"
	}
	text := fmt.Sprintf("%s **%s**\n%s", icon, alert.Title, alert.Message)

	for _, channelID := range b.config.Channels {
		if _, err := b.session.ChannelMessageSend(channelID, text); err != nil {
			b.logger.Warn("Failed to deliver alert",
				zap.String("channel_id", channelID),
				zap.Error(err))
			continue
		}
		metrics.RecordChannelSend("discord")
	}
}

// SendDigest posts the daily digest into every configured channel
func (b *Bot) SendDigest(text string) error {
	if !b.enabled {
		return nil
	}

	var firstErr error
	for _, channelID := range b.config.Channels {
		if _, err := b.sendLong(channelID, text); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		metrics.RecordChannelSend("discord")
	}
	return firstErr
}

func (b *Bot) ready(s *discordgo.Session, event *discordgo.Ready) {
	b.logger.Info("Discord bot ready",
		zap.String("username", s.State.User.Username),
		zap.Int("guilds", len(event.Guilds)))
}

func (b *Bot) messageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author.ID == s.State.User.ID {
		return
	}

	isDM := m.GuildID == ""
	if isDM && !b.config.AllowDM {
		return
	}
	if b.config.GuildID != "" && m.GuildID != "" && m.GuildID != b.config.GuildID {
		return
	}

	isMentioned := false
	for _, mention := range m.Mentions {
		if mention.ID == s.State.User.ID {
			isMentioned = true
			break
		}
	}
	if !isDM && !isMentioned {
		return
	}

	content := m.Content
	if isMentioned {
		content = strings.ReplaceAll(content, "<@"+s.State.User.ID+">", "")
		content = strings.ReplaceAll(content, "<@!"+s.State.User.ID+">", "")
		content = strings.TrimSpace(content)
	}

	if strings.HasPrefix(content, "/") {
		b.handleCommand(s, m, content)
	}
}

func (b *Bot) handleCommand(s *discordgo.Session, m *discordgo.MessageCreate, cmd string) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return
	}

	switch parts[0] {
	case "/help":
		s.ChannelMessageSend(m.ChannelID, `**CarePulse**

Commands:
• /help - Show this help
• /status - Notification summary
• /meds - Medicines and stock levels
• /take <name> - Record a dose now`)

	case "/status":
		now := b.clk.Now()
		items := b.feed.All(now)

		var sb strings.Builder
		fmt.Fprintf(&sb, "%s! It is %s.\n", clock.Greeting(now), clock.DisplayClock(now))
		if len(items) == 0 {
			sb.WriteString("Nothing needs attention right now. ✅")
		} else {
			fmt.Fprintf(&sb, "%d items need attention:\n", len(items))
			for _, n := range items {
				fmt.Fprintf(&sb, "• %s\n", n.Message)
			}
		}
		b.sendLong(m.ChannelID, sb.String())

	case "/meds":
		meds, err := b.medicines.List("")
		if err != nil {
			s.ChannelMessageSend(m.ChannelID, "❌ Could not load medicines.")
			return
		}
		if len(meds) == 0 {
			s.ChannelMessageSend(m.ChannelID, "No medicines on file yet.")
			return
		}

		var sb strings.Builder
		sb.WriteString("**Medicines:**\n")
		for i := range meds {
			med := &meds[i]
			fmt.Fprintf(&sb, "• %s %s (%s) — %d pills", med.Name, med.Dosage, med.Schedule, med.PillsRemaining)
			if medicine.IsLowStock(med) {
				sb.WriteString(" ⚠️")
			}
			sb.WriteString("\n")
		}
		b.sendLong(m.ChannelID, sb.String())

	case "/take":
		name := strings.TrimSpace(strings.TrimPrefix(cmd, "/take"))
		if name == "" {
			s.ChannelMessageSend(m.ChannelID, "Usage: /take <medicine name>")
			return
		}

		meds, err := b.medicines.List("")
		if err != nil {
			s.ChannelMessageSend(m.ChannelID, "❌ Could not load medicines.")
			return
		}
		for i := range meds {
			if strings.EqualFold(meds[i].Name, name) {
				if b.engine.TakeNow(meds[i].ID) {
					s.ChannelMessageSend(m.ChannelID, fmt.Sprintf("✅ %s recorded as taken.", meds[i].Name))
				} else {
					s.ChannelMessageSend(m.ChannelID, fmt.Sprintf("❌ Could not record %s right now.", meds[i].Name))
				}
				return
			}
		}
		s.ChannelMessageSend(m.ChannelID, fmt.Sprintf("❓ No medicine named %q. Use /meds to see the list.", name))

	default:
		s.ChannelMessageSend(m.ChannelID, "❓ Unknown command. Use /help for available commands.")
	}
}

// sendLong splits messages over Discord's 2000 character limit
func (b *Bot) sendLong(channelID, text string) (*discordgo.Message, error) {
	const maxLen = 2000

	if len(text) <= maxLen {
		return b.session.ChannelMessageSend(channelID, text)
	}

	var (
		last *discordgo.Message
		err  error
	)
	for _, part := range splitMessage(text, maxLen) {
		last, err = b.session.ChannelMessageSend(channelID, part)
		if err != nil {
			return nil, err
		}
		time.Sleep(100 * time.Millisecond)
	}
	return last, nil
}

// splitMessage splits a message into chunks under max length
func splitMessage(text string, maxLen int) []string {
	var parts []string
	lines := strings.Split(text, "\n")
	var current strings.Builder

	for _, line := range lines {
		if current.Len()+len(line)+1 > maxLen {
			if current.Len() > 0 {
				parts = append(parts, current.String())
				current.Reset()
			}
		}
		if current.Len() > 0 {
			current.WriteString("\n")
		}
		current.WriteString(line)
	}

	if current.Len() > 0 {
		parts = append(parts, current.String())
	}

	return parts
}
