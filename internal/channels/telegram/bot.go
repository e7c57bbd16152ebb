// Package telegram delivers alerts and digests to caregivers over a
// Telegram bot.
package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/carepulse/carepulse/internal/alerts"
	"github.com/carepulse/carepulse/internal/clock"
	"github.com/carepulse/carepulse/internal/medicine"
	"github.com/carepulse/carepulse/internal/metrics"
	"github.com/carepulse/carepulse/internal/notify"
	"github.com/carepulse/carepulse/internal/prescription"
	"github.com/carepulse/carepulse/internal/store"
)

const subscribersKey = "telegram:subscribers"

// Config holds Telegram bot configuration
type Config struct {
	Token     string
	Enabled   bool
	AllowList []int64 // Allowed user IDs (empty = allow all)
}

// Bot pushes alerts to subscribed chats and answers care commands
type Bot struct {
	api           *tgbotapi.BotAPI
	feed          *notify.Feed
	engine        *alerts.Engine
	medicines     *medicine.Store
	prescriptions *prescription.Service
	store         *store.Store
	clk           clock.Clock
	logger        *zap.Logger
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	enabled       bool
	allowList     map[int64]bool

	subMu       sync.RWMutex
	subscribers map[int64]bool
}

// NewBot creates a new Telegram bot
func NewBot(cfg Config, feed *notify.Feed, engine *alerts.Engine, medicines *medicine.Store, prescriptions *prescription.Service, st *store.Store, clk clock.Clock, logger *zap.Logger) (*Bot, error) {
	if !cfg.Enabled || cfg.Token == "" {
		return &Bot{enabled: false}, nil
	}

	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	api.Debug = false

	ctx, cancel := context.WithCancel(context.Background())

	allowList := make(map[int64]bool)
	for _, id := range cfg.AllowList {
		allowList[id] = true
	}

	b := &Bot{
		api:           api,
		feed:          feed,
		engine:        engine,
		medicines:     medicines,
		prescriptions: prescriptions,
		store:         st,
		clk:           clk,
		logger:        logger,
		ctx:           ctx,
		cancel:        cancel,
		enabled:       true,
		allowList:     allowList,
		subscribers:   make(map[int64]bool),
	}
	b.loadSubscribers()

	logger.Info("Telegram bot authorized", zap.String("username", api.Self.UserName))
	return b, nil
}

// Enabled reports whether the bot is active
func (b *Bot) Enabled() bool {
	return b.enabled
}

// Start starts the bot
func (b *Bot) Start() error {
	if !b.enabled {
		return nil
	}

	b.wg.Add(1)
	go b.run()

	return nil
}

// Stop stops the bot
func (b *Bot) Stop() {
	if !b.enabled {
		return
	}

	b.cancel()
	b.wg.Wait()
}

// Broadcast pushes an alert to every subscribed chat
func (b *Bot) Broadcast(alert alerts.Alert) {
	if !b.enabled {
		return
	}

	icon := "⚠️"
	if alert.Severity == "info" {
		icon = "ℹ️"
	}
	text := fmt.Sprintf("%s *%s*\n%s", icon, alert.Title, alert.Message)

	for _, chatID := range b.subscriberIDs() {
		if _, err := b.sendMessage(chatID, text); err != nil {
			b.logger.Warn("Failed to deliver alert",
				zap.Int64("chat_id", chatID),
				zap.Error(err))
			continue
		}
		metrics.RecordChannelSend("telegram")
	}
}

// SendDigest pushes the daily digest to every subscribed chat
func (b *Bot) SendDigest(text string) error {
	if !b.enabled {
		return nil
	}

	var firstErr error
	for _, chatID := range b.subscriberIDs() {
		if _, err := b.sendMessage(chatID, text); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		metrics.RecordChannelSend("telegram")
	}
	return firstErr
}

func (b *Bot) run() {
	defer b.wg.Done()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-b.ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if err := b.handleUpdate(update); err != nil {
				b.logger.Error("Failed to handle update", zap.Error(err))
			}
		}
	}
}

func (b *Bot) handleUpdate(update tgbotapi.Update) error {
	if update.Message == nil {
		return nil
	}

	msg := update.Message

	if len(b.allowList) > 0 && !b.allowList[msg.From.ID] {
		b.sendMessage(msg.Chat.ID, "⛔ You are not authorized to use this bot.")
		return nil
	}

	if msg.IsCommand() {
		return b.handleCommand(msg)
	}

	if len(msg.Photo) > 0 {
		return b.handlePrescriptionPhoto(msg)
	}

	return nil
}

func (b *Bot) handleCommand(msg *tgbotapi.Message) error {
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start":
		b.subscribe(chatID)
		_, err := b.sendMessage(chatID, `💊 *CarePulse*

You are subscribed to care alerts:

• Missed medicine popups
• Low stock warnings
• Appointment reminders
• The daily schedule digest

Send a photo of a prescription to import its medicines.
Use /help for commands.`)
		return err

	case "help":
		_, err := b.sendMessage(chatID, `*Available Commands:*

/start - Subscribe to alerts
/stop - Unsubscribe
/status - Notification summary
/meds - Medicines and stock levels
/take <name> - Record a dose now`)
		return err

	case "stop":
		b.unsubscribe(chatID)
		_, err := b.sendMessage(chatID, "🔕 Unsubscribed. Use /start to resume alerts.")
		return err

	case "status":
		return b.handleStatus(chatID)

	case "meds":
		return b.handleMeds(chatID)

	case "take":
		return b.handleTake(chatID, strings.TrimSpace(msg.CommandArguments()))

	default:
		_, err := b.sendMessage(chatID, "❓ Unknown command. Use /help for available commands.")
		return err
	}
}

func (b *Bot) handleStatus(chatID int64) error {
	now := b.clk.Now()
	items := b.feed.All(now)

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s! It is %s.\n", clock.Greeting(now), clock.DisplayClock(now))

	if len(items) == 0 {
		sb.WriteString("\nNothing needs attention right now. ✅")
	} else {
		fmt.Fprintf(&sb, "\n%d items need attention:\n", len(items))
		for _, n := range items {
			fmt.Fprintf(&sb, "  • %s\n", n.Message)
		}
	}

	_, err := b.sendMessage(chatID, sb.String())
	return err
}

func (b *Bot) handleMeds(chatID int64) error {
	meds, err := b.medicines.List("")
	if err != nil {
		_, sendErr := b.sendMessage(chatID, "❌ Could not load medicines.")
		if sendErr != nil {
			return sendErr
		}
		return err
	}

	if len(meds) == 0 {
		_, err := b.sendMessage(chatID, "No medicines on file yet. Send a prescription photo to import some.")
		return err
	}

	var sb strings.Builder
	sb.WriteString("*Medicines:*\n")
	for i := range meds {
		m := &meds[i]
		fmt.Fprintf(&sb, "  • %s %s (%s) — %d pills", m.Name, m.Dosage, m.Schedule, m.PillsRemaining)
		if medicine.IsLowStock(m) {
			sb.WriteString(" ⚠️")
		}
		sb.WriteString("\n")
	}

	_, err = b.sendMessage(chatID, sb.String())
	return err
}

func (b *Bot) handleTake(chatID int64, name string) error {
	if name == "" {
		_, err := b.sendMessage(chatID, "Usage: /take <medicine name>")
		return err
	}

	meds, err := b.medicines.List("")
	if err != nil {
		_, sendErr := b.sendMessage(chatID, "❌ Could not load medicines.")
		if sendErr != nil {
			return sendErr
		}
		return err
	}

	for i := range meds {
		if strings.EqualFold(meds[i].Name, name) {
			if b.engine.TakeNow(meds[i].ID) {
				_, err := b.sendMessage(chatID, fmt.Sprintf("✅ %s recorded as taken. Great job staying on track!", meds[i].Name))
				return err
			}
			_, err := b.sendMessage(chatID, fmt.Sprintf("❌ Could not record %s right now.", meds[i].Name))
			return err
		}
	}

	_, err = b.sendMessage(chatID, fmt.Sprintf("❓ No medicine named %q. Use /meds to see the list.", name))
	return err
}

// handlePrescriptionPhoto runs a photo through the prescription scanner
func (b *Bot) handlePrescriptionPhoto(msg *tgbotapi.Message) error {
	chatID := msg.Chat.ID

	typing := tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)
	b.api.Send(typing)

	b.sendMessage(chatID, "📸 Reading prescription...")

	photo := msg.Photo[len(msg.Photo)-1]
	imageData, err := b.downloadPhoto(photo.FileID)
	if err != nil {
		b.logger.Error("Failed to download photo", zap.Error(err))
		_, sendErr := b.sendMessage(chatID, fmt.Sprintf("❌ Failed to download image: %v", err))
		return sendErr
	}

	ctx, cancel := context.WithTimeout(b.ctx, 120*time.Second)
	defer cancel()

	_, result, err := b.prescriptions.ScanAndImport(ctx, "", imageData, "image/jpeg")
	if err != nil {
		b.logger.Error("Prescription scan failed", zap.Error(err))
		_, sendErr := b.sendMessage(chatID, fmt.Sprintf("❌ Could not read the prescription: %v", err))
		return sendErr
	}

	if len(result.Medicines) == 0 {
		_, err := b.sendMessage(chatID, "🤔 I could not find any medicines on that prescription.")
		return err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "✅ Imported %d medicines:\n", len(result.Medicines))
	for _, m := range result.Medicines {
		fmt.Fprintf(&sb, "  • %s %s (%s)\n", m.Name, m.Dosage, m.Schedule)
	}

	_, err = b.sendMessage(chatID, sb.String())
	return err
}

// downloadPhoto fetches a Telegram photo into memory
func (b *Bot) downloadPhoto(fileID string) ([]byte, error) {
	file, err := b.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("failed to get file info: %w", err)
	}

	resp, err := http.Get(file.Link(b.api.Token))
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bad status: %s", resp.Status)
	}

	return io.ReadAll(resp.Body)
}

func (b *Bot) subscribe(chatID int64) {
	b.subMu.Lock()
	b.subscribers[chatID] = true
	b.subMu.Unlock()
	b.saveSubscribers()
}

func (b *Bot) unsubscribe(chatID int64) {
	b.subMu.Lock()
	delete(b.subscribers, chatID)
	b.subMu.Unlock()
	b.saveSubscribers()
}

func (b *Bot) subscriberIDs() []int64 {
	b.subMu.RLock()
	defer b.subMu.RUnlock()

	ids := make([]int64, 0, len(b.subscribers))
	for id := range b.subscribers {
		ids = append(ids, id)
	}
	return ids
}

// loadSubscribers restores the subscription set across restarts
func (b *Bot) loadSubscribers() {
	if b.store == nil {
		return
	}

	data, err := b.store.GetKV(subscribersKey)
	if err != nil {
		return
	}

	var ids []int64
	if err := json.Unmarshal(data, &ids); err != nil {
		b.logger.Warn("Could not parse stored subscribers", zap.Error(err))
		return
	}

	b.subMu.Lock()
	for _, id := range ids {
		b.subscribers[id] = true
	}
	b.subMu.Unlock()
}

func (b *Bot) saveSubscribers() {
	if b.store == nil {
		return
	}

	data, err := json.Marshal(b.subscriberIDs())
	if err != nil {
		return
	}
	if err := b.store.SetKV(subscribersKey, data); err != nil {
		b.logger.Warn("Could not persist subscribers", zap.Error(err))
	}
}

func (b *Bot) sendMessage(chatID int64, text string) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown

	sent, err := b.api.Send(msg)
	if err != nil {
		// Retry without markdown; alert text can contain characters
		// Telegram rejects as malformed markup.
		msg.ParseMode = ""
		sent, err = b.api.Send(msg)
		if err != nil {
			return 0, err
		}
	}

	return sent.MessageID, nil
}
