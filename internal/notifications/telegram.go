package notifications

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	tb "gopkg.in/tucnak/telebot.v2"

	"github.com/kjannette/moverbot/internal/logx"
	"github.com/kjannette/moverbot/internal/models"
)

const pollingTimeout = 10 * time.Second

// StatusSource is the read side of the tracker answered by chat commands.
type StatusSource interface {
	Status() models.Status
	ExclusionList() []string
	TopMovers(n int) []models.ChangeEvent
	Diagnose(ctx context.Context) models.ExchangeHealth
}

// messenger is the subset of *tb.Bot used here.
type messenger interface {
	Send(to tb.Recipient, what interface{}, options ...interface{}) (*tb.Message, error)
	Handle(endpoint interface{}, handler interface{})
	Start()
	Stop()
}

type TelegramOptions struct {
	Token        string
	BotName      string
	Threshold    float64
	PollInterval time.Duration
	MoversTopN   int
	MoversWindow time.Duration
	Location     *time.Location
}

// Telegram sends alerts to a chat and answers the bot commands.
type Telegram struct {
	client messenger
	opts   TelegramOptions
	log    *zap.Logger

	mu     sync.RWMutex
	source StatusSource
}

func NewTelegram(opts TelegramOptions) (*Telegram, error) {
	client, err := tb.NewBot(tb.Settings{
		Token:  opts.Token,
		Poller: &tb.LongPoller{Timeout: pollingTimeout},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return newTelegram(client, opts), nil
}

func newTelegram(client messenger, opts TelegramOptions) *Telegram {
	if opts.BotName == "" {
		opts.BotName = "MoverBot"
	}
	if opts.MoversTopN <= 0 {
		opts.MoversTopN = 5
	}
	if opts.MoversWindow <= 0 {
		opts.MoversWindow = time.Hour
	}
	t := &Telegram{client: client, opts: opts, log: logx.Named("telegram")}
	t.registerHandlers()
	return t
}

// Attach sets the tracker answering /status, /top and /blacklist.
func (t *Telegram) Attach(src StatusSource) {
	t.mu.Lock()
	t.source = src
	t.mu.Unlock()
}

// Start begins long polling for commands in the background.
func (t *Telegram) Start() {
	go t.client.Start()
	t.log.Info("telegram.started")
}

func (t *Telegram) Stop() {
	t.client.Stop()
	t.log.Info("telegram.stopped")
}

func (t *Telegram) Send(ctx context.Context, channelID, msg string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	chat, err := parseChatID(channelID)
	if err != nil {
		return err
	}
	if _, err := t.client.Send(chat, msg, tb.ModeHTML); err != nil {
		t.log.Error("telegram.send_failed", zap.String("chat", channelID), zap.Error(err))
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

func (t *Telegram) SendDocument(ctx context.Context, channelID, path, caption string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	chat, err := parseChatID(channelID)
	if err != nil {
		return err
	}
	doc := &tb.Document{
		File:     tb.FromDisk(path),
		FileName: filepath.Base(path),
		Caption:  caption,
	}
	if _, err := t.client.Send(chat, doc); err != nil {
		return fmt.Errorf("telegram send document: %w", err)
	}
	return nil
}

func (t *Telegram) registerHandlers() {
	commands := map[string]func(ctx context.Context) string{
		"/start":     t.startReply,
		"/online":    t.onlineReply,
		"/help":      t.helpReply,
		"/status":    t.statusReply,
		"/blacklist": t.blacklistReply,
		"/top":       t.topReply,
	}
	for cmd, reply := range commands {
		reply := reply
		t.client.Handle(cmd, func(m *tb.Message) {
			t.respond(m, reply)
		})
	}
}

func (t *Telegram) respond(m *tb.Message, reply func(ctx context.Context) string) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if _, err := t.client.Send(m.Chat, reply(ctx), tb.ModeHTML); err != nil {
		t.log.Error("telegram.reply_failed", zap.String("command", m.Text), zap.Error(err))
	}
}

func (t *Telegram) startReply(context.Context) string {
	return fmt.Sprintf("Hi! I am %s and I watch crypto prices for sharp moves.\nSend /help for the command list.", t.opts.BotName)
}

func (t *Telegram) onlineReply(context.Context) string {
	return "🟢 Bot is running!"
}

func (t *Telegram) helpReply(context.Context) string {
	return FormatHelp(t.opts.Threshold, t.opts.PollInterval)
}

func (t *Telegram) statusReply(ctx context.Context) string {
	src := t.attached()
	if src == nil {
		return "❌ Status is not available yet."
	}
	return FormatStatus(src.Status(), src.Diagnose(ctx), t.opts.BotName, t.opts.Location)
}

func (t *Telegram) blacklistReply(context.Context) string {
	src := t.attached()
	if src == nil {
		return FormatExclusions(nil)
	}
	return FormatExclusions(src.ExclusionList())
}

func (t *Telegram) topReply(context.Context) string {
	src := t.attached()
	if src == nil {
		return FormatTopMovers(nil, t.opts.MoversWindow, time.Now(), t.opts.Location)
	}
	return FormatTopMovers(src.TopMovers(t.opts.MoversTopN), t.opts.MoversWindow, time.Now(), t.opts.Location)
}

func (t *Telegram) attached() StatusSource {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.source
}

func parseChatID(channelID string) (tb.ChatID, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(channelID), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid telegram chat id %q: %w", channelID, err)
	}
	return tb.ChatID(id), nil
}
