// Package telegram runs newsdesk as a Telegram bot over long polling.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/newsdesk-io/newsdesk/internal/connector"
)

// Config holds Telegram connector configuration.
type Config struct {
	Token     string  // Bot token from @BotFather
	AllowFrom []int64 // Allowed Telegram user IDs (empty = allow all)
}

// Connector implements connector.Connector for Telegram.
type Connector struct {
	bot     *tgbotapi.BotAPI
	config  Config
	handler connector.InboundHandler
	logger  *slog.Logger
	queue   *connector.ChatQueue
	cancel  context.CancelFunc
}

// New creates a new Telegram connector and authorizes the bot.
func New(cfg Config, handler connector.InboundHandler, logger *slog.Logger) (*Connector, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram: bot token is required")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram: init bot: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("telegram bot authorized", "username", bot.Self.UserName)

	return &Connector{
		bot:     bot,
		config:  cfg,
		handler: handler,
		logger:  logger,
		queue:   connector.NewChatQueue(),
	}, nil
}

func (c *Connector) Name() string { return "telegram" }

// Start begins long-polling for updates. Blocks until context is cancelled.
// Messages in one chat are answered in arrival order; chats are answered
// concurrently so a slow research turn in one does not hold up the others.
func (c *Connector) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := c.bot.GetUpdatesChan(u)

	c.logger.Info("telegram connector started", "bot", c.bot.Self.UserName)

	for {
		select {
		case update := <-updates:
			msg := update.Message
			if msg == nil || msg.Chat == nil {
				continue
			}
			c.queue.Submit(strconv.FormatInt(msg.Chat.ID, 10), func() { c.handleMessage(ctx, msg) })

		case <-ctx.Done():
			c.bot.StopReceivingUpdates()
			c.logger.Info("telegram connector stopped")
			return ctx.Err()
		}
	}
}

// Stop gracefully shuts down the connector.
func (c *Connector) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	return nil
}

// Send delivers a reply, split to Telegram's length limit. Each part is sent
// as HTML and retried as plain text if Telegram rejects the markup.
func (c *Connector) Send(_ context.Context, msg connector.OutboundMessage) error {
	chatID, err := strconv.ParseInt(msg.ChatID, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram: invalid chat_id %q: %w", msg.ChatID, err)
	}
	if strings.TrimSpace(msg.Content) == "" {
		c.logger.Warn("skipping empty message", "chat_id", msg.ChatID)
		return nil
	}

	// Leave room for the markup added by ToHTML.
	for _, part := range Split(msg.Content, MaxMessageLen*3/4) {
		tgMsg := tgbotapi.NewMessage(chatID, ToHTML(part))
		tgMsg.ParseMode = tgbotapi.ModeHTML
		tgMsg.DisableWebPagePreview = true

		if _, err := c.bot.Send(tgMsg); err != nil {
			c.logger.Warn("HTML send failed, falling back to plain text", "chat_id", msg.ChatID, "error", err)
			tgMsg.Text = PlainText(part)
			tgMsg.ParseMode = ""
			if _, err := c.bot.Send(tgMsg); err != nil {
				return fmt.Errorf("telegram: send: %w", err)
			}
		}
	}
	return nil
}

func (c *Connector) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	if !allowed(c.config.AllowFrom, msg.From.ID) {
		c.logger.Warn("unauthorized user", "user_id", msg.From.ID, "username", msg.From.UserName)
		return
	}

	text := msg.Text
	if text == "" {
		text = msg.Caption
	}
	if strings.TrimSpace(text) == "" {
		return
	}

	c.bot.Send(tgbotapi.NewChatAction(msg.Chat.ID, tgbotapi.ChatTyping))

	inbound := connector.InboundMessage{
		Channel:  "telegram",
		SenderID: strconv.FormatInt(msg.From.ID, 10),
		ChatID:   strconv.FormatInt(msg.Chat.ID, 10),
		Content:  text,
	}
	if err := c.handler(ctx, inbound); err != nil {
		c.logger.Error("inbound handler error", "chat_id", inbound.ChatID, "error", err)
	}
}

// allowed reports whether id may use the bot. An empty list allows everyone.
func allowed(allowFrom []int64, id int64) bool {
	return len(allowFrom) == 0 || slices.Contains(allowFrom, id)
}
