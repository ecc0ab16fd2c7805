// Package notify implements the agent's outbound notification boundary
// (spec §6): a single narrow Client interface plus a Telegram adapter,
// so the improvement agent never depends on a concrete messaging SDK.
package notify

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Client is the notification boundary the agent.Notifier interface is
// satisfied against.
type Client interface {
	Notify(ctx context.Context, kind, title, body string, data map[string]string) error
}

// TelegramClient sends agent notifications to a single configured chat.
// Grounded on the teacher's plugin/chat_apps/channels/telegram package,
// narrowed to the one send path the agent needs.
type TelegramClient struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegramClient builds a TelegramClient from a bot token and the
// target chat ID notifications are sent to.
func NewTelegramClient(botToken string, chatID int64) (*TelegramClient, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("notify: failed to create telegram bot: %w", err)
	}
	return &TelegramClient{bot: bot, chatID: chatID}, nil
}

// Notify implements Client by sending a Markdown-formatted message. kind
// is rendered as a tag prefix (e.g. "[suggestion-ready]") so operators
// watching the chat can filter mentally without structured routing.
func (c *TelegramClient) Notify(ctx context.Context, kind, title, body string, data map[string]string) error {
	text := fmt.Sprintf("*[%s] %s*\n%s", kind, title, body)
	if len(data) > 0 {
		text += "\n"
		for k, v := range data {
			text += fmt.Sprintf("\n`%s`: %s", k, v)
		}
	}
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = "Markdown"
	_, err := c.bot.Send(msg)
	return err
}

// ChatIDFromString parses a Telegram chat ID out of config/env, where it
// travels as a string.
func ChatIDFromString(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

// NoopClient discards notifications; used when no bot token is
// configured so the agent can still run without a messaging dependency.
type NoopClient struct{}

func (NoopClient) Notify(ctx context.Context, kind, title, body string, data map[string]string) error {
	return nil
}

var _ Client = (*TelegramClient)(nil)
var _ Client = NoopClient{}
