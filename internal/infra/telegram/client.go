package telegram

import (
	"context"
	"strings"

	"gopkg.in/telebot.v3"
)

// maxMessageLength is Telegram's limit for one text message.
const maxMessageLength = 4096

// Client delivers plain text to a chat.
type Client interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// BotClient sends through a telebot.Bot, splitting texts that exceed the
// message limit on line boundaries.
type BotClient struct {
	bot *telebot.Bot
}

func NewBotClient(b *telebot.Bot) *BotClient {
	return &BotClient{bot: b}
}

func (c *BotClient) Send(ctx context.Context, chatID int64, text string) error {
	chat := &telebot.Chat{ID: chatID}
	opts := &telebot.SendOptions{DisableWebPagePreview: true}
	for _, part := range splitMessage(text, maxMessageLength) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := c.bot.Send(chat, part, opts); err != nil {
			return err
		}
	}
	return nil
}

// splitMessage cuts text into chunks of at most limit bytes, preferring to
// break after a newline.
func splitMessage(text string, limit int) []string {
	var parts []string
	for len(text) > limit {
		cut := strings.LastIndexByte(text[:limit], '\n')
		if cut <= 0 {
			cut = limit
		} else {
			cut++
		}
		parts = append(parts, text[:cut])
		text = text[cut:]
	}
	return append(parts, text)
}
