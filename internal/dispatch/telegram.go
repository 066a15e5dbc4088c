package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/jobharvest/jobharvest/internal/model"
)

// Telegram implements Sink over the Bot API.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	logger *slog.Logger
}

var _ Sink = (*Telegram)(nil)

// NewTelegram authorizes the bot with the given token.
func NewTelegram(token string, logger *slog.Logger) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("authorize telegram bot: %w", err)
	}
	logger.Info("telegram bot authorized", "username", bot.Self.UserName)
	return &Telegram{bot: bot, logger: logger}, nil
}

// Bot exposes the underlying client for the callback update loop.
func (t *Telegram) Bot() *tgbotapi.BotAPI { return t.bot }

// SendMessage sends text with an optional inline keyboard.
func (t *Telegram) SendMessage(_ context.Context, chatID int64, text string, buttons [][]Button) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if len(buttons) > 0 {
		msg.ReplyMarkup = keyboard(buttons)
	}
	sent, err := t.bot.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("send to chat %d: %w", chatID, err)
	}
	return sent.MessageID, nil
}

// SendJob sends one job card with its reaction row.
func (t *Telegram) SendJob(ctx context.Context, chatID int64, job *model.JobPost) (int, error) {
	return t.SendMessage(ctx, chatID, FormatJob(job), ReactionButtons(job.ID))
}

// SetMessageReaction sets an emoji reaction. The library has no typed
// helper for this endpoint, so it goes through MakeRequest.
func (t *Telegram) SetMessageReaction(_ context.Context, chatID int64, messageID int, emoji string) error {
	reaction, err := json.Marshal([]map[string]string{{"type": "emoji", "emoji": emoji}})
	if err != nil {
		return fmt.Errorf("encode reaction: %w", err)
	}
	params := tgbotapi.Params{
		"chat_id":    strconv.FormatInt(chatID, 10),
		"message_id": strconv.Itoa(messageID),
		"reaction":   string(reaction),
	}
	if _, err := t.bot.MakeRequest("setMessageReaction", params); err != nil {
		return fmt.Errorf("set reaction on message %d: %w", messageID, err)
	}
	return nil
}

func keyboard(buttons [][]Button) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(buttons))
	for _, row := range buttons {
		tgRow := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			tgRow = append(tgRow, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
		}
		rows = append(rows, tgRow)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
