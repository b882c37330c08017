package telegram

import (
	"context"
	"fmt"
	"log"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/oatsaysai/debt-reminder/internal/utils"
)

// maxMessageLength is Telegram's limit for one text message
const maxMessageLength = 4096

// API is the part of the Telegram bot client the sender needs
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Sender delivers reminder text as a Telegram direct message
type Sender struct {
	api API
}

// NewSender wraps an existing bot client
func NewSender(api API) *Sender {
	return &Sender{api: api}
}

// Connect creates the bot client from a token and wraps it
func Connect(token string) (*Sender, error) {
	botAPI, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("error creating Telegram bot: %w", err)
	}
	botAPI.Debug = false
	log.Printf("Connected to Telegram as @%s", botAPI.Self.UserName)
	return NewSender(botAPI), nil
}

// Send delivers text to the chat identified by handle. The handle must be a
// numeric Telegram chat ID.
func (s *Sender) Send(ctx context.Context, handle, text string) error {
	chatID, err := strconv.ParseInt(handle, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid Telegram chat ID %q: %w", handle, err)
	}

	for _, chunk := range utils.SplitMessage(text, maxMessageLength) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := s.api.Send(tgbotapi.NewMessage(chatID, chunk)); err != nil {
			return fmt.Errorf("error sending Telegram message to %d: %w", chatID, err)
		}
	}
	return nil
}
