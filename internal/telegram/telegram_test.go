package telegram

import (
	"context"
	"errors"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockAPI struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (m *mockAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if m.err != nil {
		return tgbotapi.Message{}, m.err
	}
	m.sent = append(m.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{MessageID: len(m.sent)}, nil
}

func TestSend(t *testing.T) {
	api := &mockAPI{}
	require.NoError(t, NewSender(api).Send(context.Background(), "123456789", "Halo Budi"))

	require.Len(t, api.sent, 1)
	assert.EqualValues(t, 123456789, api.sent[0].ChatID)
	assert.Equal(t, "Halo Budi", api.sent[0].Text)
}

func TestSendSplitsLongMessages(t *testing.T) {
	api := &mockAPI{}
	text := strings.Repeat("baris pengingat\n", 400)
	require.NoError(t, NewSender(api).Send(context.Background(), "42", text))

	require.Greater(t, len(api.sent), 1)
	var joined strings.Builder
	for _, m := range api.sent {
		assert.LessOrEqual(t, len([]rune(m.Text)), maxMessageLength)
		joined.WriteString(m.Text)
	}
	assert.Equal(t, text, joined.String())
}

func TestSendRejectsNonNumericHandle(t *testing.T) {
	api := &mockAPI{}
	assert.Error(t, NewSender(api).Send(context.Background(), "@budi", "hi"))
	assert.Empty(t, api.sent)
}

func TestSendWrapsAPIError(t *testing.T) {
	apiErr := errors.New("Forbidden: bot was blocked by the user")
	err := NewSender(&mockAPI{err: apiErr}).Send(context.Background(), "42", "hi")
	assert.ErrorIs(t, err, apiErr)
}
