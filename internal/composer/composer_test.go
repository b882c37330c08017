package composer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oatsaysai/debt-reminder/pkg/llm"
)

type mockCompleter struct {
	CompleteFunc func(ctx context.Context, messages []llm.Message, sampling llm.Sampling) (string, error)
	calls        int
}

func (m *mockCompleter) Complete(ctx context.Context, messages []llm.Message, sampling llm.Sampling) (string, error) {
	m.calls++
	return m.CompleteFunc(ctx, messages, sampling)
}

func jakarta(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Jakarta")
	require.NoError(t, err)
	return loc
}

func sampleInput(loc *time.Location) Input {
	return Input{
		Name:        "Budi Santoso",
		Amount:      150000,
		DueDate:     time.Date(2024, 6, 8, 0, 0, 0, 0, loc),
		DaysBefore:  7,
		Description: "Iuran BPJS Juni",
	}
}

const expectedTemplate = "Halo Budi Santoso,\n\n" +
	"Ini adalah pengingat bahwa pembayaran BPJS Kesehatan Anda akan jatuh tempo dalam 7 hari.\n\n" +
	"Detail Pembayaran:\n" +
	"- Jumlah: Rp 150.000\n" +
	"- Jatuh Tempo: 8/6/2024\n" +
	"- Keterangan: Iuran BPJS Juni\n\n" +
	"Mohon segera lakukan pembayaran melalui:\n" +
	"- Transfer Bank\n" +
	"- Indomaret/Alfamart\n" +
	"- Aplikasi mobile banking\n" +
	"\nTerima kasih atas perhatian Anda."

func TestComposeUsesGeneratedText(t *testing.T) {
	loc := jakarta(t)
	sampling := llm.Sampling{Temperature: 0.7, MaxTokens: 500}
	mock := &mockCompleter{CompleteFunc: func(_ context.Context, messages []llm.Message, got llm.Sampling) (string, error) {
		assert.Equal(t, sampling, got)
		require.Len(t, messages, 2)
		assert.Equal(t, llm.RoleSystem, messages[0].Role)
		assert.Equal(t, llm.RoleUser, messages[1].Role)
		assert.Contains(t, messages[1].Content, "User: Budi Santoso")
		assert.Contains(t, messages[1].Content, "Debt Amount: Rp 150.000")
		assert.Contains(t, messages[1].Content, "Due Date: 8/6/2024")
		assert.Contains(t, messages[1].Content, "Days Until Due: 7 hari")
		assert.Contains(t, messages[1].Content, "Description: Iuran BPJS Juni")
		return "Halo Pak Budi, jangan lupa bayar ya.", nil
	}}

	c := New(mock, sampling, loc)
	text, err := c.Compose(context.Background(), sampleInput(loc))

	require.NoError(t, err)
	assert.Equal(t, "Halo Pak Budi, jangan lupa bayar ya.", text)
	assert.Equal(t, 1, mock.calls)
}

func TestComposeFallsBackOnError(t *testing.T) {
	loc := jakarta(t)
	mock := &mockCompleter{CompleteFunc: func(context.Context, []llm.Message, llm.Sampling) (string, error) {
		return "", errors.New("upstream 503")
	}}

	c := New(mock, llm.Sampling{MaxTokens: 500}, loc)
	first, err := c.Compose(context.Background(), sampleInput(loc))
	require.NoError(t, err)
	second, err := c.Compose(context.Background(), sampleInput(loc))
	require.NoError(t, err)

	assert.Equal(t, expectedTemplate, first)
	assert.Equal(t, first, second)
	assert.Equal(t, c.Render(sampleInput(loc)), first)
}

func TestComposeFallsBackOnEmptyCompletion(t *testing.T) {
	loc := jakarta(t)
	mock := &mockCompleter{CompleteFunc: func(context.Context, []llm.Message, llm.Sampling) (string, error) {
		return "  \n", nil
	}}

	text, err := New(mock, llm.Sampling{}, loc).Compose(context.Background(), sampleInput(loc))
	require.NoError(t, err)
	assert.Equal(t, expectedTemplate, text)
}

func TestComposeWithoutCompleter(t *testing.T) {
	loc := jakarta(t)
	text, err := New(nil, llm.Sampling{}, loc).Compose(context.Background(), sampleInput(loc))
	require.NoError(t, err)
	assert.Equal(t, expectedTemplate, text)
}

func TestRenderUsesComposerLocation(t *testing.T) {
	loc := jakarta(t)
	in := sampleInput(loc)
	// 17:30 UTC on the 7th is 00:30 on the 8th in Jakarta
	in.DueDate = time.Date(2024, 6, 7, 17, 30, 0, 0, time.UTC)

	assert.Contains(t, New(nil, llm.Sampling{}, loc).Render(in), "- Jatuh Tempo: 8/6/2024\n")
	assert.Contains(t, New(nil, llm.Sampling{}, time.UTC).Render(in), "- Jatuh Tempo: 7/6/2024\n")
}
