// Package composer writes the text of a payment reminder.
//
// The primary path asks a generative text service for a personalised
// message. When that call fails or returns nothing, a fixed Indonesian
// template is rendered from the same fields instead.
package composer

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/oatsaysai/debt-reminder/internal/utils"
	"github.com/oatsaysai/debt-reminder/pkg/llm"
)

// Completer is the generative text contract
type Completer interface {
	Complete(ctx context.Context, messages []llm.Message, sampling llm.Sampling) (string, error)
}

// Input holds the debtor and debt facts a reminder is written from
type Input struct {
	Name        string
	Amount      int64
	DueDate     time.Time
	DaysBefore  int
	Description string
}

// Composer produces delivery-ready reminder text
type Composer struct {
	completer Completer
	sampling  llm.Sampling
	loc       *time.Location
}

// New creates a Composer. A nil completer always uses the template.
// Dates are rendered in loc.
func New(completer Completer, sampling llm.Sampling, loc *time.Location) *Composer {
	if loc == nil {
		loc = time.UTC
	}
	return &Composer{completer: completer, sampling: sampling, loc: loc}
}

// Compose returns the generated message, or the template rendering if
// generation fails. It never returns the generation error.
func (c *Composer) Compose(ctx context.Context, in Input) (string, error) {
	if c.completer == nil {
		return c.Render(in), nil
	}

	text, err := c.completer.Complete(ctx, c.Prompt(in), c.sampling)
	if err == nil && strings.TrimSpace(text) == "" {
		err = fmt.Errorf("empty completion")
	}
	if err != nil {
		log.Printf("Error generating AI message, using template: %v", err)
		return c.Render(in), nil
	}
	return text, nil
}

// Prompt builds the chat messages sent to the generative text service
func (c *Composer) Prompt(in Input) []llm.Message {
	facts := strings.Join([]string{
		"User: " + in.Name,
		"Debt Amount: " + utils.FormatRupiah(in.Amount),
		"Due Date: " + utils.FormatDateID(in.DueDate, c.loc),
		fmt.Sprintf("Days Until Due: %d hari", in.DaysBefore),
		"Description: " + in.Description,
	}, "\n")

	prompt := `Anda adalah asisten BPJS Kesehatan yang ramah. Buatkan pesan pengingat pembayaran yang hangat dan profesional untuk pengguna.

Informasi:
` + facts + `

Pesan harus:
- Ramah dan sopan
- Mengingatkan tentang pembayaran yang akan jatuh tempo
- Memberikan informasi jumlah dan tanggal jatuh tempo
- Menyertakan cara pembayaran (transfer bank, Indomaret, Alfamart, atau aplikasi)
- Empati dan mendorong untuk segera membayar
- Dalam Bahasa Indonesia yang baik

Buatkan pesan pengingat yang personal dan hangat.`

	return []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: prompt},
	}
}

// Render fills the fixed reminder template. Output depends only on in and
// the composer's location.
func (c *Composer) Render(in Input) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Halo %s,\n\n", in.Name)
	fmt.Fprintf(&b, "Ini adalah pengingat bahwa pembayaran BPJS Kesehatan Anda akan jatuh tempo dalam %d hari.\n\n", in.DaysBefore)
	b.WriteString("Detail Pembayaran:\n")
	fmt.Fprintf(&b, "- Jumlah: %s\n", utils.FormatRupiah(in.Amount))
	fmt.Fprintf(&b, "- Jatuh Tempo: %s\n", utils.FormatDateID(in.DueDate, c.loc))
	fmt.Fprintf(&b, "- Keterangan: %s\n\n", in.Description)
	b.WriteString("Mohon segera lakukan pembayaran melalui:\n")
	for _, channel := range paymentChannels {
		fmt.Fprintf(&b, "- %s\n", channel)
	}
	b.WriteString("\nTerima kasih atas perhatian Anda.")
	return b.String()
}

var paymentChannels = []string{
	"Transfer Bank",
	"Indomaret/Alfamart",
	"Aplikasi mobile banking",
}

const systemPrompt = `You are a helpful BPJS Kesehatan debt collector chatbot. Your role is to:
1. Inform users about their outstanding debts
2. Provide payment instructions and options
3. Be empathetic and understanding about financial difficulties
4. Use simple text formatting - NO markdown tables, NO pipes (|), NO complex formatting
5. Use numbered lists and bullet points for clarity
6. Keep responses complete and well-structured

Always be polite, professional, helpful. Use Indonesian language.`
