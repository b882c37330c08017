package discord

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/oatsaysai/debt-reminder/internal/utils"
)

// maxMessageLength is Discord's limit for one message
const maxMessageLength = 2000

// Session is the part of the Discord client the sender needs
type Session interface {
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Sender delivers reminder text as a Discord direct message
type Sender struct {
	session Session

	mu       sync.Mutex
	channels map[string]string // user ID -> DM channel ID
}

// NewSender wraps an existing session
func NewSender(session Session) *Sender {
	return &Sender{session: session, channels: make(map[string]string)}
}

// Connect creates and opens a bot session. The returned close func ends it.
func Connect(token string) (*Sender, func(), error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, nil, fmt.Errorf("error creating Discord session: %w", err)
	}

	return connect(session)
}

type gateway interface {
	Session
	Open() error
	Close() error
}

func connect(session gateway) (*Sender, func(), error) {
	if err := session.Open(); err != nil {
		session.Close()
		return nil, nil, fmt.Errorf("error opening connection to Discord: %w", err)
	}

	log.Println("Connected to Discord successfully")
	return NewSender(session), func() { session.Close() }, nil
}

// Send delivers text to the Discord user identified by handle
func (s *Sender) Send(ctx context.Context, handle, text string) error {
	channelID, err := s.dmChannel(ctx, handle)
	if err != nil {
		return err
	}

	for _, chunk := range utils.SplitMessage(text, maxMessageLength) {
		if _, err := s.session.ChannelMessageSend(channelID, chunk, discordgo.WithContext(ctx)); err != nil {
			return fmt.Errorf("error sending Discord DM to %s: %w", handle, err)
		}
	}
	return nil
}

func (s *Sender) dmChannel(ctx context.Context, userID string) (string, error) {
	s.mu.Lock()
	id, ok := s.channels[userID]
	s.mu.Unlock()
	if ok {
		return id, nil
	}

	channel, err := s.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("error creating DM channel for %s: %w", userID, err)
	}

	s.mu.Lock()
	s.channels[userID] = channel.ID
	s.mu.Unlock()
	return channel.ID, nil
}
