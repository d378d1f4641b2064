package discord

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"
	discordpkg "github.com/foxseedlab/planning-poker/internal/discord"
)

// Discord rejects message content above this many characters.
const maxMessageLength = 2000

type Client struct {
	session *discordgo.Session
}

func NewClient(token string) (discordpkg.Client, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	return &Client{session: s}, nil
}

func (c *Client) SendChannelMessage(channelID, content string) error {
	_, err := c.session.ChannelMessageSend(channelID, truncateContent(content))
	return wrapRESTError(channelID, err)
}

func (c *Client) SendChannelMessageWithFile(msg discordpkg.FileMessage) error {
	_, err := c.session.ChannelMessageSendComplex(msg.ChannelID, &discordgo.MessageSend{
		Content: truncateContent(msg.Content),
		Files: []*discordgo.File{
			{Name: msg.Filename, ContentType: "text/plain", Reader: bytes.NewReader(msg.FileBody)},
		},
	})
	return wrapRESTError(msg.ChannelID, err)
}

func truncateContent(content string) string {
	runes := []rune(content)
	if len(runes) <= maxMessageLength {
		return content
	}
	return string(runes[:maxMessageLength-1]) + "…"
}

func wrapRESTError(channelID string, err error) error {
	if err == nil {
		return nil
	}
	if isRESTNotFound(err) {
		return fmt.Errorf("discord channel %s not found: %w", channelID, err)
	}
	return err
}

func isRESTNotFound(err error) bool {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return false
	}
	if restErr.Response == nil {
		return false
	}
	return restErr.Response.StatusCode == http.StatusNotFound
}

// Noop stands in when no Discord channel is configured.
type Noop struct{}

func (Noop) SendChannelMessage(string, string) error                 { return nil }
func (Noop) SendChannelMessageWithFile(discordpkg.FileMessage) error { return nil }
