package notify

import (
	"context"
	"net/http"
	"time"
)

// Embed colors per event.
var discordColors = map[string]int{
	EventTradeFilled: 0x2ecc71,
	EventError:       0xe74c3c,
	EventDailyReset:  0x3498db,
}

// DiscordSender posts notifications to a Discord webhook as embeds.
type DiscordSender struct {
	webhookURL string
	client     *http.Client
	now        func() time.Time
}

// NewDiscordSender creates a DiscordSender.
func NewDiscordSender(webhookURL string) *DiscordSender {
	return &DiscordSender{webhookURL: webhookURL, client: defaultHTTPClient(), now: time.Now}
}

type discordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color,omitempty"`
	Timestamp   string `json:"timestamp"`
	Footer      struct {
		Text string `json:"text"`
	} `json:"footer"`
}

type discordPayload struct {
	Username string         `json:"username"`
	Embeds   []discordEmbed `json:"embeds"`
}

// Send implements Sender.
func (d *DiscordSender) Send(ctx context.Context, n Notification) error {
	e := discordEmbed{
		Title:       n.Title,
		Description: n.Message,
		Color:       discordColors[n.Event],
		Timestamp:   d.now().UTC().Format(time.RFC3339),
	}
	e.Footer.Text = n.Event
	return postJSON(ctx, d.client, d.webhookURL, discordPayload{
		Username: "tradeclarity",
		Embeds:   []discordEmbed{e},
	})
}

// Name implements Sender.
func (d *DiscordSender) Name() string { return "discord" }
