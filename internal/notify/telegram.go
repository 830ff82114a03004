package notify

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"strings"
)

const telegramAPI = "https://api.telegram.org"

// TelegramSender posts notifications through the Telegram Bot API.
type TelegramSender struct {
	baseURL string
	token   string
	chatID  string
	client  *http.Client
}

// NewTelegramSender creates a TelegramSender for a bot token and chat id.
func NewTelegramSender(token, chatID string) *TelegramSender {
	return &TelegramSender{baseURL: telegramAPI, token: token, chatID: chatID, client: defaultHTTPClient()}
}

// Send implements Sender. Text is sent as HTML so symbols and reasons need
// no Markdown escaping.
func (t *TelegramSender) Send(ctx context.Context, n Notification) error {
	text := fmt.Sprintf("<b>%s</b>\n%s", html.EscapeString(n.Title), html.EscapeString(n.Message))
	url := strings.TrimRight(t.baseURL, "/") + "/bot" + t.token + "/sendMessage"
	return postJSON(ctx, t.client, url, map[string]any{
		"chat_id":                  t.chatID,
		"text":                     text,
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
	})
}

// Name implements Sender.
func (t *TelegramSender) Name() string { return "telegram" }
