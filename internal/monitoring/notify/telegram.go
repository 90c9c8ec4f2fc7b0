package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const defaultTelegramBaseURL = "https://api.telegram.org"

// TelegramChannel delivers messages through the Telegram bot API.
type TelegramChannel struct {
	baseURL   string
	token     string
	parseMode string
	client    *http.Client
}

// TelegramOption configures the channel.
type TelegramOption func(*TelegramChannel)

// WithTelegramHTTPClient overrides the HTTP client.
func WithTelegramHTTPClient(client *http.Client) TelegramOption {
	return func(ch *TelegramChannel) {
		if client != nil {
			ch.client = client
		}
	}
}

// WithTelegramBaseURL overrides the API base URL.
func WithTelegramBaseURL(baseURL string) TelegramOption {
	return func(ch *TelegramChannel) {
		if baseURL != "" {
			ch.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithParseMode sets the Telegram parse_mode. Message text is escaped for
// MarkdownV2 when that mode is selected.
func WithParseMode(mode string) TelegramOption {
	return func(ch *TelegramChannel) {
		ch.parseMode = mode
	}
}

// NewTelegramChannel constructs a Telegram channel.
func NewTelegramChannel(token string, opts ...TelegramOption) (*TelegramChannel, error) {
	if token == "" {
		return nil, errors.New("telegram channel: empty token")
	}
	channel := &TelegramChannel{
		baseURL: defaultTelegramBaseURL,
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(channel)
	}
	return channel, nil
}

type telegramMessage struct {
	ChatID    int64  `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

// Send posts one message to a chat.
func (ch *TelegramChannel) Send(ctx context.Context, recipient int64, text string) error {
	if ch == nil || ch.token == "" {
		return errors.New("telegram channel: empty token")
	}
	message := telegramMessage{ChatID: recipient, Text: text, ParseMode: ch.parseMode}
	if ch.parseMode == "MarkdownV2" {
		message.Text = EscapeMarkdown(text)
	}
	body, err := json.Marshal(message)
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/bot%s/sendMessage", ch.baseURL, ch.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := ch.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("telegram channel: non-2xx response %d", resp.StatusCode)
	}
	return nil
}

// markdownSpecials is the character set Telegram requires escaping in
// MarkdownV2 text.
const markdownSpecials = "_*[]()~`>#+-=|{}.!"

// EscapeMarkdown escapes MarkdownV2 special characters.
func EscapeMarkdown(text string) string {
	var builder strings.Builder
	builder.Grow(len(text))
	for _, r := range text {
		if strings.ContainsRune(markdownSpecials, r) {
			builder.WriteByte('\\')
		}
		builder.WriteRune(r)
	}
	return builder.String()
}
