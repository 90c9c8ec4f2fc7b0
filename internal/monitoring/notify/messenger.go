package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const defaultMessengerBaseURL = "https://graph.facebook.com/v18.0"

// MessengerChannel delivers messages through the Facebook Messenger Send API.
type MessengerChannel struct {
	baseURL     string
	accessToken string
	client      *http.Client
}

// MessengerOption configures the channel.
type MessengerOption func(*MessengerChannel)

// WithMessengerHTTPClient overrides the HTTP client.
func WithMessengerHTTPClient(client *http.Client) MessengerOption {
	return func(ch *MessengerChannel) {
		if client != nil {
			ch.client = client
		}
	}
}

// WithMessengerBaseURL overrides the Graph API base URL.
func WithMessengerBaseURL(baseURL string) MessengerOption {
	return func(ch *MessengerChannel) {
		if baseURL != "" {
			ch.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// NewMessengerChannel constructs a Messenger channel.
func NewMessengerChannel(accessToken string, opts ...MessengerOption) (*MessengerChannel, error) {
	if accessToken == "" {
		return nil, errors.New("messenger channel: empty access token")
	}
	channel := &MessengerChannel{
		baseURL:     defaultMessengerBaseURL,
		accessToken: accessToken,
		client:      &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(channel)
	}
	return channel, nil
}

type messengerPayload struct {
	MessagingType string             `json:"messaging_type"`
	Recipient     messengerRecipient `json:"recipient"`
	Message       messengerText      `json:"message"`
}

type messengerRecipient struct {
	ID string `json:"id"`
}

type messengerText struct {
	Text string `json:"text"`
}

// Send posts one message to a Messenger user.
func (ch *MessengerChannel) Send(ctx context.Context, recipient int64, text string) error {
	if ch == nil || ch.accessToken == "" {
		return errors.New("messenger channel: empty access token")
	}
	payload := messengerPayload{
		MessagingType: "RESPONSE",
		Recipient:     messengerRecipient{ID: strconv.FormatInt(recipient, 10)},
		Message:       messengerText{Text: text},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	url := ch.baseURL + "/me/messages?access_token=" + ch.accessToken
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
		return fmt.Errorf("messenger channel: non-2xx response %d", resp.StatusCode)
	}
	return nil
}
