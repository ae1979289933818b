package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// MessengerSender message-channel delivery through a provider webhook. The
// provider fans the text out to the recipient's phone (SMS/IM gateway).
type MessengerSender struct {
	webhookURL string
	token      string
	httpClient *http.Client
}

// NewMessengerSender creates a webhook-backed message sender.
func NewMessengerSender(webhookURL, token string) *MessengerSender {
	return &MessengerSender{
		webhookURL: webhookURL,
		token:      token,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Send posts the message to the provider webhook. Subject and body are
// collapsed into a single text, the usual shape for message channels.
func (s *MessengerSender) Send(ctx context.Context, to string, msg Message) error {
	reqBody := map[string]string{
		"to":   to,
		"text": msg.Subject + "\n" + msg.Body,
	}
	data, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build message request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send message to %s: %w", to, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("message provider rejected send to %s: status %d", to, resp.StatusCode)
	}
	return nil
}
