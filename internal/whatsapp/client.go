// Package whatsapp is the outbound WhatsApp Cloud API client.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	logx "github.com/waflow/server/pkg/logger"
)

const defaultBaseURL = "https://graph.facebook.com/v23.0"

type Config struct {
	AccessToken string `envconfig:"WHATSAPP_ACCESS_TOKEN" required:"true"`
	BaseURL     string `envconfig:"WHATSAPP_BASE_URL"`
	Timeout     int    `envconfig:"WHATSAPP_TIMEOUT" default:"10"`
}

// Client sends text messages through the WhatsApp Cloud API.
type Client struct {
	accessToken string
	baseURL     string
	http        *http.Client
}

func NewClient(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		accessToken: cfg.AccessToken,
		baseURL:     baseURL,
		http:        &http.Client{Timeout: time.Duration(cfg.Timeout) * time.Second},
	}
}

type textPayload struct {
	MessagingProduct string `json:"messaging_product"`
	RecipientType    string `json:"recipient_type"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Text             struct {
		PreviewURL bool   `json:"preview_url"`
		Body       string `json:"body"`
	} `json:"text"`
}

// SendMessage delivers one text message to a recipient on the given line.
func (c *Client) SendMessage(ctx context.Context, to, phoneNumberID, message string) error {
	payload := textPayload{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "text",
	}
	payload.Text.Body = message

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", c.baseURL, phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send whatsapp message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("whatsapp api status %d: %s", resp.StatusCode, detail)
	}
	return nil
}

// SendMessages delivers the messages in order. A failing message is logged
// and skipped so the rest of the list still goes out.
func (c *Client) SendMessages(ctx context.Context, to, phoneNumberID string, messages []string) {
	for _, msg := range messages {
		if err := c.SendMessage(ctx, to, phoneNumberID, msg); err != nil {
			logx.Error().Err(err).Str("to", to).Msg("failed to send message")
			continue
		}
		logx.Debug().Str("to", to).Msg("message sent")
	}
}
