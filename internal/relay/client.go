package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/suPer8Hu/personapal/internal/chat"
	"github.com/suPer8Hu/personapal/internal/reply"
)

// Client calls a gemini-chat relay over HTTP.
type Client struct {
	URL    string
	APIKey string // sent as apikey and bearer when set
	Client *http.Client
}

func NewClient(url, apiKey string) *Client {
	return &Client{
		URL:    url,
		APIKey: apiKey,
		Client: &http.Client{Timeout: 90 * time.Second},
	}
}

func (c *Client) Complete(ctx context.Context, req reply.Request) (string, error) {
	if c.Client == nil {
		return "", errors.New("relay: http client is nil")
	}
	if strings.TrimSpace(c.URL) == "" {
		return "", errors.New("relay: url is required")
	}

	body := chatRequest{
		SystemPrompt: req.SystemPrompt,
		PersonaName:  req.PersonaName,
		Messages:     toWire(req.History),
	}
	b, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	hreq.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		hreq.Header.Set("apikey", c.APIKey)
		hreq.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.Client.Do(hreq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}

	var decoded chatResponse
	decodeErr := json.Unmarshal(raw, &decoded)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(decoded.Error)
		if decodeErr != nil || msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return "", fmt.Errorf("relay: %s", msg)
	}
	if decodeErr != nil {
		return "", fmt.Errorf("relay: decode response: %w", decodeErr)
	}
	if decoded.Error != "" {
		return "", fmt.Errorf("relay: %s", decoded.Error)
	}
	return decoded.Response, nil
}

func toWire(history []chat.Turn) []wireMessage {
	out := make([]wireMessage, 0, len(history))
	for _, t := range history {
		out = append(out, wireMessage{Role: string(t.Role), Content: t.Text})
	}
	return out
}
