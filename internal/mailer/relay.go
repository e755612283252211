// Package mailer delivers password reset links.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultTimeout = 15 * time.Second

const resetSubject = "Reset your password"

// HTTPRelay sends reset emails through an HTTP mail relay that accepts a JSON message.
type HTTPRelay struct {
	APIKey     string
	URL        string
	From       string
	HTTPClient *http.Client
}

// NewHTTPRelay returns a relay client for url authenticated with apiKey.
func NewHTTPRelay(url, apiKey, from string) *HTTPRelay {
	return &HTTPRelay{
		APIKey:     apiKey,
		URL:        url,
		From:       from,
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
}

type relayMessage struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

// SendResetEmail posts the reset link to the relay. Does not log the link.
func (c *HTTPRelay) SendResetEmail(ctx context.Context, address, link string) error {
	if c.URL == "" {
		return errors.New("mailer: relay URL not configured")
	}
	raw, err := json.Marshal(relayMessage{
		From:    c.From,
		To:      address,
		Subject: resetSubject,
		Text:    resetBody(link),
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("mailer: relay failed status=%d body=%s", resp.StatusCode, string(b))
	}
	return nil
}

func resetBody(link string) string {
	return "We received a request to reset your password.\n\n" +
		"Open this link to choose a new one:\n" + link + "\n\n" +
		"If you did not ask for this, you can ignore this email."
}
