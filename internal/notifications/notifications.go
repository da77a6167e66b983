package notifications

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// Client posts operator notifications to ntfy.sh. A nil Client drops
// everything, so callers don't need to guard on configuration.
type Client struct {
	http  *http.Client
	topic string
}

func New(topic string) *Client {
	if topic == "" {
		log.Warn().Msg("Ntfy topic not configured - notifications disabled")
		return nil
	}
	return &Client{
		http:  &http.Client{Timeout: 10 * time.Second},
		topic: topic,
	}
}

func (c *Client) Send(title, message string) error {
	if c == nil {
		return nil
	}

	payload := map[string]interface{}{
		"topic":   c.topic,
		"title":   title,
		"message": message,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	url := fmt.Sprintf("https://ntfy.sh/%s", c.topic)
	req, err := http.NewRequest("POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy returned non-success status: %d", resp.StatusCode)
	}

	log.Debug().Str("title", title).Int("status", resp.StatusCode).Msg("Notification sent")
	return nil
}
