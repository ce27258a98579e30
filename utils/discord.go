package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// SendDiscordNotification posts content to a Discord webhook.
//
// Parameters:
//   - ctx: Bounds the request
//   - client: HTTP client to use; http.DefaultClient when nil
//   - webhook: The Discord webhook URL to POST to
//   - content: The message content, sent as the "content" JSON field
//
// Returns:
//   - An error if the request cannot be sent or Discord answers with a non-2xx status
func SendDiscordNotification(ctx context.Context, client *http.Client, webhook string, content string) error {
	if client == nil {
		client = http.DefaultClient
	}

	body, err := json.Marshal(map[string]string{"content": content})
	if err != nil {
		return fmt.Errorf("encode discord payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhook, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build discord request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send discord notification: %w", err)
	}

	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("discord webhook returned status %d", resp.StatusCode)
	}

	return nil
}
