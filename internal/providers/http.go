package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// postJSON sends one JSON request and decodes a 200 answer into out. Transport
// failures become *TransientError unless ctx is done, in which case ctx.Err()
// is returned so the caller can tell a deadline from a network failure.
func postJSON(ctx context.Context, client *http.Client, provider, url string, headers map[string]string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &TransientError{Provider: provider, Err: fmt.Errorf("sending request: %w", err)}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &TransientError{Provider: provider, Err: fmt.Errorf("reading response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return classifyStatus(provider, resp.StatusCode, data)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return &TransientError{Provider: provider, StatusCode: resp.StatusCode, Err: fmt.Errorf("parsing response: %w", err)}
	}
	return nil
}
