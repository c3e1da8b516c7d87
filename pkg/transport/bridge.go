package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Bridge implements Messenger against the chat host's HTTP bridge. The
// bridge owns everything room-specific: Markdown rendering, reply
// threading markup, presence. We only ship it small JSON payloads.
type Bridge struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewBridge(baseURL, token string) *Bridge {
	return &Bridge{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

type sendPayload struct {
	RoomID    string `json:"room_id"`
	MessageID string `json:"message_id,omitempty"`
	Body      string `json:"body"`
	AsReply   bool   `json:"as_reply"`
}

type typingPayload struct {
	RoomID    string `json:"room_id"`
	TimeoutMS int64  `json:"timeout_ms"`
}

type receiptPayload struct {
	RoomID    string `json:"room_id"`
	MessageID string `json:"message_id"`
}

type whoamiResponse struct {
	DisplayName string `json:"display_name"`
}

func (b *Bridge) SendText(ctx context.Context, target Target, body string, asReply bool) error {
	return b.post(ctx, "/send", sendPayload{
		RoomID:    target.RoomID,
		MessageID: target.MessageID,
		Body:      body,
		AsReply:   asReply,
	})
}

func (b *Bridge) SignalComposing(ctx context.Context, target Target, timeout time.Duration) error {
	return b.post(ctx, "/typing", typingPayload{
		RoomID:    target.RoomID,
		TimeoutMS: timeout.Milliseconds(),
	})
}

func (b *Bridge) ClearComposing(ctx context.Context, target Target) error {
	return b.post(ctx, "/typing", typingPayload{RoomID: target.RoomID})
}

func (b *Bridge) MarkRead(ctx context.Context, target Target) error {
	return b.post(ctx, "/receipts", receiptPayload{
		RoomID:    target.RoomID,
		MessageID: target.MessageID,
	})
}

func (b *Bridge) DisplayName(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/whoami", nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	b.authorize(req)

	resp, err := b.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("whoami: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("whoami: unexpected status %s", resp.Status)
	}

	var who whoamiResponse
	if err := json.NewDecoder(resp.Body).Decode(&who); err != nil {
		return "", fmt.Errorf("whoami: decode: %w", err)
	}
	return who.DisplayName, nil
}

func (b *Bridge) post(ctx context.Context, path string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	b.authorize(req)

	resp, err := b.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("%s: unexpected status %s", path, resp.Status)
	}
	return nil
}

func (b *Bridge) authorize(req *http.Request) {
	if b.token != "" {
		req.Header.Set("Authorization", "Bearer "+b.token)
	}
}
