package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// discordLimit is the maximum length of a webhook message content.
const discordLimit = 2000

// StatusError is a non-2xx webhook response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("webhook returned %d: %s", e.StatusCode, e.Body)
}

type Discord struct {
	Webhook string
	Client  *http.Client
}

func NewDiscord(webhook string) *Discord {
	if webhook == "" {
		return nil
	}
	return &Discord{
		Webhook: webhook,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type discordPayload struct {
	Content string `json:"content"`
}

// Send posts "<action>,<message>". Long host lists are split across several
// posts so each stays under the webhook content limit.
func (d *Discord) Send(ctx context.Context, p Payload) error {
	if d == nil || d.Webhook == "" {
		return errors.New("discord disabled")
	}
	for _, content := range discordChunks(p) {
		if err := d.post(ctx, content); err != nil {
			return err
		}
	}
	return nil
}

func (d *Discord) post(ctx context.Context, content string) error {
	body, _ := json.Marshal(discordPayload{Content: content})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.Webhook, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	return nil
}

func discordChunks(p Payload) []string {
	var (
		out  []string
		cur  []string
		size int
	)
	prefix := p.Action + ","
	for _, m := range p.Message {
		// 4 = quotes plus ", " separator
		if len(cur) > 0 && len(prefix)+size+len(m)+4 > discordLimit {
			out = append(out, prefix+FormatList(cur))
			cur, size = nil, 0
		}
		cur = append(cur, m)
		size += len(m) + 4
	}
	if len(cur) > 0 || len(out) == 0 {
		out = append(out, prefix+FormatList(cur))
	}
	return out
}
