package webpush

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Notification is the JSON payload shown by the mobile client's service
// worker.
type Notification struct {
	Title              string         `json:"title"`
	Body               string         `json:"body"`
	Data               map[string]any `json:"data,omitempty"`
	Tag                string         `json:"tag,omitempty"`
	RequireInteraction bool           `json:"requireInteraction,omitempty"`
}

// Sender delivers encrypted notifications to push-service endpoints.
// Delivery is best-effort: callers dispatch sends in the background and
// only ever log failures.
type Sender struct {
	vapid  *VAPIDKey
	client *http.Client
	log    *slog.Logger
}

// NewSender creates a sender using the given VAPID identity.
func NewSender(vapid *VAPIDKey, log *slog.Logger) *Sender {
	return &Sender{
		vapid:  vapid,
		client: &http.Client{Timeout: 15 * time.Second},
		log:    log,
	}
}

// Send encrypts and POSTs one notification to the subscription endpoint.
func (s *Sender) Send(ctx context.Context, sub Subscription, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("webpush: encoding notification: %w", err)
	}

	body, err := Encrypt(payload, sub)
	if err != nil {
		return err
	}

	auth, err := s.vapid.AuthorizationHeader(sub.Endpoint)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webpush: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Content-Encoding", "aes128gcm")
	req.Header.Set("TTL", "86400")
	req.Header.Set("Authorization", auth)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("webpush: posting to push service: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webpush: push service returned %d", resp.StatusCode)
	}
	return nil
}

// SendAsync dispatches Send on a new goroutine and logs the outcome. The
// approval workflow never waits on, or fails because of, push delivery.
func (s *Sender) SendAsync(sub Subscription, n Notification) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()

		if err := s.Send(ctx, sub, n); err != nil {
			s.log.Warn("push delivery failed", "error", err)
			return
		}
		s.log.Debug("push delivered", "tag", n.Tag)
	}()
}
