package writequeue

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, e Entry) error

func (f SenderFunc) Send(ctx context.Context, e Entry) error { return f(ctx, e) }

// Router dispatches entries to a Sender registered for their target.
type Router map[string]Sender

func (r Router) Send(ctx context.Context, e Entry) error {
	s, ok := r[e.Target]
	if !ok || s == nil {
		return fmt.Errorf("%w: %s", ErrUnknownTarget, e.Target)
	}
	return s.Send(ctx, e)
}

// RequiresNetwork reports whether the sender registered for target is network-bound.
// Unknown targets are not, so they are attempted and eventually dropped.
func (r Router) RequiresNetwork(target string) bool {
	nb, ok := r[target].(NetworkBound)
	return ok && nb.RequiresNetwork(target)
}

// HTTPSender delivers entries to a remote endpoint. The entry id is sent as
// Idempotency-Key so receivers can absorb redeliveries.
type HTTPSender struct {
	URL    string
	Client *http.Client
	// OnNetworkError is called when the request could not reach the endpoint.
	OnNetworkError func()
}

func NewHTTPSender(url string, timeout time.Duration, onNetworkError func()) *HTTPSender {
	return &HTTPSender{
		URL:            url,
		Client:         &http.Client{Timeout: timeout},
		OnNetworkError: onNetworkError,
	}
}

func (s *HTTPSender) RequiresNetwork(string) bool { return true }

func (s *HTTPSender) Send(ctx context.Context, e Entry) error {
	method := e.Method
	if method == "" {
		method = http.MethodPost
	}
	req, err := http.NewRequestWithContext(ctx, method, s.URL, bytes.NewReader(e.Body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", e.ID)

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		if s.OnNetworkError != nil {
			s.OnNetworkError()
		}
		return fmt.Errorf("%w: %w", ErrNetworkFailure, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("writequeue: %s %s: unexpected status %d", method, s.URL, resp.StatusCode)
	}
	return nil
}
