package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
)

type PushSender interface {
	Send(ctx context.Context, userIDs []uint, title, body string) error
}

// HTTPPush posts notification requests to an external push gateway.
type HTTPPush struct {
	base   string
	client *http.Client
}

func NewHTTPPush(base string) *HTTPPush {
	return &HTTPPush{
		base:   base,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type pushReq struct {
	UserIDs []uint `json:"user_ids"`
	Title   string `json:"title"`
	Body    string `json:"body"`
}

func (p *HTTPPush) Send(ctx context.Context, userIDs []uint, title, body string) error {
	if len(userIDs) == 0 {
		return nil
	}
	payload, err := json.Marshal(pushReq{UserIDs: userIDs, Title: title, Body: body})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.base+"/push", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("push gateway: status %d", resp.StatusCode)
	}
	return nil
}

// LogPush is the dev-mode sender used when no gateway is configured.
type LogPush struct{}

func (LogPush) Send(_ context.Context, userIDs []uint, title, body string) error {
	log.Printf("[push] to=%v title=%q body=%q", userIDs, title, body)
	return nil
}
