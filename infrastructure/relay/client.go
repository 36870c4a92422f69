//go:generate go run go.uber.org/mock/mockgen -source=client.go -destination=../../mocks/mock_relay_doer.go -package=mocks
package relay

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"wagl-backend/domain"
	"wagl-backend/errors"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
)

const DefaultTimeout = 10 * time.Second

// Doer is the part of *http.Client the relay client needs.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type ClientConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client talks to the relay target. Its public methods never return errors:
// the chat keeps working while the relay is down, failures only reach the logs.
type Client struct {
	baseURL    string
	apiKey     string
	timeout    time.Duration
	doer       Doer
	breaker    *CircuitBreaker
	addressing *Addressing
	log        *slog.Logger
}

func NewClient(cfg ClientConfig, doer Doer, breaker *CircuitBreaker, addressing *Addressing, log *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		timeout:    cfg.Timeout,
		doer:       doer,
		breaker:    breaker,
		addressing: addressing,
		log:        log,
	}
}

type messagePayload struct {
	Room       int    `json:"room"`
	UserID     int64  `json:"user_id"`
	MessageID  string `json:"message_id"`
	SenderName string `json:"sender_name"`
	Content    string `json:"content"`
	Language   string `json:"language,omitempty"`
	SentAt     string `json:"sent_at"`
}

type presencePayload struct {
	Room        int    `json:"room"`
	UserID      int64  `json:"user_id"`
	DisplayName string `json:"display_name"`
}

type healthPayload struct {
	Room int `json:"room"`
}

func (c *Client) Relay(ctx context.Context, msg domain.ChatMessage, relaySessionID string, roomNumber int) bool {
	return c.call(ctx, "message", relaySessionID, messagePayload{
		Room:       roomNumber,
		UserID:     UserIDFor(msg.ParticipantID),
		MessageID:  msg.ID.String(),
		SenderName: msg.SenderName,
		Content:    msg.Content,
		Language:   msg.Language,
		SentAt:     msg.SentAt.UTC().Format(time.RFC3339Nano),
	})
}

func (c *Client) NotifyConnect(ctx context.Context, p domain.Participant, relaySessionID string, roomNumber int) bool {
	return c.call(ctx, "connect", relaySessionID, presencePayload{
		Room:        roomNumber,
		UserID:      UserIDFor(p.ID),
		DisplayName: p.DisplayName,
	})
}

func (c *Client) NotifyDisconnect(ctx context.Context, p domain.Participant, relaySessionID string, roomNumber int) bool {
	return c.call(ctx, "disconnect", relaySessionID, presencePayload{
		Room:        roomNumber,
		UserID:      UserIDFor(p.ID),
		DisplayName: p.DisplayName,
	})
}

// IsHealthy checks the relay on the reserved health room, which never carries chat traffic.
func (c *Client) IsHealthy(ctx context.Context) bool {
	return c.call(ctx, "health", SessionIDFor(uuid.Nil), healthPayload{Room: c.addressing.HealthRoom()})
}

func (c *Client) Stats() BreakerStats { return c.breaker.Stats() }

func (c *Client) call(ctx context.Context, operation, relaySessionID string, payload any) bool {
	err := c.send(ctx, operation, relaySessionID, payload)
	if err == nil {
		return true
	}
	var statusErr *StatusError
	switch {
	case errors.As(err, &statusErr):
		c.log.Log(ctx, statusErr.level(), statusErr.hint(),
			"operation", operation, "session", relaySessionID, "status", statusErr.StatusCode)
	case errors.Is(err, errors.ErrServiceUnavailable):
		c.log.Warn("Relay circuit open, call skipped", "operation", operation, "session", relaySessionID)
	default:
		c.log.Warn("Relay call failed", "operation", operation, "session", relaySessionID, "error", err)
	}
	return false
}

func (c *Client) send(ctx context.Context, operation, relaySessionID string, payload any) error {
	if !c.breaker.Allow() {
		return errors.ErrServiceUnavailable
	}
	err := c.do(ctx, operation, relaySessionID, payload)
	c.breaker.RecordResult(err == nil)
	return err
}

func (c *Client) do(ctx context.Context, operation, relaySessionID string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", operation, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	url := fmt.Sprintf("%s/sessions/%s/%s", c.baseURL, relaySessionID, operation)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.doer.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			return fmt.Errorf("%w: %s after %s", errors.ErrRelayTimeout, operation, c.timeout)
		}
		return fmt.Errorf("%w: %s: %v", errors.ErrRelayNetwork, operation, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Operation: operation, StatusCode: resp.StatusCode, Category: CategoryOf(resp.StatusCode)}
	}
	return nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
