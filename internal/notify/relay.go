package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/barbershop-booking/internal/domain"
)

// Error codes carried in the relay's {"error": ...} body.
const (
	CodeTokenNotRegistered = "registration-token-not-registered"
	CodeNotOptedIn         = "recipient-not-opted-in"
	CodeDeliveryFailed     = "delivery-failed"
	CodeInvalidRequest     = "invalid-request"
)

// RelayKeyHeader carries the shared secret between relay callers and the relay.
const RelayKeyHeader = "X-Relay-Key"

// RelayRequest is the body accepted by the push relay.
type RelayRequest struct {
	RecipientID   string         `json:"recipientId" validate:"required"`
	Title         string         `json:"title" validate:"required,max=120"`
	Body          string         `json:"body" validate:"required,max=1000"`
	CorrelationID string         `json:"correlationId,omitempty"`
	Extra         map[string]any `json:"extra,omitempty"`
}

// RelayResponse is the body returned by the push relay.
type RelayResponse struct {
	Success    bool   `json:"success,omitempty"`
	DeliveryID string `json:"deliveryId,omitempty"`
	Error      string `json:"error,omitempty"`
}

// TokenChecker reports whether a recipient has a device token on file.
type TokenChecker interface {
	HasToken(ctx context.Context, userID string) (bool, error)
}

// RelaySink delivers through the server-side push relay, which holds the
// push provider credentials.
type RelaySink struct {
	endpoint string
	apiKey   string
	tokens   TokenChecker
	client   *http.Client
}

// NewRelaySink builds a relay client. tokens may be nil when the caller has
// no database access; the relay then performs the opt-in check itself.
func NewRelaySink(endpoint, apiKey string, tokens TokenChecker, client *http.Client) *RelaySink {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &RelaySink{endpoint: endpoint, apiKey: apiKey, tokens: tokens, client: client}
}

func (s *RelaySink) Deliver(ctx context.Context, msg Message) (Result, error) {
	res := Result{Channel: ChannelRelay}

	if s.tokens != nil {
		ok, err := s.tokens.HasToken(ctx, msg.RecipientID)
		if err != nil {
			res.Outcome = OutcomeFailed
			return res, fmt.Errorf("look up device token: %w: %v", domain.ErrDeliveryFailed, err)
		}
		if !ok {
			res.Outcome = OutcomeNotOptedIn
			return res, fmt.Errorf("recipient %s: %w", msg.RecipientID, domain.ErrNotOptedIn)
		}
	}

	payload, err := json.Marshal(toRelayRequest(msg))
	if err != nil {
		res.Outcome = OutcomeFailed
		return res, fmt.Errorf("marshal relay request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		res.Outcome = OutcomeFailed
		return res, fmt.Errorf("build relay request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set(RelayKeyHeader, s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			res.Outcome = OutcomeCancelled
			return res, ctx.Err()
		}
		res.Outcome = OutcomeFailed
		return res, fmt.Errorf("call relay: %w: %v", domain.ErrDeliveryFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		res.Outcome = OutcomeFailed
		return res, fmt.Errorf("read relay response (%d): %w: %v", resp.StatusCode, domain.ErrDeliveryFailed, err)
	}
	var body RelayResponse
	if err := json.Unmarshal(raw, &body); err != nil {
		res.Outcome = OutcomeFailed
		return res, fmt.Errorf("decode relay response (%d): %w: %v", resp.StatusCode, domain.ErrDeliveryFailed, err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 && body.Success {
		res.Outcome = OutcomeDelivered
		res.DeliveryID = body.DeliveryID
		return res, nil
	}

	err = relayError(resp.StatusCode, body.Error)
	res.Outcome = Classify(err)
	return res, err
}

func relayError(status int, code string) error {
	switch code {
	case CodeTokenNotRegistered:
		return fmt.Errorf("relay: %w", domain.ErrTokenInvalid)
	case CodeNotOptedIn:
		return fmt.Errorf("relay: %w", domain.ErrNotOptedIn)
	}
	if code == "" {
		code = http.StatusText(status)
	}
	return fmt.Errorf("relay returned %d (%s): %w", status, code, domain.ErrDeliveryFailed)
}

func toRelayRequest(msg Message) RelayRequest {
	extra := make(map[string]any, len(msg.Metadata)+1)
	for k, v := range msg.Metadata {
		extra[k] = v
	}
	if msg.Tag != "" {
		extra["tag"] = msg.Tag
	}
	if len(extra) == 0 {
		extra = nil
	}
	return RelayRequest{
		RecipientID:   msg.RecipientID,
		Title:         msg.Title,
		Body:          msg.Body,
		CorrelationID: msg.CorrelationID,
		Extra:         extra,
	}
}
