package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/openbridge-labs/bridge-relay/internal/chain"
	"github.com/openbridge-labs/bridge-relay/internal/retry"
)

// Payload is the wire unit posted to the destination system.
type Payload struct {
	SourceTxHash  string       `json:"source_tx_hash"`
	SourceChainID uint64       `json:"source_chain_id"`
	EventType     string       `json:"event_type"`
	Payload       TokenPayload `json:"payload"`
}

// TokenPayload carries the decoded event arguments. Amount travels as a
// decimal string; uint256 does not fit JSON numbers.
type TokenPayload struct {
	Sender             string `json:"sender"`
	Recipient          string `json:"recipient"`
	Amount             string `json:"amount"`
	DestinationChainID uint64 `json:"destination_chain_id"`
}

// NewPayload derives the wire unit from a decoded event and the source
// chain id.
func NewPayload(ev chain.LockEvent, sourceChainID uint64) Payload {
	return Payload{
		SourceTxHash:  ev.TxHash.Hex(),
		SourceChainID: sourceChainID,
		EventType:     chain.EventName,
		Payload: TokenPayload{
			Sender:             ev.Sender.Hex(),
			Recipient:          ev.Recipient.Hex(),
			Amount:             ev.Amount.String(),
			DestinationChainID: ev.DestinationChainID.Uint64(),
		},
	}
}

// Sender delivers one payload to the destination, reporting success or
// failure after its own retry handling.
type Sender interface {
	Send(ctx context.Context, payload Payload) error
}

// StatusError is a non-2xx response from the destination.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("destination status %d", e.Code)
}

// Relayer posts payloads to the destination API with bounded retry.
type Relayer struct {
	endpoint string
	apiKey   string
	client   *http.Client
	policy   retry.Policy
	log      *slog.Logger
}

// NewRelayer builds the HTTP delivery client. timeout bounds each
// attempt; policy bounds how many attempts are made.
func NewRelayer(endpoint, apiKey string, timeout time.Duration, policy retry.Policy, log *slog.Logger) (*Relayer, error) {
	if endpoint == "" {
		return nil, errors.New("destination endpoint required")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if policy.Retryable == nil {
		policy.Retryable = retryableDelivery
	}
	if log == nil {
		log = slog.Default()
	}
	return &Relayer{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: timeout},
		policy:   policy,
		log:      log,
	}, nil
}

// Send posts the payload, retrying 5xx-class failures up to the policy
// ceiling. Any returned error means delivery did not succeed.
func (r *Relayer) Send(ctx context.Context, payload Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	attempt := 0
	return r.policy.Do(ctx, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			r.log.Warn("retrying delivery",
				"tx", payload.SourceTxHash, "attempt", attempt)
		}
		return r.post(ctx, body)
	})
}

func (r *Relayer) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", r.apiKey)

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode}
	}
	return nil
}

// retryableDelivery retries transport errors and the transient 5xx
// statuses; everything else (auth failures, validation rejects) is
// surfaced immediately.
func retryableDelivery(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		switch se.Code {
		case http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	// Anything else here is transport-level: refused connections,
	// timeouts, resets.
	return true
}
