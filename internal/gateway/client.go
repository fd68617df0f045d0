package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrUnavailable covers timeouts, transport failures and gateway 5xx
	// responses. The API layer maps it to 502.
	ErrUnavailable = errors.New("payment gateway unavailable")

	ErrVerificationFailed = errors.New("payment verification failed")
)

// OrderRequest is what the service asks the gateway to charge. Amount is
// always the server-side repriced value in paise.
type OrderRequest struct {
	AmountPaise int64
	Currency    string
	Receipt     string
}

// OrderRef identifies an order created at the gateway.
type OrderRef struct {
	ID          string
	AmountPaise int64
	Currency    string
}

// Client talks to the payment gateway's order API over HTTP with basic
// auth and a bounded timeout.
type Client struct {
	keyID     string
	keySecret string
	baseURL   string
	http      *http.Client
	logger    zerolog.Logger
}

func NewClient(keyID, keySecret, baseURL string, timeout time.Duration, logger *zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "gateway").Logger()
	}
	return &Client{
		keyID:     keyID,
		keySecret: keySecret,
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      &http.Client{Timeout: timeout},
		logger:    l,
	}
}

// KeySecret exposes the signing secret for confirmation verification.
func (c *Client) KeySecret() string {
	return c.keySecret
}

// VerifySignature checks a confirmation signature against this client's
// secret.
func (c *Client) VerifySignature(orderID, paymentID, signature string) bool {
	return VerifySignature(orderID, paymentID, signature, c.keySecret)
}

type createOrderRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

type createOrderResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}

// CreateOrder registers an order with the gateway and returns its
// reference. Transport errors and 5xx responses wrap ErrUnavailable.
func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) (*OrderRef, error) {
	body, err := json.Marshal(createOrderRequest{
		Amount:   req.AmountPaise,
		Currency: req.Currency,
		Receipt:  req.Receipt,
	})
	if err != nil {
		return nil, fmt.Errorf("encode order request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build order request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth(c.keyID, c.keySecret)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.logger.Warn().Err(err).Msg("gateway request failed")
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		c.logger.Warn().Int("status", resp.StatusCode).Msg("gateway server error")
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("gateway rejected order: status %d: %s", resp.StatusCode, raw)
	}

	var decoded createOrderResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("decode order response: %w", err)
	}
	if decoded.ID == "" {
		return nil, fmt.Errorf("gateway returned empty order id")
	}

	return &OrderRef{
		ID:          decoded.ID,
		AmountPaise: decoded.Amount,
		Currency:    decoded.Currency,
	}, nil
}
