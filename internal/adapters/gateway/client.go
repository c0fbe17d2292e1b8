package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/robertarktes/appointment-bookings-and-orders/internal/domain"
)

// Client is a thin HTTP adapter for the external payment gateway. Session
// lifecycle and signature scheme follow the usual checkout-session model:
// create a session for an amount plus metadata, receive signed events on a
// webhook, expire sessions that should no longer be payable.
type Client struct {
	baseURL       string
	apiKey        string
	webhookSecret []byte
	httpClient    *http.Client
}

func NewClient(baseURL, apiKey, webhookSecret string) *Client {
	return &Client{
		baseURL:       baseURL,
		apiKey:        apiKey,
		webhookSecret: []byte(webhookSecret),
		httpClient:    &http.Client{Timeout: 10 * time.Second},
	}
}

type SessionRequest struct {
	Amount      float64           `json:"amount"`
	Currency    string            `json:"currency"`
	Metadata    map[string]string `json:"metadata"`
	ExpiresIn   int               `json:"expires_in_seconds"`
	Description string            `json:"description"`
}

type Session struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (c *Client) CreateSession(ctx context.Context, req SessionRequest) (Session, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Session{}, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/checkout/sessions", bytes.NewReader(body))
	if err != nil {
		return Session{}, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", domain.ErrGateway, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return Session{}, fmt.Errorf("%w: create session returned %d", domain.ErrGateway, resp.StatusCode)
	}

	var session Session
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return Session{}, fmt.Errorf("%w: %v", domain.ErrGateway, err)
	}
	return session, nil
}

// ExpireSession cancels a session at the gateway. Sessions already expired
// or completed on the gateway side are not an error.
func (c *Client) ExpireSession(ctx context.Context, sessionID string) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/checkout/sessions/"+sessionID+"/expire", nil)
	if err != nil {
		return err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrGateway, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNotFound, http.StatusGone, http.StatusConflict:
		return nil
	default:
		return fmt.Errorf("%w: expire session returned %d", domain.ErrGateway, resp.StatusCode)
	}
}

// VerifySignature checks the hex-encoded HMAC-SHA256 of the raw payload.
func (c *Client) VerifySignature(payload []byte, signature string) error {
	mac := hmac.New(sha256.New, c.webhookSecret)
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return fmt.Errorf("%w: webhook signature mismatch", domain.ErrGateway)
	}
	return nil
}

// Sign produces the signature the gateway would attach; used in tests.
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
