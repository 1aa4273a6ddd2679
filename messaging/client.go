package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenLifetime = 5 * time.Minute

// Client is the HTTP Gateway implementation. Every request carries a
// short-lived HS256 bearer token derived from the shared gateway secret.
type Client struct {
	baseURL    string
	secret     []byte
	httpClient *http.Client
	now        func() time.Time
}

func NewClient(baseURL, secret string) *Client {
	return &Client{
		baseURL:    baseURL,
		secret:     []byte(secret),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		now:        time.Now,
	}
}

// SendMessage implements Gateway.
func (c *Client) SendMessage(ctx context.Context, channelID, text string) error {
	body := map[string]string{"text": text}
	return c.post(ctx, fmt.Sprintf("/channels/%s/messages", url.PathEscape(channelID)), body)
}

// SendInteractionRequest implements Gateway.
func (c *Client) SendInteractionRequest(ctx context.Context, channelID string, req InteractionRequest) error {
	return c.post(ctx, fmt.Sprintf("/channels/%s/interactions", url.PathEscape(channelID)), req)
}

func (c *Client) post(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("messaging: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("messaging: build request: %w", err)
	}

	token, err := c.signToken()
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("messaging: post %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("messaging: post %s: gateway returned %d: %s", path, resp.StatusCode, snippet)
	}
	return nil
}

func (c *Client) signToken() (string, error) {
	now := c.now()
	claims := jwt.RegisteredClaims{
		Issuer:    "dealflow",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenLifetime)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("messaging: sign token: %w", err)
	}
	return token, nil
}
