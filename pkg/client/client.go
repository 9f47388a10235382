package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gregtusar/simfeed/pkg/models"
	"github.com/sirupsen/logrus"
)

// APIError is a non-2xx response from the feed server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

type Client struct {
	baseURL    string
	auth       Authenticator
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewClient talks to a feed server at baseURL. auth may be nil when the
// server does not require signed orders.
func NewClient(baseURL string, auth Authenticator, logger *logrus.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		auth:       auth,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

func (c *Client) GetSnapshot(ctx context.Context) (*models.Snapshot, error) {
	var snap models.Snapshot
	if err := c.do(ctx, http.MethodGet, "/api/snapshot", nil, &snap, false); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (c *Client) PlaceOrder(ctx context.Context, order models.OrderRequest) (*models.Trade, error) {
	body, err := json.Marshal(order)
	if err != nil {
		return nil, fmt.Errorf("failed to encode order: %w", err)
	}

	var trade models.Trade
	if err := c.do(ctx, http.MethodPost, "/api/orders", body, &trade, true); err != nil {
		return nil, err
	}

	c.logger.WithFields(logrus.Fields{
		"id":    trade.ID,
		"side":  trade.Side,
		"price": trade.Price.String(),
	}).Debug("Order filled")
	return &trade, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out interface{}, signed bool) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if signed && c.auth != nil {
		if err := c.auth.AddAuthHeaders(req); err != nil {
			return err
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}

	var payload struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil && payload.Error != "" {
		apiErr.Message = payload.Error
	}
	return apiErr
}
