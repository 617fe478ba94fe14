package iot

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/openbuilders/wine-minter/internal/httpx"

	"github.com/go-resty/resty/v2"
)

// Client reads the current storage sensor readings that are embedded into
// each minted token.
type Client struct {
	url  string
	http *resty.Client
	log  *slog.Logger
}

func New(url string, timeout time.Duration) *Client {
	logger := slog.With("component", "iot")

	return &Client{
		url:  url,
		http: httpx.NewClient(logger, timeout),
		log:  logger,
	}
}

// Snapshot returns the "data" object of the sensors response, or the whole
// response when it has none.
func (c *Client) Snapshot(ctx context.Context) (map[string]any, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		Get(c.url)
	if err != nil {
		return nil, fmt.Errorf("sensor request failed: %w", err)
	}

	if resp.IsError() {
		return nil, fmt.Errorf("sensor request failed: %s", resp.Status())
	}

	var body map[string]any
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("sensor response unmarshalling error: %w", err)
	}

	if data, ok := body["data"].(map[string]any); ok {
		return data, nil
	}

	if body == nil {
		body = map[string]any{}
	}

	return body, nil
}
