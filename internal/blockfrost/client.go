package blockfrost

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/openbuilders/wine-minter/internal/httpx"
	"github.com/openbuilders/wine-minter/internal/types"

	"github.com/go-resty/resty/v2"
)

const (
	DefaultURL = "https://cardano-mainnet.blockfrost.io/api/v0"

	detailsNotFound    = "Transaction not yet found on blockchain"
	detailsUnconfirmed = "Transaction submitted but not yet confirmed"
)

var ErrMissingAPIKey = errors.New("BLOCKFROST_API_KEY is not set")

type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// Client reads transaction state from the Blockfrost Cardano API.
type Client struct {
	http *resty.Client
	log  *slog.Logger
}

type transaction struct {
	Hash          string `json:"hash"`
	Block         string `json:"block"`
	BlockHeight   *int64 `json:"block_height"`
	BlockTime     int64  `json:"block_time"`
	Slot          int64  `json:"slot"`
	ValidContract *bool  `json:"valid_contract"`
}

func New(config *Config) (*Client, error) {
	if config.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	base := config.URL
	if base == "" {
		base = DefaultURL
	}

	logger := slog.With("component", "blockfrost")

	return &Client{
		http: httpx.NewClient(logger, config.Timeout).
			SetBaseURL(strings.TrimRight(base, "/")).
			SetHeader("project_id", config.APIKey),
		log: logger,
	}, nil
}

// TransactionStatus maps the Blockfrost view of txID onto a chain state.
// Transport failures and unexpected responses are returned as errors and are
// expected to be retried by the caller.
func (c *Client) TransactionStatus(ctx context.Context, txID string) (
	*types.TransactionStatus, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		Get("/txs/" + url.PathEscape(txID))
	if err != nil {
		return nil, fmt.Errorf("transaction status request failed: %w", err)
	}

	if resp.StatusCode() == http.StatusNotFound {
		return &types.TransactionStatus{
			Status:  types.ChainPending,
			Details: detailsNotFound,
		}, nil
	}

	if resp.IsError() {
		return nil, fmt.Errorf("transaction status request failed: %s - %s",
			resp.Status(), strings.TrimSpace(resp.String()))
	}

	var tx transaction
	if err := json.Unmarshal(resp.Body(), &tx); err != nil {
		return nil, fmt.Errorf("transaction unmarshalling error: %w", err)
	}

	if tx.Block == "" || tx.BlockHeight == nil {
		return &types.TransactionStatus{
			Status:  types.ChainPending,
			Details: detailsUnconfirmed,
		}, nil
	}

	if tx.ValidContract != nil && !*tx.ValidContract {
		c.log.Warn("Transaction included with failed scripts", "tx", txID, "block", tx.Block)
		return &types.TransactionStatus{
			Status:      types.ChainError,
			Details:     "script validation failed in block " + tx.Block,
			BlockHeight: *tx.BlockHeight,
		}, nil
	}

	c.log.Debug("Transaction confirmed", "tx", txID, "block", tx.Block, "height", *tx.BlockHeight)

	return &types.TransactionStatus{
		Status:        types.ChainComplete,
		Details:       "Transaction confirmed in block " + tx.Block,
		BlockHeight:   *tx.BlockHeight,
		Confirmations: 1,
	}, nil
}
