package tokenization

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/openbuilders/wine-minter/internal/helpers"
	"github.com/openbuilders/wine-minter/internal/httpx"
	"github.com/openbuilders/wine-minter/internal/types"

	"github.com/go-resty/resty/v2"
)

// DefaultProbeAsset is a minted wine token used to verify credentials when no
// other probe asset is configured.
const DefaultProbeAsset = "34957659047139c2a282acc0b7c67871a5ef1bb67e4ad2787d2a1892." +
	"000643b0d7d90e688f9db72bd90e2e362f2bf20bd1598362baf9691c589ea5d3"

var (
	ErrMissingConfig       = errors.New("missing TOKENIZATION_API_URL, TOKENIZATION_API_USERNAME or TOKENIZATION_API_PASSWORD")
	ErrInvalidIPFSResponse = errors.New("invalid IPFS response format")
	ErrInvalidMintResponse = errors.New("invalid minting response: missing txId or tokenRefId")
	ErrRequestTimeout      = errors.New("request timeout")
)

type Config struct {
	URL         string
	Username    string
	Password    string
	Timeout     time.Duration
	MintTimeout time.Duration
	// Gateway is the HTTP IPFS gateway used for reference links in logs.
	Gateway string
	// ProbeAsset is the asset unit retrieved by TestConnection. Empty means
	// DefaultProbeAsset.
	ProbeAsset string
}

func (c *Config) Validate() error {
	if c.URL == "" || c.Username == "" || c.Password == "" {
		return ErrMissingConfig
	}
	return nil
}

// Client talks to the tokenization API: IPFS uploads, batch mints and asset
// lookups. Every call is authenticated with basic auth.
type Client struct {
	config *Config
	http   *resty.Client
	log    *slog.Logger
}

func New(config *Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	if config.ProbeAsset == "" {
		config.ProbeAsset = DefaultProbeAsset
	}

	logger := slog.With("component", "tokenization")

	httpClient := httpx.NewClient(logger, config.Timeout).
		SetBaseURL(strings.TrimRight(config.URL, "/")).
		SetBasicAuth(config.Username, config.Password)

	return &Client{
		config: config,
		http:   httpClient,
		log:    logger,
	}, nil
}

// AddImage uploads the image to IPFS and returns its ipfs://<hash> URI.
func (c *Client) AddImage(ctx context.Context, image *types.Image) (string, error) {
	c.log.Debug("Uploading image to IPFS", "file", image.FileName, "size", len(image.Data))

	resp, err := c.http.R().
		SetContext(ctx).
		SetMultipartField("file", image.FileName, image.ContentType,
			bytes.NewReader(image.Data)).
		Post("/add")
	if err != nil {
		return "", fmt.Errorf("IPFS upload failed: %w", err)
	}

	if resp.IsError() {
		return "", fmt.Errorf("IPFS upload failed: %s - %s", resp.Status(),
			strings.TrimSpace(resp.String()))
	}

	uri, err := ParseIPFSURI(resp.String())
	if err != nil {
		return "", err
	}

	if c.config.Gateway != "" {
		c.log.Info("Image uploaded to IPFS", "uri", uri, "url", GatewayURL(c.config.Gateway, uri))
	} else {
		c.log.Info("Image uploaded to IPFS", "uri", uri)
	}

	return uri, nil
}

// ParseIPFSURI cleans the raw upload response (whitespace, stray quotes) and
// checks the ipfs:// scheme.
func ParseIPFSURI(body string) (string, error) {
	uri := strings.Trim(strings.TrimSpace(body), `"'`)

	if !strings.HasPrefix(uri, types.IPFSScheme) || len(uri) == len(types.IPFSScheme) {
		return "", ErrInvalidIPFSResponse
	}

	return uri, nil
}

// GatewayURL maps an ipfs:// URI onto an HTTP gateway for reference links.
func GatewayURL(gateway, uri string) string {
	hash := strings.TrimPrefix(uri, types.IPFSScheme)
	return strings.TrimRight(gateway, "/") + "/ipfs/" + hash
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Details string `json:"details"`
}

// MintBatch submits the payload and returns the transaction and token
// reference identifiers. The call is bounded by MintTimeout.
func (c *Client) MintBatch(ctx context.Context, payload *types.MintPayload) (
	*types.MintReceipt, error) {
	requestID := helpers.ShortID(payload.BatchMeta.Name,
		strconv.FormatInt(time.Now().UnixNano(), 10))
	log := c.log.With("request", requestID)

	ctx, cancel := context.WithTimeout(ctx, c.config.MintTimeout)
	defer cancel()

	log.Info("Submitting mint", "name", payload.BatchMeta.Name, "image", payload.BatchMeta.Image)

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post("/tx/false/mint-batch")
	if err != nil {
		if httpx.IsTimeout(err) {
			log.Error("Mint request timed out", "timeout", c.config.MintTimeout)
			return nil, fmt.Errorf("minting failed: %w after %s", ErrRequestTimeout,
				c.config.MintTimeout)
		}
		return nil, fmt.Errorf("minting failed: %w", err)
	}

	if resp.IsError() {
		var apiErr errorResponse
		message := strings.TrimSpace(resp.String())
		if json.Unmarshal(resp.Body(), &apiErr) == nil && apiErr.Error != "" {
			message = apiErr.Error
		}

		log.Error("Tokenization API error", "status", resp.StatusCode(), "body", resp.String())
		return nil, fmt.Errorf("minting failed: %s - %s", resp.Status(), message)
	}

	var receipt types.MintReceipt
	if err := json.Unmarshal(resp.Body(), &receipt); err != nil {
		return nil, fmt.Errorf("minting response unmarshalling error: %w", err)
	}

	if receipt.TxID == "" || receipt.TokenRefID == "" {
		return nil, ErrInvalidMintResponse
	}

	log.Info("Mint submitted", "tx", receipt.TxID, "token", receipt.TokenRefID)

	return &receipt, nil
}

// RetrieveAsset fetches the on-chain metadata of a minted asset.
func (c *Client) RetrieveAsset(ctx context.Context, unit string) (map[string]any, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		Get("/wine/" + url.PathEscape(unit))
	if err != nil {
		return nil, fmt.Errorf("asset retrieval failed: %w", err)
	}

	if resp.StatusCode() == http.StatusNotFound {
		return nil, nil
	}

	if resp.IsError() {
		return nil, fmt.Errorf("asset retrieval failed: %s - %s", resp.Status(),
			strings.TrimSpace(resp.String()))
	}

	asset := map[string]any{}
	if err := json.Unmarshal(resp.Body(), &asset); err != nil {
		return nil, fmt.Errorf("asset unmarshalling error: %w", err)
	}

	return asset, nil
}

// TestConnection checks credentials by retrieving the probe asset.
func (c *Client) TestConnection(ctx context.Context) error {
	resp, err := c.http.R().
		SetContext(ctx).
		Get("/wine/" + url.PathEscape(c.config.ProbeAsset))
	if err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}

	if resp.IsError() {
		return fmt.Errorf("connection test failed: %s", resp.Status())
	}

	return nil
}
