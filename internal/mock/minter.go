package mock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/openbuilders/wine-minter/internal/clock"
	"github.com/openbuilders/wine-minter/internal/types"
)

const (
	txIDLength       = 64
	tokenRefIDLength = 56
	hexChars         = "0123456789abcdef"
)

var (
	ErrAlreadyMinting   = errors.New("wine is already being minted")
	ErrSimulatedFailure = errors.New("simulated minting failure - network timeout")
)

type Config struct {
	FailureRate float64
	MinDelay    time.Duration
	MaxDelay    time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		FailureRate: 0.05,
		MinDelay:    2 * time.Second,
		MaxDelay:    5 * time.Second,
	}
}

// Minter simulates the tokenization service for test mode. Each instance
// owns its in-flight set, so tests never share state.
type Minter struct {
	config   *Config
	clock    clock.Clock
	rnd      *rand.Rand
	inFlight map[string]struct{}
	mu       sync.Mutex
	log      *slog.Logger
}

func New(config *Config, clk clock.Clock, rnd *rand.Rand) *Minter {
	return &Minter{
		config:   config,
		clock:    clk,
		rnd:      rnd,
		inFlight: make(map[string]struct{}),
		log:      slog.With("component", "mock-minter"),
	}
}

// MintWine simulates a network round trip. A simulated failure is reported
// in the response, not as an error; errors are returned for a duplicate
// concurrent request or a cancelled context.
func (m *Minter) MintWine(ctx context.Context, req types.MintRequest) (
	*types.MintResponse, error) {
	requestID := req.WineryID + "-" + req.WineID

	m.mu.Lock()
	if _, ok := m.inFlight[requestID]; ok {
		m.mu.Unlock()
		return nil, ErrAlreadyMinting
	}
	m.inFlight[requestID] = struct{}{}
	delay := m.randomDelay()
	failed := m.rnd.Float64() < m.config.FailureRate
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.inFlight, requestID)
		m.mu.Unlock()
	}()

	m.log.Debug("Starting mock mint", "wine", req.WineID, "winery", req.WineryID, "delay", delay)

	if err := m.clock.Sleep(ctx, delay); err != nil {
		return nil, fmt.Errorf("mock mint interrupted: %w", err)
	}

	if failed {
		m.log.Warn("Simulated mint failure", "wine", req.WineID)
		return &types.MintResponse{
			Success: false,
			Error:   ErrSimulatedFailure.Error(),
		}, nil
	}

	m.mu.Lock()
	resp := &types.MintResponse{
		Success:    true,
		TxID:       m.randomHex(txIDLength),
		TokenRefID: m.randomHex(tokenRefIDLength),
	}
	m.mu.Unlock()

	m.log.Debug("Mock mint succeeded", "wine", req.WineID, "tx", resp.TxID)

	return resp, nil
}

// must be called with mu held
func (m *Minter) randomDelay() time.Duration {
	spread := m.config.MaxDelay - m.config.MinDelay
	if spread <= 0 {
		return m.config.MinDelay
	}
	return m.config.MinDelay + time.Duration(m.rnd.Int63n(int64(spread)))
}

// must be called with mu held
func (m *Minter) randomHex(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = hexChars[m.rnd.Intn(len(hexChars))]
	}
	return string(b)
}
