package mock

import (
	"context"
	"math/rand"
	"regexp"
	"testing"
	"time"

	"github.com/openbuilders/wine-minter/internal/clock"
	"github.com/openbuilders/wine-minter/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var hexRe = regexp.MustCompile(`^[0-9a-f]+$`)

func newMinter(failureRate float64, clk clock.Clock) *Minter {
	return New(&Config{
		FailureRate: failureRate,
		MinDelay:    2 * time.Second,
		MaxDelay:    5 * time.Second,
	}, clk, rand.New(rand.NewSource(42)))
}

func inFlight(m *Minter) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.inFlight)
}

func TestMinter_Success(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	m := newMinter(0, clk)

	resp, err := m.MintWine(context.Background(), types.MintRequest{
		WineID:   "mock-wine-1",
		WineryID: "mock-winery-1",
	})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Len(t, resp.TxID, 64)
	assert.Len(t, resp.TokenRefID, 56)
	assert.Regexp(t, hexRe, resp.TxID)
	assert.Regexp(t, hexRe, resp.TokenRefID)

	sleeps := clk.Sleeps()
	require.Len(t, sleeps, 1)
	assert.GreaterOrEqual(t, sleeps[0], 2*time.Second)
	assert.Less(t, sleeps[0], 5*time.Second)

	assert.Zero(t, inFlight(m))
}

func TestMinter_SimulatedFailure(t *testing.T) {
	m := newMinter(1, clock.NewFake(time.Unix(0, 0)))

	resp, err := m.MintWine(context.Background(), types.MintRequest{WineID: "w", WineryID: "y"})
	require.NoError(t, err)

	assert.False(t, resp.Success)
	assert.Empty(t, resp.TxID)
	assert.Equal(t, ErrSimulatedFailure.Error(), resp.Error)
}

func TestMinter_RejectsDuplicateInFlight(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	m := newMinter(0, clk)

	var nestedErr error
	clk.OnSleep = func(time.Duration) {
		// the first request is still in flight while it sleeps
		assert.Equal(t, 1, inFlight(m))
		_, nestedErr = m.MintWine(context.Background(), types.MintRequest{WineID: "w", WineryID: "y"})
	}

	_, err := m.MintWine(context.Background(), types.MintRequest{WineID: "w", WineryID: "y"})
	require.NoError(t, err)
	assert.ErrorIs(t, nestedErr, ErrAlreadyMinting)
	assert.Zero(t, inFlight(m))
}

func TestMinter_Cancelled(t *testing.T) {
	m := newMinter(0, clock.NewFake(time.Unix(0, 0)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.MintWine(ctx, types.MintRequest{WineID: "w", WineryID: "y"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, inFlight(m))
}
