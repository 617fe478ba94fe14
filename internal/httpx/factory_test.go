package httpx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsTimeout(t *testing.T) {
	assert.True(t, IsTimeout(fmt.Errorf("mint: %w", context.DeadlineExceeded)))
	assert.False(t, IsTimeout(context.Canceled))
	assert.False(t, IsTimeout(errors.New("connection refused")))
}

func TestNewClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	client := NewClient(slog.Default(), 20*time.Millisecond)

	_, err := client.R().Get(srv.URL)
	require.Error(t, err)
	assert.True(t, IsTimeout(err))
}

func TestNewClient_UserAgent(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	_, err := NewClient(slog.Default(), time.Second).R().Get(srv.URL)
	require.NoError(t, err)
	assert.Equal(t, userAgent, got)
}
