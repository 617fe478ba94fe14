package iot

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, status int, body string) string {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)

	return srv.URL
}

func TestClient_Snapshot_DataField(t *testing.T) {
	c := New(serve(t, http.StatusOK, `{"data":{"temperature":13.5,"humidity":71}}`), time.Second)

	snapshot, err := c.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"temperature": 13.5, "humidity": float64(71)}, snapshot)
}

func TestClient_Snapshot_WholeObject(t *testing.T) {
	c := New(serve(t, http.StatusOK, `{"temperature":12}`), time.Second)

	snapshot, err := c.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"temperature": float64(12)}, snapshot)
}

func TestClient_Snapshot_Errors(t *testing.T) {
	_, err := New(serve(t, http.StatusBadGateway, "down"), time.Second).Snapshot(context.Background())
	assert.Error(t, err)

	_, err = New(serve(t, http.StatusOK, "not json"), time.Second).Snapshot(context.Background())
	assert.Error(t, err)
}
