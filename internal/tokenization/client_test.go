package tokenization

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/openbuilders/wine-minter/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T, handler http.HandlerFunc, mintTimeout time.Duration) *Client {
	t.Helper()
	return newClientWithAsset(t, handler, mintTimeout, "asset-1")
}

func newClientWithAsset(t *testing.T, handler http.HandlerFunc, mintTimeout time.Duration,
	asset string) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := New(&Config{
		URL:         srv.URL,
		Username:    "user",
		Password:    "secret",
		Timeout:     time.Second,
		MintTimeout: mintTimeout,
		ProbeAsset:  asset,
	})
	require.NoError(t, err)

	return client
}

func checkAuth(t *testing.T, r *http.Request) {
	user, pass, ok := r.BasicAuth()
	assert.True(t, ok)
	assert.Equal(t, "user", user)
	assert.Equal(t, "secret", pass)
}

func TestNew_MissingConfig(t *testing.T) {
	_, err := New(&Config{URL: "http://localhost", Username: "user"})
	assert.ErrorIs(t, err, ErrMissingConfig)
}

func TestParseIPFSURI(t *testing.T) {
	cases := map[string]struct {
		body string
		uri  string
		err  error
	}{
		"plain":     {body: "ipfs://QmHash", uri: "ipfs://QmHash"},
		"quoted":    {body: "\"ipfs://QmHash\"\n", uri: "ipfs://QmHash"},
		"spaces":    {body: "  ipfs://QmHash  ", uri: "ipfs://QmHash"},
		"no scheme": {body: "QmHash", err: ErrInvalidIPFSResponse},
		"bare":      {body: "ipfs://", err: ErrInvalidIPFSResponse},
		"empty":     {body: "", err: ErrInvalidIPFSResponse},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			uri, err := ParseIPFSURI(tc.body)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.uri, uri)
		})
	}
}

func TestGatewayURL(t *testing.T) {
	assert.Equal(t, "https://ipfs.io/ipfs/QmHash", GatewayURL("https://ipfs.io/", "ipfs://QmHash"))
}

func TestClient_AddImage(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		checkAuth(t, r)
		assert.Equal(t, "/add", r.URL.Path)

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()

		data, _ := io.ReadAll(file)
		assert.Equal(t, "wine-1.jpg", header.Filename)
		assert.Equal(t, []byte{0xff, 0xd8}, data)

		_, _ = io.WriteString(w, "\"ipfs://QmWine\"\n")
	}, time.Second)

	uri, err := client.AddImage(context.Background(), &types.Image{
		FileName:    "wine-1.jpg",
		ContentType: "image/jpeg",
		Data:        []byte{0xff, 0xd8},
	})
	require.NoError(t, err)
	assert.Equal(t, "ipfs://QmWine", uri)
}

func TestClient_AddImage_InvalidResponse(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "QmWine")
	}, time.Second)

	_, err := client.AddImage(context.Background(), &types.Image{FileName: "a.jpg"})
	assert.ErrorIs(t, err, ErrInvalidIPFSResponse)
}

func TestClient_AddImage_HTTPError(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}, time.Second)

	_, err := client.AddImage(context.Background(), &types.Image{FileName: "a.jpg"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "IPFS upload failed")
	assert.Contains(t, err.Error(), "quota exceeded")
}

func testPayload(t *testing.T) *types.MintPayload {
	payload, err := types.NewMintPayload(&types.Wine{
		ID: "wine-2",
		GeneralInfo: types.GeneralInfo{
			CollectionName: "Reserve Collection 2023",
			Type:           "white-wine",
		},
	}, "ipfs://QmWine", nil)
	require.NoError(t, err)
	return payload
}

func TestClient_MintBatch(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		checkAuth(t, r)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/tx/false/mint-batch", r.URL.Path)

		var payload types.MintPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "Reserve Collection 2023", payload.BatchMeta.Name)
		assert.Equal(t, "ipfs://QmWine", payload.BatchMeta.Image)
		assert.Equal(t, "{}", payload.BatchData.MData)
		assert.Equal(t, []int{1, 1}, payload.BatchQuantity)

		_, _ = io.WriteString(w, `{"txId":"tx-abc","tokenRefId":"token-abc"}`)
	}, time.Second)

	receipt, err := client.MintBatch(context.Background(), testPayload(t))
	require.NoError(t, err)
	assert.Equal(t, "tx-abc", receipt.TxID)
	assert.Equal(t, "token-abc", receipt.TokenRefID)
}

func TestClient_MintBatch_MissingIdentifiers(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"txId":"tx-abc"}`)
	}, time.Second)

	_, err := client.MintBatch(context.Background(), testPayload(t))
	assert.ErrorIs(t, err, ErrInvalidMintResponse)
}

func TestClient_MintBatch_APIError(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":"insufficient funds"}`)
	}, time.Second)

	_, err := client.MintBatch(context.Background(), testPayload(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient funds")
}

func TestClient_MintBatch_Timeout(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}, 50*time.Millisecond)

	_, err := client.MintBatch(context.Background(), testPayload(t))
	require.ErrorIs(t, err, ErrRequestTimeout)
	assert.Contains(t, err.Error(), "request timeout")
}

func TestClient_RetrieveAsset(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		checkAuth(t, r)
		switch r.URL.Path {
		case "/wine/asset-1":
			_, _ = io.WriteString(w, `{"name":"Reserve Collection 2023"}`)
		default:
			http.NotFound(w, r)
		}
	}, time.Second)

	asset, err := client.RetrieveAsset(context.Background(), "asset-1")
	require.NoError(t, err)
	assert.Equal(t, "Reserve Collection 2023", asset["name"])

	asset, err = client.RetrieveAsset(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, asset)
}

func TestClient_TestConnection(t *testing.T) {
	ok := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{}`)
	}, time.Second)
	assert.NoError(t, ok.TestConnection(context.Background()))

	denied := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}, time.Second)
	assert.Error(t, denied.TestConnection(context.Background()))
}

func TestClient_TestConnection_DefaultAsset(t *testing.T) {
	var path string
	client := newClientWithAsset(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		if r.URL.Path != "/wine/"+DefaultProbeAsset {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, `{}`)
	}, time.Second, "")

	require.NoError(t, client.TestConnection(context.Background()))
	assert.Equal(t, "/wine/"+DefaultProbeAsset, path)
}
