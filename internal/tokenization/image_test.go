package tokenization

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImageFetcher_Validation(t *testing.T) {
	f := NewImageFetcher(time.Second)

	_, err := f.FetchImage(context.Background(), "", "a.jpg")
	assert.ErrorIs(t, err, ErrImageURLRequired)

	_, err = f.FetchImage(context.Background(), "http://bucket/a.jpg", "a.jpg")
	assert.ErrorIs(t, err, ErrImageNotSecure)
}

func TestImageFetcher_Fetch(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write([]byte{0x89, 0x50})
		case "/missing":
			http.NotFound(w, r)
		default:
			// no content type, the body sniffing of net/http is bypassed
			w.Header()["Content-Type"] = nil
			_, _ = w.Write([]byte{0xff, 0xd8})
		}
	}))
	defer srv.Close()

	f := NewImageFetcher(time.Second)
	f.http.SetTransport(srv.Client().Transport)

	image, err := f.FetchImage(context.Background(), srv.URL+"/png", "wine.png")
	require.NoError(t, err)
	assert.Equal(t, "wine.png", image.FileName)
	assert.Equal(t, "image/png", image.ContentType)
	assert.Equal(t, []byte{0x89, 0x50}, image.Data)

	image, err = f.FetchImage(context.Background(), srv.URL+"/raw", "wine.jpg")
	require.NoError(t, err)
	assert.Equal(t, defaultContentType, image.ContentType)

	_, err = f.FetchImage(context.Background(), srv.URL+"/missing", "wine.jpg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to download image")
}
