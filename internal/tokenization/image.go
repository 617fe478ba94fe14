package tokenization

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/openbuilders/wine-minter/internal/httpx"
	"github.com/openbuilders/wine-minter/internal/types"

	"github.com/go-resty/resty/v2"
)

const defaultContentType = "image/jpeg"

var (
	ErrImageURLRequired = errors.New("image URL is required")
	ErrImageNotSecure   = errors.New("invalid image URL. Must be HTTPS")
)

// ImageFetcher downloads wine images from their storage bucket.
type ImageFetcher struct {
	http *resty.Client
	log  *slog.Logger
}

func NewImageFetcher(timeout time.Duration) *ImageFetcher {
	logger := slog.With("component", "image-fetcher")

	return &ImageFetcher{
		http: httpx.NewClient(logger, timeout),
		log:  logger,
	}
}

// FetchImage downloads the image at imageURL. Only HTTPS URLs are accepted.
func (f *ImageFetcher) FetchImage(ctx context.Context, imageURL, fileName string) (
	*types.Image, error) {
	if imageURL == "" {
		return nil, ErrImageURLRequired
	}

	if !strings.HasPrefix(imageURL, types.SecureScheme) {
		return nil, ErrImageNotSecure
	}

	f.log.Debug("Downloading image", "url", imageURL)

	resp, err := f.http.R().
		SetContext(ctx).
		SetHeader("Cache-Control", "no-cache").
		Get(imageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: %s", resp.Status())
	}

	contentType := resp.Header().Get("Content-Type")
	if contentType == "" {
		contentType = defaultContentType
	}

	image := &types.Image{
		FileName:    fileName,
		ContentType: contentType,
		Data:        resp.Body(),
	}

	f.log.Info("Image downloaded", "file", fileName, "size", len(image.Data), "type", contentType)

	return image, nil
}
