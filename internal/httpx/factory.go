package httpx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/go-resty/resty/v2"
)

const userAgent = "wine-minter"

// NewClient builds a resty client for a single upstream service. Calls are
// one-shot: retries, where wanted, are the caller's decision.
func NewClient(logger *slog.Logger, timeout time.Duration) *resty.Client {
	return resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", userAgent).
		SetLogger(RestyAdapter(logger))
}

// IsTimeout reports whether err comes from an expired deadline, either the
// client timeout or a context deadline.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

type restyAdapter slog.Logger

// RestyAdapter lets resty log through slog.
func RestyAdapter(logger *slog.Logger) resty.Logger {
	return (*restyAdapter)(logger.With("lib", "resty"))
}

func (l *restyAdapter) Errorf(format string, v ...interface{}) {
	(*slog.Logger)(l).Error(fmt.Sprintf(format, v...))
}

func (l *restyAdapter) Warnf(format string, v ...interface{}) {
	(*slog.Logger)(l).Warn(fmt.Sprintf(format, v...))
}

func (l *restyAdapter) Debugf(format string, v ...interface{}) {
	(*slog.Logger)(l).Debug(fmt.Sprintf(format, v...))
}
