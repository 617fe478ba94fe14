package sender

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/openbuilders/wine-minter/internal/clock"
	"github.com/openbuilders/wine-minter/internal/metrics"
	"github.com/openbuilders/wine-minter/internal/types"
)

const (
	DefaultPollInterval = 10 * time.Second
	DefaultMaxAttempts  = 60
)

var (
	ErrConfirmationTimeout = errors.New("transaction confirmation timeout after 10 minutes")
	ErrStopped             = errors.New("transaction monitoring stopped by user")
	ErrTransactionFailed   = errors.New("transaction failed")
)

type StatusChecker interface {
	TransactionStatus(ctx context.Context, txID string) (*types.TransactionStatus, error)
}

type ConfirmState string

const (
	StateChecking ConfirmState = "checking"
	StatePending  ConfirmState = "pending"
	StateComplete ConfirmState = "complete"
	StateError    ConfirmState = "error"
	StateTimeout  ConfirmState = "timeout"
	StateStopped  ConfirmState = "stopped"
)

type ConfirmConfig struct {
	Interval    time.Duration
	MaxAttempts int
}

// Confirmer polls the chain until a submitted transaction is confirmed,
// rejected, timed out or the context is cancelled. Every check is followed
// by a fixed wait; checker errors are treated as a pending answer.
type Confirmer struct {
	config  *ConfirmConfig
	checker StatusChecker
	clock   clock.Clock
	log     *slog.Logger
}

func NewConfirmer(config *ConfirmConfig, checker StatusChecker,
	clk clock.Clock) *Confirmer {
	return &Confirmer{
		config:  config,
		checker: checker,
		clock:   clk,
		log:     slog.With("component", "confirmer"),
	}
}

// Confirm blocks until txID reaches a terminal state. It never performs more
// than MaxAttempts checks.
func (c *Confirmer) Confirm(ctx context.Context, txID string) (
	*types.TransactionStatus, error) {
	var (
		state    = StateChecking
		attempts int
		last     *types.TransactionStatus
	)

	log := c.log.With("tx", txID)

	for {
		switch state {
		case StateChecking:
			if ctx.Err() != nil {
				state = StateStopped
				continue
			}

			attempts++
			state, last = c.check(ctx, log, txID, attempts, last)

		case StatePending:
			if attempts >= c.config.MaxAttempts {
				state = StateTimeout
				continue
			}

			if err := c.clock.Sleep(ctx, c.config.Interval); err != nil {
				state = StateStopped
				continue
			}
			state = StateChecking

		case StateComplete:
			metrics.ConfirmationChecks.Observe(float64(attempts))
			log.Info("Transaction confirmed", "attempts", attempts,
				"height", last.BlockHeight)
			return last, nil

		case StateError:
			metrics.ConfirmationChecks.Observe(float64(attempts))
			log.Error("Transaction failed on chain", "details", last.Details)
			return last, fmt.Errorf("%w: %s", ErrTransactionFailed, last.Details)

		case StateTimeout:
			metrics.ConfirmationChecks.Observe(float64(attempts))
			log.Error("Transaction confirmation timed out", "attempts", attempts)
			return last, ErrConfirmationTimeout

		case StateStopped:
			log.Info("Transaction monitoring stopped", "attempts", attempts)
			return last, ErrStopped
		}
	}
}

func (c *Confirmer) check(ctx context.Context, log *slog.Logger, txID string,
	attempt int, last *types.TransactionStatus) (ConfirmState, *types.TransactionStatus) {
	status, err := c.checker.TransactionStatus(ctx, txID)
	if err != nil {
		if ctx.Err() != nil {
			return StateStopped, last
		}

		metrics.StatusCheckErrors.Inc()
		log.Warn("Status check failed, retrying", "attempt", attempt, "error", err)
		return StatePending, last
	}

	log.Debug("Status check", "attempt", attempt, "status", status.Status,
		"details", status.Details)

	switch status.Status {
	case types.ChainComplete:
		return StateComplete, status
	case types.ChainError:
		return StateError, status
	default:
		return StatePending, status
	}
}
