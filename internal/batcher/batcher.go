package batcher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/openbuilders/wine-minter/internal/clock"
	"github.com/openbuilders/wine-minter/internal/events"
	"github.com/openbuilders/wine-minter/internal/metrics"
	"github.com/openbuilders/wine-minter/internal/types"
)

const Mode = "test"

var ErrAlreadyRunning = errors.New("batch minting is already in progress")

type Config struct {
	// ThrottleDelay is the pause between two wines.
	ThrottleDelay time.Duration
}

type Minter interface {
	MintWine(context.Context, types.MintRequest) (*types.MintResponse, error)
}

type History interface {
	Upsert(types.MintingStatus)
}

// Batcher mints every wine of every winery sequentially against the
// simulated minting service.
type Batcher struct {
	config   *Config
	minter   Minter
	history  History
	observer events.Observer
	clock    clock.Clock

	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	runID    string
	progress types.BatchMintingProgress

	log *slog.Logger
}

func New(config *Config, minter Minter, history History,
	observer events.Observer, clk clock.Clock) *Batcher {
	return &Batcher{
		config:   config,
		minter:   minter,
		history:  history,
		observer: observer,
		clock:    clk,
		log:      slog.With("component", "batcher"),
	}
}

// Start runs the batch to the end, or until Stop is called or ctx is
// cancelled; a stop is not an error. The completion event is emitted exactly
// once, whatever the outcome.
func (b *Batcher) Start(ctx context.Context, runID string, wineries []types.Winery) error {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	b.running = true
	b.cancel = cancel
	b.runID = runID
	b.progress = types.BatchMintingProgress{
		RunID:           runID,
		Mode:            Mode,
		TotalWineries:   len(wineries),
		TotalWines:      types.CountWines(wineries),
		MintingStatuses: []types.MintingStatus{},
	}
	b.mu.Unlock()

	metrics.ActiveRuns.Inc()

	defer func() {
		cancel()
		metrics.ActiveRuns.Dec()

		b.mu.Lock()
		b.running = false
		b.cancel = nil
		results := b.progress.Copy().MintingStatuses
		b.mu.Unlock()

		b.observer.Notify(events.Event{
			Kind:    events.KindComplete,
			RunID:   runID,
			Mode:    Mode,
			Results: results,
		})
	}()

	b.log.Info(
		"Starting batch minting",
		"run", runID,
		"wineries", len(wineries),
		"wines", types.CountWines(wineries),
	)

loop:
	for _, winery := range wineries {
		if ctx.Err() != nil {
			break
		}

		b.update(func(p *types.BatchMintingProgress) {
			p.CurrentWinery = winery.Name()
		})

		b.log.Info("Processing winery", "winery", winery.Name(), "wines", len(winery.Wines))

		for _, wine := range winery.Wines {
			if ctx.Err() != nil {
				break loop
			}

			if !b.mintWine(ctx, &winery, &wine) {
				break loop
			}

			if err := b.clock.Sleep(ctx, b.config.ThrottleDelay); err != nil {
				break loop
			}
		}

		b.update(func(p *types.BatchMintingProgress) {
			p.ProcessedWineries++
		})

		b.log.Info("Completed winery", "winery", winery.Name())
	}

	if ctx.Err() != nil {
		b.log.Info("Batch minting stopped", "run", runID)
	} else {
		b.log.Info("Batch minting completed", "run", runID)
	}

	return nil
}

// mintWine walks a single wine through pending, minting and a terminal
// state. It returns false when the run was cancelled mid-mint, in which case
// the wine keeps its minting status.
func (b *Batcher) mintWine(ctx context.Context, winery *types.Winery, wine *types.Wine) bool {
	b.update(func(p *types.BatchMintingProgress) {
		p.CurrentWine = wine.DisplayName()
	})

	b.log.Debug("Minting wine", "wine", wine.ID, "name", wine.DisplayName())

	status := types.MintingStatus{
		WineID:    wine.ID,
		WineryID:  winery.ID,
		Status:    types.StatusPending,
		Timestamp: b.clock.Now(),
	}

	idx := b.appendStatus(status)

	status = status.With(types.StatusMinting, b.clock.Now())
	b.replaceStatus(idx, status)

	resp, err := b.minter.MintWine(ctx, types.MintRequest{
		WineID:   wine.ID,
		WineryID: winery.ID,
		Wine:     *wine,
	})

	switch {
	case err != nil && ctx.Err() != nil:
		b.log.Info("Mint interrupted by stop", "wine", wine.ID)
		return false
	case err != nil:
		status = status.Failed(err.Error(), b.clock.Now())
		b.log.Error("Error minting wine", "wine", wine.ID, "error", err)
	case resp.Success:
		status = status.With(types.StatusSuccess, b.clock.Now())
		status.TxID = resp.TxID
		status.TokenRefID = resp.TokenRefID
		b.log.Info("Minted wine", "wine", wine.ID, "tx", resp.TxID)
	default:
		status = status.Failed(resp.Error, b.clock.Now())
		b.log.Error("Failed to mint wine", "wine", wine.ID, "error", resp.Error)
	}

	metrics.MintsTotal.WithLabelValues(Mode, string(status.Status)).Inc()

	b.replaceStatus(idx, status)
	b.update(func(p *types.BatchMintingProgress) {
		p.ProcessedWines++
	})

	return true
}

// Stop cancels the active run, if any.
func (b *Batcher) Stop() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.running {
		return false
	}

	b.log.Info("Batch minting stopped by user", "run", b.runID)
	b.cancel()

	return true
}

// Progress returns a detached copy of the current progress.
func (b *Batcher) Progress() types.BatchMintingProgress {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.progress.Copy()
}

func (b *Batcher) Summary() types.MintSummary {
	b.mu.Lock()
	defer b.mu.Unlock()

	return types.Summarize(b.progress.MintingStatuses)
}

func (b *Batcher) appendStatus(status types.MintingStatus) int {
	var idx int
	b.update(func(p *types.BatchMintingProgress) {
		p.MintingStatuses = append(p.MintingStatuses, status)
		idx = len(p.MintingStatuses) - 1
	})
	b.record(status)
	return idx
}

func (b *Batcher) replaceStatus(idx int, status types.MintingStatus) {
	b.update(func(p *types.BatchMintingProgress) {
		p.MintingStatuses[idx] = status
	})
	b.record(status)
}

func (b *Batcher) record(status types.MintingStatus) {
	b.history.Upsert(status)
	b.observer.Notify(events.Event{
		Kind:   events.KindStatus,
		RunID:  b.currentRunID(),
		Mode:   Mode,
		Status: &status,
	})
}

// update mutates the progress and emits a snapshot.
func (b *Batcher) update(mutate func(*types.BatchMintingProgress)) {
	b.mu.Lock()
	mutate(&b.progress)
	snapshot := b.progress.Copy()
	b.mu.Unlock()

	b.observer.Notify(events.Event{
		Kind:     events.KindProgress,
		RunID:    snapshot.RunID,
		Mode:     Mode,
		Progress: &snapshot,
	})
}

func (b *Batcher) currentRunID() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.runID
}
