package sender

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/openbuilders/wine-minter/internal/clock"
	"github.com/openbuilders/wine-minter/internal/events"
	"github.com/openbuilders/wine-minter/internal/metrics"
	"github.com/openbuilders/wine-minter/internal/types"
)

const Mode = "main"

var (
	ErrInvalidImageURL   = errors.New("wine does not have a valid image URL")
	ErrProcessingStopped = errors.New("processing stopped by user")
)

type ImageFetcher interface {
	FetchImage(ctx context.Context, url, fileName string) (*types.Image, error)
}

type IPFSUploader interface {
	AddImage(ctx context.Context, image *types.Image) (string, error)
}

type TokenMinter interface {
	MintBatch(ctx context.Context, payload *types.MintPayload) (*types.MintReceipt, error)
}

type SnapshotSource interface {
	Snapshot(ctx context.Context) (map[string]any, error)
}

type History interface {
	Upsert(types.MintingStatus)
	IsMinted(wineID string) bool
}

type Config struct {
	Confirm ConfirmConfig
}

// Sender mints wines on the main network one at a time: every token has to
// be confirmed on chain before the next one is submitted.
type Sender struct {
	fetcher   ImageFetcher
	uploader  IPFSUploader
	minter    TokenMinter
	sensors   SnapshotSource
	confirmer *Confirmer
	history   History
	observer  events.Observer
	clock     clock.Clock

	mu       sync.Mutex
	progress types.BatchMintingProgress

	log *slog.Logger
}

type Deps struct {
	Fetcher  ImageFetcher
	Uploader IPFSUploader
	Minter   TokenMinter
	Checker  StatusChecker
	Sensors  SnapshotSource
	History  History
	Observer events.Observer
	Clock    clock.Clock
}

func New(config *Config, deps Deps) *Sender {
	observer := deps.Observer
	if observer == nil {
		observer = events.Nop
	}

	return &Sender{
		fetcher:   deps.Fetcher,
		uploader:  deps.Uploader,
		minter:    deps.Minter,
		sensors:   deps.Sensors,
		confirmer: NewConfirmer(&config.Confirm, deps.Checker, deps.Clock),
		history:   deps.History,
		observer:  observer,
		clock:     deps.Clock,
		log:       slog.With("component", "sender"),
	}
}

type item struct {
	winery *types.Winery
	wine   *types.Wine
}

// queue flattens the wineries in winery-then-wine order, leaving out wines
// that are already minted.
func (s *Sender) queue(wineries []types.Winery) ([]item, int) {
	var (
		items     []item
		wineryIDs = map[string]struct{}{}
	)

	for i := range wineries {
		for j := range wineries[i].Wines {
			wine := &wineries[i].Wines[j]
			if s.history.IsMinted(wine.ID) {
				continue
			}
			items = append(items, item{winery: &wineries[i], wine: wine})
			wineryIDs[wineries[i].ID] = struct{}{}
		}
	}

	return items, len(wineryIDs)
}

// Run mints every wine that is not yet successfully minted. offset is the
// number of wines already minted in earlier runs; it only shifts numbering.
// The first failure stops the run and is returned. A cancelled ctx stops the
// run as well but is not an error.
func (s *Sender) Run(ctx context.Context, runID string, wineries []types.Winery,
	offset int) (err error) {
	items, wineryCount := s.queue(wineries)
	total := offset + len(items)

	s.mu.Lock()
	s.progress = types.BatchMintingProgress{
		RunID:           runID,
		Mode:            Mode,
		TotalWineries:   wineryCount,
		TotalWines:      total,
		ProcessedWines:  offset,
		ResumedFrom:     offset,
		MintingStatuses: []types.MintingStatus{},
	}
	s.mu.Unlock()

	metrics.ActiveRuns.Inc()

	defer func() {
		metrics.ActiveRuns.Dec()

		complete := events.Event{
			Kind:    events.KindComplete,
			RunID:   runID,
			Mode:    Mode,
			Results: s.Progress().MintingStatuses,
		}
		if err != nil {
			complete.Error = err.Error()
		}
		s.observer.Notify(complete)
	}()

	log := s.log.With("run", runID)
	log.Info("Starting main network minting", "wines", len(items), "resumedFrom", offset)

	var current string
	for i, it := range items {
		if ctx.Err() != nil {
			break
		}

		if current != "" && current != it.winery.ID {
			s.update(func(p *types.BatchMintingProgress) { p.ProcessedWineries++ })
		}
		current = it.winery.ID

		log.Info(
			"Processing wine",
			"number", offset+i+1,
			"total", total,
			"winery", it.winery.Name(),
			"wine", it.wine.GeneralInfo.CollectionName,
		)

		if err := s.mint(ctx, it.winery, it.wine); err != nil {
			if ctx.Err() != nil {
				break
			}

			log.Error("Main network minting stopped on failure", "wine", it.wine.ID,
				"error", err)
			return fmt.Errorf("wine %s: %w", it.wine.ID, err)
		}

		s.update(func(p *types.BatchMintingProgress) { p.ProcessedWines++ })
	}

	if ctx.Err() != nil {
		log.Info("Main network minting stopped by user, history preserved")
		return nil
	}

	if current != "" {
		s.update(func(p *types.BatchMintingProgress) { p.ProcessedWineries++ })
	}

	log.Info("Main network minting completed")

	return nil
}

// MintOne runs the pipeline for a single wine, whatever its history.
func (s *Sender) MintOne(ctx context.Context, runID string, winery *types.Winery,
	wine *types.Wine) (err error) {
	s.mu.Lock()
	s.progress = types.BatchMintingProgress{
		RunID:           runID,
		Mode:            Mode,
		TotalWineries:   1,
		TotalWines:      1,
		MintingStatuses: []types.MintingStatus{},
	}
	s.mu.Unlock()

	defer func() {
		complete := events.Event{
			Kind:    events.KindComplete,
			RunID:   runID,
			Mode:    Mode,
			Results: s.Progress().MintingStatuses,
		}
		if err != nil {
			complete.Error = err.Error()
		}
		s.observer.Notify(complete)
	}()

	if err := s.mint(ctx, winery, wine); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	s.update(func(p *types.BatchMintingProgress) {
		p.ProcessedWines++
		p.ProcessedWineries++
	})

	return nil
}

// Progress returns a detached copy of the current progress.
func (s *Sender) Progress() types.BatchMintingProgress {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.progress.Copy()
}

// record writes the status to the history, to the run progress and to the
// observers.
func (s *Sender) record(status types.MintingStatus) {
	s.history.Upsert(status)

	s.update(func(p *types.BatchMintingProgress) {
		for i := range p.MintingStatuses {
			if p.MintingStatuses[i].WineID == status.WineID {
				p.MintingStatuses[i] = status
				return
			}
		}
		p.MintingStatuses = append(p.MintingStatuses, status)
	})

	if status.Status.IsTerminal() {
		metrics.MintsTotal.WithLabelValues(Mode, string(status.Status)).Inc()
	}

	s.observer.Notify(events.Event{
		Kind:   events.KindStatus,
		RunID:  s.Progress().RunID,
		Mode:   Mode,
		Status: &status,
	})
}

func (s *Sender) update(mutate func(*types.BatchMintingProgress)) {
	s.mu.Lock()
	mutate(&s.progress)
	snapshot := s.progress.Copy()
	s.mu.Unlock()

	s.observer.Notify(events.Event{
		Kind:     events.KindProgress,
		RunID:    snapshot.RunID,
		Mode:     Mode,
		Progress: &snapshot,
	})
}

func observeStep(step string, started time.Time) {
	metrics.StepDuration.WithLabelValues(step).Observe(time.Since(started).Seconds())
}
