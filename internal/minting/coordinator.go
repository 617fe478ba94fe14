package minting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/openbuilders/wine-minter/internal/batcher"
	"github.com/openbuilders/wine-minter/internal/history"
	"github.com/openbuilders/wine-minter/internal/sender"
	"github.com/openbuilders/wine-minter/internal/types"
	"github.com/openbuilders/wine-minter/internal/wineries"

	"github.com/google/uuid"
)

type Mode string

const (
	ModeTest Mode = batcher.Mode
	ModeMain Mode = sender.Mode

	DefaultWineryLimit = 3
)

var (
	ErrRunInProgress = errors.New("a minting run is already in progress")
	ErrNoActiveRun   = errors.New("no minting run in progress")
	ErrUnknownMode   = errors.New("unknown minting mode")
	ErrMainDisabled  = errors.New("main network minting is not configured")
	ErrWineNotFound  = errors.New("wine not found")
	ErrNothingToMint = errors.New("all wines are already minted")
)

type StartRequest struct {
	Mode        Mode   `json:"mode"`
	WineryLimit int    `json:"wineryLimit,omitempty"`
	WineryID    string `json:"wineryId,omitempty"`
	WineID      string `json:"wineId,omitempty"`
}

// Single reports whether the request targets one selected wine.
func (r StartRequest) Single() bool {
	return r.WineryID != "" || r.WineID != ""
}

type Run struct {
	ID          string     `json:"id"`
	Mode        Mode       `json:"mode"`
	Single      bool       `json:"single"`
	StartedAt   time.Time  `json:"startedAt"`
	FinishedAt  *time.Time `json:"finishedAt,omitempty"`
	Wineries    int        `json:"wineries"`
	Wines       int        `json:"wines"`
	ResumedFrom int        `json:"resumedFrom"`
	Error       string     `json:"error,omitempty"`
}

type Catalogue interface {
	Load(ctx context.Context) []types.Winery
}

type TestRunner interface {
	Start(ctx context.Context, runID string, wineries []types.Winery) error
	Stop() bool
	Progress() types.BatchMintingProgress
	Summary() types.MintSummary
}

type MainRunner interface {
	Run(ctx context.Context, runID string, wineries []types.Winery, offset int) error
	MintOne(ctx context.Context, runID string, winery *types.Winery, wine *types.Wine) error
	Progress() types.BatchMintingProgress
}

type Config struct {
	WineryLimit int
	Network     string
}

// Coordinator owns the single active minting run. Runs execute in their own
// goroutine under the context passed to Run; Stop cancels the active one.
type Coordinator struct {
	config    *Config
	catalogue Catalogue
	test      TestRunner
	main      MainRunner
	history   *history.Tracker

	mu      sync.Mutex
	baseCtx context.Context
	cancel  context.CancelFunc
	current *Run
	last    *Run
	wg      sync.WaitGroup

	log *slog.Logger
}

// New builds the coordinator. main may be nil when the tokenization API is
// not configured, in which case only test runs are accepted.
func New(config *Config, catalogue Catalogue, test TestRunner, main MainRunner,
	tracker *history.Tracker) *Coordinator {
	if config.WineryLimit <= 0 {
		config.WineryLimit = DefaultWineryLimit
	}

	return &Coordinator{
		config:    config,
		catalogue: catalogue,
		test:      test,
		main:      main,
		history:   tracker,
		baseCtx:   context.Background(),
		log:       slog.With("component", "coordinator"),
	}
}

// Run binds runs to ctx and, once ctx is done, waits for the active run to
// wind down.
func (c *Coordinator) Run(ctx context.Context) error {
	c.mu.Lock()
	c.baseCtx = ctx
	c.mu.Unlock()

	<-ctx.Done()

	c.log.Info("Stopping coordinator, waiting for the active run...")
	_ = c.Stop()
	c.Wait()

	return nil
}

func (c *Coordinator) Start(ctx context.Context, req StartRequest) (*Run, error) {
	switch req.Mode {
	case ModeTest:
	case ModeMain:
		if c.main == nil {
			return nil, ErrMainDisabled
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, req.Mode)
	}

	if c.active() {
		return nil, ErrRunInProgress
	}

	// The catalogue may come from the network, so it is loaded unlocked and
	// the active run is checked again below.
	catalogue := c.catalogue.Load(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil {
		return nil, ErrRunInProgress
	}

	run := &Run{
		ID:        uuid.New().String(),
		Mode:      req.Mode,
		Single:    req.Single(),
		StartedAt: time.Now(),
	}

	var job func(context.Context) error

	if req.Single() {
		selected, ok := wineries.Select(catalogue, req.WineryID, req.WineID)
		if !ok {
			return nil, fmt.Errorf("%w: %s/%s", ErrWineNotFound, req.WineryID, req.WineID)
		}

		run.Wineries, run.Wines = 1, 1
		job = c.single(run, selected)
	} else {
		limit := req.WineryLimit
		if limit <= 0 {
			limit = c.config.WineryLimit
		}

		pending := c.history.Pending(wineries.Limit(catalogue, limit))
		if types.CountWines(pending) == 0 {
			return nil, ErrNothingToMint
		}

		if c.history.CanResume() {
			run.ResumedFrom = c.history.ResumeOffset()
		}

		run.Wineries, run.Wines = len(pending), types.CountWines(pending)
		job = c.bulk(run, pending)
	}

	runCtx, cancel := context.WithCancel(c.baseCtx)
	c.cancel = cancel
	c.current = run

	c.log.Info(
		"Starting minting run",
		"run", run.ID,
		"mode", run.Mode,
		"single", run.Single,
		"wineries", run.Wineries,
		"wines", run.Wines,
		"resumedFrom", run.ResumedFrom,
	)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()

		err := job(runCtx)
		c.finish(run, err)
	}()

	result := *run
	return &result, nil
}

func (c *Coordinator) active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.current != nil
}

func (c *Coordinator) bulk(run *Run, pending []types.Winery) func(context.Context) error {
	if run.Mode == ModeMain {
		return func(ctx context.Context) error {
			return c.main.Run(ctx, run.ID, pending, run.ResumedFrom)
		}
	}

	return func(ctx context.Context) error {
		return c.test.Start(ctx, run.ID, pending)
	}
}

func (c *Coordinator) single(run *Run, selected []types.Winery) func(context.Context) error {
	if run.Mode == ModeMain {
		return func(ctx context.Context) error {
			return c.main.MintOne(ctx, run.ID, &selected[0], &selected[0].Wines[0])
		}
	}

	return func(ctx context.Context) error {
		return c.test.Start(ctx, run.ID, selected)
	}
}

func (c *Coordinator) finish(run *Run, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	finished := time.Now()
	run.FinishedAt = &finished

	if err != nil {
		run.Error = err.Error()
		c.log.Error("Minting run failed", "run", run.ID, "error", err)
	} else {
		c.log.Info("Minting run finished", "run", run.ID, "duration", finished.Sub(run.StartedAt))
	}

	c.last = run
	c.current = nil
	c.cancel = nil
}

// Stop cancels the active run. The history is kept so that the next start
// resumes where this one stopped.
func (c *Coordinator) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return ErrNoActiveRun
	}

	c.log.Info("Stopping minting run", "run", c.current.ID)
	if c.current.Mode == ModeTest {
		c.test.Stop()
	}
	c.cancel()

	return nil
}

// Wait blocks until the active run, if any, has finished.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// Status returns the active run or, when idle, the last finished one.
func (c *Coordinator) Status() (*Run, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil {
		run := *c.current
		return &run, true
	}
	if c.last != nil {
		run := *c.last
		return &run, false
	}
	return nil, false
}

// Progress returns the progress of the active or last run.
func (c *Coordinator) Progress() types.BatchMintingProgress {
	c.mu.Lock()
	run := c.current
	if run == nil {
		run = c.last
	}
	c.mu.Unlock()

	if run == nil {
		return types.BatchMintingProgress{MintingStatuses: []types.MintingStatus{}}
	}

	if run.Mode == ModeMain && c.main != nil {
		return c.main.Progress()
	}
	return c.test.Progress()
}

// Summary counts the statuses of the active or last run.
func (c *Coordinator) Summary() types.MintSummary {
	c.mu.Lock()
	run := c.current
	if run == nil {
		run = c.last
	}
	c.mu.Unlock()

	if run == nil {
		return types.MintSummary{}
	}

	if run.Mode == ModeMain && c.main != nil {
		return types.Summarize(c.main.Progress().MintingStatuses)
	}
	return c.test.Summary()
}

// ClearHistory forgets every recorded status. It is refused while a run is
// active.
func (c *Coordinator) ClearHistory() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil {
		return ErrRunInProgress
	}

	c.history.Clear()
	return nil
}

// Results exports the successful mints of the session.
func (c *Coordinator) Results(ctx context.Context) []types.MintResult {
	return c.history.Results(c.catalogue.Load(ctx), c.config.Network)
}

func (c *Coordinator) Wineries(ctx context.Context) []types.Winery {
	return c.catalogue.Load(ctx)
}
