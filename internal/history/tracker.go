package history

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/openbuilders/wine-minter/internal/types"
)

// ResumeData summarizes the session history. Pending counts both pending and
// minting entries.
type ResumeData struct {
	Completed  int  `json:"completed"`
	Failed     int  `json:"failed"`
	Pending    int  `json:"pending"`
	Confirming int  `json:"confirming"`
	Total      int  `json:"total"`
	CanResume  bool `json:"canResume"`
}

// Tracker keeps the latest MintingStatus per wine for the lifetime of the
// process. A single pipeline writes to it while the API reads.
type Tracker struct {
	mu      sync.RWMutex
	entries map[string]types.MintingStatus
	log     *slog.Logger
}

func New() *Tracker {
	return &Tracker{
		entries: make(map[string]types.MintingStatus),
		log:     slog.With("component", "history"),
	}
}

// Upsert inserts or replaces the entry of status.WineID.
func (t *Tracker) Upsert(status types.MintingStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries[status.WineID] = status
}

func (t *Tracker) Get(wineID string) (types.MintingStatus, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	status, ok := t.entries[wineID]
	return status, ok
}

// IsMinted reports whether the wine is recorded as successfully minted.
func (t *Tracker) IsMinted(wineID string) bool {
	status, ok := t.Get(wineID)
	return ok && status.Status == types.StatusSuccess
}

// Snapshot returns all entries ordered by timestamp, then wine id.
func (t *Tracker) Snapshot() []types.MintingStatus {
	t.mu.RLock()
	statuses := make([]types.MintingStatus, 0, len(t.entries))
	for _, s := range t.entries {
		statuses = append(statuses, s)
	}
	t.mu.RUnlock()

	sort.Slice(statuses, func(i, j int) bool {
		if statuses[i].Timestamp.Equal(statuses[j].Timestamp) {
			return statuses[i].WineID < statuses[j].WineID
		}
		return statuses[i].Timestamp.Before(statuses[j].Timestamp)
	})

	return statuses
}

func (t *Tracker) Counts() ResumeData {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var data ResumeData
	for _, s := range t.entries {
		switch s.Status {
		case types.StatusSuccess:
			data.Completed++
		case types.StatusFailed:
			data.Failed++
		case types.StatusPending, types.StatusMinting:
			data.Pending++
		case types.StatusConfirming:
			data.Confirming++
		}
	}

	data.Total = len(t.entries)
	data.CanResume = data.Completed < data.Total

	return data
}

// CanResume is true unless every tracked wine is minted. An empty history
// has nothing to resume.
func (t *Tracker) CanResume() bool {
	return t.Counts().CanResume
}

// ResumeOffset is the number of successfully minted wines, i.e. where a
// resumed run starts counting.
func (t *Tracker) ResumeOffset() int {
	return t.Counts().Completed
}

// Clear drops the whole session history.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.log.Info("Clearing mint history", "entries", len(t.entries))
	t.entries = make(map[string]types.MintingStatus)
}

// Pending filters the wineries down to the wines that are not minted yet,
// keeping the original order. Wineries left without wines are kept so that
// winery counters stay meaningful.
func (t *Tracker) Pending(wineries []types.Winery) []types.Winery {
	filtered := make([]types.Winery, len(wineries))

	for i, winery := range wineries {
		filtered[i] = winery
		filtered[i].Wines = make([]types.Wine, 0, len(winery.Wines))

		for _, wine := range winery.Wines {
			if t.IsMinted(wine.ID) {
				continue
			}
			filtered[i].Wines = append(filtered[i].Wines, wine)
		}
	}

	return filtered
}

// Results lists the successful mints joined with catalogue names.
func (t *Tracker) Results(wineries []types.Winery, network string) []types.MintResult {
	results := []types.MintResult{}

	for _, s := range t.Snapshot() {
		if s.Status != types.StatusSuccess {
			continue
		}

		result := types.MintResult{
			WineryID:   s.WineryID,
			WineID:     s.WineID,
			TxID:       optional(s.TxID),
			TokenRefID: optional(s.TokenRefID),
			Status:     s.Status,
			Timestamp:  s.Timestamp.UTC(),
			Network:    network,
		}

		winery, wine := types.FindWine(wineries, s.WineryID, s.WineID)
		if winery != nil {
			result.WineryName = optional(winery.Info.Name)
		}
		if wine != nil {
			result.WineName = optional(wine.GeneralInfo.CollectionName)
		}

		results = append(results, result)
	}

	return results
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
