package types

import (
	"time"
)

type MintStatus string

const (
	StatusPending    MintStatus = "pending"
	StatusMinting    MintStatus = "minting"
	StatusConfirming MintStatus = "confirming"
	StatusSuccess    MintStatus = "success"
	StatusFailed     MintStatus = "failed"
)

// IsTerminal reports whether no further transitions are expected.
func (s MintStatus) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// MintingStatus is the latest known state of a single wine. It is replaced,
// never mutated, as the wine moves through the pipeline.
type MintingStatus struct {
	WineID     string     `json:"wineId"`
	WineryID   string     `json:"wineryId"`
	Status     MintStatus `json:"status"`
	TxID       string     `json:"txId,omitempty"`
	TokenRefID string     `json:"tokenRefId,omitempty"`
	Error      string     `json:"error,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
}

// With returns a copy of the status moved to the next state.
func (s MintingStatus) With(status MintStatus, at time.Time) MintingStatus {
	s.Status = status
	s.Timestamp = at
	return s
}

// Failed returns a copy of the status diverted to failed with the message.
func (s MintingStatus) Failed(message string, at time.Time) MintingStatus {
	s.Status = StatusFailed
	s.Error = message
	s.Timestamp = at
	return s
}

type BatchMintingProgress struct {
	RunID             string          `json:"runId"`
	Mode              string          `json:"mode"`
	TotalWineries     int             `json:"totalWineries"`
	ProcessedWineries int             `json:"processedWineries"`
	CurrentWinery     string          `json:"currentWinery"`
	TotalWines        int             `json:"totalWines"`
	ProcessedWines    int             `json:"processedWines"`
	CurrentWine       string          `json:"currentWine"`
	ResumedFrom       int             `json:"resumedFrom"`
	MintingStatuses   []MintingStatus `json:"mintingStatuses"`
}

// Copy detaches the status list so the snapshot can be handed to observers.
func (p BatchMintingProgress) Copy() BatchMintingProgress {
	statuses := make([]MintingStatus, len(p.MintingStatuses))
	copy(statuses, p.MintingStatuses)
	p.MintingStatuses = statuses
	return p
}

type MintSummary struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
	Pending    int `json:"pending"`
}

// Summarize counts the statuses of a run.
func Summarize(statuses []MintingStatus) MintSummary {
	summary := MintSummary{Total: len(statuses)}
	for _, s := range statuses {
		switch s.Status {
		case StatusSuccess:
			summary.Successful++
		case StatusFailed:
			summary.Failed++
		case StatusPending:
			summary.Pending++
		}
	}
	return summary
}

// MintRequest is what the simulated minting service accepts.
type MintRequest struct {
	WineID   string `json:"wineId"`
	WineryID string `json:"wineryId"`
	Wine     Wine   `json:"wineData"`
}

type MintResponse struct {
	Success    bool   `json:"success"`
	TxID       string `json:"txId"`
	TokenRefID string `json:"tokenRefId"`
	Error      string `json:"error,omitempty"`
}

// MintResult is the exported record of a successfully minted wine.
type MintResult struct {
	WineryID   string     `json:"wineryId"`
	WineryName *string    `json:"wineryName"`
	WineID     string     `json:"wineId"`
	WineName   *string    `json:"wineName"`
	TxID       *string    `json:"txId"`
	TokenRefID *string    `json:"tokenRefId"`
	Status     MintStatus `json:"status"`
	Timestamp  time.Time  `json:"timestamp"`
	Network    string     `json:"network"`
}
