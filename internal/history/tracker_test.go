package history

import (
	"testing"
	"time"

	"github.com/openbuilders/wine-minter/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func status(wineID string, s types.MintStatus, offset time.Duration) types.MintingStatus {
	return types.MintingStatus{
		WineID:    wineID,
		WineryID:  "winery-1",
		Status:    s,
		Timestamp: epoch.Add(offset),
	}
}

func TestTracker_UpsertReplaces(t *testing.T) {
	tr := New()

	tr.Upsert(status("wine-1", types.StatusMinting, 0))
	tr.Upsert(status("wine-1", types.StatusConfirming, time.Second))

	got, ok := tr.Get("wine-1")
	require.True(t, ok)
	assert.Equal(t, types.StatusConfirming, got.Status)
	assert.Len(t, tr.Snapshot(), 1)
}

func TestTracker_Counts(t *testing.T) {
	tr := New()

	tr.Upsert(status("wine-1", types.StatusSuccess, 0))
	tr.Upsert(status("wine-2", types.StatusSuccess, 1))
	tr.Upsert(status("wine-3", types.StatusFailed, 2))
	tr.Upsert(status("wine-4", types.StatusMinting, 3))
	tr.Upsert(status("wine-5", types.StatusPending, 4))
	tr.Upsert(status("wine-6", types.StatusConfirming, 5))

	assert.Equal(t, ResumeData{
		Completed:  2,
		Failed:     1,
		Pending:    2,
		Confirming: 1,
		Total:      6,
		CanResume:  true,
	}, tr.Counts())
	assert.Equal(t, 2, tr.ResumeOffset())
}

func TestTracker_CanResume(t *testing.T) {
	tr := New()
	assert.False(t, tr.CanResume(), "empty history has nothing to resume")

	tr.Upsert(status("wine-1", types.StatusSuccess, 0))
	assert.False(t, tr.CanResume(), "all entries are minted")

	tr.Upsert(status("wine-2", types.StatusFailed, 0))
	assert.True(t, tr.CanResume())
}

func TestTracker_ClearResetsResume(t *testing.T) {
	tr := New()
	tr.Upsert(status("wine-1", types.StatusSuccess, 0))
	tr.Upsert(status("wine-2", types.StatusFailed, 0))

	tr.Clear()

	assert.Equal(t, 0, tr.ResumeOffset())
	assert.False(t, tr.CanResume())
	assert.Empty(t, tr.Snapshot())
}

func TestTracker_PendingSkipsOnlyMinted(t *testing.T) {
	tr := New()
	tr.Upsert(status("wine-1", types.StatusSuccess, 0))
	tr.Upsert(status("wine-2", types.StatusFailed, 0))
	tr.Upsert(status("wine-3", types.StatusConfirming, 0))

	wineries := []types.Winery{
		{ID: "winery-1", Wines: []types.Wine{{ID: "wine-1"}, {ID: "wine-2"}}},
		{ID: "winery-2", Wines: []types.Wine{{ID: "wine-3"}, {ID: "wine-4"}}},
	}

	pending := tr.Pending(wineries)

	require.Len(t, pending, 2)
	assert.Equal(t, []types.Wine{{ID: "wine-2"}}, pending[0].Wines)
	assert.Equal(t, []types.Wine{{ID: "wine-3"}, {ID: "wine-4"}}, pending[1].Wines)
	assert.Len(t, wineries[0].Wines, 2, "input must not be modified")
}

func TestTracker_Results(t *testing.T) {
	tr := New()

	minted := status("wine-2", types.StatusSuccess, time.Minute)
	minted.TxID = "tx-2"
	minted.TokenRefID = "token-2"
	tr.Upsert(minted)
	tr.Upsert(status("wine-1", types.StatusFailed, 0))

	wineries := []types.Winery{{
		ID:   "winery-1",
		Info: types.WineryInfo{Name: "Mock Winery Alpha"},
		Wines: []types.Wine{{
			ID:          "wine-2",
			GeneralInfo: types.GeneralInfo{CollectionName: "Reserve Collection 2023"},
		}},
	}}

	results := tr.Results(wineries, "main")

	require.Len(t, results, 1)
	r := results[0]
	assert.Equal(t, "wine-2", r.WineID)
	assert.Equal(t, "Mock Winery Alpha", *r.WineryName)
	assert.Equal(t, "Reserve Collection 2023", *r.WineName)
	assert.Equal(t, "tx-2", *r.TxID)
	assert.Equal(t, "token-2", *r.TokenRefID)
	assert.Equal(t, "main", r.Network)
}
