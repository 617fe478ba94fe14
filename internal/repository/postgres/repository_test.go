package postgres

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/openbuilders/wine-minter/internal/repository/postgres/model"
	"github.com/openbuilders/wine-minter/internal/types"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func row(wineryID, wineryName, wineID, collection string, day int) model.WineRow {
	info, _ := json.Marshal(types.GeneralInfo{
		WineryName:     wineryName,
		CollectionName: collection,
		Type:           "red-wine",
	})

	return model.WineRow{
		WineryID:    wineryID,
		WineryName:  wineryName,
		WineID:      wineID,
		UID:         wineryID,
		Status:      "published",
		GeneralInfo: info,
		CreatedAt:   time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC),
	}
}

func TestGroupWineries(t *testing.T) {
	wineries, err := groupWineries([]model.WineRow{
		row("a", "Alpha", "a-1", "Premium", 1),
		row("a", "Alpha", "a-2", "Reserve", 2),
		row("b", "Beta", "b-1", "Classic", 3),
	})
	require.NoError(t, err)

	require.Len(t, wineries, 2)
	assert.Equal(t, "Alpha", wineries[0].Name())
	require.Len(t, wineries[0].Wines, 2)
	assert.Equal(t, "a-2", wineries[0].Wines[1].ID)
	assert.Equal(t, "Reserve", wineries[0].Wines[1].GeneralInfo.CollectionName)
	assert.Equal(t, "2024-01-02T00:00:00.000Z", wineries[0].Wines[1].CreatedAt)
	assert.Equal(t, "b-1", wineries[1].Wines[0].ID)
}

func TestGroupWineries_Empty(t *testing.T) {
	wineries, err := groupWineries(nil)
	require.NoError(t, err)
	assert.Empty(t, wineries)
}

func TestGroupWineries_InvalidInfo(t *testing.T) {
	bad := row("a", "Alpha", "a-1", "Premium", 1)
	bad.GeneralInfo = json.RawMessage(`{"collectionName":`)

	_, err := groupWineries([]model.WineRow{bad})
	assert.Error(t, err)
}

func TestCatalogueRows(t *testing.T) {
	wineries := []types.Winery{{
		ID:   "a",
		Info: types.WineryInfo{Name: "Alpha"},
		Wines: []types.Wine{
			{ID: "a-1", UID: "a", Status: "published", CreatedAt: "2024-01-01T00:00:00.000Z"},
			{ID: "a-2", UID: "a", Status: "published", CreatedAt: "not a date"},
		},
	}}

	wineryRows, wineRows, err := catalogueRows(wineries)
	require.NoError(t, err)

	assert.Equal(t, [][]any{{"a", "Alpha"}}, wineryRows)
	require.Len(t, wineRows, 2)
	assert.Equal(t, "a-1", wineRows[0][0])
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), wineRows[0][5])
	assert.IsType(t, time.Time{}, wineRows[1][5])
}

func TestCopyError(t *testing.T) {
	err := copyError(fmt.Errorf("copy: %w", &pgconn.PgError{Code: DuplicateKeyValue}))
	assert.ErrorIs(t, err, ErrDuplicateKeyValue)

	err = copyError(errors.New("broken pipe"))
	assert.NotErrorIs(t, err, ErrDuplicateKeyValue)
	assert.Contains(t, err.Error(), "broken pipe")
}
