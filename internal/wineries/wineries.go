package wineries

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/openbuilders/wine-minter/internal/httpx"
	"github.com/openbuilders/wine-minter/internal/types"

	"github.com/go-resty/resty/v2"
)

const (
	SourcePostgres = "postgres"
	SourceHTTP     = "http"
	SourceMock     = "mock"
)

type Source interface {
	ListWineries(ctx context.Context) ([]types.Winery, error)
}

// HTTPSource reads the catalogue as a JSON array of wineries.
type HTTPSource struct {
	url  string
	http *resty.Client
}

func NewHTTPSource(url string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		url:  url,
		http: httpx.NewClient(slog.With("component", "wineries"), timeout),
	}
}

func (s *HTTPSource) ListWineries(ctx context.Context) ([]types.Winery, error) {
	resp, err := s.http.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		Get(s.url)
	if err != nil {
		return nil, fmt.Errorf("wineries request failed: %w", err)
	}

	if resp.IsError() {
		return nil, fmt.Errorf("wineries request failed: %s", resp.Status())
	}

	var wineries []types.Winery
	if err := json.Unmarshal(resp.Body(), &wineries); err != nil {
		return nil, fmt.Errorf("wineries unmarshalling error: %w", err)
	}

	return wineries, nil
}

// MockSource serves the fixed dataset used when no catalogue is reachable.
type MockSource struct{}

func (MockSource) ListWineries(context.Context) ([]types.Winery, error) {
	return MockDataset(), nil
}

// Loader reads the catalogue from the configured source and falls back to the
// mock dataset when the source fails or is empty.
type Loader struct {
	source Source
	log    *slog.Logger
}

func NewLoader(source Source) *Loader {
	if source == nil {
		source = MockSource{}
	}

	return &Loader{
		source: source,
		log:    slog.With("component", "wineries"),
	}
}

func (l *Loader) Load(ctx context.Context) []types.Winery {
	wineries, err := l.source.ListWineries(ctx)
	if err != nil {
		l.log.Warn("Wineries source unavailable, using mock dataset", "error", err)
		return MockDataset()
	}

	if len(wineries) == 0 {
		l.log.Warn("Wineries source is empty, using mock dataset")
		return MockDataset()
	}

	l.log.Info("Wineries loaded", "wineries", len(wineries), "wines", types.CountWines(wineries))

	return wineries
}

// Limit returns at most n wineries; n <= 0 keeps them all.
func Limit(wineries []types.Winery, n int) []types.Winery {
	if n <= 0 || n >= len(wineries) {
		return wineries
	}
	return wineries[:n]
}

// Select narrows the catalogue to a single wine.
func Select(wineries []types.Winery, wineryID, wineID string) ([]types.Winery, bool) {
	winery, wine := types.FindWine(wineries, wineryID, wineID)
	if wine == nil {
		return nil, false
	}

	return []types.Winery{{
		ID:    winery.ID,
		Info:  winery.Info,
		Wines: []types.Wine{*wine},
	}}, true
}

// MockDataset is a small fixed catalogue of two wineries and three wines.
func MockDataset() []types.Winery {
	return []types.Winery{
		{
			ID:   "mock-winery-1",
			Info: types.WineryInfo{Name: "Mock Winery Alpha"},
			Wines: []types.Wine{
				mockWine("mock-winery-1", "mock-wine-1", "2024-01-01T00:00:00.000Z",
					"Mock Winery Alpha", "Premium Collection 2024", "red-wine", "2024",
					"Cabernet Sauvignon"),
				mockWine("mock-winery-1", "mock-wine-2", "2024-01-02T00:00:00.000Z",
					"Mock Winery Alpha", "Reserve Collection 2023", "white-wine", "2023",
					"Chardonnay"),
			},
		},
		{
			ID:   "mock-winery-2",
			Info: types.WineryInfo{Name: "Mock Winery Beta"},
			Wines: []types.Wine{
				mockWine("mock-winery-2", "mock-wine-3", "2024-01-03T00:00:00.000Z",
					"Mock Winery Beta", "Classic Collection 2024", "rose-wine", "2024",
					"Pinot Noir"),
			},
		},
	}
}

func mockWine(wineryID, id, createdAt, wineryName, collection, kind, vintage,
	grape string) types.Wine {
	return types.Wine{
		UID:       wineryID,
		ID:        id,
		CreatedAt: createdAt,
		Status:    "published",
		GeneralInfo: types.GeneralInfo{
			WineryName:     wineryName,
			CollectionName: collection,
			Type:           kind,
			Vintage:        vintage,
			GrapeVarieties: []types.GrapeVariety{
				{Name: grape, Percentage: "100", Vintage: vintage},
			},
		},
	}
}
