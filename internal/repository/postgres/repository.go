package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/openbuilders/wine-minter/internal/repository/postgres/model"
	"github.com/openbuilders/wine-minter/internal/types"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	DuplicateKeyValue string = "23505"

	createdAtLayout = "2006-01-02T15:04:05.000Z"
)

var (
	ErrDuplicateKeyValue = errors.New("duplicate key value")
)

const schema = `
CREATE TABLE IF NOT EXISTS winery (
	id   TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS wine (
	id           TEXT PRIMARY KEY,
	winery_id    TEXT NOT NULL REFERENCES winery (id),
	uid          TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL DEFAULT '',
	general_info JSONB NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);`

const listWinesQuery = `
SELECT y.id AS winery_id, y.name AS winery_name, w.id AS wine_id, w.uid,
	w.status, w.general_info, w.created_at
FROM wine w
JOIN winery y ON y.id = w.winery_id
ORDER BY y.id, w.created_at, w.id`

func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.pg.Exec(ctx, schema); err != nil {
		return fmt.Errorf("couldn't create catalogue schema: %w", err)
	}
	return nil
}

// ListWineries reads the whole catalogue in winery-then-wine order.
func (p *Postgres) ListWineries(ctx context.Context) ([]types.Winery, error) {
	rows, err := p.pg.Query(ctx, listWinesQuery)
	if err != nil {
		return nil, fmt.Errorf("couldn't query wines: %w", err)
	}

	wineRows, err := pgx.CollectRows(rows, pgx.RowToStructByName[model.WineRow])
	if err != nil {
		return nil, fmt.Errorf("couldn't scan wines: %w", err)
	}

	p.log.Debug("Catalogue rows loaded", "rows", len(wineRows))

	return groupWineries(wineRows)
}

// groupWineries folds consecutive rows of the same winery into one Winery,
// keeping the row order.
func groupWineries(rows []model.WineRow) ([]types.Winery, error) {
	wineries := []types.Winery{}

	for _, row := range rows {
		var info types.GeneralInfo
		if err := json.Unmarshal(row.GeneralInfo, &info); err != nil {
			return nil, fmt.Errorf("wine %s: invalid general info: %w", row.WineID, err)
		}

		wine := types.Wine{
			UID:         row.UID,
			ID:          row.WineID,
			CreatedAt:   row.CreatedAt.UTC().Format(createdAtLayout),
			Status:      row.Status,
			GeneralInfo: info,
		}

		last := len(wineries) - 1
		if last >= 0 && wineries[last].ID == row.WineryID {
			wineries[last].Wines = append(wineries[last].Wines, wine)
			continue
		}

		wineries = append(wineries, types.Winery{
			ID:    row.WineryID,
			Info:  types.WineryInfo{Name: row.WineryName},
			Wines: []types.Wine{wine},
		})
	}

	return wineries, nil
}

// ImportWineries bulk loads a catalogue in a single transaction.
func (p *Postgres) ImportWineries(ctx context.Context, wineries []types.Winery) error {
	wineryRows, wineRows, err := catalogueRows(wineries)
	if err != nil {
		return err
	}

	tx, err := p.pg.Begin(ctx)
	if err != nil {
		return fmt.Errorf("couldn't begin import: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	p.log.Debug("COPY", "wineries", len(wineryRows), "wines", len(wineRows))

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"winery"}, []string{"id", "name"},
		pgx.CopyFromRows(wineryRows)); err != nil {
		return copyError(err)
	}

	inserted, err := tx.CopyFrom(ctx, pgx.Identifier{"wine"},
		[]string{"id", "winery_id", "uid", "status", "general_info", "created_at"},
		pgx.CopyFromRows(wineRows))
	if err != nil {
		return copyError(err)
	}

	if int(inserted) != len(wineRows) {
		return fmt.Errorf("import: %d of %d wines inserted", inserted, len(wineRows))
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("couldn't commit import: %w", err)
	}

	p.log.Info("Catalogue imported", "wineries", len(wineryRows), "wines", inserted)

	return nil
}

func catalogueRows(wineries []types.Winery) ([][]any, [][]any, error) {
	wineryRows := make([][]any, 0, len(wineries))
	wineRows := make([][]any, 0, types.CountWines(wineries))

	for _, winery := range wineries {
		wineryRows = append(wineryRows, []any{winery.ID, winery.Info.Name})

		for _, wine := range winery.Wines {
			info, err := json.Marshal(wine.GeneralInfo)
			if err != nil {
				return nil, nil, fmt.Errorf("wine %s: %w", wine.ID, err)
			}

			createdAt, err := time.Parse(time.RFC3339, wine.CreatedAt)
			if err != nil {
				createdAt = time.Now().UTC()
			}

			wineRows = append(wineRows, []any{
				wine.ID, winery.ID, wine.UID, wine.Status, info, createdAt,
			})
		}
	}

	return wineryRows, wineRows, nil
}

func copyError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == DuplicateKeyValue {
		return ErrDuplicateKeyValue
	}
	return fmt.Errorf("couldn't import catalogue: %w", err)
}
