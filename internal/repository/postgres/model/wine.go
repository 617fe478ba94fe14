package model

import (
	"encoding/json"
	"time"
)

// WineRow is one row of the catalogue query: a wine joined with its winery.
type WineRow struct {
	WineryID    string          `db:"winery_id"`
	WineryName  string          `db:"winery_name"`
	WineID      string          `db:"wine_id"`
	UID         string          `db:"uid"`
	Status      string          `db:"status"`
	GeneralInfo json.RawMessage `db:"general_info"`
	CreatedAt   time.Time       `db:"created_at"`
}
