package types

import (
	"strings"
)

const SecureScheme = "https://"

type GrapeVariety struct {
	Name       string `json:"name"`
	Percentage string `json:"percentage"`
	Vintage    string `json:"vintage"`
}

type GeneralInfo struct {
	WineryName     string         `json:"wineryName"`
	CollectionName string         `json:"collectionName"`
	Type           string         `json:"type"`
	Vintage        string         `json:"vintage,omitempty"`
	Image          string         `json:"image,omitempty"`
	GrapeVarieties []GrapeVariety `json:"grapeVarieties"`
}

type Wine struct {
	UID         string      `json:"uid"`
	ID          string      `json:"id"`
	CreatedAt   string      `json:"createdAt"`
	Status      string      `json:"status"`
	GeneralInfo GeneralInfo `json:"generalInfo"`
}

// DisplayName is the label used in progress reports, e.g.
// "Reserve Collection 2023 - white-wine".
func (w *Wine) DisplayName() string {
	return w.GeneralInfo.CollectionName + " - " + w.GeneralInfo.Type
}

// HasValidImage reports whether the wine carries an HTTPS image URL, which is
// the precondition for minting it on the main network.
func (w *Wine) HasValidImage() bool {
	return strings.HasPrefix(w.GeneralInfo.Image, SecureScheme)
}

type WineryInfo struct {
	Name string `json:"name"`
}

type Winery struct {
	ID    string     `json:"id"`
	Info  WineryInfo `json:"info"`
	Wines []Wine     `json:"wines"`
}

// Name falls back to the identifier when the winery has no display name.
func (w *Winery) Name() string {
	if w.Info.Name == "" {
		return w.ID
	}
	return w.Info.Name
}

// CountWines returns the total number of wines across the wineries.
func CountWines(wineries []Winery) int {
	total := 0
	for _, winery := range wineries {
		total += len(winery.Wines)
	}
	return total
}

// FindWine looks up a wine by winery and wine identifiers.
func FindWine(wineries []Winery, wineryID, wineID string) (*Winery, *Wine) {
	for i := range wineries {
		if wineries[i].ID != wineryID {
			continue
		}
		for j := range wineries[i].Wines {
			if wineries[i].Wines[j].ID == wineID {
				return &wineries[i], &wineries[i].Wines[j]
			}
		}
		return &wineries[i], nil
	}
	return nil, nil
}
