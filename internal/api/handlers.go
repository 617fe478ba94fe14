package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/openbuilders/wine-minter/internal/errors"
	"github.com/openbuilders/wine-minter/internal/history"
	"github.com/openbuilders/wine-minter/internal/minting"
	"github.com/openbuilders/wine-minter/internal/types"
)

type ProgressResponse struct {
	Running  bool                       `json:"running"`
	Run      *minting.Run               `json:"run,omitempty"`
	Progress types.BatchMintingProgress `json:"progress"`
	Summary  types.MintSummary          `json:"summary"`
}

type HistoryResponse struct {
	Entries []types.MintingStatus `json:"entries"`
	Resume  history.ResumeData    `json:"resume"`
}

func (s *Server) StartHandler(w http.ResponseWriter, r *http.Request) (
	interface{}, error) {
	bodyBytes, err := io.ReadAll(r.Body)
	if err != nil {
		s.log.Error("Unable to read request body", "error", err)
		return nil, err
	}
	defer r.Body.Close()

	var req minting.StartRequest

	err = json.Unmarshal(bodyBytes, &req)
	if err != nil {
		return nil, errors.New(errors.CodeInvalidRequest,
			fmt.Sprintf("start request unmarshalling error: %v", err), err)
	}

	if req.WineryLimit < 0 {
		return nil, errors.New(errors.CodeInvalidRequest, "wineryLimit must not be negative", nil)
	}

	if req.Single() && (req.WineryID == "" || req.WineID == "") {
		return nil, errors.New(errors.CodeInvalidRequest,
			"both wineryId and wineId are required to mint a single wine", nil)
	}

	s.log.Info("Accepted a start request", "mode", req.Mode, "single", req.Single())

	run, err := s.coordinator.Start(r.Context(), req)
	if err != nil {
		return nil, serviceError(err)
	}

	return run, nil
}

func (s *Server) StopHandler(w http.ResponseWriter, r *http.Request) (
	interface{}, error) {
	if err := s.coordinator.Stop(); err != nil {
		return nil, serviceError(err)
	}

	s.log.Info("Stop requested")

	return "ok", nil
}

func (s *Server) ProgressHandler(w http.ResponseWriter, r *http.Request) (
	interface{}, error) {
	run, running := s.coordinator.Status()

	return ProgressResponse{
		Running:  running,
		Run:      run,
		Progress: s.coordinator.Progress(),
		Summary:  s.coordinator.Summary(),
	}, nil
}

func (s *Server) HistoryHandler(w http.ResponseWriter, r *http.Request) (
	interface{}, error) {
	return HistoryResponse{
		Entries: s.history.Snapshot(),
		Resume:  s.history.Counts(),
	}, nil
}

func (s *Server) ClearHistoryHandler(w http.ResponseWriter, r *http.Request) (
	interface{}, error) {
	if err := s.coordinator.ClearHistory(); err != nil {
		return nil, serviceError(err)
	}

	s.log.Info("Mint history cleared")

	return "ok", nil
}

func (s *Server) ResultsHandler(w http.ResponseWriter, r *http.Request) (
	interface{}, error) {
	return s.coordinator.Results(r.Context()), nil
}

// AssetHandler returns the on-chain metadata of the asset unit given in the
// "unit" query parameter.
func (s *Server) AssetHandler(w http.ResponseWriter, r *http.Request) (
	interface{}, error) {
	if s.assets == nil {
		return nil, errors.New(errors.CodeMisconfigured,
			"asset retrieval requires main network minting", nil)
	}

	unit := r.URL.Query().Get("unit")
	if unit == "" {
		return nil, errors.New(errors.CodeInvalidRequest, "unit is required", nil)
	}

	asset, err := s.assets.RetrieveAsset(r.Context(), unit)
	if err != nil {
		s.log.Error("Asset retrieval failed", "unit", unit, "error", err)
		return nil, errors.New(errors.CodeUpstream, err.Error(), err)
	}

	if asset == nil {
		return nil, errors.New(errors.CodeNotFound, fmt.Sprintf("asset %s not found", unit), nil)
	}

	return asset, nil
}

func (s *Server) WineriesHandler(w http.ResponseWriter, r *http.Request) (
	interface{}, error) {
	return s.coordinator.Wineries(r.Context()), nil
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) (
	interface{}, error) {
	return s.health.GetHealthStatus(), nil
}

func (s *Server) ReadinessHandler(w http.ResponseWriter, r *http.Request) (
	interface{}, error) {
	status := s.health.GetHealthStatus()
	if !status.Healthy {
		return nil, errors.New(errors.CodeUpstream, "dependencies are unhealthy", nil)
	}

	return "ready", nil
}
