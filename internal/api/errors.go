package api

import (
	stderrors "errors"
	"net/http"

	"github.com/openbuilders/wine-minter/internal/errors"
	"github.com/openbuilders/wine-minter/internal/minting"
)

var statusCodes = map[errors.ErrorCode]int{
	errors.CodeInvalidRequest: http.StatusBadRequest,
	errors.CodeRunInProgress:  http.StatusConflict,
	errors.CodeNoActiveRun:    http.StatusConflict,
	errors.CodeNotFound:       http.StatusNotFound,
	errors.CodeUpstream:       http.StatusBadGateway,
	errors.CodeMisconfigured:  http.StatusServiceUnavailable,
}

func statusCode(code errors.ErrorCode) int {
	if status, ok := statusCodes[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// serviceError maps the coordinator errors onto API error codes.
func serviceError(err error) error {
	switch {
	case stderrors.Is(err, minting.ErrRunInProgress):
		return errors.New(errors.CodeRunInProgress, err.Error(), err)
	case stderrors.Is(err, minting.ErrNoActiveRun):
		return errors.New(errors.CodeNoActiveRun, err.Error(), err)
	case stderrors.Is(err, minting.ErrWineNotFound):
		return errors.New(errors.CodeNotFound, err.Error(), err)
	case stderrors.Is(err, minting.ErrMainDisabled):
		return errors.New(errors.CodeMisconfigured, err.Error(), err)
	case stderrors.Is(err, minting.ErrUnknownMode),
		stderrors.Is(err, minting.ErrNothingToMint):
		return errors.New(errors.CodeInvalidRequest, err.Error(), err)
	default:
		return err
	}
}
