package errors

type ErrorCode string

const (
	CodeInvalidRequest ErrorCode = "invalid_request"
	CodeRunInProgress  ErrorCode = "run_in_progress"
	CodeNoActiveRun    ErrorCode = "no_active_run"
	CodeNotFound       ErrorCode = "not_found"
	CodeUpstream       ErrorCode = "upstream_error"
	CodeMisconfigured  ErrorCode = "misconfigured"
)

type ServiceError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func New(code ErrorCode, message string, err error) ServiceError {
	return ServiceError{Code: code, Message: message, Err: err}
}

func (se ServiceError) Error() string {
	return se.Message
}

func (se ServiceError) Unwrap() error {
	return se.Err
}
