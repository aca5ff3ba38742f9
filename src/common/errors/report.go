package errors

// Report is the machine-readable form of a fatal error, printed when the
// caller asked for JSON output
type Report struct {
	// Error contains the error code (domain.code format)
	Error string `json:"error"`

	// Message contains a human-readable error message
	Message string `json:"message"`

	// ExitCode is the status the process exits with
	ExitCode int `json:"exit_code"`

	// Details contains optional additional error details
	Details map[string]interface{} `json:"details,omitempty"`
}

// ToReport converts an Error to a Report
func (e *Error) ToReport() Report {
	r := Report{
		Error:    string(e.Domain) + "." + string(e.Code),
		Message:  e.Message,
		ExitCode: e.ExitCode,
	}
	if e.cause != nil {
		r.Details = map[string]interface{}{"cause": e.cause.Error()}
	}
	return r
}

// ReportFor converts any error to a Report. Errors outside the structured
// taxonomy are reported as internal.
func ReportFor(err error) Report {
	var e *Error
	if As(err, &e) {
		r := e.ToReport()
		r.Message = err.Error()
		return r
	}
	return Report{
		Error:    string(DomainInternal) + "." + string(CodeInternal),
		Message:  err.Error(),
		ExitCode: GetExitCode(err),
	}
}
