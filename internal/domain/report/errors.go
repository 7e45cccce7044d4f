package report

import "fmt"

// DomainError represents a report-level error with a stable code
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

var (
	// ErrDataUnavailable is returned when the record source cannot be read
	ErrDataUnavailable = NewDomainError("DATA_UNAVAILABLE", "report data unavailable")

	// ErrMalformedRecord marks a single sale or product that cannot be used
	ErrMalformedRecord = NewDomainError("MALFORMED_RECORD", "malformed record")

	// ErrDeliveryFailed is returned when a notifier could not deliver the report
	ErrDeliveryFailed = NewDomainError("DELIVERY_FAILED", "report delivery failed")

	// ErrInvalidReportKind is returned for unknown report kinds
	ErrInvalidReportKind = NewDomainError("INVALID_REPORT_KIND", "invalid report kind")
)

// Pipeline stages, used in StageError
const (
	StageResolvePeriod = "resolve_period"
	StageFetchSales    = "fetch_sales"
	StageFetchProducts = "fetch_products"
	StageExport        = "export"
	StageCompose       = "compose"
	StageDeliver       = "deliver"
)

// StageError identifies the pipeline stage that failed
type StageError struct {
	Stage string
	Err   error
}

// NewStageError wraps err with the failing stage
func NewStageError(stage string, err error) *StageError {
	return &StageError{Stage: stage, Err: err}
}

// Error implements the error interface
func (e *StageError) Error() string {
	return fmt.Sprintf("report stage %s failed: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error
func (e *StageError) Unwrap() error {
	return e.Err
}
