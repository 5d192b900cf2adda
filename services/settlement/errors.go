package settlement

import (
	"errors"
	"fmt"
)

// Error codes, grouped by the taxonomy the orchestrator report follows:
// validation errors are rejected immediately, conflicts are benign no-ops,
// transfer failures are transient-external, fatal-data errors exclude the
// single item from the batch.
const (
	CodeAlreadyExists     = "alreadyExists"
	CodeNotEligible       = "notEligible"
	CodeAlreadyConfirmed  = "alreadyConfirmed"
	CodeAlreadyResolved   = "alreadyResolved"
	CodeInvalidTransition = "invalidTransition"
	CodeNoEarnings        = "noEarnings"
	CodeFeesNotSettled    = "feesNotSettled"
	CodeNotFound          = "notFound"
	CodeConflict          = "conflict"
	CodeTransferFailed    = "transferFailed"
	CodeFatalData         = "fatalData"
)

// SettlementError carries a stable code alongside the message.
type SettlementError struct {
	Code    string
	Message string
}

func (e *SettlementError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewError(code, format string, args ...interface{}) error {
	return &SettlementError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// HasCode reports whether err carries the given settlement error code.
func HasCode(err error, code string) bool {
	var se *SettlementError
	return errors.As(err, &se) && se.Code == code
}
