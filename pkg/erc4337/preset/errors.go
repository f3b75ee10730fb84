package preset

import "fmt"

// ValidationError reports misuse of the pipeline before any network traffic:
// out-of-order builder stages, reused instances, malformed batches.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s", e.Message)
}

func newValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}
