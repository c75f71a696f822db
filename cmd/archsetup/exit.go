package archsetup

import (
	"github.com/arthur-debert/archsetup/pkg/errors"
)

// Process exit codes.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitUsage       = 2
	ExitInterrupted = 130
)

// ExitCode maps the error returned by the root command to a process exit
// code. Degrading and recoverable task failures do not reach here.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.IsErrorCode(err, errors.ErrInterrupted):
		return ExitInterrupted
	case errors.IsErrorCode(err, errors.ErrInvalidInput):
		return ExitUsage
	default:
		return ExitFailure
	}
}

// Hint returns a line to print after err, or "" when there is none. Errors
// from startup validation stop the run before any task, so the system was
// left as it was.
func Hint(err error) string {
	if errors.IsStartupValidation(err) {
		return MsgNothingChanged
	}
	return ""
}

// IsUsageError reports whether err was caused by bad flags or arguments.
func IsUsageError(err error) bool {
	return errors.IsErrorCode(err, errors.ErrInvalidInput)
}

func usageError(err error) error {
	if err == nil {
		return nil
	}
	return errors.New(errors.ErrInvalidInput, err.Error())
}
