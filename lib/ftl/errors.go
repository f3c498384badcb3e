package ftl

import "fmt"

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error wraps a return code and a message. It is returned for requests the
// device rejects; invariant violations inside the FTL panic instead.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("FTLError (code %s): %s", e.Code, e.Msg)
}

// NewError creates a new Error with the given code and message.
func NewError(code RetCode, format string, args ...any) *Error {
	return &Error{
		Code: code,
		Msg:  fmt.Sprintf(format, args...),
	}
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

// RetCode classifies an Error
type RetCode uint8

const (
	RetCSuccess RetCode = iota
	RetCInternalError
	RetCUnsupportedOperation
	RetCInvalidOperation
	RetCOutOfRange
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCUnsupportedOperation:
		return "UnsupportedOperation"
	case RetCInvalidOperation:
		return "InvalidOperation"
	case RetCOutOfRange:
		return "OutOfRange"
	default:
		return "Unknown"
	}
}

// IsCode reports whether err is an *Error with the given code
func IsCode(err error, code RetCode) bool {
	e, ok := err.(*Error)
	return ok && e.Code == code
}
