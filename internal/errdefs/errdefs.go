package errdefs

import (
	"errors"
	"fmt"
)

type ErrorType int

const (
	ErrTypeConfiguration ErrorType = iota
	ErrTypeArgument
	ErrTypeUnsupportedKind
	ErrTypeUnsupportedOperation
	ErrTypeIndexingFailed
	ErrTypeSearchFailed
	ErrTypeInvalidConfig
	ErrTypeReadOnly
	ErrTypeWatcherFailed
	ErrTypeMappingDrift
)

func (t ErrorType) String() string {
	switch t {
	case ErrTypeConfiguration:
		return "configuration"
	case ErrTypeArgument:
		return "argument"
	case ErrTypeUnsupportedKind:
		return "unsupported kind"
	case ErrTypeUnsupportedOperation:
		return "unsupported operation"
	case ErrTypeIndexingFailed:
		return "indexing failed"
	case ErrTypeSearchFailed:
		return "search failed"
	case ErrTypeInvalidConfig:
		return "invalid config"
	case ErrTypeReadOnly:
		return "read only"
	case ErrTypeWatcherFailed:
		return "watcher failed"
	case ErrTypeMappingDrift:
		return "mapping drift"
	default:
		return fmt.Sprintf("ErrorType(%d)", int(t))
	}
}

type CustomError struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *CustomError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *CustomError) Unwrap() error {
	return e.Err
}

func NewCustomError(errType ErrorType, message string, err error) error {
	return &CustomError{
		Type:    errType,
		Message: message,
		Err:     err,
	}
}

// Newf builds a CustomError with a formatted message and no wrapped cause.
func Newf(errType ErrorType, format string, args ...any) error {
	return &CustomError{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
	}
}

// Is reports whether any error in err's chain is a CustomError of the given type.
func Is(err error, errType ErrorType) bool {
	var ce *CustomError
	for err != nil {
		if !errors.As(err, &ce) {
			return false
		}
		if ce.Type == errType {
			return true
		}
		err = ce.Err
	}
	return false
}

var (
	ErrConfiguration        = &CustomError{Type: ErrTypeConfiguration, Message: "invalid mapping configuration"}
	ErrArgument             = &CustomError{Type: ErrTypeArgument, Message: "invalid argument"}
	ErrUnsupportedKind      = &CustomError{Type: ErrTypeUnsupportedKind, Message: "unsupported kind"}
	ErrUnsupportedOperation = &CustomError{Type: ErrTypeUnsupportedOperation, Message: "unsupported operation"}
	ErrIndexingFailed       = &CustomError{Type: ErrTypeIndexingFailed, Message: "indexing failed"}
	ErrSearchFailed         = &CustomError{Type: ErrTypeSearchFailed, Message: "search failed"}
	ErrInvalidConfig        = &CustomError{Type: ErrTypeInvalidConfig, Message: "invalid config"}
	ErrReadOnly             = &CustomError{Type: ErrTypeReadOnly, Message: "provider is read only"}
	ErrWatcherFailed        = &CustomError{Type: ErrTypeWatcherFailed, Message: "watcher failed"}
	ErrMappingDrift         = &CustomError{Type: ErrTypeMappingDrift, Message: "mapping changed since index was created"}
)
