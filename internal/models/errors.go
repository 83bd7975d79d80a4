package models

import "fmt"

// ErrorType represents different categories of errors
type ErrorType int

const (
	ErrTransport ErrorType = iota
	ErrSigning
	ErrMetadataGen
	ErrMerge
	ErrVerification
	ErrFileOp
	ErrInvalidConfig
)

// String returns the string representation of ErrorType
func (e ErrorType) String() string {
	switch e {
	case ErrTransport:
		return "Transport"
	case ErrSigning:
		return "Signing"
	case ErrMetadataGen:
		return "MetadataGen"
	case ErrMerge:
		return "Merge"
	case ErrVerification:
		return "Verification"
	case ErrFileOp:
		return "FileOp"
	case ErrInvalidConfig:
		return "InvalidConfig"
	default:
		return "Unknown"
	}
}

// PublishError represents an error during one reconciliation cycle
type PublishError struct {
	Type   ErrorType
	Target string
	Stage  Stage
	Err    error
}

// Error implements the error interface
func (e *PublishError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("[%s] %s at %s: %v", e.Type, e.Target, e.Stage, e.Err)
	}
	return fmt.Sprintf("[%s] %v", e.Type, e.Err)
}

// Unwrap returns the wrapped error
func (e *PublishError) Unwrap() error {
	return e.Err
}
