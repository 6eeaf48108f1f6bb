package models

import (
	"errors"
	"fmt"
)

// ErrorType represents different categories of errors
type ErrorType int

const (
	ErrConfiguration ErrorType = iota
	ErrAssembly
	ErrRemoteBuild
	ErrTransport
)

// String returns the string representation of ErrorType
func (e ErrorType) String() string {
	switch e {
	case ErrConfiguration:
		return "Configuration"
	case ErrAssembly:
		return "Assembly"
	case ErrRemoteBuild:
		return "RemoteBuild"
	case ErrTransport:
		return "Transport"
	default:
		return "Unknown"
	}
}

// BuildError represents an error raised while producing a package
type BuildError struct {
	Type    ErrorType
	Package string
	Err     error
}

// Error implements the error interface
func (e *BuildError) Error() string {
	if e.Package != "" {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Package, e.Err)
	}
	return fmt.Sprintf("[%s] %v", e.Type, e.Err)
}

// Unwrap returns the wrapped error
func (e *BuildError) Unwrap() error {
	return e.Err
}

// ConfigError wraps err as a configuration error. Configuration errors are
// fatal before any work starts.
func ConfigError(err error) error {
	return &BuildError{Type: ErrConfiguration, Err: err}
}

// AssemblyError wraps err as a filesystem preparation failure for one package.
func AssemblyError(pkg string, err error) error {
	return &BuildError{Type: ErrAssembly, Package: pkg, Err: err}
}

// RemoteBuildError reports a failure marker found in a returned build.
func RemoteBuildError(pkg string, err error) error {
	return &BuildError{Type: ErrRemoteBuild, Package: pkg, Err: err}
}

// TransportError wraps a network failure while talking to a build host.
func TransportError(pkg string, err error) error {
	return &BuildError{Type: ErrTransport, Package: pkg, Err: err}
}

// IsErrorType reports whether err wraps a BuildError of type t
func IsErrorType(err error, t ErrorType) bool {
	var be *BuildError
	if errors.As(err, &be) {
		return be.Type == t
	}
	return false
}
