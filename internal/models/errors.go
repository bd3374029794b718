package models

import (
	"errors"
	"fmt"
)

// ErrorType represents different categories of errors
type ErrorType int

const (
	ErrNotFound ErrorType = iota
	ErrCycle
	ErrMissingDependency
	ErrAcquisition
	ErrInconsistentFeed
	ErrInvalidConfig
	ErrFileOp
	ErrSignature
)

// String returns the string representation of ErrorType
func (e ErrorType) String() string {
	switch e {
	case ErrNotFound:
		return "NotFound"
	case ErrCycle:
		return "Cycle"
	case ErrMissingDependency:
		return "MissingDependency"
	case ErrAcquisition:
		return "Acquisition"
	case ErrInconsistentFeed:
		return "InconsistentFeed"
	case ErrInvalidConfig:
		return "InvalidConfig"
	case ErrFileOp:
		return "FileOp"
	case ErrSignature:
		return "Signature"
	default:
		return "Unknown"
	}
}

// ToolchainError represents an error raised while managing a toolchain
type ToolchainError struct {
	Type ErrorType
	// Package is the package or toolchain name the error is about
	Package string
	// Op is the operation that failed, e.g. "remove" or "download"
	Op  string
	Err error
}

// Error implements the error interface
func (e *ToolchainError) Error() string {
	switch {
	case e.Package != "" && e.Op != "":
		return fmt.Sprintf("[%s] %s: %s: %v", e.Type, e.Package, e.Op, e.Err)
	case e.Package != "":
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Package, e.Err)
	case e.Op != "":
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Op, e.Err)
	default:
		return fmt.Sprintf("[%s] %v", e.Type, e.Err)
	}
}

// Unwrap returns the wrapped error
func (e *ToolchainError) Unwrap() error {
	return e.Err
}

// NewError builds a ToolchainError
func NewError(t ErrorType, pkg, op string, err error) *ToolchainError {
	return &ToolchainError{Type: t, Package: pkg, Op: op, Err: err}
}

// NotFound builds a NotFound error for the named package or toolchain
func NotFound(name, op string) *ToolchainError {
	return NewError(ErrNotFound, name, op, fmt.Errorf("no such package: %s", name))
}

// IsType reports whether err wraps a ToolchainError of the given type
func IsType(err error, t ErrorType) bool {
	var te *ToolchainError
	if errors.As(err, &te) {
		return te.Type == t
	}
	return false
}
