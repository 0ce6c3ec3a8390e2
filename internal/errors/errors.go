// Package errors provides typed, wrapped errors for the ctxpack pipeline.
package errors

import (
	"fmt"
	"time"
)

// ErrorType classifies which pipeline stage produced an error.
type ErrorType string

const (
	ErrorTypeIndexing  ErrorType = "indexing"
	ErrorTypeScan      ErrorType = "scan"
	ErrorTypeStore     ErrorType = "store"
	ErrorTypeDiscovery ErrorType = "discovery"
	ErrorTypeConfig    ErrorType = "config"
	ErrorTypeInternal  ErrorType = "internal"
)

// IndexingError represents an error during the indexing process (scan,
// extract, store) for a specific file.
type IndexingError struct {
	Type        ErrorType
	FilePath    string
	Operation   string
	Underlying  error
	Timestamp   time.Time
	Recoverable bool
}

// NewIndexingError creates a new indexing error with context.
func NewIndexingError(op string, err error) *IndexingError {
	return &IndexingError{
		Type:       ErrorTypeIndexing,
		Operation:  op,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// WithFile adds file information to the error.
func (e *IndexingError) WithFile(path string) *IndexingError {
	e.FilePath = path
	return e
}

// WithRecoverable marks the error as recoverable.
func (e *IndexingError) WithRecoverable(recoverable bool) *IndexingError {
	e.Recoverable = recoverable
	return e
}

func (e *IndexingError) Error() string {
	if e.FilePath != "" {
		return fmt.Sprintf("%s %s failed for %s: %v", e.Type, e.Operation, e.FilePath, e.Underlying)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Type, e.Operation, e.Underlying)
}

func (e *IndexingError) Unwrap() error { return e.Underlying }

// IsRecoverable reports whether the caller may retry the operation.
func (e *IndexingError) IsRecoverable() bool { return e.Recoverable }

// ScanError represents a failure walking or reading a file during File
// Scanner traversal.
type ScanError struct {
	Path       string
	Operation  string
	Underlying error
	Timestamp  time.Time
}

// NewScanError creates a new scan error.
func NewScanError(op, path string, err error) *ScanError {
	return &ScanError{
		Operation:  op,
		Path:       path,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("scan %s failed for %s: %v", e.Operation, e.Path, e.Underlying)
}

func (e *ScanError) Unwrap() error { return e.Underlying }

// StoreError represents a Store (SQLite) operation failure.
type StoreError struct {
	Operation  string
	Path       string
	Underlying error
	Timestamp  time.Time
}

// NewStoreError creates a new store error.
func NewStoreError(op, path string, err error) *StoreError {
	return &StoreError{
		Operation:  op,
		Path:       path,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

func (e *StoreError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("store %s failed for %s: %v", e.Operation, e.Path, e.Underlying)
	}
	return fmt.Sprintf("store %s failed: %v", e.Operation, e.Underlying)
}

func (e *StoreError) Unwrap() error { return e.Underlying }

// DiscoveryError represents a failure in one Candidate Discovery producer or
// rule. Discovery tolerates these (they're aggregated into a MultiError and
// the remaining producers still run), per the pipeline's fault-tolerance
// requirement.
type DiscoveryError struct {
	Producer   string
	Underlying error
	Timestamp  time.Time
}

// NewDiscoveryError creates a new discovery error.
func NewDiscoveryError(producer string, err error) *DiscoveryError {
	return &DiscoveryError{
		Producer:   producer,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("discovery producer %q failed: %v", e.Producer, e.Underlying)
}

func (e *DiscoveryError) Unwrap() error { return e.Underlying }

// ConfigError represents a configuration load or validation error.
type ConfigError struct {
	Field      string
	Value      string
	Underlying error
	Timestamp  time.Time
}

// NewConfigError creates a new config error.
func NewConfigError(field, value string, err error) *ConfigError {
	return &ConfigError{
		Field:      field,
		Value:      value,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error for field %s (value %s): %v", e.Field, e.Value, e.Underlying)
}

func (e *ConfigError) Unwrap() error { return e.Underlying }

// MultiError aggregates several independent failures, used where Candidate
// Discovery and the Domain/Rule Registry must tolerate a single producer or
// rule failing without aborting the whole pass.
type MultiError struct {
	Errors []error
}

// NewMultiError creates a new multi-error, dropping nils. Returns nil if no
// non-nil errors remain, so callers can write `if err := NewMultiError(errs); err != nil`.
func NewMultiError(errs []error) *MultiError {
	filtered := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	return &MultiError{Errors: filtered}
}

func (e *MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors: %v", len(e.Errors), e.Errors)
}

func (e *MultiError) Unwrap() []error { return e.Errors }
