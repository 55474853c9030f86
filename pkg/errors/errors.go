// Package errors provides a structured error system for storenode with error codes, categories, and status codes.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"syscall"
	"time"
)

// ErrorCode represents a structured error code for storenode operations.
type ErrorCode string

// Error code constants organized by category.
const (
	// Configuration Errors
	ErrCodeInvalidConfig    ErrorCode = "INVALID_CONFIG"
	ErrCodeConfigValidation ErrorCode = "CONFIG_VALIDATION"
	ErrCodeConfigLoad       ErrorCode = "CONFIG_LOAD"
	ErrCodeConfigSave       ErrorCode = "CONFIG_SAVE"
	ErrCodeInvalidBackend   ErrorCode = "CONFIG_INVALID_BACKEND"
	ErrCodeInvalidOption    ErrorCode = "CONFIG_INVALID_OPTION"
	ErrCodeUnknownDriver    ErrorCode = "CONFIG_UNKNOWN_DRIVER"

	// Resource Errors
	ErrCodeOutOfMemory       ErrorCode = "OUT_OF_MEMORY"
	ErrCodeResourceExhausted ErrorCode = "RESOURCE_EXHAUSTED"
	ErrCodeLimitExceeded     ErrorCode = "LIMIT_EXCEEDED"

	// I/O Errors
	ErrCodeIORead     ErrorCode = "IO_READ"
	ErrCodeIOWrite    ErrorCode = "IO_WRITE"
	ErrCodeIOOpen     ErrorCode = "IO_OPEN"
	ErrCodeShortWrite ErrorCode = "IO_SHORT_WRITE"
	ErrCodeNotFound   ErrorCode = "IO_NOT_FOUND"

	// Format Errors
	ErrCodeFormatSize  ErrorCode = "FORMAT_SIZE"
	ErrCodeFormatEmpty ErrorCode = "FORMAT_EMPTY"

	// Engine Errors
	ErrCodeEngineInit    ErrorCode = "ENGINE_INIT"
	ErrCodeEngineCommand ErrorCode = "ENGINE_COMMAND"

	// Collaborator Errors
	ErrCodeCacheInit       ErrorCode = "COLLABORATOR_CACHE"
	ErrCodeStatProvider    ErrorCode = "COLLABORATOR_STAT_PROVIDER"
	ErrCodeIOPool          ErrorCode = "COLLABORATOR_IO_POOL"
	ErrCodeRouteEnable     ErrorCode = "COLLABORATOR_ROUTE"
	ErrCodePeerSync        ErrorCode = "COLLABORATOR_PEER_SYNC"
	ErrCodeSyncUnavailable ErrorCode = "COLLABORATOR_SYNC_UNAVAILABLE"
	ErrCodeCircuitOpen     ErrorCode = "COLLABORATOR_CIRCUIT_OPEN"

	// State Errors
	ErrCodeAlreadyStarted ErrorCode = "ALREADY_STARTED"
	ErrCodeNotStarted     ErrorCode = "NOT_STARTED"
	ErrCodeConflict       ErrorCode = "STATE_CONFLICT"

	// Internal System Errors
	ErrCodeInternalError ErrorCode = "INTERNAL_ERROR"
)

// ErrorCategory represents the general category of an error.
type ErrorCategory string

const (
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryResource      ErrorCategory = "resource"
	CategoryIO            ErrorCategory = "io"
	CategoryFormat        ErrorCategory = "format"
	CategoryEngine        ErrorCategory = "engine"
	CategoryCollaborator  ErrorCategory = "collaborator"
	CategoryState         ErrorCategory = "state"
	CategoryInternal      ErrorCategory = "internal"
)

// NodeError represents a structured error with context and metadata.
type NodeError struct {
	Code     ErrorCode              `json:"code"`
	Category ErrorCategory          `json:"category"`
	Message  string                 `json:"message"`
	Details  map[string]interface{} `json:"details,omitempty"`

	Context   map[string]string `json:"context,omitempty"`
	Cause     error             `json:"-"`
	Timestamp time.Time         `json:"timestamp"`

	Component string `json:"component"`
	Operation string `json:"operation,omitempty"`

	// Status is the negative errno-style status reported to the caller.
	Status int `json:"status"`
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	if e.Component != "" {
		if e.Operation != "" {
			return fmt.Sprintf("[%s:%s] %s: %s", e.Component, e.Operation, e.Code, msg)
		}
		return fmt.Sprintf("[%s] %s: %s", e.Component, e.Code, msg)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

// Unwrap returns the underlying cause error for error wrapping compatibility.
func (e *NodeError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target error (for errors.Is compatibility).
func (e *NodeError) Is(target error) bool {
	if nodeErr, ok := target.(*NodeError); ok {
		return e.Code == nodeErr.Code
	}
	return false
}

// String returns a detailed string representation for logging.
func (e *NodeError) String() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("Code=%s", e.Code))
	parts = append(parts, fmt.Sprintf("Category=%s", e.Category))
	parts = append(parts, fmt.Sprintf("Message=%q", e.Message))
	parts = append(parts, fmt.Sprintf("Status=%d", e.Status))

	if e.Component != "" {
		parts = append(parts, fmt.Sprintf("Component=%s", e.Component))
	}
	if e.Operation != "" {
		parts = append(parts, fmt.Sprintf("Operation=%s", e.Operation))
	}
	if len(e.Details) > 0 {
		details, _ := json.Marshal(e.Details)
		parts = append(parts, fmt.Sprintf("Details=%s", details))
	}
	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("Cause=%q", e.Cause.Error()))
	}

	return fmt.Sprintf("NodeError{%s}", strings.Join(parts, ", "))
}

// NewError creates a new error with default category and status for the code.
func NewError(code ErrorCode, message string) *NodeError {
	return &NodeError{
		Code:      code,
		Category:  GetCategory(code),
		Message:   message,
		Timestamp: time.Now(),
		Details:   make(map[string]interface{}),
		Context:   make(map[string]string),
		Status:    GetDefaultStatus(code),
	}
}

// Newf is NewError with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *NodeError {
	return NewError(code, fmt.Sprintf(format, args...))
}

// GetCategory determines the category based on the error code.
func GetCategory(code ErrorCode) ErrorCategory {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "INVALID_CONFIG") || strings.HasPrefix(codeStr, "CONFIG_"):
		return CategoryConfiguration
	case strings.HasPrefix(codeStr, "OUT_OF_") || strings.HasPrefix(codeStr, "RESOURCE_") ||
		strings.HasPrefix(codeStr, "LIMIT_"):
		return CategoryResource
	case strings.HasPrefix(codeStr, "IO_"):
		return CategoryIO
	case strings.HasPrefix(codeStr, "FORMAT_"):
		return CategoryFormat
	case strings.HasPrefix(codeStr, "ENGINE_"):
		return CategoryEngine
	case strings.HasPrefix(codeStr, "COLLABORATOR_"):
		return CategoryCollaborator
	case strings.HasPrefix(codeStr, "ALREADY_") || strings.HasPrefix(codeStr, "NOT_STARTED") ||
		strings.HasPrefix(codeStr, "STATE_"):
		return CategoryState
	default:
		return CategoryInternal
	}
}

// GetDefaultStatus returns the default negative status for an error code.
func GetDefaultStatus(code ErrorCode) int {
	statusMap := map[ErrorCode]syscall.Errno{
		ErrCodeNotFound:        syscall.ENOENT,
		ErrCodeOutOfMemory:     syscall.ENOMEM,
		ErrCodeLimitExceeded:   syscall.ENOMEM,
		ErrCodeAlreadyStarted:  syscall.EALREADY,
		ErrCodeConflict:        syscall.EEXIST,
		ErrCodeSyncUnavailable: syscall.ENOTSUP,
		ErrCodeCircuitOpen:     syscall.EAGAIN,
	}
	if errno, ok := statusMap[code]; ok {
		return -int(errno)
	}

	switch GetCategory(code) {
	case CategoryConfiguration, CategoryFormat:
		return -int(syscall.EINVAL)
	case CategoryResource:
		return -int(syscall.ENOMEM)
	default:
		return -int(syscall.EIO)
	}
}

// WithContext adds contextual information to an error
func (e *NodeError) WithContext(key, value string) *NodeError {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

// WithDetail adds detailed information to an error
func (e *NodeError) WithDetail(key string, value interface{}) *NodeError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithComponent sets the component for an error
func (e *NodeError) WithComponent(component string) *NodeError {
	e.Component = component
	return e
}

// WithOperation sets the operation for an error
func (e *NodeError) WithOperation(operation string) *NodeError {
	e.Operation = operation
	return e
}

// WithCause sets the underlying cause. A cause carrying an errno refines the status.
func (e *NodeError) WithCause(cause error) *NodeError {
	e.Cause = cause
	var errno syscall.Errno
	if e.Category == CategoryIO && stderrors.As(cause, &errno) && errno != 0 {
		e.Status = -int(errno)
	}
	return e
}

// WithStatus overrides the status code, used for opaque engine codes.
func (e *NodeError) WithStatus(status int) *NodeError {
	if status > 0 {
		status = -status
	}
	if status != 0 {
		e.Status = status
	}
	return e
}

// Config builds a configuration error.
func Config(code ErrorCode, format string, args ...interface{}) *NodeError {
	return Newf(code, format, args...)
}

// IO builds an I/O error wrapping cause.
func IO(code ErrorCode, cause error, format string, args ...interface{}) *NodeError {
	return Newf(code, format, args...).WithCause(cause)
}

// Format builds a format error.
func Format(code ErrorCode, format string, args ...interface{}) *NodeError {
	return Newf(code, format, args...)
}

// Resource builds a resource error.
func Resource(format string, args ...interface{}) *NodeError {
	return Newf(ErrCodeResourceExhausted, format, args...)
}

// Engine builds an engine error carrying the engine's own status code.
func Engine(status int, cause error, format string, args ...interface{}) *NodeError {
	return Newf(ErrCodeEngineInit, format, args...).WithCause(cause).WithStatus(status)
}

// Collaborator builds a collaborator error wrapping cause.
func Collaborator(code ErrorCode, cause error, format string, args ...interface{}) *NodeError {
	return Newf(code, format, args...).WithCause(cause)
}

// HasCode reports whether any error in err's chain is a NodeError with code.
func HasCode(err error, code ErrorCode) bool {
	var nodeErr *NodeError
	for err != nil {
		if stderrors.As(err, &nodeErr) {
			if nodeErr.Code == code {
				return true
			}
			err = nodeErr.Cause
			continue
		}
		return false
	}
	return false
}

// CategoryOf returns the category of the first NodeError in err's chain.
func CategoryOf(err error) ErrorCategory {
	var nodeErr *NodeError
	if stderrors.As(err, &nodeErr) {
		return nodeErr.Category
	}
	return CategoryInternal
}

// StatusOf maps any error to a negative status code. nil maps to 0.
func StatusOf(err error) int {
	if err == nil {
		return 0
	}
	var nodeErr *NodeError
	if stderrors.As(err, &nodeErr) {
		return nodeErr.Status
	}
	var errno syscall.Errno
	if stderrors.As(err, &errno) && errno != 0 {
		return -int(errno)
	}
	return -int(syscall.EIO)
}
