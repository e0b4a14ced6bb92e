// Package errors provides standardized error handling for the site ranking pipeline
// and its BPMN workflow integration.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Pipeline errors
const (
	ErrCodeMalformedInput       ErrorCode = "MALFORMED_INPUT"
	ErrCodeModelInferenceFailed ErrorCode = "MODEL_INFERENCE_FAILED"
	ErrCodeConfigurationInvalid ErrorCode = "CONFIGURATION_INVALID"

	ErrCodeSourceLoadFailed ErrorCode = "SOURCE_LOAD_FAILED"
	ErrCodeSinkWriteFailed  ErrorCode = "SINK_WRITE_FAILED"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// Transport errors raised by infrastructure clients
const (
	ErrCodeExternalService  ErrorCode = "EXTERNAL_SERVICE_ERROR"
	ErrCodeTimeout          ErrorCode = "TIMEOUT_ERROR"
	ErrCodeResourceNotFound ErrorCode = "RESOURCE_NOT_FOUND"
	ErrCodeAuthentication   ErrorCode = "AUTHENTICATION_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause, if any.
func (e *StandardError) Unwrap() error {
	return e.cause
}

// SiteName returns the site the error refers to, or "".
func (e *StandardError) SiteName() string {
	return e.metaString("siteName")
}

// ResourceName returns the resource the error refers to, or "".
func (e *StandardError) ResourceName() string {
	return e.metaString("resourceName")
}

// BatchSize returns how many rows a failed batched model call covered, or 0
// when the error refers to a single site or resource.
func (e *StandardError) BatchSize() int {
	if e.Metadata == nil {
		return 0
	}
	if batch, _ := e.Metadata["batch"].(bool); !batch {
		return 0
	}
	n, _ := e.Metadata["batchSize"].(int)
	return n
}

func (e *StandardError) metaString(key string) string {
	if e.Metadata == nil {
		return ""
	}
	if v, ok := e.Metadata[key].(string); ok {
		return v
	}
	return ""
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}

	for k, v := range e.ErrorVariables {
		vars[k] = v
	}

	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

// NewMalformedInputError reports a site or resource that is missing a required field.
// resourceName may be empty when the problem is at site level.
func NewMalformedInputError(siteName, resourceName, details string) *StandardError {
	meta := map[string]interface{}{"siteName": siteName}
	if resourceName != "" {
		meta["resourceName"] = resourceName
	}
	return &StandardError{
		Code:      ErrCodeMalformedInput,
		Message:   "Malformed site input",
		Details:   details,
		Retryable: false,
		Metadata:  meta,
		Timestamp: time.Now().UTC(),
	}
}

// NewDocumentInvalidError reports schema violations found before decoding a sites document.
func NewDocumentInvalidError(violations []string) *StandardError {
	return &StandardError{
		Code:      ErrCodeMalformedInput,
		Message:   "Sites document failed schema validation",
		Details:   strings.Join(violations, "; "),
		Retryable: false,
		Metadata:  map[string]interface{}{"violations": violations},
		Timestamp: time.Now().UTC(),
	}
}

// NewModelInferenceError wraps a failing ranking or recommendation model call.
// Models are pure functions of their input, so this is never retryable.
func NewModelInferenceError(modelName, siteName, resourceName string, err error) *StandardError {
	meta := map[string]interface{}{
		"model":    modelName,
		"siteName": siteName,
	}
	if resourceName != "" {
		meta["resourceName"] = resourceName
	}
	return &StandardError{
		Code:      ErrCodeModelInferenceFailed,
		Message:   fmt.Sprintf("Model '%s' inference failed", modelName),
		Details:   err.Error(),
		Retryable: false,
		Metadata:  meta,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewBatchInferenceError wraps a model call that failed for a whole batch.
// The first site and resource only locate the batch; batchSize says how many
// rows shared the call, so callers must not blame the first row.
func NewBatchInferenceError(modelName, siteName, resourceName string, batchSize int, err error) *StandardError {
	stdErr := NewModelInferenceError(modelName, siteName, resourceName, err)
	stdErr.Metadata["batch"] = true
	stdErr.Metadata["batchSize"] = batchSize
	return stdErr
}

// NewConfigurationError reports invalid scoring tables, schemas or model artifacts.
func NewConfigurationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeConfigurationInvalid,
		Message:   "Invalid configuration",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewUnmappedStatusError is raised under the strict unmapped-status policy.
func NewUnmappedStatusError(siteName, resourceName, dimension, status string) *StandardError {
	return &StandardError{
		Code:      ErrCodeConfigurationInvalid,
		Message:   "Status has no configured score",
		Details:   fmt.Sprintf("dimension: %s, status: %q", dimension, status),
		Retryable: false,
		Metadata: map[string]interface{}{
			"siteName":     siteName,
			"resourceName": resourceName,
			"dimension":    dimension,
			"status":       status,
		},
		Timestamp: time.Now().UTC(),
	}
}

// NewSourceLoadFailedError creates a retryable error for an unreadable site source.
func NewSourceLoadFailedError(source string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSourceLoadFailed,
		Message:   "Failed to load sites",
		Details:   fmt.Sprintf("source: %s, error: %s", source, err.Error()),
		Retryable: true,
		Metadata:  map[string]interface{}{"source": source},
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewSinkWriteFailedError creates a retryable error for a failed result write.
func NewSinkWriteFailedError(sink string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSinkWriteFailed,
		Message:   fmt.Sprintf("Result sink '%s' write failed", sink),
		Details:   err.Error(),
		Retryable: true,
		Metadata:  map[string]interface{}{"sink": sink},
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// Generic constructors

func NewExternalServiceError(service string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeExternalService,
		Message:   fmt.Sprintf("External service '%s' error", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewTimeoutError(service string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTimeout,
		Message:   fmt.Sprintf("Service '%s' timeout", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewResourceNotFoundError(service, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeResourceNotFound,
		Message:   fmt.Sprintf("Resource not found in %s", service),
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewAuthenticationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAuthentication,
		Message:   "Authentication failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to BPMN error codes.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeMalformedInput:       "MALFORMED_INPUT",
	ErrCodeModelInferenceFailed: "MODEL_INFERENCE_FAILED",
	ErrCodeConfigurationInvalid: "CONFIGURATION_INVALID",
	ErrCodeSourceLoadFailed:     "SOURCE_LOAD_FAILED",
	ErrCodeSinkWriteFailed:      "SINK_WRITE_FAILED",
}

// GetRetryCount returns the recommended retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeSinkWriteFailed,
		ErrCodeSourceLoadFailed,
		ErrCodeExternalService:
		return 3

	case ErrCodeTimeout:
		return 2

	default:
		return 0 // input, model and configuration errors cannot change on retry
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	if site := stdErr.SiteName(); site != "" {
		vars["siteName"] = site
	}
	if resource := stdErr.ResourceName(); resource != "" {
		vars["resourceName"] = resource
	}
	if n := stdErr.BatchSize(); n > 0 {
		vars["batch"] = true
		vars["batchSize"] = n
	}

	return &BPMNError{
		Code:           bpmnCode,
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// AsStandardError finds the first StandardError in err's chain.
func AsStandardError(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// CodeOf returns the code of the first StandardError in err's chain,
// or ErrCodeInternal for untyped errors.
func CodeOf(err error) ErrorCode {
	if stdErr, ok := AsStandardError(err); ok {
		return stdErr.Code
	}
	return ErrCodeInternal
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "INPUT"):
		return "VALIDATION"
	case strings.Contains(codeStr, "MODEL"):
		return "MODEL"
	case strings.Contains(codeStr, "CONFIGURATION"):
		return "CONFIGURATION"
	case strings.Contains(codeStr, "SOURCE") || strings.Contains(codeStr, "SINK"):
		return "STORAGE"
	case strings.Contains(codeStr, "TIMEOUT") || strings.Contains(codeStr, "EXTERNAL"):
		return "EXTERNAL"
	default:
		return "OTHER"
	}
}
