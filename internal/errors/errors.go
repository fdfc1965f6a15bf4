package errors

import (
	"context"
	stdErrors "errors"
	"fmt"
	"net/http"
	"sync"
)

// Code 表示 EnvioScout 内部统一的错误码。
type Code string

// Severity 描述错误的严重程度，决定日志级别。
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Attributes 为错误码提供默认行为。
type Attributes struct {
	Message string
	// Public 是可以直接返回给终端用户的说明，不包含任何上游细节。
	Public    string
	Severity  Severity
	Retryable bool
	// HTTPStatus 是 API 层返回该错误时使用的状态码，0 表示 500。
	HTTPStatus int
}

const (
	CodeUnknown               Code = "UNKNOWN"
	CodeInvalidArgument       Code = "INVALID_ARGUMENT"
	CodeNotFound              Code = "NOT_FOUND"
	CodeConflict              Code = "CONFLICT"
	CodeAlreadyCompleted      Code = "ALREADY_COMPLETED"
	CodeUpstreamFailure       Code = "UPSTREAM_FAILURE"
	CodeNormalizationFailure  Code = "NORMALIZATION_FAILED"
	CodeGenerationFailure     Code = "GENERATION_FAILED"
	CodeRetriesExhausted      Code = "RETRIES_EXHAUSTED"
	CodeInitializationFailure Code = "INITIALIZATION_FAILURE"
	CodeQueueFailure          Code = "QUEUE_FAILURE"
	CodeTimeout               Code = "TIMEOUT"
)

const genericPublic = "Sorry, I encountered an error while processing your request. Please try again."

var (
	registryMu sync.RWMutex
	registry   = map[Code]Attributes{
		CodeUnknown: {
			Message: "unknown error", Public: genericPublic,
			Severity: SeverityCritical, HTTPStatus: http.StatusInternalServerError,
		},
		CodeInvalidArgument: {
			Message: "invalid argument", Public: "The request was not understood.",
			Severity: SeverityInfo, HTTPStatus: http.StatusBadRequest,
		},
		CodeNotFound: {
			Message: "resource not found", Public: "The requested resource was not found.",
			Severity: SeverityInfo, HTTPStatus: http.StatusNotFound,
		},
		CodeConflict: {
			Message: "resource conflict", Public: genericPublic,
			Severity: SeverityWarning, HTTPStatus: http.StatusConflict,
		},
		CodeAlreadyCompleted: {
			Message: "resource already completed", Public: genericPublic,
			Severity: SeverityInfo, HTTPStatus: http.StatusConflict,
		},
		CodeUpstreamFailure: {
			Message: "upstream data source failure", Public: "The blockchain data source is temporarily unavailable.",
			Severity: SeverityWarning, Retryable: true, HTTPStatus: http.StatusBadGateway,
		},
		CodeNormalizationFailure: {
			Message: "value normalization failed", Public: genericPublic,
			Severity: SeverityInfo, HTTPStatus: http.StatusInternalServerError,
		},
		CodeGenerationFailure: {
			Message: "response generation failed", Public: genericPublic,
			Severity: SeverityWarning, HTTPStatus: http.StatusInternalServerError,
		},
		CodeRetriesExhausted: {
			Message: "retries exhausted", Public: "The AI service is currently overloaded. Please try again in a moment.",
			Severity: SeverityWarning, Retryable: true, HTTPStatus: http.StatusServiceUnavailable,
		},
		CodeInitializationFailure: {
			Message: "service not initialized", Public: genericPublic,
			Severity: SeverityCritical, Retryable: true, HTTPStatus: http.StatusServiceUnavailable,
		},
		CodeQueueFailure: {
			Message: "queue failure", Public: genericPublic,
			Severity: SeverityCritical, Retryable: true, HTTPStatus: http.StatusServiceUnavailable,
		},
		CodeTimeout: {
			Message: "operation timed out", Public: "The request timed out. Please try again.",
			Severity: SeverityWarning, Retryable: true, HTTPStatus: http.StatusGatewayTimeout,
		},
	}
)

// Register 允许业务模块在初始化阶段注册新的错误码描述。
func Register(code Code, attr Attributes) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[code] = attr
}

// AttributesOf 返回错误码对应的属性。若未注册则返回 UNKNOWN 的属性。
func AttributesOf(code Code) Attributes {
	registryMu.RLock()
	defer registryMu.RUnlock()
	if attr, ok := registry[code]; ok {
		return attr
	}
	return registry[CodeUnknown]
}

// Error 是系统内统一的错误类型。
type Error struct {
	code      Code
	message   string
	cause     error
	metadata  map[string]string
	retryable *bool
	severity  *Severity
}

// Option 定义可选配置。
type Option func(*Error)

// WithMetadata 附加额外信息，例如链 ID 或上游状态码。
func WithMetadata(key, value string) Option {
	return func(e *Error) {
		if e.metadata == nil {
			e.metadata = make(map[string]string)
		}
		e.metadata[key] = value
	}
}

// WithRetryable 覆盖错误码默认的可重试属性。
func WithRetryable(retryable bool) Option {
	return func(e *Error) {
		e.retryable = &retryable
	}
}

// WithSeverity 覆盖默认严重程度。
func WithSeverity(sev Severity) Option {
	return func(e *Error) {
		e.severity = &sev
	}
}

// New 创建一个新的错误实例。
func New(code Code, message string, opts ...Option) *Error {
	if message == "" {
		message = AttributesOf(code).Message
	}
	e := &Error{code: code, message: message}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Wrap 在已有错误外包裹统一错误类型。
func Wrap(code Code, cause error, message string, opts ...Option) *Error {
	e := New(code, message, opts...)
	e.cause = cause
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is 允许通过 errors.Is 按错误码比较。
func (e *Error) Is(target error) bool {
	if e == nil || target == nil {
		return false
	}
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.code == t.code
}

// Code 返回错误码。
func (e *Error) Code() Code {
	if e == nil {
		return CodeUnknown
	}
	return e.code
}

// Message 返回内部错误信息。
func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

// Metadata 返回附加信息的副本。
func (e *Error) Metadata() map[string]string {
	if e == nil || len(e.metadata) == 0 {
		return nil
	}
	clone := make(map[string]string, len(e.metadata))
	for k, v := range e.metadata {
		clone[k] = v
	}
	return clone
}

// Retryable 判断是否可重试。
func (e *Error) Retryable() bool {
	if e == nil {
		return false
	}
	if e.retryable != nil {
		return *e.retryable
	}
	return AttributesOf(e.code).Retryable
}

// Severity 返回错误严重程度。
func (e *Error) Severity() Severity {
	if e == nil {
		return SeverityInfo
	}
	if e.severity != nil {
		return *e.severity
	}
	return AttributesOf(e.code).Severity
}

// From 尝试从 error 链中解析统一错误类型。
func From(err error) (*Error, bool) {
	if err == nil {
		return nil, false
	}
	var target *Error
	if stdErrors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// CodeOf 返回错误对应的错误码。未编码的上下文超时归为 TIMEOUT。
func CodeOf(err error) Code {
	if e, ok := From(err); ok {
		return e.Code()
	}
	if stdErrors.Is(err, context.DeadlineExceeded) {
		return CodeTimeout
	}
	return CodeUnknown
}

// RetryableError 判断任意 error 是否可重试。
func RetryableError(err error) bool {
	if e, ok := From(err); ok {
		return e.Retryable()
	}
	return CodeOf(err) == CodeTimeout
}

// SeverityOf 返回错误严重程度。
func SeverityOf(err error) Severity {
	if e, ok := From(err); ok {
		return e.Severity()
	}
	return AttributesOf(CodeUnknown).Severity
}

// PublicMessage 返回可以安全展示给终端用户的说明，不会泄露上游错误细节。
func PublicMessage(err error) string {
	return AttributesOf(CodeOf(err)).Public
}

// HTTPStatus 返回错误对应的 HTTP 状态码。
func HTTPStatus(err error) int {
	if status := AttributesOf(CodeOf(err)).HTTPStatus; status != 0 {
		return status
	}
	return http.StatusInternalServerError
}
