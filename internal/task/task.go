// Package task runs chat messages asynchronously: jobs are stored, published
// to a queue (memory, Redis or RabbitMQ) and processed by a worker pool that
// calls the orchestrator, retrying retryable failures.
package task

import (
	"net/http"
	"time"

	"EnvioScout/internal/agent"
	xerrors "EnvioScout/internal/errors"
)

// Status 表示任务在生命周期中的状态。
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Job 是一条排队处理的对话消息。
type Job struct {
	ID         string            `json:"id"`
	Message    string            `json:"message"`
	Status     Status            `json:"status"`
	Attempts   int               `json:"attempts"`
	MaxRetries int               `json:"maxRetries"`
	LastError  string            `json:"lastError,omitempty"`
	ErrorCode  string            `json:"errorCode,omitempty"`
	Result     *agent.ChatResult `json:"result,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

// Done 表示任务已进入终态。等待重试的任务保持 pending。
func (j *Job) Done() bool {
	return j.Status == StatusSucceeded || j.Status == StatusFailed
}

const (
	CodeJobNotFound   xerrors.Code = "JOB_NOT_FOUND"
	CodeJobConflict   xerrors.Code = "JOB_CONFLICT"
	CodeJobCompleted  xerrors.Code = "JOB_COMPLETED"
	CodeJobExhausted  xerrors.Code = "JOB_RETRIES_EXHAUSTED"
	CodeJobValidation xerrors.Code = "JOB_VALIDATION_FAILED"
	CodeJobPublish    xerrors.Code = "JOB_PUBLISH_FAILED"
)

func init() {
	xerrors.Register(CodeJobNotFound, xerrors.Attributes{
		Message:    "job not found",
		Public:     "The requested job was not found.",
		Severity:   xerrors.SeverityInfo,
		HTTPStatus: http.StatusNotFound,
	})
	xerrors.Register(CodeJobConflict, xerrors.Attributes{
		Message:    "job conflict",
		Public:     "The job is already being processed.",
		Severity:   xerrors.SeverityWarning,
		HTTPStatus: http.StatusConflict,
	})
	xerrors.Register(CodeJobCompleted, xerrors.Attributes{
		Message:    "job already completed",
		Public:     "The job has already completed.",
		Severity:   xerrors.SeverityInfo,
		HTTPStatus: http.StatusConflict,
	})
	xerrors.Register(CodeJobExhausted, xerrors.Attributes{
		Message:  "job retries exhausted",
		Public:   "The job failed after several attempts.",
		Severity: xerrors.SeverityCritical,
	})
	xerrors.Register(CodeJobValidation, xerrors.Attributes{
		Message:    "job validation failed",
		Public:     "Message is required and must be a string",
		Severity:   xerrors.SeverityInfo,
		HTTPStatus: http.StatusBadRequest,
	})
	xerrors.Register(CodeJobPublish, xerrors.Attributes{
		Message:    "failed to publish job",
		Public:     "The job could not be queued. Please try again.",
		Severity:   xerrors.SeverityCritical,
		Retryable:  true,
		HTTPStatus: http.StatusServiceUnavailable,
	})
}

var (
	// ErrJobNotFound 表示指定的任务不存在。
	ErrJobNotFound = xerrors.New(CodeJobNotFound, "job not found")
	// ErrJobConflict 表示任务在当前状态下无法进行所请求的操作。
	ErrJobConflict = xerrors.New(CodeJobConflict, "job conflict")
	// ErrJobCompleted 表示任务已经成功完成。
	ErrJobCompleted = xerrors.New(CodeJobCompleted, "job already completed")
	// ErrJobExhausted 表示任务的重试次数已经耗尽。
	ErrJobExhausted = xerrors.New(CodeJobExhausted, "job retries exhausted")
)

func cloneJob(j *Job) *Job {
	clone := *j
	clone.Result = cloneResult(j.Result)
	return &clone
}

func cloneResult(r *agent.ChatResult) *agent.ChatResult {
	if r == nil {
		return nil
	}
	result := *r
	result.ToolsUsed = append([]string(nil), r.ToolsUsed...)
	return &result
}
