package task

import (
	"context"

	"EnvioScout/internal/agent"
	xerrors "EnvioScout/internal/errors"
)

// Store 抽象了任务状态的保存。
type Store interface {
	Create(ctx context.Context, job *Job) error
	Get(ctx context.Context, id string) (*Job, error)
	Claim(ctx context.Context, id string) (*Job, error)
	MarkSucceeded(ctx context.Context, id string, result *agent.ChatResult) error
	MarkFailed(ctx context.Context, id string, code xerrors.Code, lastError string, terminal bool) error
	List(ctx context.Context, limit int) ([]*Job, error)
	Close() error
}
