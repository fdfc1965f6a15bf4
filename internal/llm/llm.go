package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Request 是一次生成请求，提示词已完整渲染。
type Request struct {
	Prompt          string
	Temperature     float64
	MaxOutputTokens int
}

// Response 是模型返回的文本。
type Response struct {
	Text     string
	Provider string
}

// Client 定义了调用大模型的统一接口。
type Client interface {
	Name() string
	Generate(ctx context.Context, req Request) (*Response, error)
}

// StatusError 表示模型服务返回了非成功状态码。
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s 返回错误状态 %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s 返回错误状态 %d: %s", e.Provider, e.StatusCode, e.Body)
}

// IsUnavailable 判断错误是否为服务暂不可用 (503)，只有这类错误会重试。
func IsUnavailable(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusServiceUnavailable
}
