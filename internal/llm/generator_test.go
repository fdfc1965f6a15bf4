package llm

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xerrors "EnvioScout/internal/errors"
)

type scriptedClient struct {
	mu    sync.Mutex
	errs  []error
	calls int
	last  Request
}

func (c *scriptedClient) Name() string { return "scripted" }

func (c *scriptedClient) Generate(_ context.Context, req Request) (*Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = req
	idx := c.calls
	c.calls++
	if idx < len(c.errs) && c.errs[idx] != nil {
		return nil, c.errs[idx]
	}
	return &Response{Text: "generated answer", Provider: "scripted"}, nil
}

// fakeTimer 记录每次等待时长并立即触发。
type fakeTimer struct {
	waits []time.Duration
	c     chan time.Time
}

func newFakeTimer() *fakeTimer { return &fakeTimer{c: make(chan time.Time, 1)} }

func (t *fakeTimer) Start(d time.Duration) {
	t.waits = append(t.waits, d)
	t.c <- time.Now()
}
func (t *fakeTimer) Stop()               {}
func (t *fakeTimer) C() <-chan time.Time { return t.c }

func unavailable() error {
	return &StatusError{Provider: "scripted", StatusCode: http.StatusServiceUnavailable, Body: "overloaded"}
}

func newTestGenerator(client Client, timer *fakeTimer, opts ...Option) *Generator {
	opts = append([]Option{WithTimer(func() backoff.Timer { return timer })}, opts...)
	return NewGenerator(client, opts...)
}

func TestGenerateRetriesUnavailableWithGrowingBackoff(t *testing.T) {
	client := &scriptedClient{errs: []error{unavailable(), unavailable()}}
	timer := newFakeTimer()
	g := newTestGenerator(client, timer)

	text, err := g.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "generated answer", text)
	assert.Equal(t, 3, client.calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, timer.waits)
	assert.InDelta(t, 0.7, client.last.Temperature, 1e-9)
	assert.Equal(t, 2048, client.last.MaxOutputTokens)
}

func TestGenerateExhaustsRetries(t *testing.T) {
	client := &scriptedClient{errs: []error{unavailable(), unavailable(), unavailable(), unavailable()}}
	timer := newFakeTimer()
	g := newTestGenerator(client, timer)

	_, err := g.Generate(context.Background(), "prompt")
	require.Error(t, err)
	assert.Equal(t, 3, client.calls)
	assert.Equal(t, xerrors.CodeRetriesExhausted, xerrors.CodeOf(err))
	assert.True(t, IsUnavailable(err))
	assert.Equal(t, "The AI service is currently overloaded. Please try again in a moment.", xerrors.PublicMessage(err))
}

func TestGenerateDoesNotRetryOtherFailures(t *testing.T) {
	client := &scriptedClient{errs: []error{&StatusError{Provider: "scripted", StatusCode: http.StatusBadRequest}}}
	timer := newFakeTimer()
	g := newTestGenerator(client, timer)

	_, err := g.Generate(context.Background(), "prompt")
	require.Error(t, err)
	assert.Equal(t, 1, client.calls)
	assert.Empty(t, timer.waits)
	assert.Equal(t, xerrors.CodeGenerationFailure, xerrors.CodeOf(err))

	plain := &scriptedClient{errs: []error{errors.New("connection reset")}}
	_, err = newTestGenerator(plain, newFakeTimer()).Generate(context.Background(), "prompt")
	require.Error(t, err)
	assert.Equal(t, 1, plain.calls)
}

func TestGenerateCustomPolicy(t *testing.T) {
	client := &scriptedClient{errs: []error{unavailable(), unavailable(), unavailable(), unavailable()}}
	timer := newFakeTimer()
	g := newTestGenerator(client, timer, WithMaxRetries(5), WithBaseDelay(100*time.Millisecond), WithSampling(0.2, 512))

	_, err := g.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, 5, client.calls)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond, 800 * time.Millisecond}, timer.waits)
	assert.Equal(t, 512, client.last.MaxOutputTokens)
}

func TestGenerateSingleAttempt(t *testing.T) {
	client := &scriptedClient{errs: []error{unavailable()}}
	g := newTestGenerator(client, newFakeTimer(), WithMaxRetries(1))

	_, err := g.Generate(context.Background(), "prompt")
	require.Error(t, err)
	assert.Equal(t, 1, client.calls)
	assert.Equal(t, xerrors.CodeRetriesExhausted, xerrors.CodeOf(err))
}

func TestGenerateRejectsEmptyPrompt(t *testing.T) {
	client := &scriptedClient{}
	_, err := NewGenerator(client).Generate(context.Background(), "  ")
	require.Error(t, err)
	assert.Equal(t, 0, client.calls)
	assert.Equal(t, xerrors.CodeInvalidArgument, xerrors.CodeOf(err))
}

func TestGenerateWithRetriesOverridesAttempts(t *testing.T) {
	client := &scriptedClient{errs: []error{unavailable(), unavailable(), unavailable()}}
	timer := newFakeTimer()
	g := newTestGenerator(client, timer)

	_, err := g.GenerateWithRetries(context.Background(), "prompt", 2)
	require.Error(t, err)
	assert.Equal(t, 2, client.calls)
	assert.Equal(t, []time.Duration{time.Second}, timer.waits)
}
