// Package llm wraps text generation providers behind a single request and
// response shape, and adds the bounded retry policy the agent relies on.
package llm
