package agent

import (
	"sync"

	"EnvioScout/internal/intent"
)

// Turn 是一轮已完成的对话。
type Turn struct {
	Message   string        `json:"message"`
	Response  string        `json:"response"`
	Intent    intent.Intent `json:"intent"`
	ToolsUsed []string      `json:"toolsUsed"`
	Timestamp string        `json:"timestamp"`
}

// History 是定长的对话环形缓冲，只保存在内存中。
type History struct {
	mu    sync.RWMutex
	turns []Turn
	next  int
	full  bool
}

// NewHistory 创建容量为 depth 的历史缓冲。
func NewHistory(depth int) *History {
	if depth <= 0 {
		depth = defaultMemoryDepth
	}
	return &History{turns: make([]Turn, depth)}
}

// Add 追加一轮对话，超出容量时覆盖最旧的记录。
func (h *History) Add(t Turn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns[h.next] = t
	h.next = (h.next + 1) % len(h.turns)
	if h.next == 0 {
		h.full = true
	}
}

// List 返回最近 limit 轮对话，旧的在前。
func (h *History) List(limit int) []Turn {
	h.mu.RLock()
	defer h.mu.RUnlock()

	size := h.next
	if h.full {
		size = len(h.turns)
	}
	if limit <= 0 || limit > size {
		limit = size
	}
	out := make([]Turn, 0, limit)
	start := h.next - limit
	if start < 0 {
		start += len(h.turns)
	}
	for i := 0; i < limit; i++ {
		out = append(out, h.turns[(start+i)%len(h.turns)])
	}
	return out
}

// Clear 清空全部记录。
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	clear(h.turns)
	h.next = 0
	h.full = false
}
