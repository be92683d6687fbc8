package logging

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ToolStats tracks invocations of a single tool.
type ToolStats struct {
	Calls     int           `json:"calls"`
	Failures  int           `json:"failures"`
	Denied    int           `json:"denied"`
	TotalTime time.Duration `json:"total_time"`
}

// TokenUsage accumulates model token counts.
type TokenUsage struct {
	Requests     int `json:"requests"`
	Errors       int `json:"errors"`
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Metrics collects runtime counters for a session.
type Metrics struct {
	mu sync.Mutex

	start        time.Time
	prompts      int
	turnLimits   int
	compressions int
	permTimeouts int
	tools        map[string]*ToolStats
	usage        TokenUsage
	threadUsage  map[string]*TokenUsage
}

// NewMetrics creates an empty collector.
func NewMetrics() *Metrics {
	return &Metrics{
		start:       time.Now(),
		tools:       make(map[string]*ToolStats),
		threadUsage: make(map[string]*TokenUsage),
	}
}

// RecordPrompt counts a routed prompt.
func (m *Metrics) RecordPrompt() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts++
}

// RecordTurnLimit counts a turn that hit the tool round cap.
func (m *Metrics) RecordTurnLimit() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turnLimits++
}

// RecordCompression counts a successful memory compression.
func (m *Metrics) RecordCompression() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.compressions++
}

// RecordPermissionTimeout counts an unanswered approval request.
func (m *Metrics) RecordPermissionTimeout() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.permTimeouts++
}

// RecordToolCall records one tool execution.
func (m *Metrics) RecordToolCall(name string, d time.Duration, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.tool(name)
	s.Calls++
	s.TotalTime += d
	if !ok {
		s.Failures++
	}
}

// RecordToolDenied records a call the user refused.
func (m *Metrics) RecordToolDenied(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tool(name).Denied++
}

// RecordModelCall adds one model invocation to the session and thread totals.
func (m *Metrics) RecordModelCall(threadID string, input, output, total int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if total == 0 {
		total = input + output
	}
	t := m.threadUsage[threadID]
	if t == nil {
		t = &TokenUsage{}
		m.threadUsage[threadID] = t
	}
	for _, u := range []*TokenUsage{&m.usage, t} {
		u.Requests++
		u.InputTokens += input
		u.OutputTokens += output
		u.TotalTokens += total
		if err != nil {
			u.Errors++
		}
	}
}

// ThreadUsage returns the token totals recorded for a thread.
func (m *Metrics) ThreadUsage(threadID string) TokenUsage {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t := m.threadUsage[threadID]; t != nil {
		return *t
	}
	return TokenUsage{}
}

func (m *Metrics) tool(name string) *ToolStats {
	s := m.tools[name]
	if s == nil {
		s = &ToolStats{}
		m.tools[name] = s
	}
	return s
}

// Summary is a point-in-time copy of the counters.
type Summary struct {
	Duration           time.Duration         `json:"duration"`
	Prompts            int                   `json:"prompts"`
	TurnLimits         int                   `json:"turn_limits"`
	Compressions       int                   `json:"compressions"`
	PermissionTimeouts int                   `json:"permission_timeouts"`
	Usage              TokenUsage            `json:"usage"`
	Tools              map[string]ToolStats  `json:"tools"`
	Threads            map[string]TokenUsage `json:"threads"`
}

// Summary snapshots the collector.
func (m *Metrics) Summary() Summary {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Summary{
		Duration:           time.Since(m.start),
		Prompts:            m.prompts,
		TurnLimits:         m.turnLimits,
		Compressions:       m.compressions,
		PermissionTimeouts: m.permTimeouts,
		Usage:              m.usage,
		Tools:              make(map[string]ToolStats, len(m.tools)),
		Threads:            make(map[string]TokenUsage, len(m.threadUsage)),
	}
	for name, t := range m.tools {
		s.Tools[name] = *t
	}
	for id, u := range m.threadUsage {
		s.Threads[id] = *u
	}
	return s
}

// TopTools returns tool names ordered by call count, most used first.
func (s Summary) TopTools() []string {
	names := make([]string, 0, len(s.Tools))
	for name := range s.Tools {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		ci, cj := s.Tools[names[i]].Calls, s.Tools[names[j]].Calls
		if ci != cj {
			return ci > cj
		}
		return names[i] < names[j]
	})
	return names
}

// Log writes the summary as a single structured entry.
func (s Summary) Log(logger *zap.Logger) {
	logger.Info(EventSessionEnd,
		zap.Duration("duration", s.Duration),
		zap.Int("prompts", s.Prompts),
		zap.Int("turn_limits", s.TurnLimits),
		zap.Int("compressions", s.Compressions),
		zap.Int("permission_timeouts", s.PermissionTimeouts),
		Tokens(s.Usage.InputTokens, s.Usage.OutputTokens, s.Usage.TotalTokens),
		zap.Strings("tools", s.TopTools()),
	)
}
