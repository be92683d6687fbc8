package context

import (
	"sync"

	"github.com/BerkeliumLabs/berkelium/internal/llm"
)

// DefaultContextWindow is used when the model's window is unknown.
const DefaultContextWindow = 200000

// Budget sets the context window and the usage fractions that trigger a
// warning or a compression suggestion.
type Budget struct {
	ContextWindow    int     `yaml:"context_window" toml:"context_window"`
	WarnThreshold    float64 `yaml:"warn_threshold" toml:"warn_threshold"`
	CompactThreshold float64 `yaml:"compact_threshold" toml:"compact_threshold"`
}

// DefaultBudget returns the default budget.
func DefaultBudget() Budget {
	return Budget{
		ContextWindow:    DefaultContextWindow,
		WarnThreshold:    0.80,
		CompactThreshold: 0.95,
	}
}

// Stats describes how much of the window a thread uses.
type Stats struct {
	UsedTokens      int
	ContextWindow   int
	UsagePercent    float64
	MessageCount    int
	NeedsCompaction bool
	NeedsWarning    bool
}

// Estimator estimates thread size, corrected by the token counts the model reports.
type Estimator struct {
	base       llm.TokenEstimator
	calibrator *Calibrator
	budget     Budget
}

// NewEstimator creates an estimator for budget. Zero fields take defaults.
func NewEstimator(budget Budget) *Estimator {
	def := DefaultBudget()
	if budget.ContextWindow <= 0 {
		budget.ContextWindow = def.ContextWindow
	}
	if budget.WarnThreshold <= 0 {
		budget.WarnThreshold = def.WarnThreshold
	}
	if budget.CompactThreshold <= 0 {
		budget.CompactThreshold = def.CompactThreshold
	}
	return &Estimator{calibrator: NewCalibrator(), budget: budget}
}

// Observe records the model-reported input token count for messages.
func (e *Estimator) Observe(messages []llm.Message, actualInputTokens int) {
	e.calibrator.Record(e.base.EstimateMessages(messages), actualInputTokens)
}

// Estimate returns the calibrated token estimate for messages.
func (e *Estimator) Estimate(messages []llm.Message) int {
	return e.calibrator.Adjust(e.base.EstimateMessages(messages))
}

// Stats computes window usage for messages.
func (e *Estimator) Stats(messages []llm.Message) Stats {
	used := e.Estimate(messages)
	pct := float64(used) / float64(e.budget.ContextWindow)
	return Stats{
		UsedTokens:      used,
		ContextWindow:   e.budget.ContextWindow,
		UsagePercent:    pct,
		MessageCount:    len(messages),
		NeedsCompaction: pct >= e.budget.CompactThreshold,
		NeedsWarning:    pct >= e.budget.WarnThreshold && pct < e.budget.CompactThreshold,
	}
}

// calibrationWeight is the weight of each new sample in the moving ratio.
const calibrationWeight = 0.2

// Calibrator learns the ratio between estimated and actual token counts
// as an exponentially weighted moving average.
type Calibrator struct {
	mu      sync.Mutex
	ratio   float64
	samples int
}

// NewCalibrator returns a calibrator with a neutral ratio.
func NewCalibrator() *Calibrator {
	return &Calibrator{ratio: 1.0}
}

// Record adds one estimated/actual sample. Non-positive values are ignored.
func (c *Calibrator) Record(estimated, actual int) {
	if estimated <= 0 || actual <= 0 {
		return
	}
	sample := float64(estimated) / float64(actual)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.samples == 0 {
		c.ratio = sample
	} else {
		c.ratio = (1-calibrationWeight)*c.ratio + calibrationWeight*sample
	}
	c.samples++
}

// Adjust corrects an estimate using the learned ratio.
func (c *Calibrator) Adjust(estimated int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.samples == 0 || c.ratio <= 0 {
		return estimated
	}
	return int(float64(estimated) / c.ratio)
}

// Ratio returns the learned estimated/actual ratio.
func (c *Calibrator) Ratio() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ratio
}

// Samples returns the number of recorded samples.
func (c *Calibrator) Samples() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.samples
}
