// Package context builds the system context sent at the start of every thread
// and estimates how much of the model's context window a thread uses.
package context

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// BaseInstruction opens every system context.
const BaseInstruction = "You are Berkelium, a powerful AI assistant designed to help users with various tasks."

// Manager assembles the system context from the base instruction and the
// project instructions file. The result is cached until Invalidate is called.
type Manager struct {
	mu               sync.RWMutex
	instructionsPath string
	cached           string
	valid            bool
	logger           *zap.Logger
}

// NewManager creates a manager reading project instructions from instructionsPath.
// An empty path disables project instructions.
func NewManager(instructionsPath string, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{instructionsPath: instructionsPath, logger: logger}
}

// InstructionsPath returns the watched instructions file.
func (m *Manager) InstructionsPath() string {
	return m.instructionsPath
}

// Context returns the current system context.
func (m *Manager) Context() string {
	m.mu.RLock()
	if m.valid {
		s := m.cached
		m.mu.RUnlock()
		return s
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.valid {
		m.cached = m.build()
		m.valid = true
	}
	return m.cached
}

// Invalidate forces the next Context call to re-read the instructions file.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	m.valid = false
	m.mu.Unlock()
}

func (m *Manager) build() string {
	instructions := m.readInstructions()
	if instructions == "" {
		return BaseInstruction
	}
	return BaseInstruction + "\n" + instructions
}

func (m *Manager) readInstructions() string {
	if m.instructionsPath == "" {
		return ""
	}
	data, err := os.ReadFile(m.instructionsPath)
	if err != nil {
		if !os.IsNotExist(err) {
			m.logger.Warn("failed to read instructions file",
				zap.String("path", m.instructionsPath), zap.Error(err))
		}
		return ""
	}
	m.logger.Debug("instructions loaded",
		zap.String("path", m.instructionsPath), zap.Int("bytes", len(data)))
	return strings.TrimSpace(string(data))
}
