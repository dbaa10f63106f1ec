package application

import (
	"sync"
	"time"
)

// ProcessConfig holds process-wide LLM call defaults, per spec.md §6.
// Individual operators (e.g. operator.LLM) may override these per-call;
// ProcessConfig supplies what they don't. Grounded on the teacher's
// config.go UnitConfig/BudgetConfig/RetryConfig/TimeoutConfig fields,
// collapsed into one flat struct as spec.md §6 calls for.
type ProcessConfig struct {
	Temperature   float64
	MaxTokens     int
	Timeout       time.Duration
	TopP          float64
	TopK          int
	StopSequences []string
}

var (
	activeConfigMu sync.RWMutex
	activeConfig   = ProcessConfig{Temperature: 0.7, Timeout: 30 * time.Second}
)

// Active returns a copy of the current process-wide configuration.
func Active() ProcessConfig {
	activeConfigMu.RLock()
	defer activeConfigMu.RUnlock()
	return activeConfig
}

// WithConfig installs cfg as the active ProcessConfig, runs fn, and
// restores the prior config on every exit path -- normal return, error,
// or panic. This replaces the source system's macro-based with_config
// block (spec.md §9 REDESIGN FLAG) with an explicit, defer-protected
// scoped override; nesting is supported since the prior value is always
// captured before the override is installed.
func WithConfig(cfg ProcessConfig, fn func() error) (err error) {
	activeConfigMu.Lock()
	prior := activeConfig
	activeConfig = cfg
	activeConfigMu.Unlock()

	defer func() {
		activeConfigMu.Lock()
		activeConfig = prior
		activeConfigMu.Unlock()
	}()

	return fn()
}
