// Package contextwindow fits an arbitrarily long conversation into a bounded
// token budget. The budget is asymmetric: a soft preferred target the
// trimmer aims for, and a hard maximum the backend cannot exceed. Model
// latency and cost scale with context size, so a smaller context wins even
// when more room is technically available.
package contextwindow

import (
	"errors"

	"go.uber.org/zap"

	"github.com/papercomputeco/patchbay/pkg/openai"
	"github.com/papercomputeco/patchbay/pkg/tokens"
)

// Budget holds the token budget parameters.
type Budget struct {
	// Preferred is the soft target the trimmer accumulates toward.
	Preferred int

	// Maximum is the hard backend ceiling.
	Maximum int
}

// Validate enforces preferred <= maximum and both positive.
func (b Budget) Validate() error {
	if b.Preferred <= 0 || b.Maximum <= 0 {
		return errors.New("budget values must be positive")
	}
	if b.Preferred > b.Maximum {
		return errors.New("preferred budget must not exceed maximum")
	}
	return nil
}

// Trimmed is the budgeted conversation. Messages is a copy: a chronological
// suffix of the input plus the leading system message if one existed. An
// EstimatedTokens value above the preferred budget flags a degraded-but-valid
// result, not an error.
type Trimmed struct {
	Messages        []openai.Message
	EstimatedTokens int
}

// Manager trims message histories to a budget. Safe for concurrent use; it
// holds no per-request state.
type Manager struct {
	estimator tokens.Estimator
	budget    Budget
	logger    *zap.Logger
}

// NewManager creates a Manager with an injected estimator.
func NewManager(estimator tokens.Estimator, budget Budget, logger *zap.Logger) (*Manager, error) {
	if estimator == nil {
		return nil, errors.New("estimator is required")
	}
	if err := budget.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{estimator: estimator, budget: budget, logger: logger}, nil
}

// Budget returns the configured budget.
func (m *Manager) Budget() Budget {
	return m.budget
}

// Trim returns a conversation guaranteed to be non-empty, ordered
// oldest-to-newest, and within the preferred budget except for the mandated
// single-message case. Retention is strictly most-recent-first; older turns
// are dropped silently. The input is never mutated.
func (m *Manager) Trim(messages []openai.Message) Trimmed {
	if len(messages) == 0 {
		return Trimmed{Messages: []openai.Message{}}
	}

	total := tokens.Sum(m.estimator, messages)
	if total <= m.budget.Preferred {
		out := make([]openai.Message, len(messages))
		copy(out, messages)
		return Trimmed{Messages: out, EstimatedTokens: total}
	}

	var system *openai.Message
	rest := messages
	if messages[0].Role == openai.RoleSystem {
		system = &messages[0]
		rest = messages[1:]
	}

	running := 0
	if system != nil {
		running = m.estimator.Estimate(*system)
	}

	if len(rest) == 0 {
		// Nothing but a system message; keep it even over budget.
		trimmed := Trimmed{Messages: []openai.Message{*system}, EstimatedTokens: running}
		m.warnIfDegraded(trimmed.EstimatedTokens)
		return trimmed
	}

	// Walk backward from the most recent message, accumulating while the
	// running total stays within the preferred budget.
	keepFrom := len(rest)
	for i := len(rest) - 1; i >= 0; i-- {
		cost := m.estimator.Estimate(rest[i])
		if running+cost > m.budget.Preferred {
			break
		}
		running += cost
		keepFrom = i
	}

	if keepFrom == len(rest) {
		// Even the most recent message alone blows the budget. Keep it
		// anyway; an empty conversation is never returned.
		keepFrom = len(rest) - 1
		running += m.estimator.Estimate(rest[keepFrom])
	}

	kept := rest[keepFrom:]
	out := make([]openai.Message, 0, len(kept)+1)
	if system != nil {
		out = append(out, *system)
	}
	out = append(out, kept...)

	if dropped := len(rest) - len(kept); dropped > 0 {
		m.logger.Debug("trimmed conversation history",
			zap.Int("dropped_messages", dropped),
			zap.Int("kept_messages", len(kept)),
			zap.Int("estimated_tokens", running),
		)
	}
	m.warnIfDegraded(running)

	return Trimmed{Messages: out, EstimatedTokens: running}
}

func (m *Manager) warnIfDegraded(estimated int) {
	if estimated > m.budget.Maximum {
		m.logger.Warn("context exceeds maximum size even after trimming",
			zap.Int("estimated_tokens", estimated),
			zap.Int("maximum", m.budget.Maximum),
		)
		return
	}
	if estimated > m.budget.Preferred {
		m.logger.Warn("context exceeds preferred size",
			zap.Int("estimated_tokens", estimated),
			zap.Int("preferred", m.budget.Preferred),
		)
	}
}
