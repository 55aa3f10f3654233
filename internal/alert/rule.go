package alert

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidRule marks a malformed rule definition. Validation runs at
// definition time; an invalid rule never reaches the evaluator.
var ErrInvalidRule = errors.New("invalid alert rule")

// Metric identifies which live value a rule is checked against. The set
// is closed; evaluation dispatches through a lookup, not open-ended
// polymorphism.
type Metric string

const (
	MetricPrice      Metric = "price"
	MetricZScore     Metric = "z_score"
	MetricVolatility Metric = "volatility"
	MetricCustom     Metric = "custom"
)

// Operator is the comparison applied between the metric value and the
// rule threshold. Equality is exact on the float64 value; the rule
// author is responsible for picking a metric where that is meaningful.
type Operator string

const (
	OpGreater      Operator = ">"
	OpLess         Operator = "<"
	OpGreaterEqual Operator = ">="
	OpLessEqual    Operator = "<="
	OpEqual        Operator = "=="
)

var validMetrics = map[Metric]bool{
	MetricPrice:      true,
	MetricZScore:     true,
	MetricVolatility: true,
	MetricCustom:     true,
}

var validOperators = map[Operator]bool{
	OpGreater:      true,
	OpLess:         true,
	OpGreaterEqual: true,
	OpLessEqual:    true,
	OpEqual:        true,
}

// Rule is a user-defined threshold condition. Rules are owned by the
// definition store; the evaluator only reads enabled rules and reports
// trigger counts back.
type Rule struct {
	ID        int64
	Name      string
	Metric    Metric
	Operator  Operator
	Threshold float64
	Symbol    string
	Symbol2   string // optional second leg for pair-relative metrics
	Enabled   bool

	TriggeredCount int64
	LastTriggered  time.Time
}

// Validate rejects malformed rules at definition time.
func (r Rule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidRule)
	}
	if !validMetrics[r.Metric] {
		return fmt.Errorf("%w: unknown metric %q", ErrInvalidRule, r.Metric)
	}
	if !validOperators[r.Operator] {
		return fmt.Errorf("%w: unknown operator %q", ErrInvalidRule, r.Operator)
	}
	if r.Symbol == "" {
		return fmt.Errorf("%w: empty symbol", ErrInvalidRule)
	}
	return nil
}

// Compare applies op between value and threshold.
func Compare(value float64, op Operator, threshold float64) bool {
	switch op {
	case OpGreater:
		return value > threshold
	case OpLess:
		return value < threshold
	case OpGreaterEqual:
		return value >= threshold
	case OpLessEqual:
		return value <= threshold
	case OpEqual:
		return value == threshold
	default:
		return false
	}
}
