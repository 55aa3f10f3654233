package alert

import (
	"context"
	"sync"
	"time"

	"tickflow/internal/market"
	"tickflow/internal/metrics"

	"go.uber.org/zap"
)

// RuleSource lists the enabled rules to evaluate. Rule CRUD lives with
// the definition store, not here.
type RuleSource interface {
	ListEnabledRules(ctx context.Context) ([]Rule, error)
}

// TriggerSink records a trigger for persistence (count + timestamp).
type TriggerSink interface {
	RecordTrigger(ctx context.Context, ruleID int64, at time.Time) error
}

// ValueFunc resolves the current value of a rule's metric. The second
// return is false when no value is available this cycle, which skips
// the rule without a state change.
type ValueFunc func(rule Rule) (float64, bool)

// Evaluator runs the per-rule state machine:
//
//	Disabled -> Armed -> Triggered -> (cooldown or condition false) -> Armed
//
// A trigger event is emitted exactly once per Armed -> Triggered
// transition. A still-true condition does not re-emit until the rule
// re-arms.
type Evaluator struct {
	rules    RuleSource
	sink     TriggerSink
	cooldown time.Duration
	logger   *zap.Logger

	mu    sync.Mutex
	state map[int64]*ruleState
}

type ruleState struct {
	triggered     bool
	lastTriggered time.Time
}

func NewEvaluator(rules RuleSource, sink TriggerSink, cooldown time.Duration, logger *zap.Logger) *Evaluator {
	return &Evaluator{
		rules:    rules,
		sink:     sink,
		cooldown: cooldown,
		logger:   logger,
		state:    make(map[int64]*ruleState),
	}
}

// Evaluate checks every enabled rule against the latest metric values
// and returns the trigger events for this cycle.
func (e *Evaluator) Evaluate(ctx context.Context, value ValueFunc, now time.Time) []market.AlertTriggerEvent {
	rules, err := e.rules.ListEnabledRules(ctx)
	if err != nil {
		e.logger.Warn("failed to list alert rules", zap.Error(err))
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var events []market.AlertTriggerEvent
	live := make(map[int64]bool, len(rules))

	for _, rule := range rules {
		live[rule.ID] = true

		v, ok := value(rule)
		if !ok {
			continue
		}

		st := e.state[rule.ID]
		if st == nil {
			st = &ruleState{}
			e.state[rule.ID] = st
		}

		satisfied := Compare(v, rule.Operator, rule.Threshold)
		switch {
		case !satisfied:
			// Condition went false: re-arm.
			st.triggered = false

		case st.triggered:
			// Debounce: still continuously true. Re-arm only once the
			// cooldown window elapses.
			if e.cooldown > 0 && now.Sub(st.lastTriggered) >= e.cooldown {
				st.triggered = false
			}
		}

		if satisfied && !st.triggered {
			st.triggered = true
			st.lastTriggered = now
			events = append(events, e.fire(ctx, rule, v, now))
		}
	}

	// Drop state for rules that were deleted or disabled so a re-enabled
	// rule starts Armed.
	for id := range e.state {
		if !live[id] {
			delete(e.state, id)
		}
	}

	return events
}

func (e *Evaluator) fire(ctx context.Context, rule Rule, value float64, now time.Time) market.AlertTriggerEvent {
	metrics.AlertsTriggered.WithLabelValues(string(rule.Metric)).Inc()

	if err := e.sink.RecordTrigger(ctx, rule.ID, now); err != nil {
		e.logger.Warn("failed to record alert trigger",
			zap.Int64("rule_id", rule.ID),
			zap.Error(err))
	}

	e.logger.Info("alert triggered",
		zap.Int64("rule_id", rule.ID),
		zap.String("name", rule.Name),
		zap.String("metric", string(rule.Metric)),
		zap.Float64("value", value),
		zap.Float64("threshold", rule.Threshold))

	return market.AlertTriggerEvent{
		RuleID:    rule.ID,
		Name:      rule.Name,
		Metric:    string(rule.Metric),
		Value:     value,
		Operator:  string(rule.Operator),
		Threshold: rule.Threshold,
		Timestamp: now,
	}
}
