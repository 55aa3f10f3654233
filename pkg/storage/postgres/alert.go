package postgres

import (
	"context"
	"fmt"
	"time"

	"tickflow/internal/alert"

	"gorm.io/gorm"
)

// AlertRuleRecord is a persisted alert rule definition. Definitions are
// created and toggled by user action; the evaluator only reads enabled
// rows and writes back trigger counts.
type AlertRuleRecord struct {
	ID int64 `gorm:"primaryKey"`

	Name      string  `gorm:"type:text;not null"`
	Metric    string  `gorm:"type:varchar(20);not null"`
	Operator  string  `gorm:"type:varchar(2);not null"`
	Threshold float64 `gorm:"type:numeric;not null"`
	Symbol    string  `gorm:"type:text;not null;index:idx_alert_symbol"`
	Symbol2   string  `gorm:"type:text"`

	Enabled        bool  `gorm:"not null;default:true"`
	TriggeredCount int64 `gorm:"not null;default:0"`
	LastTriggered  *time.Time

	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// TableName overrides the default table name for GORM.
func (AlertRuleRecord) TableName() string {
	return "alert_rule"
}

func (r *AlertRuleRecord) ToRule() alert.Rule {
	rule := alert.Rule{
		ID:             r.ID,
		Name:           r.Name,
		Metric:         alert.Metric(r.Metric),
		Operator:       alert.Operator(r.Operator),
		Threshold:      r.Threshold,
		Symbol:         r.Symbol,
		Symbol2:        r.Symbol2,
		Enabled:        r.Enabled,
		TriggeredCount: r.TriggeredCount,
	}
	if r.LastTriggered != nil {
		rule.LastTriggered = *r.LastTriggered
	}
	return rule
}

// CreateAlertRule validates and persists a new rule definition.
func (p *PostgresClient) CreateAlertRule(ctx context.Context, rule alert.Rule) (int64, error) {
	if err := rule.Validate(); err != nil {
		return 0, err
	}

	record := &AlertRuleRecord{
		Name:      rule.Name,
		Metric:    string(rule.Metric),
		Operator:  string(rule.Operator),
		Threshold: rule.Threshold,
		Symbol:    rule.Symbol,
		Symbol2:   rule.Symbol2,
		Enabled:   rule.Enabled,
	}
	if err := p.DB.WithContext(ctx).Create(record).Error; err != nil {
		return 0, fmt.Errorf("create alert rule: %w", err)
	}
	return record.ID, nil
}

// ListAlertRules returns all rule definitions, newest first.
func (p *PostgresClient) ListAlertRules(ctx context.Context) ([]alert.Rule, error) {
	var records []AlertRuleRecord
	err := p.DB.WithContext(ctx).
		Order("created_at desc").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list alert rules: %w", err)
	}

	rules := make([]alert.Rule, len(records))
	for i, r := range records {
		rules[i] = r.ToRule()
	}
	return rules, nil
}

// ListEnabledRules implements alert.RuleSource.
func (p *PostgresClient) ListEnabledRules(ctx context.Context) ([]alert.Rule, error) {
	var records []AlertRuleRecord
	err := p.DB.WithContext(ctx).
		Where("enabled = ?", true).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list enabled rules: %w", err)
	}

	rules := make([]alert.Rule, len(records))
	for i, r := range records {
		rules[i] = r.ToRule()
	}
	return rules, nil
}

// DeleteAlertRule removes a rule definition.
func (p *PostgresClient) DeleteAlertRule(ctx context.Context, id int64) error {
	err := p.DB.WithContext(ctx).
		Delete(&AlertRuleRecord{}, id).Error
	if err != nil {
		return fmt.Errorf("delete alert rule: %w", err)
	}
	return nil
}

// ToggleAlertRule flips the enabled flag of a rule.
func (p *PostgresClient) ToggleAlertRule(ctx context.Context, id int64) error {
	err := p.DB.WithContext(ctx).
		Model(&AlertRuleRecord{}).
		Where("id = ?", id).
		Update("enabled", gorm.Expr("NOT enabled")).Error
	if err != nil {
		return fmt.Errorf("toggle alert rule: %w", err)
	}
	return nil
}

// RecordTrigger implements alert.TriggerSink.
func (p *PostgresClient) RecordTrigger(ctx context.Context, ruleID int64, at time.Time) error {
	err := p.DB.WithContext(ctx).
		Model(&AlertRuleRecord{}).
		Where("id = ?", ruleID).
		Updates(map[string]interface{}{
			"triggered_count": gorm.Expr("triggered_count + 1"),
			"last_triggered":  at,
		}).Error
	if err != nil {
		return fmt.Errorf("record trigger: %w", err)
	}
	return nil
}
