package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"monitord/internal/models"
)

// RuleSource yields the current rule set. Enabled flags are re-read on every
// call.
type RuleSource interface {
	Rules() []models.MonitoringRule
}

// Cooldowns is satisfied by *cache.Cache.
type Cooldowns interface {
	SetIfAbsent(key string, value any, ttl time.Duration) bool
}

type Evaluator struct {
	rules     RuleSource
	manager   *Manager
	cooldowns Cooldowns
	log       *slog.Logger
}

func NewEvaluator(rules RuleSource, manager *Manager, cooldowns Cooldowns, logger *slog.Logger) *Evaluator {
	return &Evaluator{rules: rules, manager: manager, cooldowns: cooldowns, log: logger}
}

func CooldownKey(component, metric string) string {
	return "cooldown:" + component + ":" + metric
}

// CheckThresholds evaluates snap against every enabled rule and creates and
// dispatches an alert for each breach outside its cooldown. It returns the
// alerts created.
func (e *Evaluator) CheckThresholds(ctx context.Context, snap models.Snapshot) []models.Alert {
	var created []models.Alert
	for _, rule := range e.rules.Rules() {
		if !rule.Enabled {
			continue
		}
		metrics, ok := snap[rule.Component]
		if !ok {
			continue
		}
		for _, th := range rule.Thresholds {
			if !th.Enabled {
				continue
			}
			value, ok := metrics[th.MetricName]
			if !ok {
				continue
			}
			sev, limit, breached, err := evaluate(th, value)
			if err != nil {
				e.log.Warn("skip threshold", "err", err, "rule", rule.Name, "metric", th.MetricName)
				continue
			}
			if !breached {
				continue
			}
			key := CooldownKey(rule.Component, th.MetricName)
			ttl := time.Duration(rule.CooldownMinutes) * time.Minute
			if ttl > 0 && !e.cooldowns.SetIfAbsent(key, true, ttl) {
				e.log.Debug("alert suppressed by cooldown", "key", key, "value", value)
				continue
			}
			a := e.manager.CreateAlert(ctx, models.Alert{
				Title:          fmt.Sprintf("%s: %s", rule.Name, th.Description),
				Message:        fmt.Sprintf("Metric %s is %.2f, threshold: %.2f", th.MetricName, value, limit),
				Severity:       sev,
				Component:      rule.Component,
				MetricName:     th.MetricName,
				CurrentValue:   value,
				ThresholdValue: limit,
				Metadata: map[string]any{
					"rule":       rule.Name,
					"comparison": th.Comparison.String(),
					"metrics":    maps.Clone(metrics),
				},
			})
			e.manager.SendAlert(ctx, a, rule.AlertChannels)
			created = append(created, a)
		}
	}
	return created
}

// evaluate returns the severity and the threshold that was crossed. Crossing
// the critical threshold wins over the warning threshold.
func evaluate(th models.MetricThreshold, v float64) (models.Severity, float64, bool, error) {
	switch th.Comparison {
	case models.GreaterThan:
		if v > th.CriticalThreshold {
			return models.SeverityCritical, th.CriticalThreshold, true, nil
		}
		if v > th.WarningThreshold {
			return models.SeverityHigh, th.WarningThreshold, true, nil
		}
		return 0, 0, false, nil
	case models.LessThan:
		if v < th.CriticalThreshold {
			return models.SeverityCritical, th.CriticalThreshold, true, nil
		}
		if v < th.WarningThreshold {
			return models.SeverityHigh, th.WarningThreshold, true, nil
		}
		return 0, 0, false, nil
	default:
		return 0, 0, false, fmt.Errorf("unknown comparison %s", th.Comparison)
	}
}
