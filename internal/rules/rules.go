package rules

import (
	"errors"
	"fmt"
	"sync"

	"monitord/internal/models"
)

var ErrRuleNotFound = errors.New("rule not found")

// Set holds the monitoring rules. Rules are fixed after construction apart
// from their enabled flag, which operators may toggle while the engine runs.
type Set struct {
	mu    sync.RWMutex
	rules []models.MonitoringRule
}

func NewSet(rules []models.MonitoringRule) (*Set, error) {
	seen := map[string]bool{}
	out := make([]models.MonitoringRule, 0, len(rules))
	for _, r := range rules {
		if err := Validate(r); err != nil {
			return nil, err
		}
		if seen[r.Name] {
			return nil, fmt.Errorf("duplicate rule name %q", r.Name)
		}
		seen[r.Name] = true
		out = append(out, r.Clone())
	}
	return &Set{rules: out}, nil
}

// Rules returns deep copies in configuration order.
func (s *Set) Rules() []models.MonitoringRule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.MonitoringRule, len(s.rules))
	for i, r := range s.rules {
		out[i] = r.Clone()
	}
	return out
}

func (s *Set) Get(name string) (models.MonitoringRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.rules {
		if r.Name == name {
			return r.Clone(), nil
		}
	}
	return models.MonitoringRule{}, ErrRuleNotFound
}

func (s *Set) SetEnabled(name string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.rules {
		if s.rules[i].Name == name {
			s.rules[i].Enabled = enabled
			return nil
		}
	}
	return ErrRuleNotFound
}

func Validate(r models.MonitoringRule) error {
	if r.Name == "" {
		return errors.New("rule name is required")
	}
	switch r.Component {
	case models.ComponentSystem, models.ComponentDatabase, models.ComponentApplication:
	default:
		return fmt.Errorf("rule %q: unknown component %q", r.Name, r.Component)
	}
	if r.CooldownMinutes < 0 {
		return fmt.Errorf("rule %q: negative cooldown", r.Name)
	}
	for _, th := range r.Thresholds {
		if th.MetricName == "" {
			return fmt.Errorf("rule %q: threshold without metric name", r.Name)
		}
		if th.Comparison != models.GreaterThan && th.Comparison != models.LessThan {
			return fmt.Errorf("rule %q: metric %s has no comparison", r.Name, th.MetricName)
		}
	}
	return nil
}
