package rules

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"monitord/internal/models"
)

type fileFormat struct {
	Rules []models.MonitoringRule `yaml:"rules"`
}

// Load builds the rule set from a YAML file, or from Defaults when path is
// empty or the file does not exist.
func Load(path string, logger *slog.Logger) (*Set, error) {
	if path == "" {
		return NewSet(Defaults())
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		logger.Warn("rules file not found, using built-in rules", "path", path)
		return NewSet(Defaults())
	}
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	rules, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("parse rules file %s: %w", path, err)
	}
	logger.Info("rules loaded", "path", path, "count", len(rules))
	return NewSet(rules)
}

// Parse decodes rules from YAML. Rules and thresholds default to enabled
// when the key is omitted.
func Parse(b []byte) ([]models.MonitoringRule, error) {
	var raw struct {
		Rules []yaml.Node `yaml:"rules"`
	}
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, err
	}
	out := make([]models.MonitoringRule, 0, len(raw.Rules))
	for _, n := range raw.Rules {
		r := models.MonitoringRule{Enabled: true}
		if err := n.Decode(&r); err != nil {
			return nil, err
		}
		// Thresholds are decoded a second time so omitted enabled keys keep
		// their default.
		var ths struct {
			Thresholds []yaml.Node `yaml:"thresholds"`
		}
		if err := n.Decode(&ths); err != nil {
			return nil, err
		}
		r.Thresholds = r.Thresholds[:0]
		for _, tn := range ths.Thresholds {
			th := models.MetricThreshold{Enabled: true, CheckIntervalSeconds: 60}
			if err := tn.Decode(&th); err != nil {
				return nil, err
			}
			r.Thresholds = append(r.Thresholds, th)
		}
		out = append(out, r)
	}
	return out, nil
}

// Marshal renders rules in the file format Load accepts.
func Marshal(rules []models.MonitoringRule) ([]byte, error) {
	return yaml.Marshal(fileFormat{Rules: rules})
}
