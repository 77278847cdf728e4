package models

import (
	"fmt"
	"maps"
	"strings"
	"time"
)

// Component domains a collector reports for.
const (
	ComponentSystem      = "system"
	ComponentDatabase    = "database"
	ComponentApplication = "application"
)

// Components lists every domain in collection order.
var Components = []string{ComponentSystem, ComponentDatabase, ComponentApplication}

type Severity int

const (
	SeverityLow Severity = iota + 1
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

var severityNames = map[Severity]string{
	SeverityLow:      "low",
	SeverityMedium:   "medium",
	SeverityHigh:     "high",
	SeverityCritical: "critical",
}

func (s Severity) String() string {
	if n, ok := severityNames[s]; ok {
		return n
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

func ParseSeverity(v string) (Severity, error) {
	for s, n := range severityNames {
		if strings.EqualFold(strings.TrimSpace(v), n) {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown severity %q", v)
}

func (s Severity) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Severity) UnmarshalText(b []byte) error {
	v, err := ParseSeverity(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

type Comparison int

const (
	GreaterThan Comparison = iota + 1
	LessThan
)

func (c Comparison) String() string {
	switch c {
	case GreaterThan:
		return "gt"
	case LessThan:
		return "lt"
	default:
		return fmt.Sprintf("comparison(%d)", int(c))
	}
}

func ParseComparison(v string) (Comparison, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "gt", ">":
		return GreaterThan, nil
	case "lt", "<":
		return LessThan, nil
	default:
		return 0, fmt.Errorf("unknown comparison %q", v)
	}
}

func (c Comparison) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *Comparison) UnmarshalText(b []byte) error {
	v, err := ParseComparison(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

type Channel int

const (
	ChannelEmail Channel = iota + 1
	ChannelSlack
	ChannelDiscord
	ChannelWebhook
)

// AllChannels is every channel the engine can dispatch to.
var AllChannels = []Channel{ChannelEmail, ChannelSlack, ChannelDiscord, ChannelWebhook}

func (c Channel) String() string {
	switch c {
	case ChannelEmail:
		return "email"
	case ChannelSlack:
		return "slack"
	case ChannelDiscord:
		return "discord"
	case ChannelWebhook:
		return "webhook"
	default:
		return fmt.Sprintf("channel(%d)", int(c))
	}
}

func ParseChannel(v string) (Channel, error) {
	for _, c := range AllChannels {
		if strings.EqualFold(strings.TrimSpace(v), c.String()) {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown channel %q", v)
}

func (c Channel) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *Channel) UnmarshalText(b []byte) error {
	v, err := ParseChannel(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

type MetricThreshold struct {
	MetricName           string     `json:"metric_name" yaml:"metric_name"`
	WarningThreshold     float64    `json:"warning_threshold" yaml:"warning_threshold"`
	CriticalThreshold    float64    `json:"critical_threshold" yaml:"critical_threshold"`
	Comparison           Comparison `json:"comparison" yaml:"comparison"`
	Enabled              bool       `json:"enabled" yaml:"enabled"`
	CheckIntervalSeconds int        `json:"check_interval_seconds" yaml:"check_interval_seconds"`
	Description          string     `json:"description" yaml:"description"`
}

type MonitoringRule struct {
	Name            string            `json:"name" yaml:"name"`
	Component       string            `json:"component" yaml:"component"`
	Thresholds      []MetricThreshold `json:"thresholds" yaml:"thresholds"`
	AlertChannels   []Channel         `json:"alert_channels" yaml:"alert_channels"`
	CooldownMinutes int               `json:"cooldown_minutes" yaml:"cooldown_minutes"`
	Enabled         bool              `json:"enabled" yaml:"enabled"`
}

// Clone returns a deep copy so callers cannot mutate the shared rule set.
func (r MonitoringRule) Clone() MonitoringRule {
	out := r
	out.Thresholds = append([]MetricThreshold(nil), r.Thresholds...)
	out.AlertChannels = append([]Channel(nil), r.AlertChannels...)
	return out
}

type Alert struct {
	ID             string         `json:"id"`
	Title          string         `json:"title"`
	Message        string         `json:"message"`
	Severity       Severity       `json:"severity"`
	Component      string         `json:"component"`
	MetricName     string         `json:"metric_name"`
	CurrentValue   float64        `json:"current_value"`
	ThresholdValue float64        `json:"threshold_value"`
	Timestamp      time.Time      `json:"timestamp"`
	Resolved       bool           `json:"resolved"`
	ResolvedAt     *time.Time     `json:"resolved_at"`
	Metadata       map[string]any `json:"metadata"`
}

// Clone copies the alert including its metadata map and resolution time.
func (a Alert) Clone() Alert {
	out := a
	if a.ResolvedAt != nil {
		t := *a.ResolvedAt
		out.ResolvedAt = &t
	}
	if a.Metadata != nil {
		out.Metadata = maps.Clone(a.Metadata)
	}
	return out
}

// Snapshot maps component domain to metric name to value.
type Snapshot map[string]map[string]float64

func (s Snapshot) Value(component, metric string) (float64, bool) {
	m, ok := s[component]
	if !ok {
		return 0, false
	}
	v, ok := m[metric]
	return v, ok
}

func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for k, v := range s {
		out[k] = maps.Clone(v)
	}
	return out
}

type AlertSummary struct {
	TotalActive       int            `json:"total_active"`
	CountsBySeverity  map[string]int `json:"counts_by_severity"`
	CountsByComponent map[string]int `json:"counts_by_component"`
	MostRecent        []Alert        `json:"most_recent"`
	GeneratedAt       time.Time      `json:"generated_at"`
}

type DeliveryStatus string

const (
	DeliverySent    DeliveryStatus = "sent"
	DeliverySkipped DeliveryStatus = "skipped"
	DeliveryFailed  DeliveryStatus = "failed"
)

type DeliveryResult struct {
	Channel  Channel        `json:"channel"`
	Status   DeliveryStatus `json:"status"`
	Attempts int            `json:"attempts"`
	Error    string         `json:"error,omitempty"`
}
