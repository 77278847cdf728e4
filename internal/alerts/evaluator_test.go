package alerts

import (
	"context"
	"testing"
	"time"

	"monitord/internal/cache"
	"monitord/internal/models"
)

type staticRules []models.MonitoringRule

func (s staticRules) Rules() []models.MonitoringRule { return s }

func cpuRule() models.MonitoringRule {
	return models.MonitoringRule{
		Name:      "CPU Monitoring",
		Component: models.ComponentSystem,
		Thresholds: []models.MetricThreshold{{
			MetricName: "cpu_percent", WarningThreshold: 70, CriticalThreshold: 90,
			Comparison: models.GreaterThan, Enabled: true, Description: "CPU usage percentage",
		}},
		AlertChannels:   []models.Channel{models.ChannelEmail},
		CooldownMinutes: 15,
		Enabled:         true,
	}
}

func TestEvaluateDirections(t *testing.T) {
	gt := models.MetricThreshold{WarningThreshold: 70, CriticalThreshold: 90, Comparison: models.GreaterThan}
	lt := models.MetricThreshold{WarningThreshold: 5, CriticalThreshold: 1, Comparison: models.LessThan}
	cases := []struct {
		th       models.MetricThreshold
		v        float64
		breached bool
		sev      models.Severity
		limit    float64
	}{
		{gt, 95, true, models.SeverityCritical, 90},
		{gt, 90, true, models.SeverityHigh, 70},
		{gt, 70.5, true, models.SeverityHigh, 70},
		{gt, 70, false, 0, 0},
		{lt, 0.8, true, models.SeverityCritical, 1},
		{lt, 1, true, models.SeverityHigh, 5},
		{lt, 5, false, 0, 0},
	}
	for _, tc := range cases {
		sev, limit, breached, err := evaluate(tc.th, tc.v)
		if err != nil {
			t.Fatalf("evaluate(%v): %v", tc.v, err)
		}
		if breached != tc.breached || sev != tc.sev || limit != tc.limit {
			t.Fatalf("evaluate(%s %v) = %v %v %v, want %v %v %v", tc.th.Comparison, tc.v, sev, limit, breached, tc.sev, tc.limit, tc.breached)
		}
	}
	if _, _, _, err := evaluate(models.MetricThreshold{}, 1); err == nil {
		t.Fatal("expected error for unset comparison")
	}
}

func TestCPUCriticalBreachRespectsCooldown(t *testing.T) {
	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	email := &fakeChannel{name: models.ChannelEmail}
	m := NewManager(discardLogger(), nil, nil)
	m.channels[models.ChannelEmail] = email
	m.now = clock
	cooldowns := cache.New()
	cooldowns.SetClock(clock)
	ev := NewEvaluator(staticRules{cpuRule()}, m, cooldowns, discardLogger())
	ctx := context.Background()

	created := ev.CheckThresholds(ctx, models.Snapshot{"system": {"cpu_percent": 95}})
	if len(created) != 1 {
		t.Fatalf("created = %d, want 1", len(created))
	}
	a := created[0]
	if a.Severity != models.SeverityCritical || a.CurrentValue != 95 || a.ThresholdValue != 90 {
		t.Fatalf("alert = %+v", a)
	}
	if a.Title != "CPU Monitoring: CPU usage percentage" || a.Message != "Metric cpu_percent is 95.00, threshold: 90.00" {
		t.Fatalf("title/message = %q / %q", a.Title, a.Message)
	}
	if a.Metadata["rule"] != "CPU Monitoring" || a.Metadata["comparison"] != "gt" {
		t.Fatalf("metadata = %v", a.Metadata)
	}
	if email.count() != 1 {
		t.Fatalf("email calls = %d, want 1", email.count())
	}

	now = now.Add(5 * time.Minute)
	if got := ev.CheckThresholds(ctx, models.Snapshot{"system": {"cpu_percent": 96}}); len(got) != 0 {
		t.Fatalf("alert created inside cooldown: %+v", got)
	}

	now = now.Add(11 * time.Minute)
	if got := ev.CheckThresholds(ctx, models.Snapshot{"system": {"cpu_percent": 96}}); len(got) != 1 {
		t.Fatalf("created after cooldown = %d, want 1", len(got))
	}
	if email.count() != 2 {
		t.Fatalf("email calls = %d, want 2", email.count())
	}
}

func TestMemoryWarningAndDiskLessThan(t *testing.T) {
	rules := staticRules{
		{
			Name: "Memory Monitoring", Component: models.ComponentSystem, Enabled: true, CooldownMinutes: 15,
			Thresholds: []models.MetricThreshold{{MetricName: "memory_percent", WarningThreshold: 80, CriticalThreshold: 95, Comparison: models.GreaterThan, Enabled: true}},
		},
		{
			Name: "Disk Monitoring", Component: models.ComponentSystem, Enabled: true, CooldownMinutes: 30,
			Thresholds: []models.MetricThreshold{{MetricName: "disk_free_gb", WarningThreshold: 5, CriticalThreshold: 1, Comparison: models.LessThan, Enabled: true}},
		},
	}
	m := NewManager(discardLogger(), nil, nil)
	ev := NewEvaluator(rules, m, cache.New(), discardLogger())
	created := ev.CheckThresholds(context.Background(), models.Snapshot{"system": {"memory_percent": 82, "disk_free_gb": 0.8}})
	if len(created) != 2 {
		t.Fatalf("created = %d, want 2", len(created))
	}
	if created[0].Severity != models.SeverityHigh || created[0].ThresholdValue != 80 {
		t.Fatalf("memory alert = %+v", created[0])
	}
	if created[1].Severity != models.SeverityCritical || created[1].ThresholdValue != 1 {
		t.Fatalf("disk alert = %+v", created[1])
	}
}

func TestDisabledAndMissingMetricsAreSkipped(t *testing.T) {
	disabledRule := cpuRule()
	disabledRule.Enabled = false
	disabledThreshold := cpuRule()
	disabledThreshold.Name = "Other"
	disabledThreshold.Thresholds[0].Enabled = false
	missing := cpuRule()
	missing.Name = "Missing"
	missing.Thresholds[0].MetricName = "gpu_percent"

	m := NewManager(discardLogger(), nil, nil)
	ev := NewEvaluator(staticRules{disabledRule, disabledThreshold, missing}, m, cache.New(), discardLogger())
	if got := ev.CheckThresholds(context.Background(), models.Snapshot{"system": {"cpu_percent": 99}}); len(got) != 0 {
		t.Fatalf("created = %+v, want none", got)
	}
	if got := ev.CheckThresholds(context.Background(), models.Snapshot{}); len(got) != 0 {
		t.Fatalf("created on empty snapshot = %+v", got)
	}
}
