package rules

import "monitord/internal/models"

func gt(metric string, warning, critical float64, desc string) models.MetricThreshold {
	return models.MetricThreshold{MetricName: metric, WarningThreshold: warning, CriticalThreshold: critical,
		Comparison: models.GreaterThan, Enabled: true, CheckIntervalSeconds: 60, Description: desc}
}

func lt(metric string, warning, critical float64, desc string) models.MetricThreshold {
	return models.MetricThreshold{MetricName: metric, WarningThreshold: warning, CriticalThreshold: critical,
		Comparison: models.LessThan, Enabled: true, CheckIntervalSeconds: 60, Description: desc}
}

// Defaults is the built-in rule set used when no rules file is configured.
func Defaults() []models.MonitoringRule {
	return []models.MonitoringRule{
		{
			Name:      "CPU Monitoring",
			Component: models.ComponentSystem,
			Thresholds: []models.MetricThreshold{
				gt("cpu_percent", 70, 90, "CPU usage percentage"),
				gt("load_avg_5m", 4, 8, "5 minute load average"),
			},
			AlertChannels:   []models.Channel{models.ChannelEmail, models.ChannelSlack},
			CooldownMinutes: 15,
			Enabled:         true,
		},
		{
			Name:      "Memory Monitoring",
			Component: models.ComponentSystem,
			Thresholds: []models.MetricThreshold{
				gt("memory_percent", 80, 95, "Memory usage percentage"),
				gt("swap_percent", 50, 80, "Swap usage percentage"),
			},
			AlertChannels:   []models.Channel{models.ChannelEmail, models.ChannelSlack},
			CooldownMinutes: 15,
			Enabled:         true,
		},
		{
			Name:      "Disk Monitoring",
			Component: models.ComponentSystem,
			Thresholds: []models.MetricThreshold{
				gt("disk_percent", 85, 95, "Disk usage percentage"),
				lt("disk_free_gb", 5, 1, "Free disk space in GB"),
				gt("zombie_processes", 5, 20, "Zombie process count"),
			},
			AlertChannels:   []models.Channel{models.ChannelEmail, models.ChannelSlack, models.ChannelWebhook},
			CooldownMinutes: 30,
			Enabled:         true,
		},
		{
			Name:      "Database Monitoring",
			Component: models.ComponentDatabase,
			Thresholds: []models.MetricThreshold{
				gt("db_connections", 80, 100, "Active database connections"),
				gt("slow_queries", 5, 20, "Queries slower than 1s"),
				lt("query_efficiency", 80, 60, "Query efficiency score"),
			},
			AlertChannels:   []models.Channel{models.ChannelEmail, models.ChannelDiscord},
			CooldownMinutes: 20,
			Enabled:         true,
		},
		{
			Name:      "Application Monitoring",
			Component: models.ComponentApplication,
			Thresholds: []models.MetricThreshold{
				gt("avg_response_time_ms", 1000, 3000, "Average API response time"),
				gt("error_rate", 5, 10, "API error rate percentage"),
				lt("cache_hit_rate", 70, 40, "Cache hit rate percentage"),
			},
			AlertChannels:   []models.Channel{models.ChannelSlack, models.ChannelWebhook},
			CooldownMinutes: 10,
			Enabled:         true,
		},
	}
}
