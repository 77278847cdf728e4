package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Addr          string
	DataDir       string
	DBPath        string
	LogLevel      string
	RetentionDays int

	MonitorInterval  time.Duration
	MonitorAutostart bool
	RulesFile        string
	SnapshotTTL      time.Duration
	DeliveryAttempts int
	HistoryLimit     int
	ProcessName      string
	DiskPath         string

	PostgresDSN  string
	DockerSocket string

	EmailTo       []string
	EmailFrom     string
	MailTransport string
	SMTPHost      string
	SMTPPort      int
	SMTPUsername  string
	SMTPPassword  string
	AWSRegion     string

	SlackWebhookURL   string
	DiscordWebhookURL string
	AlertWebhookURL   string

	JWTSecret string
}

func Load() Config {
	dataDir := getenv("APP_DATA_DIR", "./data")
	return Config{
		Addr:          getenv("APP_ADDR", ":8080"),
		DataDir:       dataDir,
		DBPath:        getenv("APP_DB_PATH", dataDir+"/app.db"),
		LogLevel:      getenv("LOG_LEVEL", "info"),
		RetentionDays: getenvInt("APP_RETENTION_DAYS", 14),

		MonitorInterval:  getenvDuration("MONITOR_INTERVAL", 60*time.Second),
		MonitorAutostart: getenvBool("MONITOR_AUTOSTART", true),
		RulesFile:        os.Getenv("MONITOR_RULES_FILE"),
		SnapshotTTL:      getenvDuration("MONITOR_SNAPSHOT_TTL", 5*time.Minute),
		DeliveryAttempts: getenvInt("MONITOR_DELIVERY_ATTEMPTS", 3),
		HistoryLimit:     getenvInt("MONITOR_HISTORY_LIMIT", 1000),
		ProcessName:      getenv("MONITOR_PROCESS_NAME", defaultProcessName()),
		DiskPath:         getenv("MONITOR_DISK_PATH", "/"),

		PostgresDSN:  os.Getenv("POSTGRES_DSN"),
		DockerSocket: getenv("DOCKER_SOCKET", "/var/run/docker.sock"),

		EmailTo:       getenvList("ALERT_EMAIL_TO"),
		EmailFrom:     getenv("ALERT_EMAIL_FROM", "monitord@localhost"),
		MailTransport: strings.ToLower(getenv("MAIL_TRANSPORT", "smtp")),
		SMTPHost:      os.Getenv("SMTP_HOST"),
		SMTPPort:      getenvInt("SMTP_PORT", 587),
		SMTPUsername:  os.Getenv("SMTP_USERNAME"),
		SMTPPassword:  os.Getenv("SMTP_PASSWORD"),
		AWSRegion:     os.Getenv("AWS_REGION"),

		SlackWebhookURL:   os.Getenv("SLACK_WEBHOOK_URL"),
		DiscordWebhookURL: os.Getenv("DISCORD_WEBHOOK_URL"),
		AlertWebhookURL:   os.Getenv("ALERT_WEBHOOK_URL"),

		JWTSecret: os.Getenv("JWT_SECRET"),
	}
}

func defaultProcessName() string {
	exe, err := os.Executable()
	if err != nil {
		return ""
	}
	return filepath.Base(exe)
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func getenvInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return d
	}
	return n
}

func getenvDuration(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	dur, err := time.ParseDuration(v)
	if err != nil {
		// Bare numbers are seconds.
		if n, nerr := strconv.Atoi(v); nerr == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
		return d
	}
	return dur
}

func getenvBool(k string, d bool) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(k)))
	if v == "" {
		return d
	}
	if v == "1" || v == "true" || v == "yes" || v == "on" {
		return true
	}
	if v == "0" || v == "false" || v == "no" || v == "off" {
		return false
	}
	return d
}

// getenvList splits a comma separated value and drops empty items.
func getenvList(k string) []string {
	var out []string
	for _, p := range strings.Split(os.Getenv(k), ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
