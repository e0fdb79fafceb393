package config

import (
	"os"
	"strconv"
	"strings"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName  string
	HTTPPort     string
	PostgresDSN  string
	KafkaBrokers []string

	SchedulerTimezone string

	DistributionMaxRetries    int
	DistributionRetentionDays int

	BaiduSite            string
	BaiduToken           string
	BaiduPushCron        string
	BaiduPushRecentHours int
	SiteProtocol         string
}

func Load() (Config, error) {
	service := os.Getenv("SERVICE_NAME")
	if service == "" {
		service = "quill"
	}

	port := os.Getenv("HTTP_PORT")
	if port == "" {
		port = "8080"
	}

	var brokers []string
	for _, value := range strings.Split(os.Getenv("KAFKA_BROKERS"), ",") {
		value = strings.TrimSpace(value)
		if value != "" {
			brokers = append(brokers, value)
		}
	}
	if len(brokers) == 0 {
		brokers = []string{"localhost:9092"}
	}

	protocol := strings.TrimSpace(os.Getenv("SITE_PROTOCOL"))
	if protocol == "" {
		protocol = "https"
	}

	return Config{
		ServiceName:  service,
		HTTPPort:     port,
		PostgresDSN:  os.Getenv("POSTGRES_DSN"),
		KafkaBrokers: brokers,

		SchedulerTimezone: strings.TrimSpace(os.Getenv("SCHEDULER_TIMEZONE")),

		DistributionMaxRetries:    envInt("DISTRIBUTION_MAX_RETRIES", 3),
		DistributionRetentionDays: envInt("DISTRIBUTION_RETENTION_DAYS", 30),

		BaiduSite:            strings.TrimSpace(os.Getenv("BAIDU_SITE")),
		BaiduToken:           strings.TrimSpace(os.Getenv("BAIDU_TOKEN")),
		BaiduPushCron:        strings.TrimSpace(os.Getenv("BAIDU_PUSH_CRON")),
		BaiduPushRecentHours: envInt("BAIDU_PUSH_RECENT_HOURS", 24),
		SiteProtocol:         protocol,
	}, nil
}

// SearchPushEnabled reports whether the push credentials are configured.
func (c Config) SearchPushEnabled() bool {
	return c.BaiduSite != "" && c.BaiduToken != ""
}

func envInt(name string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
