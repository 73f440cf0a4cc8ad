package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	SMTP     SMTPConfig     `yaml:"smtp"`
	Schedule ScheduleConfig `yaml:"schedule"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

type KafkaConfig struct {
	Host                   string `yaml:"host"`
	Port                   int    `yaml:"port"`
	StatusChangedTopicName string `yaml:"status_changed_topic_name"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type SMTPConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	FromAddress string `yaml:"from_address"`
}

type ScheduleConfig struct {
	HTTPAddr           string `yaml:"http_addr"`
	KafkaConsumerGroup string `yaml:"kafka_consumer_group"`

	CurrentShipmentTTLSeconds int `yaml:"current_shipment_ttl_seconds"`

	// Alert thresholds. Zero means "use the alerts service default".
	InspectingStuckDays    int `yaml:"inspecting_stuck_days"`
	CapacityWarningPercent int `yaml:"capacity_warning_percent"`
	WarehouseCapacity      int `yaml:"warehouse_capacity"`

	AutoArchiveThresholdDays int `yaml:"auto_archive_threshold_days"`

	DigestRetentionDays     int `yaml:"digest_retention_days"`
	EmailRateLimitPerMinute int `yaml:"email_rate_limit_per_minute"`
	DigestTopShipmentsLimit int `yaml:"digest_top_shipments_limit"`

	WorkerHTTPAddr   string `yaml:"worker_http_addr"`
	DailyDigestCron  string `yaml:"daily_digest_cron"`
	WeeklyDigestCron string `yaml:"weekly_digest_cron"`
	AutoArchiveCron  string `yaml:"auto_archive_cron"`
	QueueCleanupCron string `yaml:"queue_cleanup_cron"`
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	return &config, nil
}
