package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // reference zone must resolve on minimal images

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/foot-traffic-etl/internal/domain"
)

// Store drivers.
const (
	StoreDriverFS = "fs"
	StoreDriverS3 = "s3"
)

// StoreConfig selects and configures the merge store backend.
type StoreConfig struct {
	Driver      string
	Path        string
	S3Bucket    string
	S3Key       string
	S3Region    string
	S3Endpoint  string
	S3PathStyle bool
}

// Config holds all service settings, populated from environment variables.
type Config struct {
	Store StoreConfig

	ReferenceZone      *time.Location
	EnteringMultiplier float64
	VenueHoursFile     string
	Hours              domain.OperatingHours
	ExtractWorkers     int
	TrafficSender      string

	KafkaBrokers     []string
	KafkaSourceTopic string
	KafkaSinkTopic   string
	KafkaGroupID     string
	HTTPAddr         string
	LogLevel         string
	LogFormat        string
	ShutdownTimeout  time.Duration

	BatchSize          int
	BatchFlushInterval time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	zoneName := sharedcfg.EnvOrDefault("REFERENCE_TZ", domain.DefaultReferenceZone)
	zone, err := time.LoadLocation(zoneName)
	if err != nil {
		return nil, fmt.Errorf("invalid REFERENCE_TZ %q: %w", zoneName, err)
	}

	multiplier, err := parseMultiplier()
	if err != nil {
		return nil, err
	}

	workers, err := parseExtractWorkers()
	if err != nil {
		return nil, err
	}

	hoursFile := os.Getenv("VENUE_HOURS_FILE")
	hours := domain.DefaultOperatingHours()
	if hoursFile != "" {
		if hours, err = LoadOperatingHours(hoursFile, hours); err != nil {
			return nil, fmt.Errorf("load VENUE_HOURS_FILE: %w", err)
		}
	}

	cfg := &Config{
		Store: StoreConfig{
			Driver:      strings.ToLower(sharedcfg.EnvOrDefault("STORE_DRIVER", StoreDriverFS)),
			Path:        sharedcfg.EnvOrDefault("STORE_PATH", "hourly_foot_traffic.parquet"),
			S3Bucket:    os.Getenv("STORE_S3_BUCKET"),
			S3Key:       sharedcfg.EnvOrDefault("STORE_S3_KEY", "hourly_foot_traffic.parquet"),
			S3Region:    sharedcfg.EnvOrDefault("STORE_S3_REGION", "us-east-1"),
			S3Endpoint:  os.Getenv("STORE_S3_ENDPOINT"),
			S3PathStyle: strings.EqualFold(os.Getenv("STORE_S3_PATH_STYLE"), "true"),
		},

		ReferenceZone:      zone,
		EnteringMultiplier: multiplier,
		VenueHoursFile:     hoursFile,
		Hours:              hours,
		ExtractWorkers:     workers,
		TrafficSender:      sharedcfg.EnvOrDefault("TRAFFIC_SENDER", "no-reply@vemcount.com"),

		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:   sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "traffic-reports"),
		KafkaSinkTopic:     sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "traffic-store-updates"),
		KafkaGroupID:       sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "foot-traffic-etl"),
		HTTPAddr:           sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:           sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,
	}

	switch cfg.Store.Driver {
	case StoreDriverFS:
		if cfg.Store.Path == "" {
			return nil, errors.New("STORE_PATH is required for the fs store driver")
		}
	case StoreDriverS3:
		if cfg.Store.S3Bucket == "" {
			return nil, errors.New("STORE_S3_BUCKET is required for the s3 store driver")
		}
	default:
		return nil, fmt.Errorf("invalid STORE_DRIVER %q: want fs or s3", cfg.Store.Driver)
	}
	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaSourceTopic == "" {
		return nil, errors.New("KAFKA_SOURCE_TOPIC is required")
	}
	if cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required")
	}

	return cfg, nil
}

func parseMultiplier() (float64, error) {
	s := os.Getenv("ENTERING_MULTIPLIER")
	if s == "" {
		return domain.DefaultEnteringMultiplier, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid ENTERING_MULTIPLIER %q: must be a positive number", s)
	}
	return v, nil
}

func parseExtractWorkers() (int, error) {
	s := os.Getenv("EXTRACT_WORKERS")
	if s == "" {
		return 4, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid EXTRACT_WORKERS %q: must be a positive integer", s)
	}
	return n, nil
}
