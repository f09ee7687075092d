// Package config provides runtime configuration values for the service.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap/zapcore"
)

// Config holds configuration knobs for the HTTP server, the order queue and
// the background jobs.
type Config struct {
	HTTPAddr        string
	ShutdownTimeout time.Duration
	QueueCapacity   int
	MenuFile        string
	ResultWait      time.Duration
	ReportCron      string
	ReportTimezone  string
	LogLevel        string
	OTelEndpoint    string
	ServiceName     string
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// lookupenv is like getenv but keeps an explicitly empty value.
func lookupenv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(v)
	}
	return def
}

func atoienv(key string, def int) int {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func durenvms(key string, defMs int) time.Duration {
	ms := atoienv(key, defMs)
	return time.Duration(ms) * time.Millisecond
}

func durenvs(key string, defSec int) time.Duration {
	sec := atoienv(key, defSec)
	return time.Duration(sec) * time.Second
}

// Load reads an optional env file, then collects configuration from the
// environment with defaults. A missing env file is not an error.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	} else {
		_ = godotenv.Load()
	}

	cfg := Config{
		HTTPAddr:        getenv("HTTP_ADDR", ":8080"),
		ShutdownTimeout: durenvs("SHUTDOWN_TIMEOUT", 15),
		QueueCapacity:   atoienv("QUEUE_CAPACITY", 0),
		MenuFile:        getenv("MENU_FILE", ""),
		ResultWait:      durenvms("RESULT_WAIT_MS", 5000),
		ReportCron:      lookupenv("REPORT_CRON", "0 20 * * *"),
		ReportTimezone:  getenv("REPORT_TIMEZONE", "UTC"),
		LogLevel:        getenv("LOG_LEVEL", "info"),
		OTelEndpoint:    getenv("OTEL_ENDPOINT", ""),
		ServiceName:     getenv("SERVICE_NAME", "smoothie-kiosk"),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the values are usable.
func (c Config) Validate() error {
	if c.HTTPAddr == "" {
		return errors.New("HTTP_ADDR must not be empty")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("SHUTDOWN_TIMEOUT must be > 0")
	}
	if c.QueueCapacity < 0 {
		return errors.New("QUEUE_CAPACITY must be >= 0")
	}
	if c.ResultWait < 0 {
		return errors.New("RESULT_WAIT_MS must be >= 0")
	}
	if c.ReportCron != "" {
		if _, err := cron.ParseStandard(c.ReportCron); err != nil {
			return fmt.Errorf("REPORT_CRON: %w", err)
		}
	}
	if _, err := time.LoadLocation(c.ReportTimezone); err != nil {
		return fmt.Errorf("REPORT_TIMEZONE: %w", err)
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	if c.ServiceName == "" {
		return errors.New("SERVICE_NAME must not be empty")
	}
	return nil
}
