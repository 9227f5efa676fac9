// Package config loads service settings from the environment and the
// datasource catalog from a JSON file.
package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Addr            string
	LogLevel        string
	CatalogPath     string
	RedisAddr       string // empty disables the shared sample-cache tier
	SampleCacheSize int
	CoverageTimeout time.Duration
}

func FromEnv() Config {
	return Config{
		Addr:            getenv("ADDR", ":8091"),
		LogLevel:        getenv("LOG_LEVEL", "info"),
		CatalogPath:     getenv("CATALOG_PATH", "datasources.json"),
		RedisAddr:       getenv("REDIS_ADDR", ""),
		SampleCacheSize: getint("SAMPLE_CACHE_SIZE", 4096),
		CoverageTimeout: getduration("COVERAGE_TIMEOUT", 30*time.Second),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
