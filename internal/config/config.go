package config

import (
	"os"
	"time"
)

const (
	defaultHTTPAddr        = ":8080"
	defaultMySQLDSN        = "root:root@tcp(localhost:3306)/foodorders?parseTime=true"
	defaultRedisAddr       = "localhost:6379"
	defaultShutdownTimeout = 5 * time.Second
)

// Config captures runtime configuration, read from the environment.
type Config struct {
	HTTPAddr        string
	MySQLDSN        string
	RedisAddr       string
	ShutdownTimeout time.Duration
}

func Load() Config {
	return Config{
		HTTPAddr:        getenv("HTTP_ADDR", defaultHTTPAddr),
		MySQLDSN:        getenv("MYSQL_DSN", defaultMySQLDSN),
		RedisAddr:       getenv("REDIS_ADDR", defaultRedisAddr),
		ShutdownTimeout: defaultShutdownTimeout,
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
