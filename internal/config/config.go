package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the full environment-driven configuration surface described in
// spec §6. Variable names are kept for operational compatibility even where
// a more conventional Go name would read better.
type Config struct {
	Env             string
	Port            int
	DBURL           string
	DBMaxConns      int32

	HTTPMonitorsExecutorInterval time.Duration
	HTTPMonitorsConcurrentTasks  int
	HTTPMonitorsPingConcurrency  int
	HTTPMonitorsSelectLimit      int

	NotificationsConcurrentTasks int
	NotificationsInterval        time.Duration
	NotificationsSelectLimit     int

	DeadTaskRunsCollectorInterval        time.Duration
	DeadTaskRunsCollectorSelectLimit      int
	DeadTaskRunsCollectorConcurrentTasks  int

	TaskCollectorsInterval   time.Duration
	TaskCollectorsSelectLimit int

	BrowserServiceGRPCAddress string

	WorkerHealthAddr string
}

func Load() Config {
	env := getEnv("APP_ENV", "dev")
	port := getEnvInt("PORT", 8080)
	dbURL := buildDBURL()

	return Config{
		Env:        env,
		Port:       port,
		DBURL:      dbURL,
		DBMaxConns: int32(getEnvInt("DATABASE_MAX_CONNECTIONS", 10)),

		HTTPMonitorsExecutorInterval: getEnvSeconds("HTTP_MONITORS_EXECUTOR_INTERVAL_SECONDS", 2*time.Second),
		HTTPMonitorsConcurrentTasks:  getEnvInt("HTTP_MONITORS_CONCURRENT_TASKS", 2),
		HTTPMonitorsPingConcurrency:  getEnvInt("HTTP_MONITORS_PING_CONCURRENCY", 100),
		HTTPMonitorsSelectLimit:      getEnvInt("HTTP_MONITORS_SELECT_LIMIT", 500),

		NotificationsConcurrentTasks: getEnvInt("NOTIFICATIONS_CONCURRENT_TASKS", 1),
		NotificationsInterval:        getEnvSeconds("NOTIFICATIONS_INTERVAL_SECONDS", 1*time.Second),
		NotificationsSelectLimit:     getEnvInt("NOTIFICATIONS_SELECT_LIMIT", 500),

		DeadTaskRunsCollectorInterval:       getEnvSeconds("DEAD_TASK_RUNS_COLLECTOR_INTERVAL_SECONDS", 10*time.Second),
		DeadTaskRunsCollectorSelectLimit:     getEnvInt("DEAD_TASK_RUNS_COLLECTOR_SELECT_LIMIT", 500),
		DeadTaskRunsCollectorConcurrentTasks: getEnvInt("DEAD_TASK_RUNS_COLLECTOR_CONCURRENT_TASKS", 1),

		TaskCollectorsInterval:    getEnvSeconds("TASK_COLLECTORS_INTERVAL_SECONDS", 1*time.Second),
		TaskCollectorsSelectLimit: getEnvInt("TASK_COLLECTORS_SELECT_LIMIT", 500),

		BrowserServiceGRPCAddress: getEnv("BROWSER_SERVICE_GRPC_ADDRESS", ""),

		WorkerHealthAddr: getEnv("WORKER_HEALTH_ADDR", ":8081"),
	}
}

func buildDBURL() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}

	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "uptimeengine")
	pass := getEnv("DB_PASSWORD", "uptimeengine")
	name := getEnv("DB_NAME", "uptimeengine")
	ssl := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)

		if err != nil {
			fmt.Println(err)
			return fallback
		}

		return num
	}
	return fallback
}

func getEnvSeconds(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil {
			fmt.Println(err)
			return fallback
		}
		return time.Duration(secs) * time.Second
	}
	return fallback
}
