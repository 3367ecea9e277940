package environment_variables

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
)

type EnvironmentVariable struct {
	DB_POSTGRESQL_WRITE_DSN string
	DB_POSTGRESQL_READ1_DSN string

	CACHE_TYPE     string
	CACHE_URL      string
	CACHE_PASSWORD string
	CACHE_DB       string

	LEDGER_API_URL   string
	ADMIN_API_SECRET string

	DEFAULT_VIEW_TARGET string
	INSTANCE_NAME       string

	STRICT_SEQUENCE_CHECK bool

	WORKER_COUNT                 int
	WORKER_POLL_INTERVAL_SECONDS int
	WORKER_BATCH_SIZE            int

	RETRY_MAX_ATTEMPTS         int
	RETRY_BASE_BACKOFF_SECONDS int
	RETRY_MAX_BACKOFF_SECONDS  int

	LEASE_TTL_SECONDS int
}

func (ev *EnvironmentVariable) LoadFromEnv() {
	v := reflect.ValueOf(ev).Elem()
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := t.Field(i)
		envKey := field.Name
		envValue := os.Getenv(envKey)
		if envValue == "" {
			fmt.Printf("Missing SYSENV: %s\n", envKey)
			continue
		}
		switch v.Field(i).Kind() {
		case reflect.String:
			v.Field(i).SetString(envValue)
		case reflect.Bool:
			if parsed, err := strconv.ParseBool(envValue); err == nil {
				v.Field(i).SetBool(parsed)
			}
		case reflect.Int:
			if parsed, err := strconv.Atoi(envValue); err == nil {
				v.Field(i).SetInt(int64(parsed))
			}
		}
	}
	ev.applyDefaults()
}

func (ev *EnvironmentVariable) applyDefaults() {
	if ev.DEFAULT_VIEW_TARGET == "" {
		ev.DEFAULT_VIEW_TARGET = "primary"
	}
	if ev.INSTANCE_NAME == "" {
		hostname, err := os.Hostname()
		if err != nil || hostname == "" {
			hostname = "position-cache"
		}
		ev.INSTANCE_NAME = hostname
	}
	if ev.WORKER_COUNT <= 0 {
		ev.WORKER_COUNT = 4
	}
	if ev.WORKER_POLL_INTERVAL_SECONDS <= 0 {
		ev.WORKER_POLL_INTERVAL_SECONDS = 5
	}
	if ev.WORKER_BATCH_SIZE <= 0 {
		ev.WORKER_BATCH_SIZE = 20
	}
	if ev.RETRY_MAX_ATTEMPTS <= 0 {
		ev.RETRY_MAX_ATTEMPTS = 8
	}
	if ev.RETRY_BASE_BACKOFF_SECONDS <= 0 {
		ev.RETRY_BASE_BACKOFF_SECONDS = 10
	}
	if ev.RETRY_MAX_BACKOFF_SECONDS <= 0 {
		ev.RETRY_MAX_BACKOFF_SECONDS = 3600
	}
	if ev.LEASE_TTL_SECONDS <= 0 {
		ev.LEASE_TTL_SECONDS = 60
	}
}

// Singleton
var EnvironmentVariables = EnvironmentVariable{}
