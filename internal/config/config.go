// Package config reads gymledger settings from the process environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Environment variable names.
const (
	EnvStorageDriver  = "GYMLEDGER_STORAGE_DRIVER"
	EnvDataFile       = "GYMLEDGER_DATA_FILE"
	EnvSQLitePath     = "GYMLEDGER_SQLITE_PATH"
	EnvPostgresDSN    = "GYMLEDGER_POSTGRES_DSN"
	EnvCapacity       = "GYMLEDGER_CAPACITY"
	EnvNearExpiryDays = "GYMLEDGER_NEAR_EXPIRY_DAYS"
	EnvLogLevel       = "GYMLEDGER_LOG_LEVEL"
	EnvLogFormat      = "GYMLEDGER_LOG_FORMAT"
	EnvMetricsFile    = "GYMLEDGER_METRICS_FILE"
	EnvTraceFile      = "GYMLEDGER_TRACE_FILE"
	EnvBackupDriver   = "GYMLEDGER_BACKUP_DRIVER"
	EnvBackupFSRoot   = "GYMLEDGER_BACKUP_FS_ROOT"
	EnvS3Bucket       = "GYMLEDGER_BACKUP_S3_BUCKET"
	EnvS3Region       = "GYMLEDGER_BACKUP_S3_REGION"
	EnvS3Endpoint     = "GYMLEDGER_BACKUP_S3_ENDPOINT"
	EnvS3PathStyle    = "GYMLEDGER_BACKUP_S3_PATH_STYLE"
)

// Defaults applied when a variable is unset or blank.
const (
	DefaultStorageDriver  = "text"
	DefaultDataFile       = "members.txt"
	DefaultSQLitePath     = "gymledger.db"
	DefaultCapacity       = 100
	DefaultNearExpiryDays = 30
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "text"
	DefaultBackupDriver   = "none"
	DefaultBackupFSRoot   = "backups"
	DefaultS3Region       = "us-east-1"
)

// ErrInvalid is wrapped by every validation failure returned from Load.
var ErrInvalid = errors.New("invalid configuration")

// Config is the resolved runtime configuration.
type Config struct {
	Storage        Storage
	Capacity       int
	NearExpiryDays int
	Log            Log
	MetricsFile    string
	TraceFile      string
	Backup         Backup
}

// Storage selects the durable member store.
type Storage struct {
	Driver      string
	DataFile    string
	SQLitePath  string
	PostgresDSN string
}

// Log configures the logrus logger.
type Log struct {
	Level  string
	Format string
}

// Backup configures the optional snapshot store.
type Backup struct {
	Driver string
	FSRoot string
	S3     S3
}

// S3 holds object store coordinates. Credentials come from the AWS default
// chain.
type S3 struct {
	Bucket    string
	Region    string
	Endpoint  string
	PathStyle bool
}

// Load reads the configuration from the process environment.
func Load() (Config, error) {
	return FromLookup(os.LookupEnv)
}

// FromLookup resolves the configuration through lookup, which has the
// signature of os.LookupEnv.
func FromLookup(lookup func(string) (string, bool)) (Config, error) {
	get := func(key, fallback string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return fallback
	}
	var errs []error
	getInt := func(key string, fallback, lowest int) int {
		raw := get(key, "")
		if raw == "" {
			return fallback
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < lowest {
			errs = append(errs, fmt.Errorf("%w: %s=%q must be an integer >= %d", ErrInvalid, key, raw, lowest))
			return fallback
		}
		return n
	}
	getBool := func(key string) bool {
		raw := get(key, "")
		if raw == "" {
			return false
		}
		b, err := strconv.ParseBool(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: %s=%q is not a boolean", ErrInvalid, key, raw))
		}
		return b
	}
	oneOf := func(key, value string, allowed ...string) string {
		v := strings.ToLower(value)
		for _, a := range allowed {
			if v == a {
				return v
			}
		}
		errs = append(errs, fmt.Errorf("%w: %s=%q must be one of %s", ErrInvalid, key, value, strings.Join(allowed, "|")))
		return v
	}

	cfg := Config{
		Storage: Storage{
			Driver:      oneOf(EnvStorageDriver, get(EnvStorageDriver, DefaultStorageDriver), "text", "sqlite", "postgres", "memory"),
			DataFile:    get(EnvDataFile, DefaultDataFile),
			SQLitePath:  get(EnvSQLitePath, DefaultSQLitePath),
			PostgresDSN: get(EnvPostgresDSN, ""),
		},
		Capacity:       getInt(EnvCapacity, DefaultCapacity, 1),
		NearExpiryDays: getInt(EnvNearExpiryDays, DefaultNearExpiryDays, 1),
		Log: Log{
			Level:  oneOf(EnvLogLevel, get(EnvLogLevel, DefaultLogLevel), "debug", "info", "warn", "warning", "error"),
			Format: oneOf(EnvLogFormat, get(EnvLogFormat, DefaultLogFormat), "text", "json"),
		},
		MetricsFile: get(EnvMetricsFile, ""),
		TraceFile:   get(EnvTraceFile, ""),
		Backup: Backup{
			Driver: oneOf(EnvBackupDriver, get(EnvBackupDriver, DefaultBackupDriver), "none", "fs", "s3", "memory"),
			FSRoot: get(EnvBackupFSRoot, DefaultBackupFSRoot),
			S3: S3{
				Bucket:    get(EnvS3Bucket, ""),
				Region:    get(EnvS3Region, DefaultS3Region),
				Endpoint:  get(EnvS3Endpoint, ""),
				PathStyle: getBool(EnvS3PathStyle),
			},
		},
	}
	if cfg.Backup.Driver == "s3" && cfg.Backup.S3.Bucket == "" {
		errs = append(errs, fmt.Errorf("%w: %s is required when %s=s3", ErrInvalid, EnvS3Bucket, EnvBackupDriver))
	}
	if cfg.Storage.Driver == "postgres" && cfg.Storage.PostgresDSN == "" {
		errs = append(errs, fmt.Errorf("%w: %s is required when %s=postgres", ErrInvalid, EnvPostgresDSN, EnvStorageDriver))
	}
	if len(errs) > 0 {
		return cfg, errors.Join(errs...)
	}
	return cfg, nil
}
