package store

import (
	"os"
	"time"
)

const (
	DriverMongo  = "mongo"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Config selects and parameterizes the persistence backend.
type Config struct {
	Driver     string
	URL        string
	Database   string
	SQLitePath string
	Timeout    time.Duration
}

func LoadConfig() Config {
	return Config{
		Driver:     getenv("STORE_DRIVER", DriverMongo),
		URL:        getenv("DATABASE_URL", ""),
		Database:   getenv("DATABASE_NAME", "proctorlink"),
		SQLitePath: getenv("SQLITE_PATH", "proctorlink.db"),
		Timeout:    getDuration("STORE_TIMEOUT", 10*time.Second),
	}
}

func getenv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
