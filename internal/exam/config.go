package exam

import (
	"math"
	"os"
	"strconv"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Config holds exam lifecycle, hashing and export settings.
type Config struct {
	// FrontendBaseURL prefixes short links; empty means the request's own origin.
	FrontendBaseURL string

	// HashAlgorithm is sha256 (deterministic, the default), bcrypt or argon2.
	HashAlgorithm string
	BcryptCost    int
	Argon2Time    uint32
	Argon2Memory  uint32 // KiB
	Argon2Threads uint8

	// SlugAttempts bounds retries when a generated slug collides.
	SlugAttempts int

	// ExportTimeZone renders client timestamps; empty means the server's zone.
	ExportTimeZone string
}

func LoadConfig() Config {
	return Config{
		FrontendBaseURL: getenv("FRONTEND_BASE_URL", ""),
		HashAlgorithm:   getenv("PASSWORD_HASH", string(AlgorithmSHA256)),
		BcryptCost:      getPositive("BCRYPT_COST", bcrypt.DefaultCost, bcrypt.MaxCost),
		Argon2Time:      uint32(getPositive("ARGON2_TIME", 1, math.MaxInt32)),
		Argon2Memory:    uint32(getPositive("ARGON2_MEMORY", 64*1024, math.MaxInt32)),
		Argon2Threads:   uint8(getPositive("ARGON2_THREADS", 4, math.MaxUint8)),
		SlugAttempts:    getPositive("SLUG_ATTEMPTS", 3, 100),
		ExportTimeZone:  getenv("EXPORT_TZ", ""),
	}
}

func (c Config) location() *time.Location {
	if c.ExportTimeZone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.ExportTimeZone)
	if err != nil {
		return time.Local
	}
	return loc
}

func getenv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

// getPositive is getInt for settings that must be at least 1. Values below
// 1 fall back to def; values above ceiling are capped.
func getPositive(key string, def, ceiling int) int {
	v := getInt(key, def)
	if v < 1 {
		return def
	}
	if v > ceiling {
		return ceiling
	}
	return v
}

func getInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
