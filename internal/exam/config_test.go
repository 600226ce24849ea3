package exam

import (
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("FRONTEND_BASE_URL", "https://proctor.example.com")
	t.Setenv("PASSWORD_HASH", "bcrypt")
	t.Setenv("BCRYPT_COST", "12")
	t.Setenv("SLUG_ATTEMPTS", "not-a-number")
	t.Setenv("EXPORT_TZ", "Asia/Tokyo")

	cfg := LoadConfig()
	if cfg.FrontendBaseURL != "https://proctor.example.com" || cfg.HashAlgorithm != "bcrypt" || cfg.BcryptCost != 12 {
		t.Errorf("LoadConfig() = %+v", cfg)
	}
	if cfg.SlugAttempts != 3 {
		t.Errorf("SlugAttempts = %d, want default 3", cfg.SlugAttempts)
	}
	if cfg.Argon2Memory != 64*1024 {
		t.Errorf("Argon2Memory = %d", cfg.Argon2Memory)
	}
	if loc := cfg.location(); loc.String() != "Asia/Tokyo" {
		t.Errorf("location() = %v", loc)
	}
}

func TestConfigLocationFallback(t *testing.T) {
	if loc := (Config{ExportTimeZone: "Not/AZone"}).location(); loc != time.Local {
		t.Errorf("location() = %v, want Local", loc)
	}
}

func TestLoadConfigRejectsNonPositive(t *testing.T) {
	t.Setenv("ARGON2_THREADS", "0")
	t.Setenv("ARGON2_TIME", "-1")
	t.Setenv("ARGON2_MEMORY", "-65536")
	t.Setenv("BCRYPT_COST", "99")
	t.Setenv("SLUG_ATTEMPTS", "-2")

	cfg := LoadConfig()
	if cfg.Argon2Threads != 4 || cfg.Argon2Time != 1 || cfg.Argon2Memory != 64*1024 {
		t.Errorf("argon2 settings = %d/%d/%d, want defaults", cfg.Argon2Threads, cfg.Argon2Time, cfg.Argon2Memory)
	}
	if cfg.BcryptCost != 31 {
		t.Errorf("BcryptCost = %d, want capped at 31", cfg.BcryptCost)
	}
	if cfg.SlugAttempts != 3 {
		t.Errorf("SlugAttempts = %d, want 3", cfg.SlugAttempts)
	}
}
