package tabular

import (
	"os"
	"strconv"
	"time"
)

const defaultPDFTimeout = 15 * time.Second

// Config holds export document settings.
type Config struct {
	SheetTitle      string
	PDFEnabled      bool
	PDFChromiumPath string
	PDFTimeout      time.Duration
}

func LoadConfig() Config {
	return Config{
		SheetTitle:      getenv("EXPORT_SHEET_TITLE", "Proctor Log"),
		PDFEnabled:      getBool("PDF_ENABLED", true),
		PDFChromiumPath: getenv("PDF_CHROMIUM_PATH", ""),
		PDFTimeout:      getDuration("PDF_TIMEOUT", defaultPDFTimeout),
	}
}

func getenv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
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
