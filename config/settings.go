package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Attribution methods
const (
	AttributionLastClick  = "last_click"
	AttributionFirstClick = "first_click"
)

// Settings holds the read-only program configuration. Loaded once at startup
// and passed explicitly to every component that needs it.
type Settings struct {
	SiteURL               string
	Currency              string
	CommissionRate        float64
	CommissionType        string
	AutoApproveAffiliates bool
	MinimumPayout         float64
	CookieDuration        int // days
	CookieSecret          string
	EnableMultiLevel      bool
	MaxLevels             int
	LevelRates            map[int]float64 // level (2+) -> percentage
	TrackLoggedInUsers    bool
	AttributionMethod     string
}

// LoadSettings reads configuration from environment variables, applying the
// documented defaults for anything unset.
func LoadSettings() *Settings {
	s := &Settings{
		SiteURL:               getEnv("SITE_URL", "http://localhost:8080"),
		Currency:              getEnv("CURRENCY", "USD"),
		CommissionRate:        getEnvFloat("COMMISSION_RATE", 10),
		CommissionType:        getEnv("COMMISSION_TYPE", "percentage"),
		AutoApproveAffiliates: getEnvBool("AUTO_APPROVE_AFFILIATES", false),
		MinimumPayout:         getEnvFloat("MINIMUM_PAYOUT", 50),
		CookieDuration:        getEnvInt("COOKIE_DURATION_DAYS", 30),
		CookieSecret:          getEnv("COOKIE_SECRET", ""),
		EnableMultiLevel:      getEnvBool("ENABLE_MULTI_LEVEL", false),
		MaxLevels:             getEnvInt("MAX_LEVELS", 3),
		TrackLoggedInUsers:    getEnvBool("TRACK_LOGGED_IN_USERS", true),
		AttributionMethod:     getEnv("ATTRIBUTION_METHOD", AttributionLastClick),
	}

	s.SiteURL = strings.TrimRight(s.SiteURL, "/")

	// Per-level cascade rates: LEVEL_2_RATE, LEVEL_3_RATE, ...
	s.LevelRates = map[int]float64{2: 5, 3: 2}
	for level := 2; level <= s.MaxLevels; level++ {
		key := fmt.Sprintf("LEVEL_%d_RATE", level)
		if v := os.Getenv(key); v != "" {
			if rate, err := strconv.ParseFloat(v, 64); err == nil {
				s.LevelRates[level] = rate
			}
		}
	}

	return s
}

// LevelRate returns the configured cascade percentage for an upline level,
// zero when the level has no rate.
func (s *Settings) LevelRate(level int) float64 {
	return s.LevelRates[level]
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		switch strings.ToLower(v) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
	}
	return fallback
}
