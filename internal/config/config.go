package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"rackrent/internal/engine"
)

type APIConfig struct {
	Addr        string
	DatabaseURL string
	SavePath    string
	SaveEvery   time.Duration

	Engine engine.Config
}

type CLIConfig struct {
	APIBaseURL string
}

// LoadAPIFromEnv assembles the server configuration. DATABASE_URL is
// optional: without it, snapshots go to the file at RACKRENT_SAVE_PATH.
func LoadAPIFromEnv() APIConfig {
	addr := os.Getenv("PORT")
	if addr != "" {
		if !strings.HasPrefix(addr, ":") {
			addr = ":" + addr
		}
	} else {
		addr = envDefault("RACKRENT_API_ADDR", ":8080")
	}

	return APIConfig{
		Addr:        addr,
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		SavePath:    envDefault("RACKRENT_SAVE_PATH", "rackrent-save.json"),
		SaveEvery:   envDurationDefault("RACKRENT_SAVE_EVERY", time.Minute),
		Engine: engine.Config{
			CompanyName:         envDefault("RACKRENT_COMPANY_NAME", "Rackrent Hosting"),
			StartingMoneyCents:  envCreditsDefault("RACKRENT_STARTING_CREDITS", 10_000),
			StartingSkillPoints: envIntDefault("RACKRENT_STARTING_SKILL_POINTS", 3),
			DayLength:           envDurationDefault("RACKRENT_DAY_LENGTH", time.Minute),
			BillingTickEvery:    envDurationDefault("RACKRENT_BILLING_TICK_EVERY", 5*time.Second),
			ProvisionWorkers:    envIntDefault("RACKRENT_PROVISION_WORKERS", 4),
			ProvisionDelayMin:   envDurationDefault("RACKRENT_PROVISION_DELAY_MIN", 5*time.Second),
			ProvisionDelayMax:   envDurationDefault("RACKRENT_PROVISION_DELAY_MAX", 60*time.Second),
			EventMinDelay:       envDurationDefault("RACKRENT_EVENT_MIN_DELAY", 30*time.Second),
			EventMaxDelay:       envDurationDefault("RACKRENT_EVENT_MAX_DELAY", 2*time.Minute),
			EventProbability:    envFloatDefault("RACKRENT_EVENT_PROBABILITY", 0.70),
			GeneratorEnabled:    envBoolDefault("RACKRENT_GENERATOR_ENABLED", true),
			GeneratorEvery:      envDurationDefault("RACKRENT_GENERATOR_EVERY", 20*time.Second),
		},
	}
}

func LoadCLIFromEnv() CLIConfig {
	return CLIConfig{
		APIBaseURL: strings.TrimRight(envDefault("RACK_API_BASE_URL", "http://localhost:8080"), "/"),
	}
}

func envDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envDurationDefault(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envFloatDefault(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envBoolDefault(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envIntDefault(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envCreditsDefault(key string, fallbackCredits int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallbackCredits * engine.CentsPerCredit
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallbackCredits * engine.CentsPerCredit
	}
	return n * engine.CentsPerCredit
}
