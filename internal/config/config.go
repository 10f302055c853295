// Package config collects and exposes the configuration for the whole
// gateway bot process. It:
//  1. reads environment variables from a .env file (via godotenv),
//  2. normalizes and validates input values,
//  3. derives secondary structures (e.g. the authorized-channel set, plan table),
//  4. exposes thread-safe access to the result through a package-level singleton.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/joho/godotenv"
)

// DurationUnit is one of the fixed units the subscription engine understands
// when translating a plan or an admin grant into an expiry timestamp.
type DurationUnit string

const (
	UnitMinutes DurationUnit = "min"
	UnitHours   DurationUnit = "hours"
	UnitDays    DurationUnit = "days"
	UnitWeeks   DurationUnit = "weeks"
	UnitMonth   DurationUnit = "month"
	UnitYear    DurationUnit = "year"
	UnitDecades DurationUnit = "decades"
)

// Plan describes one purchasable subscription tier, keyed by a short letter.
type Plan struct {
	Key      string
	Label    string
	Stars    int
	Duration int
	Unit     DurationUnit
}

// EnvConfig holds every operational setting read from the environment.
type EnvConfig struct {
	APIID   int
	APIHash string
	BotToken string

	SessionString string

	MongoURI string
	MongoDB  string

	AuthChannels []int64

	OwnerID   int64
	SudoUsers []int64

	Workers int
	Port    int
	BaseURL string

	FreemiumLimit int
	PremiumLimit  int

	MasterKey string
	IVKey     string

	ForceSub int64

	LogGroup int64

	UpstreamRepo   string
	UpstreamBranch string

	YTCookies    string
	InstaCookies string

	LogLevel string

	DataDir string

	Plans map[string]Plan
}

// Config is the validated, immutable-after-load snapshot of EnvConfig plus
// soft warnings accumulated while reading it.
type Config struct {
	Env      EnvConfig
	warnings []string
	mu       sync.RWMutex
}

const (
	defaultLogLevel      = "info"
	defaultWorkers       = 4
	defaultPort          = 8080
	defaultFreemiumLimit = 5
	defaultPremiumLimit  = 0
	defaultDataDir       = "data"

	defaultPlanDStars, defaultPlanDDuration, defaultPlanDUnit = 15, 1, UnitDays
	defaultPlanWStars, defaultPlanWDuration, defaultPlanWUnit = 75, 1, UnitWeeks
	defaultPlanMStars, defaultPlanMDuration, defaultPlanMUnit = 250, 1, UnitMonth
)

var (
	cfgInstance *Config
	cfgDone     bool
)

// Load is the entry point for initializing the global configuration. First
// call reads the .env file (if present; missing file is not fatal, only
// actual environment variables are required) and builds EnvConfig. A second
// call returns an error to avoid racing the configuration at startup.
func Load(envPath string) error {
	if cfgDone {
		return errors.New("config already loaded")
	}
	if cfgInstance == nil {
		cfgInstance = &Config{}
	}
	cfgInstance.mu.Lock()
	defer cfgInstance.mu.Unlock()

	newCfg, err := loadConfig(envPath)
	cfgInstance = newCfg
	cfgDone = true
	return err
}

func loadConfig(envPath string) (*Config, error) {
	loadDotEnv(envPath)

	apiID, err := parseRequiredInt("API_ID")
	if err != nil {
		return nil, err
	}
	apiHash := strings.TrimSpace(os.Getenv("API_HASH"))
	if apiHash == "" {
		return nil, errors.New("env API_HASH must be set")
	}
	botToken := strings.TrimSpace(os.Getenv("BOT_TOKEN"))
	if botToken == "" {
		return nil, errors.New("env BOT_TOKEN must be set")
	}

	masterKey := strings.TrimSpace(os.Getenv("MASTER_KEY"))
	if masterKey == "" {
		return nil, errors.New("env MASTER_KEY must be set")
	}
	ivKey := strings.TrimSpace(os.Getenv("IV_KEY"))
	if ivKey == "" {
		return nil, errors.New("env IV_KEY must be set")
	}

	mongoURI := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if mongoURI == "" {
		return nil, errors.New("env DATABASE_URL must be set")
	}

	var warnings []string

	mongoDB := sanitizeString("MONGO_DB", os.Getenv("MONGO_DB"), "gatewaybot", &warnings)
	logLevel := sanitizeLogLevel(os.Getenv("LOG_LEVEL"), &warnings)
	workers := parseIntDefault("WORKERS", defaultWorkers, greaterThanZero, &warnings)
	port := parseIntDefault("PORT", defaultPort, greaterThanZero, &warnings)
	baseURL := sanitizeString("BASE_URL", os.Getenv("BASE_URL"), "http://localhost:8080", &warnings)
	freemiumLimit := parseIntDefault("FREEMIUM_LIMIT", defaultFreemiumLimit, nonNegative, &warnings)
	premiumLimit := parseIntDefault("PREMIUM_LIMIT", defaultPremiumLimit, nonNegative, &warnings)
	dataDir := sanitizeString("DATA_DIR", os.Getenv("DATA_DIR"), defaultDataDir, &warnings)

	ownerID := int64(parseIntDefault("OWNER_ID", 0, nil, &warnings))
	sudoUsers := parseInt64List(os.Getenv("SUDO_USERS"), " ")
	authChannels := parseInt64List(os.Getenv("AUTH_CHANNEL"), ",")
	forceSub := int64(parseIntDefault("FORCE_SUB", 0, nil, &warnings))
	logGroup := int64(parseIntDefault("LOG_GROUP", 0, nil, &warnings))

	env := EnvConfig{
		APIID:          apiID,
		APIHash:        apiHash,
		BotToken:       botToken,
		SessionString:  strings.TrimSpace(os.Getenv("SESSION_STRING")),
		MongoURI:       mongoURI,
		MongoDB:        mongoDB,
		AuthChannels:   authChannels,
		OwnerID:        ownerID,
		SudoUsers:      sudoUsers,
		Workers:        workers,
		Port:           port,
		BaseURL:        baseURL,
		FreemiumLimit:  freemiumLimit,
		PremiumLimit:   premiumLimit,
		MasterKey:      masterKey,
		IVKey:          ivKey,
		ForceSub:       forceSub,
		LogGroup:       logGroup,
		UpstreamRepo:   strings.TrimSpace(os.Getenv("UPSTREAM_REPO")),
		UpstreamBranch: sanitizeString("UPSTREAM_BRANCH", os.Getenv("UPSTREAM_BRANCH"), "main", &warnings),
		YTCookies:      strings.TrimSpace(os.Getenv("YT_COOKIES")),
		InstaCookies:   strings.TrimSpace(os.Getenv("INSTA_COOKIES")),
		LogLevel:       logLevel,
		DataDir:        dataDir,
		Plans:          loadPlans(&warnings),
	}

	return &Config{Env: env, warnings: warnings}, nil
}

// loadDotEnv loads envPath if it exists; the file is optional, so a missing
// one is not an error as long as the required variables are set elsewhere.
func loadDotEnv(envPath string) {
	if envPath == "" {
		return
	}
	if _, err := os.Stat(envPath); err == nil {
		_ = godotenv.Load(envPath)
	}
}

func loadPlans(warnings *[]string) map[string]Plan {
	plans := map[string]Plan{
		"d": {
			Key: "d", Label: "Daily",
			Stars:    parseIntDefault("PLAN_D_S", defaultPlanDStars, greaterThanZero, warnings),
			Duration: parseIntDefault("PLAN_D_DU", defaultPlanDDuration, greaterThanZero, warnings),
			Unit:     sanitizeUnit("PLAN_D_U", os.Getenv("PLAN_D_U"), defaultPlanDUnit, warnings),
		},
		"w": {
			Key: "w", Label: "Weekly",
			Stars:    parseIntDefault("PLAN_W_S", defaultPlanWStars, greaterThanZero, warnings),
			Duration: parseIntDefault("PLAN_W_DU", defaultPlanWDuration, greaterThanZero, warnings),
			Unit:     sanitizeUnit("PLAN_W_U", os.Getenv("PLAN_W_U"), defaultPlanWUnit, warnings),
		},
		"m": {
			Key: "m", Label: "Monthly",
			Stars:    parseIntDefault("PLAN_M_S", defaultPlanMStars, greaterThanZero, warnings),
			Duration: parseIntDefault("PLAN_M_DU", defaultPlanMDuration, greaterThanZero, warnings),
			Unit:     sanitizeUnit("PLAN_M_U", os.Getenv("PLAN_M_U"), defaultPlanMUnit, warnings),
		},
	}
	if l := strings.TrimSpace(os.Getenv("PLAN_D_L")); l != "" {
		p := plans["d"]
		p.Label = l
		plans["d"] = p
	}
	if l := strings.TrimSpace(os.Getenv("PLAN_W_L")); l != "" {
		p := plans["w"]
		p.Label = l
		plans["w"] = p
	}
	if l := strings.TrimSpace(os.Getenv("PLAN_M_L")); l != "" {
		p := plans["m"]
		p.Label = l
		plans["m"] = p
	}
	return plans
}

// Warnings returns the warnings accumulated while loading .env (e.g. when a
// default was substituted). Returns a copy.
func Warnings() []string {
	cfgInstance.mu.RLock()
	defer cfgInstance.mu.RUnlock()
	result := make([]string, len(cfgInstance.warnings))
	copy(result, cfgInstance.warnings)
	return result
}

// Env returns the EnvConfig snapshot from the global singleton.
func Env() EnvConfig {
	return cfgInstance.Env
}

func parseRequiredInt(name string) (int, error) {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return 0, fmt.Errorf("env %s must be set", name)
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("env %s must be a valid integer: %w", name, err)
	}
	return v, nil
}

func parseIntDefault(name string, defaultVal int, validator func(int) bool, warnings *[]string) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		appendWarningf(warnings, "env %s value %q is not a valid integer; using default %d", name, value, defaultVal)
		return defaultVal
	}
	if validator != nil && !validator(v) {
		appendWarningf(warnings, "env %s value %d does not satisfy constraints; using default %d", name, v, defaultVal)
		return defaultVal
	}
	return v
}

func parseInt64List(raw, sep string) []int64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, sep)
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}

func appendWarningf(warnings *[]string, format string, args ...any) {
	if warnings == nil {
		return
	}
	*warnings = append(*warnings, fmt.Sprintf(format, args...))
}

func greaterThanZero(v int) bool { return v > 0 }
func nonNegative(v int) bool     { return v >= 0 }

func sanitizeLogLevel(level string, warnings *[]string) string {
	lvl := strings.ToLower(strings.TrimSpace(level))
	switch lvl {
	case "debug", "info", "warn", "error":
		return lvl
	case "":
		return defaultLogLevel
	default:
		appendWarningf(warnings, "env LOG_LEVEL value %q is invalid; using default %q", level, defaultLogLevel)
		return defaultLogLevel
	}
}

func sanitizeString(name, value, fallback string, warnings *[]string) string {
	v := strings.TrimSpace(value)
	if v == "" {
		appendWarningf(warnings, "env %s is not set; using default %q", name, fallback)
		return fallback
	}
	return v
}

func sanitizeUnit(name, value string, fallback DurationUnit, warnings *[]string) DurationUnit {
	v := DurationUnit(strings.ToLower(strings.TrimSpace(value)))
	switch v {
	case UnitMinutes, UnitHours, UnitDays, UnitWeeks, UnitMonth, UnitYear, UnitDecades:
		return v
	case "":
		return fallback
	default:
		appendWarningf(warnings, "env %s value %q is invalid; using default %q", name, value, fallback)
		return fallback
	}
}
