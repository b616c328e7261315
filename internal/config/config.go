// Package config builds the single immutable configuration value shared by
// every component. It is constructed once in main and passed down.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/ovaphlow/pitchfork/service-hackbot-go/internal/tabular"
	"github.com/ovaphlow/pitchfork/service-hackbot-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-hackbot-go/pkg/utilities"
)

const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

type Config struct {
	Database database.Config
	Log      utilities.Config

	// LedgerBackend selects the ledger store: postgres or memory.
	LedgerBackend string
	HTTPAddr      string

	// TokenSecret verifies bearer tokens minted by the chat adapter.
	TokenSecret []byte
	// Devs are operator ids that are always privileged.
	Devs     []int64
	Presence string

	CatalogSource         string
	CatalogReloadInterval time.Duration
	RosterSource          string
	RosterReloadInterval  time.Duration

	PageSize int
	SeedMin  int64
	SeedMax  int64

	// S3 configures object storage sources (AWS S3 or an S3 compatible
	// endpoint such as Cloudflare R2).
	S3 tabular.S3Config
}

// Load reads a .env file if present and builds the Config from the
// environment.
func Load() (Config, error) {
	// best-effort: if no .env exists, continue with the real environment
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config using the given lookup function.
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Config{
		Database:      database.ConfigFromEnv(getenv),
		Log:           utilities.ConfigFromEnv(getenv),
		LedgerBackend: strings.ToLower(getenv("LEDGER_BACKEND")),
		HTTPAddr:      getenv("HTTP_ADDR"),
		TokenSecret:   []byte(getenv("BOT_TOKEN_SECRET")),
		Presence:      getenv("BOT_PRESENCE"),
		CatalogSource: getenv("CATALOG_SOURCE"),
		RosterSource:  getenv("ROSTER_SOURCE"),
		PageSize:      10,
		SeedMin:       0,
		SeedMax:       200,
		S3: tabular.S3Config{
			Endpoint:        getenv("S3_ENDPOINT"),
			Region:          getenv("S3_REGION"),
			AccessKeyID:     getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: getenv("S3_SECRET_ACCESS_KEY"),
		},
	}
	if cfg.LedgerBackend == "" {
		cfg.LedgerBackend = BackendPostgres
	}
	if cfg.LedgerBackend != BackendPostgres && cfg.LedgerBackend != BackendMemory {
		return Config{}, fmt.Errorf("LEDGER_BACKEND: unknown backend %q", cfg.LedgerBackend)
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = "0.0.0.0:8431"
	}
	if cfg.Presence == "" {
		cfg.Presence = "https://holiday.foothillcs.club"
	}
	if cfg.S3.Region == "" {
		cfg.S3.Region = "auto"
	}

	devs, err := parseIDList(getenv("BOT_DEVS"))
	if err != nil {
		return Config{}, fmt.Errorf("BOT_DEVS: %w", err)
	}
	cfg.Devs = devs

	if cfg.CatalogReloadInterval, err = durationEnv(getenv, "CATALOG_RELOAD_INTERVAL"); err != nil {
		return Config{}, err
	}
	if cfg.RosterReloadInterval, err = durationEnv(getenv, "ROSTER_RELOAD_INTERVAL"); err != nil {
		return Config{}, err
	}
	if v := getenv("LEADERBOARD_PAGE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return Config{}, fmt.Errorf("LEADERBOARD_PAGE_SIZE: must be a positive integer, got %q", v)
		}
		cfg.PageSize = n
	}
	if cfg.SeedMin, err = int64Env(getenv, "SEED_MIN", cfg.SeedMin); err != nil {
		return Config{}, err
	}
	if cfg.SeedMax, err = int64Env(getenv, "SEED_MAX", cfg.SeedMax); err != nil {
		return Config{}, err
	}
	if cfg.SeedMin > cfg.SeedMax {
		return Config{}, fmt.Errorf("SEED_MIN %d greater than SEED_MAX %d", cfg.SeedMin, cfg.SeedMax)
	}
	return cfg, nil
}

func durationEnv(getenv func(string) string, key string) (time.Duration, error) {
	v := getenv(key)
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%s: invalid duration %q", key, v)
	}
	return d, nil
}

func int64Env(getenv func(string) string, key string, def int64) (int64, error) {
	v := getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func parseIDList(s string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := utilities.ParseUserID(part)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
