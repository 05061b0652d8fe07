// Package config handles server and game configuration
package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/MJE43/photohunt/internal/engine"
)

const prefix = "PHOTOHUNT_"

type Config struct {
	HTTPAddr       string
	AllowedOrigins []string
	DatasetURL     string
	DatasetPath    string
	ImageRoot      string
	ImageBaseURL   string
	DBPath         string
	TokenPath      string
	LogLevel       slog.Level
	MaxSessions    int
	Game           engine.Settings
}

// Load reads an optional .env file, then the environment.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	g := engine.DefaultSettings()
	g.InitialBudget = getEnvDuration("ROUND_BUDGET", g.InitialBudget)
	g.Pellets = getEnvInt("PELLETS", g.Pellets)
	g.MissPenalty = getEnvDuration("MISS_PENALTY", g.MissPenalty)
	g.DecayRate = getEnvFloat("DECAY_RATE", g.DecayRate)
	g.DecayFloor = getEnvFloat("DECAY_FLOOR", g.DecayFloor)
	g.SearchStart = getEnvInt("SEARCH_START", g.SearchStart)
	g.SearchFloor = getEnvInt("SEARCH_FLOOR", g.SearchFloor)
	g.SearchInterval = getEnvDuration("SEARCH_INTERVAL", g.SearchInterval)
	g.HintsPerRound = getEnvInt("HINTS", g.HintsPerRound)
	g.HintCooldown = getEnvDuration("HINT_COOLDOWN", g.HintCooldown)
	g.HintBonus = getEnvInt("HINT_BONUS", g.HintBonus)
	g.PelletBonus = getEnvInt("PELLET_BONUS", g.PelletBonus)
	g.RevealInterval = getEnvDuration("REVEAL_INTERVAL", g.RevealInterval)
	g.ImageTimeout = getEnvDuration("IMAGE_TIMEOUT", g.ImageTimeout)
	g.HighScoreCapacity = getEnvInt("HIGH_SCORES", g.HighScoreCapacity)
	g.GameID = getEnv("GAME_ID", g.GameID)

	return &Config{
		HTTPAddr:       getEnv("HTTP_ADDR", ":8077"),
		AllowedOrigins: getEnvList("ALLOWED_ORIGINS", []string{"*"}),
		DatasetURL:     getEnv("DATASET_URL", ""),
		DatasetPath:    getEnv("DATASET_PATH", "data/sets.json"),
		ImageRoot:      getEnv("IMAGE_ROOT", "."),
		ImageBaseURL:   getEnv("IMAGE_BASE_URL", ""),
		DBPath:         getEnv("DB_PATH", "photohunt.db"),
		TokenPath:      getEnv("TOKEN_PATH", ".photohunt-admin-token"),
		LogLevel:       getEnvLevel("LOG_LEVEL", slog.LevelInfo),
		MaxSessions:    getEnvInt("MAX_SESSIONS", 64),
		Game:           g,
	}, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(prefix + key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(prefix + key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(prefix + key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(prefix + key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getEnvLevel(key string, def slog.Level) slog.Level {
	if v := os.Getenv(prefix + key); v != "" {
		var l slog.Level
		if err := l.UnmarshalText([]byte(v)); err == nil {
			return l
		}
	}
	return def
}

func getEnvList(key string, def []string) []string {
	if v := os.Getenv(prefix + key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if t := strings.TrimSpace(p); t != "" {
				result = append(result, t)
			}
		}
		return result
	}
	return def
}
