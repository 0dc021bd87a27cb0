package config

import (
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	FRONTEND_ORIGIN string
	POSTGRES_URL    string
	GIN_MODE        string
	GAME_TEMP_DIR   string
	MONTHLY_RNK_DIR string
	DEBUG           bool
}

var Envs Config

// Load reads .env (if present) and snapshots the environment into Envs.
func Load() {
	godotenv.Load()

	Envs = Config{
		FRONTEND_ORIGIN: getenv("FRONTEND_ORIGIN", "localhost:3000"),
		POSTGRES_URL:    os.Getenv("POSTGRES_URL"),
		GIN_MODE:        os.Getenv("GIN_MODE"),
		GAME_TEMP_DIR:   getenv("GAME_TEMP_DIR", "./data/GameTemp"),
		MONTHLY_RNK_DIR: getenv("MONTHLY_RNK_DIR", "./data/MonthlyRank"),
		DEBUG:           os.Getenv("DEBUG") == "true",
	}
}

func getenv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
