package migrations

import (
	"database/sql"
	"embed"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/EatingIting/DRAW-IT/logger"
)

//go:embed *.sql
var embedMigrations embed.FS

func Migrate(pgurl string) {
	migrationDB, err := sql.Open("pgx", pgurl)
	if err != nil {
		logger.Fatalf("Failed to open DB for migrations: %v", err)
	}

	goose.SetBaseFS(embedMigrations)

	if err := goose.SetDialect("postgres"); err != nil {
		logger.Fatalf("Failed to set goose dialect: %v", err)
	}

	if err := goose.Up(migrationDB, "."); err != nil {
		logger.Fatalf("Failed to run up migrations: %v", err)
	}

	if err := migrationDB.Close(); err != nil {
		logger.Fatalf("Failed to close migration db connection: %v", err)
	}
	logger.Infof("Migrations applied successfully")
}
