// Package main implements the database migration utility for the
// whatsapp-followup service.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/popeskul/whatsapp-followup/internal/infrastructure/migrate"
)

const defaultMigrationsPath = "./migrations"

func main() {
	var (
		migrationsPath string
		steps          int
	)

	flag.StringVar(&migrationsPath, "path", defaultMigrationsPath, "Path to migrations directory")
	flag.IntVar(&steps, "steps", 0, "Number of migrations to apply (0 = all)")
	flag.Parse()

	_ = godotenv.Load()

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	args := flag.Args()
	if len(args) == 0 {
		log.Fatal("Please specify a command: up, down, or version")
	}
	command := args[0]

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	runner := migrate.NewRunner(&migrate.Config{
		DatabaseURL:    databaseURL,
		MigrationsPath: migrationsPath,
	}, logger)

	switch command {
	case "up":
		if err := runner.Up(steps); err != nil {
			logger.Fatal("Failed to run migrations up", zap.Error(err))
		}

	case "down":
		if err := runner.Down(steps); err != nil {
			logger.Fatal("Failed to run migrations down", zap.Error(err))
		}

	case "version":
		version, dirty, err := runner.Version()
		if err != nil {
			logger.Fatal("Failed to get version", zap.Error(err))
		}
		if dirty {
			fmt.Printf("Current version: %d (dirty)\n", version)
		} else {
			fmt.Printf("Current version: %d\n", version)
		}

	default:
		log.Fatalf("Unknown command: %s. Use 'up', 'down', or 'version'", command)
	}
}
