package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"rvnl.in/fittrack/pkg/logger"
)

var (
	DB  *gorm.DB
	Log *logger.Logger
)

func Connect() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	var err error
	Log, err = logger.New(os.Getenv("LOG_MODE"))
	if err != nil {
		log.Fatal("Failed to build logger:", err)
	}

	dsn := os.Getenv("DB_DSN")
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	if err := Migrations(DB); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}
}
