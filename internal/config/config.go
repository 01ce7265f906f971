package config

import (
	"fmt"
	"log"
	"os"

	"github.com/glebarez/sqlite"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/alhaqil/storefront/internal/models"
)

type Config struct {
	DB_HOST     string
	DB_PORT     string
	DB_USER     string
	DB_PASSWORD string
	DB_NAME     string
	DB_FILE     string

	BACKEND_URL   string
	REDIS_ADDR    string
	KAFKA_ADDRESS string

	STRIPE_SECRET  string
	CURRENCY       string
	SHIPPING_RATE  string
	ORDER_PREFIX   string
	SUCCESS_URL    string
	CANCEL_URL     string

	LOG_LEVEL string
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}

	config := &Config{
		DB_HOST:       os.Getenv("DB_HOST"),
		DB_PORT:       os.Getenv("DB_PORT"),
		DB_USER:       os.Getenv("DB_USER"),
		DB_PASSWORD:   os.Getenv("DB_PASSWORD"),
		DB_NAME:       os.Getenv("DB_NAME"),
		DB_FILE:       os.Getenv("DB_FILE"),
		BACKEND_URL:   os.Getenv("BACKEND_URL"),
		REDIS_ADDR:    os.Getenv("REDIS_ADDR"),
		KAFKA_ADDRESS: os.Getenv("KAFKA_ADDRESS"),
		STRIPE_SECRET: os.Getenv("STRIPE_SECRET"),
		CURRENCY:      os.Getenv("CURRENCY"),
		SHIPPING_RATE: os.Getenv("SHIPPING_RATE"),
		ORDER_PREFIX:  os.Getenv("ORDER_PREFIX"),
		SUCCESS_URL:   os.Getenv("SUCCESS_URL"),
		CANCEL_URL:    os.Getenv("CANCEL_URL"),
		LOG_LEVEL:     os.Getenv("LOG_LEVEL"),
	}

	if config.CURRENCY == "" {
		config.CURRENCY = "kwd"
	}
	if config.SHIPPING_RATE == "" {
		config.SHIPPING_RATE = "2.000"
	}
	if config.ORDER_PREFIX == "" {
		config.ORDER_PREFIX = "HQL"
	}
	if config.DB_FILE == "" {
		config.DB_FILE = "storefront.db"
	}

	return config, nil
}

// InitDB opens the local durable store: postgres when DB_HOST is set,
// otherwise a sqlite file next to the binary.
func InitDB() (*gorm.DB, error) {
	configuration, _ := LoadConfig()

	var (
		db  *gorm.DB
		err error
	)
	if configuration.DB_HOST != "" {
		dsn := fmt.Sprintf(
			"postgres://%s:%s@%s:%s/%s?sslmode=disable",
			configuration.DB_USER, configuration.DB_PASSWORD,
			configuration.DB_HOST, configuration.DB_PORT, configuration.DB_NAME,
		)
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	} else {
		db, err = gorm.Open(sqlite.Open(configuration.DB_FILE), &gorm.Config{})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to the store db: %w", err)
	}
	if err := db.AutoMigrate(
		&models.CartLine{}, &models.Session{}, &models.LastOrder{},
		&models.CouponMarker{}, &models.Preference{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate the store db: %w", err)
	}
	return db, nil
}
