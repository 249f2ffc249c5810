package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	ConverterBinary     = "binary"
	ConverterStructured = "structured"
)

type Config struct {
	Addr       string
	JWTSecret  string
	MySQLDSN   string
	MongoURI   string
	MongoDB    string
	Collection string
	// MaxInactiveInterval is the default idle timeout of new sessions.
	MaxInactiveInterval time.Duration
	Converter           string
	LogLevel            string
}

func Load() Config {
	/*
		.env-local for a local database, .env.docker for docker;
		START names the file to load, e.g. START=.env-local ./sessiond
	*/
	if err := godotenv.Load(os.Getenv("START")); err != nil {
		log.Fatalf("Env file not found")
	}

	cfg := Config{
		Addr:       getenv("ADDR", ":8082"),
		JWTSecret:  os.Getenv("JWT_SECRET"),
		MySQLDSN:   os.Getenv("MYSQL_DSN"),
		MongoURI:   os.Getenv("MONGO_URI"),
		MongoDB:    os.Getenv("MONGO_DB_NAME"),
		Collection: getenv("SESSION_COLLECTION", "sessions"),
		Converter:  getenv("SESSION_CONVERTER", ConverterBinary),
		LogLevel:   getenv("LOG_LEVEL", "info"),
	}

	if cfg.JWTSecret == "" {
		log.Fatalf("JWT_SECRET is not set in environment")
	}
	if cfg.MySQLDSN == "" {
		log.Fatalf("MySQLDSN is not set in environment")
	}
	if cfg.MongoURI == "" {
		log.Fatalf("MongoURI is not set in environment")
	}
	if cfg.MongoDB == "" {
		log.Fatalf("MongoDB is not set in environment")
	}

	seconds, err := strconv.Atoi(getenv("SESSION_MAX_INACTIVE_SECONDS", "1800"))
	if err != nil {
		log.Fatalf("SESSION_MAX_INACTIVE_SECONDS is not a number: %v", err)
	}
	cfg.MaxInactiveInterval = time.Duration(seconds) * time.Second

	if cfg.Converter != ConverterBinary && cfg.Converter != ConverterStructured {
		log.Fatalf("SESSION_CONVERTER must be %q or %q", ConverterBinary, ConverterStructured)
	}

	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
