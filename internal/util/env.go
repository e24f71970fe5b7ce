package util

import (
	"os"
	"strconv"

	"github.com/OFFIS-RIT/taxo/pkg/logger"

	"github.com/joho/godotenv"
)

// LoadEnv reads a .env file from the working directory into the process
// environment. Missing files are fine, the system environment wins then.
func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file found, using system environment variables")
	}
}

// GetEnv returns the value of key, or "" when unset.
func GetEnv(key string) string {
	return os.Getenv(key)
}

// GetEnvString returns the value of key, or defaultValue when unset.
func GetEnvString(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

// GetEnvNumeric parses key as a float. Unset or unparseable values fall
// back to defaultValue.
func GetEnvNumeric(key string, defaultValue float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// GetEnvBool parses key as a boolean. Unset or unparseable values fall
// back to defaultValue.
func GetEnvBool(key string, defaultValue bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
