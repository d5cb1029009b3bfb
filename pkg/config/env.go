package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// LoadEnv loads variables from local .env files into the process environment.
// Files that do not exist are skipped; later files override earlier ones.
func LoadEnv(logger *logrus.Logger) {
	files := []string{".env", ".env.local"}
	loaded := make([]string, 0, len(files))
	for _, file := range files {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Overload(file); err != nil {
			if logger != nil {
				logger.WithError(err).Warnf("Failed to load %s", file)
			}
			continue
		}
		loaded = append(loaded, file)
	}
	if logger == nil {
		return
	}
	if len(loaded) == 0 {
		logger.Debug("No local env files loaded; relying on process environment")
	} else {
		logger.Debugf("Loaded env files: %s", strings.Join(loaded, ", "))
	}
}

// GetEnv gets an environment variable with a default value
func GetEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvInt gets an integer environment variable with a default value
func GetEnvInt(key string, defaultValue int) int {
	v, _ := LookupEnvInt(key, defaultValue)
	return v
}

// GetEnvInt64 gets a 64-bit integer environment variable with a default value
func GetEnvInt64(key string, defaultValue int64) int64 {
	v, _ := LookupEnvInt64(key, defaultValue)
	return v
}

// GetEnvFloat gets a float environment variable with a default value
func GetEnvFloat(key string, defaultValue float64) float64 {
	v, _ := LookupEnvFloat(key, defaultValue)
	return v
}

// GetEnvBool gets a boolean environment variable with a default value
func GetEnvBool(key string, defaultValue bool) bool {
	v, _ := LookupEnvBool(key, defaultValue)
	return v
}

// GetEnvDuration accepts Go duration strings ("10s", "1m30s").
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	v, _ := LookupEnvDuration(key, defaultValue)
	return v
}

// The LookupEnv* variants return the default for an unset variable and an
// error for one that is set but does not parse.

func LookupEnvInt(key string, defaultValue int) (int, error) {
	return lookup(key, defaultValue, strconv.Atoi)
}

func LookupEnvInt64(key string, defaultValue int64) (int64, error) {
	return lookup(key, defaultValue, func(s string) (int64, error) {
		return strconv.ParseInt(s, 10, 64)
	})
}

func LookupEnvFloat(key string, defaultValue float64) (float64, error) {
	return lookup(key, defaultValue, func(s string) (float64, error) {
		return strconv.ParseFloat(s, 64)
	})
}

func LookupEnvBool(key string, defaultValue bool) (bool, error) {
	return lookup(key, defaultValue, strconv.ParseBool)
}

func LookupEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	return lookup(key, defaultValue, time.ParseDuration)
}

func lookup[T any](key string, defaultValue T, parse func(string) (T, error)) (T, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := parse(value)
	if err != nil {
		return defaultValue, fmt.Errorf("invalid %s=%q: %w", key, value, err)
	}
	return parsed, nil
}

// GetLogLevel gets the log level from environment
func GetLogLevel() logrus.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		return logrus.DebugLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}
