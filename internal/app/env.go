package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// lookup returns the trimmed value of key and whether it was set to something
// other than whitespace.
func lookup(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	return v, v != ""
}

// envParse returns parse(value of key), or fallback when the variable is blank
// or does not parse.
func envParse[T any](key string, fallback T, parse func(string) (T, error)) T {
	v, ok := lookup(key)
	if !ok {
		return fallback
	}
	parsed, err := parse(v)
	if err != nil {
		return fallback
	}
	return parsed
}

// EnvOrDefault returns the trimmed value of key, or fallback when unset or blank.
func EnvOrDefault(key, fallback string) string {
	if v, ok := lookup(key); ok {
		return v
	}
	return fallback
}

// EnvBool accepts the usual spellings (1/0, true/false, yes/no, on/off).
func EnvBool(key string, fallback bool) bool {
	v, _ := lookup(key)
	switch strings.ToLower(v) {
	case "1", "t", "true", "yes", "on":
		return true
	case "0", "f", "false", "no", "off":
		return false
	}
	return fallback
}

func EnvFloat(key string, fallback float64) float64 {
	return envParse(key, fallback, func(s string) (float64, error) { return strconv.ParseFloat(s, 64) })
}

func EnvInt(key string, fallback int) int {
	return envParse(key, fallback, strconv.Atoi)
}

// EnvDurationMillis reads key as a number of milliseconds.
func EnvDurationMillis(key string, fallback int) time.Duration {
	return time.Duration(EnvInt(key, fallback)) * time.Millisecond
}
