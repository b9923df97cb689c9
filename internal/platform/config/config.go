package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Load reads the .env file from the current working directory and sets
// environment variables. If .env does not exist, Load returns an error but
// callers can ignore it and use system env or defaults. Pass one or more paths
// to load from specific files (e.g. ".env"); with no paths, ".env" is used.
func Load(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	return godotenv.Load(paths...)
}

// GetEnv returns the value of the environment variable named by key, or fallback
// if the variable is unset or empty.
func GetEnv(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

// GetEnvInt returns the integer value of the environment variable named by key,
// or fallback if the variable is unset, empty, or not a valid integer.
func GetEnvInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return fallback
}

// GetEnvFloat returns the float64 value of the environment variable named
// by key, or fallback if the variable is unset, empty, or not a valid
// number.
func GetEnvFloat(key string, fallback float64) float64 {
	if s := os.Getenv(key); s != "" {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return fallback
}

// GetEnvBool returns the boolean value of the environment variable named
// by key, or fallback if the variable is unset, empty, or not a valid
// boolean. Accepts the same spellings as strconv.ParseBool plus "yes"/"no".
func GetEnvBool(key string, fallback bool) bool {
	s := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch s {
	case "":
		return fallback
	case "yes":
		return true
	case "no":
		return false
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return fallback
}

// Sink holds the sink construction options read from the environment:
// a presentation name, a choice of output serializer, the
// windowed-republish policy, and the window/fragment duration targets.
type Sink struct {
	ManifestName          string
	Serializer            string // "hls" or "dash"
	Windowed              bool
	TargetWindowSeconds   float64 // 0 means unbounded
	TargetFragmentSeconds float64
}

// LoadSink reads the SINK_* environment variables into a Sink, applying
// the reference defaults: manifest name "index", the HLS serializer,
// windowed republishing, an unbounded window, and a 6 second target
// fragment duration.
func LoadSink() Sink {
	return Sink{
		ManifestName:          GetEnv("SINK_MANIFEST_NAME", "index"),
		Serializer:            strings.ToLower(GetEnv("SINK_SERIALIZER", "hls")),
		Windowed:              GetEnvBool("SINK_WINDOWED", true),
		TargetWindowSeconds:   GetEnvFloat("SINK_TARGET_WINDOW_SECONDS", 0),
		TargetFragmentSeconds: GetEnvFloat("SINK_TARGET_FRAGMENT_SECONDS", 6),
	}
}
