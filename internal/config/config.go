package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config is the process-wide configuration for the orchestration core,
// assembled from the environment (with a best-effort .env load first).
type Config struct {
	Port string
	Host string

	DatabasePath  string
	WorkspaceRoot string

	QueueWorkers int
	JobTimeout   int // minutes; enforced out-of-band per spec.md §5

	// Model engine wiring, one socket/command per logical model family.
	SeparatorSocket   string
	SeparatorCommand  string
	GeneralistSocket  string
	GeneralistCommand string
	PianoSocket       string
	PianoCommand      string
	RefinerSocket     string
	RefinerCommand    string
	EngineStartTimeoutMS int

	// Ensemble / TTA defaults, overridable per spec.md §9's "make it
	// overridable" directive.
	WeightA          float64
	WeightBPiano     float64
	VoteThreshold    float64
	VoteToleranceSec float64
	TTAToleranceSec  float64
	TTAMinVotes      int
	EnergyFloor      float64
	DurationCeilingSec float64

	DropzonePath string
}

// Load reads configuration from the environment, applying a .env file if
// present and falling back to defaults tuned for local development.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port: getEnv("PORT", "8080"),
		Host: getEnv("HOST", "0.0.0.0"),

		DatabasePath:  getEnv("DATABASE_PATH", "data/jobs.db"),
		WorkspaceRoot: getEnv("WORKSPACE_ROOT", "data/workspace"),

		QueueWorkers: getEnvAsInt("QUEUE_WORKERS", 1),
		JobTimeout:   getEnvAsInt("JOB_TIMEOUT_MINUTES", 60),

		SeparatorSocket:   getEnv("SEPARATOR_SOCKET", "data/run/separator.sock"),
		SeparatorCommand:  getEnv("SEPARATOR_CMD", ""),
		GeneralistSocket:  getEnv("GENERALIST_SOCKET", "data/run/generalist.sock"),
		GeneralistCommand: getEnv("GENERALIST_CMD", ""),
		PianoSocket:       getEnv("PIANO_SOCKET", "data/run/piano.sock"),
		PianoCommand:      getEnv("PIANO_CMD", ""),
		RefinerSocket:     getEnv("REFINER_SOCKET", "data/run/refiner.sock"),
		RefinerCommand:    getEnv("REFINER_CMD", ""),
		EngineStartTimeoutMS: getEnvAsInt("ENGINE_START_TIMEOUT_MS", 15000),

		WeightA:          getEnvAsFloat("ENSEMBLE_WEIGHT_A", 0.4),
		WeightBPiano:     getEnvAsFloat("ENSEMBLE_WEIGHT_B_PIANO", 0.6),
		VoteThreshold:    getEnvAsFloat("ENSEMBLE_THRESHOLD", 0.25),
		VoteToleranceSec: getEnvAsFloat("ENSEMBLE_TOLERANCE_SEC", 0.05),
		TTAToleranceSec:  getEnvAsFloat("TTA_TOLERANCE_SEC", 0.1),
		TTAMinVotes:      getEnvAsInt("TTA_MIN_VOTES", 0),
		EnergyFloor:      getEnvAsFloat("SEPARATOR_ENERGY_FLOOR", 0.01),
		DurationCeilingSec: getEnvAsFloat("SOURCE_DURATION_CEILING_SEC", 15*60),

		DropzonePath: getEnv("DROPZONE_PATH", "data/dropzone"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
