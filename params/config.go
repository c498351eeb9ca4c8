package params

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Node struct {
	// ListenAddr is the REST/websocket gateway bind address.
	ListenAddr string
	// DataDir holds the Pebble reference-data and trade-history store.
	DataDir string
	// LogFile receives structured logs in addition to stdout.
	LogFile string
	// QueueDepth bounds each security's pending request queue.
	QueueDepth int
	// Seed loads a small built-in reference-data set into an empty
	// store on first boot, for local development.
	Seed bool
}

type Config struct {
	Node Node
}

func Default() Config {
	return Config{
		Node: Node{
			ListenAddr: ":8080",
			DataDir:    "data/bourse.db",
			LogFile:    "data/bourse.log",
			QueueDepth: 256,
			Seed:       false,
		},
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	cfg.Node.ListenAddr = getEnv("LISTEN_ADDR", cfg.Node.ListenAddr)
	cfg.Node.DataDir = getEnv("DATA_DIR", cfg.Node.DataDir)
	cfg.Node.LogFile = getEnv("LOG_FILE", cfg.Node.LogFile)

	if depth := os.Getenv("QUEUE_DEPTH"); depth != "" {
		if n, err := strconv.Atoi(depth); err == nil && n > 0 {
			cfg.Node.QueueDepth = n
		}
	}
	if seed := os.Getenv("SEED_REFERENCE_DATA"); seed != "" {
		cfg.Node.Seed = seed == "true"
	}

	return cfg
}

// getEnv returns the environment variable value or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
