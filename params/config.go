package params

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Node struct {
	// DataDir holds the pebble snapshot store and the block journal.
	DataDir string
	LogFile string
	Verbose bool
	// SnapshotInterval persists engine and ledger state every N blocks.
	// Zero disables periodic snapshots (the final state is still saved).
	SnapshotInterval uint64
}

type Config struct {
	Forks Forks
	Node  Node
}

func Default() Config {
	return Config{
		Forks: DefaultForks(),
		Node: Node{
			DataDir:          "data",
			LogFile:          "data/replay.log",
			SnapshotInterval: 1000,
		},
	}
}

// LoadFromEnv loads configuration from .env file (if exists) and environment variables
// Priority: ENV > .env file > defaults
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	// Try to load .env file (optional - won't fail if not exists)
	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if h := os.Getenv("FORK_METAL_EXCHANGE_HEIGHT"); h != "" {
		if v, err := strconv.ParseUint(h, 10, 64); err == nil {
			cfg.Forks.MetalExchangeHeight = v
		}
	}

	cfg.Node.DataDir = getEnv("DATA_DIR", cfg.Node.DataDir)
	cfg.Node.LogFile = getEnv("LOG_FILE", cfg.Node.LogFile)

	if verbose := os.Getenv("VERBOSE"); verbose != "" {
		cfg.Node.Verbose = verbose == "true"
	}

	if iv := os.Getenv("SNAPSHOT_INTERVAL"); iv != "" {
		if v, err := strconv.ParseUint(iv, 10, 64); err == nil {
			cfg.Node.SnapshotInterval = v
		}
	}

	return cfg
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
