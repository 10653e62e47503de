package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr    string
	DataDir string

	// MetadataDriver selects the thread metadata backend: "mongo",
	// "sqlite3" or "postgres".
	MetadataDriver string
	MetadataDSN    string

	MongoURI string
	MongoDB  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	OpTimeout      time.Duration
	StorageRetries int
	LockTTL        time.Duration

	LogLevel string
	LogDev   bool
}

// Load reads the PAIRCHAT_* environment. Variables from a .env file in the
// working directory fill in what the environment does not set.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Addr:           getString("PAIRCHAT_ADDR", "localhost:9090"),
		DataDir:        getString("PAIRCHAT_DATA_DIR", "MessageThreads"),
		MetadataDriver: getString("PAIRCHAT_METADATA_DRIVER", "mongo"),
		MetadataDSN:    os.Getenv("PAIRCHAT_METADATA_DSN"),
		MongoURI:       getString("PAIRCHAT_MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:        getString("PAIRCHAT_MONGO_DB", "mydb"),
		RedisAddr:      getString("PAIRCHAT_REDIS_ADDR", "localhost:6379"),
		RedisPassword:  os.Getenv("PAIRCHAT_REDIS_PASSWORD"),
		RedisDB:        getInt("PAIRCHAT_REDIS_DB", 0),
		OpTimeout:      getDuration("PAIRCHAT_OP_TIMEOUT", 10*time.Second),
		StorageRetries: getInt("PAIRCHAT_STORAGE_RETRIES", 3),
		LockTTL:        getDuration("PAIRCHAT_LOCK_TTL", 30*time.Second),
		LogLevel:       getString("PAIRCHAT_LOG_LEVEL", "info"),
		LogDev:         os.Getenv("PAIRCHAT_LOG_DEV") == "true",
	}
}

// Validate rejects settings the store cannot run safely with. A redis lock
// must outlive the operation that holds it, otherwise it can expire while a
// write is still in flight and let a second writer in.
func (c Config) Validate() error {
	if c.OpTimeout <= 0 {
		return fmt.Errorf("PAIRCHAT_OP_TIMEOUT must be positive, got %v", c.OpTimeout)
	}
	if c.LockTTL <= c.OpTimeout {
		return fmt.Errorf("PAIRCHAT_LOCK_TTL (%v) must exceed PAIRCHAT_OP_TIMEOUT (%v)", c.LockTTL, c.OpTimeout)
	}
	return nil
}

func getString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
