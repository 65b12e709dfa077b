package database

import (
	"os"
	"path/filepath"
)

// Config holds the store configuration
type Config struct {
	// Path is the location of the durable database file.
	Path string

	MaxOpenConns   int
	MaxIdleConns   int
	ConnMaxIdleSec int
	ConnMaxLifeSec int
}

// NewConfig creates a new Config from environment variables. When DB_FILE_PATH
// is unset the database is colocated with the executable.
func NewConfig() *Config {
	path := os.Getenv("DB_FILE_PATH")
	if path == "" {
		if exe, err := os.Executable(); err == nil {
			path = filepath.Join(filepath.Dir(exe), "memory.db")
		} else {
			path = "./memory.db"
		}
	}

	return &Config{Path: path}
}
