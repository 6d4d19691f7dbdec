package config

import (
	"os"
	"time"
)

// NewForTest returns a config suitable for tests without consulting the
// ENVIRONMENT variable.
func NewForTest() *Config {
	hostname, _ := os.Hostname()

	cfg := &Config{
		DatabaseBusyTimeout:       5 * time.Second,
		DatabaseConnectRetryCount: 1,
		DatabaseConnectRetryDelay: 10 * time.Millisecond,
		DatabaseMaxRetries:        5,
		Hostname:                  hostname,
		WorkerProcesses:           1,
	}
	loadTestConfig(cfg)

	return cfg
}
