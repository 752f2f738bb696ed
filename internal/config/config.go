// Package config parses the matching daemon's enumerated configuration
// surface (§6): database connection string, listen address, engine
// worker pool size, log level, and optional default treasury addresses
// per asset. Grounded on the teacher's cmd/client/client.go, which reaches
// for stdlib flag and nothing else — no CLI framework appears anywhere in
// the retrieval pack, so flag is the faithful choice here too.
package config

import (
	"flag"
	"fmt"
	"runtime"
	"strings"
)

// Config is the resolved configuration for the matchrsd daemon.
type Config struct {
	// DatabaseDSN is the connection string for the persistence port's
	// concrete store. matchrsd does not read it: the daemon always runs
	// against the in-memory reference store.
	DatabaseDSN string

	// ListenAddr is the address the implementer's transport of choice
	// binds to. The core itself never opens a socket (§1 "Out of
	// scope").
	ListenAddr string

	// WorkerPoolSize is advisory sizing for the engine's market workers
	// (one goroutine per active market; cheap enough that the daemon does
	// not hard-cap concurrency on it), logged at startup and defaulting
	// to the number of cores.
	WorkerPoolSize int

	// LogLevel is the zerolog level name: debug, info, warn, error.
	LogLevel string

	// TreasuryAddresses maps asset -> default fee-treasury address,
	// parsed from a comma-separated asset=address list (optional, §6).
	TreasuryAddresses map[string]string
}

// Parse builds a Config from command-line arguments (not including the
// program name).
func Parse(args []string) (*Config, error) {
	fs := flag.NewFlagSet("matchrsd", flag.ContinueOnError)

	dsn := fs.String("db", "", "database connection string")
	listen := fs.String("listen", ":9001", "listen address")
	workers := fs.Int("workers", runtime.NumCPU(), "engine worker pool size")
	logLevel := fs.String("log-level", "info", "log level (debug, info, warn, error)")
	treasuries := fs.String("treasury-addresses", "", "comma-separated asset=address pairs, e.g. BTC=0xabc,USDT=0xdef")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	addresses, err := parseTreasuryAddresses(*treasuries)
	if err != nil {
		return nil, err
	}

	return &Config{
		DatabaseDSN:       *dsn,
		ListenAddr:        *listen,
		WorkerPoolSize:    *workers,
		LogLevel:          *logLevel,
		TreasuryAddresses: addresses,
	}, nil
}

func parseTreasuryAddresses(raw string) (map[string]string, error) {
	out := make(map[string]string)
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return out, nil
	}
	for _, pair := range strings.Split(raw, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid treasury address pair %q, want asset=address", pair)
		}
		out[parts[0]] = parts[1]
	}
	return out, nil
}
