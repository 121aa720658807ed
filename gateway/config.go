package gateway

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const defaultSettleTimeout = time.Minute

type Config struct {
	ListenAddr    string
	MintURLs      []string
	DBPath        string
	SettleTimeout time.Duration
}

// GetConfig reads the gateway configuration from env vars.
func GetConfig() (Config, error) {
	config := Config{
		ListenAddr:    "127.0.0.1:3000",
		SettleTimeout: defaultSettleTimeout,
	}

	if addr := os.Getenv("GATEWAY_LISTEN_ADDR"); len(addr) > 0 {
		config.ListenAddr = addr
	}

	mints := os.Getenv("GATEWAY_MINTS")
	if len(mints) == 0 {
		return Config{}, errors.New("GATEWAY_MINTS cannot be empty")
	}
	for _, mint := range strings.Split(mints, ",") {
		mint = strings.TrimSpace(mint)
		if len(mint) > 0 {
			config.MintURLs = append(config.MintURLs, mint)
		}
	}
	if len(config.MintURLs) == 0 {
		return Config{}, errors.New("GATEWAY_MINTS cannot be empty")
	}

	config.DBPath = os.Getenv("GATEWAY_DB_PATH")
	if len(config.DBPath) == 0 {
		homedir, err := os.UserHomeDir()
		if err != nil {
			return Config{}, err
		}
		path := filepath.Join(homedir, ".nutgate")
		if err := os.MkdirAll(path, 0700); err != nil {
			return Config{}, err
		}
		config.DBPath = path
	}

	if timeoutSecs := os.Getenv("GATEWAY_SETTLE_TIMEOUT_SECS"); len(timeoutSecs) > 0 {
		secs, err := strconv.ParseInt(timeoutSecs, 10, 64)
		if err != nil || secs <= 0 {
			return Config{}, fmt.Errorf("invalid GATEWAY_SETTLE_TIMEOUT_SECS: %v", timeoutSecs)
		}
		config.SettleTimeout = time.Duration(secs) * time.Second
	}

	return config, nil
}
