package config

import (
	"fmt"
	"net/url"
	"runtime"

	"github.com/agorgl/blocky/internal/delta"
	"github.com/agorgl/blocky/internal/utils"
)

type Config struct {
	// ServerURL is the base URL of the patch server.
	ServerURL string `json:"server_url" mapstructure:"server_url"`
	// DataDir is the local directory kept in sync with the server root.
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
	// Workers caps how many files sync concurrently.
	Workers int `json:"workers" mapstructure:"workers"`
	// BlockSize is the signature block granularity in bytes.
	BlockSize int `json:"block_size" mapstructure:"block_size"`
	// StrongHashSize is how many bytes of the block digest signatures carry.
	StrongHashSize int `json:"strong_hash_size" mapstructure:"strong_hash_size"`
}

func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("config: server url is required")
	}
	u, err := url.Parse(c.ServerURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("config: server url %q must be http(s)", c.ServerURL)
	}

	if c.DataDir == "" {
		return fmt.Errorf("config: data dir is required")
	}
	dataDir, err := utils.ResolvePath(c.DataDir)
	if err != nil {
		return fmt.Errorf("config: resolve data dir: %w", err)
	}
	c.DataDir = dataDir

	if c.Workers == 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.Workers < 1 {
		return fmt.Errorf("config: workers must be at least 1, got %d", c.Workers)
	}

	if c.BlockSize == 0 {
		c.BlockSize = delta.DefaultBlockSize
	}
	if c.BlockSize < 1 {
		return fmt.Errorf("config: block size must be positive, got %d", c.BlockSize)
	}

	if c.StrongHashSize == 0 {
		c.StrongHashSize = delta.DefaultStrongHashSize
	}
	if c.StrongHashSize < 1 || c.StrongHashSize > delta.MaxStrongHashSize {
		return fmt.Errorf("config: strong hash size must be in [1, %d], got %d", delta.MaxStrongHashSize, c.StrongHashSize)
	}

	return nil
}
