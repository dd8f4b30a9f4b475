package server

import (
	"fmt"
	"time"

	"github.com/agorgl/blocky/internal/utils"
)

const DefaultAddr = "127.0.0.1:8080"

type Config struct {
	HTTP  HTTPConfig
	Index IndexConfig
}

type HTTPConfig struct {
	Addr     string
	CertFile string
	KeyFile  string
}

type IndexConfig struct {
	// Root is the directory the server serves patches for.
	Root string
	// Exclude holds doublestar globs matched against relative paths.
	Exclude []string
	// ListingTTL caps how long a listing snapshot is reused. Zero means
	// every listing request rebuilds from the filesystem.
	ListingTTL time.Duration
}

func (c *Config) Validate() error {
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = DefaultAddr
	}
	if c.Index.Root == "" {
		return fmt.Errorf("server: root directory is required")
	}
	root, err := utils.ResolvePath(c.Index.Root)
	if err != nil {
		return fmt.Errorf("server: resolve root: %w", err)
	}
	if !utils.DirExists(root) {
		return fmt.Errorf("server: root %q is not a directory", root)
	}
	c.Index.Root = root
	if c.Index.ListingTTL < 0 {
		return fmt.Errorf("server: listing ttl cannot be negative")
	}
	return nil
}
