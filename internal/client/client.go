package client

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/agorgl/blocky/internal/blockysdk"
	"github.com/agorgl/blocky/internal/client/config"
	"github.com/agorgl/blocky/internal/client/sync"
	"github.com/agorgl/blocky/internal/utils"
)

// Client runs one sync of the local data dir against a blocky server.
type Client struct {
	config *config.Config
	sdk    *blockysdk.SDK
	lock   *flock.Flock
}

func New(cfg *config.Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	sdk, err := blockysdk.New(cfg.ServerURL)
	if err != nil {
		return nil, err
	}

	return &Client{
		config: cfg,
		sdk:    sdk,
		lock:   flock.New(filepath.Join(cfg.DataDir, ".blocky.lock")),
	}, nil
}

// Start performs a single sync run. The data dir is locked for the
// duration so two clients never race over the same working copy.
func (c *Client) Start(ctx context.Context) error {
	slog.Info("blocky client start", "server", c.config.ServerURL, "dir", c.config.DataDir)
	defer c.sdk.Close()

	if err := utils.EnsureDir(c.config.DataDir); err != nil {
		return fmt.Errorf("client: data dir: %w", err)
	}

	locked, err := c.lock.TryLock()
	if err != nil {
		return fmt.Errorf("client: lock data dir: %w", err)
	}
	if !locked {
		return fmt.Errorf("client: another sync is already running in %s", c.config.DataDir)
	}
	defer c.lock.Unlock()

	engine := sync.NewEngine(c.sdk, sync.Options{
		DataDir:        c.config.DataDir,
		Workers:        c.config.Workers,
		BlockSize:      c.config.BlockSize,
		StrongHashSize: c.config.StrongHashSize,
	})

	fileResults, err := engine.Run(ctx)
	if err != nil {
		return err
	}

	if failed := countFailed(fileResults); failed > 0 {
		return fmt.Errorf("client: %d file(s) failed to sync", failed)
	}
	return nil
}

func countFailed(results []sync.FileResult) int {
	n := 0
	for _, res := range results {
		if res.Err != nil {
			n++
		}
	}
	return n
}
