// Package sync drives the client side of a sync run: fetch the server
// listing, compare content hashes, and bring changed files up to date by
// exchanging block signatures for delta patches.
package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/agorgl/blocky/internal/delta"
	"github.com/agorgl/blocky/internal/protocol"
)

// API is the server surface the engine needs. *blockysdk.SDK implements it.
type API interface {
	Listing(ctx context.Context) (*protocol.Listing, error)
	Patch(ctx context.Context, file string, sig []byte) ([]byte, error)
}

type Options struct {
	DataDir        string
	Workers        int
	BlockSize      int
	StrongHashSize int
}

type Engine struct {
	api  API
	opts Options
}

func NewEngine(api API, opts Options) *Engine {
	return &Engine{api: api, opts: opts}
}

// Run synchronizes the data dir against the server listing and returns one
// result per listing entry. Files are independent: they sync concurrently
// under a bounded worker pool and one file's failure never aborts the rest.
// The only error returned is a failure to fetch the listing itself.
func (e *Engine) Run(ctx context.Context) ([]FileResult, error) {
	started := time.Now()

	listing, err := e.api.Listing(ctx)
	if err != nil {
		return nil, fmt.Errorf("sync: %w", err)
	}
	slog.Info("sync start", "files", len(listing.Files), "workers", e.opts.Workers)

	results := make([]FileResult, len(listing.Files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	for i, entry := range listing.Files {
		i, entry := i, entry
		g.Go(func() error {
			results[i] = e.syncFile(gctx, entry)
			return nil
		})
	}
	g.Wait()

	summarize(results, time.Since(started))
	return results, nil
}

// syncFile runs the per-file pipeline: read local bytes (missing file reads
// as empty), short-circuit on matching content hash, otherwise signature →
// patch → apply → atomic persist. Steps are strictly sequential within one
// file.
func (e *Engine) syncFile(ctx context.Context, entry protocol.ListingEntry) FileResult {
	res := FileResult{Path: entry.Path, Status: StatusFailed}

	// Listing entries come off the wire: validate before touching disk.
	if err := protocol.ValidateRelPath(entry.Path); err != nil {
		res.Err = err
		return res
	}

	local, err := readLocalFile(e.opts.DataDir, entry.Path)
	if err != nil {
		res.Err = fmt.Errorf("read local: %w", err)
		return res
	}
	res.OldSize = len(local)

	// Hash short-circuit: identical bytes need no network round trip.
	if protocol.HashBytes(local) == entry.Hash {
		res.Status = StatusUpToDate
		res.NewSize = len(local)
		return res
	}

	sig, err := delta.BuildSignature(local, e.opts.BlockSize, e.opts.StrongHashSize)
	if err != nil {
		res.Err = fmt.Errorf("build signature: %w", err)
		return res
	}

	patch, err := e.api.Patch(ctx, entry.Path, sig.Encode())
	if err != nil {
		res.Err = err
		return res
	}
	res.PatchSize = len(patch)

	ops, err := delta.DecodeOps(patch)
	if err != nil {
		res.Err = err
		return res
	}

	updated, err := delta.Apply(local, ops)
	if err != nil {
		res.Err = fmt.Errorf("apply patch: %w", err)
		return res
	}
	res.NewSize = len(updated)

	if err := writeLocalFile(e.opts.DataDir, entry.Path, updated); err != nil {
		res.Err = fmt.Errorf("write local: %w", err)
		return res
	}

	res.Status = StatusPatched
	return res
}

func summarize(results []FileResult, took time.Duration) {
	var upToDate, patched, failed int
	var patchBytes, fileBytes uint64
	for _, res := range results {
		switch res.Status {
		case StatusUpToDate:
			upToDate++
		case StatusPatched:
			patched++
			patchBytes += uint64(res.PatchSize)
			fileBytes += uint64(res.NewSize)
			slog.Info("sync patched", "path", res.Path,
				"before", humanize.Bytes(uint64(res.OldSize)),
				"after", humanize.Bytes(uint64(res.NewSize)),
				"patch", humanize.Bytes(uint64(res.PatchSize)))
		case StatusFailed:
			failed++
			slog.Error("sync failed", "path", res.Path, "error", res.Err)
		}
	}
	slog.Info("sync done",
		"total", len(results),
		"up_to_date", upToDate,
		"patched", patched,
		"failed", failed,
		"transferred", humanize.Bytes(patchBytes),
		"reconstructed", humanize.Bytes(fileBytes),
		"took", took.Round(time.Millisecond))
}
