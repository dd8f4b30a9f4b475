package sync

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/agorgl/blocky/internal/utils"
)

// readLocalFile reads the client's current bytes for a relative path. A
// missing file reads as empty bytes, which yields a zero-block signature
// and a full-content patch.
func readLocalFile(dataDir, rel string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(dataDir, filepath.FromSlash(rel)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// writeLocalFile persists body atomically: write to a temp file in the
// destination directory, fsync, then rename into place. A crash mid-write
// leaves either the old file or the new one, never a truncated mix.
func writeLocalFile(dataDir, rel string, body []byte) error {
	path := filepath.Join(dataDir, filepath.FromSlash(rel))
	if err := utils.EnsureParent(path); err != nil {
		return fmt.Errorf("ensure parent: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".blocky.tmp.*")
	if err != nil {
		// The parent may have been removed between EnsureParent and here.
		// Recreate it once and retry.
		if retryErr := utils.EnsureParent(path); retryErr != nil {
			return fmt.Errorf("ensure parent: %w", retryErr)
		}
		tempFile, err = os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".blocky.tmp.*")
		if err != nil {
			return fmt.Errorf("create temp file: %w", err)
		}
	}
	tempPath := tempFile.Name()

	success := false
	defer func() {
		if !success {
			tempFile.Close()
			os.Remove(tempPath)
		}
	}()

	if _, err := tempFile.Write(body); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tempFile.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("rename temp file to %s: %w", path, err)
	}

	success = true
	return nil
}
