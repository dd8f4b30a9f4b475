package sync

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agorgl/blocky/internal/delta"
	"github.com/agorgl/blocky/internal/index"
	"github.com/agorgl/blocky/internal/protocol"
)

// localAPI serves the engine straight from an indexer, counting patch
// calls so tests can assert the hash short-circuit skipped the network.
type localAPI struct {
	svc        *index.Service
	patchCalls atomic.Int64
	patchErr   error
}

func newLocalAPI(t *testing.T, root string) *localAPI {
	t.Helper()
	indexer, err := index.NewIndexer(root, nil)
	require.NoError(t, err)
	return &localAPI{svc: index.NewService(indexer, 0)}
}

func (a *localAPI) Listing(ctx context.Context) (*protocol.Listing, error) {
	return a.svc.Listing()
}

func (a *localAPI) Patch(ctx context.Context, file string, sig []byte) ([]byte, error) {
	a.patchCalls.Add(1)
	if a.patchErr != nil {
		return nil, a.patchErr
	}
	decoded, err := delta.DecodeSignature(sig)
	if err != nil {
		return nil, err
	}
	data, err := a.svc.ReadFile(file)
	if err != nil {
		return nil, err
	}
	ops, err := delta.ComputeDelta(decoded, data)
	if err != nil {
		return nil, err
	}
	return delta.EncodeOps(ops), nil
}

func writeTree(t *testing.T, root string, files map[string][]byte) {
	t.Helper()
	for rel, content := range files {
		abs := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
		require.NoError(t, os.WriteFile(abs, content, 0o644))
	}
}

func readTree(t *testing.T, root string, rels ...string) map[string][]byte {
	t.Helper()
	out := map[string][]byte{}
	for _, rel := range rels {
		data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
		require.NoError(t, err)
		out[rel] = data
	}
	return out
}

func testOptions(dataDir string, workers int) Options {
	return Options{
		DataDir:        dataDir,
		Workers:        workers,
		BlockSize:      64,
		StrongHashSize: 8,
	}
}

func TestEngine_Run(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	randBytes := func(n int) []byte {
		b := make([]byte, n)
		rng.Read(b)
		return b
	}

	serverRoot := t.TempDir()
	shared := randBytes(8 * 1024)
	changed := randBytes(8 * 1024)
	serverFiles := map[string][]byte{
		"same.bin":           shared,
		"changed.bin":        changed,
		"new/deep/fresh.bin": randBytes(300),
		"empty.bin":          {},
	}
	writeTree(t, serverRoot, serverFiles)

	clientDir := t.TempDir()
	staleChanged := bytes.Clone(changed)
	copy(staleChanged[1000:], []byte("stale client bytes"))
	writeTree(t, clientDir, map[string][]byte{
		"same.bin":    shared,
		"changed.bin": staleChanged,
		"empty.bin":   []byte("stale bytes to be emptied"),
	})

	api := newLocalAPI(t, serverRoot)
	engine := NewEngine(api, testOptions(clientDir, 4))

	results, err := engine.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 4)

	byPath := map[string]FileResult{}
	for _, res := range results {
		byPath[res.Path] = res
	}

	assert.Equal(t, StatusUpToDate, byPath["same.bin"].Status)
	assert.Equal(t, StatusPatched, byPath["changed.bin"].Status)
	assert.Equal(t, StatusPatched, byPath["new/deep/fresh.bin"].Status)
	assert.Equal(t, StatusPatched, byPath["empty.bin"].Status)

	got := readTree(t, clientDir, "same.bin", "changed.bin", "new/deep/fresh.bin", "empty.bin")
	for rel, want := range serverFiles {
		assert.Equal(t, want, got[rel], rel)
	}

	// same.bin was hash-equal: only the three changed files hit the network.
	assert.EqualValues(t, 3, api.patchCalls.Load())

	// The changed file's patch is proportional to the change, not the file.
	assert.Less(t, byPath["changed.bin"].PatchSize, len(changed)/2)
}

func TestEngine_NoOpSyncMakesNoPatchCalls(t *testing.T) {
	serverRoot := t.TempDir()
	files := map[string][]byte{"a.txt": []byte("alpha"), "b.txt": []byte("beta")}
	writeTree(t, serverRoot, files)

	clientDir := t.TempDir()
	writeTree(t, clientDir, files)

	api := newLocalAPI(t, serverRoot)
	engine := NewEngine(api, testOptions(clientDir, 2))

	results, err := engine.Run(context.Background())
	require.NoError(t, err)
	for _, res := range results {
		assert.Equal(t, StatusUpToDate, res.Status)
	}
	assert.Zero(t, api.patchCalls.Load())

	got := readTree(t, clientDir, "a.txt", "b.txt")
	assert.Equal(t, files["a.txt"], got["a.txt"])
	assert.Equal(t, files["b.txt"], got["b.txt"])
}

func TestEngine_FailuresAreIsolated(t *testing.T) {
	serverRoot := t.TempDir()
	writeTree(t, serverRoot, map[string][]byte{
		"good.txt": []byte("good"),
		"bad.txt":  []byte("bad"),
	})

	api := newLocalAPI(t, serverRoot)
	api.patchErr = fmt.Errorf("transport exploded")

	clientDir := t.TempDir()
	// good.txt is already in sync, bad.txt needs a patch that will fail.
	writeTree(t, clientDir, map[string][]byte{"good.txt": []byte("good")})

	engine := NewEngine(api, testOptions(clientDir, 2))
	results, err := engine.Run(context.Background())
	require.NoError(t, err)

	byPath := map[string]FileResult{}
	for _, res := range results {
		byPath[res.Path] = res
	}
	assert.Equal(t, StatusUpToDate, byPath["good.txt"].Status)
	assert.Equal(t, StatusFailed, byPath["bad.txt"].Status)
	assert.Error(t, byPath["bad.txt"].Err)

	// The failed file was never partially written.
	_, statErr := os.Stat(filepath.Join(clientDir, "bad.txt"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestEngine_RejectsUnsafeListingPaths(t *testing.T) {
	clientDir := t.TempDir()
	engine := NewEngine(nil, testOptions(clientDir, 1))

	res := engine.syncFile(context.Background(), protocol.ListingEntry{
		Path: "../outside.txt",
		Hash: protocol.HashBytes([]byte("x")),
	})
	assert.Equal(t, StatusFailed, res.Status)
	assert.ErrorIs(t, res.Err, protocol.ErrUnsafePath)
}

func TestEngine_ConcurrentMatchesSequential(t *testing.T) {
	rng := rand.New(rand.NewSource(23))
	serverRoot := t.TempDir()
	files := map[string][]byte{}
	for i := 0; i < 20; i++ {
		data := make([]byte, 2000+i*37)
		rng.Read(data)
		files[fmt.Sprintf("dir%d/file%d.bin", i%3, i)] = data
	}
	writeTree(t, serverRoot, files)

	runWith := func(workers int) map[string][]byte {
		clientDir := t.TempDir()
		api := newLocalAPI(t, serverRoot)
		engine := NewEngine(api, testOptions(clientDir, workers))
		results, err := engine.Run(context.Background())
		require.NoError(t, err)
		for _, res := range results {
			require.Equal(t, StatusPatched, res.Status, res.Path)
		}
		rels := make([]string, 0, len(files))
		for rel := range files {
			rels = append(rels, rel)
		}
		return readTree(t, clientDir, rels...)
	}

	sequential := runWith(1)
	concurrent := runWith(8)
	assert.Equal(t, sequential, concurrent)
	for rel, want := range files {
		assert.Equal(t, want, sequential[rel], rel)
	}
}

func TestWriteLocalFile(t *testing.T) {
	t.Run("creates parents and writes atomically", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, writeLocalFile(dir, "a/b/c.txt", []byte("content")))

		data, err := os.ReadFile(filepath.Join(dir, "a", "b", "c.txt"))
		require.NoError(t, err)
		assert.Equal(t, []byte("content"), data)

		// No temp file debris left behind.
		entries, err := os.ReadDir(filepath.Join(dir, "a", "b"))
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})

	t.Run("replaces existing content", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, writeLocalFile(dir, "f.txt", []byte("old")))
		require.NoError(t, writeLocalFile(dir, "f.txt", []byte("new")))

		data, err := os.ReadFile(filepath.Join(dir, "f.txt"))
		require.NoError(t, err)
		assert.Equal(t, []byte("new"), data)
	})
}

func TestReadLocalFile(t *testing.T) {
	dir := t.TempDir()

	data, err := readLocalFile(dir, "missing.txt")
	require.NoError(t, err)
	assert.Nil(t, data)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "here.txt"), []byte("hi"), 0o644))
	data, err = readLocalFile(dir, "here.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("hi"), data)
}
