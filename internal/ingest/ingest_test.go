package ingest

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/matcert-extractor/constants"
	"github.com/joseph-ayodele/matcert-extractor/internal/async"
	"github.com/joseph-ayodele/matcert-extractor/internal/common"
	"github.com/joseph-ayodele/matcert-extractor/internal/composition"
	processor "github.com/joseph-ayodele/matcert-extractor/internal/pipeline"
	"github.com/joseph-ayodele/matcert-extractor/internal/repository"
)

type recordingQueue struct {
	mu   sync.Mutex
	jobs []async.Job
}

func (q *recordingQueue) Enqueue(_ context.Context, job async.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *recordingQueue) Shutdown(context.Context) {}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func buildTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.pdf"), "pdf a")
	writeFile(t, filepath.Join(root, "b.PNG"), "png b")
	writeFile(t, filepath.Join(root, "notes.txt"), "ignored")
	writeFile(t, filepath.Join(root, ".hidden.pdf"), "hidden")
	writeFile(t, filepath.Join(root, ".cache", "c.pdf"), "hidden dir")
	writeFile(t, filepath.Join(root, "sub", "d.jpeg"), "jpeg d")
	return root
}

func TestScanDirectory(t *testing.T) {
	root := buildTree(t)

	paths, stats, err := ScanDirectory(root, nil, true)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "a.pdf"),
		filepath.Join(root, "b.PNG"),
		filepath.Join(root, "sub", "d.jpeg"),
	}, paths)
	assert.EqualValues(t, 3, stats.Matched)
	assert.Zero(t, stats.Failed)

	paths, _, err = ScanDirectory(root, []string{".PDF"}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, ".cache", "c.pdf"),
		filepath.Join(root, ".hidden.pdf"),
		filepath.Join(root, "a.pdf"),
	}, paths)
}

func TestScanDirectoryErrors(t *testing.T) {
	_, _, err := ScanDirectory("  ", nil, true)
	require.Error(t, err)

	_, _, err = ScanDirectory(filepath.Join(t.TempDir(), "missing"), nil, true)
	require.Error(t, err)
}

func TestIsHidden(t *testing.T) {
	assert.True(t, IsHidden("/x/.git"))
	assert.False(t, IsHidden("/x/cert.pdf"))
	assert.False(t, IsHidden("."))
	assert.True(t, AllowedExt(".JPG"))
	assert.False(t, AllowedExt("txt"))
}

func TestIngestDirectoryEnqueues(t *testing.T) {
	root := buildTree(t)
	q := &recordingQueue{}
	ing := NewFSIngestor(nil, q, nil)

	results, stats, err := ing.IngestDirectory(context.Background(), root, true)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.EqualValues(t, 3, stats.Succeeded)
	assert.Len(t, q.jobs, 3)
	for _, r := range results {
		assert.True(t, r.Enqueued)
		assert.Len(t, r.HashHex, 64)
		assert.False(t, r.Deduplicated)
	}
}

func TestIngestPathUnsupported(t *testing.T) {
	p := filepath.Join(t.TempDir(), "notes.txt")
	writeFile(t, p, "x")
	_, err := NewFSIngestor(nil, &recordingQueue{}, nil).IngestPath(context.Background(), p)
	assert.ErrorIs(t, err, common.ErrUnsupported)
}

func TestIngestPathDeduplicates(t *testing.T) {
	ctx := context.Background()
	db, err := repository.Open(ctx, repository.Config{DSN: "file::memory:"}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { repository.Close(db, nil) })
	require.NoError(t, repository.Migrate(ctx, db))
	store := repository.NewStore(db, nil)

	p := filepath.Join(t.TempDir(), "cert.pdf")
	writeFile(t, p, "same bytes")
	hash, err := processor.HashFile(p)
	require.NoError(t, err)

	run, err := store.StartRun(ctx, p, hash)
	require.NoError(t, err)
	require.NoError(t, store.FinishRun(ctx, run.ID, constants.JobStatusParsed, composition.Metadata{}, 0))

	q := &recordingQueue{}
	ing := NewFSIngestor(store, q, nil)
	res, err := ing.IngestPath(ctx, p)
	require.NoError(t, err)
	assert.True(t, res.Deduplicated)
	assert.Equal(t, run.ID.String(), res.PriorRunID)
	assert.False(t, res.Enqueued)
	assert.Empty(t, q.jobs)

	ing.Force = true
	res, err = ing.IngestPath(ctx, p)
	require.NoError(t, err)
	assert.True(t, res.Enqueued)
	require.Len(t, q.jobs, 1)
	assert.True(t, q.jobs[0].Force)
}

func TestWatcherEmitsNewFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "existing.pdf"), "old")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, _, err := StartWatcher(ctx, WatchConfig{
		Roots:       []string{root},
		InitialScan: true,
		SkipHidden:  true,
		Debounce:    20 * time.Millisecond,
	})
	require.NoError(t, err)

	select {
	case p := <-events:
		assert.Equal(t, filepath.Join(root, "existing.pdf"), p)
	case <-time.After(2 * time.Second):
		t.Fatal("no initial scan event")
	}

	writeFile(t, filepath.Join(root, "ignored.txt"), "x")
	writeFile(t, filepath.Join(root, "new.pdf"), "new")
	select {
	case p := <-events:
		assert.Equal(t, filepath.Join(root, "new.pdf"), p)
	case <-time.After(2 * time.Second):
		t.Fatal("no event for new file")
	}

	cancel()
	require.Eventually(t, func() bool {
		_, ok := <-events
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWatcherRequiresRoots(t *testing.T) {
	_, _, err := StartWatcher(context.Background(), WatchConfig{})
	require.Error(t, err)
}
