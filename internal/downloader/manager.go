// Package downloader implements the download pipeline (§4.2): resolving a
// mod-protocol URL to a CDN location, streaming it to disk in bounded
// chunks with atomic progress tracking, and registering the result with the
// metadata index.
package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/semaphore"
	"golang.org/x/text/unicode/norm"

	"github.com/dandels/dmodman-core/internal/apiclient"
	"github.com/dandels/dmodman-core/internal/history"
	"github.com/dandels/dmodman-core/internal/metaindex"
	"github.com/dandels/dmodman-core/internal/modid"
	"github.com/dandels/dmodman-core/internal/persist"
)

// DefaultMaxConcurrent is the recommended concurrent-download bound (§5).
const DefaultMaxConcurrent = 4

const (
	partSuffix = ".part"
	chunkSize  = 32 * 1024
)

// Manager owns the set of active download tasks and dispatches new
// downloads through a bounded semaphore (§5: "implementations SHOULD cap
// concurrent downloads via a semaphore").
type Manager struct {
	logger      *slog.Logger
	api         *apiclient.Client
	httpClient  *http.Client
	index       *metaindex.Index
	sidecars    *persist.SidecarStore
	downloadDir string
	sem         *semaphore.Weighted
	history     *history.Store

	mu    sync.RWMutex
	tasks map[modid.FileIdentity]*DownloadTask
}

// SetHistory attaches the observability ledger. Optional: a nil history
// leaves download completion unrecorded but otherwise has no effect on the
// pipeline, since ledger writes are purely additive (§12.3).
func (m *Manager) SetHistory(h *history.Store) {
	m.history = h
}

func (m *Manager) recordEvent(ctx context.Context, id modid.FileIdentity, outcome, detail string) {
	if m.history == nil {
		return
	}

	if err := m.history.Record(ctx, history.Event{
		Timestamp: time.Now().Unix(), Kind: "download", Identity: id, Detail: detail, Outcome: outcome,
	}); err != nil {
		m.logger.Warn("history: recording download event failed", slog.String("error", err.Error()))
	}
}

// NewManager creates a Manager. maxConcurrent <= 0 uses DefaultMaxConcurrent.
func NewManager(
	api *apiclient.Client, httpClient *http.Client, index *metaindex.Index, sidecars *persist.SidecarStore,
	downloadDir string, maxConcurrent int64, logger *slog.Logger,
) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}

	return &Manager{
		logger:      logger,
		api:         api,
		httpClient:  httpClient,
		index:       index,
		sidecars:    sidecars,
		downloadDir: downloadDir,
		sem:         semaphore.NewWeighted(maxConcurrent),
		tasks:       make(map[modid.FileIdentity]*DownloadTask),
	}
}

// Snapshot returns a stable copy of the currently tracked tasks (§5:
// "readers observe a stable snapshot").
func (m *Manager) Snapshot() []*DownloadTask {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*DownloadTask, 0, len(m.tasks))
	for _, t := range m.tasks {
		out = append(out, t)
	}

	return out
}

// Start begins downloading the file identified by a parsed mod-protocol
// URL (§4.2 protocol steps). It returns once the task is registered;
// streaming starts in the background when a concurrency-semaphore slot is
// free, and completion is observed via the returned task's State().
func (m *Manager) Start(ctx context.Context, u modid.NxmURL) (*DownloadTask, error) {
	game := u.GameDomain
	id := modid.FileIdentity{GameDomain: game, ModID: u.ModID, FileID: u.FileID}

	m.mu.Lock()
	if existing, ok := m.tasks[id]; ok && existing.State() == StateRunning {
		m.mu.Unlock()

		return nil, ErrInProgress
	}
	m.mu.Unlock()

	links, err := m.api.DownloadLinks(ctx, id, u.Query())
	if err != nil {
		return nil, err
	}

	if len(links) == 0 {
		return nil, ErrNoDownloadLink
	}

	cdnURL := links[0].URI

	fileName, err := fileNameFromURL(cdnURL)
	if err != nil {
		return nil, err
	}

	taskCtx, cancel := context.WithCancel(context.Background())
	task := newTask(id, fileName, cancel)

	m.mu.Lock()
	m.tasks[id] = task
	m.mu.Unlock()

	go m.run(taskCtx, task, id, game, cdnURL, fileName)

	return task, nil
}

// TogglePause cancels a Running task's streaming loop, transitioning it to
// Paused at the next chunk boundary (§4.2 "Pause/resume").
func (m *Manager) TogglePause(id modid.FileIdentity) error {
	m.mu.RLock()
	task, ok := m.tasks[id]
	m.mu.RUnlock()

	if !ok {
		return ErrNotFound
	}

	if task.State() != StateRunning {
		return nil
	}

	task.setState(StatePaused)
	task.cancel()

	return nil
}

func (m *Manager) run(ctx context.Context, task *DownloadTask, id modid.FileIdentity, game, cdnURL, fileName string) {
	if err := m.sem.Acquire(ctx, 1); err != nil {
		// ctx is cancelled only by TogglePause, which has already set the
		// task to Paused before a concurrency slot became free.
		return
	}
	defer m.sem.Release(1)

	if err := m.stream(ctx, task, game, cdnURL, fileName); err != nil {
		if ctx.Err() != nil {
			m.logger.Info("download paused",
				slog.String("file_identity", id.String()),
				slog.String("bytes_read", humanize.Bytes(uint64(task.BytesRead()))),
			)

			return // state already set to Paused by TogglePause
		}

		m.logger.Warn("download failed",
			slog.String("file_identity", id.String()),
			slog.String("error", err.Error()),
		)
		task.setState(StateFailed)
		m.recordEvent(context.Background(), id, "failed", fileName)

		return
	}

	if err := m.finalize(context.Background(), id, game, fileName); err != nil {
		m.logger.Warn("download completed but finalisation failed",
			slog.String("file_identity", id.String()),
			slog.String("error", err.Error()),
		)
	}

	task.setState(StateCompleted)
	m.logger.Info("download completed",
		slog.String("file_identity", id.String()),
		slog.String("size", humanize.Bytes(uint64(task.BytesRead()))),
	)
	m.recordEvent(context.Background(), id, "completed", fileName)
}

// stream performs the chunked HTTP-to-disk copy, observing ctx cancellation
// at each chunk boundary (§5 "Cancellation": "cooperative cancellation
// tokens observed at chunk boundaries").
func (m *Manager) stream(ctx context.Context, task *DownloadTask, game, cdnURL, fileName string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cdnURL, nil)
	if err != nil {
		return fmt.Errorf("downloader: building request: %w", err)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("downloader: requesting %s: %w", fileName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("downloader: unexpected status %d downloading %s", resp.StatusCode, fileName)
	}

	destDir := filepath.Join(m.downloadDir, game)
	if err := os.MkdirAll(destDir, 0o755); err != nil { //nolint:mnd
		return fmt.Errorf("downloader: creating %s: %w", destDir, err)
	}

	partPath := filepath.Join(destDir, fileName+partSuffix)

	f, err := os.Create(partPath)
	if err != nil {
		return fmt.Errorf("downloader: creating %s: %w", partPath, err)
	}

	if err := copyChunked(ctx, f, resp.Body, task); err != nil {
		f.Close()
		os.Remove(partPath)

		return err
	}

	if err := f.Close(); err != nil {
		os.Remove(partPath)

		return fmt.Errorf("downloader: closing %s: %w", partPath, err)
	}

	finalPath := filepath.Join(destDir, fileName)
	if err := os.Rename(partPath, finalPath); err != nil {
		return fmt.Errorf("downloader: renaming %s to %s: %w", partPath, finalPath, err)
	}

	return nil
}

// copyChunked reads fixed-size chunks from src and writes to dst, adding
// each chunk's size to the task's progress counter and checking ctx after
// every chunk.
func copyChunked(ctx context.Context, dst *os.File, src io.Reader, task *DownloadTask) error {
	buf := make([]byte, chunkSize)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, readErr := src.Read(buf)
		if n > 0 {
			if _, writeErr := dst.Write(buf[:n]); writeErr != nil {
				return fmt.Errorf("downloader: writing chunk: %w", writeErr)
			}

			task.addBytes(int64(n))
		}

		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return nil
			}

			return fmt.Errorf("downloader: reading chunk: %w", readErr)
		}
	}
}

// finalize writes the archive sidecar and registers the archive with the
// metadata index (§4.2 step 6).
func (m *Manager) finalize(ctx context.Context, id modid.FileIdentity, game, fileName string) error {
	status := metaindex.UpdateStatus{Tag: metaindex.StatusUpToDate, Timestamp: time.Now().Unix()}

	if err := m.sidecars.WriteArchiveSidecar(ctx, id, fileName, status); err != nil {
		m.logger.Warn("sidecar write failed, archive remains re-associable by filename",
			slog.String("file_name", fileName),
			slog.String("error", err.Error()),
		)
	}

	info, statErr := os.Stat(filepath.Join(m.downloadDir, game, fileName))

	var size int64
	if statErr == nil {
		size = info.Size()
	}

	rec := &metaindex.ArchiveRecord{
		FileName: fileName,
		Size:     size,
		Binding:  &metaindex.RemoteBinding{FileIdentity: id, Status: status},
		State:    metaindex.StateDownloaded,
	}

	_, err := m.index.AttachArchive(ctx, rec, nil, nil, nil)

	return err
}

func fileNameFromURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("downloader: parsing CDN URL: %w", err)
	}

	name, err := url.PathUnescape(path.Base(u.Path))
	if err != nil {
		return "", fmt.Errorf("downloader: decoding filename: %w", err)
	}

	// CDN paths aren't guaranteed to arrive NFC-normalized; without this a
	// decomposed-form name can fail to match an already-indexed archive's
	// composed-form name on disk.
	return norm.NFC.String(name), nil
}
