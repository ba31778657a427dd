// Package extract implements the extraction coordinator (§4.4): schedules,
// cancels and finalises archive-to-directory extractions with a
// single-inflight-per-archive guarantee, removing the partially-created
// destination directory on cancellation.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dandels/dmodman-core/internal/history"
	"github.com/dandels/dmodman-core/internal/metaindex"
	"github.com/dandels/dmodman-core/internal/persist"
)

// Coordinator owns the archive-name -> cancellation-handle map described in
// §4.4's single-flight invariant.
type Coordinator struct {
	logger      *slog.Logger
	index       *metaindex.Index
	sidecars    *persist.SidecarStore
	downloadDir string
	installDir  string
	openArchive OpenFunc
	history     *history.Store

	mu   sync.Mutex
	jobs map[string]context.CancelFunc
}

// SetHistory attaches the observability ledger; nil disables recording.
func (c *Coordinator) SetHistory(h *history.Store) {
	c.history = h
}

func (c *Coordinator) recordEvent(ctx context.Context, node *metaindex.Node, outcome, detail string) {
	if c.history == nil {
		return
	}

	if err := c.history.Record(ctx, history.Event{
		Timestamp: time.Now().Unix(), Kind: "extract", Identity: node.ID, Detail: detail, Outcome: outcome,
	}); err != nil {
		c.logger.Warn("history: recording extraction event failed", slog.String("error", err.Error()))
	}
}

// NewCoordinator creates a Coordinator. openArchive defaults to OpenZip
// when nil.
func NewCoordinator(
	index *metaindex.Index, sidecars *persist.SidecarStore, downloadDir, installDir string,
	openArchive OpenFunc, logger *slog.Logger,
) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}

	if openArchive == nil {
		openArchive = OpenZip
	}

	return &Coordinator{
		logger:      logger,
		index:       index,
		sidecars:    sidecars,
		downloadDir: downloadDir,
		installDir:  installDir,
		openArchive: openArchive,
		jobs:        make(map[string]context.CancelFunc),
	}
}

// ListContent reads an archive's entry paths without extracting (§4.4).
func (c *Coordinator) ListContent(ctx context.Context, archiveName string) ([]string, error) {
	node, ok := c.index.GetByArchiveName(archiveName)
	if !ok {
		return nil, ErrArchiveNotFound
	}

	archivePath := persist.ArchivePath(c.downloadDir, node.ID.GameDomain, archiveName)

	dec, err := c.openArchive(archivePath)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var files []string

	for {
		entry, ok, err := dec.Next(ctx)
		if err != nil {
			return nil, err
		}

		if !ok {
			break
		}

		if !entry.IsDir() {
			files = append(files, entry.Path())
		}
	}

	return files, nil
}

// Extract begins an extraction job and returns once it has been scheduled;
// completion happens asynchronously and is observed via the ArchiveRecord's
// State (§4.4).
func (c *Coordinator) Extract(_ context.Context, archiveName, destDirName string, overwrite bool) error {
	node, ok := c.index.GetByArchiveName(archiveName)
	if !ok {
		return ErrArchiveNotFound
	}

	destPath := persist.InstalledDirPath(c.installDir, destDirName)

	if !overwrite {
		if _, err := os.Stat(destPath); err == nil {
			return ErrAlreadyExists
		}
	}

	c.mu.Lock()
	if _, inProgress := c.jobs[archiveName]; inProgress {
		c.mu.Unlock()

		return ErrInProgress
	}

	jobCtx, cancel := context.WithCancel(context.Background())
	c.jobs[archiveName] = cancel
	c.mu.Unlock()

	jobID := uuid.New()

	go c.run(jobCtx, jobID, node, archiveName, destDirName, destPath)

	return nil
}

// Cancel aborts an in-flight job; the job observes the signal at the next
// chunk boundary and cleans up its partial destination directory.
func (c *Coordinator) Cancel(archiveName string) error {
	c.mu.Lock()
	cancel, ok := c.jobs[archiveName]
	c.mu.Unlock()

	if !ok {
		return ErrNotFound
	}

	cancel()

	return nil
}

func (c *Coordinator) run(
	ctx context.Context, jobID uuid.UUID, node *metaindex.Node, archiveName, destDirName, destPath string,
) {
	defer func() {
		c.mu.Lock()
		delete(c.jobs, archiveName)
		c.mu.Unlock()
	}()

	node.SetArchiveState(archiveName, metaindex.StateExtracting)
	c.logger.Info("extraction started",
		slog.String("job_id", jobID.String()), slog.String("archive", archiveName), slog.String("dest", destDirName))

	archivePath := persist.ArchivePath(c.downloadDir, node.ID.GameDomain, archiveName)

	err := c.runExtraction(ctx, archivePath, destPath)

	if ctx.Err() != nil {
		if rmErr := os.RemoveAll(destPath); rmErr != nil {
			c.logger.Warn("unable to remove partial destination directory",
				slog.String("dest", destPath), slog.String("error", rmErr.Error()))
		}

		if len(node.Installed()) > 0 {
			node.SetArchiveState(archiveName, metaindex.StateInstalled)
		} else {
			node.SetArchiveState(archiveName, metaindex.StateDownloaded)
		}

		c.logger.Info("extraction cancelled", slog.String("archive", archiveName))
		c.recordEvent(context.Background(), node, "cancelled", destDirName)

		return
	}

	if err != nil {
		node.SetArchiveState(archiveName, metaindex.StateError)
		c.logger.Warn("extraction failed",
			slog.String("archive", archiveName), slog.String("error", err.Error()))
		c.recordEvent(context.Background(), node, "failed", destDirName)

		return
	}

	if err := c.finalize(context.Background(), node, destDirName); err != nil {
		c.logger.Warn("extraction succeeded but finalisation failed",
			slog.String("archive", archiveName), slog.String("error", err.Error()))
	}

	node.SetArchiveState(archiveName, metaindex.StateInstalled)
	c.logger.Info("extraction finished", slog.String("archive", archiveName), slog.String("dest", destDirName))
	c.recordEvent(context.Background(), node, "completed", destDirName)
}

// runExtraction performs the entry loop (§4.4 "Entry loop"), observing ctx
// cancellation at each entry and each data block.
func (c *Coordinator) runExtraction(ctx context.Context, archivePath, destPath string) error {
	if err := os.MkdirAll(destPath, 0o755); err != nil { //nolint:mnd
		return fmt.Errorf("extract: creating %s: %w", destPath, err)
	}

	dec, err := c.openArchive(archivePath)
	if err != nil {
		return err
	}
	defer dec.Close()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		entry, ok, err := dec.Next(ctx)
		if err != nil {
			return err
		}

		if !ok {
			return nil
		}

		target := filepath.Join(destPath, filepath.FromSlash(normalizeEntryPath(entry.Path())))

		if entry.IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil { //nolint:mnd
				return fmt.Errorf("extract: creating directory %s: %w", target, err)
			}

			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil { //nolint:mnd
			return fmt.Errorf("extract: creating parent of %s: %w", target, err)
		}

		if err := c.writeEntry(ctx, dec, target); err != nil {
			return err
		}
	}
}

// writeEntry consumes data blocks for the current decoder entry (§4.4).
func (c *Coordinator) writeEntry(ctx context.Context, dec Decoder, target string) error {
	f, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("extract: creating %s: %w", target, err)
	}
	defer f.Close()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		status, data, err := dec.ReadDataBlock(ctx)
		if err != nil {
			return err
		}

		if len(data) > 0 {
			if _, werr := f.Write(data); werr != nil {
				return fmt.Errorf("extract: writing %s: %w", target, werr)
			}
		}

		switch status {
		case StatusEOF:
			return nil
		case StatusWarn:
			c.logger.Warn("warning while extracting entry", slog.String("target", target))
		case StatusOK:
		case StatusFailed:
			return fmt.Errorf("extract: decoder reported failure for %s", target)
		}
	}
}

// finalize attaches the InstalledRecord and writes the full sidecar (§4.4
// "Finalisation").
func (c *Coordinator) finalize(ctx context.Context, node *metaindex.Node, destDirName string) error {
	status := node.Status.Load()

	var (
		version    string
		categoryID uint32
	)

	if fd := node.FileDetails(); fd != nil {
		version = fd.Version
		categoryID = fd.CategoryID
	}

	displayName := ""
	if mi := node.ModInfo(); mi != nil {
		displayName = mi.Name
	}

	rec := &metaindex.InstalledRecord{
		DirName:     destDirName,
		Binding:     &metaindex.RemoteBinding{FileIdentity: node.ID, Status: status},
		DisplayName: displayName,
		Version:     version,
		Status:      status,
	}

	if _, err := c.index.AttachInstalled(ctx, destDirName, rec, nil, nil, nil); err != nil {
		return fmt.Errorf("extract: attaching installed record: %w", err)
	}

	if err := c.sidecars.WriteInstalledMetadata(ctx, node.ID, destDirName, version, categoryID, status); err != nil {
		return fmt.Errorf("extract: writing installed sidecar: %w", err)
	}

	return nil
}
