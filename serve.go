package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dandels/dmodman-core/internal/archivescan"
	"github.com/dandels/dmodman-core/internal/downloader"
	"github.com/dandels/dmodman-core/internal/history"
	"github.com/dandels/dmodman-core/internal/ipc"
	"github.com/dandels/dmodman-core/internal/metaindex"
	"github.com/dandels/dmodman-core/internal/modid"
	"github.com/dandels/dmodman-core/internal/persist"
	"github.com/dandels/dmodman-core/internal/updatecheck"
)

// updateCheckInterval is how often serve calls Checker.UpdateAll. The
// 28-day cadence policy (§4.3) decides how much work each call actually
// does; this just keeps that decision fresh without a CLI-driven trigger.
const updateCheckInterval = 1 * time.Hour

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the daemon: socket listener and periodic update checks",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())
	logger := cc.Logger

	ctx := shutdownContext(cmd.Context(), logger)

	games := configuredGames(cc.Cfg, cc.Game)
	if len(games) == 0 {
		logger.Warn("no game configured; set --game or default_game in config")
	}

	idx, _ := buildIndex(ctx, cc.Cfg, cc.Paths, games, logger)
	logger.Info("startup reconciliation complete", slog.Int("indexed_files", idx.Size()))

	// The download/extraction pipeline targets one shared root; per-game
	// profile overrides only steer index reconciliation and CLI reporting,
	// since DownloadTask resolves a download's game dynamically from its
	// nxm URL rather than at Manager construction time.
	sidecars := persist.NewSidecarStore(cc.Paths.DownloadDir, cc.Paths.InstallDir)

	api := apiClientFromConfig(cc)

	if err := os.MkdirAll(cc.Paths.DataDir, 0o755); err != nil { //nolint:mnd
		logger.Warn("creating data directory failed", slog.String("error", err.Error()))
	}

	hist, err := history.NewStore(historyDBPath(cc.Paths), logger)
	if err != nil {
		logger.Warn("history ledger unavailable, continuing without it", slog.String("error", err.Error()))

		hist = nil
	} else {
		defer hist.Close()
	}

	dm := downloader.NewManager(
		api, nil, idx, sidecars, cc.Paths.DownloadDir, cc.Cfg.Transfers.MaxConcurrentDownloads, logger,
	)
	if hist != nil {
		dm.SetHistory(hist)
	}

	// extract.Coordinator is a public library entry point consumed directly
	// by the terminal UI layer, an external collaborator out of this
	// module's scope (§1, §13) — it has no trigger on the wire protocol
	// (§6 carries only mod-protocol URLs and the probe string), so serve
	// does not instantiate one.

	checker := updatecheck.NewChecker(api, idx, cc.Paths.CacheDir, logger)
	if hist != nil {
		checker.SetHistory(hist)
	}

	for _, game := range games {
		downloadDir, installDir := cc.Cfg.ProfileFor(game, cc.Paths)
		go watchGame(ctx, idx, game, downloadDir, installDir, logger)
	}

	go runUpdateCheckLoop(ctx, checker, logger)

	onURL := func(ctx context.Context, u modid.NxmURL) error {
		_, err := dm.Start(ctx, u)

		return err
	}

	server := ipc.NewServer(appSocketPath(), onURL, logger)

	if err := server.Listen(); err != nil {
		return err
	}
	defer server.Close()

	logger.Info("serving", slog.String("socket", appSocketPath()))

	return server.Serve(ctx)
}

// watchGame keeps idx in sync with on-disk archive/installed-directory
// removals observed while the daemon runs (§3 invariant 5: a node is
// destroyed once its last archive/installed binding is gone). Startup
// reconciliation (buildIndex) only covers the state at launch; without this,
// a node removed mid-run would linger in idx until the next restart.
func watchGame(ctx context.Context, idx *metaindex.Index, game, downloadDir, installDir string, logger *slog.Logger) {
	archiveEvents := make(chan archivescan.Event)
	installedEvents := make(chan archivescan.Event)

	go func() {
		w := archivescan.NewWatcher(downloadDir, game, logger)
		if err := w.Watch(ctx, archiveEvents); err != nil {
			logger.Warn("archive watcher stopped", slog.String("game", game), slog.String("error", err.Error()))
		}
	}()

	go func() {
		// Installed directories sit directly under installDir (no game level).
		w := archivescan.NewWatcher(installDir, "", logger)
		if err := w.Watch(ctx, installedEvents); err != nil {
			logger.Warn("installed watcher stopped", slog.String("game", game), slog.String("error", err.Error()))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case ev := <-archiveEvents:
			logger.Debug("archive change observed",
				slog.String("game", game), slog.String("file", ev.FileName), slog.Bool("removed", ev.Removed))

			if ev.Removed {
				idx.DetachArchive(ev.FileName)
			}

		case ev := <-installedEvents:
			logger.Debug("installed directory change observed",
				slog.String("game", game), slog.String("dir", ev.FileName), slog.Bool("removed", ev.Removed))

			if ev.Removed {
				idx.DetachInstalled(ev.FileName)
			}
		}
	}
}

func runUpdateCheckLoop(ctx context.Context, checker *updatecheck.Checker, logger *slog.Logger) {
	ticker := time.NewTicker(updateCheckInterval)
	defer ticker.Stop()

	if err := checker.UpdateAll(ctx); err != nil {
		logger.Warn("initial update check failed", slog.String("error", err.Error()))
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := checker.UpdateAll(ctx); err != nil {
				logger.Warn("update check failed", slog.String("error", err.Error()))
			}
		}
	}
}
