package main

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/dandels/dmodman-core/internal/appconfig"
	"github.com/dandels/dmodman-core/internal/archivescan"
	"github.com/dandels/dmodman-core/internal/metaindex"
	"github.com/dandels/dmodman-core/internal/modid"
	"github.com/dandels/dmodman-core/internal/persist"
)

// configuredGames returns every game domain the CLI knows about: the
// explicitly selected game (flag or config default) plus every profile
// override, deduplicated and sorted for deterministic iteration order.
func configuredGames(cfg *appconfig.Config, selected string) []string {
	seen := make(map[string]bool)

	var games []string

	add := func(g string) {
		if g == "" || seen[g] {
			return
		}

		seen[g] = true

		games = append(games, g)
	}

	add(selected)
	add(cfg.DefaultGame)

	for g := range cfg.Profiles {
		add(g)
	}

	sort.Strings(games)

	return games
}

// gameSidecars implements metaindex.SidecarWriter by resolving each game's
// download/install roots from its profile override (§10.3), delegating to a
// per-game persist.SidecarStore. A single Index spans every configured game,
// but each game may name its own directories, so one fixed SidecarStore
// cannot serve them all.
type gameSidecars struct {
	cfg   *appconfig.Config
	paths appconfig.Paths

	mu     sync.Mutex
	stores map[string]*persist.SidecarStore
}

func newGameSidecars(cfg *appconfig.Config, paths appconfig.Paths) *gameSidecars {
	return &gameSidecars{cfg: cfg, paths: paths, stores: make(map[string]*persist.SidecarStore)}
}

func (g *gameSidecars) storeFor(game string) *persist.SidecarStore {
	g.mu.Lock()
	defer g.mu.Unlock()

	if s, ok := g.stores[game]; ok {
		return s
	}

	downloadDir, installDir := g.cfg.ProfileFor(game, g.paths)
	s := persist.NewSidecarStore(downloadDir, installDir)
	g.stores[game] = s

	return s
}

func (g *gameSidecars) WriteArchiveSidecar(
	ctx context.Context, id modid.FileIdentity, archiveName string, status metaindex.UpdateStatus,
) error {
	return g.storeFor(id.GameDomain).WriteArchiveSidecar(ctx, id, archiveName, status)
}

func (g *gameSidecars) WriteInstalledSidecar(
	ctx context.Context, id modid.FileIdentity, dirName string, status metaindex.UpdateStatus,
) error {
	return g.storeFor(id.GameDomain).WriteInstalledSidecar(ctx, id, dirName, status)
}

// buildIndex rebuilds a metaindex.Index from on-disk sidecars for every
// configured game (§4.5 startup reconciliation). Used both by `serve` at
// startup and by the `status`/`ignore` commands, which have no
// live daemon to query (§6's wire protocol carries only mod-protocol URLs
// and the probe string, not a query RPC).
func buildIndex(
	ctx context.Context, cfg *appconfig.Config, paths appconfig.Paths, games []string, logger *slog.Logger,
) (*metaindex.Index, *gameSidecars) {
	sidecars := newGameSidecars(cfg, paths)
	idx := metaindex.New(logger, sidecars)

	for _, game := range games {
		downloadDir, installDir := cfg.ProfileFor(game, paths)
		reconcileGame(ctx, idx, game, downloadDir, installDir, logger)
	}

	return idx, sidecars
}

func reconcileGame(
	ctx context.Context, idx *metaindex.Index, game, downloadDir, installDir string, logger *slog.Logger,
) {
	archives, err := archivescan.Scan(downloadDir, game)
	if err != nil {
		logger.Warn("reconciling archives failed", slog.String("game", game), slog.String("error", err.Error()))
	}

	for _, entry := range archives {
		if entry.Sidecar == nil {
			continue
		}

		tag, tagErr := persist.ParseStatusTag(entry.Sidecar.Status)
		if tagErr != nil {
			logger.Warn("skipping archive with unparsable sidecar status",
				slog.String("file_name", entry.FileName), slog.String("error", tagErr.Error()))

			continue
		}

		id := modid.FileIdentity{
			GameDomain: entry.Sidecar.GameDomain,
			ModID:      entry.Sidecar.ModID,
			FileID:     entry.Sidecar.FileID,
		}

		rec := &metaindex.ArchiveRecord{
			FileName: entry.FileName,
			Size:     entry.Size,
			Binding: &metaindex.RemoteBinding{
				FileIdentity: id,
				Status:       metaindex.UpdateStatus{Tag: tag, Timestamp: entry.Sidecar.Timestamp},
			},
			State: metaindex.StateDownloaded,
		}

		if _, err := idx.AttachArchive(ctx, rec, nil, nil, nil); err != nil {
			logger.Warn("attaching archive during reconciliation failed",
				slog.String("file_name", entry.FileName), slog.String("error", err.Error()))
		}
	}

	installed, err := archivescan.ScanInstalled(installDir)
	if err != nil {
		logger.Warn("reconciling installed mods failed", slog.String("game", game), slog.String("error", err.Error()))
	}

	for _, entry := range installed {
		if entry.Sidecar == nil {
			continue
		}

		tag, tagErr := persist.ParseStatusTag(entry.Sidecar.Status)
		if tagErr != nil {
			logger.Warn("skipping installed directory with unparsable sidecar status",
				slog.String("dir_name", entry.DirName), slog.String("error", tagErr.Error()))

			continue
		}

		id := modid.FileIdentity{
			GameDomain: entry.Sidecar.GameDomain,
			ModID:      entry.Sidecar.ModID,
			FileID:     entry.Sidecar.FileID,
		}
		status := metaindex.UpdateStatus{Tag: tag, Timestamp: entry.Sidecar.Timestamp}

		rec := &metaindex.InstalledRecord{
			DirName: entry.DirName,
			Binding: &metaindex.RemoteBinding{FileIdentity: id, Status: status},
			Version: entry.Sidecar.Version,
			Status:  status,
		}

		if _, err := idx.AttachInstalled(ctx, entry.DirName, rec, nil, nil, nil); err != nil {
			logger.Warn("attaching installed directory during reconciliation failed",
				slog.String("dir_name", entry.DirName), slog.String("error", err.Error()))
		}
	}
}
