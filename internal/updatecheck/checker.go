// Package updatecheck implements the update-checker algorithm (§4.3):
// per-(game, mod) classification of local files against the remote file
// list, with a 28-day cadence shortcut and a user override for ignoring a
// known update.
package updatecheck

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dandels/dmodman-core/internal/apiclient"
	"github.com/dandels/dmodman-core/internal/history"
	"github.com/dandels/dmodman-core/internal/metaindex"
	"github.com/dandels/dmodman-core/internal/modid"
	"github.com/dandels/dmodman-core/internal/persist"
)

// cadenceWindowSeconds is 28 days, matching the original's literal 2419200
// (original_source/api/update_checker.rs).
const cadenceWindowSeconds = 28 * 24 * 60 * 60

const (
	categoryOldVersion = metaindex.CategoryOldVersion
	categoryArchived   = metaindex.CategoryArchived
)

// ErrNotIndexed is returned by IgnoreUpdate for a file_id the index has no
// record of.
var ErrNotIndexed = errors.New("updatecheck: file identity not indexed")

// Checker runs the update-checking algorithm against a metadata index.
type Checker struct {
	logger   *slog.Logger
	api      *apiclient.Client
	index    *metaindex.Index
	cacheDir string
	history  *history.Store
}

// SetHistory attaches the observability ledger; nil disables recording.
func (c *Checker) SetHistory(h *history.Store) {
	c.history = h
}

func (c *Checker) recordEvent(ctx context.Context, game string, modID uint32, outcome string) {
	if c.history == nil {
		return
	}

	id := modid.FileIdentity{GameDomain: game, ModID: modID}

	if err := c.history.Record(ctx, history.Event{
		Timestamp: time.Now().Unix(), Kind: "update_check", Identity: id, Outcome: outcome,
	}); err != nil {
		c.logger.Warn("history: recording update-check event failed", slog.String("error", err.Error()))
	}
}

// NewChecker creates a Checker.
func NewChecker(api *apiclient.Client, index *metaindex.Index, cacheDir string, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.Default()
	}

	return &Checker{logger: logger, api: api, index: index, cacheDir: cacheDir}
}

// UpdateAll runs the cadence policy (§4.3): within 28 days of the last
// successful check, only mods named in each game's "recent activity"
// listing are refreshed; otherwise every cached mod is checked.
func (c *Checker) UpdateAll(ctx context.Context) error {
	if c.api.Quota.Exhausted() {
		c.logger.Warn("quota exhausted, skipping this update-check cycle")

		return nil
	}

	now := metaindex.NowUnix()

	lastUpdated, err := persist.LoadLastUpdated(c.cacheDir)
	if err != nil {
		return fmt.Errorf("updatecheck: loading last_updated: %w", err)
	}

	groups := c.index.ListGameMods()

	if now-lastUpdated < cadenceWindowSeconds {
		c.updateViaRecentActivity(ctx, groups)
	} else {
		c.logger.Info("over 28 days since last update check, checking each mod individually")

		for _, g := range groups {
			c.updateMod(ctx, g.Game, g.ModID)
		}
	}

	if err := persist.SaveLastUpdated(c.cacheDir, now); err != nil {
		return fmt.Errorf("updatecheck: saving last_updated: %w", err)
	}

	c.logger.Info("finished checking updates")

	return nil
}

type gameModGroup = struct {
	Game  string
	ModID uint32
}

// updateViaRecentActivity uses the consolidated "updated.json" endpoint:
// one request per game covers a month of mod activity, and only mods
// appearing in it are refreshed (§4.3 cadence policy).
func (c *Checker) updateViaRecentActivity(ctx context.Context, groups []gameModGroup) {
	byGame := make(map[string][]uint32)
	for _, g := range groups {
		byGame[g.Game] = append(byGame[g.Game], g.ModID)
	}

	for game, modIDs := range byGame {
		if c.api.Quota.Exhausted() {
			c.logger.Warn("quota exhausted, skipping remaining games this cycle", slog.String("game", game))

			return
		}

		updated, err := c.api.Updated(ctx, game, "1m")
		if err != nil {
			c.logger.Warn("unable to fetch update list for game, skipping",
				slog.String("game", game),
				slog.String("error", err.Error()),
			)

			continue
		}

		recentlyUpdated := make(map[uint32]struct{}, len(updated))
		for _, u := range updated {
			recentlyUpdated[u.ModID] = struct{}{}
		}

		for _, modID := range modIDs {
			if _, ok := recentlyUpdated[modID]; ok {
				c.updateMod(ctx, game, modID)
			}
		}
	}
}

// updateMod checks one (game, mod) group (§4.3 "Algorithm"): try the
// cached file list first, refresh from the API only if some file is still
// classified UpToDate by the cached check, then persist any transitions.
func (c *Checker) updateMod(ctx context.Context, game string, modID uint32) {
	nodes := c.index.ListByGameAndMod(game, modID)
	if len(nodes) == 0 {
		return
	}

	fl, err := loadCachedFileList(c.cacheDir, modID)

	var results []nodeStatus

	needsRefresh := false

	if err == nil {
		results = checkMod(nodes, fl)

		for _, r := range results {
			if r.status.Tag == metaindex.StatusUpToDate {
				needsRefresh = true

				break
			}
		}
	} else if errors.Is(err, persist.ErrNotFound) {
		c.logger.Debug("no cached file list for mod, fetching", slog.Uint64("mod_id", uint64(modID)))
		needsRefresh = true
	} else {
		c.logger.Warn("failed to load cached file list, fetching",
			slog.Uint64("mod_id", uint64(modID)), slog.String("error", err.Error()))
		needsRefresh = true
	}

	if needsRefresh && c.api.Quota.Exhausted() {
		c.logger.Warn("quota exhausted, skipping file-list refresh", slog.Uint64("mod_id", uint64(modID)))

		needsRefresh = false
	}

	if needsRefresh {
		fresh, ferr := c.api.FileList(ctx, game, modID)
		if ferr != nil {
			c.logger.Warn("error refreshing file list for mod",
				slog.Uint64("mod_id", uint64(modID)), slog.String("error", ferr.Error()))
		} else {
			fl = fresh
			results = checkMod(nodes, fl)

			if err := saveCachedFileList(c.cacheDir, modID, fl, nodes); err != nil {
				c.logger.Warn("failed to persist refreshed file list",
					slog.Uint64("mod_id", uint64(modID)), slog.String("error", err.Error()))
			}
		}
	}

	changed := false

	for _, r := range results {
		if r.node.Status.Load() != r.status {
			c.index.PropagateStatus(ctx, r.node, r.status)
			changed = true
		}
	}

	outcome := "unchanged"
	if changed {
		outcome = "updated"
	}

	c.recordEvent(ctx, game, modID, outcome)
}

func loadCachedFileList(cacheDir string, modID uint32) (*metaindex.FileList, error) {
	var fl metaindex.FileList

	path := persist.DataPathFor(cacheDir, persist.KindFileList, uint64(modID))
	if err := persist.Load(path, &fl); err != nil {
		return nil, err
	}

	return &fl, nil
}

func saveCachedFileList(cacheDir string, modID uint32, fl *metaindex.FileList, nodes []*metaindex.Node) error {
	oldestLocal := int64(0)

	for _, n := range nodes {
		if ts, ok := n.UploadedTimestamp(); ok {
			if oldestLocal == 0 || ts < oldestLocal {
				oldestLocal = ts
			}
		}
	}

	if oldestLocal > 0 {
		fl.Compact(oldestLocal)
	}

	path := persist.DataPathFor(cacheDir, persist.KindFileList, uint64(modID))

	return persist.Save(path, fl)
}

// IgnoreUpdate implements the ignore_update user override (§4.3).
func (c *Checker) IgnoreUpdate(ctx context.Context, id modid.FileIdentity) error {
	node, ok := c.index.GetByFileID(id)
	if !ok {
		return ErrNotIndexed
	}

	return c.ignoreUpdateNode(ctx, node)
}

// IgnoreUpdateByFileID implements the `ignore_update(file_id)` CLI
// operation (§12.2 "dmodman ignore <file_id>"), which only ever has the
// bare file_id rather than the full (game, mod, file) identity.
func (c *Checker) IgnoreUpdateByFileID(ctx context.Context, fileID uint64) error {
	node, ok := c.index.FindByFileID(fileID)
	if !ok {
		return ErrNotIndexed
	}

	return c.ignoreUpdateNode(ctx, node)
}

func (c *Checker) ignoreUpdateNode(ctx context.Context, node *metaindex.Node) error {
	id := node.ID

	fl, err := loadCachedFileList(c.cacheDir, id.ModID)
	if err != nil || len(fl.FileUpdates) == 0 {
		return nil
	}

	latestRemoteFileUpdate := fl.FileUpdates[len(fl.FileUpdates)-1].UploadedTimestamp

	status := node.Status.Load()

	var newStatus metaindex.UpdateStatus

	switch status.Tag {
	case metaindex.StatusOutOfDate:
		newStatus = metaindex.UpdateStatus{Tag: metaindex.StatusIgnoredUntil, Timestamp: latestRemoteFileUpdate}
	case metaindex.StatusHasNewFile:
		newStatus = metaindex.UpdateStatus{Tag: metaindex.StatusUpToDate, Timestamp: latestRemoteFileUpdate}
	default:
		return nil
	}

	c.index.PropagateStatus(ctx, node, newStatus)

	return nil
}
