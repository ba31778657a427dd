package metaindex

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"go.uber.org/multierr"

	"github.com/dandels/dmodman-core/internal/modid"
)

// ErrNoBinding is returned by AttachArchive/AttachInstalled when the record
// carries no RemoteBinding — such records never join the index (data model
// invariant 1/2 only applies to bound records).
var ErrNoBinding = errors.New("metaindex: record has no remote binding")

// SidecarWriter persists a status transition to every on-disk sidecar that
// reflects a node, implemented by the persist package. Writes are
// best-effort: Index never aborts propagate_status because of one.
type SidecarWriter interface {
	WriteArchiveSidecar(ctx context.Context, id modid.FileIdentity, archiveName string, status UpdateStatus) error
	WriteInstalledSidecar(ctx context.Context, id modid.FileIdentity, dirName string, status UpdateStatus) error
}

type gameMod struct {
	game  string
	modID uint32
}

// Index is the central shared map keyed by remote file id, joining
// archive/installed/remote records (§4.1).
type Index struct {
	logger   *slog.Logger
	sidecars SidecarWriter

	mu            sync.RWMutex
	byFileID      map[modid.FileIdentity]*Node
	byArchiveName map[string]*Node
	byGameMod     map[gameMod][]*Node // sorted by FileID descending
}

// New creates an empty Index. sidecars may be nil in tests that don't
// exercise propagate_status.
func New(logger *slog.Logger, sidecars SidecarWriter) *Index {
	if logger == nil {
		logger = slog.Default()
	}

	return &Index{
		logger:        logger,
		sidecars:      sidecars,
		byFileID:      make(map[modid.FileIdentity]*Node),
		byArchiveName: make(map[string]*Node),
		byGameMod:     make(map[gameMod][]*Node),
	}
}

// GetByFileID is a total lookup (§4.1: "All lookups are total").
func (idx *Index) GetByFileID(id modid.FileIdentity) (*Node, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	n, ok := idx.byFileID[id]

	return n, ok
}

// GetByArchiveName is a total lookup by the archive's on-disk file name.
func (idx *Index) GetByArchiveName(name string) (*Node, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	n, ok := idx.byArchiveName[name]

	return n, ok
}

// ListByGameAndMod returns nodes ordered by FileID descending, so the most
// recent file is first (§4.1).
func (idx *Index) ListByGameAndMod(game string, modID uint32) []*Node {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	nodes := idx.byGameMod[gameMod{game, modID}]
	out := make([]*Node, len(nodes))
	copy(out, nodes)

	return out
}

// ListGameMods returns every distinct (game, modID) group currently
// indexed, sorted by game domain and then mod ID; this is not the order in
// which the groups were first attached. Used by the update checker to
// iterate groups.
func (idx *Index) ListGameMods() []struct {
	Game  string
	ModID uint32
} {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make([]struct {
		Game  string
		ModID uint32
	}, 0, len(idx.byGameMod))

	for gm := range idx.byGameMod {
		out = append(out, struct {
			Game  string
			ModID uint32
		}{gm.game, gm.modID})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Game != out[j].Game {
			return out[i].Game < out[j].Game
		}

		return out[i].ModID < out[j].ModID
	})

	return out
}

// getOrCreateNode returns the existing node for id, or creates one with
// initial status. Caller must hold idx.mu for writing.
func (idx *Index) getOrCreateNode(id modid.FileIdentity, initial UpdateStatus) (*Node, bool) {
	if n, ok := idx.byFileID[id]; ok {
		return n, false
	}

	n := newNode(id, initial)
	idx.byFileID[id] = n

	gm := gameMod{id.GameDomain, id.ModID}
	nodes := idx.byGameMod[gm]

	i := sort.Search(len(nodes), func(i int) bool { return nodes[i].ID.FileID <= id.FileID })
	nodes = append(nodes, nil)
	copy(nodes[i+1:], nodes[i:])
	nodes[i] = n
	idx.byGameMod[gm] = nodes

	return n, true
}

// AttachArchive links rec to the node for rec.Binding.FileIdentity, creating
// the node if absent, and hydrates any missing remote fields from the
// caller-supplied caches. Idempotent: attaching the same record twice is a
// no-op on the archive set (map keyed by file name).
func (idx *Index) AttachArchive(
	ctx context.Context, rec *ArchiveRecord, fd *FileDetails, mi *ModInfo, md5 *Md5Result,
) (*Node, error) {
	_ = ctx

	if rec.Binding == nil {
		return nil, ErrNoBinding
	}

	idx.mu.Lock()
	n, created := idx.getOrCreateNode(rec.Binding.FileIdentity, rec.Binding.Status)
	idx.mu.Unlock()

	if !created {
		n.Status.Store(LaterWins(n.Status.Load(), rec.Binding.Status))
	}

	n.hydrate(fd, mi, md5)

	n.mu.Lock()
	n.archives[rec.FileName] = rec
	n.mu.Unlock()

	idx.mu.Lock()
	idx.byArchiveName[rec.FileName] = n
	idx.mu.Unlock()

	return n, nil
}

// AttachInstalled links rec to the node for rec.Binding.FileIdentity,
// symmetric to AttachArchive.
func (idx *Index) AttachInstalled(
	ctx context.Context, dirName string, rec *InstalledRecord, fd *FileDetails, mi *ModInfo, md5 *Md5Result,
) (*Node, error) {
	_ = ctx

	if rec.Binding == nil {
		return nil, ErrNoBinding
	}

	idx.mu.Lock()
	n, created := idx.getOrCreateNode(rec.Binding.FileIdentity, rec.Binding.Status)
	idx.mu.Unlock()

	if !created {
		n.Status.Store(LaterWins(n.Status.Load(), rec.Binding.Status))
	}

	n.hydrate(fd, mi, md5)

	n.mu.Lock()
	n.installed[dirName] = rec
	n.mu.Unlock()

	return n, nil
}

// DetachArchive removes the archive-name reference and drops the node if it
// becomes empty (invariant 5).
func (idx *Index) DetachArchive(name string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	n, ok := idx.byArchiveName[name]
	if !ok {
		return
	}

	delete(idx.byArchiveName, name)

	n.mu.Lock()
	delete(n.archives, name)
	empty := len(n.archives) == 0 && len(n.installed) == 0
	n.mu.Unlock()

	if empty {
		idx.removeNodeLocked(n)
	}
}

// DetachInstalled removes the installed-directory reference and drops the
// node if it becomes empty.
func (idx *Index) DetachInstalled(dirName string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	n, ok := idx.byFileID[idx.findByInstalledDirLocked(dirName)]
	if !ok {
		return
	}

	n.mu.Lock()
	delete(n.installed, dirName)
	empty := len(n.archives) == 0 && len(n.installed) == 0
	n.mu.Unlock()

	if empty {
		idx.removeNodeLocked(n)
	}
}

// findByInstalledDirLocked is a linear scan; installed-directory counts are
// small (dozens to low thousands) relative to the cost of a second index,
// and detach is rare compared to attach/read. Caller must hold idx.mu.
func (idx *Index) findByInstalledDirLocked(dirName string) modid.FileIdentity {
	for id, n := range idx.byFileID {
		n.mu.Lock()
		_, ok := n.installed[dirName]
		n.mu.Unlock()

		if ok {
			return id
		}
	}

	return modid.FileIdentity{}
}

// removeNodeLocked deletes a now-empty node from every index. Caller must
// hold idx.mu.
func (idx *Index) removeNodeLocked(n *Node) {
	delete(idx.byFileID, n.ID)

	gm := gameMod{n.ID.GameDomain, n.ID.ModID}
	nodes := idx.byGameMod[gm]

	for i, candidate := range nodes {
		if candidate == n {
			nodes = append(nodes[:i], nodes[i+1:]...)
			break
		}
	}

	if len(nodes) == 0 {
		delete(idx.byGameMod, gm)
	} else {
		idx.byGameMod[gm] = nodes
	}
}

// PropagateStatus updates the node's in-memory status and persists the new
// value to every linked sidecar. Per-sidecar write errors are logged and
// aggregated but never fail the operation (§4.1, §7).
func (idx *Index) PropagateStatus(ctx context.Context, n *Node, status UpdateStatus) {
	n.Status.Store(status)

	if idx.sidecars == nil {
		return
	}

	var errs error

	for _, a := range n.Archives() {
		if err := idx.sidecars.WriteArchiveSidecar(ctx, n.ID, a.FileName, status); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	for _, r := range n.Installed() {
		if err := idx.sidecars.WriteInstalledSidecar(ctx, n.ID, r.DirName, status); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if errs != nil {
		idx.logger.Warn("propagate_status: one or more sidecars failed to persist",
			slog.String("file_identity", n.ID.String()),
			slog.String("error", errs.Error()),
		)
	}
}

// Size returns the number of nodes currently indexed, used by the status
// CLI surface.
func (idx *Index) Size() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return len(idx.byFileID)
}

// FindByFileID looks up a node by its file_id alone, ignoring game/mod.
// The primary index is keyed by the full FileIdentity tuple per §4.1's
// total-lookup contract, but the `ignore_update(file_id)` CLI operation
// only ever has the file_id (NexusMods file IDs are unique across the
// whole site in practice), so this performs a linear scan instead of
// adding a second map the core never otherwise needs.
func (idx *Index) FindByFileID(fileID uint64) (*Node, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	for id, n := range idx.byFileID {
		if id.FileID == fileID {
			return n, true
		}
	}

	return nil, false
}
