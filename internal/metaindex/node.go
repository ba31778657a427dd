package metaindex

import (
	"sync"

	"github.com/dandels/dmodman-core/internal/modid"
)

// Node is the unifying ModFileMetadata entity keyed by FileIdentity. Hot
// fields (archive/installed sets, hydration fields) sit behind an inner
// mutex; Status is lock-free per §5.
type Node struct {
	ID modid.FileIdentity

	mu        sync.Mutex
	archives  map[string]*ArchiveRecord   // keyed by archive file name
	installed map[string]*InstalledRecord // keyed by directory name

	hydrationMu sync.Mutex
	fileDetails *FileDetails
	modInfo     *ModInfo
	md5Result   *Md5Result

	Status *AtomicStatus
}

func newNode(id modid.FileIdentity, initial UpdateStatus) *Node {
	return &Node{
		ID:        id,
		archives:  make(map[string]*ArchiveRecord),
		installed: make(map[string]*InstalledRecord),
		Status:    NewAtomicStatus(initial),
	}
}

// Archives returns a snapshot slice of the node's linked archive records.
func (n *Node) Archives() []*ArchiveRecord {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := make([]*ArchiveRecord, 0, len(n.archives))
	for _, a := range n.archives {
		out = append(out, a)
	}

	return out
}

// SetArchiveState mutates an already-attached ArchiveRecord's install state
// in place, reporting whether the archive name was found. Used by the
// extraction coordinator to drive Downloaded -> Extracting -> Installed/
// Error transitions (§4.4) without racing Archives() snapshots.
func (n *Node) SetArchiveState(name string, state InstallState) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	rec, ok := n.archives[name]
	if !ok {
		return false
	}

	rec.State = state

	return true
}

// Installed returns a snapshot slice of the node's linked installed records.
func (n *Node) Installed() []*InstalledRecord {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := make([]*InstalledRecord, 0, len(n.installed))
	for _, r := range n.installed {
		out = append(out, r)
	}

	return out
}

// Empty reports whether the node has no archive and no installed references
// left, making it eligible for garbage collection (invariant 5).
func (n *Node) Empty() bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	return len(n.archives) == 0 && len(n.installed) == 0
}

// FileDetails returns the hydrated per-file remote metadata, if any.
func (n *Node) FileDetails() *FileDetails {
	n.hydrationMu.Lock()
	defer n.hydrationMu.Unlock()

	return n.fileDetails
}

// ModInfo returns the hydrated per-mod remote metadata, if any.
func (n *Node) ModInfo() *ModInfo {
	n.hydrationMu.Lock()
	defer n.hydrationMu.Unlock()

	return n.modInfo
}

// Md5Result returns the hydrated hash-lookup answer, if any.
func (n *Node) Md5Result() *Md5Result {
	n.hydrationMu.Lock()
	defer n.hydrationMu.Unlock()

	return n.md5Result
}

// hydrate fills in missing remote fields without overwriting already-present
// ones, matching the source's fill_mod_file_data behaviour (only fill when
// nil).
func (n *Node) hydrate(fd *FileDetails, mi *ModInfo, md5 *Md5Result) {
	n.hydrationMu.Lock()
	defer n.hydrationMu.Unlock()

	if n.fileDetails == nil && fd != nil {
		n.fileDetails = fd
	}

	if n.modInfo == nil && mi != nil {
		n.modInfo = mi
	}

	if n.md5Result == nil && md5 != nil {
		n.md5Result = md5
	}
}

// UploadedTimestamp returns the file's own upload timestamp from hydrated
// FileDetails, or ok=false if not yet known.
func (n *Node) UploadedTimestamp() (int64, bool) {
	fd := n.FileDetails()
	if fd == nil {
		return 0, false
	}

	return fd.UploadedTimestamp, true
}
