// Package metaindex implements the central shared index that unifies the
// three views of a mod file — downloaded archive, installed directory, and
// remote metadata — into one ModFileMetadata node keyed by FileIdentity.
package metaindex

import (
	"time"

	"github.com/dandels/dmodman-core/internal/modid"
)

// InstallState is the ArchiveRecord's lifecycle state (data model §3).
type InstallState int

const (
	StateDownloaded InstallState = iota
	StateExtracting
	StateInstalled
	StateError
)

func (s InstallState) String() string {
	switch s {
	case StateDownloaded:
		return "downloaded"
	case StateExtracting:
		return "extracting"
	case StateInstalled:
		return "installed"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// RemoteBinding is a FileIdentity plus the canonical UpdateStatus, present
// only when a file originated from the known remote repository.
type RemoteBinding struct {
	modid.FileIdentity
	Status UpdateStatus
}

// ArchiveRecord describes one downloaded archive on disk.
type ArchiveRecord struct {
	FileName string
	Size     int64
	Binding  *RemoteBinding // nil iff no sidecar accompanied the archive
	State    InstallState
}

// InstalledRecord describes one extracted directory.
type InstalledRecord struct {
	DirName     string
	Binding     *RemoteBinding // nil for directories produced outside this tool
	DisplayName string
	Version     string
	Status      UpdateStatus
}

// FileDetails is the per-file remote metadata returned by the files.json
// endpoint.
type FileDetails struct {
	FileID            uint64
	Name              string
	Version           string
	CategoryID        uint32
	UploadedTimestamp int64
}

const (
	CategoryOldVersion uint32 = 4
	CategoryArchived   uint32 = 7
)

// ModInfo is the per-mod remote metadata, shared across every file of a mod.
type ModInfo struct {
	ModID       uint32
	Name        string
	Summary     string
	Version     string
	UpdatedTime int64
}

// Md5Result is the answer to a hash-lookup query.
type Md5Result struct {
	modid.FileIdentity
	Md5 string
}

// FileUpdate is one edge in the remote's update chain for a mod.
type FileUpdate struct {
	OldFileID         uint64
	NewFileID         uint64
	OldName           string
	NewName           string
	UploadedTimestamp int64
}

// FileList is the remote per-mod listing: files and file_updates, both kept
// sorted by UploadedTimestamp (invariant 4).
type FileList struct {
	Files       []FileDetails
	FileUpdates []FileUpdate
}

// InsertFile inserts a FileDetails keeping Files sorted by UploadedTimestamp.
func (fl *FileList) InsertFile(fd FileDetails) {
	i := sortInsertionPointFiles(fl.Files, fd.UploadedTimestamp)
	fl.Files = append(fl.Files, FileDetails{})
	copy(fl.Files[i+1:], fl.Files[i:])
	fl.Files[i] = fd
}

// InsertUpdate inserts a FileUpdate keeping FileUpdates sorted by
// UploadedTimestamp.
func (fl *FileList) InsertUpdate(fu FileUpdate) {
	i := sortInsertionPointUpdates(fl.FileUpdates, fu.UploadedTimestamp)
	fl.FileUpdates = append(fl.FileUpdates, FileUpdate{})
	copy(fl.FileUpdates[i+1:], fl.FileUpdates[i:])
	fl.FileUpdates[i] = fu
}

func sortInsertionPointFiles(files []FileDetails, ts int64) int {
	lo, hi := 0, len(files)
	for lo < hi {
		mid := (lo + hi) / 2
		if files[mid].UploadedTimestamp <= ts {
			lo = mid + 1
		} else {
			hi = mid
		}
	}

	return lo
}

func sortInsertionPointUpdates(updates []FileUpdate, ts int64) int {
	lo, hi := 0, len(updates)
	for lo < hi {
		mid := (lo + hi) / 2
		if updates[mid].UploadedTimestamp <= ts {
			lo = mid + 1
		} else {
			hi = mid
		}
	}

	return lo
}

// Compact drops entries older than the oldest locally-present file for this
// mod, per §4.5's file-list compaction rule. oldestLocal is the earliest
// upload timestamp among local files for the mod.
func (fl *FileList) Compact(oldestLocal int64) {
	firstFile := 0
	for firstFile < len(fl.Files) && fl.Files[firstFile].UploadedTimestamp < oldestLocal {
		firstFile++
	}

	fl.Files = append([]FileDetails(nil), fl.Files[firstFile:]...)

	firstUpdate := 0
	for firstUpdate < len(fl.FileUpdates) && fl.FileUpdates[firstUpdate].UploadedTimestamp < oldestLocal {
		firstUpdate++
	}

	fl.FileUpdates = append([]FileUpdate(nil), fl.FileUpdates[firstUpdate:]...)
}

// NowUnix is a seam for injecting the clock in tests; the update checker
// reads the clock through it once per UpdateAll call. Other components call
// time.Now directly.
var NowUnix = func() int64 { return time.Now().Unix() }
