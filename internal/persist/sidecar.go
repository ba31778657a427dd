package persist

import (
	"context"
	"errors"
	"strconv"

	"github.com/dandels/dmodman-core/internal/metaindex"
	"github.com/dandels/dmodman-core/internal/modid"
)

// ArchiveSidecar is the JSON shape written alongside a downloaded archive
// (<archive_name>.json).
type ArchiveSidecar struct {
	GameDomain string `json:"game_domain"`
	ModID      uint32 `json:"mod_id"`
	FileID     uint64 `json:"file_id"`
	Status     string `json:"status"`
	Timestamp  int64  `json:"timestamp"`
}

// InstalledSidecar is the JSON shape written inside an installed mod
// directory (.dmodman-meta.json), carrying FileIdentity, version, category
// and current UpdateStatus (§4.4 "Finalisation").
type InstalledSidecar struct {
	GameDomain string `json:"game_domain"`
	ModID      uint32 `json:"mod_id"`
	FileID     uint64 `json:"file_id"`
	Version    string `json:"version"`
	CategoryID uint32 `json:"category_id"`
	Status     string `json:"status"`
	Timestamp  int64  `json:"timestamp"`
}

// SidecarStore implements metaindex.SidecarWriter against the on-disk
// layout described in §4.5.
type SidecarStore struct {
	DownloadDir string
	InstallDir  string
}

// NewSidecarStore creates a SidecarStore rooted at the given download and
// install directories.
func NewSidecarStore(downloadDir, installDir string) *SidecarStore {
	return &SidecarStore{DownloadDir: downloadDir, InstallDir: installDir}
}

// WriteArchiveSidecar implements metaindex.SidecarWriter. It loads any
// existing sidecar, then sets game/mod/file id from id and status +
// timestamp from status, keeping the sidecar's other persisted fields.
func (s *SidecarStore) WriteArchiveSidecar(
	_ context.Context, id modid.FileIdentity, archiveName string, status metaindex.UpdateStatus,
) error {
	path := ArchiveSidecarPath(s.DownloadDir, id.GameDomain, archiveName)

	var sc ArchiveSidecar

	if err := Load(path, &sc); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	sc.GameDomain = id.GameDomain
	sc.ModID = id.ModID
	sc.FileID = id.FileID
	sc.Status = status.Tag.String()
	sc.Timestamp = status.Timestamp

	return Save(path, &sc)
}

// WriteInstalledSidecar implements metaindex.SidecarWriter, symmetric to
// WriteArchiveSidecar.
func (s *SidecarStore) WriteInstalledSidecar(
	_ context.Context, id modid.FileIdentity, dirName string, status metaindex.UpdateStatus,
) error {
	path := InstalledSidecarPath(s.InstallDir, dirName)

	var sc InstalledSidecar

	if err := Load(path, &sc); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	sc.GameDomain = id.GameDomain
	sc.ModID = id.ModID
	sc.FileID = id.FileID
	sc.Status = status.Tag.String()
	sc.Timestamp = status.Timestamp

	return Save(path, &sc)
}

// WriteInstalledMetadata writes the full installed sidecar at extraction
// finalisation time (§4.4 "Finalisation"): identity, version, category, and
// current status. WriteInstalledSidecar alone (the metaindex.SidecarWriter
// method, used by propagate_status) only ever refreshes status and leaves
// version/category as last written here.
func (s *SidecarStore) WriteInstalledMetadata(
	_ context.Context, id modid.FileIdentity, dirName, version string, categoryID uint32, status metaindex.UpdateStatus,
) error {
	path := InstalledSidecarPath(s.InstallDir, dirName)

	sc := InstalledSidecar{
		GameDomain: id.GameDomain,
		ModID:      id.ModID,
		FileID:     id.FileID,
		Version:    version,
		CategoryID: categoryID,
		Status:     status.Tag.String(),
		Timestamp:  status.Timestamp,
	}

	return Save(path, &sc)
}

// ParseStatusTag parses a persisted status tag string back into a
// metaindex.StatusTag.
func ParseStatusTag(s string) (metaindex.StatusTag, error) {
	switch s {
	case "up_to_date":
		return metaindex.StatusUpToDate, nil
	case "has_new_file":
		return metaindex.StatusHasNewFile, nil
	case "out_of_date":
		return metaindex.StatusOutOfDate, nil
	case "ignored_until":
		return metaindex.StatusIgnoredUntil, nil
	default:
		return 0, errors.New("persist: unknown status tag " + strconv.Quote(s))
	}
}

// LoadLastUpdated reads the single ASCII-integer "last successful check"
// timestamp. Returns 0, nil if the file does not exist yet (never checked).
func LoadLastUpdated(cacheDir string) (int64, error) {
	data, err := loadRaw(LastUpdatedPath(cacheDir))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, nil
		}

		return 0, err
	}

	v, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, errors.New("persist: malformed last_updated file: " + err.Error())
	}

	return v, nil
}

// SaveLastUpdated writes the single ASCII-integer "last successful check"
// timestamp.
func SaveLastUpdated(cacheDir string, t int64) error {
	return saveRaw(LastUpdatedPath(cacheDir), []byte(strconv.FormatInt(t, 10)))
}
