package persist

import (
	"fmt"
	"path/filepath"
)

// DataKind identifies a persistable record type. The type's identity
// determines its path via DataPathFor rather than a per-type static
// constant (spec.md §9).
type DataKind int

const (
	KindDownloadLink DataKind = iota
	KindFileList
	KindModInfo
	KindMd5Search
)

// DataPathFor resolves the on-disk path for a cached record under
// <cache>/<profile>/ (§4.5's file layout table). ids are interpreted
// positionally per kind: DownloadLink/Md5Search take (modID, fileID);
// FileList/ModInfo take (modID).
func DataPathFor(cacheDir string, kind DataKind, ids ...uint64) string {
	switch kind {
	case KindDownloadLink:
		return filepath.Join(cacheDir, "download_links", fmt.Sprintf("%d-%d.json", ids[0], ids[1]))
	case KindFileList:
		return filepath.Join(cacheDir, "file_lists", fmt.Sprintf("%d.json", ids[0]))
	case KindModInfo:
		return filepath.Join(cacheDir, "mod_info", fmt.Sprintf("%d.json", ids[0]))
	case KindMd5Search:
		return filepath.Join(cacheDir, "md5_search", fmt.Sprintf("%d-%d.json", ids[0], ids[1]))
	default:
		panic(fmt.Sprintf("persist: unknown DataKind %d", kind))
	}
}

// LastUpdatedPath is the single-scalar "last successful check" timestamp
// file under the profile's cache directory (§4.3, §4.5).
func LastUpdatedPath(cacheDir string) string {
	return filepath.Join(cacheDir, "last_updated")
}

// ArchiveSidecarPath is the sidecar JSON colocated with a downloaded
// archive under <downloads>/<game>/.
func ArchiveSidecarPath(downloadDir, game, archiveName string) string {
	return filepath.Join(downloadDir, game, archiveName+".json")
}

// ArchivePath is the archive file itself under <downloads>/<game>/.
func ArchivePath(downloadDir, game, archiveName string) string {
	return filepath.Join(downloadDir, game, archiveName)
}

// InstalledSidecarPath is the sidecar JSON inside an installed mod
// directory under <install>/<dir_name>/.
func InstalledSidecarPath(installDir, dirName string) string {
	return filepath.Join(installDir, dirName, ".dmodman-meta.json")
}

// InstalledDirPath is an installed mod's directory under <install>/.
func InstalledDirPath(installDir, dirName string) string {
	return filepath.Join(installDir, dirName)
}
