package archivescan

import (
	"errors"
	"fmt"
	"os"

	"github.com/dandels/dmodman-core/internal/persist"
)

// InstalledEntry is one extracted mod directory found under the install
// root, with its sidecar if present.
type InstalledEntry struct {
	DirName string
	Sidecar *persist.InstalledSidecar // nil for directories this tool didn't create
}

// ScanInstalled enumerates <installDir>/ non-recursively, one entry per
// subdirectory, pairing each with its .dmodman-meta.json sidecar if
// present (§4.5). Used at startup to rebuild the metadata index's
// installed-records half alongside Scan's archive half.
func ScanInstalled(installDir string) ([]InstalledEntry, error) {
	dirEntries, err := os.ReadDir(installDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("archivescan: reading %s: %w", installDir, err)
	}

	var entries []InstalledEntry

	for _, de := range dirEntries {
		if !de.IsDir() {
			continue
		}

		dirName := de.Name()
		entry := InstalledEntry{DirName: dirName}

		var sc persist.InstalledSidecar

		sidecarPath := persist.InstalledSidecarPath(installDir, dirName)
		if loadErr := persist.Load(sidecarPath, &sc); loadErr == nil {
			entry.Sidecar = &sc
		}

		entries = append(entries, entry)
	}

	return entries, nil
}
