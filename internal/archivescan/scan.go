// Package archivescan enumerates and watches the per-game download
// directory, pairing on-disk archives with their sidecar metadata (§4.5).
package archivescan

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dandels/dmodman-core/internal/persist"
)

const partSuffix = ".part"
const sidecarSuffix = ".json"

// Entry is one archive found on disk, with its sidecar if present.
type Entry struct {
	FileName string
	Size     int64
	Sidecar  *persist.ArchiveSidecar // nil if no sidecar accompanies the archive
}

// Scan enumerates <downloadDir>/<game>/ non-recursively (§4.5's layout is
// flat per game), skipping .part files (in-progress downloads) and .json
// sidecar files themselves.
func Scan(downloadDir, game string) ([]Entry, error) {
	dir := filepath.Join(downloadDir, game)

	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("archivescan: reading %s: %w", dir, err)
	}

	var entries []Entry

	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}

		name := de.Name()

		if strings.HasSuffix(name, partSuffix) || strings.HasSuffix(name, sidecarSuffix) {
			continue
		}

		info, err := de.Info()
		if err != nil {
			continue // disappeared between readdir and stat; skip, next scan catches it
		}

		entry := Entry{FileName: name, Size: info.Size()}

		var sc persist.ArchiveSidecar

		sidecarPath := persist.ArchiveSidecarPath(downloadDir, game, name)
		if loadErr := persist.Load(sidecarPath, &sc); loadErr == nil {
			entry.Sidecar = &sc
		}

		entries = append(entries, entry)
	}

	return entries, nil
}
