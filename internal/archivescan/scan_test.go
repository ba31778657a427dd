package archivescan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dandels/dmodman-core/internal/persist"
)

func TestScan_SkipsPartAndSidecarFiles(t *testing.T) {
	dir := t.TempDir()
	gameDir := filepath.Join(dir, "morrowind")
	require.NoError(t, os.MkdirAll(gameDir, 0o755))

	require.NoError(t, os.WriteFile(filepath.Join(gameDir, "mod.7z"), []byte("data"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(gameDir, "mod.7z.json"), []byte("{}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(gameDir, "other.7z.part"), []byte("partial"), 0o644))

	entries, err := Scan(dir, "morrowind")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "mod.7z", entries[0].FileName)
	assert.Nil(t, entries[0].Sidecar)
}

func TestScan_PairsSidecar(t *testing.T) {
	dir := t.TempDir()
	gameDir := filepath.Join(dir, "morrowind")
	require.NoError(t, os.MkdirAll(gameDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(gameDir, "mod.7z"), []byte("data"), 0o644))

	require.NoError(t, persist.Save(persist.ArchiveSidecarPath(dir, "morrowind", "mod.7z"), &persist.ArchiveSidecar{
		GameDomain: "morrowind",
		ModID:      39350,
		FileID:     1,
		Status:     "up_to_date",
		Timestamp:  100,
	}))

	entries, err := Scan(dir, "morrowind")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].Sidecar)
	assert.Equal(t, uint32(39350), entries[0].Sidecar.ModID)
}

func TestScan_MissingDirectoryReturnsEmpty(t *testing.T) {
	entries, err := Scan(t.TempDir(), "nonexistent-game")
	require.NoError(t, err)
	assert.Empty(t, entries)
}
