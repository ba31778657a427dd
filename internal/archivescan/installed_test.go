package archivescan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dandels/dmodman-core/internal/persist"
)

func TestScanInstalled_PairsSidecar(t *testing.T) {
	dir := t.TempDir()
	modDir := filepath.Join(dir, "MyMod")
	require.NoError(t, os.MkdirAll(modDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(modDir, "plugin.esp"), []byte("data"), 0o644))

	require.NoError(t, persist.Save(persist.InstalledSidecarPath(dir, "MyMod"), &persist.InstalledSidecar{
		GameDomain: "morrowind", ModID: 39350, FileID: 1, Version: "1.0", Status: "up_to_date",
	}))

	entries, err := ScanInstalled(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "MyMod", entries[0].DirName)
	require.NotNil(t, entries[0].Sidecar)
	assert.Equal(t, "1.0", entries[0].Sidecar.Version)
}

func TestScanInstalled_DirectoryWithoutSidecar(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "ManualMod"), 0o755))

	entries, err := ScanInstalled(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Nil(t, entries[0].Sidecar)
}

func TestScanInstalled_MissingDirectoryReturnsEmpty(t *testing.T) {
	entries, err := ScanInstalled(filepath.Join(t.TempDir(), "nonexistent"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}
