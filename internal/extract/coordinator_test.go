package extract

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dandels/dmodman-core/internal/metaindex"
	"github.com/dandels/dmodman-core/internal/modid"
	"github.com/dandels/dmodman-core/internal/persist"
)

type fakeEntryDef struct {
	path    string
	dir     bool
	content []byte
	block   bool
}

type fakeDecoder struct {
	entries []fakeEntryDef
	idx     int

	curData     []byte
	curSent     bool
	curBlocking bool

	unblock chan struct{}
}

func newFakeDecoder(entries []fakeEntryDef) *fakeDecoder {
	return &fakeDecoder{entries: entries, unblock: make(chan struct{})}
}

func (d *fakeDecoder) Next(_ context.Context) (Entry, bool, error) {
	if d.idx >= len(d.entries) {
		return nil, false, nil
	}

	e := d.entries[d.idx]
	d.idx++

	d.curData = e.content
	d.curSent = false
	d.curBlocking = e.block

	return fakeEntry{path: e.path, dir: e.dir}, true, nil
}

func (d *fakeDecoder) ReadDataBlock(ctx context.Context) (DataBlockStatus, []byte, error) {
	if d.curBlocking {
		select {
		case <-ctx.Done():
			return StatusFailed, nil, ctx.Err()
		case <-d.unblock:
			d.curBlocking = false
		}
	}

	if !d.curSent {
		d.curSent = true

		if len(d.curData) > 0 {
			return StatusOK, d.curData, nil
		}
	}

	return StatusEOF, nil, nil
}

func (d *fakeDecoder) Close() error { return nil }

type fakeEntry struct {
	path string
	dir  bool
}

func (e fakeEntry) Path() string { return e.path }
func (e fakeEntry) IsDir() bool  { return e.dir }

func setup(t *testing.T) (*Coordinator, *metaindex.Index, *fakeDecoder, string, string) {
	t.Helper()

	downloadDir, installDir := t.TempDir(), t.TempDir()

	require.NoError(t, os.MkdirAll(filepath.Join(downloadDir, "morrowind"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(downloadDir, "morrowind", "foo.7z"), []byte("archive"), 0o644))

	index := metaindex.New(nil, nil)
	id := modid.FileIdentity{GameDomain: "morrowind", ModID: 1, FileID: 1}

	_, err := index.AttachArchive(context.Background(), &metaindex.ArchiveRecord{
		FileName: "foo.7z",
		Binding:  &metaindex.RemoteBinding{FileIdentity: id, Status: metaindex.UpdateStatus{Tag: metaindex.StatusUpToDate, Timestamp: 1}},
	}, &metaindex.FileDetails{FileID: 1, Version: "1.0", CategoryID: 1}, nil, nil)
	require.NoError(t, err)

	dec := newFakeDecoder(nil)

	sidecars := persist.NewSidecarStore(downloadDir, installDir)
	c := NewCoordinator(index, sidecars, downloadDir, installDir, func(string) (Decoder, error) { return dec, nil }, nil)

	return c, index, dec, downloadDir, installDir
}

func TestCoordinator_ListContent_SkipsDirectories(t *testing.T) {
	c, _, dec, _, _ := setup(t)
	dec.entries = []fakeEntryDef{
		{path: "dir/", dir: true},
		{path: "dir/a.txt", content: []byte("hi")},
		{path: "b.txt", content: []byte("yo")},
	}

	files, err := c.ListContent(context.Background(), "foo.7z")
	require.NoError(t, err)
	assert.Equal(t, []string{"dir/a.txt", "b.txt"}, files)
}

func TestCoordinator_ListContent_UnknownArchive(t *testing.T) {
	c, _, _, _, _ := setup(t)

	_, err := c.ListContent(context.Background(), "missing.7z")
	assert.ErrorIs(t, err, ErrArchiveNotFound)
}

func TestCoordinator_Extract_WritesFilesAndAttachesInstalled(t *testing.T) {
	c, index, dec, _, installDir := setup(t)
	dec.entries = []fakeEntryDef{
		{path: "plugin.esp", content: []byte("data")},
		{path: "textures/", dir: true},
		{path: "textures/a.dds", content: []byte("tex")},
	}

	require.NoError(t, c.Extract(context.Background(), "foo.7z", "MyMod", false))

	require.Eventually(t, func() bool {
		id := modid.FileIdentity{GameDomain: "morrowind", ModID: 1, FileID: 1}
		n, ok := index.GetByFileID(id)

		return ok && len(n.Installed()) == 1
	}, 2*time.Second, time.Millisecond)

	data, err := os.ReadFile(filepath.Join(installDir, "MyMod", "plugin.esp"))
	require.NoError(t, err)
	assert.Equal(t, "data", string(data))

	data, err = os.ReadFile(filepath.Join(installDir, "MyMod", "textures", "a.dds"))
	require.NoError(t, err)
	assert.Equal(t, "tex", string(data))

	id := modid.FileIdentity{GameDomain: "morrowind", ModID: 1, FileID: 1}
	n, ok := index.GetByFileID(id)
	require.True(t, ok)
	require.Len(t, n.Archives(), 1)
	assert.Equal(t, metaindex.StateInstalled, n.Archives()[0].State)

	sidecar, err := os.ReadFile(filepath.Join(installDir, "MyMod", ".dmodman-meta.json"))
	require.NoError(t, err)
	assert.Contains(t, string(sidecar), "1.0")
}

func TestCoordinator_Extract_PathTraversalStaysUnderDest(t *testing.T) {
	c, _, dec, _, installDir := setup(t)
	dec.entries = []fakeEntryDef{{path: "../../etc/passwd", content: []byte("nope")}}

	require.NoError(t, c.Extract(context.Background(), "foo.7z", "MyMod", false))

	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(installDir, "MyMod", "etc", "passwd"))

		return err == nil
	}, 2*time.Second, time.Millisecond)

	_, err := os.Stat(filepath.Join(installDir, "etc", "passwd"))
	assert.True(t, os.IsNotExist(err), "entry must not escape the destination directory")
}

func TestCoordinator_Extract_RejectsDuplicateInProgress(t *testing.T) {
	c, _, dec, _, _ := setup(t)
	dec.entries = []fakeEntryDef{{path: "a.txt", content: []byte("x"), block: true}}
	defer close(dec.unblock)

	require.NoError(t, c.Extract(context.Background(), "foo.7z", "MyMod", false))

	err := c.Extract(context.Background(), "foo.7z", "MyMod2", false)
	assert.ErrorIs(t, err, ErrInProgress)
}

func TestCoordinator_Extract_AlreadyExistsWithoutOverwrite(t *testing.T) {
	c, _, _, _, installDir := setup(t)
	require.NoError(t, os.MkdirAll(filepath.Join(installDir, "MyMod"), 0o755))

	err := c.Extract(context.Background(), "foo.7z", "MyMod", false)
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestCoordinator_Cancel_RemovesPartialDestination(t *testing.T) {
	c, index, dec, _, installDir := setup(t)
	dec.entries = []fakeEntryDef{{path: "a.txt", content: []byte("x"), block: true}}

	require.NoError(t, c.Extract(context.Background(), "foo.7z", "MyMod", false))

	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(installDir, "MyMod"))

		return err == nil
	}, 2*time.Second, time.Millisecond)

	require.NoError(t, c.Cancel("foo.7z"))
	close(dec.unblock)

	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(installDir, "MyMod"))

		return os.IsNotExist(err)
	}, 2*time.Second, time.Millisecond)

	id := modid.FileIdentity{GameDomain: "morrowind", ModID: 1, FileID: 1}
	n, ok := index.GetByFileID(id)
	require.True(t, ok)
	require.Len(t, n.Archives(), 1)
	assert.Equal(t, metaindex.StateDownloaded, n.Archives()[0].State)
}
