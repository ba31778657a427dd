package metaindex

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dandels/dmodman-core/internal/modid"
)

func testID(fileID uint64) modid.FileIdentity {
	return modid.FileIdentity{GameDomain: "morrowind", ModID: 39350, FileID: fileID}
}

func TestIndex_AttachArchiveCreatesNode(t *testing.T) {
	idx := New(nil, nil)

	rec := &ArchiveRecord{
		FileName: "mod-1.7z",
		Binding:  &RemoteBinding{FileIdentity: testID(1), Status: UpdateStatus{Tag: StatusUpToDate, Timestamp: 100}},
	}

	n, err := idx.AttachArchive(context.Background(), rec, nil, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, n)

	got, ok := idx.GetByFileID(testID(1))
	require.True(t, ok)
	assert.Same(t, n, got)

	byName, ok := idx.GetByArchiveName("mod-1.7z")
	require.True(t, ok)
	assert.Same(t, n, byName)
}

func TestIndex_AttachIsIdempotent(t *testing.T) {
	idx := New(nil, nil)
	rec := &ArchiveRecord{
		FileName: "mod-1.7z",
		Binding:  &RemoteBinding{FileIdentity: testID(1), Status: UpdateStatus{Tag: StatusUpToDate, Timestamp: 100}},
	}

	n1, err := idx.AttachArchive(context.Background(), rec, nil, nil, nil)
	require.NoError(t, err)

	n2, err := idx.AttachArchive(context.Background(), rec, nil, nil, nil)
	require.NoError(t, err)

	assert.Same(t, n1, n2)
	assert.Len(t, n1.Archives(), 1)
}

func TestIndex_LaterTimestampWins(t *testing.T) {
	idx := New(nil, nil)

	archive := &ArchiveRecord{
		FileName: "a.7z",
		Binding:  &RemoteBinding{FileIdentity: testID(1), Status: UpdateStatus{Tag: StatusUpToDate, Timestamp: 100}},
	}
	_, err := idx.AttachArchive(context.Background(), archive, nil, nil, nil)
	require.NoError(t, err)

	installed := &InstalledRecord{
		DirName: "ModDir",
		Binding: &RemoteBinding{FileIdentity: testID(1), Status: UpdateStatus{Tag: StatusOutOfDate, Timestamp: 200}},
	}
	n, err := idx.AttachInstalled(context.Background(), "ModDir", installed, nil, nil, nil)
	require.NoError(t, err)

	got := n.Status.Load()
	assert.Equal(t, StatusOutOfDate, got.Tag)
	assert.EqualValues(t, 200, got.Timestamp)
}

func TestIndex_DetachRemovesEmptyNode(t *testing.T) {
	idx := New(nil, nil)
	rec := &ArchiveRecord{
		FileName: "a.7z",
		Binding:  &RemoteBinding{FileIdentity: testID(1), Status: UpdateStatus{Tag: StatusUpToDate, Timestamp: 100}},
	}
	_, err := idx.AttachArchive(context.Background(), rec, nil, nil, nil)
	require.NoError(t, err)

	idx.DetachArchive("a.7z")

	_, ok := idx.GetByFileID(testID(1))
	assert.False(t, ok)
	assert.Equal(t, 0, idx.Size())
}

func TestIndex_DetachKeepsNodeWithRemainingRef(t *testing.T) {
	idx := New(nil, nil)

	archive := &ArchiveRecord{
		FileName: "a.7z",
		Binding:  &RemoteBinding{FileIdentity: testID(1), Status: UpdateStatus{Tag: StatusUpToDate, Timestamp: 100}},
	}
	_, err := idx.AttachArchive(context.Background(), archive, nil, nil, nil)
	require.NoError(t, err)

	installed := &InstalledRecord{
		DirName: "ModDir",
		Binding: &RemoteBinding{FileIdentity: testID(1), Status: UpdateStatus{Tag: StatusUpToDate, Timestamp: 100}},
	}
	_, err = idx.AttachInstalled(context.Background(), "ModDir", installed, nil, nil, nil)
	require.NoError(t, err)

	idx.DetachArchive("a.7z")

	_, ok := idx.GetByFileID(testID(1))
	assert.True(t, ok, "node should survive while installed ref remains")
}

func TestIndex_DetachInstalledRemovesEmptyNode(t *testing.T) {
	idx := New(nil, nil)
	rec := &InstalledRecord{
		DirName: "ModDir",
		Binding: &RemoteBinding{FileIdentity: testID(1), Status: UpdateStatus{Tag: StatusUpToDate, Timestamp: 100}},
	}
	_, err := idx.AttachInstalled(context.Background(), "ModDir", rec, nil, nil, nil)
	require.NoError(t, err)

	idx.DetachInstalled("ModDir")

	_, ok := idx.GetByFileID(testID(1))
	assert.False(t, ok)
	assert.Equal(t, 0, idx.Size())
}

func TestIndex_DetachInstalledKeepsNodeWithRemainingArchiveRef(t *testing.T) {
	idx := New(nil, nil)

	installed := &InstalledRecord{
		DirName: "ModDir",
		Binding: &RemoteBinding{FileIdentity: testID(1), Status: UpdateStatus{Tag: StatusUpToDate, Timestamp: 100}},
	}
	_, err := idx.AttachInstalled(context.Background(), "ModDir", installed, nil, nil, nil)
	require.NoError(t, err)

	archive := &ArchiveRecord{
		FileName: "a.7z",
		Binding:  &RemoteBinding{FileIdentity: testID(1), Status: UpdateStatus{Tag: StatusUpToDate, Timestamp: 100}},
	}
	_, err = idx.AttachArchive(context.Background(), archive, nil, nil, nil)
	require.NoError(t, err)

	idx.DetachInstalled("ModDir")

	_, ok := idx.GetByFileID(testID(1))
	assert.True(t, ok, "node should survive while archive ref remains")
}

func TestIndex_DetachInstalledUnknownDirIsNoop(t *testing.T) {
	idx := New(nil, nil)

	assert.NotPanics(t, func() { idx.DetachInstalled("nonexistent") })
}

func TestIndex_ListByGameAndModOrderedDescending(t *testing.T) {
	idx := New(nil, nil)

	for _, fileID := range []uint64{1, 3, 2} {
		rec := &ArchiveRecord{
			FileName: "f" + string(rune('0'+fileID)) + ".7z",
			Binding:  &RemoteBinding{FileIdentity: testID(fileID), Status: UpdateStatus{Tag: StatusUpToDate, Timestamp: int64(fileID)}},
		}
		_, err := idx.AttachArchive(context.Background(), rec, nil, nil, nil)
		require.NoError(t, err)
	}

	nodes := idx.ListByGameAndMod("morrowind", 39350)
	require.Len(t, nodes, 3)
	assert.EqualValues(t, 3, nodes[0].ID.FileID)
	assert.EqualValues(t, 2, nodes[1].ID.FileID)
	assert.EqualValues(t, 1, nodes[2].ID.FileID)
}

func TestIndex_AttachArchiveNoBinding(t *testing.T) {
	idx := New(nil, nil)
	rec := &ArchiveRecord{FileName: "unbound.7z"}

	_, err := idx.AttachArchive(context.Background(), rec, nil, nil, nil)
	require.ErrorIs(t, err, ErrNoBinding)
}
