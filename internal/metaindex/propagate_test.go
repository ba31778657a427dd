package metaindex

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dandels/dmodman-core/internal/modid"
)

type fakeSidecars struct {
	archiveCalls   []string
	installedCalls []string
	failArchive    bool
}

func (f *fakeSidecars) WriteArchiveSidecar(_ context.Context, _ modid.FileIdentity, name string, _ UpdateStatus) error {
	f.archiveCalls = append(f.archiveCalls, name)
	if f.failArchive {
		return errors.New("disk full")
	}

	return nil
}

func (f *fakeSidecars) WriteInstalledSidecar(_ context.Context, _ modid.FileIdentity, dirName string, _ UpdateStatus) error {
	f.installedCalls = append(f.installedCalls, dirName)

	return nil
}

func TestPropagateStatus_WritesEverySidecar(t *testing.T) {
	sidecars := &fakeSidecars{}
	idx := New(nil, sidecars)

	archive := &ArchiveRecord{
		FileName: "a.7z",
		Binding:  &RemoteBinding{FileIdentity: testID(1), Status: UpdateStatus{Tag: StatusUpToDate, Timestamp: 1}},
	}
	n, err := idx.AttachArchive(context.Background(), archive, nil, nil, nil)
	require.NoError(t, err)

	installed := &InstalledRecord{
		DirName: "Dir",
		Binding: &RemoteBinding{FileIdentity: testID(1), Status: UpdateStatus{Tag: StatusUpToDate, Timestamp: 1}},
	}
	_, err = idx.AttachInstalled(context.Background(), "Dir", installed, nil, nil, nil)
	require.NoError(t, err)

	idx.PropagateStatus(context.Background(), n, UpdateStatus{Tag: StatusOutOfDate, Timestamp: 500})

	assert.Equal(t, []string{"a.7z"}, sidecars.archiveCalls)
	assert.Equal(t, []string{"Dir"}, sidecars.installedCalls)
	assert.Equal(t, StatusOutOfDate, n.Status.Load().Tag)
}

func TestPropagateStatus_SidecarFailureDoesNotAbort(t *testing.T) {
	sidecars := &fakeSidecars{failArchive: true}
	idx := New(nil, sidecars)

	archive := &ArchiveRecord{
		FileName: "a.7z",
		Binding:  &RemoteBinding{FileIdentity: testID(1), Status: UpdateStatus{Tag: StatusUpToDate, Timestamp: 1}},
	}
	n, err := idx.AttachArchive(context.Background(), archive, nil, nil, nil)
	require.NoError(t, err)

	// Must not panic or block despite the sidecar write failing.
	idx.PropagateStatus(context.Background(), n, UpdateStatus{Tag: StatusOutOfDate, Timestamp: 500})

	assert.Equal(t, StatusOutOfDate, n.Status.Load().Tag)
}
