package downloader

import (
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/dandels/dmodman-core/internal/modid"
)

// TaskState is a DownloadTask's lifecycle state.
type TaskState int32

const (
	StateRunning TaskState = iota
	StatePaused
	StateCompleted
	StateFailed
)

func (s TaskState) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// DownloadTask tracks one in-flight or completed download. BytesRead is
// lock-free (§5: "download progress counters are monotonically
// non-decreasing") and safe to read concurrently with the streaming
// goroutine appending to it.
type DownloadTask struct {
	ID       uuid.UUID
	Identity modid.FileIdentity
	FileName string

	bytesRead atomic.Int64
	state     atomic.Int32
	cancel    func()
}

func newTask(id modid.FileIdentity, fileName string, cancel func()) *DownloadTask {
	t := &DownloadTask{ID: uuid.New(), Identity: id, FileName: fileName, cancel: cancel}
	t.state.Store(int32(StateRunning))

	return t
}

// BytesRead returns the current progress counter.
func (t *DownloadTask) BytesRead() int64 { return t.bytesRead.Load() }

// State returns the task's current lifecycle state.
func (t *DownloadTask) State() TaskState { return TaskState(t.state.Load()) }

func (t *DownloadTask) addBytes(n int64) { t.bytesRead.Add(n) }

func (t *DownloadTask) setState(s TaskState) { t.state.Store(int32(s)) }
