package updatecheck

import "github.com/dandels/dmodman-core/internal/metaindex"

// nodeStatus pairs a node with the status checkMod computed for it.
type nodeStatus struct {
	node   *metaindex.Node
	status metaindex.UpdateStatus
}

// checkMod classifies every node of one (game, mod) group against the
// remote file list (§4.3 "Algorithm", grounded directly on
// original_source/api/update_checker.rs's check_mod). nodes must be ordered
// newest-first by FileID, which is how Index.ListByGameAndMod already
// returns them.
func checkMod(nodes []*metaindex.Node, fl *metaindex.FileList) []nodeStatus {
	if len(fl.Files) == 0 {
		return nil
	}

	latestRemoteTime := fl.Files[len(fl.Files)-1].UploadedTimestamp

	latestLocalTime, haveLocalTime := int64(0), false

	for _, n := range nodes {
		if ts, ok := n.UploadedTimestamp(); ok {
			latestLocalTime = ts
			haveLocalTime = true

			break
		}
	}

	// newerUpdatesStartIndex walks from the tail of file_updates toward the
	// head across iterations; it only ever moves left, never resets.
	newerUpdatesStartIndex := len(fl.FileUpdates) - 1

	results := make([]nodeStatus, 0, len(nodes))

	for _, n := range nodes {
		hasUpdate := false

		fd := n.FileDetails()
		if fd != nil {
			switch {
			case fd.CategoryID == categoryOldVersion || fd.CategoryID == categoryArchived:
				hasUpdate = true
			case newerUpdatesStartIndex >= 0:
				idx := newerUpdatesStartIndex
				for idx > 0 {
					upd := fl.FileUpdates[idx]
					if fd.UploadedTimestamp < upd.UploadedTimestamp && n.ID.FileID != upd.NewFileID {
						idx--
					} else {
						break
					}
				}

				newerUpdatesStartIndex = idx
			}
		}

		if !hasUpdate && newerUpdatesStartIndex >= 0 {
			for _, upd := range fl.FileUpdates[newerUpdatesStartIndex:] {
				if n.ID.FileID == upd.OldFileID {
					hasUpdate = true

					break
				}
			}
		}

		results = append(results, nodeStatus{node: n, status: classify(n, hasUpdate, haveLocalTime, latestLocalTime, latestRemoteTime)})
	}

	return results
}

// classify turns the has-a-newer-file verdict into an UpdateStatus,
// honouring an IgnoredUntil override that hasn't yet been superseded by a
// newer remote timestamp (§4.3).
func classify(n *metaindex.Node, hasUpdate, haveLocalTime bool, latestLocalTime, latestRemoteTime int64) metaindex.UpdateStatus {
	current := n.Status.Load()

	stillIgnored := current.Tag == metaindex.StatusIgnoredUntil && current.Timestamp >= latestRemoteTime

	switch {
	case hasUpdate:
		if stillIgnored {
			return current
		}

		return metaindex.UpdateStatus{Tag: metaindex.StatusOutOfDate, Timestamp: latestRemoteTime}
	case haveLocalTime && latestLocalTime < latestRemoteTime:
		if stillIgnored {
			return current
		}

		return metaindex.UpdateStatus{Tag: metaindex.StatusHasNewFile, Timestamp: latestLocalTime}
	case haveLocalTime:
		return metaindex.UpdateStatus{Tag: metaindex.StatusUpToDate, Timestamp: latestLocalTime}
	default:
		return metaindex.UpdateStatus{Tag: metaindex.StatusOutOfDate, Timestamp: latestRemoteTime}
	}
}
