package downloader

import "errors"

// ErrInProgress is returned by Start when a download for the same
// FileIdentity is already active.
var ErrInProgress = errors.New("downloader: download already in progress")

// ErrNotFound is returned by TogglePause for an unknown FileIdentity.
var ErrNotFound = errors.New("downloader: no task for file identity")

// ErrNoDownloadLink is returned when the API returns zero download
// locations for a file.
var ErrNoDownloadLink = errors.New("downloader: no download link returned")
