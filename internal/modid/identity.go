// Package modid defines the join key shared by every view of a mod file
// (archive, installed directory, remote metadata) and the mod-protocol URL
// parser that is the sole handoff path from the website into the tool.
package modid

import "fmt"

// FileIdentity is the immutable join key for a single downloadable file.
type FileIdentity struct {
	GameDomain string
	ModID      uint32
	FileID     uint64
}

// String renders the identity for logging and CLI output.
func (id FileIdentity) String() string {
	return fmt.Sprintf("%s/%d/%d", id.GameDomain, id.ModID, id.FileID)
}

// IsZero reports whether the identity was never assigned.
func (id FileIdentity) IsZero() bool {
	return id == FileIdentity{}
}
