package extract

import "context"

// DataBlockStatus mirrors the four-way result of one archive read (§6
// "Archive decoder interface"): OK/WARN carry bytes to write, EOF ends the
// current entry, Failed aborts the job.
type DataBlockStatus int

const (
	StatusOK DataBlockStatus = iota
	StatusWarn
	StatusEOF
	StatusFailed
)

// Entry is one archive member: a directory or a file awaiting data blocks.
type Entry interface {
	Path() string
	IsDir() bool
}

// Decoder is the opaque streaming archive reader consumed by the
// coordinator (§4.4, §6). The core only depends on this interface; the
// concrete format support is an ambient implementation detail, not core
// logic (spec.md §1 Out of scope: "native archive decoding library
// bindings").
type Decoder interface {
	// Next advances to the next entry. ok is false once the archive is
	// exhausted.
	Next(ctx context.Context) (entry Entry, ok bool, err error)
	// ReadDataBlock reads the next block of the current entry's data.
	// StatusEOF means the current entry has been fully read.
	ReadDataBlock(ctx context.Context) (status DataBlockStatus, data []byte, err error)
	Close() error
}

// OpenFunc opens a Decoder over the archive at path.
type OpenFunc func(path string) (Decoder, error)
