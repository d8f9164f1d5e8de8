package interfaces

import "io"

// ByteSource is a random-access view of a raw volume image. Reads past
// the end of the source fail with types.ErrOutOfBounds. A *bytes.Reader
// satisfies this interface, which keeps in-memory images usable in tests.
type ByteSource interface {
	io.ReaderAt

	// Size returns the total length of the source in bytes.
	Size() int64
}
