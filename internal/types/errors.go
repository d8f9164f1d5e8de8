package types

import "errors"

// Decode and traversal failures surfaced by this module. Damaged media is the
// expected input, so every structural violation maps to one of these sentinels
// and is matched by callers with errors.Is.
var (
	// ErrOutOfBounds indicates a field read past the end of its buffer.
	ErrOutOfBounds = errors.New("read out of bounds")

	// ErrTruncated indicates a fixed-size structure with insufficient bytes remaining.
	ErrTruncated = errors.New("structure truncated")

	// ErrInvalidRecordType indicates an unrecognized catalog record or key discriminant.
	ErrInvalidRecordType = errors.New("invalid record type")

	// ErrCorruptNode indicates an inconsistent offset table or record bounds
	// within a B-tree node.
	ErrCorruptNode = errors.New("corrupt B-tree node")

	// ErrIncompleteExtentMap indicates a fork whose extents do not cover its
	// declared logical size even after overflow lookup. Callers should treat
	// this as a partial-recovery signal rather than a fatal failure.
	ErrIncompleteExtentMap = errors.New("incomplete extent map")

	// ErrCycleDetected indicates a sibling or child pointer loop during traversal.
	ErrCycleDetected = errors.New("B-tree cycle detected")

	// ErrNotFound indicates a valid traversal that matched no key.
	ErrNotFound = errors.New("record not found")

	// ErrShortRead indicates a logical read truncated at the fork's logical size.
	// The returned byte count reports how much was actually delivered.
	ErrShortRead = errors.New("short read past end of fork")
)
