// Package blocks implements sparse, block-granular storage for the content of
// a single in-memory file.
//
// A File is an ordered sequence of fixed-size block slots plus a logical
// length. A slot either holds a full block of data or is nil, in which case it
// is a hole and reads as zeros. Only the slots touched by a write are ever
// materialized, so a file truncated up to several gigabytes costs nothing
// until it is written.
//
// Every File carries its own lock: reads share it while writes and truncates
// hold it exclusively, so a reader never observes a half-updated slot count.
package blocks

import (
	"errors"
	"math"
	"sync"
)

// DefaultBlockSize is the block size used when none is configured.
const DefaultBlockSize = 64 * 1024

// DefaultMaxSize bounds the logical length of a file when none is configured.
const DefaultMaxSize int64 = math.MaxInt32

// ErrInvalidOffset is returned when an offset or length is negative or the
// resulting range exceeds the file's maximum size.
var ErrInvalidOffset = errors.New("offset out of range")

// File holds the block slots of one regular file.
type File struct {
	mu        sync.RWMutex
	slots     [][]byte // nil slot = hole
	length    int64
	blockSize int
	maxSize   int64
}

// New returns an empty file with one zeroed block slot pre-allocated.
// Non-positive arguments fall back to DefaultBlockSize and DefaultMaxSize.
func New(blockSize int, maxSize int64) *File {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}

	return &File{
		slots:     [][]byte{make([]byte, blockSize)},
		blockSize: blockSize,
		maxSize:   maxSize,
	}
}

// BlockSize returns the slot size in bytes.
func (f *File) BlockSize() int {
	return f.blockSize
}

// Size returns the logical length in bytes.
func (f *File) Size() int64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.length
}

// SlotCount returns the number of slots, holes included.
func (f *File) SlotCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.slots)
}

// AllocatedBlocks returns the number of slots backed by real memory.
func (f *File) AllocatedBlocks() int {
	f.mu.RLock()
	defer f.mu.RUnlock()

	n := 0
	for _, s := range f.slots {
		if s != nil {
			n++
		}
	}
	return n
}

// IsHole reports whether slot i is unallocated. Slots past the end are holes.
func (f *File) IsHole(i int) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return i < 0 || i >= len(f.slots) || f.slots[i] == nil
}

func (f *File) checkRange(off int64, n int) error {
	if off < 0 || n < 0 || off > f.maxSize || int64(n) > f.maxSize-off {
		return ErrInvalidOffset
	}
	return nil
}

// ReadAt copies up to len(p) bytes starting at off into p and returns the
// number of bytes copied. Reading at or past the logical length returns 0
// with no error. Holes read as zeros.
func (f *File) ReadAt(p []byte, off int64) (int, error) {
	if err := f.checkRange(off, 0); err != nil {
		return 0, err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if off >= f.length || len(p) == 0 {
		return 0, nil
	}

	n := len(p)
	if remaining := f.length - off; int64(n) > remaining {
		n = int(remaining)
	}

	bs := int64(f.blockSize)
	done := 0
	for done < n {
		pos := off + int64(done)
		idx := int(pos / bs)
		inBlock := int(pos % bs)

		chunk := f.blockSize - inBlock
		if chunk > n-done {
			chunk = n - done
		}

		dst := p[done : done+chunk]
		if idx < len(f.slots) && f.slots[idx] != nil {
			copy(dst, f.slots[idx][inBlock:inBlock+chunk])
		} else {
			clear(dst)
		}
		done += chunk
	}

	return n, nil
}

// WriteAt copies p into the file at off, splitting the write at block
// boundaries. Slots are appended as holes up to the last touched block and
// every touched hole is materialized before it is written. The logical
// length is raised to off+len(p) if that is larger; it is never lowered.
func (f *File) WriteAt(p []byte, off int64) (int, error) {
	if err := f.checkRange(off, len(p)); err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	bs := int64(f.blockSize)
	end := off + int64(len(p))
	last := int((end - 1) / bs)
	f.growSlots(last + 1)

	done := 0
	for done < len(p) {
		pos := off + int64(done)
		idx := int(pos / bs)
		inBlock := int(pos % bs)

		if f.slots[idx] == nil {
			f.slots[idx] = make([]byte, f.blockSize)
		}

		done += copy(f.slots[idx][inBlock:], p[done:])
	}

	if end > f.length {
		f.length = end
	}
	return len(p), nil
}

// Truncate sets the logical length to size. Slots past the new end are
// dropped and, when size falls inside a retained data slot, the bytes past
// size in that slot are zeroed. Growing only appends holes.
func (f *File) Truncate(size int64) error {
	if err := f.checkRange(size, 0); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	required := f.slotsFor(size)
	if required < len(f.slots) {
		clear(f.slots[required:])
		f.slots = f.slots[:required]
	} else {
		f.growSlots(required)
	}

	if tail := int(size % int64(f.blockSize)); tail != 0 && required > 0 {
		if last := f.slots[required-1]; last != nil {
			clear(last[tail:])
		}
	}

	f.length = size
	return nil
}

// Reset discards all content and restores the freshly created state: length
// zero with one zeroed slot.
func (f *File) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.slots = [][]byte{make([]byte, f.blockSize)}
	f.length = 0
}

func (f *File) slotsFor(size int64) int {
	if size <= 0 {
		return 0
	}
	return int((size-1)/int64(f.blockSize)) + 1
}

// growSlots extends the slot sequence with holes until it holds n slots.
func (f *File) growSlots(n int) {
	if n <= len(f.slots) {
		return
	}
	f.slots = append(f.slots, make([][]byte, n-len(f.slots))...)
}
