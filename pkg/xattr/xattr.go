// Package xattr implements the extended-attribute mapping attached to an
// inode: named byte strings stored outside the regular data stream.
//
// A Store is not safe for concurrent use; the owning inode serializes access.
// The zero value is ready to use and allocates its map on first Set.
package xattr

import (
	"errors"
	"slices"
)

// Flags selects the create/replace behaviour of Set.
type Flags int

const (
	// FlagCreate fails with ErrExists if the attribute is already present.
	FlagCreate Flags = 1 << iota

	// FlagReplace fails with ErrNotFound if the attribute is absent.
	FlagReplace
)

var (
	ErrInvalid  = errors.New("invalid attribute name or value")
	ErrExists   = errors.New("attribute already exists")
	ErrNotFound = errors.New("attribute not found")
	ErrRange    = errors.New("buffer too small")
)

type Store struct {
	attrs map[string][]byte
}

// Set stores a copy of value under name. A nil value or empty name is
// rejected; an empty non-nil value is a valid attribute.
func (s *Store) Set(name string, value []byte, flags Flags) error {
	if name == "" || value == nil {
		return ErrInvalid
	}

	_, exists := s.attrs[name]
	if flags&FlagCreate != 0 && exists {
		return ErrExists
	}
	if flags&FlagReplace != 0 && !exists {
		return ErrNotFound
	}

	if s.attrs == nil {
		s.attrs = make(map[string][]byte)
	}
	s.attrs[name] = slices.Clone(value)
	return nil
}

// Get returns the stored value. The returned slice must not be modified.
func (s *Store) Get(name string) ([]byte, bool) {
	v, ok := s.attrs[name]
	return v, ok
}

// Read copies the value of name, starting at position, into dest and returns
// the number of bytes from position to the end of the value. With a nil dest
// nothing is copied and only the size is returned.
func (s *Store) Read(name string, position int64, dest []byte) (int, error) {
	v, ok := s.attrs[name]
	if !ok {
		return 0, ErrNotFound
	}
	if position < 0 || position > int64(len(v)) {
		return 0, ErrInvalid
	}

	remaining := v[position:]
	if dest == nil {
		return len(remaining), nil
	}
	if len(dest) < len(remaining) {
		return 0, ErrRange
	}
	return copy(dest, remaining), nil
}

// Names returns the attribute names in sorted order.
func (s *Store) Names() []string {
	names := make([]string, 0, len(s.attrs))
	for name := range s.attrs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// List writes every name, each followed by a NUL byte, into dest and returns
// the number of bytes written. With a nil dest it returns the total encoded
// length. If dest cannot hold the next name, ErrRange is returned and the
// names already written stay in dest.
func (s *Store) List(dest []byte) (int, error) {
	names := s.Names()

	if dest == nil {
		total := 0
		for _, name := range names {
			total += len(name) + 1
		}
		return total, nil
	}

	n := 0
	for _, name := range names {
		if len(dest)-n < len(name)+1 {
			return n, ErrRange
		}
		n += copy(dest[n:], name)
		dest[n] = 0
		n++
	}
	return n, nil
}

func (s *Store) Remove(name string) error {
	if _, ok := s.attrs[name]; !ok {
		return ErrNotFound
	}
	delete(s.attrs, name)
	return nil
}

func (s *Store) Len() int {
	return len(s.attrs)
}
