// Package mem provides the physical memory of the simulated machine.
package mem

import "fmt"

// An AccessError is returned when a physical address falls outside of the
// storage.
type AccessError struct {
	Address  uint64
	Capacity uint64
}

func (e *AccessError) Error() string {
	return fmt.Sprintf(
		"accessing physical address %d beyond the storage capacity %d",
		e.Address, e.Capacity)
}

// A Storage keeps the data of the guest system as a flat array of 32-bit
// words. Word i lives at physical address i.
type Storage struct {
	data []uint32
}

// NewStorage creates a zero-initialized storage that holds numWords words.
func NewStorage(numWords uint64) *Storage {
	storage := new(Storage)
	storage.data = make([]uint32, numWords)

	return storage
}

// Capacity returns the number of words the storage holds.
func (s *Storage) Capacity() uint64 {
	return uint64(len(s.data))
}

// Read returns the word at the given physical address.
func (s *Storage) Read(address uint64) (uint32, error) {
	if err := s.checkAddress(address); err != nil {
		return 0, err
	}

	return s.data[address], nil
}

// Write stores a word at the given physical address.
func (s *Storage) Write(address uint64, value uint32) error {
	if err := s.checkAddress(address); err != nil {
		return err
	}

	s.data[address] = value

	return nil
}

func (s *Storage) checkAddress(address uint64) error {
	if address >= uint64(len(s.data)) {
		return &AccessError{Address: address, Capacity: uint64(len(s.data))}
	}

	return nil
}
