package controller

import (
	"encoding/binary"
	"errors"
	"sync"

	"github.com/chewxy/math32"
)

// CalibrationSize is the number of bytes of non-volatile memory used by the calibration factor
const CalibrationSize = 4

const calibrationOffset = 0

// CalibrationStore persists the scale factor as a little-endian IEEE-754 float32 at offset 0
type CalibrationStore struct {
	storage Storage
}

// NewCalibrationStore creates a store on top of storage
func NewCalibrationStore(storage Storage) *CalibrationStore {
	return &CalibrationStore{storage: storage}
}

// Load reads the stored factor. The raw value is returned as stored, even if it is not a usable factor
func (s *CalibrationStore) Load() (float32, error) {
	var buf [CalibrationSize]byte
	n, err := s.storage.ReadAt(buf[:], calibrationOffset)
	if err != nil {
		return 0, errors.New("error reading calibration: " + err.Error())
	}
	if n != CalibrationSize {
		return 0, ErrShortRead
	}
	return math32.Float32frombits(binary.LittleEndian.Uint32(buf[:])), nil
}

// Save writes and commits the factor
func (s *CalibrationStore) Save(factor float32) error {
	var buf [CalibrationSize]byte
	binary.LittleEndian.PutUint32(buf[:], math32.Float32bits(factor))

	n, err := s.storage.WriteAt(buf[:], calibrationOffset)
	if err != nil {
		return errors.New("error writing calibration: " + err.Error())
	}
	if n != CalibrationSize {
		return ErrShortWrite
	}

	err = s.storage.Commit()
	if err != nil {
		return errors.New("error committing calibration: " + err.Error())
	}
	return nil
}

// MemoryStorage is a RAM-backed Storage. Uncommitted writes are visible to reads, like an EEPROM emulation
// buffer, and Committed holds what would survive a reboot
type MemoryStorage struct {
	mu        sync.Mutex
	buf       []byte
	committed []byte
}

// NewMemoryStorage creates size bytes of zeroed storage
func NewMemoryStorage(size int) *MemoryStorage {
	return &MemoryStorage{
		buf:       make([]byte, size),
		committed: make([]byte, size),
	}
}

func (m *MemoryStorage) ReadAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if off < 0 || off >= int64(len(m.buf)) {
		return 0, ErrShortRead
	}
	return copy(p, m.buf[off:]), nil
}

func (m *MemoryStorage) WriteAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if off < 0 || off >= int64(len(m.buf)) {
		return 0, ErrShortWrite
	}
	return copy(m.buf[off:], p), nil
}

func (m *MemoryStorage) Commit() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copy(m.committed, m.buf)
	return nil
}

// Committed returns a copy of the committed bytes
func (m *MemoryStorage) Committed() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]byte, len(m.committed))
	copy(out, m.committed)
	return out
}
