package book

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// RobinHood is an open-addressed map from a uint64 key to an arbitrary
// value, using Robin Hood linear probing (§4.2). It backs both the
// order-id lookup and the packed (price,side) limit lookup.
//
// The C++ origin backs this table with a single mmap'd arena so a resize
// can grow in place without a second allocator call. Go's GC already
// manages paged memory for us, so "arena-backed" is realized here as two
// plain slices (metadata, values) that get replaced wholesale on resize —
// the old slices are simply dropped and collected, which is the explicit
// fallback the design notes call out for a GC'd target language.
type RobinHood[V any] struct {
	meta        []metaEntry
	values      []V
	size        int
	capacity    int
	loadFactMax float64
}

type slotStatus uint8

const (
	slotEmpty    slotStatus = 0
	slotOccupied slotStatus = 2
)

type metaEntry struct {
	key       uint64
	probeDist uint16
	status    slotStatus
}

const (
	initialCapacity    = 64
	defaultLoadFactMax = 0.85
)

// NewRobinHood builds a table with the default resize threshold (§4.2).
func NewRobinHood[V any](capacityHint int) *RobinHood[V] {
	return NewRobinHoodWithLoadFactor[V](capacityHint, defaultLoadFactMax)
}

// NewRobinHoodWithLoadFactor builds a table whose resize threshold comes
// from internal/config.ReplayConfig.HashLoadFactor rather than the default.
func NewRobinHoodWithLoadFactor[V any](capacityHint int, loadFactorMax float64) *RobinHood[V] {
	cap := initialCapacity
	for cap < capacityHint {
		cap <<= 1
	}
	return &RobinHood[V]{
		meta:        make([]metaEntry, cap),
		values:      make([]V, cap),
		capacity:    cap,
		loadFactMax: loadFactorMax,
	}
}

func hashKey(key uint64) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], key)
	return xxhash.Sum64(buf[:])
}

func (m *RobinHood[V]) Len() int      { return m.size }
func (m *RobinHood[V]) Capacity() int { return m.capacity }

func (m *RobinHood[V]) loadFactorExceeds() bool {
	return float64(m.size) >= float64(m.capacity)*m.loadFactMax
}

// Insert overwrites the value if key already exists, otherwise probes for
// a slot, displacing richer residents along the way (the classic Robin
// Hood swap).
func (m *RobinHood[V]) Insert(key uint64, value V) {
	if m.loadFactorExceeds() {
		m.resize()
	}

	mask := uint64(m.capacity - 1)
	pos := hashKey(key) & mask
	var probeDist uint16

	workingKey := key
	workingValue := value

	for {
		meta := &m.meta[pos]

		if meta.status == slotEmpty {
			meta.key = workingKey
			meta.probeDist = probeDist
			meta.status = slotOccupied
			m.values[pos] = workingValue
			m.size++
			return
		}
		if meta.status == slotOccupied && meta.key == key {
			m.values[pos] = value
			return
		}
		if probeDist > meta.probeDist {
			workingKey, meta.key = meta.key, workingKey
			m.values[pos], workingValue = workingValue, m.values[pos]
			probeDist, meta.probeDist = meta.probeDist, probeDist
		}
		pos = (pos + 1) & mask
		probeDist++
	}
}

// Find returns a pointer to the stored value and true on a hit. The
// returned pointer is only valid until the next Insert/resize.
func (m *RobinHood[V]) Find(key uint64) (*V, bool) {
	if m.capacity == 0 {
		return nil, false
	}
	mask := uint64(m.capacity - 1)
	pos := hashKey(key) & mask
	var probeDist uint16

	for {
		meta := &m.meta[pos]
		if meta.status == slotEmpty {
			return nil, false
		}
		if meta.status == slotOccupied && meta.key == key {
			return &m.values[pos], true
		}
		if probeDist > meta.probeDist {
			return nil, false
		}
		pos = (pos + 1) & mask
		probeDist++
	}
}

// Erase removes key, backward-shifting the subsequent probe chain so no
// hole is left in the middle of a run (§4.2).
func (m *RobinHood[V]) Erase(key uint64) bool {
	if m.capacity == 0 {
		return false
	}
	mask := uint64(m.capacity - 1)
	pos := hashKey(key) & mask
	var probeDist uint16

	for {
		meta := &m.meta[pos]
		if meta.status == slotEmpty {
			return false
		}
		if meta.status == slotOccupied && meta.key == key {
			curr := pos
			for {
				next := (curr + 1) & mask
				nextMeta := &m.meta[next]
				if nextMeta.status != slotOccupied || nextMeta.probeDist == 0 {
					m.meta[curr] = metaEntry{}
					var zero V
					m.values[curr] = zero
					break
				}
				m.meta[curr] = *nextMeta
				m.meta[curr].probeDist--
				m.values[curr] = m.values[next]
				curr = next
			}
			m.size--
			return true
		}
		if probeDist > meta.probeDist {
			return false
		}
		pos = (pos + 1) & mask
		probeDist++
	}
}

// Clear resets occupancy but keeps the current backing slices.
func (m *RobinHood[V]) Clear() {
	for i := range m.meta {
		m.meta[i] = metaEntry{}
	}
	var zero V
	for i := range m.values {
		m.values[i] = zero
	}
	m.size = 0
}

func (m *RobinHood[V]) resize() {
	oldMeta := m.meta
	oldValues := m.values

	newCapacity := m.capacity * 2
	m.meta = make([]metaEntry, newCapacity)
	m.values = make([]V, newCapacity)
	m.capacity = newCapacity
	m.size = 0

	for i, meta := range oldMeta {
		if meta.status == slotOccupied {
			m.insertDuringResize(meta.key, oldValues[i])
		}
	}
}

func (m *RobinHood[V]) insertDuringResize(key uint64, value V) {
	mask := uint64(m.capacity - 1)
	pos := hashKey(key) & mask
	var probeDist uint16

	workingKey := key
	workingValue := value

	for {
		meta := &m.meta[pos]
		if meta.status == slotEmpty {
			meta.key = workingKey
			meta.probeDist = probeDist
			meta.status = slotOccupied
			m.values[pos] = workingValue
			m.size++
			return
		}
		if probeDist > meta.probeDist {
			workingKey, meta.key = meta.key, workingKey
			m.values[pos], workingValue = workingValue, m.values[pos]
			probeDist, meta.probeDist = meta.probeDist, probeDist
		}
		pos = (pos + 1) & mask
		probeDist++
	}
}
