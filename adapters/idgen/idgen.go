// Package idgen provides ID generation implementations.
package idgen

import (
	"strconv"
	"strings"
	"sync"

	"github.com/artpar/cloudgate/ports"
	"github.com/google/uuid"
)

// UUID generates random UUIDs. Keys and storage volumes use it.
type UUID struct{}

// New generates a new UUID v4.
func (UUID) New() string {
	return uuid.New().String()
}

// Ensure interface compliance.
var _ ports.IDGenerator = UUID{}

// Sequential generates prefix0, prefix1, ... the way the mock backend numbers
// its instances.
type Sequential struct {
	mu     sync.Mutex
	prefix string
	next   uint64
}

// NewSequential creates a sequential ID generator starting at prefix0.
func NewSequential(prefix string) *Sequential {
	return &Sequential{prefix: prefix}
}

// New generates the next sequential ID.
func (s *Sequential) New() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.prefix + strconv.FormatUint(s.next, 10)
	s.next++
	return id
}

// Observe moves the counter past an existing id so it is never generated again.
// Ids without the prefix or a numeric suffix are ignored.
func (s *Sequential) Observe(id string) {
	rest, ok := strings.CutPrefix(id, s.prefix)
	if !ok {
		return
	}
	n, err := strconv.ParseUint(rest, 10, 64)
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if n >= s.next {
		s.next = n + 1
	}
}

// Ensure interface compliance.
var _ ports.IDGenerator = (*Sequential)(nil)
