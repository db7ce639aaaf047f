// Package alloc maps session identities to TCP ports. The mapping is
// deterministic: the same identity hashes to the same base port, so a
// branch keeps its port across restarts on an idle machine. The OS-level
// bind probe is the authoritative collision guard; anything already
// listening pushes the scan forward to the next free candidate.
package alloc

import (
	"fmt"
	"net"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog/log"

	"github.com/northpeak-studio/devhost/internal/domain"
)

// ProbeFunc reports whether a port can be bound on loopback right now.
type ProbeFunc func(port int) bool

// Allocator chooses ports within an inclusive range, skipping a static
// reserved set.
type Allocator struct {
	min      int
	max      int
	reserved map[int]bool
	probe    ProbeFunc
}

// New creates an allocator for the inclusive range [min, max]. A nil
// probe defaults to a transient loopback bind.
func New(min, max int, reserved map[int]bool, probe ProbeFunc) *Allocator {
	if probe == nil {
		probe = ProbeLoopback
	}
	return &Allocator{
		min:      min,
		max:      max,
		reserved: reserved,
		probe:    probe,
	}
}

// Width returns the number of ports in the range.
func (a *Allocator) Width() int {
	return a.max - a.min + 1
}

// BasePort returns the deterministic starting candidate for an identity.
func (a *Allocator) BasePort(identity string) int {
	return a.min + int(xxhash.Sum64String(identity)%uint64(a.Width()))
}

// Allocate returns a free, non-reserved port for the identity. It scans
// linearly from the base port, wrapping at the range maximum, probing
// candidates strictly one at a time. When the whole range is occupied
// it fails with a capacity error naming the scanned range.
func (a *Allocator) Allocate(identity string) (int, error) {
	base := a.BasePort(identity)
	width := a.Width()

	for i := 0; i < width; i++ {
		candidate := a.min + (base-a.min+i)%width
		if a.reserved[candidate] {
			continue
		}
		if !a.probe(candidate) {
			log.Debug().Int("port", candidate).Msg("port in use, trying next")
			continue
		}
		if candidate != base {
			log.Debug().
				Int("base", base).
				Int("port", candidate).
				Msg("base port unavailable, settled on nearby port")
		}
		return candidate, nil
	}

	return 0, domain.NewAllocationError(identity, a.min, a.max, domain.ErrPortRangeExhausted)
}

// ProbeLoopback checks availability by binding a transient listener on
// 127.0.0.1 and releasing it immediately. Any bind error counts as
// unavailable.
func ProbeLoopback(port int) bool {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return false
	}
	_ = ln.Close()
	return true
}
