// Package mathid issues the short identifiers carried by math nodes in an
// editing session.
//
// An identifier is the letter "m" followed by four decimal digits. The space
// holds 10,000 values; Allocate redraws on collision, so a session that has
// issued most of the space will spin for a long time before finding a free
// value, and a session that has issued all of it never returns. Editing
// sessions stay far below that in practice and the limit is not enforced.
package mathid

import (
	"fmt"
	"math/rand/v2"
	"regexp"
	"sync"
)

// Space is the number of distinct identifiers.
const Space = 10000

var idPattern = regexp.MustCompile(`^m\d{4}$`)

// Valid reports whether id has the m + 4 digits shape.
func Valid(id string) bool {
	return idPattern.MatchString(id)
}

// Format renders n as an identifier.
func Format(n int) string {
	return fmt.Sprintf("m%04d", n%Space)
}

// Registry is the append-only set of identifiers issued in one session.
// Entries are never removed, so an identifier is never reused even after
// its node is deleted from the document.
type Registry struct {
	mu     sync.Mutex
	issued map[string]struct{}
	order  []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{issued: make(map[string]struct{})}
}

// Contains reports whether id was already issued or adopted.
func (r *Registry) Contains(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.issued[id]
	return ok
}

// Len returns how many identifiers the registry holds.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

// IDs returns the identifiers in issue order.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// add registers id and reports whether it was new. Caller holds mu.
func (r *Registry) add(id string) bool {
	if _, ok := r.issued[id]; ok {
		return false
	}
	r.issued[id] = struct{}{}
	r.order = append(r.order, id)
	return true
}

// Allocator draws fresh identifiers against a Registry.
type Allocator struct {
	reg *Registry

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewAllocator returns an allocator over reg. A nil src uses a randomly
// seeded PCG source.
func NewAllocator(reg *Registry, src rand.Source) *Allocator {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &Allocator{reg: reg, rnd: rand.New(src)}
}

// Registry returns the registry the allocator writes to.
func (a *Allocator) Registry() *Registry { return a.reg }

// Allocate returns an identifier not yet present in the registry and
// registers it.
func (a *Allocator) Allocate() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.reg.mu.Lock()
	defer a.reg.mu.Unlock()

	for {
		id := Format(a.rnd.IntN(Space))
		if a.reg.add(id) {
			return id
		}
	}
}

// Adopt registers an identifier authored outside the allocator, such as one
// found in a loaded document. It reports whether the id was new. Ids that
// do not match the m + 4 digits shape are registered too; they simply can
// never collide with an allocated one.
func (a *Allocator) Adopt(id string) bool {
	if id == "" {
		return false
	}
	a.reg.mu.Lock()
	defer a.reg.mu.Unlock()
	return a.reg.add(id)
}
