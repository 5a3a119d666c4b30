// Package herd keeps each species' population partitioned into spatial
// clusters and noise, and tells individual agents where to walk to stay
// with their herd.
//
// The engine holds references to members and queries their position live on
// every call. Callers own member lifecycle: a member must be removed before
// it is destroyed. None of the types here are safe for concurrent use; a
// single simulation goroutine is expected to drive a Registry.
package herd

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

// Key identifies one herd. Agents of the same species living in different
// dimensions never share a herd.
type Key struct {
	Species   string `json:"species"`
	Dimension string `json:"dimension"`
}

func (k Key) String() string {
	return fmt.Sprintf("%s@%s", k.Species, k.Dimension)
}

// Member is an agent tracked for herd membership.
type Member interface {
	MemberID() uint64
	Position() mgl64.Vec3
	Width() float64
	HerdKey() Key
}

var (
	ErrNotMember       = errors.New("herd: not a member")
	ErrDuplicateMember = errors.New("herd: member already added")
	ErrWrongHerd       = errors.New("herd: member belongs to another herd")
	ErrEmptyCluster    = errors.New("herd: empty cluster")
)

// roster is an insertion-ordered set of members keyed by member ID.
// Removal swaps the last element into the hole, so order stays deterministic.
type roster struct {
	list  []Member
	index map[uint64]int
}

func newRoster() *roster {
	return &roster{index: make(map[uint64]int)}
}

func (r *roster) len() int { return len(r.list) }

func (r *roster) contains(m Member) bool {
	_, ok := r.index[m.MemberID()]
	return ok
}

func (r *roster) add(m Member) bool {
	id := m.MemberID()
	if _, ok := r.index[id]; ok {
		return false
	}
	r.index[id] = len(r.list)
	r.list = append(r.list, m)
	return true
}

func (r *roster) remove(m Member) bool {
	id := m.MemberID()
	i, ok := r.index[id]
	if !ok {
		return false
	}
	last := len(r.list) - 1
	if i != last {
		moved := r.list[last]
		r.list[i] = moved
		r.index[moved.MemberID()] = i
	}
	r.list[last] = nil
	r.list = r.list[:last]
	delete(r.index, id)
	return true
}

func (r *roster) clear() {
	clear(r.list)
	r.list = r.list[:0]
	clear(r.index)
}

func (r *roster) snapshot() []Member {
	out := make([]Member, len(r.list))
	copy(out, r.list)
	return out
}
