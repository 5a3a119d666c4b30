package herd

import (
	"sort"

	"github.com/go-gl/mathgl/mgl64"
)

var testKey = Key{Species: "gallimimus", Dimension: "overworld"}

type stubMember struct {
	id    uint64
	pos   mgl64.Vec3
	width float64
	key   Key
}

func (s *stubMember) MemberID() uint64      { return s.id }
func (s *stubMember) Position() mgl64.Vec3 { return s.pos }
func (s *stubMember) Width() float64        { return s.width }
func (s *stubMember) HerdKey() Key          { return s.key }

func newStub(id uint64, x, y, z float64) *stubMember {
	return &stubMember{id: id, pos: mgl64.Vec3{x, y, z}, width: 1, key: testKey}
}

func testHerd() *Herd {
	cfg := DefaultConfig()
	return newHerd(testKey, cfg.Policy(), cfg.MinHerdSize)
}

func ids(ms []Member) []uint64 {
	out := make([]uint64, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.MemberID())
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// partition returns the herd's clusters as sorted ID sets, sorted by first ID.
func partition(h *Herd) [][]uint64 {
	var out [][]uint64
	for _, c := range h.Clusters() {
		out = append(out, ids(c.Members()))
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}

// checkPartition returns the IDs that are in zero or more than one of
// {clusters, noise}; empty means the invariant holds.
func checkPartition(h *Herd) []uint64 {
	seen := make(map[uint64]int)
	for _, c := range h.Clusters() {
		for _, m := range c.Members() {
			seen[m.MemberID()]++
		}
	}
	for _, m := range h.Noise() {
		seen[m.MemberID()]++
	}
	var bad []uint64
	for _, m := range h.Members() {
		if seen[m.MemberID()] != 1 {
			bad = append(bad, m.MemberID())
		}
		delete(seen, m.MemberID())
	}
	for id := range seen {
		bad = append(bad, id)
	}
	return bad
}
