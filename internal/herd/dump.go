package herd

import (
	"fmt"
	"io"
	"strings"

	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/dustin/go-humanize"
)

// Census is a point-in-time summary of one herd.
type Census struct {
	Key          Key   `json:"key"`
	Members      int   `json:"members"`
	Clusters     int   `json:"clusters"`
	Noise        int   `json:"noise"`
	Largest      int   `json:"largest"`
	ClusterSizes []int `json:"cluster_sizes"`
}

// Census summarises h.
func (h *Herd) Census() Census {
	c := Census{
		Key:          h.key,
		Members:      h.members.len(),
		Clusters:     len(h.clusters),
		Noise:        h.noise.len(),
		ClusterSizes: make([]int, 0, len(h.clusters)),
	}
	for _, cl := range h.clusters {
		c.ClusterSizes = append(c.ClusterSizes, cl.Len())
		if cl.Len() > c.Largest {
			c.Largest = cl.Len()
		}
	}
	return c
}

// Census summarises every herd in creation order.
func (r *Registry) Census() []Census {
	out := make([]Census, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.herds[k].Census())
	}
	return out
}

// Dump writes a human-readable listing of every herd: cluster sizes with
// member block positions, then noise positions. Meant for logs.
func (r *Registry) Dump(w io.Writer) error {
	for _, k := range r.order {
		if err := r.herds[k].Dump(w); err != nil {
			return err
		}
	}
	return nil
}

// Dump writes h in the registry dump format.
func (h *Herd) Dump(w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "[ species=%s, dimension=%s, members=%s, clusters=%d, noise=%d ]\n",
		h.key.Species, h.key.Dimension, humanize.Comma(int64(h.members.len())), len(h.clusters), h.noise.len())
	if len(h.clusters) > 0 {
		b.WriteString("  [")
		for _, c := range h.clusters {
			fmt.Fprintf(&b, " #:%d", c.Len())
			for _, m := range c.members.list {
				b.WriteString(", ")
				writePos(&b, m)
			}
		}
		b.WriteString(" ]\n")
	}
	b.WriteString("  noise=[")
	for i, m := range h.noise.list {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(" ")
		writePos(&b, m)
	}
	b.WriteString(" ]\n")
	_, err := io.WriteString(w, b.String())
	return err
}

func (r *Registry) String() string {
	var b strings.Builder
	_ = r.Dump(&b)
	return b.String()
}

func writePos(b *strings.Builder, m Member) {
	p := cube.PosFromVec3(m.Position())
	fmt.Fprintf(b, "(%d, %d, %d)", p[0], p[1], p[2])
}
