package agents

import (
	"sort"
	"strings"
)

// Species describes one kind of creature.
type Species struct {
	Name     string  `json:"name"`
	Width    float64 `json:"width"`     // Bounding box width in blocks
	Speed    float64 `json:"speed"`     // Blocks per tick when walking
	HerdSize int     `json:"herd_size"` // Typical size of a spawned group
	Lifespan uint64  `json:"lifespan"`  // Ticks
	Herding  bool    `json:"herding"`
}

const ticksPerDay = 24000

var catalog = map[string]*Species{
	"microceratus":    {Name: "microceratus", Width: 0.4, Speed: 0.12, HerdSize: 8, Lifespan: 3 * ticksPerDay, Herding: true},
	"compsognathus":   {Name: "compsognathus", Width: 0.5, Speed: 0.16, HerdSize: 7, Lifespan: 3 * ticksPerDay, Herding: true},
	"dodo":            {Name: "dodo", Width: 0.5, Speed: 0.08, HerdSize: 5, Lifespan: 4 * ticksPerDay, Herding: true},
	"gallimimus":      {Name: "gallimimus", Width: 1.2, Speed: 0.2, HerdSize: 6, Lifespan: 5 * ticksPerDay, Herding: true},
	"parasaurolophus": {Name: "parasaurolophus", Width: 2.5, Speed: 0.12, HerdSize: 5, Lifespan: 6 * ticksPerDay, Herding: true},
	"triceratops":     {Name: "triceratops", Width: 3.0, Speed: 0.1, HerdSize: 4, Lifespan: 7 * ticksPerDay, Herding: true},
	"apatosaurus":     {Name: "apatosaurus", Width: 6.5, Speed: 0.08, HerdSize: 3, Lifespan: 9 * ticksPerDay, Herding: true},
	"velociraptor":    {Name: "velociraptor", Width: 1.0, Speed: 0.22, HerdSize: 2, Lifespan: 5 * ticksPerDay, Herding: false},
}

// LookupSpecies finds a species by case-insensitive name.
func LookupSpecies(name string) (*Species, bool) {
	sp, ok := catalog[strings.ToLower(name)]
	return sp, ok
}

// AllSpecies returns every species sorted by name.
func AllSpecies() []*Species {
	out := make([]*Species, 0, len(catalog))
	for _, sp := range catalog {
		out = append(out, sp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// HerdingSpecies returns the species that form herds, sorted by name.
func HerdingSpecies() []*Species {
	var out []*Species
	for _, sp := range AllSpecies() {
		if sp.Herding {
			out = append(out, sp)
		}
	}
	return out
}
