package dos

import (
	"fmt"

	castep "github.com/TonyWu20/gocastep"
)

//Grouper assigns an orbital of the catalogue to a named PDOS group. The
//second return value excludes the orbital from every group when false.
//Group order in the output follows the first appearance of each label in
//catalogue order.
type Grouper func(o castep.Orbital) (label string, ok bool)

//ByChannel groups orbitals by angular momentum channel, yielding the
//classic s/p/d/f decomposition.
func ByChannel(o castep.Orbital) (string, bool) {
	return o.Channel.String(), true
}

//speciesLabel resolves a species id to a symbol through the optional names
//map (species rank to symbol, as declared in the cell file). Unmapped ids
//get a synthetic label so no orbital is silently dropped.
func speciesLabel(names map[int]string, id int) string {
	if name, ok := names[id]; ok {
		return name
	}
	return fmt.Sprintf("species-%d", id)
}

//BySpecies groups orbitals by atomic species. names may be nil.
func BySpecies(names map[int]string) Grouper {
	return func(o castep.Orbital) (string, bool) {
		return speciesLabel(names, o.SpeciesID), true
	}
}

//BySpeciesChannel groups orbitals by species and angular momentum, e.g.
//"Mo-d".
func BySpeciesChannel(names map[int]string) Grouper {
	return func(o castep.Orbital) (string, bool) {
		return fmt.Sprintf("%s-%v", speciesLabel(names, o.SpeciesID), o.Channel), true
	}
}

//Restrict narrows a Grouper to the orbitals of one species, optionally to
//given sites (1-based ion indices within the species). Orbitals outside the
//selection are excluded. This is the building block for projector-style
//selections: Restrict(ByChannel, 2, 1) is the s/p/d/f decomposition of atom
//1 of species 2.
func Restrict(g Grouper, species int, sites ...int) Grouper {
	var siteSet map[int]bool
	if len(sites) > 0 {
		siteSet = make(map[int]bool, len(sites))
		for _, s := range sites {
			siteSet[s] = true
		}
	}
	return func(o castep.Orbital) (string, bool) {
		if o.SpeciesID != species {
			return "", false
		}
		if siteSet != nil && !siteSet[o.IonID] {
			return "", false
		}
		return g(o)
	}
}

//groupCatalogue maps every orbital position to a group index, in order of
//first appearance. Excluded orbitals get -1.
func groupCatalogue(orbitals []castep.Orbital, g Grouper) (labels []string, orbGroup []int) {
	byLabel := make(map[string]int)
	orbGroup = make([]int, len(orbitals))
	for i, o := range orbitals {
		label, ok := g(o)
		if !ok {
			orbGroup[i] = -1
			continue
		}
		idx, seen := byLabel[label]
		if !seen {
			idx = len(labels)
			byLabel[label] = idx
			labels = append(labels, label)
		}
		orbGroup[i] = idx
	}
	return labels, orbGroup
}
