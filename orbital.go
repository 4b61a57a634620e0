/*
 * orbital.go, part of gocastep.
 *
 * Copyright 2023 Tony Wu
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU Lesser General Public License as
 * published by the Free Software Foundation; either version 2.1 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU Lesser General
 * Public License along with this program.  If not, see
 * <http://www.gnu.org/licenses/>.
 *
 */

package castep

import "fmt"

//AngularMomentum is the orbital angular momentum quantum number l as stored
//in .pdos_weights files (0 to 3).
type AngularMomentum int

const (
	S AngularMomentum = iota
	P
	D
	F
)

//AngularMomentumFromL converts a raw l value from the file into an
//AngularMomentum, rejecting anything outside s/p/d/f.
func AngularMomentumFromL(l int) (AngularMomentum, error) {
	if l < 0 || l > 3 {
		return 0, fmt.Errorf("goCastep: angular momentum l=%d outside the s/p/d/f range of the format", l)
	}
	return AngularMomentum(l), nil
}

func (a AngularMomentum) String() string {
	switch a {
	case S:
		return "s"
	case P:
		return "p"
	case D:
		return "d"
	case F:
		return "f"
	}
	return "?"
}

//Degeneracy returns the number of m channels of the momentum, 2l+1. The
//orbital catalogue of a .pdos_weights file lists each (site, l) at most this
//many times, once per m-resolved channel.
func (a AngularMomentum) Degeneracy() int {
	return 2*int(a) + 1
}

//Orbital is one entry of the orbital catalogue of a .pdos_weights file.
//SpeciesID is the 1-based species rank from the cell definition, IonID the
//1-based index of the atom within its species, and Channel the angular
//momentum. Weight records refer to orbitals by their position in the
//catalogue, not by these fields.
type Orbital struct {
	SpeciesID int
	IonID     int
	Channel   AngularMomentum
}

func (o Orbital) String() string {
	return fmt.Sprintf("species %d ion %d %v", o.SpeciesID, o.IonID, o.Channel)
}

//validateCatalogue checks the orbital catalogue for internal consistency.
//A given (species, ion, l) may repeat up to 2l+1 times, once per m-resolved
//channel; more repetitions than that cannot come from a well-formed file.
func validateCatalogue(orbitals []Orbital) error {
	seen := make(map[Orbital]int, len(orbitals))
	for i, o := range orbitals {
		seen[o]++
		if seen[o] > o.Channel.Degeneracy() {
			return &ValidationError{Kind: DuplicateOrbital, Spin: -1, KPoint: -1, Band: -1, Orbital: i,
				Detail: fmt.Sprintf("%v appears %d times, more than its %d m channels", o, seen[o], o.Channel.Degeneracy())}
		}
	}
	return nil
}
