/*
 * castep.go, part of gocastep.
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

//Hartree2EV converts energies from Hartree, the unit used inside .bands
//files, to electron-volt, the unit used everywhere in this library.
//The value matches the conversion constant built into CASTEP itself.
const Hartree2EV float64 = 27.211396641308

//DefTol is the absolute tolerance used by the validation routines when
//comparing floating point quantities parsed from CASTEP output, such as the
//sum of k-point weights or of projection weights.
const DefTol float64 = 1e-6

//Spin identifies one spin channel of a calculation. SpinNone is the single
//channel of a spin-unpolarized run; SpinUp and SpinDown are the two channels
//of a polarized one.
type Spin int

const (
	SpinNone Spin = iota
	SpinUp
	SpinDown
)

func (s Spin) String() string {
	switch s {
	case SpinNone:
		return "none"
	case SpinUp:
		return "up"
	case SpinDown:
		return "down"
	}
	return "invalid"
}

//Spins returns the valid spin channels for a calculation with nspins
//spin components (1 or 2, anything else returns nil).
func Spins(nspins int) []Spin {
	switch nspins {
	case 1:
		return []Spin{SpinNone}
	case 2:
		return []Spin{SpinUp, SpinDown}
	}
	return nil
}

//spinSlot maps a spin channel to its storage index for a model holding
//nspins channels. The second value is false if the channel does not exist
//in such a model.
func spinSlot(s Spin, nspins int) (int, bool) {
	if nspins == 1 {
		if s == SpinNone {
			return 0, true
		}
		return 0, false
	}
	switch s {
	case SpinUp:
		return 0, true
	case SpinDown:
		return 1, true
	}
	return 0, false
}
