/*
 * bands.go, part of gocastep.
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

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"
)

//KPoint is one sample point of the Brillouin zone. Index is the 1-based
//index declared in the .bands file, Coords are fractional reciprocal-space
//coordinates and Weight is the BZ integration weight. KPoints are immutable
//once parsed.
type KPoint struct {
	Index  int
	Coords [3]float64
	Weight float64
}

//BandStructure is the fully materialized content of a .bands file.
//Eigenvalues and Fermi energies are stored in eV (the file has them in
//Hartree, the reader converts). Eigenvalues keep the order they have in the
//file; CASTEP writes them sorted by energy but this is not re-imposed here.
type BandStructure struct {
	nspins    int
	nbands    int //per spin channel, constant across k-points and spins
	kpoints   []KPoint
	fermi     []float64 //eV, one per spin channel
	electrons []float64 //electron count, one per spin channel
	cell      *mat.Dense
	eigen     []float64 //arena, indexed [spin][kpoint][band], eV
}

//NewBandStructure assembles a BandStructure from already-decoded pieces.
//eigen must hold nspins*len(kpoints)*nbands values laid out spin-major.
//Only shape checks happen here; physical invariants are left to Validate.
func NewBandStructure(kpoints []KPoint, nspins, nbands int, fermi, electrons []float64, cell *mat.Dense, eigen []float64) (*BandStructure, error) {
	if nspins != 1 && nspins != 2 {
		return nil, fmt.Errorf("goCastep.NewBandStructure: %d spin components, must be 1 or 2", nspins)
	}
	if len(fermi) != nspins || len(electrons) != nspins {
		return nil, fmt.Errorf("goCastep.NewBandStructure: %d Fermi energies and %d electron counts for %d spin components", len(fermi), len(electrons), nspins)
	}
	if want := nspins * len(kpoints) * nbands; len(eigen) != want {
		return nil, fmt.Errorf("goCastep.NewBandStructure: %d eigenvalues, want %d", len(eigen), want)
	}
	if r, c := cell.Dims(); r != 3 || c != 3 {
		return nil, fmt.Errorf("goCastep.NewBandStructure: %dx%d cell matrix, want 3x3", r, c)
	}
	B := new(BandStructure)
	B.nspins = nspins
	B.nbands = nbands
	B.kpoints = kpoints
	B.fermi = fermi
	B.electrons = electrons
	B.cell = cell
	B.eigen = eigen
	return B, nil
}

//NSpins returns the number of spin components (1 or 2).
func (B *BandStructure) NSpins() int { return B.nspins }

//NKPoints returns the number of k-points.
func (B *BandStructure) NKPoints() int { return len(B.kpoints) }

//NBands returns the number of bands per spin channel, which is the same at
//every k-point.
func (B *BandStructure) NBands() int { return B.nbands }

//Spins returns the valid spin channels of this calculation.
func (B *BandStructure) Spins() []Spin { return Spins(B.nspins) }

//KPoints returns the k-points in file order. The returned slice is shared
//with the model and must not be modified.
func (B *BandStructure) KPoints() []KPoint { return B.kpoints }

//LatticeVectors returns the row-major unit cell vectors, in Angstrom.
func (B *BandStructure) LatticeVectors() *mat.Dense { return B.cell }

//FermiEnergy returns the Fermi energy in eV for the given spin channel.
func (B *BandStructure) FermiEnergy(s Spin) (float64, error) {
	slot, ok := spinSlot(s, B.nspins)
	if !ok {
		return 0, fmt.Errorf("goCastep.FermiEnergy: no spin channel %v in a %d-spin calculation", s, B.nspins)
	}
	return B.fermi[slot], nil
}

//Electrons returns the electron count of the given spin channel. For an
//unpolarized calculation (SpinNone) that is the total number of electrons.
func (B *BandStructure) Electrons(s Spin) (float64, error) {
	slot, ok := spinSlot(s, B.nspins)
	if !ok {
		return 0, fmt.Errorf("goCastep.Electrons: no spin channel %v in a %d-spin calculation", s, B.nspins)
	}
	return B.electrons[slot], nil
}

//eigOffset returns the arena offset of band 0 for the given storage slot
//and 0-based k-point.
func (B *BandStructure) eigOffset(slot, kpt int) int {
	return (slot*len(B.kpoints) + kpt) * B.nbands
}

//BandsAt returns the eigenvalues (eV) at the 0-based k-point kpt for the
//given spin channel, ordered by band index as in the file. The returned
//slice is a view into the model and must not be modified.
func (B *BandStructure) BandsAt(kpt int, s Spin) ([]float64, error) {
	if kpt < 0 || kpt >= len(B.kpoints) {
		return nil, fmt.Errorf("goCastep.BandsAt: k-point %d out of range [0,%d)", kpt, len(B.kpoints))
	}
	slot, ok := spinSlot(s, B.nspins)
	if !ok {
		return nil, fmt.Errorf("goCastep.BandsAt: no spin channel %v in a %d-spin calculation", s, B.nspins)
	}
	off := B.eigOffset(slot, kpt)
	return B.eigen[off : off+B.nbands], nil
}

//SortedBandsAt is like BandsAt but returns a fresh copy sorted by ascending
//energy, for consumers that need the energy-ordered view regardless of the
//order in the source file.
func (B *BandStructure) SortedBandsAt(kpt int, s Spin) ([]float64, error) {
	v, err := B.BandsAt(kpt, s)
	if err != nil {
		return nil, err
	}
	ret := make([]float64, len(v))
	copy(ret, v)
	sort.Float64s(ret)
	return ret, nil
}

//EnergyRange returns the smallest and largest eigenvalue (eV) over all spin
//channels and k-points.
func (B *BandStructure) EnergyRange() (min, max float64) {
	min, max = B.eigen[0], B.eigen[0]
	for _, e := range B.eigen {
		if e < min {
			min = e
		}
		if e > max {
			max = e
		}
	}
	return min, max
}

//Validate checks the physical invariants of the model and returns the first
//violation found as a *ValidationError, or nil. The checked invariants are:
//non-negative k-point weights, and per spin channel the k-point weights
//summing to 1 within DefTol. The uniform band count is structural here (the
//arena cannot express anything else) so it is enforced at decode time.
func (B *BandStructure) Validate() error {
	var sum float64
	for _, k := range B.kpoints {
		if k.Weight < 0 {
			return &ValidationError{Kind: NegativeKPointWeight, Spin: -1, KPoint: k.Index, Band: -1, Orbital: -1,
				Detail: fmt.Sprintf("weight %g", k.Weight)}
		}
		sum += k.Weight
	}
	if sum < 1-DefTol || sum > 1+DefTol {
		return &ValidationError{Kind: KPointWeightSum, Spin: -1, KPoint: -1, Band: -1, Orbital: -1,
			Detail: fmt.Sprintf("weights sum to %.8f, want 1 within %g", sum, DefTol)}
	}
	return nil
}
