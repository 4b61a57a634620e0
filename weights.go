/*
 * weights.go, part of gocastep.
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

//PDOSWeights is the fully materialized content of a .pdos_weights (or
//.pdos_bin) file: the orbital catalogue plus the projection weight of every
//(spin, k-point, band) onto every orbital. The format is dense, so every
//index combination within the declared counts has a stored weight; there are
//no absent entries to default.
type PDOSWeights struct {
	nspins   int
	nbands   int //uniform across k-points and spins
	orbitals []Orbital
	kpoints  []KPoint  //index and coordinates from the file; the format carries no weights here
	weights  []float64 //arena, indexed [spin][kpoint][band][orbital]
}

//NewPDOSWeights assembles a PDOSWeights from decoded pieces. weights must
//hold nspins*len(kpoints)*nbands*len(orbitals) values laid out spin-major,
//then k-point, band, orbital. Shape is checked here, physical invariants in
//Validate.
func NewPDOSWeights(orbitals []Orbital, kpoints []KPoint, nspins, nbands int, weights []float64) (*PDOSWeights, error) {
	if nspins != 1 && nspins != 2 {
		return nil, fmt.Errorf("goCastep.NewPDOSWeights: %d spin components, must be 1 or 2", nspins)
	}
	if want := nspins * len(kpoints) * nbands * len(orbitals); len(weights) != want {
		return nil, fmt.Errorf("goCastep.NewPDOSWeights: %d weights, want %d", len(weights), want)
	}
	W := new(PDOSWeights)
	W.nspins = nspins
	W.nbands = nbands
	W.orbitals = orbitals
	W.kpoints = kpoints
	W.weights = weights
	return W, nil
}

//NSpins returns the number of spin components (1 or 2).
func (W *PDOSWeights) NSpins() int { return W.nspins }

//NKPoints returns the number of k-points.
func (W *PDOSWeights) NKPoints() int { return len(W.kpoints) }

//NBands returns the number of bands per (spin, k-point).
func (W *PDOSWeights) NBands() int { return W.nbands }

//NOrbitals returns the size of the orbital catalogue.
func (W *PDOSWeights) NOrbitals() int { return len(W.orbitals) }

//Orbitals returns the orbital catalogue in file order. The slice is shared
//with the model and must not be modified.
func (W *PDOSWeights) Orbitals() []Orbital { return W.orbitals }

//KPoints returns the k-points as declared in the weights file. Their Weight
//field is always zero; integration weights live in the .bands file.
func (W *PDOSWeights) KPoints() []KPoint { return W.kpoints }

//Spins returns the valid spin channels of this calculation.
func (W *PDOSWeights) Spins() []Spin { return Spins(W.nspins) }

//offset returns the arena offset of orbital 0 for the given storage slot,
//0-based k-point and 0-based band.
func (W *PDOSWeights) offset(slot, kpt, band int) int {
	return ((slot*len(W.kpoints)+kpt)*W.nbands + band) * len(W.orbitals)
}

//Weight returns the projection weight of the given band at the given k-point
//and spin channel onto orbital orb (0-based catalogue position). Out of
//range indices or a nonexistent spin channel return an error; the format is
//dense so there is no notion of a missing-but-valid entry.
func (W *PDOSWeights) Weight(s Spin, kpt, band, orb int) (float64, error) {
	slot, ok := spinSlot(s, W.nspins)
	if !ok {
		return 0, fmt.Errorf("goCastep.Weight: no spin channel %v in a %d-spin calculation", s, W.nspins)
	}
	if kpt < 0 || kpt >= len(W.kpoints) {
		return 0, fmt.Errorf("goCastep.Weight: k-point %d out of range [0,%d)", kpt, len(W.kpoints))
	}
	if band < 0 || band >= W.nbands {
		return 0, fmt.Errorf("goCastep.Weight: band %d out of range [0,%d)", band, W.nbands)
	}
	if orb < 0 || orb >= len(W.orbitals) {
		return 0, fmt.Errorf("goCastep.Weight: orbital %d out of range [0,%d)", orb, len(W.orbitals))
	}
	return W.weights[W.offset(slot, kpt, band)+orb], nil
}

//BandWeights returns the weights of all orbitals for one (spin, k-point,
//band), in catalogue order, as a view into the model.
func (W *PDOSWeights) BandWeights(s Spin, kpt, band int) ([]float64, error) {
	slot, ok := spinSlot(s, W.nspins)
	if !ok {
		return nil, fmt.Errorf("goCastep.BandWeights: no spin channel %v in a %d-spin calculation", s, W.nspins)
	}
	if kpt < 0 || kpt >= len(W.kpoints) {
		return nil, fmt.Errorf("goCastep.BandWeights: k-point %d out of range [0,%d)", kpt, len(W.kpoints))
	}
	if band < 0 || band >= W.nbands {
		return nil, fmt.Errorf("goCastep.BandWeights: band %d out of range [0,%d)", band, W.nbands)
	}
	off := W.offset(slot, kpt, band)
	return W.weights[off : off+len(W.orbitals)], nil
}

//Validate checks the physical invariants of the model and returns the first
//violation as a *ValidationError, or nil. Projection is a partition of
//unity, so for every (spin, k-point, band) the weights summed over the
//catalogue must not exceed 1 + DefTol. They may fall short: CASTEP truncates
//the projection basis. Negative weights are rejected too. Violations are
//reported, never clamped.
func (W *PDOSWeights) Validate() error {
	if err := validateCatalogue(W.orbitals); err != nil {
		return err
	}
	for _, s := range W.Spins() {
		slot, _ := spinSlot(s, W.nspins)
		for k := range W.kpoints {
			for b := 0; b < W.nbands; b++ {
				off := W.offset(slot, k, b)
				var sum float64
				for orb, w := range W.weights[off : off+len(W.orbitals)] {
					if w < 0 {
						return &ValidationError{Kind: WeightSumExceedsUnity, Spin: s, KPoint: W.kpoints[k].Index, Band: b + 1, Orbital: orb,
							Detail: fmt.Sprintf("negative weight %g", w)}
					}
					sum += w
				}
				if sum > 1+DefTol {
					return &ValidationError{Kind: WeightSumExceedsUnity, Spin: s, KPoint: W.kpoints[k].Index, Band: b + 1, Orbital: -1,
						Detail: fmt.Sprintf("weights sum to %.8f, allowed at most 1+%g", sum, DefTol)}
				}
			}
		}
	}
	return nil
}

//ConsistentWith checks that the index space of the weights matches the one
//of the band structure they are to be combined with. Any disagreement in
//spin, k-point or band counts is a hard *ConsistencyError; a projected DOS
//computed from mismatched models would be silently wrong.
func (W *PDOSWeights) ConsistentWith(B *BandStructure) error {
	if W.nspins != B.NSpins() {
		return &ConsistencyError{Kind: SpinCountMismatch, Bands: B.NSpins(), Weights: W.nspins}
	}
	if len(W.kpoints) != B.NKPoints() {
		return &ConsistencyError{Kind: KPointCountMismatch, Bands: B.NKPoints(), Weights: len(W.kpoints)}
	}
	if W.nbands != B.NBands() {
		return &ConsistencyError{Kind: BandCountMismatch, Bands: B.NBands(), Weights: W.nbands}
	}
	return nil
}
