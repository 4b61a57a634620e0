/*
 * weights_read.go, part of gocastep.
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
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

//.pdos_weights files are Fortran unformatted output: every record is
//bracketed by a 4-byte big-endian length marker on each side. The markers
//double as a cheap structural checksum, they must match each other and the
//expected record size.

//recReader walks a fully buffered binary stream record by record, keeping
//the byte offset for error reporting.
type recReader struct {
	data []byte
	off  int64
}

func (r *recReader) remaining() int64 {
	return int64(len(r.data)) - r.off
}

func (r *recReader) errHere(expected, found string) error {
	return &DecodeError{Format: "pdos_weights", Line: 0, Offset: r.off, Expected: expected, Found: found}
}

//peekLen returns the length marker of the next record without consuming it.
func (r *recReader) peekLen() (uint32, error) {
	if r.remaining() < 4 {
		return 0, r.errHere("record length marker", "end of input")
	}
	return binary.BigEndian.Uint32(r.data[r.off:]), nil
}

//record consumes one record and returns its payload. A negative want
//accepts any length; otherwise the marker must equal want. Both markers are
//validated against each other and against the remaining stream length
//before the payload is touched, so truncated and corrupted files fail here
//cheaply instead of during allocation.
func (r *recReader) record(want int) ([]byte, error) {
	size, err := r.peekLen()
	if err != nil {
		return nil, err
	}
	if want >= 0 && size != uint32(want) {
		return nil, r.errHere(fmt.Sprintf("record of %d bytes", want), fmt.Sprintf("marker %d", size))
	}
	if int64(size)+8 > r.remaining() {
		return nil, r.errHere(fmt.Sprintf("%d payload bytes plus closing marker", size),
			fmt.Sprintf("%d bytes left", r.remaining()))
	}
	start := r.off + 4
	payload := r.data[start : start+int64(size)]
	closing := binary.BigEndian.Uint32(r.data[start+int64(size):])
	if closing != size {
		return nil, r.errHere(fmt.Sprintf("closing marker %d", size), fmt.Sprintf("%d", closing))
	}
	r.off = start + int64(size) + 4
	return payload, nil
}

func (r *recReader) u32() (int, error) {
	p, err := r.record(4)
	if err != nil {
		return 0, err
	}
	return int(binary.BigEndian.Uint32(p)), nil
}

func (r *recReader) u32vec(n int) ([]int, error) {
	p, err := r.record(4 * n)
	if err != nil {
		return nil, err
	}
	v := make([]int, n)
	for i := range v {
		v[i] = int(binary.BigEndian.Uint32(p[4*i:]))
	}
	return v, nil
}

//f64vec decodes one record of n big-endian float64 into dst.
func (r *recReader) f64vec(n int, dst []float64) error {
	p, err := r.record(8 * n)
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		dst[i] = math.Float64frombits(binary.BigEndian.Uint64(p[8*i:]))
	}
	return nil
}

//ReadWeights decodes a CASTEP .pdos_weights or .pdos_bin stream into a
//PDOSWeights and validates it. The stream may be gzip or zstd compressed.
//The whole stream is buffered first; record sizes are then validated against
//the remaining length before any buffer is allocated from them. The two
//formats differ only in a version/header preamble that .pdos_bin prepends,
//which is detected and skipped.
func ReadWeights(rd io.Reader) (*PDOSWeights, error) {
	rd, err := NewDecompressingReader(rd)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(rd)
	if err != nil {
		return nil, err
	}
	r := &recReader{data: data}

	//.pdos_weights opens with a 4-byte record (the k-point count),
	//.pdos_bin with an 8-byte one (a version float) followed by a free
	//length CASTEP banner record.
	first, err := r.peekLen()
	if err != nil {
		return nil, err
	}
	switch first {
	case 4:
	case 8:
		if _, err := r.record(8); err != nil {
			return nil, err
		}
		if _, err := r.record(-1); err != nil {
			return nil, err
		}
	default:
		return nil, r.errHere("opening record of 4 (.pdos_weights) or 8 (.pdos_bin) bytes", fmt.Sprintf("marker %d", first))
	}

	nk, err := r.u32()
	if err != nil {
		return nil, err
	}
	nspins, err := r.u32()
	if err != nil {
		return nil, err
	}
	norb, err := r.u32()
	if err != nil {
		return nil, err
	}
	maxBands, err := r.u32()
	if err != nil {
		return nil, err
	}
	if nk <= 0 || norb <= 0 || maxBands <= 0 {
		return nil, r.errHere("positive k-point, orbital and band counts",
			fmt.Sprintf("nk=%d norbitals=%d maxbands=%d", nk, norb, maxBands))
	}
	if nspins != 1 && nspins != 2 {
		return nil, r.errHere("spin component count 1 or 2", fmt.Sprintf("%d", nspins))
	}

	orbitals, err := readCatalogue(r, norb)
	if err != nil {
		return nil, err
	}

	var (
		nbands  = -1 //set by the first per-spin block, then enforced uniform
		weights []float64
		kpoints = make([]KPoint, 0, nk)
	)
	for k := 0; k < nk; k++ {
		kp, err := readWeightsKPoint(r)
		if err != nil {
			return nil, err
		}
		kpoints = append(kpoints, kp)
		for slot := 0; slot < nspins; slot++ {
			spinIdx, err := r.u32()
			if err != nil {
				return nil, err
			}
			if spinIdx != slot+1 {
				return nil, r.errHere(fmt.Sprintf("spin index %d", slot+1), fmt.Sprintf("%d", spinIdx))
			}
			nb, err := r.u32()
			if err != nil {
				return nil, err
			}
			if nb <= 0 || nb > maxBands {
				return nil, r.errHere(fmt.Sprintf("band count in [1,%d]", maxBands), fmt.Sprintf("%d", nb))
			}
			if nbands == -1 {
				nbands = nb
				//necessary size check before the single big allocation
				need := int64(nspins) * int64(nk) * int64(nbands) * int64(norb) * 8
				if got := r.remaining() + int64(nbands*norb*8); need > got {
					return nil, r.errHere(fmt.Sprintf("%d bytes of weight data", need), fmt.Sprintf("at most %d left", got))
				}
				weights = make([]float64, nspins*nk*nbands*norb)
			} else if nb != nbands {
				return nil, &ValidationError{Kind: BandCountInconsistent, Spin: Spins(nspins)[slot], KPoint: kp.Index, Band: -1, Orbital: -1,
					Detail: fmt.Sprintf("%d bands, other blocks have %d", nb, nbands)}
			}
			for b := 0; b < nbands; b++ {
				off := ((slot*nk+k)*nbands + b) * norb
				if err := r.f64vec(norb, weights[off:off+norb]); err != nil {
					return nil, err
				}
			}
		}
	}
	if r.remaining() != 0 {
		return nil, r.errHere(fmt.Sprintf("end of input after %d k-point blocks", nk),
			fmt.Sprintf("%d trailing bytes", r.remaining()))
	}

	W, err := NewPDOSWeights(orbitals, kpoints, nspins, nbands, weights)
	if err != nil {
		return nil, err
	}
	if err := W.Validate(); err != nil {
		errDecorate(err, "ReadWeights")
		return nil, err
	}
	return W, nil
}

//readCatalogue reads the three parallel u32 vectors (species, ion, l) and
//zips them into the orbital catalogue.
func readCatalogue(r *recReader, norb int) ([]Orbital, error) {
	species, err := r.u32vec(norb)
	if err != nil {
		return nil, err
	}
	ions, err := r.u32vec(norb)
	if err != nil {
		return nil, err
	}
	ls, err := r.u32vec(norb)
	if err != nil {
		return nil, err
	}
	orbitals := make([]Orbital, norb)
	for i := range orbitals {
		am, err := AngularMomentumFromL(ls[i])
		if err != nil {
			return nil, r.errHere("angular momentum l in [0,3]", fmt.Sprintf("%d at catalogue position %d", ls[i], i))
		}
		orbitals[i] = Orbital{SpeciesID: species[i], IonID: ions[i], Channel: am}
	}
	return orbitals, nil
}

//readWeightsKPoint reads the 28-byte k-point record: a u32 index and three
//f64 fractional coordinates. The weights format carries no integration
//weight, that lives in .bands.
func readWeightsKPoint(r *recReader) (KPoint, error) {
	var kp KPoint
	p, err := r.record(28)
	if err != nil {
		return kp, err
	}
	kp.Index = int(binary.BigEndian.Uint32(p))
	for i := 0; i < 3; i++ {
		kp.Coords[i] = math.Float64frombits(binary.BigEndian.Uint64(p[4+8*i:]))
	}
	return kp, nil
}
