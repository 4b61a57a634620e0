/*
 * bands_read.go, part of gocastep.
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
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

//The .bands header is a fixed sequence of keyword lines. They must appear
//in exactly this order; CASTEP never writes them any other way, so a
//deviation means the file is not a .bands file or is corrupted.
const (
	kwKPoints     = "Number of k-points"
	kwSpins       = "Number of spin components"
	kwElectrons   = "Number of electrons"
	kwEigenvalues = "Number of eigenvalues"
	kwFermi       = "Fermi energy (in atomic units)"
	kwFermis      = "Fermi energies (in atomic units)"
	kwCell        = "Unit cell vectors"
	kwKPoint      = "K-point"
	kwSpinComp    = "Spin component"
)

//bandsScanner wraps a line scanner with the bookkeeping needed to produce
//located decode errors.
type bandsScanner struct {
	sc   *bufio.Scanner
	line int
}

//next returns the next line and advances the counter. On exhausted input it
//returns a DecodeError naming what was expected there.
func (b *bandsScanner) next(expected string) (string, error) {
	if !b.sc.Scan() {
		if err := b.sc.Err(); err != nil {
			return "", err
		}
		return "", &DecodeError{Format: "bands", Line: b.line + 1, Offset: -1, Expected: expected, Found: "end of input"}
	}
	b.line++
	return b.sc.Text(), nil
}

//errHere builds a DecodeError located at the current line.
func (b *bandsScanner) errHere(expected, found string) error {
	return &DecodeError{Format: "bands", Line: b.line, Offset: -1, Expected: expected, Found: found}
}

//keyword consumes one header line, checks it starts with the given keyword
//and returns the remaining fields.
func (b *bandsScanner) keyword(kw string) ([]string, error) {
	line, err := b.next(fmt.Sprintf("%q line", kw))
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(strings.TrimLeft(line, " \t"), kw) {
		return nil, b.errHere(fmt.Sprintf("%q line", kw), strconv.Quote(line))
	}
	rest := strings.TrimLeft(line, " \t")[len(kw):]
	return strings.Fields(rest), nil
}

//floatField parses one numeric token, reporting its name and position on
//failure instead of coercing.
func (b *bandsScanner) floatField(tok, name string) (float64, error) {
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, b.errHere(fmt.Sprintf("floating point %s", name), strconv.Quote(tok))
	}
	return v, nil
}

func (b *bandsScanner) intField(tok, name string) (int, error) {
	v, err := strconv.Atoi(tok)
	if err != nil {
		return 0, b.errHere(fmt.Sprintf("integer %s", name), strconv.Quote(tok))
	}
	return v, nil
}

//ReadBands decodes a CASTEP .bands stream into a BandStructure and validates
//it. The stream may be gzip or zstd compressed. Eigenvalues and Fermi
//energies come out converted to eV. The decoded model is checked against the
//declared counts: missing k-point blocks, short eigenvalue lists and data
//past the declared last block are all decode errors.
func ReadBands(r io.Reader) (*BandStructure, error) {
	r, err := NewDecompressingReader(r)
	if err != nil {
		return nil, err
	}
	b := &bandsScanner{sc: bufio.NewScanner(r)}
	b.sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	nk, nspins, err := readBandsCounts(b)
	if err != nil {
		return nil, err
	}
	electrons, err := readPerSpinFloats(b, kwElectrons, nspins, "electron count")
	if err != nil {
		return nil, err
	}
	nbands, err := readEigenvalueCounts(b, nspins)
	if err != nil {
		return nil, err
	}
	fermi, err := readFermi(b, nspins)
	if err != nil {
		return nil, err
	}
	cell, err := readCell(b)
	if err != nil {
		return nil, err
	}

	kpoints := make([]KPoint, 0, nk)
	eigen := make([]float64, nspins*nk*nbands)
	for i := 0; i < nk; i++ {
		kp, err := readKPointLine(b)
		if err != nil {
			return nil, err
		}
		kpoints = append(kpoints, kp)
		for slot := 0; slot < nspins; slot++ {
			if err := readSpinBlock(b, slot, eigen[((slot*nk)+i)*nbands:], nbands); err != nil {
				return nil, err
			}
		}
	}
	//anything but trailing whitespace after the declared last block is excess data
	for b.sc.Scan() {
		b.line++
		if strings.TrimSpace(b.sc.Text()) != "" {
			return nil, b.errHere(fmt.Sprintf("end of input after %d k-point blocks", nk), strconv.Quote(b.sc.Text()))
		}
	}
	if err := b.sc.Err(); err != nil {
		return nil, err
	}

	B, err := NewBandStructure(kpoints, nspins, nbands, fermi, electrons, cell, eigen)
	if err != nil {
		return nil, err
	}
	if err := B.Validate(); err != nil {
		errDecorate(err, "ReadBands")
		return nil, err
	}
	return B, nil
}

func readBandsCounts(b *bandsScanner) (nk, nspins int, err error) {
	fields, err := b.keyword(kwKPoints)
	if err != nil {
		return 0, 0, err
	}
	if len(fields) != 1 {
		return 0, 0, b.errHere("one k-point count", fmt.Sprintf("%d fields", len(fields)))
	}
	if nk, err = b.intField(fields[0], "k-point count"); err != nil {
		return 0, 0, err
	}
	if nk <= 0 {
		return 0, 0, b.errHere("positive k-point count", fields[0])
	}
	fields, err = b.keyword(kwSpins)
	if err != nil {
		return 0, 0, err
	}
	if len(fields) != 1 {
		return 0, 0, b.errHere("one spin component count", fmt.Sprintf("%d fields", len(fields)))
	}
	if nspins, err = b.intField(fields[0], "spin component count"); err != nil {
		return 0, 0, err
	}
	if nspins != 1 && nspins != 2 {
		return 0, 0, b.errHere("spin component count 1 or 2", fields[0])
	}
	return nk, nspins, nil
}

//readPerSpinFloats reads a keyword line carrying one float per spin channel.
func readPerSpinFloats(b *bandsScanner, kw string, nspins int, name string) ([]float64, error) {
	fields, err := b.keyword(kw)
	if err != nil {
		return nil, err
	}
	if len(fields) != nspins {
		return nil, b.errHere(fmt.Sprintf("%d %s value(s)", nspins, name), fmt.Sprintf("%d fields", len(fields)))
	}
	vals := make([]float64, nspins)
	for i, tok := range fields {
		if vals[i], err = b.floatField(tok, name); err != nil {
			return nil, err
		}
	}
	return vals, nil
}

//readEigenvalueCounts reads the per-spin band counts and requires them to
//agree: the model stores a single uniform band count.
func readEigenvalueCounts(b *bandsScanner, nspins int) (int, error) {
	fields, err := b.keyword(kwEigenvalues)
	if err != nil {
		return 0, err
	}
	if len(fields) != nspins {
		return 0, b.errHere(fmt.Sprintf("%d eigenvalue count(s)", nspins), fmt.Sprintf("%d fields", len(fields)))
	}
	counts := make([]int, nspins)
	for i, tok := range fields {
		if counts[i], err = b.intField(tok, "eigenvalue count"); err != nil {
			return 0, err
		}
		if counts[i] <= 0 {
			return 0, b.errHere("positive eigenvalue count", tok)
		}
	}
	if nspins == 2 && counts[0] != counts[1] {
		return 0, b.errHere("equal eigenvalue counts for both spins", fmt.Sprintf("%d and %d", counts[0], counts[1]))
	}
	return counts[0], nil
}

func readFermi(b *bandsScanner, nspins int) ([]float64, error) {
	kw := kwFermi
	if nspins == 2 {
		kw = kwFermis
	}
	fermi, err := readPerSpinFloats(b, kw, nspins, "Fermi energy")
	if err != nil {
		return nil, err
	}
	for i := range fermi {
		fermi[i] *= Hartree2EV
	}
	return fermi, nil
}

func readCell(b *bandsScanner) (*mat.Dense, error) {
	if _, err := b.keyword(kwCell); err != nil {
		return nil, err
	}
	cell := mat.NewDense(3, 3, nil)
	for i := 0; i < 3; i++ {
		line, err := b.next("unit cell vector line")
		if err != nil {
			return nil, err
		}
		fields := strings.Fields(line)
		if len(fields) != 3 {
			return nil, b.errHere("3 cell vector components", fmt.Sprintf("%d fields", len(fields)))
		}
		for j, tok := range fields {
			v, err := b.floatField(tok, "cell vector component")
			if err != nil {
				return nil, err
			}
			cell.Set(i, j, v)
		}
	}
	return cell, nil
}

func readKPointLine(b *bandsScanner) (KPoint, error) {
	var kp KPoint
	fields, err := b.keyword(kwKPoint)
	if err != nil {
		return kp, err
	}
	if len(fields) != 5 {
		return kp, b.errHere("k-point index, 3 coordinates and a weight", fmt.Sprintf("%d fields", len(fields)))
	}
	if kp.Index, err = b.intField(fields[0], "k-point index"); err != nil {
		return kp, err
	}
	for i := 0; i < 3; i++ {
		if kp.Coords[i], err = b.floatField(fields[1+i], "k-point coordinate"); err != nil {
			return kp, err
		}
	}
	if kp.Weight, err = b.floatField(fields[4], "k-point weight"); err != nil {
		return kp, err
	}
	return kp, nil
}

//readSpinBlock consumes a "Spin component N" line plus exactly nbands
//eigenvalue lines, converting to eV into dst.
func readSpinBlock(b *bandsScanner, slot int, dst []float64, nbands int) error {
	fields, err := b.keyword(kwSpinComp)
	if err != nil {
		return err
	}
	if len(fields) != 1 {
		return b.errHere("spin component index", fmt.Sprintf("%d fields", len(fields)))
	}
	idx, err := b.intField(fields[0], "spin component index")
	if err != nil {
		return err
	}
	if idx != slot+1 {
		return b.errHere(fmt.Sprintf("spin component %d", slot+1), fields[0])
	}
	for i := 0; i < nbands; i++ {
		line, err := b.next(fmt.Sprintf("eigenvalue %d of %d", i+1, nbands))
		if err != nil {
			return err
		}
		fields := strings.Fields(line)
		if len(fields) != 1 {
			return b.errHere("one eigenvalue", strconv.Quote(line))
		}
		v, err := b.floatField(fields[0], "eigenvalue")
		if err != nil {
			return err
		}
		dst[i] = v * Hartree2EV
	}
	return nil
}

//errDecorate asserts that err implements Error and decorates it with the
//caller's name. Must only be used with this library's own error types.
func errDecorate(err error, caller string) {
	if e, ok := err.(Error); ok {
		e.Decorate(caller)
	}
}
