/*
 * bands_write.go, part of gocastep.
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
)

//WriteBands encodes a BandStructure back into the .bands text layout,
//converting energies from the model's eV back to the Hartree the format
//uses. Reading the result back yields a model equal to the original within
//floating point formatting precision.
func WriteBands(w io.Writer, B *BandStructure) error {
	bw := bufio.NewWriter(w)
	nk := B.NKPoints()
	fmt.Fprintf(bw, "%s %d\n", kwKPoints, nk)
	fmt.Fprintf(bw, "%s %d\n", kwSpins, B.nspins)
	fmt.Fprintf(bw, "%s", kwElectrons)
	for _, e := range B.electrons {
		fmt.Fprintf(bw, " %.6f", e)
	}
	fmt.Fprintln(bw)
	fmt.Fprintf(bw, "%s", kwEigenvalues)
	for range B.electrons {
		fmt.Fprintf(bw, " %d", B.nbands)
	}
	fmt.Fprintln(bw)
	if B.nspins == 1 {
		fmt.Fprintf(bw, "%s %.12f\n", kwFermi, B.fermi[0]/Hartree2EV)
	} else {
		fmt.Fprintf(bw, "%s %.12f %.12f\n", kwFermis, B.fermi[0]/Hartree2EV, B.fermi[1]/Hartree2EV)
	}
	fmt.Fprintln(bw, kwCell)
	for i := 0; i < 3; i++ {
		fmt.Fprintf(bw, " %14.9f %14.9f %14.9f\n", B.cell.At(i, 0), B.cell.At(i, 1), B.cell.At(i, 2))
	}
	for i, kp := range B.kpoints {
		fmt.Fprintf(bw, "%s %d %12.8f %12.8f %12.8f %14.10f\n", kwKPoint, kp.Index,
			kp.Coords[0], kp.Coords[1], kp.Coords[2], kp.Weight)
		for slot := 0; slot < B.nspins; slot++ {
			fmt.Fprintf(bw, "%s %d\n", kwSpinComp, slot+1)
			off := B.eigOffset(slot, i)
			for _, e := range B.eigen[off : off+B.nbands] {
				fmt.Fprintf(bw, "   %.14f\n", e/Hartree2EV)
			}
		}
	}
	return bw.Flush()
}
