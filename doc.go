/*
 * doc.go, part of gocastep.
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

/*Package castep decodes output files of the CASTEP plane-wave DFT code and provides
the in-memory models needed to derive physical spectra from them.



	**goCastep capabilities**


    Reads .bands files (band structure: k-points, eigenvalues, Fermi energies,
	electron counts and unit cell vectors). Eigenvalues are converted from
	Hartree to eV during decoding, so no format-specific units leak out of
	the readers.

    Writes .bands files back, so a decoded model can be round-tripped.

    Reads .pdos_weights and .pdos_bin files (orbital-projected weights per
	spin, k-point, band and orbital, plus the orbital catalogue).

    Transparently decompresses gzip and zstd compressed input streams.

    Validates the physical invariants of both models (k-point weight
	normalization, uniform band counts, projection weights bounded by unity)
	and the cross-model consistency required to combine them.

The subpackage dos turns these models into total and orbital-projected density
of states curves via Gaussian or Lorentzian broadening.

All readers take an io.Reader. Opening files, command line handling and output
formatting belong to the caller; see cmd/gocastep for a reference consumer.

Decoding is strict. The CASTEP formats are fixed and positional, so any
deviation from the expected layout aborts the parse with a DecodeError carrying
the line or byte offset where it happened. Nothing is skipped or guessed.*/
package castep
