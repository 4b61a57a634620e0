/*
 * main.go, part of gocastep.
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

//gocastep computes broadened total and projected densities of states from
//CASTEP .bands and .pdos_weights files and writes them as CSV.
//
//	gocastep -bands si.bands                          #total DOS on stdout
//	gocastep -bands si.bands -weights si.pdos_weights #PDOS by species and channel
//	gocastep -bands si.bands -weights si.pdos_bin -config analysis.toml -o dos.csv
//
//The optional TOML config controls the grid, the smearing, species names and
//the projector selection; every key has a usable default.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	castep "github.com/TonyWu20/gocastep"
	"github.com/TonyWu20/gocastep/dos"
	"github.com/spf13/viper"
)

func main() {
	bandsPath := flag.String("bands", "", "CASTEP .bands file (required)")
	weightsPath := flag.String("weights", "", ".pdos_weights or .pdos_bin file; omit for the total DOS")
	confPath := flag.String("config", "", "TOML analysis configuration")
	outPath := flag.String("o", "", "output CSV file (default stdout)")
	flag.Parse()
	if *bandsPath == "" {
		flag.Usage()
		os.Exit(2)
	}
	if err := run(*bandsPath, *weightsPath, *confPath, *outPath); err != nil {
		fmt.Fprintln(os.Stderr, "gocastep:", err)
		os.Exit(1)
	}
}

func run(bandsPath, weightsPath, confPath, outPath string) error {
	v := viper.New()
	v.SetDefault("grid.step", 0.01)
	v.SetDefault("grid.padding", 5.0)
	v.SetDefault("grid.zero_at_fermi", true)
	v.SetDefault("smearing.kernel", "gaussian")
	v.SetDefault("smearing.width", 0.05)
	v.SetDefault("smearing.cutoff", 0.0)
	v.SetDefault("projection.group_by", "species_channel")
	if confPath != "" {
		v.SetConfigFile(confPath)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading %s: %w", confPath, err)
		}
	}

	bf, err := os.Open(bandsPath)
	if err != nil {
		return err
	}
	defer bf.Close()
	B, err := castep.ReadBands(bf)
	if err != nil {
		return fmt.Errorf("%s: %w", bandsPath, err)
	}

	opt, err := options(v, B)
	if err != nil {
		return err
	}

	var specs []*dos.Spectrum
	if weightsPath == "" {
		total, err := dos.Total(B, opt)
		if err != nil {
			return err
		}
		specs = []*dos.Spectrum{total}
	} else {
		wf, err := os.Open(weightsPath)
		if err != nil {
			return err
		}
		defer wf.Close()
		W, err := castep.ReadWeights(wf)
		if err != nil {
			return fmt.Errorf("%s: %w", weightsPath, err)
		}
		group, err := grouper(v)
		if err != nil {
			return err
		}
		specs, err = dos.Projected(B, W, group, opt)
		if err != nil {
			return err
		}
	}

	out := io.Writer(os.Stdout)
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	return writeCSV(out, specs)
}

//options assembles the engine options from the config, defaulting the grid
//bounds to the eigenvalue range padded by grid.padding eV.
func options(v *viper.Viper, B *castep.BandStructure) (dos.Options, error) {
	var opt dos.Options
	switch kernel := v.GetString("smearing.kernel"); kernel {
	case "gaussian":
		opt.Kernel = dos.Gaussian
	case "lorentzian":
		opt.Kernel = dos.Lorentzian
	default:
		return opt, fmt.Errorf("unknown smearing.kernel %q, want gaussian or lorentzian", kernel)
	}
	opt.Width = v.GetFloat64("smearing.width")
	opt.Cutoff = v.GetFloat64("smearing.cutoff")
	opt.EStep = v.GetFloat64("grid.step")
	opt.ZeroAtFermi = v.GetBool("grid.zero_at_fermi")
	opt.SpinDegeneracy = v.GetInt("spin_degeneracy")
	opt.Workers = v.GetInt("workers")

	min, max := B.EnergyRange()
	if opt.ZeroAtFermi {
		//for a polarized calculation the two channels shift differently,
		//the grid has to cover both shifted ranges
		smin, smax := math.Inf(1), math.Inf(-1)
		for _, s := range B.Spins() {
			ef, err := B.FermiEnergy(s)
			if err != nil {
				return opt, err
			}
			smin = math.Min(smin, min-ef)
			smax = math.Max(smax, max-ef)
		}
		min, max = smin, smax
	}
	pad := v.GetFloat64("grid.padding")
	opt.EMin, opt.EMax = min-pad, max+pad
	if v.IsSet("grid.min") {
		opt.EMin = v.GetFloat64("grid.min")
	}
	if v.IsSet("grid.max") {
		opt.EMax = v.GetFloat64("grid.max")
	}
	return opt, nil
}

//grouper builds the projector from the config: projection.group_by picks the
//decomposition, projection.species and projection.sites narrow it to part of
//the system, and the species table maps species ranks to symbols.
func grouper(v *viper.Viper) (dos.Grouper, error) {
	names := make(map[int]string)
	for key, name := range v.GetStringMapString("species") {
		id, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("species table key %q is not a species rank", key)
		}
		names[id] = name
	}
	var g dos.Grouper
	switch by := v.GetString("projection.group_by"); by {
	case "channel":
		g = dos.ByChannel
	case "species":
		g = dos.BySpecies(names)
	case "species_channel":
		g = dos.BySpeciesChannel(names)
	default:
		return nil, fmt.Errorf("unknown projection.group_by %q, want channel, species or species_channel", by)
	}
	if v.IsSet("projection.species") {
		g = dos.Restrict(g, v.GetInt("projection.species"), v.GetIntSlice("projection.sites")...)
	}
	return g, nil
}

//writeCSV emits the shared energy grid as the first column and one intensity
//column per spectrum.
func writeCSV(out io.Writer, specs []*dos.Spectrum) error {
	w := csv.NewWriter(out)
	header := make([]string, 0, len(specs)+1)
	header = append(header, "energy_eV")
	for _, s := range specs {
		header = append(header, s.Label)
	}
	if err := w.Write(header); err != nil {
		return err
	}
	row := make([]string, len(header))
	for i, e := range specs[0].Energies {
		row[0] = strconv.FormatFloat(e, 'g', 10, 64)
		for j, s := range specs {
			row[j+1] = strconv.FormatFloat(s.Intensities[i], 'g', 10, 64)
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
