package dos

import (
	"fmt"
	"math"
	"runtime"
	"sync"

	castep "github.com/TonyWu20/gocastep"
	"gonum.org/v1/gonum/floats"
)

//k-points are distributed to workers in fixed chunks of this size, and the
//partial spectra are reduced in ascending chunk order. The chunking is what
//keeps results identical across worker counts, so it must not depend on
//Options.Workers.
const kChunk = 8

//Options configures a DOS computation. EMin, EMax and EStep (all eV) define
//the uniform energy grid, Kernel and Width (eV) the broadening. The zero
//value of the numeric fields is invalid on purpose; there is no sensible
//universal default for a grid.
type Options struct {
	EMin, EMax float64
	EStep      float64
	Kernel     Kernel
	Width      float64
	//Cutoff, when positive, treats the kernel as zero beyond that energy
	//distance from the eigenvalue. It buys speed on fine grids at the cost
	//of the integral no longer being exact. Zero means dense evaluation.
	Cutoff float64
	//SpinDegeneracy is the occupation multiplier per state. Zero selects
	//the CASTEP convention: 2 for an unpolarized calculation (each band
	//holds both spins), 1 per channel for a polarized one. It is an
	//explicit knob so the convention is visible and overridable.
	SpinDegeneracy int
	//ZeroAtFermi shifts all energies so the Fermi level of each spin
	//channel sits at zero.
	ZeroAtFermi bool
	//Workers caps the accumulation goroutines. Zero means GOMAXPROCS.
	Workers int
}

//check rejects invalid parameters before any computation starts.
func (o Options) check() error {
	if o.EStep <= 0 {
		return confErrf("energy grid step must be positive, got %g", o.EStep)
	}
	if o.EMin >= o.EMax {
		return confErrf("energy grid needs min < max, got [%g, %g]", o.EMin, o.EMax)
	}
	if o.Width <= 0 {
		return confErrf("broadening width must be positive, got %g", o.Width)
	}
	if o.Cutoff < 0 {
		return confErrf("kernel cutoff must not be negative, got %g", o.Cutoff)
	}
	if o.SpinDegeneracy < 0 {
		return confErrf("spin degeneracy must not be negative, got %d", o.SpinDegeneracy)
	}
	return nil
}

//Grid materializes the energy grid: uniformly spaced samples from EMin
//towards EMax in steps of EStep, including EMax only when the span is a
//multiple of the step.
func (o Options) Grid() ([]float64, error) {
	if err := o.check(); err != nil {
		return nil, err
	}
	n := int(math.Floor((o.EMax-o.EMin)/o.EStep+1e-9)) + 1
	grid := make([]float64, n)
	if n == 1 {
		grid[0] = o.EMin
		return grid, nil
	}
	floats.Span(grid, o.EMin, o.EMin+o.EStep*float64(n-1))
	return grid, nil
}

//degeneracy resolves the SpinDegeneracy option against the model.
func (o Options) degeneracy(nspins int) float64 {
	if o.SpinDegeneracy > 0 {
		return float64(o.SpinDegeneracy)
	}
	if nspins == 1 {
		return 2
	}
	return 1
}

//Spectrum is one density of states curve: intensity (states per eV) sampled
//on the energy grid. Spectra from one Projected call share their Energies
//slice. A Spectrum is never mutated after being returned.
type Spectrum struct {
	Label       string
	Energies    []float64
	Intensities []float64
}

//Step returns the grid spacing.
func (S *Spectrum) Step() float64 {
	if len(S.Energies) < 2 {
		return 0
	}
	return S.Energies[1] - S.Energies[0]
}

//Integral returns the rectangle-rule integral of the curve, step times the
//intensity sum. For a total DOS on a grid covering the whole band range this
//approximates band count times spin degeneracy.
func (S *Spectrum) Integral() float64 {
	return S.Step() * floats.Sum(S.Intensities)
}

//Max returns the largest intensity, useful for axis scaling.
func (S *Spectrum) Max() float64 {
	return floats.Max(S.Intensities)
}

//Total computes the total density of states of a band structure. Every
//state contributes its k-point weight times the spin degeneracy, broadened
//by the configured kernel.
func Total(B *castep.BandStructure, opt Options) (*Spectrum, error) {
	specs, err := compute(B, nil, nil, opt)
	if err != nil {
		return nil, err
	}
	return specs[0], nil
}

//Projected computes the orbital-projected density of states, one spectrum
//per group produced by the Grouper, all on the shared grid. The index
//spaces of the two models are checked first; no partial result is ever
//produced from mismatched models. Groups that partition the whole catalogue
//sum back to the total DOS within floating point accumulation error.
func Projected(B *castep.BandStructure, W *castep.PDOSWeights, group Grouper, opt Options) ([]*Spectrum, error) {
	if W == nil {
		return nil, confErrf("Projected needs a PDOSWeights, use Total for the plain DOS")
	}
	if group == nil {
		return nil, confErrf("Projected needs a Grouper")
	}
	if err := W.ConsistentWith(B); err != nil {
		err.(castep.Error).Decorate("dos.Projected")
		return nil, err
	}
	return compute(B, W, group, opt)
}

func compute(B *castep.BandStructure, W *castep.PDOSWeights, group Grouper, opt Options) ([]*Spectrum, error) {
	if err := opt.check(); err != nil {
		return nil, err
	}
	grid, err := opt.Grid()
	if err != nil {
		return nil, err
	}

	labels := []string{"total"}
	var orbGroup []int
	if W != nil {
		labels, orbGroup = groupCatalogue(W.Orbitals(), group)
		if len(labels) == 0 {
			return nil, confErrf("the Grouper excluded every orbital of the catalogue")
		}
	}

	spins := B.Spins()
	shift := make([]float64, len(spins))
	if opt.ZeroAtFermi {
		for i, s := range spins {
			ef, err := B.FermiEnergy(s)
			if err != nil {
				return nil, err
			}
			shift[i] = ef
		}
	}

	kpoints := B.KPoints()
	nchunks := (len(kpoints) + kChunk - 1) / kChunk
	partials := make([][][]float64, nchunks)
	errs := make([]error, nchunks)

	workers := opt.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > nchunks {
		workers = nchunks
	}
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range jobs {
				partials[c], errs[c] = accumulateChunk(B, W, opt, grid, labels, orbGroup, spins, shift, kpoints, c)
			}
		}()
	}
	for c := 0; c < nchunks; c++ {
		jobs <- c
	}
	close(jobs)
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	//fixed-order reduction: ascending chunk index, so the float summation
	//order never depends on scheduling
	specs := make([]*Spectrum, len(labels))
	for g, label := range labels {
		total := make([]float64, len(grid))
		for c := 0; c < nchunks; c++ {
			floats.Add(total, partials[c][g])
		}
		specs[g] = &Spectrum{Label: label, Energies: grid, Intensities: total}
	}
	return specs, nil
}

//accumulateChunk sums the broadened contributions of k-points
//[c*kChunk, (c+1)*kChunk) into fresh per-group accumulators.
func accumulateChunk(B *castep.BandStructure, W *castep.PDOSWeights, opt Options,
	grid []float64, labels []string, orbGroup []int, spins []castep.Spin,
	shift []float64, kpoints []castep.KPoint, c int) ([][]float64, error) {

	acc := make([][]float64, len(labels))
	for g := range acc {
		acc[g] = make([]float64, len(grid))
	}
	eval := opt.Kernel.evaluator(opt.Width)
	deg := opt.degeneracy(len(spins))
	wsum := make([]float64, len(labels))

	lo, hi := c*kChunk, (c+1)*kChunk
	if hi > len(kpoints) {
		hi = len(kpoints)
	}
	for k := lo; k < hi; k++ {
		kw := kpoints[k].Weight
		for si, s := range spins {
			eigen, err := B.BandsAt(k, s)
			if err != nil {
				return nil, err
			}
			for b, e := range eigen {
				e -= shift[si]
				if W == nil {
					addBroadened(acc[0], grid, e, kw*deg, opt.Cutoff, eval)
					continue
				}
				bw, err := W.BandWeights(s, k, b)
				if err != nil {
					return nil, err
				}
				for g := range wsum {
					wsum[g] = 0
				}
				for orb, w := range bw {
					if g := orbGroup[orb]; g >= 0 {
						wsum[g] += w
					}
				}
				for g, w := range wsum {
					if w != 0 {
						addBroadened(acc[g], grid, e, kw*deg*w, opt.Cutoff, eval)
					}
				}
			}
		}
	}
	return acc, nil
}

//addBroadened adds factor*kernel(E-center) to the accumulator at every grid
//point, or only within the cutoff window when one is set.
func addBroadened(acc, grid []float64, center, factor, cutoff float64, eval func(float64) float64) {
	lo, hi := 0, len(grid)
	if cutoff > 0 && len(grid) > 1 {
		step := grid[1] - grid[0]
		if l := int(math.Ceil((center - cutoff - grid[0]) / step)); l > lo {
			lo = l
		}
		if h := int(math.Floor((center+cutoff-grid[0])/step)) + 1; h < hi {
			hi = h
		}
	}
	for i := lo; i < hi; i++ {
		acc[i] += factor * eval(grid[i]-center)
	}
}

//ConfigurationError reports invalid caller-supplied parameters. It is
//always detected before any accumulation work starts.
type ConfigurationError struct {
	msg  string
	deco []string
}

func confErrf(format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{msg: fmt.Sprintf(format, args...)}
}

func (err *ConfigurationError) Error() string {
	return "goCastep/dos: " + err.msg
}

//Decorate adds new information to the error
func (err *ConfigurationError) Decorate(deco string) []string {
	if deco != "" {
		err.deco = append(err.deco, deco)
	}
	return err.deco
}
