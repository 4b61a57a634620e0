/*Package dos derives density of states spectra from the models decoded by
the parent castep package.

Discrete eigenvalues are broadened into continuous curves on a caller-defined
uniform energy grid by a Gaussian or Lorentzian kernel, with each state
entering the sum weighted by its k-point integration weight and, for
projected DOS, by the summed projection weights of an orbital group.

Total computes the plain density of states from a BandStructure alone.
Projected combines it with a PDOSWeights and a Grouper, producing one named
spectrum per orbital group on the shared grid.

Accumulation runs in parallel over fixed-size k-point chunks. Partial sums
are reduced in ascending chunk order, so a given input and Options always
produce bit-identical spectra no matter how many goroutines run.

By default the kernel is evaluated at every grid point for every state, which
keeps the integral of the curve exact to floating point accumulation error.
Options.Cutoff trades that accuracy for speed by dropping contributions
beyond a fixed energy distance.*/
package dos
