package dos

import "math"

//Kernel selects the broadening line shape.
type Kernel int

const (
	Gaussian Kernel = iota
	Lorentzian
)

func (k Kernel) String() string {
	switch k {
	case Gaussian:
		return "gaussian"
	case Lorentzian:
		return "lorentzian"
	}
	return "invalid"
}

//evaluator returns the normalized kernel as a function of the energy
//distance to the eigenvalue. Both shapes integrate to 1 over the real line,
//which is what makes the DOS integral reproduce the state count.
//width is the Gaussian sigma or the Lorentzian gamma, and must be positive
//(checked by Options before this is ever called).
func (k Kernel) evaluator(width float64) func(delta float64) float64 {
	switch k {
	case Lorentzian:
		gOverPi := width / math.Pi
		g2 := width * width
		return func(delta float64) float64 {
			return gOverPi / (delta*delta + g2)
		}
	default:
		norm := 1 / (width * math.Sqrt(2*math.Pi))
		inv2s2 := 1 / (2 * width * width)
		return func(delta float64) float64 {
			return norm * math.Exp(-delta*delta*inv2s2)
		}
	}
}
