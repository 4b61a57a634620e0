package castep

import (
	"bytes"
	"compress/gzip"
	"math"
	"strings"
	"testing"
)

//a small unpolarized .bands file: 2 k-points, 3 bands, energies in Hartree.
const sampleBands = `Number of k-points 2
Number of spin components 1
Number of electrons 4.00
Number of eigenvalues 3
Fermi energy (in atomic units) 0.150000000000
Unit cell vectors
   5.430000000    0.000000000    0.000000000
   0.000000000    5.430000000    0.000000000
   0.000000000    0.000000000    5.430000000
K-point 1   0.00000000   0.00000000   0.00000000   0.5000000000
Spin component 1
   -0.20000000000000
    0.10000000000000
    0.30000000000000
K-point 2   0.50000000   0.00000000   0.00000000   0.5000000000
Spin component 1
   -0.18000000000000
    0.12000000000000
    0.28000000000000
`

const samplePolarizedBands = `Number of k-points 1
Number of spin components 2
Number of electrons 3.00 2.00
Number of eigenvalues 2 2
Fermi energies (in atomic units) 0.100000000000 0.090000000000
Unit cell vectors
   3.000000000    0.000000000    0.000000000
   0.000000000    3.000000000    0.000000000
   0.000000000    0.000000000    3.000000000
K-point 1   0.00000000   0.00000000   0.00000000   1.0000000000
Spin component 1
   -0.10000000000000
    0.20000000000000
Spin component 2
   -0.08000000000000
    0.22000000000000
`

func TestReadBands(Te *testing.T) {
	B, err := ReadBands(strings.NewReader(sampleBands))
	if err != nil {
		Te.Fatal(err)
	}
	if B.NSpins() != 1 || B.NKPoints() != 2 || B.NBands() != 3 {
		Te.Errorf("wrong shape: %d spins %d kpoints %d bands", B.NSpins(), B.NKPoints(), B.NBands())
	}
	ef, err := B.FermiEnergy(SpinNone)
	if err != nil {
		Te.Fatal(err)
	}
	if want := 0.15 * Hartree2EV; math.Abs(ef-want) > 1e-10 {
		Te.Errorf("Fermi energy %v, want %v", ef, want)
	}
	el, err := B.Electrons(SpinNone)
	if err != nil {
		Te.Fatal(err)
	}
	if el != 4.0 {
		Te.Errorf("electron count %v, want 4", el)
	}
	eig, err := B.BandsAt(1, SpinNone)
	if err != nil {
		Te.Fatal(err)
	}
	if want := 0.12 * Hartree2EV; math.Abs(eig[1]-want) > 1e-10 {
		Te.Errorf("eigenvalue %v, want %v eV", eig[1], want)
	}
	kps := B.KPoints()
	if kps[1].Index != 2 || kps[1].Coords[0] != 0.5 || kps[1].Weight != 0.5 {
		Te.Errorf("bad k-point 2: %+v", kps[1])
	}
	if v := B.LatticeVectors().At(2, 2); v != 5.43 {
		Te.Errorf("cell component %v, want 5.43", v)
	}
	min, max := B.EnergyRange()
	if math.Abs(min-(-0.2*Hartree2EV)) > 1e-10 || math.Abs(max-0.3*Hartree2EV) > 1e-10 {
		Te.Errorf("energy range [%v, %v]", min, max)
	}
}

func TestReadBandsPolarized(Te *testing.T) {
	B, err := ReadBands(strings.NewReader(samplePolarizedBands))
	if err != nil {
		Te.Fatal(err)
	}
	if B.NSpins() != 2 || B.NBands() != 2 {
		Te.Fatalf("wrong shape: %d spins %d bands", B.NSpins(), B.NBands())
	}
	down, err := B.BandsAt(0, SpinDown)
	if err != nil {
		Te.Fatal(err)
	}
	if want := -0.08 * Hartree2EV; math.Abs(down[0]-want) > 1e-10 {
		Te.Errorf("spin-down eigenvalue %v, want %v", down[0], want)
	}
	//SpinNone does not exist in a polarized calculation
	if _, err := B.BandsAt(0, SpinNone); err == nil {
		Te.Error("expected an error accessing SpinNone in a polarized model")
	}
}

func TestBandsRoundTrip(Te *testing.T) {
	B, err := ReadBands(strings.NewReader(samplePolarizedBands))
	if err != nil {
		Te.Fatal(err)
	}
	var buf bytes.Buffer
	if err := WriteBands(&buf, B); err != nil {
		Te.Fatal(err)
	}
	B2, err := ReadBands(&buf)
	if err != nil {
		Te.Fatalf("re-reading the written file: %v", err)
	}
	if B2.NSpins() != B.NSpins() || B2.NKPoints() != B.NKPoints() || B2.NBands() != B.NBands() {
		Te.Fatal("shape changed across the round trip")
	}
	for _, s := range B.Spins() {
		f1, _ := B.FermiEnergy(s)
		f2, _ := B2.FermiEnergy(s)
		if math.Abs(f1-f2) > 1e-8 {
			Te.Errorf("Fermi energy for %v changed: %v vs %v", s, f1, f2)
		}
		for k := 0; k < B.NKPoints(); k++ {
			e1, _ := B.BandsAt(k, s)
			e2, _ := B2.BandsAt(k, s)
			for b := range e1 {
				if math.Abs(e1[b]-e2[b]) > 1e-8 {
					Te.Errorf("eigenvalue (%v, %d, %d) changed: %v vs %v", s, k, b, e1[b], e2[b])
				}
			}
		}
	}
	for i, kp := range B.KPoints() {
		kp2 := B2.KPoints()[i]
		if kp.Index != kp2.Index || math.Abs(kp.Weight-kp2.Weight) > 1e-8 {
			Te.Errorf("k-point %d changed: %+v vs %+v", i, kp, kp2)
		}
	}
}

func TestReadBandsTruncated(Te *testing.T) {
	//declares 2 k-points but carries only the first block
	idx := strings.Index(sampleBands, "K-point 2")
	_, err := ReadBands(strings.NewReader(sampleBands[:idx]))
	if err == nil {
		Te.Fatal("expected a DecodeError for the missing k-point block")
	}
	derr, ok := err.(*DecodeError)
	if !ok {
		Te.Fatalf("expected *DecodeError, got %T: %v", err, err)
	}
	if derr.Line == 0 || derr.Found != "end of input" {
		Te.Errorf("truncation not located: %+v", derr)
	}
}

func TestReadBandsShortEigenvalueBlock(Te *testing.T) {
	//drop one eigenvalue line from the first block; the reader must not
	//absorb the next k-point line as an eigenvalue
	mangled := strings.Replace(sampleBands, "    0.30000000000000\n", "", 1)
	_, err := ReadBands(strings.NewReader(mangled))
	if err == nil {
		Te.Fatal("expected a DecodeError for the short eigenvalue block")
	}
	if _, ok := err.(*DecodeError); !ok {
		Te.Fatalf("expected *DecodeError, got %T: %v", err, err)
	}
}

func TestReadBandsExcessData(Te *testing.T) {
	_, err := ReadBands(strings.NewReader(sampleBands + "K-point 3   0.1 0.1 0.1  0.0\n"))
	if err == nil {
		Te.Fatal("expected a DecodeError for data past the declared last block")
	}
	derr, ok := err.(*DecodeError)
	if !ok {
		Te.Fatalf("expected *DecodeError, got %T: %v", err, err)
	}
	if !strings.Contains(derr.Expected, "end of input") {
		Te.Errorf("unexpected error: %v", derr)
	}
}

func TestReadBandsBadKeyword(Te *testing.T) {
	mangled := strings.Replace(sampleBands, "Number of spin components", "Number of spins", 1)
	_, err := ReadBands(strings.NewReader(mangled))
	if err == nil {
		Te.Fatal("expected a DecodeError for the wrong header keyword")
	}
	derr, ok := err.(*DecodeError)
	if !ok {
		Te.Fatalf("expected *DecodeError, got %T: %v", err, err)
	}
	if derr.Line != 2 {
		Te.Errorf("error located at line %d, want 2", derr.Line)
	}
}

func TestReadBandsBadNumber(Te *testing.T) {
	mangled := strings.Replace(sampleBands, "0.10000000000000", "0.1x000", 1)
	_, err := ReadBands(strings.NewReader(mangled))
	if err == nil {
		Te.Fatal("expected a DecodeError for the malformed eigenvalue")
	}
	derr, ok := err.(*DecodeError)
	if !ok {
		Te.Fatalf("expected *DecodeError, got %T: %v", err, err)
	}
	if !strings.Contains(derr.Found, "0.1x000") {
		Te.Errorf("offending token not reported: %v", derr)
	}
}

func TestReadBandsGzip(Te *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(sampleBands)); err != nil {
		Te.Fatal(err)
	}
	zw.Close()
	B, err := ReadBands(&buf)
	if err != nil {
		Te.Fatal(err)
	}
	if B.NKPoints() != 2 {
		Te.Errorf("%d k-points from the gzipped stream, want 2", B.NKPoints())
	}
}

func TestSortedBandsAt(Te *testing.T) {
	//eigenvalues deliberately out of order; BandsAt must preserve the file
	//order, SortedBandsAt must not
	shuffled := strings.Replace(sampleBands,
		"   -0.20000000000000\n    0.10000000000000\n    0.30000000000000",
		"    0.30000000000000\n   -0.20000000000000\n    0.10000000000000", 1)
	B, err := ReadBands(strings.NewReader(shuffled))
	if err != nil {
		Te.Fatal(err)
	}
	raw, err := B.BandsAt(0, SpinNone)
	if err != nil {
		Te.Fatal(err)
	}
	if want := 0.3 * Hartree2EV; math.Abs(raw[0]-want) > 1e-10 {
		Te.Errorf("file order not preserved: first eigenvalue %v, want %v", raw[0], want)
	}
	sorted, err := B.SortedBandsAt(0, SpinNone)
	if err != nil {
		Te.Fatal(err)
	}
	if want := -0.2 * Hartree2EV; math.Abs(sorted[0]-want) > 1e-10 {
		Te.Errorf("sorted view wrong: first eigenvalue %v, want %v", sorted[0], want)
	}
	//the sorted view is a copy, the raw view must be untouched
	if math.Abs(raw[0]-0.3*Hartree2EV) > 1e-10 {
		Te.Error("SortedBandsAt modified the underlying storage")
	}
}

func TestBandsValidate(Te *testing.T) {
	//k-point weights that don't sum to one
	mangled := strings.Replace(sampleBands, "0.00000000   0.5000000000", "0.00000000   0.7000000000", 1)
	_, err := ReadBands(strings.NewReader(mangled))
	if err == nil {
		Te.Fatal("expected a ValidationError for the weight sum")
	}
	verr, ok := err.(*ValidationError)
	if !ok {
		Te.Fatalf("expected *ValidationError, got %T: %v", err, err)
	}
	if verr.Kind != KPointWeightSum {
		Te.Errorf("violation kind %v, want %v", verr.Kind, KPointWeightSum)
	}

	negative := strings.Replace(sampleBands, "0.00000000   0.5000000000", "0.00000000   -0.5000000000", 1)
	_, err = ReadBands(strings.NewReader(negative))
	if err == nil {
		Te.Fatal("expected a ValidationError for the negative weight")
	}
	verr, ok = err.(*ValidationError)
	if !ok {
		Te.Fatalf("expected *ValidationError, got %T: %v", err, err)
	}
	if verr.Kind != NegativeKPointWeight {
		Te.Errorf("violation kind %v, want %v", verr.Kind, NegativeKPointWeight)
	}
}
