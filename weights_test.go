package castep

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"
)

//recBuilder assembles a synthetic Fortran unformatted stream, each record
//bracketed by big-endian length markers, mirroring what CASTEP writes.
type recBuilder struct {
	buf bytes.Buffer
}

func (rb *recBuilder) record(payload []byte) {
	var marker [4]byte
	binary.BigEndian.PutUint32(marker[:], uint32(len(payload)))
	rb.buf.Write(marker[:])
	rb.buf.Write(payload)
	rb.buf.Write(marker[:])
}

func (rb *recBuilder) u32(v uint32) {
	var p [4]byte
	binary.BigEndian.PutUint32(p[:], v)
	rb.record(p[:])
}

func (rb *recBuilder) u32vec(vs ...uint32) {
	p := make([]byte, 4*len(vs))
	for i, v := range vs {
		binary.BigEndian.PutUint32(p[4*i:], v)
	}
	rb.record(p)
}

func (rb *recBuilder) f64vec(vs ...float64) {
	p := make([]byte, 8*len(vs))
	for i, v := range vs {
		binary.BigEndian.PutUint64(p[8*i:], math.Float64bits(v))
	}
	rb.record(p)
}

func (rb *recBuilder) kpoint(idx uint32, x, y, z float64) {
	p := make([]byte, 28)
	binary.BigEndian.PutUint32(p, idx)
	for i, v := range []float64{x, y, z} {
		binary.BigEndian.PutUint64(p[4+8*i:], math.Float64bits(v))
	}
	rb.record(p)
}

//sampleWeights builds a 2 k-point, 1 spin, 2 band stream over a 3-orbital
//catalogue: species 1 with s and p on ion 1, species 2 with s on ion 1.
func sampleWeights() *recBuilder {
	rb := new(recBuilder)
	rb.u32(2) //k-points
	rb.u32(1) //spins
	rb.u32(3) //orbitals
	rb.u32(2) //max bands
	rb.u32vec(1, 1, 2)
	rb.u32vec(1, 1, 1)
	rb.u32vec(0, 1, 0)
	for k := uint32(1); k <= 2; k++ {
		rb.kpoint(k, 0.25*float64(k-1), 0, 0)
		rb.u32(1) //spin index
		rb.u32(2) //bands at this (k, spin)
		rb.f64vec(0.6, 0.3, 0.1)
		rb.f64vec(0.2, 0.5, 0.3)
	}
	return rb
}

func TestReadWeights(Te *testing.T) {
	W, err := ReadWeights(&sampleWeights().buf)
	if err != nil {
		Te.Fatal(err)
	}
	if W.NSpins() != 1 || W.NKPoints() != 2 || W.NBands() != 2 || W.NOrbitals() != 3 {
		Te.Fatalf("wrong shape: %d spins %d kpoints %d bands %d orbitals",
			W.NSpins(), W.NKPoints(), W.NBands(), W.NOrbitals())
	}
	orbs := W.Orbitals()
	if orbs[1] != (Orbital{SpeciesID: 1, IonID: 1, Channel: P}) {
		Te.Errorf("catalogue position 1: %+v", orbs[1])
	}
	if orbs[2].SpeciesID != 2 || orbs[2].Channel != S {
		Te.Errorf("catalogue position 2: %+v", orbs[2])
	}
	w, err := W.Weight(SpinNone, 1, 1, 2)
	if err != nil {
		Te.Fatal(err)
	}
	if w != 0.3 {
		Te.Errorf("weight (k2, band 2, orbital 3) = %v, want 0.3", w)
	}
	bw, err := W.BandWeights(SpinNone, 0, 0)
	if err != nil {
		Te.Fatal(err)
	}
	if bw[0] != 0.6 || bw[1] != 0.3 || bw[2] != 0.1 {
		Te.Errorf("band weights %v", bw)
	}
	kp := W.KPoints()[1]
	if kp.Index != 2 || kp.Coords[0] != 0.25 {
		Te.Errorf("bad k-point 2: %+v", kp)
	}
	//no SpinUp channel in an unpolarized file
	if _, err := W.Weight(SpinUp, 0, 0, 0); err == nil {
		Te.Error("expected an error accessing SpinUp in an unpolarized model")
	}
}

func TestReadWeightsBinPreamble(Te *testing.T) {
	//.pdos_bin prepends a version record and a banner; the rest is identical
	pre := new(recBuilder)
	pre.f64vec(1.0)
	pre.record([]byte("CASTEP output banner of arbitrary length"))
	pre.buf.Write(sampleWeights().buf.Bytes())
	W, err := ReadWeights(&pre.buf)
	if err != nil {
		Te.Fatal(err)
	}
	if W.NKPoints() != 2 || W.NOrbitals() != 3 {
		Te.Errorf("wrong shape after the preamble: %d kpoints %d orbitals", W.NKPoints(), W.NOrbitals())
	}
}

func TestReadWeightsTruncated(Te *testing.T) {
	full := sampleWeights().buf.Bytes()
	//cut inside the last weight record
	_, err := ReadWeights(bytes.NewReader(full[:len(full)-10]))
	if err == nil {
		Te.Fatal("expected a DecodeError for the truncated stream")
	}
	derr, ok := err.(*DecodeError)
	if !ok {
		Te.Fatalf("expected *DecodeError, got %T: %v", err, err)
	}
	if derr.Offset == 0 {
		Te.Errorf("truncation not located: %+v", derr)
	}
}

func TestReadWeightsTrailingBytes(Te *testing.T) {
	rb := sampleWeights()
	rb.u32(99)
	_, err := ReadWeights(&rb.buf)
	if err == nil {
		Te.Fatal("expected a DecodeError for the trailing record")
	}
	if _, ok := err.(*DecodeError); !ok {
		Te.Fatalf("expected *DecodeError, got %T: %v", err, err)
	}
}

func TestReadWeightsBadMarker(Te *testing.T) {
	full := sampleWeights().buf.Bytes()
	mangled := append([]byte(nil), full...)
	//corrupt the closing marker of the first record
	mangled[8]++
	_, err := ReadWeights(bytes.NewReader(mangled))
	if err == nil {
		Te.Fatal("expected a DecodeError for the marker mismatch")
	}
	if _, ok := err.(*DecodeError); !ok {
		Te.Fatalf("expected *DecodeError, got %T: %v", err, err)
	}
}

func TestReadWeightsSumExceedsUnity(Te *testing.T) {
	rb := new(recBuilder)
	rb.u32(1)
	rb.u32(1)
	rb.u32(2)
	rb.u32(1)
	rb.u32vec(1, 1)
	rb.u32vec(1, 1)
	rb.u32vec(0, 1)
	rb.kpoint(1, 0, 0, 0)
	rb.u32(1)
	rb.u32(1)
	rb.f64vec(0.7, 0.5) //sums to 1.2
	_, err := ReadWeights(&rb.buf)
	if err == nil {
		Te.Fatal("expected a ValidationError for the weight sum")
	}
	verr, ok := err.(*ValidationError)
	if !ok {
		Te.Fatalf("expected *ValidationError, got %T: %v", err, err)
	}
	if verr.Kind != WeightSumExceedsUnity {
		Te.Errorf("violation kind %v, want %v", verr.Kind, WeightSumExceedsUnity)
	}
	if verr.KPoint != 1 || verr.Band != 1 {
		Te.Errorf("violation not located: %+v", verr)
	}
}

func TestReadWeightsDuplicateOrbital(Te *testing.T) {
	//two s orbitals on the same ion: l=0 admits a single m state
	rb := new(recBuilder)
	rb.u32(1)
	rb.u32(1)
	rb.u32(2)
	rb.u32(1)
	rb.u32vec(1, 1)
	rb.u32vec(1, 1)
	rb.u32vec(0, 0)
	rb.kpoint(1, 0, 0, 0)
	rb.u32(1)
	rb.u32(1)
	rb.f64vec(0.4, 0.4)
	_, err := ReadWeights(&rb.buf)
	if err == nil {
		Te.Fatal("expected a ValidationError for the duplicated orbital")
	}
	verr, ok := err.(*ValidationError)
	if !ok {
		Te.Fatalf("expected *ValidationError, got %T: %v", err, err)
	}
	if verr.Kind != DuplicateOrbital {
		Te.Errorf("violation kind %v, want %v", verr.Kind, DuplicateOrbital)
	}
}

func TestReadWeightsBandCountInconsistent(Te *testing.T) {
	rb := new(recBuilder)
	rb.u32(2)
	rb.u32(1)
	rb.u32(1)
	rb.u32(2)
	rb.u32vec(1)
	rb.u32vec(1)
	rb.u32vec(0)
	rb.kpoint(1, 0, 0, 0)
	rb.u32(1)
	rb.u32(2)
	rb.f64vec(0.5)
	rb.f64vec(0.5)
	rb.kpoint(2, 0.5, 0, 0)
	rb.u32(1)
	rb.u32(1) //one band here, two at the first k-point
	rb.f64vec(0.5)
	_, err := ReadWeights(&rb.buf)
	if err == nil {
		Te.Fatal("expected a ValidationError for the varying band count")
	}
	verr, ok := err.(*ValidationError)
	if !ok {
		Te.Fatalf("expected *ValidationError, got %T: %v", err, err)
	}
	if verr.Kind != BandCountInconsistent {
		Te.Errorf("violation kind %v, want %v", verr.Kind, BandCountInconsistent)
	}
}

func TestConsistentWith(Te *testing.T) {
	W, err := ReadWeights(&sampleWeights().buf)
	if err != nil {
		Te.Fatal(err)
	}
	okBands := `Number of k-points 2
Number of spin components 1
Number of electrons 4.00
Number of eigenvalues 2
Fermi energy (in atomic units) 0.100000000000
Unit cell vectors
   1.0 0.0 0.0
   0.0 1.0 0.0
   0.0 0.0 1.0
K-point 1 0.0 0.0 0.0 0.5
Spin component 1
 -0.1
  0.1
K-point 2 0.25 0.0 0.0 0.5
Spin component 1
 -0.1
  0.1
`
	B, err := ReadBands(bytes.NewReader([]byte(okBands)))
	if err != nil {
		Te.Fatal(err)
	}
	if err := W.ConsistentWith(B); err != nil {
		Te.Errorf("matching models reported inconsistent: %v", err)
	}
	//same file with three eigenvalues per k-point
	badBands := bytes.ReplaceAll([]byte(okBands), []byte("Number of eigenvalues 2"), []byte("Number of eigenvalues 3"))
	badBands = bytes.ReplaceAll(badBands, []byte("Spin component 1\n -0.1\n  0.1\n"), []byte("Spin component 1\n -0.1\n  0.1\n  0.2\n"))
	B3, err := ReadBands(bytes.NewReader(badBands))
	if err != nil {
		Te.Fatal(err)
	}
	err = W.ConsistentWith(B3)
	if err == nil {
		Te.Fatal("expected a ConsistencyError for the band count mismatch")
	}
	cerr, ok := err.(*ConsistencyError)
	if !ok {
		Te.Fatalf("expected *ConsistencyError, got %T: %v", err, err)
	}
	if cerr.Kind != BandCountMismatch || cerr.Bands != 3 || cerr.Weights != 2 {
		Te.Errorf("mismatch misreported: %+v", cerr)
	}
}
