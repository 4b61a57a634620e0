/*
 * errors.go, part of gocastep.
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

import "fmt"

//Error is the interface implemented by all errors returned from this library.
//The Decorate method allows callers to add information as the error travels up
//the stack without changing its type or wrapping it. If passed an empty
//string it just returns the current decoration slice.
type Error interface {
	error
	Decorate(string) []string
}

//DecodeError reports malformed, truncated or unexpected input in one of the
//CASTEP file formats. It always carries the location of the failure: the
//1-based line for the text format, the byte offset for the binary one.
//A DecodeError is never recovered from; the parse that produced it returns
//no model.
type DecodeError struct {
	Format   string //"bands", "pdos_weights"
	Line     int    //1-based line number, 0 for binary input
	Offset   int64  //byte offset, -1 for text input
	Expected string
	Found    string
	deco     []string
}

func (err *DecodeError) Error() string {
	where := fmt.Sprintf("byte %d", err.Offset)
	if err.Line > 0 {
		where = fmt.Sprintf("line %d", err.Line)
	}
	return fmt.Sprintf("goCastep: %s decode failed at %s: expected %s, found %s", err.Format, where, err.Expected, err.Found)
}

//Decorate adds new information to the error
func (err *DecodeError) Decorate(deco string) []string {
	if deco != "" {
		err.deco = append(err.deco, deco)
	}
	return err.deco
}

//ViolationKind is the machine-readable class of a broken invariant.
type ViolationKind string

const (
	WeightSumExceedsUnity ViolationKind = "WeightSumExceedsUnity"
	KPointWeightSum       ViolationKind = "KPointWeightSum"
	NegativeKPointWeight  ViolationKind = "NegativeKPointWeight"
	BandCountInconsistent ViolationKind = "BandCountInconsistent"
	DuplicateOrbital      ViolationKind = "DuplicateOrbital"
	KPointCountMismatch   ViolationKind = "KPointCountMismatch"
	BandCountMismatch     ViolationKind = "BandCountMismatch"
	SpinCountMismatch     ViolationKind = "SpinCountMismatch"
)

//ValidationError reports data that decoded cleanly but breaks a physical
//invariant of the model. The index fields are set to -1 when they do not
//apply to the violated invariant.
type ValidationError struct {
	Kind    ViolationKind
	Spin    Spin
	KPoint  int //1-based, as in the source file
	Band    int //1-based
	Orbital int //0-based position in the orbital catalogue
	Detail  string
	deco    []string
}

func (err *ValidationError) Error() string {
	return fmt.Sprintf("goCastep: invariant %s violated (spin %v kpoint %d band %d orbital %d): %s",
		err.Kind, err.Spin, err.KPoint, err.Band, err.Orbital, err.Detail)
}

//Decorate adds new information to the error
func (err *ValidationError) Decorate(deco string) []string {
	if deco != "" {
		err.deco = append(err.deco, deco)
	}
	return err.deco
}

//ConsistencyError reports that a BandStructure and a PDOSWeights decoded from
//supposedly matching calculations disagree on their index space, so they can
//not be combined into a projected DOS.
type ConsistencyError struct {
	Kind    ViolationKind //KPointCountMismatch, BandCountMismatch or SpinCountMismatch
	Bands   int           //the count on the BandStructure side
	Weights int           //the count on the PDOSWeights side
	deco    []string
}

func (err *ConsistencyError) Error() string {
	return fmt.Sprintf("goCastep: models disagree, %s: bands file has %d, weights file has %d",
		err.Kind, err.Bands, err.Weights)
}

//Decorate adds new information to the error
func (err *ConsistencyError) Decorate(deco string) []string {
	if deco != "" {
		err.deco = append(err.deco, deco)
	}
	return err.deco
}
