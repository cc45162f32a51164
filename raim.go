// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2025.10.13
//

// Receiver autonomous integrity monitoring (RAIM): residual test on the
// converged solution and single-fault exclusion by leave-one-out search.

package gopvt

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// residualTest checks the converged solution's pseudorange residuals against
// the RAIM threshold. The estimated clock bias has to be removed from the
// observed-minus-predicted values of the last iteration first; omp is
// adjusted in place. Returns the residual norm and whether it passes.
func (s *Solver) residualTest(omp []float64) (float64, bool) {
	for i := range omp {
		omp[i] -= s.rxState[3]
	}
	norm := floats.Norm(omp, 2)
	return norm, norm < s.opt.MaxRes
}

// repair searches for a single faulty measurement by solving every n-1
// subset and applying the residual test to it. Exactly one passing subset
// identifies the excluded satellite as the fault; the repaired solution is
// then recomputed and kept. Zero or multiple passing subsets means the fault
// cannot be localized, and no guess is made.
//
// Returns the excluded satellite and SolvedRepair on success, otherwise
// ErrRepairFailed. A non-converging subset aborts the whole search; finishing
// it would be too CPU intensive.
func (s *Solver) repair(meas []Meas, omp []float64, H *mat.Dense) (SatType, Status) {

	n := len(meas)
	oneLess := n - 1
	badSat := -1
	numPassing := 0

	subset := make([]*Meas, n)
	for i := range meas {
		subset[i] = &meas[i]
	}

	// Carefully ordered: permutes the measurements so that each one is
	// excluded from exactly one test. Swapping the candidate with the last
	// slot means the first pass (drop = oneLess) omits the last measurement.
	for drop := oneLess; drop >= 0; drop-- {
		subset[drop], subset[oneLess] = subset[oneLess], subset[drop]

		if !s.iterate(subset[:oneLess], omp[:oneLess], H) {
			return "", ErrRepairFailed
		}

		if res, ok := s.residualTest(omp[:oneLess]); ok {
			numPassing++
			badSat = drop
			PrintD(3, "\tRAIM: drop %s passes (res=%.1f)\n", meas[drop].Sat, res)
		}
	}

	if numPassing != 1 {
		PrintD(2, "\tRAIM: %d consistent subsets, cannot localize fault\n", numPassing)
		return "", ErrRepairFailed
	}

	// Repair is possible by omitting badSat. Recalculate that solution.
	for i := range meas {
		subset[i] = &meas[i]
	}
	subset[badSat] = subset[oneLess]
	if !s.iterate(subset[:oneLess], omp[:oneLess], H) {
		return "", ErrRepairFailed
	}

	PrintD(2, "\tRAIM: repaired by excluding %s\n", meas[badSat].Sat)
	return meas[badSat].Sat, SolvedRepair
}

// solveRaim computes the PVT solution, performs the RAIM check, and attempts
// a repair if needed.
//
// With RAIM disabled or exactly 4 measurements the residual test is skipped:
// a 4-dimensional system is exactly constrained, so it could not have
// detected an error anyway. A failed test with fewer than 6 measurements is
// unrepairable, because excluding one satellite leaves too few to test the
// subset.
//
// Returns the excluded satellite (empty if none) and the solve status.
// Results are stored in the receiver state and H.
func (s *Solver) solveRaim(meas []Meas, H *mat.Dense) (SatType, Status) {

	n := len(meas)
	omp := make([]float64, n)
	ptrs := make([]*Meas, n)
	for i := range meas {
		ptrs[i] = &meas[i]
	}

	if !s.iterate(ptrs, omp, H) {
		// Iteration didn't converge. Don't attempt to repair; too CPU intensive.
		return "", ErrNoConverge
	}

	if s.opt.NoRaim || n == 4 {
		// The residual test couldn't have detected an error
		return "", SolvedRaimOff
	}

	var pass bool
	s.residual, pass = s.residualTest(omp)
	PrintD(2, "\tRAIM: residual=%.1f (threshold %.0f)\n", s.residual, s.opt.MaxRes)
	if pass {
		return "", SolvedRaim
	}

	if n < 6 {
		// Not enough measurements to repair. 6 are needed because a
		// 4-dimensional system is exactly constrained, so the bad
		// measurement can't be detected in a 5-measurement subset either.
		return "", ErrNoRepair
	}

	return s.repair(meas, omp, H)
}
