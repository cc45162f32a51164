// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2025.10.13
//

package gopvt

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Dops holds the dilution of precision values of one solution
type Dops struct {
	GDop float64 // Geometric DOP
	PDop float64 // Position DOP
	HDop float64 // Horizontal DOP
	VDop float64 // Vertical DOP
	TDop float64 // Time DOP
}

// computeDops derives the five DOP values from the covariance matrix H and
// the receiver position. PDOP comes from the position part of the trace,
// TDOP from the clock term and GDOP from their combination.
//
// For HDOP and VDOP, instead of rotating H into the local frame, the ECEF
// vector representing the local Down direction is projected through H. That
// gives VDOP^2 directly, and HDOP follows from PDOP^2 = HDOP^2 + VDOP^2.
func computeDops(H *mat.Dense, pos PosXYZ) Dops {

	pdopSq := H.At(0, 0) + H.At(1, 1) + H.At(2, 2)
	tdopSq := H.At(3, 3)

	m := pos.NedMatrix()
	down := []float64{m[2][0], m[2][1], m[2][2]}

	var tmp mat.VecDense
	tmp.MulVec(H, mat.NewVecDense(4, []float64{down[0], down[1], down[2], 0}))
	vdopSq := floats.Dot(down, tmp.RawVector().Data[:3])

	return Dops{
		GDop: math.Sqrt(pdopSq + tdopSq),
		PDop: math.Sqrt(pdopSq),
		HDop: math.Sqrt(pdopSq - vdopSq),
		VDop: math.Sqrt(vdopSq),
		TDop: math.Sqrt(tdopSq),
	}
}

// filterSolution rejects solutions with implausible geometry or altitude.
// Returns a negative status with the rejection reason, or SolvedRaim (0)
// when the solution passes.
func (s *Solver) filterSolution(sol *Solution, dops *Dops) Status {

	if dops.PDop > s.opt.MaxPdop {
		// PDOP is too high to yield a good solution
		return ErrHighPdop
	}

	if sol.LLH.Hei < s.opt.MinHeight || sol.LLH.Hei > s.opt.MaxHeight {
		// Altitude is unreasonable
		return ErrBadAltitude
	}

	return SolvedRaim
}
