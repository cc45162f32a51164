// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2025.10.13
//

// Implements the single-epoch PVT (position/velocity/time) least-squares solver.

package gopvt

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// SolverOpt contains options and parameters for the PVT calculation
type SolverOpt struct {
	NoRaim    bool    // If true, skip RAIM check and repair
	MaxLoop   int     // Maximum number of Newton-Raphson iterations
	ConvTh    float64 // Convergence threshold for the position correction [m]
	MaxRes    float64 // RAIM residual threshold [m]
	MaxPdop   float64 // Maximum PDOP for a usable solution
	MinHeight float64 // Minimum plausible ellipsoidal height [m]
	MaxHeight float64 // Maximum plausible ellipsoidal height [m]
}

// NewSolverOpt creates a new SolverOpt with default values
func NewSolverOpt() *SolverOpt {
	return &SolverOpt{
		NoRaim:    false,
		MaxLoop:   MAX_LOOP_COUNT,
		ConvTh:    CONVERGENCE_THRESHOLD,
		MaxRes:    RESIDUAL_THRESHOLD,
		MaxPdop:   MAX_PDOP,
		MinHeight: MIN_HEIGHT,
		MaxHeight: MAX_HEIGHT,
	}
}

// Solver computes single-epoch PVT solutions. It owns the receiver state
// vector used to warm-start the Newton-Raphson iteration, so consecutive
// epochs converge in fewer steps. A Solver is not safe for concurrent use;
// give each goroutine its own, or serialize calls.
//
// The state layout is pos[3], clock bias [m], vel[3], clock drift [m/s].
type Solver struct {
	opt      SolverOpt
	rxState  [8]float64
	residual float64
}

// NewSolver creates a solver with a zeroed state. Pass nil to use default options.
func NewSolver(opt *SolverOpt) *Solver {
	if opt == nil {
		opt = NewSolverOpt()
	}
	return &Solver{opt: *opt}
}

// Seed sets an a priori receiver position to speed up convergence of the
// first epoch. Without a seed the iteration starts from the Earth's center.
func (s *Solver) Seed(pos PosXYZ) {
	s.rxState[0] = pos.X
	s.rxState[1] = pos.Y
	s.rxState[2] = pos.Z
}

// Reset clears the receiver state so the next solve starts from scratch
func (s *Solver) Reset() {
	s.rxState = [8]float64{}
}

// State returns a copy of the current receiver state vector
func (s *Solver) State() [8]float64 {
	return s.rxState
}

// Residual returns the RAIM residual norm computed by the last solve.
// Zero if the last solve never reached the residual test.
func (s *Solver) Residual() float64 {
	return s.residual
}

// rxPos returns the position part of the receiver state
func (s *Solver) rxPos() PosXYZ {
	return PosXYZ{X: s.rxState[0], Y: s.rxState[1], Z: s.rxState[2]}
}

// solveStep performs one Newton-Raphson step of the position/clock solution.
//
// For every measurement it corrects the satellite position for the Earth's
// rotation during the signal time of flight, builds one row of the geometry
// matrix G (the Jacobian of pseudorange versus receiver state: a negated unit
// line-of-sight vector plus a 1 for the clock term) and the observed-minus-
// predicted residual. It then solves the normal equations
//
//	H = (G^T G)^-1, X = H G^T, correction = X * omp
//
// and applies the correction: position accumulates, the clock bias is replaced
// by the new correction value each step. H is written for the caller.
//
// Returns the norm of the position correction and whether it is below the
// convergence threshold. On convergence the velocity solution is also run,
// filling the velocity/clock-drift part of the state from the final G and X.
func (s *Solver) solveStep(meas []*Meas, omp []float64, H *mat.Dense) (float64, bool, error) {

	n := len(meas)

	// Geometry matrix
	G := mat.NewDense(n, 4, nil)

	for j, m := range meas {

		// Magnitude of the range vector converted into an approximate flight time [s].
		// Uses the uncorrected satellite position for this estimate.
		rx := s.rxPos()
		tau := EucDist(&rx, &m.SatPos) / C

		// Rotation of Earth during time of flight [rad]
		wet := OMGe * tau

		// Apply a linearized rotation about the Z-axis to get the satellite
		// position in the ECEF frame of the reception time. The rotation is
		// through -wet because the ECEF frame itself rotates with the Earth.
		// The small-angle approximation stays below 1mm of satellite position error.
		xk := PosXYZ{
			X: m.SatPos.X + wet*m.SatPos.Y,
			Y: m.SatPos.Y - wet*m.SatPos.X,
			Z: m.SatPos.Z,
		}

		// Line of sight vector and predicted range
		los := [3]float64{xk.X - s.rxState[0], xk.Y - s.rxState[1], xk.Z - s.rxState[2]}
		pPred := math.Sqrt(SQ(los[0]) + SQ(los[1]) + SQ(los[2]))

		// Observed minus predicted range (the least-squares innovation)
		omp[j] = m.Pr - pPred

		// One geometry row: normalized negated line of sight, 1 for the clock term
		G.Set(j, 0, -los[0]/pPred)
		G.Set(j, 1, -los[1]/pPred)
		G.Set(j, 2, -los[2]/pPred)
		G.Set(j, 3, 1)

		PrintD(3, "\t%s: pr=%14.3f, pred=%14.3f, omp=%12.3f\n", m.Sat, m.Pr, pPred, omp[j])
	}

	if DBG_ >= 4 {
		PrintA("G=\n")
		PrintMat(G)
	}

	// Normal equations: H = (G^T G)^-1
	var GtG mat.Dense
	GtG.Mul(G.T(), G)
	if err := H.Inverse(&GtG); err != nil {
		return 0, false, fmt.Errorf("failed to invert G^T G (degenerate geometry): %w", err)
	}

	// X = H G^T maps pseudorange residuals onto state corrections
	var X mat.Dense
	X.Mul(H, G.T())

	// correction = X * omp
	var corr mat.VecDense
	corr.MulVec(&X, mat.NewVecDense(n, omp))

	// Increment the position estimate by the correction
	for i := 0; i < 3; i++ {
		s.rxState[i] += corr.AtVec(i)
	}

	// The clock bias estimate is replaced, not accumulated
	s.rxState[3] = corr.AtVec(3)

	// Magnitude of the position correction decides convergence
	d := math.Sqrt(SQ(corr.AtVec(0)) + SQ(corr.AtVec(1)) + SQ(corr.AtVec(2)))
	if d > s.opt.ConvTh {
		return d, false, nil
	}

	// Converged. Solve for velocity and clock drift with the final G and X.
	s.velSolve(meas, G, &X)

	return d, true, nil
}

// velSolve computes receiver velocity and clock drift from the Doppler
// observations. The G and X matrices already exist from the converged
// position solution; this is the same prediction-error least-squares
// arrangement, but linear, so one step suffices.
//
// Returns the clock drift component [m/s].
func (s *Solver) velSolve(meas []*Meas, G *mat.Dense, X *mat.Dense) float64 {

	n := len(meas)

	// Pseudorange rate residuals
	prr := make([]float64, n)
	for j, m := range meas {
		// Predicted range rate from the satellite velocity and the normalized
		// line-of-sight vectors held in G
		sv := []float64{m.SatVel.X, m.SatVel.Y, m.SatVel.Z}
		pdotPred := -floats.Dot(G.RawRowView(j)[:3], sv)

		// The remaining rate is due to the receiver's own motion
		prr[j] = -m.Dp*C/L1 - pdotPred
	}

	// vel = X * prr
	var vel mat.VecDense
	vel.MulVec(X, mat.NewVecDense(n, prr))
	for i := 0; i < 4; i++ {
		s.rxState[4+i] = vel.AtVec(i)
	}

	PrintD(2, "\tvel: %.4f %.4f %.4f, drift=%.4f\n", s.rxState[4], s.rxState[5], s.rxState[6], s.rxState[7])

	return s.rxState[7]
}

// iterate runs solveStep until convergence or the iteration budget runs out.
// The velocity/clock-drift part of the state is zeroed on entry; the velocity
// solution is a one-shot linear solve at convergence, so a stale value must
// never survive a solve that fails before reaching it.
//
// On failure the position state is reset to the origin so the next call
// re-acquires from a neutral seed instead of a known-bad estimate.
// Results are stored in the receiver state, omp and H.
func (s *Solver) iterate(meas []*Meas, omp []float64, H *mat.Dense) bool {

	for i := 4; i < 8; i++ {
		s.rxState[i] = 0
	}

	// Newton-Raphson iteration
	for it := 0; it < s.opt.MaxLoop; it++ {
		d, conv, err := s.solveStep(meas, omp, H)
		if err != nil {
			PrintD(2, "\tLOOP %d: %s\n", it+1, err.Error())
			break
		}
		PrintD(2, "\tLOOP %d: corr=%.6f, pos= %.3f %.3f %.3f, clk=%.3f\n",
			it+1, d, s.rxState[0], s.rxState[1], s.rxState[2], s.rxState[3])
		if conv {
			return true
		}
	}

	// Reset position state if the solution fails
	s.rxState[0] = 0
	s.rxState[1] = 0
	s.rxState[2] = 0
	return false
}
