// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2025.10.13
//

package gopvt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// A clean epoch with redundancy converges to the truth state and is
// verified by RAIM
func TestSolveRecoverTruth(t *testing.T) {
	assert := assert.New(t)
	tr := defaultTruth()
	meas := cleanEpoch(tr, 8)

	s := NewSolver(nil)
	sol, dops, st := s.Solve(meas)

	assert.Equal(SolvedRaim, st)
	assert.True(sol.Valid)
	assert.Equal(8, sol.NUsed)
	assert.Len(sol.Sats, 8)
	assert.Equal(SatType(""), sol.Removed)

	assert.InDelta(tr.pos.X, sol.Pos.X, 1e-3)
	assert.InDelta(tr.pos.Y, sol.Pos.Y, 1e-3)
	assert.InDelta(tr.pos.Z, sol.Pos.Z, 1e-3)

	assert.InDelta(tr.vel.X, sol.Vel.X, 1e-6)
	assert.InDelta(tr.vel.Y, sol.Vel.Y, 1e-6)
	assert.InDelta(tr.vel.Z, sol.Vel.Z, 1e-6)

	assert.InDelta(tr.clkBias/C, sol.ClkOff, 1e-10)
	assert.InDelta(tr.clkDrift/C, sol.ClkDrft, 1e-10)

	assert.True(dops.PDop > 0 && dops.PDop < 10)
	// Each omp entry is one sub-millimeter correction stale at convergence
	assert.True(s.Residual() < 1e-2)

	// Per-satellite diagnostics: noiseless residuals vanish and the
	// elevations match the sky the epoch was built from
	assert.Len(sol.Res, 8)
	for _, sat := range sol.Sats {
		assert.InDelta(0, sol.Res[sat], 1e-2)
	}
	assert.InDelta(ToRad(80), sol.Elev["G01"], 1e-4)
	assert.InDelta(ToRad(25), sol.Elev["G08"], 1e-4)
}

// The NED velocity output matches an independent rotation of the ECEF velocity
func TestSolveVelNed(t *testing.T) {
	assert := assert.New(t)
	tr := defaultTruth()

	s := NewSolver(nil)
	sol, _, st := s.Solve(cleanEpoch(tr, 6))
	assert.Equal(SolvedRaim, st)

	want := tr.vel.ToNED(tr.pos)
	assert.InDelta(want.N, sol.VelNed.N, 1e-6)
	assert.InDelta(want.E, sol.VelNed.E, 1e-6)
	assert.InDelta(want.D, sol.VelNed.D, 1e-6)
}

// The solve time is the transmission time plus flight time minus clock offset
func TestSolveTimestamp(t *testing.T) {
	assert := assert.New(t)
	tr := defaultTruth()

	s := NewSolver(nil)
	sol, _, st := s.Solve(cleanEpoch(tr, 8))
	assert.Equal(SolvedRaim, st)

	assert.Equal(synthWeek, sol.Time.Week)
	assert.InDelta(synthSec-tr.clkBias/C, sol.Time.Sec, 1e-9)
}

// The error covariance packs the upper triangle of the position part of H
// plus GDOP
func TestSolveErrCov(t *testing.T) {
	assert := assert.New(t)
	tr := defaultTruth()

	s := NewSolver(nil)
	sol, dops, st := s.Solve(cleanEpoch(tr, 8))
	assert.Equal(SolvedRaim, st)

	assert.InDelta(dops.GDop, sol.ErrCov[6], 1e-12)
	// Diagonal entries of a covariance are positive
	assert.True(sol.ErrCov[0] > 0 && sol.ErrCov[3] > 0 && sol.ErrCov[5] > 0)
	// PDOP^2 is the trace of the position block
	assert.InDelta(SQ(dops.PDop), sol.ErrCov[0]+sol.ErrCov[3]+sol.ErrCov[5], 1e-9)
}

// Fewer than 4 measurements fails before any solving attempt
func TestSolveTooFewSats(t *testing.T) {
	assert := assert.New(t)
	tr := defaultTruth()
	meas := cleanEpoch(tr, 4)

	s := NewSolver(nil)
	for n := 0; n <= 3; n++ {
		sol, _, st := s.Solve(meas[:n])
		assert.Equal(ErrTooFewSats, st)
		assert.False(sol.Valid)
	}
}

// Exactly 4 measurements solves but skips the residual test, even with a
// grossly faulty pseudorange
func TestSolveExactlyFour(t *testing.T) {
	assert := assert.New(t)
	tr := defaultTruth()
	meas := cleanEpoch(tr, 4)
	// Shorten the overhead satellite's range: a gross fault that pulls the
	// solution upward, well clear of the altitude bounds
	meas[0].Pr -= 3e4

	s := NewSolver(nil)
	sol, _, st := s.Solve(meas)

	assert.Equal(SolvedRaimOff, st)
	assert.True(sol.Valid)
	assert.Equal(4, sol.NUsed)
	assert.Zero(s.Residual())
}

// Disabling RAIM returns the not-verified status even with redundancy
func TestSolveRaimDisabled(t *testing.T) {
	assert := assert.New(t)
	tr := defaultTruth()

	opt := NewSolverOpt()
	opt.NoRaim = true
	s := NewSolver(opt)
	sol, _, st := s.Solve(cleanEpoch(tr, 8))

	assert.Equal(SolvedRaimOff, st)
	assert.True(sol.Valid)
	assert.Equal(8, sol.NUsed)
}

// Degenerate geometry (all satellites along one line of sight) makes the
// normal equations singular; the solve reports non-convergence and resets
// the position state to the origin
func TestSolveDegenerateGeometry(t *testing.T) {
	assert := assert.New(t)

	meas := make([]Meas, 5)
	for i := range meas {
		h := 2.0e7 + float64(i)*1e6
		meas[i] = Meas{
			Sat:    SatType("G0" + string(rune('1'+i))),
			Pr:     h,
			SatPos: PosXYZ{X: 0, Y: 0, Z: h},
			Tot:    GTime{Week: synthWeek, Sec: synthSec},
		}
	}

	s := NewSolver(nil)
	sol, _, st := s.Solve(meas)

	assert.Equal(ErrNoConverge, st)
	assert.False(sol.Valid)
	state := s.State()
	assert.Zero(state[0])
	assert.Zero(state[1])
	assert.Zero(state[2])
}

// The solver state persists across calls: a second epoch warm-starts from
// the previous solution and still converges to its own truth
func TestSolveWarmStart(t *testing.T) {
	assert := assert.New(t)
	tr := defaultTruth()

	s := NewSolver(nil)
	_, _, st := s.Solve(cleanEpoch(tr, 8))
	assert.Equal(SolvedRaim, st)

	state := s.State()
	assert.InDelta(tr.pos.X, state[0], 1e-3)

	// Move the receiver 30 m and solve again
	tr2 := tr
	tr2.pos.X += 20
	tr2.pos.Y -= 15
	tr2.pos.Z += 10
	sol2, _, st2 := s.Solve(synthMeas(tr2, skyGood(tr2.pos), synthVels(8)))

	assert.Equal(SolvedRaim, st2)
	assert.InDelta(tr2.pos.X, sol2.Pos.X, 1e-3)
	assert.InDelta(tr2.pos.Y, sol2.Pos.Y, 1e-3)
	assert.InDelta(tr2.pos.Z, sol2.Pos.Z, 1e-3)
}

// Seed speeds up the first epoch by starting at an a priori position
func TestSolveSeed(t *testing.T) {
	assert := assert.New(t)
	tr := defaultTruth()

	s := NewSolver(nil)
	s.Seed(tr.pos)
	sol, _, st := s.Solve(cleanEpoch(tr, 8))

	assert.Equal(SolvedRaim, st)
	assert.InDelta(tr.pos.X, sol.Pos.X, 1e-3)

	s.Reset()
	assert.Equal([8]float64{}, s.State())
}

// Oversize input violates the channel bound and panics like a dimension
// mismatch would
func TestSolveTooManyChannels(t *testing.T) {
	s := NewSolver(nil)
	meas := make([]Meas, MAX_CHANNELS+1)
	assert.Panics(t, func() { s.Solve(meas) })
}

// An implausible altitude (receiver at 2000 km) is rejected, the solution
// zeroed and the position state cleared
func TestSolveAltitudeRejected(t *testing.T) {
	assert := assert.New(t)
	tr := defaultTruth()
	llh := PosLLH{Lat: ToRad(35.681), Lon: ToRad(139.767), Hei: 2e6}
	tr.pos = llh.ToXYZ()
	meas := synthMeas(tr, skyGood(tr.pos), synthVels(8))

	s := NewSolver(nil)
	sol, _, st := s.Solve(meas)

	assert.Equal(ErrBadAltitude, st)
	assert.False(sol.Valid)
	assert.Equal(PosXYZ{}, sol.Pos)
	assert.Equal(0, sol.NUsed)
	state := s.State()
	assert.Zero(state[0])
	assert.Zero(state[1])
	assert.Zero(state[2])
}

// Clustered satellites give a usable fit but hopeless geometry; the PDOP
// filter rejects the solution
func TestSolveHighPdopRejected(t *testing.T) {
	assert := assert.New(t)
	tr := defaultTruth()
	sats := skyClustered(tr.pos)
	meas := synthMeas(tr, sats, synthVels(len(sats)))

	s := NewSolver(nil)
	s.Seed(tr.pos) // converge immediately; this test is about the filter
	sol, dops, st := s.Solve(meas)

	assert.Equal(ErrHighPdop, st)
	assert.False(sol.Valid)
	assert.True(dops.PDop > MAX_PDOP, "PDOP %f not above limit", dops.PDop)
}

// The clock bias is replaced each iteration, not accumulated: a large bias
// is still recovered exactly
func TestSolveLargeClockBias(t *testing.T) {
	assert := assert.New(t)
	tr := defaultTruth()
	tr.clkBias = 150000.0

	s := NewSolver(nil)
	sol, _, st := s.Solve(cleanEpoch(tr, 8))

	assert.Equal(SolvedRaim, st)
	assert.InDelta(tr.clkBias/C, sol.ClkOff, 1e-9)
	assert.InDelta(tr.pos.X, sol.Pos.X, 1e-3)
}

// Status helpers
func TestStatus(t *testing.T) {
	assert := assert.New(t)

	assert.False(SolvedRaim.Failed())
	assert.False(SolvedRepair.Failed())
	assert.False(SolvedRaimOff.Failed())
	assert.True(ErrTooFewSats.Failed())

	assert.Equal(2, int(SolvedRaimOff))
	assert.Equal(-7, int(ErrTooFewSats))

	assert.Equal("solved", SolvedRaim.String())
	assert.Equal("PDOP too high", ErrHighPdop.String())
	assert.Equal("altitude unreasonable", ErrBadAltitude.String())
	assert.Equal("velocity unreasonable", ErrBadVelocity.String())
	assert.Equal("RAIM repair attempted, failed", ErrRepairFailed.String())
	assert.Equal("RAIM repair impossible (not enough measurements)", ErrNoRepair.String())
	assert.Equal("took too long to converge", ErrNoConverge.String())
	assert.Equal("not enough measurements for solution (< 4)", ErrTooFewSats.String())

	var unknown Status = 42
	assert.Contains(unknown.String(), "unknown")
}
