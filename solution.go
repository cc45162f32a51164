// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2025.10.13
//

package gopvt

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Solution contains the results of one PVT calculation
type Solution struct {
	Valid   bool      // Whether the solution passed all checks
	NUsed   int       // Number of measurements used
	Sats    []SatType // Satellites used in the solution
	Removed SatType   // Satellite excluded by RAIM repair, empty if none

	Elev map[SatType]float64 // Satellite elevation angles [rad]
	Res  map[SatType]float64 // Final pseudorange residuals at convergence [m]

	Pos     PosXYZ     // Receiver position in ECEF [m]
	LLH     PosLLH     // Receiver position as latitude/longitude/height
	Vel     PosXYZ     // Receiver velocity in ECEF [m/s]
	VelNed  VelNED     // Receiver velocity in local NED [m/s]
	ClkOff  float64    // Receiver clock offset [s]
	ClkDrft float64    // Receiver clock drift [s/s]
	ErrCov  [7]float64 // Position error covariance, packed upper triangle (xx xy xz yy yz zz) plus GDOP
	Time    GTime      // Solve time: transmission time plus flight time minus clock offset
}

// Solve tries to calculate a single point PVT solution for one epoch.
//
// Parameters:
//   - meas: measurements of the tracked satellites, at most MAX_CHANNELS
//     (more panics, like a dimension mismatch would)
//
// Returns:
//   - Solution: the output solution; zeroed with Valid=false on failure
//   - Dops: dilution of precision values derived from the solution geometry
//   - Status: non-negative on success (SolvedRaim, SolvedRepair, SolvedRaimOff),
//     negative with the failure reason otherwise
//
// Any rejection clears the position part of the receiver state, so the next
// call restarts from a neutral seed rather than a known-bad estimate.
func (s *Solver) Solve(meas []Meas) (*Solution, *Dops, Status) {

	n := len(meas)
	if n > MAX_CHANNELS {
		panic(fmt.Sprintf("gopvt: %d measurements exceeds MAX_CHANNELS (%d)", n, MAX_CHANNELS))
	}

	sol := &Solution{}
	dops := &Dops{}

	if n < 4 {
		return sol, dops, ErrTooFewSats
	}

	H := mat.NewDense(4, 4, nil)
	s.residual = 0

	removed, st := s.solveRaim(meas, H)
	if st.Failed() {
		// Didn't converge or the integrity check failed
		return sol, dops, st
	}

	sol.NUsed = n

	// Initial solution failed but the repair succeeded
	if st == SolvedRepair {
		sol.NUsed--
		sol.Removed = removed
	}
	sol.Elev = map[SatType]float64{}
	sol.Res = map[SatType]float64{}
	rx := s.rxPos()
	for i := range meas {
		if meas[i].Sat == removed {
			continue
		}
		sol.Sats = append(sol.Sats, meas[i].Sat)
		sol.Elev[meas[i].Sat] = rx.Elevation(meas[i].SatPos)

		// Pseudorange residual at the converged state, with the satellite
		// position in the reception-time ECEF frame
		tau := EucDist(&rx, &meas[i].SatPos) / C
		wet := OMGe * tau
		xk := PosXYZ{
			X: meas[i].SatPos.X + wet*meas[i].SatPos.Y,
			Y: meas[i].SatPos.Y - wet*meas[i].SatPos.X,
			Z: meas[i].SatPos.Z,
		}
		sol.Res[meas[i].Sat] = meas[i].Pr - EucDist(&rx, &xk) - s.rxState[3]
	}

	// Dilution of precision metrics from the converged geometry
	*dops = computeDops(H, s.rxPos())

	// Error covariances, packed according to the Solution layout
	sol.ErrCov = [7]float64{
		H.At(0, 0), H.At(0, 1), H.At(0, 2),
		H.At(1, 1), H.At(1, 2),
		H.At(2, 2),
		dops.GDop,
	}

	sol.Pos = s.rxPos()
	sol.Vel = PosXYZ{X: s.rxState[4], Y: s.rxState[5], Z: s.rxState[6]}
	sol.VelNed = sol.Vel.ToNED(sol.Pos)
	sol.LLH = sol.Pos.ToLLH()
	sol.ClkOff = s.rxState[3] / C
	sol.ClkDrft = s.rxState[7] / C

	// Time at the receiver is the transmission time plus the time of flight,
	// minus the estimated clock offset
	sol.Time = meas[0].Tot
	sol.Time.Sec += meas[0].Pr / C
	sol.Time.Sec -= s.rxState[3] / C
	sol.Time = sol.Time.Normalize()

	if fst := s.filterSolution(sol, dops); fst.Failed() {
		*sol = Solution{}
		// Reset the position part of the state if the solution fails
		s.rxState[0] = 0
		s.rxState[1] = 0
		s.rxState[2] = 0
		return sol, dops, fst
	}

	sol.Valid = true

	return sol, dops, st
}

// Display solution overview
func (sol *Solution) String() string {
	if !sol.Valid {
		return "INVALID"
	}
	llh := sol.LLH
	return fmt.Sprintf("%s %14.9f %14.9f %10.4f ns=%d",
		sol.Time.ToTime().UTC().Format("2006/01/02 15:04:05.000"),
		ToDeg(llh.Lat), ToDeg(llh.Lon), llh.Hei, sol.NUsed)
}
