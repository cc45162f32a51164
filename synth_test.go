// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2025.10.13
//

// Synthetic measurement generation for the solver tests. Measurements are
// built noiselessly from a known truth state with the same signal model the
// solver inverts, so a correct solver recovers the truth to numerical
// precision.

package gopvt

import (
	"fmt"
	"math"
)

// Known receiver truth for synthetic epochs
type truthState struct {
	pos      PosXYZ
	vel      PosXYZ
	clkBias  float64 // [m]
	clkDrift float64 // [m/s]
}

// Nominal reception time of the synthetic epoch (week, seconds of week)
const (
	synthWeek = 2300
	synthSec  = 345600.0
)

// Receiver truth near Tokyo with a modest velocity and clock state
func defaultTruth() truthState {
	llh := PosLLH{Lat: ToRad(35.681), Lon: ToRad(139.767), Hei: 52.0}
	return truthState{
		pos:      llh.ToXYZ(),
		vel:      PosXYZ{X: 12.5, Y: -3.2, Z: 7.8},
		clkBias:  240.0,
		clkDrift: 1.4,
	}
}

// satAt places a satellite at the given azimuth/elevation [deg] and range [m]
// as seen from the truth position
func satAt(truth PosXYZ, azDeg, elDeg, rng float64) PosXYZ {
	az := ToRad(azDeg)
	el := ToRad(elDeg)
	enu := NewPosENU(
		math.Cos(el)*math.Sin(az)*rng,
		math.Cos(el)*math.Cos(az)*rng,
		math.Sin(el)*rng,
	)
	return enu.ToXYZ(truth)
}

// Well-spread sky of 8 satellites
func skyGood(truth PosXYZ) []PosXYZ {
	dirs := [][2]float64{
		{0, 80}, {45, 50}, {120, 45}, {190, 60},
		{250, 40}, {310, 55}, {80, 30}, {200, 25},
	}
	sats := make([]PosXYZ, len(dirs))
	for i, d := range dirs {
		sats[i] = satAt(truth, d[0], d[1], 2.2e7)
	}
	return sats
}

// Tightly clustered sky: resolvable but with very poor geometry
func skyClustered(truth PosXYZ) []PosXYZ {
	dirs := [][2]float64{
		{0, 44}, {2, 46}, {4, 44}, {6, 48}, {8, 45},
	}
	sats := make([]PosXYZ, len(dirs))
	for i, d := range dirs {
		sats[i] = satAt(truth, d[0], d[1], 2.2e7)
	}
	return sats
}

// Plausible orbital velocities, one per satellite
func synthVels(n int) []PosXYZ {
	vels := make([]PosXYZ, n)
	for i := range vels {
		a := ToRad(float64(i) * 47.0)
		vels[i] = PosXYZ{
			X: 3000 * math.Cos(a),
			Y: 3000 * math.Sin(a),
			Z: 800 * math.Cos(a*2),
		}
	}
	return vels
}

// synthMeas builds one epoch of exact measurements from the truth state and
// satellite positions/velocities, applying the Earth-rotation correction in
// the forward direction so the solver's model matches exactly.
func synthMeas(tr truthState, satPos, satVel []PosXYZ) []Meas {
	meas := make([]Meas, len(satPos))
	for j, sp := range satPos {
		tau := EucDist(&tr.pos, &sp) / C
		wet := OMGe * tau
		xk := PosXYZ{
			X: sp.X + wet*sp.Y,
			Y: sp.Y - wet*sp.X,
			Z: sp.Z,
		}
		los := [3]float64{xk.X - tr.pos.X, xk.Y - tr.pos.Y, xk.Z - tr.pos.Z}
		rng := math.Sqrt(SQ(los[0]) + SQ(los[1]) + SQ(los[2]))
		u := [3]float64{los[0] / rng, los[1] / rng, los[2] / rng}

		pr := rng + tr.clkBias

		// Doppler consistent with the range-rate model:
		// -Dp*C/L1 = u.(satVel - rxVel) + drift
		sv := satVel[j]
		rel := [3]float64{sv.X - tr.vel.X, sv.Y - tr.vel.Y, sv.Z - tr.vel.Z}
		dp := -(L1 / C) * (u[0]*rel[0] + u[1]*rel[1] + u[2]*rel[2] + tr.clkDrift)

		meas[j] = Meas{
			Sat:    SatType(fmt.Sprintf("G%02d", j+1)),
			Pr:     pr,
			Dp:     dp,
			SatPos: sp,
			SatVel: sv,
			Tot:    GTime{Week: synthWeek, Sec: synthSec - pr/C},
		}
	}
	return meas
}

// Convenience: full clean epoch with n satellites from the good sky
func cleanEpoch(tr truthState, n int) []Meas {
	sats := skyGood(tr.pos)[:n]
	return synthMeas(tr, sats, synthVels(n))
}
