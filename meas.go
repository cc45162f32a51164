// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2025.10.12
//

package gopvt

import (
	"strconv"
)

// Type representing satellite name like "G10"
type SatType string

// Type representing satellite system like 'G'
type SysType byte

// Extract satellite system from satellite name
func (p *SatType) Sys() SysType {
	return SysType((*p)[0])
}

// Check validity of satellite system
func (p *SysType) IsValid() bool {
	return *p == 'G' || *p == 'J' || *p == 'E' || *p == 'R' || *p == 'C' || *p == 'S'
}

// Extract satellite number from satellite name
func (p *SatType) Num() int {
	i, err := strconv.Atoi(string((*p)[1:3]))
	if err != nil {
		return 0
	}
	return i
}

// Meas is one navigation measurement for a single tracked satellite.
// Satellite position/velocity come from the caller's ephemeris processing and the
// pseudorange is assumed already corrected for satellite clock and atmosphere.
type Meas struct {
	Sat    SatType // Satellite name
	Pr     float64 // Pseudorange [m]
	Dp     float64 // Doppler frequency [Hz]
	SatPos PosXYZ  // Satellite position in ECEF [m]
	SatVel PosXYZ  // Satellite velocity in ECEF [m/s]
	Tot    GTime   // Time of transmission
}
