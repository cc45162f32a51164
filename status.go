// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2025.10.12
//

package gopvt

import (
	"fmt"
)

// Status is the verdict of one PVT solve. Non-negative values indicate a
// valid solution, negative values a failure. The numeric values are stable
// so they can be logged or written to pos files as quality flags.
type Status int

const (
	SolvedRaimOff Status = 2 // Converged, RAIM unavailable (disabled or exactly 4 measurements)
	SolvedRepair  Status = 1 // Converged, RAIM failed but repaired by excluding one satellite
	SolvedRaim    Status = 0 // Converged and verified by RAIM

	ErrHighPdop     Status = -1 // PDOP too high
	ErrBadAltitude  Status = -2 // Altitude unreasonable
	ErrBadVelocity  Status = -3 // Velocity unreasonable (reserved, no check fires this)
	ErrRepairFailed Status = -4 // RAIM repair attempted, failed
	ErrNoRepair     Status = -5 // RAIM repair impossible (not enough measurements)
	ErrNoConverge   Status = -6 // Took too long to converge
	ErrTooFewSats   Status = -7 // Not enough measurements for solution (< 4)
)

// Failed reports whether the status is a failure code
func (st Status) Failed() bool {
	return st < 0
}

func (st Status) String() string {
	switch st {
	case SolvedRaimOff:
		return "solved (RAIM not used)"
	case SolvedRepair:
		return "solved (repaired)"
	case SolvedRaim:
		return "solved"
	case ErrHighPdop:
		return "PDOP too high"
	case ErrBadAltitude:
		return "altitude unreasonable"
	case ErrBadVelocity:
		return "velocity unreasonable"
	case ErrRepairFailed:
		return "RAIM repair attempted, failed"
	case ErrNoRepair:
		return "RAIM repair impossible (not enough measurements)"
	case ErrNoConverge:
		return "took too long to converge"
	case ErrTooFewSats:
		return "not enough measurements for solution (< 4)"
	}
	return fmt.Sprintf("unknown status (%d)", int(st))
}
