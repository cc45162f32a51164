// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2025.10.12
//

package gopvt

const (
	PI   = 3.1415926535897932  // Pi
	C    = 2.99792458e8        // Speed of light [m/s]
	Re   = 6378137.0           // Earth's radius [m]
	Fe   = 1.0 / 298.257223563 // Earth's flattening
	OMGe = 7.2921151467e-5     // Earth rotation angular velocity [rad/s]
	L1   = 1575420000.0        // L1 carrier frequency [Hz]
)

// Calculation constants for PVT processing
const (
	MAX_CHANNELS          = 32    // Maximum number of tracked channels per epoch
	MAX_LOOP_COUNT        = 10    // Maximum number of Newton-Raphson iterations
	CONVERGENCE_THRESHOLD = 0.001 // Convergence threshold for the position correction [m]
	RESIDUAL_THRESHOLD    = 3000  // RAIM residual threshold [m]. Very liberal; typical residuals are 20 - 120
	MAX_PDOP              = 50.0  // Maximum PDOP for a usable solution
	MIN_HEIGHT            = -1e3  // Minimum plausible ellipsoidal height [m]
	MAX_HEIGHT            = 1e6   // Maximum plausible ellipsoidal height [m]
)
