// Package constants defines application-wide constants and version information.
package constants

import "runtime"

// Version holds the application version information
const Version = "1.0-" + runtime.GOOS + "/" + runtime.GOARCH

// MissingValue is the conventional missing-data marker of flux network files.
const MissingValue = -9999.0
